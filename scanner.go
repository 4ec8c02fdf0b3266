package mp4atom

import (
	"github.com/google/uuid"
)

// ScanEntry is a top-level atom found by the Scanner.
type ScanEntry struct {
	Type         BoxType
	ExtendedType uuid.UUID // set for 'uuid' atoms
	Size         int64     // total size including header
	Offset       int64     // offset of the size field
	HeaderSize   int       // 8, 16, or either plus 16 for 'uuid'
}

// DataSize returns the size of the atom body.
func (e ScanEntry) DataSize() int64 {
	return e.Size - int64(e.HeaderSize)
}

// Scanner walks the top-level atom headers of a stream without reading
// any body. Callers pick the atoms they care about, such as moov, and load
// only those with ReadAtom.
//
// Typical usage:
//
//	sc := mp4atom.NewScanner(s)
//	for sc.Next() {
//	    if sc.Entry().Type == mp4atom.TypeMoov {
//	        moov, err := sc.ReadAtom()
//	        ...
//	    }
//	}
//	if err := sc.Err(); err != nil { ... }
type Scanner struct {
	s     *Stream
	size  int64
	pos   int64
	entry ScanEntry
	err   error
}

// NewScanner returns a Scanner reading s from its current position.
func NewScanner(s *Stream) *Scanner {
	sc := &Scanner{s: s, pos: s.Position()}
	sc.size, sc.err = s.Size()
	return sc
}

// Next advances to the next atom. It returns false at the end of the
// stream or on error; check Err after the loop.
func (sc *Scanner) Next() bool {
	if sc.err != nil || sc.size-sc.pos < 8 {
		return false
	}
	if err := sc.s.SetPosition(sc.pos); err != nil {
		sc.err = err
		return false
	}
	e, err := sc.readHeader()
	if err != nil {
		sc.err = err
		return false
	}
	sc.entry = e
	sc.pos = e.Offset + e.Size
	return true
}

func (sc *Scanner) readHeader() (ScanEntry, error) {
	e := ScanEntry{Offset: sc.pos, HeaderSize: 8}
	size32, err := sc.s.ReadUint32()
	if err != nil {
		return e, err
	}
	b, err := sc.s.ReadBytes(4)
	if err != nil {
		return e, err
	}
	copy(e.Type[:], b)

	e.Size = int64(size32)
	switch size32 {
	case 1:
		size, err := sc.s.ReadUint64()
		if err != nil {
			return e, err
		}
		e.Size = int64(size)
		e.HeaderSize = 16
	case 0:
		e.Size = sc.size - e.Offset
	}
	if e.Type == TypeUUID {
		b, err := sc.s.ReadBytes(16)
		if err != nil {
			return e, err
		}
		copy(e.ExtendedType[:], b)
		e.HeaderSize += 16
	}
	if e.Size < int64(e.HeaderSize) {
		return e, StructureError.New("invalid size %d for atom %s at %d", e.Size, quoteType(e.Type), e.Offset)
	}
	if e.Offset+e.Size > sc.size {
		sc.s.warn("msg", "atom extends beyond the end of the stream", "type", quoteType(e.Type), "size", e.Size, "missing", e.Offset+e.Size-sc.size)
	}
	return e, nil
}

// Entry returns the current atom. Only valid after Next returns true.
func (sc *Scanner) Entry() ScanEntry {
	return sc.entry
}

// Err returns the first error encountered by the Scanner.
func (sc *Scanner) Err() error {
	return sc.err
}

// ReadAtom reads the current atom and its subtree. The scanner position
// is unaffected.
func (sc *Scanner) ReadAtom() (*Atom, error) {
	if err := sc.s.SetPosition(sc.entry.Offset); err != nil {
		return nil, err
	}
	root := NewRoot()
	root.end = sc.size
	a, err := ReadAtom(sc.s, root)
	if err != nil {
		return nil, err
	}
	root.AddChild(a)
	return a, nil
}
