package mp4atom

// rootWrite is the state of a streaming write between BeginWrite and
// FinishWrite on the root atom.
type rootWrite struct {
	ftyp, free, mdat *Atom
	ftypPos          int64
	freePos          int64
	mdatIndex        int
}

// Load reads every top-level atom of s into a new root.
func Load(s *Stream) (*Atom, error) {
	size, err := s.Size()
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if err := s.SetPosition(0); err != nil {
		return nil, err
	}
	root := NewRoot()
	root.end = size
	if err := root.Read(s); err != nil {
		return nil, err
	}
	s.debug("msg", "loaded", "atoms", len(root.children), "size", size)
	return root, nil
}

// beginRootWrite writes ftyp followed by a reserved 'free' atom, every
// child placed before the last mdat, and the mdat header. The caller then
// streams the media payload with WriteBytes and calls FinishWrite.
func (a *Atom) beginRootWrite(s *Stream) error {
	rw := &rootWrite{mdatIndex: -1}
	for i, c := range a.children {
		if c.typ == TypeMdat {
			rw.mdatIndex = i
		}
	}
	if rw.mdatIndex < 0 {
		return Error.New("streaming write needs an 'mdat' atom")
	}

	ftypIndex := -1
	for i, c := range a.children {
		if c.typ == TypeFtyp {
			ftypIndex = i
			break
		}
	}
	if ftypIndex >= 0 && ftypIndex < rw.mdatIndex {
		rw.ftyp = a.children[ftypIndex]
		next := ftypIndex + 1
		if next < len(a.children) && a.children[next].typ == TypeFree {
			rw.free = a.children[next]
			rw.free.largeSize = false
		} else {
			rw.free = NewAtom(TypeFree)
			a.InsertChild(rw.free, next)
			rw.mdatIndex++
		}
		rw.free.bytesProp("data").set(make([]byte, s.cfg.FtypReserve-8), 0)
	}

	for _, c := range a.children[:rw.mdatIndex] {
		switch c {
		case rw.ftyp:
			rw.ftypPos = s.Position()
		case rw.free:
			rw.freePos = s.Position()
		}
		if err := c.Write(s); err != nil {
			return err
		}
	}
	rw.mdat = a.children[rw.mdatIndex]
	if err := rw.mdat.BeginWrite(s); err != nil {
		return err
	}
	a.root = rw
	return nil
}

// finishRootWrite patches the mdat size, rewrites ftyp in place, shrinking
// the reserved free atom by however much ftyp grew, and writes the
// children that follow mdat.
func (a *Atom) finishRootWrite(s *Stream) error {
	rw := a.root
	if rw == nil {
		return Error.New("FinishWrite on the root without BeginWrite")
	}
	a.root = nil
	if err := rw.mdat.FinishWrite(s); err != nil {
		return err
	}
	if rw.ftyp != nil {
		if err := a.rewriteFtyp(s, rw); err != nil {
			return err
		}
	}
	for _, c := range a.children[rw.mdatIndex+1:] {
		if err := c.Write(s); err != nil {
			return err
		}
	}
	return s.WriteBytes(a.trailer)
}

func (a *Atom) rewriteFtyp(s *Stream, rw *rootWrite) error {
	pos := s.Position()
	if err := s.SetPosition(rw.ftypPos); err != nil {
		return err
	}
	if err := rw.ftyp.Write(s); err != nil {
		return err
	}
	data := rw.free.bytesProp("data")
	n := int64(len(data.Value(0))) - (s.Position() - rw.freePos)
	if n < 0 {
		return StructureError.New("ftyp grew by %d bytes more than the reserved free space", -n)
	}
	data.set(make([]byte, n), 0)
	if err := rw.free.Write(s); err != nil {
		return err
	}
	return s.SetPosition(pos)
}
