package mp4atom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// memStreamOf returns an in-memory stream holding b, positioned at 0.
func memStreamOf(t *testing.T, b []byte, opts ...StreamOption) *Stream {
	t.Helper()
	s := NewMemStream(opts...)
	require.NoError(t, s.WriteBytes(b))
	require.NoError(t, s.SetPosition(0))
	return s
}

// writeBytes serializes a into a fresh stream and returns the bytes.
func writeBytes(t *testing.T, a *Atom, opts ...StreamOption) []byte {
	t.Helper()
	s := NewMemStream(opts...)
	require.NoError(t, a.Write(s))
	b, err := s.Bytes()
	require.NoError(t, err)
	return b
}

// readAtom parses a single atom from b.
func readAtom(t *testing.T, b []byte, opts ...StreamOption) *Atom {
	t.Helper()
	a, err := ReadAtom(memStreamOf(t, b, opts...), nil)
	require.NoError(t, err)
	return a
}

// box assembles an atom with a 32-bit header around body.
func box(typ string, body ...[]byte) []byte {
	n := 8
	for _, b := range body {
		n += len(b)
	}
	out := be.AppendUint32(nil, uint32(n))
	out = append(out, typ...)
	for _, b := range body {
		out = append(out, b...)
	}
	return out
}

// fullBox is box with a version and flags prefix.
func fullBox(typ string, version uint8, flags uint32, body ...[]byte) []byte {
	vf := []byte{version, byte(flags >> 16), byte(flags >> 8), byte(flags)}
	return box(typ, append([][]byte{vf}, body...)...)
}

func u16(v uint16) []byte { return be.AppendUint16(nil, v) }
func u32(v uint32) []byte { return be.AppendUint32(nil, v) }
func u64(v uint64) []byte { return be.AppendUint64(nil, v) }

// newTestMovie generates a minimal movie: ftyp, moov with one track and an
// empty mdat.
func newTestMovie(t *testing.T) *Atom {
	t.Helper()
	root := NewRoot()
	ftyp := NewAtom(TypeFtyp)
	root.AddChild(ftyp)
	ftyp.Generate()
	root.Generate()

	trak := NewAtom(TypeTrak)
	root.Child(TypeMoov).AddChild(trak)
	trak.Generate()

	root.AddChild(NewAtom(TypeMdat))
	return root
}
