package mp4atom

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// dumpBytesLimit is the number of bytes printed before a byte run is
// abbreviated.
const dumpBytesLimit = 32

// BytesProperty is a raw byte run. Its length is not self-describing, so
// it must be known before Read: either fixed at construction, set with
// SetValueSize, or taken from a length property of the same table row.
type BytesProperty struct {
	property
	fixed    bool
	defSize  int
	sizes    []int // -1 while unknown
	values   [][]byte
	sizeProp *IntProperty
}

// NewBytesProperty returns a byte run of size bytes. A negative size means
// the size is set later with SetValueSize.
func NewBytesProperty(name string, size int) *BytesProperty {
	return &BytesProperty{property: property{name: name}, defSize: size, sizes: []int{size}, values: make([][]byte, 1)}
}

// NewFixedBytesProperty returns a byte run whose size never changes.
func NewFixedBytesProperty(name string, size int) *BytesProperty {
	p := NewBytesProperty(name, size)
	p.fixed = true
	return p
}

// NewReservedProperty returns a fixed, read-only byte run.
func NewReservedProperty(name string, size int) *BytesProperty {
	p := NewFixedBytesProperty(name, size)
	p.readOnly = true
	return p
}

func (p *BytesProperty) Type() PropertyType { return BytesType }

// SetSizeProperty makes the length of each value follow sizeProp at the
// same index, as in tables of length-prefixed parameter sets.
func (p *BytesProperty) SetSizeProperty(sizeProp *IntProperty) { p.sizeProp = sizeProp }

func (p *BytesProperty) Count() int { return len(p.values) }

func (p *BytesProperty) SetCount(n int) {
	for len(p.values) < n {
		p.values = append(p.values, nil)
		p.sizes = append(p.sizes, p.defSize)
	}
	p.values = p.values[:n]
	p.sizes = p.sizes[:n]
}

// ValueSize returns the size the value at index will be read with, or -1
// when it is unknown.
func (p *BytesProperty) ValueSize(index int) int {
	if p.sizeProp != nil {
		return int(p.sizeProp.Value(index))
	}
	if index < 0 || index >= len(p.sizes) {
		return -1
	}
	return p.sizes[index]
}

// SetValueSize sets the number of bytes the next Read at index consumes.
func (p *BytesProperty) SetValueSize(n, index int) {
	if p.fixed && p.defSize != n {
		panic(Error.New("property %q has a fixed size of %d", p.name, p.defSize))
	}
	if index >= len(p.values) {
		p.SetCount(index + 1)
	}
	p.sizes[index] = n
}

// Value returns the bytes at index.
func (p *BytesProperty) Value(index int) []byte {
	if index < 0 || index >= len(p.values) {
		return nil
	}
	return p.values[index]
}

// SetValue stores b at index. A fixed-size property only accepts values of
// its size.
func (p *BytesProperty) SetValue(b []byte, index int) {
	p.mustWritable()
	p.set(b, index)
}

func (p *BytesProperty) set(b []byte, index int) {
	if index >= len(p.values) {
		p.SetCount(index + 1)
	}
	if p.fixed && len(b) != p.defSize {
		panic(Error.New("property %q needs %d bytes, got %d", p.name, p.defSize, len(b)))
	}
	p.values[index] = b
	p.sizes[index] = len(b)
}

func (p *BytesProperty) Generate() {
	for i := range p.values {
		n := p.sizes[i]
		if n < 0 {
			n = 0
		}
		p.values[i] = make([]byte, n)
		p.sizes[i] = n
	}
}

func (p *BytesProperty) Read(s *Stream, index int) error {
	if p.implicit {
		return nil
	}
	n := p.ValueSize(index)
	if n < 0 {
		panic(Error.New("bytes property %q read before its size was set", p.name))
	}
	b, err := s.ReadBytes(n)
	if err != nil {
		return err
	}
	if index >= len(p.values) {
		p.SetCount(index + 1)
	}
	p.values[index] = b
	p.sizes[index] = n
	return nil
}

func (p *BytesProperty) Write(s *Stream, index int) error {
	if p.implicit {
		return nil
	}
	b := p.Value(index)
	if p.fixed && len(b) < p.defSize {
		b = append(b, make([]byte, p.defSize-len(b))...)
	}
	return s.WriteBytes(b)
}

func (p *BytesProperty) Dump(w io.Writer, indent, verbosity, index int) {
	if p.implicit && verbosity < 2 {
		return
	}
	dumpIndent(w, indent)
	b := p.Value(index)
	name := dumpName(p.name, index, p.Count() > 1 || index > 0)
	if len(b) <= dumpBytesLimit || verbosity >= 2 {
		fmt.Fprintf(w, "%s = <%d bytes> %s\n", name, len(b), hex.EncodeToString(b))
		return
	}
	fmt.Fprintf(w, "%s = <%s> %s...\n", name, humanize.IBytes(uint64(len(b))), hex.EncodeToString(b[:dumpBytesLimit]))
}

func (p *BytesProperty) find(path []pathSegment, index int) (Property, int, bool) {
	return p.findSelf(p, path, index)
}
