package mp4atom

import (
	"fmt"
	"io"
)

// IntProperty is an unsigned big-endian integer of 1, 2, 3, 4 or 8 bytes,
// or a bitfield of any width up to 64 bits read from the bit cursor.
type IntProperty struct {
	property
	size       int // bytes; 0 for bitfields
	bits       int
	switchable bool // 32-bit field that can widen to 64 bits
	signed     bool
	values     []uint64
}

func newIntProperty(name string, size int) *IntProperty {
	return &IntProperty{property: property{name: name}, size: size, values: make([]uint64, 1)}
}

// NewInt8Property returns a one byte integer.
func NewInt8Property(name string) *IntProperty { return newIntProperty(name, 1) }

// NewInt16Property returns a two byte integer.
func NewInt16Property(name string) *IntProperty { return newIntProperty(name, 2) }

// NewInt24Property returns a three byte integer, as used by atom flags.
func NewInt24Property(name string) *IntProperty { return newIntProperty(name, 3) }

// NewInt32Property returns a four byte integer.
func NewInt32Property(name string) *IntProperty { return newIntProperty(name, 4) }

// NewInt64Property returns an eight byte integer.
func NewInt64Property(name string) *IntProperty { return newIntProperty(name, 8) }

// NewInt6432Property returns an integer that is 8 bytes wide when use64 is
// set and 4 bytes wide otherwise. Version dependent atoms use it for times
// and durations.
func NewInt6432Property(name string, use64 bool) *IntProperty {
	p := newIntProperty(name, 4)
	p.switchable = true
	p.Use64Bit(use64)
	return p
}

// NewBitfieldProperty returns a bitfield of the given width.
func NewBitfieldProperty(name string, bits int) *IntProperty {
	p := newIntProperty(name, 0)
	p.bits = bits
	return p
}

func (p *IntProperty) Type() PropertyType {
	if p.bits > 0 {
		return BitfieldType
	}
	return IntegerType
}

// Size returns the wire width in bytes, or 0 for a bitfield.
func (p *IntProperty) Size() int { return p.size }

// NumBits returns the wire width in bits.
func (p *IntProperty) NumBits() int {
	if p.bits > 0 {
		return p.bits
	}
	return p.size * 8
}

// SetNumBits changes the width of a bitfield.
func (p *IntProperty) SetNumBits(bits int) {
	if p.bits == 0 {
		panic(Error.New("property %q is not a bitfield", p.name))
	}
	p.bits = bits
}

// Use64Bit switches a 64/32 property between its two widths.
func (p *IntProperty) Use64Bit(use64 bool) {
	if !p.switchable {
		panic(Error.New("property %q has a fixed width", p.name))
	}
	if use64 && p.size == 4 && p.signed {
		for i := range p.values {
			p.values[i] = uint64(p.Signed(i))
		}
	}
	if use64 {
		p.size = 8
	} else {
		p.size = 4
	}
}

// SetSigned marks the value as two's complement, so a negative value
// keeps its meaning when the field changes width.
func (p *IntProperty) SetSigned(signed bool) { p.signed = signed }

// Signed returns the value at index interpreted as two's complement of
// the current width.
func (p *IntProperty) Signed(index int) int64 {
	v := p.Value(index)
	n := p.NumBits()
	if n >= 64 {
		return int64(v)
	}
	shift := uint(64 - n)
	return int64(v<<shift) >> shift
}

// fits32 reports whether the value at index can be stored in 32 bits.
func (p *IntProperty) fits32(index int) bool {
	v := p.Value(index)
	if v <= uint32Max {
		return true
	}
	return p.signed && int64(v) < 0 && int64(v) >= -1<<31
}

// Is64Bit reports whether a 64/32 property currently uses 8 bytes.
func (p *IntProperty) Is64Bit() bool { return p.switchable && p.size == 8 }

func (p *IntProperty) maxValue() uint64 {
	n := p.NumBits()
	if n >= 64 {
		return 1<<64 - 1
	}
	return 1<<uint(n) - 1
}

func (p *IntProperty) Count() int { return len(p.values) }

func (p *IntProperty) SetCount(n int) {
	if n <= len(p.values) {
		p.values = p.values[:n]
		return
	}
	p.values = append(p.values, make([]uint64, n-len(p.values))...)
}

// Value returns the value at index, or 0 when index is out of range.
func (p *IntProperty) Value(index int) uint64 {
	if index < 0 || index >= len(p.values) {
		return 0
	}
	return p.values[index]
}

// SetValue stores v at index, growing the property as needed.
func (p *IntProperty) SetValue(v uint64, index int) {
	p.mustWritable()
	p.set(v, index)
}

// AddValue appends v.
func (p *IntProperty) AddValue(v uint64) {
	p.mustWritable()
	p.values = append(p.values, v)
}

func (p *IntProperty) set(v uint64, index int) {
	if index >= len(p.values) {
		p.SetCount(index + 1)
	}
	p.values[index] = v
}

func (p *IntProperty) Generate() {
	clear(p.values)
}

func (p *IntProperty) Read(s *Stream, index int) error {
	if p.implicit {
		return nil
	}
	var v uint64
	var err error
	if p.bits > 0 {
		v, err = s.ReadBits(p.bits)
	} else {
		v, err = s.ReadUint(p.size)
	}
	if err != nil {
		return err
	}
	p.set(v, index)
	return nil
}

func (p *IntProperty) Write(s *Stream, index int) error {
	if p.implicit {
		return nil
	}
	v := p.Value(index)
	if v > p.maxValue() && p.signed && int64(v) < 0 && int64(v) >= -1<<uint(p.NumBits()-1) {
		v &= p.maxValue()
	}
	if v > p.maxValue() {
		return Error.New("value %d of %q does not fit in %d bits", v, p.name, p.NumBits())
	}
	if p.bits > 0 {
		return s.WriteBits(v, p.bits)
	}
	return s.WriteUint(v, p.size)
}

func (p *IntProperty) Dump(w io.Writer, indent, verbosity, index int) {
	if p.implicit && verbosity < 2 {
		return
	}
	dumpIndent(w, indent)
	v := p.Value(index)
	name := dumpName(p.name, index, p.Count() > 1 || index > 0)
	if p.bits > 0 {
		fmt.Fprintf(w, "%s = %d (0x%0*x) <%d bits>\n", name, v, (p.bits+3)/4, v, p.bits)
		return
	}
	fmt.Fprintf(w, "%s = %d (0x%0*x)\n", name, v, p.size*2, v)
}

func (p *IntProperty) find(path []pathSegment, index int) (Property, int, bool) {
	return p.findSelf(p, path, index)
}
