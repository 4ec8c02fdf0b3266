package mp4atom

import (
	"fmt"
	"io"
	"math"
)

// FloatFormat selects the wire encoding of a FloatProperty.
type FloatFormat int

const (
	// Float32Format is an IEEE 754 single precision value.
	Float32Format FloatFormat = iota
	// Fixed16Format is an unsigned 8.8 fixed-point value in 16 bits.
	Fixed16Format
	// Fixed32Format is an unsigned 16.16 fixed-point value in 32 bits.
	Fixed32Format
)

// FloatProperty holds floating point values stored as IEEE floats or as
// fixed-point integers.
type FloatProperty struct {
	property
	format FloatFormat
	values []float64
}

// NewFloatProperty returns a float property in the given wire format.
func NewFloatProperty(name string, format FloatFormat) *FloatProperty {
	return &FloatProperty{property: property{name: name}, format: format, values: make([]float64, 1)}
}

func (p *FloatProperty) Type() PropertyType { return FloatType }

// Format returns the wire format.
func (p *FloatProperty) Format() FloatFormat { return p.format }

func (p *FloatProperty) Count() int { return len(p.values) }

func (p *FloatProperty) SetCount(n int) {
	if n <= len(p.values) {
		p.values = p.values[:n]
		return
	}
	p.values = append(p.values, make([]float64, n-len(p.values))...)
}

// Value returns the value at index, or 0 when index is out of range.
func (p *FloatProperty) Value(index int) float64 {
	if index < 0 || index >= len(p.values) {
		return 0
	}
	return p.values[index]
}

// SetValue stores v at index.
func (p *FloatProperty) SetValue(v float64, index int) {
	p.mustWritable()
	p.set(v, index)
}

func (p *FloatProperty) set(v float64, index int) {
	if index >= len(p.values) {
		p.SetCount(index + 1)
	}
	p.values[index] = v
}

func (p *FloatProperty) Generate() {
	clear(p.values)
}

func (p *FloatProperty) Read(s *Stream, index int) error {
	if p.implicit {
		return nil
	}
	var v float64
	switch p.format {
	case Fixed16Format:
		raw, err := s.ReadUint16()
		if err != nil {
			return err
		}
		v = float64(raw) / (1 << 8)
	case Fixed32Format:
		raw, err := s.ReadUint32()
		if err != nil {
			return err
		}
		v = float64(raw) / (1 << 16)
	default:
		raw, err := s.ReadUint32()
		if err != nil {
			return err
		}
		v = float64(math.Float32frombits(raw))
	}
	p.set(v, index)
	return nil
}

func (p *FloatProperty) Write(s *Stream, index int) error {
	if p.implicit {
		return nil
	}
	v := p.Value(index)
	switch p.format {
	case Fixed16Format:
		raw := math.Round(v * (1 << 8))
		if raw < 0 || raw > math.MaxUint16 {
			return Error.New("value %g of %q is out of fixed 8.8 range", v, p.name)
		}
		return s.WriteUint16(uint16(raw))
	case Fixed32Format:
		raw := math.Round(v * (1 << 16))
		if raw < 0 || raw > math.MaxUint32 {
			return Error.New("value %g of %q is out of fixed 16.16 range", v, p.name)
		}
		return s.WriteUint32(uint32(raw))
	default:
		return s.WriteUint32(math.Float32bits(float32(v)))
	}
}

func (p *FloatProperty) Dump(w io.Writer, indent, verbosity, index int) {
	if p.implicit && verbosity < 2 {
		return
	}
	dumpIndent(w, indent)
	fmt.Fprintf(w, "%s = %g\n", dumpName(p.name, index, p.Count() > 1 || index > 0), p.Value(index))
}

func (p *FloatProperty) find(path []pathSegment, index int) (Property, int, bool) {
	return p.findSelf(p, path, index)
}
