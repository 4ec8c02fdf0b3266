package mp4atom

import (
	"fmt"
	"io"
)

// LanguageCodeProperty is a packed ISO 639-2/T language code: one pad bit
// followed by three 5-bit letters, each stored as the letter minus 0x60.
type LanguageCodeProperty struct {
	property
	values []uint16
}

// NewLanguageCodeProperty returns a language code defaulting to "und".
func NewLanguageCodeProperty(name string) *LanguageCodeProperty {
	return &LanguageCodeProperty{property: property{name: name}, values: []uint16{packLanguage("und")}}
}

func (p *LanguageCodeProperty) Type() PropertyType { return LanguageType }

func (p *LanguageCodeProperty) Count() int { return len(p.values) }

func (p *LanguageCodeProperty) SetCount(n int) {
	for len(p.values) < n {
		p.values = append(p.values, packLanguage("und"))
	}
	p.values = p.values[:n]
}

// Value returns the three letter code at index.
func (p *LanguageCodeProperty) Value(index int) string {
	if index < 0 || index >= len(p.values) {
		return ""
	}
	v := p.values[index]
	return string([]byte{
		byte(v>>10&0x1f) + 0x60,
		byte(v>>5&0x1f) + 0x60,
		byte(v&0x1f) + 0x60,
	})
}

// SetValue stores a three letter code at index.
func (p *LanguageCodeProperty) SetValue(code string, index int) {
	p.mustWritable()
	if len(code) != 3 {
		panic(Error.New("language code %q is not three letters", code))
	}
	if index >= len(p.values) {
		p.SetCount(index + 1)
	}
	p.values[index] = packLanguage(code)
}

func packLanguage(code string) uint16 {
	var v uint16
	for i := 0; i < 3; i++ {
		v = v<<5 | uint16(code[i]-0x60)&0x1f
	}
	return v
}

func (p *LanguageCodeProperty) Generate() {
	for i := range p.values {
		p.values[i] = packLanguage("und")
	}
}

func (p *LanguageCodeProperty) Read(s *Stream, index int) error {
	if p.implicit {
		return nil
	}
	v, err := s.ReadUint16()
	if err != nil {
		return err
	}
	if index >= len(p.values) {
		p.SetCount(index + 1)
	}
	p.values[index] = v
	return nil
}

func (p *LanguageCodeProperty) Write(s *Stream, index int) error {
	if p.implicit {
		return nil
	}
	var v uint16
	if index < len(p.values) {
		v = p.values[index]
	}
	return s.WriteUint16(v)
}

func (p *LanguageCodeProperty) Dump(w io.Writer, indent, verbosity, index int) {
	if p.implicit && verbosity < 2 {
		return
	}
	dumpIndent(w, indent)
	fmt.Fprintf(w, "%s = %s\n", dumpName(p.name, index, p.Count() > 1 || index > 0), p.Value(index))
}

func (p *LanguageCodeProperty) find(path []pathSegment, index int) (Property, int, bool) {
	return p.findSelf(p, path, index)
}
