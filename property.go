package mp4atom

import (
	"fmt"
	"io"
	"strings"
)

// PropertyType identifies the kind of a Property.
type PropertyType int

// Property kinds.
const (
	IntegerType PropertyType = iota
	BitfieldType
	FloatType
	StringType
	BytesType
	TableType
	DescriptorType
	LanguageType
)

var propertyTypeNames = [...]string{
	IntegerType:    "integer",
	BitfieldType:   "bitfield",
	FloatType:      "float",
	StringType:     "string",
	BytesType:      "bytes",
	TableType:      "table",
	DescriptorType: "descriptor",
	LanguageType:   "language",
}

func (t PropertyType) String() string {
	if int(t) < len(propertyTypeNames) {
		return propertyTypeNames[t]
	}
	return fmt.Sprintf("PropertyType(%d)", int(t))
}

// Property is a named, typed field of an atom or descriptor that knows how
// to read, write, default and print itself. Multi-valued properties (table
// columns) address their values by index; scalars use index 0.
type Property interface {
	Name() string
	Type() PropertyType
	// Atom returns the atom the property belongs to, or nil while it is
	// still detached.
	Atom() *Atom

	ReadOnly() bool
	SetReadOnly(bool)
	// Implicit properties are neither read nor written.
	Implicit() bool
	SetImplicit(bool)

	Count() int
	SetCount(n int)

	Generate()
	Read(s *Stream, index int) error
	Write(s *Stream, index int) error
	Dump(w io.Writer, indent, verbosity, index int)

	setAtom(a *Atom)
	find(path []pathSegment, index int) (Property, int, bool)
}

type property struct {
	name     string
	atom     *Atom
	readOnly bool
	implicit bool
}

func (p *property) Name() string        { return p.name }
func (p *property) Atom() *Atom         { return p.atom }
func (p *property) ReadOnly() bool      { return p.readOnly }
func (p *property) SetReadOnly(ro bool) { p.readOnly = ro }
func (p *property) Implicit() bool      { return p.implicit }
func (p *property) SetImplicit(i bool)  { p.implicit = i }
func (p *property) setAtom(a *Atom)     { p.atom = a }

// mustWritable panics when a caller tries to change a read-only property.
func (p *property) mustWritable() {
	if p.readOnly {
		panic(Error.New("property %q is read-only", p.name))
	}
}

// find matches a single remaining segment against the property name.
func (p *property) findSelf(self Property, path []pathSegment, index int) (Property, int, bool) {
	if len(path) != 1 || !path[0].matchName(p.name) {
		return nil, 0, false
	}
	if path[0].hasIndex {
		index = path[0].index
	}
	return self, index, true
}

func dumpIndent(w io.Writer, indent int) {
	io.WriteString(w, strings.Repeat("  ", indent))
}

func dumpName(name string, index int, multi bool) string {
	if multi {
		return fmt.Sprintf("%s[%d]", name, index)
	}
	return name
}

// isBits reports whether p is read from the shared bit cursor.
func isBits(p Property) bool {
	ip, ok := p.(*IntProperty)
	return ok && ip.bits > 0
}

// readProperty reads p, discarding leftover bits of a partially consumed
// byte unless p continues the bit run.
func readProperty(s *Stream, p Property, index int) error {
	if p.Implicit() {
		return nil
	}
	if !isBits(p) {
		s.FlushReadBits()
	}
	return p.Read(s, index)
}

// writeProperty writes p, zero padding a partially written byte unless p
// continues the bit run.
func writeProperty(s *Stream, p Property, index int) error {
	if p.Implicit() {
		return nil
	}
	if !isBits(p) {
		if err := s.PadWriteBits(0); err != nil {
			return err
		}
	}
	return p.Write(s, index)
}

func findProperty(props []Property, path []pathSegment) (Property, int) {
	for _, p := range props {
		if found, index, ok := p.find(path, 0); ok {
			return found, index
		}
	}
	return nil, 0
}

func propertyByName(props []Property, name string) Property {
	for _, p := range props {
		if strings.EqualFold(p.Name(), name) {
			return p
		}
	}
	return nil
}
