package mp4atom

import (
	"fmt"
	"io"
)

// TableProperty is a sequence of records whose length is held by a
// separate count property. Each column is itself a multi-valued property;
// row i is made of the i-th value of every column. Implicit columns are
// derived from the others and never touch the wire.
type TableProperty struct {
	property
	count   *IntProperty
	columns []Property
	derive  func(t *TableProperty)
	// beforeColumn runs ahead of each column of each row on read and write.
	beforeColumn func(t *TableProperty, row int, col Property)
}

// NewTableProperty returns an empty table counted by count.
func NewTableProperty(name string, count *IntProperty) *TableProperty {
	return &TableProperty{property: property{name: name}, count: count}
}

func (t *TableProperty) Type() PropertyType { return TableType }

// AddColumn appends a column. The column starts with zero rows.
func (t *TableProperty) AddColumn(p Property) {
	p.SetCount(0)
	p.setAtom(t.atom)
	t.columns = append(t.columns, p)
}

// Columns returns the columns in declaration order.
func (t *TableProperty) Columns() []Property { return t.columns }

// Column returns the column called name, or nil.
func (t *TableProperty) Column(name string) Property {
	return propertyByName(t.columns, name)
}

// CountProperty returns the property holding the number of rows.
func (t *TableProperty) CountProperty() *IntProperty { return t.count }

// Len returns the number of rows currently held.
func (t *TableProperty) Len() int {
	for _, c := range t.columns {
		if !c.Implicit() {
			return c.Count()
		}
	}
	return int(t.count.Value(0))
}

// Count of a table is always one; the rows are counted by Len.
func (t *TableProperty) Count() int { return 1 }

func (t *TableProperty) SetCount(int) {}

func (t *TableProperty) setAtom(a *Atom) {
	t.atom = a
	for _, c := range t.columns {
		c.setAtom(a)
	}
}

// AddRow appends a zero-valued row, bumps the count and returns the new
// row index.
func (t *TableProperty) AddRow() int {
	n := t.Len()
	for _, c := range t.columns {
		c.SetCount(n + 1)
	}
	t.count.set(uint64(n+1), 0)
	t.refresh()
	return n
}

func (t *TableProperty) refresh() {
	if t.derive != nil {
		t.derive(t)
	}
}

func (t *TableProperty) Generate() {
	for _, c := range t.columns {
		c.SetCount(0)
	}
}

func (t *TableProperty) allImplicit() bool {
	for _, c := range t.columns {
		if !c.Implicit() {
			return false
		}
	}
	return true
}

// minRowSize returns a lower bound of the bytes a row takes on the wire.
func (t *TableProperty) minRowSize() int64 {
	bits := 0
	for _, c := range t.columns {
		if c.Implicit() {
			continue
		}
		switch c := c.(type) {
		case *IntProperty:
			bits += c.NumBits()
		case *FloatProperty:
			bits += 16
		case *LanguageCodeProperty:
			bits += 16
		case *StringProperty:
			bits += 8
		}
	}
	return int64(bits / 8)
}

func (t *TableProperty) Read(s *Stream, index int) error {
	if t.implicit {
		return nil
	}
	n := int64(t.count.Value(0))
	if t.allImplicit() {
		// The rows exist only as a count.
		t.refresh()
		return nil
	}
	if avail, ok := s.remaining(); ok {
		if row := t.minRowSize(); row > 0 && n*row > avail {
			return StructureError.New("table %q of %d rows needs at least %d bytes, %d left", t.name, n, n*row, avail)
		}
	}
	for _, c := range t.columns {
		c.SetCount(int(n))
	}
	for i := 0; i < int(n); i++ {
		for _, c := range t.columns {
			if t.beforeColumn != nil {
				t.beforeColumn(t, i, c)
			}
			if err := readProperty(s, c, i); err != nil {
				return err
			}
		}
	}
	t.refresh()
	return nil
}

// syncCount reconciles the count property with the rows actually held.
func (t *TableProperty) syncCount(s *Stream) error {
	t.refresh()
	n := t.Len()
	for _, c := range t.columns {
		if !c.Implicit() && c.Count() != n {
			return Error.New("table %q: column %q has %d rows, expected %d", t.name, c.Name(), c.Count(), n)
		}
		if b, ok := c.(*BytesProperty); ok && b.sizeProp != nil {
			for i := 0; i < n; i++ {
				b.sizeProp.set(uint64(len(b.Value(i))), i)
			}
		}
	}
	declared := t.count.Value(0)
	if declared == uint64(n) {
		return nil
	}
	if s.cfg.CountPolicy == CountStrict && !t.count.Implicit() {
		return ValidationError.New("table %q: count %d does not match %d rows", t.name, declared, n)
	}
	if !t.count.Implicit() {
		s.warn("msg", "table count does not match rows, repairing", "table", t.name, "count", declared, "rows", n)
	}
	t.count.set(uint64(n), 0)
	return nil
}

func (t *TableProperty) Write(s *Stream, index int) error {
	if t.implicit {
		return nil
	}
	n := t.Len()
	for i := 0; i < n; i++ {
		for _, c := range t.columns {
			if t.beforeColumn != nil {
				t.beforeColumn(t, i, c)
			}
			if err := writeProperty(s, c, i); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *TableProperty) Dump(w io.Writer, indent, verbosity, index int) {
	if t.implicit && verbosity < 2 {
		return
	}
	n := t.Len()
	dumpIndent(w, indent)
	fmt.Fprintf(w, "%s = <%d entries>\n", t.name, n)
	if verbosity < 1 {
		return
	}
	t.refresh()
	for i := 0; i < n; i++ {
		for _, c := range t.columns {
			c.Dump(w, indent+1, verbosity, i)
		}
	}
}

func (t *TableProperty) find(path []pathSegment, index int) (Property, int, bool) {
	if len(path) == 0 || !path[0].matchName(t.name) {
		return nil, 0, false
	}
	if path[0].hasIndex {
		index = path[0].index
	}
	if len(path) == 1 {
		return t, index, true
	}
	for _, c := range t.columns {
		if found, i, ok := c.find(path[1:], index); ok {
			return found, i, true
		}
	}
	return nil, 0, false
}
