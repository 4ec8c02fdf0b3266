package mp4atom

import (
	"fmt"
	"io"
)

// Descriptor is an MPEG-4 tag-length-value record: a one byte tag, an
// expandable length and an ordered list of properties. Variable-shape
// descriptors pause after mutatePoint properties to let mutate
// reconfigure the rest from what was just read.
type Descriptor struct {
	tag   uint8
	space TagSpace
	name  string
	atom  *Atom
	props []Property

	mutatePoint int
	mutate      func(d *Descriptor)
	// prepare runs after the header, once the length is known.
	prepare func(d *Descriptor)
	// readBody replaces the default read order.
	readBody func(d *Descriptor, s *Stream) error
	generate func(d *Descriptor)

	start    int64 // first byte after the header
	size     int64
	lenWidth int
	trailer  []byte
}

func newDescriptor(space TagSpace, tag uint8, name string) *Descriptor {
	return &Descriptor{space: space, tag: tag, name: name, mutatePoint: -1}
}

// Tag returns the descriptor tag.
func (d *Descriptor) Tag() uint8 { return d.tag }

// Name returns the descriptor kind, for example "ESDescriptor".
func (d *Descriptor) Name() string { return d.name }

// Size returns the body length of the last read descriptor.
func (d *Descriptor) Size() int64 { return d.size }

// Properties returns the descriptor's properties in wire order.
func (d *Descriptor) Properties() []Property { return d.props }

// Property returns the property called name, or nil.
func (d *Descriptor) Property(name string) Property {
	return propertyByName(d.props, name)
}

func (d *Descriptor) add(p Property) {
	p.setAtom(d.atom)
	d.props = append(d.props, p)
}

func (d *Descriptor) setAtom(a *Atom) {
	d.atom = a
	for _, p := range d.props {
		p.setAtom(a)
	}
}

func (d *Descriptor) intProp(name string) *IntProperty {
	return d.Property(name).(*IntProperty)
}

func (d *Descriptor) setImplicit(implicit bool, names ...string) {
	for _, n := range names {
		d.Property(n).SetImplicit(implicit)
	}
}

// Generate sets default values on every property.
func (d *Descriptor) Generate() {
	for _, p := range d.props {
		p.Generate()
	}
	if d.generate != nil {
		d.generate(d)
	}
}

// ReadHeader reads the tag and the length and records where the body
// starts.
func (d *Descriptor) ReadHeader(s *Stream) error {
	tag, err := s.ReadUint8()
	if err != nil {
		return err
	}
	if tag != d.tag {
		return StructureError.New("expected descriptor tag 0x%02x, found 0x%02x at %d", d.tag, tag, s.Position()-1)
	}
	size, width, err := s.ReadMpegLength()
	if err != nil {
		return err
	}
	d.size = int64(size)
	d.lenWidth = width
	d.start = s.Position()
	return nil
}

// Read reads the header and the properties. Consuming more bytes than the
// length declares is a StructureError. Bytes left unread are kept and
// written back unchanged.
func (d *Descriptor) Read(s *Stream) error {
	if err := d.ReadHeader(s); err != nil {
		return err
	}
	defer s.limitTo(d.start + d.size)()
	if d.prepare != nil {
		d.prepare(d)
	}
	var err error
	if d.readBody != nil {
		err = d.readBody(d, s)
	} else {
		err = d.readDefault(s)
	}
	if err != nil {
		return err
	}
	s.FlushReadBits()
	end := d.start + d.size
	switch pos := s.Position(); {
	case pos > end:
		return StructureError.New("%s overran its length of %d by %d bytes", d.name, d.size, pos-end)
	case pos < end:
		s.debug("msg", "descriptor has trailing bytes", "descriptor", d.name, "bytes", end-pos)
		trailer, err := s.ReadBytes(int(end - pos))
		if err != nil {
			return err
		}
		d.trailer = trailer
	}
	return nil
}

func (d *Descriptor) readDefault(s *Stream) error {
	point := d.mutatePoint
	if point < 0 || point > len(d.props) {
		point = len(d.props)
	}
	if err := d.readProperties(s, 0, point); err != nil {
		return err
	}
	if d.mutate != nil {
		d.mutate(d)
	}
	return d.readProperties(s, point, len(d.props))
}

func (d *Descriptor) readProperties(s *Stream, from, to int) error {
	for i := from; i < to; i++ {
		p := d.props[i]
		remaining := d.size - (s.Position() - d.start)
		if dp, ok := p.(*DescriptorProperty); ok {
			s.FlushReadBits()
			if remaining > 0 {
				dp.SetSizeLimit(remaining)
				if err := dp.Read(s, 0); err != nil {
					return err
				}
			}
			continue
		}
		if remaining < 0 {
			return StructureError.New("overran %s by %d bytes before property %q", d.name, -remaining, p.Name())
		}
		if err := readProperty(s, p, 0); err != nil {
			return err
		}
	}
	return nil
}

// Write writes the tag, a length placeholder and the properties, then
// patches the length. Lengths read in a short form keep that form when the
// new length fits.
func (d *Descriptor) Write(s *Stream) error {
	if d.mutate != nil {
		d.mutate(d)
	}
	if err := syncTables(s, d.props); err != nil {
		return err
	}
	if err := s.WriteUint8(d.tag); err != nil {
		return err
	}
	width := d.lenWidth
	if s.cfg.CompactDescriptorLength {
		width = 0
	}
	if width == 4 || (width == 0 && !s.cfg.CompactDescriptorLength) {
		return d.writeBackpatched(s)
	}

	body := s.derive()
	if err := d.writeBody(body); err != nil {
		return err
	}
	b, err := body.Bytes()
	if err != nil {
		return err
	}
	size := uint32(len(b))
	if w := mpegLengthWidth(size); w > width {
		width = w
	}
	if err := s.writeMpegLength(size, width); err != nil {
		return err
	}
	return s.WriteBytes(b)
}

func (d *Descriptor) writeBackpatched(s *Stream) error {
	lenPos := s.Position()
	if err := s.WriteMpegLength(0, false); err != nil {
		return err
	}
	start := s.Position()
	if err := d.writeBody(s); err != nil {
		return err
	}
	end := s.Position()
	size := end - start
	if size > maxMpegLength {
		return StructureError.New("%s body of %d bytes exceeds the descriptor length range", d.name, size)
	}
	if err := s.SetPosition(lenPos); err != nil {
		return err
	}
	if err := s.WriteMpegLength(uint32(size), false); err != nil {
		return err
	}
	return s.SetPosition(end)
}

func (d *Descriptor) writeBody(s *Stream) error {
	for _, p := range d.props {
		if err := writeProperty(s, p, 0); err != nil {
			return err
		}
	}
	if err := s.PadWriteBits(0); err != nil {
		return err
	}
	return s.WriteBytes(d.trailer)
}

// Dump prints the descriptor and its properties.
func (d *Descriptor) Dump(w io.Writer, indent, verbosity int, label string) {
	dumpIndent(w, indent)
	fmt.Fprintf(w, "%s = %s (tag 0x%02x)\n", label, d.name, d.tag)
	for _, p := range d.props {
		p.Dump(w, indent+1, verbosity, 0)
	}
	if len(d.trailer) > 0 {
		dumpIndent(w, indent+1)
		fmt.Fprintf(w, "<%d trailing bytes>\n", len(d.trailer))
	}
}

// FindProperty resolves a dotted property path inside the descriptor.
func (d *Descriptor) FindProperty(path string) (Property, int) {
	segs, ok := parsePath(path)
	if !ok {
		return nil, 0
	}
	return findProperty(d.props, segs)
}

// DescriptorProperty holds the descriptors found in a tag range.
type DescriptorProperty struct {
	property
	space       TagSpace
	tagStart    uint8
	tagEnd      uint8
	mandatory   bool
	onlyOne     bool
	sizeLimit   int64
	descriptors []*Descriptor
}

// NewDescriptorProperty returns a property holding descriptors tagged
// tagStart..tagEnd of the given tag space. A tagEnd of 0 means tagStart
// only. An empty name makes the property transparent to path lookup.
func NewDescriptorProperty(name string, space TagSpace, tagStart, tagEnd uint8, mandatory, onlyOne bool) *DescriptorProperty {
	if tagEnd == 0 {
		tagEnd = tagStart
	}
	return &DescriptorProperty{
		property:  property{name: name},
		space:     space,
		tagStart:  tagStart,
		tagEnd:    tagEnd,
		mandatory: mandatory,
		onlyOne:   onlyOne,
		sizeLimit: -1,
	}
}

func (p *DescriptorProperty) Type() PropertyType { return DescriptorType }

// SetSizeLimit bounds the bytes the next Read may consume.
func (p *DescriptorProperty) SetSizeLimit(n int64) { p.sizeLimit = n }

// Descriptors returns the descriptors read or added so far.
func (p *DescriptorProperty) Descriptors() []*Descriptor { return p.descriptors }

// Count returns the number of descriptors held.
func (p *DescriptorProperty) Count() int { return len(p.descriptors) }

func (p *DescriptorProperty) SetCount(int) {}

func (p *DescriptorProperty) setAtom(a *Atom) {
	p.atom = a
	for _, d := range p.descriptors {
		d.setAtom(a)
	}
}

// AddDescriptor creates a descriptor for tag and appends it.
func (p *DescriptorProperty) AddDescriptor(tag uint8) *Descriptor {
	if tag < p.tagStart || tag > p.tagEnd {
		panic(Error.New("tag 0x%02x outside 0x%02x-0x%02x of %q", tag, p.tagStart, p.tagEnd, p.name))
	}
	d := NewDescriptor(p.space, tag)
	d.setAtom(p.atom)
	p.descriptors = append(p.descriptors, d)
	return d
}

// DeleteDescriptor removes the descriptor at index.
func (p *DescriptorProperty) DeleteDescriptor(index int) {
	p.descriptors = append(p.descriptors[:index], p.descriptors[index+1:]...)
}

func (p *DescriptorProperty) Generate() {
	p.descriptors = nil
	if p.mandatory && p.onlyOne {
		p.AddDescriptor(p.tagStart).Generate()
	}
}

func (p *DescriptorProperty) Read(s *Stream, index int) error {
	if p.implicit {
		return nil
	}
	start := s.Position()
	for {
		if p.sizeLimit >= 0 && s.Position() >= start+p.sizeLimit {
			break
		}
		if left, ok := s.remaining(); ok && left <= 0 {
			break
		}
		tag, err := s.PeekUint8()
		if err != nil {
			if StructureError.Has(err) {
				break
			}
			return err
		}
		if tag < p.tagStart || tag > p.tagEnd {
			break
		}
		if err := p.AddDescriptor(tag).Read(s); err != nil {
			return err
		}
	}
	p.sizeLimit = -1
	if p.mandatory && len(p.descriptors) == 0 {
		s.warn("msg", "mandatory descriptor is missing", "property", p.name, "tag", p.tagStart)
	}
	if p.onlyOne && len(p.descriptors) > 1 {
		s.warn("msg", "descriptor appears more than once", "property", p.name, "count", len(p.descriptors))
	}
	return nil
}

func (p *DescriptorProperty) tagRange() string {
	if p.tagStart == p.tagEnd {
		return fmt.Sprintf("tag 0x%02x", p.tagStart)
	}
	return fmt.Sprintf("tags 0x%02x-0x%02x", p.tagStart, p.tagEnd)
}

func (p *DescriptorProperty) Write(s *Stream, index int) error {
	if p.implicit {
		return nil
	}
	for _, d := range p.descriptors {
		if err := d.Write(s); err != nil {
			return err
		}
	}
	return nil
}

func (p *DescriptorProperty) Dump(w io.Writer, indent, verbosity, index int) {
	if p.implicit && verbosity < 2 {
		return
	}
	name := p.name
	if name == "" {
		name = "descriptor"
	}
	for i, d := range p.descriptors {
		d.Dump(w, indent, verbosity, fmt.Sprintf("%s[%d]", name, i))
	}
}

func (p *DescriptorProperty) find(path []pathSegment, index int) (Property, int, bool) {
	if len(path) == 0 {
		return nil, 0, false
	}
	if p.name == "" {
		for _, d := range p.descriptors {
			if found, i := findProperty(d.props, path); found != nil {
				return found, i, true
			}
		}
		return nil, 0, false
	}
	if !path[0].matchName(p.name) {
		return nil, 0, false
	}
	if len(path) == 1 {
		return p, path[0].index, true
	}
	if path[0].hasIndex {
		if path[0].index >= len(p.descriptors) {
			return nil, 0, false
		}
		found, i := findProperty(p.descriptors[path[0].index].props, path[1:])
		return found, i, found != nil
	}
	for _, d := range p.descriptors {
		if found, i := findProperty(d.props, path[1:]); found != nil {
			return found, i, true
		}
	}
	return nil, 0, false
}

// syncTables reconciles table counts before a property list is written.
func syncTables(s *Stream, props []Property) error {
	for _, p := range props {
		if t, ok := p.(*TableProperty); ok && !t.Implicit() {
			if err := t.syncCount(s); err != nil {
				return err
			}
		}
	}
	return nil
}
