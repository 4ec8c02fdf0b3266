package mp4atom

import (
	"github.com/google/uuid"
)

// childInfo is one entry of an atom's expected children.
type childInfo struct {
	typ       BoxType
	mandatory bool
	onlyOne   bool
}

// Span locates a payload inside a stream without holding its bytes.
type Span struct {
	Offset int64
	Size   int64
}

// atomSpec declares an atom type: its properties, expected children and
// the hooks that customise the generic read, generate and write paths.
type atomSpec struct {
	full bool
	// container atoms read children even without expectations.
	container bool
	build     func(a *Atom)
	// discriminator names the property whose value selects the layout;
	// bind declares the properties that follow it.
	discriminator string
	bind          func(a *Atom, v uint64)
	generate      func(a *Atom)
	// prepareRead runs once the header is read, before any property.
	prepareRead func(a *Atom, s *Stream) error
	readBody    func(a *Atom, s *Stream) error
	afterRead   func(a *Atom, s *Stream) error
	beforeWrite func(a *Atom, s *Stream) error
	// payload atoms record their body as a Span instead of reading it.
	payload bool
}

var unknownSpec = &atomSpec{
	build: func(a *Atom) { a.AddProperty(NewBytesProperty("data", -1)) },
	prepareRead: func(a *Atom, s *Stream) error {
		if a.typ.suspect() {
			s.warn("msg", "suspect atom type", "type", quoteType(a.typ), "offset", a.start)
		}
		a.bytesProp("data").SetValueSize(int(a.end-s.Position()), 0)
		return nil
	},
}

// Atom is a box of an MP4 file: a four character type, an ordered list of
// properties and an ordered list of child atoms.
type Atom struct {
	typ      BoxType
	extended uuid.UUID
	parent   *Atom
	props    []Property
	children []*Atom
	expected []childInfo
	spec     *atomSpec
	unknown  bool
	bound    bool

	start     int64 // offset of the size field
	end       int64
	header    int64
	largeSize bool
	trailer   []byte

	span   Span
	source *Stream

	wstart int64
	wlarge bool
	root   *rootWrite
}

func newAtom(t BoxType, spec *atomSpec) *Atom {
	a := &Atom{typ: t, spec: spec}
	if spec == nil {
		a.spec = unknownSpec
		a.unknown = true
	}
	if a.spec.full {
		a.AddProperty(NewInt8Property("version"))
		a.AddProperty(NewInt24Property("flags"))
	}
	if a.spec.build != nil {
		a.spec.build(a)
	}
	return a
}

// Type returns the four character type.
func (a *Atom) Type() BoxType { return a.typ }

// ExtendedType returns the 16-byte user type of a uuid atom.
func (a *Atom) ExtendedType() uuid.UUID { return a.extended }

// Parent returns the containing atom, or nil for the root.
func (a *Atom) Parent() *Atom { return a.parent }

// Children returns the child atoms in file order.
func (a *Atom) Children() []*Atom { return a.children }

// Properties returns the atom's properties in wire order.
func (a *Atom) Properties() []Property { return a.props }

// Unknown reports whether the type had no registered declaration. The
// body of an unknown atom is kept as raw bytes.
func (a *Atom) Unknown() bool { return a.unknown }

// Start returns the offset of the atom's size field as last read or
// written.
func (a *Atom) Start() int64 { return a.start }

// Size returns the total size of the atom as last read or written.
func (a *Atom) Size() int64 { return a.end - a.start }

// Span returns the payload location of an mdat atom.
func (a *Atom) Span() Span { return a.span }

// SetSpan points the payload of an mdat atom at span within src.
func (a *Atom) SetSpan(src *Stream, span Span) {
	a.source = src
	a.span = span
}

func (a *Atom) isRoot() bool { return a.spec == rootSpec }

// AddProperty appends p to the atom's property list.
func (a *Atom) AddProperty(p Property) {
	p.setAtom(a)
	a.props = append(a.props, p)
}

// Property returns the atom's own property called name, or nil.
func (a *Atom) Property(name string) Property {
	return propertyByName(a.props, name)
}

func (a *Atom) intProp(name string) *IntProperty {
	p, _ := a.Property(name).(*IntProperty)
	return p
}

func (a *Atom) bytesProp(name string) *BytesProperty {
	p, _ := a.Property(name).(*BytesProperty)
	return p
}

func (a *Atom) tableProp(name string) *TableProperty {
	p, _ := a.Property(name).(*TableProperty)
	return p
}

// Version returns the version field of a full atom.
func (a *Atom) Version() uint8 {
	if p := a.intProp("version"); p != nil {
		return uint8(p.Value(0))
	}
	return 0
}

// Flags returns the 24-bit flags field of a full atom.
func (a *Atom) Flags() uint32 {
	if p := a.intProp("flags"); p != nil {
		return uint32(p.Value(0))
	}
	return 0
}

// SetFlags sets the flags field of a full atom.
func (a *Atom) SetFlags(flags uint32) {
	if p := a.intProp("flags"); p != nil {
		p.SetValue(uint64(flags), 0)
	}
}

// ExpectChildAtom declares t as a legal child. Missing mandatory children
// and repeated onlyOne children are reported, never rejected, on read.
func (a *Atom) ExpectChildAtom(t string, mandatory, onlyOne bool) {
	bt, err := ParseBoxType(t)
	if err != nil {
		panic(err)
	}
	a.expected = append(a.expected, childInfo{typ: bt, mandatory: mandatory, onlyOne: onlyOne})
}

func (a *Atom) expects(t BoxType) (childInfo, bool) {
	for _, info := range a.expected {
		if info.typ == t {
			return info, true
		}
	}
	return childInfo{}, false
}

// AddChild appends c to the children.
func (a *Atom) AddChild(c *Atom) {
	c.parent = a
	a.children = append(a.children, c)
}

// InsertChild places c at index among the children.
func (a *Atom) InsertChild(c *Atom, index int) {
	if index < 0 || index > len(a.children) {
		panic(Error.New("child index %d out of range [0,%d]", index, len(a.children)))
	}
	c.parent = a
	a.children = append(a.children, nil)
	copy(a.children[index+1:], a.children[index:])
	a.children[index] = c
}

// DeleteChild removes c from the children. It reports whether c was a
// child of a.
func (a *Atom) DeleteChild(c *Atom) bool {
	for i, child := range a.children {
		if child == c {
			a.children = append(a.children[:i], a.children[i+1:]...)
			c.parent = nil
			return true
		}
	}
	return false
}

// Child returns the first child of type t, or nil.
func (a *Atom) Child(t BoxType) *Atom {
	for _, c := range a.children {
		if c.typ == t {
			return c
		}
	}
	return nil
}

func (a *Atom) countChildren(t BoxType) int {
	n := 0
	for _, c := range a.children {
		if c.typ == t {
			n++
		}
	}
	return n
}

func (a *Atom) bind(v uint64) {
	a.spec.bind(a, v)
	a.bound = true
}

func (a *Atom) discriminator() string {
	if a.spec.discriminator != "" {
		return a.spec.discriminator
	}
	return "version"
}

// Generate gives every property its default value, then creates and
// generates each mandatory single child that is not already present.
func (a *Atom) Generate() {
	if a.spec.bind != nil && !a.bound {
		a.bind(0)
	}
	for _, p := range a.props {
		p.Generate()
	}
	if a.spec.generate != nil {
		a.spec.generate(a)
	}
	for _, info := range a.expected {
		if !info.mandatory || !info.onlyOne || a.Child(info.typ) != nil {
			continue
		}
		c := newChildAtom(a.typ, info.typ)
		a.AddChild(c)
		c.Generate()
	}
}

// ReadAtom reads one atom header at the current position of s, constructs
// the atom registered for its type and reads its body. On return s is
// positioned at the end of the atom.
func ReadAtom(s *Stream, parent *Atom) (*Atom, error) {
	start := s.Position()
	size32, err := s.ReadUint32()
	if err != nil {
		return nil, err
	}
	tb, err := s.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	var t BoxType
	copy(t[:], tb)

	size := uint64(size32)
	header := int64(8)
	large := false
	switch size32 {
	case 1:
		if size, err = s.ReadUint64(); err != nil {
			return nil, err
		}
		header += 8
		large = true
	case 0:
		limit, err := atomLimit(s, parent)
		if err != nil {
			return nil, err
		}
		size = uint64(limit - start)
	}

	var ext uuid.UUID
	if t == TypeUUID {
		b, err := s.ReadBytes(16)
		if err != nil {
			return nil, err
		}
		copy(ext[:], b)
		header += 16
	}
	if size < uint64(header) || size > 1<<62 {
		return nil, StructureError.New("invalid size %d for atom %s at %d", size, quoteType(t), start)
	}

	end := start + int64(size)
	if parent != nil && parent.end > 0 {
		if end > parent.end {
			s.logError("msg", "atom extends beyond its parent, clamping", "type", quoteType(t), "size", size, "parent", quoteType(parent.typ), "overrun", end-parent.end)
			end = parent.end
		}
	} else {
		limit, err := s.Size()
		if err != nil {
			return nil, err
		}
		if end > limit {
			s.logError("msg", "atom extends beyond the end of the stream, clamping", "type", quoteType(t), "size", size, "overrun", end-limit)
			end = limit
		}
	}

	var parentType BoxType
	if parent != nil {
		parentType = parent.typ
	}
	a := newAtomForRead(parentType, t, ext)
	a.parent = parent
	a.start = start
	a.end = end
	a.header = header
	a.largeSize = large
	if parent != nil && !parent.isRoot() && !a.unknown {
		if _, ok := parent.expects(t); !ok && len(parent.expected) > 0 {
			s.debug("msg", "unexpected child atom", "type", quoteType(t), "parent", quoteType(parent.typ))
		}
	}

	if err := a.Read(s); err != nil {
		return nil, err
	}
	if s.Position() != end {
		if err := s.SetPosition(end); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func atomLimit(s *Stream, parent *Atom) (int64, error) {
	if parent != nil && parent.end > 0 {
		return parent.end, nil
	}
	return s.Size()
}

// Read reads the body of an atom whose header has been consumed:
// properties, then children, then any trailing bytes, which are kept and
// written back verbatim.
func (a *Atom) Read(s *Stream) error {
	defer s.limitTo(a.end)()
	if a.spec.payload {
		a.span = Span{Offset: s.Position(), Size: a.end - s.Position()}
		a.source = s
		return s.SetPosition(a.end)
	}
	if a.spec.prepareRead != nil {
		if err := a.spec.prepareRead(a, s); err != nil {
			return err
		}
	}
	var err error
	if a.spec.readBody != nil {
		err = a.spec.readBody(a, s)
	} else {
		err = a.readProperties(s)
	}
	if err != nil {
		return err
	}
	if a.spec.container || len(a.expected) > 0 {
		if err := a.readChildAtoms(s); err != nil {
			return err
		}
	}
	if a.spec.afterRead != nil {
		if err := a.spec.afterRead(a, s); err != nil {
			return err
		}
	}
	return a.readTrailer(s)
}

func (a *Atom) readProperties(s *Stream) error {
	for i := 0; i < len(a.props); i++ {
		p := a.props[i]
		if err := readProperty(s, p, 0); err != nil {
			return err
		}
		if s.Position() > a.end {
			return StructureError.New("atom %s is too small; overrun at property %q", quoteType(a.typ), p.Name())
		}
		if a.spec.bind != nil && !a.bound && p.Name() == a.discriminator() {
			a.bind(p.(*IntProperty).Value(0))
		}
	}
	s.FlushReadBits()
	return nil
}

func (a *Atom) readChildAtoms(s *Stream) error {
	for s.Position() < a.end {
		if a.end-s.Position() < 8 {
			break
		}
		c, err := ReadAtom(s, a)
		if err != nil {
			return err
		}
		a.children = append(a.children, c)
	}
	if rest := a.end - s.Position(); rest > 0 && rest < 8 && !(a.typ == TypeUdta && rest == 4) {
		s.warn("msg", "bytes left over after child atoms", "type", quoteType(a.typ), "bytes", rest)
	}
	for _, info := range a.expected {
		n := a.countChildren(info.typ)
		if info.mandatory && n == 0 {
			s.warn("msg", "missing required child atom", "type", quoteType(info.typ), "parent", a.Path())
		}
		if info.onlyOne && n > 1 {
			s.warn("msg", "child atom should appear once", "type", quoteType(info.typ), "parent", a.Path(), "count", n)
		}
	}
	return nil
}

func (a *Atom) readTrailer(s *Stream) error {
	pos := s.Position()
	if pos > a.end {
		return StructureError.New("atom %s overran its size of %d by %d bytes", quoteType(a.typ), a.Size(), pos-a.end)
	}
	if pos == a.end {
		return nil
	}
	s.debug("msg", "keeping trailing bytes", "type", quoteType(a.typ), "bytes", a.end-pos)
	b, err := s.ReadBytes(int(a.end - pos))
	if err != nil {
		return err
	}
	a.trailer = b
	return nil
}

// reconcileCount makes a count property agree with n, the number of
// entries actually present.
func (a *Atom) reconcileCount(s *Stream, name string, n int) error {
	p := a.intProp(name)
	if p == nil || p.Value(0) == uint64(n) {
		return nil
	}
	if s.cfg.CountPolicy == CountStrict {
		return ValidationError.New("%s.%s is %d but %d entries are present", a.Path(), name, p.Value(0), n)
	}
	s.warn("msg", "count does not match entries, repairing", "atom", a.Path(), "property", name, "count", p.Value(0), "entries", n)
	p.set(uint64(n), 0)
	return nil
}

// Write serializes the atom with a backpatched size.
func (a *Atom) Write(s *Stream) error {
	if a.isRoot() {
		for _, c := range a.children {
			if err := c.Write(s); err != nil {
				return err
			}
		}
		return s.WriteBytes(a.trailer)
	}
	if err := a.BeginWrite(s); err != nil {
		return err
	}
	if err := a.writeBody(s); err != nil {
		return err
	}
	return a.FinishWrite(s)
}

// BeginWrite prepares the atom for writing and emits its header with a
// placeholder size. The root atom instead starts a streaming write; see
// root.go.
func (a *Atom) BeginWrite(s *Stream) error {
	if a.isRoot() {
		return a.beginRootWrite(s)
	}
	if err := a.prepareWrite(s); err != nil {
		return err
	}
	a.wstart = s.Position()
	a.wlarge = a.largeSize || s.cfg.largeSize(a.typ) || a.estimateSize() > uint32Max
	if a.wlarge {
		if err := s.WriteUint32(1); err != nil {
			return err
		}
	} else if err := s.WriteUint32(0); err != nil {
		return err
	}
	if err := s.WriteBytes(a.typ[:]); err != nil {
		return err
	}
	if a.wlarge {
		if err := s.WriteUint64(0); err != nil {
			return err
		}
	}
	if a.typ == TypeUUID {
		return s.WriteBytes(a.extended[:])
	}
	return nil
}

func (a *Atom) prepareWrite(s *Stream) error {
	a.promote(s.cfg)
	if a.spec.beforeWrite != nil {
		if err := a.spec.beforeWrite(a, s); err != nil {
			return err
		}
	}
	return syncTables(s, a.props)
}

func (a *Atom) writeBody(s *Stream) error {
	if a.spec.payload {
		return a.writePayload(s)
	}
	for _, p := range a.props {
		if err := writeProperty(s, p, 0); err != nil {
			return err
		}
	}
	if err := s.PadWriteBits(0); err != nil {
		return err
	}
	for _, c := range a.children {
		if err := c.Write(s); err != nil {
			return err
		}
	}
	return s.WriteBytes(a.trailer)
}

func (a *Atom) writePayload(s *Stream) error {
	if a.source == nil || a.span.Size == 0 {
		return nil
	}
	if a.source == s && a.span.Offset == s.Position() {
		return s.SetPosition(a.span.Offset + a.span.Size)
	}
	return a.source.copyTo(s, a.span.Offset, a.span.Size)
}

// FinishWrite patches the size written by BeginWrite. The root atom
// finishes a streaming write instead.
func (a *Atom) FinishWrite(s *Stream) error {
	if a.isRoot() {
		return a.finishRootWrite(s)
	}
	end := s.Position()
	size := end - a.wstart
	if !a.wlarge && size > uint32Max {
		return StructureError.New("atom %s of %d bytes needs a 64-bit size", quoteType(a.typ), size)
	}
	if a.wlarge {
		if err := s.SetPosition(a.wstart + 8); err != nil {
			return err
		}
		if err := s.WriteUint64(uint64(size)); err != nil {
			return err
		}
	} else {
		if err := s.SetPosition(a.wstart); err != nil {
			return err
		}
		if err := s.WriteUint32(uint32(size)); err != nil {
			return err
		}
	}
	if err := s.SetPosition(end); err != nil {
		return err
	}
	a.header = 8
	if a.wlarge {
		a.header = 16
	}
	if a.typ == TypeUUID {
		a.header += 16
	}
	a.start, a.end, a.largeSize = a.wstart, end, a.wlarge
	if a.spec.payload {
		a.SetSpan(s, Span{Offset: a.start + a.header, Size: end - a.start - a.header})
	}
	return nil
}

// estimateSize returns a size at least as large as the atom will need
// for its bulk content: payload spans, byte runs and children.
func (a *Atom) estimateSize() int64 {
	n := int64(32) + int64(len(a.trailer))
	if a.spec.payload {
		n += a.span.Size
	}
	for _, p := range a.props {
		if b, ok := p.(*BytesProperty); ok {
			for i := 0; i < b.Count(); i++ {
				n += int64(len(b.Value(i)))
			}
		}
	}
	for _, c := range a.children {
		n += c.estimateSize()
	}
	return n
}

// promote switches a version 0 atom with 64/32 fields to version 1 when
// a value no longer fits in 32 bits or Time64 is configured. Atoms are
// never demoted.
func (a *Atom) promote(cfg Config) {
	version := a.intProp("version")
	if version == nil || version.Value(0) != 0 {
		return
	}
	var wide []*IntProperty
	collect := func(p Property) {
		if ip, ok := p.(*IntProperty); ok && ip.switchable {
			wide = append(wide, ip)
		}
	}
	for _, p := range a.props {
		collect(p)
		if t, ok := p.(*TableProperty); ok {
			for _, c := range t.columns {
				collect(c)
			}
		}
	}
	if len(wide) == 0 {
		return
	}
	need := cfg.Time64
	for _, p := range wide {
		for i := 0; i < p.Count() && !need; i++ {
			need = !p.fits32(i)
		}
	}
	if !need {
		return
	}
	version.set(1, 0)
	for _, p := range wide {
		p.Use64Bit(true)
	}
}

// Rewrite writes the atom again at the offset it was read from or last
// written to. The new serialization must have the same size.
func (a *Atom) Rewrite(s *Stream) error {
	if a.isRoot() {
		return Error.New("the root atom cannot be rewritten")
	}
	pos := s.Position()
	start, end := a.start, a.end
	if a.spec.payload {
		if err := s.SetPosition(start); err != nil {
			return err
		}
		if err := a.Write(s); err != nil {
			return err
		}
		if a.end != end {
			return StructureError.New("rewrite of %s changed its size from %d to %d", quoteType(a.typ), end-start, a.Size())
		}
		return s.SetPosition(pos)
	}

	restore := a.saveOffsets()
	tmp := s.derive()
	if err := a.Write(tmp); err != nil {
		restore()
		return err
	}
	b, err := tmp.Bytes()
	if err != nil {
		restore()
		return err
	}
	if int64(len(b)) != end-start {
		restore()
		return StructureError.New("rewrite of %s would change its size from %d to %d", quoteType(a.typ), end-start, len(b))
	}
	if err := s.SetPosition(start); err != nil {
		return err
	}
	if err := s.WriteBytes(b); err != nil {
		return err
	}
	a.relocate(s, start)
	return s.SetPosition(pos)
}

// saveOffsets records the offsets of the atom and its descendants and
// returns a func that puts them back.
func (a *Atom) saveOffsets() func() {
	type offsets struct {
		a                  *Atom
		start, end, header int64
		large              bool
		span               Span
		source             *Stream
	}
	var saved []offsets
	var walk func(x *Atom)
	walk = func(x *Atom) {
		saved = append(saved, offsets{x, x.start, x.end, x.header, x.largeSize, x.span, x.source})
		for _, c := range x.children {
			walk(c)
		}
	}
	walk(a)
	return func() {
		for _, o := range saved {
			o.a.start, o.a.end, o.a.header, o.a.largeSize = o.start, o.end, o.header, o.large
			o.a.span, o.a.source = o.span, o.source
		}
	}
}

// relocate shifts recorded offsets after the atom was written to another
// stream at offset 0.
func (a *Atom) relocate(s *Stream, delta int64) {
	a.start += delta
	a.end += delta
	a.wstart += delta
	if a.spec.payload && a.source != nil {
		a.span.Offset += delta
		a.source = s
	}
	for _, c := range a.children {
		c.relocate(s, delta)
	}
}

func quoteType(t BoxType) string {
	if t == typeRoot {
		return "root"
	}
	return "'" + t.String() + "'"
}
