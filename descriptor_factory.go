package mp4atom

// TagSpace separates the independent tag numberings descriptors live in.
type TagSpace int

const (
	// ObjectDescriptors holds the object and elementary stream descriptors
	// found in iods and esds atoms, including OCI and extension ranges.
	ObjectDescriptors TagSpace = iota
	// ODCommands holds object descriptor update and remove commands.
	ODCommands
	// QosQualifiers holds the qualifiers nested in a QoS descriptor.
	QosQualifiers
)

func (s TagSpace) String() string {
	switch s {
	case ObjectDescriptors:
		return "object"
	case ODCommands:
		return "odcommand"
	case QosQualifiers:
		return "qos"
	}
	return "unknown"
}

type descriptorEntry struct {
	start, end uint8
	name       string
	build      func(d *Descriptor)
}

// descriptorRegistry is filled by init functions and only read afterwards.
var descriptorRegistry = map[TagSpace][]descriptorEntry{}

func registerDescriptor(space TagSpace, start, end uint8, name string, build func(d *Descriptor)) {
	descriptorRegistry[space] = append(descriptorRegistry[space], descriptorEntry{start, end, name, build})
}

func lookupDescriptor(space TagSpace, tag uint8) (descriptorEntry, bool) {
	var ranged *descriptorEntry
	entries := descriptorRegistry[space]
	for i := range entries {
		e := &entries[i]
		if tag < e.start || tag > e.end {
			continue
		}
		if e.start == e.end {
			return *e, true
		}
		if ranged == nil {
			ranged = e
		}
	}
	if ranged != nil {
		return *ranged, true
	}
	return descriptorEntry{}, false
}

// NewDescriptor constructs the descriptor registered for tag in space.
// Exact tags take precedence over ranges. Unregistered tags yield a
// descriptor that keeps its body as raw bytes.
func NewDescriptor(space TagSpace, tag uint8) *Descriptor {
	e, ok := lookupDescriptor(space, tag)
	if !ok {
		d := newDescriptor(space, tag, "UnknownDescriptor")
		rawBody(d, "data", 0)
		return d
	}
	d := newDescriptor(space, tag, e.name)
	e.build(d)
	return d
}

// rawBody appends a bytes property that takes whatever follows the first
// offset bytes of the body.
func rawBody(d *Descriptor, name string, offset int64) {
	p := NewBytesProperty(name, -1)
	d.add(p)
	prev := d.prepare
	d.prepare = func(d *Descriptor) {
		if prev != nil {
			prev(d)
		}
		n := d.size - offset
		if n < 0 {
			n = 0
		}
		p.SetValueSize(int(n), 0)
	}
}
