package mp4atom

// Object descriptor command tags.
const (
	ODUpdateODCommandTag uint8 = 0x01
	ODRemoveODCommandTag uint8 = 0x02
	ESUpdateODCommandTag uint8 = 0x03
	ESRemoveODCommandTag uint8 = 0x04
)

// QoS qualifier tags.
const (
	MaxDelayQosTag     uint8 = 0x01
	PrefMaxDelayQosTag uint8 = 0x02
	LossProbQosTag     uint8 = 0x03
	MaxGapLossQosTag   uint8 = 0x04
	MaxAUSizeQosTag    uint8 = 0x41
	AvgAUSizeQosTag    uint8 = 0x42
	MaxAURateQosTag    uint8 = 0x43
)

func init() {
	registerDescriptor(ODCommands, ODUpdateODCommandTag, ODUpdateODCommandTag, "ObjectDescriptorUpdate", func(d *Descriptor) {
		d.add(NewDescriptorProperty("objectDescriptors", ObjectDescriptors, FileODescrTag, 0, true, false))
	})
	registerDescriptor(ODCommands, ODRemoveODCommandTag, ODRemoveODCommandTag, "ObjectDescriptorRemove", func(d *Descriptor) {
		count := NewInt32Property("entryCount")
		count.SetImplicit(true)
		count.SetReadOnly(true)
		table := NewTableProperty("entries", count)
		table.AddColumn(NewBitfieldProperty("objectDescriptorId", 10))
		d.add(count)
		d.add(table)
		// ten bit ids fill the body; the rest of the last byte is padding
		d.prepare = func(d *Descriptor) {
			count.set(uint64(d.size*8/10), 0)
		}
	})
	esRefs := func(d *Descriptor) {
		d.add(NewBitfieldProperty("objectDescriptorId", 10))
		d.add(NewBitfieldProperty("pad", 6))
		d.add(NewDescriptorProperty("esIdRefs", ObjectDescriptors, ESIDRefDescrTag, 0, true, false))
	}
	registerDescriptor(ODCommands, ESUpdateODCommandTag, ESUpdateODCommandTag, "ESDescriptorUpdate", esRefs)
	registerDescriptor(ODCommands, ESRemoveODCommandTag, ESRemoveODCommandTag, "ESDescriptorRemove", esRefs)

	qualifier := func(name string, p func(string) Property) func(d *Descriptor) {
		return func(d *Descriptor) { d.add(p(name)) }
	}
	u32 := func(name string) Property { return NewInt32Property(name) }
	registerDescriptor(QosQualifiers, MaxDelayQosTag, MaxDelayQosTag, "MaxDelayQualifier", qualifier("maxDelay", u32))
	registerDescriptor(QosQualifiers, PrefMaxDelayQosTag, PrefMaxDelayQosTag, "PrefMaxDelayQualifier", qualifier("prefMaxDelay", u32))
	registerDescriptor(QosQualifiers, LossProbQosTag, LossProbQosTag, "LossProbabilityQualifier", qualifier("lossProb", func(name string) Property {
		return NewFloatProperty(name, Float32Format)
	}))
	registerDescriptor(QosQualifiers, MaxGapLossQosTag, MaxGapLossQosTag, "MaxGapLossQualifier", qualifier("maxGapLoss", u32))
	registerDescriptor(QosQualifiers, MaxAUSizeQosTag, MaxAUSizeQosTag, "MaxAUSizeQualifier", qualifier("maxAUSize", u32))
	registerDescriptor(QosQualifiers, AvgAUSizeQosTag, AvgAUSizeQosTag, "AvgAUSizeQualifier", qualifier("avgAUSize", u32))
	registerDescriptor(QosQualifiers, MaxAURateQosTag, MaxAURateQosTag, "MaxAURateQualifier", qualifier("maxAURate", u32))
}
