package mp4atom

// Object descriptor tags.
const (
	ODescrTag               uint8 = 0x01
	IODescrTag              uint8 = 0x02
	ESDescrTag              uint8 = 0x03
	DecConfigDescrTag       uint8 = 0x04
	DecSpecificDescrTag     uint8 = 0x05
	SLConfigDescrTag        uint8 = 0x06
	ContentIdDescrTag       uint8 = 0x07
	SupplContentIdDescrTag  uint8 = 0x08
	IPIPtrDescrTag          uint8 = 0x09
	IPMPPtrDescrTag         uint8 = 0x0A
	IPMPDescrTag            uint8 = 0x0B
	QosDescrTag             uint8 = 0x0C
	RegistrationDescrTag    uint8 = 0x0D
	ESIDIncDescrTag         uint8 = 0x0E
	ESIDRefDescrTag         uint8 = 0x0F
	FileIODescrTag          uint8 = 0x10
	FileODescrTag           uint8 = 0x11
	ExtProfileLevelDescrTag uint8 = 0x13
	OCIDescrTagsStart       uint8 = 0x40
	OCIDescrTagsEnd         uint8 = 0x5F
	ExtDescrTagsStart       uint8 = 0x80
	ExtDescrTagsEnd         uint8 = 0xFE
)

func init() {
	registerDescriptor(ObjectDescriptors, IODescrTag, IODescrTag, "InitialObjectDescriptor", buildIOD)
	registerDescriptor(ObjectDescriptors, FileIODescrTag, FileIODescrTag, "InitialObjectDescriptor", buildIOD)
	registerDescriptor(ObjectDescriptors, ODescrTag, ODescrTag, "ObjectDescriptor", buildOD)
	registerDescriptor(ObjectDescriptors, FileODescrTag, FileODescrTag, "ObjectDescriptor", buildOD)
	registerDescriptor(ObjectDescriptors, ESDescrTag, ESDescrTag, "ESDescriptor", buildES)
	registerDescriptor(ObjectDescriptors, DecConfigDescrTag, DecConfigDescrTag, "DecoderConfigDescriptor", buildDecConfig)
	registerDescriptor(ObjectDescriptors, DecSpecificDescrTag, DecSpecificDescrTag, "DecoderSpecificInfo", func(d *Descriptor) {
		rawBody(d, "info", 0)
	})
	registerDescriptor(ObjectDescriptors, SLConfigDescrTag, SLConfigDescrTag, "SLConfigDescriptor", buildSLConfig)
	registerDescriptor(ObjectDescriptors, ContentIdDescrTag, ContentIdDescrTag, "ContentIdentificationDescriptor", buildContentId)
	registerDescriptor(ObjectDescriptors, SupplContentIdDescrTag, SupplContentIdDescrTag, "SupplementaryContentIdentificationDescriptor", func(d *Descriptor) {
		d.add(NewFixedBytesProperty("languageCode", 3))
		d.add(NewCountedStringProperty("title"))
		d.add(NewCountedStringProperty("value"))
	})
	registerDescriptor(ObjectDescriptors, IPIPtrDescrTag, IPIPtrDescrTag, "IPIDescriptorPointer", func(d *Descriptor) {
		d.add(NewInt16Property("IPIESId"))
	})
	registerDescriptor(ObjectDescriptors, IPMPPtrDescrTag, IPMPPtrDescrTag, "IPMPDescriptorPointer", func(d *Descriptor) {
		d.add(NewInt8Property("IPMPDescriptorId"))
	})
	registerDescriptor(ObjectDescriptors, IPMPDescrTag, IPMPDescrTag, "IPMPDescriptor", func(d *Descriptor) {
		d.add(NewInt8Property("IPMPDescriptorId"))
		d.add(NewInt16Property("IPMPSType"))
		rawBody(d, "IPMPData", 3)
	})
	registerDescriptor(ObjectDescriptors, QosDescrTag, QosDescrTag, "QosDescriptor", buildQos)
	registerDescriptor(ObjectDescriptors, RegistrationDescrTag, RegistrationDescrTag, "RegistrationDescriptor", func(d *Descriptor) {
		d.add(NewInt32Property("formatIdentifier"))
		rawBody(d, "additionalIdentificationInfo", 4)
	})
	registerDescriptor(ObjectDescriptors, ESIDIncDescrTag, ESIDIncDescrTag, "ESIDIncDescriptor", func(d *Descriptor) {
		d.add(NewInt32Property("id"))
	})
	registerDescriptor(ObjectDescriptors, ESIDRefDescrTag, ESIDRefDescrTag, "ESIDRefDescriptor", func(d *Descriptor) {
		d.add(NewInt16Property("refIndex"))
	})
	registerDescriptor(ObjectDescriptors, ExtProfileLevelDescrTag, ExtProfileLevelDescrTag, "ExtensionProfileLevelDescriptor", func(d *Descriptor) {
		for _, name := range []string{
			"profileLevelIndicationIndex",
			"ODProfileLevelIndication",
			"sceneProfileLevelIndication",
			"audioProfileLevelIndication",
			"visualProfileLevelIndication",
			"graphicsProfileLevelIndication",
			"MPEGJProfileLevelIndication",
		} {
			d.add(NewInt8Property(name))
		}
	})
	registerDescriptor(ObjectDescriptors, ExtDescrTagsStart, ExtDescrTagsEnd, "ExtensionDescriptor", func(d *Descriptor) {
		rawBody(d, "data", 0)
	})
}

// addCommonDescriptors appends the OCI, IPMP pointer and extension
// descriptor lists shared by object descriptors.
func addCommonDescriptors(d *Descriptor) {
	d.add(NewDescriptorProperty("ociDescr", ObjectDescriptors, OCIDescrTagsStart, OCIDescrTagsEnd, false, false))
	d.add(NewDescriptorProperty("ipmpDescrPtr", ObjectDescriptors, IPMPPtrDescrTag, 0, false, false))
	d.add(NewDescriptorProperty("extDescr", ObjectDescriptors, ExtDescrTagsStart, ExtDescrTagsEnd, false, false))
}

var iodProfileLevels = []string{
	"ODProfileLevelId",
	"sceneProfileLevelId",
	"audioProfileLevelId",
	"visualProfileLevelId",
	"graphicsProfileLevelId",
}

func buildIOD(d *Descriptor) {
	d.add(NewBitfieldProperty("objectDescriptorId", 10))
	d.add(NewBitfieldProperty("URLFlag", 1))
	d.add(NewBitfieldProperty("includeInlineProfileLevelFlag", 1))
	d.add(NewBitfieldProperty("reserved", 4))
	d.add(NewCountedStringProperty("URL"))
	for _, name := range iodProfileLevels {
		d.add(NewInt8Property(name))
	}
	d.add(NewDescriptorProperty("esIds", ObjectDescriptors, ESIDIncDescrTag, 0, true, false))
	addCommonDescriptors(d)
	d.mutatePoint = 2
	d.mutate = func(d *Descriptor) {
		url := d.intProp("URLFlag").Value(0) != 0
		d.setImplicit(!url, "URL")
		d.setImplicit(url, iodProfileLevels...)
		d.setImplicit(url, "esIds", "ociDescr", "ipmpDescrPtr")
	}
	d.generate = func(d *Descriptor) {
		d.intProp("objectDescriptorId").set(1, 0)
		d.intProp("reserved").set(0xf, 0)
		for _, name := range iodProfileLevels {
			d.intProp(name).set(0xff, 0)
		}
	}
}

func buildOD(d *Descriptor) {
	d.add(NewBitfieldProperty("objectDescriptorId", 10))
	d.add(NewBitfieldProperty("URLFlag", 1))
	d.add(NewBitfieldProperty("reserved", 5))
	d.add(NewCountedStringProperty("URL"))
	d.add(NewDescriptorProperty("esIds", ObjectDescriptors, ESIDRefDescrTag, 0, true, false))
	addCommonDescriptors(d)
	d.mutatePoint = 2
	d.mutate = func(d *Descriptor) {
		url := d.intProp("URLFlag").Value(0) != 0
		d.setImplicit(!url, "URL")
		d.setImplicit(url, "esIds", "ociDescr", "ipmpDescrPtr")
	}
	d.generate = func(d *Descriptor) {
		d.intProp("reserved").set(0x1f, 0)
	}
}

func buildES(d *Descriptor) {
	d.add(NewInt16Property("ESID"))
	d.add(NewBitfieldProperty("streamDependenceFlag", 1))
	d.add(NewBitfieldProperty("URLFlag", 1))
	d.add(NewBitfieldProperty("OCRstreamFlag", 1))
	d.add(NewBitfieldProperty("streamPriority", 5))
	d.add(NewInt16Property("dependsOnESID"))
	d.add(NewCountedStringProperty("URL"))
	d.add(NewInt16Property("OCRESID"))
	d.add(NewDescriptorProperty("decConfigDescr", ObjectDescriptors, DecConfigDescrTag, 0, true, true))
	d.add(NewDescriptorProperty("slConfigDescr", ObjectDescriptors, SLConfigDescrTag, 0, true, true))
	d.add(NewDescriptorProperty("ipiPtr", ObjectDescriptors, IPIPtrDescrTag, 0, false, true))
	d.add(NewDescriptorProperty("ipIds", ObjectDescriptors, ContentIdDescrTag, SupplContentIdDescrTag, false, false))
	d.add(NewDescriptorProperty("ipmpDescrPtr", ObjectDescriptors, IPMPPtrDescrTag, 0, false, false))
	d.add(NewDescriptorProperty("langDescr", ObjectDescriptors, LanguageDescrTag, 0, false, false))
	d.add(NewDescriptorProperty("qosDescr", ObjectDescriptors, QosDescrTag, 0, false, true))
	d.add(NewDescriptorProperty("regDescr", ObjectDescriptors, RegistrationDescrTag, 0, false, true))
	d.add(NewDescriptorProperty("extDescr", ObjectDescriptors, ExtDescrTagsStart, ExtDescrTagsEnd, false, false))
	d.mutatePoint = 5
	d.mutate = func(d *Descriptor) {
		d.setImplicit(d.intProp("streamDependenceFlag").Value(0) == 0, "dependsOnESID")
		d.setImplicit(d.intProp("URLFlag").Value(0) == 0, "URL")
		d.setImplicit(d.intProp("OCRstreamFlag").Value(0) == 0, "OCRESID")
	}
}

func buildDecConfig(d *Descriptor) {
	d.add(NewInt8Property("objectTypeId"))
	d.add(NewBitfieldProperty("streamType", 6))
	d.add(NewBitfieldProperty("upStream", 1))
	d.add(NewBitfieldProperty("reserved", 1))
	d.add(NewBitfieldProperty("bufferSizeDB", 24))
	d.add(NewInt32Property("maxBitrate"))
	d.add(NewInt32Property("avgBitrate"))
	d.add(NewDescriptorProperty("decSpecificInfo", ObjectDescriptors, DecSpecificDescrTag, 0, false, true))
	d.add(NewDescriptorProperty("profileLevelIndicationIndexDescr", ObjectDescriptors, ExtProfileLevelDescrTag, 0, false, false))
	d.generate = func(d *Descriptor) {
		d.intProp("reserved").set(1, 0)
	}
}

// slConfigFlags are the SLConfig fields present only when no predefined
// configuration is used.
var slConfigFlags = []string{
	"useAccessUnitStartFlag",
	"useAccessUnitEndFlag",
	"useRandomAccessPointFlag",
	"hasRandomAccessUnitsOnlyFlag",
	"usePaddingFlag",
	"useTimeStampsFlag",
	"useIdleFlag",
	"durationFlag",
}

const slConfigCustomEnd = 19

func buildSLConfig(d *Descriptor) {
	d.add(NewInt8Property("predefined"))
	for _, name := range slConfigFlags {
		d.add(NewBitfieldProperty(name, 1))
	}
	d.add(NewInt32Property("timeStampResolution"))
	d.add(NewInt32Property("OCRResolution"))
	d.add(NewInt8Property("timeStampLength"))
	d.add(NewInt8Property("OCRLength"))
	d.add(NewInt8Property("AULength"))
	d.add(NewInt8Property("instantBitrateLength"))
	d.add(NewBitfieldProperty("degradationPriorityLength", 4))
	d.add(NewBitfieldProperty("AUSeqNumLength", 5))
	d.add(NewBitfieldProperty("packetSeqNumLength", 5))
	d.add(NewBitfieldProperty("reserved", 2))
	// present when durationFlag is set
	d.add(NewInt32Property("timeScale"))
	d.add(NewInt16Property("accessUnitDuration"))
	d.add(NewInt16Property("compositionUnitDuration"))
	// present when useTimeStampsFlag is clear
	d.add(NewBitfieldProperty("startDecodingTimeStamp", 64))
	d.add(NewBitfieldProperty("startCompositionTimeStamp", 64))

	d.mutate = mutateSLConfig
	d.readBody = func(d *Descriptor, s *Stream) error {
		if err := d.readProperties(s, 0, 1); err != nil {
			return err
		}
		if d.intProp("predefined").Value(0) == 0 {
			if err := d.readProperties(s, 1, slConfigCustomEnd); err != nil {
				return err
			}
		}
		mutateSLConfig(d)
		return d.readProperties(s, slConfigCustomEnd, len(d.props))
	}
	d.generate = func(d *Descriptor) {
		d.intProp("predefined").set(2, 0)
		d.intProp("useTimeStampsFlag").set(1, 0)
		d.intProp("reserved").set(3, 0)
	}
}

func mutateSLConfig(d *Descriptor) {
	switch predefined := d.intProp("predefined").Value(0); predefined {
	case 0:
		for _, p := range d.props[1:slConfigCustomEnd] {
			p.SetImplicit(false)
		}
	default:
		for _, p := range d.props[1:] {
			p.SetImplicit(true)
		}
		switch predefined {
		case 1:
			d.intProp("useTimeStampsFlag").set(0, 0)
			d.intProp("timeStampResolution").set(1000, 0)
			d.intProp("timeStampLength").set(32, 0)
		case 2:
			d.intProp("useTimeStampsFlag").set(1, 0)
		}
	}

	duration := d.intProp("durationFlag").Value(0) != 0
	d.setImplicit(!duration, "timeScale", "accessUnitDuration", "compositionUnitDuration")

	useTimeStamps := d.intProp("useTimeStampsFlag").Value(0) != 0
	length := min(64, int(d.intProp("timeStampLength").Value(0)))
	if length == 0 {
		useTimeStamps = true
	} else {
		d.intProp("startDecodingTimeStamp").SetNumBits(length)
		d.intProp("startCompositionTimeStamp").SetNumBits(length)
	}
	d.setImplicit(useTimeStamps, "startDecodingTimeStamp", "startCompositionTimeStamp")
}

func buildContentId(d *Descriptor) {
	d.add(NewBitfieldProperty("compatibility", 2))
	d.add(NewBitfieldProperty("contentTypeFlag", 1))
	d.add(NewBitfieldProperty("contentIdFlag", 1))
	d.add(NewBitfieldProperty("protectedContent", 1))
	d.add(NewBitfieldProperty("reserved", 3))
	d.add(NewInt8Property("contentType"))
	d.add(NewInt8Property("contentIdType"))
	d.add(NewBytesProperty("contentId", -1))

	d.mutate = func(d *Descriptor) {
		contentType := d.intProp("contentTypeFlag").Value(0) != 0
		contentId := d.intProp("contentIdFlag").Value(0) != 0
		d.setImplicit(!contentType, "contentType")
		d.setImplicit(!contentId, "contentIdType", "contentId")
	}
	d.readBody = func(d *Descriptor, s *Stream) error {
		if err := d.readProperties(s, 0, 1); err != nil {
			return err
		}
		if d.intProp("compatibility").Value(0) != 0 {
			s.warn("msg", "incompatible content identification descriptor, keeping raw bytes")
			for _, p := range d.props {
				p.SetImplicit(true)
			}
			s.FlushReadBits()
			return s.SetPosition(d.start)
		}
		if err := d.readProperties(s, 1, 5); err != nil {
			return err
		}
		d.mutate(d)
		if d.intProp("contentIdFlag").Value(0) != 0 {
			offset := int64(2)
			if d.intProp("contentTypeFlag").Value(0) != 0 {
				offset++
			}
			d.Property("contentId").(*BytesProperty).SetValueSize(int(max(0, d.size-offset)), 0)
		}
		return d.readProperties(s, 5, len(d.props))
	}
}

func buildQos(d *Descriptor) {
	d.add(NewInt8Property("predefined"))
	d.add(NewDescriptorProperty("qualifiers", QosQualifiers, 0x01, 0xff, false, false))
	d.mutate = func(d *Descriptor) {
		d.setImplicit(d.intProp("predefined").Value(0) != 0, "qualifiers")
	}
	d.mutatePoint = 1
}
