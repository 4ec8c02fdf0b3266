package mp4atom

func init() {
	registerAtom("stbl", containerSpec(
		required("stsd"), required("stts"), optional("ctts"), required("stsc"), required("stsz"),
		optional("stco"), optional("co64"), optional("stss"), optional("stsh"), optional("sdtp"),
	))

	registerAtom("stsd", &atomSpec{
		full:      true,
		container: true,
		build: func(a *Atom) {
			count := NewInt32Property("entryCount")
			count.SetReadOnly(true)
			a.AddProperty(count)
			a.expected = append(a.expected, many("mp4a"), many("mp4v"), many("avc1"))
		},
		afterRead:   func(a *Atom, s *Stream) error { return a.reconcileCount(s, "entryCount", len(a.children)) },
		beforeWrite: func(a *Atom, s *Stream) error { return a.reconcileCount(s, "entryCount", len(a.children)) },
	})

	registerAtom("mp4a", audioSampleEntrySpec)
	registerAtom("mp4v", visualSampleEntrySpec(required("esds"), optional("pasp"), optional("btrt")))
	registerAtom("avc1", visualSampleEntrySpec(required("avcC"), optional("btrt"), optional("pasp")))

	registerAtom("avcC", &atomSpec{
		build: func(a *Atom) {
			a.AddProperty(NewInt8Property("configurationVersion"))
			a.AddProperty(NewInt8Property("AVCProfileIndication"))
			a.AddProperty(NewInt8Property("profileCompatibility"))
			a.AddProperty(NewInt8Property("AVCLevelIndication"))
			a.AddProperty(NewBitfieldProperty("reserved", 6))
			a.AddProperty(NewBitfieldProperty("lengthSizeMinusOne", 2))
			a.AddProperty(NewBitfieldProperty("reserved2", 3))
			addParameterSets(a, NewBitfieldProperty("numOfSequenceParameterSets", 5), "sequenceEntries", "sequenceParameterSet")
			addParameterSets(a, NewInt8Property("numOfPictureParameterSets"), "pictureEntries", "pictureParameterSet")
		},
		generate: func(a *Atom) {
			a.intProp("configurationVersion").set(1, 0)
			a.intProp("reserved").set(0x3f, 0)
			a.intProp("lengthSizeMinusOne").set(3, 0)
			a.intProp("reserved2").set(0x7, 0)
		},
	})

	registerAtom("esds", &atomSpec{
		full: true,
		build: func(a *Atom) {
			a.AddProperty(NewDescriptorProperty("", ObjectDescriptors, ESDescrTag, 0, true, true))
		},
	})

	registerAtom("btrt", &atomSpec{
		build: func(a *Atom) {
			a.AddProperty(NewInt32Property("bufferSizeDB"))
			a.AddProperty(NewInt32Property("maxBitrate"))
			a.AddProperty(NewInt32Property("avgBitrate"))
		},
	})

	registerAtom("pasp", &atomSpec{
		build: func(a *Atom) {
			a.AddProperty(NewInt32Property("hSpacing"))
			a.AddProperty(NewInt32Property("vSpacing"))
		},
		generate: func(a *Atom) {
			a.intProp("hSpacing").set(1, 0)
			a.intProp("vSpacing").set(1, 0)
		},
	})

	registerAtom("wave", containerSpec(optional("frma"), optional("mp4a"), optional("esds")))
	// Inside 'wave', 'mp4a' is a stub rather than a sample entry.
	registerChildAtom("wave", "mp4a", &atomSpec{build: rawData, prepareRead: sizeRawData})
	registerChildAtom("wave", "frma", &atomSpec{
		build: func(a *Atom) { a.AddProperty(NewFixedStringProperty("dataFormat", 4)) },
	})

	registerAtom("stts", &atomSpec{
		full: true,
		build: func(a *Atom) {
			addCountedTable(a, "entryCount", "entries", NewInt32Property("sampleCount"), NewInt32Property("sampleDelta"))
		},
	})

	// Version 1 composition offsets are signed.
	registerAtom("ctts", &atomSpec{
		full: true,
		bind: func(a *Atom, v uint64) {
			offset := NewInt32Property("sampleOffset")
			offset.SetSigned(v == 1)
			addCountedTable(a, "entryCount", "entries", NewInt32Property("sampleCount"), offset)
		},
	})

	registerAtom("stsc", &atomSpec{
		full: true,
		build: func(a *Atom) {
			firstSample := NewInt32Property("firstSample")
			firstSample.SetImplicit(true)
			t := addCountedTable(a, "entryCount", "entries",
				NewInt32Property("firstChunk"),
				NewInt32Property("samplesPerChunk"),
				NewInt32Property("sampleDescriptionIndex"),
				firstSample,
			)
			t.derive = deriveFirstSample
		},
	})

	// A non-zero sampleSize means every sample has that size and the
	// per-sample table is absent.
	registerAtom("stsz", &atomSpec{
		full: true,
		build: func(a *Atom) {
			a.AddProperty(NewInt32Property("sampleSize"))
			addCountedTable(a, "sampleCount", "entries", NewInt32Property("entrySize"))
		},
		discriminator: "sampleSize",
		bind: func(a *Atom, v uint64) {
			a.tableProp("entries").SetImplicit(v != 0)
		},
		beforeWrite: func(a *Atom, s *Stream) error {
			a.tableProp("entries").SetImplicit(a.intProp("sampleSize").Value(0) != 0)
			return nil
		},
	})

	registerAtom("stco", &atomSpec{
		full: true,
		build: func(a *Atom) {
			addCountedTable(a, "entryCount", "entries", NewInt32Property("chunkOffset"))
		},
	})

	registerAtom("co64", &atomSpec{
		full: true,
		build: func(a *Atom) {
			addCountedTable(a, "entryCount", "entries", NewInt64Property("chunkOffset"))
		},
	})

	registerAtom("stss", &atomSpec{
		full: true,
		build: func(a *Atom) {
			addCountedTable(a, "entryCount", "entries", NewInt32Property("sampleNumber"))
		},
	})

	registerAtom("stsh", &atomSpec{
		full: true,
		build: func(a *Atom) {
			addCountedTable(a, "entryCount", "entries",
				NewInt32Property("shadowedSampleNumber"),
				NewInt32Property("syncSampleNumber"),
			)
		},
	})

	registerAtom("sdtp", &atomSpec{full: true, build: rawData, prepareRead: sizeRawData})
}

// addSampleEntryHeader declares the fields every sample entry starts
// with.
func addSampleEntryHeader(a *Atom) {
	a.AddProperty(NewReservedProperty("reserved1", 6))
	a.AddProperty(NewInt16Property("dataReferenceIndex"))
}

func visualSampleEntrySpec(children ...childInfo) *atomSpec {
	return &atomSpec{
		container: true,
		build: func(a *Atom) {
			addSampleEntryHeader(a)
			a.AddProperty(NewReservedProperty("reserved2", 16))
			a.AddProperty(NewInt16Property("width"))
			a.AddProperty(NewInt16Property("height"))
			a.AddProperty(NewFloatProperty("hResolution", Fixed32Format))
			a.AddProperty(NewFloatProperty("vResolution", Fixed32Format))
			a.AddProperty(NewReservedProperty("reserved3", 4))
			a.AddProperty(NewInt16Property("frameCount"))
			name := NewFixedStringProperty("compressorName", 32)
			name.SetCounted(true)
			a.AddProperty(name)
			a.AddProperty(NewInt16Property("depth"))
			a.AddProperty(NewInt16Property("colorTable"))
			a.expected = append(a.expected, children...)
		},
		generate: func(a *Atom) {
			a.intProp("dataReferenceIndex").set(1, 0)
			a.Property("hResolution").(*FloatProperty).set(72, 0)
			a.Property("vResolution").(*FloatProperty).set(72, 0)
			a.intProp("frameCount").set(1, 0)
			a.intProp("depth").set(0x18, 0)
			a.intProp("colorTable").set(0xffff, 0)
		},
	}
}

// audioSampleEntrySpec declares mp4a. QuickTime sound descriptions of
// version 1 and 2 append further fields after the version 0 layout.
var audioSampleEntrySpec = &atomSpec{
	container: true,
	build: func(a *Atom) {
		addSampleEntryHeader(a)
		a.AddProperty(NewInt16Property("soundVersion"))
		a.AddProperty(NewReservedProperty("reserved2", 6))
		a.AddProperty(NewInt16Property("channels"))
		a.AddProperty(NewInt16Property("sampleSize"))
		a.AddProperty(NewInt16Property("compressionId"))
		a.AddProperty(NewReservedProperty("packetSize", 2))
		a.AddProperty(NewInt16Property("timeScale"))
		a.AddProperty(NewReservedProperty("reserved3", 2))
		a.expected = append(a.expected, optional("esds"), optional("wave"))
	},
	discriminator: "soundVersion",
	bind: func(a *Atom, v uint64) {
		switch v {
		case 1:
			a.AddProperty(NewInt32Property("samplesPerPacket"))
			a.AddProperty(NewInt32Property("bytesPerPacket"))
			a.AddProperty(NewInt32Property("bytesPerFrame"))
			a.AddProperty(NewInt32Property("bytesPerSample"))
		case 2:
			a.AddProperty(NewInt32Property("sizeOfStructOnly"))
			a.AddProperty(NewInt64Property("audioSampleRate"))
			a.AddProperty(NewInt32Property("numAudioChannels"))
			a.AddProperty(NewInt32Property("always7F000000"))
			a.AddProperty(NewInt32Property("constBitsPerChannel"))
			a.AddProperty(NewInt32Property("formatSpecificFlags"))
			a.AddProperty(NewInt32Property("constBytesPerAudioPacket"))
			a.AddProperty(NewInt32Property("constLPCMFramesPerAudioPacket"))
		}
	},
	generate: func(a *Atom) {
		a.intProp("dataReferenceIndex").set(1, 0)
		a.intProp("channels").set(2, 0)
		a.intProp("sampleSize").set(16, 0)
	},
}

// addParameterSets declares an avcC parameter set list: a count followed
// by length-prefixed NAL units.
func addParameterSets(a *Atom, count *IntProperty, name, unit string) {
	a.AddProperty(count)
	length := NewInt16Property(unit + "Length")
	nal := NewBytesProperty(unit+"NALUnit", -1)
	nal.SetSizeProperty(length)
	t := NewTableProperty(name, count)
	t.AddColumn(length)
	t.AddColumn(nal)
	a.AddProperty(t)
}

// deriveFirstSample numbers the first sample of each sample-to-chunk run.
func deriveFirstSample(t *TableProperty) {
	firstChunk := t.Column("firstChunk").(*IntProperty)
	perChunk := t.Column("samplesPerChunk").(*IntProperty)
	first := t.Column("firstSample").(*IntProperty)
	n := firstChunk.Count()
	first.SetCount(n)
	sample := uint64(1)
	for i := 0; i < n; i++ {
		if i > 0 && firstChunk.Value(i) > firstChunk.Value(i-1) {
			sample += (firstChunk.Value(i) - firstChunk.Value(i-1)) * perChunk.Value(i-1)
		}
		first.set(sample, i)
	}
}
