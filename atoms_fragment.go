package mp4atom

// Trun flags.
const (
	TrunDataOffsetPresent                  = 0x000001
	TrunFirstSampleFlagsPresent            = 0x000004
	TrunSampleDurationPresent              = 0x000100
	TrunSampleSizePresent                  = 0x000200
	TrunSampleFlagsPresent                 = 0x000400
	TrunSampleCompositionTimeOffsetPresent = 0x000800
)

// Tfhd flags (Track Fragment Header Box).
const (
	TfhdBaseDataOffsetPresent         = 0x000001
	TfhdSampleDescriptionIndexPresent = 0x000002
	TfhdDefaultSampleDurationPresent  = 0x000008
	TfhdDefaultSampleSizePresent      = 0x000010
	TfhdDefaultSampleFlagsPresent     = 0x000020
	TfhdDurationIsEmpty               = 0x010000
	TfhdDefaultBaseIsMoof             = 0x020000
)

// flagField ties an optional field to the flag bit announcing it.
type flagField struct {
	name string
	flag uint32
}

var tfhdFields = []flagField{
	{"baseDataOffset", TfhdBaseDataOffsetPresent},
	{"sampleDescriptionIndex", TfhdSampleDescriptionIndexPresent},
	{"defaultSampleDuration", TfhdDefaultSampleDurationPresent},
	{"defaultSampleSize", TfhdDefaultSampleSizePresent},
	{"defaultSampleFlags", TfhdDefaultSampleFlagsPresent},
}

var trunFields = []flagField{
	{"dataOffset", TrunDataOffsetPresent},
	{"firstSampleFlags", TrunFirstSampleFlagsPresent},
}

var trunColumns = []flagField{
	{"sampleDuration", TrunSampleDurationPresent},
	{"sampleSize", TrunSampleSizePresent},
	{"sampleFlags", TrunSampleFlagsPresent},
	{"sampleCompositionTimeOffset", TrunSampleCompositionTimeOffsetPresent},
}

// applyFlags hides every field in fields whose flag is clear.
func applyFlags(props func(string) Property, fields []flagField, flags uint32) {
	for _, f := range fields {
		props(f.name).SetImplicit(flags&f.flag == 0)
	}
}

func applyTfhdFlags(a *Atom, flags uint32) {
	applyFlags(a.Property, tfhdFields, flags)
}

func applyTrunFlags(a *Atom, flags uint32) {
	applyFlags(a.Property, trunFields, flags)
	applyFlags(a.tableProp("samples").Column, trunColumns, flags)
}

func init() {
	registerAtom("mvex", containerSpec(optional("mehd"), many("trex")))

	registerAtom("mehd", &atomSpec{
		full: true,
		bind: func(a *Atom, v uint64) {
			a.AddProperty(NewInt6432Property("fragmentDuration", v == 1))
		},
	})

	registerAtom("trex", &atomSpec{
		full: true,
		build: func(a *Atom) {
			a.AddProperty(NewInt32Property("trackId"))
			a.AddProperty(NewInt32Property("defaultSampleDescriptionIndex"))
			a.AddProperty(NewInt32Property("defaultSampleDuration"))
			a.AddProperty(NewInt32Property("defaultSampleSize"))
			a.AddProperty(NewInt32Property("defaultSampleFlags"))
		},
		generate: func(a *Atom) { a.intProp("defaultSampleDescriptionIndex").set(1, 0) },
	})

	registerAtom("moof", containerSpec(required("mfhd"), many("traf")))

	registerAtom("mfhd", &atomSpec{
		full: true,
		build: func(a *Atom) {
			a.AddProperty(NewInt32Property("sequenceNumber"))
		},
	})

	registerAtom("traf", containerSpec(required("tfhd"), optional("tfdt"), many("trun")))

	registerAtom("tfhd", &atomSpec{
		full: true,
		build: func(a *Atom) {
			a.AddProperty(NewInt32Property("trackId"))
			a.AddProperty(NewInt64Property("baseDataOffset"))
			a.AddProperty(NewInt32Property("sampleDescriptionIndex"))
			a.AddProperty(NewInt32Property("defaultSampleDuration"))
			a.AddProperty(NewInt32Property("defaultSampleSize"))
			a.AddProperty(NewInt32Property("defaultSampleFlags"))
		},
		discriminator: "flags",
		bind:          func(a *Atom, flags uint64) { applyTfhdFlags(a, uint32(flags)) },
		beforeWrite: func(a *Atom, s *Stream) error {
			applyTfhdFlags(a, a.Flags())
			return nil
		},
	})

	registerAtom("tfdt", &atomSpec{
		full: true,
		bind: func(a *Atom, v uint64) {
			a.AddProperty(NewInt6432Property("baseMediaDecodeTime", v == 1))
		},
	})

	registerAtom("trun", &atomSpec{
		full: true,
		build: func(a *Atom) {
			count := NewInt32Property("sampleCount")
			a.AddProperty(count)
			dataOffset := NewInt32Property("dataOffset")
			dataOffset.SetSigned(true)
			a.AddProperty(dataOffset)
			a.AddProperty(NewInt32Property("firstSampleFlags"))
			t := NewTableProperty("samples", count)
			for _, c := range trunColumns {
				t.AddColumn(NewInt32Property(c.name))
			}
			a.AddProperty(t)
		},
		discriminator: "flags",
		bind:          func(a *Atom, flags uint64) { applyTrunFlags(a, uint32(flags)) },
		beforeWrite: func(a *Atom, s *Stream) error {
			applyTrunFlags(a, a.Flags())
			return nil
		},
	})
}
