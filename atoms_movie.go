package mp4atom

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// macEpochOffset is the number of seconds between 1904-01-01 and the Unix
// epoch.
const macEpochOffset = 2082844800

// MacTime converts t to seconds since 1904-01-01 UTC, the timestamp base
// of mvhd, tkhd and mdhd.
func MacTime(t time.Time) uint64 {
	return uint64(t.Unix() + macEpochOffset)
}

// identityMatrix is the 3x3 transformation matrix of 16.16 and 2.30 fixed
// point values that leaves video untouched.
func identityMatrix() []byte {
	m := make([]byte, 36)
	be.PutUint32(m[0:], 0x00010000)
	be.PutUint32(m[16:], 0x00010000)
	be.PutUint32(m[32:], 0x40000000)
	return m
}

// IPodUUID is the extended type of the 'uuid' atom iTunes writes into
// tracks destined for iPods.
var IPodUUID = uuid.MustParse("6b6840f2-5f24-4fc5-ba39-a51bcf0323f3")

// addTimes declares the creation and modification timestamps shared by
// mvhd, tkhd and mdhd.
func addTimes(a *Atom, use64 bool) {
	a.AddProperty(NewInt6432Property("creationTime", use64))
	a.AddProperty(NewInt6432Property("modificationTime", use64))
}

func generateTimes(a *Atom) {
	now := MacTime(time.Now())
	a.intProp("creationTime").set(now, 0)
	a.intProp("modificationTime").set(now, 0)
}

// addCountedTable appends a 32-bit count property called countName and a
// table of cols counted by it.
func addCountedTable(a *Atom, countName, name string, cols ...Property) *TableProperty {
	count := NewInt32Property(countName)
	a.AddProperty(count)
	t := NewTableProperty(name, count)
	for _, c := range cols {
		t.AddColumn(c)
	}
	a.AddProperty(t)
	return t
}

// rawData declares a "data" byte run that takes the rest of the body.
func rawData(a *Atom) { a.AddProperty(NewBytesProperty("data", -1)) }

// sizeRawData sizes "data" to the body left after the header and, for
// full atoms, the version and flags.
func sizeRawData(a *Atom, s *Stream) error {
	n := a.end - s.Position()
	if a.spec.full {
		n -= 4
	}
	a.bytesProp("data").SetValueSize(int(max(n, 0)), 0)
	return nil
}

func containerSpec(children ...childInfo) *atomSpec {
	return &atomSpec{
		container: true,
		build: func(a *Atom) {
			a.expected = append(a.expected, children...)
		},
	}
}

func required(t string) childInfo { return childInfo{typ: mustType(t), mandatory: true, onlyOne: true} }
func optional(t string) childInfo { return childInfo{typ: mustType(t), onlyOne: true} }
func many(t string) childInfo     { return childInfo{typ: mustType(t)} }

func init() {
	registerAtom("ftyp", &atomSpec{
		build: func(a *Atom) {
			a.AddProperty(NewFixedStringProperty("majorBrand", 4))
			a.AddProperty(NewInt32Property("minorVersion"))
			t := addCountedTable(a, "compatibleBrandsCount", "compatibleBrands", NewFixedStringProperty("brand", 4))
			t.CountProperty().SetImplicit(true)
		},
		prepareRead: func(a *Atom, s *Stream) error {
			n := (a.end - s.Position() - 8) / 4
			a.intProp("compatibleBrandsCount").set(uint64(max(n, 0)), 0)
			return nil
		},
		generate: func(a *Atom) {
			a.Property("majorBrand").(*StringProperty).set("mp42", 0)
			brands := a.tableProp("compatibleBrands")
			col := brands.Column("brand").(*StringProperty)
			for _, b := range []string{"mp42", "isom"} {
				col.set(b, brands.AddRow())
			}
		},
	})

	registerAtom("moov", containerSpec(required("mvhd"), optional("iods"), many("trak"), optional("udta"), optional("mvex")))

	registerAtom("mvhd", &atomSpec{
		full: true,
		bind: func(a *Atom, v uint64) {
			addTimes(a, v == 1)
			a.AddProperty(NewInt32Property("timeScale"))
			a.AddProperty(NewInt6432Property("duration", v == 1))
			a.AddProperty(NewFloatProperty("rate", Fixed32Format))
			a.AddProperty(NewFloatProperty("volume", Fixed16Format))
			a.AddProperty(NewReservedProperty("reserved", 70))
			a.AddProperty(NewInt32Property("nextTrackId"))
		},
		generate: func(a *Atom) {
			generateTimes(a)
			a.intProp("timeScale").set(1000, 0)
			a.Property("rate").(*FloatProperty).set(1, 0)
			a.Property("volume").(*FloatProperty).set(1, 0)
			reserved := make([]byte, 70)
			copy(reserved[10:], identityMatrix())
			a.bytesProp("reserved").set(reserved, 0)
			a.intProp("nextTrackId").set(1, 0)
		},
	})

	registerAtom("iods", &atomSpec{
		full: true,
		build: func(a *Atom) {
			a.AddProperty(NewDescriptorProperty("", ObjectDescriptors, FileIODescrTag, 0, true, true))
		},
	})

	registerAtom("trak", containerSpec(required("tkhd"), optional("tref"), optional("edts"), required("mdia"), optional("udta")))

	registerAtom("tkhd", &atomSpec{
		full: true,
		bind: func(a *Atom, v uint64) {
			addTimes(a, v == 1)
			a.AddProperty(NewInt32Property("trackId"))
			a.AddProperty(NewReservedProperty("reserved1", 4))
			a.AddProperty(NewInt6432Property("duration", v == 1))
			a.AddProperty(NewReservedProperty("reserved2", 8))
			a.AddProperty(NewInt16Property("layer"))
			a.AddProperty(NewInt16Property("alternateGroup"))
			a.AddProperty(NewFloatProperty("volume", Fixed16Format))
			a.AddProperty(NewReservedProperty("reserved3", 2))
			a.AddProperty(NewFixedBytesProperty("matrix", 36))
			a.AddProperty(NewFloatProperty("width", Fixed32Format))
			a.AddProperty(NewFloatProperty("height", Fixed32Format))
		},
		generate: func(a *Atom) {
			a.SetFlags(1)
			generateTimes(a)
			a.bytesProp("matrix").set(identityMatrix(), 0)
		},
	})

	registerAtom("tref", containerSpec(many("chap"), many("dpnd"), many("hint"), many("ipir"), many("mpod"), many("sync")))
	for _, t := range []string{"chap", "dpnd", "hint", "ipir", "mpod", "sync"} {
		registerChildAtom("tref", t, trackRefSpec)
	}

	registerAtom("edts", containerSpec(optional("elst")))

	registerAtom("elst", &atomSpec{
		full: true,
		bind: func(a *Atom, v uint64) {
			mediaTime := NewInt6432Property("mediaTime", v == 1)
			mediaTime.SetSigned(true)
			addCountedTable(a, "entryCount", "entries",
				NewInt6432Property("segmentDuration", v == 1),
				mediaTime,
				NewInt16Property("mediaRate"),
				NewInt16Property("mediaRateFraction"),
			)
		},
	})

	registerAtom("mdia", containerSpec(required("mdhd"), required("hdlr"), required("minf")))

	registerAtom("mdhd", &atomSpec{
		full: true,
		bind: func(a *Atom, v uint64) {
			addTimes(a, v == 1)
			a.AddProperty(NewInt32Property("timeScale"))
			a.AddProperty(NewInt6432Property("duration", v == 1))
			a.AddProperty(NewLanguageCodeProperty("language"))
			a.AddProperty(NewReservedProperty("reserved", 2))
		},
		generate: func(a *Atom) {
			generateTimes(a)
			a.intProp("timeScale").set(1000, 0)
		},
	})

	registerAtom("hdlr", &atomSpec{
		full: true,
		build: func(a *Atom) {
			a.AddProperty(NewReservedProperty("reserved1", 4))
			a.AddProperty(NewFixedStringProperty("handlerType", 4))
			a.AddProperty(NewReservedProperty("reserved2", 12))
			a.AddProperty(NewStringProperty("name"))
		},
		readBody: readHdlr,
	})

	registerAtom("minf", containerSpec(optional("vmhd"), optional("smhd"), optional("hmhd"), optional("nmhd"), required("dinf"), required("stbl")))

	registerAtom("vmhd", &atomSpec{
		full: true,
		build: func(a *Atom) {
			a.AddProperty(NewInt16Property("graphicsMode"))
			a.AddProperty(NewFixedBytesProperty("opColor", 6))
		},
		generate: func(a *Atom) { a.SetFlags(1) },
	})

	registerAtom("smhd", &atomSpec{
		full: true,
		build: func(a *Atom) {
			a.AddProperty(NewInt16Property("balance"))
			a.AddProperty(NewReservedProperty("reserved", 2))
		},
	})

	registerAtom("hmhd", &atomSpec{
		full: true,
		build: func(a *Atom) {
			a.AddProperty(NewInt16Property("maxPduSize"))
			a.AddProperty(NewInt16Property("avgPduSize"))
			a.AddProperty(NewInt32Property("maxBitRate"))
			a.AddProperty(NewInt32Property("avgBitRate"))
			a.AddProperty(NewInt32Property("slidingAvgBitRate"))
		},
	})

	registerAtom("nmhd", &atomSpec{full: true})

	registerAtom("dinf", containerSpec(required("dref")))

	registerAtom("dref", &atomSpec{
		full: true,
		build: func(a *Atom) {
			count := NewInt32Property("entryCount")
			count.SetReadOnly(true)
			a.AddProperty(count)
			a.expected = append(a.expected, many("url "), many("urn "))
		},
		generate: func(a *Atom) {
			a.intProp("entryCount").set(1, 0)
			url := NewAtom(TypeURL)
			a.AddChild(url)
			url.Generate()
		},
		afterRead:   func(a *Atom, s *Stream) error { return a.reconcileCount(s, "entryCount", len(a.children)) },
		beforeWrite: func(a *Atom, s *Stream) error { return a.reconcileCount(s, "entryCount", len(a.children)) },
	})

	// A set self-contained flag means the media is in this file and no
	// location follows.
	registerAtom("url ", &atomSpec{
		full: true,
		build: func(a *Atom) {
			a.AddProperty(NewStringProperty("location"))
		},
		discriminator: "flags",
		bind: func(a *Atom, flags uint64) {
			a.Property("location").SetImplicit(flags&1 != 0)
		},
		generate: func(a *Atom) {
			a.SetFlags(1)
			a.Property("location").SetImplicit(true)
		},
		beforeWrite: func(a *Atom, s *Stream) error {
			a.Property("location").SetImplicit(a.Flags()&1 != 0)
			return nil
		},
	})

	registerAtom("urn ", &atomSpec{
		full: true,
		build: func(a *Atom) {
			a.AddProperty(NewStringProperty("name"))
			a.AddProperty(NewStringProperty("location"))
		},
	})

	registerAtom("udta", &atomSpec{container: true})

	for _, t := range []string{"free", "skip"} {
		registerAtom(t, &atomSpec{build: rawData, prepareRead: sizeRawData})
	}

	registerAtom("mdat", &atomSpec{payload: true})

	registerUUIDAtom(IPodUUID, &atomSpec{
		build:    func(a *Atom) { a.AddProperty(NewInt32Property("value")) },
		generate: func(a *Atom) { a.intProp("value").set(1, 0) },
	})
}

// trackRefSpec declares the track reference types inside 'tref': a list
// of track ids filling the body.
var trackRefSpec = &atomSpec{
	build: func(a *Atom) {
		t := addCountedTable(a, "entryCount", "entries", NewInt32Property("trackId"))
		t.CountProperty().SetImplicit(true)
	},
	prepareRead: func(a *Atom, s *Stream) error {
		a.intProp("entryCount").set(uint64((a.end-s.Position())/4), 0)
		return nil
	},
}

// readHdlr reads a handler name that may be a C string, a Pascal string
// (QuickTime) or a run of bytes with no terminator at all.
func readHdlr(a *Atom, s *Stream) error {
	name := a.Property("name").(*StringProperty)
	name.SetImplicit(true)
	if err := a.readProperties(s); err != nil {
		return err
	}
	remaining := a.end - s.Position()
	if remaining <= 0 {
		return nil
	}
	name.SetImplicit(false)

	pos := s.Position()
	rest, err := s.ReadBytes(int(remaining))
	if err != nil {
		return err
	}
	if err := s.SetPosition(pos); err != nil {
		return err
	}
	switch {
	case int64(rest[0])+1 == remaining:
		name.SetCounted(true)
	case bytes.IndexByte(rest, 0) < 0:
		s.debug("msg", "handler name is not terminated", "atom", a.Path())
		name.SetFixedLength(int(remaining))
	}
	return readProperty(s, name, 0)
}
