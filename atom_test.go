package mp4atom

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratedMovieRoundTrip(t *testing.T) {
	root := newTestMovie(t)
	first := writeBytes(t, root)

	loaded, err := Load(memStreamOf(t, first))
	require.NoError(t, err)
	second := writeBytes(t, loaded)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("rewritten movie differs (-first +second):\n%s", diff)
	}

	var types []string
	for _, c := range loaded.Children() {
		types = append(types, c.Type().String())
	}
	assert.Equal(t, []string{"ftyp", "moov", "mdat"}, types)
	assert.NotNil(t, loaded.FindAtom("moov.trak.mdia.minf.stbl.stsz"))
	assert.NotNil(t, loaded.FindAtom("moov.trak.mdia.minf.dinf.dref.url"))
}

func TestSizeFields(t *testing.T) {
	free := NewAtom(TypeFree)
	free.bytesProp("data").SetValue([]byte{1, 2, 3, 4}, 0)

	b := writeBytes(t, free)
	assert.Equal(t, box("free", []byte{1, 2, 3, 4}), b)
	assert.EqualValues(t, 12, free.Size())

	cfg := DefaultConfig()
	cfg.LargeSize = []string{"free"}
	large := writeBytes(t, free, WithConfig(cfg))
	want := append(u32(1), "free"...)
	want = append(want, u64(20)...)
	want = append(want, 1, 2, 3, 4)
	assert.Equal(t, want, large)
	assert.EqualValues(t, 20, free.Size())

	got := readAtom(t, large)
	assert.EqualValues(t, 20, got.Size())
	assert.Equal(t, []byte{1, 2, 3, 4}, got.bytesProp("data").Value(0))
	assert.Equal(t, large, writeBytes(t, got))
}

func TestSizeZeroRunsToEnd(t *testing.T) {
	b := append(u32(0), "free"...)
	b = append(b, 7, 7, 7)
	free := readAtom(t, b)
	assert.EqualValues(t, 11, free.Size())
	assert.Equal(t, []byte{7, 7, 7}, free.bytesProp("data").Value(0))
}

func TestInvalidSizeIsStructureError(t *testing.T) {
	_, err := ReadAtom(memStreamOf(t, append(u32(4), "free"...)), nil)
	require.Error(t, err)
	assert.True(t, StructureError.Has(err))
}

func TestMdhdVersionPromotion(t *testing.T) {
	mdhd := NewAtom(TypeMdhd)
	mdhd.Generate()

	b := writeBytes(t, mdhd)
	require.Len(t, b, 32)
	assert.EqualValues(t, 0, mdhd.Version())

	got := readAtom(t, b)
	assert.EqualValues(t, 0, got.Version())
	assert.EqualValues(t, 1000, got.intProp("timeScale").Value(0))
	assert.Equal(t, "und", got.Property("language").(*LanguageCodeProperty).Value(0))
	assert.Equal(t, b, writeBytes(t, got))

	got.intProp("duration").SetValue(1<<33, 0)
	promoted := writeBytes(t, got)
	require.Len(t, promoted, 44)
	assert.EqualValues(t, 1, got.Version())

	again := readAtom(t, promoted)
	assert.EqualValues(t, 1, again.Version())
	assert.EqualValues(t, uint64(1<<33), again.intProp("duration").Value(0))
	assert.Equal(t, got.intProp("creationTime").Value(0), again.intProp("creationTime").Value(0))

	// Atoms are never demoted.
	again.intProp("duration").SetValue(5, 0)
	assert.Len(t, writeBytes(t, again), 44)
}

func TestTime64ForcesVersion1(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Time64 = true
	for _, typ := range []BoxType{TypeMvhd, TypeTkhd, TypeMdhd} {
		a := NewAtom(typ)
		a.Generate()
		small := len(writeBytes(t, a))

		a = NewAtom(typ)
		a.Generate()
		large := len(writeBytes(t, a, WithConfig(cfg)))
		assert.Equal(t, small+12, large, "%s", typ)
		assert.EqualValues(t, 1, a.Version())
	}
}

func TestElstSignedPromotion(t *testing.T) {
	elst := NewAtom(TypeElst)
	elst.Generate()
	entries := elst.tableProp("entries")
	i := entries.AddRow()
	entries.Column("segmentDuration").(*IntProperty).SetValue(1<<32, i)
	entries.Column("mediaTime").(*IntProperty).SetValue(0xffffffff, i)
	entries.Column("mediaRate").(*IntProperty).SetValue(1, i)

	b := writeBytes(t, elst)
	assert.Len(t, b, 16+20)
	got := readAtom(t, b)
	assert.EqualValues(t, 1, got.Version())
	assert.Equal(t, []ElstEntry{{SegmentDuration: 1 << 32, MediaTime: -1, MediaRateInt: 1}}, ElstEntries(got))
}

func TestUnknownChildPreserved(t *testing.T) {
	mvhd := NewAtom(TypeMvhd)
	mvhd.Generate()
	odd := box("zzzz", []byte("opaque bytes"))
	b := box("moov", writeBytes(t, mvhd), odd)

	moov := readAtom(t, b)
	require.Len(t, moov.Children(), 2)
	unknown := moov.Children()[1]
	assert.True(t, unknown.Unknown())
	assert.Equal(t, []byte("opaque bytes"), unknown.bytesProp("data").Value(0))
	assert.Equal(t, b, writeBytes(t, moov))
}

func TestAtomTrailerPreserved(t *testing.T) {
	b := fullBox("smhd", 0, 0, u16(0x0100), u16(0), []byte{9, 9, 9})
	smhd := readAtom(t, b)
	assert.Equal(t, []byte{9, 9, 9}, smhd.trailer)
	assert.EqualValues(t, 0x0100, smhd.intProp("balance").Value(0))
	assert.Equal(t, b, writeBytes(t, smhd))
}

func TestAtomOverrunIsStructureError(t *testing.T) {
	_, err := ReadAtom(memStreamOf(t, fullBox("mfhd", 0, 0, u16(1))), nil)
	require.Error(t, err)
	assert.True(t, StructureError.Has(err))
}

func TestEntryCountPolicy(t *testing.T) {
	b := fullBox("stsd", 0, 0, u32(2))

	stsd := readAtom(t, b)
	assert.EqualValues(t, 0, stsd.intProp("entryCount").Value(0))
	assert.Equal(t, fullBox("stsd", 0, 0, u32(0)), writeBytes(t, stsd))

	strict := DefaultConfig()
	strict.CountPolicy = CountStrict
	_, err := ReadAtom(memStreamOf(t, b, WithConfig(strict)), nil)
	require.Error(t, err)
	assert.True(t, ValidationError.Has(err))
}

func TestHdlrNameForms(t *testing.T) {
	head := [][]byte{u32(0), []byte("soun"), make([]byte, 12)}
	for name, tail := range map[string][]byte{
		"terminated":   []byte("Sound\x00"),
		"counted":      []byte("\x05Sound"),
		"unterminated": []byte("Sound"),
	} {
		b := fullBox("hdlr", 0, 0, append(head, tail)...)
		hdlr := readAtom(t, b)
		assert.Equal(t, "Sound", hdlr.Property("name").(*StringProperty).Value(0), name)
		assert.Equal(t, "soun", hdlr.Property("handlerType").(*StringProperty).Value(0), name)
		assert.Equal(t, b, writeBytes(t, hdlr), name)
	}

	b := fullBox("hdlr", 0, 0, head...)
	hdlr := readAtom(t, b)
	assert.True(t, hdlr.Property("name").Implicit())
	assert.Equal(t, b, writeBytes(t, hdlr))
}

func TestURLSelfContained(t *testing.T) {
	url := readAtom(t, fullBox("url ", 0, 1))
	assert.True(t, url.Property("location").Implicit())

	remote := fullBox("url ", 0, 0, []byte("http://x\x00"))
	url = readAtom(t, remote)
	assert.Equal(t, "http://x", url.Property("location").(*StringProperty).Value(0))
	assert.Equal(t, remote, writeBytes(t, url))

	url.SetFlags(1)
	assert.Equal(t, fullBox("url ", 0, 1), writeBytes(t, url))
}

func TestStszConstantSize(t *testing.T) {
	b := fullBox("stsz", 0, 0, u32(512), u32(3))
	stsz := readAtom(t, b)
	assert.True(t, stsz.tableProp("entries").Implicit())
	assert.Equal(t, []uint32{512, 512, 512}, SampleSizes(stsz))
	assert.Equal(t, b, writeBytes(t, stsz))

	b = fullBox("stsz", 0, 0, u32(0), u32(2), u32(10), u32(20))
	stsz = readAtom(t, b)
	assert.Equal(t, []uint32{10, 20}, SampleSizes(stsz))
	assert.Equal(t, b, writeBytes(t, stsz))
}

func TestAudioSampleEntryVersions(t *testing.T) {
	v0 := [][]byte{make([]byte, 6), u16(1), u16(0), make([]byte, 6), u16(2), u16(16), u16(0), u16(0), u16(44100), u16(0)}
	b := box("mp4a", v0...)
	mp4a := readAtom(t, b)
	assert.Nil(t, mp4a.Property("samplesPerPacket"))
	assert.Equal(t, b, writeBytes(t, mp4a))

	v1 := append([][]byte{}, v0...)
	v1[2] = u16(1)
	v1 = append(v1, u32(1024), u32(0), u32(4), u32(2))
	b = box("mp4a", v1...)
	mp4a = readAtom(t, b)
	assert.EqualValues(t, 1024, mp4a.intProp("samplesPerPacket").Value(0))
	assert.Equal(t, b, writeBytes(t, mp4a))
}

func TestAvcCParameterSets(t *testing.T) {
	sps := []byte{0x67, 0x64, 0x00, 0x1f}
	pps := []byte{0x68, 0xee}
	b := box("avcC",
		[]byte{1, 0x64, 0x00, 0x1f, 0xff, 0xe1},
		u16(uint16(len(sps))), sps,
		[]byte{1},
		u16(uint16(len(pps))), pps,
	)
	avcC := readAtom(t, b)
	assert.EqualValues(t, 3, avcC.intProp("lengthSizeMinusOne").Value(0))
	assert.EqualValues(t, 1, avcC.intProp("numOfSequenceParameterSets").Value(0))
	nal := avcC.tableProp("sequenceEntries").Column("sequenceParameterSetNALUnit").(*BytesProperty)
	assert.Equal(t, sps, nal.Value(0))
	assert.Equal(t, "64001f", AvcCodec(avcC))
	assert.Equal(t, b, writeBytes(t, avcC))

	// Adding a parameter set updates the count and the length column.
	pictures := avcC.tableProp("pictureEntries")
	i := pictures.AddRow()
	pictures.Column("pictureParameterSetNALUnit").(*BytesProperty).SetValue([]byte{0x68, 0x01, 0x02}, i)
	got := readAtom(t, writeBytes(t, avcC))
	assert.EqualValues(t, 2, got.intProp("numOfPictureParameterSets").Value(0))
	assert.EqualValues(t, 3, got.tableProp("pictureEntries").Column("pictureParameterSetLength").(*IntProperty).Value(1))
}

func TestChildEditing(t *testing.T) {
	moov := NewAtom(TypeMoov)
	a, b, c := NewAtom(TypeTrak), NewAtom(TypeTrak), NewAtom(TypeMvhd)
	moov.AddChild(a)
	moov.AddChild(b)
	moov.InsertChild(c, 0)
	assert.Equal(t, []*Atom{c, a, b}, moov.Children())
	assert.Same(t, moov, c.Parent())
	assert.Same(t, c, moov.Child(TypeMvhd))

	assert.True(t, moov.DeleteChild(a))
	assert.False(t, moov.DeleteChild(a))
	assert.Nil(t, a.Parent())
	assert.Equal(t, []*Atom{c, b}, moov.Children())
	assert.Panics(t, func() { moov.InsertChild(a, 5) })
}

func TestGenerateAddsMandatoryChildren(t *testing.T) {
	trak := NewAtom(TypeTrak)
	trak.Generate()
	for _, path := range []string{"tkhd", "mdia.mdhd", "mdia.hdlr", "mdia.minf.dinf.dref.url", "mdia.minf.stbl.stsd", "mdia.minf.stbl.stsc"} {
		assert.NotNil(t, trak.FindAtom(path), path)
	}
	assert.Nil(t, trak.FindAtom("edts"))
	assert.EqualValues(t, 1, trak.FindAtom("tkhd").Flags())
	assert.EqualValues(t, 1, trak.FindAtom("mdia.minf.dinf.dref").intProp("entryCount").Value(0))
}

func TestRewriteInPlace(t *testing.T) {
	s := memStreamOf(t, writeBytes(t, newTestMovie(t)))
	root, err := Load(s)
	require.NoError(t, err)

	mvhd := root.FindAtom("moov.mvhd")
	mvhd.intProp("timeScale").SetValue(600, 0)
	require.NoError(t, mvhd.Rewrite(s))

	reloaded, err := Load(s)
	require.NoError(t, err)
	p, _ := reloaded.FindProperty("moov.mvhd.timeScale")
	assert.EqualValues(t, 600, p.(*IntProperty).Value(0))

	before, err := s.Bytes()
	require.NoError(t, err)
	start, size := mvhd.Start(), mvhd.Size()
	mvhd.intProp("duration").SetValue(1<<40, 0)
	err = mvhd.Rewrite(s)
	require.Error(t, err)
	assert.True(t, StructureError.Has(err))
	after, err := s.Bytes()
	require.NoError(t, err)
	assert.True(t, bytes.Equal(before, after))
	assert.Equal(t, start, mvhd.Start())
	assert.Equal(t, size, mvhd.Size())
}

func TestIPodUUIDAtom(t *testing.T) {
	a := NewUUIDAtom(IPodUUID)
	a.Generate()
	b := writeBytes(t, a)
	require.Len(t, b, 8+16+4)
	assert.Equal(t, IPodUUID[:], b[8:24])

	got := readAtom(t, b)
	assert.Equal(t, IPodUUID, got.ExtendedType())
	assert.False(t, got.Unknown())
	assert.EqualValues(t, 1, got.intProp("value").Value(0))
	assert.Equal(t, b, writeBytes(t, got))
}

func TestSdtpReadsOnlyItsBody(t *testing.T) {
	b := box("stbl",
		fullBox("sdtp", 0, 0, []byte{0x20, 0x10, 0x10}),
		fullBox("stco", 0, 0, u32(0)),
	)
	stbl := readAtom(t, b)
	sdtp := stbl.Child(TypeSdtp)
	require.NotNil(t, sdtp)
	assert.Equal(t, []byte{0x20, 0x10, 0x10}, sdtp.bytesProp("data").Value(0))
	assert.NotNil(t, stbl.Child(TypeStco))
	assert.Equal(t, b, writeBytes(t, stbl))
}

func TestQuickTimeSoundDescription(t *testing.T) {
	terminator := append(u32(8), u32(0)...)
	wave := box("wave",
		box("frma", []byte("mp4a")),
		box("mp4a", u32(0)),
		fullBox("esds", 0, 0, aacES),
		terminator,
	)
	mp4a := box("mp4a",
		make([]byte, 6), u16(1),
		u16(1), make([]byte, 6), u16(2), u16(16), u16(0xfffe), u16(0), u16(44100), u16(0),
		u32(1024), u32(0), u32(2), u32(2),
		wave,
	)
	b := fullBox("stsd", 0, 0, u32(1), mp4a)

	stsd := readAtom(t, b)
	entry := stsd.Child(TypeMp4a)
	require.NotNil(t, entry)
	assert.EqualValues(t, 1024, entry.intProp("samplesPerPacket").Value(0))

	w := stsd.FindAtom("mp4a.wave")
	require.NotNil(t, w)
	stub := w.Child(TypeMp4a)
	require.NotNil(t, stub)
	assert.False(t, stub.Unknown())
	assert.Equal(t, u32(0), stub.bytesProp("data").Value(0))
	p, _ := w.FindProperty("frma.dataFormat")
	require.NotNil(t, p)
	assert.Equal(t, "mp4a", p.(*StringProperty).Value(0))
	assert.Equal(t, "40.2", EsdsCodec(w.Child(TypeEsds)))

	assert.Equal(t, b, writeBytes(t, stsd))
}

func TestOversizedAtomIsClampedToStream(t *testing.T) {
	b := append(u32(1), "zzzz"...)
	b = append(b, u64(1<<61)...)
	b = append(b, 1, 2, 3, 4)

	a, err := ReadAtom(memStreamOf(t, b), nil)
	require.NoError(t, err)
	assert.EqualValues(t, len(b), a.Size())
	assert.Equal(t, []byte{1, 2, 3, 4}, a.bytesProp("data").Value(0))
}

func TestUnterminatedStringStopsAtAtomEnd(t *testing.T) {
	b := fullBox("dref", 0, 0, u32(2),
		fullBox("url ", 0, 0, []byte("abc")),
		fullBox("url ", 0, 1),
	)
	dref := readAtom(t, b)
	require.Len(t, dref.Children(), 2)

	p, _ := dref.FindProperty("url[0].location")
	require.NotNil(t, p)
	assert.Equal(t, "abc", p.(*StringProperty).Value(0))
	assert.EqualValues(t, 1, dref.Children()[1].Flags())
	assert.Equal(t, b, writeBytes(t, dref))
}
