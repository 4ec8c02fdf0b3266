package mp4atom

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encode writes index 0 of p and returns the bytes.
func encode(t *testing.T, p Property) []byte {
	t.Helper()
	s := NewMemStream()
	require.NoError(t, writeProperty(s, p, 0))
	require.NoError(t, s.PadWriteBits(0))
	b, err := s.Bytes()
	require.NoError(t, err)
	return b
}

// decode reads b into p at index 0.
func decode(t *testing.T, p Property, b []byte) {
	t.Helper()
	require.NoError(t, readProperty(memStreamOf(t, b), p, 0))
}

func TestFixedPoint(t *testing.T) {
	p := NewFloatProperty("rate", Fixed32Format)
	p.SetValue(1.5, 0)
	assert.Equal(t, []byte{0x00, 0x01, 0x80, 0x00}, encode(t, p))

	v := NewFloatProperty("volume", Fixed16Format)
	v.SetValue(1, 0)
	assert.Equal(t, []byte{0x01, 0x00}, encode(t, v))

	got := NewFloatProperty("volume", Fixed16Format)
	decode(t, got, []byte{0x00, 0x80})
	assert.Equal(t, 0.5, got.Value(0))

	v.SetValue(300, 0)
	require.Error(t, v.Write(NewMemStream(), 0))
	v.SetValue(-1, 0)
	require.Error(t, v.Write(NewMemStream(), 0))
}

func TestFloat32(t *testing.T) {
	p := NewFloatProperty("lossProb", Float32Format)
	p.SetValue(0.25, 0)
	b := encode(t, p)
	assert.Equal(t, []byte{0x3e, 0x80, 0x00, 0x00}, b)

	got := NewFloatProperty("lossProb", Float32Format)
	decode(t, got, b)
	assert.Equal(t, 0.25, got.Value(0))
}

func TestIntegerWidths(t *testing.T) {
	for _, tc := range []struct {
		p    *IntProperty
		v    uint64
		want []byte
	}{
		{NewInt8Property("a"), 0x12, []byte{0x12}},
		{NewInt16Property("a"), 0x1234, []byte{0x12, 0x34}},
		{NewInt24Property("a"), 0x123456, []byte{0x12, 0x34, 0x56}},
		{NewInt32Property("a"), 0x12345678, []byte{0x12, 0x34, 0x56, 0x78}},
		{NewInt64Property("a"), 1 << 40, []byte{0, 0, 1, 0, 0, 0, 0, 0}},
		{NewInt6432Property("a", false), 7, []byte{0, 0, 0, 7}},
		{NewInt6432Property("a", true), 7, []byte{0, 0, 0, 0, 0, 0, 0, 7}},
	} {
		tc.p.SetValue(tc.v, 0)
		assert.Equal(t, tc.want, encode(t, tc.p))
	}

	p := NewInt8Property("a")
	p.SetValue(300, 0)
	require.Error(t, p.Write(NewMemStream(), 0))
}

func TestInt6432SignExtends(t *testing.T) {
	p := NewInt6432Property("mediaTime", false)
	p.SetSigned(true)
	decode(t, p, []byte{0xff, 0xff, 0xff, 0xff})
	assert.EqualValues(t, -1, p.Signed(0))
	assert.True(t, p.fits32(0))

	p.Use64Bit(true)
	assert.True(t, p.Is64Bit())
	assert.EqualValues(t, -1, p.Signed(0))
	assert.Equal(t, bytes.Repeat([]byte{0xff}, 8), encode(t, p))

	p.Use64Bit(false)
	assert.Equal(t, bytes.Repeat([]byte{0xff}, 4), encode(t, p))
}

func TestBitfieldsShareBytes(t *testing.T) {
	props := []Property{
		NewBitfieldProperty("a", 6),
		NewBitfieldProperty("b", 2),
		NewBitfieldProperty("c", 3),
		NewBitfieldProperty("d", 5),
		NewInt8Property("e"),
	}
	for i, v := range []uint64{0x3f, 3, 7, 1, 9} {
		props[i].(*IntProperty).SetValue(v, 0)
	}
	s := NewMemStream()
	for _, p := range props {
		require.NoError(t, writeProperty(s, p, 0))
	}
	b, err := s.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xe1, 0x09}, b)

	require.NoError(t, s.SetPosition(0))
	for _, p := range props {
		p.(*IntProperty).set(0, 0)
		require.NoError(t, readProperty(s, p, 0))
	}
	assert.EqualValues(t, 0x3f, props[0].(*IntProperty).Value(0))
	assert.EqualValues(t, 1, props[3].(*IntProperty).Value(0))
	assert.EqualValues(t, 9, props[4].(*IntProperty).Value(0))
}

func TestStrings(t *testing.T) {
	t.Run("terminated", func(t *testing.T) {
		p := NewStringProperty("name")
		p.SetValue("Video", 0)
		b := encode(t, p)
		assert.Equal(t, []byte("Video\x00"), b)
		got := NewStringProperty("name")
		decode(t, got, b)
		assert.Equal(t, "Video", got.Value(0))
	})

	t.Run("counted", func(t *testing.T) {
		p := NewCountedStringProperty("URL")
		p.SetValue("abc", 0)
		assert.Equal(t, []byte("\x03abc"), encode(t, p))

		p.SetValue(strings.Repeat("x", 256), 0)
		require.Error(t, p.Write(NewMemStream(), 0))
	})

	t.Run("expanded count", func(t *testing.T) {
		p := NewCountedStringProperty("text")
		p.SetExpandedCount(true)
		p.SetValue(strings.Repeat("x", 300), 0)
		b := encode(t, p)
		assert.Equal(t, []byte{0xff, 45}, b[:2])
		assert.Len(t, b, 302)

		got := NewCountedStringProperty("text")
		got.SetExpandedCount(true)
		decode(t, got, b)
		assert.Equal(t, p.Value(0), got.Value(0))
	})

	t.Run("counted in fixed field", func(t *testing.T) {
		p := NewFixedStringProperty("compressorName", 32)
		p.SetCounted(true)
		p.SetValue("AVC Coding", 0)
		b := encode(t, p)
		require.Len(t, b, 32)
		assert.EqualValues(t, 10, b[0])

		got := NewFixedStringProperty("compressorName", 32)
		got.SetCounted(true)
		decode(t, got, b)
		assert.Equal(t, "AVC Coding", got.Value(0))

		p.SetValue(strings.Repeat("y", 40), 0)
		b = encode(t, p)
		require.Len(t, b, 32)
		assert.EqualValues(t, 31, b[0])
	})

	t.Run("fixed", func(t *testing.T) {
		p := NewFixedStringProperty("majorBrand", 4)
		p.SetValue("M4A", 0)
		assert.Equal(t, []byte("M4A\x00"), encode(t, p))
	})

	t.Run("unicode", func(t *testing.T) {
		p := NewStringProperty("keyword")
		p.SetUnicode(true)
		p.SetValue("hé", 0)
		b := encode(t, p)
		assert.Equal(t, []byte{0x00, 'h', 0x00, 0xe9, 0x00, 0x00}, b)

		got := NewStringProperty("keyword")
		got.SetUnicode(true)
		decode(t, got, b)
		assert.Equal(t, "hé", got.Value(0))
	})
}

func TestLanguageCode(t *testing.T) {
	p := NewLanguageCodeProperty("language")
	assert.Equal(t, "und", p.Value(0))
	p.SetValue("eng", 0)
	b := encode(t, p)
	assert.Equal(t, []byte{0x15, 0xc7}, b)

	got := NewLanguageCodeProperty("language")
	decode(t, got, b)
	assert.Equal(t, "eng", got.Value(0))

	assert.Panics(t, func() { p.SetValue("en", 0) })
}

func TestReadOnlyPanics(t *testing.T) {
	r := NewReservedProperty("reserved", 4)
	assert.Panics(t, func() { r.SetValue([]byte{1, 2, 3, 4}, 0) })

	count := NewInt32Property("entryCount")
	count.SetReadOnly(true)
	assert.Panics(t, func() { count.SetValue(1, 0) })
}

func TestBytes(t *testing.T) {
	p := NewBytesProperty("data", -1)
	assert.Panics(t, func() { _ = p.Read(memStreamOf(t, []byte{1}), 0) })

	p.SetValueSize(3, 0)
	decode(t, p, []byte{1, 2, 3, 4})
	assert.Equal(t, []byte{1, 2, 3}, p.Value(0))

	fixed := NewFixedBytesProperty("matrix", 4)
	assert.Panics(t, func() { fixed.SetValue([]byte{1}, 0) })
	assert.Panics(t, func() { fixed.SetValueSize(5, 0) })
	fixed.Generate()
	assert.Equal(t, []byte{0, 0, 0, 0}, encode(t, fixed))
}

func TestImplicitPropertiesSkipTheWire(t *testing.T) {
	p := NewInt32Property("hidden")
	p.SetValue(5, 0)
	p.SetImplicit(true)
	assert.Empty(t, encode(t, p))
}

func TestTableAddRow(t *testing.T) {
	stsc := NewAtom(TypeStsc)
	stsc.Generate()
	entries := stsc.tableProp("entries")
	for _, row := range [][2]uint64{{1, 5}, {4, 2}} {
		i := entries.AddRow()
		entries.Column("firstChunk").(*IntProperty).SetValue(row[0], i)
		entries.Column("samplesPerChunk").(*IntProperty).SetValue(row[1], i)
		entries.Column("sampleDescriptionIndex").(*IntProperty).SetValue(1, i)
	}
	assert.EqualValues(t, 2, stsc.intProp("entryCount").Value(0))

	got := readAtom(t, writeBytes(t, stsc))
	first := got.tableProp("entries").Column("firstSample").(*IntProperty)
	assert.Equal(t, []uint64{1, 16}, first.values)
}

func TestStscFirstSample(t *testing.T) {
	b := fullBox("stsc", 0, 0, u32(2),
		u32(1), u32(5), u32(1),
		u32(4), u32(2), u32(1),
	)
	stsc := readAtom(t, b)
	entries := StscEntries(stsc)
	require.Len(t, entries, 2)
	assert.EqualValues(t, 1, entries[0].FirstSample)
	assert.EqualValues(t, 16, entries[1].FirstSample)

	assert.Equal(t, b, writeBytes(t, stsc))
}

func TestTableCountRepair(t *testing.T) {
	stts := NewAtom(TypeStts)
	stts.Generate()
	entries := stts.tableProp("entries")
	entries.AddRow()
	entries.Column("sampleCount").(*IntProperty).AddValue(3)
	entries.Column("sampleDelta").(*IntProperty).AddValue(1024)

	b := writeBytes(t, stts)
	assert.EqualValues(t, 2, stts.intProp("entryCount").Value(0))
	assert.Len(t, b, 12+4+16)

	strict := DefaultConfig()
	strict.CountPolicy = CountStrict
	stts.intProp("entryCount").set(5, 0)
	err := stts.Write(NewMemStream(WithConfig(strict)))
	require.Error(t, err)
	assert.True(t, ValidationError.Has(err))
}

func TestTableTooLargeForAtom(t *testing.T) {
	b := fullBox("stco", 0, 0, u32(1000), u32(1))
	_, err := ReadAtom(memStreamOf(t, b), nil)
	require.Error(t, err)
	assert.True(t, StructureError.Has(err))
}
