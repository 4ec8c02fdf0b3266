package mp4atom

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryAtomTypeRoundTrips(t *testing.T) {
	types := make([]BoxType, 0, len(atomRegistry))
	for typ := range atomRegistry {
		types = append(types, typ)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].String() < types[j].String() })

	for _, typ := range types {
		t.Run(typ.String(), func(t *testing.T) {
			a := NewAtom(typ)
			a.Generate()
			first := writeBytes(t, a)
			got := readAtom(t, first)
			assert.Equal(t, first, writeBytes(t, got))
		})
	}
}

func TestEveryChildAtomTypeRoundTrips(t *testing.T) {
	for key := range childAtomRegistry {
		parent, typ := key[0], key[1]
		t.Run(parent.String()+"/"+typ.String(), func(t *testing.T) {
			a := newChildAtom(parent, typ)
			a.Generate()
			first := writeBytes(t, a)
			got, err := ReadAtom(memStreamOf(t, first), NewAtom(parent))
			require.NoError(t, err)
			assert.Equal(t, first, writeBytes(t, got))
		})
	}
}

func TestEveryDescriptorRoundTrips(t *testing.T) {
	for space, entries := range descriptorRegistry {
		for _, e := range entries {
			t.Run(fmt.Sprintf("%s/%s/0x%02x", space, e.name, e.end), func(t *testing.T) {
				d := NewDescriptor(space, e.end)
				d.Generate()
				first := writeDescriptor(t, d, DefaultConfig())

				got := NewDescriptor(space, e.end)
				require.NoError(t, got.Read(memStreamOf(t, first)))
				assert.Equal(t, first, writeDescriptor(t, got, DefaultConfig()))
			})
		}
	}
}

// readDescriptorBytes reads b as one descriptor of space and checks that
// writing it back reproduces b.
func readDescriptorBytes(t *testing.T, space TagSpace, b []byte) *Descriptor {
	t.Helper()
	d := NewDescriptor(space, b[0])
	require.NoError(t, d.Read(memStreamOf(t, b)))
	assert.Equal(t, b, writeDescriptor(t, d, DefaultConfig()))
	return d
}

func column[P Property](t *testing.T, d *Descriptor, table, name string) P {
	t.Helper()
	tp, ok := d.Property(table).(*TableProperty)
	require.True(t, ok, table)
	p, ok := tp.Column(name).(P)
	require.True(t, ok, name)
	return p
}

func TestKeywordDescriptorUTF16(t *testing.T) {
	d := readDescriptorBytes(t, ObjectDescriptors, []byte{
		0x41, 0x0a,
		'e', 'n', 'g', 0x00,
		0x01, 0x02, 0x00, 'h', 0x00, 'i',
	})
	assert.Equal(t, "hi", column[*StringProperty](t, d, "keywords", "string").Value(0))
}

func TestCreatorDescriptorEncodingPerRow(t *testing.T) {
	d := readDescriptorBytes(t, ObjectDescriptors, []byte{
		0x46, 0x0f, 0x02,
		'e', 'n', 'g', 0x80, 0x02, 'a', 'b',
		'f', 'r', 'a', 0x00, 0x01, 0x00, 0xe9,
	})
	names := column[*StringProperty](t, d, "creators", "name")
	assert.Equal(t, "ab", names.Value(0))
	assert.Equal(t, "é", names.Value(1))
}

func TestExpandedTextDescriptor(t *testing.T) {
	d := readDescriptorBytes(t, ObjectDescriptors, []byte{
		0x45, 0x0d,
		'e', 'n', 'g', 0x80,
		0x01, 0x01, 'a', 0x01, 'b',
		0x03, 'x', 'y', 'z',
	})
	assert.Equal(t, "a", column[*StringProperty](t, d, "items", "itemDescription").Value(0))
	assert.Equal(t, "b", column[*StringProperty](t, d, "items", "itemText").Value(0))
	assert.Equal(t, "xyz", d.Property("nonItemText").(*StringProperty).Value(0))
}

func TestODRemoveCountsIdsFromLength(t *testing.T) {
	d := readDescriptorBytes(t, ODCommands, []byte{0x02, 0x04, 0x00, 0x40, 0x20, 0x0c})
	assert.EqualValues(t, 3, d.intProp("entryCount").Value(0))
	ids := column[*IntProperty](t, d, "entries", "objectDescriptorId")
	for i, want := range []uint64{1, 2, 3} {
		assert.Equal(t, want, ids.Value(i))
	}
}

func TestQosQualifiers(t *testing.T) {
	d := readDescriptorBytes(t, ObjectDescriptors, []byte{
		0x0c, 0x11, 0x00,
		0x01, 0x04, 0x00, 0x00, 0x00, 0x64,
		0x03, 0x04, 0x3f, 0x00, 0x00, 0x00,
		0x10, 0x02, 0xaa, 0xbb,
	})
	qs := d.Property("qualifiers").(*DescriptorProperty).Descriptors()
	require.Len(t, qs, 3)
	assert.Equal(t, "MaxDelayQualifier", qs[0].Name())
	assert.EqualValues(t, 100, qs[0].intProp("maxDelay").Value(0))
	assert.InDelta(t, 0.5, qs[1].Property("lossProb").(*FloatProperty).Value(0), 1e-9)
	assert.Equal(t, "UnknownDescriptor", qs[2].Name())
}

func TestContentIdDescriptor(t *testing.T) {
	d := readDescriptorBytes(t, ObjectDescriptors, []byte{0x07, 0x05, 0x30, 0x05, 0x02, 'a', 'b'})
	assert.EqualValues(t, 5, d.intProp("contentType").Value(0))
	assert.Equal(t, []byte("ab"), d.Property("contentId").(*BytesProperty).Value(0))

	// A non-zero compatibility field keeps the body as raw bytes.
	d = readDescriptorBytes(t, ObjectDescriptors, []byte{0x07, 0x03, 0x40, 0x12, 0x34})
	assert.Equal(t, []byte{0x40, 0x12, 0x34}, d.trailer)
}

func TestSLConfigCustom(t *testing.T) {
	d := readDescriptorBytes(t, ObjectDescriptors, []byte{
		0x06, 0x20,
		0x00, 0xe1,
		0x00, 0x00, 0x03, 0xe8,
		0x00, 0x00, 0x00, 0x00,
		0x20, 0x00, 0x00, 0x00,
		0x00, 0x03,
		0x00, 0x01, 0x5f, 0x90,
		0x0b, 0xb8, 0x0b, 0xb8,
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x02,
	})
	assert.EqualValues(t, 1000, d.intProp("timeStampResolution").Value(0))
	assert.EqualValues(t, 90000, d.intProp("timeScale").Value(0))
	assert.EqualValues(t, 1, d.intProp("startDecodingTimeStamp").Value(0))
	assert.EqualValues(t, 2, d.intProp("startCompositionTimeStamp").Value(0))
	assert.False(t, d.Property("startDecodingTimeStamp").Implicit())
}
