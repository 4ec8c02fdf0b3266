package mp4atom

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamMovie writes root with the streaming API, feeding payload between
// BeginWrite and FinishWrite.
func streamMovie(t *testing.T, root *Atom, payload []byte, opts ...StreamOption) *Stream {
	t.Helper()
	s := NewMemStream(opts...)
	require.NoError(t, root.BeginWrite(s))
	require.NoError(t, s.WriteBytes(payload))
	require.NoError(t, root.FinishWrite(s))
	return s
}

func TestStreamingWriteLayout(t *testing.T) {
	payload := bytes.Repeat([]byte{0xab}, 1000)
	s := streamMovie(t, newTestMovie(t), payload)

	loaded, err := Load(s)
	require.NoError(t, err)
	children := loaded.Children()
	require.Len(t, children, 4)
	assert.Equal(t, TypeFtyp, children[0].Type())
	assert.Equal(t, TypeFree, children[1].Type())
	assert.Equal(t, TypeMoov, children[2].Type())
	assert.Equal(t, TypeMdat, children[3].Type())

	assert.EqualValues(t, 24, children[0].Size())
	assert.EqualValues(t, 128, children[1].Size())
	assert.EqualValues(t, 24+128, children[2].Start())

	mdat := children[3]
	assert.Equal(t, Span{Offset: mdat.Start() + 8, Size: 1000}, mdat.Span())

	b, err := s.Bytes()
	require.NoError(t, err)
	assert.Equal(t, payload, b[mdat.Span().Offset:])
}

func TestStreamingWriteFtypGrowth(t *testing.T) {
	root := newTestMovie(t)
	s := NewMemStream()
	require.NoError(t, root.BeginWrite(s))
	require.NoError(t, s.WriteBytes([]byte("media")))

	brands := root.Child(TypeFtyp).tableProp("compatibleBrands")
	brands.Column("brand").(*StringProperty).SetValue("avc1", brands.AddRow())
	require.NoError(t, root.FinishWrite(s))

	loaded, err := Load(s)
	require.NoError(t, err)
	children := loaded.Children()
	assert.EqualValues(t, 28, children[0].Size())
	assert.EqualValues(t, 124, children[1].Size())
	assert.EqualValues(t, 24+128, children[2].Start())
	assert.Equal(t, 3, children[0].tableProp("compatibleBrands").Len())
}

func TestStreamingWriteReserveExhausted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FtypReserve = 8
	root := newTestMovie(t)
	s := NewMemStream(WithConfig(cfg))
	require.NoError(t, root.BeginWrite(s))

	brands := root.Child(TypeFtyp).tableProp("compatibleBrands")
	brands.Column("brand").(*StringProperty).SetValue("avc1", brands.AddRow())
	err := root.FinishWrite(s)
	require.Error(t, err)
	assert.True(t, StructureError.Has(err))
}

func TestStreamingWriteNeedsMdat(t *testing.T) {
	root := NewRoot()
	root.Generate()
	err := root.BeginWrite(NewMemStream())
	require.Error(t, err)

	err = root.FinishWrite(NewMemStream())
	require.Error(t, err)
}

func TestLoadedMovieCopiesPayload(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789"), 20000)
	src := streamMovie(t, newTestMovie(t), payload)
	want, err := src.Bytes()
	require.NoError(t, err)

	loaded, err := Load(src)
	require.NoError(t, err)
	got := writeBytes(t, loaded)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("copy differs (-want +got):\n%s", diff)
	}

	// The free atom kept after ftyp is reused by a second streaming write.
	again := streamMovie(t, loaded, nil)
	reloaded, err := Load(again)
	require.NoError(t, err)
	assert.Len(t, reloaded.Children(), 4)
	assert.EqualValues(t, 0, reloaded.Child(TypeMdat).Span().Size)
}

func TestLoadEmptyStream(t *testing.T) {
	root, err := Load(NewMemStream())
	require.NoError(t, err)
	assert.Empty(t, root.Children())
	assert.Equal(t, "", root.Path())
}
