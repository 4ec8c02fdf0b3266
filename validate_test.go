package mp4atom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateGeneratedMovie(t *testing.T) {
	root := newTestMovie(t)
	assert.NoError(t, Validate(root, DefaultConfig()))

	strict := DefaultConfig()
	strict.CountPolicy = CountStrict
	assert.NoError(t, Validate(root, strict))
}

func TestValidateReportsEveryFinding(t *testing.T) {
	root := newTestMovie(t)
	moov := root.Child(TypeMoov)
	moov.DeleteChild(moov.Child(TypeMvhd))
	extra := NewAtom(TypeFtyp)
	extra.Generate()
	root.AddChild(extra)

	stts := root.FindAtom("moov.trak.mdia.minf.stbl.stts")
	stts.intProp("entryCount").SetValue(3, 0)

	err := Validate(root, DefaultConfig())
	require.Error(t, err)
	assert.True(t, ValidationError.Has(err))
	msg := err.Error()
	assert.Contains(t, msg, "moov: missing required child 'mvhd'")
	assert.Contains(t, msg, "root: 2 'ftyp' children")
	assert.Contains(t, msg, `table "entries" counts 3 entries but holds 0`)
}

func TestValidateEntryCountUnderStrictPolicy(t *testing.T) {
	root := newTestMovie(t)
	dref := root.FindAtom("moov.trak.mdia.minf.dinf.dref")
	dref.AddChild(NewAtom(TypeURN))

	assert.NoError(t, Validate(root, DefaultConfig()))

	strict := DefaultConfig()
	strict.CountPolicy = CountStrict
	err := Validate(root, strict)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entryCount is 1 but 2 entries are present")
}

func TestValidateDescriptors(t *testing.T) {
	esds := NewAtom(TypeEsds)
	esds.Generate()
	assert.NoError(t, Validate(esds, DefaultConfig()))

	es := esds.Properties()[2].(*DescriptorProperty).Descriptors()[0]
	es.Property("decConfigDescr").(*DescriptorProperty).DeleteDescriptor(0)
	sl := es.Property("slConfigDescr").(*DescriptorProperty)
	sl.AddDescriptor(SLConfigDescrTag).Generate()

	err := Validate(esds, DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing mandatory descriptor for tag 0x04")
	assert.Contains(t, err.Error(), "2 descriptors for tag 0x06")
}
