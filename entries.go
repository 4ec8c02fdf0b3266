package mp4atom

import (
	"strconv"
)

// SttsEntry is a time-to-sample run.
type SttsEntry struct {
	Count    uint32
	Duration uint32
}

// CttsEntry is a composition offset run.
type CttsEntry struct {
	Count  uint32
	Offset int32 // signed in version 1, unsigned treated as signed in version 0
}

// StscEntry is a sample-to-chunk run.
type StscEntry struct {
	FirstChunk             uint32
	SamplesPerChunk        uint32
	SampleDescriptionIndex uint32
	FirstSample            uint32 // 1-based number of the run's first sample
}

// ElstEntry is an edit list entry.
type ElstEntry struct {
	SegmentDuration uint64
	MediaTime       int64
	MediaRateInt    int16
	MediaRateFrac   int16
}

// TrunEntry is a track run sample entry. Fields whose presence flag is
// clear are zero.
type TrunEntry struct {
	Duration              uint32
	Size                  uint32
	Flags                 uint32
	CompositionTimeOffset int32
}

// columns returns the integer columns called names of the table of a, or
// nil when a is not the expected atom.
func columns(a *Atom, want BoxType, table string, names ...string) (int, []*IntProperty) {
	if a == nil || a.typ != want {
		return 0, nil
	}
	t := a.tableProp(table)
	if t == nil {
		return 0, nil
	}
	t.refresh()
	cols := make([]*IntProperty, len(names))
	for i, name := range names {
		cols[i], _ = t.Column(name).(*IntProperty)
		if cols[i] == nil {
			return 0, nil
		}
	}
	if t.Implicit() {
		return 0, cols
	}
	return t.Len(), cols
}

// SttsEntries returns the runs of an stts atom.
func SttsEntries(stts *Atom) []SttsEntry {
	n, c := columns(stts, TypeStts, "entries", "sampleCount", "sampleDelta")
	if c == nil {
		return nil
	}
	entries := make([]SttsEntry, n)
	for i := range entries {
		entries[i] = SttsEntry{Count: uint32(c[0].Value(i)), Duration: uint32(c[1].Value(i))}
	}
	return entries
}

// CttsEntries returns the runs of a ctts atom.
func CttsEntries(ctts *Atom) []CttsEntry {
	n, c := columns(ctts, TypeCtts, "entries", "sampleCount", "sampleOffset")
	if c == nil {
		return nil
	}
	entries := make([]CttsEntry, n)
	for i := range entries {
		entries[i] = CttsEntry{Count: uint32(c[0].Value(i)), Offset: int32(c[1].Value(i))}
	}
	return entries
}

// StscEntries returns the runs of an stsc atom, each numbered with its
// first sample.
func StscEntries(stsc *Atom) []StscEntry {
	n, c := columns(stsc, TypeStsc, "entries", "firstChunk", "samplesPerChunk", "sampleDescriptionIndex", "firstSample")
	if c == nil {
		return nil
	}
	entries := make([]StscEntry, n)
	for i := range entries {
		entries[i] = StscEntry{
			FirstChunk:             uint32(c[0].Value(i)),
			SamplesPerChunk:        uint32(c[1].Value(i)),
			SampleDescriptionIndex: uint32(c[2].Value(i)),
			FirstSample:            uint32(c[3].Value(i)),
		}
	}
	return entries
}

// ElstEntries returns the edits of an elst atom of either version.
func ElstEntries(elst *Atom) []ElstEntry {
	n, c := columns(elst, TypeElst, "entries", "segmentDuration", "mediaTime", "mediaRate", "mediaRateFraction")
	if c == nil {
		return nil
	}
	entries := make([]ElstEntry, n)
	for i := range entries {
		entries[i] = ElstEntry{
			SegmentDuration: c[0].Value(i),
			MediaTime:       c[1].Signed(i),
			MediaRateInt:    int16(c[2].Value(i)),
			MediaRateFrac:   int16(c[3].Value(i)),
		}
	}
	return entries
}

// TrunEntries returns the samples of a trun atom.
func TrunEntries(trun *Atom) []TrunEntry {
	n, c := columns(trun, TypeTrun, "samples", "sampleDuration", "sampleSize", "sampleFlags", "sampleCompositionTimeOffset")
	if c == nil {
		return nil
	}
	entries := make([]TrunEntry, n)
	for i := range entries {
		entries[i] = TrunEntry{
			Duration:              uint32(c[0].Value(i)),
			Size:                  uint32(c[1].Value(i)),
			Flags:                 uint32(c[2].Value(i)),
			CompositionTimeOffset: int32(c[3].Value(i)),
		}
	}
	return entries
}

// SampleSizes returns the size of every sample described by an stsz atom,
// expanding a constant sampleSize.
func SampleSizes(stsz *Atom) []uint32 {
	n, c := columns(stsz, TypeStsz, "entries", "entrySize")
	if c == nil {
		return nil
	}
	if size := stsz.intProp("sampleSize").Value(0); size != 0 {
		sizes := make([]uint32, stsz.intProp("sampleCount").Value(0))
		for i := range sizes {
			sizes[i] = uint32(size)
		}
		return sizes
	}
	sizes := make([]uint32, n)
	for i := range sizes {
		sizes[i] = uint32(c[0].Value(i))
	}
	return sizes
}

// ChunkOffsets returns the chunk offsets of an stbl atom from whichever of
// stco or co64 it holds.
func ChunkOffsets(stbl *Atom) []uint64 {
	if stbl == nil {
		return nil
	}
	for _, t := range []BoxType{TypeCo64, TypeStco} {
		a := stbl.Child(t)
		n, c := columns(a, t, "entries", "chunkOffset")
		if c == nil {
			continue
		}
		offsets := make([]uint64, n)
		for i := range offsets {
			offsets[i] = c[0].Value(i)
		}
		return offsets
	}
	return nil
}

// AvcCodec returns the profile, constraint and level bytes of an avcC
// atom as six hex digits, like "64001f", for use in MIME codec
// parameters.
func AvcCodec(avcC *Atom) string {
	if avcC == nil || avcC.typ != TypeAvcC {
		return ""
	}
	var buf [6]byte
	for i, name := range []string{"AVCProfileIndication", "profileCompatibility", "AVCLevelIndication"} {
		b := byte(avcC.intProp(name).Value(0))
		buf[2*i] = hexDigit(b >> 4)
		buf[2*i+1] = hexDigit(b)
	}
	return string(buf[:])
}

// EsdsCodec returns the codec string of an esds atom: the object type
// indication in hex, followed by the audio object type when a decoder
// specific info is present, e.g. "40.2" for AAC-LC.
func EsdsCodec(esds *Atom) string {
	if esds == nil || esds.typ != TypeEsds {
		return ""
	}
	es := firstDescriptor(esds.props, "")
	if es == nil {
		return ""
	}
	dc := firstDescriptor(es.props, "decConfigDescr")
	if dc == nil {
		return ""
	}
	oti := byte(dc.intProp("objectTypeId").Value(0))
	if oti == 0 {
		return ""
	}
	codec := hexByte(oti)
	dsi := firstDescriptor(dc.props, "decSpecificInfo")
	if dsi == nil {
		return codec
	}
	info, _ := dsi.Property("info").(*BytesProperty)
	if info == nil || len(info.Value(0)) == 0 {
		return codec
	}
	if aot := info.Value(0)[0] >> 3; aot != 0 {
		codec += "." + strconv.Itoa(int(aot))
	}
	return codec
}

// firstDescriptor returns the first descriptor held by the descriptor
// property called name in props.
func firstDescriptor(props []Property, name string) *Descriptor {
	for _, p := range props {
		dp, ok := p.(*DescriptorProperty)
		if !ok || dp.name != name || len(dp.descriptors) == 0 {
			continue
		}
		return dp.descriptors[0]
	}
	return nil
}

const hexChars = "0123456789abcdef"

// hexDigit returns the lowercase hex character for a 4-bit nibble.
func hexDigit(b byte) byte {
	return hexChars[b&0x0f]
}

// hexByte formats a byte as lowercase hex without a leading zero.
func hexByte(b byte) string {
	if b < 16 {
		return string(hexDigit(b))
	}
	return string([]byte{hexDigit(b >> 4), hexDigit(b)})
}
