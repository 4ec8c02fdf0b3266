package mp4atom

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDumpMovie(t *testing.T) {
	root := newTestMovie(t)
	root.Child(TypeMoov).AddChild(readAtom(t, box("zzzz", []byte{1, 2})))

	var sb strings.Builder
	root.Dump(&sb, 0, 0)
	out := sb.String()
	assert.Contains(t, out, "moov.mvhd: 'mvhd'")
	assert.Contains(t, out, "  timeScale = 1000 (0x000003e8)\n")
	assert.Contains(t, out, "moov.zzzz: 'zzzz'")
	assert.Contains(t, out, "(unknown)")
	assert.Contains(t, out, "payload = 0 B at")
	assert.True(t, strings.HasPrefix(out, "ftyp: 'ftyp'"))
}

func TestDumpTableVerbosity(t *testing.T) {
	stts := readAtom(t, fullBox("stts", 0, 0, u32(2), u32(10), u32(1024), u32(1), u32(512)))

	var sb strings.Builder
	stts.Dump(&sb, 0, 0)
	assert.Contains(t, sb.String(), "entries = <2 entries>\n")
	assert.NotContains(t, sb.String(), "sampleDelta")

	sb.Reset()
	stts.Dump(&sb, 0, 1)
	assert.Contains(t, sb.String(), "    sampleDelta[1] = 512 (0x00000200)\n")
}

func TestDumpTrailer(t *testing.T) {
	smhd := readAtom(t, fullBox("smhd", 0, 0, u16(0), u16(0), []byte{7, 8, 9}))
	var sb strings.Builder
	smhd.Dump(&sb, 0, 0)
	assert.Contains(t, sb.String(), "  <3 trailing bytes>\n")
}
