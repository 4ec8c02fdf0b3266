// Package mp4atom implements a reflective object model of MP4 and QuickTime
// files: atoms made of typed properties, MPEG-4 descriptors nested inside
// them, and the machinery to read, generate, edit, dump and write them back
// with exact sizes.
package mp4atom

// BoxType is a 4-byte atom type identifier.
type BoxType [4]byte

func (t BoxType) String() string {
	return string(t[:])
}

// ParseBoxType converts a four character string to a BoxType.
func ParseBoxType(s string) (BoxType, error) {
	var t BoxType
	if len(s) != 4 {
		return t, Error.New("atom type %q is not four characters", s)
	}
	copy(t[:], s)
	return t, nil
}

// suspect reports whether t does not look like a real atom type: every
// byte must be alphanumeric, except that the last may be a space.
func (t BoxType) suspect() bool {
	for i, c := range t {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == ' ' && i == 3:
		default:
			return true
		}
	}
	return false
}

// Known atom types.
var (
	TypeFtyp = BoxType{'f', 't', 'y', 'p'}
	TypeMoov = BoxType{'m', 'o', 'o', 'v'}
	TypeMvhd = BoxType{'m', 'v', 'h', 'd'}
	TypeIods = BoxType{'i', 'o', 'd', 's'} // Initial object descriptor
	TypeTrak = BoxType{'t', 'r', 'a', 'k'}
	TypeTkhd = BoxType{'t', 'k', 'h', 'd'}
	TypeTref = BoxType{'t', 'r', 'e', 'f'}
	TypeEdts = BoxType{'e', 'd', 't', 's'}
	TypeElst = BoxType{'e', 'l', 's', 't'}
	TypeMdia = BoxType{'m', 'd', 'i', 'a'}
	TypeMdhd = BoxType{'m', 'd', 'h', 'd'}
	TypeHdlr = BoxType{'h', 'd', 'l', 'r'}
	TypeMinf = BoxType{'m', 'i', 'n', 'f'}
	TypeVmhd = BoxType{'v', 'm', 'h', 'd'}
	TypeSmhd = BoxType{'s', 'm', 'h', 'd'}
	TypeHmhd = BoxType{'h', 'm', 'h', 'd'}
	TypeNmhd = BoxType{'n', 'm', 'h', 'd'}
	TypeDinf = BoxType{'d', 'i', 'n', 'f'}
	TypeDref = BoxType{'d', 'r', 'e', 'f'}
	TypeURL  = BoxType{'u', 'r', 'l', ' '}
	TypeURN  = BoxType{'u', 'r', 'n', ' '}
	TypeStbl = BoxType{'s', 't', 'b', 'l'}
	TypeStsd = BoxType{'s', 't', 's', 'd'}
	TypeStts = BoxType{'s', 't', 't', 's'}
	TypeCtts = BoxType{'c', 't', 't', 's'}
	TypeStsc = BoxType{'s', 't', 's', 'c'}
	TypeStsz = BoxType{'s', 't', 's', 'z'}
	TypeStco = BoxType{'s', 't', 'c', 'o'}
	TypeCo64 = BoxType{'c', 'o', '6', '4'}
	TypeStss = BoxType{'s', 't', 's', 's'}
	TypeStsh = BoxType{'s', 't', 's', 'h'}
	TypeSdtp = BoxType{'s', 'd', 't', 'p'}
	// Track reference types
	TypeChap = BoxType{'c', 'h', 'a', 'p'}
	TypeDpnd = BoxType{'d', 'p', 'n', 'd'}
	TypeHint = BoxType{'h', 'i', 'n', 't'}
	TypeIpir = BoxType{'i', 'p', 'i', 'r'}
	TypeMpod = BoxType{'m', 'p', 'o', 'd'}
	TypeSync = BoxType{'s', 'y', 'n', 'c'}
	// Fragment movie boxes
	TypeMvex = BoxType{'m', 'v', 'e', 'x'}
	TypeMehd = BoxType{'m', 'e', 'h', 'd'}
	TypeTrex = BoxType{'t', 'r', 'e', 'x'}
	TypeMoof = BoxType{'m', 'o', 'o', 'f'}
	TypeMfhd = BoxType{'m', 'f', 'h', 'd'}
	TypeTraf = BoxType{'t', 'r', 'a', 'f'}
	TypeTfhd = BoxType{'t', 'f', 'h', 'd'}
	TypeTrun = BoxType{'t', 'r', 'u', 'n'}
	TypeTfdt = BoxType{'t', 'f', 'd', 't'}
	// Metadata boxes
	TypeUdta = BoxType{'u', 'd', 't', 'a'}
	TypeUUID = BoxType{'u', 'u', 'i', 'd'}
	// Data boxes
	TypeMdat = BoxType{'m', 'd', 'a', 't'}
	TypeFree = BoxType{'f', 'r', 'e', 'e'}
	TypeSkip = BoxType{'s', 'k', 'i', 'p'}
	// Sample entry boxes
	TypeAvc1 = BoxType{'a', 'v', 'c', '1'}
	TypeAvcC = BoxType{'a', 'v', 'c', 'C'}
	TypeBtrt = BoxType{'b', 't', 'r', 't'} // MPEG-4 Bit rate box
	TypePasp = BoxType{'p', 'a', 's', 'p'} // Pixel aspect ratio box
	TypeMp4a = BoxType{'m', 'p', '4', 'a'}
	TypeMp4v = BoxType{'m', 'p', '4', 'v'}
	TypeEsds = BoxType{'e', 's', 'd', 's'}
	TypeWave = BoxType{'w', 'a', 'v', 'e'} // QuickTime sound extension

	// typeRoot is the type given to the file-level container.
	typeRoot = BoxType{}
)
