package mp4atom

import (
	"github.com/google/uuid"
)

var (
	atomRegistry = map[BoxType]*atomSpec{}
	// childAtomRegistry holds declarations that only apply under one
	// parent type, such as the track reference types inside 'tref'.
	childAtomRegistry = map[[2]BoxType]*atomSpec{}
	uuidRegistry      = map[uuid.UUID]*atomSpec{}
)

func mustType(t string) BoxType {
	bt, err := ParseBoxType(t)
	if err != nil {
		panic(err)
	}
	return bt
}

func registerAtom(t string, spec *atomSpec) {
	atomRegistry[mustType(t)] = spec
}

func registerChildAtom(parent, t string, spec *atomSpec) {
	childAtomRegistry[[2]BoxType{mustType(parent), mustType(t)}] = spec
}

func registerUUIDAtom(id uuid.UUID, spec *atomSpec) {
	uuidRegistry[id] = spec
}

// NewAtom constructs an atom of type t with its declared properties and
// expected children. Properties hold no values until Generate or Read.
// Types without a declaration get a single raw "data" property.
func NewAtom(t BoxType) *Atom {
	return newAtom(t, atomRegistry[t])
}

// NewUUIDAtom constructs a 'uuid' atom with the given extended type.
func NewUUIDAtom(id uuid.UUID) *Atom {
	a := newAtom(TypeUUID, uuidRegistry[id])
	a.extended = id
	return a
}

func newChildAtom(parent, t BoxType) *Atom {
	if spec, ok := childAtomRegistry[[2]BoxType{parent, t}]; ok {
		return newAtom(t, spec)
	}
	return NewAtom(t)
}

func newAtomForRead(parent, t BoxType, ext uuid.UUID) *Atom {
	if t == TypeUUID {
		return NewUUIDAtom(ext)
	}
	return newChildAtom(parent, t)
}

var rootSpec = &atomSpec{
	container: true,
	build: func(a *Atom) {
		a.ExpectChildAtom("ftyp", false, true)
		a.ExpectChildAtom("moov", true, true)
		a.ExpectChildAtom("mdat", false, false)
		a.ExpectChildAtom("free", false, false)
		a.ExpectChildAtom("skip", false, false)
		a.ExpectChildAtom("udta", false, true)
		a.ExpectChildAtom("moof", false, false)
	},
}

// NewRoot returns an empty root: the unnamed container of a file's
// top-level atoms.
func NewRoot() *Atom {
	return newAtom(typeRoot, rootSpec)
}
