package mp4atom

import (
	"strconv"
	"strings"
)

// pathSegment is one dot-separated component of a lookup path, with an
// optional [i] selector.
type pathSegment struct {
	name     string
	index    int
	hasIndex bool
}

// parsePath splits "moov.trak[1].mdia.mdhd.timeScale" into segments.
func parsePath(path string) ([]pathSegment, bool) {
	if path == "" {
		return nil, false
	}
	parts := strings.Split(path, ".")
	segs := make([]pathSegment, 0, len(parts))
	for _, part := range parts {
		seg := pathSegment{name: part}
		if i := strings.IndexByte(part, '['); i >= 0 {
			if !strings.HasSuffix(part, "]") {
				return nil, false
			}
			n, err := strconv.Atoi(part[i+1 : len(part)-1])
			if err != nil || n < 0 {
				return nil, false
			}
			seg = pathSegment{name: part[:i], index: n, hasIndex: true}
		}
		if seg.name == "" {
			return nil, false
		}
		segs = append(segs, seg)
	}
	return segs, true
}

// matchName compares property names, ignoring case.
func (seg pathSegment) matchName(name string) bool {
	return strings.EqualFold(seg.name, name)
}

// matchType compares atom types exactly. Trailing spaces of the type may
// be left out, so "url" matches 'url '.
func (seg pathSegment) matchType(t BoxType) bool {
	if seg.name == "*" {
		return true
	}
	s := t.String()
	return seg.name == s || seg.name == strings.TrimRight(s, " ")
}

// FindAtom returns the descendant named by a dotted path of atom types
// relative to a's children, or nil. "[i]" picks the i-th child of that type
// and "*" matches any type.
func (a *Atom) FindAtom(path string) *Atom {
	segs, ok := parsePath(path)
	if !ok {
		return nil
	}
	return a.findAtom(segs)
}

func (a *Atom) findAtom(segs []pathSegment) *Atom {
	if len(segs) == 0 {
		return a
	}
	var found *Atom
	a.eachMatch(segs[0], func(c *Atom) bool {
		found = c.findAtom(segs[1:])
		return found != nil
	})
	return found
}

// eachMatch calls fn for the children matching seg until fn returns true.
func (a *Atom) eachMatch(seg pathSegment, fn func(c *Atom) bool) {
	n := 0
	for _, c := range a.children {
		if !seg.matchType(c.typ) {
			continue
		}
		if seg.hasIndex {
			if n == seg.index {
				fn(c)
				return
			}
			n++
			continue
		}
		if fn(c) {
			return
		}
	}
}

// FindProperty resolves a path whose leading segments name descendant
// atoms and whose remainder names a property, for example
// "moov.trak.mdia.mdhd.timeScale" or "moov.iods.ODProfileLevelId". The
// returned index selects the value for properties with several values.
func (a *Atom) FindProperty(path string) (Property, int) {
	segs, ok := parsePath(path)
	if !ok {
		return nil, 0
	}
	return a.findProperty(segs)
}

func (a *Atom) findProperty(segs []pathSegment) (Property, int) {
	var (
		found Property
		index int
	)
	if len(segs) > 1 {
		a.eachMatch(segs[0], func(c *Atom) bool {
			found, index = c.findProperty(segs[1:])
			return found != nil
		})
		if found != nil {
			return found, index
		}
	}
	return findProperty(a.props, segs)
}

// Path returns the dotted types from the top-level atom down to a.
func (a *Atom) Path() string {
	if a.isRoot() {
		return ""
	}
	var parts []string
	for x := a; x != nil && !x.isRoot(); x = x.parent {
		parts = append(parts, x.typ.String())
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}
