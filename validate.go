package mp4atom

import (
	"github.com/zeebo/errs"
)

// Validate walks the tree under root and reports every structural finding:
// missing required children, repeated single children, table counts that
// disagree with their rows and missing mandatory descriptors. Under the
// strict count policy, entry counts that disagree with the number of child
// atoms are reported too. The result combines all findings into one
// ValidationError, or is nil.
func Validate(root *Atom, cfg Config) error {
	var group errs.Group
	validateAtom(root, cfg, &group)
	return group.Err()
}

func validateAtom(a *Atom, cfg Config, group *errs.Group) {
	where := a.Path()
	if where == "" {
		where = "root"
	}
	for _, info := range a.expected {
		n := a.countChildren(info.typ)
		if info.mandatory && n == 0 {
			group.Add(ValidationError.New("%s: missing required child %s", where, quoteType(info.typ)))
		}
		if info.onlyOne && n > 1 {
			group.Add(ValidationError.New("%s: %d %s children, at most one allowed", where, n, quoteType(info.typ)))
		}
	}
	if cfg.CountPolicy == CountStrict && (a.typ == TypeStsd || a.typ == TypeDref) {
		if p := a.intProp("entryCount"); p != nil && p.Value(0) != uint64(len(a.children)) {
			group.Add(ValidationError.New("%s: entryCount is %d but %d entries are present", where, p.Value(0), len(a.children)))
		}
	}
	validateProperties(where, a.props, group)
	for _, c := range a.children {
		validateAtom(c, cfg, group)
	}
}

func validateProperties(where string, props []Property, group *errs.Group) {
	for _, p := range props {
		if p.Implicit() {
			continue
		}
		switch p := p.(type) {
		case *TableProperty:
			if n := p.Len(); !p.count.Implicit() && p.count.Value(0) != uint64(n) {
				group.Add(ValidationError.New("%s: table %q counts %d entries but holds %d", where, p.Name(), p.count.Value(0), n))
			}
		case *DescriptorProperty:
			if p.mandatory && len(p.descriptors) == 0 {
				group.Add(ValidationError.New("%s: missing mandatory descriptor for %s", where, p.tagRange()))
			}
			if p.onlyOne && len(p.descriptors) > 1 {
				group.Add(ValidationError.New("%s: %d descriptors for %s, at most one allowed", where, len(p.descriptors), p.tagRange()))
			}
			for _, d := range p.descriptors {
				validateProperties(where+"/"+d.name, d.props, group)
			}
		}
	}
}
