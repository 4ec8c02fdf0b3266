package mp4atom

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// Dump prints the atom, its properties and its children, one line each,
// indented two spaces per level. Each atom line carries the dotted path of
// the atom. At verbosity 0 tables print only their length, at 1 every
// entry, and at 2 implicit properties as well.
func (a *Atom) Dump(w io.Writer, indent, verbosity int) {
	if a.isRoot() {
		for _, c := range a.children {
			c.Dump(w, indent, verbosity)
		}
		a.dumpTrailer(w, indent)
		return
	}

	dumpIndent(w, indent)
	fmt.Fprintf(w, "%s: %s", a.Path(), quoteType(a.typ))
	if a.typ == TypeUUID {
		fmt.Fprintf(w, " %s", a.extended)
	}
	if a.Size() > 0 {
		fmt.Fprintf(w, " %s at %d", humanize.IBytes(uint64(a.Size())), a.start)
	}
	if a.unknown {
		io.WriteString(w, " (unknown)")
	}
	io.WriteString(w, "\n")

	if a.spec.payload {
		dumpIndent(w, indent+1)
		fmt.Fprintf(w, "payload = %s at %d\n", humanize.IBytes(uint64(a.span.Size)), a.span.Offset)
	}
	for _, p := range a.props {
		p.Dump(w, indent+1, verbosity, 0)
	}
	for _, c := range a.children {
		c.Dump(w, indent+1, verbosity)
	}
	a.dumpTrailer(w, indent+1)
}

func (a *Atom) dumpTrailer(w io.Writer, indent int) {
	if len(a.trailer) == 0 {
		return
	}
	dumpIndent(w, indent)
	fmt.Fprintf(w, "<%d trailing bytes>\n", len(a.trailer))
}
