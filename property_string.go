package mp4atom

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// maxExpandedCountBytes bounds the 0xFF continuation run of an expanded
// count.
const maxExpandedCountBytes = 25

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// StringProperty is a text field in one of three wire shapes: a
// fixed-length field, a length-prefixed ("counted") string, or a
// null-terminated string. Unicode strings are UTF-16BE on the wire.
type StringProperty struct {
	property
	fixedLength int
	counted     bool
	expanded    bool
	unicode     bool
	// unterminated records that the read ended at the atom or
	// descriptor end without a terminator; Write then omits it.
	unterminated bool
	values       []string
}

// NewStringProperty returns a null-terminated string.
func NewStringProperty(name string) *StringProperty {
	return &StringProperty{property: property{name: name}, values: make([]string, 1)}
}

// NewCountedStringProperty returns a string with a one byte length prefix.
func NewCountedStringProperty(name string) *StringProperty {
	p := NewStringProperty(name)
	p.counted = true
	return p
}

// NewFixedStringProperty returns a string stored in exactly length bytes.
func NewFixedStringProperty(name string, length int) *StringProperty {
	p := NewStringProperty(name)
	p.fixedLength = length
	return p
}

func (p *StringProperty) Type() PropertyType { return StringType }

// SetCounted switches between counted and null-terminated forms.
func (p *StringProperty) SetCounted(counted bool) { p.counted = counted }

// SetExpandedCount lets the length prefix continue over 0xFF bytes.
func (p *StringProperty) SetExpandedCount(expanded bool) { p.expanded = expanded }

// SetFixedLength sets the field width in bytes; 0 removes it.
func (p *StringProperty) SetFixedLength(n int) { p.fixedLength = n }

// SetUnicode selects UTF-16BE encoding on the wire.
func (p *StringProperty) SetUnicode(unicode bool) { p.unicode = unicode }

func (p *StringProperty) Count() int { return len(p.values) }

func (p *StringProperty) SetCount(n int) {
	if n <= len(p.values) {
		p.values = p.values[:n]
		return
	}
	p.values = append(p.values, make([]string, n-len(p.values))...)
}

// Value returns the string at index.
func (p *StringProperty) Value(index int) string {
	if index < 0 || index >= len(p.values) {
		return ""
	}
	return p.values[index]
}

// SetValue stores v at index.
func (p *StringProperty) SetValue(v string, index int) {
	p.mustWritable()
	p.unterminated = false
	p.set(v, index)
}

func (p *StringProperty) set(v string, index int) {
	if index >= len(p.values) {
		p.SetCount(index + 1)
	}
	p.values[index] = v
}

func (p *StringProperty) Generate() {
	clear(p.values)
}

func (p *StringProperty) charSize() int {
	if p.unicode {
		return 2
	}
	return 1
}

func (p *StringProperty) decode(b []byte) (string, error) {
	if !p.unicode {
		return string(b), nil
	}
	v, err := utf16be.NewDecoder().Bytes(b)
	if err != nil {
		return "", Error.New("%q: %v", p.name, err)
	}
	return string(v), nil
}

func (p *StringProperty) encode(v string) ([]byte, error) {
	if !p.unicode {
		return []byte(v), nil
	}
	b, err := utf16be.NewEncoder().Bytes([]byte(v))
	if err != nil {
		return nil, Error.New("%q: %v", p.name, err)
	}
	return b, nil
}

func (p *StringProperty) Read(s *Stream, index int) error {
	if p.implicit {
		return nil
	}
	var (
		v   string
		err error
	)
	switch {
	case p.counted:
		v, err = p.readCounted(s)
	case p.fixedLength > 0:
		var b []byte
		if b, err = s.ReadBytes(p.fixedLength); err == nil {
			v, err = p.decode(b)
		}
	default:
		v, err = p.readTerminated(s)
	}
	if err != nil {
		return err
	}
	p.set(v, index)
	return nil
}

func (p *StringProperty) readCounted(s *Stream) (string, error) {
	start := s.Position()
	count := 0
	for i := 0; ; i++ {
		b, err := s.ReadUint8()
		if err != nil {
			return "", err
		}
		count += int(b)
		if !p.expanded || b != 0xff {
			break
		}
		if i == maxExpandedCountBytes-1 {
			return "", StructureError.New("%q: expanded count longer than %d bytes", p.name, maxExpandedCountBytes)
		}
	}
	n := count * p.charSize()
	if p.fixedLength > 0 && n > p.fixedLength-1 {
		s.warn("msg", "counted string longer than its field, truncating", "property", p.name, "count", count, "field", p.fixedLength)
		n = p.fixedLength - 1
	}
	b, err := s.ReadBytes(n)
	if err != nil {
		return "", err
	}
	if p.fixedLength > 0 {
		if err := s.SetPosition(start + int64(p.fixedLength)); err != nil {
			return "", err
		}
	}
	return p.decode(b)
}

func (p *StringProperty) readTerminated(s *Stream) (string, error) {
	var buf bytes.Buffer
	size := p.charSize()
	p.unterminated = false
	for {
		if left, ok := s.remaining(); ok && left < int64(size) {
			s.debug("msg", "string ends without a terminator", "property", p.name, "bytes", buf.Len())
			p.unterminated = true
			break
		}
		b, err := s.ReadBytes(size)
		if err != nil {
			return "", err
		}
		if b[0] == 0 && b[size-1] == 0 {
			break
		}
		buf.Write(b)
	}
	return p.decode(buf.Bytes())
}

func (p *StringProperty) Write(s *Stream, index int) error {
	if p.implicit {
		return nil
	}
	b, err := p.encode(p.Value(index))
	if err != nil {
		return err
	}
	switch {
	case p.counted:
		return p.writeCounted(s, b)
	case p.fixedLength > 0:
		field := make([]byte, p.fixedLength)
		copy(field, b)
		return s.WriteBytes(field)
	default:
		if err := s.WriteBytes(b); err != nil {
			return err
		}
		if p.unterminated {
			return nil
		}
		return s.WriteZeros(p.charSize())
	}
}

func (p *StringProperty) writeCounted(s *Stream, b []byte) error {
	if p.fixedLength > 0 && len(b) > p.fixedLength-1 {
		b = b[:p.fixedLength-1]
	}
	count := len(b) / p.charSize()
	if p.expanded {
		for ; count >= 0xff; count -= 0xff {
			if err := s.WriteUint8(0xff); err != nil {
				return err
			}
		}
	} else if count > 0xff {
		return Error.New("%q: string of %d characters does not fit a one byte count", p.name, count)
	}
	if err := s.WriteUint8(uint8(count)); err != nil {
		return err
	}
	if err := s.WriteBytes(b); err != nil {
		return err
	}
	if p.fixedLength > 0 {
		return s.WriteZeros(p.fixedLength - 1 - len(b))
	}
	return nil
}

func (p *StringProperty) Dump(w io.Writer, indent, verbosity, index int) {
	if p.implicit && verbosity < 2 {
		return
	}
	dumpIndent(w, indent)
	v := strings.TrimRight(p.Value(index), "\x00")
	fmt.Fprintf(w, "%s = %q\n", dumpName(p.name, index, p.Count() > 1 || index > 0), v)
}

func (p *StringProperty) find(path []pathSegment, index int) (Property, int, bool) {
	return p.findSelf(p, path, index)
}
