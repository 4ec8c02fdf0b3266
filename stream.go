package mp4atom

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/spf13/afero"
	"github.com/spf13/afero/mem"
)

var be = binary.BigEndian

const (
	uint32Max = 1<<32 - 1

	// maxMpegLength is the largest value a 4-byte MPEG-4 length can hold.
	maxMpegLength = 1<<28 - 1

	copyChunkSize = 64 << 10
)

// Stream is the random-access byte stream every Read and Write operates on.
// It tracks the current position, carries the logger and configuration, and
// holds the bit cursors used by bitfield properties.
type Stream struct {
	rs     io.ReadSeeker
	name   string
	pos    int64
	logger log.Logger
	cfg    Config

	// limit is the end of the atom or descriptor being read; reads may
	// not cross it. Zero means unbounded.
	limit int64

	rbits uint8 // unread bits left in rbuf
	rbuf  uint8
	wbits uint8 // pending bits in wbuf
	wbuf  uint8
}

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithLogger installs the logger used for warnings and debug traces.
func WithLogger(logger log.Logger) StreamOption {
	return func(s *Stream) { s.logger = logger }
}

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) StreamOption {
	return func(s *Stream) { s.cfg = cfg }
}

// WithName sets the name reported in log lines.
func WithName(name string) StreamOption {
	return func(s *Stream) { s.name = name }
}

// NewStream wraps rs. Writing requires rs to implement io.Writer as well.
func NewStream(rs io.ReadSeeker, opts ...StreamOption) *Stream {
	s := &Stream{
		rs:     rs,
		name:   "stream",
		logger: log.NewNopLogger(),
		cfg:    DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if pos, err := rs.Seek(0, io.SeekCurrent); err == nil {
		s.pos = pos
	}
	return s
}

// NewMemStream returns an empty in-memory stream.
func NewMemStream(opts ...StreamOption) *Stream {
	f := mem.NewFileHandle(mem.CreateFile("mem"))
	return NewStream(f, append([]StreamOption{WithName("mem")}, opts...)...)
}

// OpenStream opens an existing file on fs for reading and writing.
func OpenStream(fs afero.Fs, path string, opts ...StreamOption) (*Stream, error) {
	f, err := fs.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		f, err = fs.Open(path)
		if err != nil {
			return nil, Error.Wrap(err)
		}
	}
	return NewStream(f, append([]StreamOption{WithName(path)}, opts...)...), nil
}

// CreateStream creates or truncates a file on fs.
func CreateStream(fs afero.Fs, path string, opts ...StreamOption) (*Stream, error) {
	f, err := fs.Create(path)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return NewStream(f, append([]StreamOption{WithName(path)}, opts...)...), nil
}

// derive returns an in-memory stream sharing the logger and configuration.
func (s *Stream) derive() *Stream {
	return NewMemStream(WithLogger(s.logger), WithConfig(s.cfg), WithName(s.name))
}

// Close closes the underlying stream if it is an io.Closer.
func (s *Stream) Close() error {
	if c, ok := s.rs.(io.Closer); ok {
		return Error.Wrap(c.Close())
	}
	return nil
}

// Config returns the configuration the stream was created with.
func (s *Stream) Config() Config { return s.cfg }

// Logger returns the stream's logger.
func (s *Stream) Logger() log.Logger { return s.logger }

// Position returns the current byte offset.
func (s *Stream) Position() int64 { return s.pos }

// SetPosition seeks to an absolute offset and clears the read bit cursor.
func (s *Stream) SetPosition(pos int64) error {
	if _, err := s.rs.Seek(pos, io.SeekStart); err != nil {
		return Error.Wrap(err)
	}
	s.pos = pos
	s.rbits = 0
	return nil
}

// Size returns the total length of the stream.
func (s *Stream) Size() (int64, error) {
	end, err := s.rs.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, Error.Wrap(err)
	}
	if _, err := s.rs.Seek(s.pos, io.SeekStart); err != nil {
		return 0, Error.Wrap(err)
	}
	return end, nil
}

// Bytes returns the entire stream contents. The position is preserved.
func (s *Stream) Bytes() ([]byte, error) {
	if _, err := s.rs.Seek(0, io.SeekStart); err != nil {
		return nil, Error.Wrap(err)
	}
	b, err := io.ReadAll(s.rs)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if _, err := s.rs.Seek(s.pos, io.SeekStart); err != nil {
		return nil, Error.Wrap(err)
	}
	return b, nil
}

// limitTo bounds reads to end, or to the current limit if that is
// tighter, until the returned func restores the previous bound.
func (s *Stream) limitTo(end int64) func() {
	prev := s.limit
	if prev == 0 || end < prev {
		s.limit = end
	}
	return func() { s.limit = prev }
}

// remaining returns the bytes left before the read limit, or false when
// no limit is in force.
func (s *Stream) remaining() (int64, bool) {
	if s.limit == 0 {
		return 0, false
	}
	return s.limit - s.pos, true
}

// ReadBytes reads exactly n bytes. A short read is a structural error, as
// is a read crossing the end of the atom or descriptor being read.
func (s *Stream) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, StructureError.New("negative read of %d bytes at %d", n, s.pos)
	}
	if left, ok := s.remaining(); ok && int64(n) > left {
		return nil, StructureError.New("read of %d bytes at %d crosses the end at %d", n, s.pos, s.limit)
	} else if !ok && n > copyChunkSize {
		size, err := s.Size()
		if err != nil {
			return nil, err
		}
		if int64(n) > size-s.pos {
			return nil, StructureError.New("short read at %d: wanted %d bytes, %d left", s.pos, n, size-s.pos)
		}
	}
	b := make([]byte, n)
	got, err := io.ReadFull(s.rs, b)
	s.pos += int64(got)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, StructureError.New("short read at %d: wanted %d bytes, got %d", s.pos-int64(got), n, got)
		}
		return nil, Error.Wrap(err)
	}
	return b, nil
}

// PeekUint8 returns the next byte without consuming it.
func (s *Stream) PeekUint8() (uint8, error) {
	pos := s.pos
	v, err := s.ReadUint8()
	if err != nil {
		return 0, err
	}
	return v, s.SetPosition(pos)
}

// ReadUint8 reads one byte.
func (s *Stream) ReadUint8() (uint8, error) {
	b, err := s.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadUint16 reads a big-endian uint16.
func (s *Stream) ReadUint16() (uint16, error) {
	b, err := s.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return be.Uint16(b), nil
}

// ReadUint24 reads a big-endian 24-bit value.
func (s *Stream) ReadUint24() (uint32, error) {
	b, err := s.ReadBytes(3)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), nil
}

// ReadUint32 reads a big-endian uint32.
func (s *Stream) ReadUint32() (uint32, error) {
	b, err := s.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return be.Uint32(b), nil
}

// ReadUint64 reads a big-endian uint64.
func (s *Stream) ReadUint64() (uint64, error) {
	b, err := s.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return be.Uint64(b), nil
}

// ReadUint reads a big-endian unsigned integer of size bytes (1 to 8).
func (s *Stream) ReadUint(size int) (uint64, error) {
	b, err := s.ReadBytes(size)
	if err != nil {
		return 0, err
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, nil
}

// ReadBits reads n bits (1 to 64), most significant bit first.
func (s *Stream) ReadBits(n int) (uint64, error) {
	var v uint64
	for i := 0; i < n; i++ {
		if s.rbits == 0 {
			b, err := s.ReadUint8()
			if err != nil {
				return 0, err
			}
			s.rbuf = b
			s.rbits = 8
		}
		s.rbits--
		v = v<<1 | uint64(s.rbuf>>s.rbits)&1
	}
	return v, nil
}

// FlushReadBits discards the unread bits of the current byte.
func (s *Stream) FlushReadBits() {
	s.rbits = 0
}

// ReadMpegLength reads the 1 to 4 byte MPEG-4 descriptor length: 7 bits per
// byte, high bit set on every byte but the last.
func (s *Stream) ReadMpegLength() (uint32, int, error) {
	var v uint32
	for i := 1; i <= 4; i++ {
		b, err := s.ReadUint8()
		if err != nil {
			return 0, i - 1, err
		}
		v = v<<7 | uint32(b&0x7f)
		if b&0x80 == 0 {
			return v, i, nil
		}
	}
	return v, 4, nil
}

func (s *Stream) writer() (io.Writer, error) {
	w, ok := s.rs.(io.Writer)
	if !ok {
		return nil, Error.New("stream %q is not writable", s.name)
	}
	return w, nil
}

// WriteBytes writes b. Pending bits must have been padded first.
func (s *Stream) WriteBytes(b []byte) error {
	if s.wbits != 0 {
		return Error.New("byte write at %d with %d pending bits", s.pos, s.wbits)
	}
	return s.writeRaw(b)
}

func (s *Stream) writeRaw(b []byte) error {
	w, err := s.writer()
	if err != nil {
		return err
	}
	n, err := w.Write(b)
	s.pos += int64(n)
	return Error.Wrap(err)
}

// WriteZeros writes n zero bytes.
func (s *Stream) WriteZeros(n int) error {
	return s.WriteBytes(make([]byte, n))
}

// WriteUint8 writes one byte.
func (s *Stream) WriteUint8(v uint8) error {
	return s.WriteBytes([]byte{v})
}

// WriteUint16 writes a big-endian uint16.
func (s *Stream) WriteUint16(v uint16) error {
	return s.WriteBytes(be.AppendUint16(nil, v))
}

// WriteUint24 writes the low 24 bits of v big-endian.
func (s *Stream) WriteUint24(v uint32) error {
	return s.WriteBytes([]byte{byte(v >> 16), byte(v >> 8), byte(v)})
}

// WriteUint32 writes a big-endian uint32.
func (s *Stream) WriteUint32(v uint32) error {
	return s.WriteBytes(be.AppendUint32(nil, v))
}

// WriteUint64 writes a big-endian uint64.
func (s *Stream) WriteUint64(v uint64) error {
	return s.WriteBytes(be.AppendUint64(nil, v))
}

// WriteUint writes the low size bytes of v big-endian.
func (s *Stream) WriteUint(v uint64, size int) error {
	b := make([]byte, size)
	for i := size - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return s.WriteBytes(b)
}

// WriteBits writes the low n bits of v, most significant first. A byte is
// emitted each time eight bits have accumulated.
func (s *Stream) WriteBits(v uint64, n int) error {
	for i := n - 1; i >= 0; i-- {
		s.wbuf = s.wbuf<<1 | uint8(v>>uint(i))&1
		s.wbits++
		if s.wbits == 8 {
			b := s.wbuf
			s.wbuf, s.wbits = 0, 0
			if err := s.writeRaw([]byte{b}); err != nil {
				return err
			}
		}
	}
	return nil
}

// PadWriteBits fills the rest of a partially written byte with pad bits.
func (s *Stream) PadWriteBits(pad uint8) error {
	if s.wbits == 0 {
		return nil
	}
	n := 8 - int(s.wbits)
	fill := uint64(0)
	if pad != 0 {
		fill = 1<<uint(n) - 1
	}
	return s.WriteBits(fill, n)
}

// WriteMpegLength writes v as an MPEG-4 descriptor length. Unless compact
// is set the fixed 4-byte form is used so the field can be backpatched.
func (s *Stream) WriteMpegLength(v uint32, compact bool) error {
	width := 4
	if compact {
		width = mpegLengthWidth(v)
	}
	return s.writeMpegLength(v, width)
}

func (s *Stream) writeMpegLength(v uint32, width int) error {
	if v > maxMpegLength {
		return Error.New("descriptor length %d exceeds %d", v, maxMpegLength)
	}
	if mpegLengthWidth(v) > width {
		return Error.New("descriptor length %d does not fit in %d bytes", v, width)
	}
	b := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		b[i] = byte(v & 0x7f)
		if i != width-1 {
			b[i] |= 0x80
		}
		v >>= 7
	}
	return s.WriteBytes(b)
}

func mpegLengthWidth(v uint32) int {
	switch {
	case v <= 0x7f:
		return 1
	case v <= 0x3fff:
		return 2
	case v <= 0x1fffff:
		return 3
	default:
		return 4
	}
}

// copyTo copies n bytes starting at offset in s to the current position of
// dst, in fixed-size chunks.
func (s *Stream) copyTo(dst *Stream, offset, n int64) error {
	dpos := dst.Position()
	for n > 0 {
		chunk := min(int64(copyChunkSize), n)
		if err := s.SetPosition(offset); err != nil {
			return err
		}
		b, err := s.ReadBytes(int(chunk))
		if err != nil {
			return err
		}
		if err := dst.SetPosition(dpos); err != nil {
			return err
		}
		if err := dst.WriteBytes(b); err != nil {
			return err
		}
		offset += chunk
		dpos += chunk
		n -= chunk
	}
	return nil
}
