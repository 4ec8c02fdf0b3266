package mp4atom

import (
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// NewLogger returns a logfmt logger writing to w, filtered according to
// verbosity: 0 keeps warnings and errors, 1 adds info, 2 and above adds
// debug.
func NewLogger(w io.Writer, verbosity int) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	var opt level.Option
	switch {
	case verbosity >= 2:
		opt = level.AllowDebug()
	case verbosity == 1:
		opt = level.AllowInfo()
	default:
		opt = level.AllowWarn()
	}
	return level.NewFilter(logger, opt)
}

func (s *Stream) warn(keyvals ...interface{}) {
	level.Warn(s.logger).Log(s.withPos(keyvals)...)
}

func (s *Stream) debug(keyvals ...interface{}) {
	level.Debug(s.logger).Log(s.withPos(keyvals)...)
}

func (s *Stream) logError(keyvals ...interface{}) {
	level.Error(s.logger).Log(s.withPos(keyvals)...)
}

func (s *Stream) withPos(keyvals []interface{}) []interface{} {
	kv := make([]interface{}, 0, len(keyvals)+4)
	kv = append(kv, "stream", s.name, "pos", s.pos)
	return append(kv, keyvals...)
}
