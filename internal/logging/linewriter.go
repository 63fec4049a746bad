package logging

import (
	"bytes"
	"sync"

	"github.com/rs/zerolog"
)

// LineWriter turns a subprocess output stream into one log event per line.
// A carriage return also ends a line, so progress bars that redraw in place
// log each frame instead of growing one event. Partial lines are buffered
// until a line break arrives or Flush is called.
type LineWriter struct {
	mu     sync.Mutex
	log    zerolog.Logger
	level  zerolog.Level
	stream string
	buf    []byte
}

// NewLineWriter returns a writer logging each line at level with a "stream" field.
func NewLineWriter(l zerolog.Logger, level zerolog.Level, stream string) *LineWriter {
	return &LineWriter{log: l, level: level, stream: stream}
}

func (lw *LineWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	lw.buf = append(lw.buf, p...)
	for {
		idx := bytes.IndexAny(lw.buf, "\r\n")
		if idx < 0 {
			break
		}
		lw.emit(lw.buf[:idx])
		lw.buf = lw.buf[idx+1:]
	}
	return len(p), nil
}

// Flush logs any buffered partial line.
func (lw *LineWriter) Flush() {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if len(lw.buf) > 0 {
		lw.emit(lw.buf)
		lw.buf = nil
	}
}

func (lw *LineWriter) emit(line []byte) {
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}
	lw.log.WithLevel(lw.level).Str("stream", lw.stream).Msg(string(line))
}
