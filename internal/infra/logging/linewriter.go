package logging

import (
	"bytes"
	"sync"

	"github.com/rs/zerolog"
)

// LineWriter turns subprocess output into per-line zerolog events.
// It keeps the last few lines so callers can report them on failure.
type LineWriter struct {
	logger *zerolog.Logger
	level  zerolog.Level
	keep   int

	mu   sync.Mutex
	buf  []byte
	tail []string
}

func NewLineWriter(logger *zerolog.Logger, level zerolog.Level, keep int) *LineWriter {
	return &LineWriter{logger: logger, level: level, keep: keep}
}

func (lw *LineWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	lw.buf = append(lw.buf, p...)
	for {
		i := bytes.IndexAny(lw.buf, "\r\n")
		if i < 0 {
			break
		}
		lw.emit(string(lw.buf[:i]))
		lw.buf = lw.buf[i+1:]
	}
	return len(p), nil
}

// Flush emits a trailing line without newline.
func (lw *LineWriter) Flush() {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if len(lw.buf) > 0 {
		lw.emit(string(lw.buf))
		lw.buf = nil
	}
}

// Tail returns the most recent lines, oldest first.
func (lw *LineWriter) Tail() []string {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	out := make([]string, len(lw.tail))
	copy(out, lw.tail)
	return out
}

func (lw *LineWriter) emit(line string) {
	if line == "" {
		return
	}
	lw.logger.WithLevel(lw.level).Msg(line)
	if lw.keep <= 0 {
		return
	}
	lw.tail = append(lw.tail, line)
	if len(lw.tail) > lw.keep {
		lw.tail = lw.tail[len(lw.tail)-lw.keep:]
	}
}
