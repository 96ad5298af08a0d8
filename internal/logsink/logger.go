package logsink

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

// File is the storage behind a Logger. *os.File satisfies it.
type File interface {
	io.Writer
	Truncate(size int64) error
	Seek(offset int64, whence int) (int64, error)
}

type state uint8

const (
	stateEnabled state = iota
	stateDisabled
)

// WithLogger sets the logger used to report the sink being disabled.
func WithLogger(logger *slog.Logger) func(l *Logger) {
	return func(l *Logger) {
		l.logger = logger.With(slog.String("component", "logsink"))
	}
}

// Logger mirrors raw magnitude vectors to a text file, one line per frame,
// each value printed with five decimals. It is best effort: the first failed
// write or truncate disables it for good and every later call is a no-op.
// A nil *Logger is valid and does nothing.
//
// Logger is owned by the render loop and is not safe for concurrent writes;
// Written and Enabled may be read from any goroutine.
type Logger struct {
	f      File
	state  atomic.Uint32
	line   []byte
	bytes  atomic.Int64
	logger *slog.Logger
}

// New wraps f. The file is used as is, without truncation.
func New(f File, options ...func(l *Logger)) *Logger {
	l := Logger{
		f:      f,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&l)
	}

	return &l
}

// Open creates or truncates the file at path and wraps it.
func Open(path string, options ...func(l *Logger)) (*Logger, *os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return New(f, options...), f, nil
}

// LogVector appends one frame. The whole line is written at once.
func (l *Logger) LogVector(vector []float64) {
	if !l.Enabled() {
		return
	}

	line := l.line[:0]
	for i, v := range vector {
		if i > 0 {
			line = append(line, ' ')
		}
		line = strconv.AppendFloat(line, v, 'f', 5, 64)
	}
	line = append(line, '\n')
	l.line = line

	n, err := l.f.Write(line)
	l.bytes.Add(int64(n))
	if err != nil {
		l.disable("writing frame", err)
	}
}

// Reset truncates the file to empty and rewinds it for the next session.
func (l *Logger) Reset() {
	if !l.Enabled() {
		return
	}

	if err := l.f.Truncate(0); err != nil {
		l.disable("truncating", err)
		return
	}
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		l.disable("rewinding", err)
		return
	}

	discarded := l.bytes.Swap(0)
	l.logger.Debug("log truncated", slog.String("discarded", humanize.Bytes(uint64(discarded))))
}

// Enabled reports whether the sink still accepts frames.
func (l *Logger) Enabled() bool {
	return l != nil && state(l.state.Load()) == stateEnabled
}

// Written returns the number of bytes written since the last reset.
func (l *Logger) Written() int64 {
	if l == nil {
		return 0
	}
	return l.bytes.Load()
}

func (l *Logger) disable(op string, err error) {
	l.state.Store(uint32(stateDisabled))
	l.logger.Error(fmt.Sprintf("session log disabled: %s: %s", op, err.Error()),
		slog.String("written", humanize.Bytes(uint64(l.bytes.Load()))))
}
