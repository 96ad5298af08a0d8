package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// WithReplayLogger sets the logger for the replay source
func WithReplayLogger(logger *slog.Logger) func(r *Replay) {
	return func(r *Replay) {
		r.logger = logger.With(slog.String("source", "replay"))
	}
}

// WithInterval paces the replay to one vector per interval.
func WithInterval(interval time.Duration) func(r *Replay) {
	return func(r *Replay) {
		r.interval = interval
	}
}

// WithLoop rewinds the input at EOF instead of failing. The input must be
// an io.Seeker.
func WithLoop(loop bool) func(r *Replay) {
	return func(r *Replay) {
		r.loop = loop
	}
}

// Replay reads a session log back, one vector per line. Blank lines are
// skipped and malformed ones fail the source after ParseErrorsThreshold
// consecutive errors.
type Replay struct {
	r       io.Reader
	scanner *bufio.Scanner

	interval time.Duration
	ticker   *time.Ticker
	loop     bool
	lines    int

	logger *slog.Logger
}

// NewReplay creates a replay source over r.
func NewReplay(r io.Reader, options ...func(r *Replay)) (*Replay, error) {
	rp := Replay{
		r:      r,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&rp)
	}

	if _, ok := r.(io.Seeker); rp.loop && !ok {
		return nil, errors.New("looping replay requires a seekable input")
	}

	rp.scanner = newScanner(r)
	if rp.interval > 0 {
		rp.ticker = time.NewTicker(rp.interval)
	}

	return &rp, nil
}

// Read implements Source. Without looping, the end of the input is returned
// as io.EOF.
func (r *Replay) Read(ctx context.Context) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.ticker != nil {
		select {
		case <-r.ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var parseErrors uint8
	rewound := false
	for {
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrBrokenPipe, err)
			}
			// an input without a single vector would rewind forever
			if !r.loop || rewound || r.lines == 0 {
				return nil, io.EOF
			}
			if err := r.rewind(); err != nil {
				return nil, err
			}
			rewound = true
			continue
		}

		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}

		vector, err := ParseVector(line)
		if err != nil {
			parseErrors++
			r.logger.Warn(fmt.Sprintf("error parsing magnitudes: %s", err.Error()))

			if parseErrors >= ParseErrorsThreshold {
				return nil, ErrTooManyParseErrors
			}
			continue
		}

		r.lines++
		return vector, nil
	}
}

// Close stops the pacing ticker.
func (r *Replay) Close() error {
	if r.ticker != nil {
		r.ticker.Stop()
	}
	return nil
}

func (r *Replay) rewind() error {
	if _, err := r.r.(io.Seeker).Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding replay: %w", err)
	}
	r.scanner = newScanner(r.r)
	r.logger.Debug("replay rewound", slog.Int("vectors", r.lines))
	return nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, maxLineSize)
	return scanner
}
