package source

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/roman-kulish/live-spectrogram/internal/spectrum"
)

// FrameIterator yields archived frames in order. storage.FrameReader
// satisfies it.
type FrameIterator interface {
	Next(ctx context.Context) bool
	Current() *spectrum.Frame
	Error() error
}

// WithArchiveInterval paces the archive to one frame per interval.
func WithArchiveInterval(interval time.Duration) func(a *Archive) {
	return func(a *Archive) {
		a.interval = interval
	}
}

// WithRecordedTiming paces the archive by the gaps between recorded frame
// timestamps. It takes precedence over WithArchiveInterval.
func WithRecordedTiming() func(a *Archive) {
	return func(a *Archive) {
		a.recordedTiming = true
	}
}

// Archive replays frames of an archived session.
type Archive struct {
	frames FrameIterator

	interval       time.Duration
	recordedTiming bool
	previous       time.Time
}

// NewArchive creates an archive source over frames.
func NewArchive(frames FrameIterator, options ...func(a *Archive)) *Archive {
	a := Archive{frames: frames}

	for _, option := range options {
		option(&a)
	}

	return &a
}

// Read implements Source. The end of the archive is returned as io.EOF.
func (a *Archive) Read(ctx context.Context) ([]float64, error) {
	if !a.frames.Next(ctx) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := a.frames.Error(); err != nil {
			return nil, fmt.Errorf("reading archive: %w", err)
		}
		return nil, io.EOF
	}

	frame := a.frames.Current()
	if err := a.wait(ctx, frame.Timestamp); err != nil {
		return nil, err
	}

	return frame.Magnitudes, nil
}

func (a *Archive) wait(ctx context.Context, timestamp time.Time) error {
	delay := a.interval
	if a.recordedTiming {
		delay = 0
		if !a.previous.IsZero() {
			delay = timestamp.Sub(a.previous)
		}
		a.previous = timestamp
	}
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
