package app

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
)

const defaultSnapshotInterval = 5 * time.Second

// frameSource provides the last presented frame. *surface.Offscreen
// satisfies it.
type frameSource interface {
	Snapshot() *image.RGBA
	Presented() uint64
}

// snapshotter writes the presented frame to a file periodically and once
// more when stopped.
type snapshotter struct {
	frames   frameSource
	path     string
	format   ImageFormat
	quality  int
	interval time.Duration
	logger   *slog.Logger
}

func newSnapshotter(frames frameSource, config *SnapshotConfig, logger *slog.Logger) *snapshotter {
	interval := time.Duration(config.Interval)
	if interval <= 0 {
		interval = defaultSnapshotInterval
	}

	return &snapshotter{
		frames:   frames,
		path:     config.Path,
		format:   config.Format,
		quality:  config.Quality,
		interval: interval,
		logger:   logger.With(slog.String("component", "snapshot")),
	}
}

func (s *snapshotter) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.write(); err != nil {
				s.logger.Warn(err.Error())
			}

		case <-ctx.Done():
			return s.write()
		}
	}
}

// write replaces the snapshot file atomically. Nothing is written before the
// first frame is presented.
func (s *snapshotter) write() (err error) {
	if s.frames.Presented() == 0 {
		return nil
	}
	img := s.frames.Snapshot()
	if img == nil {
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	switch s.format {
	case ImageJPEG:
		err = jpeg.Encode(tmp, img, &jpeg.Options{
			Quality: s.quality,
		})

	default:
		err = png.Encode(tmp, img)
	}
	if err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	info, err := tmp.Stat()
	if err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	s.logger.Debug("snapshot written",
		slog.String("path", s.path),
		slog.String("size", humanize.Bytes(uint64(info.Size()))))
	return nil
}
