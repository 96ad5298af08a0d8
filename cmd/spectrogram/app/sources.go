package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/roman-kulish/live-spectrogram/internal/source"
	"github.com/roman-kulish/live-spectrogram/internal/storage"
)

// createSource builds the configured source. The returned cleanup stops it
// and releases its resources.
func createSource(ctx context.Context, config *Config, logger *slog.Logger) (source.Source, func(), error) {
	switch config.Source.Type {
	case SourceSynthetic:
		c := config.Source.Synthetic
		src := source.NewSynthetic(source.SyntheticConfig{
			NumBins:    c.Bins,
			Reflectors: c.Reflectors,
			NoiseFloor: c.NoiseFloor,
			Seed:       seed(c.Seed),
			Interval:   time.Duration(c.Interval),
		})
		return src, func() { _ = src.Close() }, nil

	case SourceCommand:
		c := config.Source.Command
		options := []func(*source.Command){source.WithCommandLogger(logger)}
		if c.ParseErrorsThreshold > 0 {
			options = append(options, source.WithParseErrorsThreshold(c.ParseErrorsThreshold))
		}

		src, err := source.NewCommand(c.Program, c.Args, options...)
		if err != nil {
			return nil, nil, fmt.Errorf("creating command source: %w", err)
		}
		if err = src.Start(ctx); err != nil {
			return nil, nil, fmt.Errorf("starting command source: %w", err)
		}
		return src, src.Stop, nil

	case SourceReplay:
		c := config.Source.Replay
		f, err := os.Open(c.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening replay file: %w", err)
		}

		src, err := source.NewReplay(f,
			source.WithReplayLogger(logger),
			source.WithInterval(time.Duration(c.Interval)),
			source.WithLoop(c.Loop))
		if err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("creating replay source: %w", err)
		}
		return src, func() { _ = src.Close(); _ = f.Close() }, nil

	case SourceArchive:
		c := config.Source.Archive
		store := storage.NewSqliteStore(config.Storage.Path)

		frames, err := store.ReadFrames(ctx, c.SessionID)
		if err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("opening archived session %d: %w", c.SessionID, err)
		}

		sess := frames.Session()
		logger.Info("replaying archived session",
			slog.Int64("session", sess.ID),
			slog.String("source", sess.Source),
			slog.Int("bins", sess.NumBins),
			slog.Time("started", sess.StartTime))

		options := []func(*source.Archive){source.WithArchiveInterval(time.Duration(c.Interval))}
		if c.RecordedTiming {
			options = append(options, source.WithRecordedTiming())
		}
		return source.NewArchive(frames, options...), func() { _ = frames.Close(); _ = store.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("creating source: unknown type '%s'", config.Source.Type)
	}
}

func seed(configured uint64) uint64 {
	if configured != 0 {
		return configured
	}
	return uint64(time.Now().UnixNano())
}

// isEndOfInput reports whether a source finished rather than failed.
func isEndOfInput(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, source.ErrClosed)
}
