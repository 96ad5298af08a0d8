package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/live-spectrogram/internal/telemetry"
)

// reportTelemetry logs a telemetry snapshot every interval until ctx is done.
func reportTelemetry(ctx context.Context, provider telemetry.Provider, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logger.Info("render telemetry", telemetryAttrs(provider.Get())...)
		case <-ctx.Done():
			return
		}
	}
}

func telemetryAttrs(t *telemetry.Telemetry) []any {
	attrs := []any{
		slog.Uint64("session", t.Session),
		slog.String("started", humanize.Time(t.SessionStart)),
		slog.Group("frames",
			slog.String("rendered", humanize.Comma(int64(t.Frames))),
			slog.String("presented", humanize.Comma(int64(t.Presented))),
			slog.String("skipped", humanize.Comma(int64(t.Skipped))),
		),
		slog.Int("cursor", t.Cursor),
		slog.Float64("max", t.GlobalMax),
		slog.Uint64("resets", t.Resets),
		slog.Group("log",
			slog.Bool("enabled", t.LogEnabled),
			slog.String("size", humanize.Bytes(uint64(max(t.LogBytes, 0)))),
		),
	}
	if t.Dropped > 0 {
		attrs = append(attrs, slog.String("archiveDropped", humanize.Comma(int64(t.Dropped))))
	}
	return attrs
}
