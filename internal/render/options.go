package render

import (
	"image/color"
	"log/slog"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/roman-kulish/live-spectrogram/internal/colormap"
	"github.com/roman-kulish/live-spectrogram/internal/logsink"
	"github.com/roman-kulish/live-spectrogram/internal/normalize"
)

// WithLogger sets the logger for the loop
func WithLogger(logger *slog.Logger) func(l *Loop) {
	return func(l *Loop) {
		l.logger = logger.With(slog.String("component", "render"))
	}
}

// WithMapper sets the color mapper. The default is the viridis palette.
func WithMapper(mapper *colormap.Mapper) func(l *Loop) {
	return func(l *Loop) {
		l.mapper = mapper
	}
}

// WithNormalization selects the normalization denominator.
func WithNormalization(mode normalize.Mode) func(l *Loop) {
	return func(l *Loop) {
		l.mode = mode
	}
}

// WithSessionLog mirrors every raw vector to the given log sink.
func WithSessionLog(sink *logsink.Logger) func(l *Loop) {
	return func(l *Loop) {
		l.sink = sink
	}
}

// WithRecorder forwards every rendered frame to the recorder.
func WithRecorder(recorder Recorder) func(l *Loop) {
	return func(l *Loop) {
		l.recorder = recorder
	}
}

// WithOverlay draws annotations over every presented frame.
func WithOverlay(overlay Overlay) func(l *Loop) {
	return func(l *Loop) {
		l.overlay = overlay
	}
}

// WithSignal shares a reset signal with control code.
func WithSignal(signal *Signal) func(l *Loop) {
	return func(l *Loop) {
		l.reset = signal
	}
}

// WithLeftMargin reserves pixels on the left of the surface for labels.
func WithLeftMargin(px int) func(l *Loop) {
	return func(l *Loop) {
		l.leftMargin = max(px, 0)
	}
}

// WithColumns fixes the raster width. By default it follows the surface width.
func WithColumns(columns int) func(l *Loop) {
	return func(l *Loop) {
		l.columns = max(columns, 0)
	}
}

// WithBackground sets the color of empty cells and the scroll front.
func WithBackground(c color.RGBA) func(l *Loop) {
	return func(l *Loop) {
		l.background = c
	}
}

// WithInterpolator sets how the raster is scaled onto the surface.
func WithInterpolator(scaler xdraw.Scaler) func(l *Loop) {
	return func(l *Loop) {
		l.scaler = scaler
	}
}

// WithAcquireBackoff sets the first and the largest delay between attempts
// to acquire the surface during setup.
func WithAcquireBackoff(initial, maximum time.Duration) func(l *Loop) {
	return func(l *Loop) {
		if initial > 0 {
			l.acquireInterval = initial
		}
		if maximum >= l.acquireInterval {
			l.acquireMaxInterval = maximum
		}
	}
}

// WithAcquireTimeout bounds the setup wait for the surface. Zero waits
// until the context is done.
func WithAcquireTimeout(timeout time.Duration) func(l *Loop) {
	return func(l *Loop) {
		l.acquireTimeout = timeout
	}
}

// WithSourceName labels sessions with the kind of source feeding the loop.
func WithSourceName(name string) func(l *Loop) {
	return func(l *Loop) {
		l.sourceName = name
	}
}
