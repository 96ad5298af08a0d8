package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/roman-kulish/live-spectrogram/internal/colormap"
	"github.com/roman-kulish/live-spectrogram/internal/logsink"
	"github.com/roman-kulish/live-spectrogram/internal/normalize"
	"github.com/roman-kulish/live-spectrogram/internal/raster"
	"github.com/roman-kulish/live-spectrogram/internal/source"
	"github.com/roman-kulish/live-spectrogram/internal/spectrum"
	"github.com/roman-kulish/live-spectrogram/internal/surface"
	"github.com/roman-kulish/live-spectrogram/internal/telemetry"
)

const (
	DefaultLeftMargin         = 25
	DefaultAcquireInterval    = 5 * time.Millisecond
	DefaultAcquireMaxInterval = 250 * time.Millisecond
)

var (
	// ErrEmptyVector is returned when the source produces a zero-length vector
	ErrEmptyVector = errors.New("empty magnitude vector")

	// ErrBinCountMismatch is returned when a vector length differs from the session bin count
	ErrBinCountMismatch = errors.New("magnitude vector length changed")

	// ErrAlreadyRunning is returned by Run while another Run is active on the same loop
	ErrAlreadyRunning = errors.New("render loop is already running")

	// ErrSurfaceTimeout is returned when the surface does not become available during setup
	ErrSurfaceTimeout = errors.New("timed out waiting for the presentation surface")

	// DefaultBackground is the color of empty cells
	DefaultBackground = color.RGBA{A: 0xff}
)

// Recorder receives every rendered frame together with its session. It must
// not block the caller.
type Recorder interface {
	Record(session *spectrum.Session, frame spectrum.Frame)
}

// Overlay draws annotations on a canvas after the raster has been placed in
// the plot rectangle.
type Overlay interface {
	Draw(dst draw.Image, plot image.Rectangle) error
}

// session is the state scoped to one session. A reset replaces it.
type session struct {
	info    *spectrum.Session
	buffer  *raster.Buffer
	tracker *normalize.Tracker
	cursor  int
	frames  uint64
	column  []color.RGBA
}

// Loop turns magnitude vectors into a scrolling spectrogram on a surface.
// Run executes the whole pipeline on the calling goroutine; control code
// talks to it only through the reset Signal.
type Loop struct {
	source  source.Source
	surface surface.Surface
	reset   *Signal

	mapper   *colormap.Mapper
	mode     normalize.Mode
	sink     *logsink.Logger
	recorder Recorder
	overlay  Overlay
	scaler   xdraw.Scaler

	background color.RGBA
	leftMargin int
	columns    int
	sourceName string

	acquireInterval    time.Duration
	acquireMaxInterval time.Duration
	acquireTimeout     time.Duration

	logger *slog.Logger

	running  atomic.Bool
	sessions uint64

	mu    sync.Mutex
	stats telemetry.Telemetry
}

// NewLoop creates a loop reading from src and presenting to surf.
func NewLoop(src source.Source, surf surface.Surface, options ...func(l *Loop)) *Loop {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	l := Loop{
		source:             src,
		surface:            surf,
		mode:               normalize.Global,
		scaler:             xdraw.NearestNeighbor,
		background:         DefaultBackground,
		leftMargin:         DefaultLeftMargin,
		acquireInterval:    DefaultAcquireInterval,
		acquireMaxInterval: DefaultAcquireMaxInterval,
		logger:             logger,
	}

	for _, option := range options {
		option(&l)
	}

	if l.reset == nil {
		l.reset = NewSignal()
	}
	if l.mapper == nil {
		l.mapper = colormap.NewMapper(colormap.DefaultTheme)
	}

	return &l
}

// Signal returns the reset signal polled by the loop.
func (l *Loop) Signal() *Signal {
	return l.reset
}

// Run performs the setup and then renders frames until ctx is done, which
// returns nil, or until the source fails, which returns the source error.
// Surface and logging failures never end the loop.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)

	l.update(func(t *telemetry.Telemetry) { t.Running = true })
	defer l.update(func(t *telemetry.Telemetry) { t.Running = false })

	// the first vector tells the bin count and is rendered as the first frame
	pending, err := l.read(ctx)
	if err != nil {
		return l.exit(ctx, err)
	}
	numBins := len(pending)

	width, height, err := l.awaitSurface(ctx)
	if err != nil {
		return l.exit(ctx, err)
	}

	columns := width
	if l.columns > 0 {
		columns = l.columns
	}

	l.logger.Info("render loop started",
		slog.Int("bins", numBins),
		slog.Int("columns", columns),
		slog.Group("surface",
			slog.Int("width", width),
			slog.Int("height", height),
		),
		slog.String("normalization", string(l.mode)),
		slog.String("theme", string(l.mapper.Theme())))

	var sess *session
	for {
		if ctx.Err() != nil {
			return l.exit(ctx, ctx.Err())
		}

		// a request made before the first session has nothing to reset
		requested := l.reset.consume()
		if sess == nil || requested {
			reset := requested && sess != nil
			if sess, err = l.newSession(numBins, columns, reset); err != nil {
				return l.exit(ctx, err)
			}
		}

		vector := pending
		pending = nil
		if vector == nil {
			if vector, err = l.read(ctx); err != nil {
				return l.exit(ctx, err)
			}
		}
		if len(vector) != numBins {
			return l.exit(ctx, fmt.Errorf("%w: expected %d bins, got %d", ErrBinCountMismatch, numBins, len(vector)))
		}

		if err = l.renderFrame(sess, vector); err != nil {
			return l.exit(ctx, err)
		}
		l.present(sess)
	}
}

func (l *Loop) read(ctx context.Context) ([]float64, error) {
	vector, err := l.source.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading magnitudes: %w", err)
	}
	if len(vector) == 0 {
		return nil, ErrEmptyVector
	}
	return vector, nil
}

func (l *Loop) exit(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		l.logger.Info("render loop stopped")
		return nil
	}

	l.logger.Error(fmt.Sprintf("render loop terminated: %s", err.Error()))
	return err
}

// awaitSurface acquires and releases the surface once to learn its size,
// backing off between failed attempts.
func (l *Loop) awaitSurface(ctx context.Context) (width, height int, err error) {
	var deadline <-chan time.Time
	if l.acquireTimeout > 0 {
		timer := time.NewTimer(l.acquireTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	interval := l.acquireInterval
	for attempt := 1; ; attempt++ {
		if canvas, ok := l.surface.TryAcquire(); ok {
			b := canvas.Bounds()
			l.surface.Present(canvas)
			if b.Dx() > 0 && b.Dy() > 0 {
				return b.Dx(), b.Dy(), nil
			}
		}

		if attempt == 1 {
			l.logger.Debug("waiting for presentation surface")
		}

		wait := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			wait.Stop()
			return 0, 0, ctx.Err()
		case <-deadline:
			wait.Stop()
			return 0, 0, fmt.Errorf("%w after %d attempts", ErrSurfaceTimeout, attempt)
		case <-wait.C:
		}

		interval = min(interval*2, l.acquireMaxInterval)
	}
}

// newSession allocates a fresh raster, cursor and maximum, then truncates
// the session log.
func (l *Loop) newSession(numBins, columns int, requested bool) (*session, error) {
	buffer, err := raster.New(numBins, columns, l.background)
	if err != nil {
		return nil, fmt.Errorf("allocating raster: %w", err)
	}

	l.sessions++
	s := &session{
		info: &spectrum.Session{
			Number:    l.sessions,
			StartTime: time.Now().UTC(),
			Source:    l.sourceName,
			NumBins:   numBins,
			Columns:   columns,
		},
		buffer:  buffer,
		tracker: normalize.NewTracker(l.mode),
		column:  make([]color.RGBA, numBins),
	}
	l.sink.Reset()

	l.update(func(t *telemetry.Telemetry) {
		t.Session = s.info.Number
		t.SessionStart = s.info.StartTime
		t.NumBins = numBins
		t.Columns = columns
		t.Cursor = 0
		t.GlobalMax = 0
		if requested {
			t.Resets++
		}
	})

	if requested {
		l.logger.Info("session reset", slog.Uint64("session", s.info.Number))
	}
	return s, nil
}

func (l *Loop) renderFrame(s *session, vector []float64) error {
	s.tracker.Observe(vector)
	for i, v := range vector {
		s.column[i] = l.mapper.Map(s.tracker.Normalize(v))
	}

	if err := s.buffer.WriteColumn(s.cursor, s.column); err != nil {
		return fmt.Errorf("writing column: %w", err)
	}

	l.sink.LogVector(vector)
	if l.recorder != nil {
		l.recorder.Record(s.info, spectrum.Frame{
			Sequence:   s.frames,
			Timestamp:  time.Now().UTC(),
			Magnitudes: vector,
		})
	}

	s.frames++
	s.cursor = (s.cursor + 1) % s.buffer.Width()

	l.update(func(t *telemetry.Telemetry) {
		t.Frames++
		t.Cursor = s.cursor
		t.GlobalMax = s.tracker.Max()
	})
	return nil
}

// present draws the current raster on the surface. A surface that cannot be
// acquired skips this frame only.
func (l *Loop) present(s *session) bool {
	snapshot := s.buffer.Snapshot()

	canvas, ok := l.surface.TryAcquire()
	if !ok {
		l.update(func(t *telemetry.Telemetry) { t.Skipped++ })
		return false
	}
	defer l.surface.Present(canvas)

	bounds := canvas.Bounds()
	draw.Draw(canvas, bounds, image.NewUniform(l.background), image.Point{}, draw.Src)

	plot := image.Rect(bounds.Min.X+l.leftMargin, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	if !plot.Empty() {
		l.scaler.Scale(canvas, plot, snapshot, snapshot.Bounds(), draw.Src, nil)
	}

	if l.overlay != nil {
		if err := l.overlay.Draw(canvas, plot); err != nil {
			l.logger.Debug(fmt.Sprintf("drawing overlay: %s", err.Error()))
		}
	}

	l.update(func(t *telemetry.Telemetry) { t.Presented++ })
	return true
}

func (l *Loop) update(fn func(t *telemetry.Telemetry)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(&l.stats)
}

// Get implements telemetry.Provider.
func (l *Loop) Get() *telemetry.Telemetry {
	l.mu.Lock()
	t := l.stats
	l.mu.Unlock()

	t.Timestamp = time.Now()
	t.LogEnabled = l.sink.Enabled()
	t.LogBytes = l.sink.Written()
	if d, ok := l.recorder.(interface{ Dropped() uint64 }); ok {
		t.Dropped = d.Dropped()
	}
	return &t
}
