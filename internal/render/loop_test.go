package render

import (
	"context"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/live-spectrogram/internal/colormap"
	"github.com/roman-kulish/live-spectrogram/internal/logsink"
	"github.com/roman-kulish/live-spectrogram/internal/normalize"
	"github.com/roman-kulish/live-spectrogram/internal/spectrum"
	"github.com/roman-kulish/live-spectrogram/internal/surface"
)

// scriptedSource returns the given vectors in order, then io.EOF. before is
// called ahead of every read with the number of reads already served.
type scriptedSource struct {
	vectors [][]float64
	reads   int
	before  func(reads int)
}

func (s *scriptedSource) Read(ctx context.Context) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.before != nil {
		s.before(s.reads)
	}
	if s.reads >= len(s.vectors) {
		return nil, io.EOF
	}
	v := s.vectors[s.reads]
	s.reads++
	return v, nil
}

// blockingSource serves one vector and then blocks until ctx is done.
type blockingSource struct {
	served bool
}

func (s *blockingSource) Read(ctx context.Context) ([]float64, error) {
	if !s.served {
		s.served = true
		return []float64{1, 2}, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

type recordedFrame struct {
	session uint64
	frame   spectrum.Frame
}

type fakeRecorder struct {
	mu     sync.Mutex
	frames []recordedFrame
}

func (r *fakeRecorder) Record(s *spectrum.Session, f spectrum.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, recordedFrame{session: s.Number, frame: f})
}

func sizedSurface(w, h int) *surface.Offscreen {
	s := surface.NewOffscreen()
	s.Resize(w, h)
	return s
}

func TestLoopScrollingScenario(t *testing.T) {
	surf := sizedSurface(4, 2)
	mapper := colormap.NewMapper(colormap.ViridisTheme)

	var loop *Loop
	var maxima []float64
	src := &scriptedSource{
		vectors: [][]float64{{1, 2}, {3, 1}, {0, 4}},
		before: func(reads int) {
			if reads > 0 {
				maxima = append(maxima, loop.Get().GlobalMax)
			}
		},
	}
	loop = NewLoop(src, surf, WithMapper(mapper), WithLeftMargin(0))

	err := loop.Run(context.Background())
	require.ErrorIs(t, err, io.EOF)

	assert.Equal(t, []float64{2, 3, 4}, maxima)

	stats := loop.Get()
	assert.Equal(t, 3, stats.Cursor)
	assert.EqualValues(t, 3, stats.Frames)
	assert.EqualValues(t, 3, stats.Presented)
	assert.EqualValues(t, 1, stats.Session)
	assert.False(t, stats.Running)

	front := surf.Snapshot()
	require.NotNil(t, front)

	assert.Equal(t, mapper.Map(0.5), front.RGBAAt(0, 0))
	assert.Equal(t, mapper.Map(1), front.RGBAAt(0, 1), "column 0 bin 1 is 2/2")
	assert.Equal(t, mapper.Map(1), front.RGBAAt(1, 0))
	assert.Equal(t, mapper.Map(1.0/3), front.RGBAAt(1, 1))
	assert.Equal(t, mapper.Map(0), front.RGBAAt(2, 0))
	assert.Equal(t, mapper.Map(1), front.RGBAAt(2, 1), "column 2 bin 1 is 4/4")
	assert.Equal(t, DefaultBackground, front.RGBAAt(3, 0), "scroll front is cleared")
	assert.Equal(t, DefaultBackground, front.RGBAAt(3, 1))
}

func TestLoopResetStartsFreshSession(t *testing.T) {
	surf := sizedSurface(4, 2)
	mapper := colormap.NewMapper(colormap.ViridisTheme)
	logPath := filepath.Join(t.TempDir(), "log.txt")
	sink, f, err := logsink.Open(logPath)
	require.NoError(t, err)
	defer f.Close()

	signal := NewSignal()
	recorder := &fakeRecorder{}
	src := &scriptedSource{
		vectors: [][]float64{{10, 20}, {30, 10}, {1, 2}},
		before: func(reads int) {
			// requested while the second frame is read, observed before the third
			if reads == 1 {
				signal.Request()
			}
		},
	}
	loop := NewLoop(src, surf,
		WithMapper(mapper),
		WithLeftMargin(0),
		WithSignal(signal),
		WithSessionLog(sink),
		WithRecorder(recorder),
	)

	err = loop.Run(context.Background())
	require.ErrorIs(t, err, io.EOF)
	assert.False(t, signal.Pending(), "the request is cleared once observed")

	stats := loop.Get()
	assert.EqualValues(t, 2, stats.Session)
	assert.EqualValues(t, 1, stats.Resets)
	assert.Equal(t, 1, stats.Cursor)
	assert.Equal(t, 2.0, stats.GlobalMax, "maximum restarts from zero")

	front := surf.Snapshot()
	assert.Equal(t, mapper.Map(0.5), front.RGBAAt(0, 0))
	assert.Equal(t, mapper.Map(1), front.RGBAAt(0, 1))
	for x := 1; x < 4; x++ {
		for y := 0; y < 2; y++ {
			assert.Equal(t, DefaultBackground, front.RGBAAt(x, y), "pixel %d,%d", x, y)
		}
	}

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "1.00000 2.00000\n", string(content))

	require.Len(t, recorder.frames, 3)
	assert.EqualValues(t, 1, recorder.frames[1].session)
	assert.EqualValues(t, 1, recorder.frames[1].frame.Sequence)
	assert.EqualValues(t, 2, recorder.frames[2].session)
	assert.EqualValues(t, 0, recorder.frames[2].frame.Sequence)
}

func TestLoopSignalBeforeStartIsAbsorbed(t *testing.T) {
	signal := NewSignal()
	signal.Request()

	loop := NewLoop(&scriptedSource{vectors: [][]float64{{1}, {2}}}, sizedSurface(3, 1), WithSignal(signal))
	require.ErrorIs(t, loop.Run(context.Background()), io.EOF)

	stats := loop.Get()
	assert.EqualValues(t, 1, stats.Session)
	assert.Zero(t, stats.Resets)
}

func TestLoopSkipsPresentationWhileSurfaceUnavailable(t *testing.T) {
	surf := sizedSurface(3, 1)
	src := &scriptedSource{
		vectors: [][]float64{{1}, {2}, {3}, {4}},
		before: func(reads int) {
			switch reads {
			case 1:
				surf.SetAvailable(false)
			case 3:
				surf.SetAvailable(true)
			}
		},
	}
	loop := NewLoop(src, surf, WithLeftMargin(0))

	require.ErrorIs(t, loop.Run(context.Background()), io.EOF)

	stats := loop.Get()
	assert.EqualValues(t, 4, stats.Frames)
	assert.EqualValues(t, 2, stats.Skipped)
	assert.EqualValues(t, 2, stats.Presented)
}

func TestLoopWaitsForSurface(t *testing.T) {
	surf := surface.NewOffscreen()
	go func() {
		time.Sleep(30 * time.Millisecond)
		surf.Resize(5, 2)
	}()

	loop := NewLoop(&scriptedSource{vectors: [][]float64{{1, 1}}}, surf,
		WithAcquireBackoff(time.Millisecond, 5*time.Millisecond))

	require.ErrorIs(t, loop.Run(context.Background()), io.EOF)
	assert.Equal(t, 5, loop.Get().Columns)
	assert.EqualValues(t, 1, loop.Get().Presented)
}

func TestLoopSurfaceTimeout(t *testing.T) {
	loop := NewLoop(&scriptedSource{vectors: [][]float64{{1}}}, surface.NewOffscreen(),
		WithAcquireBackoff(time.Millisecond, 2*time.Millisecond),
		WithAcquireTimeout(20*time.Millisecond))

	err := loop.Run(context.Background())
	require.ErrorIs(t, err, ErrSurfaceTimeout)
}

func TestLoopSourceFaults(t *testing.T) {
	testCases := []struct {
		name    string
		vectors [][]float64
		want    error
	}{
		{"empty first vector", [][]float64{{}}, ErrEmptyVector},
		{"empty later vector", [][]float64{{1, 2}, {}}, ErrEmptyVector},
		{"bin count changed", [][]float64{{1, 2}, {1, 2, 3}}, ErrBinCountMismatch},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			loop := NewLoop(&scriptedSource{vectors: tc.vectors}, sizedSurface(4, 2))
			require.ErrorIs(t, loop.Run(context.Background()), tc.want)
		})
	}
}

func TestLoopStopsOnContextCancel(t *testing.T) {
	loop := NewLoop(&blockingSource{}, sizedSurface(4, 2))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	require.Eventually(t, func() bool { return loop.Get().Presented == 1 }, time.Second, time.Millisecond)

	require.ErrorIs(t, loop.Run(ctx), ErrAlreadyRunning)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestLoopLocalNormalization(t *testing.T) {
	surf := sizedSurface(3, 1)
	mapper := colormap.NewMapper(colormap.GrayscaleTheme)
	loop := NewLoop(&scriptedSource{vectors: [][]float64{{8}, {2}}}, surf,
		WithMapper(mapper),
		WithLeftMargin(0),
		WithNormalization(normalize.Local))

	require.ErrorIs(t, loop.Run(context.Background()), io.EOF)

	front := surf.Snapshot()
	assert.Equal(t, mapper.Map(1), front.RGBAAt(1, 0), "a quiet frame is scaled by its own maximum")
}

func TestLoopDrawsIntoPlotRectangle(t *testing.T) {
	surf := sizedSurface(10, 4)
	mapper := colormap.NewMapper(colormap.GrayscaleTheme)
	loop := NewLoop(&scriptedSource{vectors: [][]float64{{1, 1}}}, surf,
		WithMapper(mapper),
		WithLeftMargin(2),
		WithColumns(4),
		WithBackground(color.RGBA{B: 0x40, A: 0xff}))

	require.ErrorIs(t, loop.Run(context.Background()), io.EOF)

	front := surf.Snapshot()
	bg := color.RGBA{B: 0x40, A: 0xff}
	assert.Equal(t, bg, front.RGBAAt(0, 0), "margin keeps the background")
	assert.Equal(t, mapper.Map(1), front.RGBAAt(2, 0), "first column starts after the margin")
	assert.Equal(t, mapper.Map(1), front.RGBAAt(3, 3), "each column is scaled to two pixels")
	assert.Equal(t, bg, front.RGBAAt(9, 0))
	assert.Equal(t, image.Rect(0, 0, 10, 4), front.Bounds())
}

func TestLoopRecordsTelemetryOfDisabledLog(t *testing.T) {
	sink := logsink.New(failingFile{})
	loop := NewLoop(&scriptedSource{vectors: [][]float64{{1}, {2}}}, sizedSurface(2, 1), WithSessionLog(sink))

	require.ErrorIs(t, loop.Run(context.Background()), io.EOF)

	stats := loop.Get()
	assert.False(t, stats.LogEnabled)
	assert.EqualValues(t, 2, stats.Frames, "logging failures never stop rendering")
}

type failingFile struct{}

func (failingFile) Write([]byte) (int, error)      { return 0, io.ErrShortWrite }
func (failingFile) Truncate(int64) error           { return nil }
func (failingFile) Seek(int64, int) (int64, error) { return 0, nil }
