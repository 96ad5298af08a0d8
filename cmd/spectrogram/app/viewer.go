package app

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/roman-kulish/live-spectrogram/internal/render"
	"github.com/roman-kulish/live-spectrogram/internal/surface"
	"github.com/roman-kulish/live-spectrogram/internal/telemetry"
)

const titleRefreshInterval = time.Second

// Viewer shows the presented frames of a surface in a window. The window
// size drives the surface size; R requests a new session.
type Viewer struct {
	ctx     context.Context
	surface *surface.Offscreen
	reset   *render.Signal
	stats   telemetry.Provider
	title   string

	mu     sync.Mutex
	failed error

	frame        *ebiten.Image
	width        int
	height       int
	titleUpdated time.Time
}

// NewViewer creates a viewer. It stops the game when ctx is done.
func NewViewer(ctx context.Context, surf *surface.Offscreen, reset *render.Signal, stats telemetry.Provider, title string) *Viewer {
	return &Viewer{
		ctx:     ctx,
		surface: surf,
		reset:   reset,
		stats:   stats,
		title:   title,
	}
}

// Fail records why the render loop stopped. The window stays open with the
// last presented frame until it is closed.
func (v *Viewer) Fail(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failed = err
}

// Failed returns the error passed to Fail, if any.
func (v *Viewer) Failed() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.failed
}

func (v *Viewer) terminated() bool {
	return v.ctx.Err() != nil
}

func (v *Viewer) Update() error {
	if v.terminated() {
		return ebiten.Termination
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		v.reset.Request()
	}

	if time.Since(v.titleUpdated) >= titleRefreshInterval {
		ebiten.SetWindowTitle(windowTitle(v.title, v.stats.Get(), v.Failed()))
		v.titleUpdated = time.Now()
	}
	return nil
}

func (v *Viewer) Draw(screen *ebiten.Image) {
	v.surface.ReadFront(func(img *image.RGBA) {
		b := img.Bounds()
		if v.frame == nil || v.frame.Bounds().Dx() != b.Dx() || v.frame.Bounds().Dy() != b.Dy() {
			if v.frame != nil {
				v.frame.Deallocate()
			}
			v.frame = ebiten.NewImage(b.Dx(), b.Dy())
		}
		v.frame.WritePixels(img.Pix)
	})

	if v.frame != nil {
		screen.DrawImage(v.frame, nil)
	}
}

func (v *Viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth != v.width || outsideHeight != v.height {
		v.width, v.height = outsideWidth, outsideHeight
		v.surface.Resize(outsideWidth, outsideHeight)
	}
	return outsideWidth, outsideHeight
}

func windowTitle(title string, t *telemetry.Telemetry, failed error) string {
	if failed != nil {
		return fmt.Sprintf("%s | stopped: %s", title, failed.Error())
	}
	if t.Session == 0 {
		return fmt.Sprintf("%s | waiting for data", title)
	}
	return fmt.Sprintf("%s | session %d | %s frames | max %.4g | R to reset",
		title, t.Session, humanize.Comma(int64(t.Frames)), t.GlobalMax)
}
