package surface

import (
	"image"
	"image/draw"
	"sync"
)

// Surface is a double-buffered presentation target. TryAcquire hands out the
// back buffer and never blocks; Present publishes it and releases the
// surface. A caller must present every canvas it acquired.
type Surface interface {
	TryAcquire() (draw.Image, bool)
	Present(canvas draw.Image)
}

// Offscreen is an in-memory Surface with a front and a back RGBA buffer.
// It is unavailable until Resize gives it a non-zero size, which models a
// platform surface that is created asynchronously. Readers observe only
// presented frames through ReadFront.
type Offscreen struct {
	mu        sync.RWMutex
	front     *image.RGBA
	back      *image.RGBA
	available bool
	acquired  bool
	presented uint64
}

// NewOffscreen creates an unsized, unavailable surface.
func NewOffscreen() *Offscreen {
	return &Offscreen{}
}

// Resize (re)allocates both buffers. A zero or negative size makes the
// surface unavailable.
func (s *Offscreen) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if width <= 0 || height <= 0 {
		s.front, s.back = nil, nil
		s.available = false
		return
	}

	r := image.Rect(0, 0, width, height)
	s.front = image.NewRGBA(r)
	s.back = image.NewRGBA(r)
	s.available = true
	s.acquired = false
}

// SetAvailable toggles availability without touching the buffers.
func (s *Offscreen) SetAvailable(available bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.available = available && s.front != nil
}

// TryAcquire returns the back buffer if the surface is available and not
// already acquired.
func (s *Offscreen) TryAcquire() (draw.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.available || s.acquired {
		return nil, false
	}

	s.acquired = true
	return s.back, true
}

// Present swaps the buffers. Canvases that do not belong to the surface
// (for example after a Resize) only release it.
func (s *Offscreen) Present(canvas draw.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.acquired = false
	if img, ok := canvas.(*image.RGBA); !ok || img != s.back {
		return
	}

	s.front, s.back = s.back, s.front
	s.presented++
}

// ReadFront calls fn with the last presented frame while holding a read
// lock. fn must not retain the image.
func (s *Offscreen) ReadFront(fn func(img *image.RGBA)) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.front == nil {
		return false
	}
	fn(s.front)
	return true
}

// Snapshot returns a copy of the last presented frame, or nil when the
// surface has no buffers.
func (s *Offscreen) Snapshot() *image.RGBA {
	var out *image.RGBA
	s.ReadFront(func(img *image.RGBA) {
		out = image.NewRGBA(img.Rect)
		copy(out.Pix, img.Pix)
	})
	return out
}

// Presented returns the number of swaps since creation.
func (s *Offscreen) Presented() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.presented
}
