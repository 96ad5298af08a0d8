package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// ErrInvalidDimensions is returned when a buffer is requested with a zero or
// negative size.
var ErrInvalidDimensions = errors.New("invalid raster dimensions")

// Buffer is a fixed numBins × width pixel grid addressed by column. Bin i is
// stored in row i. The buffer is never resized; a new session allocates a
// new buffer.
type Buffer struct {
	img        *image.RGBA
	numBins    int
	width      int
	background color.RGBA
}

// New allocates a buffer filled with the background color.
func New(numBins, width int, background color.RGBA) (*Buffer, error) {
	if numBins <= 0 || width <= 0 {
		return nil, fmt.Errorf("%w: bins=%d, width=%d", ErrInvalidDimensions, numBins, width)
	}

	b := &Buffer{
		img:        image.NewRGBA(image.Rect(0, 0, width, numBins)),
		numBins:    numBins,
		width:      width,
		background: background,
	}
	b.fill()
	return b, nil
}

func (b *Buffer) fill() {
	pix := b.img.Pix
	for i := 0; i < len(pix); i += 4 {
		pix[i+0] = b.background.R
		pix[i+1] = b.background.G
		pix[i+2] = b.background.B
		pix[i+3] = b.background.A
	}
}

// WriteColumn stores one vertical slice at cursor and clears the following
// column (wrapping) to the background, which marks the scroll front. Colors
// beyond numBins are ignored; missing ones leave their rows untouched.
func (b *Buffer) WriteColumn(cursor int, colors []color.RGBA) error {
	if cursor < 0 || cursor >= b.width {
		return fmt.Errorf("cursor %d out of range [0, %d)", cursor, b.width)
	}

	n := min(len(colors), b.numBins)
	for row := 0; row < n; row++ {
		b.img.SetRGBA(cursor, row, colors[row])
	}

	// with a single column the separator would erase what was just written
	if b.width > 1 {
		edge := (cursor + 1) % b.width
		for row := 0; row < b.numBins; row++ {
			b.img.SetRGBA(edge, row, b.background)
		}
	}
	return nil
}

// At returns the color stored for a bin at a column.
func (b *Buffer) At(column, bin int) color.RGBA {
	return b.img.RGBAAt(column, bin)
}

// Snapshot materializes the grid as an independent width × numBins image.
func (b *Buffer) Snapshot() *image.RGBA {
	img := image.NewRGBA(b.img.Rect)
	copy(img.Pix, b.img.Pix)
	return img
}

// Width returns the number of columns.
func (b *Buffer) Width() int {
	return b.width
}
