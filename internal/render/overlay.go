package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
)

const (
	DefaultRangeMeters = 3.43 // Distance covered by the full surface height
	DefaultGridSteps   = 12

	dpi            = 72.0
	fontSize       = 8.0
	labelBaseline  = 5 // Pixels between a tick and the baseline of its label
	labelRightSkip = 1 // Pixels between a label and the plot
)

var defaultGridColor = color.RGBA{R: 0x60, G: 0x60, B: 0x60, A: 0xff}

// RangeScaleConfig holds the calibration of the distance labels.
type RangeScaleConfig struct {
	RangeMeters float64     // Distance represented by the surface height
	Steps       int         // Number of labels
	Gridlines   bool        // Draw a horizontal line across the plot at every label
	FontSize    float64     // Font size in points
	LabelColor  color.Color // Defaults to white
	GridColor   color.Color // Defaults to dark gray
}

// RangeScale draws distance labels in the left margin, measured upwards from
// the bottom of the surface.
type RangeScale struct {
	context  *freetype.Context
	fontFace font.Face
	config   RangeScaleConfig
}

// NewRangeScale creates an overlay using the embedded Go Mono font.
func NewRangeScale(config RangeScaleConfig) (*RangeScale, error) {
	if config.RangeMeters <= 0 {
		config.RangeMeters = DefaultRangeMeters
	}
	if config.Steps <= 0 {
		config.Steps = DefaultGridSteps
	}
	if config.FontSize <= 0 {
		config.FontSize = fontSize
	}
	if config.LabelColor == nil {
		config.LabelColor = color.White
	}
	if config.GridColor == nil {
		config.GridColor = defaultGridColor
	}

	parsedFont, err := freetype.ParseFont(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.NewUniform(config.LabelColor))

	return &RangeScale{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

// Close releases the font face.
func (r *RangeScale) Close() error {
	if r.fontFace != nil {
		return r.fontFace.Close()
	}
	return nil
}

// Draw implements Overlay.
func (r *RangeScale) Draw(dst draw.Image, plot image.Rectangle) error {
	bounds := dst.Bounds()
	r.context.SetClip(bounds)
	r.context.SetDst(dst)

	for _, tk := range rangeTicks(bounds.Dy(), r.config.Steps, r.config.RangeMeters) {
		y := bounds.Min.Y + tk.Y

		if r.config.Gridlines {
			for x := plot.Min.X; x < plot.Max.X; x++ {
				dst.Set(x, y, r.config.GridColor)
			}
		}

		// right-align the label against the plot, but never past the left edge
		width := font.MeasureString(r.fontFace, tk.Label).Round()
		x := max(plot.Min.X-labelRightSkip-width, bounds.Min.X)

		if _, err := r.context.DrawString(tk.Label, freetype.Pt(x, y-labelBaseline)); err != nil {
			return fmt.Errorf("drawing range label: %w", err)
		}
	}
	return nil
}

type tick struct {
	Y      int     // Offset from the top of the surface
	Meters float64 // Distance represented at Y
	Label  string
}

// rangeTicks spreads steps labels over the height, the first one at the
// bottom edge (distance zero).
func rangeTicks(height, steps int, rangeMeters float64) []tick {
	if height <= 0 || steps <= 0 {
		return nil
	}
	step := height / steps
	if step == 0 {
		return nil
	}

	ticks := make([]tick, 0, steps)
	for i := 0; i < steps; i++ {
		y := height - i*step
		dist := float64(height-y) / float64(height) * rangeMeters
		ticks = append(ticks, tick{
			Y:      y,
			Meters: dist,
			Label:  fmt.Sprintf("%4.2fm", dist),
		})
	}
	return ticks
}
