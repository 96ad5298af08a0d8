package colormap

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Theme names a predefined control-point palette. Every palette is ordered
// from dark to bright so the mapping is monotonic in perceptual lightness:
// - ViridisTheme: blue-violet to yellow, the default
// - MagmaTheme: black to pale yellow through purple and orange
// - InfernoTheme: black to pale yellow through red
// - GrayscaleTheme: black to white
type Theme string

const (
	ViridisTheme   Theme = "viridis"
	MagmaTheme     Theme = "magma"
	InfernoTheme   Theme = "inferno"
	GrayscaleTheme Theme = "grayscale"

	DefaultTheme = ViridisTheme

	DefaultColorMapSize = 256 // Default number of colors in the lookup table
)

// ControlPoint anchors a color at a position in [0,1].
type ControlPoint struct {
	Position float64
	Color    colorful.Color
}

var themes = map[Theme][]ControlPoint{
	ViridisTheme: points(
		"#440154", "#482878", "#3e4989", "#31688e", "#26828e",
		"#1f9e89", "#35b779", "#6ece58", "#fde725",
	),
	MagmaTheme: points(
		"#000004", "#1c1044", "#4f127b", "#812581", "#b5367a",
		"#e55064", "#fb8761", "#fec287", "#fcfdbf",
	),
	InfernoTheme: points(
		"#000004", "#1f0c48", "#550f6d", "#88226a", "#ba3655",
		"#e35933", "#f98e09", "#f9cb35", "#fcffa4",
	),
	GrayscaleTheme: points("#000000", "#ffffff"),
}

// points spreads hex colors evenly over [0,1].
func points(hex ...string) []ControlPoint {
	cp := make([]ControlPoint, len(hex))
	for i, h := range hex {
		c, err := colorful.Hex(h)
		if err != nil {
			panic(fmt.Sprintf("colormap: invalid control color %q: %s", h, err))
		}
		cp[i] = ControlPoint{
			Position: float64(i) / float64(len(hex)-1),
			Color:    c,
		}
	}
	return cp
}

// ParseTheme validates a theme name. The empty string selects DefaultTheme.
func ParseTheme(name string) (Theme, error) {
	if name == "" {
		return DefaultTheme, nil
	}
	t := Theme(strings.ToLower(name))
	if _, ok := themes[t]; !ok {
		return "", fmt.Errorf("unknown color theme: %s", name)
	}
	return t, nil
}

// Themes returns the control points of a theme. Unknown themes fall back to
// the default palette.
func Themes(theme Theme) []ControlPoint {
	cp, ok := themes[theme]
	if !ok {
		cp = themes[DefaultTheme]
	}
	return cp
}

// Interpolate evaluates the palette at v by blending the two surrounding
// control points in L*a*b* space. Values outside the table clamp to the
// boundary colors; NaN maps to the first color.
func Interpolate(cp []ControlPoint, v float64) color.RGBA {
	first, last := cp[0], cp[len(cp)-1]
	switch {
	case math.IsNaN(v) || v <= first.Position:
		return toRGBA(first.Color)
	case v >= last.Position:
		return toRGBA(last.Color)
	}

	for i := 0; i < len(cp)-1; i++ {
		lo, hi := cp[i], cp[i+1]
		if v >= hi.Position {
			continue
		}
		t := (v - lo.Position) / (hi.Position - lo.Position)
		if t <= 0 {
			return toRGBA(lo.Color)
		}
		return toRGBA(lo.Color.BlendLab(hi.Color, t).Clamped())
	}
	return toRGBA(last.Color)
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// Mapper maps normalized magnitudes in [0,1] to colors through a
// pre-computed lookup table.
type Mapper struct {
	colorMap []color.RGBA // Pre-computed colors
	theme    Theme
	size     int
}

// NewMapper creates a mapper for the theme with DefaultColorMapSize entries.
func NewMapper(theme Theme) *Mapper {
	return NewMapperWithSize(theme, DefaultColorMapSize)
}

// NewMapperWithSize creates a mapper with the given lookup table size. Sizes
// below 2 fall back to DefaultColorMapSize.
func NewMapperWithSize(theme Theme, size int) *Mapper {
	if size < 2 {
		size = DefaultColorMapSize
	}
	if _, ok := themes[theme]; !ok {
		theme = DefaultTheme
	}

	cp := themes[theme]
	m := &Mapper{
		colorMap: make([]color.RGBA, size),
		theme:    theme,
		size:     size,
	}
	for i := range m.colorMap {
		m.colorMap[i] = Interpolate(cp, float64(i)/float64(size-1))
	}
	return m
}

// Map returns the color for a normalized value. Out of range input is
// clamped, never rejected.
func (m *Mapper) Map(v float64) color.RGBA {
	if math.IsNaN(v) || v <= 0 {
		return m.colorMap[0]
	}
	if v >= 1 {
		return m.colorMap[m.size-1]
	}
	return m.colorMap[int(v*float64(m.size-1)+0.5)]
}

// Theme returns the palette name.
func (m *Mapper) Theme() Theme {
	return m.theme
}

// Size returns the lookup table size.
func (m *Mapper) Size() int {
	return m.size
}
