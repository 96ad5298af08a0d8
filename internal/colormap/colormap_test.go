package colormap

import (
	"image/color"
	"math"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lightness(t *testing.T, c color.RGBA) float64 {
	t.Helper()
	cf, ok := colorful.MakeColor(c)
	require.True(t, ok)
	l, _, _ := cf.Lab()
	return l
}

func TestMapperEndpoints(t *testing.T) {
	for theme := range themes {
		t.Run(string(theme), func(t *testing.T) {
			m := NewMapper(theme)
			cp := Themes(theme)

			assert.Equal(t, toRGBA(cp[0].Color), m.Map(0))
			assert.Equal(t, toRGBA(cp[len(cp)-1].Color), m.Map(1))
		})
	}
}

func TestMapperClampsOutOfRange(t *testing.T) {
	m := NewMapper(ViridisTheme)

	assert.Equal(t, m.Map(0), m.Map(-3.5))
	assert.Equal(t, m.Map(0), m.Map(math.NaN()))
	assert.Equal(t, m.Map(1), m.Map(42))
	assert.Equal(t, m.Map(1), m.Map(math.Inf(1)))
}

func TestMapperDeterministic(t *testing.T) {
	a := NewMapper(MagmaTheme)
	b := NewMapper(MagmaTheme)

	for v := 0.0; v <= 1.0; v += 0.01 {
		require.Equal(t, a.Map(v), b.Map(v), "value %f", v)
	}
}

func TestMapperMonotonicLightness(t *testing.T) {
	for theme := range themes {
		t.Run(string(theme), func(t *testing.T) {
			m := NewMapper(theme)

			prev := lightness(t, m.Map(0))
			for i := 1; i <= 20; i++ {
				v := float64(i) / 20
				l := lightness(t, m.Map(v))
				assert.Greater(t, l, prev, "lightness must increase at %.2f", v)
				prev = l
			}
		})
	}
}

func TestInterpolateHitsControlPoints(t *testing.T) {
	cp := Themes(ViridisTheme)
	for _, p := range cp {
		assert.Equal(t, toRGBA(p.Color), Interpolate(cp, p.Position), "position %.3f", p.Position)
	}
}

func TestParseTheme(t *testing.T) {
	testCases := []struct {
		name    string
		want    Theme
		wantErr bool
	}{
		{"", ViridisTheme, false},
		{"viridis", ViridisTheme, false},
		{"MAGMA", MagmaTheme, false},
		{"inferno", InfernoTheme, false},
		{"grayscale", GrayscaleTheme, false},
		{"rainbow", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTheme(tc.name)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewMapperWithSizeFallbacks(t *testing.T) {
	m := NewMapperWithSize("unknown", 1)

	assert.Equal(t, DefaultTheme, m.Theme())
	assert.Equal(t, DefaultColorMapSize, m.Size())
}
