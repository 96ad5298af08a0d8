package render

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRangeTicks(t *testing.T) {
	ticks := rangeTicks(120, 12, 3.43)
	require.Len(t, ticks, 12)

	assert.Equal(t, 120, ticks[0].Y)
	assert.Equal(t, "0.00m", ticks[0].Label)

	assert.Equal(t, 110, ticks[1].Y)
	assert.InDelta(t, 3.43/12, ticks[1].Meters, 1e-9)
	assert.Equal(t, "0.29m", ticks[1].Label)

	assert.Equal(t, 10, ticks[11].Y)
	assert.Equal(t, "3.14m", ticks[11].Label)

	for i := 1; i < len(ticks); i++ {
		assert.Less(t, ticks[i].Y, ticks[i-1].Y, "labels go up the surface")
	}
}

func TestRangeTicksDegenerate(t *testing.T) {
	assert.Nil(t, rangeTicks(0, 12, 3.43))
	assert.Nil(t, rangeTicks(100, 0, 3.43))
	assert.Nil(t, rangeTicks(5, 12, 3.43), "fewer pixels than steps")
}

func TestRangeScaleDraw(t *testing.T) {
	scale, err := NewRangeScale(RangeScaleConfig{Gridlines: true, GridColor: color.RGBA{R: 0xff, A: 0xff}})
	require.NoError(t, err)
	defer scale.Close()

	dst := image.NewRGBA(image.Rect(0, 0, 200, 240))
	plot := image.Rect(DefaultLeftMargin, 0, 200, 240)
	require.NoError(t, scale.Draw(dst, plot))

	// gridline at the second tick
	assert.Equal(t, color.RGBA{R: 0xff, A: 0xff}, dst.RGBAAt(100, 220))

	var labelled bool
	for y := 0; y < 240 && !labelled; y++ {
		for x := 0; x < DefaultLeftMargin; x++ {
			if dst.RGBAAt(x, y).A != 0 {
				labelled = true
				break
			}
		}
	}
	assert.True(t, labelled, "labels are drawn in the margin")
}
