package imaging

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestImage(w, h int, fill func(x, y int) color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, fill(x, y))
		}
	}
	return img
}

func TestProcessDoesNotMutateInput(t *testing.T) {
	src := newTestImage(32, 32, func(x, y int) color.NRGBA {
		return color.NRGBA{R: uint8(x * 7), G: uint8(y * 5), B: uint8((x + y) * 3), A: 255}
	})
	snapshot := append([]uint8(nil), src.Pix...)

	engine := NewEngine([]string{"denoise", "deskew", "contrast"})
	out := engine.Process(src)

	require.NotNil(t, out)
	assert.Equal(t, snapshot, src.Pix)
}

func TestUnknownStepIsSkipped(t *testing.T) {
	src := newTestImage(16, 16, func(x, y int) color.NRGBA {
		return color.NRGBA{R: 200, G: 100, B: 50, A: 255}
	})

	engine := NewEngine([]string{"sharpen"})
	out := engine.Process(src)

	nrgba, ok := out.(*image.NRGBA)
	require.True(t, ok)
	assert.Equal(t, src.Pix, nrgba.Pix)
}

func TestDeskewBlankImageUnchanged(t *testing.T) {
	src := newTestImage(64, 64, func(x, y int) color.NRGBA {
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	})

	out := deskew(src)
	assert.Equal(t, src.Bounds(), out.Bounds())
}

func TestDeskewCorrectsSkewedLines(t *testing.T) {
	// Text lines tilted 5 degrees; deskew must counter-rotate them back
	// to horizontal, not tilt them further.
	slope := math.Tan(5 * math.Pi / 180)
	src := newTestImage(300, 200, func(x, y int) color.NRGBA {
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	})
	for _, base := range []int{60, 100, 140} {
		for x := 20; x < 280; x++ {
			y := base + int(math.Round(float64(x-150)*slope))
			src.SetNRGBA(x, y, color.NRGBA{A: 255})
			src.SetNRGBA(x, y+1, color.NRGBA{A: 255})
		}
	}

	before, ok := measuredSkew(src)
	require.True(t, ok)
	assert.InDelta(t, 5.0, math.Abs(before), 1.0)

	out := deskew(src)

	after, ok := measuredSkew(out)
	require.True(t, ok)
	assert.InDelta(t, 0.0, after, 1.0)
}

func measuredSkew(img *image.NRGBA) (float64, bool) {
	return detectSkewAngle(cannyEdges(imaging.Grayscale(img)))
}

func TestDetectSkewAngleHorizontalLines(t *testing.T) {
	edges := image.NewGray(image.Rect(0, 0, 300, 200))
	for _, row := range []int{50, 100, 150} {
		for x := 0; x < 300; x++ {
			edges.SetGray(x, row, color.Gray{Y: 255})
		}
	}

	angle, ok := detectSkewAngle(edges)
	require.True(t, ok)
	assert.InDelta(t, 0, angle, 1.0)
}

func TestDetectSkewAngleNoLines(t *testing.T) {
	edges := image.NewGray(image.Rect(0, 0, 100, 100))
	_, ok := detectSkewAngle(edges)
	assert.False(t, ok)
}

func TestNormalizeAngle(t *testing.T) {
	assert.InDelta(t, 0, normalizeAngle(90), 1e-9)
	assert.InDelta(t, -2, normalizeAngle(88), 1e-9)
	assert.InDelta(t, 2, normalizeAngle(-88), 1e-9)
	assert.InDelta(t, 30, normalizeAngle(30), 1e-9)
	assert.InDelta(t, -30, normalizeAngle(-30), 1e-9)
}

func TestRotateCubicExpandsCanvas(t *testing.T) {
	src := newTestImage(100, 50, func(x, y int) color.NRGBA {
		return color.NRGBA{R: 10, G: 10, B: 10, A: 255}
	})

	out := rotateCubic(src, 10)
	assert.Greater(t, out.Bounds().Dx(), 100)
	assert.Greater(t, out.Bounds().Dy(), 50)
}

func TestEnhanceContrastWidensRange(t *testing.T) {
	// Low contrast ramp: values confined to [100, 150].
	src := newTestImage(256, 256, func(x, y int) color.NRGBA {
		v := uint8(100 + (x*50)/256)
		return color.NRGBA{R: v, G: v, B: v, A: 255}
	})

	out := enhanceContrast(src)

	assert.Less(t, lumaSpread(src), lumaSpread(out))
	assert.Equal(t, src.Bounds(), out.Bounds())
}

func TestDenoiseReducesVariance(t *testing.T) {
	// Checkerboard of small deviations around mid gray.
	src := newTestImage(32, 32, func(x, y int) color.NRGBA {
		v := uint8(126)
		if (x+y)%2 == 0 {
			v = 130
		}
		return color.NRGBA{R: v, G: v, B: v, A: 255}
	})

	out := denoise(src)
	assert.Less(t, lumaVariance(out), lumaVariance(src))
}

func lumaSpread(img *image.NRGBA) int {
	lo, hi := 255, 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := int(img.Pix[img.PixOffset(x, y)])
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	return hi - lo
}

func lumaVariance(img *image.NRGBA) float64 {
	b := img.Bounds()
	var sum, sumSq float64
	n := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := float64(img.Pix[img.PixOffset(x, y)])
			sum += v
			sumSq += v * v
			n++
		}
	}
	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}
