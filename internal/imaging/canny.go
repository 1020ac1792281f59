/**
 * Canny edge detection used by deskew angle estimation.
 *
 * Standard pipeline: Gaussian smoothing, Sobel gradients, non-maximum
 * suppression along the gradient direction, then double-threshold with
 * hysteresis. Output is a binary edge map.
 */

package imaging

import (
	"image"
	"math"
)

const (
	cannyLowThreshold  = 50
	cannyHighThreshold = 150
)

// cannyEdges computes a binary edge map from a grayscale NRGBA image. Edge
// pixels are 255, everything else 0.
func cannyEdges(gray *image.NRGBA) *image.Gray {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()

	plane := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			plane[y*w+x] = float64(gray.Pix[gray.PixOffset(b.Min.X+x, b.Min.Y+y)])
		}
	}

	smoothed := gaussianBlur(plane, w, h)
	magnitude, direction := sobel(smoothed, w, h)
	thin := nonMaxSuppress(magnitude, direction, w, h)
	return hysteresis(thin, w, h)
}

// gaussianBlur applies a 5x5 Gaussian kernel (sigma ~1.4).
func gaussianBlur(src []float64, w, h int) []float64 {
	kernel := [5][5]float64{
		{2, 4, 5, 4, 2},
		{4, 9, 12, 9, 4},
		{5, 12, 15, 12, 5},
		{4, 9, 12, 9, 4},
		{2, 4, 5, 4, 2},
	}
	const norm = 159.0

	dst := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for ky := -2; ky <= 2; ky++ {
				for kx := -2; kx <= 2; kx++ {
					sx := clampInt(x+kx, 0, w-1)
					sy := clampInt(y+ky, 0, h-1)
					sum += src[sy*w+sx] * kernel[ky+2][kx+2]
				}
			}
			dst[y*w+x] = sum / norm
		}
	}
	return dst
}

// sobel returns gradient magnitude and direction (radians) per pixel.
func sobel(src []float64, w, h int) (magnitude, direction []float64) {
	magnitude = make([]float64, w*h)
	direction = make([]float64, w*h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			at := func(dx, dy int) float64 {
				return src[clampInt(y+dy, 0, h-1)*w+clampInt(x+dx, 0, w-1)]
			}
			gx := -at(-1, -1) + at(1, -1) - 2*at(-1, 0) + 2*at(1, 0) - at(-1, 1) + at(1, 1)
			gy := -at(-1, -1) - 2*at(0, -1) - at(1, -1) + at(-1, 1) + 2*at(0, 1) + at(1, 1)

			i := y*w + x
			magnitude[i] = math.Hypot(gx, gy)
			direction[i] = math.Atan2(gy, gx)
		}
	}
	return magnitude, direction
}

// nonMaxSuppress keeps only pixels that are local maxima along their
// gradient direction, quantized to four sectors.
func nonMaxSuppress(magnitude, direction []float64, w, h int) []float64 {
	dst := make([]float64, w*h)

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			angle := direction[i] * 180 / math.Pi
			if angle < 0 {
				angle += 180
			}

			var n1, n2 float64
			switch {
			case angle < 22.5 || angle >= 157.5:
				n1, n2 = magnitude[i-1], magnitude[i+1]
			case angle < 67.5:
				n1, n2 = magnitude[i-w+1], magnitude[i+w-1]
			case angle < 112.5:
				n1, n2 = magnitude[i-w], magnitude[i+w]
			default:
				n1, n2 = magnitude[i-w-1], magnitude[i+w+1]
			}

			if magnitude[i] >= n1 && magnitude[i] >= n2 {
				dst[i] = magnitude[i]
			}
		}
	}
	return dst
}

// hysteresis applies double thresholding: strong edges are kept, weak edges
// survive only when 8-connected to a strong edge.
func hysteresis(magnitude []float64, w, h int) *image.Gray {
	const (
		none   = 0
		weak   = 128
		strong = 255
	)

	marks := make([]uint8, w*h)
	var stack []int

	for i, m := range magnitude {
		switch {
		case m >= cannyHighThreshold:
			marks[i] = strong
			stack = append(stack, i)
		case m >= cannyLowThreshold:
			marks[i] = weak
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				j := ny*w + nx
				if marks[j] == weak {
					marks[j] = strong
					stack = append(stack, j)
				}
			}
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for i, m := range marks {
		if m == strong {
			out.Pix[i] = 255
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
