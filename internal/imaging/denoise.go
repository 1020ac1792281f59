/**
 * Non-local means denoising.
 *
 * Each output pixel is a weighted average of pixels in a search window,
 * weighted by the similarity of their surrounding patches. Runs per channel.
 * Window and patch sizes are kept small so a 300 DPI page stays tractable.
 */

package imaging

import (
	"image"
	"math"
)

const (
	nlmPatchRadius  = 1
	nlmSearchRadius = 5
	nlmFilterH      = 10.0
)

// denoise applies non-local means filtering to each color channel. Alpha is
// passed through untouched.
func denoise(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	out := image.NewNRGBA(image.Rect(0, 0, w, h))

	for ch := 0; ch < 3; ch++ {
		plane := make([]float64, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				plane[y*w+x] = float64(img.Pix[img.PixOffset(b.Min.X+x, b.Min.Y+y)+ch])
			}
		}

		filtered := nlmPlane(plane, w, h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.Pix[out.PixOffset(x, y)+ch] = uint8(clampFloat(filtered[y*w+x], 0, 255) + 0.5)
			}
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Pix[out.PixOffset(x, y)+3] = img.Pix[img.PixOffset(b.Min.X+x, b.Min.Y+y)+3]
		}
	}

	return out
}

// nlmPlane filters one channel plane.
func nlmPlane(src []float64, w, h int) []float64 {
	dst := make([]float64, w*h)
	h2 := nlmFilterH * nlmFilterH

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum, weightSum float64

			for sy := y - nlmSearchRadius; sy <= y+nlmSearchRadius; sy++ {
				for sx := x - nlmSearchRadius; sx <= x+nlmSearchRadius; sx++ {
					if sx < 0 || sx >= w || sy < 0 || sy >= h {
						continue
					}
					d := patchDistance(src, w, h, x, y, sx, sy)
					wgt := math.Exp(-d / h2)
					sum += wgt * src[sy*w+sx]
					weightSum += wgt
				}
			}

			dst[y*w+x] = sum / weightSum
		}
	}
	return dst
}

// patchDistance is the mean squared difference between the patches centered
// at (x0,y0) and (x1,y1).
func patchDistance(src []float64, w, h, x0, y0, x1, y1 int) float64 {
	var sum float64
	n := 0
	for dy := -nlmPatchRadius; dy <= nlmPatchRadius; dy++ {
		for dx := -nlmPatchRadius; dx <= nlmPatchRadius; dx++ {
			a := src[clampInt(y0+dy, 0, h-1)*w+clampInt(x0+dx, 0, w-1)]
			b := src[clampInt(y1+dy, 0, h-1)*w+clampInt(x1+dx, 0, w-1)]
			sum += (a - b) * (a - b)
			n++
		}
	}
	return sum / float64(n)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
