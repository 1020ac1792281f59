/**
 * Contrast limited adaptive histogram equalization (CLAHE).
 *
 * The image is converted to YCbCr and equalization runs on the luminance
 * channel only, so colors are preserved. The plane is divided into an 8x8
 * tile grid; each tile gets its own clipped-histogram mapping, and per-pixel
 * values are bilinearly interpolated between the four surrounding tile
 * mappings to avoid visible tile seams.
 */

package imaging

import (
	"image"
	"image/color"
)

const (
	claheTileGrid  = 8
	claheClipLimit = 3.0
)

// enhanceContrast applies CLAHE to the luminance channel and rebuilds the
// image with the original chroma.
func enhanceContrast(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < claheTileGrid || h < claheTileGrid {
		return img
	}

	luma := make([]uint8, w*h)
	cb := make([]uint8, w*h)
	cr := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			yy, ycb, ycr := color.RGBToYCbCr(img.Pix[o], img.Pix[o+1], img.Pix[o+2])
			i := y*w + x
			luma[i], cb[i], cr[i] = yy, ycb, ycr
		}
	}

	equalized := claheLuma(luma, w, h)

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			r, g, bl := color.YCbCrToRGB(equalized[i], cb[i], cr[i])
			o := out.PixOffset(x, y)
			out.Pix[o] = r
			out.Pix[o+1] = g
			out.Pix[o+2] = bl
			out.Pix[o+3] = img.Pix[img.PixOffset(b.Min.X+x, b.Min.Y+y)+3]
		}
	}
	return out
}

// claheLuma equalizes a luminance plane tile by tile with clipping and
// bilinear blending between tile mappings.
func claheLuma(luma []uint8, w, h int) []uint8 {
	tileW := (w + claheTileGrid - 1) / claheTileGrid
	tileH := (h + claheTileGrid - 1) / claheTileGrid

	// Per-tile cumulative mapping tables.
	maps := make([][256]uint8, claheTileGrid*claheTileGrid)
	for ty := 0; ty < claheTileGrid; ty++ {
		for tx := 0; tx < claheTileGrid; tx++ {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := minInt(x0+tileW, w), minInt(y0+tileH, h)
			maps[ty*claheTileGrid+tx] = tileMapping(luma, w, x0, y0, x1, y1)
		}
	}

	out := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// Position relative to tile centers, for interpolation weights.
			fx := (float64(x) - float64(tileW)/2) / float64(tileW)
			fy := (float64(y) - float64(tileH)/2) / float64(tileH)

			tx0 := clampInt(int(fx), 0, claheTileGrid-1)
			ty0 := clampInt(int(fy), 0, claheTileGrid-1)
			tx1 := clampInt(tx0+1, 0, claheTileGrid-1)
			ty1 := clampInt(ty0+1, 0, claheTileGrid-1)

			wx := fx - float64(tx0)
			wy := fy - float64(ty0)
			if wx < 0 {
				wx = 0
			}
			if wy < 0 {
				wy = 0
			}

			v := luma[y*w+x]
			top := (1-wx)*float64(maps[ty0*claheTileGrid+tx0][v]) + wx*float64(maps[ty0*claheTileGrid+tx1][v])
			bottom := (1-wx)*float64(maps[ty1*claheTileGrid+tx0][v]) + wx*float64(maps[ty1*claheTileGrid+tx1][v])
			out[y*w+x] = uint8((1-wy)*top + wy*bottom)
		}
	}
	return out
}

// tileMapping builds the clipped-histogram equalization table for one tile.
func tileMapping(luma []uint8, stride, x0, y0, x1, y1 int) [256]uint8 {
	var hist [256]int
	count := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			hist[luma[y*stride+x]]++
			count++
		}
	}

	var table [256]uint8
	if count == 0 {
		for i := range table {
			table[i] = uint8(i)
		}
		return table
	}

	// Clip bins above the limit and redistribute the excess uniformly.
	clip := int(claheClipLimit * float64(count) / 256)
	if clip < 1 {
		clip = 1
	}
	excess := 0
	for i := range hist {
		if hist[i] > clip {
			excess += hist[i] - clip
			hist[i] = clip
		}
	}
	share := excess / 256
	rem := excess % 256
	for i := range hist {
		hist[i] += share
	}
	for i := 0; i < rem; i++ {
		hist[i]++
	}

	cum := 0
	scale := 255.0 / float64(count)
	for i := range hist {
		cum += hist[i]
		table[i] = uint8(float64(cum)*scale + 0.5)
	}
	return table
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
