/**
 * Rotation with cubic interpolation.
 *
 * The rotated canvas is expanded to hold the whole source image and filled
 * white first, matching what downstream OCR expects of a document page.
 */

package imaging

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// rotateCubic rotates the image counter-clockwise by angle degrees using
// Catmull-Rom (cubic) resampling on a white background.
func rotateCubic(img *image.NRGBA, angle float64) *image.NRGBA {
	rad := angle * math.Pi / 180
	sin, cos := math.Abs(math.Sin(rad)), math.Abs(math.Cos(rad))

	b := img.Bounds()
	srcW, srcH := float64(b.Dx()), float64(b.Dy())
	dstW := int(math.Ceil(srcW*cos + srcH*sin))
	dstH := int(math.Ceil(srcW*sin + srcH*cos))

	dst := image.NewNRGBA(image.Rect(0, 0, dstW, dstH))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	// Rotate about the source center, then translate to the destination center.
	s, c := math.Sin(rad), math.Cos(rad)
	cx, cy := srcW/2, srcH/2
	tx := float64(dstW)/2 - c*cx + s*cy
	ty := float64(dstH)/2 - s*cx - c*cy

	xdraw.CatmullRom.Transform(dst, f64.Aff3{
		c, -s, tx,
		s, c, ty,
	}, img, b, xdraw.Over, nil)

	return dst
}
