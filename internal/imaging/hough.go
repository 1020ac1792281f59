/**
 * Hough line transform for skew angle estimation.
 *
 * Text lines on a scanned page show up as strong near-horizontal lines in
 * the edge map. Each line's theta is converted to a deviation from
 * horizontal, and the median of the deviations is the page skew. Angles are
 * normalized into [-45, 45] degrees so a portrait page scanned slightly off
 * axis is corrected rather than rotated a quarter turn.
 */

package imaging

import (
	"image"
	"math"
	"sort"
)

const (
	houghThetaSteps = 180
	houghMinVotes   = 100
)

// detectSkewAngle runs a Hough transform over the edge map and returns the
// median line angle in degrees. The second return value is false when no
// line clears the vote threshold.
func detectSkewAngle(edges *image.Gray) (float64, bool) {
	b := edges.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0, false
	}

	diag := int(math.Ceil(math.Hypot(float64(w), float64(h))))
	accumulator := make([]int, houghThetaSteps*(2*diag+1))

	sins := make([]float64, houghThetaSteps)
	coss := make([]float64, houghThetaSteps)
	for t := 0; t < houghThetaSteps; t++ {
		theta := float64(t) * math.Pi / houghThetaSteps
		sins[t] = math.Sin(theta)
		coss[t] = math.Cos(theta)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if edges.Pix[y*edges.Stride+x] == 0 {
				continue
			}
			for t := 0; t < houghThetaSteps; t++ {
				rho := int(math.Round(float64(x)*coss[t] + float64(y)*sins[t]))
				accumulator[t*(2*diag+1)+rho+diag]++
			}
		}
	}

	var angles []float64
	for t := 0; t < houghThetaSteps; t++ {
		for r := 0; r < 2*diag+1; r++ {
			if accumulator[t*(2*diag+1)+r] < houghMinVotes {
				continue
			}
			// theta is the normal angle; the line itself is offset 90 degrees.
			angles = append(angles, normalizeAngle(float64(t)-90))
		}
	}

	if len(angles) == 0 {
		return 0, false
	}

	sort.Float64s(angles)
	median := angles[len(angles)/2]
	if len(angles)%2 == 0 {
		median = (angles[len(angles)/2-1] + angles[len(angles)/2]) / 2
	}
	return median, true
}

// normalizeAngle folds an angle into [-45, 45] degrees by quarter turns.
func normalizeAngle(deg float64) float64 {
	for deg > 45 {
		deg -= 90
	}
	for deg < -45 {
		deg += 90
	}
	return deg
}
