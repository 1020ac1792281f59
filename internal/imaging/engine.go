/**
 * Image preprocessing engine for scanned document pages.
 *
 * An Engine applies a configured sequence of enhancement steps before a page
 * is handed to text recognition. Steps never mutate their input: each one
 * receives the output of the previous step and returns a fresh image. A step
 * that panics or fails is skipped and the pipeline continues with the image
 * it had before that step, so one bad page never takes down a batch.
 */

package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/phuslu/log"

	"github.com/MuthuAjay/contracts-v3/internal/config"
	"github.com/MuthuAjay/contracts-v3/internal/logging"
)

// Engine runs preprocessing steps in configured order.
type Engine struct {
	steps  []string
	logger log.Logger
}

// NewEngine creates an engine for the given step sequence. Step names are
// validated by the config layer; an unknown name that slips through is
// logged and skipped at run time.
func NewEngine(steps []string) *Engine {
	return &Engine{
		steps:  append([]string(nil), steps...),
		logger: logging.New("imaging"),
	}
}

// Process applies every configured step in order and returns the enhanced
// image. The input image is never modified.
func (e *Engine) Process(img image.Image) image.Image {
	current := imaging.Clone(img)

	for _, step := range e.steps {
		next, err := e.applyStep(step, current)
		if err != nil {
			e.logger.Warn().Err(err).Str("step", step).Msg("preprocessing step failed, continuing with previous image")
			continue
		}
		current = next
	}

	return current
}

// applyStep dispatches a single step and converts panics from the per-pixel
// code into errors so the caller can fall back.
func (e *Engine) applyStep(step string, img *image.NRGBA) (result *image.NRGBA, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("step %s panicked: %v", step, r)
		}
	}()

	switch step {
	case config.StepDenoise:
		return denoise(img), nil
	case config.StepDeskew:
		return deskew(img), nil
	case config.StepContrast:
		return enhanceContrast(img), nil
	default:
		return nil, fmt.Errorf("unknown preprocessing step %q", step)
	}
}

// deskew estimates the dominant text angle from edge geometry and rotates
// the page upright. An image with no detectable line structure is returned
// unchanged.
func deskew(img *image.NRGBA) *image.NRGBA {
	gray := imaging.Grayscale(img)
	edges := cannyEdges(gray)

	angle, ok := detectSkewAngle(edges)
	if !ok || angle == 0 {
		return img
	}

	// Rotating by the opposite of the measured angle brings the lines
	// back to horizontal.
	return rotateCubic(img, -angle)
}
