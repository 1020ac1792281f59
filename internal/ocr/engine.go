/**
 * Text recognition engine backed by Tesseract.
 *
 * A single tesseract client is not safe for concurrent use, so the engine
 * serializes calls with a mutex. Page workers run in parallel upstream and
 * queue here; recognition itself is the bottleneck either way. Each call
 * carries a timeout because a pathological page can hang tesseract for
 * minutes.
 */

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/otiai10/gosseract/v2"

	pipelineerrors "github.com/MuthuAjay/contracts-v3/internal/errors"
)

// BoundingBox is the pixel rectangle of a recognized text line.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TextBlock is one recognized line with its confidence in [0, 1].
type TextBlock struct {
	Text        string      `json:"text"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"bounding_box"`
}

// Recognizer extracts text blocks from a page image.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) ([]TextBlock, error)
}

// Config controls engine construction.
type Config struct {
	// Language is the tesseract language pack, e.g. "eng" or "eng+deu".
	Language string

	// OrientationDetection enables automatic page orientation and script
	// detection before recognition.
	OrientationDetection bool

	// Timeout bounds a single Recognize call. Zero means no limit.
	Timeout time.Duration
}

// Engine wraps a tesseract client behind the Recognizer interface.
type Engine struct {
	mu      sync.Mutex
	client  *gosseract.Client
	timeout time.Duration

	// recognizeFn performs the actual recognition. Tests swap it out to
	// avoid the cgo dependency.
	recognizeFn func(img image.Image) ([]TextBlock, error)
}

// NewEngine creates a recognition engine. Close must be called to release
// the tesseract handle.
func NewEngine(cfg Config) (*Engine, error) {
	client := gosseract.NewClient()

	if err := client.SetLanguage(cfg.Language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language %q: %w", cfg.Language, err)
	}
	if cfg.OrientationDetection {
		if err := client.SetPageSegMode(gosseract.PSM_AUTO_OSD); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to enable orientation detection: %w", err)
		}
	}

	e := &Engine{
		client:  client,
		timeout: cfg.Timeout,
	}
	e.recognizeFn = e.tesseractRecognize
	return e, nil
}

// Close releases the tesseract client.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client.Close()
}

// Recognize runs OCR on the image and returns non-blank text lines. Calls
// are serialized; concurrent callers block until the engine is free.
func (e *Engine) Recognize(ctx context.Context, img image.Image) ([]TextBlock, error) {
	e.mu.Lock()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	type result struct {
		blocks []TextBlock
		err    error
	}
	done := make(chan result, 1)

	// The tesseract call cannot be interrupted mid-recognition; on timeout
	// the goroutine is left to finish and its result is discarded.
	go func() {
		blocks, err := e.recognizeFn(img)
		done <- result{blocks: blocks, err: err}
	}()

	select {
	case <-ctx.Done():
		// The abandoned call still owns the tesseract client. Hold the
		// engine lock until it returns so no other caller can touch the
		// client mid-recognition.
		go func() {
			<-done
			e.mu.Unlock()
		}()
		return nil, pipelineerrors.NewOCRFailedError("", ctx.Err())
	case r := <-done:
		e.mu.Unlock()
		return r.blocks, r.err
	}
}

// tesseractRecognize feeds the image to tesseract and collects line-level
// bounding boxes.
func (e *Engine) tesseractRecognize(img image.Image) ([]TextBlock, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode page image: %w", err)
	}

	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, pipelineerrors.NewOCRFailedError("", err)
	}

	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, pipelineerrors.NewOCRFailedError("", err)
	}

	blocks := make([]TextBlock, 0, len(boxes))
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}
		blocks = append(blocks, TextBlock{
			Text:       text,
			Confidence: clampConfidence(box.Confidence / 100),
			BoundingBox: BoundingBox{
				X:      box.Box.Min.X,
				Y:      box.Box.Min.Y,
				Width:  box.Box.Dx(),
				Height: box.Box.Dy(),
			},
		})
	}
	return blocks, nil
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
