/**
 * Per-page extraction strategy.
 *
 * A page is first asked for its native text layer. Only when that comes back
 * empty does the page get rasterized, preprocessed, and sent through OCR.
 * Every failure is contained at the page boundary: a panic or error inside
 * one page produces an error PageResult and sibling pages continue.
 */

package processor

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/phuslu/log"

	imagingpipe "github.com/MuthuAjay/contracts-v3/internal/imaging"
	"github.com/MuthuAjay/contracts-v3/internal/logging"
	"github.com/MuthuAjay/contracts-v3/internal/ocr"
)

// PageSource abstracts one page of a document for the page processor.
type PageSource interface {
	// NativeText returns the page's embedded text layer, possibly empty.
	NativeText() (string, error)

	// Rasterize renders the page to an image at the given DPI.
	Rasterize(dpi int) (image.Image, error)
}

// PageProcessor turns one PageSource into a PageResult.
type PageProcessor struct {
	recognizer ocr.Recognizer
	geometry   *imagingpipe.Engine
	ocrEnabled bool
	dpi        int
	logger     log.Logger
}

// NewPageProcessor wires the page strategy. geometry may be nil when no
// preprocessing steps are configured; recognizer may be nil only when OCR is
// disabled.
func NewPageProcessor(recognizer ocr.Recognizer, geometry *imagingpipe.Engine, ocrEnabled bool, dpi int) *PageProcessor {
	return &PageProcessor{
		recognizer: recognizer,
		geometry:   geometry,
		ocrEnabled: ocrEnabled,
		dpi:        dpi,
		logger:     logging.New("page-processor"),
	}
}

// ProcessPage runs the native-then-OCR strategy for one page. It never
// panics and never returns an error; failures become an error PageResult.
func (p *PageProcessor) ProcessPage(ctx context.Context, filePath string, pageIndex int, src PageSource) (result PageResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Str("file", filePath).Int("page", pageIndex).Msgf("page processing panicked: %v", r)
			result = p.errorPage(pageIndex, fmt.Errorf("page processing panicked: %v", r))
		}
	}()

	text, err := src.NativeText()
	if err != nil {
		p.logger.Warn().Err(err).Str("file", filePath).Int("page", pageIndex).Msg("native text extraction failed")
		return p.errorPage(pageIndex, err)
	}

	if strings.TrimSpace(text) != "" {
		return PageResult{
			Text:       text,
			Source:     SourceNative,
			PageIndex:  pageIndex,
			Confidence: confidenceOf(1.0),
		}
	}

	if !p.ocrEnabled {
		return PageResult{Source: SourceNone, PageIndex: pageIndex}
	}

	img, err := src.Rasterize(p.dpi)
	if err != nil {
		p.logger.Warn().Err(err).Str("file", filePath).Int("page", pageIndex).Msg("page rasterization failed")
		return p.errorPage(pageIndex, err)
	}

	if p.geometry != nil {
		img = p.geometry.Process(img)
	}

	blocks, err := p.recognizer.Recognize(ctx, img)
	if err != nil {
		p.logger.Warn().Err(err).Str("file", filePath).Int("page", pageIndex).Msg("recognition failed")
		return p.errorPage(pageIndex, err)
	}

	bounds := img.Bounds()
	dims := &Dimensions{Width: bounds.Dx(), Height: bounds.Dy()}

	if len(blocks) == 0 {
		return PageResult{Source: SourceNone, PageIndex: pageIndex, Dimensions: dims}
	}

	fragments := make([]string, 0, len(blocks))
	var confidenceSum float64
	for _, block := range blocks {
		fragments = append(fragments, block.Text)
		confidenceSum += block.Confidence
	}

	return PageResult{
		Text:       strings.Join(fragments, " "),
		Source:     SourceOCR,
		PageIndex:  pageIndex,
		Confidence: confidenceOf(confidenceSum / float64(len(blocks))),
		Dimensions: dims,
		TextBlocks: blocks,
	}
}

func (p *PageProcessor) errorPage(pageIndex int, err error) PageResult {
	return PageResult{
		Source:    SourceError,
		PageIndex: pageIndex,
		Error:     err.Error(),
	}
}
