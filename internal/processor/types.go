/**
 * Shared result types for document processing.
 *
 * Every processor produces a DocumentResult; the handler wraps it in a
 * ProcessingEnvelope with the final status. Page-level failures live inside
 * PageResult so partial results survive.
 */

package processor

import (
	"context"

	"github.com/MuthuAjay/contracts-v3/internal/ocr"
)

// Source records how a page's text was obtained.
type Source string

const (
	// SourceNative means text came straight from the document.
	SourceNative Source = "native"
	// SourceOCR means text was recognized from a rasterized page.
	SourceOCR Source = "ocr"
	// SourceNone means no text was found and OCR was disabled or empty.
	SourceNone Source = "none"
	// SourceError means the page failed to process.
	SourceError Source = "error"
)

// Dimensions is the pixel size of a rasterized page or image.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// PageResult is the extraction outcome for one page or single-unit input.
// Source "error" always carries an empty Text and a non-empty Error.
type PageResult struct {
	Text       string          `json:"text"`
	Source     Source          `json:"source"`
	PageIndex  int             `json:"page_index"`
	Confidence *float64        `json:"confidence,omitempty"`
	Error      string          `json:"error,omitempty"`
	Dimensions *Dimensions     `json:"dimensions,omitempty"`
	TextBlocks []ocr.TextBlock `json:"text_blocks,omitempty"`
}

// ExtractedImage references one embedded raster image pulled from a
// document. Image bytes stay on disk; the result only carries the path.
type ExtractedImage struct {
	PageIndex  int    `json:"page_index"`
	ImageIndex int    `json:"image_index"`
	Format     string `json:"format"`
	Size       int64  `json:"size"`
	Identifier string `json:"identifier"`
	Path       string `json:"path"`
}

// DocumentResult aggregates all page results for one document. Content is
// always sorted by page index with no gaps; a failed page appears as an
// error PageResult at its index.
type DocumentResult struct {
	Content         []PageResult           `json:"content"`
	Metadata        map[string]interface{} `json:"metadata"`
	ExtractedImages []ExtractedImage       `json:"extracted_images,omitempty"`
	Structured      interface{}            `json:"structured,omitempty"`
	Error           string                 `json:"error,omitempty"`
}

// Text joins all page texts with newlines, skipping empty pages.
func (r *DocumentResult) Text() string {
	var out string
	for _, page := range r.Content {
		if page.Text == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += page.Text
	}
	return out
}

// Status is the terminal outcome of processing one file.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// ProcessingEnvelope is the handler-level wrapper produced for every file.
type ProcessingEnvelope struct {
	FilePath string          `json:"file_path"`
	MimeType string          `json:"mime_type,omitempty"`
	Result   *DocumentResult `json:"result,omitempty"`
	Status   Status          `json:"status"`
	Error    string          `json:"error,omitempty"`
}

// Processor extracts a DocumentResult from one file on disk.
type Processor interface {
	Process(ctx context.Context, filePath string) (*DocumentResult, error)
}

func confidenceOf(v float64) *float64 { return &v }
