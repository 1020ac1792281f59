/**
 * PDF document processor.
 *
 * Pages are independent, so they fan out across a bounded worker pool and
 * results are re-sorted by page index before returning: completion order
 * under concurrency is non-deterministic and must not leak into the output.
 * The document handle is released exactly once on every exit path.
 */

package processor

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gen2brain/go-fitz"
	pdfcpu "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"github.com/MuthuAjay/contracts-v3/internal/config"
	pipelineerrors "github.com/MuthuAjay/contracts-v3/internal/errors"
	imagingpipe "github.com/MuthuAjay/contracts-v3/internal/imaging"
	"github.com/MuthuAjay/contracts-v3/internal/logging"
	"github.com/MuthuAjay/contracts-v3/internal/ocr"
)

// PDFProcessor extracts text from every page of a PDF, falling back to OCR
// for pages without a text layer.
type PDFProcessor struct {
	cfg     config.PDFConfig
	pages   *PageProcessor
	workers int
	logger  log.Logger
}

// NewPDFProcessor builds the PDF pipeline. The worker pool is capped at
// min(32, NumCPU+4) to avoid oversubscription on mixed I/O and CPU work.
func NewPDFProcessor(cfg config.PDFConfig, recognizer ocr.Recognizer, geometry *imagingpipe.Engine) *PDFProcessor {
	workers := runtime.NumCPU() + 4
	if workers > 32 {
		workers = 32
	}

	return &PDFProcessor{
		cfg:     cfg,
		pages:   NewPageProcessor(recognizer, geometry, cfg.OCREnabled, cfg.DPI),
		workers: workers,
		logger:  logging.New("pdf-processor"),
	}
}

// fitzPage adapts one page of an open fitz document to the PageSource
// interface.
type fitzPage struct {
	doc   *fitz.Document
	index int
}

func (p *fitzPage) NativeText() (string, error) {
	return p.doc.Text(p.index)
}

func (p *fitzPage) Rasterize(dpi int) (image.Image, error) {
	return p.doc.ImageDPI(p.index, float64(dpi))
}

// Process extracts all pages of the PDF at filePath.
func (p *PDFProcessor) Process(ctx context.Context, filePath string) (*DocumentResult, error) {
	doc, err := fitz.New(filePath)
	if err != nil {
		return nil, pipelineerrors.NewLoadError(filePath, err)
	}

	var closeOnce sync.Once
	closeDoc := func() {
		closeOnce.Do(func() {
			if cerr := doc.Close(); cerr != nil {
				p.logger.Warn().Err(cerr).Str("file", filePath).Msg("failed to close document handle")
			}
		})
	}
	defer closeDoc()

	pageCount := doc.NumPage()
	content := p.processPages(ctx, filePath, doc, pageCount)

	result := &DocumentResult{
		Content:  content,
		Metadata: p.buildMetadata(filePath, doc, pageCount),
	}

	if p.cfg.ExtractImages {
		result.ExtractedImages = p.extractImages(filePath)
	}

	// Release the handle before any post-processing touches the file.
	closeDoc()

	if p.cfg.SaveProcessedFiles {
		if err := p.saveTextDump(filePath, result); err != nil {
			p.logger.Warn().Err(err).Str("file", filePath).Msg("failed to save processed text")
		}
	}

	return result, nil
}

// processPages fans pages out across the worker pool, optionally in chunks,
// and returns a dense page-index-ordered slice.
func (p *PDFProcessor) processPages(ctx context.Context, filePath string, doc *fitz.Document, pageCount int) []PageResult {
	collected := make(chan PageResult, pageCount)

	chunk := p.cfg.ChunkSize
	if chunk <= 0 {
		chunk = pageCount
	}

	for start := 0; start < pageCount; start += chunk {
		end := start + chunk
		if end > pageCount {
			end = pageCount
		}

		var g errgroup.Group
		g.SetLimit(p.workers)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				collected <- p.pages.ProcessPage(ctx, filePath, i, &fitzPage{doc: doc, index: i})
				return nil
			})
		}
		// Workers never return errors; failures are error PageResults.
		_ = g.Wait()
	}
	close(collected)

	results := make([]PageResult, 0, pageCount)
	for page := range collected {
		results = append(results, page)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].PageIndex < results[j].PageIndex })

	return fillPageGaps(results, pageCount)
}

// fillPageGaps guarantees a dense 0..pageCount-1 sequence, inserting error
// pages for any index a worker failed to report.
func fillPageGaps(sorted []PageResult, pageCount int) []PageResult {
	dense := make([]PageResult, 0, pageCount)
	next := 0
	for _, page := range sorted {
		if page.PageIndex < next || page.PageIndex >= pageCount {
			continue
		}
		for next < page.PageIndex {
			dense = append(dense, PageResult{
				Source:    SourceError,
				PageIndex: next,
				Error:     "page result missing",
			})
			next++
		}
		dense = append(dense, page)
		next++
	}
	for next < pageCount {
		dense = append(dense, PageResult{
			Source:    SourceError,
			PageIndex: next,
			Error:     "page result missing",
		})
		next++
	}
	return dense
}

func (p *PDFProcessor) buildMetadata(filePath string, doc *fitz.Document, pageCount int) map[string]interface{} {
	metadata := map[string]interface{}{
		"page_count": pageCount,
		"format":     "pdf",
		"filename":   filepath.Base(filePath),
	}
	for key, value := range doc.Metadata() {
		if value != "" {
			metadata[key] = value
		}
	}
	return metadata
}

// extractedImageName matches pdfcpu's output naming: <base>_<page>_<id>.<ext>
var extractedImageName = regexp.MustCompile(`_(\d+)_([^_.]+)\.(\w+)$`)

// extractImages pulls embedded raster images into a temp directory and
// references them in the result. Per-image failures are logged and skipped.
func (p *PDFProcessor) extractImages(filePath string) []ExtractedImage {
	outDir, err := os.MkdirTemp("", "pdf-images-*")
	if err != nil {
		p.logger.Warn().Err(err).Str("file", filePath).Msg("failed to create image extraction dir")
		return nil
	}

	if err := pdfcpu.ExtractImagesFile(filePath, outDir, nil, nil); err != nil {
		p.logger.Warn().Err(pipelineerrors.NewImageExtractionError(filePath, -1, err)).Msg("image extraction failed")
		return nil
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		p.logger.Warn().Err(err).Str("dir", outDir).Msg("failed to list extracted images")
		return nil
	}

	perPage := map[int]int{}
	images := make([]ExtractedImage, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := extractedImageName.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}

		pageNr, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		pageIndex := pageNr - 1

		info, err := entry.Info()
		if err != nil {
			p.logger.Warn().Err(pipelineerrors.NewImageExtractionError(filePath, pageIndex, err)).Msg("skipping extracted image")
			continue
		}

		images = append(images, ExtractedImage{
			PageIndex:  pageIndex,
			ImageIndex: perPage[pageIndex],
			Format:     strings.ToLower(m[3]),
			Size:       info.Size(),
			Identifier: m[2],
			Path:       filepath.Join(outDir, entry.Name()),
		})
		perPage[pageIndex]++
	}

	sort.Slice(images, func(i, j int) bool {
		if images[i].PageIndex != images[j].PageIndex {
			return images[i].PageIndex < images[j].PageIndex
		}
		return images[i].ImageIndex < images[j].ImageIndex
	})
	return images
}

// saveTextDump writes the newline-joined page texts to
// <dir>/<stem>.txt when configured.
func (p *PDFProcessor) saveTextDump(filePath string, result *DocumentResult) error {
	dir := p.cfg.SaveProcessedFilesDir
	if dir == "" {
		dir = filepath.Dir(filePath)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir %s: %w", dir, err)
	}

	stem := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	texts := make([]string, 0, len(result.Content))
	for _, page := range result.Content {
		texts = append(texts, page.Text)
	}

	out := filepath.Join(dir, stem+".txt")
	return os.WriteFile(out, []byte(strings.Join(texts, "\n")), 0o644)
}
