/**
 * Top-level document handler.
 *
 * Classifies the mime type, routes the file to the right processor, and
 * wraps the outcome in a ProcessingEnvelope. Single-file processing
 * propagates errors to the caller; batch processing converts every failure
 * into a failed envelope so one bad file never aborts the batch.
 */

package processor

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"github.com/MuthuAjay/contracts-v3/internal/config"
	pipelineerrors "github.com/MuthuAjay/contracts-v3/internal/errors"
	imagingpipe "github.com/MuthuAjay/contracts-v3/internal/imaging"
	"github.com/MuthuAjay/contracts-v3/internal/logging"
	"github.com/MuthuAjay/contracts-v3/internal/mimetype"
	"github.com/MuthuAjay/contracts-v3/internal/ocr"
)

// Handler dispatches files to format-specific processors.
type Handler struct {
	pdf          Processor
	image        Processor
	structured   Processor
	batchWorkers int
	logger       log.Logger
}

// NewHandler validates the configuration eagerly and constructs one
// processor per format. The recognizer is shared, so OCR calls across all
// processors serialize on its lock.
func NewHandler(cfg config.ProcessorConfig, recognizer ocr.Recognizer, batchWorkers int) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if batchWorkers <= 0 {
		batchWorkers = 4
	}

	var geometry *imagingpipe.Engine
	if len(cfg.Image.PreprocessingSteps) > 0 {
		geometry = imagingpipe.NewEngine(cfg.Image.PreprocessingSteps)
	}

	structured, err := NewStructuredProcessor(cfg.Structured)
	if err != nil {
		return nil, err
	}

	return &Handler{
		pdf:          NewPDFProcessor(cfg.PDF, recognizer, geometry),
		image:        NewImageProcessor(cfg.Image, recognizer, geometry),
		structured:   structured,
		batchWorkers: batchWorkers,
		logger:       logging.New("document-handler"),
	}, nil
}

// ProcessDocument classifies and processes a single file. Errors propagate
// to the caller.
func (h *Handler) ProcessDocument(ctx context.Context, filePath string) (*ProcessingEnvelope, error) {
	mimeType, err := mimetype.DetectFile(filePath)
	if err != nil {
		return nil, err
	}

	entry, err := mimetype.Lookup(filePath, mimeType)
	if err != nil {
		return nil, err
	}

	proc := h.processorFor(entry.Kind)
	if proc == nil {
		return nil, pipelineerrors.NewUnsupportedTypeError(filePath, mimeType)
	}

	h.logger.Info().Str("file", filePath).Str("mime_type", mimeType).Str("kind", string(entry.Kind)).Msg("processing document")

	result, err := proc.Process(ctx, filePath)
	if err != nil {
		return nil, err
	}

	return &ProcessingEnvelope{
		FilePath: filePath,
		MimeType: mimeType,
		Result:   result,
		Status:   StatusSuccess,
	}, nil
}

func (h *Handler) processorFor(kind mimetype.Kind) Processor {
	switch kind {
	case mimetype.KindPDF:
		return h.pdf
	case mimetype.KindImage:
		return h.image
	case mimetype.KindStructured:
		return h.structured
	default:
		return nil
	}
}

// processEnvelope is the batch-mode variant of ProcessDocument: it never
// returns an error, converting failures into failed envelopes.
func (h *Handler) processEnvelope(ctx context.Context, filePath string) *ProcessingEnvelope {
	envelope, err := h.ProcessDocument(ctx, filePath)
	if err == nil {
		return envelope
	}

	h.logger.Warn().Err(err).Str("file", filePath).Msg("document failed in batch")

	failed := &ProcessingEnvelope{
		FilePath: filePath,
		Status:   StatusFailed,
		Error:    err.Error(),
	}
	if mimeType, derr := mimetype.DetectFile(filePath); derr == nil {
		failed.MimeType = mimeType
	}
	return failed
}

// ProcessBatch runs the files across a bounded worker pool. The returned
// slice preserves the input order regardless of completion order.
func (h *Handler) ProcessBatch(ctx context.Context, filePaths []string) []*ProcessingEnvelope {
	results := make([]*ProcessingEnvelope, len(filePaths))

	var g errgroup.Group
	g.SetLimit(h.batchWorkers)
	for i, filePath := range filePaths {
		i, filePath := i, filePath
		g.Go(func() error {
			results[i] = h.processEnvelope(ctx, filePath)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// ProcessDirectory enumerates regular files under dir, sorted by path for
// deterministic output, and processes them as a batch.
func (h *Handler) ProcessDirectory(ctx context.Context, dir string, recursive bool) ([]*ProcessingEnvelope, error) {
	var files []string

	if recursive {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, pipelineerrors.NewLoadError(dir, err)
		}
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, pipelineerrors.NewLoadError(dir, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				files = append(files, filepath.Join(dir, entry.Name()))
			}
		}
	}

	sort.Strings(files)
	return h.ProcessBatch(ctx, files), nil
}
