/**
 * Per-format document processing configuration.
 *
 * The three sections (pdf, image, structured) mirror the processor kinds.
 * Validation is eager: an invalid or incomplete configuration fails at
 * construction with a ConfigError, never later inside process().
 */

package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	pipelineerrors "github.com/MuthuAjay/contracts-v3/internal/errors"
)

// Preprocessing step vocabulary for the image geometry pipeline.
const (
	StepDenoise  = "denoise"
	StepDeskew   = "deskew"
	StepContrast = "contrast"
)

// PDFConfig configures the PDF document processor.
//
// DPI is validated in [72, 1200]. Above roughly 400 dpi rasterization time
// grows superlinearly while recognition accuracy gains are negligible, so the
// default stays at 300.
type PDFConfig struct {
	OCREnabled bool   `json:"ocr_enabled"`
	Language   string `json:"language" validate:"required"`
	DPI        int    `json:"dpi" validate:"gte=72,lte=1200"`

	// ChunkSize bounds how many page tasks are in flight at once. Zero means
	// submit all pages immediately.
	ChunkSize int `json:"chunk_size" validate:"gte=0"`

	ExtractImages         bool   `json:"extract_images"`
	SaveProcessedFiles    bool   `json:"save_processed_files"`
	SaveProcessedFilesDir string `json:"save_processed_files_dir"`

	// OCRTimeout bounds a single page's recognition call so a pathological
	// page cannot stall the worker pool.
	OCRTimeout time.Duration `json:"ocr_timeout"`
}

// ImageConfig configures the single-image document processor.
type ImageConfig struct {
	OCRLanguage        string   `json:"ocr_language" validate:"required"`
	PreprocessingSteps []string `json:"preprocessing_steps" validate:"dive,oneof=denoise deskew contrast"`
}

// StructuredConfig configures the structured-format processor.
type StructuredConfig struct {
	SchemaValidation bool `json:"schema_validation"`

	// DocumentSchemaPath, when set together with SchemaValidation, points at a
	// JSON Schema that parsed JSON documents are validated against.
	DocumentSchemaPath string `json:"document_schema_path"`
}

// ProcessorConfig carries the three required per-format sections.
type ProcessorConfig struct {
	PDF        PDFConfig        `json:"pdf" validate:"required"`
	Image      ImageConfig      `json:"image" validate:"required"`
	Structured StructuredConfig `json:"structured" validate:"required"`
}

// DefaultProcessorConfig returns the configuration used when no explicit
// processing config is supplied.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PDF: PDFConfig{
			OCREnabled:            true,
			Language:              "eng",
			DPI:                   300,
			ChunkSize:             10,
			ExtractImages:         false,
			SaveProcessedFiles:    true,
			SaveProcessedFilesDir: "processed_files",
			OCRTimeout:            60 * time.Second,
		},
		Image: ImageConfig{
			OCRLanguage:        "eng",
			PreprocessingSteps: []string{StepDenoise, StepDeskew, StepContrast},
		},
		Structured: StructuredConfig{
			SchemaValidation: true,
		},
	}
}

var validate = validator.New()

// Validate checks every section. It is called once at construction time.
func (c *ProcessorConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return pipelineerrors.NewConfigError(validationMessage(err))
	}

	if c.PDF.DPI < 72 || c.PDF.DPI > 1200 {
		return pipelineerrors.NewConfigError(fmt.Sprintf("pdf.dpi must be between 72 and 1200, got %d", c.PDF.DPI))
	}

	if c.PDF.OCRTimeout < 0 {
		return pipelineerrors.NewConfigError("pdf.ocr_timeout must not be negative")
	}

	return nil
}

// ParseProcessorConfig decodes and validates a JSON processing configuration.
// All three top-level sections (pdf, image, structured) must be present.
func ParseProcessorConfig(raw []byte) (*ProcessorConfig, error) {
	var sections map[string]json.RawMessage
	if err := json.Unmarshal(raw, &sections); err != nil {
		return nil, pipelineerrors.NewConfigError(fmt.Sprintf("invalid processing config: %v", err))
	}

	for _, key := range []string{"pdf", "image", "structured"} {
		if _, ok := sections[key]; !ok {
			return nil, pipelineerrors.NewConfigError(fmt.Sprintf("missing processor configuration section: %s", key))
		}
	}

	cfg := DefaultProcessorConfig()
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, pipelineerrors.NewConfigError(fmt.Sprintf("invalid processing config: %v", err))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validationMessage(err error) string {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		ve := verrs[0]
		return fmt.Sprintf("invalid processing config: field %s failed %s validation", ve.Namespace(), ve.Tag())
	}
	return fmt.Sprintf("invalid processing config: %v", err)
}
