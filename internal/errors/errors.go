/**
 * Custom error types for the contract analysis pipeline.
 *
 * Every failure in the document pipeline carries a code so callers can
 * recover at the narrowest applicable scope: page > document > batch.
 */

package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Configuration errors - fatal at construction, never retried
	ErrorConfig ErrorCode = "CONFIG_ERROR"

	// Dispatch errors - fatal per file
	ErrorUnsupportedType   ErrorCode = "UNSUPPORTED_TYPE"
	ErrorUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"

	// Load errors - corrupt/unreadable document or image, fatal per file
	ErrorLoad ErrorCode = "LOAD_ERROR"

	// Page-scoped errors - recorded as an error page, never propagated
	ErrorPageProcessing ErrorCode = "PAGE_PROCESSING"

	// Embedded-image errors - logged and skipped
	ErrorImageExtraction ErrorCode = "IMAGE_EXTRACTION"

	// Processing errors
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
	ErrorOCRFailed         ErrorCode = "OCR_FAILED"

	// Storage errors
	ErrorStorageFailed ErrorCode = "STORAGE_FAILED"
)

// ProcessingError represents a structured pipeline error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	FilePath  string
	PageIndex int
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewConfigError(message string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorConfig,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func NewUnsupportedTypeError(filePath string, mimeType string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorUnsupportedType,
		Message:   fmt.Sprintf("Unsupported document type: %s", mimeType),
		FilePath:  filePath,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"mime_type": mimeType,
		},
	}
}

func NewUnsupportedFormatError(filePath string, extension string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorUnsupportedFormat,
		Message:   fmt.Sprintf("Unsupported file format: %s", extension),
		FilePath:  filePath,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"extension": extension,
		},
	}
}

func NewLoadError(filePath string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorLoad,
		Message:   fmt.Sprintf("Failed to load document: %s", filePath),
		FilePath:  filePath,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewPageProcessingError(filePath string, pageIndex int, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorPageProcessing,
		Message:   fmt.Sprintf("Page %d processing failed", pageIndex),
		FilePath:  filePath,
		PageIndex: pageIndex,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewImageExtractionError(filePath string, pageIndex int, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorImageExtraction,
		Message:   fmt.Sprintf("Embedded image extraction failed on page %d", pageIndex),
		FilePath:  filePath,
		PageIndex: pageIndex,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"job_id":           jobID,
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewOCRFailedError(filePath string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOCRFailed,
		Message:   "Text recognition failed",
		FilePath:  filePath,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewStorageFailedError(message string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStorageFailed,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var pe *ProcessingError
	if stderrors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool { return HasCode(err, ErrorConfig) }

// IsUnsupportedType reports whether err is an unsupported mime type error.
func IsUnsupportedType(err error) bool { return HasCode(err, ErrorUnsupportedType) }

// IsUnsupportedFormat reports whether err is an unsupported extension error.
func IsUnsupportedFormat(err error) bool { return HasCode(err, ErrorUnsupportedFormat) }

// IsLoadError reports whether err is a document load error.
func IsLoadError(err error) bool { return HasCode(err, ErrorLoad) }

// ToMap converts the error to a map for database storage
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	if e.FilePath != "" {
		result["file_path"] = e.FilePath
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
