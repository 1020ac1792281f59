/**
 * Mime classification and processor dispatch table.
 *
 * Detection prefers magic bytes over the file extension: upstream sources
 * routinely hand over files labelled application/octet-stream. Markdown is
 * the one exception - content sniffing on markdown is unreliable, so the .md
 * extension always wins.
 *
 * The mapping from mime type to processor kind and config section lives in a
 * single registry so the two can never drift apart.
 */

package mimetype

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	pipelineerrors "github.com/MuthuAjay/contracts-v3/internal/errors"
)

// Kind identifies which document processor handles a mime type.
type Kind string

const (
	KindPDF        Kind = "pdf"
	KindImage      Kind = "image"
	KindStructured Kind = "structured"
)

// Entry maps a mime type to its processor kind and config section key.
type Entry struct {
	Kind      Kind
	ConfigKey string
}

// Registry is the single source of truth for mime dispatch. Every supported
// mime type appears exactly once; the config key is derived from the kind so
// the two tables of the legacy implementation cannot disagree.
var Registry = map[string]Entry{
	"application/pdf": {Kind: KindPDF, ConfigKey: "pdf"},

	"image/jpeg": {Kind: KindImage, ConfigKey: "image"},
	"image/png":  {Kind: KindImage, ConfigKey: "image"},
	"image/tiff": {Kind: KindImage, ConfigKey: "image"},
	"image/bmp":  {Kind: KindImage, ConfigKey: "image"},
	"image/webp": {Kind: KindImage, ConfigKey: "image"},

	"application/json":         {Kind: KindStructured, ConfigKey: "structured"},
	"text/xml":                 {Kind: KindStructured, ConfigKey: "structured"},
	"application/xml":          {Kind: KindStructured, ConfigKey: "structured"},
	"text/markdown":            {Kind: KindStructured, ConfigKey: "structured"},
	"text/x-markdown":          {Kind: KindStructured, ConfigKey: "structured"},
	"text/plain":               {Kind: KindStructured, ConfigKey: "structured"},
	"application/msword":       {Kind: KindStructured, ConfigKey: "structured"},
	"application/vnd.ms-excel": {Kind: KindStructured, ConfigKey: "structured"},

	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       {Kind: KindStructured, ConfigKey: "structured"},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {Kind: KindStructured, ConfigKey: "structured"},
}

// Lookup resolves a mime type to its registry entry. An unknown mime type
// fails with an UnsupportedTypeError.
func Lookup(filePath string, mimeType string) (Entry, error) {
	entry, ok := Registry[mimeType]
	if !ok {
		return Entry{}, pipelineerrors.NewUnsupportedTypeError(filePath, mimeType)
	}
	return entry, nil
}

// DetectFile classifies a file on disk and returns its canonical mime type.
func DetectFile(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".md") {
		return "text/markdown", nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", pipelineerrors.NewLoadError(path, err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := f.Read(head)
	head = head[:n]

	if mime := DetectBytes(head, filepath.Ext(path)); mime != "" {
		return strings.TrimSpace(mime), nil
	}

	return "", pipelineerrors.NewUnsupportedTypeError(path, "unknown")
}

// DetectBytes detects the mime type from leading content bytes, using the
// extension only to disambiguate container formats (zip-based Office files)
// and as a last resort for plain-text content.
func DetectBytes(data []byte, ext string) string {
	ext = strings.ToLower(ext)

	if len(data) >= 4 {
		// PDF: %PDF-
		if bytes.HasPrefix(data, []byte("%PDF")) {
			return "application/pdf"
		}

		// PNG: 0x89 'P' 'N' 'G' 0x0D 0x0A 0x1A 0x0A
		if len(data) >= 8 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}) {
			return "image/png"
		}

		// JPEG: 0xFF 0xD8 0xFF
		if bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}) {
			return "image/jpeg"
		}

		// TIFF: little-endian or big-endian header
		if bytes.HasPrefix(data, []byte{0x49, 0x49, 0x2A, 0x00}) || bytes.HasPrefix(data, []byte{0x4D, 0x4D, 0x00, 0x2A}) {
			return "image/tiff"
		}

		// BMP: 'B' 'M'
		if bytes.HasPrefix(data, []byte("BM")) {
			return "image/bmp"
		}

		// WebP: 'R' 'I' 'F' 'F' .... 'W' 'E' 'B' 'P'
		if len(data) > 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP" {
			return "image/webp"
		}

		// ZIP container: DOCX/XLSX or plain zip. The extension decides.
		if bytes.HasPrefix(data, []byte{0x50, 0x4B, 0x03, 0x04}) {
			switch ext {
			case ".docx":
				return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
			case ".xlsx":
				return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
			}
			return "application/zip"
		}

		// MS Office legacy (DOC, XLS): OLE compound file header. The
		// container is identical for both; the extension decides.
		if len(data) >= 8 && bytes.HasPrefix(data, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}) {
			if ext == ".xls" {
				return "application/vnd.ms-excel"
			}
			return "application/msword"
		}
	}

	return detectText(data, ext)
}

// detectText classifies text-like content: JSON and XML by leading syntax,
// anything else valid UTF-8 as plain text.
func detectText(data []byte, ext string) string {
	trimmed := bytes.TrimLeft(data, " \t\r\n\xef\xbb\xbf")

	if len(trimmed) > 0 {
		switch trimmed[0] {
		case '{', '[':
			return "application/json"
		case '<':
			if bytes.HasPrefix(trimmed, []byte("<?xml")) || ext == ".xml" {
				return "text/xml"
			}
		}
	}

	switch ext {
	case ".json":
		return "application/json"
	case ".xml":
		return "text/xml"
	}

	if utf8.Valid(data) {
		return "text/plain"
	}

	return ""
}
