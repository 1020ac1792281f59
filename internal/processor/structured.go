/**
 * Structured document processor.
 *
 * Dispatches purely on file extension: JSON, XML, spreadsheets, markdown,
 * plain text, and word-processor documents each get their own sub-handler.
 * No OCR or geometry is involved; output is the parsed representation plus
 * a flat text rendering for downstream indexing.
 */

package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"
	mxj "github.com/clbanning/mxj/v2"
	"github.com/extrame/xls"
	"github.com/phuslu/log"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/MuthuAjay/contracts-v3/internal/config"
	pipelineerrors "github.com/MuthuAjay/contracts-v3/internal/errors"
	"github.com/MuthuAjay/contracts-v3/internal/logging"
)

// StructuredProcessor parses machine-readable document formats.
type StructuredProcessor struct {
	cfg      config.StructuredConfig
	markdown goldmark.Markdown
	schema   *jsonschema.Schema
	logger   log.Logger
}

// NewStructuredProcessor builds the structured pipeline. The JSON schema,
// when validation is enabled, is compiled eagerly so a bad schema path fails
// at construction rather than on the first document.
func NewStructuredProcessor(cfg config.StructuredConfig) (*StructuredProcessor, error) {
	p := &StructuredProcessor{
		cfg:      cfg,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		logger:   logging.New("structured-processor"),
	}

	if cfg.SchemaValidation && cfg.DocumentSchemaPath != "" {
		schema, err := jsonschema.Compile(cfg.DocumentSchemaPath)
		if err != nil {
			return nil, pipelineerrors.NewConfigError(fmt.Sprintf("failed to compile document schema %s: %v", cfg.DocumentSchemaPath, err))
		}
		p.schema = schema
	}

	return p, nil
}

// Process parses the file according to its extension.
func (p *StructuredProcessor) Process(ctx context.Context, filePath string) (*DocumentResult, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".json":
		return p.processJSON(filePath)
	case ".xml":
		return p.processXML(filePath)
	case ".xlsx":
		return p.processSpreadsheet(filePath)
	case ".xls":
		return p.processLegacySpreadsheet(filePath)
	case ".md":
		return p.processMarkdown(filePath)
	case ".txt":
		return p.processText(filePath)
	case ".docx", ".doc":
		return p.processWordDocument(filePath, ext)
	default:
		return nil, pipelineerrors.NewUnsupportedFormatError(filePath, ext)
	}
}

func (p *StructuredProcessor) processJSON(filePath string) (*DocumentResult, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, pipelineerrors.NewLoadError(filePath, err)
	}

	var parsed interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, pipelineerrors.NewLoadError(filePath, err)
	}

	if p.schema != nil {
		if err := p.schema.Validate(parsed); err != nil {
			return nil, pipelineerrors.NewLoadError(filePath, fmt.Errorf("schema validation failed: %w", err))
		}
	}

	metadata := baseMetadata(filePath, "json", int64(len(data)))
	switch v := parsed.(type) {
	case map[string]interface{}:
		metadata["key_count"] = len(v)
	case []interface{}:
		metadata["element_count"] = len(v)
	}

	return &DocumentResult{
		Content:    []PageResult{nativePage(string(data))},
		Metadata:   metadata,
		Structured: parsed,
	}, nil
}

func (p *StructuredProcessor) processXML(filePath string) (*DocumentResult, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, pipelineerrors.NewLoadError(filePath, err)
	}

	parsed, err := mxj.NewMapXml(data)
	if err != nil {
		return nil, pipelineerrors.NewLoadError(filePath, err)
	}

	metadata := baseMetadata(filePath, "xml", int64(len(data)))
	metadata["key_count"] = len(parsed)

	return &DocumentResult{
		Content:    []PageResult{nativePage(string(data))},
		Metadata:   metadata,
		Structured: map[string]interface{}(parsed),
	}, nil
}

func (p *StructuredProcessor) processSpreadsheet(filePath string) (*DocumentResult, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, pipelineerrors.NewLoadError(filePath, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			p.logger.Warn().Err(cerr).Str("file", filePath).Msg("failed to close spreadsheet")
		}
	}()

	sheets := f.GetSheetList()
	tables := make(map[string][][]string, len(sheets))
	var text strings.Builder
	rowCount := 0

	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			p.logger.Warn().Err(err).Str("file", filePath).Str("sheet", sheet).Msg("skipping unreadable sheet")
			continue
		}
		tables[sheet] = rows
		rowCount += len(rows)

		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
	}

	info, _ := os.Stat(filePath)
	var size int64
	if info != nil {
		size = info.Size()
	}

	metadata := baseMetadata(filePath, "xlsx", size)
	metadata["sheet_count"] = len(sheets)
	metadata["row_count"] = rowCount

	return &DocumentResult{
		Content:    []PageResult{nativePage(text.String())},
		Metadata:   metadata,
		Structured: tables,
	}, nil
}

// maxLegacySpreadsheetRows caps how much of a BIFF workbook is read.
const maxLegacySpreadsheetRows = 100000

func (p *StructuredProcessor) processLegacySpreadsheet(filePath string) (*DocumentResult, error) {
	wb, err := xls.Open(filePath, "utf-8")
	if err != nil {
		return nil, pipelineerrors.NewLoadError(filePath, err)
	}

	rows := wb.ReadAllCells(maxLegacySpreadsheetRows)
	var text strings.Builder
	for _, row := range rows {
		text.WriteString(strings.Join(row, "\t"))
		text.WriteString("\n")
	}

	info, _ := os.Stat(filePath)
	var size int64
	if info != nil {
		size = info.Size()
	}

	metadata := baseMetadata(filePath, "xls", size)
	metadata["sheet_count"] = wb.NumSheets()
	metadata["row_count"] = len(rows)

	return &DocumentResult{
		Content:    []PageResult{nativePage(text.String())},
		Metadata:   metadata,
		Structured: map[string][][]string{"cells": rows},
	}, nil
}

func (p *StructuredProcessor) processMarkdown(filePath string) (*DocumentResult, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, pipelineerrors.NewLoadError(filePath, err)
	}

	var html bytes.Buffer
	if err := p.markdown.Convert(data, &html); err != nil {
		return nil, pipelineerrors.NewLoadError(filePath, err)
	}

	metadata := baseMetadata(filePath, "markdown", int64(len(data)))
	metadata["line_count"] = strings.Count(string(data), "\n") + 1

	// The raw markdown is the indexable text; the rendered HTML rides along
	// for consumers that want it.
	return &DocumentResult{
		Content:    []PageResult{nativePage(string(data))},
		Metadata:   metadata,
		Structured: map[string]interface{}{"html": html.String()},
	}, nil
}

func (p *StructuredProcessor) processText(filePath string) (*DocumentResult, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, pipelineerrors.NewLoadError(filePath, err)
	}

	metadata := baseMetadata(filePath, "text", int64(len(data)))
	metadata["line_count"] = strings.Count(string(data), "\n") + 1

	return &DocumentResult{
		Content:  []PageResult{nativePage(string(data))},
		Metadata: metadata,
	}, nil
}

func (p *StructuredProcessor) processWordDocument(filePath string, ext string) (*DocumentResult, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, pipelineerrors.NewLoadError(filePath, err)
	}
	defer f.Close()

	var text string
	switch ext {
	case ".docx":
		text, _, err = docconv.ConvertDocx(f)
	case ".doc":
		text, _, err = docconv.ConvertDoc(f)
	}
	if err != nil {
		return nil, pipelineerrors.NewLoadError(filePath, err)
	}

	paragraphs := splitParagraphs(text)

	info, _ := os.Stat(filePath)
	var size int64
	if info != nil {
		size = info.Size()
	}

	metadata := baseMetadata(filePath, strings.TrimPrefix(ext, "."), size)
	metadata["paragraph_count"] = len(paragraphs)

	return &DocumentResult{
		Content:    []PageResult{nativePage(text)},
		Metadata:   metadata,
		Structured: map[string]interface{}{"paragraphs": paragraphs},
	}, nil
}

// splitParagraphs breaks extracted text on blank-line boundaries, dropping
// empty fragments.
func splitParagraphs(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
	paragraphs := make([]string, 0, len(raw))
	for _, p := range raw {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	return paragraphs
}

func nativePage(text string) PageResult {
	return PageResult{
		Text:       text,
		Source:     SourceNative,
		PageIndex:  0,
		Confidence: confidenceOf(1.0),
	}
}

func baseMetadata(filePath, format string, size int64) map[string]interface{} {
	return map[string]interface{}{
		"format":   format,
		"filename": filepath.Base(filePath),
		"size":     size,
	}
}
