/**
 * End-to-end ingestion pipeline.
 *
 * ProcessAndIndex takes a file from disk through extraction and into the
 * retrieval index: classify, process, join page texts, derive the
 * per-document collection name, chunk and embed. A document whose collection
 * already exists is not re-embedded; its existing index is reused.
 */

package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/phuslu/log"

	"github.com/MuthuAjay/contracts-v3/internal/logging"
	"github.com/MuthuAjay/contracts-v3/internal/processor"
	"github.com/MuthuAjay/contracts-v3/internal/storage"
)

// DocumentProcessor turns a file into an extraction envelope.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, filePath string) (*processor.ProcessingEnvelope, error)
}

// Index is the slice of the storage layer the pipeline writes to.
type Index interface {
	SetActiveCollection(ctx context.Context, name string) (bool, error)
	IndexDocument(ctx context.Context, collectionName, text string) (int, error)
}

// Pipeline wires the document handler to the storage coordinator.
type Pipeline struct {
	handler DocumentProcessor
	store   Index
	logger  log.Logger
}

// Result is the outcome of one end-to-end ingestion.
type Result struct {
	Content        string `json:"content"`
	CollectionName string `json:"collection_name"`
	PageCount      int    `json:"page_count"`
	ChunksIndexed  int    `json:"chunks_indexed"`

	// Indexed reports whether this call embedded the document, as opposed
	// to reusing an existing collection.
	Indexed bool `json:"indexed"`
}

// New creates the pipeline.
func New(handler DocumentProcessor, store Index) *Pipeline {
	return &Pipeline{
		handler: handler,
		store:   store,
		logger:  logging.New("pipeline"),
	}
}

// ProcessAndIndex extracts the document's text and indexes it under its
// derived collection name.
func (p *Pipeline) ProcessAndIndex(ctx context.Context, filePath string) (*Result, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", filePath, err)
	}

	envelope, err := p.handler.ProcessDocument(ctx, filePath)
	if err != nil {
		return nil, err
	}

	content := envelope.Result.Text()
	if content == "" {
		return nil, fmt.Errorf("no text content extracted from %s", filePath)
	}

	collectionName := storage.CollectionNameFor(filePath, info.Size())

	// An existing collection means this exact file (stem and size) was
	// already indexed; skip re-embedding and reuse it.
	reuse, err := p.store.SetActiveCollection(ctx, collectionName)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Content:        content,
		CollectionName: collectionName,
		PageCount:      len(envelope.Result.Content),
		Indexed:        !reuse,
	}

	if reuse {
		p.logger.Info().Str("collection", collectionName).Msg("collection already indexed, reusing")
		return result, nil
	}

	chunks, err := p.store.IndexDocument(ctx, collectionName, content)
	if err != nil {
		return nil, err
	}
	result.ChunksIndexed = chunks

	p.logger.Info().Str("file", filePath).Str("collection", collectionName).Int("chunks", chunks).Msg("document processed and indexed")
	return result, nil
}
