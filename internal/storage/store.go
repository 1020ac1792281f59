/**
 * Storage coordinator.
 *
 * Wires PostgreSQL (job state, analysis history) and Qdrant (retrieval
 * index) behind one handle. Indexing a document creates its per-document
 * collection, chunks the text, and upserts the embedded chunks.
 */

package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/phuslu/log"

	"github.com/MuthuAjay/contracts-v3/internal/embedding"
	"github.com/MuthuAjay/contracts-v3/internal/logging"
)

const (
	// chunkSize is the character budget per indexed chunk.
	chunkSize = 1000
	// chunkOverlap keeps neighboring chunks sharing context at boundaries.
	chunkOverlap = 200
)

// Store coordinates relational and vector storage.
type Store struct {
	Postgres *PostgresClient
	Vectors  *VectorDB
	logger   log.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewStore connects both backends. On partial failure, the already-open
// connection is closed before returning.
func NewStore(databaseURL, qdrantAddress string, embedder embedding.Embedder) (*Store, error) {
	postgres, err := NewPostgresClient(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}

	vectors, err := NewVectorDB(qdrantAddress, embedder)
	if err != nil {
		postgres.Close()
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	return &Store{
		Postgres: postgres,
		Vectors:  vectors,
		logger:   logging.New("store"),
	}, nil
}

// SetActiveCollection points retrieval at the named collection, reporting
// whether it exists.
func (s *Store) SetActiveCollection(ctx context.Context, name string) (bool, error) {
	return s.Vectors.SetActiveCollection(ctx, name)
}

// IndexDocument chunks the extracted text into the named collection and
// returns the number of chunks indexed.
func (s *Store) IndexDocument(ctx context.Context, collectionName, text string) (int, error) {
	if err := s.Vectors.CreateCollection(ctx, collectionName); err != nil {
		return 0, err
	}

	ok, err := s.Vectors.SetActiveCollection(ctx, collectionName)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("collection %s missing after creation", collectionName)
	}

	chunks := chunkText(text, chunkSize, chunkOverlap)
	if len(chunks) == 0 {
		s.logger.Warn().Str("collection", collectionName).Msg("no text to index")
		return 0, nil
	}

	if err := s.Vectors.AddDocuments(ctx, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// Close releases both backend connections. Calling it more than once is
// safe; later calls return the first result instead of a spurious
// already-closed error.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if err := s.Postgres.Close(); err != nil {
			s.closeErr = err
		}
		if err := s.Vectors.Close(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
	})
	return s.closeErr
}

// chunkText splits text into overlapping chunks, preferring to break at
// whitespace near the boundary so words stay intact.
func chunkText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 || len(text) <= size {
		return []string{text}
	}
	if overlap >= size {
		overlap = size / 2
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, strings.TrimSpace(text[start:]))
			break
		}

		// Walk back to the nearest whitespace so the cut lands between words.
		cut := end
		for cut > start && !isSpace(text[cut]) {
			cut--
		}
		if cut == start {
			cut = end
		}

		chunk := strings.TrimSpace(text[start:cut])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}
