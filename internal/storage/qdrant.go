/**
 * Qdrant-backed vector store for document retrieval.
 *
 * Each uploaded document gets its own collection, named from the file stem
 * and byte size, so re-uploading the same file reuses its index instead of
 * re-embedding. Uses Qdrant's native gRPC API.
 */

package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"
	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/MuthuAjay/contracts-v3/internal/embedding"
	pipelineerrors "github.com/MuthuAjay/contracts-v3/internal/errors"
	"github.com/MuthuAjay/contracts-v3/internal/logging"
)

// Chunk is one retrieved document fragment with its similarity score.
type Chunk struct {
	ID    string
	Text  string
	Score float32
}

// VectorDB stores and retrieves document chunks in Qdrant.
type VectorDB struct {
	points      qdrant.PointsClient
	collections qdrant.CollectionsClient
	conn        *grpc.ClientConn
	embedder    embedding.Embedder
	active      string
	logger      log.Logger
}

// NewVectorDB connects to Qdrant at address.
func NewVectorDB(address string, embedder embedding.Embedder) (*VectorDB, error) {
	if address == "" {
		return nil, fmt.Errorf("qdrant address is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	conn, err := grpc.Dial(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	return &VectorDB{
		points:      qdrant.NewPointsClient(conn),
		collections: qdrant.NewCollectionsClient(conn),
		conn:        conn,
		embedder:    embedder,
		logger:      logging.New("vector-db"),
	}, nil
}

var collectionNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// CollectionNameFor derives the per-document collection name from the file
// stem and its size in bytes.
func CollectionNameFor(filePath string, size int64) string {
	stem := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	name := strings.ToLower(fmt.Sprintf("%s_%d", stem, size))
	return strings.Trim(collectionNameSanitizer.ReplaceAllString(name, "_"), "_")
}

// CreateCollection creates the named collection if it does not exist yet.
func (v *VectorDB) CreateCollection(ctx context.Context, name string) error {
	exists, err := v.collectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = v.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(v.embedder.Dimensions()),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return pipelineerrors.NewStorageFailedError(fmt.Sprintf("failed to create collection %s", name), err)
	}

	v.logger.Info().Str("collection", name).Int("dimensions", v.embedder.Dimensions()).Msg("collection created")
	return nil
}

func (v *VectorDB) collectionExists(ctx context.Context, name string) (bool, error) {
	listResp, err := v.collections.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return false, pipelineerrors.NewStorageFailedError("failed to list collections", err)
	}
	for _, col := range listResp.Collections {
		if col.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// SetActiveCollection switches subsequent AddDocuments/Query calls to the
// named collection. Returns false when the collection does not exist.
func (v *VectorDB) SetActiveCollection(ctx context.Context, name string) (bool, error) {
	exists, err := v.collectionExists(ctx, name)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}
	v.active = name
	return true, nil
}

// ActiveCollection returns the currently selected collection name.
func (v *VectorDB) ActiveCollection() string { return v.active }

// AddDocuments embeds the given chunks and upserts them into the active
// collection.
func (v *VectorDB) AddDocuments(ctx context.Context, texts []string) error {
	if v.active == "" {
		return pipelineerrors.NewStorageFailedError("no active collection", nil)
	}
	if len(texts) == 0 {
		return nil
	}

	vectors, err := v.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return pipelineerrors.NewStorageFailedError("failed to embed documents", err)
	}

	now := time.Now().Unix()
	points := make([]*qdrant.PointStruct, 0, len(texts))
	for i, text := range texts {
		points = append(points, &qdrant.PointStruct{
			Id: &qdrant.PointId{
				PointIdOptions: &qdrant.PointId_Uuid{Uuid: uuid.New().String()},
			},
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vector{
					Vector: &qdrant.Vector{Data: vectors[i]},
				},
			},
			Payload: map[string]*qdrant.Value{
				"text": {
					Kind: &qdrant.Value_StringValue{StringValue: text},
				},
				"chunk_index": {
					Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(i)},
				},
				"timestamp": {
					Kind: &qdrant.Value_IntegerValue{IntegerValue: now},
				},
			},
		})
	}

	_, err = v.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: v.active,
		Points:         points,
	})
	if err != nil {
		return pipelineerrors.NewStorageFailedError(fmt.Sprintf("failed to upsert %d chunks", len(points)), err)
	}

	v.logger.Info().Str("collection", v.active).Int("chunks", len(points)).Msg("documents indexed")
	return nil
}

// Query runs a similarity search against the active collection.
func (v *VectorDB) Query(ctx context.Context, text string, k int) ([]Chunk, error) {
	if v.active == "" {
		return nil, pipelineerrors.NewStorageFailedError("no active collection", nil)
	}
	if k <= 0 {
		k = 5
	}

	vector, err := v.embedder.Embed(ctx, text)
	if err != nil {
		return nil, pipelineerrors.NewStorageFailedError("failed to embed query", err)
	}

	results, err := v.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: v.active,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, pipelineerrors.NewStorageFailedError("vector search failed", err)
	}

	chunks := make([]Chunk, 0, len(results.Result))
	for _, result := range results.Result {
		chunk := Chunk{Score: result.Score}
		if result.Id != nil {
			chunk.ID = result.Id.GetUuid()
		}
		if result.Payload != nil {
			if textValue, ok := result.Payload["text"]; ok {
				chunk.Text = textValue.GetStringValue()
			}
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// GetContext retrieves the top-k chunks for a query and joins them into one
// prompt-ready context block.
func (v *VectorDB) GetContext(ctx context.Context, query string, k int) (string, error) {
	chunks, err := v.Query(ctx, query, k)
	if err != nil {
		return "", err
	}

	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.Text != "" {
			texts = append(texts, chunk.Text)
		}
	}
	return strings.Join(texts, "\n\n"), nil
}

// Close releases the gRPC connection.
func (v *VectorDB) Close() error {
	if v.conn != nil {
		return v.conn.Close()
	}
	return nil
}
