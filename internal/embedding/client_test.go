/**
 * Embedding client tests.
 */

package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MuthuAjay/contracts-v3/internal/logging"
)

func newTestClient(t *testing.T, dimensions int, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient("test-key", dimensions)
	require.NoError(t, err)
	client.baseURL = server.URL
	client.logger = logging.New("embedding-test")
	return client
}

func embeddingFor(dimensions int, fill float32) []float32 {
	vec := make([]float32, dimensions)
	for i := range vec {
		vec[i] = fill
	}
	return vec
}

func respond(w http.ResponseWriter, embeddings [][]float32, order []int) {
	resp := map[string]interface{}{"model": "voyage-3"}
	data := make([]map[string]interface{}, len(embeddings))
	for i, e := range embeddings {
		idx := i
		if order != nil {
			idx = order[i]
		}
		data[i] = map[string]interface{}{"embedding": e, "index": idx}
	}
	resp["data"] = data
	json.NewEncoder(w).Encode(resp)
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("", 1024)
	assert.Error(t, err)

	_, err = NewClient("key", 0)
	assert.Error(t, err)

	_, err = NewClient("key", -5)
	assert.Error(t, err)
}

func TestEmbedSingleText(t *testing.T) {
	client := newTestClient(t, 4, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "indemnification clause", req.Input)

		respond(w, [][]float32{embeddingFor(4, 0.5)}, nil)
	})

	vec, err := client.Embed(context.Background(), "indemnification clause")
	require.NoError(t, err)
	assert.Equal(t, embeddingFor(4, 0.5), vec)
}

func TestEmbedRejectsEmptyText(t *testing.T) {
	client := newTestClient(t, 4, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.Embed(context.Background(), "")
	assert.Error(t, err)
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	// The API may return items out of order; index drives placement.
	client := newTestClient(t, 2, func(w http.ResponseWriter, r *http.Request) {
		respond(w, [][]float32{embeddingFor(2, 0.2), embeddingFor(2, 0.1)}, []int{1, 0})
	})

	vecs, err := client.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, embeddingFor(2, 0.1), vecs[0])
	assert.Equal(t, embeddingFor(2, 0.2), vecs[1])
}

func TestEmbedBatchFallsBackPerText(t *testing.T) {
	var calls int
	client := newTestClient(t, 2, func(w http.ResponseWriter, r *http.Request) {
		calls++

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// Fail the batch request, serve the individual retries.
		if _, ok := req.Input.([]interface{}); ok {
			http.Error(w, "too many inputs", http.StatusBadRequest)
			return
		}
		respond(w, [][]float32{embeddingFor(2, 0.3)}, nil)
	})

	vecs, err := client.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, vecs, 3)
	assert.Equal(t, 4, calls)
}

func TestEmbedDimensionMismatch(t *testing.T) {
	client := newTestClient(t, 1024, func(w http.ResponseWriter, r *http.Request) {
		respond(w, [][]float32{embeddingFor(8, 0.5)}, nil)
	})

	_, err := client.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected embedding dimensions")
}

func TestEmbedTruncatesLongText(t *testing.T) {
	client := newTestClient(t, 2, func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		input, ok := req.Input.(string)
		require.True(t, ok)
		assert.Len(t, input, maxChars)

		respond(w, [][]float32{embeddingFor(2, 0.5)}, nil)
	})

	_, err := client.Embed(context.Background(), strings.Repeat("a", maxChars+500))
	require.NoError(t, err)
}

func TestTruncatePreservesRuneBoundaries(t *testing.T) {
	assert.Equal(t, "short", truncate("short"))

	// A 3-byte rune straddling the cut point must not be split.
	long := strings.Repeat("a", maxChars-1) + strings.Repeat("€", 10)
	out := truncate(long)
	assert.LessOrEqual(t, len(out), maxChars)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, maxChars-1, len(out))

	wide := strings.Repeat("€", maxChars)
	out = truncate(wide)
	assert.LessOrEqual(t, len(out), maxChars)
	assert.True(t, utf8.ValidString(out))
}

func TestEmbedBatchRequiresTexts(t *testing.T) {
	client := newTestClient(t, 2, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.EmbedBatch(context.Background(), nil)
	assert.Error(t, err)
}
