/**
 * Embedding client for document chunks.
 *
 * Talks to the VoyageAI embeddings API over plain HTTP. Batch requests are
 * chunked at the API's 100-text limit and fall back to per-text calls when a
 * batch fails, so one oversized request never sinks a whole document.
 */

package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/phuslu/log"

	"github.com/MuthuAjay/contracts-v3/internal/logging"
)

const (
	defaultBaseURL = "https://api.voyageai.com/v1/embeddings"
	defaultModel   = "voyage-3"

	// Approximate character budget before the API starts rejecting inputs.
	maxChars = 16000

	// API limit on texts per batch request.
	batchSize = 100
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Client is the VoyageAI-backed Embedder.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	dimensions int
	httpClient *http.Client
	logger     log.Logger
}

type embeddingRequest struct {
	Input interface{} `json:"input"`
	Model string      `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// NewClient creates an embedding client. dimensions is the expected vector
// size of the configured model; responses with any other size are rejected.
func NewClient(apiKey string, dimensions int) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive, got %d", dimensions)
	}

	return &Client{
		apiKey:     apiKey,
		model:      defaultModel,
		baseURL:    defaultBaseURL,
		dimensions: dimensions,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logging.New("embedding"),
	}, nil
}

// Dimensions returns the configured vector size.
func (c *Client) Dimensions() int { return c.dimensions }

// Embed generates one embedding.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}

	embeddings, err := c.request(ctx, truncate(text))
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding data in response")
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for many texts, preserving input order.
// Batches that fail are retried text by text.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts provided")
	}

	all := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		truncated := make([]string, len(batch))
		for i, t := range batch {
			truncated[i] = truncate(t)
		}

		embeddings, err := c.request(ctx, truncated)
		if err == nil && len(embeddings) == len(batch) {
			all = append(all, embeddings...)
			continue
		}

		c.logger.Warn().Err(err).Int("start", start).Int("end", end-1).Msg("batch embedding failed, falling back to individual requests")
		for i, t := range batch {
			embedding, err := c.Embed(ctx, t)
			if err != nil {
				return nil, fmt.Errorf("failed to embed text %d: %w", start+i, err)
			}
			all = append(all, embedding)
		}
	}

	return all, nil
}

// request posts one embeddings call; input is a string or []string.
func (c *Client) request(ctx context.Context, input interface{}) ([][]float32, error) {
	jsonData, err := json.Marshal(embeddingRequest{Input: input, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding API returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response: %w", err)
	}

	embeddings := make([][]float32, len(parsed.Data))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(embeddings) {
			return nil, fmt.Errorf("invalid embedding index: %d", item.Index)
		}
		if len(item.Embedding) != c.dimensions {
			return nil, fmt.Errorf("unexpected embedding dimensions: got %d, expected %d", len(item.Embedding), c.dimensions)
		}
		embeddings[item.Index] = item.Embedding
	}

	c.logger.Debug().Int("count", len(embeddings)).Int("tokens", parsed.Usage.TotalTokens).Dur("duration", time.Since(start)).Msg("embeddings generated")
	return embeddings, nil
}

// truncate cuts text to the API budget, backing off to a rune boundary so
// a multi-byte character is never split into invalid UTF-8.
func truncate(text string) string {
	if len(text) <= maxChars {
		return text
	}

	cut := maxChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
