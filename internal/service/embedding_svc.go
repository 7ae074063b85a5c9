package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Pricing for text-embedding-3-small, USD per million tokens.
const embeddingCostPerMillionTokens = 0.02

// MinEmbedTextLen is the minimum trimmed length worth embedding.
const MinEmbedTextLen = 10

// DefaultEmbeddingBatchSize caps one batch call; callers pre-split larger
// inputs, the service never auto-splits.
const DefaultEmbeddingBatchSize = 100

const embeddingMaxAttempts = 3

// Embedder is the query-embedding dependency of the retrieval pipeline.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingService converts text into fixed-dimension vectors via an
// OpenAI-compatible embeddings endpoint, with bounded retry on transient
// failures and running token/cost accounting.
type EmbeddingService struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	batchSize  int
	httpClient *http.Client
	retryBase  time.Duration

	mu          sync.Mutex
	totalTokens int64
	totalCost   float64
}

// NewEmbeddingService creates a new embedding service
func NewEmbeddingService(apiKey, baseURL, model string, dimensions, batchSize int) *EmbeddingService {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if dimensions == 0 {
		dimensions = 1536
	}
	if batchSize <= 0 {
		batchSize = DefaultEmbeddingBatchSize
	}
	return &EmbeddingService{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		dimensions: dimensions,
		batchSize:  batchSize,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		retryBase:  time.Second,
	}
}

// EmbeddingRequest represents the OpenAI embedding API request
type EmbeddingRequest struct {
	Input      interface{} `json:"input"`
	Model      string      `json:"model"`
	Dimensions int         `json:"dimensions,omitempty"`
}

// EmbeddingResponse represents the OpenAI embedding API response
type EmbeddingResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// CostSummary is a read-only snapshot of the running usage counters.
type CostSummary struct {
	TotalTokens     int64   `json:"total_tokens"`
	TotalCost       float64 `json:"total_cost"`
	AvgCostPerToken float64 `json:"avg_cost_per_token"`
	Model           string  `json:"model"`
	Dimensions      int     `json:"dimensions"`
}

// GenerateEmbedding generates the embedding vector for a single text.
// Text shorter than MinEmbedTextLen after trimming is rejected.
func (s *EmbeddingService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if len(strings.TrimSpace(text)) < MinEmbedTextLen {
		return nil, fmt.Errorf("%w: text must be at least %d characters", ErrInvalidInput, MinEmbedTextLen)
	}

	vectors, err := s.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", ErrMalformedResponse)
	}
	return vectors[0], nil
}

// GenerateEmbeddingsBatch embeds up to batchSize texts in one API call.
// Output order matches input order.
func (s *EmbeddingService) GenerateEmbeddingsBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts list cannot be empty", ErrInvalidInput)
	}
	if len(texts) > s.batchSize {
		return nil, fmt.Errorf("%w: cannot embed more than %d texts at once, requested %d",
			ErrInvalidInput, s.batchSize, len(texts))
	}
	return s.embed(ctx, texts)
}

// embed performs the API call with retry-on-transient-failure and records
// usage once per successful call.
func (s *EmbeddingService) embed(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < embeddingMaxAttempts; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 1s, 2s across 3 attempts.
			delay := s.retryBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		vectors, err := s.embedOnce(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !isTransient(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("retries exhausted: %w", lastErr)
}

func (s *EmbeddingService) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := EmbeddingRequest{
		Input:      texts,
		Model:      s.model,
		Dimensions: s.dimensions,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/embeddings", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w (status %d): %s", ErrAuthFailed, resp.StatusCode, string(body))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w (status %d): %s", ErrRateLimited, resp.StatusCode, string(body))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w (status %d): %s", ErrMalformedResponse, resp.StatusCode, string(body))
	}

	var embResp EmbeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(embResp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrMalformedResponse, len(texts), len(embResp.Data))
	}

	// Order by the response index field, not array position.
	vectors := make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index < 0 || data.Index >= len(vectors) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrMalformedResponse, data.Index)
		}
		if len(data.Embedding) != s.dimensions {
			return nil, fmt.Errorf("%w: expected %d dimensions, got %d", ErrDimensionMismatch, s.dimensions, len(data.Embedding))
		}
		vectors[data.Index] = data.Embedding
	}

	s.trackUsage(embResp.Usage.PromptTokens)
	return vectors, nil
}

func isTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable)
}

// trackUsage records one successful call's token consumption.
func (s *EmbeddingService) trackUsage(tokens int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalTokens += int64(tokens)
	s.totalCost += float64(tokens) / 1_000_000 * embeddingCostPerMillionTokens
}

// GetCostSummary returns a snapshot of the running usage counters.
func (s *EmbeddingService) GetCostSummary() CostSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	avg := 0.0
	if s.totalTokens > 0 {
		avg = s.totalCost / float64(s.totalTokens)
	}
	return CostSummary{
		TotalTokens:     s.totalTokens,
		TotalCost:       s.totalCost,
		AvgCostPerToken: avg,
		Model:           s.model,
		Dimensions:      s.dimensions,
	}
}

// ResetMetrics zeroes the running counters. Persisted data is unaffected.
func (s *EmbeddingService) ResetMetrics() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalTokens = 0
	s.totalCost = 0
}

// GetDimensions returns the embedding dimensions
func (s *EmbeddingService) GetDimensions() int {
	return s.dimensions
}
