package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDims = 4

func testVector(seed float32) []float32 {
	v := make([]float32, testDims)
	for i := range v {
		v[i] = seed + float32(i)
	}
	return v
}

// newEmbeddingTestServer answers /embeddings with one vector per input, token
// usage fixed at tokensPerCall.
func newEmbeddingTestServer(t *testing.T, tokensPerCall int, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		require.Equal(t, "/embeddings", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req EmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		inputs, ok := req.Input.([]interface{})
		require.True(t, ok)

		resp := EmbeddingResponse{Object: "list", Model: req.Model}
		for i := range inputs {
			resp.Data = append(resp.Data, struct {
				Object    string    `json:"object"`
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Object: "embedding", Index: i, Embedding: testVector(float32(i))})
		}
		resp.Usage.PromptTokens = tokensPerCall
		resp.Usage.TotalTokens = tokensPerCall
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestEmbeddingService(baseURL string) *EmbeddingService {
	s := NewEmbeddingService("test-key", baseURL, "text-embedding-3-small", testDims, 100)
	s.retryBase = time.Millisecond
	return s
}

func TestGenerateEmbedding(t *testing.T) {
	var calls int32
	server := newEmbeddingTestServer(t, 12, &calls)
	defer server.Close()

	s := newTestEmbeddingService(server.URL)
	vector, err := s.GenerateEmbedding(context.Background(), "a question about quarterly spending")
	require.NoError(t, err)
	assert.Equal(t, testVector(0), vector)
	assert.Equal(t, int32(1), calls)
}

func TestGenerateEmbeddingRejectsShortText(t *testing.T) {
	var calls int32
	server := newEmbeddingTestServer(t, 12, &calls)
	defer server.Close()

	s := newTestEmbeddingService(server.URL)
	_, err := s.GenerateEmbedding(context.Background(), "  short   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, calls)
}

func TestGenerateEmbeddingsBatchValidation(t *testing.T) {
	s := newTestEmbeddingService("http://unused")

	_, err := s.GenerateEmbeddingsBatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	tooMany := make([]string, 101)
	for i := range tooMany {
		tooMany[i] = "some chunk text worth embedding"
	}
	_, err = s.GenerateEmbeddingsBatch(context.Background(), tooMany)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGenerateEmbeddingsBatchOrdersByIndex(t *testing.T) {
	// Vectors come back in reverse array order; the index field restores
	// input order.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req EmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		inputs := req.Input.([]interface{})

		resp := EmbeddingResponse{Object: "list"}
		for i := len(inputs) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, struct {
				Object    string    `json:"object"`
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Object: "embedding", Index: i, Embedding: testVector(float32(i))})
		}
		resp.Usage.PromptTokens = 30
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	s := newTestEmbeddingService(server.URL)
	vectors, err := s.GenerateEmbeddingsBatch(context.Background(), []string{
		"first chunk of text",
		"second chunk of text",
		"third chunk of text",
	})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for i := range vectors {
		assert.Equal(t, testVector(float32(i)), vectors[i])
	}
}

func TestGenerateEmbeddingDimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := EmbeddingResponse{Object: "list"}
		resp.Data = append(resp.Data, struct {
			Object    string    `json:"object"`
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}{Object: "embedding", Index: 0, Embedding: []float32{1, 2}})
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	s := newTestEmbeddingService(server.URL)
	_, err := s.GenerateEmbedding(context.Background(), "a question about quarterly spending")
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestGenerateEmbeddingRetriesRateLimit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		resp := EmbeddingResponse{Object: "list"}
		resp.Data = append(resp.Data, struct {
			Object    string    `json:"object"`
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}{Object: "embedding", Index: 0, Embedding: testVector(0)})
		resp.Usage.PromptTokens = 7
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	s := newTestEmbeddingService(server.URL)
	vector, err := s.GenerateEmbedding(context.Background(), "a question about quarterly spending")
	require.NoError(t, err)
	assert.Equal(t, testVector(0), vector)
	assert.Equal(t, int32(3), calls)
}

func TestGenerateEmbeddingExhaustsRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	s := newTestEmbeddingService(server.URL)
	_, err := s.GenerateEmbedding(context.Background(), "a question about quarterly spending")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(3), calls)
}

func TestGenerateEmbeddingAuthFailureDoesNotRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	s := newTestEmbeddingService(server.URL)
	_, err := s.GenerateEmbedding(context.Background(), "a question about quarterly spending")
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.Equal(t, int32(1), calls)
}

func TestGenerateEmbeddingTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	s := newTestEmbeddingService(url)
	_, err := s.GenerateEmbedding(context.Background(), "a question about quarterly spending")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NotErrorIs(t, err, ErrRateLimited)
}

func TestCostSummaryAccumulatesAndResets(t *testing.T) {
	var calls int32
	server := newEmbeddingTestServer(t, 1000, &calls)
	defer server.Close()

	s := newTestEmbeddingService(server.URL)

	_, err := s.GenerateEmbedding(context.Background(), "a question about quarterly spending")
	require.NoError(t, err)
	_, err = s.GenerateEmbeddingsBatch(context.Background(), []string{
		"first chunk of text",
		"second chunk of text",
	})
	require.NoError(t, err)

	summary := s.GetCostSummary()
	assert.Equal(t, int64(2000), summary.TotalTokens)
	assert.InDelta(t, 2000.0/1_000_000*0.02, summary.TotalCost, 1e-12)
	assert.InDelta(t, summary.TotalCost/2000, summary.AvgCostPerToken, 1e-12)
	assert.Equal(t, "text-embedding-3-small", summary.Model)
	assert.Equal(t, testDims, summary.Dimensions)

	s.ResetMetrics()
	summary = s.GetCostSummary()
	assert.Zero(t, summary.TotalTokens)
	assert.Zero(t, summary.TotalCost)
	assert.Zero(t, summary.AvgCostPerToken)
}
