package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Oleguzik/ngo-automation/internal/model"
)

// Retrieval defaults, shared with the RAG orchestrator.
const (
	DefaultTopK          = 10
	DefaultMinSimilarity = 0.7
)

// SearchHit is one nearest-neighbor candidate returned by the chunk store,
// ordered by descending cosine similarity.
type SearchHit struct {
	ChunkID      uuid.UUID     `json:"chunk_id"`
	DocumentID   uuid.UUID     `json:"document_id"`
	DocumentName string        `json:"document_name"`
	ChunkIndex   int           `json:"chunk_index"`
	ChunkText    string        `json:"chunk_text"`
	Similarity   float64       `json:"similarity"`
	Metadata     model.JSONMap `json:"metadata"`
}

// ChunkStore persists chunks with their vectors and answers nearest-neighbor
// queries. Tenant isolation is the store's responsibility; the pipeline only
// passes the organization scope through.
type ChunkStore interface {
	Upsert(ctx context.Context, documentID uuid.UUID, chunks []model.DocumentChunk) error
	Search(ctx context.Context, organizationID uuid.UUID, queryVector []float32, topK int) ([]SearchHit, error)
	DeleteByDocumentID(ctx context.Context, documentID uuid.UUID) error
}

// RetrievalService turns a natural-language query into a ranked list of
// relevant chunks.
type RetrievalService struct {
	embedder Embedder
	store    ChunkStore
}

func NewRetrievalService(embedder Embedder, store ChunkStore) *RetrievalService {
	return &RetrievalService{embedder: embedder, store: store}
}

// Search embeds the query, delegates to the chunk store scoped to one
// organization and filters by the similarity threshold. An empty result is a
// valid outcome, not an error. Ties keep the store's own stable order; no
// secondary sort is imposed here.
func (s *RetrievalService) Search(ctx context.Context, query string, organizationID uuid.UUID, topK int, minSimilarity float64) ([]SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", ErrInvalidInput)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	queryVector, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.store.Search(ctx, organizationID, queryVector, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	filtered := make([]SearchHit, 0, len(hits))
	for _, hit := range hits {
		if hit.Similarity < minSimilarity {
			continue
		}
		filtered = append(filtered, hit)
	}
	return filtered, nil
}
