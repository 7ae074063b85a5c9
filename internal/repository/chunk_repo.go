package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/Oleguzik/ngo-automation/internal/model"
	"github.com/Oleguzik/ngo-automation/internal/service"
)

// ChunkRepository persists document chunks with their embeddings and answers
// nearest-neighbor queries via pgvector. It implements service.ChunkStore.
type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// Upsert replaces any previously stored chunks for the same index range and
// inserts the new batch.
func (r *ChunkRepository) Upsert(ctx context.Context, documentID uuid.UUID, chunks []model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	indexes := make([]int, len(chunks))
	for i, c := range chunks {
		indexes[i] = c.ChunkIndex
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ? AND chunk_index IN ?", documentID, indexes).
			Delete(&model.DocumentChunk{}).Error; err != nil {
			return err
		}
		return tx.CreateInBatches(chunks, 100).Error
	})
}

// Search runs cosine-distance nearest-neighbor search scoped to one
// organization, ordered by ascending distance (descending similarity).
func (r *ChunkRepository) Search(ctx context.Context, organizationID uuid.UUID, queryVector []float32, topK int) ([]service.SearchHit, error) {
	if topK <= 0 {
		topK = 10
	}

	var rows []struct {
		model.DocumentChunk
		DocumentName string  `gorm:"column:document_name"`
		Distance     float64 `gorm:"column:distance"`
	}

	err := r.db.WithContext(ctx).
		Table("document_chunks").
		Select("document_chunks.*, source_documents.file_name AS document_name, document_chunks.embedding <=> ? AS distance",
			pgvector.NewVector(queryVector)).
		Joins("JOIN source_documents ON source_documents.id = document_chunks.document_id").
		Where("document_chunks.organization_id = ?", organizationID).
		Where("document_chunks.embedding IS NOT NULL").
		Where("document_chunks.deleted_at IS NULL").
		Order("distance ASC").
		Limit(topK).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}

	hits := make([]service.SearchHit, 0, len(rows))
	for _, row := range rows {
		hits = append(hits, service.SearchHit{
			ChunkID:      row.ID,
			DocumentID:   row.DocumentID,
			DocumentName: row.DocumentName,
			ChunkIndex:   row.ChunkIndex,
			ChunkText:    row.ChunkText,
			Similarity:   1 - row.Distance,
			Metadata:     row.Metadata,
		})
	}
	return hits, nil
}

func (r *ChunkRepository) FindByDocumentID(ctx context.Context, documentID uuid.UUID, limit, offset int) ([]model.DocumentChunk, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.DocumentChunk{}).
		Where("document_id = ?", documentID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var chunks []model.DocumentChunk
	if err := query.Order("chunk_index ASC").Limit(limit).Offset(offset).Find(&chunks).Error; err != nil {
		return nil, 0, err
	}
	return chunks, total, nil
}

// AmendMetadata merges entries into a chunk's metadata. Chunk text is
// immutable; metadata is the only field amended after creation.
func (r *ChunkRepository) AmendMetadata(ctx context.Context, chunkID uuid.UUID, metadata model.JSONMap) error {
	var chunk model.DocumentChunk
	if err := r.db.WithContext(ctx).First(&chunk, "id = ?", chunkID).Error; err != nil {
		return err
	}
	chunk.Metadata = chunk.Metadata.Merge(metadata)
	return r.db.WithContext(ctx).Model(&chunk).Update("metadata", chunk.Metadata).Error
}

func (r *ChunkRepository) DeleteByDocumentID(ctx context.Context, documentID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&model.DocumentChunk{}).Error
}
