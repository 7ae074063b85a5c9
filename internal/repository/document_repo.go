package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Oleguzik/ngo-automation/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.SourceDocument) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *DocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.SourceDocument, error) {
	var doc model.SourceDocument
	if err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepository) FindByOrganization(ctx context.Context, organizationID uuid.UUID, status string, limit, offset int) ([]model.SourceDocument, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.SourceDocument{}).
		Where("organization_id = ?", organizationID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var docs []model.SourceDocument
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&docs).Error; err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func (r *DocumentRepository) Update(ctx context.Context, doc *model.SourceDocument) error {
	return r.db.WithContext(ctx).Save(doc).Error
}

// Delete removes a document and cascades to its chunks.
func (r *DocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("document_id = ?", id).Delete(&model.DocumentChunk{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(&model.SourceDocument{}, "id = ?", id).Error
}
