package model

import (
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// DocumentChunk is a bounded span of text derived from one source document.
// ChunkIndex values are sequential per document starting at 0; ChunkText is
// immutable once written, Metadata may be amended with merge semantics.
type DocumentChunk struct {
	BaseModel
	DocumentID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"document_id"`
	OrganizationID uuid.UUID       `gorm:"type:uuid;not null;index" json:"organization_id"`
	ChunkIndex     int             `gorm:"not null;default:0" json:"chunk_index"`
	ChunkText      string          `gorm:"type:text;not null" json:"chunk_text"`
	TokenCount     int             `gorm:"default:0" json:"token_count"`
	Embedding      pgvector.Vector `gorm:"type:vector(1536)" json:"-"`
	Metadata       JSONMap         `gorm:"type:jsonb" json:"metadata"`

	// Relations
	Document *SourceDocument `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"document,omitempty"`
}

func (DocumentChunk) TableName() string {
	return "document_chunks"
}
