package model

import (
	"time"

	"github.com/google/uuid"
)

type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// SourceDocument is an uploaded financial document (invoice, receipt, bank
// statement) that feeds the ingestion pipeline. Chunks cascade-delete with it.
type SourceDocument struct {
	BaseModel
	OrganizationID uuid.UUID      `gorm:"type:uuid;not null;index" json:"organization_id"`
	FileName       string         `gorm:"size:255;not null" json:"file_name"`
	ContentType    string         `gorm:"size:100" json:"content_type"`
	Size           int64          `gorm:"default:0" json:"size"`
	StoragePath    string         `gorm:"size:500" json:"-"`
	RawText        string         `gorm:"type:text" json:"-"`
	Status         DocumentStatus `gorm:"size:50;default:'pending'" json:"status"`
	ErrorMessage   string         `gorm:"type:text" json:"error_message,omitempty"`
	ProcessedAt    *time.Time     `json:"processed_at,omitempty"`
	Metadata       JSONMap        `gorm:"type:jsonb" json:"metadata,omitempty"`
}

func (SourceDocument) TableName() string {
	return "source_documents"
}
