package model

import (
	"github.com/google/uuid"
)

type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
)

// Conversation is an append-only sequence of turns scoped to one organization.
// Only the most recent turns are replayed as context for follow-up questions.
type Conversation struct {
	BaseModel
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index" json:"organization_id"`
	Title          string    `gorm:"size:255" json:"title"`

	Turns []ConversationTurn `gorm:"foreignKey:ConversationID" json:"turns,omitempty"`
}

func (Conversation) TableName() string {
	return "rag_conversations"
}

// ConversationTurn is one user question or assistant answer. Assistant turns
// carry the citations and confidence of the answer they recorded.
type ConversationTurn struct {
	BaseModel
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index" json:"conversation_id"`
	Role           TurnRole  `gorm:"size:20;not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	Sources        JSONMap   `gorm:"type:jsonb" json:"sources,omitempty"`
	Confidence     *float64  `json:"confidence,omitempty"`
}

func (ConversationTurn) TableName() string {
	return "rag_conversation_turns"
}
