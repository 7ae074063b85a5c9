package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Oleguzik/ngo-automation/internal/model"
	"github.com/Oleguzik/ngo-automation/internal/repository"
	"github.com/Oleguzik/ngo-automation/internal/service"
)

type RAGHandler struct {
	rag           *service.RAGService
	embedding     *service.EmbeddingService
	conversations *repository.ConversationRepository
}

func NewRAGHandler(rag *service.RAGService, embedding *service.EmbeddingService, conversations *repository.ConversationRepository) *RAGHandler {
	return &RAGHandler{
		rag:           rag,
		embedding:     embedding,
		conversations: conversations,
	}
}

func (h *RAGHandler) Query(c *gin.Context) {
	var req service.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.OrganizationID == uuid.Nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "organization_id is required"})
		return
	}

	answer, err := h.rag.Answer(c.Request.Context(), req)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, answer)
}

func (h *RAGHandler) Usage(c *gin.Context) {
	c.JSON(http.StatusOK, h.embedding.GetCostSummary())
}

func (h *RAGHandler) ResetUsage(c *gin.Context) {
	h.embedding.ResetMetrics()
	c.JSON(http.StatusOK, h.embedding.GetCostSummary())
}

type CreateConversationRequest struct {
	OrganizationID uuid.UUID `json:"organization_id" binding:"required"`
	Title          string    `json:"title"`
}

func (h *RAGHandler) CreateConversation(c *gin.Context) {
	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conversation := &model.Conversation{
		OrganizationID: req.OrganizationID,
		Title:          req.Title,
	}
	if err := h.conversations.Create(c.Request.Context(), conversation); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, conversation)
}

func (h *RAGHandler) GetConversation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	conversation, err := h.conversations.FindByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}

	c.JSON(http.StatusOK, conversation)
}

// statusForError maps the service error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrAuthFailed):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
