package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Oleguzik/ngo-automation/internal/config"
	"github.com/Oleguzik/ngo-automation/internal/model"
	"github.com/Oleguzik/ngo-automation/internal/repository"
	"github.com/Oleguzik/ngo-automation/internal/service"
)

type DocumentHandler struct {
	documents *repository.DocumentRepository
	chunks    *repository.ChunkRepository
	ingest    *service.IngestService
	extractor service.TextExtractor
	cfg       *config.Config
}

func NewDocumentHandler(documents *repository.DocumentRepository, chunks *repository.ChunkRepository, ingest *service.IngestService, extractor service.TextExtractor, cfg *config.Config) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		chunks:    chunks,
		ingest:    ingest,
		extractor: extractor,
		cfg:       cfg,
	}
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	organizationID, err := uuid.Parse(c.Query("organization_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid organization_id"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	if header.Size > h.cfg.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds upload size limit"})
		return
	}

	docID := uuid.New()
	storagePath := filepath.Join(h.cfg.StoragePath, organizationID.String(), docID.String(), header.Filename)
	if err := os.MkdirAll(filepath.Dir(storagePath), 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := c.SaveUploadedFile(header, storagePath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	doc := &model.SourceDocument{
		OrganizationID: organizationID,
		FileName:       header.Filename,
		ContentType:    header.Header.Get("Content-Type"),
		Size:           header.Size,
		StoragePath:    storagePath,
		Status:         model.DocumentStatusPending,
	}
	doc.ID = docID

	if err := h.documents.Create(c.Request.Context(), doc); err != nil {
		os.Remove(storagePath)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	organizationID, err := uuid.Parse(c.Query("organization_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid organization_id"})
		return
	}

	status := c.Query("status")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	docs, total, err := h.documents.FindByOrganization(c.Request.Context(), organizationID, status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": docs,
		"pagination": gin.H{
			"total":  total,
			"limit":  limit,
			"offset": offset,
		},
	})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	doc, err := h.documents.FindByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	doc, err := h.documents.FindByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}

	if err := h.documents.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if doc.StoragePath != "" {
		os.Remove(doc.StoragePath)
	}

	c.Status(http.StatusNoContent)
}

// ProcessRequest overrides the default chunking configuration for one run.
// Overlap is a pointer so that an absent field falls back to the default
// while an explicit 0 or negative value is passed through.
type ProcessRequest struct {
	ChunkSize int    `json:"chunk_size"`
	Overlap   *int   `json:"overlap"`
	Strategy  string `json:"strategy"`
}

func (h *DocumentHandler) Process(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req ProcessRequest
	_ = c.ShouldBindJSON(&req)

	err = h.ingest.Process(c.Request.Context(), id, h.extractor, req.ChunkSize, req.Overlap, service.ChunkStrategy(req.Strategy))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	doc, err := h.documents.FindByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) ListChunks(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	chunks, total, err := h.chunks.FindByDocumentID(c.Request.Context(), id, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": chunks,
		"pagination": gin.H{
			"total":  total,
			"limit":  limit,
			"offset": offset,
		},
	})
}
