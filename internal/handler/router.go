package handler

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Oleguzik/ngo-automation/internal/config"
	"github.com/Oleguzik/ngo-automation/internal/repository"
	"github.com/Oleguzik/ngo-automation/internal/service"
)

// SetupRouter wires repositories, services and handlers into the HTTP surface.
func SetupRouter(db *gorm.DB, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	documentRepo := repository.NewDocumentRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	conversationRepo := repository.NewConversationRepository(db)

	chunkingService := service.NewChunkingService()
	embeddingService := service.NewEmbeddingService(
		cfg.EmbeddingAPIKey,
		cfg.EmbeddingBaseURL,
		cfg.EmbeddingModel,
		cfg.EmbeddingDimensions,
		cfg.EmbeddingBatchSize,
	)
	completionClient := service.NewOpenAICompletionClient(
		cfg.CompletionAPIKey,
		cfg.CompletionBaseURL,
		cfg.CompletionModel,
	)
	ingestService := service.NewIngestService(
		documentRepo,
		chunkRepo,
		chunkingService,
		embeddingService,
		os.ReadFile,
		cfg.EmbeddingBatchSize,
	)
	retrievalService := service.NewRetrievalService(embeddingService, chunkRepo)
	ragService := service.NewRAGService(retrievalService, completionClient, conversationRepo)

	documentHandler := NewDocumentHandler(documentRepo, chunkRepo, ingestService, service.PlainTextExtractor{}, cfg)
	ragHandler := NewRAGHandler(ragService, embeddingService, conversationRepo)

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "rag-service",
			"version": "1.0.0",
			"status":  "running",
		})
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.Ping() != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	router.GET("/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "alive"})
	})

	v1 := router.Group("/v1")
	{
		documents := v1.Group("/documents")
		{
			documents.POST("", documentHandler.Upload)
			documents.GET("", documentHandler.List)
			documents.GET("/:id", documentHandler.Get)
			documents.DELETE("/:id", documentHandler.Delete)
			documents.POST("/:id/process", documentHandler.Process)
			documents.GET("/:id/chunks", documentHandler.ListChunks)
		}

		rag := v1.Group("/rag")
		{
			rag.POST("/query", ragHandler.Query)
		}

		embeddings := v1.Group("/embeddings")
		{
			embeddings.GET("/usage", ragHandler.Usage)
			embeddings.POST("/usage/reset", ragHandler.ResetUsage)
		}

		conversations := v1.Group("/conversations")
		{
			conversations.POST("", ragHandler.CreateConversation)
			conversations.GET("/:id", ragHandler.GetConversation)
		}
	}

	return router
}
