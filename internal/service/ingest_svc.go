package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/Oleguzik/ngo-automation/internal/model"
)

// TextExtractor turns raw file bytes into plain text. PDF/OCR extraction is
// an external concern; the pipeline only depends on this contract. A nil or
// empty result is a hard stop before chunking.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// PlainTextExtractor handles text-native uploads (txt, csv, md).
type PlainTextExtractor struct{}

func (PlainTextExtractor) Extract(_ context.Context, data []byte) (string, error) {
	return string(data), nil
}

// DocumentStore is the slice of document persistence the ingestion pipeline
// needs.
type DocumentStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.SourceDocument, error)
	Update(ctx context.Context, doc *model.SourceDocument) error
}

// FileReader loads the stored bytes of an uploaded document.
type FileReader func(storagePath string) ([]byte, error)

// IngestService runs the document ingestion pipeline: extract text, chunk,
// embed in batches, persist chunks with vectors. Successful batches are kept
// even when later batches fail; failures are reported on the document.
type IngestService struct {
	documents DocumentStore
	chunks    ChunkStore
	chunking  *ChunkingService
	embedding *EmbeddingService
	readFile  FileReader
	batchSize int
}

func NewIngestService(documents DocumentStore, chunks ChunkStore, chunking *ChunkingService, embedding *EmbeddingService, readFile FileReader, batchSize int) *IngestService {
	if batchSize <= 0 {
		batchSize = DefaultEmbeddingBatchSize
	}
	return &IngestService{
		documents: documents,
		chunks:    chunks,
		chunking:  chunking,
		embedding: embedding,
		readFile:  readFile,
		batchSize: batchSize,
	}
}

// Process ingests one uploaded document end to end and records the outcome
// on its status fields. A nil overlap means DefaultOverlap; an explicit
// negative value reaches chunking validation and fails there.
func (s *IngestService) Process(ctx context.Context, documentID uuid.UUID, extractor TextExtractor, chunkSize int, overlap *int, strategy ChunkStrategy) error {
	doc, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	doc.Status = model.DocumentStatusProcessing
	doc.ErrorMessage = ""
	if err := s.documents.Update(ctx, doc); err != nil {
		return fmt.Errorf("update document: %w", err)
	}

	text, err := s.extractText(ctx, doc, extractor)
	if err != nil {
		return s.fail(ctx, doc, err)
	}

	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	ov := DefaultOverlap
	if overlap != nil {
		ov = *overlap
	}
	if strategy == "" {
		strategy = StrategyFixed
	}

	textChunks, err := s.chunking.Chunk(text, chunkSize, ov, strategy, model.JSONMap{
		"file_name": doc.FileName,
	})
	if err != nil {
		return s.fail(ctx, doc, fmt.Errorf("chunk text: %w", err))
	}
	if len(textChunks) == 0 {
		return s.fail(ctx, doc, fmt.Errorf("%w: document produced no chunks", ErrInvalidInput))
	}

	// Re-processing replaces the whole chunk set; stale indexes from a
	// previous run must not survive a smaller new run.
	if err := s.chunks.DeleteByDocumentID(ctx, doc.ID); err != nil {
		return s.fail(ctx, doc, fmt.Errorf("clear previous chunks: %w", err))
	}

	var failedBatches []string
	for start := 0; start < len(textChunks); start += s.batchSize {
		end := min(start+s.batchSize, len(textChunks))
		batch := textChunks[start:end]

		if err := s.embedAndStore(ctx, doc, batch); err != nil {
			failedBatches = append(failedBatches, fmt.Sprintf("chunks %d-%d: %v", start, end-1, err))
		}
	}

	doc.RawText = text
	if len(failedBatches) > 0 {
		doc.Status = model.DocumentStatusFailed
		doc.ErrorMessage = strings.Join(failedBatches, "; ")
		if updErr := s.documents.Update(ctx, doc); updErr != nil {
			return fmt.Errorf("update document: %w", updErr)
		}
		return fmt.Errorf("embedding failed for %d of %d batches", len(failedBatches), (len(textChunks)+s.batchSize-1)/s.batchSize)
	}

	now := time.Now()
	doc.Status = model.DocumentStatusCompleted
	doc.ProcessedAt = &now
	return s.documents.Update(ctx, doc)
}

func (s *IngestService) extractText(ctx context.Context, doc *model.SourceDocument, extractor TextExtractor) (string, error) {
	text := doc.RawText
	if text == "" {
		if extractor == nil {
			return "", fmt.Errorf("%w: no text extractor configured", ErrInvalidInput)
		}
		data, err := s.readFile(doc.StoragePath)
		if err != nil {
			return "", fmt.Errorf("read stored file: %w", err)
		}
		text, err = extractor.Extract(ctx, data)
		if err != nil {
			return "", fmt.Errorf("extract text: %w", err)
		}
	}

	if len(strings.TrimSpace(text)) < MinEmbedTextLen {
		return "", fmt.Errorf("%w: document contains no extractable text", ErrInvalidInput)
	}
	return text, nil
}

func (s *IngestService) embedAndStore(ctx context.Context, doc *model.SourceDocument, batch []TextChunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.ChunkText
	}

	vectors, err := s.embedding.GenerateEmbeddingsBatch(ctx, texts)
	if err != nil {
		return err
	}

	records := make([]model.DocumentChunk, len(batch))
	for i, c := range batch {
		records[i] = model.DocumentChunk{
			DocumentID:     doc.ID,
			OrganizationID: doc.OrganizationID,
			ChunkIndex:     c.ChunkIndex,
			ChunkText:      c.ChunkText,
			TokenCount:     c.TokenCount,
			Embedding:      pgvector.NewVector(vectors[i]),
			Metadata:       c.Metadata,
		}
	}
	return s.chunks.Upsert(ctx, doc.ID, records)
}

func (s *IngestService) fail(ctx context.Context, doc *model.SourceDocument, cause error) error {
	doc.Status = model.DocumentStatusFailed
	doc.ErrorMessage = cause.Error()
	if err := s.documents.Update(ctx, doc); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return cause
}
