package service

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Oleguzik/ngo-automation/internal/model"
)

// RAGTemperature keeps answers factual (low variability).
const RAGTemperature = 0.1

// RAGMaxAnswerTokens caps the completion output.
const RAGMaxAnswerTokens = 1000

// MaxHistoryTurns is how many recent conversation turns are replayed as
// context for a follow-up question.
const MaxHistoryTurns = 5

// NoContextAnswer is returned without any completion call when retrieval
// finds nothing above the threshold.
const NoContextAnswer = "I don't have information about that topic in the uploaded documents. Please upload additional documents or try a different question."

// EmptyAnswerFallback substitutes a blank completion response.
const EmptyAnswerFallback = "Unable to generate answer from retrieved documents."

const ragSystemPrompt = `You are a helpful financial advisor for a nonprofit organization.

Your role:
- Answer questions about financial documents using ONLY the provided context
- Be factual and concise, citing specific figures and dates
- Maintain organizational perspective and confidentiality
- Acknowledge data limitations if information is incomplete

Instructions:
1. If the answer is NOT in the provided context, respond: "I don't have that information in the uploaded documents."
2. Always cite sources using the format: [Source: document_name, page X]
3. Be specific with amounts, dates, and percentages from the documents
4. Do not make assumptions or extrapolate beyond provided data
5. If multiple interpretations exist, note the ambiguity`

var citationRe = regexp.MustCompile(`\[Source: [^\]]+\]`)

// SourceCitation points an answer back to the chunk it was derived from.
type SourceCitation struct {
	DocumentName    string    `json:"document_name"`
	ChunkID         uuid.UUID `json:"chunk_id"`
	SimilarityScore float64   `json:"similarity_score"`
	PageNumber      *int      `json:"page_number,omitempty"`
}

// RAGAnswer is the orchestrator's structured output.
type RAGAnswer struct {
	Question    string           `json:"question"`
	Answer      string           `json:"answer"`
	Sources     []SourceCitation `json:"sources"`
	Confidence  float64          `json:"confidence"`
	ChunksUsed  int              `json:"chunks_used"`
	QueryTimeMs float64          `json:"query_time_ms"`
}

// QueryRequest parameterizes one Answer call. Zero TopK, MinSimilarity and
// Temperature fall back to the defaults (10, 0.7, 0.1). ConversationID, when
// set, replays recent turns and appends the new exchange afterwards.
type QueryRequest struct {
	Question       string     `json:"question"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	TopK           int        `json:"top_k"`
	MinSimilarity  float64    `json:"min_similarity"`
	Temperature    float64    `json:"temperature"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
}

// ConversationStore persists multi-turn history. Optional; a nil store
// disables history replay.
type ConversationStore interface {
	RecentTurns(ctx context.Context, conversationID uuid.UUID, limit int) ([]model.ConversationTurn, error)
	AppendTurn(ctx context.Context, turn *model.ConversationTurn) error
}

// RAGService orchestrates retrieval-augmented answering: retrieve, ground,
// generate, cite, score. It refuses instead of fabricating when no relevant
// context exists.
type RAGService struct {
	retrieval     *RetrievalService
	completion    CompletionClient
	conversations ConversationStore
}

func NewRAGService(retrieval *RetrievalService, completion CompletionClient, conversations ConversationStore) *RAGService {
	return &RAGService{
		retrieval:     retrieval,
		completion:    completion,
		conversations: conversations,
	}
}

// Answer runs the RAG pipeline for one question. Retrieval and completion
// failures propagate; the only failure-like condition converted into a
// normal return is the no-context refusal.
func (s *RAGService) Answer(ctx context.Context, req QueryRequest) (*RAGAnswer, error) {
	startTime := time.Now()

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question cannot be empty", ErrInvalidInput)
	}

	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	minSimilarity := req.MinSimilarity
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = RAGTemperature
	}

	hits, err := s.retrieval.Search(ctx, question, req.OrganizationID, topK, minSimilarity)
	if err != nil {
		return nil, err
	}

	// No grounding context: answer with the fixed refusal, skip the
	// completion call entirely.
	if len(hits) == 0 {
		return &RAGAnswer{
			Question:    question,
			Answer:      NoContextAnswer,
			Sources:     []SourceCitation{},
			Confidence:  0.0,
			ChunksUsed:  0,
			QueryTimeMs: elapsedMs(startTime),
		}, nil
	}

	var contextParts []string
	citations := make([]SourceCitation, 0, len(hits))
	similaritySum := 0.0
	for i, hit := range hits {
		docName := hit.DocumentName
		if docName == "" {
			docName = "Unknown Document"
		}
		contextParts = append(contextParts, fmt.Sprintf("[Document %d: %s]\n%s\n", i+1, docName, hit.ChunkText))
		citations = append(citations, SourceCitation{
			DocumentName:    docName,
			ChunkID:         hit.ChunkID,
			SimilarityScore: roundTo3(hit.Similarity),
			PageNumber:      pageFromMetadata(hit.Metadata),
		})
		similaritySum += hit.Similarity
	}
	contextText := strings.Join(contextParts, "\n")

	history, err := s.loadHistory(ctx, req.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	userPrompt := buildUserPrompt(contextText, history, question)

	answer, err := s.completion.Complete(ctx, ragSystemPrompt, userPrompt, temperature, RAGMaxAnswerTokens)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = EmptyAnswerFallback
	}

	confidence := similaritySum / float64(len(hits))
	confidence = math.Min(1.0, math.Max(0.0, confidence))

	result := &RAGAnswer{
		Question:    question,
		Answer:      answer,
		Sources:     citations,
		Confidence:  confidence,
		ChunksUsed:  len(hits),
		QueryTimeMs: elapsedMs(startTime),
	}

	if err := s.recordExchange(ctx, req.ConversationID, question, result); err != nil {
		return nil, fmt.Errorf("record conversation: %w", err)
	}
	return result, nil
}

// ExtractCitations scans generated answer text for inline citation markers
// of the form [Source: name, page N]. Best effort; never fails.
func ExtractCitations(answer string) []string {
	return citationRe.FindAllString(answer, -1)
}

func (s *RAGService) loadHistory(ctx context.Context, conversationID *uuid.UUID) ([]model.ConversationTurn, error) {
	if s.conversations == nil || conversationID == nil {
		return nil, nil
	}
	return s.conversations.RecentTurns(ctx, *conversationID, MaxHistoryTurns)
}

func (s *RAGService) recordExchange(ctx context.Context, conversationID *uuid.UUID, question string, answer *RAGAnswer) error {
	if s.conversations == nil || conversationID == nil {
		return nil
	}

	userTurn := &model.ConversationTurn{
		ConversationID: *conversationID,
		Role:           model.TurnRoleUser,
		Content:        question,
	}
	if err := s.conversations.AppendTurn(ctx, userTurn); err != nil {
		return err
	}

	sources := make([]interface{}, 0, len(answer.Sources))
	for _, c := range answer.Sources {
		source := map[string]interface{}{
			"document_name":    c.DocumentName,
			"chunk_id":         c.ChunkID.String(),
			"similarity_score": c.SimilarityScore,
		}
		if c.PageNumber != nil {
			source["page_number"] = *c.PageNumber
		}
		sources = append(sources, source)
	}
	confidence := answer.Confidence
	assistantTurn := &model.ConversationTurn{
		ConversationID: *conversationID,
		Role:           model.TurnRoleAssistant,
		Content:        answer.Answer,
		Sources:        model.JSONMap{"citations": sources},
		Confidence:     &confidence,
	}
	return s.conversations.AppendTurn(ctx, assistantTurn)
}

func buildUserPrompt(contextText string, history []model.ConversationTurn, question string) string {
	var b strings.Builder
	b.WriteString("Context from Financial Documents:\n")
	b.WriteString(contextText)
	b.WriteString("\n")

	if len(history) > 0 {
		b.WriteString("\nPrevious conversation:\n")
		for _, turn := range history {
			switch turn.Role {
			case model.TurnRoleUser:
				b.WriteString("User: ")
			case model.TurnRoleAssistant:
				b.WriteString("Assistant: ")
			}
			b.WriteString(turn.Content)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer based ONLY on the provided context above. Be concise and cite sources.")
	return b.String()
}

// pageFromMetadata pulls an optional page number out of chunk metadata.
// Absent or unparseable values stay absent, never invented.
func pageFromMetadata(metadata model.JSONMap) *int {
	raw, ok := metadata["page"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case int:
		return &v
	case float64:
		page := int(v)
		return &page
	default:
		return nil
	}
}

func roundTo3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func elapsedMs(start time.Time) float64 {
	return math.Round(float64(time.Since(start).Microseconds())/1000*100) / 100
}
