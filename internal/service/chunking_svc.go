package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Oleguzik/ngo-automation/internal/model"
)

// Default chunking configuration. MaxChunkSize tracks the embedding API's
// per-input token ceiling with a safety margin.
const (
	DefaultChunkSize = 500
	DefaultOverlap   = 50
	MaxChunkSize     = 8191
)

type ChunkStrategy string

const (
	StrategyFixed    ChunkStrategy = "fixed"
	StrategySentence ChunkStrategy = "sentence"
	StrategySemantic ChunkStrategy = "semantic"
)

// TextChunk is a chunk before embedding: a bounded text span plus the
// bookkeeping the ingestion pipeline persists alongside it.
type TextChunk struct {
	ChunkIndex int           `json:"chunk_index"`
	ChunkText  string        `json:"chunk_text"`
	TokenCount int           `json:"token_count"`
	Metadata   model.JSONMap `json:"metadata"`
}

// ChunkingService splits document text into overlapping chunks bounded by a
// token budget. Pure and deterministic, no I/O.
type ChunkingService struct{}

func NewChunkingService() *ChunkingService {
	return &ChunkingService{}
}

var fixedTokenRe = regexp.MustCompile(`\S+|\s+`)

// Chunk splits text under the given strategy. Empty or whitespace-only text
// yields an empty result without error; non-positive chunkSize and negative
// overlap are rejected. metadata is merged into every produced chunk.
//
// Overlap semantics differ by strategy on purpose: tokens for "fixed",
// sentences for "sentence", sections for "semantic".
func (s *ChunkingService) Chunk(text string, chunkSize, overlap int, strategy ChunkStrategy, metadata model.JSONMap) ([]TextChunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk_size must be > 0, got %d", ErrInvalidInput, chunkSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must be >= 0, got %d", ErrInvalidInput, overlap)
	}

	// Overlap must leave forward progress; not an error, just reduced.
	if overlap >= chunkSize {
		overlap = max(0, chunkSize-100)
	}

	// Defensive clamp against the embedding API ceiling, never an error.
	if chunkSize > MaxChunkSize {
		chunkSize = MaxChunkSize
	}

	var chunkTexts []string
	switch strategy {
	case StrategyFixed:
		chunkTexts = splitFixed(text, chunkSize, overlap)
	case StrategySentence:
		chunkTexts = splitSentence(text, chunkSize, overlap)
	case StrategySemantic:
		chunkTexts = splitSemantic(text, chunkSize, overlap)
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidInput, strategy)
	}

	chunks := make([]TextChunk, 0, len(chunkTexts))
	for idx, chunkText := range chunkTexts {
		meta := metadata.Merge(model.JSONMap{
			"strategy":          string(strategy),
			"chunk_size_config": chunkSize,
			"overlap_config":    overlap,
		})
		chunks = append(chunks, TextChunk{
			ChunkIndex: idx,
			ChunkText:  chunkText,
			TokenCount: CountTokens(chunkText),
			Metadata:   meta,
		})
	}
	return chunks, nil
}

// CountTokens approximates the tokenizer by splitting at whitespace and
// after sentence punctuation. Non-whitespace segments count as 1 each; the
// result floors to 1. Consistent, not exact subword tokenization.
func CountTokens(text string) int {
	count := 0
	segStart := -1
	flush := func(end int) {
		if segStart >= 0 && strings.TrimSpace(text[segStart:end]) != "" {
			count++
		}
		segStart = -1
	}
	for i, r := range text {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			flush(i)
		case r == '.' || r == '!' || r == '?' || r == ',' || r == ';' || r == ':':
			if segStart < 0 {
				segStart = i
			}
			// Boundary sits after the punctuation character.
			flush(i + 1)
		default:
			if segStart < 0 {
				segStart = i
			}
		}
	}
	flush(len(text))
	return max(1, count)
}

// splitFixed walks a sliding window of chunkSize tokens over the text,
// advancing chunkSize-overlap tokens per step. The token sequence keeps the
// whitespace runs so joining a window reconstructs the original spacing.
func splitFixed(text string, chunkSize, overlap int) []string {
	tokens := fixedTokenRe.FindAllString(text, -1)
	if len(tokens) == 0 {
		return nil
	}

	advance := max(1, chunkSize-overlap)
	var chunks []string
	for idx := 0; idx < len(tokens); idx += advance {
		end := min(idx+chunkSize, len(tokens))
		chunkText := strings.TrimSpace(strings.Join(tokens[idx:end], ""))
		if chunkText != "" {
			chunks = append(chunks, chunkText)
		}
	}
	return chunks
}

// splitSentence accumulates whole sentences up to the token budget. A single
// sentence over the budget still becomes one chunk; sentences are never cut.
// Overlap is counted in sentences here.
func splitSentence(text string, chunkSize, overlap int) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	currentIdx := 0
	for currentIdx < len(sentences) {
		var group []string
		tokenCount := 0
		idx := currentIdx
		for idx < len(sentences) {
			sentTokens := CountTokens(sentences[idx])
			if tokenCount+sentTokens > chunkSize && len(group) > 0 {
				break
			}
			group = append(group, sentences[idx])
			tokenCount += sentTokens
			idx++
		}

		chunkText := strings.TrimSpace(strings.Join(group, " "))
		if chunkText != "" {
			chunks = append(chunks, chunkText)
		}

		currentIdx += max(1, len(group)-overlap)
	}
	return chunks
}

// splitSemantic groups paragraph/heading sections with the same budget logic
// as splitSentence. Overlap is counted in sections.
func splitSemantic(text string, chunkSize, overlap int) []string {
	sections := splitSections(text)
	if len(sections) == 0 {
		return nil
	}

	var chunks []string
	currentIdx := 0
	for currentIdx < len(sections) {
		var group []string
		tokenCount := 0
		idx := currentIdx
		for idx < len(sections) {
			sectionTokens := CountTokens(sections[idx])
			if tokenCount+sectionTokens > chunkSize && len(group) > 0 {
				break
			}
			group = append(group, sections[idx])
			tokenCount += sectionTokens
			idx++
		}

		chunkText := strings.TrimSpace(strings.Join(group, "\n\n"))
		if chunkText != "" {
			chunks = append(chunks, chunkText)
		}

		currentIdx += max(1, len(group)-overlap)
	}
	return chunks
}

// splitSentences breaks text at whitespace following '.', '!' or '?',
// keeping the punctuation attached. A trailing fragment without terminal
// punctuation is kept as its own sentence.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder
	afterTerminal := false
	for _, r := range text {
		if afterTerminal && (r == ' ' || r == '\t' || r == '\n' || r == '\r') {
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
			afterTerminal = false
			continue
		}
		b.WriteRune(r)
		afterTerminal = r == '.' || r == '!' || r == '?'
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// splitSections breaks text at blank lines and before markdown headings.
func splitSections(text string) []string {
	var sections []string
	var current []string
	flush := func() {
		section := strings.TrimSpace(strings.Join(current, "\n"))
		if section != "" {
			sections = append(sections, section)
		}
		current = current[:0]
	}
	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.TrimSpace(line) == "":
			flush()
		case strings.HasPrefix(line, "#"):
			flush()
			current = append(current, line)
		default:
			current = append(current, line)
		}
	}
	flush()
	return sections
}
