package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Oleguzik/ngo-automation/internal/model"
)

func TestChunkEmptyText(t *testing.T) {
	s := NewChunkingService()

	chunks, err := s.Chunk("", 500, 50, StrategyFixed, nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = s.Chunk("   \n\t  ", 500, 50, StrategyFixed, nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkInvalidArguments(t *testing.T) {
	s := NewChunkingService()

	_, err := s.Chunk("some text here", 0, 50, StrategyFixed, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.Chunk("some text here", -10, 50, StrategyFixed, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.Chunk("some text here", 500, -1, StrategyFixed, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.Chunk("some text here", 500, 50, ChunkStrategy("paragraph"), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestChunkOverlapClampedToLeaveProgress(t *testing.T) {
	s := NewChunkingService()
	text := strings.Repeat("word ", 300)

	// overlap >= chunkSize is reduced to chunkSize-100, same as passing the
	// reduced value explicitly.
	clamped, err := s.Chunk(text, 100, 150, StrategyFixed, nil)
	require.NoError(t, err)
	explicit, err := s.Chunk(text, 100, 0, StrategyFixed, nil)
	require.NoError(t, err)

	require.Equal(t, len(explicit), len(clamped))
	for i := range clamped {
		assert.Equal(t, explicit[i].ChunkText, clamped[i].ChunkText)
	}
}

func TestChunkFixedSlidingWindow(t *testing.T) {
	s := NewChunkingService()

	// 600 words plus trailing spaces tokenize into 1200 window tokens.
	// chunkSize 500, overlap 50 advances 450 per step: three windows.
	text := strings.Repeat("word ", 600)
	chunks, err := s.Chunk(text, 500, 50, StrategyFixed, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
		assert.NotEmpty(t, c.ChunkText)
		assert.Greater(t, c.TokenCount, 0)
	}
}

func TestChunkFixedZeroOverlapCoversAllWords(t *testing.T) {
	s := NewChunkingService()
	words := make([]string, 0, 120)
	for i := 0; i < 120; i++ {
		words = append(words, "w")
	}
	text := strings.Join(words, " ")

	chunks, err := s.Chunk(text, 50, 0, StrategyFixed, nil)
	require.NoError(t, err)

	var rebuilt []string
	for _, c := range chunks {
		rebuilt = append(rebuilt, strings.Fields(c.ChunkText)...)
	}
	assert.Equal(t, words, rebuilt)
}

func TestChunkFixedOverlapRoundTrip(t *testing.T) {
	s := NewChunkingService()
	words := make([]string, 120)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	text := strings.Join(words, " ")

	// Overlap counts window tokens (words and spaces), so 10 tokens of
	// overlap repeat the previous chunk's last 5 words. Stripping them from
	// each subsequent chunk must reconstruct the original word stream.
	chunks, err := s.Chunk(text, 50, 10, StrategyFixed, nil)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	const overlapWords = 5
	var rebuilt []string
	for i, c := range chunks {
		chunkWords := strings.Fields(c.ChunkText)
		if i == 0 {
			rebuilt = append(rebuilt, chunkWords...)
			continue
		}
		require.GreaterOrEqual(t, len(chunkWords), overlapWords)
		assert.Equal(t, rebuilt[len(rebuilt)-overlapWords:], chunkWords[:overlapWords])
		rebuilt = append(rebuilt, chunkWords[overlapWords:]...)
	}
	assert.Equal(t, words, rebuilt)
}

func TestChunkSentenceKeepsSentencesWhole(t *testing.T) {
	s := NewChunkingService()
	text := "First sentence here. Second sentence here. Third sentence here. Fourth sentence here."

	// Each sentence counts 3 tokens, so a budget of 8 groups two sentences
	// per chunk and a third would overflow.
	chunks, err := s.Chunk(text, 8, 0, StrategySentence, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "First sentence here. Second sentence here.", chunks[0].ChunkText)
	assert.Equal(t, "Third sentence here. Fourth sentence here.", chunks[1].ChunkText)
}

func TestChunkSentenceOversizedSentenceStillChunks(t *testing.T) {
	s := NewChunkingService()
	text := "This single sentence has far more tokens than the configured budget allows for one chunk."

	chunks, err := s.Chunk(text, 3, 0, StrategySentence, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, strings.TrimSpace(text), chunks[0].ChunkText)
}

func TestChunkSemanticSplitsAtSections(t *testing.T) {
	s := NewChunkingService()
	text := "# Budget Report\nQ1 spending was on target.\n\n# Donations\nMajor gifts increased this quarter.\n\nRecurring donors held steady."

	chunks, err := s.Chunk(text, 6, 0, StrategySemantic, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Contains(t, chunks[0].ChunkText, "# Budget Report")
	assert.Contains(t, chunks[1].ChunkText, "# Donations")
	assert.Contains(t, chunks[2].ChunkText, "Recurring donors")
}

func TestChunkIndexesAreContiguous(t *testing.T) {
	s := NewChunkingService()
	text := strings.Repeat("alpha beta gamma delta. ", 100)

	for _, strategy := range []ChunkStrategy{StrategyFixed, StrategySentence, StrategySemantic} {
		chunks, err := s.Chunk(text, 40, 5, strategy, nil)
		require.NoError(t, err, string(strategy))
		require.NotEmpty(t, chunks, string(strategy))
		for i, c := range chunks {
			assert.Equal(t, i, c.ChunkIndex, string(strategy))
		}
	}
}

func TestChunkMetadataMergedWithoutMutation(t *testing.T) {
	s := NewChunkingService()
	metadata := model.JSONMap{"file_name": "report.pdf", "page": 3}

	chunks, err := s.Chunk("short but valid text for chunking", 500, 50, StrategySentence, metadata)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	meta := chunks[0].Metadata
	assert.Equal(t, "report.pdf", meta["file_name"])
	assert.Equal(t, 3, meta["page"])
	assert.Equal(t, "sentence", meta["strategy"])
	assert.Equal(t, 500, meta["chunk_size_config"])
	assert.Equal(t, 50, meta["overlap_config"])

	// Caller's map stays untouched.
	assert.Len(t, metadata, 2)
}

func TestChunkSizeCappedAtMax(t *testing.T) {
	s := NewChunkingService()

	chunks, err := s.Chunk("a perfectly ordinary piece of text", MaxChunkSize+5000, 0, StrategyFixed, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, MaxChunkSize, chunks[0].Metadata["chunk_size_config"])
}

func TestCountTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 1},
		{"word", 1},
		{"two words", 2},
		{"Hello, world.", 2},
		{"a.b", 2},
		{"one two three four", 4},
		{"Total: $5,000; spent.", 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CountTokens(tt.text), "text %q", tt.text)
	}
}
