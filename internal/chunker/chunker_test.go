package chunker

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raglet/raglet/internal/token"
	"github.com/raglet/raglet/pkg/types"
)

func testParams(size int, overlap float64) types.ChunkingParams {
	return types.ChunkingParams{ChunkSizeTokens: size, OverlapRatio: overlap}
}

func doc(text string) types.ExtractedDocument {
	return types.ExtractedDocument{
		SourcePath: "/repo/notes.md",
		Text:       text,
		ModTime:    time.Unix(1700000000, 0),
	}
}

func manyParagraphs(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Paragraph %d talks about indexing pipelines and vector stores in some detail.\n\n", i)
	}
	return b.String()
}

func TestNewRejectsInvalidParams(t *testing.T) {
	_, err := New(testParams(0, 0.1))
	assert.Error(t, err)

	_, err = New(testParams(512, 1.5))
	assert.Error(t, err)
}

func TestSplitSmallDocumentSingleChunk(t *testing.T) {
	c, err := New(testParams(512, 0.1))
	require.NoError(t, err)

	chunks := c.Split(doc("Just a short note."))

	require.Len(t, chunks, 1)
	assert.Equal(t, "Just a short note.", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Ordinal)
	assert.Equal(t, "/repo/notes.md", chunks[0].SourcePath)
	assert.Equal(t, types.NewChunkID("/repo/notes.md", 0, "Just a short note."), chunks[0].ID)
	assert.Equal(t, token.Count("Just a short note."), chunks[0].TokenEstimate)
}

func TestSplitEmptyAndFailedDocuments(t *testing.T) {
	c, err := New(testParams(512, 0.1))
	require.NoError(t, err)

	assert.Nil(t, c.Split(doc("")))
	assert.Nil(t, c.Split(doc("   \n\n  ")))

	failed := doc("has text but failed")
	failed.Err = &types.ExtractionError{Path: failed.SourcePath, Stage: "pdf"}
	assert.Nil(t, c.Split(failed))
}

func TestSplitIsDeterministic(t *testing.T) {
	c, err := New(testParams(64, 0.1))
	require.NoError(t, err)
	d := doc(manyParagraphs(30))

	first := c.Split(d)
	second := c.Split(d)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Text, second[i].Text)
	}
}

func TestSplitRespectsSizeBound(t *testing.T) {
	params := testParams(64, 0.1)
	c, err := New(params)
	require.NoError(t, err)

	chunks := c.Split(doc(manyParagraphs(40)))

	require.Greater(t, len(chunks), 1)
	limit := params.ChunkSizeTokens + params.OverlapTokens()
	for i, ch := range chunks {
		assert.LessOrEqualf(t, ch.TokenEstimate, limit+params.ChunkSizeTokens/8,
			"chunk %d exceeds token bound", i)
		assert.Equal(t, i, ch.Ordinal)
	}
}

func TestSplitOrdinalsAndIDsUnique(t *testing.T) {
	c, err := New(testParams(64, 0.1))
	require.NoError(t, err)

	chunks := c.Split(doc(manyParagraphs(40)))

	seen := map[string]bool{}
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Ordinal)
		assert.False(t, seen[ch.ID], "duplicate chunk id")
		seen[ch.ID] = true
	}
}

func TestSplitOverlapCarriesTail(t *testing.T) {
	params := testParams(64, 0.2)
	c, err := New(params)
	require.NoError(t, err)

	chunks := c.Split(doc(manyParagraphs(40)))
	require.Greater(t, len(chunks), 2)

	for i := 0; i < len(chunks)-1; i++ {
		seed := strings.TrimSpace(token.Tail(chunks[i].Text, params.OverlapTokens()))
		require.NotEmpty(t, seed)
		assert.Truef(t, strings.HasPrefix(chunks[i+1].Text, seed),
			"chunk %d does not begin with the tail of chunk %d", i+1, i)
	}
}

func TestSplitZeroOverlap(t *testing.T) {
	c, err := New(testParams(64, 0))
	require.NoError(t, err)

	chunks := c.Split(doc(manyParagraphs(40)))
	require.Greater(t, len(chunks), 1)

	// Without overlap, no chunk should repeat its predecessor's tail.
	for i := 0; i < len(chunks)-1; i++ {
		assert.NotEqual(t, chunks[i].Text, chunks[i+1].Text)
	}
}

func TestSplitKeepsFencedCodeTogether(t *testing.T) {
	c, err := New(testParams(256, 0.1))
	require.NoError(t, err)

	fence := "```go\nfunc a() {}\n\nfunc b() {}\n```"
	text := manyParagraphs(3) + fence + "\n\n" + manyParagraphs(3)

	chunks := c.Split(doc(text))

	found := false
	for _, ch := range chunks {
		if strings.Contains(ch.Text, fence) {
			found = true
		}
	}
	assert.True(t, found, "fenced block was split across chunks")
}

func TestSplitHardSplitsGiantSentence(t *testing.T) {
	c, err := New(testParams(32, 0.1))
	require.NoError(t, err)

	giant := strings.Repeat("token ", 600) // no sentence boundaries
	chunks := c.Split(doc(giant))

	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.TokenEstimate, 32+3+4)
	}
}

func TestSplitStablePrefixWhenAppending(t *testing.T) {
	c, err := New(testParams(64, 0.1))
	require.NoError(t, err)

	base := manyParagraphs(40)
	original := c.Split(doc(base))
	extended := c.Split(doc(base + "A brand new trailing paragraph.\n"))

	require.Greater(t, len(original), 2)
	require.GreaterOrEqual(t, len(extended), len(original))
	for i := 0; i < len(original)-1; i++ {
		assert.Equal(t, original[i].ID, extended[i].ID)
		assert.Equal(t, original[i].Text, extended[i].Text)
	}
}
