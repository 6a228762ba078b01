package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ChunkingParams control how extracted text is segmented. The pair is hashed
// into the index manifest so a parameter change forces re-indexing.
type ChunkingParams struct {
	// ChunkSizeTokens is the target token budget per chunk.
	ChunkSizeTokens int

	// OverlapRatio is the fraction of ChunkSizeTokens duplicated from the
	// tail of chunk N onto the head of chunk N+1. 0 disables overlap.
	OverlapRatio float64
}

// Validate checks the parameters are usable.
func (p ChunkingParams) Validate() error {
	if p.ChunkSizeTokens < 1 {
		return errors.New("chunk size must be at least 1 token")
	}
	if p.OverlapRatio < 0 || p.OverlapRatio >= 1 {
		return errors.New("overlap ratio must be in [0, 1)")
	}
	return nil
}

// OverlapTokens returns the absolute overlap in tokens.
func (p ChunkingParams) OverlapTokens() int {
	return int(float64(p.ChunkSizeTokens) * p.OverlapRatio)
}

// Hash returns a stable digest of the parameters for manifest comparison.
func (p ChunkingParams) Hash() string {
	canonical := fmt.Sprintf("size=%d;overlap=%.6f", p.ChunkSizeTokens, p.OverlapRatio)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:8])
}

// Chunk is a bounded text segment, the unit of embedding and retrieval.
type Chunk struct {
	// ID is deterministic: sha256(source_path | ordinal | content). For a
	// given file and chunking parameters the same IDs are produced on every
	// run, so re-indexing an unchanged file cannot create duplicate vectors.
	ID string

	// SourcePath is the absolute path of the file the chunk came from.
	SourcePath string

	// Ordinal is the zero-based position of the chunk within its file.
	Ordinal int

	// Text is the chunk content.
	Text string

	// TokenEstimate is the tokenizer-based token count of Text.
	TokenEstimate int
}

// NewChunkID derives the deterministic chunk identity.
func NewChunkID(sourcePath string, ordinal int, text string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|", sourcePath, ordinal)
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Validate checks chunk invariants before storage.
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return errors.New("chunk ID is required")
	}
	if c.SourcePath == "" {
		return errors.New("chunk source path is required")
	}
	if c.Ordinal < 0 {
		return errors.New("chunk ordinal must be non-negative")
	}
	if c.Text == "" {
		return errors.New("chunk text cannot be empty")
	}
	return nil
}

// ScoredChunk pairs a retrieved chunk with its similarity score.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}
