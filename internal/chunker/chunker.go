package chunker

import (
	"strings"
	"unicode"

	"github.com/raglet/raglet/internal/token"
	"github.com/raglet/raglet/pkg/types"
)

// Chunker splits documents using fixed parameters. Parameters are immutable
// for the life of the chunker so that all files in one indexing run share an
// identical params hash.
type Chunker struct {
	params types.ChunkingParams
}

// New validates params and returns a chunker.
func New(params types.ChunkingParams) (*Chunker, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{params: params}, nil
}

// Params returns the chunking parameters in effect.
func (c *Chunker) Params() types.ChunkingParams { return c.params }

// Split chunks one document. Failed or empty documents yield no chunks.
// Every chunk except possibly the first begins with the token tail of its
// predecessor, so neighboring chunks share overlap context.
func (c *Chunker) Split(doc types.ExtractedDocument) []types.Chunk {
	if doc.Failed() {
		return nil
	}
	text := strings.TrimSpace(doc.Text)
	if text == "" {
		return nil
	}

	size := c.params.ChunkSizeTokens
	overlap := c.params.OverlapTokens()
	units := c.splitUnits(text, size)

	var chunks []types.Chunk
	var cur strings.Builder
	curTokens := 0
	seedLen := 0 // bytes of overlap seed at the start of cur

	emit := func() {
		if cur.Len() <= seedLen {
			return
		}
		chunkText := cur.String()
		ord := len(chunks)
		chunks = append(chunks, types.Chunk{
			ID:            types.NewChunkID(doc.SourcePath, ord, chunkText),
			SourcePath:    doc.SourcePath,
			Ordinal:       ord,
			Text:          chunkText,
			TokenEstimate: token.Count(chunkText),
		})
		cur.Reset()
		curTokens = 0
		seedLen = 0
		if overlap > 0 {
			seed := strings.TrimSpace(token.Tail(chunkText, overlap))
			if seed != "" {
				cur.WriteString(seed)
				curTokens = token.Count(seed)
				seedLen = cur.Len()
			}
		}
	}

	for _, u := range units {
		ut := token.Count(u.text)
		if cur.Len() > seedLen && curTokens+ut > size {
			emit()
		}
		if cur.Len() > 0 {
			cur.WriteString(u.sep)
		}
		cur.WriteString(u.text)
		curTokens += ut
	}
	emit()
	return chunks
}

// unit is an indivisible piece of text plus the separator that joins it to
// preceding content within a chunk.
type unit struct {
	text string
	sep  string
}

// splitUnits breaks text into units that each fit within size tokens:
// paragraphs first, then sentences, then raw token runs.
func (c *Chunker) splitUnits(text string, size int) []unit {
	var units []unit
	for _, block := range splitBlocks(text) {
		if token.Count(block) <= size {
			units = append(units, unit{text: block, sep: "\n\n"})
			continue
		}
		first := true
		for _, sentence := range splitSentences(block) {
			sep := " "
			if first {
				sep = "\n\n"
			}
			if token.Count(sentence) <= size {
				units = append(units, unit{text: sentence, sep: sep})
				first = false
				continue
			}
			for _, piece := range token.Split(sentence, size) {
				units = append(units, unit{text: piece, sep: sep})
				sep = " "
			}
			first = false
		}
	}
	return units
}

// splitBlocks splits on blank lines, treating fenced code blocks as single
// blocks regardless of blank lines inside them.
func splitBlocks(text string) []string {
	lines := strings.Split(text, "\n")
	var blocks []string
	var cur []string
	inFence := false

	flush := func() {
		if len(cur) == 0 {
			return
		}
		if b := strings.TrimSpace(strings.Join(cur, "\n")); b != "" {
			blocks = append(blocks, b)
		}
		cur = cur[:0]
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			cur = append(cur, line)
			if inFence {
				inFence = false
				flush()
			} else {
				inFence = true
			}
			continue
		}
		if trimmed == "" && !inFence {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return blocks
}

// splitSentences splits after terminal punctuation followed by whitespace.
// Lines act as sentence boundaries too, so prose without punctuation still
// splits somewhere sensible.
func splitSentences(block string) []string {
	var sentences []string
	var cur strings.Builder
	runes := []rune(block)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		cur.WriteRune(r)
		boundary := r == '\n'
		if (r == '.' || r == '?' || r == '!') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			boundary = true
		}
		if boundary {
			if s := strings.TrimSpace(cur.String()); s != "" {
				sentences = append(sentences, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
