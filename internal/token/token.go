package token

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	once    sync.Once
	codec   tokenizer.Codec
	initErr error
)

func get() (tokenizer.Codec, error) {
	once.Do(func() {
		codec, initErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return codec, initErr
}

// Count returns the number of cl100k_base tokens in text. The encoder tables
// are embedded in the binary; if encoding ever fails the chars/4 heuristic
// keeps Count total rather than panicking mid-batch.
func Count(text string) int {
	if text == "" {
		return 0
	}
	c, err := get()
	if err != nil {
		return len(text) / 4
	}
	ids, _, err := c.Encode(text)
	if err != nil {
		return len(text) / 4
	}
	return len(ids)
}

// Tail returns the suffix of text covering at most n tokens, decoded on a
// token boundary. Used to build chunk overlap.
func Tail(text string, n int) string {
	if n <= 0 || text == "" {
		return ""
	}
	c, err := get()
	if err != nil {
		return ""
	}
	ids, _, err := c.Encode(text)
	if err != nil || len(ids) == 0 {
		return ""
	}
	if n >= len(ids) {
		return text
	}
	out, err := c.Decode(ids[len(ids)-n:])
	if err != nil {
		return ""
	}
	return out
}

// Head returns the prefix of text covering at most n tokens, decoded on a
// token boundary. Used to hard-split oversized sentences.
func Head(text string, n int) string {
	if n <= 0 || text == "" {
		return ""
	}
	c, err := get()
	if err != nil {
		if n*4 < len(text) {
			return text[:n*4]
		}
		return text
	}
	ids, _, err := c.Encode(text)
	if err != nil || len(ids) <= n {
		return text
	}
	out, err := c.Decode(ids[:n])
	if err != nil {
		return text
	}
	return out
}

// Split breaks text into consecutive pieces of at most size tokens each.
func Split(text string, size int) []string {
	if text == "" || size <= 0 {
		return nil
	}
	c, err := get()
	if err != nil {
		return []string{text}
	}
	ids, _, err := c.Encode(text)
	if err != nil {
		return []string{text}
	}
	pieces := make([]string, 0, len(ids)/size+1)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		piece, err := c.Decode(ids[start:end])
		if err != nil {
			continue
		}
		if piece != "" {
			pieces = append(pieces, piece)
		}
	}
	return pieces
}
