// Package chunker splits extracted documents into overlapping, token-sized
// chunks for embedding.
//
// Splitting prefers paragraph boundaries, falls back to sentence boundaries,
// and hard-splits on token positions only when a single sentence exceeds the
// chunk size. Fenced code blocks are kept whole whenever they fit. Output is
// deterministic: the same text and parameters always produce the same chunk
// texts, ordinals, and IDs.
package chunker
