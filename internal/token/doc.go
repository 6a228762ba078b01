// Package token provides deterministic token counting and token-level text
// slicing on the cl100k_base encoding. Counts are tokenizer-based, not a
// character heuristic, so configured chunk sizes and context budgets have a
// stable real-world meaning.
package token
