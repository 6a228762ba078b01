// Package retriever answers semantic queries against the vector store.
//
// A query is embedded once, then an over-fetched candidate list (FetchK) is
// filtered by minimum score, deduplicated by text, capped per source file,
// and cut to the top K. Results are ordered by similarity, with ties broken
// by source path and ordinal so identical queries return identical lists.
// Responses are cached in an LRU with TTL; cache entries are invalidated
// whenever the index changes.
package retriever
