// Package indexer coordinates the end-to-end indexing pipeline: walk,
// extract, chunk, embed, store.
//
// Indexing is incremental. Each indexed file has a manifest row recording
// its modification time and the chunking parameters used; a refresh pass
// skips files whose manifest still matches, replaces chunks for files that
// changed, and prunes files that disappeared. Per-file failures are
// collected in the report and never abort the pass.
//
// At most one pass runs per root at a time; a second caller gets
// ErrIndexInProgress immediately rather than queueing. The embedding
// provider is pinged before the first write, so an unreachable provider
// fails the pass with the index untouched.
package indexer
