// Package vectorstore persists chunk embeddings in SQLite and serves
// similarity search over them.
//
// Two build modes exist. The default pure-Go build uses modernc.org/sqlite
// and computes cosine similarity in Go. Building with the sqlite_vec tag
// uses mattn/go-sqlite3 with the sqlite-vec extension, pushing the distance
// computation into SQL.
//
// The schema has three tables: chunks (one row per embedded chunk, keyed by
// the deterministic chunk ID), manifest (one row per indexed source file,
// recording mod time and chunking params for incremental refresh), and
// index_meta (the embedding provider and model the index was built with).
// Writes for one source file are transactional delete-then-insert, so a
// changed file can never leave stale chunks behind.
package vectorstore
