// Package embedder generates vector embeddings for text via a pluggable
// provider interface.
//
// Three providers are built in:
//   - ollama: a local Ollama server (default model nomic-embed-text)
//   - openai: the OpenAI embeddings API
//   - local: a deterministic hash-based vector, used offline and in tests
//
// All providers share an LRU cache keyed by content hash and retry transient
// failures with exponential backoff. Ping verifies the provider is reachable
// before an indexing run commits to writing anything.
package embedder
