// Package types defines the shared domain types for the context pipeline:
// file descriptors produced by the walker, extracted documents, chunks with
// their deterministic identities, index reports, and the error taxonomy
// shared across packages.
package types
