package types

import (
	"errors"
	"fmt"
)

// Sentinels for the pipeline error taxonomy. File-level errors never abort a
// batch; service-level connectivity errors abort the current pass but leave
// prior state untouched.
var (
	// ErrPathNotFound means a walk root does not exist or is unreadable.
	// Fatal to that single walk.
	ErrPathNotFound = errors.New("path not found")

	// ErrEmbeddingService wraps failures talking to the embedding service.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrVectorStore wraps failures in the vector collection.
	ErrVectorStore = errors.New("vector store error")

	// ErrIndexInProgress is returned when another indexing pass already
	// holds the lock for the same root.
	ErrIndexInProgress = errors.New("indexing already in progress for this root")
)

// TruncatedError signals that a walk hit its max-files cap and returned a
// partial list. Recoverable: the caller should ask the user to narrow the
// filters instead of silently using incomplete context.
type TruncatedError struct {
	// Limit is the configured max-files cap.
	Limit int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("more than %d files match the current filter configuration; narrow the include/exclude patterns", e.Limit)
}

// ExtractionError records a per-file extraction failure. The file is skipped
// and the batch continues.
type ExtractionError struct {
	// Path is the file that failed.
	Path string

	// Stage names the extractor or phase that failed ("pdf", "decode", ...).
	Stage string

	// Err is the underlying cause.
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s (%s): %v", e.Path, e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// FileError is a per-file failure surfaced in an IndexReport. It carries
// enough context (path and stage) to show the user without a stack trace.
type FileError struct {
	Path    string `json:"path"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

func (e FileError) String() string {
	return fmt.Sprintf("%s [%s]: %s", e.Path, e.Stage, e.Message)
}
