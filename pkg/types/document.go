package types

import (
	"path/filepath"
	"strings"
	"time"
)

// FileDescriptor describes a single file found by a walk. Descriptors are
// produced fresh per walk and never persisted; they are transient input to
// extraction.
type FileDescriptor struct {
	// Path is the absolute path to the file, forward-slash normalized.
	Path string

	// SizeBytes is the file size at walk time.
	SizeBytes int64

	// ModTime is the file's modification time at walk time.
	ModTime time.Time

	// Ext is the lowercased extension including the leading dot
	// (".pdf", ".go"), or "" when the file has none.
	Ext string
}

// NewFileDescriptor builds a descriptor from stat results, normalizing the
// path and extension.
func NewFileDescriptor(path string, size int64, modTime time.Time) FileDescriptor {
	return FileDescriptor{
		Path:      filepath.ToSlash(path),
		SizeBytes: size,
		ModTime:   modTime,
		Ext:       strings.ToLower(filepath.Ext(path)),
	}
}

// ExtractedDocument is the result of extracting one file. A failed extraction
// records its error here and the file is skipped downstream; it never aborts
// the batch.
type ExtractedDocument struct {
	// SourcePath is the absolute, forward-slash path of the source file.
	SourcePath string

	// Text is the normalized plain text, empty when extraction failed.
	Text string

	// ModTime is carried from the descriptor so the indexer can compare
	// against its manifest without re-statting.
	ModTime time.Time

	// Err is non-nil when extraction failed for this file (*ExtractionError).
	Err error
}

// Failed reports whether extraction of this document failed.
func (d *ExtractedDocument) Failed() bool {
	return d.Err != nil
}
