package extractor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raglet/raglet/pkg/types"
)

// Extractor converts one file format into plain text.
type Extractor interface {
	// Name identifies the extractor in error messages.
	Name() string
	// CanHandle reports whether ext (lowercase, with leading dot) is supported.
	CanHandle(ext string) bool
	// Extract reads the file and returns normalized text.
	Extract(fd types.FileDescriptor) (string, error)
}

// Registry dispatches files to format extractors by extension.
type Registry struct {
	extractors []Extractor
	fallback   Extractor
	maxBytes   int64
	log        *slog.Logger
}

// NewRegistry creates a registry with the full set of format extractors.
// Files larger than maxBytes are rejected before any read.
func NewRegistry(maxBytes int64, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		extractors: []Extractor{
			&markdownExtractor{},
			&htmlExtractor{},
			&pdfExtractor{},
			&docxExtractor{},
			&pptxExtractor{},
			&epubExtractor{},
			&rtfExtractor{},
			&textExtractor{},
		},
		fallback: &textExtractor{},
		maxBytes: maxBytes,
		log:      log,
	}
}

// Extract converts a single file. Failures are recorded on the returned
// document rather than returned as an error, so callers can process a
// batch without per-file error handling.
func (r *Registry) Extract(fd types.FileDescriptor) types.ExtractedDocument {
	doc := types.ExtractedDocument{
		SourcePath: fd.Path,
		ModTime:    fd.ModTime,
	}
	if r.maxBytes > 0 && fd.SizeBytes > r.maxBytes {
		doc.Err = &types.ExtractionError{
			Path:  fd.Path,
			Stage: "size",
			Err:   fmt.Errorf("file is %d bytes, limit is %d", fd.SizeBytes, r.maxBytes),
		}
		return doc
	}
	ex := r.extractorFor(fd.Ext)
	text, err := ex.Extract(fd)
	if err != nil {
		doc.Err = &types.ExtractionError{Path: fd.Path, Stage: ex.Name(), Err: err}
		return doc
	}
	doc.Text = text
	return doc
}

// ExtractAll converts files in order, skipping nothing: files that fail keep
// their error on the document. It stops only on context cancellation.
func (r *Registry) ExtractAll(ctx context.Context, fds []types.FileDescriptor) ([]types.ExtractedDocument, error) {
	docs := make([]types.ExtractedDocument, 0, len(fds))
	for _, fd := range fds {
		if err := ctx.Err(); err != nil {
			return docs, err
		}
		doc := r.Extract(fd)
		if doc.Failed() {
			r.log.Warn("extraction failed", "path", fd.Path, "error", doc.Err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (r *Registry) extractorFor(ext string) Extractor {
	for _, ex := range r.extractors {
		if ex.CanHandle(ext) {
			return ex
		}
	}
	return r.fallback
}
