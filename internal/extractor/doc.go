// Package extractor converts files into normalized plain text. Dispatch is
// by extension over a closed set of format extractors (text/code, markdown,
// HTML, PDF, DOCX, PPTX, EPUB, RTF); unknown extensions fall through to a
// best-effort text read. A corrupt or unreadable file yields a per-file
// ExtractionError and never aborts the batch.
package extractor
