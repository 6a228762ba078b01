package extractor

import (
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"

	"github.com/raglet/raglet/pkg/types"
)

// pdfExtractor extracts the plain-text layer of a PDF. Scanned documents
// without a text layer yield empty text, not an error.
type pdfExtractor struct{}

func (e *pdfExtractor) Name() string { return "pdf" }

func (e *pdfExtractor) CanHandle(ext string) bool { return ext == ".pdf" }

func (e *pdfExtractor) Extract(fd types.FileDescriptor) (text string, err error) {
	// The parser panics on some malformed inputs; turn those into errors so
	// one bad file cannot take down a batch.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, reader, err := pdf.Open(fd.Path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("text layer: %w", err)
	}
	data, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	return normalizeDocument(string(data)), nil
}
