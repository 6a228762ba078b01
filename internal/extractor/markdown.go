package extractor

import (
	"os"

	"github.com/raglet/raglet/pkg/types"
)

// markdownExtractor passes markdown through with only line normalization.
// Fenced code blocks and heading structure stay intact so the chunker can
// honor block boundaries.
type markdownExtractor struct{}

func (e *markdownExtractor) Name() string { return "markdown" }

func (e *markdownExtractor) CanHandle(ext string) bool {
	switch ext {
	case ".md", ".markdown", ".mdown", ".rst":
		return true
	}
	return false
}

func (e *markdownExtractor) Extract(fd types.FileDescriptor) (string, error) {
	data, err := os.ReadFile(fd.Path)
	if err != nil {
		return "", err
	}
	text, err := decodeBytes(data)
	if err != nil {
		return "", err
	}
	return normalizeText(text), nil
}
