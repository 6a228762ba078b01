package extractor

import (
	"archive/zip"
	"fmt"
	"sort"
	"strings"

	"github.com/raglet/raglet/pkg/types"
)

// epubExtractor strips every XHTML content document in the archive, in
// lexical path order. This approximates spine order closely enough for
// retrieval without parsing the OPF manifest.
type epubExtractor struct{}

func (e *epubExtractor) Name() string { return "epub" }

func (e *epubExtractor) CanHandle(ext string) bool { return ext == ".epub" }

func (e *epubExtractor) Extract(fd types.FileDescriptor) (string, error) {
	zr, err := zip.OpenReader(fd.Path)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	var docs []*zip.File
	for _, f := range zr.File {
		name := strings.ToLower(f.Name)
		if strings.HasSuffix(name, ".xhtml") || strings.HasSuffix(name, ".html") || strings.HasSuffix(name, ".htm") {
			docs = append(docs, f)
		}
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("no content documents found in archive")
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })

	var parts []string
	for _, f := range docs {
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		text, err := stripHTML(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("%s: %w", f.Name, err)
		}
		if t := strings.TrimSpace(text); t != "" {
			parts = append(parts, t)
		}
	}
	return normalizeDocument(strings.Join(parts, "\n\n")), nil
}
