package extractor

import (
	"archive/zip"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/raglet/raglet/pkg/types"
)

// pptxExtractor pulls text runs out of every slide, in slide order.
type pptxExtractor struct{}

func (e *pptxExtractor) Name() string { return "pptx" }

func (e *pptxExtractor) CanHandle(ext string) bool { return ext == ".pptx" }

var slideNamePattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func (e *pptxExtractor) Extract(fd types.FileDescriptor) (string, error) {
	zr, err := zip.OpenReader(fd.Path)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		m := slideNamePattern.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slide{num: n, file: f})
	}
	if len(slides) == 0 {
		return "", fmt.Errorf("no slides found in archive")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var parts []string
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return "", err
		}
		text, err := runText(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("slide %d: %w", s.num, err)
		}
		if t := strings.TrimSpace(text); t != "" {
			parts = append(parts, t)
		}
	}
	return normalizeDocument(strings.Join(parts, "\n\n")), nil
}
