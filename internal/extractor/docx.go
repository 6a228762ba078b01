package extractor

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/raglet/raglet/pkg/types"
)

// docxExtractor pulls paragraph text out of word/document.xml.
type docxExtractor struct{}

func (e *docxExtractor) Name() string { return "docx" }

func (e *docxExtractor) CanHandle(ext string) bool { return ext == ".docx" }

func (e *docxExtractor) Extract(fd types.FileDescriptor) (string, error) {
	zr, err := zip.OpenReader(fd.Path)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		text, err := runText(rc)
		if err != nil {
			return "", fmt.Errorf("document.xml: %w", err)
		}
		return normalizeDocument(text), nil
	}
	return "", fmt.Errorf("word/document.xml not found in archive")
}

// runText walks WordprocessingML or DrawingML tokens, collecting the
// contents of text runs (<w:t>, <a:t>) and turning paragraph ends, breaks,
// and tabs into whitespace.
func runText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var b strings.Builder
	inRun := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inRun = true
			case "br", "cr":
				b.WriteByte('\n')
			case "tab":
				b.WriteByte('\t')
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inRun = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inRun {
				b.Write(el)
			}
		}
	}
	return b.String(), nil
}
