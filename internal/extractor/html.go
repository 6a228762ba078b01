package extractor

import (
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"

	"github.com/raglet/raglet/pkg/types"
)

// htmlExtractor strips markup and returns visible text. Script and style
// contents are dropped; block-level tags become line breaks.
type htmlExtractor struct{}

func (e *htmlExtractor) Name() string { return "html" }

func (e *htmlExtractor) CanHandle(ext string) bool {
	switch ext {
	case ".html", ".htm", ".xhtml":
		return true
	}
	return false
}

func (e *htmlExtractor) Extract(fd types.FileDescriptor) (string, error) {
	f, err := os.Open(fd.Path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	text, err := stripHTML(f)
	if err != nil {
		return "", err
	}
	return normalizeDocument(text), nil
}

var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "blockquote": true, "pre": true,
	"table": true, "ul": true, "ol": true, "hr": true,
}

func stripHTML(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	var b strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return b.String(), nil
			}
			return "", z.Err()
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				if tt == html.StartTagToken {
					skip++
				}
				continue
			}
			if blockTags[tag] {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				if skip > 0 {
					skip--
				}
				continue
			}
			if blockTags[tag] {
				b.WriteByte('\n')
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}
