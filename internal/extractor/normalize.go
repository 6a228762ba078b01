package extractor

import (
	"strings"
	"unicode"
)

// normalizeText cleans extracted text while keeping line structure intact:
// line endings become \n, control characters other than \n and \t are
// dropped, trailing whitespace is trimmed per line, and runs of blank lines
// collapse to a single blank line so paragraph boundaries survive. Leading
// indentation is preserved because source code depends on it.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blanks := 0
	for _, line := range lines {
		line = strings.TrimRight(stripControl(line), " \t")
		if line == "" {
			blanks++
			if blanks > 1 {
				continue
			}
		} else {
			blanks = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// normalizeDocument additionally collapses runs of horizontal whitespace
// within lines. Converted document formats (PDF, DOCX, RTF, HTML) produce
// erratic spacing with no indentation worth keeping.
func normalizeDocument(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blanks := 0
	for _, line := range lines {
		line = collapseSpaces(stripControl(line))
		if line == "" {
			blanks++
			if blanks > 1 {
				continue
			}
		} else {
			blanks = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == 0xFEFF || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, s)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
