package extractor

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/raglet/raglet/pkg/types"
)

// rtfExtractor strips RTF control words and destination groups, keeping
// document text. It handles \par/\line/\tab, hex escapes (\'hh), and
// unicode escapes (\uN), which covers text produced by mainstream editors.
type rtfExtractor struct{}

func (e *rtfExtractor) Name() string { return "rtf" }

func (e *rtfExtractor) CanHandle(ext string) bool { return ext == ".rtf" }

func (e *rtfExtractor) Extract(fd types.FileDescriptor) (string, error) {
	data, err := os.ReadFile(fd.Path)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(string(data[:min(len(data), 5)]), `{\rtf`) {
		return "", fmt.Errorf("missing rtf header")
	}
	return normalizeDocument(stripRTF(data)), nil
}

// Destinations whose contents are metadata, not document text.
var rtfSkipDestinations = map[string]bool{
	"fonttbl": true, "colortbl": true, "stylesheet": true, "info": true,
	"pict": true, "object": true, "header": true, "footer": true,
	"listtable": true, "listoverridetable": true, "themedata": true,
	"generator": true, "xmlnstbl": true, "latentstyles": true,
	"datastore": true,
}

func stripRTF(data []byte) string {
	var b strings.Builder
	depth := 0
	skipUntil := -1 // group depth at which a skipped destination closes
	pendingSkip := 0 // chars to drop after \uN (the ANSI fallback)

	for i := 0; i < len(data); i++ {
		c := data[i]
		switch c {
		case '{':
			depth++
		case '}':
			if skipUntil >= 0 && depth == skipUntil {
				skipUntil = -1
			}
			depth--
		case '\\':
			if i+1 >= len(data) {
				break
			}
			next := data[i+1]
			if !isRTFWordChar(next) {
				// Escaped literal or control symbol.
				i++
				if skipUntil >= 0 {
					break
				}
				switch next {
				case '\\', '{', '}':
					b.WriteByte(next)
				case '~':
					b.WriteByte(' ')
				case '\'':
					if i+2 < len(data) {
						if n, err := strconv.ParseUint(string(data[i+1:i+3]), 16, 8); err == nil {
							if pendingSkip > 0 {
								pendingSkip--
							} else {
								// Hex escapes are codepage bytes, not UTF-8.
								b.WriteRune(charmap.Windows1252.DecodeByte(byte(n)))
							}
						}
						i += 2
					}
				}
				break
			}
			word, param, hasParam, end := readRTFControl(data, i+1)
			i = end - 1
			if rtfSkipDestinations[word] && skipUntil < 0 {
				skipUntil = depth
				break
			}
			if skipUntil >= 0 {
				break
			}
			switch word {
			case "par", "line", "row", "sect", "page":
				b.WriteByte('\n')
			case "tab", "cell":
				b.WriteByte('\t')
			case "emdash", "endash":
				b.WriteByte('-')
			case "u":
				if hasParam {
					r := rune(param)
					if r < 0 {
						r += 65536
					}
					b.WriteRune(r)
					pendingSkip = 1
				}
			}
		default:
			if skipUntil >= 0 || c == '\r' || c == '\n' {
				break
			}
			if pendingSkip > 0 {
				pendingSkip--
				break
			}
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isRTFWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// readRTFControl parses a control word starting at pos, returning the word,
// its numeric parameter, and the index just past the control (including the
// single optional delimiting space).
func readRTFControl(data []byte, pos int) (word string, param int, hasParam bool, end int) {
	i := pos
	for i < len(data) && isRTFWordChar(data[i]) {
		i++
	}
	word = string(data[pos:i])
	start := i
	if i < len(data) && (data[i] == '-' || (data[i] >= '0' && data[i] <= '9')) {
		i++
		for i < len(data) && data[i] >= '0' && data[i] <= '9' {
			i++
		}
		if n, err := strconv.Atoi(string(data[start:i])); err == nil {
			param, hasParam = n, true
		}
	}
	if i < len(data) && data[i] == ' ' {
		i++
	}
	return word, param, hasParam, i
}
