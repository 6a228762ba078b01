package extractor

import (
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"

	"github.com/raglet/raglet/pkg/types"
)

var textExtensions = map[string]bool{
	".txt": true, ".text": true, ".log": true, ".csv": true, ".tsv": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true, ".ini": true,
	".xml": true, ".sql": true, ".sh": true, ".bash": true, ".zsh": true,
	".py": true, ".go": true, ".js": true, ".jsx": true, ".ts": true,
	".tsx": true, ".java": true, ".c": true, ".h": true, ".cpp": true,
	".hpp": true, ".cc": true, ".cs": true, ".rb": true, ".rs": true,
	".php": true, ".swift": true, ".kt": true, ".scala": true, ".r": true,
	".lua": true, ".pl": true, ".hs": true, ".ex": true, ".exs": true,
	".erl": true, ".clj": true, ".vue": true, ".svelte": true, ".css": true,
	".scss": true, ".less": true, ".env": true, ".cfg": true, ".conf": true,
	".properties": true, ".gradle": true, ".cmake": true, ".mk": true,
	".dockerfile": true, ".tf": true, ".proto": true, ".graphql": true,
}

// textExtractor reads plain text and source code. Non-UTF-8 input is
// decoded via charset detection; it also serves as the fallback for
// unknown extensions.
type textExtractor struct{}

func (e *textExtractor) Name() string { return "text" }

func (e *textExtractor) CanHandle(ext string) bool {
	return ext == "" || textExtensions[ext]
}

func (e *textExtractor) Extract(fd types.FileDescriptor) (string, error) {
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

// decodeBytes returns data as a UTF-8 string, detecting and converting the
// charset when the bytes are not already valid UTF-8.
func decodeBytes(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	det := chardet.NewTextDetector()
	if res, err := det.DetectBest(data); err == nil {
		if enc := encodingFor(res.Charset); enc != nil {
			if out, err := enc.NewDecoder().Bytes(data); err == nil && utf8.Valid(out) {
				return string(out), nil
			}
		}
	}
	// Latin-1 maps every byte, so this never fails.
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode fallback: %w", err)
	}
	return string(out), nil
}

func encodingFor(charset string) encoding.Encoding {
	switch charset {
	case "UTF-16LE":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case "UTF-16BE":
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	case "ISO-8859-1", "ISO-8859-15":
		return charmap.ISO8859_1
	case "ISO-8859-2":
		return charmap.ISO8859_2
	case "ISO-8859-5":
		return charmap.ISO8859_5
	case "windows-1250":
		return charmap.Windows1250
	case "windows-1251":
		return charmap.Windows1251
	case "windows-1252":
		return charmap.Windows1252
	case "KOI8-R":
		return charmap.KOI8R
	case "Shift_JIS":
		return japanese.ShiftJIS
	case "EUC-JP":
		return japanese.EUCJP
	case "ISO-2022-JP":
		return japanese.ISO2022JP
	case "GB-18030", "GB18030":
		return simplifiedchinese.GB18030
	case "Big5":
		return traditionalchinese.Big5
	case "EUC-KR":
		return korean.EUCKR
	default:
		return nil
	}
}
