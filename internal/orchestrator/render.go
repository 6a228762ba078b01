package orchestrator

import (
	"fmt"
	"strings"

	"github.com/raglet/raglet/internal/token"
	"github.com/raglet/raglet/pkg/types"
)

// fenceLanguages maps file extensions to markdown fence languages so FULL
// payloads render with syntax hints.
var fenceLanguages = map[string]string{
	".py":    "python",
	".js":    "javascript",
	".jsx":   "jsx",
	".ts":    "typescript",
	".tsx":   "tsx",
	".go":    "go",
	".java":  "java",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".rb":    "ruby",
	".rs":    "rust",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".scala": "scala",
	".sh":    "bash",
	".bash":  "bash",
	".zsh":   "bash",
	".sql":   "sql",
	".html":  "html",
	".css":   "css",
	".scss":  "scss",
	".json":  "json",
	".yaml":  "yaml",
	".yml":   "yaml",
	".toml":  "toml",
	".xml":   "xml",
	".md":    "markdown",
	".rst":   "rst",
	".lua":   "lua",
	".pl":    "perl",
	".r":     "r",
	".hs":    "haskell",
	".ex":    "elixir",
	".erl":   "erlang",
	".clj":   "clojure",
	".vue":   "vue",
	".proto": "protobuf",
	".tf":    "hcl",
}

func fenceLanguage(ext string) string {
	if lang, ok := fenceLanguages[ext]; ok {
		return lang
	}
	return "text"
}

// section is one file's rendered contribution to a FULL payload. The raw
// content and extension are kept so truncation can re-render the fenced
// body instead of cutting through it.
type section struct {
	path    string
	ext     string
	content string
	body    string
	tokens  int
}

const (
	truncationMarker = "\n… [content truncated to fit the context budget]"

	// minSectionTokens is the floor a section shrinks to before whole
	// sections start getting dropped instead.
	minSectionTokens = 64
)

// renderSection formats one file: a path header and a fenced body. Fences
// inside the content are widened past so the payload stays well-formed.
func renderSection(path, ext, content string) section {
	fence := "```"
	for strings.Contains(content, fence) {
		fence += "`"
	}
	body := fmt.Sprintf("### %s\n%s%s\n%s\n%s", path, fence, fenceLanguage(ext), content, fence)
	return section{path: path, ext: ext, content: content, body: body, tokens: token.Count(body)}
}

// renderChunk formats one retrieved chunk with its provenance.
func renderChunk(sc types.ScoredChunk) string {
	return fmt.Sprintf("### %s [chunk %d, score %.3f]\n%s",
		sc.Chunk.SourcePath, sc.Chunk.Ordinal, sc.Score, sc.Chunk.Text)
}

// fitToBudget trims sections until their total fits budget tokens. The
// largest sections are truncated first, down to minSectionTokens; if that
// is still not enough, the largest remaining sections are dropped whole.
// Returns the surviving sections (original order) and warning messages.
func fitToBudget(sections []section, budget int) ([]section, []string) {
	total := 0
	for _, s := range sections {
		total += s.tokens
	}
	if total <= budget {
		return sections, nil
	}

	var warnings []string
	over := total - budget

	// Pass 1: shrink the largest sections. Content is truncated and the
	// section re-rendered so the closing fence survives, and the overshoot
	// is recomputed from the actual re-counted size.
	markerTokens := token.Count(truncationMarker)
	for over > 0 {
		i := largestSection(sections)
		if i < 0 || sections[i].tokens <= minSectionTokens {
			break
		}
		keep := sections[i].tokens - over - markerTokens
		if keep < minSectionTokens {
			keep = minSectionTokens
		}
		before := sections[i].tokens
		trimmed := token.Head(sections[i].content, keep) + truncationMarker
		rebuilt := renderSection(sections[i].path, sections[i].ext, trimmed)
		if rebuilt.tokens >= before {
			break
		}
		sections[i] = rebuilt
		warnings = append(warnings, fmt.Sprintf("truncated %s to fit the context budget", sections[i].path))
		over -= before - rebuilt.tokens
	}

	// Pass 2: drop whole sections, largest first.
	for over > 0 && len(sections) > 0 {
		i := largestSection(sections)
		over -= sections[i].tokens
		warnings = append(warnings, fmt.Sprintf("omitted %s: context budget exhausted", sections[i].path))
		sections = append(sections[:i], sections[i+1:]...)
	}
	return sections, warnings
}

// largestSection returns the index of the section with the most tokens,
// first occurrence winning ties so trimming is deterministic.
func largestSection(sections []section) int {
	best := -1
	for i, s := range sections {
		if best < 0 || s.tokens > sections[best].tokens {
			best = i
		}
	}
	return best
}
