package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher is the compiled form of a Config. Compile once per walk; matching
// is then allocation-free and cheap per entry.
type Matcher struct {
	include    []pattern
	exclude    []pattern
	extensions map[string]bool
	anyExt     bool
}

type pattern struct {
	glob string
	re   *regexp.Regexp
}

func (p pattern) match(relPath, base string) bool {
	if p.re != nil {
		return p.re.MatchString(relPath) || p.re.MatchString(base)
	}
	if ok, err := doublestar.Match(p.glob, relPath); err == nil && ok {
		return true
	}
	ok, err := doublestar.Match(p.glob, base)
	return err == nil && ok
}

// Compile validates the config and builds its matcher.
func Compile(cfg *Config) (*Matcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Matcher{extensions: make(map[string]bool, len(cfg.AllowedExtensions))}
	for _, ext := range cfg.AllowedExtensions {
		if ext == ".*" {
			m.anyExt = true
			continue
		}
		m.extensions[strings.ToLower(ext)] = true
	}

	var err error
	if m.include, err = compilePatterns(cfg.IncludePatterns); err != nil {
		return nil, err
	}
	if m.exclude, err = compilePatterns(cfg.ExcludePatterns); err != nil {
		return nil, err
	}
	return m, nil
}

func compilePatterns(pats []string) ([]pattern, error) {
	out := make([]pattern, 0, len(pats))
	for _, pat := range pats {
		if rest, ok := strings.CutPrefix(pat, regexPrefix); ok {
			re, err := regexp.Compile(rest)
			if err != nil {
				return nil, fmt.Errorf("filter: compile %q: %w", pat, err)
			}
			out = append(out, pattern{re: re})
			continue
		}
		out = append(out, pattern{glob: pat})
	}
	return out, nil
}

// ExcludesDir reports whether a directory (and its whole subtree) is rejected
// by the exclude class. relPath is relative to the walk root, forward-slash.
func (m *Matcher) ExcludesDir(relPath, base string) bool {
	return matchAny(m.exclude, relPath, base)
}

// Admits reports whether a file passes the policy: it must satisfy the
// positive class (include patterns or allowed extensions; everything passes
// when both are empty) and not match any exclude pattern.
func (m *Matcher) Admits(relPath, base, ext string) bool {
	if matchAny(m.exclude, relPath, base) {
		return false
	}
	if len(m.include) == 0 && len(m.extensions) == 0 && !m.anyExt {
		return true
	}
	if m.anyExt || m.extensions[strings.ToLower(ext)] {
		return true
	}
	return matchAny(m.include, relPath, base)
}

func matchAny(pats []pattern, relPath, base string) bool {
	for _, p := range pats {
		if p.match(relPath, base) {
			return true
		}
	}
	return false
}
