package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultConfigName is the config seeded on first run.
const DefaultConfigName = "default"

// HistoryMax bounds the root-history list.
const HistoryMax = 10

// DefaultMaxFiles guards against accidentally walking an unrelated hierarchy
// (a home directory, a build tree) when no tighter cap is configured.
const DefaultMaxFiles = 3000

// regexPrefix marks a pattern as a regular expression instead of a glob.
const regexPrefix = "re:"

// Config is a named, persisted file-selection policy. The walker applies it
// but never mutates it.
type Config struct {
	// Name is unique across all persisted configs.
	Name string `json:"name"`

	// RootHistory is a most-recently-used list of walk roots, bounded to
	// HistoryMax entries.
	RootHistory []string `json:"root_history,omitempty"`

	// IncludePatterns are globs or "re:" regexes a file must match when the
	// list is non-empty. Matched against the path relative to the root.
	IncludePatterns []string `json:"include_patterns,omitempty"`

	// ExcludePatterns reject files and whole subtrees. Matched against both
	// the relative path and the base name.
	ExcludePatterns []string `json:"exclude_patterns,omitempty"`

	// AllowedExtensions is a positive filter on file extensions (".go",
	// ".pdf"). The wildcard ".*" admits every extension.
	AllowedExtensions []string `json:"allowed_extensions,omitempty"`

	// HonorIgnoreFiles enables .gitignore / .ragignore semantics during the
	// walk.
	HonorIgnoreFiles bool `json:"honor_ignore_files"`

	// MaxFiles caps the walk when MaxFilesEnabled.
	MaxFiles int `json:"max_files,omitempty"`

	// MaxFilesEnabled turns the cap on.
	MaxFilesEnabled bool `json:"max_files_enabled"`
}

// Default returns the policy seeded on first run: common VCS, dependency and
// build directories excluded, code and document extensions allowed.
func Default() *Config {
	return &Config{
		Name:             DefaultConfigName,
		HonorIgnoreFiles: true,
		MaxFiles:         DefaultMaxFiles,
		MaxFilesEnabled:  true,
		ExcludePatterns: []string{
			".git", ".hg", ".svn",
			".idea", ".vscode",
			"node_modules", "vendor", "dist", "build", "target", "out",
			"__pycache__", ".pytest_cache", ".venv", "venv", "env", ".env",
			"logs", "tmp", "temp",
			"LICENSE", "CHANGELOG.md", "package-lock.json",
			"*.jpg", "*.jpeg", "*.png", "*.gif", "*.mp4", "*.mov",
			"*.exe", "*.dll", "*.so", "*.dylib", "*.o", "*.a",
			"*.zip", "*.tar", "*.gz",
		},
		AllowedExtensions: []string{
			".go", ".py", ".js", ".jsx", ".ts", ".tsx", ".java", ".c",
			".cpp", ".h", ".rs", ".rb", ".php", ".swift", ".kt", ".scala",
			".sh", ".ps1", ".sql", ".html", ".css", ".json", ".xml",
			".yaml", ".yml", ".toml",
			".md", ".txt", ".rtf", ".pdf", ".docx", ".pptx", ".epub",
		},
	}
}

// Validate checks the policy is internally consistent and every pattern
// compiles.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("filter config: name is required")
	}
	if c.MaxFilesEnabled && c.MaxFiles < 1 {
		return errors.New("filter config: max_files must be at least 1 when enabled")
	}
	for _, pat := range append(append([]string{}, c.IncludePatterns...), c.ExcludePatterns...) {
		if err := checkPattern(pat); err != nil {
			return err
		}
	}
	for _, ext := range c.AllowedExtensions {
		if ext != ".*" && !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("filter config: extension %q must start with a dot", ext)
		}
	}
	return nil
}

func checkPattern(pat string) error {
	if pat == "" {
		return errors.New("filter config: empty pattern")
	}
	if rest, ok := strings.CutPrefix(pat, regexPrefix); ok {
		if _, err := regexp.Compile(rest); err != nil {
			return fmt.Errorf("filter config: invalid regex %q: %w", pat, err)
		}
		return nil
	}
	if !doublestar.ValidatePattern(pat) {
		return fmt.Errorf("filter config: invalid glob %q", pat)
	}
	return nil
}

// AddToHistory front-inserts root into the MRU list, deduplicating and
// truncating to HistoryMax.
func (c *Config) AddToHistory(root string) {
	out := make([]string, 0, len(c.RootHistory)+1)
	out = append(out, root)
	for _, h := range c.RootHistory {
		if h != root {
			out = append(out, h)
		}
	}
	if len(out) > HistoryMax {
		out = out[:HistoryMax]
	}
	c.RootHistory = out
}

// EffectiveMaxFiles returns the active cap, or 0 when unlimited.
func (c *Config) EffectiveMaxFiles() int {
	if !c.MaxFilesEnabled {
		return 0
	}
	return c.MaxFiles
}

// Clone returns a deep copy so callers can edit without racing the walker.
func (c *Config) Clone() *Config {
	dup := *c
	dup.RootHistory = append([]string(nil), c.RootHistory...)
	dup.IncludePatterns = append([]string(nil), c.IncludePatterns...)
	dup.ExcludePatterns = append([]string(nil), c.ExcludePatterns...)
	dup.AllowedExtensions = append([]string(nil), c.AllowedExtensions...)
	return &dup
}
