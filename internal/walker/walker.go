package walker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	gitignore "github.com/denormal/go-gitignore"

	"github.com/raglet/raglet/internal/filter"
	"github.com/raglet/raglet/pkg/types"
)

// RagignoreFile is honored alongside .gitignore with the same semantics, for
// trees where the two concerns differ.
const RagignoreFile = ".ragignore"

// errCapReached unwinds the recursion once the max-files cap is exceeded.
var errCapReached = errors.New("walk cap reached")

// Walker lists files under a root according to a filter.Config.
type Walker struct {
	log *slog.Logger
}

// New creates a Walker. A nil logger falls back to slog.Default.
func New(log *slog.Logger) *Walker {
	if log == nil {
		log = slog.Default()
	}
	return &Walker{log: log}
}

// walkState carries per-walk mutable state through the recursion.
type walkState struct {
	root      string
	matcher   *filter.Matcher
	ignores   []gitignore.GitIgnore
	visited   map[string]bool // resolved directory paths, guards symlink loops
	out       []types.FileDescriptor
	cap       int // 0 = unlimited
	truncated bool
}

// Walk returns the ordered file descriptors under root admitted by cfg.
//
// When the config's max-files cap is hit the partial (capped) list is
// returned together with a *types.TruncatedError so callers can tell the
// user to narrow their filters instead of silently using incomplete context.
// Unreadable subdirectories are logged and skipped; an unreadable root fails
// with types.ErrPathNotFound.
func (w *Walker) Walk(ctx context.Context, root string, cfg *filter.Config) ([]types.FileDescriptor, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrPathNotFound, root)
	}
	info, err := os.Stat(absRoot)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", types.ErrPathNotFound, root)
	}

	matcher, err := filter.Compile(cfg)
	if err != nil {
		return nil, err
	}

	st := &walkState{
		root:    absRoot,
		matcher: matcher,
		visited: map[string]bool{absRoot: true},
		cap:     cfg.EffectiveMaxFiles(),
	}
	if cfg.HonorIgnoreFiles {
		st.ignores = loadIgnores(absRoot, w.log)
	}

	if err := w.walkDir(ctx, st, absRoot); err != nil && !errors.Is(err, errCapReached) {
		return nil, err
	}

	sort.Slice(st.out, func(i, j int) bool { return st.out[i].Path < st.out[j].Path })

	if st.truncated {
		return st.out[:st.cap], &types.TruncatedError{Limit: st.cap}
	}
	return st.out, nil
}

// loadIgnores builds repository matchers for .gitignore and .ragignore.
// A root without ignore files still yields working (empty) matchers.
func loadIgnores(root string, log *slog.Logger) []gitignore.GitIgnore {
	var matchers []gitignore.GitIgnore
	if repo, err := gitignore.NewRepository(root); err == nil {
		matchers = append(matchers, repo)
	} else {
		log.Warn("gitignore rules unavailable", "root", root, "error", err)
	}
	if repo, err := gitignore.NewRepositoryWithFile(root, RagignoreFile); err == nil {
		matchers = append(matchers, repo)
	}
	return matchers
}

func (w *Walker) walkDir(ctx context.Context, st *walkState, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		// Permission denied and friends: skip the subtree, keep walking.
		w.log.Warn("skipping unreadable directory", "dir", dir, "error", err)
		return nil
	}

	// os.ReadDir sorts by name, which keeps the walk deterministic.
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		rel, err := filepath.Rel(st.root, path)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)

		isDir := entry.IsDir()
		var fileInfo fs.FileInfo

		if entry.Type()&fs.ModeSymlink != 0 {
			target, err := os.Stat(path) // follows the link
			if err != nil {
				w.log.Warn("skipping broken symlink", "path", path)
				continue
			}
			isDir = target.IsDir()
			fileInfo = target
		}

		if isDir {
			if st.matcher.ExcludesDir(rel, entry.Name()) {
				continue
			}
			if st.ignored(rel, true) {
				continue
			}
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil {
				continue
			}
			if st.visited[resolved] {
				w.log.Warn("skipping symlink loop", "path", path, "target", resolved)
				continue
			}
			st.visited[resolved] = true
			if err := w.walkDir(ctx, st, path); err != nil {
				return err
			}
			continue
		}

		if !st.matcher.Admits(rel, entry.Name(), filepath.Ext(entry.Name())) {
			continue
		}
		if st.ignored(rel, false) {
			continue
		}

		if fileInfo == nil {
			fileInfo, err = entry.Info()
			if err != nil {
				w.log.Warn("skipping unreadable file", "path", path, "error", err)
				continue
			}
		}

		st.out = append(st.out, types.NewFileDescriptor(path, fileInfo.Size(), fileInfo.ModTime()))
		if st.cap > 0 && len(st.out) > st.cap {
			st.truncated = true
			return errCapReached
		}
	}
	return nil
}

// ignored applies the .gitignore / .ragignore matchers, including negation
// semantics, to a root-relative path.
func (st *walkState) ignored(rel string, isDir bool) bool {
	for _, gi := range st.ignores {
		if match := gi.Relative(rel, isDir); match != nil && match.Ignore() {
			return true
		}
	}
	return false
}
