package walker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raglet/raglet/internal/filter"
	"github.com/raglet/raglet/pkg/types"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func openConfig() *filter.Config {
	return &filter.Config{Name: "test", AllowedExtensions: []string{".*"}}
}

func TestWalkDeterministic(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{"b.txt", "a.txt", "sub/c.md", "sub/deep/d.go"} {
		writeFile(t, root, rel, "content")
	}

	w := New(nil)
	first, err := w.Walk(context.Background(), root, openConfig())
	require.NoError(t, err)
	require.Len(t, first, 4)

	// Sorted by path, stable across runs.
	for i := 1; i < len(first); i++ {
		assert.Less(t, first[i-1].Path, first[i].Path)
	}
	second, err := w.Walk(context.Background(), root, openConfig())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestWalkPathNotFound(t *testing.T) {
	w := New(nil)
	_, err := w.Walk(context.Background(), filepath.Join(t.TempDir(), "nope"), openConfig())
	assert.ErrorIs(t, err, types.ErrPathNotFound)
}

func TestWalkMaxFilesTruncates(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 15; i++ {
		writeFile(t, root, fmt.Sprintf("f%02d.txt", i), "x")
	}

	cfg := openConfig()
	cfg.MaxFiles = 10
	cfg.MaxFilesEnabled = true

	w := New(nil)
	files, err := w.Walk(context.Background(), root, cfg)

	var truncated *types.TruncatedError
	require.ErrorAs(t, err, &truncated)
	assert.Equal(t, 10, truncated.Limit)
	assert.Len(t, files, 10)
}

func TestWalkExcludePrunesSubtree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.go", "x")
	writeFile(t, root, "node_modules/dep/index.js", "x")
	writeFile(t, root, "logs/run.txt", "x")

	cfg := openConfig()
	cfg.ExcludePatterns = []string{"node_modules", "logs"}

	files, err := New(nil).Walk(context.Background(), root, cfg)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Contains(t, files[0].Path, "keep.go")
}

func TestWalkExtensionFilter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "x")
	writeFile(t, root, "b.md", "x")
	writeFile(t, root, "c.bin", "x")

	cfg := &filter.Config{Name: "t", AllowedExtensions: []string{".go", ".md"}}
	files, err := New(nil).Walk(context.Background(), root, cfg)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, ".go", files[0].Ext)
	assert.Equal(t, ".md", files[1].Ext)
}

func TestWalkIncludePatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/guide.rst", "x")
	writeFile(t, root, "src/main.rst", "x")

	cfg := &filter.Config{Name: "t", IncludePatterns: []string{"docs/**"}}
	files, err := New(nil).Walk(context.Background(), root, cfg)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Contains(t, files[0].Path, "docs/guide.rst")
}

func TestWalkHonorsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.secret\nbuildout/\n!keep.secret\n")
	writeFile(t, root, "visible.txt", "x")
	writeFile(t, root, "hidden.secret", "x")
	writeFile(t, root, "keep.secret", "x")
	writeFile(t, root, "buildout/artifact.txt", "x")

	cfg := openConfig()
	cfg.HonorIgnoreFiles = true

	files, err := New(nil).Walk(context.Background(), root, cfg)
	require.NoError(t, err)

	var rels []string
	for _, f := range files {
		rel, _ := filepath.Rel(root, filepath.FromSlash(f.Path))
		rels = append(rels, filepath.ToSlash(rel))
	}
	assert.Contains(t, rels, "visible.txt")
	assert.Contains(t, rels, "keep.secret") // negation honored
	assert.NotContains(t, rels, "hidden.secret")
	assert.NotContains(t, rels, "buildout/artifact.txt")
}

func TestWalkIgnoreFilesDisabled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.secret\n")
	writeFile(t, root, "hidden.secret", "x")

	cfg := openConfig()
	cfg.HonorIgnoreFiles = false

	files, err := New(nil).Walk(context.Background(), root, cfg)
	require.NoError(t, err)

	found := false
	for _, f := range files {
		if filepath.Base(f.Path) == "hidden.secret" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestWalkSymlinkLoop(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "sub/file.txt", "x")
	// Loop: sub/loop -> root
	if err := os.Symlink(root, filepath.Join(root, "sub", "loop")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	files, err := New(nil).Walk(context.Background(), root, openConfig())
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestWalkCancellation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil).Walk(ctx, root, openConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWalkDescriptorFields(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "doc.PDF", "binarydata")

	files, err := New(nil).Walk(context.Background(), root, openConfig())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, ".pdf", files[0].Ext) // lowercased
	assert.Equal(t, int64(len("binarydata")), files[0].SizeBytes)
	assert.False(t, files[0].ModTime.IsZero())
}
