package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raglet/raglet/internal/embedder"
	"github.com/raglet/raglet/internal/filter"
	"github.com/raglet/raglet/internal/vectorstore"
	"github.com/raglet/raglet/pkg/types"
)

func testParams() types.ChunkingParams {
	return types.ChunkingParams{ChunkSizeTokens: 128, OverlapRatio: 0.1}
}

func testFilter() *filter.Config {
	return &filter.Config{
		Name:              "test",
		AllowedExtensions: []string{".txt", ".md"},
	}
}

func newTestIndexer(t *testing.T) (*Indexer, *vectorstore.Store) {
	t.Helper()
	store, err := vectorstore.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	idx := New(store, embedder.NewLocalProvider(nil), Config{Workers: 2}, nil)
	return idx, store
}

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// bump pushes a file's mtime forward so a rewrite registers as a change even
// on filesystems with coarse timestamps.
func bump(t *testing.T, path string) {
	t.Helper()
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))
}

func TestIndexFirstPassAddsEverything(t *testing.T) {
	idx, store := newTestIndexer(t)
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"a.txt":     "alpha content here",
		"b.txt":     "beta content here",
		"sub/c.md":  "# gamma\n\nsome prose",
		"skip.yaml": "not: allowed",
	})

	report, err := idx.Index(context.Background(), dir, testFilter(), testParams())

	require.NoError(t, err)
	assert.Equal(t, 3, report.Added)
	assert.Zero(t, report.Updated)
	assert.Zero(t, report.Removed)
	assert.True(t, report.Clean(), "unexpected errors: %v", report.Errors)

	stats, err := store.Stats(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Files)
	assert.GreaterOrEqual(t, stats.Chunks, 3)
}

func TestIndexSecondPassSkipsUnchanged(t *testing.T) {
	idx, _ := newTestIndexer(t)
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.txt": "alpha", "b.txt": "beta"})
	ctx := context.Background()

	_, err := idx.Index(ctx, dir, testFilter(), testParams())
	require.NoError(t, err)

	report, err := idx.Index(ctx, dir, testFilter(), testParams())
	require.NoError(t, err)

	assert.Zero(t, report.Added)
	assert.Zero(t, report.Updated)
	assert.Zero(t, report.Removed)
	assert.Equal(t, 2, report.Skipped)
}

func TestIndexRefreshesOnlyChangedFiles(t *testing.T) {
	idx, _ := newTestIndexer(t)
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.txt": "alpha", "b.txt": "beta"})
	ctx := context.Background()

	_, err := idx.Index(ctx, dir, testFilter(), testParams())
	require.NoError(t, err)

	writeTree(t, dir, map[string]string{"a.txt": "alpha rewritten"})
	bump(t, filepath.Join(dir, "a.txt"))

	report, err := idx.Index(ctx, dir, testFilter(), testParams())
	require.NoError(t, err)

	assert.Zero(t, report.Added)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Skipped)
}

func TestIndexPrunesDeletedFiles(t *testing.T) {
	idx, store := newTestIndexer(t)
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.txt": "alpha", "b.txt": "beta"})
	ctx := context.Background()

	_, err := idx.Index(ctx, dir, testFilter(), testParams())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "b.txt")))

	report, err := idx.Index(ctx, dir, testFilter(), testParams())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Removed)
	stats, err := store.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)
}

func TestIndexTruncatedWalkKeepsLiveFiles(t *testing.T) {
	idx, store := newTestIndexer(t)
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.txt": "alpha", "b.txt": "beta", "c.txt": "gamma"})
	ctx := context.Background()

	_, err := idx.Index(ctx, dir, testFilter(), testParams())
	require.NoError(t, err)

	capped := &filter.Config{
		Name:              "test",
		AllowedExtensions: []string{".txt"},
		MaxFiles:          2,
		MaxFilesEnabled:   true,
	}
	report, err := idx.Index(ctx, dir, capped, testParams())
	require.NoError(t, err)

	// The capped walk misses one file, but it still exists on disk and must
	// keep its vectors.
	assert.Zero(t, report.Removed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "walk", report.Errors[0].Stage)

	stats, err := store.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Files)
}

func TestIndexTruncatedWalkStillPrunesDeletedFiles(t *testing.T) {
	idx, store := newTestIndexer(t)
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.txt": "alpha", "b.txt": "beta", "c.txt": "gamma"})
	ctx := context.Background()

	_, err := idx.Index(ctx, dir, testFilter(), testParams())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "c.txt")))

	capped := &filter.Config{
		Name:              "test",
		AllowedExtensions: []string{".txt"},
		MaxFiles:          1,
		MaxFilesEnabled:   true,
	}
	report, err := idx.Index(ctx, dir, capped, testParams())
	require.NoError(t, err)

	// b.txt was missed by the capped walk but is still on disk; only the
	// genuinely deleted c.txt loses its vectors.
	assert.Equal(t, 1, report.Removed)
	stats, err := store.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
}

func TestIndexParamsChangeForcesReindex(t *testing.T) {
	idx, _ := newTestIndexer(t)
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.txt": "alpha", "b.txt": "beta"})
	ctx := context.Background()

	_, err := idx.Index(ctx, dir, testFilter(), testParams())
	require.NoError(t, err)

	changed := types.ChunkingParams{ChunkSizeTokens: 64, OverlapRatio: 0.1}
	report, err := idx.Index(ctx, dir, testFilter(), changed)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Updated)
	assert.Zero(t, report.Skipped)
}

func TestIndexIsolatesPerFileFailures(t *testing.T) {
	idx, store := newTestIndexer(t)
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.txt": "good file"})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.pdf"), []byte("not a pdf"), 0o644))

	fcfg := testFilter()
	fcfg.AllowedExtensions = []string{".txt", ".pdf"}

	report, err := idx.Index(context.Background(), dir, fcfg, testParams())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Added)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "extract", report.Errors[0].Stage)

	stats, err := store.Stats(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)
}

func TestIndexSingleFlightPerRoot(t *testing.T) {
	idx, _ := newTestIndexer(t)
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.txt": "alpha"})

	root, err := filepath.Abs(dir)
	require.NoError(t, err)
	lock := idx.locks.forRoot(root)
	require.True(t, lock.TryAcquire())
	defer lock.Release()

	_, err = idx.Index(context.Background(), root, testFilter(), testParams())
	assert.ErrorIs(t, err, types.ErrIndexInProgress)
}

func TestIndexConcurrentSameRootOneWins(t *testing.T) {
	idx, _ := newTestIndexer(t)
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.txt": "alpha content for chunking"})
	root, err := filepath.Abs(dir)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = idx.Index(context.Background(), root, testFilter(), testParams())
		}(i)
	}
	wg.Wait()

	var ok, busy int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, types.ErrIndexInProgress):
			busy++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.GreaterOrEqual(t, ok, 1)
	assert.Equal(t, 4, ok+busy)
}

type downEmbedder struct {
	embedder.Embedder
}

func (d *downEmbedder) Ping(ctx context.Context) error {
	return errors.New("connection refused")
}

func TestIndexAbortsWhenEmbedderUnreachable(t *testing.T) {
	store, err := vectorstore.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	idx := New(store, &downEmbedder{Embedder: embedder.NewLocalProvider(nil)}, Config{}, nil)

	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.txt": "alpha"})

	_, err = idx.Index(context.Background(), dir, testFilter(), testParams())
	require.ErrorIs(t, err, types.ErrEmbeddingService)

	// Nothing was written.
	stats, err := store.Stats(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, vectorstore.Stats{}, stats)
}

func TestIndexMissingRoot(t *testing.T) {
	idx, _ := newTestIndexer(t)

	_, err := idx.Index(context.Background(), filepath.Join(t.TempDir(), "missing"), testFilter(), testParams())
	assert.ErrorIs(t, err, types.ErrPathNotFound)
}

type renamedEmbedder struct {
	embedder.Embedder
}

func (r *renamedEmbedder) Model() string { return "some-other-model" }

func TestIndexModelMismatchRejected(t *testing.T) {
	idx, store := newTestIndexer(t)
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.txt": "alpha"})
	ctx := context.Background()

	_, err := idx.Index(ctx, dir, testFilter(), testParams())
	require.NoError(t, err)

	// Same store, different embedding identity.
	idx2 := New(store, &renamedEmbedder{Embedder: embedder.NewLocalProvider(nil)}, Config{}, nil)
	_, err = idx2.Index(ctx, dir, testFilter(), testParams())
	assert.ErrorIs(t, err, vectorstore.ErrModelMismatch)
}
