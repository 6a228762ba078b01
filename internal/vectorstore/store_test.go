package vectorstore

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raglet/raglet/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mkChunk(path string, ordinal int, text string) types.Chunk {
	return types.Chunk{
		ID:            types.NewChunkID(path, ordinal, text),
		SourcePath:    path,
		Ordinal:       ordinal,
		Text:          text,
		TokenEstimate: len(text) / 4,
	}
}

func mkManifest(path string, modNS int64) Manifest {
	return Manifest{SourcePath: path, ModTimeNS: modNS, ParamsHash: "abcd1234"}
}

func TestOpenCreatesSchema(t *testing.T) {
	store := openTestStore(t)

	stats, err := store.Stats(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestReplaceChunksAndManifest(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	chunks := []types.Chunk{
		mkChunk("/repo/a.txt", 0, "first chunk"),
		mkChunk("/repo/a.txt", 1, "second chunk"),
	}
	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}}

	require.NoError(t, store.ReplaceChunks(ctx, chunks, vectors, mkManifest("/repo/a.txt", 100)))

	m, err := store.GetManifest(ctx, "/repo/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(100), m.ModTimeNS)
	assert.Equal(t, "abcd1234", m.ParamsHash)
	assert.Equal(t, 2, m.ChunkCount)

	stats, err := store.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, Stats{Files: 1, Chunks: 2}, stats)
}

func TestReplaceChunksRemovesStaleRows(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	path := "/repo/a.txt"

	require.NoError(t, store.ReplaceChunks(ctx,
		[]types.Chunk{mkChunk(path, 0, "old 0"), mkChunk(path, 1, "old 1"), mkChunk(path, 2, "old 2")},
		[][]float32{{1, 0}, {0, 1}, {1, 1}},
		mkManifest(path, 100)))

	// Re-index with fewer chunks; the extras must disappear.
	require.NoError(t, store.ReplaceChunks(ctx,
		[]types.Chunk{mkChunk(path, 0, "new 0")},
		[][]float32{{1, 0}},
		mkManifest(path, 200)))

	stats, err := store.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, Stats{Files: 1, Chunks: 1}, stats)

	results, err := store.Search(ctx, []float32{1, 0}, "", 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new 0", results[0].Chunk.Text)
}

func TestReplaceChunksIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	path := "/repo/a.txt"
	chunks := []types.Chunk{mkChunk(path, 0, "same content")}
	vectors := [][]float32{{0.5, 0.5}}

	require.NoError(t, store.ReplaceChunks(ctx, chunks, vectors, mkManifest(path, 100)))
	require.NoError(t, store.ReplaceChunks(ctx, chunks, vectors, mkManifest(path, 100)))

	stats, err := store.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, Stats{Files: 1, Chunks: 1}, stats)
}

func TestReplaceChunksRejectsMismatchedVectors(t *testing.T) {
	store := openTestStore(t)

	err := store.ReplaceChunks(context.Background(),
		[]types.Chunk{mkChunk("/repo/a.txt", 0, "text")},
		nil,
		mkManifest("/repo/a.txt", 1))
	assert.Error(t, err)
}

func TestSearchRanksBySimilarity(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ReplaceChunks(ctx,
		[]types.Chunk{
			mkChunk("/repo/a.txt", 0, "exact match"),
			mkChunk("/repo/a.txt", 1, "close match"),
			mkChunk("/repo/a.txt", 2, "orthogonal"),
		},
		[][]float32{{1, 0}, {0.9, 0.4}, {0, 1}},
		mkManifest("/repo/a.txt", 1)))

	results, err := store.Search(ctx, []float32{1, 0}, "", 10, 0)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "exact match", results[0].Chunk.Text)
	assert.Equal(t, "close match", results[1].Chunk.Text)
	assert.Equal(t, "orthogonal", results[2].Chunk.Text)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestSearchMinScoreFilters(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ReplaceChunks(ctx,
		[]types.Chunk{
			mkChunk("/repo/a.txt", 0, "relevant"),
			mkChunk("/repo/a.txt", 1, "irrelevant"),
		},
		[][]float32{{1, 0}, {0, 1}},
		mkManifest("/repo/a.txt", 1)))

	results, err := store.Search(ctx, []float32{1, 0}, "", 10, 0.5)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "relevant", results[0].Chunk.Text)
}

func TestSearchScopedToRoot(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ReplaceChunks(ctx,
		[]types.Chunk{mkChunk("/repo/one/a.txt", 0, "in scope")},
		[][]float32{{1, 0}},
		mkManifest("/repo/one/a.txt", 1)))
	require.NoError(t, store.ReplaceChunks(ctx,
		[]types.Chunk{mkChunk("/repo/two/b.txt", 0, "out of scope")},
		[][]float32{{1, 0}},
		mkManifest("/repo/two/b.txt", 1)))

	results, err := store.Search(ctx, []float32{1, 0}, "/repo/one", 10, 0)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "in scope", results[0].Chunk.Text)
}

func TestScopeTreatsLikeMetacharactersLiterally(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// A _ in a LIKE pattern matches any character; /repo/a_b must not pull
	// in /repo/axb rows.
	require.NoError(t, store.ReplaceChunks(ctx,
		[]types.Chunk{mkChunk("/repo/a_b/in.txt", 0, "in scope")},
		[][]float32{{1, 0}},
		mkManifest("/repo/a_b/in.txt", 1)))
	require.NoError(t, store.ReplaceChunks(ctx,
		[]types.Chunk{mkChunk("/repo/axb/out.txt", 0, "out of scope")},
		[][]float32{{1, 0}},
		mkManifest("/repo/axb/out.txt", 1)))
	require.NoError(t, store.ReplaceChunks(ctx,
		[]types.Chunk{mkChunk("/repo/100%/pct.txt", 0, "percent dir")},
		[][]float32{{1, 0}},
		mkManifest("/repo/100%/pct.txt", 1)))

	results, err := store.Search(ctx, []float32{1, 0}, "/repo/a_b", 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "in scope", results[0].Chunk.Text)

	manifests, err := store.ListManifests(ctx, "/repo/a_b")
	require.NoError(t, err)
	require.Len(t, manifests, 1)
	assert.Contains(t, manifests, "/repo/a_b/in.txt")

	// % would otherwise match everything under /repo/100.
	pct, err := store.Search(ctx, []float32{1, 0}, "/repo/100%", 10, 0)
	require.NoError(t, err)
	require.Len(t, pct, 1)
	assert.Equal(t, "percent dir", pct[0].Chunk.Text)

	stats, err := store.Stats(ctx, "/repo/a_b")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)
}

func TestSearchTieBreaksDeterministically(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// Identical vectors, identical scores; order must come from path/ordinal.
	require.NoError(t, store.ReplaceChunks(ctx,
		[]types.Chunk{mkChunk("/repo/b.txt", 0, "from b")},
		[][]float32{{1, 0}},
		mkManifest("/repo/b.txt", 1)))
	require.NoError(t, store.ReplaceChunks(ctx,
		[]types.Chunk{mkChunk("/repo/a.txt", 0, "from a"), mkChunk("/repo/a.txt", 1, "from a too")},
		[][]float32{{1, 0}, {1, 0}},
		mkManifest("/repo/a.txt", 1)))

	results, err := store.Search(ctx, []float32{1, 0}, "", 10, 0)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "from a", results[0].Chunk.Text)
	assert.Equal(t, "from a too", results[1].Chunk.Text)
	assert.Equal(t, "from b", results[2].Chunk.Text)
}

func TestSearchEmptyIndex(t *testing.T) {
	store := openTestStore(t)

	results, err := store.Search(context.Background(), []float32{1, 0}, "", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDeleteBySource(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ReplaceChunks(ctx,
		[]types.Chunk{mkChunk("/repo/a.txt", 0, "doomed")},
		[][]float32{{1}},
		mkManifest("/repo/a.txt", 1)))

	require.NoError(t, store.DeleteBySource(ctx, "/repo/a.txt"))

	_, err := store.GetManifest(ctx, "/repo/a.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	stats, err := store.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestListManifestsScoped(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i, path := range []string{"/repo/one/a.txt", "/repo/one/sub/b.txt", "/repo/two/c.txt"} {
		require.NoError(t, store.ReplaceChunks(ctx,
			[]types.Chunk{mkChunk(path, 0, fmt.Sprintf("content %d", i))},
			[][]float32{{1}},
			mkManifest(path, int64(i))))
	}

	all, err := store.ListManifests(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	scoped, err := store.ListManifests(ctx, "/repo/one")
	require.NoError(t, err)
	assert.Len(t, scoped, 2)
	assert.Contains(t, scoped, "/repo/one/a.txt")
	assert.Contains(t, scoped, "/repo/one/sub/b.txt")
}

func TestPurge(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureModel(ctx, "local", "deterministic-hash", 384))
	require.NoError(t, store.ReplaceChunks(ctx,
		[]types.Chunk{mkChunk("/repo/a.txt", 0, "gone soon")},
		[][]float32{{1}},
		mkManifest("/repo/a.txt", 1)))

	require.NoError(t, store.Purge(ctx))

	stats, err := store.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)

	// After a purge the index can adopt a new model.
	assert.NoError(t, store.EnsureModel(ctx, "ollama", "nomic-embed-text", 768))
}

func TestEnsureModelMismatch(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureModel(ctx, "local", "deterministic-hash", 384))
	assert.NoError(t, store.EnsureModel(ctx, "local", "deterministic-hash", 384))

	err := store.EnsureModel(ctx, "ollama", "nomic-embed-text", 768)
	assert.ErrorIs(t, err, ErrModelMismatch)
}

func TestVectorSerializationRoundTrip(t *testing.T) {
	vec := []float32{0, 1, -1, 0.5, math.MaxFloat32, math.SmallestNonzeroFloat32}

	got := DeserializeVector(SerializeVector(vec))

	assert.Equal(t, vec, got)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
		{name: "dimension mismatch", a: []float32{1}, b: []float32{1, 0}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-6)
		})
	}
}
