package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raglet/raglet/internal/filter"
)

func testFilter() *filter.Config {
	return &filter.Config{
		Name:              "test",
		AllowedExtensions: []string{".txt"},
		ExcludePatterns:   []string{"skipdir"},
	}
}

func startWatcher(t *testing.T, root string, hits *atomic.Int32, notify chan struct{}) {
	t.Helper()
	w, err := New(root, testFilter(), 100*time.Millisecond, func() {
		hits.Add(1)
		select {
		case notify <- struct{}{}:
		default:
		}
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Run(ctx)
}

func awaitNotify(t *testing.T, notify chan struct{}) {
	t.Helper()
	select {
	case <-notify:
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
}

func TestWatcherNotifiesOnRelevantChange(t *testing.T) {
	dir := t.TempDir()
	var hits atomic.Int32
	notify := make(chan struct{}, 1)
	startWatcher(t, dir, &hits, notify)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644))
	awaitNotify(t, notify)
}

func TestWatcherIgnoresFilteredFiles(t *testing.T) {
	dir := t.TempDir()
	var hits atomic.Int32
	notify := make(chan struct{}, 1)
	startWatcher(t, dir, &hits, notify)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte{0x89}, 0o644))

	time.Sleep(400 * time.Millisecond)
	assert.Zero(t, hits.Load())
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	var hits atomic.Int32
	notify := make(chan struct{}, 8)
	startWatcher(t, dir, &hits, notify)

	path := filepath.Join(dir, "a.txt")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("rev"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}
	awaitNotify(t, notify)

	// The burst settles into a single notification.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), hits.Load())
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	dir := t.TempDir()
	var hits atomic.Int32
	notify := make(chan struct{}, 1)
	startWatcher(t, dir, &hits, notify)

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(200 * time.Millisecond) // let the new watch register

	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.txt"), []byte("beta"), 0o644))
	awaitNotify(t, notify)
}

func TestWatcherSkipsExcludedDirectories(t *testing.T) {
	dir := t.TempDir()
	skip := filepath.Join(dir, "skipdir")
	require.NoError(t, os.Mkdir(skip, 0o755))

	var hits atomic.Int32
	notify := make(chan struct{}, 1)
	startWatcher(t, dir, &hits, notify)

	require.NoError(t, os.WriteFile(filepath.Join(skip, "c.txt"), []byte("gamma"), 0o644))

	time.Sleep(400 * time.Millisecond)
	assert.Zero(t, hits.Load())
}
