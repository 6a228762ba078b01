package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/raglet/raglet/internal/chunker"
	"github.com/raglet/raglet/internal/embedder"
	"github.com/raglet/raglet/internal/extractor"
	"github.com/raglet/raglet/internal/filter"
	"github.com/raglet/raglet/internal/vectorstore"
	"github.com/raglet/raglet/internal/walker"
	"github.com/raglet/raglet/pkg/types"
)

// Indexer runs incremental indexing passes over file trees.
type Indexer struct {
	walker   *walker.Walker
	registry *extractor.Registry
	embedder embedder.Embedder
	store    *vectorstore.Store
	log      *slog.Logger
	workers  int
	locks    *lockTable
}

// Config tunes an indexer.
type Config struct {
	// Workers bounds concurrent per-file pipelines (default runtime.NumCPU).
	Workers int

	// MaxFileBytes skips extraction of files larger than this (0 = no limit).
	MaxFileBytes int64
}

// New creates an indexer over the given store and embedding provider.
func New(store *vectorstore.Store, emb embedder.Embedder, cfg Config, log *slog.Logger) *Indexer {
	if log == nil {
		log = slog.Default()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Indexer{
		walker:   walker.New(log),
		registry: extractor.NewRegistry(cfg.MaxFileBytes, log),
		embedder: emb,
		store:    store,
		log:      log,
		workers:  workers,
		locks:    newLockTable(),
	}
}

// Index walks root with the given filter, brings the index up to date with
// what it finds, and prunes entries for files that no longer exist. The
// returned report counts added, updated, removed, and skipped files plus
// per-file errors; per-file errors never fail the pass.
func (idx *Indexer) Index(ctx context.Context, root string, fcfg *filter.Config, params types.ChunkingParams) (*types.IndexReport, error) {
	lock := idx.locks.forRoot(root)
	if !lock.TryAcquire() {
		return nil, types.ErrIndexInProgress
	}
	defer lock.Release()

	ch, err := chunker.New(params)
	if err != nil {
		return nil, err
	}

	// Fail before any write when the provider is down.
	if err := idx.embedder.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrEmbeddingService, err)
	}
	if err := idx.store.EnsureModel(ctx, idx.embedder.Provider(), idx.embedder.Model(), idx.embedder.Dimension()); err != nil {
		return nil, err
	}

	report := &types.IndexReport{}

	files, err := idx.walker.Walk(ctx, root, fcfg)
	truncated := false
	if err != nil {
		var trunc *types.TruncatedError
		if !errors.As(err, &trunc) {
			return nil, err
		}
		truncated = true
		// A truncated walk still indexes what it found; surface the cap hit
		// as a report error so the user narrows the filters.
		report.Errors = append(report.Errors, types.FileError{
			Path:    root,
			Stage:   "walk",
			Message: trunc.Error(),
		})
	}

	manifests, err := idx.store.ListManifests(ctx, root)
	if err != nil {
		return nil, err
	}

	paramsHash := params.Hash()
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)
	for _, fd := range files {
		fd := fd
		prior, hadPrior := manifests[fd.Path]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcome := idx.indexFile(gctx, ch, fd, prior, hadPrior, paramsHash)
			mu.Lock()
			report.Merge(&outcome)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	// Prune files that were indexed before but are gone from this walk. A
	// capped walk sees only part of the tree, so absence from its file list
	// proves nothing; in that case prune only files confirmed gone from disk.
	current := make(map[string]bool, len(files))
	for _, fd := range files {
		current[fd.Path] = true
	}
	for path := range manifests {
		if current[path] {
			continue
		}
		if truncated {
			if _, statErr := os.Stat(path); statErr == nil {
				continue
			}
		}
		if err := idx.store.DeleteBySource(ctx, path); err != nil {
			report.Errors = append(report.Errors, types.FileError{
				Path: path, Stage: "prune", Message: err.Error(),
			})
			continue
		}
		report.Removed++
	}

	idx.log.Info("indexing pass complete",
		"root", root,
		"added", report.Added,
		"updated", report.Updated,
		"removed", report.Removed,
		"skipped", report.Skipped,
		"chunks", report.Chunks,
		"errors", len(report.Errors))
	return report, nil
}

// indexFile runs the extract-chunk-embed-store pipeline for one file and
// reports its outcome. Errors are folded into the returned report.
func (idx *Indexer) indexFile(ctx context.Context, ch *chunker.Chunker, fd types.FileDescriptor, prior vectorstore.Manifest, hadPrior bool, paramsHash string) types.IndexReport {
	var out types.IndexReport

	if hadPrior && prior.ModTimeNS == fd.ModTime.UnixNano() && prior.ParamsHash == paramsHash {
		out.Skipped++
		return out
	}

	doc := idx.registry.Extract(fd)
	if doc.Failed() {
		out.Errors = append(out.Errors, types.FileError{
			Path: fd.Path, Stage: "extract", Message: doc.Err.Error(),
		})
		return out
	}

	chunks := ch.Split(doc)
	if len(chunks) == 0 {
		// Nothing embeddable. Drop any stale chunks from a previous pass.
		if hadPrior {
			if err := idx.store.DeleteBySource(ctx, fd.Path); err != nil {
				out.Errors = append(out.Errors, types.FileError{
					Path: fd.Path, Stage: "store", Message: err.Error(),
				})
				return out
			}
			out.Removed++
		} else {
			out.Skipped++
		}
		return out
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		out.Errors = append(out.Errors, types.FileError{
			Path: fd.Path, Stage: "embed", Message: err.Error(),
		})
		return out
	}

	m := vectorstore.Manifest{
		SourcePath: fd.Path,
		ModTimeNS:  fd.ModTime.UnixNano(),
		ParamsHash: paramsHash,
	}
	if err := idx.store.ReplaceChunks(ctx, chunks, vectors, m); err != nil {
		out.Errors = append(out.Errors, types.FileError{
			Path: fd.Path, Stage: "store", Message: err.Error(),
		})
		return out
	}

	if hadPrior {
		out.Updated++
	} else {
		out.Added++
	}
	out.Chunks += len(chunks)
	return out
}

// Purge clears the whole index.
func (idx *Indexer) Purge(ctx context.Context) error {
	return idx.store.Purge(ctx)
}

// Stats reports index contents under a root.
func (idx *Indexer) Stats(ctx context.Context, root string) (vectorstore.Stats, error) {
	return idx.store.Stats(ctx, root)
}
