package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/raglet/raglet/internal/config"
	"github.com/raglet/raglet/internal/embedder"
	"github.com/raglet/raglet/internal/extractor"
	"github.com/raglet/raglet/internal/filter"
	"github.com/raglet/raglet/internal/indexer"
	"github.com/raglet/raglet/internal/retriever"
	"github.com/raglet/raglet/internal/token"
	"github.com/raglet/raglet/internal/vectorstore"
	"github.com/raglet/raglet/internal/walker"
	"github.com/raglet/raglet/pkg/types"
)

var (
	// ErrNoScope is returned when a payload is requested before a scope is set.
	ErrNoScope = errors.New("no scope configured; set a root directory first")

	// ErrNotIndexed is returned when RAG context is requested but the scope
	// has not been vectorized with the current filters and parameters.
	ErrNotIndexed = errors.New("scope is not vectorized; run vectorize first")

	// ErrModeOff is returned when a payload is requested in OFF mode.
	ErrModeOff = errors.New("context acquisition is off")

	// ErrQueryRequired is returned for RAG payloads without a query.
	ErrQueryRequired = errors.New("rag mode requires a query")
)

// EmptyIndexWarning is attached (not raised) when RAG retrieval runs against
// an index with no chunks in scope.
const EmptyIndexWarning = "the index contains no chunks for this scope; the payload is empty"

// Payload is an assembled context block ready for prompt splicing.
type Payload struct {
	Mode          Mode     `json:"mode"`
	Text          string   `json:"text"`
	Files         int      `json:"files"`
	Chunks        int      `json:"chunks"`
	TokenEstimate int      `json:"token_estimate"`
	Warnings      []string `json:"warnings,omitempty"`
}

// Status is a point-in-time snapshot of the orchestrator.
type Status struct {
	Mode          Mode                 `json:"mode"`
	State         State                `json:"state"`
	Root          string               `json:"root,omitempty"`
	FilterName    string               `json:"filter_name,omitempty"`
	Chunking      types.ChunkingParams `json:"-"`
	IndexedFiles  int                  `json:"indexed_files"`
	IndexedChunks int                  `json:"indexed_chunks"`
	ActiveJob     string               `json:"active_job,omitempty"`
}

// Orchestrator coordinates modes, scope, indexing jobs, and payload
// assembly. All public methods are safe for concurrent use.
type Orchestrator struct {
	cfg   *config.Config
	log   *slog.Logger
	store *vectorstore.Store

	walker    *walker.Walker
	registry  *extractor.Registry
	indexer   *indexer.Indexer
	retriever *retriever.Retriever

	mu         sync.Mutex
	mode       Mode
	state      State
	root       string
	filterCfg  *filter.Config
	filterName string
	chunking   types.ChunkingParams
	retrieval  retriever.Params
	jobs       map[string]*Job
	activeJob  string
}

// New wires an orchestrator from configuration.
func New(cfg *config.Config, store *vectorstore.Store, emb embedder.Embedder, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		cfg:      cfg,
		log:      log,
		store:    store,
		walker:   walker.New(log),
		registry: extractor.NewRegistry(cfg.Context.MaxFileBytes, log),
		indexer: indexer.New(store, emb, indexer.Config{
			MaxFileBytes: cfg.Context.MaxFileBytes,
		}, log),
		retriever: retriever.New(store, emb),
		mode:      ModeOff,
		state:     StateOff,
		filterCfg: filter.Default(),
		chunking: types.ChunkingParams{
			ChunkSizeTokens: cfg.Chunking.ChunkSizeTokens,
			OverlapRatio:    cfg.Chunking.OverlapRatio,
		},
		retrieval: retriever.Params{
			TopK:       cfg.Retrieval.TopK,
			FetchK:     cfg.Retrieval.FetchK,
			MinScore:   cfg.Retrieval.MinScore,
			MaxPerFile: cfg.Retrieval.MaxPerFile,
		},
		jobs: make(map[string]*Job),
	}
}

// SetMode switches modes. Entering RAG lands in pending unless the store
// already holds a current index for the scope; entering FULL is ready as
// soon as a scope exists.
func (o *Orchestrator) SetMode(ctx context.Context, mode Mode) (State, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch mode {
	case ModeOff:
		o.mode, o.state = ModeOff, StateOff
	case ModeFull:
		o.mode = ModeFull
		if o.root == "" {
			o.state = StateOff
		} else {
			o.state = StateFullReady
		}
	case ModeRAG:
		o.mode = ModeRAG
		if o.root != "" && o.indexCurrentLocked(ctx) {
			o.state = StateRAGIndexed
		} else {
			o.state = StateRAGPending
		}
	default:
		return o.state, fmt.Errorf("unknown mode %q", mode)
	}
	o.log.Info("mode changed", "mode", o.mode, "state", o.state)
	return o.state, nil
}

// indexCurrentLocked reports whether every indexed file under the root used
// the current chunking parameters and at least one file is indexed.
func (o *Orchestrator) indexCurrentLocked(ctx context.Context) bool {
	manifests, err := o.store.ListManifests(ctx, o.root)
	if err != nil || len(manifests) == 0 {
		return false
	}
	hash := o.chunking.Hash()
	for _, m := range manifests {
		if m.ParamsHash != hash {
			return false
		}
	}
	return true
}

// SetScope points the orchestrator at a root directory with a named filter
// configuration. Changing scope invalidates RAG readiness.
func (o *Orchestrator) SetScope(ctx context.Context, root string, fcfg *filter.Config) (State, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return o.State(), fmt.Errorf("%w: %s", types.ErrPathNotFound, root)
	}
	abs = filepath.ToSlash(abs)

	o.mu.Lock()
	defer o.mu.Unlock()

	o.root = abs
	if fcfg != nil {
		o.filterCfg = fcfg.Clone()
		o.filterName = fcfg.Name
	}
	o.retriever.InvalidateCache()

	switch o.mode {
	case ModeFull:
		o.state = StateFullReady
	case ModeRAG:
		if o.indexCurrentLocked(ctx) {
			o.state = StateRAGIndexed
		} else {
			o.state = StateRAGPending
		}
	}
	o.log.Info("scope changed", "root", abs, "filter", o.filterName, "state", o.state)
	return o.state, nil
}

// SetParams replaces the chunking and retrieval parameters. A chunking
// change drops RAG readiness; a retrieval-only change keeps the index but
// clears the query cache.
func (o *Orchestrator) SetParams(chunking *types.ChunkingParams, ret *retriever.Params) (State, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if chunking != nil {
		if err := chunking.Validate(); err != nil {
			return o.state, err
		}
		if *chunking != o.chunking {
			o.chunking = *chunking
			if o.state.retrievable() {
				o.state = StateRAGPending
			}
		}
	}
	if ret != nil {
		o.retrieval = *ret
	}
	o.retriever.InvalidateCache()
	return o.state, nil
}

// Invalidate marks the index stale, typically on a file-change notification.
func (o *Orchestrator) Invalidate() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retriever.InvalidateCache()
	if o.state.retrievable() {
		o.state = StateRAGPending
		o.log.Debug("index marked stale")
	}
}

// Vectorize starts a background indexing pass over the current scope and
// returns its job ID immediately. At most one job runs per root; a
// concurrent second call fails with ErrIndexInProgress.
func (o *Orchestrator) Vectorize(ctx context.Context) (*Job, error) {
	o.mu.Lock()
	if o.root == "" {
		o.mu.Unlock()
		return nil, ErrNoScope
	}
	root := o.root
	fcfg := o.filterCfg.Clone()
	params := o.chunking
	job := newJob(root)
	o.jobs[job.ID] = job
	o.activeJob = job.ID
	o.evictJobsLocked()
	o.mu.Unlock()

	go func() {
		report, err := o.indexer.Index(context.WithoutCancel(ctx), root, fcfg, params)

		o.mu.Lock()
		if o.activeJob == job.ID {
			o.activeJob = ""
		}
		o.retriever.InvalidateCache()
		if err == nil && o.mode == ModeRAG && o.root == root && o.chunking == params {
			o.state = StateRAGIndexed
		}
		o.mu.Unlock()

		// Finish last so waiters observe the settled state.
		job.finish(report, err)

		if err != nil {
			o.log.Error("vectorize failed", "job", job.ID, "root", root, "error", err)
			return
		}
		o.log.Info("vectorize complete", "job", job.ID, "root", root,
			"added", report.Added, "updated", report.Updated,
			"removed", report.Removed, "skipped", report.Skipped)
	}()
	return job, nil
}

// RefreshIndex runs an incremental pass synchronously and returns its
// report. Unchanged files are skipped via the manifest.
func (o *Orchestrator) RefreshIndex(ctx context.Context) (*types.IndexReport, error) {
	o.mu.Lock()
	if o.root == "" {
		o.mu.Unlock()
		return nil, ErrNoScope
	}
	root := o.root
	fcfg := o.filterCfg.Clone()
	params := o.chunking
	o.mu.Unlock()

	report, err := o.indexer.Index(ctx, root, fcfg, params)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.retriever.InvalidateCache()
	if o.mode == ModeRAG && o.root == root && o.chunking == params {
		o.state = StateRAGIndexed
	}
	return report, nil
}

// maxRetainedJobs caps the job history; a long-lived session would otherwise
// accumulate one entry per vectorize call forever.
const maxRetainedJobs = 32

// evictJobsLocked drops the oldest finished jobs once the map exceeds the
// retention cap. Running jobs are never evicted. Caller holds o.mu.
func (o *Orchestrator) evictJobsLocked() {
	if len(o.jobs) <= maxRetainedJobs {
		return
	}
	type ended struct {
		id string
		at time.Time
	}
	var finished []ended
	for id, j := range o.jobs {
		if at := j.finishedTime(); !at.IsZero() {
			finished = append(finished, ended{id: id, at: at})
		}
	}
	sort.Slice(finished, func(i, k int) bool { return finished[i].at.Before(finished[k].at) })
	for _, e := range finished {
		if len(o.jobs) <= maxRetainedJobs {
			return
		}
		delete(o.jobs, e.id)
	}
}

// Job looks up a vectorize job by ID.
func (o *Orchestrator) Job(id string) (*Job, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	j, ok := o.jobs[id]
	return j, ok
}

// PurgeIndex drops every vector and manifest row and resets RAG readiness.
func (o *Orchestrator) PurgeIndex(ctx context.Context) error {
	if err := o.indexer.Purge(ctx); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retriever.InvalidateCache()
	if o.mode == ModeRAG {
		o.state = StateRAGPending
	}
	return nil
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Status returns a snapshot including index statistics.
func (o *Orchestrator) Status(ctx context.Context) (Status, error) {
	o.mu.Lock()
	st := Status{
		Mode:       o.mode,
		State:      o.state,
		Root:       o.root,
		FilterName: o.filterName,
		Chunking:   o.chunking,
		ActiveJob:  o.activeJob,
	}
	root := o.root
	o.mu.Unlock()

	stats, err := o.store.Stats(ctx, root)
	if err != nil {
		return st, err
	}
	st.IndexedFiles = stats.Files
	st.IndexedChunks = stats.Chunks
	return st, nil
}

// Retrieval returns the current retrieval parameters.
func (o *Orchestrator) Retrieval() retriever.Params {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.retrieval
}

// BuildContext assembles the context payload for the current mode. The
// query is required in RAG mode and ignored in FULL mode.
func (o *Orchestrator) BuildContext(ctx context.Context, query string) (*Payload, error) {
	return o.buildContext(ctx, query, nil)
}

// BuildContextWithParams is BuildContext with one-off retrieval parameters;
// the configured defaults are untouched.
func (o *Orchestrator) BuildContextWithParams(ctx context.Context, query string, params retriever.Params) (*Payload, error) {
	return o.buildContext(ctx, query, &params)
}

func (o *Orchestrator) buildContext(ctx context.Context, query string, override *retriever.Params) (*Payload, error) {
	o.mu.Lock()
	mode := o.mode
	state := o.state
	root := o.root
	fcfg := o.filterCfg.Clone()
	params := o.retrieval
	o.mu.Unlock()
	if override != nil {
		params = *override
	}

	switch mode {
	case ModeOff:
		return nil, ErrModeOff
	case ModeFull:
		if root == "" {
			return nil, ErrNoScope
		}
		payload, err := o.buildFull(ctx, root, fcfg)
		if err != nil {
			return nil, err
		}
		o.advance(StateFullActive, StateFullReady)
		return payload, nil
	case ModeRAG:
		if root == "" {
			return nil, ErrNoScope
		}
		if !state.retrievable() {
			return nil, ErrNotIndexed
		}
		if strings.TrimSpace(query) == "" {
			return nil, ErrQueryRequired
		}
		payload, err := o.buildRAG(ctx, root, query, params)
		if err != nil {
			return nil, err
		}
		o.advance(StateRAGActive, StateRAGIndexed)
		return payload, nil
	}
	return nil, fmt.Errorf("unknown mode %q", mode)
}

// advance moves to next if the state is still at expected, so a concurrent
// invalidation between payload assembly and this bookkeeping wins.
func (o *Orchestrator) advance(next, expected State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == expected {
		o.state = next
	}
}

// buildFull walks the scope, extracts every file, and renders the whole
// tree into one fenced payload within the token budget.
func (o *Orchestrator) buildFull(ctx context.Context, root string, fcfg *filter.Config) (*Payload, error) {
	var warnings []string

	files, err := o.walker.Walk(ctx, root, fcfg)
	if err != nil {
		var trunc *types.TruncatedError
		if !errors.As(err, &trunc) {
			return nil, err
		}
		warnings = append(warnings, trunc.Error())
	}

	sections := make([]section, 0, len(files))
	for _, fd := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc := o.registry.Extract(fd)
		if doc.Failed() {
			warnings = append(warnings, doc.Err.Error())
			continue
		}
		if strings.TrimSpace(doc.Text) == "" {
			continue
		}
		rel, err := filepath.Rel(root, fd.Path)
		if err != nil {
			rel = fd.Path
		}
		sections = append(sections, renderSection(filepath.ToSlash(rel), fd.Ext, doc.Text))
	}

	sections, budgetWarnings := fitToBudget(sections, o.cfg.Context.BudgetTokens)
	warnings = append(warnings, budgetWarnings...)

	bodies := make([]string, len(sections))
	for i, s := range sections {
		bodies[i] = s.body
	}
	text := strings.Join(bodies, "\n\n")

	return &Payload{
		Mode:          ModeFull,
		Text:          text,
		Files:         len(sections),
		TokenEstimate: token.Count(text),
		Warnings:      warnings,
	}, nil
}

// buildRAG retrieves the top chunks for the query and splices them, tagged
// with their source, into one payload. An empty result is a warning, not an
// error.
func (o *Orchestrator) buildRAG(ctx context.Context, root, query string, params retriever.Params) (*Payload, error) {
	resp, err := o.retriever.Retrieve(ctx, retriever.Request{
		Query:    query,
		Root:     root,
		Params:   params,
		UseCache: true,
	})
	if err != nil {
		return nil, err
	}

	payload := &Payload{Mode: ModeRAG, Chunks: len(resp.Chunks)}
	if len(resp.Chunks) == 0 {
		payload.Warnings = []string{EmptyIndexWarning}
		return payload, nil
	}

	seen := make(map[string]bool)
	parts := make([]string, 0, len(resp.Chunks))
	for _, sc := range resp.Chunks {
		parts = append(parts, renderChunk(sc))
		if !seen[sc.Chunk.SourcePath] {
			seen[sc.Chunk.SourcePath] = true
			payload.Files++
		}
	}
	payload.Text = strings.Join(parts, "\n\n")
	payload.TokenEstimate = token.Count(payload.Text)
	return payload, nil
}
