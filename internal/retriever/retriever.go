package retriever

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/raglet/raglet/internal/embedder"
	"github.com/raglet/raglet/internal/vectorstore"
	"github.com/raglet/raglet/pkg/types"
)

// Params tune one retrieval.
type Params struct {
	// TopK is the number of chunks to return.
	TopK int

	// FetchK is the over-fetch size before filtering; always >= TopK.
	FetchK int

	// MinScore drops candidates below this cosine similarity.
	MinScore float64

	// MaxPerFile caps how many chunks a single source file contributes.
	// 0 disables the cap.
	MaxPerFile int
}

// Request is one retrieval query.
type Request struct {
	// Query is the natural-language query text.
	Query string

	// Root scopes retrieval to chunks under this path. Empty means the
	// whole index.
	Root string

	Params Params

	// UseCache serves repeat queries from the response cache.
	UseCache bool
}

// Response carries ranked chunks plus metadata.
type Response struct {
	Chunks   []types.ScoredChunk
	Duration time.Duration
	CacheHit bool
}

// cacheEntry is a cached response with expiration.
type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

const (
	cacheSize = 1000
	cacheTTL  = 5 * time.Minute
)

// Retriever embeds queries and ranks chunks from the store.
type Retriever struct {
	store    *vectorstore.Store
	embedder embedder.Embedder
	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheMu  sync.RWMutex
}

// New creates a retriever over the given store and embedding provider.
func New(store *vectorstore.Store, emb embedder.Embedder) *Retriever {
	cache, err := lru.New[[32]byte, *cacheEntry](cacheSize)
	if err != nil {
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	return &Retriever{
		store:    store,
		embedder: emb,
		cache:    cache,
	}
}

// Retrieve runs one query. An empty index or a query with no candidates
// above MinScore returns an empty, non-nil response.
func (r *Retriever) Retrieve(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if err := validate(&req); err != nil {
		return nil, err
	}

	if req.UseCache {
		if cached := r.checkCache(req); cached != nil {
			cached.CacheHit = true
			return cached, nil
		}
	}

	queryVec, err := r.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrEmbeddingService, err)
	}

	candidates, err := r.store.Search(ctx, queryVec, req.Root, req.Params.FetchK, req.Params.MinScore)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrVectorStore, err)
	}

	resp := &Response{
		Chunks:   winnow(candidates, req.Params),
		Duration: time.Since(start),
	}

	if req.UseCache {
		r.storeInCache(req, resp)
	}
	return resp, nil
}

// winnow reduces the over-fetched candidate list to the final top-K:
// duplicate texts collapse to their best-scoring instance, each source file
// contributes at most MaxPerFile chunks, and the list is cut to TopK.
// Candidates arrive already sorted best-first with deterministic ties.
func winnow(candidates []types.ScoredChunk, p Params) []types.ScoredChunk {
	out := make([]types.ScoredChunk, 0, p.TopK)
	seenText := make(map[string]bool, len(candidates))
	perFile := make(map[string]int, len(candidates))

	for _, c := range candidates {
		if len(out) == p.TopK {
			break
		}
		if seenText[c.Chunk.Text] {
			continue
		}
		if p.MaxPerFile > 0 && perFile[c.Chunk.SourcePath] >= p.MaxPerFile {
			continue
		}
		seenText[c.Chunk.Text] = true
		perFile[c.Chunk.SourcePath]++
		out = append(out, c)
	}
	return out
}

func validate(req *Request) error {
	if req.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if req.Params.TopK < 1 {
		return fmt.Errorf("top_k must be at least 1")
	}
	if req.Params.FetchK < req.Params.TopK {
		req.Params.FetchK = req.Params.TopK
	}
	if req.Params.MinScore < 0 || req.Params.MinScore > 1 {
		return fmt.Errorf("min_score must be in [0, 1]")
	}
	return nil
}

// InvalidateCache drops all cached responses. Called after any index write.
func (r *Retriever) InvalidateCache() {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	r.cache.Purge()
}

func (r *Retriever) checkCache(req Request) *Response {
	key := cacheKey(req)

	r.cacheMu.RLock()
	entry, ok := r.cache.Get(key)
	r.cacheMu.RUnlock()
	if !ok {
		return nil
	}
	if time.Now().After(entry.expiresAt) {
		r.cacheMu.Lock()
		r.cache.Remove(key)
		r.cacheMu.Unlock()
		return nil
	}
	return copyResponse(entry.response)
}

func (r *Retriever) storeInCache(req Request, resp *Response) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	r.cache.Add(cacheKey(req), &cacheEntry{
		response:  copyResponse(resp),
		expiresAt: time.Now().Add(cacheTTL),
	})
}

func copyResponse(src *Response) *Response {
	dst := &Response{
		Duration: src.Duration,
		CacheHit: src.CacheHit,
	}
	dst.Chunks = make([]types.ScoredChunk, len(src.Chunks))
	copy(dst.Chunks, src.Chunks)
	return dst
}

func cacheKey(req Request) [32]byte {
	return sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%d|%.6f|%d",
		req.Query, req.Root,
		req.Params.TopK, req.Params.FetchK, req.Params.MinScore, req.Params.MaxPerFile)))
}
