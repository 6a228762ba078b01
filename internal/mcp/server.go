package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/raglet/raglet/internal/config"
	"github.com/raglet/raglet/internal/embedder"
	"github.com/raglet/raglet/internal/filter"
	"github.com/raglet/raglet/internal/orchestrator"
	"github.com/raglet/raglet/internal/vectorstore"
	"github.com/raglet/raglet/internal/walker"
	"github.com/raglet/raglet/internal/watcher"
)

const (
	// ServerName is the MCP server name.
	ServerName = "raglet"
	// ServerVersion is the current server version.
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with the context pipeline.
type Server struct {
	mcp     *server.MCPServer
	cfg     *config.Config
	store   *vectorstore.Store
	orch    *orchestrator.Orchestrator
	filters *filter.Store
	walker  *walker.Walker
	log     *slog.Logger

	// watch guards the one live scope watcher.
	watchMu     sync.Mutex
	watch       *watcher.Watcher
	watchCancel context.CancelFunc
}

// NewServer builds the pipeline from configuration and registers the tools.
func NewServer(cfg *config.Config, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	store, err := vectorstore.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	emb, err := embedder.New(cfg.Embedding)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("initialize embedder: %w", err)
	}

	filters, err := filter.OpenStore(cfg.FilterConfigPath())
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	s := &Server{
		mcp:     server.NewMCPServer(ServerName, ServerVersion),
		cfg:     cfg,
		store:   store,
		orch:    orchestrator.New(cfg, store, emb, log),
		filters: filters,
		walker:  walker.New(log),
		log:     log,
	}
	s.registerTools()
	return s, nil
}

// Serve runs the MCP server on stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	defer s.stopWatch()
	defer func() { _ = s.store.Close() }()
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(setModeTool(), s.handleSetMode)
	s.mcp.AddTool(setScopeTool(), s.handleSetScope)
	s.mcp.AddTool(walkPreviewTool(), s.handleWalkPreview)
	s.mcp.AddTool(vectorizeTool(), s.handleVectorize)
	s.mcp.AddTool(getJobTool(), s.handleGetJob)
	s.mcp.AddTool(refreshIndexTool(), s.handleRefreshIndex)
	s.mcp.AddTool(buildContextTool(), s.handleBuildContext)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(purgeIndexTool(), s.handlePurgeIndex)
	s.mcp.AddTool(listFilterConfigsTool(), s.handleListFilterConfigs)
	s.mcp.AddTool(saveFilterConfigTool(), s.handleSaveFilterConfig)
	s.mcp.AddTool(deleteFilterConfigTool(), s.handleDeleteFilterConfig)
}

// restartWatch replaces the live watcher with one over root, so external
// edits mark the index stale. A watch failure is logged, not fatal: the
// refresh_index tool still covers staleness.
func (s *Server) restartWatch(root string, fcfg *filter.Config) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	if s.watchCancel != nil {
		s.watchCancel()
		_ = s.watch.Close()
		s.watch = nil
		s.watchCancel = nil
	}

	w, err := watcher.New(root, fcfg, watcher.DefaultDebounce, s.orch.Invalidate, s.log)
	if err != nil {
		s.log.Warn("scope watch unavailable", "root", root, "error", err)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.watch = w
	s.watchCancel = cancel
	go w.Run(ctx)
}

func (s *Server) stopWatch() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watchCancel != nil {
		s.watchCancel()
		_ = s.watch.Close()
		s.watch = nil
		s.watchCancel = nil
	}
}
