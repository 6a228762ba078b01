package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/raglet/raglet/internal/filter"
	"github.com/raglet/raglet/internal/orchestrator"
	"github.com/raglet/raglet/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeScopeNotSet        = -32001 // No scope configured
	ErrorCodeIndexingInProgress = -32002 // Another indexing pass is already running
	ErrorCodeNotIndexed         = -32003 // Scope not vectorized
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
	ErrorCodeModeOff            = -32005 // Context acquisition is switched off
	ErrorCodeConfigNotFound     = -32006 // Named filter config does not exist
	ErrorCodeJobNotFound        = -32007 // Unknown vectorize job ID
)

// handleSetMode handles the set_mode tool invocation
func (s *Server) handleSetMode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	raw, _ := args["mode"].(string)
	mode, ok := orchestrator.ParseMode(raw)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid mode", map[string]interface{}{
			"param":   "mode",
			"value":   raw,
			"allowed": []string{"off", "full", "rag"},
		})
	}

	state, err := s.orch.SetMode(ctx, mode)
	if err != nil {
		return nil, toolError(err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"mode":  string(mode),
		"state": string(state),
	})), nil
}

// handleSetScope handles the set_scope tool invocation
func (s *Server) handleSetScope(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	root, ok := args["root"].(string)
	if !ok || root == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "root parameter is required", map[string]interface{}{
			"param":  "root",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(root); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid root", map[string]interface{}{
			"param":  "root",
			"reason": err.Error(),
		})
	}

	name := getStringDefault(args, "filter_config", filter.DefaultConfigName)
	fcfg, err := s.filters.Get(name)
	if err != nil {
		return nil, newMCPError(ErrorCodeConfigNotFound, "filter config not found", map[string]interface{}{
			"param": "filter_config",
			"value": name,
		})
	}

	state, err := s.orch.SetScope(ctx, root, fcfg)
	if err != nil {
		return nil, toolError(err)
	}
	if err := s.filters.RecordRoot(name, root); err != nil {
		s.log.Warn("root history update failed", "config", name, "error", err)
	}

	if getBoolDefault(args, "watch", true) {
		s.restartWatch(root, fcfg)
	} else {
		s.stopWatch()
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"root":          root,
		"filter_config": name,
		"state":         string(state),
	})), nil
}

// handleWalkPreview handles the walk_preview tool invocation
func (s *Server) handleWalkPreview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	root, ok := args["root"].(string)
	if !ok || root == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "root parameter is required", map[string]interface{}{
			"param":  "root",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(root); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid root", map[string]interface{}{
			"param":  "root",
			"reason": err.Error(),
		})
	}

	limit := getIntDefault(args, "limit", 100)
	if limit < 1 || limit > 1000 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 1000", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	name := getStringDefault(args, "filter_config", filter.DefaultConfigName)
	fcfg, err := s.filters.Get(name)
	if err != nil {
		return nil, newMCPError(ErrorCodeConfigNotFound, "filter config not found", map[string]interface{}{
			"param": "filter_config",
			"value": name,
		})
	}

	files, err := s.walker.Walk(ctx, root, fcfg)
	truncated := false
	if err != nil {
		var trunc *types.TruncatedError
		if !errors.As(err, &trunc) {
			return nil, toolError(err)
		}
		truncated = true
	}

	paths := make([]string, 0, limit)
	for _, fd := range files {
		if len(paths) == limit {
			break
		}
		paths = append(paths, fd.Path)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"total":     len(files),
		"returned":  len(paths),
		"truncated": truncated,
		"files":     paths,
	})), nil
}

// handleVectorize handles the vectorize tool invocation
func (s *Server) handleVectorize(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	job, err := s.orch.Vectorize(ctx)
	if err != nil {
		return nil, toolError(err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"job_id": job.ID,
		"root":   job.Root,
		"status": string(orchestrator.JobRunning),
	})), nil
}

// handleGetJob handles the get_job tool invocation
func (s *Server) handleGetJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id, ok := args["job_id"].(string)
	if !ok || id == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "job_id parameter is required", map[string]interface{}{
			"param":  "job_id",
			"reason": "missing or empty",
		})
	}

	job, ok := s.orch.Job(id)
	if !ok {
		return nil, newMCPError(ErrorCodeJobNotFound, "unknown job", map[string]interface{}{
			"job_id": id,
		})
	}

	if getBoolDefault(args, "wait", false) {
		select {
		case <-job.Done():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	status, report, jobErr := job.Snapshot()
	response := map[string]interface{}{
		"job_id":      job.ID,
		"root":        job.Root,
		"status":      string(status),
		"duration_ms": job.Duration().Milliseconds(),
	}
	if report != nil {
		response["report"] = reportJSON(report)
	}
	if jobErr != nil {
		response["error"] = jobErr.Error()
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRefreshIndex handles the refresh_index tool invocation
func (s *Server) handleRefreshIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.orch.RefreshIndex(ctx)
	if err != nil {
		return nil, toolError(err)
	}
	return mcp.NewToolResultText(formatJSON(reportJSON(report))), nil
}

// handleBuildContext handles the build_context tool invocation
func (s *Server) handleBuildContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	query := getStringDefault(args, "query", "")

	params := s.orch.Retrieval()
	overridden := false
	if topK := getIntDefault(args, "top_k", 0); topK > 0 {
		params.TopK = topK
		if params.FetchK < topK {
			params.FetchK = topK * 2
		}
		overridden = true
	}
	if minScore, ok := args["min_score"].(float64); ok {
		params.MinScore = minScore
		overridden = true
	}

	var payload *orchestrator.Payload
	var err error
	if overridden {
		payload, err = s.orch.BuildContextWithParams(ctx, query, params)
	} else {
		payload, err = s.orch.BuildContext(ctx, query)
	}
	if err != nil {
		return nil, toolError(err)
	}

	response := map[string]interface{}{
		"mode":           string(payload.Mode),
		"context":        payload.Text,
		"files":          payload.Files,
		"chunks":         payload.Chunks,
		"token_estimate": payload.TokenEstimate,
	}
	if len(payload.Warnings) > 0 {
		response["warnings"] = payload.Warnings
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.orch.Status(ctx)
	if err != nil {
		return nil, toolError(err)
	}

	response := map[string]interface{}{
		"mode":  string(status.Mode),
		"state": string(status.State),
		"statistics": map[string]interface{}{
			"indexed_files":  status.IndexedFiles,
			"indexed_chunks": status.IndexedChunks,
		},
	}
	if status.Root != "" {
		response["scope"] = map[string]interface{}{
			"root":          status.Root,
			"filter_config": status.FilterName,
		}
	}
	if status.ActiveJob != "" {
		response["active_job"] = status.ActiveJob
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handlePurgeIndex handles the purge_index tool invocation
func (s *Server) handlePurgeIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	if confirm, _ := args["confirm"].(bool); !confirm {
		return nil, newMCPError(ErrorCodeInvalidParams, "confirm must be true", map[string]interface{}{
			"param": "confirm",
		})
	}

	if err := s.orch.PurgeIndex(ctx); err != nil {
		return nil, toolError(err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"purged": true,
	})), nil
}

// handleListFilterConfigs handles the list_filter_configs tool invocation
func (s *Server) handleListFilterConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"configs": s.filters.List(),
	})), nil
}

// handleSaveFilterConfig handles the save_filter_config tool invocation
func (s *Server) handleSaveFilterConfig(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	name, ok := args["name"].(string)
	if !ok || name == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "name parameter is required", map[string]interface{}{
			"param":  "name",
			"reason": "missing or empty",
		})
	}

	cfg := &filter.Config{
		Name:              name,
		IncludePatterns:   getStringSlice(args, "include_patterns"),
		ExcludePatterns:   getStringSlice(args, "exclude_patterns"),
		AllowedExtensions: getStringSlice(args, "allowed_extensions"),
		HonorIgnoreFiles:  getBoolDefault(args, "honor_ignore_files", true),
	}
	if maxFiles := getIntDefault(args, "max_files", 0); maxFiles > 0 {
		cfg.MaxFiles = maxFiles
		cfg.MaxFilesEnabled = true
	}

	if err := s.filters.Put(cfg); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid filter config", map[string]interface{}{
			"reason": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"saved": name,
	})), nil
}

// handleDeleteFilterConfig handles the delete_filter_config tool invocation
func (s *Server) handleDeleteFilterConfig(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	name, ok := args["name"].(string)
	if !ok || name == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "name parameter is required", map[string]interface{}{
			"param":  "name",
			"reason": "missing or empty",
		})
	}

	// The default config survives as a reset copy so set_scope always has a
	// fallback.
	if name == filter.DefaultConfigName {
		if err := s.filters.Reset(name); err != nil {
			return nil, toolError(err)
		}
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"reset": name,
		})), nil
	}

	if err := s.filters.Delete(name); err != nil {
		if errors.Is(err, filter.ErrConfigNotFound) {
			return nil, newMCPError(ErrorCodeConfigNotFound, "filter config not found", map[string]interface{}{
				"param": "name",
				"value": name,
			})
		}
		return nil, toolError(err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"deleted": name,
	})), nil
}

// Helper functions

// toolError maps pipeline errors onto MCP error codes.
func toolError(err error) error {
	switch {
	case errors.Is(err, orchestrator.ErrNoScope):
		return newMCPError(ErrorCodeScopeNotSet, err.Error(), nil)
	case errors.Is(err, orchestrator.ErrNotIndexed):
		return newMCPError(ErrorCodeNotIndexed, err.Error(), nil)
	case errors.Is(err, orchestrator.ErrModeOff):
		return newMCPError(ErrorCodeModeOff, err.Error(), nil)
	case errors.Is(err, orchestrator.ErrQueryRequired):
		return newMCPError(ErrorCodeEmptyQuery, err.Error(), nil)
	case errors.Is(err, types.ErrIndexInProgress):
		return newMCPError(ErrorCodeIndexingInProgress, err.Error(), nil)
	case errors.Is(err, types.ErrPathNotFound):
		return newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	default:
		return newMCPError(ErrorCodeInternalError, err.Error(), nil)
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks that a path is an absolute, readable directory.
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()
	return nil
}

// reportJSON flattens an index report for tool output.
func reportJSON(report *types.IndexReport) map[string]interface{} {
	response := map[string]interface{}{
		"added":   report.Added,
		"updated": report.Updated,
		"removed": report.Removed,
		"skipped": report.Skipped,
		"chunks":  report.Chunks,
	}
	if len(report.Errors) > 0 {
		msgs := make([]string, 0, len(report.Errors))
		for _, fe := range report.Errors {
			msgs = append(msgs, fe.String())
			if len(msgs) == 5 {
				break
			}
		}
		response["errors"] = msgs
		response["error_count"] = len(report.Errors)
	}
	return response
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter, tolerating the
// []interface{} shape JSON decoding produces.
func getStringSlice(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
