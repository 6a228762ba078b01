package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// setModeTool returns the tool definition for set_mode
func setModeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "set_mode",
		Description: "Switch context acquisition between off, full and rag",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Context acquisition mode",
					"enum":        []string{"off", "full", "rag"},
				},
			},
			Required: []string{"mode"},
		},
	}
}

// setScopeTool returns the tool definition for set_scope
func setScopeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "set_scope",
		Description: "Point the context pipeline at a root directory and filter configuration",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"root": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the directory to acquire context from",
				},
				"filter_config": map[string]interface{}{
					"type":        "string",
					"description": "Name of a saved filter configuration",
					"default":     "default",
				},
				"watch": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, watch the root for changes and mark the index stale",
					"default":     true,
				},
			},
			Required: []string{"root"},
		},
	}
}

// walkPreviewTool returns the tool definition for walk_preview
func walkPreviewTool() mcp.Tool {
	return mcp.Tool{
		Name:        "walk_preview",
		Description: "List the files the current scope and filter would admit, without indexing",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"root": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to preview",
				},
				"filter_config": map[string]interface{}{
					"type":        "string",
					"description": "Name of a saved filter configuration",
					"default":     "default",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of paths to return (1-1000)",
					"default":     100,
					"minimum":     1,
					"maximum":     1000,
				},
			},
			Required: []string{"root"},
		},
	}
}

// vectorizeTool returns the tool definition for vectorize
func vectorizeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "vectorize",
		Description: "Start a background indexing pass over the current scope; returns a job ID",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getJobTool returns the tool definition for get_job
func getJobTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_job",
		Description: "Poll a vectorize job by ID",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"job_id": map[string]interface{}{
					"type":        "string",
					"description": "Job ID returned by vectorize",
				},
				"wait": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, block until the job finishes",
					"default":     false,
				},
			},
			Required: []string{"job_id"},
		},
	}
}

// refreshIndexTool returns the tool definition for refresh_index
func refreshIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "refresh_index",
		Description: "Synchronously re-index the current scope; unchanged files are skipped",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// buildContextTool returns the tool definition for build_context
func buildContextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "build_context",
		Description: "Assemble the context payload for the current mode (full tree or retrieved chunks)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Retrieval query; required in rag mode, ignored in full mode",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Override the configured number of chunks to retrieve (1-50)",
					"minimum":     1,
					"maximum":     50,
				},
				"min_score": map[string]interface{}{
					"type":        "number",
					"description": "Override the minimum similarity score (0.0-1.0)",
					"minimum":     0.0,
					"maximum":     1.0,
				},
			},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report mode, readiness state and index statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// purgeIndexTool returns the tool definition for purge_index
func purgeIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "purge_index",
		Description: "Drop every indexed vector and manifest; a re-vectorize is required afterwards",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"confirm": map[string]interface{}{
					"type":        "boolean",
					"description": "Must be true; guards against accidental invocation",
				},
			},
			Required: []string{"confirm"},
		},
	}
}

// listFilterConfigsTool returns the tool definition for list_filter_configs
func listFilterConfigsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_filter_configs",
		Description: "List saved filter configurations by name",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// saveFilterConfigTool returns the tool definition for save_filter_config
func saveFilterConfigTool() mcp.Tool {
	return mcp.Tool{
		Name:        "save_filter_config",
		Description: "Create or replace a named filter configuration",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Unique configuration name",
				},
				"include_patterns": map[string]interface{}{
					"type":        "array",
					"description": "Globs (or 're:' regexes) a file must match when non-empty",
					"items":       map[string]interface{}{"type": "string"},
				},
				"exclude_patterns": map[string]interface{}{
					"type":        "array",
					"description": "Globs (or 're:' regexes) rejecting files and whole subtrees",
					"items":       map[string]interface{}{"type": "string"},
				},
				"allowed_extensions": map[string]interface{}{
					"type":        "array",
					"description": "Extensions to admit, e.g. ['.go', '.md']; '.*' admits all",
					"items":       map[string]interface{}{"type": "string"},
				},
				"honor_ignore_files": map[string]interface{}{
					"type":        "boolean",
					"description": "Apply .gitignore / .ragignore semantics during the walk",
					"default":     true,
				},
				"max_files": map[string]interface{}{
					"type":        "integer",
					"description": "Cap on the number of files a walk may admit",
					"minimum":     1,
				},
			},
			Required: []string{"name"},
		},
	}
}

// deleteFilterConfigTool returns the tool definition for delete_filter_config
func deleteFilterConfigTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_filter_config",
		Description: "Delete a named filter configuration (the default config is reset, not deleted)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Configuration name",
				},
			},
			Required: []string{"name"},
		},
	}
}
