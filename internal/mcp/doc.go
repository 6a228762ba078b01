// Package mcp implements the Model Context Protocol (MCP) server for raglet.
//
// The server exposes the context pipeline to AI coding assistants over a
// JSON-RPC 2.0 stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// # Tools
//
//   - set_mode: switch context acquisition between off, full and rag
//   - set_scope: point the pipeline at a root directory and filter config
//   - walk_preview: list the files the current filter would admit
//   - vectorize: start a background indexing pass, returning a job ID
//   - get_job: poll a vectorize job
//   - refresh_index: synchronously re-index changed files
//   - build_context: assemble the context payload for the current mode
//   - get_status: report mode, state and index statistics
//   - purge_index: drop every vector and manifest
//   - list_filter_configs / save_filter_config / delete_filter_config:
//     manage named file-selection policies
//
// # Basic Usage
//
// The server is started via the serve command:
//
//	raglet serve
//
// It then listens on stdin for MCP protocol messages and writes responses
// to stdout. Logs go to stderr so they never corrupt the transport.
package mcp
