//go:build purego || !sqlite_vec

package vectorstore

// Compiled without CGO or the sqlite_vec tag. Uses the pure Go SQLite
// implementation; cosine similarity is computed in Go over candidate rows.
//
// Build command:
//   CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use.
	DriverName = "sqlite"

	// VectorExtensionAvailable reports whether distance runs in SQL.
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration.
	BuildMode = "purego"
)
