//go:build sqlite_vec

package vectorstore

// Compiled with CGO and the sqlite_vec tag. The sqlite-vec extension makes
// cosine distance a SQL function, so search never deserializes vectors in Go.
//
// Build command:
//   CGO_ENABLED=1 go build -tags sqlite_vec ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use.
	DriverName = "sqlite3"

	// VectorExtensionAvailable reports whether distance runs in SQL.
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration.
	BuildMode = "cgo"
)
