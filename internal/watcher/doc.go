// Package watcher observes a scope root for file changes and reports them,
// debounced, to a single callback. The orchestrator uses it to mark the
// vector index stale when indexed sources change on disk.
package watcher
