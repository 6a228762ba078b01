// Package walker lists the files under a root path according to a filter
// policy. Walks are deterministic (directory entries are visited in sorted
// order and the result is path-sorted) so downstream indexing is reproducible
// across runs.
package walker
