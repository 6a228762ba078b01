package types

// IndexReport summarizes one indexing pass. A second pass over an unchanged
// file set reports zero added, updated and removed.
type IndexReport struct {
	// Added counts source files indexed for the first time.
	Added int `json:"added"`

	// Updated counts source files whose chunks were replaced.
	Updated int `json:"updated"`

	// Removed counts source files pruned from the index.
	Removed int `json:"removed"`

	// Skipped counts files left untouched because neither their modification
	// time nor the chunking parameters changed.
	Skipped int `json:"skipped"`

	// Chunks is the total number of chunks written during the pass.
	Chunks int `json:"chunks"`

	// Errors lists per-file failures. Their files were skipped; the pass
	// continued.
	Errors []FileError `json:"errors,omitempty"`
}

// Merge folds another report into this one.
func (r *IndexReport) Merge(other *IndexReport) {
	if other == nil {
		return
	}
	r.Added += other.Added
	r.Updated += other.Updated
	r.Removed += other.Removed
	r.Skipped += other.Skipped
	r.Chunks += other.Chunks
	r.Errors = append(r.Errors, other.Errors...)
}

// Clean reports whether the pass completed without per-file errors.
func (r *IndexReport) Clean() bool {
	return len(r.Errors) == 0
}
