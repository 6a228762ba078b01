// Package orchestrator owns the context-acquisition state machine and
// assembles the final context payloads.
//
// Three modes exist. OFF contributes nothing. FULL renders every file in
// scope verbatim, fenced and labeled, within a token budget. RAG retrieves
// the top-K chunks for a query from the vector index.
//
// Mode and state are distinct: switching to RAG does not make the index
// usable. The scope must be vectorized first, and any later change to the
// scope, the filters, or the chunking parameters drops the state back to
// pending until the next vectorize or refresh. FULL needs no index and is
// ready as soon as a scope is set.
package orchestrator
