package orchestrator

// Mode selects how context is acquired.
type Mode string

const (
	// ModeOff contributes no context.
	ModeOff Mode = "off"

	// ModeFull renders every in-scope file verbatim.
	ModeFull Mode = "full"

	// ModeRAG retrieves the most relevant chunks from the vector index.
	ModeRAG Mode = "rag"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeOff, ModeFull, ModeRAG:
		return Mode(s), true
	}
	return "", false
}

// State is the readiness of the current mode.
type State string

const (
	// StateOff: no context will be produced.
	StateOff State = "off"

	// StateFullReady: FULL mode with a scope set; payloads build on demand.
	StateFullReady State = "full_ready"

	// StateFullActive: FULL mode has produced at least one payload.
	StateFullActive State = "full_active"

	// StateRAGPending: RAG mode, but the scope has not been vectorized with
	// the current filters and parameters.
	StateRAGPending State = "rag_pending"

	// StateRAGIndexed: the index is current; retrieval is available.
	StateRAGIndexed State = "rag_indexed"

	// StateRAGActive: RAG mode has served at least one retrieval.
	StateRAGActive State = "rag_active"
)

// retrievable reports whether BuildContext may serve RAG queries.
func (s State) retrievable() bool {
	return s == StateRAGIndexed || s == StateRAGActive
}
