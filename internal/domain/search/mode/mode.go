package mode

// Mode is the search strategy. The orchestrator reports the mode that
// actually executed, which may differ from the one requested when a
// stage degrades.
type Mode string

// Search mode constants.
const (
	// Hybrid combines BM25 and vector search via rank fusion.
	Hybrid Mode = "hybrid"
	// HybridReranked is hybrid with a successful re-ranking pass.
	HybridReranked Mode = "hybrid-reranked"
	BM25           Mode = "bm25"
	Vector         Mode = "vector"
	// BM25Fallback is the degraded lexical-only path taken when the
	// vector side times out or fails.
	BM25Fallback Mode = "bm25-fallback"
)

// IsValid checks if the mode is one of the caller-requestable values.
// The degraded modes are produced, never requested.
func (m Mode) IsValid() bool {
	return m == Hybrid || m == BM25 || m == Vector
}
