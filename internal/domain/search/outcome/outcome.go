// Package outcome defines the assembled response of a search call,
// including the degradation metadata the UI layer renders.
package outcome

import (
	"github.com/kailas-cloud/docdex/internal/domain/search/mode"
	"github.com/kailas-cloud/docdex/internal/domain/search/result"
)

// Warning types attached to Meta. Informational only, never an error.
const (
	WarnQueryEmbeddingUnavailable = "QUERY_EMBEDDING_UNAVAILABLE"
	WarnDimensionMismatch         = "DIMENSION_MISMATCH"
	WarnDroppedResults            = "DROPPED_RESULTS"
	WarnRerankFailed              = "RERANK_FAILED"
)

// Fallback reasons recorded when the hybrid path degrades to BM25.
const (
	ReasonVectorTimeout    = "vector timeout"
	ReasonEmbeddingTimeout = "query embedding timeout"
	ReasonHybridError      = "hybrid search error"
)

// Warning is an informational data-quality or degradation note.
type Warning struct {
	Type   string
	Detail string
}

// Correction records one spelling fix applied by the query corrector.
type Correction struct {
	Original  string
	Corrected string
}

// Meta describes how the search actually executed.
type Meta struct {
	Fallback       bool
	FallbackReason string
	VectorTimedOut bool
	Corrections    []Correction
	SynonymsAdded  []string
	GhostsFiltered int
	Warnings       []Warning
}

// Outcome is the terminal result of a search call. Mode truthfully
// reflects the stages that executed and succeeded — a degraded stage
// never claims its mode.
type Outcome struct {
	Success bool
	Mode    mode.Mode
	Results []result.Fused
	Error   string
	Meta    Meta
}

// Failed creates a terminal failure outcome with no partial results.
func Failed(msg string) Outcome {
	return Outcome{Success: false, Error: msg}
}

// Warn appends a warning to the outcome meta.
func (o *Outcome) Warn(warnType, detail string) {
	o.Meta.Warnings = append(o.Meta.Warnings, Warning{Type: warnType, Detail: detail})
}
