package docdex

import (
	"github.com/kailas-cloud/docdex/internal/domain/model"
	"github.com/kailas-cloud/docdex/internal/domain/search/mode"
	"github.com/kailas-cloud/docdex/internal/domain/search/outcome"
	"github.com/kailas-cloud/docdex/internal/usecase/resilience"
	searchuc "github.com/kailas-cloud/docdex/internal/usecase/search"
)

// SearchMode selects the retrieval strategy.
type SearchMode string

// Requestable search modes.
const (
	ModeHybrid SearchMode = "hybrid"
	ModeBM25   SearchMode = "bm25"
	ModeVector SearchMode = "vector"
)

func (m SearchMode) internal() mode.Mode { return mode.Mode(m) }

// SearchOptions configures a search call. Zero values mean "use the
// default".
type SearchOptions struct {
	TopK            int
	MinScore        float64
	Mode            SearchMode
	Rerank          bool
	RerankTopN      int
	ChunkWeight     float64
	ChunkTopK       int
	CorrectSpelling bool
	ExpandSynonyms  bool
	ContextFileIDs  []string
}

// SearchResult is one fused hit.
type SearchResult struct {
	ID            string
	Path          string
	Score         float64
	OriginalScore float64
	Sources       []string
	Metadata      map[string]string
	MatchDetails  map[string]string
}

// Warning is an informational degradation or data-quality note.
type Warning struct {
	Type   string
	Detail string
}

// Correction records one spelling fix applied to the query.
type Correction struct {
	Original  string
	Corrected string
}

// SearchOutcome is the terminal result of a search call. Mode reflects
// the stages that actually executed; a degraded run reports Fallback
// with a reason instead of failing.
type SearchOutcome struct {
	Success        bool
	Mode           string
	Results        []SearchResult
	Error          string
	Fallback       bool
	FallbackReason string
	VectorTimedOut bool
	Corrections    []Correction
	SynonymsAdded  []string
	GhostsFiltered int
	Warnings       []Warning
}

func fromOutcome(out outcome.Outcome) SearchOutcome {
	results := make([]SearchResult, len(out.Results))
	for i := range out.Results {
		f := &out.Results[i]
		sources := make([]string, 0, len(f.Sources()))
		for _, s := range f.Sources() {
			sources = append(sources, string(s))
		}
		results[i] = SearchResult{
			ID:            f.ID(),
			Path:          f.Path(),
			Score:         f.Score(),
			OriginalScore: f.OriginalScore(),
			Sources:       sources,
			Metadata:      f.Metadata(),
			MatchDetails:  f.MatchDetails(),
		}
	}

	corrections := make([]Correction, 0, len(out.Meta.Corrections))
	for _, c := range out.Meta.Corrections {
		corrections = append(corrections, Correction{Original: c.Original, Corrected: c.Corrected})
	}
	warnings := make([]Warning, 0, len(out.Meta.Warnings))
	for _, w := range out.Meta.Warnings {
		warnings = append(warnings, Warning{Type: w.Type, Detail: w.Detail})
	}

	return SearchOutcome{
		Success:        out.Success,
		Mode:           string(out.Mode),
		Results:        results,
		Error:          out.Error,
		Fallback:       out.Meta.Fallback,
		FallbackReason: out.Meta.FallbackReason,
		VectorTimedOut: out.Meta.VectorTimedOut,
		Corrections:    corrections,
		SynonymsAdded:  out.Meta.SynonymsAdded,
		GhostsFiltered: out.Meta.GhostsFiltered,
		Warnings:       warnings,
	}
}

// Issue is one problem found by Diagnose.
type Issue struct {
	Type   string
	Detail string
}

// Diagnostics reports the state of every pipeline stage.
type Diagnostics struct {
	Query          string
	Healthy        bool
	EmbeddingModel string
	EmbeddingDims  int
	IndexDims      int
	Circuits       map[string]CircuitStats
	Issues         []Issue
}

func fromReport(report searchuc.Report) Diagnostics {
	issues := make([]Issue, 0, len(report.Issues))
	for _, issue := range report.Issues {
		issues = append(issues, Issue{Type: issue.Type, Detail: issue.Detail})
	}
	return Diagnostics{
		Query:          report.Query,
		Healthy:        report.Healthy(),
		EmbeddingModel: report.EmbeddingModel,
		EmbeddingDims:  report.EmbeddingDims,
		IndexDims:      report.IndexDims,
		Circuits:       fromSnapshot(report.Circuits),
		Issues:         issues,
	}
}

// CircuitStats is a circuit breaker snapshot.
type CircuitStats struct {
	State               string
	ConsecutiveFailures int
	SuccessfulRequests  int64
	FailedRequests      int64
}

func fromSnapshot(snapshot map[model.Type]resilience.Stats) map[string]CircuitStats {
	out := make(map[string]CircuitStats, len(snapshot))
	for t, s := range snapshot {
		out[string(t)] = CircuitStats{
			State:               s.State,
			ConsecutiveFailures: s.ConsecutiveFailures,
			SuccessfulRequests:  s.SuccessfulRequests,
			FailedRequests:      s.FailedRequests,
		}
	}
	return out
}

// HealthReport aggregates backend health checks.
type HealthReport struct {
	Status string
	Checks map[string]string
}
