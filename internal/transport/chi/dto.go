package chi

import (
	"github.com/kailas-cloud/docdex/internal/domain/model"
	"github.com/kailas-cloud/docdex/internal/domain/search/mode"
	"github.com/kailas-cloud/docdex/internal/domain/search/outcome"
	"github.com/kailas-cloud/docdex/internal/domain/search/request"
	"github.com/kailas-cloud/docdex/internal/domain/search/result"
	"github.com/kailas-cloud/docdex/internal/usecase/resilience"
	searchuc "github.com/kailas-cloud/docdex/internal/usecase/search"
)

// Error response codes. Failed search outcomes carry their error text
// in the search response body instead of these.
const (
	codeBadRequest       = "bad_request"
	codeUnknownModelType = "unknown_model_type"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// searchRequest is the POST /api/v1/search body.
type searchRequest struct {
	Query           string   `json:"query"`
	TopK            int      `json:"top_k,omitempty"`
	MinScore        float64  `json:"min_score,omitempty"`
	Mode            string   `json:"mode,omitempty"`
	Rerank          bool     `json:"rerank,omitempty"`
	RerankTopN      int      `json:"rerank_top_n,omitempty"`
	ChunkWeight     float64  `json:"chunk_weight,omitempty"`
	ChunkTopK       int      `json:"chunk_top_k,omitempty"`
	CorrectSpelling bool     `json:"correct_spelling,omitempty"`
	ExpandSynonyms  bool     `json:"expand_synonyms,omitempty"`
	ContextFileIDs  []string `json:"context_file_ids,omitempty"`
}

func (r *searchRequest) toOptions() request.Options {
	return request.Options{
		TopK:            r.TopK,
		MinScore:        r.MinScore,
		Mode:            mode.Mode(r.Mode),
		Rerank:          r.Rerank,
		RerankTopN:      r.RerankTopN,
		ChunkWeight:     r.ChunkWeight,
		ChunkTopK:       r.ChunkTopK,
		CorrectSpelling: r.CorrectSpelling,
		ExpandSynonyms:  r.ExpandSynonyms,
		ContextFileIDs:  r.ContextFileIDs,
	}
}

type searchResultItem struct {
	ID            string            `json:"id"`
	Path          string            `json:"path,omitempty"`
	Score         float64           `json:"score"`
	OriginalScore float64           `json:"original_score,omitempty"`
	Sources       []string          `json:"sources,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	MatchDetails  map[string]string `json:"match_details,omitempty"`
}

type warningItem struct {
	Type   string `json:"type"`
	Detail string `json:"detail,omitempty"`
}

type correctionItem struct {
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
}

type searchMeta struct {
	Fallback       bool             `json:"fallback,omitempty"`
	FallbackReason string           `json:"fallback_reason,omitempty"`
	VectorTimedOut bool             `json:"vector_timed_out,omitempty"`
	Corrections    []correctionItem `json:"corrections,omitempty"`
	SynonymsAdded  []string         `json:"synonyms_added,omitempty"`
	GhostsFiltered int              `json:"ghosts_filtered,omitempty"`
	Warnings       []warningItem    `json:"warnings,omitempty"`
}

type searchResponse struct {
	Success bool               `json:"success"`
	Mode    string             `json:"mode,omitempty"`
	Results []searchResultItem `json:"results"`
	Error   string             `json:"error,omitempty"`
	Meta    searchMeta         `json:"meta"`
}

func outcomeToResponse(out outcome.Outcome) searchResponse {
	items := make([]searchResultItem, len(out.Results))
	for i := range out.Results {
		items[i] = fusedToItem(&out.Results[i])
	}

	corrections := make([]correctionItem, 0, len(out.Meta.Corrections))
	for _, c := range out.Meta.Corrections {
		corrections = append(corrections, correctionItem{Original: c.Original, Corrected: c.Corrected})
	}
	warnings := make([]warningItem, 0, len(out.Meta.Warnings))
	for _, w := range out.Meta.Warnings {
		warnings = append(warnings, warningItem{Type: w.Type, Detail: w.Detail})
	}

	return searchResponse{
		Success: out.Success,
		Mode:    string(out.Mode),
		Results: items,
		Error:   out.Error,
		Meta: searchMeta{
			Fallback:       out.Meta.Fallback,
			FallbackReason: out.Meta.FallbackReason,
			VectorTimedOut: out.Meta.VectorTimedOut,
			Corrections:    corrections,
			SynonymsAdded:  out.Meta.SynonymsAdded,
			GhostsFiltered: out.Meta.GhostsFiltered,
			Warnings:       warnings,
		},
	}
}

func fusedToItem(f *result.Fused) searchResultItem {
	sources := make([]string, 0, len(f.Sources()))
	for _, s := range f.Sources() {
		sources = append(sources, string(s))
	}
	return searchResultItem{
		ID:            f.ID(),
		Path:          f.Path(),
		Score:         f.Score(),
		OriginalScore: f.OriginalScore(),
		Sources:       sources,
		Metadata:      f.Metadata(),
		MatchDetails:  f.MatchDetails(),
	}
}

type diagnosticIssue struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

type diagnosticsResponse struct {
	Query          string                  `json:"query"`
	Healthy        bool                    `json:"healthy"`
	EmbeddingModel string                  `json:"embedding_model,omitempty"`
	EmbeddingDims  int                     `json:"embedding_dims,omitempty"`
	IndexDims      int                     `json:"index_dims,omitempty"`
	Circuits       map[string]circuitStats `json:"circuits"`
	Issues         []diagnosticIssue       `json:"issues"`
}

func reportToResponse(report searchuc.Report) diagnosticsResponse {
	issues := make([]diagnosticIssue, 0, len(report.Issues))
	for _, issue := range report.Issues {
		issues = append(issues, diagnosticIssue{Type: issue.Type, Detail: issue.Detail})
	}
	return diagnosticsResponse{
		Query:          report.Query,
		Healthy:        report.Healthy(),
		EmbeddingModel: report.EmbeddingModel,
		EmbeddingDims:  report.EmbeddingDims,
		IndexDims:      report.IndexDims,
		Circuits:       circuitsToResponse(report.Circuits),
		Issues:         issues,
	}
}

type circuitStats struct {
	State               string `json:"state"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	SuccessfulRequests  int64  `json:"successful_requests"`
	FailedRequests      int64  `json:"failed_requests"`
}

func circuitsToResponse(snapshot map[model.Type]resilience.Stats) map[string]circuitStats {
	out := make(map[string]circuitStats, len(snapshot))
	for t, s := range snapshot {
		out[string(t)] = circuitStats{
			State:               s.State,
			ConsecutiveFailures: s.ConsecutiveFailures,
			SuccessfulRequests:  s.SuccessfulRequests,
			FailedRequests:      s.FailedRequests,
		}
	}
	return out
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
