package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docdex/internal/domain/model"
	"github.com/kailas-cloud/docdex/internal/usecase/resilience"
)

// diagnoseProbe is embedded when the caller supplies no query text.
const diagnoseProbe = "dimension probe"

// Issue is one problem found by the diagnostics probe.
type Issue struct {
	Type   string
	Detail string
}

// Diagnostic issue types.
const (
	IssueEmbeddingUnavailable = "EMBEDDING_UNAVAILABLE"
	IssueIndexUnavailable     = "INDEX_UNAVAILABLE"
	IssueDimensionMismatch    = "DIMENSION_MISMATCH"
	IssueCircuitOpen          = "CIRCUIT_OPEN"
)

// Report is the outcome of a diagnostics run.
type Report struct {
	Query          string
	EmbeddingModel string
	EmbeddingDims  int
	IndexDims      int
	Circuits       map[model.Type]resilience.Stats
	Issues         []Issue
}

// Healthy reports whether the probe found no issues.
func (r *Report) Healthy() bool { return len(r.Issues) == 0 }

// DiagnoseSearchIssues probes the vector pipeline end to end: it
// embeds a query, reads the stored index dimensionality, and compares
// the two. Dimension mismatches are the classic silent killer after an
// embedding-model swap: every KNN query returns nothing while BM25
// keeps working, so the degradation looks like bad recall.
func (s *Service) DiagnoseSearchIssues(ctx context.Context, query string) Report {
	if query == "" {
		query = diagnoseProbe
	}
	report := Report{Query: query, Circuits: s.exec.Registry().Snapshot()}

	for mt, stats := range report.Circuits {
		if stats.State == resilience.Open.String() {
			report.Issues = append(report.Issues, Issue{
				Type:   IssueCircuitOpen,
				Detail: fmt.Sprintf("%s model circuit is OPEN after %d consecutive failures", mt, stats.ConsecutiveFailures),
			})
		}
	}

	var vector []float32
	var modelID string
	err := s.exec.Do(ctx, embedOptions(), func(ctx context.Context, forceCPU bool) error {
		v, id, err := s.engine.Embed(ctx, query, forceCPU)
		if err != nil {
			return err
		}
		vector, modelID = v, id
		return nil
	})
	if err != nil {
		report.Issues = append(report.Issues, Issue{
			Type: IssueEmbeddingUnavailable, Detail: err.Error(),
		})
	} else {
		report.EmbeddingModel = modelID
		report.EmbeddingDims = len(vector)
	}

	indexDims, err := s.repo.IndexDimensions(ctx)
	if err != nil {
		report.Issues = append(report.Issues, Issue{
			Type: IssueIndexUnavailable, Detail: err.Error(),
		})
	} else {
		report.IndexDims = indexDims
	}

	if report.EmbeddingDims > 0 && report.IndexDims > 0 && report.EmbeddingDims != report.IndexDims {
		report.Issues = append(report.Issues, Issue{
			Type: IssueDimensionMismatch,
			Detail: fmt.Sprintf(
				"embedding model %q produces %d dimensions but the index stores %d; re-index or restore the original model",
				modelID, report.EmbeddingDims, report.IndexDims),
		})
	}

	s.logger.Info("search diagnostics completed",
		zap.Int("issues", len(report.Issues)),
		zap.Int("embedding_dims", report.EmbeddingDims),
		zap.Int("index_dims", report.IndexDims))
	return report
}
