package search

import (
	"context"

	"github.com/kailas-cloud/docdex/internal/domain/search/outcome"
	"github.com/kailas-cloud/docdex/internal/domain/search/result"
)

// Repository defines the index contract for search operations. The
// index engines themselves (inverted index, vector store) live behind
// this boundary.
type Repository interface {
	SearchBM25(ctx context.Context, query string, k int) ([]result.Result, error)

	SearchVector(ctx context.Context, vector []float32, k int) ([]result.Result, error)

	SearchChunks(ctx context.Context, vector []float32, k int) ([]result.Result, error)

	// IndexDimensions returns the dimensionality the vector index was
	// built with, for the diagnostics probe.
	IndexDimensions(ctx context.Context) (int, error)
}

// Engine is the inference boundary: query embedding and re-ranking.
// forceCPU selects the CPU-only endpoint on fallback attempts.
type Engine interface {
	Embed(ctx context.Context, text string, forceCPU bool) (vector []float32, modelID string, err error)

	Rerank(
		ctx context.Context, query string,
		docs []result.Fused, topN int, forceCPU bool,
	) ([]result.Fused, error)

	// RerankAvailable reports whether a rerank model is configured.
	RerankAvailable() bool
}

// Corrected is the query corrector's output.
type Corrected struct {
	Original      string
	Corrected     string
	Expanded      string
	Corrections   []outcome.Correction
	SynonymsAdded []string
}

// Corrector is the optional spelling-correction/synonym-expansion
// stage, consumed as an external collaborator.
type Corrector interface {
	ProcessQuery(ctx context.Context, query string, expandSynonyms bool) (Corrected, error)
}

// ExistenceFilter validates that results still have backing files.
type ExistenceFilter interface {
	ValidateExistence(
		ctx context.Context, results []result.Fused, triggerCleanup bool,
	) (valid []result.Fused, ghostCount int)
}
