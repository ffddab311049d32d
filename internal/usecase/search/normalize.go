package search

import (
	"math"

	"github.com/kailas-cloud/docdex/internal/domain/search/result"
)

// normalizeScores rescales heterogeneous raw scores (BM25 magnitudes,
// cosine similarities) onto [0,1]. Order-preserving; every output
// keeps its original score for diagnostics.
//
// A degenerate set (all scores equal) keeps the clamped original score
// instead of inflating everything to 1.0 — a source returning uniform
// scores carries no ranking signal and must not look confident.
func normalizeScores(results []result.Result) []result.Result {
	if len(results) == 0 {
		return results
	}

	lo, hi := results[0].Score(), results[0].Score()
	for i := range results {
		s := results[i].Score()
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}

	out := make([]result.Result, len(results))
	if hi == lo {
		for i := range results {
			out[i] = results[i].WithScore(clamp01(results[i].Score()))
		}
		return out
	}

	span := hi - lo
	for i := range results {
		out[i] = results[i].WithScore(clamp01((results[i].Score() - lo) / span))
	}
	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}
