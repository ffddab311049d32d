package search

import (
	"testing"

	"github.com/kailas-cloud/docdex/internal/domain/search/result"
)

func raw(id string, score float64) result.Result {
	return result.New(id, "/"+id, score, result.SourceBM25, nil, nil)
}

func TestNormalizeScores_RescalesToUnitRange(t *testing.T) {
	in := []result.Result{raw("a", 12.5), raw("b", 7.5), raw("c", 2.5)}

	out := normalizeScores(in)
	if len(out) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out))
	}
	if out[0].Score() != 1.0 {
		t.Errorf("max should normalize to 1.0, got %f", out[0].Score())
	}
	if out[2].Score() != 0.0 {
		t.Errorf("min should normalize to 0.0, got %f", out[2].Score())
	}
	if out[1].Score() != 0.5 {
		t.Errorf("midpoint should normalize to 0.5, got %f", out[1].Score())
	}
}

func TestNormalizeScores_PreservesOrderAndOriginals(t *testing.T) {
	in := []result.Result{raw("a", 3.0), raw("b", 9.0), raw("c", 6.0)}

	out := normalizeScores(in)
	for i := range out {
		if out[i].ID() != in[i].ID() {
			t.Fatalf("order changed at %d: got %s, want %s", i, out[i].ID(), in[i].ID())
		}
		if out[i].OriginalScore() != in[i].Score() {
			t.Errorf("%s: original score %f lost, got %f",
				out[i].ID(), in[i].Score(), out[i].OriginalScore())
		}
	}
	// Relative order of scores must survive the rescale.
	if !(out[1].Score() > out[2].Score() && out[2].Score() > out[0].Score()) {
		t.Errorf("monotonicity broken: %f %f %f",
			out[0].Score(), out[1].Score(), out[2].Score())
	}
}

func TestNormalizeScores_DegenerateSetDoesNotInflate(t *testing.T) {
	// All scores equal: normalizing to 1.0 would fake confidence.
	in := []result.Result{raw("a", 0.42), raw("b", 0.42), raw("c", 0.42)}

	out := normalizeScores(in)
	for _, r := range out {
		if r.Score() != 0.42 {
			t.Errorf("degenerate set must keep original score, got %f", r.Score())
		}
	}
}

func TestNormalizeScores_DegenerateSetClampsOutOfRange(t *testing.T) {
	in := []result.Result{raw("a", 37.0), raw("b", 37.0)}
	out := normalizeScores(in)
	for _, r := range out {
		if r.Score() != 1.0 {
			t.Errorf("uniform out-of-range score must clamp to 1.0, got %f", r.Score())
		}
	}

	in = []result.Result{raw("a", -1.5), raw("b", -1.5)}
	out = normalizeScores(in)
	for _, r := range out {
		if r.Score() != 0.0 {
			t.Errorf("uniform negative score must clamp to 0.0, got %f", r.Score())
		}
	}
}

func TestNormalizeScores_Empty(t *testing.T) {
	if out := normalizeScores(nil); len(out) != 0 {
		t.Errorf("expected empty output, got %d", len(out))
	}
}

func TestNormalizeScores_SingleResult(t *testing.T) {
	out := normalizeScores([]result.Result{raw("a", 5.0)})
	if out[0].Score() != 1.0 {
		t.Errorf("single out-of-range score should clamp to 1.0, got %f", out[0].Score())
	}
}
