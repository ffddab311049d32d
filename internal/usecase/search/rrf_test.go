package search

import (
	"testing"

	"github.com/kailas-cloud/docdex/internal/domain/search/result"
)

func rawFrom(id string, score float64, src result.Source, details map[string]string) result.Result {
	return result.New(id, "/"+id, score, src, nil, details)
}

func list(src result.Source, weight float64, results ...result.Result) sourceList {
	return sourceList{source: src, weight: weight, results: results}
}

func TestFuseRRF_MultiSourceOutranksSingleSource(t *testing.T) {
	// "shared" is ranked first by both sources; the others appear once.
	bm25 := list(result.SourceBM25, 1,
		rawFrom("shared", 0.9, result.SourceBM25, nil),
		rawFrom("lexical-only", 0.8, result.SourceBM25, nil),
	)
	vector := list(result.SourceVector, 1,
		rawFrom("shared", 0.95, result.SourceVector, nil),
		rawFrom("semantic-only", 0.7, result.SourceVector, nil),
	)

	fused, dropped := fuseRRF([]sourceList{bm25, vector}, 60, false)
	if dropped != 0 {
		t.Fatalf("unexpected drops: %d", dropped)
	}
	if len(fused) != 3 {
		t.Fatalf("expected 3 fused docs, got %d", len(fused))
	}
	if fused[0].ID() != "shared" {
		t.Errorf("doc ranked by both sources must lead, got %s", fused[0].ID())
	}
	if fused[0].Score() <= fused[1].Score() {
		t.Errorf("multi-source score %f not above single-source %f",
			fused[0].Score(), fused[1].Score())
	}
	if !fused[0].FromSource(result.SourceBM25) || !fused[0].FromSource(result.SourceVector) {
		t.Errorf("contributing sources not recorded: %v", fused[0].Sources())
	}
}

func TestFuseRRF_DocumentAppearsOnce(t *testing.T) {
	bm25 := list(result.SourceBM25, 1, rawFrom("dup", 0.9, result.SourceBM25, nil))
	vector := list(result.SourceVector, 1, rawFrom("dup", 0.8, result.SourceVector, nil))

	fused, _ := fuseRRF([]sourceList{bm25, vector}, 60, false)
	if len(fused) != 1 {
		t.Fatalf("duplicate doc must fuse into one entry, got %d", len(fused))
	}
}

func TestFuseRRF_ScoreMatchesFormula(t *testing.T) {
	bm25 := list(result.SourceBM25, 1,
		rawFrom("a", 1.0, result.SourceBM25, nil),
		rawFrom("b", 0.5, result.SourceBM25, nil),
	)

	fused, _ := fuseRRF([]sourceList{bm25}, 60, false)
	if got, want := fused[0].Score(), 1.0/61.0; got != want {
		t.Errorf("rank 1 score: got %f, want %f", got, want)
	}
	if got, want := fused[1].Score(), 1.0/62.0; got != want {
		t.Errorf("rank 2 score: got %f, want %f", got, want)
	}
}

func TestFuseRRF_WeightScalesContribution(t *testing.T) {
	full := list(result.SourceVector, 1, rawFrom("v", 1.0, result.SourceVector, nil))
	half := list(result.SourceChunk, 0.5, rawFrom("c", 1.0, result.SourceChunk, nil))

	fused, _ := fuseRRF([]sourceList{full, half}, 60, false)
	if fused[0].ID() != "v" {
		t.Fatalf("full-weight doc must lead, got %s", fused[0].ID())
	}
	if got, want := fused[1].Score(), 0.5/61.0; got != want {
		t.Errorf("half-weight score: got %f, want %f", got, want)
	}
}

func TestFuseRRF_ZeroWeightListIgnored(t *testing.T) {
	disabled := list(result.SourceChunk, 0, rawFrom("c", 1.0, result.SourceChunk, nil))
	fused, _ := fuseRRF([]sourceList{disabled}, 60, false)
	if len(fused) != 0 {
		t.Errorf("zero-weight list must not contribute, got %d docs", len(fused))
	}
}

func TestFuseRRF_DropsEntriesWithoutID(t *testing.T) {
	bm25 := list(result.SourceBM25, 1,
		rawFrom("", 0.9, result.SourceBM25, nil),
		rawFrom("keep", 0.8, result.SourceBM25, nil),
	)

	fused, dropped := fuseRRF([]sourceList{bm25}, 60, false)
	if dropped != 1 {
		t.Errorf("expected 1 dropped entry, got %d", dropped)
	}
	if len(fused) != 1 || fused[0].ID() != "keep" {
		t.Errorf("id-less entry leaked into fusion: %v", fused)
	}
}

func TestFuseRRF_MergesMatchDetailsEarlierWins(t *testing.T) {
	bm25 := list(result.SourceBM25, 1,
		rawFrom("doc", 0.9, result.SourceBM25, map[string]string{
			"term": "kubernetes", "field": "title",
		}),
	)
	vector := list(result.SourceVector, 1,
		rawFrom("doc", 0.8, result.SourceVector, map[string]string{
			"field": "body", "similarity": "0.91",
		}),
	)

	fused, _ := fuseRRF([]sourceList{bm25, vector}, 60, false)
	details := fused[0].MatchDetails()
	if details["term"] != "kubernetes" {
		t.Errorf("bm25-only detail missing: %v", details)
	}
	if details["similarity"] != "0.91" {
		t.Errorf("vector-only detail missing: %v", details)
	}
	if details["field"] != "title" {
		t.Errorf("conflicting key must keep the earlier list's value, got %q", details["field"])
	}
}

func TestFuseRRF_DeterministicTieBreak(t *testing.T) {
	// Same rank in lists of equal weight: identical fused scores.
	bm25 := list(result.SourceBM25, 1, rawFrom("first-seen", 0.9, result.SourceBM25, nil))
	vector := list(result.SourceVector, 1, rawFrom("second-seen", 0.9, result.SourceVector, nil))

	for i := 0; i < 20; i++ {
		fused, _ := fuseRRF([]sourceList{bm25, vector}, 60, false)
		if fused[0].ID() != "first-seen" || fused[1].ID() != "second-seen" {
			t.Fatalf("tie-break not deterministic on run %d: %s, %s",
				i, fused[0].ID(), fused[1].ID())
		}
	}
}

func TestFuseRRF_BlendingBreaksRankTies(t *testing.T) {
	// Equal ranks but different normalized scores: blending must let
	// the higher-scored doc win.
	bm25 := list(result.SourceBM25, 1, rawFrom("low", 0.2, result.SourceBM25, nil))
	vector := list(result.SourceVector, 1, rawFrom("high", 0.9, result.SourceVector, nil))

	fused, _ := fuseRRF([]sourceList{bm25, vector}, 60, true)
	if fused[0].ID() != "high" {
		t.Errorf("score blending should favor the higher raw score, got %s", fused[0].ID())
	}
	if fused[0].Score() <= fused[1].Score() {
		t.Errorf("blended scores not separated: %f vs %f",
			fused[0].Score(), fused[1].Score())
	}
}

func TestFuseRRF_SourceOrderIndependentScores(t *testing.T) {
	bm25 := list(result.SourceBM25, 1,
		rawFrom("shared", 0.9, result.SourceBM25, nil),
		rawFrom("lexical-only", 0.8, result.SourceBM25, nil),
	)
	vector := list(result.SourceVector, 1,
		rawFrom("shared", 0.95, result.SourceVector, nil),
		rawFrom("semantic-only", 0.7, result.SourceVector, nil),
	)

	scoresByID := func(fused []result.Fused) map[string]float64 {
		m := make(map[string]float64, len(fused))
		for i := range fused {
			m[fused[i].ID()] = fused[i].Score()
		}
		return m
	}

	forward, _ := fuseRRF([]sourceList{bm25, vector}, 60, false)
	reversed, _ := fuseRRF([]sourceList{vector, bm25}, 60, false)

	fwd, rev := scoresByID(forward), scoresByID(reversed)
	if len(fwd) != len(rev) {
		t.Fatalf("document sets differ: %d vs %d", len(fwd), len(rev))
	}
	for id, score := range fwd {
		if rev[id] != score {
			t.Errorf("score for %s depends on list order: %f vs %f", id, score, rev[id])
		}
	}
}

func TestFuseRRF_CustomKFlattensScores(t *testing.T) {
	bm25 := list(result.SourceBM25, 1,
		rawFrom("a", 1.0, result.SourceBM25, nil),
		rawFrom("b", 0.5, result.SourceBM25, nil),
	)

	small, _ := fuseRRF([]sourceList{bm25}, 1, false)
	large, _ := fuseRRF([]sourceList{bm25}, 1000, false)

	smallGap := small[0].Score() - small[1].Score()
	largeGap := large[0].Score() - large[1].Score()
	if smallGap <= largeGap {
		t.Errorf("larger k must flatten rank gaps: k=1 gap %f, k=1000 gap %f",
			smallGap, largeGap)
	}
}

func TestBoostContextResults_PinnedDocOutranksBetterHit(t *testing.T) {
	bm25 := list(result.SourceBM25, 1,
		rawFrom("top", 0.9, result.SourceBM25, nil),
		rawFrom("pinned", 0.8, result.SourceBM25, nil),
	)
	fused, _ := fuseRRF([]sourceList{bm25}, 60, false)

	boosted := boostContextResults(fused, []string{"pinned"})
	if boosted[0].ID() != "pinned" {
		t.Errorf("pinned doc must outrank the unpinned hit, got %s first", boosted[0].ID())
	}
	if boosted[0].OriginalScore() != 0.8 {
		t.Errorf("boost must not touch the original score, got %f", boosted[0].OriginalScore())
	}
}

func TestBoostContextResults_MatchesChunkFileID(t *testing.T) {
	chunks := list(result.SourceChunk, 1,
		result.New("chunk-1", "/docs/other.md", 0.9, result.SourceChunk,
			map[string]string{"file_id": "other"}, nil),
		result.New("chunk-7", "/docs/report.md", 0.8, result.SourceChunk,
			map[string]string{"file_id": "report"}, nil),
	)
	fused, _ := fuseRRF([]sourceList{chunks}, 60, false)

	boosted := boostContextResults(fused, []string{"report"})
	if boosted[0].ID() != "chunk-7" {
		t.Errorf("chunk of a pinned file must be boosted, got %s first", boosted[0].ID())
	}
}

func TestBoostContextResults_NoPinnedMatchesKeepsOrder(t *testing.T) {
	bm25 := list(result.SourceBM25, 1,
		rawFrom("a", 0.9, result.SourceBM25, nil),
		rawFrom("b", 0.8, result.SourceBM25, nil),
	)
	fused, _ := fuseRRF([]sourceList{bm25}, 60, false)
	before := fused[0].Score()

	unchanged := boostContextResults(fused, []string{"absent", ""})
	if unchanged[0].ID() != "a" || unchanged[1].ID() != "b" {
		t.Errorf("order changed without a pinned match: %s, %s",
			unchanged[0].ID(), unchanged[1].ID())
	}
	if unchanged[0].Score() != before {
		t.Errorf("scores changed without a pinned match: %f", unchanged[0].Score())
	}
}
