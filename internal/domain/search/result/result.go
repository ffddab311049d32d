package result

// Source identifies which searcher produced a hit.
type Source string

// Searcher source constants.
const (
	SourceBM25   Source = "bm25"
	SourceVector Source = "vector"
	SourceChunk  Source = "chunk"
)

// Result is a single scored hit from one search source.
// Score is the comparable field; OriginalScore preserves the raw
// source score for diagnostics only.
type Result struct {
	id            string
	path          string
	score         float64
	originalScore float64
	source        Source
	metadata      map[string]string
	matchDetails  map[string]string
}

// New creates a search result. The original score starts equal to the
// score and diverges after normalization.
func New(
	id, path string, score float64, source Source,
	metadata, matchDetails map[string]string,
) Result {
	return Result{
		id: id, path: path, score: score, originalScore: score,
		source: source, metadata: metadata, matchDetails: matchDetails,
	}
}

// ID returns the stable corpus identifier (file or chunk).
func (r *Result) ID() string { return r.id }

// Path returns the backing file path, empty for purely virtual entries.
func (r *Result) Path() string { return r.path }

// Score returns the comparable relevance score.
func (r *Result) Score() float64 { return r.score }

// OriginalScore returns the raw pre-normalization score.
func (r *Result) OriginalScore() float64 { return r.originalScore }

// Origin returns the source that produced this hit.
func (r *Result) Origin() Source { return r.source }

// Metadata returns the document metadata.
func (r *Result) Metadata() map[string]string { return r.metadata }

// MatchDetails returns per-source match diagnostics.
func (r *Result) MatchDetails() map[string]string { return r.matchDetails }

// WithScore returns a copy with a rescaled score, keeping the original.
func (r Result) WithScore(score float64) Result {
	r.score = score
	return r
}

// WithMatchDetails returns a copy carrying the given match diagnostics,
// used when fusion merges details from several sources.
func (r Result) WithMatchDetails(details map[string]string) Result {
	r.matchDetails = details
	return r
}

// Fused is a document merged across source lists by rank fusion.
// A document ranked by several sources appears exactly once, with the
// fused score reflecting every contribution.
type Fused struct {
	Result
	sources []Source
}

// NewFused creates a fused document from its base result, the fused
// score, and the set of contributing sources.
func NewFused(base Result, score float64, sources []Source) Fused {
	base.score = score
	return Fused{Result: base, sources: sources}
}

// Sources returns the searchers that contributed to this document.
func (f *Fused) Sources() []Source { return f.sources }

// FromSource reports whether the given searcher ranked this document.
func (f *Fused) FromSource(s Source) bool {
	for _, src := range f.sources {
		if src == s {
			return true
		}
	}
	return false
}
