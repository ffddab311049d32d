package request

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/domain/search/mode"
)

// Search parameter limits.
const (
	// MinQueryLength is the minimum trimmed query length.
	MinQueryLength = 2
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	DefaultTopK    = 10
	MaxTopK        = 500
	DefaultRerankN = 10
)

// Options is the caller-facing parameter bag for a search call.
// Zero values mean "use the default".
type Options struct {
	TopK            int
	MinScore        float64
	Mode            mode.Mode
	Rerank          bool
	RerankTopN      int
	ChunkWeight     float64
	ChunkTopK       int
	CorrectSpelling bool
	ExpandSynonyms  bool
	ContextFileIDs  []string
}

// Request is a validated search query.
type Request struct {
	query string
	opts  Options
}

// New validates and normalizes search parameters.
// Defaults: mode=hybrid, topK=10, rerankTopN=10, chunkTopK=topK.
func New(query string, opts Options) (Request, error) {
	if len(strings.TrimSpace(query)) < MinQueryLength {
		return Request{}, domain.ErrQueryTooShort
	}
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	if opts.Mode == "" {
		opts.Mode = mode.Hybrid
	}
	if !opts.Mode.IsValid() {
		return Request{}, fmt.Errorf("invalid search mode: %q", opts.Mode)
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.TopK > MaxTopK {
		opts.TopK = MaxTopK
	}
	if opts.RerankTopN <= 0 {
		opts.RerankTopN = DefaultRerankN
	}
	if opts.ChunkTopK <= 0 {
		opts.ChunkTopK = opts.TopK
	}
	if opts.MinScore < 0 || opts.MinScore > 1 {
		return Request{}, fmt.Errorf("min_score must be between 0 and 1")
	}
	if opts.ChunkWeight < 0 || opts.ChunkWeight > 1 {
		return Request{}, fmt.Errorf("chunk_weight must be between 0 and 1")
	}

	return Request{query: query, opts: opts}, nil
}

// Query returns the search query text.
func (r *Request) Query() string { return r.query }

// Mode returns the requested search strategy.
func (r *Request) Mode() mode.Mode { return r.opts.Mode }

// TopK returns the number of candidates to retrieve per source.
func (r *Request) TopK() int { return r.opts.TopK }

// MinScore returns the minimum fused-score threshold.
func (r *Request) MinScore() float64 { return r.opts.MinScore }

// Rerank reports whether re-ranking was requested.
func (r *Request) Rerank() bool { return r.opts.Rerank }

// RerankTopN returns how many fused results go to the re-ranker.
func (r *Request) RerankTopN() int { return r.opts.RerankTopN }

// ChunkWeight returns the chunk-source contribution weight.
// Zero disables chunk search entirely.
func (r *Request) ChunkWeight() float64 { return r.opts.ChunkWeight }

// ChunkTopK returns the number of chunk candidates to retrieve.
func (r *Request) ChunkTopK() int { return r.opts.ChunkTopK }

// CorrectSpelling reports whether the query corrector should run.
func (r *Request) CorrectSpelling() bool { return r.opts.CorrectSpelling }

// ExpandSynonyms reports whether synonym expansion should run.
func (r *Request) ExpandSynonyms() bool { return r.opts.ExpandSynonyms }

// ContextFileIDs returns caller-pinned file ids whose fused results
// rank higher.
func (r *Request) ContextFileIDs() []string { return r.opts.ContextFileIDs }
