// Package search orchestrates hybrid retrieval: BM25 and vector
// sources run concurrently under per-source deadlines, their results
// are normalized and merged by reciprocal rank fusion, and vector-side
// failures degrade to a lexical-only fallback instead of erroring.
package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/domain/model"
	"github.com/kailas-cloud/docdex/internal/domain/search/mode"
	"github.com/kailas-cloud/docdex/internal/domain/search/outcome"
	"github.com/kailas-cloud/docdex/internal/domain/search/request"
	"github.com/kailas-cloud/docdex/internal/domain/search/result"
	"github.com/kailas-cloud/docdex/internal/metrics"
	"github.com/kailas-cloud/docdex/internal/usecase/resilience"
)

// Config holds the tunables of the search orchestrator. Zero values
// fall back to the defaults documented on each field.
type Config struct {
	// RRFK is the reciprocal rank fusion constant (default 60).
	RRFK int
	// BlendScores mixes the normalized raw score into the fused score
	// as a tie-breaker.
	BlendScores bool

	BM25Timeout   time.Duration // default 2s
	VectorTimeout time.Duration // default 4s
	ChunkTimeout  time.Duration // default 4s
	EmbedTimeout  time.Duration // default 3s
}

// Service is the search orchestrator.
type Service struct {
	repo      Repository
	engine    Engine
	exec      *resilience.Executor
	corrector Corrector
	ghosts    ExistenceFilter

	rrfK          int
	blendScores   bool
	bm25Timeout   time.Duration
	vectorTimeout time.Duration
	chunkTimeout  time.Duration
	embedTimeout  time.Duration

	logger *zap.Logger
}

// New creates the search service.
func New(repo Repository, engine Engine, exec *resilience.Executor, cfg Config, logger *zap.Logger) *Service {
	if cfg.RRFK <= 0 {
		cfg.RRFK = 60
	}
	if cfg.BM25Timeout <= 0 {
		cfg.BM25Timeout = 2 * time.Second
	}
	if cfg.VectorTimeout <= 0 {
		cfg.VectorTimeout = 4 * time.Second
	}
	if cfg.ChunkTimeout <= 0 {
		cfg.ChunkTimeout = 4 * time.Second
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:          repo,
		engine:        engine,
		exec:          exec,
		rrfK:          cfg.RRFK,
		blendScores:   cfg.BlendScores,
		bm25Timeout:   cfg.BM25Timeout,
		vectorTimeout: cfg.VectorTimeout,
		chunkTimeout:  cfg.ChunkTimeout,
		embedTimeout:  cfg.EmbedTimeout,
		logger:        logger,
	}
}

// WithCorrector attaches the optional query corrector.
func (s *Service) WithCorrector(c Corrector) *Service {
	s.corrector = c
	return s
}

// WithGhostFilter attaches the optional result-existence filter.
func (s *Service) WithGhostFilter(f ExistenceFilter) *Service {
	s.ghosts = f
	return s
}

// Search runs a search request end to end. Validation errors and the
// total absence of a usable source produce a failed outcome; every
// partial degradation produces a successful one with truthful
// mode/meta reporting.
func (s *Service) Search(ctx context.Context, query string, opts request.Options) outcome.Outcome {
	start := time.Now()

	req, err := request.New(query, opts)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("invalid", "error").Inc()
		return outcome.Failed(err.Error())
	}

	out := s.run(ctx, &req)

	status := "ok"
	if !out.Success {
		status = "error"
	}
	metrics.SearchRequestsTotal.WithLabelValues(string(out.Mode), status).Inc()
	metrics.SearchDuration.WithLabelValues(string(out.Mode)).Observe(time.Since(start).Seconds())
	s.logger.Info("search completed",
		zap.String("mode", string(out.Mode)),
		zap.Bool("success", out.Success),
		zap.Bool("fallback", out.Meta.Fallback),
		zap.Int("results", len(out.Results)),
		zap.Duration("took", time.Since(start)))
	return out
}

func (s *Service) run(ctx context.Context, req *request.Request) outcome.Outcome {
	out := outcome.Outcome{Mode: req.Mode()}

	// The corrected query feeds the semantic side only; BM25 matches
	// the user's literal terms.
	vectorQuery := s.correctQuery(ctx, req, &out)

	switch req.Mode() {
	case mode.BM25:
		bm := s.searchBM25(ctx, req.Query(), req.TopK())
		if bm.err != nil {
			return failedWith(&out, fmt.Sprintf("bm25 search failed: %v", bm.err))
		}
		if bm.timedOut {
			return failedWith(&out, "bm25 search timed out")
		}
		return s.finish(ctx, req, &out, []sourceList{
			{source: result.SourceBM25, weight: 1, results: normalizeScores(bm.results)},
		})

	case mode.Vector:
		vector, ok := s.mustEmbed(ctx, req, vectorQuery, &out)
		if !ok {
			return out
		}
		vec := s.searchVector(ctx, vector, req.TopK())
		if vec.timedOut {
			out.Meta.VectorTimedOut = true
			return s.bm25Fallback(ctx, req, &out, outcome.ReasonVectorTimeout, nil)
		}
		if vec.err != nil {
			return s.bm25Fallback(ctx, req, &out, outcome.ReasonHybridError, nil)
		}
		return s.finish(ctx, req, &out, []sourceList{
			{source: result.SourceVector, weight: 1, results: normalizeScores(vec.results)},
		})

	default:
		return s.hybrid(ctx, req, vectorQuery, &out)
	}
}

// hybrid runs the full concurrent pipeline: BM25, vector, and
// (optionally) chunk search fan out together once the query embedding
// is available, and fusion merges whatever came back in time.
func (s *Service) hybrid(ctx context.Context, req *request.Request, vectorQuery string, out *outcome.Outcome) outcome.Outcome {
	vector, ok := s.mustEmbed(ctx, req, vectorQuery, out)
	if !ok {
		return *out
	}

	var bm, vec, chunk sourceOutcome
	useChunks := req.ChunkWeight() > 0

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		bm = s.searchBM25(ctx, req.Query(), req.TopK())
	}()
	go func() {
		defer wg.Done()
		vec = s.searchVector(ctx, vector, req.TopK())
	}()
	if useChunks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chunk = s.searchChunks(ctx, vector, req.ChunkTopK())
		}()
	}
	wg.Wait()

	if vec.timedOut {
		out.Meta.VectorTimedOut = true
		return s.bm25Fallback(ctx, req, out, outcome.ReasonVectorTimeout, &bm)
	}
	if vec.err != nil {
		return s.bm25Fallback(ctx, req, out, outcome.ReasonHybridError, &bm)
	}

	lists := make([]sourceList, 0, 3)
	if bm.err == nil && !bm.timedOut {
		lists = append(lists, sourceList{
			source: result.SourceBM25, weight: 1, results: normalizeScores(bm.results),
		})
	}
	lists = append(lists, sourceList{
		source: result.SourceVector, weight: 1, results: normalizeScores(vec.results),
	})
	if useChunks && chunk.err == nil && !chunk.timedOut {
		lists = append(lists, sourceList{
			source: result.SourceChunk, weight: req.ChunkWeight(), results: normalizeScores(chunk.results),
		})
	}

	return s.finish(ctx, req, out, lists)
}

// mustEmbed computes the query embedding under the resilience policy.
// An embedding timeout or failure sends the request down the BM25
// fallback path; ok=false means out already holds the terminal outcome.
func (s *Service) mustEmbed(ctx context.Context, req *request.Request, vectorQuery string, out *outcome.Outcome) ([]float32, bool) {
	vector, timedOut, err := s.embedQuery(ctx, vectorQuery)
	if timedOut {
		*out = s.bm25Fallback(ctx, req, out, outcome.ReasonEmbeddingTimeout, nil)
		return nil, false
	}
	if err != nil {
		out.Warn(outcome.WarnQueryEmbeddingUnavailable, err.Error())
		*out = s.bm25Fallback(ctx, req, out, outcome.ReasonHybridError, nil)
		return nil, false
	}
	return vector, true
}

// bm25Fallback degrades to lexical-only retrieval. bm carries an
// already-completed BM25 round from the hybrid fan-out, or nil when
// BM25 still has to run. Only BM25 also failing makes this terminal.
func (s *Service) bm25Fallback(
	ctx context.Context, req *request.Request, out *outcome.Outcome,
	reason string, bm *sourceOutcome,
) outcome.Outcome {
	metrics.SearchFallbacksTotal.WithLabelValues(reason).Inc()
	out.Mode = mode.BM25Fallback
	out.Meta.Fallback = true
	out.Meta.FallbackReason = reason
	s.logger.Warn("degrading to bm25 fallback", zap.String("reason", reason))

	if bm == nil {
		fresh := s.searchBM25(ctx, req.Query(), req.TopK())
		bm = &fresh
	}
	if bm.err != nil || bm.timedOut {
		return failedWith(out, domain.ErrNoUsableSource.Error())
	}

	return s.finish(ctx, req, out, []sourceList{
		{source: result.SourceBM25, weight: 1, results: normalizeScores(bm.results)},
	})
}

// finish runs the shared tail of every mode: fusion, context-file
// boosting, score filtering, optional re-ranking, truncation, and
// ghost validation.
func (s *Service) finish(ctx context.Context, req *request.Request, out *outcome.Outcome, lists []sourceList) outcome.Outcome {
	fused, dropped := fuseRRF(lists, s.rrfK, s.blendScores)
	if dropped > 0 {
		out.Warn(outcome.WarnDroppedResults,
			fmt.Sprintf("%d results lacked an id and were dropped from fusion", dropped))
		s.logger.Warn("dropped id-less results during fusion", zap.Int("count", dropped))
	}

	if ids := req.ContextFileIDs(); len(ids) > 0 {
		fused = boostContextResults(fused, ids)
	}

	if req.MinScore() > 0 {
		kept := fused[:0]
		for _, f := range fused {
			if f.Score() >= req.MinScore() {
				kept = append(kept, f)
			}
		}
		fused = kept
	}

	if req.Rerank() && out.Mode == mode.Hybrid {
		fused = s.rerank(ctx, req, out, fused)
	}

	if len(fused) > req.TopK() {
		fused = fused[:req.TopK()]
	}

	if s.ghosts != nil && len(fused) > 0 {
		valid, ghostCount := s.ghosts.ValidateExistence(ctx, fused, true)
		fused = valid
		out.Meta.GhostsFiltered = ghostCount
	}

	out.Results = fused
	out.Success = true
	out.Error = ""
	return *out
}

// rerank reorders the fused head with the text model. Failure is never
// terminal: the fused order stands and the mode stays hybrid.
func (s *Service) rerank(ctx context.Context, req *request.Request, out *outcome.Outcome, fused []result.Fused) []result.Fused {
	if !s.engine.RerankAvailable() {
		out.Warn(outcome.WarnRerankFailed, domain.ErrRerankerUnavailable.Error())
		return fused
	}
	n := req.RerankTopN()
	if n > len(fused) {
		n = len(fused)
	}
	if n == 0 {
		return fused
	}

	var ranked []result.Fused
	err := s.exec.Do(ctx, resilience.Options{
		ModelType:        model.Text,
		Op:               "rerank",
		AllowCPUFallback: true,
	}, func(ctx context.Context, forceCPU bool) error {
		r, rerr := s.engine.Rerank(ctx, req.Query(), fused[:n], n, forceCPU)
		if rerr != nil {
			return rerr
		}
		ranked = r
		return nil
	})
	if err != nil {
		s.logger.Warn("re-ranking failed, keeping fused order", zap.Error(err))
		out.Warn(outcome.WarnRerankFailed, err.Error())
		return fused
	}

	out.Mode = mode.HybridReranked
	return append(ranked, fused[n:]...)
}

// correctQuery runs the optional correction stage and returns the text
// the semantic side should search with. Corrector failures are logged
// and ignored.
func (s *Service) correctQuery(ctx context.Context, req *request.Request, out *outcome.Outcome) string {
	query := req.Query()
	if s.corrector == nil || (!req.CorrectSpelling() && !req.ExpandSynonyms()) {
		return query
	}

	corrected, err := s.corrector.ProcessQuery(ctx, query, req.ExpandSynonyms())
	if err != nil {
		s.logger.Warn("query correction failed", zap.Error(err))
		return query
	}

	out.Meta.Corrections = corrected.Corrections
	out.Meta.SynonymsAdded = corrected.SynonymsAdded
	switch {
	case corrected.Expanded != "":
		return corrected.Expanded
	case corrected.Corrected != "":
		return corrected.Corrected
	default:
		return query
	}
}

func embedOptions() resilience.Options {
	return resilience.Options{
		ModelType:        model.Embedding,
		Op:               "embed query",
		AllowCPUFallback: true,
	}
}

// failedWith marks the outcome terminally failed while keeping the
// degradation metadata accumulated so far.
func failedWith(out *outcome.Outcome, msg string) outcome.Outcome {
	out.Success = false
	out.Error = msg
	out.Results = nil
	return *out
}
