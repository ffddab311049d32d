package search

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docdex/internal/domain/search/result"
	"github.com/kailas-cloud/docdex/internal/metrics"
)

// sourceOutcome is one searcher's verdict. A timeout is a non-error
// outcome: the source simply contributed nothing this round.
type sourceOutcome struct {
	source   result.Source
	results  []result.Result
	timedOut bool
	err      error
}

// runBounded executes fn under its own deadline and converts a
// deadline expiry into timedOut=true instead of an error. The call
// runs in a goroutine with a buffered channel so a slow backend that
// ignores cancellation cannot hold the response hostage.
func runBounded(
	ctx context.Context, source result.Source, timeout time.Duration,
	fn func(ctx context.Context) ([]result.Result, error),
) sourceOutcome {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type reply struct {
		results []result.Result
		err     error
	}
	ch := make(chan reply, 1)
	go func() {
		results, err := fn(callCtx)
		ch <- reply{results: results, err: err}
	}()

	select {
	case r := <-ch:
		if errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			metrics.SearchSourceTimeoutsTotal.WithLabelValues(string(source)).Inc()
			return sourceOutcome{source: source, timedOut: true}
		}
		return sourceOutcome{source: source, results: r.results, err: r.err}
	case <-callCtx.Done():
		if ctx.Err() != nil {
			// Caller cancelled: propagate, this is not a source timeout.
			return sourceOutcome{source: source, err: ctx.Err()}
		}
		metrics.SearchSourceTimeoutsTotal.WithLabelValues(string(source)).Inc()
		return sourceOutcome{source: source, timedOut: true}
	}
}

func (s *Service) searchBM25(ctx context.Context, query string, k int) sourceOutcome {
	out := runBounded(ctx, result.SourceBM25, s.bm25Timeout,
		func(ctx context.Context) ([]result.Result, error) {
			return s.repo.SearchBM25(ctx, query, k)
		})
	s.logSource(out)
	return out
}

func (s *Service) searchVector(ctx context.Context, vector []float32, k int) sourceOutcome {
	out := runBounded(ctx, result.SourceVector, s.vectorTimeout,
		func(ctx context.Context) ([]result.Result, error) {
			return s.repo.SearchVector(ctx, vector, k)
		})
	s.logSource(out)
	return out
}

func (s *Service) searchChunks(ctx context.Context, vector []float32, k int) sourceOutcome {
	out := runBounded(ctx, result.SourceChunk, s.chunkTimeout,
		func(ctx context.Context) ([]result.Result, error) {
			return s.repo.SearchChunks(ctx, vector, k)
		})
	s.logSource(out)
	return out
}

// embedQuery obtains the query vector once, shared by the vector and
// chunk searchers, under the resilience policy and its own deadline.
func (s *Service) embedQuery(ctx context.Context, query string) ([]float32, bool, error) {
	embedCtx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	defer cancel()

	var vector []float32
	err := s.exec.Do(embedCtx, embedOptions(), func(ctx context.Context, forceCPU bool) error {
		v, modelID, err := s.engine.Embed(ctx, query, forceCPU)
		if err != nil {
			return err
		}
		vector = v
		s.logger.Debug("query embedded",
			zap.String("model", modelID), zap.Int("dimensions", len(v)))
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, true, nil
		}
		return nil, false, err
	}
	return vector, false, nil
}

func (s *Service) logSource(out sourceOutcome) {
	switch {
	case out.timedOut:
		s.logger.Warn("search source timed out", zap.String("source", string(out.source)))
	case out.err != nil:
		s.logger.Warn("search source failed",
			zap.String("source", string(out.source)), zap.Error(out.err))
	default:
		s.logger.Debug("search source returned",
			zap.String("source", string(out.source)), zap.Int("hits", len(out.results)))
	}
}
