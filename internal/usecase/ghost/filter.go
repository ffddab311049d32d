// Package ghost removes search results whose backing file no longer
// exists on disk. Index entries outlive files that were moved or
// deleted outside the app; filtering them is routine, not an error.
package ghost

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/docdex/internal/domain/search/result"
	"github.com/kailas-cloud/docdex/internal/metrics"
	"github.com/kailas-cloud/docdex/internal/worker"
)

// Checker reports whether a backing file still exists. Implementations
// must honor the context deadline.
type Checker interface {
	Exists(ctx context.Context, path string) bool
}

// CleanupSink deletes stale entries from the index.
type CleanupSink interface {
	BatchDeleteEmbeddings(ctx context.Context, ids []string) error
}

// Submitter schedules fire-and-forget background jobs.
type Submitter interface {
	Submit(name string, job worker.Job)
}

// Filter validates result existence with bounded concurrency.
type Filter struct {
	checker     Checker
	sink        CleanupSink
	queue       Submitter
	concurrency int
	statTimeout time.Duration
	logger      *zap.Logger
}

// New creates a ghost filter. sink and queue may be nil, which
// disables cleanup scheduling.
func New(
	checker Checker, sink CleanupSink, queue Submitter,
	concurrency int, statTimeout time.Duration, logger *zap.Logger,
) *Filter {
	if concurrency <= 0 {
		concurrency = 16
	}
	if statTimeout <= 0 {
		statTimeout = 250 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{
		checker:     checker,
		sink:        sink,
		queue:       queue,
		concurrency: concurrency,
		statTimeout: statTimeout,
		logger:      logger,
	}
}

// ValidateExistence drops results whose backing file is gone and
// returns the survivors in their original order plus the ghost count.
// When triggerCleanup is set and ghosts were found, a single
// batch-delete job is scheduled on the background queue; the response
// never waits on it. Results without a path are kept as-is.
func (f *Filter) ValidateExistence(
	ctx context.Context, results []result.Fused, triggerCleanup bool,
) ([]result.Fused, int) {
	if len(results) == 0 {
		return results, 0
	}

	alive := make([]bool, len(results))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i := range results {
		g.Go(func() error {
			path := results[i].Path()
			if path == "" {
				alive[i] = true
				return nil
			}
			statCtx, cancel := context.WithTimeout(gctx, f.statTimeout)
			defer cancel()
			alive[i] = f.checker.Exists(statCtx, path)
			return nil
		})
	}
	_ = g.Wait() // checks never return errors, only verdicts

	valid := make([]result.Fused, 0, len(results))
	var ghostIDs []string
	for i := range results {
		if alive[i] {
			valid = append(valid, results[i])
		} else {
			ghostIDs = append(ghostIDs, results[i].ID())
		}
	}

	if len(ghostIDs) == 0 {
		return valid, 0
	}

	metrics.GhostsFilteredTotal.Add(float64(len(ghostIDs)))
	f.logger.Debug("filtered ghost entries",
		zap.Int("count", len(ghostIDs)),
		zap.Strings("ids", ghostIDs))

	if triggerCleanup && f.sink != nil && f.queue != nil {
		ids := ghostIDs
		f.queue.Submit("ghost-cleanup", func(jobCtx context.Context) error {
			return f.sink.BatchDeleteEmbeddings(jobCtx, ids)
		})
	}

	return valid, len(ghostIDs)
}
