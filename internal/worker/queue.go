// Package worker runs fire-and-forget index maintenance jobs on a
// bounded goroutine pool, decoupled from the request/response path.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docdex/internal/metrics"
)

// jobTimeout bounds a single background job so a stuck index write
// cannot pin a pool worker forever.
const jobTimeout = 30 * time.Second

// Job is a unit of background work.
type Job func(ctx context.Context) error

// Queue is a bounded, non-blocking background job queue. Submission
// never waits: when every worker is busy the job is dropped and
// counted, which is acceptable for best-effort cleanup work.
type Queue struct {
	pool   *ants.Pool
	logger *zap.Logger
}

// NewQueue creates a queue with the given number of workers.
func NewQueue(workers int, logger *zap.Logger) (*Queue, error) {
	if workers <= 0 {
		workers = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := ants.NewPool(workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Queue{pool: pool, logger: logger}, nil
}

// Submit schedules a job. It returns immediately; the job's outcome is
// logged and counted, never propagated to the caller.
func (q *Queue) Submit(name string, job Job) {
	err := q.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if err := job(ctx); err != nil {
			metrics.GhostCleanupJobsTotal.WithLabelValues("error").Inc()
			q.logger.Warn("background job failed",
				zap.String("job", name), zap.Error(err))
			return
		}
		metrics.GhostCleanupJobsTotal.WithLabelValues("ok").Inc()
		q.logger.Debug("background job done", zap.String("job", name))
	})
	if err != nil {
		metrics.GhostCleanupJobsTotal.WithLabelValues("rejected").Inc()
		q.logger.Warn("background job rejected",
			zap.String("job", name), zap.Error(err))
	}
}

// Close releases the pool. Pending jobs are abandoned.
func (q *Queue) Close() {
	q.pool.Release()
}
