package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/domain/model"
	"github.com/kailas-cloud/docdex/internal/metrics"
)

// Operation is a protected call into the inference engine. forceCPU is
// true only on the extra attempt taken after a GPU-specific failure.
type Operation func(ctx context.Context, forceCPU bool) error

// Options configure a single protected call.
type Options struct {
	// ModelType routes the call through that type's circuit breaker.
	// Empty skips breaker accounting entirely.
	ModelType model.Type
	// Op names the operation for enriched errors and logs.
	Op string
	// AllowCPUFallback permits one extra CPU attempt on GPU failure.
	AllowCPUFallback bool
	// MaxRetries overrides the executor default when > 0.
	MaxRetries int
}

// Executor runs operations with retry, backoff, CPU fallback, and
// breaker accounting. One terminal failure is one breaker failure no
// matter how many attempts it took.
type Executor struct {
	registry    *Registry
	maxRetries  int
	backoffBase time.Duration
	logger      *zap.Logger
}

// NewExecutor creates an executor. maxRetries <= 0 defaults to 2 extra
// attempts; backoffBase <= 0 defaults to 200ms.
func NewExecutor(registry *Registry, maxRetries int, backoffBase time.Duration, logger *zap.Logger) *Executor {
	if maxRetries <= 0 {
		maxRetries = 2
	}
	if backoffBase <= 0 {
		backoffBase = 200 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		registry:    registry,
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
		logger:      logger,
	}
}

// Registry exposes the breaker registry for the admin surface.
func (e *Executor) Registry() *Registry { return e.registry }

// Do executes op under the resilience policy. An open breaker rejects
// before op ever runs. Retryable failures back off exponentially; a
// GPU failure gets one CPU attempt when allowed. The terminal error is
// enriched with the operation name.
func (e *Executor) Do(ctx context.Context, opts Options, op Operation) error {
	var breaker *Breaker
	if opts.ModelType != "" {
		breaker = e.registry.Get(opts.ModelType)
		if err := breaker.Allow(); err != nil {
			return fmt.Errorf("%s: %w", opts.Op, err)
		}
	}

	err := e.attempt(ctx, opts, op)
	if breaker != nil {
		if err != nil {
			breaker.RecordFailure()
		} else {
			breaker.RecordSuccess()
		}
	}
	if err != nil {
		kind := domain.KindOf(err)
		metrics.InferenceErrorsTotal.WithLabelValues(string(opts.ModelType), kind.String()).Inc()
		return enrich(opts.Op, err)
	}
	return nil
}

// attempt runs the bounded retry loop for one logical operation.
func (e *Executor) attempt(ctx context.Context, opts Options, op Operation) error {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = e.maxRetries
	}

	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx, false)
		if lastErr == nil {
			if i > 0 {
				e.logger.Debug("operation succeeded after retry",
					zap.String("op", opts.Op), zap.Int("attempt", i+1))
			}
			return nil
		}

		kind := domain.KindOf(lastErr)
		if kind == domain.KindGPUUnavailable {
			break // no point hammering the GPU path again
		}
		if !kind.Retryable() || i == maxRetries {
			break
		}

		metrics.InferenceRetriesTotal.WithLabelValues(string(opts.ModelType)).Inc()
		e.logger.Debug("retrying inference operation",
			zap.String("op", opts.Op),
			zap.String("kind", kind.String()),
			zap.Int("attempt", i+1),
			zap.Error(lastErr))

		if err := sleepContext(ctx, e.backoffBase<<i); err != nil {
			return err
		}
	}

	// GPU-specific failures get one attempt on the CPU endpoint before
	// the operation is declared failed.
	if opts.AllowCPUFallback && domain.KindOf(lastErr) == domain.KindGPUUnavailable {
		metrics.InferenceCPUFallbacksTotal.WithLabelValues(string(opts.ModelType)).Inc()
		e.logger.Warn("GPU failure, retrying on CPU",
			zap.String("op", opts.Op), zap.Error(lastErr))
		cpuErr := op(ctx, true)
		if cpuErr == nil {
			return nil
		}
		lastErr = cpuErr
	}

	return lastErr
}

// enrich wraps the terminal error as "<op> failed: <cause>" unless the
// boundary already tagged it with that shape.
func enrich(op string, err error) error {
	var ie *domain.InferenceError
	if errors.As(err, &ie) && ie.Op == op {
		return err
	}
	return fmt.Errorf("%s failed: %w", op, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
