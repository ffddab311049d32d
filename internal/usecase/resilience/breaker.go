// Package resilience protects calls into the inference engine with
// per-model-type circuit breakers, bounded retry, and CPU fallback.
package resilience

import (
	"sync"
	"time"

	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/domain/model"
	"github.com/kailas-cloud/docdex/internal/metrics"
)

// State is the circuit breaker state.
type State int

// Breaker states. The numeric values feed the circuit_state gauge.
const (
	Closed State = iota
	HalfOpen
	Open
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}

// Stats is a snapshot of a breaker's counters.
type Stats struct {
	State               string
	ConsecutiveFailures int
	SuccessfulRequests  int64
	FailedRequests      int64
}

// Breaker is a circuit breaker for one model type. Safe for use from
// concurrent search calls; every transition happens under the mutex.
type Breaker struct {
	modelType model.Type
	threshold int
	cooldown  time.Duration

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	successfulRequests  int64
	failedRequests      int64
	openedAt            time.Time
}

func newBreaker(modelType model.Type, threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		modelType: modelType,
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// Allow reports whether a call may proceed. An open breaker rejects
// with domain.ErrCircuitOpen until the cooldown elapses, then admits a
// single half-open probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open {
		if time.Since(b.openedAt) < b.cooldown {
			return domain.ErrCircuitOpen
		}
		b.setState(HalfOpen)
	}
	return nil
}

// RecordSuccess resets the consecutive-failure streak and closes a
// half-open breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successfulRequests++
	b.consecutiveFailures = 0
	if b.state != Closed {
		b.setState(Closed)
	}
}

// RecordFailure counts a terminal failure. Reaching the threshold, or
// failing the half-open probe, trips the breaker to open.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failedRequests++
	b.consecutiveFailures++
	if b.state == HalfOpen || b.consecutiveFailures >= b.threshold {
		b.openedAt = time.Now()
		b.setState(Open)
	}
}

// Reset forces the breaker closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.successfulRequests = 0
	b.failedRequests = 0
	b.setState(Closed)
}

// Snapshot returns the current counters.
func (b *Breaker) Snapshot() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		State:               b.state.String(),
		ConsecutiveFailures: b.consecutiveFailures,
		SuccessfulRequests:  b.successfulRequests,
		FailedRequests:      b.failedRequests,
	}
}

// setState must be called with the mutex held.
func (b *Breaker) setState(s State) {
	b.state = s
	metrics.CircuitState.WithLabelValues(string(b.modelType)).Set(float64(s))
}

// Registry owns one breaker per model type, created lazily. Injected
// into the executor so tests construct isolated registries.
type Registry struct {
	threshold int
	cooldown  time.Duration

	mu       sync.RWMutex
	breakers map[model.Type]*Breaker
}

// NewRegistry creates a breaker registry. threshold <= 0 falls back to
// 5 consecutive failures; cooldown <= 0 falls back to 30 seconds.
func NewRegistry(threshold int, cooldown time.Duration) *Registry {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Registry{
		threshold: threshold,
		cooldown:  cooldown,
		breakers:  make(map[model.Type]*Breaker),
	}
}

// Get returns the breaker for a model type, creating it on first use.
func (r *Registry) Get(t model.Type) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[t]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok = r.breakers[t]; ok {
		return b
	}
	b = newBreaker(t, r.threshold, r.cooldown)
	r.breakers[t] = b
	return b
}

// Reset forces the breaker for a model type closed. Used for manual
// recovery or after a detected model reload.
func (r *Registry) Reset(t model.Type) {
	r.Get(t).Reset()
}

// Snapshot returns per-model-type breaker stats for the admin surface.
// Every supported model type is reported, so untouched breakers show
// up as CLOSED rather than being absent.
func (r *Registry) Snapshot() map[model.Type]Stats {
	types := []model.Type{model.Text, model.Embedding, model.Vision}
	out := make(map[model.Type]Stats, len(types))
	for _, t := range types {
		out[t] = r.Get(t).Snapshot()
	}
	return out
}
