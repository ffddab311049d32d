package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrQueryTooShort signals a query below the minimum length.
	ErrQueryTooShort = errors.New("Query too short")
	// ErrNoUsableSource signals that every search source failed.
	ErrNoUsableSource = errors.New("no usable search source")
	// ErrCircuitOpen signals a fail-fast rejection by an open circuit breaker.
	ErrCircuitOpen = errors.New("circuit breaker is OPEN")
	// ErrIndexUnavailable signals that the index backend cannot be reached.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrInferenceUnavailable signals that the inference engine cannot be reached.
	ErrInferenceUnavailable = errors.New("inference engine unavailable")
	// ErrRerankerUnavailable signals that no re-ranker is configured.
	ErrRerankerUnavailable = errors.New("reranker unavailable")
	// ErrDimensionMismatch signals embedding/index dimensionality disagreement.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// ErrorKind classifies an inference-boundary failure for retry and
// fallback decisions. Assigned where the error crosses the boundary so
// callers never match on message substrings.
type ErrorKind int

const (
	// KindFatal is a non-retryable failure.
	KindFatal ErrorKind = iota
	// KindTransient is a retryable failure (engine busy, connection reset).
	KindTransient
	// KindResourceExhausted is a retryable memory or allocation failure.
	KindResourceExhausted
	// KindGPUUnavailable is a GPU-specific failure eligible for CPU fallback.
	KindGPUUnavailable
)

// String returns the kind name for logs and metrics labels.
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindResourceExhausted:
		return "resource_exhausted"
	case KindGPUUnavailable:
		return "gpu_unavailable"
	default:
		return "fatal"
	}
}

// Retryable reports whether another attempt may succeed on the same device.
func (k ErrorKind) Retryable() bool {
	return k == KindTransient || k == KindResourceExhausted
}

// InferenceError tags an inference engine failure with its kind.
type InferenceError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// NewInferenceError creates a classified inference error.
func NewInferenceError(kind ErrorKind, op string, err error) error {
	return &InferenceError{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the classification from an error chain.
// Unclassified errors are treated as fatal.
func KindOf(err error) ErrorKind {
	var ie *InferenceError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return KindFatal
}
