package health

import "context"

// IndexPinger checks index backend availability.
type IndexPinger interface {
	Ping(ctx context.Context) error
}

// InferenceChecker checks inference engine availability.
type InferenceChecker interface {
	HealthCheck(ctx context.Context) error
}
