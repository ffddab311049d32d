package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure. Search keeps running in
	// bm25-fallback when only the inference side is down.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	index     IndexPinger
	inference InferenceChecker
}

// New creates a Service. inference can be nil.
func New(index IndexPinger, inference InferenceChecker) *Service {
	return &Service{index: index, inference: inference}
}

// Check runs health checks against all components. A dead index is
// unhealthy outright; a dead inference engine only degrades, since
// lexical search still works without it.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.index.Ping(ctx); err != nil {
		checks["index"] = CheckError
	} else {
		checks["index"] = CheckOK
	}

	if s.inference != nil {
		if err := s.inference.HealthCheck(ctx); err != nil {
			checks["inference"] = CheckError
		} else {
			checks["inference"] = CheckOK
		}
	}

	status := Healthy
	if checks["inference"] == CheckError {
		status = Degraded
	}
	if checks["index"] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}
