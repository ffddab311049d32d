package chi

import (
	"encoding/json"
	"net/http"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/domain/model"
	healthuc "github.com/kailas-cloud/docdex/internal/usecase/health"
	"github.com/kailas-cloud/docdex/internal/usecase/resilience"
	searchuc "github.com/kailas-cloud/docdex/internal/usecase/search"
)

// Server exposes the search pipeline over HTTP.
type Server struct {
	search   *searchuc.Service
	health   *healthuc.Service
	breakers *resilience.Registry
	logger   *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	health *healthuc.Service,
	breakers *resilience.Registry,
	logger *zap.Logger,
) *Server {
	return &Server{
		search:   search,
		health:   health,
		breakers: breakers,
		logger:   logger,
	}
}

// Routes registers all API handlers on the router.
func (s *Server) Routes(r chirouter.Router) {
	r.Route("/api/v1", func(r chirouter.Router) {
		r.Post("/search", s.SearchDocuments)
		r.Get("/diagnostics/search", s.DiagnoseSearch)
		r.Get("/circuits", s.CircuitStats)
		r.Post("/circuits/{model}/reset", s.ResetCircuit)
	})
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// SearchDocuments handles POST /api/v1/search.
func (s *Server) SearchDocuments(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	out := s.search.Search(r.Context(), req.Query, req.toOptions())

	status := http.StatusOK
	if !out.Success {
		status = statusForFailure(out.Error)
	}
	writeJSON(w, status, outcomeToResponse(out))
}

// statusForFailure maps a failed outcome to an HTTP status. Request
// validation failures are the caller's fault; a pipeline with no
// usable source is a backend outage.
func statusForFailure(msg string) int {
	if msg == domain.ErrNoUsableSource.Error() {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadRequest
}

// DiagnoseSearch handles GET /api/v1/diagnostics/search.
func (s *Server) DiagnoseSearch(w http.ResponseWriter, r *http.Request) {
	report := s.search.DiagnoseSearchIssues(r.Context(), r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, reportToResponse(report))
}

// CircuitStats handles GET /api/v1/circuits.
func (s *Server) CircuitStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, circuitsToResponse(s.breakers.Snapshot()))
}

// ResetCircuit handles POST /api/v1/circuits/{model}/reset.
func (s *Server) ResetCircuit(w http.ResponseWriter, r *http.Request) {
	t := model.Type(chirouter.URLParam(r, "model"))
	if !t.IsValid() {
		writeError(w, http.StatusBadRequest, codeUnknownModelType,
			"unknown model type: "+string(t))
		return
	}

	s.breakers.Reset(t)
	s.logger.Info("circuit breaker reset", zap.String("model_type", string(t)))
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}
