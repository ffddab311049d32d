package metrics

import "github.com/prometheus/client_golang/prometheus"

// Inference Prometheus metrics.
var (
	InferenceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docdex",
			Name:      "inference_requests_total",
			Help:      "Total number of inference engine requests",
		},
		[]string{"model_type", "operation", "status"},
	)

	InferenceRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docdex",
			Name:      "inference_request_duration_seconds",
			Help:      "Inference request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"model_type", "operation"},
	)

	InferenceErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docdex",
			Name:      "inference_errors_total",
			Help:      "Total inference errors by kind",
		},
		[]string{"model_type", "kind"},
	)

	InferenceRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docdex",
			Name:      "inference_retries_total",
			Help:      "Retry attempts against the inference engine",
		},
		[]string{"model_type"},
	)

	InferenceCPUFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docdex",
			Name:      "inference_cpu_fallbacks_total",
			Help:      "GPU failures retried on the CPU endpoint",
		},
		[]string{"model_type"},
	)

	// CircuitState exports the breaker state per model type:
	// 0=closed, 1=half-open, 2=open.
	CircuitState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "docdex",
			Name:      "circuit_state",
			Help:      "Circuit breaker state per model type (0=closed, 1=half-open, 2=open)",
		},
		[]string{"model_type"},
	)
)

var inferenceMetricsRegistered bool

// RegisterInferenceMetrics registers Prometheus inference metrics. Must be called once from main.
func RegisterInferenceMetrics() {
	if inferenceMetricsRegistered {
		return
	}
	prometheus.MustRegister(InferenceRequestsTotal)
	prometheus.MustRegister(InferenceRequestDuration)
	prometheus.MustRegister(InferenceErrorsTotal)
	prometheus.MustRegister(InferenceRetriesTotal)
	prometheus.MustRegister(InferenceCPUFallbacksTotal)
	prometheus.MustRegister(CircuitState)
	inferenceMetricsRegistered = true
}
