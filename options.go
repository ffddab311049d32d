package docdex

import (
	"time"

	"go.uber.org/zap"
)

// Option configures the Client.
type Option func(*clientConfig)

// InferenceConfig points the client at an OpenAI-compatible inference
// server for query embeddings and re-ranking.
type InferenceConfig struct {
	BaseURL string
	// CPUBaseURL is the CPU-only endpoint used when GPU inference
	// fails. Empty reuses BaseURL.
	CPUBaseURL     string
	APIKey         string
	EmbeddingModel string
	// RerankModel empty disables re-ranking.
	RerankModel string
	Dimensions  int
}

type clientConfig struct {
	addrs      []string
	password   string
	keyPrefix  string
	docIndex   string
	chunkIndex string

	inference InferenceConfig

	rrfK          int
	blendScores   bool
	bm25Timeout   time.Duration
	vectorTimeout time.Duration
	chunkTimeout  time.Duration
	embedTimeout  time.Duration

	breakerThreshold int
	breakerCooldown  time.Duration
	maxRetries       int
	backoffBase      time.Duration

	ghostFiltering bool

	logger *zap.Logger
}

// WithIndex configures the index backend connection (Redis with the
// RediSearch module, or a compatible fork).
func WithIndex(addr, password string) Option {
	return func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	}
}

// WithKeyPrefix overrides the default key prefix and index names.
func WithKeyPrefix(prefix, docIndex, chunkIndex string) Option {
	return func(c *clientConfig) {
		c.keyPrefix = prefix
		c.docIndex = docIndex
		c.chunkIndex = chunkIndex
	}
}

// WithInference configures the embedding/re-ranking backend. Required.
func WithInference(cfg InferenceConfig) Option {
	return func(c *clientConfig) {
		c.inference = cfg
	}
}

// WithRRF tunes rank fusion: k flattens the contribution curve,
// blendScores mixes a fraction of the normalized raw scores in.
func WithRRF(k int, blendScores bool) Option {
	return func(c *clientConfig) {
		c.rrfK = k
		c.blendScores = blendScores
	}
}

// WithTimeouts bounds the per-source search stages. Zero keeps the
// stage default.
func WithTimeouts(bm25, vector, chunk, embed time.Duration) Option {
	return func(c *clientConfig) {
		c.bm25Timeout = bm25
		c.vectorTimeout = vector
		c.chunkTimeout = chunk
		c.embedTimeout = embed
	}
}

// WithResilience tunes retries and circuit breaking for inference
// calls.
func WithResilience(maxRetries int, backoffBase time.Duration, breakerThreshold int, breakerCooldown time.Duration) Option {
	return func(c *clientConfig) {
		c.maxRetries = maxRetries
		c.backoffBase = backoffBase
		c.breakerThreshold = breakerThreshold
		c.breakerCooldown = breakerCooldown
	}
}

// WithGhostFiltering drops results whose backing file no longer exists
// and schedules background index cleanup for them.
func WithGhostFiltering() Option {
	return func(c *clientConfig) {
		c.ghostFiltering = true
	}
}

// WithLogger enables structured logging. Default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}
