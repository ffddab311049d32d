// Package docdex is the embeddable entry point for the hybrid document
// search engine: BM25 plus vector retrieval fused with reciprocal-rank
// fusion, degrading to lexical-only search when the inference side is
// slow or down.
package docdex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docdex/internal/domain/model"
	"github.com/kailas-cloud/docdex/internal/domain/search/request"
	"github.com/kailas-cloud/docdex/internal/repository/fsys"
	"github.com/kailas-cloud/docdex/internal/repository/index"
	"github.com/kailas-cloud/docdex/internal/transport/openai"
	"github.com/kailas-cloud/docdex/internal/usecase/ghost"
	healthuc "github.com/kailas-cloud/docdex/internal/usecase/health"
	"github.com/kailas-cloud/docdex/internal/usecase/resilience"
	searchuc "github.com/kailas-cloud/docdex/internal/usecase/search"
	"github.com/kailas-cloud/docdex/internal/worker"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the docdex SDK entry point.
type Client struct {
	store     *index.Store
	queue     *worker.Queue
	registry  *resilience.Registry
	searchSvc *searchuc.Service
	healthSvc *healthuc.Service
}

// New creates a docdex Client, connects to the index backend and wires
// the search pipeline.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		breakerThreshold: 5,
		breakerCooldown:  30 * time.Second,
		maxRetries:       2,
		backoffBase:      200 * time.Millisecond,
	}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("docdex: index address required (use WithIndex)")
	}
	if cfg.inference.BaseURL == "" || cfg.inference.EmbeddingModel == "" {
		return nil, errors.New("docdex: inference endpoint and embedding model required (use WithInference)")
	}

	store, err := index.NewStore(index.Config{
		Addrs:      cfg.addrs,
		Password:   cfg.password,
		KeyPrefix:  cfg.keyPrefix,
		DocIndex:   cfg.docIndex,
		ChunkIndex: cfg.chunkIndex,
	}, cfg.logger)
	if err != nil {
		return nil, fmt.Errorf("docdex: create index store: %w", err)
	}

	if err := store.WaitForReady(context.Background(), defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("docdex: index not ready: %w", err)
	}

	return wireClient(store, cfg)
}

func wireClient(store *index.Store, cfg *clientConfig) (*Client, error) {
	engine := openai.NewEngine(&openai.Config{
		APIKey:         cfg.inference.APIKey,
		BaseURL:        cfg.inference.BaseURL,
		CPUBaseURL:     cfg.inference.CPUBaseURL,
		EmbeddingModel: cfg.inference.EmbeddingModel,
		RerankModel:    cfg.inference.RerankModel,
		Dimensions:     cfg.inference.Dimensions,
		Logger:         cfg.logger,
	})

	registry := resilience.NewRegistry(cfg.breakerThreshold, cfg.breakerCooldown)
	exec := resilience.NewExecutor(registry, cfg.maxRetries, cfg.backoffBase, cfg.logger)

	searchSvc := searchuc.New(store, engine, exec, searchuc.Config{
		RRFK:          cfg.rrfK,
		BlendScores:   cfg.blendScores,
		BM25Timeout:   cfg.bm25Timeout,
		VectorTimeout: cfg.vectorTimeout,
		ChunkTimeout:  cfg.chunkTimeout,
		EmbedTimeout:  cfg.embedTimeout,
	}, cfg.logger)

	var queue *worker.Queue
	if cfg.ghostFiltering {
		q, err := worker.NewQueue(2, cfg.logger)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("docdex: create cleanup queue: %w", err)
		}
		queue = q
		filter := ghost.New(fsys.New(cfg.logger), store, queue, 0, 0, cfg.logger)
		searchSvc = searchSvc.WithGhostFilter(filter)
	}

	return &Client{
		store:     store,
		queue:     queue,
		registry:  registry,
		searchSvc: searchSvc,
		healthSvc: healthuc.New(store, engine),
	}, nil
}

// Search runs the retrieval pipeline. Degraded execution is reported
// through the outcome metadata, not as an error; err is non-nil only
// when the request itself is invalid.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) (SearchOutcome, error) {
	out := c.searchSvc.Search(ctx, query, request.Options{
		TopK:            opts.TopK,
		MinScore:        opts.MinScore,
		Mode:            opts.Mode.internal(),
		Rerank:          opts.Rerank,
		RerankTopN:      opts.RerankTopN,
		ChunkWeight:     opts.ChunkWeight,
		ChunkTopK:       opts.ChunkTopK,
		CorrectSpelling: opts.CorrectSpelling,
		ExpandSynonyms:  opts.ExpandSynonyms,
		ContextFileIDs:  opts.ContextFileIDs,
	})
	return fromOutcome(out), nil
}

// Diagnose probes every pipeline stage and reports what is broken.
func (c *Client) Diagnose(ctx context.Context, query string) Diagnostics {
	return fromReport(c.searchSvc.DiagnoseSearchIssues(ctx, query))
}

// CircuitStats returns a snapshot of all circuit breakers keyed by
// model type.
func (c *Client) CircuitStats() map[string]CircuitStats {
	return fromSnapshot(c.registry.Snapshot())
}

// ResetCircuit force-closes the breaker for a model type ("text",
// "embedding" or "vision").
func (c *Client) ResetCircuit(modelType string) error {
	t := model.Type(modelType)
	if !t.IsValid() {
		return fmt.Errorf("docdex: unknown model type %q", modelType)
	}
	c.registry.Reset(t)
	return nil
}

// Health checks the index and inference backends.
func (c *Client) Health(ctx context.Context) HealthReport {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthReport{Status: string(report.Status), Checks: checks}
}

// Ping checks index connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close releases all resources. Pending cleanup jobs are abandoned.
func (c *Client) Close() {
	if c.queue != nil {
		c.queue.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}
