// Package openai adapts an OpenAI-compatible inference server (e.g. a
// local llama.cpp or vLLM gateway) to the search engine contract.
// Failures are classified here, at the boundary, so the resilience
// layer decides on typed kinds instead of message substrings.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/domain/model"
	"github.com/kailas-cloud/docdex/internal/domain/search/result"
	"github.com/kailas-cloud/docdex/internal/metrics"
)

// Engine talks to the inference server for embeddings and re-ranking.
// When a CPU endpoint is configured, forceCPU routes the call there.
type Engine struct {
	gpuClient  *openai.Client
	cpuClient  *openai.Client
	embedModel string
	// rerankModel empty disables re-ranking entirely.
	rerankModel string
	dimensions  int
	logger      *zap.Logger
}

// Config holds the inference server settings.
type Config struct {
	APIKey  string
	BaseURL string
	// CPUBaseURL is the CPU-only endpoint used on GPU fallback.
	// Empty reuses BaseURL.
	CPUBaseURL     string
	EmbeddingModel string
	RerankModel    string
	Dimensions     int
	Logger         *zap.Logger
}

// NewEngine creates an inference engine adapter.
func NewEngine(cfg *Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	gpuCfg := openai.DefaultConfig(cfg.APIKey)
	gpuCfg.BaseURL = cfg.BaseURL
	gpuClient := openai.NewClientWithConfig(gpuCfg)

	cpuClient := gpuClient
	if cfg.CPUBaseURL != "" && cfg.CPUBaseURL != cfg.BaseURL {
		cpuCfg := openai.DefaultConfig(cfg.APIKey)
		cpuCfg.BaseURL = cfg.CPUBaseURL
		cpuClient = openai.NewClientWithConfig(cpuCfg)
	}

	return &Engine{
		gpuClient:   gpuClient,
		cpuClient:   cpuClient,
		embedModel:  cfg.EmbeddingModel,
		rerankModel: cfg.RerankModel,
		dimensions:  cfg.Dimensions,
		logger:      logger,
	}
}

func (e *Engine) client(forceCPU bool) *openai.Client {
	if forceCPU {
		return e.cpuClient
	}
	return e.gpuClient
}

// Embed returns the query vector and the model that produced it.
func (e *Engine) Embed(ctx context.Context, text string, forceCPU bool) ([]float32, string, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          openai.EmbeddingModel(e.embedModel),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()
	resp, err := e.client(forceCPU).CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.InferenceRequestsTotal.WithLabelValues(
			string(model.Embedding), "embed", "error").Inc()
		return nil, "", classify("embed query", err)
	}
	if len(resp.Data) == 0 {
		metrics.InferenceRequestsTotal.WithLabelValues(
			string(model.Embedding), "embed", "error").Inc()
		return nil, "", domain.NewInferenceError(domain.KindFatal, "embed query",
			errors.New("empty embedding response"))
	}

	metrics.InferenceRequestsTotal.WithLabelValues(
		string(model.Embedding), "embed", "success").Inc()
	metrics.InferenceRequestDuration.WithLabelValues(
		string(model.Embedding), "embed").Observe(duration.Seconds())

	modelID := string(resp.Model)
	if modelID == "" {
		modelID = e.embedModel
	}
	return resp.Data[0].Embedding, modelID, nil
}

// rerankReply is the JSON shape the rerank prompt asks the model for.
type rerankReply struct {
	Ranking []string `json:"ranking"`
}

// Rerank reorders the fused head by relevance using the text model.
// The model receives the query plus one line per candidate and must
// answer with a JSON object listing candidate ids, best first. Ids the
// model omits or invents keep the original tail order.
func (e *Engine) Rerank(
	ctx context.Context, query string,
	docs []result.Fused, topN int, forceCPU bool,
) ([]result.Fused, error) {
	if e.rerankModel == "" {
		return nil, domain.NewInferenceError(domain.KindFatal, "rerank", domain.ErrRerankerUnavailable)
	}
	if len(docs) == 0 {
		return docs, nil
	}
	if topN > len(docs) {
		topN = len(docs)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %s\n\nCandidates:\n", query)
	for i := range docs[:topN] {
		d := &docs[i]
		label := d.Path()
		if title := d.Metadata()["title"]; title != "" {
			label = title
		}
		fmt.Fprintf(&sb, "- id=%s %s\n", d.ID(), label)
	}
	sb.WriteString("\nReturn JSON: {\"ranking\": [\"<id>\", ...]} with every candidate id ordered by relevance to the query, most relevant first.")

	start := time.Now()
	resp, err := e.client(forceCPU).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.rerankModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You rank document search results. Answer with JSON only.",
			},
			{Role: openai.ChatMessageRoleUser, Content: sb.String()},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	})
	duration := time.Since(start)

	if err != nil {
		metrics.InferenceRequestsTotal.WithLabelValues(
			string(model.Text), "rerank", "error").Inc()
		return nil, classify("rerank", err)
	}
	if len(resp.Choices) == 0 {
		metrics.InferenceRequestsTotal.WithLabelValues(
			string(model.Text), "rerank", "error").Inc()
		return nil, domain.NewInferenceError(domain.KindFatal, "rerank",
			errors.New("empty completion response"))
	}

	var reply rerankReply
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &reply); err != nil {
		metrics.InferenceRequestsTotal.WithLabelValues(
			string(model.Text), "rerank", "error").Inc()
		return nil, domain.NewInferenceError(domain.KindFatal, "rerank",
			fmt.Errorf("malformed ranking reply: %w", err))
	}

	metrics.InferenceRequestsTotal.WithLabelValues(
		string(model.Text), "rerank", "success").Inc()
	metrics.InferenceRequestDuration.WithLabelValues(
		string(model.Text), "rerank").Observe(duration.Seconds())

	return reorder(docs[:topN], reply.Ranking), nil
}

// reorder applies the model's id ranking, appending any candidates the
// model failed to mention in their original order.
func reorder(docs []result.Fused, ranking []string) []result.Fused {
	byID := make(map[string]int, len(docs))
	for i := range docs {
		byID[docs[i].ID()] = i
	}

	out := make([]result.Fused, 0, len(docs))
	taken := make(map[int]bool, len(docs))
	for _, id := range ranking {
		i, ok := byID[id]
		if !ok || taken[i] {
			continue
		}
		out = append(out, docs[i])
		taken[i] = true
	}
	for i := range docs {
		if !taken[i] {
			out = append(out, docs[i])
		}
	}
	return out
}

// RerankAvailable reports whether a rerank model is configured.
func (e *Engine) RerankAvailable() bool { return e.rerankModel != "" }

// Dimensions returns the configured embedding dimensionality, zero
// when the model default is used.
func (e *Engine) Dimensions() int { return e.dimensions }

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Engine) HealthCheck(ctx context.Context) error {
	if _, err := e.gpuClient.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// classify assigns an error kind from the API response. This is the
// single place that inspects statuses and messages; everything above
// the boundary switches on domain.ErrorKind.
func classify(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return domain.NewInferenceError(kindOfStatus(apiErr.HTTPStatusCode, apiErr.Message), op,
			fmt.Errorf("inference API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message))
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return domain.NewInferenceError(kindOfStatus(reqErr.HTTPStatusCode, string(reqErr.Body)), op,
			fmt.Errorf("inference API error %d: %s", reqErr.HTTPStatusCode, string(reqErr.Body)))
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	// Network-level failure: the server may come back.
	return domain.NewInferenceError(domain.KindTransient, op, err)
}

func kindOfStatus(status int, message string) domain.ErrorKind {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "cuda"), strings.Contains(msg, "gpu"),
		strings.Contains(msg, "device unavailable"):
		return domain.KindGPUUnavailable
	case strings.Contains(msg, "out of memory"), strings.Contains(msg, "oom"):
		return domain.KindResourceExhausted
	}

	switch status {
	case http.StatusTooManyRequests, http.StatusRequestTimeout,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return domain.KindTransient
	case http.StatusInsufficientStorage:
		return domain.KindResourceExhausted
	default:
		return domain.KindFatal
	}
}
