package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the docdex engine configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Index      IndexConfig      `yaml:"index"`
	Inference  InferenceConfig  `yaml:"inference"`
	Search     SearchConfig     `yaml:"search"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Ghost      GhostConfig      `yaml:"ghost"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// IndexConfig holds index backend connection settings.
type IndexConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	DocIndex         string   `yaml:"doc_index"`
	ChunkIndex       string   `yaml:"chunk_index"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// InferenceConfig holds inference engine settings (OpenAI-compatible
// local runtime, e.g. llama.cpp or Ollama).
type InferenceConfig struct {
	BaseURL        string `yaml:"base_url"`
	CPUBaseURL     string `yaml:"cpu_base_url"` // CPU-only fallback endpoint, optional
	APIKey         string `yaml:"api_key"`
	EmbeddingModel string `yaml:"embedding_model"`
	RerankModel    string `yaml:"rerank_model"` // empty disables re-ranking
	Dimensions     int    `yaml:"dimensions"`
}

// SearchConfig holds retrieval orchestration tunables.
type SearchConfig struct {
	RRFK               int     `yaml:"rrf_k"`
	VectorTimeoutMs    int     `yaml:"vector_timeout_ms"`
	BM25TimeoutMs      int     `yaml:"bm25_timeout_ms"`
	ChunkTimeoutMs     int     `yaml:"chunk_timeout_ms"`
	EmbedTimeoutMs     int     `yaml:"embed_timeout_ms"`
	DefaultChunkWeight float64 `yaml:"default_chunk_weight"`
}

// ResilienceConfig holds retry and circuit breaker settings.
type ResilienceConfig struct {
	MaxRetries       int `yaml:"max_retries"`
	BackoffBaseMs    int `yaml:"backoff_base_ms"`
	FailureThreshold int `yaml:"failure_threshold"`
	HalfOpenAfterSec int `yaml:"half_open_after_sec"`
}

// GhostConfig holds stale-entry filtering settings.
type GhostConfig struct {
	StatTimeoutMs  int `yaml:"stat_timeout_ms"`
	Concurrency    int `yaml:"concurrency"`
	CleanupWorkers int `yaml:"cleanup_workers"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Index.KeyPrefix == "" {
		c.Index.KeyPrefix = "docdex:"
	}
	if c.Index.DocIndex == "" {
		c.Index.DocIndex = "docdex:files:idx"
	}
	if c.Index.ChunkIndex == "" {
		c.Index.ChunkIndex = "docdex:chunks:idx"
	}
	if c.Index.ReadinessTimeout <= 0 {
		c.Index.ReadinessTimeout = 10
	}
	if c.Search.RRFK <= 0 {
		c.Search.RRFK = 60
	}
	if c.Search.VectorTimeoutMs <= 0 {
		c.Search.VectorTimeoutMs = 4000
	}
	if c.Search.BM25TimeoutMs <= 0 {
		c.Search.BM25TimeoutMs = 2000
	}
	if c.Search.ChunkTimeoutMs <= 0 {
		c.Search.ChunkTimeoutMs = 4000
	}
	if c.Search.EmbedTimeoutMs <= 0 {
		c.Search.EmbedTimeoutMs = 3000
	}
	if c.Resilience.MaxRetries <= 0 {
		c.Resilience.MaxRetries = 2
	}
	if c.Resilience.BackoffBaseMs <= 0 {
		c.Resilience.BackoffBaseMs = 200
	}
	if c.Resilience.FailureThreshold <= 0 {
		c.Resilience.FailureThreshold = 5
	}
	if c.Resilience.HalfOpenAfterSec <= 0 {
		c.Resilience.HalfOpenAfterSec = 30
	}
	if c.Ghost.StatTimeoutMs <= 0 {
		c.Ghost.StatTimeoutMs = 250
	}
	if c.Ghost.Concurrency <= 0 {
		c.Ghost.Concurrency = 16
	}
	if c.Ghost.CleanupWorkers <= 0 {
		c.Ghost.CleanupWorkers = 2
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Index.Addrs) == 0 {
		return fmt.Errorf("index.addrs is required")
	}
	if c.Inference.BaseURL == "" {
		return fmt.Errorf("inference.base_url is required")
	}
	if c.Inference.EmbeddingModel == "" {
		return fmt.Errorf("inference.embedding_model is required")
	}
	if c.Search.DefaultChunkWeight < 0 || c.Search.DefaultChunkWeight > 1 {
		return fmt.Errorf("search.default_chunk_weight must be between 0 and 1")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
