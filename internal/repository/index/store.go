// Package index is the rueidis-backed search index adapter. Documents
// and chunks live as hashes under a shared key prefix, with one
// FT.SEARCH index over whole-document embeddings and BM25 text and a
// second one over chunk embeddings.
package index

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docdex/internal/domain"
)

// Config holds connection and index-layout parameters.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int

	// KeyPrefix is prepended to document ids to form hash keys.
	KeyPrefix string
	// DocIndex is the FT index over whole documents.
	DocIndex string
	// ChunkIndex is the FT index over chunk embeddings.
	ChunkIndex string
}

// Store implements the search repository and the ghost cleanup sink
// against Redis 8+ via rueidis.
type Store struct {
	client     rueidis.Client
	keyPrefix  string
	docIndex   string
	chunkIndex string
	logger     *zap.Logger
}

// NewStore connects to the index backend.
func NewStore(cfg Config, logger *zap.Logger) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "docdex:"
	}
	if cfg.DocIndex == "" {
		cfg.DocIndex = "docdex:files:idx"
	}
	if cfg.ChunkIndex == "" {
		cfg.ChunkIndex = "docdex:chunks:idx"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{
		client:     client,
		keyPrefix:  cfg.KeyPrefix,
		docIndex:   cfg.DocIndex,
		chunkIndex: cfg.ChunkIndex,
		logger:     logger,
	}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// WaitForReady polls Ping until the backend responds or the timeout
// expires. Used at startup so the service does not race its index.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for index backend: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// BatchDeleteEmbeddings removes stale document hashes. FT indexes over
// hashes drop entries automatically when the backing key disappears.
func (s *Store) BatchDeleteEmbeddings(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		keys = append(keys, s.keyPrefix+id)
	}
	if len(keys) == 0 {
		return nil
	}

	cmd := s.client.B().Del().Key(keys...).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("batch delete: %w", err)
	}
	s.logger.Info("deleted stale index entries", zap.Int("count", len(keys)))
	return nil
}

// IndexDimensions reads the vector dimensionality the document index
// was created with, via FT.INFO.
func (s *Store) IndexDimensions(ctx context.Context) (int, error) {
	cmd := s.client.B().Arbitrary("FT.INFO").Args(s.docIndex).Build()
	raw, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}

	dim, ok := findVectorDim(raw)
	if !ok {
		return 0, fmt.Errorf("index %q has no vector attribute", s.docIndex)
	}
	return dim, nil
}

// findVectorDim walks the FT.INFO reply looking for the "dim" token of
// a vector attribute. The reply is a flat key/value array whose
// "attributes" value nests one array per field.
func findVectorDim(raw []rueidis.RedisMessage) (int, bool) {
	for i := 0; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil || !strings.EqualFold(key, "attributes") {
			continue
		}
		attrs, err := raw[i+1].ToArray()
		if err != nil {
			return 0, false
		}
		for _, attr := range attrs {
			fields, err := attr.ToArray()
			if err != nil {
				continue
			}
			if dim, ok := dimFromAttribute(fields); ok {
				return dim, true
			}
		}
	}
	return 0, false
}

func dimFromAttribute(fields []rueidis.RedisMessage) (int, bool) {
	for j := 0; j+1 < len(fields); j++ {
		tok, err := fields[j].ToString()
		if err != nil || !strings.EqualFold(tok, "dim") {
			continue
		}
		val, err := fields[j+1].ToString()
		if err != nil {
			return 0, false
		}
		dim, err := strconv.Atoi(val)
		if err != nil {
			return 0, false
		}
		return dim, true
	}
	return 0, false
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}
