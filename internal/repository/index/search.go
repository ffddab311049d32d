package index

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docdex/internal/domain/search/result"
)

// Hash field names shared with the indexer.
const (
	fieldID      = "id"
	fieldPath    = "path"
	fieldTitle   = "title"
	fieldMime    = "mime"
	fieldFileID  = "file_id"
	fieldChunkIx = "chunk_index"

	vectorScoreField = "__vector_score"
)

var docReturnFields = []string{fieldID, fieldPath, fieldTitle, fieldMime}

var chunkReturnFields = []string{fieldID, fieldPath, fieldFileID, fieldChunkIx}

// SearchBM25 runs a lexical FT.SEARCH over document content.
func (s *Store) SearchBM25(ctx context.Context, query string, k int) ([]result.Result, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	queryStr := fmt.Sprintf("@content:(%s)", escapeQuery(query))
	args := []string{s.docIndex, queryStr}
	args = append(args, "RETURN", strconv.Itoa(len(docReturnFields)))
	args = append(args, docReturnFields...)
	args = append(args,
		"WITHSCORES",
		"LIMIT", "0", strconv.Itoa(k),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, fmt.Errorf("bm25 search: %w", err)
	}

	return parseBM25Result(raw, s.keyPrefix)
}

// SearchVector runs a KNN FT.SEARCH over whole-document embeddings.
func (s *Store) SearchVector(ctx context.Context, vector []float32, k int) ([]result.Result, error) {
	return s.searchKNN(ctx, s.docIndex, docReturnFields, result.SourceVector, vector, k)
}

// SearchChunks runs a KNN FT.SEARCH over chunk embeddings.
func (s *Store) SearchChunks(ctx context.Context, vector []float32, k int) ([]result.Result, error) {
	return s.searchKNN(ctx, s.chunkIndex, chunkReturnFields, result.SourceChunk, vector, k)
}

func (s *Store) searchKNN(
	ctx context.Context, index string, returnFields []string,
	source result.Source, vector []float32, k int,
) ([]result.Result, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	queryStr := fmt.Sprintf("*=>[KNN %d @vector $BLOB]", k)
	args := []string{index, queryStr}
	args = append(args, "RETURN", strconv.Itoa(len(returnFields)+1))
	args = append(args, returnFields...)
	args = append(args, vectorScoreField)
	args = append(args,
		"SORTBY", vectorScoreField,
		"LIMIT", "0", strconv.Itoa(k),
		"PARAMS", "2", "BLOB", vectorToBytes(vector),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	return parseKNNResult(raw, s.keyPrefix, source)
}

// --- Result parsing ---

// parseBM25Result walks the WITHSCORES reply.
// 3-stride: [total, key1, score1, fields1, key2, score2, fields2, ...]
func parseBM25Result(raw []rueidis.RedisMessage, keyPrefix string) ([]result.Result, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	results := make([]result.Result, 0, total)
	for i := 1; i+2 < len(raw); i += 3 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		scoreStr, err := raw[i+1].ToString()
		if err != nil {
			continue
		}
		score, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			continue
		}
		fieldMsgs, err := raw[i+2].ToArray()
		if err != nil {
			continue
		}

		fields := parseFieldPairs(fieldMsgs)
		results = append(results, toResult(key, keyPrefix, score, result.SourceBM25, fields, nil))
	}
	return results, nil
}

// parseKNNResult walks the KNN reply.
// 2-stride: [total, key1, fields1, key2, fields2, ...]
func parseKNNResult(raw []rueidis.RedisMessage, keyPrefix string, source result.Source) ([]result.Result, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	results := make([]result.Result, 0, total)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fieldMsgs, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		fields := parseFieldPairs(fieldMsgs)
		score := 0.0
		var details map[string]string
		if distStr, ok := fields[vectorScoreField]; ok {
			if dist, err := strconv.ParseFloat(distStr, 64); err == nil {
				score = max(0, 1.0-dist) // cosine distance → similarity, clamped to [0,1]
				details = map[string]string{"similarity": strconv.FormatFloat(score, 'f', 4, 64)}
			}
			delete(fields, vectorScoreField)
		}

		results = append(results, toResult(key, keyPrefix, score, source, fields, details))
	}
	return results, nil
}

func toResult(
	key, keyPrefix string, score float64, source result.Source,
	fields, details map[string]string,
) result.Result {
	id := fields[fieldID]
	if id == "" {
		id = strings.TrimPrefix(key, keyPrefix)
	}

	metadata := make(map[string]string)
	for _, f := range []string{fieldTitle, fieldMime, fieldFileID, fieldChunkIx} {
		if v := fields[f]; v != "" {
			metadata[f] = v
		}
	}
	if len(metadata) == 0 {
		metadata = nil
	}

	return result.New(id, fields[fieldPath], score, source, metadata, details)
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Query helpers ---

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
)

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
