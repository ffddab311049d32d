package index

import (
	"context"
	"testing"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/docdex/internal/domain/search/result"
)

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestSearchBM25_ParsesWithScoresReply(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	// WITHSCORES reply: [total, key, score, fields, ...]
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[1] == "docdex:files:idx"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("docdex:doc-1"),
			mock.RedisString("7.5"),
			mock.RedisArray(
				mock.RedisString("id"), mock.RedisString("doc-1"),
				mock.RedisString("path"), mock.RedisString("/docs/a.pdf"),
				mock.RedisString("title"), mock.RedisString("Guide"),
			),
			mock.RedisString("docdex:doc-2"),
			mock.RedisString("3.25"),
			mock.RedisArray(
				mock.RedisString("id"), mock.RedisString("doc-2"),
				mock.RedisString("path"), mock.RedisString("/docs/b.pdf"),
			),
		)))

	s := NewStoreForTest(c)
	results, err := s.SearchBM25(context.Background(), "deployment", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID() != "doc-1" || results[0].Score() != 7.5 {
		t.Errorf("unexpected first result: %s %f", results[0].ID(), results[0].Score())
	}
	if results[0].Path() != "/docs/a.pdf" {
		t.Errorf("path not parsed: %q", results[0].Path())
	}
	if results[0].Metadata()["title"] != "Guide" {
		t.Errorf("metadata not parsed: %v", results[0].Metadata())
	}
	if results[0].Origin() != result.SourceBM25 {
		t.Errorf("unexpected source: %s", results[0].Origin())
	}
}

func TestSearchBM25_EmptyReply(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	s := NewStoreForTest(c)
	results, err := s.SearchBM25(context.Background(), "nothing", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestSearchBM25_Validation(t *testing.T) {
	s := NewStoreForTest(nil) // client never called
	if _, err := s.SearchBM25(context.Background(), "", 10); err == nil {
		t.Error("expected error for empty query")
	}
	if _, err := s.SearchBM25(context.Background(), "q", 0); err == nil {
		t.Error("expected error for k=0")
	}
}

func TestSearchVector_ConvertsDistanceToSimilarity(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	// KNN reply: [total, key, fields, ...] with __vector_score holding
	// the cosine distance.
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[1] == "docdex:files:idx"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisString("docdex:doc-1"),
			mock.RedisArray(
				mock.RedisString("id"), mock.RedisString("doc-1"),
				mock.RedisString("path"), mock.RedisString("/docs/a.pdf"),
				mock.RedisString("__vector_score"), mock.RedisString("0.25"),
			),
		)))

	s := NewStoreForTest(c)
	results, err := s.SearchVector(context.Background(), []float32{0.1, 0.2}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Score() != 0.75 {
		t.Errorf("distance 0.25 should become similarity 0.75, got %f", results[0].Score())
	}
	if results[0].Origin() != result.SourceVector {
		t.Errorf("unexpected source: %s", results[0].Origin())
	}
	if results[0].MatchDetails()["similarity"] == "" {
		t.Error("similarity detail missing")
	}
}

func TestSearchChunks_UsesChunkIndex(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[1] == "docdex:chunks:idx"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisString("docdex:chunk-9"),
			mock.RedisArray(
				mock.RedisString("id"), mock.RedisString("chunk-9"),
				mock.RedisString("file_id"), mock.RedisString("doc-1"),
				mock.RedisString("__vector_score"), mock.RedisString("0.1"),
			),
		)))

	s := NewStoreForTest(c)
	results, err := s.SearchChunks(context.Background(), []float32{0.1}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Origin() != result.SourceChunk {
		t.Fatalf("unexpected results: %v", results)
	}
	if results[0].Metadata()["file_id"] != "doc-1" {
		t.Errorf("chunk metadata missing: %v", results[0].Metadata())
	}
}

func TestSearchVector_Validation(t *testing.T) {
	s := NewStoreForTest(nil)
	if _, err := s.SearchVector(context.Background(), nil, 5); err == nil {
		t.Error("expected error for empty vector")
	}
	if _, err := s.SearchVector(context.Background(), []float32{0.1}, 0); err == nil {
		t.Error("expected error for k=0")
	}
}

func TestBatchDeleteEmbeddings(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("DEL", "docdex:doc-1", "docdex:doc-2")).
		Return(mock.Result(mock.RedisInt64(2)))

	s := NewStoreForTest(c)
	err := s.BatchDeleteEmbeddings(context.Background(), []string{"doc-1", "doc-2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBatchDeleteEmbeddings_SkipsEmptyIDs(t *testing.T) {
	s := NewStoreForTest(nil) // client never called
	if err := s.BatchDeleteEmbeddings(context.Background(), []string{"", ""}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.BatchDeleteEmbeddings(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIndexDimensions(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "docdex:files:idx")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString("index_name"), mock.RedisString("docdex:files:idx"),
			mock.RedisString("attributes"), mock.RedisArray(
				mock.RedisArray(
					mock.RedisString("identifier"), mock.RedisString("content"),
					mock.RedisString("type"), mock.RedisString("TEXT"),
				),
				mock.RedisArray(
					mock.RedisString("identifier"), mock.RedisString("vector"),
					mock.RedisString("type"), mock.RedisString("VECTOR"),
					mock.RedisString("dim"), mock.RedisString("768"),
				),
			),
		)))

	s := NewStoreForTest(c)
	dim, err := s.IndexDimensions(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dim != 768 {
		t.Errorf("expected 768 dimensions, got %d", dim)
	}
}

func TestIndexDimensions_NoVectorAttribute(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "docdex:files:idx")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString("attributes"), mock.RedisArray(
				mock.RedisArray(
					mock.RedisString("identifier"), mock.RedisString("content"),
					mock.RedisString("type"), mock.RedisString("TEXT"),
				),
			),
		)))

	s := NewStoreForTest(c)
	if _, err := s.IndexDimensions(context.Background()); err == nil {
		t.Fatal("expected error for an index without a vector attribute")
	}
}

func TestVectorToBytes(t *testing.T) {
	blob := vectorToBytes([]float32{1.0})
	if len(blob) != 4 {
		t.Fatalf("expected 4 bytes per float32, got %d", len(blob))
	}
	// 1.0 is 0x3f800000 little-endian.
	if blob[0] != 0x00 || blob[3] != 0x3f {
		t.Errorf("unexpected encoding: % x", []byte(blob))
	}
}
