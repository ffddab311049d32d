package ghost

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/docdex/internal/domain/search/result"
	"github.com/kailas-cloud/docdex/internal/worker"
)

// --- Mocks ---

type mockChecker struct {
	missing map[string]bool
}

func (m *mockChecker) Exists(_ context.Context, path string) bool {
	return !m.missing[path]
}

type mockSink struct {
	mu      sync.Mutex
	calls   int
	lastIDs []string
}

func (m *mockSink) BatchDeleteEmbeddings(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastIDs = ids
	return nil
}

// syncQueue runs jobs inline so tests can assert without sleeping.
type syncQueue struct {
	submitted int
}

func (q *syncQueue) Submit(_ string, job worker.Job) {
	q.submitted++
	_ = job(context.Background())
}

func fused(id, path string) result.Fused {
	base := result.New(id, path, 0.5, result.SourceBM25, nil, nil)
	return result.NewFused(base, 0.5, []result.Source{result.SourceBM25})
}

// --- Tests ---

func TestValidateExistence_DropsGhosts(t *testing.T) {
	checker := &mockChecker{missing: map[string]bool{"/docs/gone.pdf": true}}
	sink := &mockSink{}
	queue := &syncQueue{}
	f := New(checker, sink, queue, 4, time.Second, nil)

	results := []result.Fused{
		fused("a", "/docs/kept.pdf"),
		fused("b", "/docs/gone.pdf"),
	}

	valid, ghosts := f.ValidateExistence(context.Background(), results, true)
	if len(valid) != 1 {
		t.Fatalf("expected 1 valid result, got %d", len(valid))
	}
	if valid[0].ID() != "a" {
		t.Errorf("expected 'a' to survive, got %s", valid[0].ID())
	}
	if ghosts != 1 {
		t.Errorf("expected ghostCount=1, got %d", ghosts)
	}

	if queue.submitted != 1 {
		t.Fatalf("expected exactly 1 cleanup job, got %d", queue.submitted)
	}
	if sink.calls != 1 {
		t.Fatalf("expected 1 batch delete, got %d", sink.calls)
	}
	if len(sink.lastIDs) != 1 || sink.lastIDs[0] != "b" {
		t.Errorf("expected batch delete of [b], got %v", sink.lastIDs)
	}
}

func TestValidateExistence_NoGhostsNoCleanup(t *testing.T) {
	checker := &mockChecker{}
	sink := &mockSink{}
	queue := &syncQueue{}
	f := New(checker, sink, queue, 4, time.Second, nil)

	results := []result.Fused{fused("a", "/docs/a.txt"), fused("b", "/docs/b.txt")}

	valid, ghosts := f.ValidateExistence(context.Background(), results, true)
	if len(valid) != 2 || ghosts != 0 {
		t.Fatalf("expected all valid, got %d valid / %d ghosts", len(valid), ghosts)
	}
	if queue.submitted != 0 {
		t.Errorf("no cleanup job expected, got %d", queue.submitted)
	}
}

func TestValidateExistence_CleanupNotTriggered(t *testing.T) {
	checker := &mockChecker{missing: map[string]bool{"/docs/gone.pdf": true}}
	sink := &mockSink{}
	queue := &syncQueue{}
	f := New(checker, sink, queue, 4, time.Second, nil)

	_, ghosts := f.ValidateExistence(context.Background(),
		[]result.Fused{fused("b", "/docs/gone.pdf")}, false)
	if ghosts != 1 {
		t.Fatalf("expected 1 ghost, got %d", ghosts)
	}
	if queue.submitted != 0 {
		t.Error("cleanup must not be scheduled when triggerCleanup=false")
	}
}

func TestValidateExistence_KeepsPathlessEntries(t *testing.T) {
	checker := &mockChecker{missing: map[string]bool{"": true}}
	f := New(checker, nil, nil, 4, time.Second, nil)

	valid, ghosts := f.ValidateExistence(context.Background(),
		[]result.Fused{fused("virtual", "")}, true)
	if len(valid) != 1 || ghosts != 0 {
		t.Errorf("pathless entries must be kept, got %d valid / %d ghosts", len(valid), ghosts)
	}
}

func TestValidateExistence_PreservesOrder(t *testing.T) {
	checker := &mockChecker{missing: map[string]bool{"/2": true}}
	f := New(checker, nil, nil, 2, time.Second, nil)

	results := []result.Fused{
		fused("r0", "/0"), fused("r1", "/1"), fused("r2", "/2"),
		fused("r3", "/3"), fused("r4", "/4"),
	}

	valid, ghosts := f.ValidateExistence(context.Background(), results, false)
	if ghosts != 1 {
		t.Fatalf("expected 1 ghost, got %d", ghosts)
	}
	want := []string{"r0", "r1", "r3", "r4"}
	for i, r := range valid {
		if r.ID() != want[i] {
			t.Fatalf("order not preserved: got %s at %d, want %s", r.ID(), i, want[i])
		}
	}
}

func TestValidateExistence_Empty(t *testing.T) {
	f := New(&mockChecker{}, nil, nil, 4, time.Second, nil)
	valid, ghosts := f.ValidateExistence(context.Background(), nil, true)
	if len(valid) != 0 || ghosts != 0 {
		t.Errorf("expected empty output, got %d / %d", len(valid), ghosts)
	}
}
