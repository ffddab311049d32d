package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/domain/model"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	reg := NewRegistry(5, time.Minute)
	b := reg.Get(model.Embedding)

	for i := 0; i < 4; i++ {
		b.RecordFailure()
		if err := b.Allow(); err != nil {
			t.Fatalf("breaker opened after %d failures, threshold is 5", i+1)
		}
	}

	b.RecordFailure()
	err := b.Allow()
	if err == nil {
		t.Fatal("expected open breaker after 5 consecutive failures")
	}
	if !errors.Is(err, domain.ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreaker_Independence(t *testing.T) {
	reg := NewRegistry(5, time.Minute)

	emb := reg.Get(model.Embedding)
	for i := 0; i < 5; i++ {
		emb.RecordFailure()
	}
	if err := emb.Allow(); err == nil {
		t.Fatal("embedding breaker should be open")
	}

	if err := reg.Get(model.Text).Allow(); err != nil {
		t.Errorf("text breaker must stay closed, got %v", err)
	}
	if err := reg.Get(model.Vision).Allow(); err != nil {
		t.Errorf("vision breaker must stay closed, got %v", err)
	}
}

func TestBreaker_SuccessResetsStreak(t *testing.T) {
	reg := NewRegistry(5, time.Minute)
	b := reg.Get(model.Text)

	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	b.RecordSuccess()
	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}

	if err := b.Allow(); err != nil {
		t.Fatalf("streak should have been reset by success, got %v", err)
	}

	stats := b.Snapshot()
	if stats.SuccessfulRequests != 1 {
		t.Errorf("expected 1 successful request, got %d", stats.SuccessfulRequests)
	}
	if stats.FailedRequests != 8 {
		t.Errorf("expected 8 failed requests, got %d", stats.FailedRequests)
	}
}

func TestBreaker_Reset(t *testing.T) {
	reg := NewRegistry(3, time.Minute)
	b := reg.Get(model.Embedding)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	if err := b.Allow(); err == nil {
		t.Fatal("breaker should be open")
	}

	reg.Reset(model.Embedding)

	if err := b.Allow(); err != nil {
		t.Fatalf("reset breaker should allow calls, got %v", err)
	}
	stats := b.Snapshot()
	if stats.State != "CLOSED" {
		t.Errorf("expected CLOSED after reset, got %s", stats.State)
	}
	if stats.ConsecutiveFailures != 0 || stats.FailedRequests != 0 {
		t.Errorf("expected cleared counters, got %+v", stats)
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	reg := NewRegistry(2, 10*time.Millisecond)
	b := reg.Get(model.Text)

	b.RecordFailure()
	b.RecordFailure()
	if err := b.Allow(); err == nil {
		t.Fatal("breaker should be open")
	}

	time.Sleep(20 * time.Millisecond)

	// Cooldown elapsed: the probe is admitted.
	if err := b.Allow(); err != nil {
		t.Fatalf("expected half-open probe to be admitted, got %v", err)
	}
	if got := b.Snapshot().State; got != "HALF_OPEN" {
		t.Errorf("expected HALF_OPEN, got %s", got)
	}

	// A failed probe trips the breaker again immediately.
	b.RecordFailure()
	if err := b.Allow(); err == nil {
		t.Fatal("failed probe should reopen the breaker")
	}
}

func TestBreaker_HalfOpenProbeSuccessCloses(t *testing.T) {
	reg := NewRegistry(2, 10*time.Millisecond)
	b := reg.Get(model.Text)

	b.RecordFailure()
	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	if err := b.Allow(); err != nil {
		t.Fatalf("probe should be admitted: %v", err)
	}
	b.RecordSuccess()

	if got := b.Snapshot().State; got != "CLOSED" {
		t.Errorf("expected CLOSED after successful probe, got %s", got)
	}
}

func TestRegistry_ConcurrentGet(t *testing.T) {
	reg := NewRegistry(5, time.Minute)

	var wg sync.WaitGroup
	breakers := make([]*Breaker, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			breakers[i] = reg.Get(model.Embedding)
		}(i)
	}
	wg.Wait()

	for i := 1; i < 50; i++ {
		if breakers[i] != breakers[0] {
			t.Fatal("concurrent Get returned distinct breakers for one model type")
		}
	}
}

func TestRegistry_Snapshot(t *testing.T) {
	reg := NewRegistry(5, time.Minute)
	reg.Get(model.Embedding).RecordFailure()
	reg.Get(model.Text).RecordSuccess()

	stats := reg.Snapshot()
	if len(stats) != 3 {
		t.Fatalf("expected all model types reported, got %d", len(stats))
	}
	if stats[model.Embedding].FailedRequests != 1 {
		t.Errorf("expected 1 embedding failure, got %d", stats[model.Embedding].FailedRequests)
	}
	if stats[model.Text].SuccessfulRequests != 1 {
		t.Errorf("expected 1 text success, got %d", stats[model.Text].SuccessfulRequests)
	}
	if stats[model.Vision].State != "CLOSED" {
		t.Errorf("untouched breaker must report CLOSED, got %s", stats[model.Vision].State)
	}
}
