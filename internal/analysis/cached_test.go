package analysis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"triagegate/internal/cache"
)

type countingAnalyzer struct {
	calls atomic.Int64
	block chan struct{} // optional: hold calls open
	err   error
}

func (a *countingAnalyzer) Analyze(ctx context.Context, req *Request) (*Result, error) {
	a.calls.Add(1)
	if a.block != nil {
		<-a.block
	}
	if a.err != nil {
		return nil, a.err
	}
	return &Result{Intent: "symptom_reporting", Summary: req.Text}, nil
}

func newTestCache() cache.Cache {
	return cache.NewEngine(cache.Config{MemoryCapacity: 100, PatternCapacity: 50}, nil)
}

func TestCachedAnalyzerMemoizes(t *testing.T) {
	inner := &countingAnalyzer{}
	cached := NewCachedAnalyzer(inner, newTestCache(), time.Hour)
	ctx := context.Background()

	req := &Request{Text: "I have a headache", Context: map[string]string{"stage": "symptoms"}}

	result, tier, err := cached.Analyze(ctx, req)
	if err != nil {
		t.Fatalf("first Analyze failed: %v", err)
	}
	if tier != "" {
		t.Fatalf("first call should not be a cache hit, tier = %q", tier)
	}
	if result.Intent != "symptom_reporting" {
		t.Fatalf("unexpected result %#v", result)
	}

	result, tier, err = cached.Analyze(ctx, req)
	if err != nil {
		t.Fatalf("second Analyze failed: %v", err)
	}
	if tier != cache.TierMemory {
		t.Fatalf("second call should hit the memory tier, got %q", tier)
	}
	if result.Intent != "symptom_reporting" {
		t.Fatalf("unexpected cached result %#v", result)
	}

	if got := inner.calls.Load(); got != 1 {
		t.Fatalf("inner analyzer called %d times, want 1", got)
	}
}

func TestCachedAnalyzerDeduplicatesConcurrentMisses(t *testing.T) {
	inner := &countingAnalyzer{block: make(chan struct{})}
	cached := NewCachedAnalyzer(inner, newTestCache(), time.Hour)
	ctx := context.Background()

	req := &Request{Text: "chest pain", Context: map[string]string{"urgency": "high"}}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := cached.Analyze(ctx, req); err != nil {
				t.Errorf("Analyze failed: %v", err)
			}
		}()
	}

	// Give the goroutines time to pile onto the same flight, then
	// release the single upstream call.
	time.Sleep(50 * time.Millisecond)
	close(inner.block)
	wg.Wait()

	if got := inner.calls.Load(); got != 1 {
		t.Fatalf("expected one shared upstream call, got %d", got)
	}
}

func TestCachedAnalyzerPropagatesUpstreamError(t *testing.T) {
	inner := &countingAnalyzer{err: errors.New("upstream down")}
	cached := NewCachedAnalyzer(inner, newTestCache(), time.Hour)

	_, _, err := cached.Analyze(context.Background(), &Request{Text: "hello"})
	if err == nil {
		t.Fatalf("expected upstream error to surface")
	}
}

func TestCachedAnalyzerValidatesRequest(t *testing.T) {
	cached := NewCachedAnalyzer(&countingAnalyzer{}, newTestCache(), time.Hour)

	if _, _, err := cached.Analyze(context.Background(), &Request{}); err == nil {
		t.Fatalf("expected validation error for empty text")
	}
}
