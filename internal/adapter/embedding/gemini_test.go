package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		RetryDelay:  time.Millisecond,
	}
}

// embedServer returns an httptest server that responds 429 for the first
// failures requests and then succeeds with a 3-dim vector.
func embedServer(t *testing.T, failures int, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if int(n) <= failures {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"embedding": map[string]any{"values": []float32{0.1, 0.2, 0.3}},
		})
	}))
}

func newTestEmbedder(t *testing.T, baseURL string, retry RetryPolicy) *GeminiEmbedder {
	t.Helper()
	e, err := NewGeminiEmbedder(Config{
		APIKey:    "test-key",
		BaseURL:   baseURL,
		Dimension: 3,
		Retry:     retry,
	})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestEmbedSuccess(t *testing.T) {
	var calls atomic.Int64
	srv := embedServer(t, 0, &calls)
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, fastRetry(3))
	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected 3-dim vector, got %d", len(vec))
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 request, got %d", calls.Load())
	}
}

func TestEmbedRetriesRateLimitThenSucceeds(t *testing.T) {
	var calls atomic.Int64
	srv := embedServer(t, 2, &calls)
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, fastRetry(3))
	if _, err := e.Embed(context.Background(), "hello"); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 requests, got %d", calls.Load())
	}
}

func TestEmbedExhaustsAttemptCeiling(t *testing.T) {
	var calls atomic.Int64
	srv := embedServer(t, 100, &calls)
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, fastRetry(3))
	_, err := e.Embed(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Errorf("expected a rate limit error, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected exactly 3 requests (attempt ceiling), got %d", calls.Load())
	}
}

func TestEmbedOtherErrorsUseFixedDelayBranch(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, fastRetry(3))
	_, err := e.Embed(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected failure")
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		t.Error("a 500 should not be classified as a rate limit")
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 requests, got %d", calls.Load())
	}
}

func TestEmbedDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"embedding": map[string]any{"values": []float32{0.1, 0.2}},
		})
	}))
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, fastRetry(1))
	if _, err := e.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestEmbedContextCancellation(t *testing.T) {
	var calls atomic.Int64
	srv := embedServer(t, 100, &calls)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newTestEmbedder(t, srv.URL, fastRetry(3))
	if _, err := e.Embed(ctx, "hello"); err == nil {
		t.Fatal("expected error from canceled context")
	}
	if calls.Load() > 1 {
		t.Errorf("canceled context should not keep issuing requests, saw %d", calls.Load())
	}
}

func TestRetryPolicyExponentialBranch(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 4, BaseDelay: time.Millisecond, RetryDelay: time.Millisecond}

	attempts := 0
	start := time.Now()
	err := p.Do(context.Background(), testLogger(), func(context.Context) error {
		attempts++
		return &RateLimitError{Message: "slow down"}
	})
	if err == nil {
		t.Fatal("expected terminal failure")
	}
	if attempts != 4 {
		t.Errorf("expected 4 attempts, got %d", attempts)
	}
	// delays 1ms + 2ms + 4ms between the four attempts
	if elapsed := time.Since(start); elapsed < 7*time.Millisecond {
		t.Errorf("expected doubling delays to take at least 7ms, took %v", elapsed)
	}
}

func TestMissingAPIKey(t *testing.T) {
	if _, err := NewGeminiEmbedder(Config{}); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestMockEmbedderCountsCalls(t *testing.T) {
	m := NewMockEmbedder(8)
	for i := 0; i < 3; i++ {
		if _, err := m.Embed(context.Background(), "text"); err != nil {
			t.Fatal(err)
		}
	}
	if m.Calls() != 3 {
		t.Errorf("expected 3 calls, got %d", m.Calls())
	}
}
