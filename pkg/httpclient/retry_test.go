package httpclient

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestRetryTransport_SuccessOnFirstAttempt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	transport := newRetryTransport(http.DefaultTransport, cfg)

	req, err := http.NewRequest("GET", server.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestRetryTransport_RetriesOn5xx(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt := atomic.AddInt32(&attempts, 1)
		if attempt < 3 {
			w.WriteHeader(http.StatusInternalServerError)
		} else {
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.RetryBackoff = 10 * time.Millisecond // Speed up test
	transport := newRetryTransport(http.DefaultTransport, cfg)

	req, err := http.NewRequest("GET", server.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryTransport_NoRetryForPOSTByDefault(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.RetryBackoff = 10 * time.Millisecond
	transport := newRetryTransport(http.DefaultTransport, cfg)

	req, err := http.NewRequest("POST", server.URL, bytes.NewBufferString(`{}`))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if attempts != 1 {
		t.Errorf("expected 1 attempt for POST, got %d", attempts)
	}
}

func TestRetryTransport_POSTRetriedWhenAllowed(t *testing.T) {
	var attempts int32
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		buf.ReadFrom(r.Body)
		bodies = append(bodies, buf.String())

		attempt := atomic.AddInt32(&attempts, 1)
		if attempt < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.RetryBackoff = 10 * time.Millisecond
	cfg.AllowNonIdempotentRetry = true
	transport := newRetryTransport(http.DefaultTransport, cfg)

	req, err := http.NewRequest("POST", server.URL, bytes.NewBufferString(`{"urn":"x"}`))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}

	// The retried request must carry the full body again
	for i, body := range bodies {
		if body != `{"urn":"x"}` {
			t.Errorf("attempt %d body = %q, want full payload", i+1, body)
		}
	}
}

func TestRetryTransport_HonorsRetryAfter(t *testing.T) {
	var attempts int32
	start := time.Now()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt := atomic.AddInt32(&attempts, 1)
		if attempt < 2 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
		} else {
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.RetryBackoff = 5 * time.Second // Retry-After (1s) should win
	cfg.MaxBackoff = 10 * time.Second
	transport := newRetryTransport(http.DefaultTransport, cfg)

	req, err := http.NewRequest("GET", server.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	elapsed := time.Since(start)
	if elapsed >= 5*time.Second {
		t.Errorf("Retry-After not honored, waited %v", elapsed)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestRetryTransport_ExhaustsAttempts(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.RetryAttempts = 2
	cfg.RetryBackoff = 5 * time.Millisecond
	transport := newRetryTransport(http.DefaultTransport, cfg)

	req, err := http.NewRequest("GET", server.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if attempts != 3 {
		t.Errorf("expected 3 attempts (1 + 2 retries), got %d", attempts)
	}
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("expected final 502, got %d", resp.StatusCode)
	}
}

func TestCalculateBackoff_CappedAtMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetryBackoff = 100 * time.Millisecond
	cfg.MaxBackoff = 500 * time.Millisecond
	transport := newRetryTransport(http.DefaultTransport, cfg)

	for attempt := 1; attempt <= 10; attempt++ {
		delay := transport.calculateBackoff(attempt)
		// Max plus 20% jitter headroom
		if delay > 600*time.Millisecond {
			t.Errorf("attempt %d backoff %v exceeds cap", attempt, delay)
		}
	}
}
