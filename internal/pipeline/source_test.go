package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/vitalscribe/internal/model"
)

func noSleep(t *testing.T) {
	t.Helper()
	orig := fetchSleepFunc
	fetchSleepFunc = func(d time.Duration) {}
	t.Cleanup(func() { fetchSleepFunc = orig })
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.txt")
	if err := os.WriteFile(path, []byte("  pulse 76\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := NewLoader(time.Second, model.HTTPConfig{}).Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != "pulse 76" {
		t.Errorf("got %q", got)
	}
}

func TestLoadStdin(t *testing.T) {
	l := NewLoader(time.Second, model.HTTPConfig{})
	l.stdin = strings.NewReader("temp 37.5")

	got, err := l.Load(context.Background(), "-")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != "temp 37.5" {
		t.Errorf("got %q", got)
	}
}

func TestLoadRejectsOversizedAndEmpty(t *testing.T) {
	l := NewLoader(time.Second, model.HTTPConfig{MaxBodyBytes: 8})

	l.stdin = strings.NewReader("this transcript is too long")
	if _, err := l.Load(context.Background(), "-"); err == nil || !strings.Contains(err.Error(), "exceeds 8 bytes") {
		t.Errorf("expected size error, got %v", err)
	}

	l.stdin = strings.NewReader("   \n")
	if _, err := l.Load(context.Background(), "-"); err == nil {
		t.Error("expected error for empty transcript")
	}

	if _, err := l.Load(context.Background(), filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadURL_TransientThenSuccess(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprint(w, "BP 130 over 85")
	}))
	defer server.Close()

	got, err := NewLoader(5*time.Second, model.HTTPConfig{}).Load(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if got != "BP 130 over 85" {
		t.Errorf("Unexpected body: %s", got)
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestLoadURL_PermanentFailure(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewLoader(5*time.Second, model.HTTPConfig{}).Load(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected error for 404, got nil")
	}
	if got := err.Error(); got != "unexpected status: 404 404 Not Found" {
		t.Errorf("Unexpected error: %s", got)
	}
	if attempts.Load() != 1 {
		t.Errorf("404 should not be retried, got %d attempts", attempts.Load())
	}
}

func TestIsRetryableFetchError(t *testing.T) {
	tests := []struct {
		err       string
		retryable bool
	}{
		{"unexpected status: 503 Service Unavailable", true},
		{"unexpected status: 500 Internal Server Error", true},
		{"unexpected status: 429 Too Many Requests", true},
		{"unexpected status: 404 Not Found", false},
		{"unexpected status: 401 Unauthorized", false},
		{"fetch: connection refused", true},
		{"create request: invalid URL", false},
		{"read body: unexpected EOF", false},
	}

	for _, tt := range tests {
		t.Run(tt.err, func(t *testing.T) {
			if got := isRetryableFetchError(fmt.Errorf("%s", tt.err)); got != tt.retryable {
				t.Errorf("isRetryableFetchError(%q) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}

	if isRetryableFetchError(nil) {
		t.Error("Expected nil error to not be retryable")
	}
}
