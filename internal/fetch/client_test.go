package fetch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pulseboard/dashsync/internal/event"
)

// TestNewClient tests client construction with various options.
func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("https://sync.example.com/v1", "test-token")

		if c.snapshotURL != "https://sync.example.com/v1/snapshot" {
			t.Errorf("snapshotURL = %q, want %q", c.snapshotURL, "https://sync.example.com/v1/snapshot")
		}
		if c.authToken != "test-token" {
			t.Errorf("authToken = %q, want %q", c.authToken, "test-token")
		}
		if c.httpClient.Timeout != 10*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 10*time.Second)
		}
		if c.maxRetries != 3 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 3)
		}
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
	})

	t.Run("trailing slash in base url", func(t *testing.T) {
		c := NewClient("https://sync.example.com/v1/", "")
		if c.snapshotURL != "https://sync.example.com/v1/snapshot" {
			t.Errorf("snapshotURL = %q, want %q", c.snapshotURL, "https://sync.example.com/v1/snapshot")
		}
	})

	t.Run("with options", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		c := NewClient("https://sync.example.com/v1", "",
			WithTimeout(15*time.Second),
			WithRetries(5, 500*time.Millisecond),
			WithLogger(logger),
		)
		if c.httpClient.Timeout != 15*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 15*time.Second)
		}
		if c.maxRetries != 5 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 5)
		}
		if c.retryBackoff != 500*time.Millisecond {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, 500*time.Millisecond)
		}
		if c.logger != logger {
			t.Error("logger not set correctly")
		}
	})
}

func TestSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/snapshot" {
			t.Errorf("path = %q, want /snapshot", r.URL.Path)
		}
		if got := r.URL.Query().Get("since_seq"); got != "42" {
			t.Errorf("since_seq = %q, want %q", got, "42")
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		w.Write([]byte(`{"events":[
			{"type":"analytics","seq":43,"ts":4300,"payload":{}},
			{"type":"system","seq":44,"ts":4400,"payload":{}}
		]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-token")

	events, err := c.Snapshot(context.Background(), 42)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Sequence != 43 || events[1].Sequence != 44 {
		t.Errorf("sequences = [%d %d], want [43 44]", events[0].Sequence, events[1].Sequence)
	}
	if events[0].Type != event.TypeAnalytics {
		t.Errorf("events[0].Type = %q, want analytics", events[0].Type)
	}
}

func TestSnapshotRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"events":[]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "", WithRetries(3, time.Millisecond))

	if _, err := c.Snapshot(context.Background(), 0); err != nil {
		t.Fatalf("Snapshot failed after retries: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server calls = %d, want 3", got)
	}
}

func TestSnapshotClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewClient(server.URL, "", WithRetries(3, time.Millisecond))

	_, err := c.Snapshot(context.Background(), 0)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", apiErr.StatusCode)
	}
	if apiErr.IsRetryable() {
		t.Error("401 reported retryable")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server calls = %d, want 1", got)
	}
}

func TestSnapshotErrorBodyParsed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":"token_expired","message":"session token expired"}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "stale-token")

	_, err := c.Snapshot(context.Background(), 0)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Code != "token_expired" {
		t.Errorf("Code = %q, want %q", apiErr.Code, "token_expired")
	}
	if apiErr.Message != "session token expired" {
		t.Errorf("Message = %q, want %q", apiErr.Message, "session token expired")
	}
	if want := "sync api error 403 (token_expired): session token expired"; apiErr.Error() != want {
		t.Errorf("Error() = %q, want %q", apiErr.Error(), want)
	}
}

func TestSnapshotErrorBodyNotJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>upstream sad</html>"))
	}))
	defer server.Close()

	c := NewClient(server.URL, "", WithRetries(0, time.Millisecond))

	_, err := c.Snapshot(context.Background(), 0)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Code != "" {
		t.Errorf("Code = %q, want empty for non-JSON body", apiErr.Code)
	}
	if apiErr.Message != http.StatusText(http.StatusBadGateway) {
		t.Errorf("Message = %q, want status text fallback", apiErr.Message)
	}
}

func TestSnapshotMaxRetriesExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(server.URL, "", WithRetries(2, time.Millisecond))

	_, err := c.Snapshot(context.Background(), 0)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "max retries exceeded") {
		t.Errorf("err = %v, want max retries exceeded", err)
	}
}

func TestSnapshotContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(server.URL, "", WithRetries(5, 10*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Snapshot(ctx, 0)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestSnapshotMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	c := NewClient(server.URL, "")

	if _, err := c.Snapshot(context.Background(), 0); err == nil {
		t.Fatal("expected parse error, got nil")
	}
}
