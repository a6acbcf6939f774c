package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"whisperer/internal/retry"
	"whisperer/internal/services"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestFetchUsesConditionalRequests(t *testing.T) {
	const body = `<rss version="2.0"><channel><title>x</title></channel></rss>`
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("User-Agent") != "whisperer-test" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	fetcher := NewFetcher("whisperer-test", t.TempDir())
	doc, err := fetcher.Fetch(context.Background(), "tgn", server.URL)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if doc.NotModified || string(doc.Body) != body {
		t.Fatalf("unexpected first document %+v", doc)
	}

	doc, err = fetcher.Fetch(context.Background(), "tgn", server.URL)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !doc.NotModified || string(doc.Body) != body {
		t.Fatalf("expected cached body on 304, got %+v", doc)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 requests, got %d", calls.Load())
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("<rss/>"))
	}))
	defer server.Close()

	fetcher := NewFetcher("ua", "", WithRetryPolicy(retry.Policy{MaxAttempts: 3, Sleep: noSleep}))
	if _, err := fetcher.Fetch(context.Background(), "wcl", server.URL); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}

func TestFetchNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	fetcher := NewFetcher("ua", "", WithRetryPolicy(retry.Policy{MaxAttempts: 3, Sleep: noSleep}))
	_, err := fetcher.Fetch(context.Background(), "wcl", server.URL)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}
