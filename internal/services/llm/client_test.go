package llm

import (
	"context"
	"encoding/json"
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

func reply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	payload := map[string]any{
		"model": "demo-model",
		"choices": []any{
			map[string]any{"message": map[string]any{"content": content}},
		},
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestCompleteSendsPromptsAndHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("authorization = %q", got)
		}
		if got := r.Header.Get("X-Title"); got != "whisperer" {
			t.Errorf("x-title = %q", got)
		}
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "transcript" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		reply(t, w, "<synopsis>ok</synopsis>")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model", Title: "whisperer"})
	got, err := client.Complete(context.Background(), "system prompt", "transcript")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if got != "<synopsis>ok</synopsis>" {
		t.Fatalf("content = %q", got)
	}
}

func TestCompleteRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		reply(t, w, "done")
	}))
	defer server.Close()

	var waited []time.Duration
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL},
		WithSleeper(func(_ context.Context, d time.Duration) error {
			waited = append(waited, d)
			return nil
		}))
	got, err := client.Complete(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "done" || calls.Load() != 2 {
		t.Fatalf("content=%q calls=%d", got, calls.Load())
	}
	if len(waited) != 1 || waited[0] != 3*time.Second {
		t.Fatalf("waited %v, want [3s]", waited)
	}
}

func TestCompleteRetriesEmptyContent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			reply(t, w, "")
			return
		}
		reply(t, w, "second time")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL}, WithSleeper(noSleep))
	got, err := client.Complete(context.Background(), "s", "u")
	if err != nil || got != "second time" {
		t.Fatalf("Complete = %q, %v", got, err)
	}
}

func TestCompleteDoesNotRetryUnauthorized(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL}, WithSleeper(noSleep))
	_, err := client.Complete(context.Background(), "s", "u")
	var statusErr *retry.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 status error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestCompleteRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.Complete(context.Background(), "s", "u")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestClientHealthCheckCodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reply(t, w, "```json\n{\"ok\":true}\n```")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestDecodeLLMJSONExtractsEmbeddedObject(t *testing.T) {
	var got map[string]string
	if err := DecodeLLMJSON("Here you go:\n{\"SPEAKER_00\": \"Jason\"}\nThanks", &got); err != nil {
		t.Fatalf("DecodeLLMJSON: %v", err)
	}
	if got["SPEAKER_00"] != "Jason" {
		t.Fatalf("decoded %v", got)
	}
	if err := DecodeLLMJSON("   ", &got); err == nil {
		t.Fatal("expected error for empty payload")
	}
}
