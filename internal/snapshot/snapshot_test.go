package snapshot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"whisperer/internal/retry"
)

const pageWithMeta = `<html><head>
<title>Episode 215</title>
<meta name="description" content="  Summer watches,   and why bronze ages well. ">
</head><body><article><p>Body text.</p></article></body></html>`

func TestFetchSavesPageAndExcerpt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "whisperer-test" {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		_, _ = w.Write([]byte(pageWithMeta))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "episode.html")
	snap, err := NewFetcher("whisperer-test", time.Second, retry.Policy{}).Fetch(context.Background(), server.URL, dest)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if snap.Excerpt != "Summer watches, and why bronze ages well." {
		t.Fatalf("excerpt = %q", snap.Excerpt)
	}
	saved, err := os.ReadFile(dest)
	if err != nil || string(saved) != pageWithMeta {
		t.Fatalf("saved page mismatch: %v", err)
	}
}

func TestFetchNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "episode.html")
	_, err := NewFetcher("", time.Second, retry.Policy{MaxAttempts: 3}).Fetch(context.Background(), server.URL, dest)
	var statusErr *retry.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 status error, got %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatal("no file should be written on failure")
	}
}

func TestExcerptFallsBackToArticleText(t *testing.T) {
	paragraph := strings.Repeat("The hosts compare field watches from three decades of design. ", 20)
	page := `<html><head><title>No meta</title></head><body><article><h1>Field Watches</h1><p>` +
		paragraph + `</p></article></body></html>`
	got := Excerpt([]byte(page))
	if !strings.Contains(got, "field watches") {
		t.Fatalf("excerpt = %q", got)
	}
	if !strings.HasSuffix(got, "...") || len([]rune(got)) > excerptLimit+3 {
		t.Fatalf("excerpt not clipped: %d runes", len([]rune(got)))
	}
}

func TestFetchRequiresURL(t *testing.T) {
	if _, err := NewFetcher("", 0, retry.Policy{}).Fetch(context.Background(), " ", "x"); err == nil {
		t.Fatal("expected error")
	}
}
