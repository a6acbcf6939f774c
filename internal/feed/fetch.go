package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"whisperer/internal/fileutil"
	"whisperer/internal/logging"
	"whisperer/internal/retry"
	"whisperer/internal/services"
)

const maxFeedBytes = 64 << 20

// Document is a fetched feed body.
type Document struct {
	Body        []byte
	NotModified bool
	FetchedAt   time.Time
}

type validators struct {
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// Fetcher performs conditional feed downloads.
type Fetcher struct {
	client    *http.Client
	userAgent string
	cacheDir  string
	policy    retry.Policy
	logger    *slog.Logger
}

// FetcherOption customizes a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithRetryPolicy overrides the retry policy for feed requests.
func WithRetryPolicy(policy retry.Policy) FetcherOption {
	return func(f *Fetcher) { f.policy = policy }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = logger }
}

// NewFetcher builds a Fetcher. cacheDir holds validator and body caches; an
// empty cacheDir disables conditional requests.
func NewFetcher(userAgent, cacheDir string, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{Timeout: 60 * time.Second},
		userAgent: strings.TrimSpace(userAgent),
		cacheDir:  strings.TrimSpace(cacheDir),
		policy:    retry.Policy{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.NewComponentLogger(f.logger, "feed")
	return f
}

// Fetch downloads the feed for podcast name, reusing the cached body on 304.
func (f *Fetcher) Fetch(ctx context.Context, name, feedURL string) (Document, error) {
	cached := f.loadValidators(name)
	var doc Document
	err := retry.Do(ctx, f.policy, func(ctx context.Context, attempt int) error {
		var err error
		doc, err = f.fetchOnce(ctx, name, feedURL, cached)
		if err != nil && attempt < f.policy.Attempts() && retry.IsTransient(err) {
			logging.WithContext(ctx, f.logger).Debug("feed fetch retry",
				logging.Int("attempt", attempt),
				logging.Error(err),
			)
		}
		return err
	})
	if err != nil {
		return Document{}, services.Wrap(markerFor(err), "feed", "fetch", feedURL, err)
	}
	logging.WithContext(ctx, f.logger).Info("feed fetched",
		logging.String(logging.FieldEventType, "feed_fetched"),
		logging.Bool("not_modified", doc.NotModified),
		logging.Int("bytes", len(doc.Body)),
	)
	return doc, nil
}

func markerFor(err error) error {
	if retry.IsTransient(err) {
		return services.ErrTransient
	}
	return services.ErrExternalTool
}

func (f *Fetcher) fetchOnce(ctx context.Context, name, feedURL string, cached validators) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return Document{}, fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	haveBody := f.cacheDir != "" && fileutil.Exists(f.bodyPath(name))
	if haveBody {
		if cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
		if cached.LastModified != "" {
			req.Header.Set("If-Modified-Since", cached.LastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Document{}, err
	}
	defer resp.Body.Close()

	now := time.Now().UTC()
	switch {
	case resp.StatusCode == http.StatusNotModified && haveBody:
		body, err := os.ReadFile(f.bodyPath(name))
		if err != nil {
			return Document{}, fmt.Errorf("read cached feed: %w", err)
		}
		return Document{Body: body, NotModified: true, FetchedAt: now}, nil
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Document{}, retry.NewStatusError("feed fetch", resp, body)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return Document{}, fmt.Errorf("read feed body: %w", err)
	}
	f.storeValidators(name, body, validators{
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		FetchedAt:    now,
	})
	return Document{Body: body, FetchedAt: now}, nil
}

func (f *Fetcher) validatorPath(name string) string {
	return filepath.Join(f.cacheDir, name+"-feed.json")
}

func (f *Fetcher) bodyPath(name string) string {
	return filepath.Join(f.cacheDir, name+"-feed.xml")
}

func (f *Fetcher) loadValidators(name string) validators {
	var v validators
	if f.cacheDir == "" {
		return v
	}
	data, err := os.ReadFile(f.validatorPath(name))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			f.logger.Warn("feed cache unreadable", logging.String(logging.FieldPodcast, name), logging.Error(err))
		}
		return v
	}
	if err := json.Unmarshal(data, &v); err != nil {
		f.logger.Warn("feed cache corrupt", logging.String(logging.FieldPodcast, name), logging.Error(err))
		return validators{}
	}
	return v
}

// storeValidators is best effort: a failed cache write only costs a full
// download next run.
func (f *Fetcher) storeValidators(name string, body []byte, v validators) {
	if f.cacheDir == "" {
		return
	}
	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		f.logger.Warn("feed cache dir unavailable", logging.Error(err))
		return
	}
	if err := fileutil.WriteFileAtomic(f.bodyPath(name), body, 0o644); err != nil {
		f.logger.Warn("feed cache write failed", logging.Error(err))
		return
	}
	if err := fileutil.WriteJSONAtomic(f.validatorPath(name), v); err != nil {
		f.logger.Warn("feed cache write failed", logging.Error(err))
	}
}
