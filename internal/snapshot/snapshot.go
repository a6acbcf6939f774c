// Package snapshot saves a copy of an episode's web page next to its
// transcript and pulls a short description from it.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"whisperer/internal/fileutil"
	"whisperer/internal/retry"
	"whisperer/internal/services"
)

const (
	maxPageBytes   = 8 << 20
	excerptLimit   = 400
	defaultTimeout = 60 * time.Second
)

// Snapshot is a saved episode page.
type Snapshot struct {
	Path    string
	Excerpt string
	Bytes   int
}

// Fetcher downloads episode pages.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	policy     retry.Policy
}

func NewFetcher(userAgent string, timeout time.Duration, policy retry.Policy) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		policy:     policy,
	}
}

// Fetch downloads pageURL into dest and extracts an excerpt.
func (f *Fetcher) Fetch(ctx context.Context, pageURL, dest string) (Snapshot, error) {
	if strings.TrimSpace(pageURL) == "" {
		return Snapshot{}, services.Wrap(services.ErrValidation, "snapshot", "fetch", "no episode page url", nil)
	}
	var body []byte
	err := retry.Do(ctx, f.policy, func(ctx context.Context, _ int) error {
		data, err := f.get(ctx, pageURL)
		body = data
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}
	if err := fileutil.WriteFileAtomic(dest, body, 0o644); err != nil {
		return Snapshot{}, services.Wrap(services.ErrLocalIO, "snapshot", "write", dest, err)
	}
	return Snapshot{Path: dest, Excerpt: Excerpt(body), Bytes: len(body)}, nil
}

func (f *Fetcher) get(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "snapshot", "build request", pageURL, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "snapshot", "get", pageURL, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "snapshot", "read", pageURL, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, retry.NewStatusError("snapshot "+pageURL, resp, nil)
	}
	return body, nil
}

// Excerpt returns the page's meta description, or the opening of its main
// text when there is none.
func Excerpt(page []byte) string {
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page)); err == nil {
		for _, selector := range []string{
			`meta[name="description"]`,
			`meta[property="og:description"]`,
			`meta[name="twitter:description"]`,
		} {
			if content, ok := doc.Find(selector).First().Attr("content"); ok {
				if text := collapse(content); text != "" {
					return clip(text)
				}
			}
		}
	}
	article, err := readability.FromReader(bytes.NewReader(page), nil)
	if err != nil {
		return ""
	}
	return clip(collapse(article.TextContent))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clip(s string) string {
	runes := []rune(s)
	if len(runes) <= excerptLimit {
		return s
	}
	cut := string(runes[:excerptLimit])
	if i := strings.LastIndex(cut, " "); i > excerptLimit/2 {
		cut = cut[:i]
	}
	return fmt.Sprintf("%s...", strings.TrimRight(cut, " ,.;:"))
}
