package runner

import (
	"log/slog"
	"net/http"
	"time"

	"whisperer/internal/config"
	"whisperer/internal/feed"
	"whisperer/internal/history"
	"whisperer/internal/notifications"
	"whisperer/internal/notifystate"
	"whisperer/internal/numbering"
	"whisperer/internal/pipeline"
	"whisperer/internal/retry"
	"whisperer/internal/site"
	"whisperer/internal/workspace"
)

// FromConfig wires a Runner from the loaded configuration. The returned
// close func releases the history ledger.
func FromConfig(cfg *config.Config, logger *slog.Logger) (*Runner, func() error, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, nil, err
	}
	podcasts, err := numbering.Catalog(cfg)
	if err != nil {
		return nil, nil, err
	}
	driver, err := pipeline.FromConfig(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	layout := workspace.FromConfig(cfg)
	store, err := history.Open(layout.HistoryPath())
	if err != nil {
		return nil, nil, err
	}

	timeout := time.Duration(cfg.Download.TimeoutSeconds) * time.Second
	feeds := feed.NewFetcher(cfg.Download.UserAgent, layout.FeedCacheDir(),
		feed.WithHTTPClient(&http.Client{Timeout: timeout}),
		feed.WithRetryPolicy(retry.Policy{
			MaxAttempts: cfg.Download.MaxAttempts,
			BaseDelay:   time.Duration(cfg.Download.RetryDelaySeconds) * time.Second,
			MaxDelay:    30 * time.Second,
		}),
		feed.WithLogger(logger),
	)

	r := New(Options{
		Podcasts:    podcasts,
		Layout:      layout,
		Feeds:       feeds,
		Processor:   driver,
		Site:        site.FromConfig(cfg, logger),
		Notifier:    notifications.NewService(cfg, logger),
		NotifyState: notifystate.NewStore(layout.StateDir),
		History:     store,
		Logger:      logger,
	})
	return r, store.Close, nil
}
