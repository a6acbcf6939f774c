// Package runner drives whole podcasts: fetch the feed, number the episodes,
// tell subscribers about new ones, process whatever is not yet published and
// rebuild the site.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"whisperer/internal/completion"
	"whisperer/internal/feed"
	"whisperer/internal/history"
	"whisperer/internal/logging"
	"whisperer/internal/notifications"
	"whisperer/internal/notifystate"
	"whisperer/internal/numbering"
	"whisperer/internal/podcast"
	"whisperer/internal/services"
	"whisperer/internal/workspace"
)

// ErrLocked reports a podcast another process is already working on.
var ErrLocked = errors.New("podcast is locked by another run")

// FeedSource downloads podcast feeds.
type FeedSource interface {
	Fetch(ctx context.Context, name, feedURL string) (feed.Document, error)
}

// Processor publishes one episode.
type Processor interface {
	Process(ctx context.Context, p podcast.Podcast, ep podcast.Episode) (string, error)
}

// SiteBuilder regenerates a podcast site.
type SiteBuilder interface {
	WriteIndex(name string, episodes []podcast.Episode) (string, error)
	WriteShowNotes(p podcast.Podcast, episodes []podcast.Episode) (string, error)
	Publish(ctx context.Context, name string) error
}

// Ledger records run history. The SQLite store satisfies it.
type Ledger interface {
	StartRun(ctx context.Context, id string, podcasts []string, started time.Time) error
	RecordEpisode(ctx context.Context, r history.EpisodeResult) error
	FinishRun(ctx context.Context, id, status string, totals history.Totals, finished time.Time) error
}

// Options wires the runner's collaborators. Notifier, Site and History are
// optional.
type Options struct {
	Podcasts    []podcast.Podcast
	Layout      workspace.Layout
	Feeds       FeedSource
	Processor   Processor
	Site        SiteBuilder
	Notifier    notifications.Service
	NotifyState *notifystate.Store
	History     Ledger
	Logger      *slog.Logger
	NewRunID    func() string
	Now         func() time.Time
}

// Runner processes configured podcasts one after another.
type Runner struct {
	opts    Options
	parser  *feed.Parser
	tracker completion.Tracker
	logger  *slog.Logger
}

// New creates a Runner.
func New(opts Options) *Runner {
	if opts.Notifier == nil {
		opts.Notifier = notifications.Noop{}
	}
	if opts.NotifyState == nil {
		opts.NotifyState = notifystate.NewStore(opts.Layout.StateDir)
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{
		opts:    opts,
		parser:  feed.NewParser(),
		tracker: completion.New(opts.Layout),
		logger:  logging.NewComponentLogger(opts.Logger, "runner"),
	}
}

// Run processes the named podcasts, or every configured podcast when names
// is empty. A failure in one podcast or episode never stops the others.
func (r *Runner) Run(ctx context.Context, names ...string) (Summary, error) {
	selected, err := r.selectPodcasts(names)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{RunID: r.opts.NewRunID(), StartedAt: r.opts.Now()}
	ctx = services.WithRunID(ctx, summary.RunID)
	logger := logging.WithContext(ctx, r.logger)

	podcastNames := make([]string, 0, len(selected))
	for _, p := range selected {
		podcastNames = append(podcastNames, p.Name)
	}
	r.startRun(ctx, summary.RunID, podcastNames, summary.StartedAt)
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("podcasts", len(selected)),
	)

	for _, p := range selected {
		if ctx.Err() != nil {
			break
		}
		summary.Podcasts = append(summary.Podcasts, r.runPodcast(ctx, summary.RunID, p))
	}

	summary.FinishedAt = r.opts.Now()
	r.finishRun(ctx, summary)
	logger.Info("run finished",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("status", summary.Status()),
		logging.Int("processed", summary.Processed()),
		logging.Int("failed", summary.Failed()),
		logging.Int("notified", summary.Notified()),
		logging.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, ctx.Err()
}

// Resolve fetches a podcast's feed and numbers its episodes without side
// effects.
func (r *Runner) Resolve(ctx context.Context, name string) ([]podcast.Episode, error) {
	p, err := r.podcast(name)
	if err != nil {
		return nil, err
	}
	return r.resolve(services.WithPodcast(ctx, p.Name), p)
}

// RunEpisode processes a single episode without notifying subscribers or
// rebuilding the site.
func (r *Runner) RunEpisode(ctx context.Context, name string, number float64) (string, error) {
	p, err := r.podcast(name)
	if err != nil {
		return "", err
	}
	ctx = services.WithRunID(ctx, r.opts.NewRunID())
	ctx = services.WithPodcast(ctx, p.Name)
	unlock, err := r.lock(p.Name)
	if err != nil {
		return "", err
	}
	defer unlock()

	episodes, err := r.resolve(ctx, p)
	if err != nil {
		return "", err
	}
	for _, ep := range episodes {
		if ep.Number == number {
			return r.opts.Processor.Process(ctx, p, ep)
		}
	}
	return "", services.Wrap(services.ErrNotFound, "runner", "find episode",
		fmt.Sprintf("%s has no episode %s", p.Name, podcast.FormatNumber(number)), nil)
}

func (r *Runner) runPodcast(ctx context.Context, runID string, p podcast.Podcast) PodcastSummary {
	ctx = services.WithPodcast(ctx, p.Name)
	logger := logging.WithContext(ctx, r.logger)
	result := PodcastSummary{Name: p.Name}

	unlock, err := r.lock(p.Name)
	if err != nil {
		result.Skipped = err.Error()
		if errors.Is(err, ErrLocked) {
			logging.WarnWithContext(logger, "podcast skipped; lock held", "podcast_locked",
				logging.String(logging.FieldImpact, "podcast will be processed on the next run"),
				logging.String(logging.FieldErrorHint, "wait for the other run to finish"),
			)
			return result
		}
		result.Err = err
		r.alert(ctx, runID, p.Name, "", err)
		return result
	}
	defer unlock()

	episodes, err := r.resolve(ctx, p)
	if err != nil {
		result.Err = err
		r.alert(ctx, runID, p.Name, "", err)
		return result
	}
	result.Episodes = len(episodes)

	numbers := make([]float64, len(episodes))
	for i, ep := range episodes {
		numbers[i] = ep.Number
	}
	newNumbers, err := r.opts.NotifyState.DiffNew(ctx, p.Name, numbers,
		func(ctx context.Context, _ string, fresh []float64) error {
			return r.opts.Notifier.NotifyNewEpisodes(ctx, p, fresh)
		})
	if err != nil {
		attrs := append([]logging.Attr{
			logging.String(logging.FieldImpact, "subscribers will be notified on the next run"),
		}, logging.FailureAttrs(err)...)
		logging.WarnWithContext(logger, "new episode notification failed", "notify_failed", attrs...)
	} else {
		result.Notified = newNumbers
	}

	pending := r.tracker.FilterIncomplete(p.Name, episodes)
	logger.Info("episodes pending",
		logging.String(logging.FieldEventType, "episodes_pending"),
		logging.Int("total", len(episodes)),
		logging.Int("pending", len(pending)),
	)
	for _, ep := range pending {
		if ctx.Err() != nil {
			break
		}
		r.processEpisode(ctx, runID, p, ep, &result)
	}

	if len(result.Processed) > 0 && r.opts.Site != nil {
		if err := r.rebuildSite(ctx, p, episodes); err != nil {
			result.Err = err
			r.alert(ctx, runID, p.Name, "", err)
		} else {
			result.SiteBuilt = true
		}
	}
	return result
}

func (r *Runner) processEpisode(ctx context.Context, runID string, p podcast.Podcast, ep podcast.Episode, result *PodcastSummary) {
	label := podcast.FormatNumber(ep.Number)
	start := r.opts.Now()
	_, err := r.opts.Processor.Process(ctx, p, ep)
	record := history.EpisodeResult{
		RunID:    runID,
		Podcast:  p.Name,
		Episode:  label,
		Title:    ep.Title,
		Status:   history.StatusSucceeded,
		Duration: r.opts.Now().Sub(start),
	}
	if err != nil {
		record.Status = history.StatusFailed
		record.ErrorKind = services.Kind(err)
		record.ErrorMessage = err.Error()
		result.Failures = append(result.Failures, Failure{Episode: ep.Number, Err: err})
		epCtx := services.WithEpisode(ctx, label)
		attrs := append([]logging.Attr{
			logging.String("title", ep.Title),
			logging.String(logging.FieldImpact, "episode will be retried on the next run"),
		}, logging.FailureAttrs(err)...)
		logging.ErrorWithContext(logging.WithContext(epCtx, r.logger), "episode failed", "episode_failed", attrs...)
		r.alert(ctx, runID, p.Name, label, err)
	} else {
		result.Processed = append(result.Processed, ep.Number)
	}
	if r.opts.History != nil {
		if err := r.opts.History.RecordEpisode(ctx, record); err != nil {
			r.logger.Debug("history record failed", logging.Error(err))
		}
	}
}

func (r *Runner) rebuildSite(ctx context.Context, p podcast.Podcast, episodes []podcast.Episode) error {
	completed := make([]podcast.Episode, 0, len(episodes))
	for _, ep := range episodes {
		if r.tracker.IsComplete(p.Name, ep.Number) {
			completed = append(completed, ep)
		}
	}
	if _, err := r.opts.Site.WriteIndex(p.Name, completed); err != nil {
		return err
	}
	if _, err := r.opts.Site.WriteShowNotes(p, completed); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "show notes not written", "shownotes_failed",
			append(logging.FailureAttrs(err),
				logging.String(logging.FieldImpact, "show notes page is stale until the next run"))...)
	}
	return r.opts.Site.Publish(ctx, p.Name)
}

func (r *Runner) resolve(ctx context.Context, p podcast.Podcast) ([]podcast.Episode, error) {
	doc, err := r.opts.Feeds.Fetch(ctx, p.Name, p.RSSURL)
	if err != nil {
		return nil, err
	}
	entries, err := r.parser.Parse(doc.Body)
	if err != nil {
		return nil, err
	}
	episodes, err := numbering.Resolve(p, entries)
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, r.logger).Info("episodes resolved",
		logging.String(logging.FieldEventType, "episodes_resolved"),
		logging.Int("entries", len(entries)),
		logging.Int("episodes", len(episodes)),
	)
	return episodes, nil
}

// lock takes the per-podcast advisory lock and returns its release func.
func (r *Runner) lock(name string) (func(), error) {
	if err := os.MkdirAll(r.opts.Layout.StateDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrLocalIO, "runner", "create state dir", r.opts.Layout.StateDir, err)
	}
	path := r.opts.Layout.LockPath(name)
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrLocalIO, "runner", "acquire lock", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, name)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			r.logger.Warn("failed to release podcast lock",
				logging.String("lock", path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "lock_release_failed"),
				logging.String(logging.FieldErrorHint, "remove the lock file if no run is active"),
				logging.String(logging.FieldImpact, "next run may skip this podcast"),
			)
		}
	}, nil
}

func (r *Runner) alert(ctx context.Context, runID, podcastName, episode string, err error) {
	alert := notifications.NewAlert(runID, podcastName, episode, err)
	if sendErr := r.opts.Notifier.NotifyFailure(ctx, alert); sendErr != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "failure alert not delivered", "alert_failed",
			logging.Error(sendErr),
			logging.String(logging.FieldImpact, "operator was not told about a failure"),
		)
	}
}

func (r *Runner) selectPodcasts(names []string) ([]podcast.Podcast, error) {
	if len(names) == 0 {
		return r.opts.Podcasts, nil
	}
	out := make([]podcast.Podcast, 0, len(names))
	for _, name := range names {
		p, err := r.podcast(name)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *Runner) podcast(name string) (podcast.Podcast, error) {
	for _, p := range r.opts.Podcasts {
		if p.Name == name {
			return p, nil
		}
	}
	return podcast.Podcast{}, services.Wrap(services.ErrNotFound, "runner", "lookup podcast",
		fmt.Sprintf("no enabled podcast named %q", name), nil)
}

func (r *Runner) startRun(ctx context.Context, id string, names []string, started time.Time) {
	if r.opts.History == nil {
		return
	}
	if err := r.opts.History.StartRun(ctx, id, names, started); err != nil {
		r.logger.Debug("history start failed", logging.Error(err))
	}
}

func (r *Runner) finishRun(ctx context.Context, s Summary) {
	if r.opts.History == nil {
		return
	}
	totals := history.Totals{Processed: s.Processed(), Failed: s.Failed(), Notified: s.Notified()}
	// The run context may already be cancelled; the ledger row still needs closing.
	if err := r.opts.History.FinishRun(context.WithoutCancel(ctx), s.RunID, s.Status(), totals, s.FinishedAt); err != nil {
		r.logger.Debug("history finish failed", logging.Error(err))
	}
}
