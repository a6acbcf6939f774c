package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"whisperer/internal/attribution"
	"whisperer/internal/fileutil"
	"whisperer/internal/logging"
	"whisperer/internal/retry"
	"whisperer/internal/services"
	"whisperer/internal/snapshot"
	"whisperer/internal/stage"
	"whisperer/internal/transcript"
	"whisperer/internal/workspace"
)

type attributeStage struct {
	attributor Attributor
	pages      PageFetcher
	policy     retry.Policy
}

func (*attributeStage) Name() string { return "attribute" }

func (*attributeStage) Done(item *stage.Item) bool {
	return fileutil.Exists(filepath.Join(item.Dir, workspace.SpeakerMapFile))
}

// Execute asks the model for speaker names and a synopsis while the episode
// page is saved alongside. Attribution that keeps failing falls back to the
// degraded result; the page snapshot never fails the stage.
func (a *attributeStage) Execute(ctx context.Context, item *stage.Item) error {
	chunks, err := loadChunks(item.Dir)
	if err != nil {
		return err
	}

	var (
		result  attribution.Result
		excerpt string
	)
	var g errgroup.Group
	g.Go(func() error {
		excerpt = a.snapshot(ctx, item)
		return nil
	})
	g.Go(func() error {
		var attrErr error
		result, attrErr = a.attribute(ctx, item, chunks)
		return attrErr
	})
	if err := g.Wait(); err != nil {
		return err
	}
	item.Excerpt = excerpt

	if err := fileutil.WriteFileAtomic(filepath.Join(item.Dir, workspace.SynopsisFile), []byte(result.Synopsis+"\n"), 0o644); err != nil {
		return services.Wrap(services.ErrLocalIO, "attribute", "write synopsis", "", err)
	}
	if err := fileutil.WriteJSONAtomic(filepath.Join(item.Dir, workspace.SpeakerMapFile), result.Speakers); err != nil {
		return services.Wrap(services.ErrLocalIO, "attribute", "write speaker map", "", err)
	}
	item.Logger.Info("speakers attributed",
		logging.String(logging.FieldEventType, "attribution_saved"),
		logging.Int("speakers", len(result.Speakers)),
		logging.Bool("degraded", result.Degraded),
		logging.String("model", result.Model),
	)
	return nil
}

func (a *attributeStage) attribute(ctx context.Context, item *stage.Item, chunks []transcript.Chunk) (attribution.Result, error) {
	if len(chunks) == 0 {
		return attribution.Degraded(chunks), nil
	}
	if a.attributor == nil {
		logging.WarnWithContext(item.Logger, "no attribution client configured", "attribution_degraded",
			logging.String(logging.FieldImpact, "speakers will be listed as Unknown"),
			logging.String(logging.FieldErrorHint, "set llm.api_key or OPENROUTER_API_KEY"),
		)
		return attribution.Degraded(chunks), nil
	}
	policy := a.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		item.Logger.Info("attribution attempt failed; retrying",
			logging.String(logging.FieldEventType, "attribution_retry"),
			logging.Int("attempt", attempt),
			logging.Duration("retry_in", delay),
			logging.Error(err),
		)
	}
	var result attribution.Result
	err := retry.Do(ctx, policy, func(ctx context.Context, _ int) error {
		r, err := a.attributor.Attribute(ctx, chunks)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return attribution.Result{}, err
	}
	attrs := append([]logging.Attr{
		logging.String(logging.FieldImpact, "speakers will be listed as Unknown"),
	}, logging.FailureAttrs(err)...)
	logging.WarnWithContext(item.Logger, "attribution failed; using degraded result", "attribution_degraded", attrs...)
	return attribution.Degraded(chunks), nil
}

// snapshot saves the episode page and returns its excerpt. Failures are
// logged and yield an empty excerpt.
func (a *attributeStage) snapshot(ctx context.Context, item *stage.Item) string {
	dest := filepath.Join(item.Dir, workspace.SnapshotFile)
	if fileutil.Exists(dest) {
		return excerptFromFile(dest)
	}
	pageURL := strings.TrimSpace(item.Episode.EpisodeURL)
	if a.pages == nil || pageURL == "" {
		return ""
	}
	snap, err := a.pages.Fetch(ctx, pageURL, dest)
	if err != nil {
		attrs := append([]logging.Attr{
			logging.String("url", pageURL),
			logging.String(logging.FieldImpact, "episode page will have no snapshot link"),
		}, logging.FailureAttrs(err)...)
		logging.WarnWithContext(item.Logger, "episode page snapshot failed", "snapshot_failed", attrs...)
		return ""
	}
	item.Logger.Debug("episode page saved",
		logging.String(logging.FieldEventType, "snapshot_saved"),
		logging.String("url", pageURL),
		logging.Int("bytes", snap.Bytes),
	)
	return snap.Excerpt
}

func excerptFromFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return snapshot.Excerpt(data)
}

func loadChunks(dir string) ([]transcript.Chunk, error) {
	data, err := os.ReadFile(filepath.Join(dir, workspace.TranscriptFile))
	if err != nil {
		return nil, services.Wrap(services.ErrLocalIO, "attribute", "read transcript", "", err)
	}
	doc, err := transcript.Parse(data)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "attribute", "parse transcript", "", err)
	}
	return transcript.Chunks(doc.Segments), nil
}

func attributionRetryable(err error) bool {
	return errors.Is(err, attribution.ErrParse) || retry.IsTransient(err)
}
