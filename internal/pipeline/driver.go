// Package pipeline turns one resolved episode into a published transcript
// page. Each stage leaves an artifact in the episode's working directory and
// is skipped when that artifact already exists, so an interrupted run picks
// up where it stopped.
package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"whisperer/internal/attribution"
	"whisperer/internal/logging"
	"whisperer/internal/podcast"
	"whisperer/internal/retry"
	"whisperer/internal/services"
	"whisperer/internal/services/transcription"
	"whisperer/internal/snapshot"
	"whisperer/internal/stage"
	"whisperer/internal/stageexec"
	"whisperer/internal/transcript"
	"whisperer/internal/workspace"
)

// Attributor names speakers and writes the synopsis.
type Attributor interface {
	Attribute(ctx context.Context, chunks []transcript.Chunk) (attribution.Result, error)
}

// PageFetcher saves the episode web page.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL, dest string) (snapshot.Snapshot, error)
}

// Options wires the driver's collaborators.
type Options struct {
	Layout      workspace.Layout
	Logger      *slog.Logger
	HTTPClient  *http.Client
	UserAgent   string
	Transcriber transcription.Service
	Attributor  Attributor
	Pages       PageFetcher

	PollInterval time.Duration
	PollTimeout  time.Duration

	DownloadPolicy   retry.Policy
	TranscribePolicy retry.Policy
	AttributePolicy  retry.Policy

	DownloadTimeout   time.Duration
	TranscribeTimeout time.Duration

	// Sleep overrides waits between transcription polls.
	Sleep func(context.Context, time.Duration) error
	Now   func() time.Time
}

type step struct {
	handler stage.Handler
	policy  retry.Policy
	timeout time.Duration
}

// Driver runs the episode stages in order.
type Driver struct {
	layout workspace.Layout
	logger *slog.Logger
	steps  []step
}

// New assembles the stage sequence.
func New(opts Options) *Driver {
	logger := logging.NewComponentLogger(opts.Logger, "pipeline")
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	attributePolicy := opts.AttributePolicy
	if attributePolicy.Retryable == nil {
		attributePolicy.Retryable = attributionRetryable
	}
	transcribePolicy := opts.TranscribePolicy
	if transcribePolicy.Retryable == nil {
		transcribePolicy.Retryable = transcriptionRetryable
	}
	return &Driver{
		layout: opts.Layout,
		logger: logger,
		steps:  []step{
			{handler: setupStage{}},
			{
				handler: &downloadStage{client: opts.HTTPClient, userAgent: opts.UserAgent},
				policy:  opts.DownloadPolicy,
				timeout: opts.DownloadTimeout,
			},
			{
				handler: &transcribeStage{
					svc:      opts.Transcriber,
					interval: opts.PollInterval,
					ceiling:  opts.PollTimeout,
					sleep:    opts.Sleep,
					now:      opts.Now,
				},
				policy:  transcribePolicy,
				timeout: opts.TranscribeTimeout,
			},
			{handler: &attributeStage{attributor: opts.Attributor, pages: opts.Pages, policy: attributePolicy}},
			{handler: renderStage{}},
			{handler: publishStage{}},
		},
	}
}

// Stages lists the stage names in execution order.
func (d *Driver) Stages() []string {
	names := make([]string, 0, len(d.steps))
	for _, s := range d.steps {
		names = append(names, s.handler.Name())
	}
	return names
}

// Process runs every outstanding stage for ep and returns the path of the
// published completion marker.
func (d *Driver) Process(ctx context.Context, p podcast.Podcast, ep podcast.Episode) (string, error) {
	ctx = services.WithPodcast(ctx, p.Name)
	ctx = services.WithEpisode(ctx, podcast.FormatNumber(ep.Number))
	logger := logging.WithContext(ctx, d.logger)

	item := &stage.Item{
		Podcast:    p,
		Episode:    ep,
		Dir:        d.layout.EpisodeDir(p.Name, ep.Number),
		PublishDir: d.layout.PublishDir(p.Name, ep.Number),
	}
	start := time.Now()
	for _, s := range d.steps {
		if _, err := stageexec.Run(ctx, stageexec.Options{
			Logger:  d.logger,
			Handler: s.handler,
			Item:    item,
			Policy:  s.policy,
			Timeout: s.timeout,
		}); err != nil {
			return "", err
		}
	}
	marker := d.layout.CompletionMarker(p.Name, ep.Number)
	logger.Info("episode published",
		logging.String(logging.FieldEventType, "episode_complete"),
		logging.String("title", ep.Title),
		logging.String("path", marker),
		logging.Duration("duration", time.Since(start)),
	)
	return marker, nil
}
