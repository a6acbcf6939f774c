// Package stage defines the contract every episode pipeline step satisfies.
package stage

import (
	"context"
	"log/slog"

	"whisperer/internal/podcast"
)

// Item is the unit of work flowing through the stages of one episode.
type Item struct {
	Podcast podcast.Podcast
	Episode podcast.Episode
	// Dir is the private working directory for the episode.
	Dir string
	// PublishDir is the site directory the episode is published into.
	PublishDir string
	// Excerpt is the episode page description captured alongside
	// attribution, used when the feed has no subtitle.
	Excerpt string
	// Logger is scoped to the running stage by the executor.
	Logger *slog.Logger
}

// Handler is one resumable pipeline step.
type Handler interface {
	Name() string
	// Done reports whether the stage's artifact already exists. A done stage
	// is skipped.
	Done(item *Item) bool
	Execute(ctx context.Context, item *Item) error
}
