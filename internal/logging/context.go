package logging

import (
	"context"
	"log/slog"

	"whisperer/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldPodcast is the standardized structured logging key for podcast slugs.
	FieldPodcast = "podcast"
	// FieldEpisode is the standardized structured logging key for formatted episode numbers.
	FieldEpisode = "episode"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldRunID is the standardized structured logging key for run correlation identifiers.
	FieldRunID = "run_id"
	// FieldEventType classifies a log line for filtering (stage_start, feed_fetched, ...).
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator-facing next step for a failure.
	FieldErrorHint = "error_hint"
	// FieldErrorKind carries the error class reported by services.Kind.
	FieldErrorKind = "error_kind"
)

// contextAttrs reads the podcast, episode, stage and run id carried by ctx.
func contextAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if name, ok := services.PodcastFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPodcast, name))
	}
	if ep, ok := services.EpisodeFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldEpisode, ep))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, rid))
	}
	return fields
}

// WithContext returns logger tagged with whatever of podcast, episode, stage
// and run id ctx carries.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := contextAttrs(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(toArgs(fields)...)
}
