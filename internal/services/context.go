package services

import "context"

type contextKey string

const (
	podcastKey contextKey = "podcast"
	episodeKey contextKey = "episode"
	stageKey   contextKey = "stage"
	runIDKey   contextKey = "run_id"
)

// WithPodcast annotates context with the podcast slug.
func WithPodcast(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, podcastKey, name)
}

// PodcastFromContext returns the podcast slug if present.
func PodcastFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(podcastKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithEpisode annotates context with the formatted episode number.
func WithEpisode(ctx context.Context, number string) context.Context {
	if number == "" {
		return ctx
	}
	return context.WithValue(ctx, episodeKey, number)
}

// EpisodeFromContext returns the formatted episode number if present.
func EpisodeFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(episodeKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRunID annotates context with the run correlation identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run correlation identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
