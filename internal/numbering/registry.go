package numbering

import (
	"fmt"
	"maps"
	"slices"

	"whisperer/internal/config"
	"whisperer/internal/podcast"
	"whisperer/internal/services"
)

// Constructor builds a strategy with operator exception overrides applied.
type Constructor func(overrides map[string]float64) podcast.Strategy

var registry = map[string]Constructor{
	"greynato":     func(o map[string]float64) podcast.Strategy { return NewGreyNATO(o) },
	"watchclicker": func(o map[string]float64) podcast.Strategy { return NewWatchClicker(o) },
	"sequential":   func(o map[string]float64) podcast.Strategy { return NewSequential(o) },
}

// Names lists the registered strategy names in sorted order.
func Names() []string {
	return slices.Sorted(maps.Keys(registry))
}

// New returns the named strategy.
func New(name string, overrides map[string]float64) (podcast.Strategy, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "numbering", "select strategy",
			fmt.Sprintf("unknown numbering strategy %q (known: %v)", name, Names()), nil)
	}
	return ctor(overrides), nil
}

// FromConfig builds the runtime podcast for a config entry.
func FromConfig(entry config.Podcast) (podcast.Podcast, error) {
	strategy, err := New(entry.Numbering, entry.Exceptions)
	if err != nil {
		return podcast.Podcast{}, fmt.Errorf("podcast %s: %w", entry.Name, err)
	}
	return podcast.Podcast{
		Name:       entry.Name,
		RSSURL:     entry.RSSURL,
		Emails:     slices.Clone(entry.Emails),
		DocBaseURL: entry.DocBaseURL,
		DefaultURL: entry.DefaultURL,
		ShortLinks: maps.Clone(entry.ShortLinks),
		Numbering:  strategy,
	}, nil
}

// Catalog builds every enabled podcast in configuration order.
func Catalog(cfg *config.Config) ([]podcast.Podcast, error) {
	entries := cfg.EnabledPodcasts()
	out := make([]podcast.Podcast, 0, len(entries))
	for _, entry := range entries {
		p, err := FromConfig(entry)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Lookup builds a single configured podcast by name, disabled or not.
func Lookup(cfg *config.Config, name string) (podcast.Podcast, error) {
	entry, ok := cfg.Podcast(name)
	if !ok {
		return podcast.Podcast{}, services.Wrap(services.ErrNotFound, "numbering", "lookup podcast",
			fmt.Sprintf("podcast %q is not configured", name), nil)
	}
	return FromConfig(entry)
}
