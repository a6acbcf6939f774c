// Package completion derives which episodes still need work from the
// published site tree. It keeps no state of its own.
package completion

import (
	"whisperer/internal/fileutil"
	"whisperer/internal/podcast"
	"whisperer/internal/workspace"
)

// Tracker answers completion questions against a workspace layout.
type Tracker struct {
	layout workspace.Layout
}

func New(layout workspace.Layout) Tracker {
	return Tracker{layout: layout}
}

// IsComplete reports whether the episode's rendered page has been published.
func (t Tracker) IsComplete(name string, number float64) bool {
	return fileutil.Exists(t.layout.CompletionMarker(name, number))
}

// FilterIncomplete returns the episodes lacking a published page, in input
// order.
func (t Tracker) FilterIncomplete(name string, episodes []podcast.Episode) []podcast.Episode {
	out := make([]podcast.Episode, 0, len(episodes))
	for _, ep := range episodes {
		if !t.IsComplete(name, ep.Number) {
			out = append(out, ep)
		}
	}
	return out
}
