package runner

import (
	"time"

	"whisperer/internal/history"
)

// Failure is one episode that did not publish.
type Failure struct {
	Episode float64
	Err     error
}

// PodcastSummary reports what happened to one podcast.
type PodcastSummary struct {
	Name string
	// Skipped is set when the podcast was not processed at all.
	Skipped   string
	Err       error
	Episodes  int
	Notified  []float64
	Processed []float64
	Failures  []Failure
	SiteBuilt bool
}

// Summary reports a whole run.
type Summary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Podcasts   []PodcastSummary
}

// Processed counts published episodes.
func (s Summary) Processed() int {
	n := 0
	for _, p := range s.Podcasts {
		n += len(p.Processed)
	}
	return n
}

// Failed counts failed episodes plus podcasts that failed before or after
// episode processing.
func (s Summary) Failed() int {
	n := 0
	for _, p := range s.Podcasts {
		n += len(p.Failures)
		if p.Err != nil {
			n++
		}
	}
	return n
}

// Notified counts episode numbers announced to subscribers.
func (s Summary) Notified() int {
	n := 0
	for _, p := range s.Podcasts {
		n += len(p.Notified)
	}
	return n
}

// Status condenses the run into a history status.
func (s Summary) Status() string {
	failed := s.Failed()
	switch {
	case failed == 0:
		return history.StatusSucceeded
	case s.Processed() > 0:
		return history.StatusPartial
	default:
		return history.StatusFailed
	}
}
