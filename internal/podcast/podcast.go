// Package podcast defines the configured Podcast, the resolved Episode, and
// the numbering Strategy contract shared by the resolver and the pipeline.
package podcast

import (
	"math"
	"strconv"
	"strings"
	"time"

	"whisperer/internal/feed"
)

// Podcast is immutable after configuration load.
type Podcast struct {
	Name       string
	RSSURL     string
	Emails     []string
	DocBaseURL string
	// DefaultURL is the episode page used when an entry carries no link.
	DefaultURL string
	ShortLinks map[string]string
	Numbering  Strategy
}

// EpisodePageURL returns the published transcript page for number.
func (p Podcast) EpisodePageURL(number float64) string {
	return strings.TrimRight(p.DocBaseURL, "/") + "/" + FormatNumber(number) + "/episode/"
}

// Episode is the resolved, addressable unit of work.
type Episode struct {
	Number     float64
	Title      string
	Subtitle   string
	MP3URL     string
	EpisodeURL string
	PubDate    time.Time
	PubDateRaw string
}

// Label returns the formatted episode number used in paths and logs.
func (e Episode) Label() string {
	return FormatNumber(e.Number)
}

// FormatNumber renders whole numbers without a fraction ("14") and
// everything else in shortest form ("20.5").
func FormatNumber(n float64) string {
	if n == math.Trunc(n) && !math.IsInf(n, 0) {
		return strconv.FormatFloat(n, 'f', 0, 64)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// ParseNumber parses a formatted episode number ("14", "20.5", "14.0").
func ParseNumber(s string) (float64, error) {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, strconv.ErrRange
	}
	return n, nil
}

// FillPolicy decides how entries without an explicit number are placed.
type FillPolicy int

const (
	// FillInterleave keeps surrounding numbers fixed: an entry between N and
	// N+1 becomes N+0.5, an entry before a gap takes the next free integer.
	FillInterleave FillPolicy = iota
	// FillSequential assigns the smallest unused integer in chronological order.
	FillSequential
)

func (p FillPolicy) String() string {
	switch p {
	case FillInterleave:
		return "interleave"
	case FillSequential:
		return "sequential"
	default:
		return "unknown"
	}
}

// Strategy is a podcast's numbering scheme, selected once at configuration
// time.
type Strategy interface {
	Name() string
	// Explicit returns the number carried by the entry itself: a trusted
	// tag, a number parsed from the title, or an exception-table pin.
	Explicit(entry feed.Entry) (float64, bool)
	Fill() FillPolicy
}
