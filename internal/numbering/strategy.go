package numbering

import (
	"maps"
	"regexp"
	"strings"

	"whisperer/internal/feed"
	"whisperer/internal/podcast"
)

// greyNATOExceptions pins titles the Grey NATO feed never numbered or
// numbered inconsistently over the years.
var greyNATOExceptions = map[string]float64{
	"Drafting High-End Watches With A Sense Of Adventure – A TGN Special With Collective Horology":                 214.5,
	"The Grey NATO – 206 Re-Reupload – New Watches! Pelagos 39, Diver's Sixty-Five 12H, And The Steel Doxa Army": 206.5,
	"The Grey NATO – A Week Off (And A Request!)":                                                                  160.5,
	"Depth Charge - The Original Soundtrack by Oran Chan":                                                          143.5,
	"The Grey Nato Ep 25  - Dream Watches 2017":                                                                    25,
	"The Grey Nato - Question & Answer #1":                                                                         20.5,
	"TGN Chats - Merlin Schwertner (Nomos Watches) And Jason Gallop (Roldorf & Co)":                                16.5,
	"TGN Chats - Chase Fancher :: Oak & Oscar":                                                                     14.5,
	"Drafting Our Favorite Watches Of The 1970s – A TGN Special With Collective Horology":                          260.5,
}

var watchClickerExceptions = map[string]float64{
	"Watch Clicker Mini Review - Nodus Sector Dive": 81.5,
	"Episode 36 GMT Watches":                        36,
}

var greyNATOPatterns = []*regexp.Regexp{
	// "The Grey NATO – 363 – Title" and "The Grey NATO – 300! Title"
	regexp.MustCompile(`Grey\s+NAT[Oo]\s*[-–—]+\s*(\d+)\s*[-–—!]`),
	// number at the end: "The Grey NATO – 300!"
	regexp.MustCompile(`Grey\s+NAT[Oo]\s*[-–—]+\s*(\d+)\s*!?\s*$`),
	// early episodes: "EP 14", "Ep 61", "Episode 01"
	regexp.MustCompile(`[Ee][Pp](?:isode)?\s*(\d+)`),
	// early episodes without a prefix: "The Grey Nato - 02 - Origin Stories"
	regexp.MustCompile(`Grey\s+Nat[oa]\s*-\s*(\d+)\s*-`),
}

var watchClickerSeparators = regexp.MustCompile(`[-‒–—:]`)

// exceptionTable merges operator overrides over a built-in table.
func exceptionTable(builtin, overrides map[string]float64) map[string]float64 {
	table := make(map[string]float64, len(builtin)+len(overrides))
	maps.Copy(table, builtin)
	for title, number := range overrides {
		table[strings.TrimSpace(title)] = number
	}
	return table
}

func lookupException(table map[string]float64, title string) (float64, bool) {
	n, ok := table[strings.TrimSpace(title)]
	return n, ok
}

// trustedTag reads the itunes:episode tag.
func trustedTag(entry feed.Entry) (float64, bool) {
	if entry.ItunesEpisode == "" {
		return 0, false
	}
	n, err := podcast.ParseNumber(entry.ItunesEpisode)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}

// GreyNATO numbers from titles. The host's itunes:episode tags are a
// sequential count that drifted from the announced numbers, so they are
// ignored.
type GreyNATO struct {
	exceptions map[string]float64
}

func NewGreyNATO(overrides map[string]float64) GreyNATO {
	return GreyNATO{exceptions: exceptionTable(greyNATOExceptions, overrides)}
}

func (GreyNATO) Name() string { return "greynato" }

func (GreyNATO) Fill() podcast.FillPolicy { return podcast.FillInterleave }

func (s GreyNATO) Explicit(entry feed.Entry) (float64, bool) {
	if n, ok := lookupException(s.exceptions, entry.Title); ok {
		return n, true
	}
	return greyNATOTitleNumber(entry.Title)
}

func greyNATOTitleNumber(title string) (float64, bool) {
	if strings.Contains(title, "Re-Reupload") {
		return 0, false
	}
	for _, pattern := range greyNATOPatterns {
		m := pattern.FindStringSubmatch(title)
		if m == nil {
			continue
		}
		if n, err := podcast.ParseNumber(m[1]); err == nil {
			return n, true
		}
	}
	return 0, false
}

// WatchClicker trusts the feed tag and falls back to "Episode NN - Title"
// style titles.
type WatchClicker struct {
	exceptions map[string]float64
}

func NewWatchClicker(overrides map[string]float64) WatchClicker {
	return WatchClicker{exceptions: exceptionTable(watchClickerExceptions, overrides)}
}

func (WatchClicker) Name() string { return "watchclicker" }

func (WatchClicker) Fill() podcast.FillPolicy { return podcast.FillInterleave }

func (s WatchClicker) Explicit(entry feed.Entry) (float64, bool) {
	if n, ok := trustedTag(entry); ok {
		return n, true
	}
	if n, ok := lookupException(s.exceptions, entry.Title); ok {
		return n, true
	}
	head := watchClickerSeparators.Split(entry.Title, 2)[0]
	head = strings.TrimSpace(strings.TrimPrefix(strings.ToLower(head), "episode"))
	if !isDigits(head) {
		return 0, false
	}
	n, err := podcast.ParseNumber(head)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Sequential trusts the feed tag and numbers everything else 1, 2, 3 in
// publish order around the tagged episodes.
type Sequential struct {
	exceptions map[string]float64
}

func NewSequential(overrides map[string]float64) Sequential {
	return Sequential{exceptions: exceptionTable(nil, overrides)}
}

func (Sequential) Name() string { return "sequential" }

func (Sequential) Fill() podcast.FillPolicy { return podcast.FillSequential }

func (s Sequential) Explicit(entry feed.Entry) (float64, bool) {
	if n, ok := trustedTag(entry); ok {
		return n, true
	}
	return lookupException(s.exceptions, entry.Title)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
