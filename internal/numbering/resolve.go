package numbering

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"whisperer/internal/feed"
	"whisperer/internal/podcast"
	"whisperer/internal/services"
)

var (
	// ErrDuplicateNumber reports two distinct entries claiming one number.
	ErrDuplicateNumber = errors.New("duplicate episode number")
	// ErrUnresolvable reports an entry that cannot be placed without
	// colliding or without a publish date to order it by.
	ErrUnresolvable = errors.New("unresolvable episode number")
)

// SentinelBase is the start of the out-of-band range operators pin
// permanently unplaceable entries into via the exception table.
const SentinelBase = 9000

// Sentinel returns the n-th out-of-band episode number.
func Sentinel(n int) float64 {
	return SentinelBase + float64(n)
}

// IsSentinel reports whether number sits in the out-of-band range.
func IsSentinel(number float64) bool {
	return number >= SentinelBase
}

type candidate struct {
	entry    feed.Entry
	key      string
	number   float64
	explicit bool
	assigned bool
}

var titleFolder = cases.Fold()

// titleKey normalises a title for re-upload matching.
func titleKey(title string) string {
	folded := titleFolder.String(norm.NFC.String(title))
	return strings.Join(strings.Fields(folded), " ")
}

// Resolve assigns a unique number to every entry of p's feed and returns the
// episodes ordered by number, which can differ from publish order for pinned
// or late-tagged entries. Verbatim re-uploads are dropped.
func Resolve(p podcast.Podcast, entries []feed.Entry) ([]podcast.Episode, error) {
	if p.Numbering == nil {
		return nil, services.Wrap(services.ErrConfiguration, "numbering", "resolve",
			fmt.Sprintf("podcast %s has no numbering strategy", p.Name), nil)
	}

	candidates := make([]*candidate, 0, len(entries))
	for _, entry := range entries {
		c := &candidate{entry: entry, key: titleKey(entry.Title)}
		if n, ok := p.Numbering.Explicit(entry); ok {
			c.number, c.explicit, c.assigned = n, true, true
		}
		candidates = append(candidates, c)
	}
	sortChronological(candidates)
	candidates = dropReuploads(candidates)

	used := make(map[float64]*candidate, len(candidates))
	for _, c := range candidates {
		if !c.explicit {
			continue
		}
		if other, ok := used[c.number]; ok {
			return nil, validationError(ErrDuplicateNumber, fmt.Sprintf(
				"episode %s claimed by %q and %q", podcast.FormatNumber(c.number), other.entry.Title, c.entry.Title))
		}
		used[c.number] = c
	}

	var err error
	switch p.Numbering.Fill() {
	case podcast.FillSequential:
		err = fillSequential(candidates, used)
	default:
		err = fillInterleave(candidates, used)
	}
	if err != nil {
		return nil, err
	}

	episodes := make([]podcast.Episode, 0, len(candidates))
	for _, c := range candidates {
		episodes = append(episodes, toEpisode(p, c))
	}
	slices.SortStableFunc(episodes, func(a, b podcast.Episode) int {
		switch {
		case a.Number < b.Number:
			return -1
		case a.Number > b.Number:
			return 1
		}
		return 0
	})
	return episodes, nil
}

// sortChronological orders by publish date then feed position. Entries
// without a date keep their feed position relative to each other and sort
// after dated ones.
func sortChronological(candidates []*candidate) {
	slices.SortStableFunc(candidates, func(a, b *candidate) int {
		ad, bd := a.entry.HasDate(), b.entry.HasDate()
		switch {
		case ad && !bd:
			return -1
		case !ad && bd:
			return 1
		case ad && bd && !a.entry.Published.Equal(b.entry.Published):
			return a.entry.Published.Compare(b.entry.Published)
		}
		return a.entry.Index - b.entry.Index
	})
}

func dropReuploads(candidates []*candidate) []*candidate {
	kept := make([]*candidate, 0, len(candidates))
	seen := make(map[string]*candidate, len(candidates))
	for _, c := range candidates {
		if first, ok := seen[c.key]; ok && c.key != "" {
			if !c.explicit || (first.explicit && first.number == c.number) {
				continue
			}
		} else {
			seen[c.key] = c
		}
		kept = append(kept, c)
	}
	return kept
}

func fillInterleave(candidates []*candidate, used map[float64]*candidate) error {
	for i, c := range candidates {
		if c.assigned {
			continue
		}
		if !c.entry.HasDate() {
			return unresolvable(c, "entry has no publish date")
		}
		// with nothing earlier the base is zero
		prev := 0.0
		for j := i - 1; j >= 0; j-- {
			if candidates[j].assigned && !IsSentinel(candidates[j].number) {
				prev = candidates[j].number
				break
			}
		}
		next, hasNext := 0.0, false
		for j := i + 1; j < len(candidates); j++ {
			if candidates[j].explicit && !IsSentinel(candidates[j].number) {
				next, hasNext = candidates[j].number, true
				break
			}
		}

		base := math.Floor(prev)
		number := base + 0.5
		if hasNext && base+1 < next {
			number = base + 1
		}
		if owner, taken := used[number]; taken {
			return unresolvable(c, fmt.Sprintf("slot %s already held by %q",
				podcast.FormatNumber(number), owner.entry.Title))
		}
		c.number, c.assigned = number, true
		used[number] = c
	}
	return nil
}

func fillSequential(candidates []*candidate, used map[float64]*candidate) error {
	next := 1.0
	for _, c := range candidates {
		if c.assigned {
			continue
		}
		if !c.entry.HasDate() {
			return unresolvable(c, "entry has no publish date")
		}
		for used[next] != nil {
			next++
		}
		c.number, c.assigned = next, true
		used[next] = c
		next++
	}
	return nil
}

func toEpisode(p podcast.Podcast, c *candidate) podcast.Episode {
	return podcast.Episode{
		Number:     c.number,
		Title:      c.entry.Title,
		Subtitle:   c.entry.Subtitle,
		MP3URL:     c.entry.EnclosureURL,
		EpisodeURL: feed.EpisodeURL(c.entry, p.DefaultURL, p.ShortLinks),
		PubDate:    c.entry.Published,
		PubDateRaw: c.entry.PublishedRaw,
	}
}

func unresolvable(c *candidate, reason string) error {
	return validationError(ErrUnresolvable, fmt.Sprintf("%q: %s", c.entry.Title, reason))
}

func validationError(kind error, detail string) error {
	return services.Wrap(services.ErrValidation, "numbering", "resolve", detail, kind)
}
