package numbering

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"whisperer/internal/config"
	"whisperer/internal/feed"
	"whisperer/internal/podcast"
	"whisperer/internal/services"
)

var day0 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

// entries builds a feed newest first, the way hosts publish them. The
// argument list is oldest first.
func entries(titles ...string) []feed.Entry {
	out := make([]feed.Entry, len(titles))
	for i, title := range titles {
		pos := len(titles) - 1 - i
		out[pos] = feed.Entry{
			Index:        pos,
			Title:        title,
			Published:    day0.AddDate(0, 0, 7*i),
			EnclosureURL: "https://cdn.example.com/" + title + ".mp3",
		}
	}
	return out
}

func numbers(eps []podcast.Episode) []float64 {
	out := make([]float64, len(eps))
	for i, ep := range eps {
		out[i] = ep.Number
	}
	return out
}

func tgn() podcast.Podcast {
	return podcast.Podcast{Name: "tgn", DefaultURL: "https://thegreynato.com/", Numbering: NewGreyNATO(nil)}
}

func TestResolveInterleavesSpecials(t *testing.T) {
	feedEntries := entries(
		"The Grey NATO – 214 – Ferrari Watches",
		"TGN Chats - Jane Doe",
		"The Grey NATO – 215 – Summer Watches",
	)
	eps, err := Resolve(tgn(), feedEntries)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got, want := numbers(eps), []float64{214, 214.5, 215}; !reflect.DeepEqual(got, want) {
		t.Fatalf("numbers = %v, want %v", got, want)
	}
	if eps[1].Title != "TGN Chats - Jane Doe" {
		t.Fatalf("unexpected ordering: %+v", eps)
	}
	if eps[1].EpisodeURL != "https://thegreynato.com/" {
		t.Fatalf("episode url fallback = %q", eps[1].EpisodeURL)
	}
}

func TestResolveSpecialStableAsFeedGrows(t *testing.T) {
	base := []string{
		"The Grey NATO – 214 – Ferrari Watches",
		"TGN Chats - Jane Doe",
	}
	first, err := Resolve(tgn(), entries(base...))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	grown := append(base,
		"The Grey NATO – 215 – Summer Watches",
		"Out Of Office – Short Break",
		"The Grey NATO – 216 – Divers",
	)
	second, err := Resolve(tgn(), entries(grown...))
	if err != nil {
		t.Fatalf("Resolve grown: %v", err)
	}
	if got, want := numbers(first), []float64{214, 214.5}; !reflect.DeepEqual(got, want) {
		t.Fatalf("first = %v, want %v", got, want)
	}
	if got, want := numbers(second), []float64{214, 214.5, 215, 215.5, 216}; !reflect.DeepEqual(got, want) {
		t.Fatalf("second = %v, want %v", got, want)
	}
}

func TestResolveFillsGapWithNextInteger(t *testing.T) {
	eps, err := Resolve(tgn(), entries(
		"The Grey NATO – 10 – Ten",
		"Unnumbered One",
		"Unnumbered Two",
		"The Grey NATO – 13 – Thirteen",
	))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got, want := numbers(eps), []float64{10, 11, 12, 13}; !reflect.DeepEqual(got, want) {
		t.Fatalf("numbers = %v, want %v", got, want)
	}
}

func TestResolveLeadingSpecial(t *testing.T) {
	eps, err := Resolve(tgn(), entries("Trailer", "The Grey NATO – 1 – Pilot"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got, want := numbers(eps), []float64{0.5, 1}; !reflect.DeepEqual(got, want) {
		t.Fatalf("numbers = %v, want %v", got, want)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	feedEntries := entries(
		"The Grey NATO – 1 – Pilot",
		"Special A",
		"The Grey NATO – 2 – Second",
		"The Grey NATO – 5 – Fifth",
		"Special B",
	)
	a, errA := Resolve(tgn(), feedEntries)
	b, errB := Resolve(tgn(), feedEntries)
	if errA != nil || errB != nil {
		t.Fatalf("Resolve errors: %v, %v", errA, errB)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("resolve not idempotent:\n%v\n%v", a, b)
	}
}

func TestResolveDropsVerbatimReupload(t *testing.T) {
	p := podcast.Podcast{Name: "seq", Numbering: NewSequential(nil)}
	feedEntries := entries("Pilot", "Second Show", "Second  show", "Third")
	eps, err := Resolve(p, feedEntries)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got, want := numbers(eps), []float64{1, 2, 3}; !reflect.DeepEqual(got, want) {
		t.Fatalf("numbers = %v, want %v", got, want)
	}
	if eps[2].Title != "Third" {
		t.Fatalf("third episode = %q", eps[2].Title)
	}
}

func TestResolveDuplicateNumberIsHardFailure(t *testing.T) {
	p := podcast.Podcast{Name: "seq", Numbering: NewSequential(nil)}
	feedEntries := entries("One", "Two")
	feedEntries[0].ItunesEpisode = "4"
	feedEntries[1].ItunesEpisode = "4"
	_, err := Resolve(p, feedEntries)
	if !errors.Is(err, ErrDuplicateNumber) {
		t.Fatalf("expected ErrDuplicateNumber, got %v", err)
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestResolveOccupiedHalfSlotIsUnresolvable(t *testing.T) {
	_, err := Resolve(tgn(), entries(
		"The Grey NATO – 7 – Seven",
		"Special A",
		"Special B",
		"The Grey NATO – 8 – Eight",
	))
	if !errors.Is(err, ErrUnresolvable) {
		t.Fatalf("expected ErrUnresolvable, got %v", err)
	}
}

func TestResolveUndatedUnnumberedIsUnresolvable(t *testing.T) {
	feedEntries := entries("The Grey NATO – 7 – Seven", "Mystery")
	feedEntries[0].Published = time.Time{}
	_, err := Resolve(tgn(), feedEntries)
	if !errors.Is(err, ErrUnresolvable) {
		t.Fatalf("expected ErrUnresolvable, got %v", err)
	}
}

func TestResolveSequentialFillsAroundTags(t *testing.T) {
	p := podcast.Podcast{Name: "seq", Numbering: NewSequential(nil)}
	feedEntries := entries("A", "B", "C", "D")
	// newest first: index 2 is "B"
	feedEntries[2].ItunesEpisode = "1"
	feedEntries[0].ItunesEpisode = "3"
	eps, err := Resolve(p, feedEntries)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	got := map[string]float64{}
	for _, ep := range eps {
		got[ep.Title] = ep.Number
	}
	want := map[string]float64{"A": 2, "B": 1, "C": 4, "D": 3}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("numbers = %v, want %v", got, want)
	}
}

func TestResolveIgnoresSentinelNeighbours(t *testing.T) {
	p := podcast.Podcast{Name: "tgn", Numbering: NewGreyNATO(map[string]float64{"Pinned Oddity": Sentinel(1)})}
	eps, err := Resolve(p, entries(
		"The Grey NATO – 3 – Three",
		"Pinned Oddity",
		"Special",
		"The Grey NATO – 4 – Four",
	))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got, want := numbers(eps), []float64{3, 3.5, 4, 9001}; !reflect.DeepEqual(got, want) {
		t.Fatalf("numbers = %v, want %v", got, want)
	}
}

func TestResolveOrdersByNumberNotPublishDate(t *testing.T) {
	p := podcast.Podcast{Name: "tgn", Numbering: NewGreyNATO(map[string]float64{"Lost Episode": 2})}
	eps, err := Resolve(p, entries(
		"The Grey NATO – 1 – One",
		"The Grey NATO – 3 – Three",
		"Lost Episode",
	))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got, want := numbers(eps), []float64{1, 2, 3}; !reflect.DeepEqual(got, want) {
		t.Fatalf("numbers = %v, want %v", got, want)
	}
	if eps[1].Title != "Lost Episode" {
		t.Fatalf("pinned episode at %q, want number order", eps[1].Title)
	}
}

func TestResolveTrailingSpecialMovesWhenGapOpens(t *testing.T) {
	base := []string{"The Grey NATO – 5 – Five", "Holiday Special"}
	first, err := Resolve(tgn(), entries(base...))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got, want := numbers(first), []float64{5, 5.5}; !reflect.DeepEqual(got, want) {
		t.Fatalf("first = %v, want %v", got, want)
	}
	second, err := Resolve(tgn(), entries(append(base, "The Grey NATO – 7 – Seven")...))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got, want := numbers(second), []float64{5, 6, 7}; !reflect.DeepEqual(got, want) {
		t.Fatalf("second = %v, want %v", got, want)
	}
}

func TestResolveRequiresStrategy(t *testing.T) {
	if _, err := Resolve(podcast.Podcast{Name: "x"}, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCatalogSkipsDisabledPodcasts(t *testing.T) {
	cfg := &config.Config{Podcasts: []config.Podcast{
		{Name: "tgn", Numbering: "greynato", DocBaseURL: "https://docs.example.com/tgn"},
		{Name: "old", Numbering: "sequential", Disabled: true},
	}}
	pods, err := Catalog(cfg)
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	if len(pods) != 1 || pods[0].Name != "tgn" || pods[0].Numbering.Name() != "greynato" {
		t.Fatalf("unexpected catalog %+v", pods)
	}
	if _, err := Lookup(cfg, "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if p, err := Lookup(cfg, "old"); err != nil || p.Numbering.Name() != "sequential" {
		t.Fatalf("Lookup(old) = %+v, %v", p, err)
	}
}
