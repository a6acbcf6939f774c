package feed

import (
	"os"
	"testing"
	"time"
)

func loadFixture(t *testing.T) []Entry {
	t.Helper()
	data, err := os.ReadFile("testdata/tgn.xml")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	entries, err := NewParser().Parse(data)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	return entries
}

func TestParseExtractsEntryFields(t *testing.T) {
	entries := loadFixture(t)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	first := entries[0]
	if first.Index != 0 || first.Title != "The Grey NATO – 215 – Summer Watches" {
		t.Fatalf("unexpected first entry %+v", first)
	}
	if first.ItunesEpisode != "300" {
		t.Fatalf("expected itunes episode tag, got %q", first.ItunesEpisode)
	}
	if first.Subtitle != "Our favorite summer pieces" {
		t.Fatalf("unexpected subtitle %q", first.Subtitle)
	}
	if first.EnclosureURL != "https://cdn.example.com/215.mp3" {
		t.Fatalf("unexpected enclosure %q", first.EnclosureURL)
	}
	want := time.Date(2024, 7, 3, 10, 0, 0, 0, time.UTC)
	if !first.Published.Equal(want) || !first.HasDate() {
		t.Fatalf("unexpected publish date %s", first.Published)
	}
	if entries[1].Link != "https://thegreynato.com/special" {
		t.Fatalf("unexpected link %q", entries[1].Link)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := NewParser().Parse([]byte("definitely not xml")); err == nil {
		t.Fatal("expected parse error")
	}
}
