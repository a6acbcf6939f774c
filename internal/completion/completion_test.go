package completion

import (
	"os"
	"path/filepath"
	"testing"

	"whisperer/internal/podcast"
	"whisperer/internal/workspace"
)

func TestFilterIncompleteTracksPublishedPages(t *testing.T) {
	root := t.TempDir()
	layout := workspace.Layout{SitesDir: filepath.Join(root, "sites"), PodcastsDir: filepath.Join(root, "podcasts")}
	tracker := New(layout)
	episodes := []podcast.Episode{{Number: 1}, {Number: 1.5}, {Number: 2}}

	if got := tracker.FilterIncomplete("tgn", episodes); len(got) != 3 {
		t.Fatalf("expected all incomplete, got %v", got)
	}

	marker := layout.CompletionMarker("tgn", 1.5)
	if err := os.MkdirAll(filepath.Dir(marker), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(marker, []byte("# done\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !tracker.IsComplete("tgn", 1.5) {
		t.Fatal("1.5 should be complete")
	}
	got := tracker.FilterIncomplete("tgn", episodes)
	if len(got) != 2 || got[0].Number != 1 || got[1].Number != 2 {
		t.Fatalf("FilterIncomplete = %v", got)
	}
	if tracker.IsComplete("wcl", 1.5) {
		t.Fatal("completion must be per podcast")
	}
}

func TestWorkingMarkdownDoesNotCountAsComplete(t *testing.T) {
	root := t.TempDir()
	layout := workspace.Layout{SitesDir: filepath.Join(root, "sites"), PodcastsDir: filepath.Join(root, "podcasts")}
	working := layout.EpisodeFile("tgn", 4, workspace.MarkdownFile)
	if err := os.MkdirAll(filepath.Dir(working), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(working, []byte("draft"), 0o644); err != nil {
		t.Fatal(err)
	}
	if New(layout).IsComplete("tgn", 4) {
		t.Fatal("unpublished markdown must not mark completion")
	}
}
