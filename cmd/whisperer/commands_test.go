package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"whisperer/internal/history"
	"whisperer/internal/workspace"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t, envOptions{})

	out, err := runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Podcast tgn: sequential numbering, 1 subscriber(s), enabled")
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, err = runCLI(t, env, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
	if _, err := runCLI(t, env, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestResolvePrintsNumberedEpisodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssFeed(2, 1)))
	}))
	defer srv.Close()

	env := setupCLITestEnv(t, envOptions{feedURL: srv.URL + "/feed.rss"})
	out, err := runCLI(t, env, "resolve", "tgn")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	requireContains(t, out, "tgn: 2 episodes")
	requireContains(t, out, "Episode 1")
	requireContains(t, out, "Episode 2")
	requireContains(t, out, "2024-01-02")

	if _, err := os.Stat(filepath.Join(env.podcasts, "tgn", "1")); !os.IsNotExist(err) {
		t.Fatalf("resolve must not create episode directories, stat err=%v", err)
	}
}

func TestResolveUnknownPodcast(t *testing.T) {
	env := setupCLITestEnv(t, envOptions{})
	if _, err := runCLI(t, env, "resolve", "nope"); err == nil {
		t.Fatal("expected unknown podcast to fail")
	}
}

func seedEpisode(t *testing.T, env *cliTestEnv, number float64, files ...string) workspace.Layout {
	t.Helper()
	layout := workspace.Layout{
		PodcastsDir: env.podcasts,
		SitesDir:    filepath.Join(env.baseDir, "sites"),
		StateDir:    env.state,
	}
	for _, name := range files {
		path := layout.EpisodeFile("tgn", number, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return layout
}

func TestReprocessDryRunKeepsFiles(t *testing.T) {
	env := setupCLITestEnv(t, envOptions{})
	layout := seedEpisode(t, env, 3,
		workspace.AudioFile, workspace.TranscriptFile, workspace.MarkdownFile)

	out, err := runCLI(t, env, "reprocess", "tgn", "3", "--transcribe", "--dry-run")
	if err != nil {
		t.Fatalf("reprocess dry run: %v", err)
	}
	transcript := layout.EpisodeFile("tgn", 3, workspace.TranscriptFile)
	requireContains(t, out, "Would remove "+transcript)
	if _, err := os.Stat(transcript); err != nil {
		t.Fatalf("dry run removed transcript: %v", err)
	}
}

func TestReprocessRemovesStageArtifacts(t *testing.T) {
	env := setupCLITestEnv(t, envOptions{})
	layout := seedEpisode(t, env, 3,
		workspace.AudioFile, workspace.TranscriptFile, workspace.JobFile, workspace.MarkdownFile)

	out, err := runCLI(t, env, "reprocess", "tgn", "3", "--transcribe")
	if err != nil {
		t.Fatalf("reprocess: %v", err)
	}
	requireContains(t, out, "Removed ")
	for _, gone := range []string{workspace.TranscriptFile, workspace.JobFile, workspace.MarkdownFile} {
		if _, err := os.Stat(layout.EpisodeFile("tgn", 3, gone)); !os.IsNotExist(err) {
			t.Fatalf("expected %s removed, stat err=%v", gone, err)
		}
	}
	if _, err := os.Stat(layout.EpisodeFile("tgn", 3, workspace.AudioFile)); err != nil {
		t.Fatalf("audio should survive a transcribe reset: %v", err)
	}
}

func TestReprocessValidatesArguments(t *testing.T) {
	env := setupCLITestEnv(t, envOptions{})
	cases := [][]string{
		{"reprocess", "tgn", "3"},
		{"reprocess", "tgn", "three", "--all"},
		{"reprocess", "missing", "3", "--all"},
	}
	for _, args := range cases {
		if _, err := runCLI(t, env, args...); err == nil {
			t.Fatalf("expected %v to fail", args)
		}
	}
}

func TestEpisodeRejectsBadNumber(t *testing.T) {
	env := setupCLITestEnv(t, envOptions{})
	if _, err := runCLI(t, env, "episode", "tgn", "abc"); err == nil {
		t.Fatal("expected non-numeric episode number to fail")
	}
}

func TestStatusShowsHistoryAndTools(t *testing.T) {
	env := setupCLITestEnv(t, envOptions{})

	out, err := runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "No runs recorded yet")
	requireContains(t, out, "External tools")
	requireContains(t, out, "(optional)")

	store, err := history.Open(filepath.Join(env.state, "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	ctx := context.Background()
	started := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
	if err := store.StartRun(ctx, "0123456789abcdef", []string{"tgn"}, started); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	totals := history.Totals{Processed: 2, Failed: 1}
	if err := store.FinishRun(ctx, "0123456789abcdef", history.StatusPartial, totals, started.Add(90*time.Second)); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	store.Close()

	out, err = runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Recent runs")
	requireContains(t, out, "01234567")
	requireContains(t, out, history.StatusPartial)
	requireContains(t, out, "1m30s")
}
