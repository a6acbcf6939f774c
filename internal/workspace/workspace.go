// Package workspace owns the on-disk layout: per-episode working
// directories, the published site tree, and the state directory.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"whisperer/internal/config"
	"whisperer/internal/podcast"
	"whisperer/internal/services"
)

// Artifact file names shared by the pipeline stages and the publisher.
const (
	AudioFile       = "episode.mp3"
	TranscriptFile  = "transcript.json"
	JobFile         = "transcribe-job.json"
	SpeakerMapFile  = "speaker-map.json"
	SynopsisFile    = "synopsis.txt"
	MarkdownFile    = "episode.md"
	SnapshotFile    = "episode.html"
	IndexFile       = "episodes.md"
	ShowNotesFile   = "shownotes.md"
	partialSuffix   = ".part"
	docsDirName     = "docs"
	historyFileName = "history.db"
)

// Stage names accepted by Reset.
const (
	StageDownload   = "download"
	StageTranscribe = "transcribe"
	StageAttribute  = "attribute"
	StageRender     = "render"
	StageAll        = "all"
)

var stageArtifacts = map[string][]string{
	StageDownload:   {AudioFile, AudioFile + partialSuffix},
	StageTranscribe: {TranscriptFile, JobFile},
	StageAttribute:  {SpeakerMapFile, SynopsisFile},
	StageRender:     {MarkdownFile, SnapshotFile},
}

// ResetStages lists the stage names Reset understands, in pipeline order.
func ResetStages() []string {
	return []string{StageDownload, StageTranscribe, StageAttribute, StageRender, StageAll}
}

// Layout resolves every path the application reads or writes.
type Layout struct {
	PodcastsDir string
	SitesDir    string
	StateDir    string
}

func FromConfig(cfg *config.Config) Layout {
	return Layout{
		PodcastsDir: cfg.Paths.PodcastsDir,
		SitesDir:    cfg.Paths.SitesDir,
		StateDir:    cfg.Paths.StateDir,
	}
}

// EpisodeDir is the private working directory: podcasts/<p>/<n>.
func (l Layout) EpisodeDir(name string, number float64) string {
	return filepath.Join(l.PodcastsDir, name, podcast.FormatNumber(number))
}

// EpisodeFile joins an artifact name onto the working directory.
func (l Layout) EpisodeFile(name string, number float64, file string) string {
	return filepath.Join(l.EpisodeDir(name, number), file)
}

// PartialAudio is where downloads stream before the final rename.
func (l Layout) PartialAudio(name string, number float64) string {
	return l.EpisodeFile(name, number, AudioFile+partialSuffix)
}

// SiteDir is the static-site project for a podcast: sites/<p>.
func (l Layout) SiteDir(name string) string {
	return filepath.Join(l.SitesDir, name)
}

// DocsDir holds the site's markdown sources.
func (l Layout) DocsDir(name string) string {
	return filepath.Join(l.SiteDir(name), docsDirName)
}

// PublishDir is sites/<p>/docs/<n>.
func (l Layout) PublishDir(name string, number float64) string {
	return filepath.Join(l.DocsDir(name), podcast.FormatNumber(number))
}

// CompletionMarker is the published page whose presence marks an episode
// complete.
func (l Layout) CompletionMarker(name string, number float64) string {
	return filepath.Join(l.PublishDir(name, number), MarkdownFile)
}

func (l Layout) IndexPath(name string) string {
	return filepath.Join(l.DocsDir(name), IndexFile)
}

func (l Layout) ShowNotesPath(name string) string {
	return filepath.Join(l.DocsDir(name), ShowNotesFile)
}

func (l Layout) FeedCacheDir() string {
	return filepath.Join(l.StateDir, "feeds")
}

func (l Layout) LockPath(name string) string {
	return filepath.Join(l.StateDir, name+".lock")
}

func (l Layout) HistoryPath() string {
	return filepath.Join(l.StateDir, historyFileName)
}

// ResetResult reports what Reset removed, or would remove on a dry run.
type ResetResult struct {
	Paths   []string
	Missing []string
}

// Reset deletes the working artifacts owned by the named stages so the next
// run recomputes them. The rendered page and the published completion
// marker always go too, otherwise the episode would never be rebuilt.
func (l Layout) Reset(name string, number float64, stages []string, dryRun bool) (ResetResult, error) {
	files, err := resetFiles(stages)
	if err != nil {
		return ResetResult{}, err
	}
	var result ResetResult
	targets := make([]string, 0, len(files)+1)
	for _, file := range files {
		targets = append(targets, l.EpisodeFile(name, number, file))
	}
	targets = append(targets, l.CompletionMarker(name, number))

	for _, target := range targets {
		if _, statErr := os.Stat(target); errors.Is(statErr, fs.ErrNotExist) {
			result.Missing = append(result.Missing, target)
			continue
		}
		result.Paths = append(result.Paths, target)
		if dryRun {
			continue
		}
		if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return result, services.Wrap(services.ErrLocalIO, "reprocess", "remove artifact", target, err)
		}
	}
	return result, nil
}

func resetFiles(stages []string) ([]string, error) {
	if len(stages) == 0 {
		return nil, services.Wrap(services.ErrValidation, "reprocess", "select stages", "no stages selected", nil)
	}
	files := []string{MarkdownFile}
	for _, stage := range stages {
		if stage == StageAll {
			return resetFiles([]string{StageDownload, StageTranscribe, StageAttribute, StageRender})
		}
		owned, ok := stageArtifacts[stage]
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "reprocess", "select stages",
				fmt.Sprintf("unknown stage %q", stage), nil)
		}
		for _, file := range owned {
			if !slices.Contains(files, file) {
				files = append(files, file)
			}
		}
	}
	return files, nil
}
