// Package site maintains each podcast's static site: the episode index page
// plus the build, search index and deploy commands.
package site

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"whisperer/internal/config"
	"whisperer/internal/deps"
	"whisperer/internal/fileutil"
	"whisperer/internal/logging"
	"whisperer/internal/podcast"
	"whisperer/internal/render"
	"whisperer/internal/services"
	"whisperer/internal/snapshot"
	"whisperer/internal/workspace"
)

// Placeholders expanded inside configured command arguments.
const (
	DeployDirPlaceholder = "{deploy_dir}"
	PodcastPlaceholder   = "{podcast}"
)

const outputTail = 2048

// CommandRunner executes name with args inside dir and returns the combined
// output.
type CommandRunner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// Builder regenerates and publishes podcast sites.
type Builder struct {
	layout    workspace.Layout
	cfg       config.Site
	deployDir string
	logger    *slog.Logger
	run       CommandRunner
	now       func() time.Time
}

// New creates a Builder.
func New(layout workspace.Layout, cfg config.Site, deployDir string, logger *slog.Logger) *Builder {
	return &Builder{
		layout:    layout,
		cfg:       cfg,
		deployDir: deployDir,
		logger:    logging.NewComponentLogger(logger, "site"),
		run:       execRunner,
		now:       time.Now,
	}
}

// FromConfig creates a Builder from the loaded configuration.
func FromConfig(cfg *config.Config, logger *slog.Logger) *Builder {
	return New(workspace.FromConfig(cfg), cfg.Site, cfg.Paths.DeployDir, logger)
}

// WithRunner replaces the subprocess runner (for tests).
func (b *Builder) WithRunner(run CommandRunner) {
	if run != nil {
		b.run = run
	}
}

// Enabled reports whether build commands run at all.
func (b *Builder) Enabled() bool {
	return b.cfg.Enabled
}

// WriteIndex rewrites docs/episodes.md for the given episodes, in number
// order.
func (b *Builder) WriteIndex(name string, episodes []podcast.Episode) (string, error) {
	sorted := slices.Clone(episodes)
	slices.SortStableFunc(sorted, func(a, b podcast.Episode) int {
		switch {
		case a.Number < b.Number:
			return -1
		case a.Number > b.Number:
			return 1
		default:
			return 0
		}
	})
	path := b.layout.IndexPath(name)
	if err := fileutil.WriteFileAtomic(path, render.Index(sorted, b.now().UTC()), 0o644); err != nil {
		return "", services.Wrap(services.ErrLocalIO, "site", "write index", path, err)
	}
	b.logger.Info("episode index written",
		logging.String(logging.FieldPodcast, name),
		logging.String(logging.FieldEventType, "index_written"),
		logging.Int("episodes", len(sorted)),
	)
	return path, nil
}

// WriteShowNotes collects the outbound links from each published episode
// snapshot, newest first, into docs/shownotes.md. Episodes without a
// snapshot are left out.
func (b *Builder) WriteShowNotes(p podcast.Podcast, episodes []podcast.Episode) (string, error) {
	sorted := slices.Clone(episodes)
	slices.SortStableFunc(sorted, func(a, b podcast.Episode) int {
		switch {
		case a.Number > b.Number:
			return -1
		case a.Number < b.Number:
			return 1
		default:
			return 0
		}
	})

	entries := make([]render.ShowNotesEntry, 0, len(sorted))
	for _, ep := range sorted {
		page := filepath.Join(b.layout.PublishDir(p.Name, ep.Number), workspace.SnapshotFile)
		data, err := os.ReadFile(page)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", services.Wrap(services.ErrLocalIO, "site", "read snapshot", page, err)
		}
		entries = append(entries, render.ShowNotesEntry{
			Episode: ep,
			Links:   snapshot.Links(data, ep.EpisodeURL, p.ShortLinks),
		})
	}

	path := b.layout.ShowNotesPath(p.Name)
	if err := fileutil.WriteFileAtomic(path, render.ShowNotes(p.Name, entries, b.now().UTC()), 0o644); err != nil {
		return "", services.Wrap(services.ErrLocalIO, "site", "write show notes", path, err)
	}
	b.logger.Info("show notes written",
		logging.String(logging.FieldPodcast, p.Name),
		logging.String(logging.FieldEventType, "shownotes_written"),
		logging.Int("episodes", len(entries)),
	)
	return path, nil
}

// Publish runs the build, search index and deploy commands in order from the
// podcast's site directory. The first failing command stops the sequence.
func (b *Builder) Publish(ctx context.Context, name string) error {
	if !b.cfg.Enabled {
		b.logger.Debug("site build disabled", logging.String(logging.FieldPodcast, name))
		return nil
	}
	dir := b.layout.SiteDir(name)
	steps := []struct {
		label string
		argv  []string
	}{
		{"build", b.cfg.BuildCommand},
		{"index", b.cfg.IndexCommand},
		{"deploy", b.cfg.DeployCommand},
	}
	for _, step := range steps {
		if len(step.argv) == 0 {
			continue
		}
		argv := b.expand(step.argv, name)
		start := time.Now()
		out, err := b.run(ctx, dir, argv[0], argv[1:]...)
		if err != nil {
			return services.Wrap(services.ErrExternalTool, "site", step.label,
				fmt.Sprintf("%s: %s", strings.Join(argv, " "), tail(out)), err)
		}
		b.logger.Info("site step complete",
			logging.String(logging.FieldPodcast, name),
			logging.String(logging.FieldEventType, "site_"+step.label),
			logging.String("command", argv[0]),
			logging.Duration("duration", time.Since(start)),
		)
	}
	return nil
}

// Requirements lists the site tools for dependency checks.
func (b *Builder) Requirements() []deps.Requirement {
	return deps.Requirements(&config.Config{Site: b.cfg})
}

// Check reports whether the site tools are installed.
func (b *Builder) Check() []deps.Status {
	return deps.CheckBinaries(b.Requirements())
}

func (b *Builder) expand(argv []string, name string) []string {
	replacer := strings.NewReplacer(DeployDirPlaceholder, b.deployDir, PodcastPlaceholder, name)
	out := make([]string, len(argv))
	for i, arg := range argv {
		out[i] = replacer.Replace(arg)
	}
	return out
}

func execRunner(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.Bytes(), err
}

func tail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > outputTail {
		s = "..." + s[len(s)-outputTail:]
	}
	if s == "" {
		return "no output"
	}
	return s
}
