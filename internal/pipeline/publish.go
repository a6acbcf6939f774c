package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"whisperer/internal/fileutil"
	"whisperer/internal/logging"
	"whisperer/internal/services"
	"whisperer/internal/stage"
	"whisperer/internal/workspace"
)

type publishStage struct{}

func (publishStage) Name() string { return "publish" }

func (publishStage) Done(item *stage.Item) bool {
	return fileutil.Exists(filepath.Join(item.PublishDir, workspace.MarkdownFile))
}

// Execute mirrors the episode artifacts into the site tree. episode.md goes
// last: its presence is what marks the episode complete.
func (publishStage) Execute(_ context.Context, item *stage.Item) error {
	if err := os.MkdirAll(item.PublishDir, 0o755); err != nil {
		return services.Wrap(services.ErrLocalIO, "publish", "create directory", item.PublishDir, err)
	}
	copied := 0
	for _, name := range []string{workspace.AudioFile, workspace.SnapshotFile, workspace.MarkdownFile} {
		src := filepath.Join(item.Dir, name)
		if name == workspace.SnapshotFile && !fileutil.Exists(src) {
			continue
		}
		ok, err := fileutil.CopyIfNewer(src, filepath.Join(item.PublishDir, name))
		if err != nil {
			return services.Wrap(services.ErrLocalIO, "publish", "copy "+name, "", err)
		}
		if ok {
			copied++
		}
	}
	item.Logger.Info("episode published to site",
		logging.String(logging.FieldEventType, "episode_published"),
		logging.String("dir", item.PublishDir),
		logging.Int("copied", copied),
	)
	return nil
}
