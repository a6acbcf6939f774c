package pipeline

import (
	"context"
	"os"

	"whisperer/internal/services"
	"whisperer/internal/stage"
)

// setupStage creates the episode's working directory and its directory
// under the site docs.
type setupStage struct{}

func (setupStage) Name() string { return "setup" }

func (setupStage) Done(item *stage.Item) bool {
	return isDir(item.Dir) && isDir(item.PublishDir)
}

func (setupStage) Execute(_ context.Context, item *stage.Item) error {
	if err := os.MkdirAll(item.Dir, 0o755); err != nil {
		return services.Wrap(services.ErrLocalIO, "setup", "create episode directory", item.Dir, err)
	}
	if err := os.MkdirAll(item.PublishDir, 0o755); err != nil {
		return services.Wrap(services.ErrLocalIO, "setup", "create publish directory", item.PublishDir, err)
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
