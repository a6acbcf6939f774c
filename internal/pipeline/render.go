package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"whisperer/internal/fileutil"
	"whisperer/internal/logging"
	"whisperer/internal/render"
	"whisperer/internal/services"
	"whisperer/internal/stage"
	"whisperer/internal/transcript"
	"whisperer/internal/workspace"
)

type renderStage struct{}

func (renderStage) Name() string { return "render" }

func (renderStage) Done(item *stage.Item) bool {
	return fileutil.Exists(filepath.Join(item.Dir, workspace.MarkdownFile))
}

func (renderStage) Execute(_ context.Context, item *stage.Item) error {
	chunks, err := loadChunks(item.Dir)
	if err != nil {
		return err
	}
	mapData, err := os.ReadFile(filepath.Join(item.Dir, workspace.SpeakerMapFile))
	if err != nil {
		return services.Wrap(services.ErrLocalIO, "render", "read speaker map", "", err)
	}
	speakers, err := transcript.ParseSpeakerMap(mapData)
	if err != nil {
		return services.Wrap(services.ErrValidation, "render", "parse speaker map", "", err)
	}
	synopsis, err := os.ReadFile(filepath.Join(item.Dir, workspace.SynopsisFile))
	if err != nil {
		return services.Wrap(services.ErrLocalIO, "render", "read synopsis", "", err)
	}
	excerpt := item.Excerpt
	if excerpt == "" && item.Episode.Subtitle == "" {
		excerpt = excerptFromFile(filepath.Join(item.Dir, workspace.SnapshotFile))
	}

	page := render.Markdown(render.Page{
		Episode:  item.Episode,
		Synopsis: string(synopsis),
		Speakers: speakers,
		Chunks:   chunks,
		Excerpt:  excerpt,
	})
	if err := fileutil.WriteFileAtomic(filepath.Join(item.Dir, workspace.MarkdownFile), page, 0o644); err != nil {
		return services.Wrap(services.ErrLocalIO, "render", "write markdown", "", err)
	}
	item.Logger.Info("episode page rendered",
		logging.String(logging.FieldEventType, "page_rendered"),
		logging.Int("rows", len(chunks)),
		logging.Int("bytes", len(page)),
	)
	return nil
}
