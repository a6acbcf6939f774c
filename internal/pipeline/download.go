package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"whisperer/internal/fileutil"
	"whisperer/internal/logging"
	"whisperer/internal/retry"
	"whisperer/internal/services"
	"whisperer/internal/stage"
	"whisperer/internal/workspace"
)

type downloadStage struct {
	client    *http.Client
	userAgent string
}

func (*downloadStage) Name() string { return "download" }

func (*downloadStage) Done(item *stage.Item) bool {
	return fileutil.Exists(filepath.Join(item.Dir, workspace.AudioFile))
}

// Execute streams the enclosure into episode.mp3.part and renames it into
// place once the body has been read in full.
func (d *downloadStage) Execute(ctx context.Context, item *stage.Item) error {
	source := strings.TrimSpace(item.Episode.MP3URL)
	if source == "" {
		return services.Wrap(services.ErrValidation, "download", "resolve enclosure", "episode has no mp3 url", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return services.Wrap(services.ErrValidation, "download", "build request", source, err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "download", "request", source, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return retry.NewStatusError("download "+source, resp, body)
	}

	final := filepath.Join(item.Dir, workspace.AudioFile)
	partial := final + ".part"
	written, err := writePartial(partial, resp.Body)
	if err != nil {
		_ = os.Remove(partial)
		return err
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		_ = os.Remove(partial)
		return services.Wrap(services.ErrTransient, "download", "verify length",
			fmt.Sprintf("got %d of %d bytes", written, resp.ContentLength), io.ErrUnexpectedEOF)
	}
	if err := os.Rename(partial, final); err != nil {
		return services.Wrap(services.ErrLocalIO, "download", "rename", final, err)
	}
	item.Logger.Info("audio downloaded",
		logging.String(logging.FieldEventType, "audio_downloaded"),
		logging.String("url", source),
		logging.Int64("bytes", written),
	)
	return nil
}

func writePartial(path string, body io.Reader) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, services.Wrap(services.ErrLocalIO, "download", "create", path, err)
	}
	written, copyErr := io.Copy(file, body)
	closeErr := file.Close()
	if copyErr != nil {
		return written, services.Wrap(services.ErrTransient, "download", "read body", "", copyErr)
	}
	if closeErr != nil {
		return written, services.Wrap(services.ErrLocalIO, "download", "close", path, closeErr)
	}
	return written, nil
}
