package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"whisperer/internal/fileutil"
	"whisperer/internal/logging"
	"whisperer/internal/podcast"
	"whisperer/internal/retry"
	"whisperer/internal/services"
	"whisperer/internal/services/transcription"
	"whisperer/internal/stage"
	"whisperer/internal/transcript"
	"whisperer/internal/workspace"
)

type transcribeStage struct {
	svc      transcription.Service
	interval time.Duration
	ceiling  time.Duration
	sleep    func(context.Context, time.Duration) error
	now      func() time.Time
}

func (*transcribeStage) Name() string { return "transcribe" }

func (*transcribeStage) Done(item *stage.Item) bool {
	return fileutil.Exists(filepath.Join(item.Dir, workspace.TranscriptFile))
}

// Execute resumes a persisted job when one exists and submits otherwise. A
// job the backend has forgotten is discarded and submitted once more.
func (t *transcribeStage) Execute(ctx context.Context, item *stage.Item) error {
	if t.svc == nil {
		return services.Wrap(services.ErrConfiguration, "transcribe", "init", "no transcription backend configured", nil)
	}
	jobPath := filepath.Join(item.Dir, workspace.JobFile)
	job, resumed, err := t.loadJob(jobPath, item)
	if err != nil {
		return err
	}

	var data []byte
	for round := 0; round < 2; round++ {
		if !resumed {
			if job, err = t.submit(ctx, item, jobPath); err != nil {
				return err
			}
		}
		data, err = transcription.Await(ctx, t.svc, job, transcription.AwaitOptions{
			Interval: t.interval,
			Timeout:  t.ceiling,
			Logger:   item.Logger,
			Sleep:    t.sleep,
		})
		if errors.Is(err, transcription.ErrUnknownJob) && resumed {
			logging.WarnWithContext(item.Logger, "persisted transcription job unknown to backend", "transcribe_job_lost",
				logging.String("job_id", job.ID),
				logging.String(logging.FieldImpact, "audio will be submitted again"),
			)
			_ = os.Remove(jobPath)
			resumed = false
			continue
		}
		break
	}
	if err != nil {
		if errors.Is(err, transcription.ErrJobFailed) || errors.Is(err, transcription.ErrUnknownJob) {
			_ = os.Remove(jobPath)
		}
		return err
	}

	doc, err := transcript.Parse(data)
	if err != nil {
		_ = os.Remove(jobPath)
		return services.Wrap(services.ErrExternalTool, "transcribe", "parse transcript", "", err)
	}
	if err := fileutil.WriteFileAtomic(filepath.Join(item.Dir, workspace.TranscriptFile), data, 0o644); err != nil {
		return services.Wrap(services.ErrLocalIO, "transcribe", "write transcript", "", err)
	}
	if err := os.Remove(jobPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.WarnWithContext(item.Logger, "failed to remove transcription job file", "transcribe_cleanup",
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale job file left beside the transcript"),
		)
	}
	item.Logger.Info("transcript saved",
		logging.String(logging.FieldEventType, "transcript_saved"),
		logging.String("backend", t.svc.Name()),
		logging.Int("segments", len(doc.Segments)),
	)
	return nil
}

func (t *transcribeStage) loadJob(path string, item *stage.Item) (transcription.Job, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return transcription.Job{}, false, nil
	}
	if err != nil {
		return transcription.Job{}, false, services.Wrap(services.ErrLocalIO, "transcribe", "read job", path, err)
	}
	var job transcription.Job
	if err := json.Unmarshal(data, &job); err != nil || job.ID == "" || job.Backend != t.svc.Name() {
		item.Logger.Info("discarding stale transcription job",
			logging.String(logging.FieldEventType, "transcribe_job_discarded"),
			logging.String("path", path),
		)
		_ = os.Remove(path)
		return transcription.Job{}, false, nil
	}
	item.Logger.Info("resuming transcription job",
		logging.String(logging.FieldEventType, "transcribe_resume"),
		logging.String("job_id", job.ID),
		logging.String("submitted_at", job.SubmittedAt.Format(time.RFC3339)),
	)
	return job, true, nil
}

func (t *transcribeStage) submit(ctx context.Context, item *stage.Item, jobPath string) (transcription.Job, error) {
	audio := filepath.Join(item.Dir, workspace.AudioFile)
	job, err := t.svc.Submit(ctx, item.Podcast.Name, podcast.FormatNumber(item.Episode.Number), audio)
	if err != nil {
		return transcription.Job{}, err
	}
	if job.Backend == "" {
		job.Backend = t.svc.Name()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = t.now().UTC()
	}
	if err := fileutil.WriteJSONAtomic(jobPath, job); err != nil {
		return transcription.Job{}, services.Wrap(services.ErrLocalIO, "transcribe", "persist job", jobPath, err)
	}
	item.Logger.Info("transcription submitted",
		logging.String(logging.FieldEventType, "transcribe_submitted"),
		logging.String("backend", job.Backend),
		logging.String("job_id", job.ID),
	)
	return job, nil
}

func transcriptionRetryable(err error) bool {
	return retry.IsTransient(err) ||
		errors.Is(err, transcription.ErrJobFailed) ||
		errors.Is(err, transcription.ErrUnknownJob)
}
