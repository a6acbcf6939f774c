// Package transcription defines the submit/poll contract for diarized
// transcription backends and the remote HTTP implementation.
//
// A submitted Job is a plain value the pipeline persists next to the audio,
// so an interrupted run resumes polling instead of uploading again.
package transcription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"whisperer/internal/logging"
	"whisperer/internal/services"
)

var (
	// ErrUnknownJob means the backend no longer knows the job; submit again.
	ErrUnknownJob = errors.New("transcription job not found")
	// ErrJobFailed means the backend gave up on the job.
	ErrJobFailed = errors.New("transcription job failed")
)

// Job is the durable handle for a submitted transcription.
type Job struct {
	ID          string    `json:"job_id"`
	Backend     string    `json:"backend"`
	Podcast     string    `json:"podcast"`
	Episode     string    `json:"episode"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Result is one poll outcome. Transcript is set once Done.
type Result struct {
	Done       bool
	Transcript []byte
}

// Service is a transcription backend.
type Service interface {
	Name() string
	Submit(ctx context.Context, podcast, episode, audioPath string) (Job, error)
	Poll(ctx context.Context, job Job) (Result, error)
}

// AwaitOptions controls Await.
type AwaitOptions struct {
	Interval time.Duration
	Timeout  time.Duration
	Logger   *slog.Logger
	// Sleep waits between polls. Nil uses a context-aware timer.
	Sleep func(context.Context, time.Duration) error
}

// Await polls job until it completes, fails, or the timeout passes.
func Await(ctx context.Context, svc Service, job Job, opts AwaitOptions) ([]byte, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	start := time.Now()
	for polls := 1; ; polls++ {
		if err := sleep(ctx, opts.Interval); err != nil {
			return nil, err
		}
		result, err := svc.Poll(ctx, job)
		if err != nil {
			return nil, err
		}
		elapsed := time.Since(start)
		if result.Done {
			logger.Info("transcription complete",
				logging.String("job_id", job.ID),
				logging.Int("polls", polls),
				logging.Int("bytes", len(result.Transcript)),
				logging.Duration("elapsed", elapsed),
			)
			return result.Transcript, nil
		}
		logger.Debug("transcription pending",
			logging.String("job_id", job.ID),
			logging.Duration("elapsed", elapsed),
		)
		if opts.Timeout > 0 && elapsed >= opts.Timeout {
			return nil, services.Wrap(services.ErrTimeout, "transcribe", "poll",
				fmt.Sprintf("job %s still pending after %s", job.ID, opts.Timeout), nil)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
