// Package stageexec runs a single stage with skip detection, per-attempt
// timeouts, retries, and uniform lifecycle logging.
package stageexec

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"whisperer/internal/logging"
	"whisperer/internal/retry"
	"whisperer/internal/services"
	"whisperer/internal/stage"
)

// Options controls one stage execution.
type Options struct {
	Logger  *slog.Logger
	Handler stage.Handler
	Item    *stage.Item
	// Policy governs retries; the zero value runs once per IsTransient.
	Policy retry.Policy
	// Timeout bounds each attempt. Zero means no bound.
	Timeout time.Duration
}

// Outcome reports what Run did.
type Outcome struct {
	Skipped  bool
	Attempts int
	Duration time.Duration
}

// Run executes the stage unless its artifact already exists.
func Run(ctx context.Context, opts Options) (Outcome, error) {
	var outcome Outcome
	if opts.Handler == nil {
		return outcome, fmt.Errorf("stage handler unavailable")
	}
	if opts.Item == nil {
		return outcome, fmt.Errorf("stage item is required")
	}
	name := opts.Handler.Name()
	stageCtx := services.WithStage(ctx, name)
	stageLogger := logging.WithContext(stageCtx, opts.Logger)
	opts.Item.Logger = stageLogger

	if opts.Handler.Done(opts.Item) {
		outcome.Skipped = true
		stageLogger.Debug("stage skipped; artifact present",
			logging.String(logging.FieldEventType, "stage_skipped"))
		return outcome, nil
	}

	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int("max_attempts", opts.Policy.Attempts()),
	)

	policy := opts.Policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		attrs := append([]logging.Attr{
			logging.Int("attempt", attempt),
			logging.Duration("retry_in", delay),
			logging.String(logging.FieldImpact, "stage will be retried"),
		}, logging.FailureAttrs(err)...)
		logging.WarnWithContext(stageLogger, "stage attempt failed", "stage_retry", attrs...)
	}

	start := time.Now()
	err := retry.Do(stageCtx, policy, func(ctx context.Context, attempt int) error {
		outcome.Attempts = attempt
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}
		return opts.Handler.Execute(ctx, opts.Item)
	})
	outcome.Duration = time.Since(start)

	if err == nil && !opts.Handler.Done(opts.Item) {
		err = services.Wrap(services.ErrLocalIO, name, "verify artifact",
			"stage finished without producing its artifact", nil)
	}
	if err != nil {
		attrs := append([]logging.Attr{
			logging.Int("attempts", outcome.Attempts),
			logging.Duration("duration", outcome.Duration),
		}, logging.FailureAttrs(err)...)
		logging.ErrorWithContext(stageLogger, "stage failed", "stage_failed", attrs...)
		return outcome, fmt.Errorf("stage %s: %w", name, err)
	}

	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("attempts", outcome.Attempts),
		logging.Duration("duration", outcome.Duration),
	)
	return outcome, nil
}
