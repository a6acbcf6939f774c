package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"whisperer/internal/config"
	"whisperer/internal/logging"
	"whisperer/internal/podcast"
	"whisperer/internal/services"
)

// Service is the notification surface used by the runner.
type Service interface {
	NotifyNewEpisodes(ctx context.Context, p podcast.Podcast, numbers []float64) error
	NotifyFailure(ctx context.Context, alert Alert) error
	Test(ctx context.Context) error
}

// Alert describes a failed podcast or episode for the operator.
type Alert struct {
	RunID   string
	Podcast string
	Episode string
	Kind    string
	Hint    string
	Message string
}

// NewAlert classifies err into an operator alert.
func NewAlert(runID, podcastName, episode string, err error) Alert {
	alert := Alert{RunID: runID, Podcast: podcastName, Episode: episode}
	if err != nil {
		alert.Kind = services.Kind(err)
		alert.Hint = services.Hint(err)
		alert.Message = strings.TrimSpace(err.Error())
	}
	return alert
}

// Text renders the alert as a plain-text message body.
func (a Alert) Text() string {
	var b strings.Builder
	where := a.Podcast
	if a.Episode != "" {
		where += " episode " + a.Episode
	}
	if where == "" {
		where = "run"
	}
	fmt.Fprintf(&b, "Processing failed for %s.\n\n", where)
	if a.Kind != "" {
		fmt.Fprintf(&b, "Error type: %s\n", a.Kind)
	}
	if a.Message != "" {
		fmt.Fprintf(&b, "Error: %s\n", a.Message)
	}
	if a.Hint != "" {
		fmt.Fprintf(&b, "Next step: %s\n", a.Hint)
	}
	if a.RunID != "" {
		fmt.Fprintf(&b, "Run: %s\n", a.RunID)
	}
	return b.String()
}

// NewService assembles the configured transports. Email is the subscriber
// channel; ntfy is the operator channel.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	var subscriber Service
	if !cfg.SMTP.Disabled && strings.TrimSpace(cfg.SMTP.Host) != "" {
		subscriber = NewEmail(cfg.SMTP, logger)
	}
	var operator Service
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		operator = NewNtfy(cfg.Notifications)
	}
	switch {
	case subscriber == nil && operator == nil:
		return Noop{}
	case operator == nil:
		return subscriber
	case subscriber == nil:
		return operator
	default:
		return &fanout{
			subscriber: subscriber,
			operators:  []Service{operator},
			logger:     logging.NewComponentLogger(logger, "notifications"),
		}
	}
}

// fanout delivers to the subscriber transport and every operator transport.
// A new-episode announcement fails only when the subscriber transport fails;
// operator push failures on that path are logged.
type fanout struct {
	subscriber Service
	operators  []Service
	logger     *slog.Logger
}

func (f *fanout) NotifyNewEpisodes(ctx context.Context, p podcast.Podcast, numbers []float64) error {
	if err := f.subscriber.NotifyNewEpisodes(ctx, p, numbers); err != nil {
		return err
	}
	for _, svc := range f.operators {
		if err := svc.NotifyNewEpisodes(ctx, p, numbers); err != nil {
			logging.WarnWithContext(f.logger, "operator push for new episodes failed", "notify_push_failed",
				append(logging.FailureAttrs(err),
					logging.String(logging.FieldPodcast, p.Name),
					logging.String(logging.FieldImpact, "subscribers were emailed; operator push missed"),
				)...,
			)
		}
	}
	return nil
}

func (f *fanout) NotifyFailure(ctx context.Context, alert Alert) error {
	errs := []error{f.subscriber.NotifyFailure(ctx, alert)}
	for _, svc := range f.operators {
		errs = append(errs, svc.NotifyFailure(ctx, alert))
	}
	return errors.Join(errs...)
}

func (f *fanout) Test(ctx context.Context) error {
	errs := []error{f.subscriber.Test(ctx)}
	for _, svc := range f.operators {
		errs = append(errs, svc.Test(ctx))
	}
	return errors.Join(errs...)
}

// Noop discards every notification.
type Noop struct{}

func (Noop) NotifyNewEpisodes(context.Context, podcast.Podcast, []float64) error { return nil }
func (Noop) NotifyFailure(context.Context, Alert) error                          { return nil }
func (Noop) Test(context.Context) error                                          { return nil }
