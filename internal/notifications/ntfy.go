package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"whisperer/internal/config"
	"whisperer/internal/podcast"
	"whisperer/internal/services"
)

const userAgent = "whisperer/1.0"

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

// Ntfy posts operator pushes to an ntfy topic URL.
type Ntfy struct {
	endpoint string
	client   *http.Client
}

// NewNtfy creates an ntfy notifier.
func NewNtfy(cfg config.Notifications) *Ntfy {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Ntfy{
		endpoint: strings.TrimSpace(cfg.NtfyTopic),
		client:   &http.Client{Timeout: timeout},
	}
}

func (n *Ntfy) NotifyNewEpisodes(ctx context.Context, p podcast.Podcast, numbers []float64) error {
	if len(numbers) == 0 {
		return nil
	}
	labels := make([]string, len(numbers))
	for i, v := range numbers {
		labels[i] = podcast.FormatNumber(v)
	}
	return n.send(ctx, payload{
		title:   fmt.Sprintf("whisperer - %s", p.Name),
		message: fmt.Sprintf("%s: %s", NewEpisodesSubject(len(numbers)), strings.Join(labels, ", ")),
		tags:    []string{"whisperer", "new"},
	})
}

func (n *Ntfy) NotifyFailure(ctx context.Context, alert Alert) error {
	return n.send(ctx, payload{
		title:    "whisperer - " + FailureSubject,
		message:  alert.Text(),
		tags:     []string{"whisperer", "error", "alert"},
		priority: "high",
	})
}

func (n *Ntfy) Test(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "whisperer - Test",
		message:  "Notification system test",
		tags:     []string{"whisperer", "test"},
		priority: "low",
	})
}

func (n *Ntfy) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "notify", "build ntfy request", n.endpoint, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "notify", "send ntfy", "", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return services.Wrap(services.ErrExternalTool, "notify", "send ntfy",
			fmt.Sprintf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
