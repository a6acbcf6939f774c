package notifications

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"whisperer/internal/config"
	"whisperer/internal/logging"
	"whisperer/internal/notifystate"
	"whisperer/internal/podcast"
	"whisperer/internal/services"
)

func TestNewEpisodesSubject(t *testing.T) {
	if got := NewEpisodesSubject(1); got != "New episode available" {
		t.Fatalf("unexpected singular subject %q", got)
	}
	if got := NewEpisodesSubject(3); got != "3 new episodes are available" {
		t.Fatalf("unexpected plural subject %q", got)
	}
}

func TestNewEpisodesBodyListsSortedLinks(t *testing.T) {
	body := NewEpisodesBody("https://tgn.example.com/", []float64{12, 11.5})
	want := "New episodes:\n\nhttps://tgn.example.com/11.5/episode/\nhttps://tgn.example.com/12/episode/\n" + Disclaimer + "\n"
	if body != want {
		t.Fatalf("unexpected body:\n%q\nwant\n%q", body, want)
	}
}

func TestEmailNotifyNewEpisodes(t *testing.T) {
	e := NewEmail(config.SMTP{From: "bot@example.com", Admin: "admin@example.com"}, logging.NewNop())
	var sent []Message
	e.WithSender(func(_ context.Context, msg Message) error {
		sent = append(sent, msg)
		return nil
	})
	p := podcast.Podcast{Name: "tgn", Emails: []string{"a@example.com", "b@example.com"}, DocBaseURL: "https://tgn.example.com"}

	if err := e.NotifyNewEpisodes(context.Background(), p, nil); err != nil {
		t.Fatalf("empty notify: %v", err)
	}
	if len(sent) != 0 {
		t.Fatal("no mail expected for an empty episode list")
	}
	if err := e.NotifyNewEpisodes(context.Background(), p, []float64{42}); err != nil {
		t.Fatalf("NotifyNewEpisodes: %v", err)
	}
	if len(sent) != 1 || sent[0].Subject != "New episode available" || len(sent[0].To) != 2 {
		t.Fatalf("unexpected message %#v", sent)
	}
	if !strings.Contains(sent[0].Body, "https://tgn.example.com/42/episode/") {
		t.Fatalf("missing link in body %q", sent[0].Body)
	}
}

func TestEmailFailureGoesToAdmin(t *testing.T) {
	e := NewEmail(config.SMTP{From: "bot@example.com", Admin: "admin@example.com"}, logging.NewNop())
	var got Message
	e.WithSender(func(_ context.Context, msg Message) error {
		got = msg
		return nil
	})
	err := services.Wrap(services.ErrValidation, "resolve", "numbering", "duplicate episode number 12", nil)
	if err := e.NotifyFailure(context.Background(), NewAlert("run-1", "tgn", "", err)); err != nil {
		t.Fatalf("NotifyFailure: %v", err)
	}
	if got.Subject != FailureSubject || got.To[0] != "admin@example.com" {
		t.Fatalf("unexpected alert %#v", got)
	}
	for _, want := range []string{"Processing failed for tgn.", "Error type: validation", "duplicate episode number 12", "Run: run-1"} {
		if !strings.Contains(got.Body, want) {
			t.Errorf("alert body missing %q:\n%s", want, got.Body)
		}
	}
}

func TestEmailSendFailureIsTransient(t *testing.T) {
	e := NewEmail(config.SMTP{From: "bot@example.com"}, logging.NewNop())
	e.WithSender(func(context.Context, Message) error { return errors.New("connection refused") })
	p := podcast.Podcast{Name: "tgn", Emails: []string{"a@example.com"}}
	err := e.NotifyNewEpisodes(context.Background(), p, []float64{1})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestMessageBytesHeaders(t *testing.T) {
	msg := Message{From: "bot@example.com", To: []string{"a@example.com", "b@example.com"}, Subject: "Hello", Body: "line one\nline two\n"}
	raw := string(msg.Bytes())
	for _, want := range []string{
		"From: bot@example.com\r\n",
		"To: a@example.com, b@example.com\r\n",
		"Subject: Hello\r\n",
		"@example.com>\r\n",
		"\r\n\r\nline one\r\nline two\r\n",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("message missing %q:\n%s", want, raw)
		}
	}
}

func TestNtfyFailurePush(t *testing.T) {
	var title, priority, body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		title = r.Header.Get("Title")
		priority = r.Header.Get("Priority")
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNtfy(config.Notifications{NtfyTopic: server.URL})
	if err := n.NotifyFailure(context.Background(), Alert{Podcast: "wcl", Episode: "7", Message: "boom"}); err != nil {
		t.Fatalf("NotifyFailure: %v", err)
	}
	if title != "whisperer - "+FailureSubject || priority != "high" {
		t.Fatalf("unexpected headers title=%q priority=%q", title, priority)
	}
	if !strings.Contains(body, "wcl episode 7") {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestNtfyRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic missing", http.StatusNotFound)
	}))
	defer server.Close()
	n := NewNtfy(config.Notifications{NtfyTopic: server.URL})
	if err := n.Test(context.Background()); err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected status error, got %v", err)
	}
}

type recording struct {
	Noop
	calls int
	err   error
}

func (r *recording) NotifyFailure(context.Context, Alert) error {
	r.calls++
	return r.err
}

func TestFanoutDeliversToAll(t *testing.T) {
	first := &recording{err: errors.New("smtp down")}
	second := &recording{}
	f := &fanout{subscriber: first, operators: []Service{second}, logger: logging.NewNop()}
	err := f.NotifyFailure(context.Background(), Alert{})
	if err == nil || first.calls != 1 || second.calls != 1 {
		t.Fatalf("expected both services called and the error surfaced, err=%v", err)
	}
}

func TestFanoutPushOutageDoesNotRepeatSubscriberMail(t *testing.T) {
	pushes := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		pushes++
		http.Error(w, "unavailable", http.StatusInternalServerError)
	}))
	defer server.Close()

	email := NewEmail(config.SMTP{From: "bot@example.com"}, logging.NewNop())
	mailed := map[string]int{}
	email.WithSender(func(_ context.Context, msg Message) error {
		for _, line := range strings.Split(msg.Body, "\n") {
			if strings.HasSuffix(line, "/episode/") {
				mailed[line]++
			}
		}
		return nil
	})
	svc := &fanout{
		subscriber: email,
		operators:  []Service{NewNtfy(config.Notifications{NtfyTopic: server.URL})},
		logger:     logging.NewNop(),
	}
	p := podcast.Podcast{Name: "tgn", Emails: []string{"a@example.com"}, DocBaseURL: "https://tgn.example.com"}
	dispatch := func(ctx context.Context, _ string, numbers []float64) error {
		return svc.NotifyNewEpisodes(ctx, p, numbers)
	}

	state := notifystate.NewStore(t.TempDir())
	if _, err := state.DiffNew(context.Background(), "tgn", []float64{1}, dispatch); err != nil {
		t.Fatalf("baseline: %v", err)
	}
	for run := 0; run < 3; run++ {
		if _, err := state.DiffNew(context.Background(), "tgn", []float64{1, 2}, dispatch); err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
	}
	if got := mailed["https://tgn.example.com/2/episode/"]; got != 1 {
		t.Fatalf("subscribers mailed %d times about episode 2, want 1", got)
	}
	if pushes != 1 {
		t.Fatalf("expected one push attempt, got %d", pushes)
	}
}

func TestNewServiceSelectsTransports(t *testing.T) {
	cfg := config.Default()
	cfg.SMTP.Host = ""
	if _, ok := NewService(&cfg, logging.NewNop()).(Noop); !ok {
		t.Fatal("expected noop without transports")
	}
	cfg.SMTP.Host = "smtp.example.com"
	if _, ok := NewService(&cfg, logging.NewNop()).(*Email); !ok {
		t.Fatal("expected email service")
	}
	cfg.SMTP.Disabled = true
	cfg.Notifications.NtfyTopic = "https://ntfy.sh/test"
	if _, ok := NewService(&cfg, logging.NewNop()).(*Ntfy); !ok {
		t.Fatal("expected ntfy service when smtp is disabled")
	}
	cfg.SMTP.Disabled = false
	if _, ok := NewService(&cfg, logging.NewNop()).(*fanout); !ok {
		t.Fatal("expected fanout with both transports")
	}
}
