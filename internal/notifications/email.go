package notifications

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"whisperer/internal/config"
	"whisperer/internal/logging"
	"whisperer/internal/podcast"
	"whisperer/internal/services"
)

const (
	// FailureSubject is the subject line of operator failure alerts.
	FailureSubject = "Error in podcast processing"

	// Disclaimer closes every new-episode email.
	Disclaimer = "This email goes out just as the process begins, so transcripts may be delayed - about 90 minutes per episode."

	implicitTLSPort = 465
	dialTimeout     = 30 * time.Second
)

// Message is one outgoing plain-text email.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
	Date    time.Time
}

// Bytes renders the message in RFC 5322 form.
func (m Message) Bytes() []byte {
	var b strings.Builder
	date := m.Date
	if date.IsZero() {
		date = time.Now()
	}
	domain := "localhost"
	if at := strings.LastIndex(m.From, "@"); at >= 0 && at < len(m.From)-1 {
		domain = m.From[at+1:]
	}
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Message-ID: <%s@%s>\r\n", uuid.NewString(), domain)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(m.Body, "\r\n", "\n"), "\n", "\r\n"))
	return []byte(b.String())
}

// SendFunc delivers a message.
type SendFunc func(ctx context.Context, msg Message) error

// Email sends subscriber and admin mail over SMTP.
type Email struct {
	from   string
	admin  string
	send   SendFunc
	logger *slog.Logger
}

// NewEmail creates an SMTP-backed notifier.
func NewEmail(cfg config.SMTP, logger *slog.Logger) *Email {
	return &Email{
		from:   cfg.From,
		admin:  cfg.Admin,
		send:   smtpSender(cfg),
		logger: logging.NewComponentLogger(logger, "email"),
	}
}

// WithSender replaces the SMTP transport (for tests).
func (e *Email) WithSender(send SendFunc) {
	if send != nil {
		e.send = send
	}
}

// NotifyNewEpisodes mails the podcast's subscribers one link per episode.
func (e *Email) NotifyNewEpisodes(ctx context.Context, p podcast.Podcast, numbers []float64) error {
	if len(numbers) == 0 || len(p.Emails) == 0 {
		return nil
	}
	msg := Message{
		From:    e.from,
		To:      p.Emails,
		Subject: NewEpisodesSubject(len(numbers)),
		Body:    NewEpisodesBody(p.DocBaseURL, numbers),
	}
	if err := e.send(ctx, msg); err != nil {
		return services.Wrap(services.ErrTransient, "notify", "email subscribers", p.Name, err)
	}
	e.logger.Info("new episode email sent",
		logging.String(logging.FieldPodcast, p.Name),
		logging.String(logging.FieldEventType, "email_sent"),
		logging.Int("episodes", len(numbers)),
		logging.Int("recipients", len(p.Emails)),
	)
	return nil
}

// NotifyFailure mails the alert to the admin address.
func (e *Email) NotifyFailure(ctx context.Context, alert Alert) error {
	if strings.TrimSpace(e.admin) == "" {
		return nil
	}
	msg := Message{From: e.from, To: []string{e.admin}, Subject: FailureSubject, Body: alert.Text()}
	if err := e.send(ctx, msg); err != nil {
		return services.Wrap(services.ErrTransient, "notify", "email admin", alert.Podcast, err)
	}
	return nil
}

// Test mails the admin a test message.
func (e *Email) Test(ctx context.Context) error {
	if strings.TrimSpace(e.admin) == "" {
		return services.Wrap(services.ErrConfiguration, "notify", "email test", "smtp.admin is not set", nil)
	}
	msg := Message{
		From:    e.from,
		To:      []string{e.admin},
		Subject: "whisperer test notification",
		Body:    "Notification system test.\n",
	}
	if err := e.send(ctx, msg); err != nil {
		return services.Wrap(services.ErrTransient, "notify", "email test", "", err)
	}
	return nil
}

// NewEpisodesSubject returns the subscriber subject line for count episodes.
func NewEpisodesSubject(count int) string {
	if count > 1 {
		return fmt.Sprintf("%d new episodes are available", count)
	}
	return "New episode available"
}

// NewEpisodesBody lists one transcript link per episode, lowest first.
func NewEpisodesBody(baseURL string, numbers []float64) string {
	sorted := slices.Clone(numbers)
	slices.Sort(sorted)
	var b strings.Builder
	if len(sorted) > 1 {
		b.WriteString("New episodes:\n")
	} else {
		b.WriteString("New episode:\n")
	}
	base := strings.TrimRight(baseURL, "/")
	for _, n := range sorted {
		fmt.Fprintf(&b, "\n%s/%s/episode/", base, podcast.FormatNumber(n))
	}
	b.WriteString("\n" + Disclaimer + "\n")
	return b.String()
}

// smtpSender connects with implicit TLS on port 465 and upgrades with
// STARTTLS elsewhere when the server offers it.
func smtpSender(cfg config.SMTP) SendFunc {
	return func(ctx context.Context, msg Message) error {
		addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		tlsConfig := &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
		dialer := &net.Dialer{Timeout: dialTimeout}

		var conn net.Conn
		var err error
		if cfg.Port == implicitTLSPort {
			conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
		} else {
			conn, err = dialer.DialContext(ctx, "tcp", addr)
		}
		if err != nil {
			return fmt.Errorf("dial %s: %w", addr, err)
		}
		if deadline, ok := ctx.Deadline(); ok {
			_ = conn.SetDeadline(deadline)
		}
		client, err := smtp.NewClient(conn, cfg.Host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("smtp handshake: %w", err)
		}
		defer client.Close()

		if cfg.Port != implicitTLSPort {
			if ok, _ := client.Extension("STARTTLS"); ok {
				if err := client.StartTLS(tlsConfig); err != nil {
					return fmt.Errorf("starttls: %w", err)
				}
			}
		}
		if cfg.Username != "" {
			if ok, _ := client.Extension("AUTH"); ok {
				if err := client.Auth(smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)); err != nil {
					return fmt.Errorf("smtp auth: %w", err)
				}
			}
		}
		if err := client.Mail(msg.From); err != nil {
			return fmt.Errorf("smtp mail from: %w", err)
		}
		for _, rcpt := range msg.To {
			if err := client.Rcpt(rcpt); err != nil {
				return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
			}
		}
		w, err := client.Data()
		if err != nil {
			return fmt.Errorf("smtp data: %w", err)
		}
		if _, err := w.Write(msg.Bytes()); err != nil {
			return fmt.Errorf("smtp write: %w", err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("smtp finish data: %w", err)
		}
		return client.Quit()
	}
}
