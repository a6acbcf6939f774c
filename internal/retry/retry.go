package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"whisperer/internal/services"
)

const (
	defaultBaseDelay = time.Second
	defaultMaxDelay  = 10 * time.Second
)

// Policy controls how Do retries an operation.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first. Values
	// below one mean a single attempt.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Retryable reports whether err deserves another attempt. Nil means IsTransient.
	Retryable func(error) bool
	// Sleep waits between attempts. Nil uses a context-aware timer.
	Sleep func(context.Context, time.Duration) error
	// OnRetry is invoked before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Attempts returns the effective attempt budget.
func (p Policy) Attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// RetryAfterError is implemented by errors carrying a server-requested delay.
type RetryAfterError interface {
	error
	RetryAfter() time.Duration
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempt
// budget is exhausted, or ctx is done. attempt is 1-based.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) error {
	if ctx == nil {
		return errors.New("retry: nil context")
	}
	attempts := p.Attempts()
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %w)", err, lastErr)
			}
			return err
		}
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil || !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		delay := p.delayFor(attempt, err)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if err := p.sleep(ctx, delay); err != nil {
			return fmt.Errorf("%w (last error: %w)", err, lastErr)
		}
	}
	if attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

func (p Policy) delayFor(attempt int, err error) time.Duration {
	var hinted RetryAfterError
	if errors.As(err, &hinted) && hinted.RetryAfter() > 0 {
		return p.capDelay(hinted.RetryAfter())
	}
	return p.Backoff(attempt)
}

// Backoff returns the wait after the given 1-based attempt: base, base*2,
// base*4, ... capped at MaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base < 0 {
		return 0
	}
	if base == 0 {
		base = defaultBaseDelay
	}
	maxDelay := p.maxDelay()
	if attempt <= 0 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	return p.capDelay(delay)
}

func (p Policy) maxDelay() time.Duration {
	if p.MaxDelay > 0 {
		return p.MaxDelay
	}
	return defaultMaxDelay
}

func (p Policy) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if maxDelay := p.maxDelay(); delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (p Policy) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if p.Sleep != nil {
		if err := p.Sleep(ctx, delay); err != nil {
			return err
		}
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsTransient is the default retry predicate: transient and timeout markers,
// retryable HTTP statuses, network timeouts, connection resets, truncated
// bodies, and per-attempt deadlines.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, services.ErrTransient) || errors.Is(err, services.ErrTimeout) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	return false
}

// StatusError reports a non-success HTTP response.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
	Wait       time.Duration
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s: http %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, body)
}

// RetryAfter returns the server-requested delay, if any.
func (e *StatusError) RetryAfter() time.Duration { return e.Wait }

// Retryable reports whether the status is 408, 429, or 5xx.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// NewStatusError builds a StatusError from resp, reading the Retry-After header.
func NewStatusError(op string, resp *http.Response, body []byte) *StatusError {
	wait, _ := ParseRetryAfter(resp.Header.Get("Retry-After"))
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(body), Wait: wait}
}

// ParseRetryAfter parses a Retry-After header in either delta-seconds or HTTP-date form.
func ParseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
