package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"whisperer/internal/retry"
	"whisperer/internal/services"
)

const defaultRequestTimeout = 5 * time.Minute

// Remote talks to an HTTP transcription server:
//
//	POST {base}/submit/{podcast}/{episode}  multipart "file" -> 202 {"jobId": "..."}
//	GET  {base}/result/{job}                200 done, 202 pending, 404 unknown, 500 failed
type Remote struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// RemoteOption customizes the client.
type RemoteOption func(*Remote)

func WithHTTPClient(client *http.Client) RemoteOption {
	return func(r *Remote) {
		if client != nil {
			r.httpClient = client
		}
	}
}

func NewRemote(baseURL string, requestTimeout time.Duration, opts ...RemoteOption) *Remote {
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	r := &Remote{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Remote) Name() string { return "remote" }

// Submit uploads the audio file and returns the server's job handle.
func (r *Remote) Submit(ctx context.Context, podcast, episode, audioPath string) (Job, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return Job{}, services.Wrap(services.ErrLocalIO, "transcribe", "open audio", audioPath, err)
	}
	defer file.Close()

	body, contentType := multipartBody(file, filepath.Base(audioPath))
	endpoint := r.baseURL + "/submit/" + url.PathEscape(podcast) + "/" + url.PathEscape(episode)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return Job{}, services.Wrap(services.ErrConfiguration, "transcribe", "build submit request", endpoint, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Job{}, services.Wrap(services.ErrTransient, "transcribe", "submit", endpoint, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Job{}, services.Wrap(services.ErrTransient, "transcribe", "read submit response", endpoint, err)
	}
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return Job{}, statusFailure("submit", resp, payload)
	}
	var accepted struct {
		JobID string `json:"jobId"`
	}
	if err := json.Unmarshal(payload, &accepted); err != nil || strings.TrimSpace(accepted.JobID) == "" {
		return Job{}, services.Wrap(services.ErrExternalTool, "transcribe", "decode submit response",
			fmt.Sprintf("no jobId in %q", truncate(string(payload))), err)
	}
	return Job{
		ID:          accepted.JobID,
		Backend:     r.Name(),
		Podcast:     podcast,
		Episode:     episode,
		SubmittedAt: r.now().UTC(),
	}, nil
}

// Poll fetches the job status once.
func (r *Remote) Poll(ctx context.Context, job Job) (Result, error) {
	endpoint := r.baseURL + "/result/" + url.PathEscape(job.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "transcribe", "build poll request", endpoint, err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "transcribe", "poll", endpoint, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return Result{}, services.Wrap(services.ErrTransient, "transcribe", "read transcript", job.ID, err)
		}
		return Result{Done: true, Transcript: data}, nil
	case http.StatusAccepted:
		_, _ = io.Copy(io.Discard, resp.Body)
		return Result{}, nil
	case http.StatusNotFound:
		return Result{}, services.Wrap(services.ErrNotFound, "transcribe", "poll",
			fmt.Sprintf("job %s", job.ID), ErrUnknownJob)
	case http.StatusInternalServerError:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, services.Wrap(services.ErrExternalTool, "transcribe", "poll",
			fmt.Sprintf("job %s: %s", job.ID, truncate(string(payload))), ErrJobFailed)
	default:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, statusFailure("poll", resp, payload)
	}
}

func statusFailure(op string, resp *http.Response, body []byte) error {
	statusErr := retry.NewStatusError("transcription "+op, resp, body)
	marker := services.ErrExternalTool
	if statusErr.Retryable() {
		marker = services.ErrTransient
	}
	return services.Wrap(marker, "transcribe", op, fmt.Sprintf("http %d", resp.StatusCode), statusErr)
}

// multipartBody streams the file as the "file" form field without buffering
// the whole episode in memory.
func multipartBody(file io.Reader, name string) (io.Reader, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", name)
		if err == nil {
			_, err = io.Copy(part, file)
		}
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()
	return pr, mw.FormDataContentType()
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
