package pipeline

import (
	"log/slog"
	"net/http"
	"time"

	"whisperer/internal/attribution"
	"whisperer/internal/config"
	"whisperer/internal/retry"
	"whisperer/internal/services"
	"whisperer/internal/services/llm"
	"whisperer/internal/services/transcription"
	"whisperer/internal/services/whisperx"
	"whisperer/internal/snapshot"
	"whisperer/internal/workspace"
)

// NewTranscriber returns the backend selected by transcription.backend.
func NewTranscriber(cfg config.Transcription) (transcription.Service, error) {
	switch cfg.Backend {
	case "remote":
		return transcription.NewRemote(cfg.BaseURL, seconds(cfg.RequestTimeoutSeconds)), nil
	case "whisperx":
		return whisperx.NewService(whisperx.Config{
			Command:     cfg.WhisperXCommand,
			Model:       cfg.WhisperXModel,
			CUDAEnabled: cfg.WhisperXCUDA,
			HFToken:     cfg.WhisperXHFToken,
		}), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "transcriber",
			"unknown transcription backend "+cfg.Backend, nil)
	}
}

// NewLLMClient builds the chat-completions client from config.
func NewLLMClient(cfg config.LLM) *llm.Client {
	return llm.NewClient(llm.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
		TimeoutSeconds: cfg.TimeoutSeconds,
	})
}

// FromConfig wires a Driver with the configured backends.
func FromConfig(cfg *config.Config, logger *slog.Logger) (*Driver, error) {
	transcriber, err := NewTranscriber(cfg.Transcription)
	if err != nil {
		return nil, err
	}
	var attributor Attributor
	if cfg.LLM.APIKey != "" {
		client := NewLLMClient(cfg.LLM)
		attributor = attribution.New(client, client.Model())
	}
	downloadPolicy := retry.Policy{
		MaxAttempts: cfg.Download.MaxAttempts,
		BaseDelay:   seconds(cfg.Download.RetryDelaySeconds),
		MaxDelay:    4 * seconds(cfg.Download.RetryDelaySeconds),
	}
	downloadTimeout := seconds(cfg.Download.TimeoutSeconds)
	return New(Options{
		Layout:       workspace.FromConfig(cfg),
		Logger:       logger,
		HTTPClient:   &http.Client{Timeout: downloadTimeout},
		UserAgent:    cfg.Download.UserAgent,
		Transcriber:  transcriber,
		Attributor:   attributor,
		Pages:        snapshot.NewFetcher(cfg.Download.UserAgent, downloadTimeout, downloadPolicy),
		PollInterval: cfg.Transcription.PollInterval(),
		PollTimeout:  cfg.Transcription.Timeout(),

		DownloadPolicy:   downloadPolicy,
		TranscribePolicy: retry.Policy{
			MaxAttempts: cfg.Transcription.MaxAttempts,
			BaseDelay:   seconds(cfg.Transcription.RetryDelaySeconds),
			MaxDelay:    seconds(cfg.Transcription.RetryDelaySeconds),
		},
		AttributePolicy: retry.Policy{
			MaxAttempts: cfg.LLM.MaxAttempts,
			BaseDelay:   seconds(cfg.LLM.RetryDelaySeconds),
			MaxDelay:    seconds(cfg.LLM.RetryDelaySeconds),
		},

		DownloadTimeout:   downloadTimeout,
		TranscribeTimeout: cfg.Transcription.Timeout() + seconds(cfg.Transcription.RequestTimeoutSeconds),
	}), nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
