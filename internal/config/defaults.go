package config

const (
	defaultPodcastsDir          = "~/whisperer/podcasts"
	defaultSitesDir             = "~/whisperer/sites"
	defaultStateDir             = "~/.local/state/whisperer"
	defaultLogDir               = "~/.local/state/whisperer/logs"
	defaultDeployDir            = "/usr/local/www"
	defaultTranscriptionBackend = "remote"
	defaultTranscriptionURL     = "http://localhost:5051"
	defaultWhisperXCommand      = "uvx"
	defaultWhisperXModel        = "large-v3"
	defaultLLMBaseURL           = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel             = "anthropic/claude-sonnet-4.5"
	defaultLLMTitle             = "whisperer"
	defaultUserAgent            = "whisperer (+https://github.com/phubbard/tgn-whisperer)"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			PodcastsDir: defaultPodcastsDir,
			SitesDir:    defaultSitesDir,
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
			DeployDir:   defaultDeployDir,
		},
		Transcription: Transcription{
			Backend:               defaultTranscriptionBackend,
			BaseURL:               defaultTranscriptionURL,
			PollIntervalSeconds:   15,
			TimeoutSeconds:        1800,
			RequestTimeoutSeconds: 300,
			MaxAttempts:           2,
			RetryDelaySeconds:     300,
			WhisperXCommand:       defaultWhisperXCommand,
			WhisperXModel:         defaultWhisperXModel,
		},
		LLM: LLM{
			BaseURL:           defaultLLMBaseURL,
			Model:             defaultLLMModel,
			Title:             defaultLLMTitle,
			TimeoutSeconds:    120,
			MaxAttempts:       3,
			RetryDelaySeconds: 180,
		},
		Download: Download{
			UserAgent:         defaultUserAgent,
			TimeoutSeconds:    600,
			MaxAttempts:       3,
			RetryDelaySeconds: 5,
		},
		SMTP: SMTP{
			Port: 465,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
		},
		Site: Site{
			Enabled:       true,
			BuildCommand:  []string{"zensical", "build", "--clean"},
			IndexCommand:  []string{"pagefind", "--site", "site"},
			DeployCommand: []string{"rsync", "-qrpgD", "--delete", "--force", "site/", "{deploy_dir}/{podcast}"},
		},
		Logging: Logging{
			Format: "auto",
			Level:  "info",
		},
	}
}
