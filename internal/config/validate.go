package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePodcasts(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateSMTP(); err != nil {
		return err
	}
	if err := c.validateSite(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePodcasts() error {
	if len(c.Podcasts) == 0 {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/whisperer/config.toml"
		}
		return fmt.Errorf("at least one [[podcasts]] entry is required. Edit %s (create with 'whisperer config init')", defaultPath)
	}
	seen := make(map[string]struct{}, len(c.Podcasts))
	for i, p := range c.Podcasts {
		if err := validate.Struct(p); err != nil {
			return fmt.Errorf("podcasts[%d] (%s): %s", i, p.Name, describeValidation(err))
		}
		if strings.ContainsAny(p.Name, " \t\\") {
			return fmt.Errorf("podcasts[%d]: name %q must not contain whitespace or backslashes", i, p.Name)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("podcasts[%d]: duplicate podcast name %q", i, p.Name)
		}
		seen[p.Name] = struct{}{}
		for title, number := range p.Exceptions {
			if strings.TrimSpace(title) == "" {
				return fmt.Errorf("podcasts[%d] (%s): exception titles must not be empty", i, p.Name)
			}
			if number <= 0 {
				return fmt.Errorf("podcasts[%d] (%s): exception %q must map to a positive number", i, p.Name, title)
			}
		}
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func (c *Config) validateTranscription() error {
	t := c.Transcription
	switch t.Backend {
	case "remote":
		if t.BaseURL == "" {
			return errors.New("transcription.base_url must be set for the remote backend (or set TRANSCRIPTION_URL)")
		}
	case "whisperx":
		if t.WhisperXCommand == "" {
			return errors.New("transcription.whisperx_command must be set for the whisperx backend")
		}
	default:
		return fmt.Errorf("transcription.backend: unsupported value %q (want remote or whisperx)", t.Backend)
	}
	return ensurePositive(map[string]int{
		"transcription.poll_interval_seconds":   t.PollIntervalSeconds,
		"transcription.timeout_seconds":         t.TimeoutSeconds,
		"transcription.request_timeout_seconds": t.RequestTimeoutSeconds,
		"transcription.max_attempts":            t.MaxAttempts,
	})
}

func (c *Config) validateLLM() error {
	if c.LLM.APIKey == "" {
		return errors.New("llm.api_key is required. Set OPENROUTER_API_KEY env var or edit the config file")
	}
	return ensurePositive(map[string]int{
		"llm.timeout_seconds": c.LLM.TimeoutSeconds,
		"llm.max_attempts":    c.LLM.MaxAttempts,
	})
}

func (c *Config) validateDownload() error {
	return ensurePositive(map[string]int{
		"download.timeout_seconds": c.Download.TimeoutSeconds,
		"download.max_attempts":    c.Download.MaxAttempts,
	})
}

func (c *Config) validateSMTP() error {
	if c.SMTP.Disabled {
		return nil
	}
	if c.SMTP.Host == "" {
		return nil
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return errors.New("smtp.port must be between 1 and 65535")
	}
	if c.SMTP.From == "" {
		return errors.New("smtp.from must be set when smtp.host is configured")
	}
	if err := validate.Var(c.SMTP.From, "email"); err != nil {
		return fmt.Errorf("smtp.from: %q is not an email address", c.SMTP.From)
	}
	if c.SMTP.Admin != "" {
		if err := validate.Var(c.SMTP.Admin, "email"); err != nil {
			return fmt.Errorf("smtp.admin: %q is not an email address", c.SMTP.Admin)
		}
	}
	return nil
}

func (c *Config) validateSite() error {
	if !c.Site.Enabled {
		return nil
	}
	for name, cmd := range map[string][]string{
		"site.build_command":  c.Site.BuildCommand,
		"site.index_command":  c.Site.IndexCommand,
		"site.deploy_command": c.Site.DeployCommand,
	} {
		if len(cmd) == 0 || strings.TrimSpace(cmd[0]) == "" {
			return fmt.Errorf("%s must name a command when site.enabled is true", name)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositive(values map[string]int) error {
	for name, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
