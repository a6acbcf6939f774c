package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePodcasts()
	c.normalizeTranscription()
	c.normalizeLLM()
	c.normalizeSMTP()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Download.UserAgent = strings.TrimSpace(c.Download.UserAgent)
	if c.Download.UserAgent == "" {
		c.Download.UserAgent = defaultUserAgent
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.PodcastsDir, err = expandPath(c.Paths.PodcastsDir); err != nil {
		return fmt.Errorf("paths.podcasts_dir: %w", err)
	}
	if c.Paths.SitesDir, err = expandPath(c.Paths.SitesDir); err != nil {
		return fmt.Errorf("paths.sites_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.DeployDir, err = expandPath(c.Paths.DeployDir); err != nil {
		return fmt.Errorf("paths.deploy_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePodcasts() {
	for i := range c.Podcasts {
		p := &c.Podcasts[i]
		p.Name = strings.TrimSpace(p.Name)
		p.RSSURL = strings.TrimSpace(p.RSSURL)
		p.DocBaseURL = strings.TrimRight(strings.TrimSpace(p.DocBaseURL), "/")
		p.DefaultURL = strings.TrimSpace(p.DefaultURL)
		p.Numbering = strings.ToLower(strings.TrimSpace(p.Numbering))
		if p.Numbering == "" {
			p.Numbering = "sequential"
		}
		emails := p.Emails[:0]
		for _, email := range p.Emails {
			if email = strings.TrimSpace(email); email != "" {
				emails = append(emails, email)
			}
		}
		p.Emails = emails
	}
}

func (c *Config) normalizeTranscription() {
	t := &c.Transcription
	t.Backend = strings.ToLower(strings.TrimSpace(t.Backend))
	if t.Backend == "" {
		t.Backend = defaultTranscriptionBackend
	}
	if t.BaseURL == "" {
		if value, ok := os.LookupEnv("TRANSCRIPTION_URL"); ok {
			t.BaseURL = value
		}
	}
	t.BaseURL = strings.TrimRight(strings.TrimSpace(t.BaseURL), "/")
	if t.WhisperXHFToken == "" {
		if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			t.WhisperXHFToken = value
		}
	}
	t.WhisperXHFToken = strings.TrimSpace(t.WhisperXHFToken)
	t.WhisperXCommand = strings.TrimSpace(t.WhisperXCommand)
	if t.WhisperXCommand == "" {
		t.WhisperXCommand = defaultWhisperXCommand
	}
	t.WhisperXModel = strings.TrimSpace(t.WhisperXModel)
	if t.WhisperXModel == "" {
		t.WhisperXModel = defaultWhisperXModel
	}
}

func (c *Config) normalizeLLM() {
	if c.LLM.APIKey == "" {
		for _, key := range []string{"OPENROUTER_API_KEY", "LLM_API_KEY"} {
			if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
				c.LLM.APIKey = value
				break
			}
		}
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
}

func (c *Config) normalizeSMTP() {
	if c.SMTP.Username == "" {
		if value, ok := os.LookupEnv("SMTP_USERNAME"); ok {
			c.SMTP.Username = value
		}
	}
	if c.SMTP.Password == "" {
		for _, key := range []string{"SMTP_PASSWORD", "FASTMAIL_PASSWORD"} {
			if value, ok := os.LookupEnv(key); ok && value != "" {
				c.SMTP.Password = value
				break
			}
		}
	}
	c.SMTP.Host = strings.TrimSpace(c.SMTP.Host)
	c.SMTP.Username = strings.TrimSpace(c.SMTP.Username)
	c.SMTP.From = strings.TrimSpace(c.SMTP.From)
	if c.SMTP.From == "" {
		c.SMTP.From = c.SMTP.Username
	}
	c.SMTP.Admin = strings.TrimSpace(c.SMTP.Admin)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "auto"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
