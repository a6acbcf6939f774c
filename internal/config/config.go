package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the on-disk layout roots.
type Paths struct {
	PodcastsDir string `toml:"podcasts_dir"`
	SitesDir    string `toml:"sites_dir"`
	StateDir    string `toml:"state_dir"`
	LogDir      string `toml:"log_dir"`
	DeployDir   string `toml:"deploy_dir"`
}

// Podcast describes one configured feed.
type Podcast struct {
	Name       string             `toml:"name" validate:"required,max=64,excludesall=/"`
	RSSURL     string             `toml:"rss_url" validate:"required,url"`
	Emails     []string           `toml:"emails" validate:"dive,email"`
	DocBaseURL string             `toml:"doc_base_url" validate:"required,url"`
	DefaultURL string             `toml:"default_url" validate:"omitempty,url"`
	Numbering  string             `toml:"numbering" validate:"required,oneof=greynato watchclicker sequential"`
	Exceptions map[string]float64 `toml:"exceptions"`
	ShortLinks map[string]string  `toml:"short_links"`
	Disabled   bool               `toml:"disabled"`
}

// Transcription contains settings for the transcription backend.
type Transcription struct {
	Backend               string `toml:"backend"`
	BaseURL               string `toml:"base_url"`
	PollIntervalSeconds   int    `toml:"poll_interval_seconds"`
	TimeoutSeconds        int    `toml:"timeout_seconds"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	MaxAttempts           int    `toml:"max_attempts"`
	RetryDelaySeconds     int    `toml:"retry_delay_seconds"`
	WhisperXCommand       string `toml:"whisperx_command"`
	WhisperXModel         string `toml:"whisperx_model"`
	WhisperXHFToken       string `toml:"whisperx_hf_token"`
	WhisperXCUDA          bool   `toml:"whisperx_cuda"`
}

// LLM contains the attribution model connection settings.
type LLM struct {
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	Model             string `toml:"model"`
	Referer           string `toml:"referer"`
	Title             string `toml:"title"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	MaxAttempts       int    `toml:"max_attempts"`
	RetryDelaySeconds int    `toml:"retry_delay_seconds"`
}

// Download contains settings for feed, audio, and page fetches.
type Download struct {
	UserAgent         string `toml:"user_agent"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	MaxAttempts       int    `toml:"max_attempts"`
	RetryDelaySeconds int    `toml:"retry_delay_seconds"`
}

// SMTP contains the subscriber and operator email transport.
type SMTP struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
	Admin    string `toml:"admin"`
	Disabled bool   `toml:"disabled"`
}

// Notifications contains configuration for ntfy push alerts.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Site contains the static site build, search index, and deploy commands.
type Site struct {
	Enabled       bool     `toml:"enabled"`
	BuildCommand  []string `toml:"build_command"`
	IndexCommand  []string `toml:"index_command"`
	DeployCommand []string `toml:"deploy_command"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for whisperer.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Podcasts      []Podcast     `toml:"podcasts"`
	Transcription Transcription `toml:"transcription"`
	LLM           LLM           `toml:"llm"`
	Download      Download      `toml:"download"`
	SMTP          SMTP          `toml:"smtp"`
	Notifications Notifications `toml:"notifications"`
	Site          Site          `toml:"site"`
	Logging       Logging       `toml:"logging"`
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// DefaultConfigPath returns the per-user config location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/whisperer/config.toml")
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("whisperer.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the layout roots.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.PodcastsDir, c.Paths.SitesDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Podcast returns the configured podcast with the given name.
func (c *Config) Podcast(name string) (Podcast, bool) {
	name = strings.TrimSpace(name)
	for _, p := range c.Podcasts {
		if p.Name == name {
			return p, true
		}
	}
	return Podcast{}, false
}

// EnabledPodcasts returns podcasts not marked disabled, in configured order.
func (c *Config) EnabledPodcasts() []Podcast {
	out := make([]Podcast, 0, len(c.Podcasts))
	for _, p := range c.Podcasts {
		if !p.Disabled {
			out = append(out, p)
		}
	}
	return out
}

// PollInterval returns the transcription poll interval.
func (t Transcription) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalSeconds) * time.Second
}

// Timeout returns the transcription ceiling for one episode.
func (t Transcription) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
