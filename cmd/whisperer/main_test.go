package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	envPath    string
	podcasts   string
	state      string
}

type envOptions struct {
	feedURL string
	ntfyURL string
}

func setupCLITestEnv(t *testing.T, opts envOptions) *cliTestEnv {
	t.Helper()
	base := t.TempDir()
	t.Setenv("HOME", base)
	if opts.feedURL == "" {
		opts.feedURL = "https://feeds.example.com/tgn.rss"
	}

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "config.toml"),
		envPath:    filepath.Join(base, "missing.env"),
		podcasts:   filepath.Join(base, "podcasts"),
		state:      filepath.Join(base, "state"),
	}
	contents := fmt.Sprintf(`
[paths]
podcasts_dir = %q
sites_dir = %q
state_dir = %q
log_dir = %q

[[podcasts]]
name = "tgn"
rss_url = %q
emails = ["listener@example.com"]
doc_base_url = "https://tgn.example.com/"
numbering = "sequential"

[transcription]
backend = "remote"
base_url = "http://127.0.0.1:1"

[llm]
api_key = "test-key"

[notifications]
ntfy_topic = %q

[site]
enabled = false

[logging]
format = "json"
level = "error"
`, env.podcasts, filepath.Join(base, "sites"), env.state, filepath.Join(base, "logs"), opts.feedURL, opts.ntfyURL)
	if err := os.WriteFile(env.configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--env-file", env.envPath}
	if env.configPath != "" {
		flags = append(flags, "--config", env.configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func requireContains(t *testing.T, out, want string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, out)
	}
}

func rssFeed(numbers ...int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd"><channel><title>Test</title>`)
	for _, n := range numbers {
		fmt.Fprintf(&b, `<item><title>Episode %d</title><guid>ep-%d</guid>`+
			`<pubDate>%s</pubDate><itunes:episode>%d</itunes:episode>`+
			`<enclosure url="https://example.com/%d.mp3" type="audio/mpeg" length="1"/></item>`,
			n, n, time.Date(2024, 1, n, 10, 0, 0, 0, time.UTC).Format(time.RFC1123Z), n, n)
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func TestRootHelpWithoutSubcommand(t *testing.T) {
	env := setupCLITestEnv(t, envOptions{})
	out, err := runCLI(t, env)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	requireContains(t, out, "reprocess")
}

func TestInvalidConfigFails(t *testing.T) {
	env := setupCLITestEnv(t, envOptions{})
	if err := os.WriteFile(env.configPath, []byte("[logging]\nformat = \"xml\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := runCLI(t, env, "status"); err == nil {
		t.Fatal("expected invalid config to fail")
	}
}

func TestEnvFileSuppliesSecrets(t *testing.T) {
	env := setupCLITestEnv(t, envOptions{})
	raw, err := os.ReadFile(env.configPath)
	if err != nil {
		t.Fatal(err)
	}
	stripped := strings.Replace(string(raw), `api_key = "test-key"`, "", 1)
	if err := os.WriteFile(env.configPath, []byte(stripped), 0o644); err != nil {
		t.Fatal(err)
	}
	// t.Setenv restores both keys after godotenv writes them.
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("LLM_API_KEY", "")
	os.Unsetenv("OPENROUTER_API_KEY")
	os.Unsetenv("LLM_API_KEY")

	env.envPath = filepath.Join(env.baseDir, ".env")
	if err := os.WriteFile(env.envPath, []byte("OPENROUTER_API_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestTestNotifyWithoutChannels(t *testing.T) {
	env := setupCLITestEnv(t, envOptions{})
	out, err := runCLI(t, env, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Notification not sent")
}

func TestTestNotifyPostsToNtfy(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	env := setupCLITestEnv(t, envOptions{ntfyURL: srv.URL + "/whisperer"})
	out, err := runCLI(t, env, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if hits != 1 {
		t.Fatalf("expected one ntfy request, got %d", hits)
	}
}
