package whisperx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"whisperer/internal/services"
	"whisperer/internal/services/transcription"
)

// Service transcribes audio files with a local WhisperX install.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) error
	now           func() time.Time
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config) *Service {
	if strings.TrimSpace(cfg.Command) == "" {
		cfg.Command = UVXCommand
	}
	return &Service{cfg: cfg, now: time.Now}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

func (s *Service) Name() string { return "whisperx" }

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// Command returns the launcher binary, for dependency checks.
func (s *Service) Command() string {
	return s.cfg.Command
}

// Submit transcribes audioPath synchronously. The returned job names the
// JSON output file.
func (s *Service) Submit(ctx context.Context, podcast, episode, audioPath string) (transcription.Job, error) {
	if audioPath == "" {
		return transcription.Job{}, services.Wrap(services.ErrValidation, "transcribe", "whisperx", "audio path required", nil)
	}
	outputDir := filepath.Join(filepath.Dir(audioPath), OutputDirName)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return transcription.Job{}, services.Wrap(services.ErrLocalIO, "transcribe", "whisperx", "ensure output dir", err)
	}
	if err := s.run(ctx, s.cfg.Command, s.buildArgs(audioPath, outputDir)...); err != nil {
		return transcription.Job{}, services.Wrap(services.ErrExternalTool, "transcribe", "whisperx", "run", err)
	}
	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	return transcription.Job{
		ID:          filepath.Join(outputDir, baseName+".json"),
		Backend:     s.Name(),
		Podcast:     podcast,
		Episode:     episode,
		SubmittedAt: s.now().UTC(),
	}, nil
}

// Poll reads the output written by Submit.
func (s *Service) Poll(_ context.Context, job transcription.Job) (transcription.Result, error) {
	data, err := os.ReadFile(job.ID)
	if errors.Is(err, fs.ErrNotExist) {
		return transcription.Result{}, services.Wrap(services.ErrNotFound, "transcribe", "whisperx",
			fmt.Sprintf("output %s missing", job.ID), transcription.ErrUnknownJob)
	}
	if err != nil {
		return transcription.Result{}, services.Wrap(services.ErrLocalIO, "transcribe", "whisperx", "read output", err)
	}
	return transcription.Result{Done: true, Transcript: data}, nil
}

// run executes a command, using the custom runner if set.
func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, lastLines(string(output), 5))
	}
	return nil
}

// buildArgs constructs the uvx command arguments for a diarized run.
func (s *Service) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 32)

	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", s.Model(),
		"--language", Language,
		"--batch_size", BatchSize,
		"--chunk_size", ChunkSize,
		"--beam_size", BeamSize,
		"--temperature", Temperature,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--diarize",
	)
	if s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

func lastLines(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
