package whisperx

// Config captures runtime settings for local WhisperX runs.
type Config struct {
	// Command launches WhisperX through uv (default "uvx").
	Command string
	// Model is the WhisperX model to use (e.g., "large-v3").
	Model string
	// CUDAEnabled enables GPU acceleration.
	CUDAEnabled bool
	// HFToken is the Hugging Face token required by the pyannote diarization
	// pipeline.
	HFToken string
}

// WhisperX configuration constants.
const (
	DefaultModel   = "large-v3"
	CUDAIndexURL   = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL   = "https://pypi.org/simple"
	BatchSize      = "4"
	ChunkSize      = "15"
	BeamSize       = "5"
	Temperature    = "0.0"
	OutputFormat   = "json"
	Language       = "en"
	CPUDevice      = "cpu"
	CUDADevice     = "cuda"
	CPUComputeType = "float32"
	OutputDirName  = "whisperx"
)

// UVXCommand is the default launcher.
const UVXCommand = "uvx"
