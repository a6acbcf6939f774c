// Package deps reports whether the external programs whisperer shells out to
// are installed.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"whisperer/internal/config"
	"whisperer/internal/services/whisperx"
)

// Requirement names an external program and why it is needed.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the programs the configuration calls for. Site tools
// are optional when site builds are disabled.
func Requirements(cfg *config.Config) []Requirement {
	var reqs []Requirement
	if cfg.Transcription.Backend == "whisperx" {
		command := cfg.Transcription.WhisperXCommand
		if command == "" {
			command = whisperx.UVXCommand
		}
		reqs = append(reqs, Requirement{
			Name:        "WhisperX launcher",
			Command:     command,
			Description: "runs local diarized transcription",
		})
	}
	siteOptional := !cfg.Site.Enabled
	for _, step := range []struct {
		name    string
		argv    []string
		purpose string
	}{
		{"Site build", cfg.Site.BuildCommand, "renders the static transcript site"},
		{"Search index", cfg.Site.IndexCommand, "builds the client-side search index"},
		{"Deploy", cfg.Site.DeployCommand, "copies the built site into place"},
	} {
		command := ""
		if len(step.argv) > 0 {
			command = step.argv[0]
		}
		reqs = append(reqs, Requirement{
			Name:        step.name,
			Command:     command,
			Description: step.purpose,
			Optional:    siteOptional,
		})
	}
	return reqs
}

// CheckBinaries resolves each requirement on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch {
		case cmd == "":
			status.Detail = "command not configured"
		default:
			if _, err := exec.LookPath(cmd); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
			} else {
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}

// Missing returns the required (non-optional) statuses that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			out = append(out, s)
		}
	}
	return out
}
