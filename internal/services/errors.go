package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	ErrDegraded      = errors.New("degraded result")
	ErrLocalIO       = errors.New("local io error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind names the error class of err for alerts and the run history.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	case errors.Is(err, ErrLocalIO):
		return "local_io"
	case errors.Is(err, ErrDegraded):
		return "degraded"
	default:
		return "unknown"
	}
}

// Hint returns a short operator-facing next step for the error class.
func Hint(err error) string {
	switch Kind(err) {
	case "validation":
		return "inspect the feed entry or add an exception mapping for the episode title"
	case "configuration":
		return "check the config file and environment variables"
	case "timeout", "transient":
		return "retry the run; the external service may be unavailable"
	case "external_tool":
		return "check that the external command is installed and on PATH"
	case "local_io":
		return "check disk space and directory permissions"
	case "not_found":
		return "verify the podcast name and episode number"
	default:
		return "check logs for details"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
