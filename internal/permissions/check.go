// Package permissions checks and requests the OS privacy permissions the
// host needs: Screen Recording for capture and Accessibility for input.
// Only macOS has them; elsewhere every permission is granted.
package permissions

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrNotGranted is returned by Ensure when a permission is missing. The OS
// prompt has been shown; the process must be restarted once it is granted.
var ErrNotGranted = errors.New("permissions: not granted")

// Permission is a privacy permission the host may need.
type Permission int

const (
	ScreenRecording Permission = iota
	Accessibility
)

func (p Permission) String() string {
	switch p {
	case ScreenRecording:
		return "screen recording"
	case Accessibility:
		return "accessibility"
	}
	return fmt.Sprintf("Permission(%d)", int(p))
}

// checker reports whether p is granted, showing the OS prompt when prompt
// is set and p is missing.
type checker func(p Permission, prompt bool) bool

// Granted reports whether p is granted without prompting.
func Granted(p Permission) bool {
	return check(p, false)
}

// Request prompts for p and reports whether it was already granted.
func Request(p Permission) bool {
	return check(p, true)
}

// Ensure checks the permissions the host needs, prompting for any that are
// missing. needInput is false for view-only hosts, which skip
// Accessibility.
func Ensure(needInput bool, logger *slog.Logger) error {
	return ensure(check, needInput, logger)
}

func ensure(c checker, needInput bool, logger *slog.Logger) error {
	need := []Permission{ScreenRecording}
	if needInput {
		need = append(need, Accessibility)
	}
	var missing []string
	for _, p := range need {
		if c(p, false) {
			continue
		}
		logger.Warn("permission not granted, requesting", "permission", p)
		c(p, true)
		missing = append(missing, p.String())
	}
	if len(missing) > 0 {
		logger.Error("grant the permissions in System Settings and restart", "missing", missing)
		return fmt.Errorf("%w: %v", ErrNotGranted, missing)
	}
	return nil
}
