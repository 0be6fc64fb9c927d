package radio

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	// ErrValidation indicates a malformed name or request field.
	ErrValidation = errors.New("invalid request")

	// ErrConflict indicates the station name is already taken.
	ErrConflict = errors.New("radio already exists")

	// ErrNotFound indicates the station does not exist (or was deleted).
	ErrNotFound = errors.New("radio not found")

	// ErrStopped indicates the registry has shut down and no new playback starts.
	ErrStopped = errors.New("radio server shutting down")
)

const maxNameLength = 64

// Normalize returns the registry key for a station name: trimmed and lower-cased.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateName normalizes name and rejects names that cannot be used as a key
// or as a path segment in /stream/{name}.
func ValidateName(name string) (string, error) {
	n := Normalize(name)
	if n == "" {
		return "", fmt.Errorf("%w: radio name cannot be empty", ErrValidation)
	}
	if len(n) > maxNameLength {
		return "", fmt.Errorf("%w: radio name longer than %d characters", ErrValidation, maxNameLength)
	}
	for _, r := range n {
		if r == '/' || unicode.IsControl(r) {
			return "", fmt.Errorf("%w: radio name contains %q", ErrValidation, r)
		}
	}
	return n, nil
}

// NotFound returns an ErrNotFound for the named station.
func NotFound(name string) error {
	return fmt.Errorf("%w: %q", ErrNotFound, Normalize(name))
}
