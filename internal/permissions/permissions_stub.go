//go:build !darwin

package permissions

import "github.com/rs/zerolog"

// MicrophoneStatus always reports authorized; other platforms do not gate
// audio capture.
func MicrophoneStatus() Status {
	return StatusAuthorized
}

// EnsureMicrophone is a no-op on non-macOS platforms.
func EnsureMicrophone(log zerolog.Logger) error {
	return nil
}
