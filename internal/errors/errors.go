// Package errors provides small app-level error helpers shared by the
// CLI commands and the status server.
package errors

import (
	"errors"
	"fmt"
)

// ErrExternalService marks failures of services outside this process
// (the Slurm control and accounting daemons).
var ErrExternalService = errors.New("external service unavailable")

// NewExternalServiceError creates an error marking an external service
// failure.
func NewExternalServiceError(msg string) error {
	return fmt.Errorf("%w: %s", ErrExternalService, msg)
}

// WrapInternal wraps err with an internal-error message, preserving the
// chain for errors.Is/As.
func WrapInternal(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// IsExternalService reports whether err marks an external service
// failure.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService)
}

// HTTPErrorResponse is the JSON error envelope returned by the status
// server.
type HTTPErrorResponse struct {
	Error HTTPErrorDetail `json:"error"`
}

// HTTPErrorDetail carries the machine-readable code and human-readable
// message for one HTTP error.
type HTTPErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
