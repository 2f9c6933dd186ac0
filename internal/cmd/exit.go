package cmd

import (
	"errors"
	"os"

	"go.uber.org/zap"

	"github.com/3leaps/slurmlongrun/internal/observability"
)

// Supervisor-specific exit codes. The generic failure classes (invalid
// arguments, unreachable scheduler tooling) use the foundry catalog;
// these two report the run's terminal outcome and are part of the CLI
// contract for calling scripts.
const (
	// exitCodeExhausted reports a run that spent its retry budget while
	// jobs were still ending in resubmit-worthy states.
	exitCodeExhausted = 10

	// exitCodeFailedTerminal reports a run that ended on a submission
	// failure, an unrecoverable job state, or sustained query failures.
	exitCodeFailedTerminal = 20
)

// ExitCodeError carries a process exit code through cobra's RunE error
// path. Execute unwraps it and exits with the embedded code.
type ExitCodeError struct {
	Code int
	Msg  string
	Err  error
}

func (e *ExitCodeError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ExitCodeError) Unwrap() error {
	return e.Err
}

// exitError logs the failure and returns an ExitCodeError for Execute
// to translate into a process exit code.
func exitError(code int, msg string, err error) error {
	observability.CLILogger.Error(msg, zap.Error(err), zap.Int("exit_code", code))
	return &ExitCodeError{Code: code, Msg: msg, Err: err}
}

// ExitWithCode logs the failure and terminates the process immediately.
// Reserved for commands that cannot return through RunE.
func ExitWithCode(logger *zap.Logger, code int, msg string, err error) {
	logger.Error(msg, zap.Error(err), zap.Int("exit_code", code))
	observability.Sync()
	os.Exit(code)
}

func exitCodeFor(err error) int {
	var ece *ExitCodeError
	if errors.As(err, &ece) {
		return ece.Code
	}
	return 1
}
