package slurm

import (
	"errors"
	"fmt"
)

// Sentinel errors for scheduler operations.
var (
	// ErrSchedulerUnavailable indicates a scheduler command could not be
	// located or executed at all.
	ErrSchedulerUnavailable = errors.New("scheduler unavailable")

	// ErrMalformedOutput indicates a scheduler command succeeded but its
	// output could not be parsed.
	ErrMalformedOutput = errors.New("malformed scheduler output")

	// ErrJobNotFound indicates neither accounting nor control could
	// resolve the job identity.
	ErrJobNotFound = errors.New("job not found")
)

// SubmissionError wraps an sbatch invocation failure. It is fatal to a
// run: the controller never retries a failed submission, since it
// signals a configuration or environment problem rather than a
// transient job-level event.
type SubmissionError struct {
	// Args are the sbatch arguments that were submitted.
	Args []string

	// Stderr is the captured diagnostic output from sbatch, if any.
	Stderr string

	// Err is the underlying error.
	Err error
}

func (e *SubmissionError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("sbatch %v: %v: %s", e.Args, e.Err, e.Stderr)
	}
	return fmt.Sprintf("sbatch %v: %v", e.Args, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// QueryError wraps a transient failure to read job state from the
// scheduler. Callers retry it with backoff; it is never interpreted as a
// terminal job state.
type QueryError struct {
	// Op is the operation that failed ("sacct", "scontrol").
	Op string

	// JobID is the job being queried.
	JobID string

	// Err is the underlying error.
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.JobID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// IsQueryError reports whether err is a transient query failure.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}

// IsSubmissionError reports whether err is a submission failure.
func IsSubmissionError(err error) bool {
	var se *SubmissionError
	return errors.As(err, &se)
}

// IsSchedulerUnavailable reports whether the scheduler tooling itself
// was unreachable.
func IsSchedulerUnavailable(err error) bool {
	return errors.Is(err, ErrSchedulerUnavailable)
}
