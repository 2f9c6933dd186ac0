package slurm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// InitialJobIDEnv is exported into the environment of every continuation
// job so job-script-level checkpoint logic can key persistent state on an
// identity that is stable across the whole logical run.
const InitialJobIDEnv = "SLURM_LONGRUN_INITIAL_JOB_ID"

// DefaultRegistrationDelay is how long Submit waits after sbatch accepts
// a job before returning. Slurm's accounting database can lag a freshly
// accepted job, and an immediate sacct query would spuriously fail.
const DefaultRegistrationDelay = 5 * time.Second

var submittedJobRE = regexp.MustCompile(`Submitted batch job (\d+)`)

// SubmitOptions controls a single submission.
type SubmitOptions struct {
	// AppendLogs submits with --open-mode=append so a continuation job
	// extends the run's existing output/error logs instead of
	// overwriting them.
	AppendLogs bool

	// InitialJobID, when non-empty, is exported as
	// SLURM_LONGRUN_INITIAL_JOB_ID in the submitted job's environment.
	InitialJobID string
}

// Submitter is the submission port. A successful Submit returns the
// scheduler-assigned job identity; failure is a *SubmissionError.
type Submitter interface {
	Submit(ctx context.Context, args []string, opts SubmitOptions) (string, error)
}

// RecordFetcher is the query port. Fetch returns a fresh merged snapshot
// of the job's attributes; failure is a *QueryError and must be retried
// by the caller, never interpreted as a terminal job state.
type RecordFetcher interface {
	Fetch(ctx context.Context, jobID string) (*JobRecord, error)
}

// commandRunner executes one external command and returns its captured
// stdout and stderr. Swapped out by tests.
type commandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)

// ClientConfig configures the production scheduler client.
type ClientConfig struct {
	// RegistrationDelay is the pause after a successful sbatch before
	// Submit returns. Default: DefaultRegistrationDelay.
	RegistrationDelay time.Duration

	// RateLimit is the maximum scheduler commands per second. Zero means
	// unlimited.
	RateLimit float64

	// Logger receives debug lines for every command invocation.
	// Default: zap.NewNop().
	Logger *zap.Logger
}

// Client invokes the real Slurm command-line tools. It implements both
// the Submitter and RecordFetcher ports.
//
// Client is safe for use from a single controller loop; it holds no
// per-run state.
type Client struct {
	run       commandRunner
	limiter   *rate.Limiter
	regDelay  time.Duration
	logger    *zap.Logger
	sleepFunc func(context.Context, time.Duration) error
}

// NewClient creates a scheduler client.
func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		run:       execRunner,
		regDelay:  cfg.RegistrationDelay,
		logger:    cfg.Logger,
		sleepFunc: sleepCtx,
	}
	if c.regDelay <= 0 {
		c.regDelay = DefaultRegistrationDelay
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c
}

// Submit runs sbatch with the given pass-through arguments and parses
// the assigned job id from its "Submitted batch job <id>" output.
func (c *Client) Submit(ctx context.Context, args []string, opts SubmitOptions) (string, error) {
	sbatchArgs := args
	if opts.AppendLogs {
		sbatchArgs = append([]string{"--open-mode=append"}, args...)
	}
	if opts.InitialJobID != "" {
		// sbatch exports the caller's environment into the job by
		// default (--export=ALL), so setting the variable here is
		// enough to reach the job script.
		if err := os.Setenv(InitialJobIDEnv, opts.InitialJobID); err != nil {
			return "", &SubmissionError{Args: sbatchArgs, Err: err}
		}
	}

	if err := c.wait(ctx); err != nil {
		return "", &SubmissionError{Args: sbatchArgs, Err: err}
	}

	c.logger.Debug("Running sbatch", zap.Strings("args", sbatchArgs))
	stdout, stderr, err := c.run(ctx, "sbatch", sbatchArgs...)
	if err != nil {
		return "", &SubmissionError{Args: sbatchArgs, Stderr: strings.TrimSpace(stderr), Err: err}
	}

	m := submittedJobRE.FindStringSubmatch(stdout)
	if m == nil {
		return "", &SubmissionError{
			Args:   sbatchArgs,
			Stderr: strings.TrimSpace(stderr),
			Err:    fmt.Errorf("%w: %q", ErrMalformedOutput, strings.TrimSpace(stdout)),
		}
	}
	jobID := m[1]

	// Give the accounting database time to register the job before the
	// first Fetch.
	if err := c.sleepFunc(ctx, c.regDelay); err != nil {
		return jobID, nil
	}

	c.logger.Debug("Submitted batch job", zap.String("job_id", jobID))
	return jobID, nil
}

// Fetch merges accounting and control attributes for a job into one
// record. Control fields win while scontrol can still resolve the job;
// after that the accounting row is the source of truth.
func (c *Client) Fetch(ctx context.Context, jobID string) (*JobRecord, error) {
	accounting, accErr := c.FetchAccounting(ctx, jobID)
	control, ctlErr := c.FetchControl(ctx, jobID)

	if accErr != nil && ctlErr != nil {
		return nil, accErr
	}
	if accounting == nil && len(control) == 0 {
		return nil, &QueryError{Op: "sacct", JobID: jobID, Err: ErrJobNotFound}
	}

	return mergeRecord(jobID, accounting, control), nil
}

// FetchAccounting queries sacct for the job's allocation row.
//
// A nil map with nil error means sacct answered but has no row for the
// job yet; the merged Fetch treats that as "not registered" unless
// scontrol resolves it.
func (c *Client) FetchAccounting(ctx context.Context, jobID string) (map[string]string, error) {
	if err := c.wait(ctx); err != nil {
		return nil, &QueryError{Op: "sacct", JobID: jobID, Err: err}
	}

	args := []string{
		"-j", jobID,
		"--format=" + strings.Join(accountingFields, ","),
		"--noheader", "-P",
	}
	c.logger.Debug("Running sacct", zap.String("job_id", jobID))
	stdout, stderr, err := c.run(ctx, "sacct", args...)
	if err != nil {
		return nil, &QueryError{
			Op:    "sacct",
			JobID: jobID,
			Err:   fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr)),
		}
	}
	return accountingRowFor(parseAccountingOutput(stdout), jobID), nil
}

// FetchControl queries scontrol for the job's live control attributes.
//
// Once a job has aged out of the controller's memory scontrol reports
// "Invalid job id specified"; that is the normal fallback condition, not
// an error, and yields an empty map.
func (c *Client) FetchControl(ctx context.Context, jobID string) (map[string]string, error) {
	if err := c.wait(ctx); err != nil {
		return nil, &QueryError{Op: "scontrol", JobID: jobID, Err: err}
	}

	c.logger.Debug("Running scontrol", zap.String("job_id", jobID))
	stdout, stderr, err := c.run(ctx, "scontrol", "show", "job", jobID)
	if err != nil {
		if strings.Contains(stderr, "Invalid job id") {
			return map[string]string{}, nil
		}
		return nil, &QueryError{
			Op:    "scontrol",
			JobID: jobID,
			Err:   fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr)),
		}
	}
	return parseControlOutput(stdout), nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func execRunner(ctx context.Context, name string, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil && isExecNotFound(err) {
		err = fmt.Errorf("%w: %v", ErrSchedulerUnavailable, err)
	}
	return stdout.String(), stderr.String(), err
}

func isExecNotFound(err error) bool {
	var ee *exec.Error
	return errors.As(err, &ee)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
