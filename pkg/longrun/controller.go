package longrun

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/slurmlongrun/pkg/slurm"
)

// Outcome is the terminal result of a run. Outcomes are mutually
// exclusive and reported exactly once.
type Outcome string

const (
	// OutcomeSucceeded means a job in the run completed.
	OutcomeSucceeded Outcome = "SUCCEEDED"

	// OutcomeExhausted means the retry budget was spent while jobs were
	// still ending in resubmit-worthy states. This is policy, not
	// malfunction.
	OutcomeExhausted Outcome = "EXHAUSTED"

	// OutcomeFailed means the run ended on a submission failure, an
	// unrecoverable classification, or sustained query failures.
	OutcomeFailed Outcome = "FAILED_TERMINAL"
)

// EventType identifies a run lifecycle event.
type EventType string

const (
	EventSubmitted   EventType = "submitted"
	EventFinalState  EventType = "final_state"
	EventResubmitted EventType = "resubmitted"
	EventOutcome     EventType = "outcome"
)

// Event is one run lifecycle transition, emitted through Config.OnEvent
// for callers that persist run state or stream progress.
type Event struct {
	Type           EventType
	JobID          string
	InitialJobID   string
	Attempt        int
	RawState       string
	Classification slurm.Classification
	Outcome        Outcome
}

// Query retry defaults.
const (
	DefaultQueryRetryLimit   = 5
	DefaultQueryRetryBackoff = 10 * time.Second
)

// Config configures a Controller.
type Config struct {
	// SbatchArgs are the scheduler submission arguments, forwarded
	// verbatim to every submission in the run.
	SbatchArgs []string

	// MaxRestarts is the ceiling on resubmissions (not total
	// submissions). Zero means the initial job is never resubmitted.
	MaxRestarts int

	// QueryRetryLimit is how many consecutive query failures are
	// tolerated before the run fails. Default: 5.
	QueryRetryLimit int

	// QueryRetryBackoff is the fixed wait between query retries.
	// Default: 10s.
	QueryRetryBackoff time.Duration

	// Poll decides the wait between state queries. The zero value is
	// the default staircase.
	Poll PollPolicy

	// Logger receives one line per state transition. Default: no-op.
	Logger *zap.Logger

	// OnEvent, when set, is invoked synchronously for every lifecycle
	// transition. It must not block.
	OnEvent func(Event)
}

// Result reports how a run ended.
type Result struct {
	// Outcome is the terminal outcome.
	Outcome Outcome

	// InitialJobID is the identity of the first submitted job, stable
	// across every resubmission in the run.
	InitialJobID string

	// FinalJobID is the identity of the last job monitored.
	FinalJobID string

	// Attempts is the number of submissions issued, including the
	// initial one.
	Attempts int

	// FinalState is the classification that ended the run, when one was
	// observed.
	FinalState slurm.Classification
}

// runState is the controller's private bookkeeping. It is owned
// exclusively by the running Controller and never shared.
type runState struct {
	initialJobID string // set exactly once, on the first successful submission
	currentJobID string
	attempts     int
}

// Controller drives one run to a terminal outcome: it submits the
// initial job, monitors it, and resubmits continuation jobs on
// recoverable terminal states until the job completes, the retry budget
// is spent, or an unrecoverable condition is hit.
//
// A Controller is single use and runs on a single goroutine. Create a
// new Controller (with its own state) for each run hosted in a process.
type Controller struct {
	submitter slurm.Submitter
	fetcher   slurm.RecordFetcher
	cfg       Config
	logger    *zap.Logger

	// sleep is swapped out by tests.
	sleep func(context.Context, time.Duration) error
}

// New creates a Controller. Zero-value Config fields are defaulted.
func New(submitter slurm.Submitter, fetcher slurm.RecordFetcher, cfg Config) *Controller {
	if cfg.QueryRetryLimit <= 0 {
		cfg.QueryRetryLimit = DefaultQueryRetryLimit
	}
	if cfg.QueryRetryBackoff <= 0 {
		cfg.QueryRetryBackoff = DefaultQueryRetryBackoff
	}
	if cfg.MaxRestarts < 0 {
		cfg.MaxRestarts = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		submitter: submitter,
		fetcher:   fetcher,
		cfg:       cfg,
		logger:    logger,
		sleep:     sleepCtx,
	}
}

// Run executes the run to its terminal outcome, blocking until the run
// ends or ctx is cancelled at a poll wait. An in-flight submission or
// query is allowed to complete before the run finalizes, so a cancelled
// run never leaves a half-completed resubmission behind.
//
// Run returns a Result for every terminal outcome; the error is non-nil
// only for OutcomeFailed (carrying the cause) and for cancellation
// (nil Result, ctx.Err()).
func (c *Controller) Run(ctx context.Context) (*Result, error) {
	st := &runState{}

	jobID, err := c.submitter.Submit(ctx, c.cfg.SbatchArgs, slurm.SubmitOptions{})
	if err != nil {
		c.logger.Error("Initial submission failed", zap.Error(err))
		res := &Result{Outcome: OutcomeFailed}
		c.emit(Event{Type: EventOutcome, Outcome: OutcomeFailed})
		return res, err
	}

	st.initialJobID = jobID
	st.currentJobID = jobID
	st.attempts = 1

	c.logger.Info("Submitted initial job",
		zap.String("job_id", jobID),
		zap.Strings("sbatch_args", c.cfg.SbatchArgs))
	c.emit(Event{Type: EventSubmitted, JobID: jobID, InitialJobID: jobID, Attempt: 1})

	for {
		rec, err := c.fetchWithRetry(ctx, st.currentJobID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Error("Query retries exhausted", zap.String("job_id", st.currentJobID), zap.Error(err))
			res := c.result(st, OutcomeFailed, "")
			c.emit(Event{Type: EventOutcome, InitialJobID: st.initialJobID, JobID: st.currentJobID,
				Attempt: st.attempts, Outcome: OutcomeFailed})
			return res, err
		}

		cls := rec.Classification()
		if !cls.IsFinal() {
			delay := c.cfg.Poll.Delay(rec.Remaining())
			c.logger.Debug("Job not final, waiting",
				zap.String("job_id", st.currentJobID),
				zap.String("state", rec.RawState),
				zap.Duration("remaining", rec.Remaining()),
				zap.Duration("delay", delay))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		c.logger.Info("Job reached final state",
			zap.String("job_id", st.currentJobID),
			zap.String("state", rec.RawState),
			zap.String("classification", string(cls)),
			zap.Int("attempt", st.attempts))
		c.emit(Event{Type: EventFinalState, JobID: st.currentJobID, InitialJobID: st.initialJobID,
			Attempt: st.attempts, RawState: rec.RawState, Classification: cls})

		switch {
		case cls.IsSuccess():
			res := c.result(st, OutcomeSucceeded, cls)
			c.emit(Event{Type: EventOutcome, JobID: st.currentJobID, InitialJobID: st.initialJobID,
				Attempt: st.attempts, Classification: cls, Outcome: OutcomeSucceeded})
			return res, nil

		case cls.ShouldResubmit() && st.attempts <= c.cfg.MaxRestarts:
			if err := c.resubmit(ctx, st); err != nil {
				res := c.result(st, OutcomeFailed, cls)
				c.emit(Event{Type: EventOutcome, JobID: st.currentJobID, InitialJobID: st.initialJobID,
					Attempt: st.attempts, Classification: cls, Outcome: OutcomeFailed})
				return res, err
			}

		case cls.ShouldResubmit():
			c.logger.Warn("Retry budget exhausted",
				zap.String("job_id", st.currentJobID),
				zap.Int("max_restarts", c.cfg.MaxRestarts))
			res := c.result(st, OutcomeExhausted, cls)
			c.emit(Event{Type: EventOutcome, JobID: st.currentJobID, InitialJobID: st.initialJobID,
				Attempt: st.attempts, Classification: cls, Outcome: OutcomeExhausted})
			return res, nil

		default:
			res := c.result(st, OutcomeFailed, cls)
			c.emit(Event{Type: EventOutcome, JobID: st.currentJobID, InitialJobID: st.initialJobID,
				Attempt: st.attempts, Classification: cls, Outcome: OutcomeFailed})
			return res, fmt.Errorf("job %s ended in unrecoverable state %s", st.currentJobID, cls)
		}
	}
}

// resubmit issues the continuation job in log-append mode, carrying the
// stable initial identity, and rebinds monitoring to the new job.
func (c *Controller) resubmit(ctx context.Context, st *runState) error {
	newID, err := c.submitter.Submit(ctx, c.cfg.SbatchArgs, slurm.SubmitOptions{
		AppendLogs:   true,
		InitialJobID: st.initialJobID,
	})
	if err != nil {
		c.logger.Error("Resubmission failed", zap.Error(err))
		return err
	}

	st.currentJobID = newID
	st.attempts++

	c.logger.Info("Resubmitted job",
		zap.String("job_id", newID),
		zap.String("initial_job_id", st.initialJobID),
		zap.Int("attempt", st.attempts))
	c.emit(Event{Type: EventResubmitted, JobID: newID, InitialJobID: st.initialJobID, Attempt: st.attempts})
	return nil
}

// fetchWithRetry fetches the job record, retrying transient query
// failures with a fixed backoff. After QueryRetryLimit consecutive
// failures the last error is escalated to the caller.
func (c *Controller) fetchWithRetry(ctx context.Context, jobID string) (*slurm.JobRecord, error) {
	var lastErr error
	for i := 0; i < c.cfg.QueryRetryLimit; i++ {
		rec, err := c.fetcher.Fetch(ctx, jobID)
		if err == nil {
			return rec, nil
		}
		lastErr = err
		c.logger.Warn("Query failed",
			zap.String("job_id", jobID),
			zap.Int("consecutive_failures", i+1),
			zap.Error(err))
		if i == c.cfg.QueryRetryLimit-1 {
			break
		}
		if err := c.sleep(ctx, c.cfg.QueryRetryBackoff); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("query failed %d consecutive times: %w", c.cfg.QueryRetryLimit, lastErr)
}

func (c *Controller) result(st *runState, outcome Outcome, cls slurm.Classification) *Result {
	return &Result{
		Outcome:      outcome,
		InitialJobID: st.initialJobID,
		FinalJobID:   st.currentJobID,
		Attempts:     st.attempts,
		FinalState:   cls,
	}
}

func (c *Controller) emit(ev Event) {
	if c.cfg.OnEvent != nil {
		c.cfg.OnEvent(ev)
	}
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
