package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/slurmlongrun/internal/observability"
	"github.com/3leaps/slurmlongrun/pkg/longrun"
	"github.com/3leaps/slurmlongrun/pkg/output"
	"github.com/3leaps/slurmlongrun/pkg/runregistry"
	"github.com/3leaps/slurmlongrun/pkg/slurm"
)

var submitCmd = &cobra.Command{
	Use:   "submit [flags] -- <sbatch args...>",
	Short: "Submit a job and supervise it to completion",
	Long: `Submit an sbatch job and supervise the resulting run until it completes,
the retry budget is exhausted, or an unrecoverable condition is hit.
Everything after "--" is forwarded verbatim to sbatch.

Examples:
  slurmlongrun submit -- train.sbatch
  slurmlongrun submit --max-restarts 5 -- --time=04:00:00 train.sbatch
  slurmlongrun submit --detach --name nightly -- train.sbatch

Exit codes: 0 when a job completed, 10 when the retry budget was spent,
20 on submission failure, unrecoverable job state, or scheduler outage.`,
	Args: cobra.ArbitraryArgs,
	RunE: runSubmit,
}

var (
	submitMaxRestarts int
	submitName        string
	submitDetach      bool
	submitManagedRun  string
)

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().IntVar(&submitMaxRestarts, "max-restarts", -1, "Resubmission budget (default from config)")
	submitCmd.Flags().StringVar(&submitName, "name", "", "Human-readable run name")
	submitCmd.Flags().BoolVarP(&submitDetach, "detach", "d", false, "Run the supervisor in a detached background process")
	submitCmd.Flags().StringVar(&submitManagedRun, "_managed-run-id", "", "Run id assigned by the detaching parent")
	_ = submitCmd.Flags().MarkHidden("_managed-run-id")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return exitError(foundry.ExitInvalidArgument, "No sbatch arguments given (separate them with \"--\")", nil)
	}

	maxRestarts := submitMaxRestarts
	if maxRestarts < 0 {
		maxRestarts = appConfig.Run.MaxRestarts
	}

	if submitDetach && submitManagedRun == "" {
		return startDetached(maxRestarts, args)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := runregistry.NewStore(appConfig.RunsDir())

	runID := submitManagedRun
	rec, err := managedRunRecord(store, runID, maxRestarts, args)
	if err != nil {
		return exitError(foundry.ExitFileWriteError, "Cannot initialize run record", err)
	}
	runID = rec.RunID

	eventsFile, err := os.OpenFile(store.EventsPath(runID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return exitError(foundry.ExitFileWriteError, "Cannot open run event log", err)
	}
	defer func() { _ = eventsFile.Close() }()
	events := output.NewJSONLWriter(eventsFile, runID)
	defer func() { _ = events.Close() }()

	client := slurm.NewClient(slurm.ClientConfig{
		RegistrationDelay: appConfig.Scheduler.RegistrationDelay,
		RateLimit:         appConfig.Scheduler.RateLimit,
		Logger:            observability.CLILogger,
	})

	controller := longrun.New(client, client, longrun.Config{
		SbatchArgs:        args,
		MaxRestarts:       maxRestarts,
		QueryRetryLimit:   appConfig.Query.RetryLimit,
		QueryRetryBackoff: appConfig.Query.RetryBackoff,
		Poll: longrun.PollPolicy{
			Floor:   appConfig.Poll.Floor,
			Ceiling: appConfig.Poll.Ceiling,
			Divisor: appConfig.Poll.Divisor,
		},
		Logger:  observability.CLILogger,
		OnEvent: runEventRecorder(store, rec, events),
	})

	observability.CLILogger.Info("Starting supervised run",
		zap.String("run_id", runID),
		zap.Int("max_restarts", maxRestarts),
		zap.Strings("sbatch_args", args))

	res, runErr := controller.Run(ctx)
	if res == nil {
		// Cancelled at a poll wait; the record keeps its last state but
		// is no longer supervised.
		rec.State = runregistry.RunStateUnknown
		finishRecord(store, rec)
		return exitError(foundry.ExitSignalInt, "Run cancelled", runErr)
	}

	switch res.Outcome {
	case longrun.OutcomeSucceeded:
		observability.CLILogger.Info("Run succeeded",
			zap.String("run_id", runID),
			zap.String("initial_job_id", res.InitialJobID),
			zap.Int("attempts", res.Attempts))
		return nil
	case longrun.OutcomeExhausted:
		return exitError(exitCodeExhausted, "Retry budget exhausted", runErr)
	default:
		return exitError(exitCodeFailedTerminal, "Run failed", runErr)
	}
}

// startDetached hands the run to a background supervisor process and
// returns immediately.
func startDetached(maxRestarts int, sbatchArgs []string) error {
	executor := runregistry.NewExecutor(appConfig.RunsDir())
	rec, err := executor.StartDetached(submitName, maxRestarts, sbatchArgs)
	if err != nil {
		return exitError(foundry.ExitFileWriteError, "Cannot start detached supervisor", err)
	}

	observability.CLILogger.Info("Detached supervisor started",
		zap.String("run_id", rec.RunID),
		zap.Int("pid", rec.PID),
		zap.String("stdout", rec.StdoutPath),
		zap.String("stderr", rec.StderrPath))
	observability.CLILogger.Info("Follow it with: slurmlongrun runs logs " + rec.RunID)
	return nil
}

// managedRunRecord loads the record created by the detaching parent, or
// creates a fresh one for a foreground run.
func managedRunRecord(store *runregistry.Store, runID string, maxRestarts int, sbatchArgs []string) (*runregistry.RunRecord, error) {
	if runID != "" {
		rec, err := store.Get(runID)
		if err != nil {
			return nil, err
		}
		// The managed child owns the record from here on.
		rec.State = runregistry.RunStateRunning
		rec.PID = os.Getpid()
		if err := store.Write(rec); err != nil {
			return nil, err
		}
		return rec, nil
	}

	now := time.Now().UTC()
	rec := &runregistry.RunRecord{
		RunID:       runregistry.NewRunID(),
		Name:        submitName,
		State:       runregistry.RunStateRunning,
		SbatchArgs:  sbatchArgs,
		MaxRestarts: maxRestarts,
		PID:         os.Getpid(),
		CreatedAt:   now,
		StartedAt:   &now,
	}
	rec.EventsPath = store.EventsPath(rec.RunID)
	if err := store.Write(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// runEventRecorder persists every controller transition to the run
// record and the JSONL event log.
func runEventRecorder(store *runregistry.Store, rec *runregistry.RunRecord, events output.Writer) func(longrun.Event) {
	return func(ev longrun.Event) {
		switch ev.Type {
		case longrun.EventSubmitted:
			rec.InitialJobID = ev.InitialJobID
			rec.CurrentJobID = ev.JobID
			rec.Attempts = ev.Attempt
			_ = events.WriteSubmitted(&output.SubmittedRecord{
				JobID:      ev.JobID,
				SbatchArgs: rec.SbatchArgs,
			})

		case longrun.EventFinalState:
			_ = events.WriteFinalState(&output.FinalStateRecord{
				JobID:          ev.JobID,
				RawState:       ev.RawState,
				Classification: string(ev.Classification),
				Attempt:        ev.Attempt,
			})

		case longrun.EventResubmitted:
			rec.CurrentJobID = ev.JobID
			rec.Attempts = ev.Attempt
			_ = events.WriteResubmitted(&output.ResubmittedRecord{
				JobID:        ev.JobID,
				InitialJobID: ev.InitialJobID,
				Attempt:      ev.Attempt,
			})

		case longrun.EventOutcome:
			rec.State = runStateFor(ev.Outcome)
			rec.Outcome = string(ev.Outcome)
			rec.FinalState = string(ev.Classification)
			finishRecord(nil, rec)
			_ = events.WriteOutcome(&output.OutcomeRecord{
				Outcome:      string(ev.Outcome),
				InitialJobID: ev.InitialJobID,
				FinalJobID:   ev.JobID,
				Attempts:     ev.Attempt,
				FinalState:   string(ev.Classification),
			})
		}

		if err := store.Write(rec); err != nil {
			observability.CLILogger.Warn("Cannot persist run record",
				zap.String("run_id", rec.RunID), zap.Error(err))
		}
	}
}

func runStateFor(outcome longrun.Outcome) runregistry.RunState {
	switch outcome {
	case longrun.OutcomeSucceeded:
		return runregistry.RunStateSucceeded
	case longrun.OutcomeExhausted:
		return runregistry.RunStateExhausted
	default:
		return runregistry.RunStateFailed
	}
}

// finishRecord stamps the end time and persists when a store is given.
func finishRecord(store *runregistry.Store, rec *runregistry.RunRecord) {
	now := time.Now().UTC()
	rec.EndedAt = &now
	if store != nil {
		if err := store.Write(rec); err != nil {
			observability.CLILogger.Warn("Cannot persist run record",
				zap.String("run_id", rec.RunID), zap.Error(err))
		}
	}
}
