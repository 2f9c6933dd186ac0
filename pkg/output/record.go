// Package output provides JSONL output for run lifecycle events.
//
// Events are structured as typed record envelopes. Each line is a
// self-contained JSON object that can be parsed independently, so
// scripts and agents can tail a run's event file.
package output

import (
	"encoding/json"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: slurmlongrun.<type>.v<version>
const (
	// TypeSubmitted identifies initial submission records.
	TypeSubmitted = "slurmlongrun.submitted.v1"

	// TypeFinalState identifies records for a job reaching a final state.
	TypeFinalState = "slurmlongrun.final_state.v1"

	// TypeResubmitted identifies continuation submission records.
	TypeResubmitted = "slurmlongrun.resubmitted.v1"

	// TypeOutcome identifies terminal run outcome records.
	TypeOutcome = "slurmlongrun.outcome.v1"
)

// Record is the envelope for all JSONL output.
//
// Each line contains a Record with a type-specific payload in the Data
// field. The type field determines how to interpret the payload.
type Record struct {
	// Type identifies the record type (e.g., "slurmlongrun.outcome.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// RunID is the correlation ID for this supervised run.
	RunID string `json:"run_id"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// SubmittedRecord is the data payload for the initial submission.
type SubmittedRecord struct {
	// JobID is the scheduler-assigned identity of the submitted job.
	JobID string `json:"job_id"`

	// SbatchArgs are the forwarded submission arguments.
	SbatchArgs []string `json:"sbatch_args,omitempty"`
}

// FinalStateRecord is the data payload for a job reaching a final state.
type FinalStateRecord struct {
	// JobID is the job that reached a final state.
	JobID string `json:"job_id"`

	// RawState is the state string as reported by the scheduler.
	RawState string `json:"raw_state"`

	// Classification is the folded semantic state.
	Classification string `json:"classification"`

	// Attempt is the submission ordinal this job belonged to.
	Attempt int `json:"attempt"`
}

// ResubmittedRecord is the data payload for a continuation submission.
type ResubmittedRecord struct {
	// JobID is the newly submitted continuation job.
	JobID string `json:"job_id"`

	// InitialJobID is the stable identity of the run's first job.
	InitialJobID string `json:"initial_job_id"`

	// Attempt is the total number of submissions issued so far.
	Attempt int `json:"attempt"`
}

// OutcomeRecord is the data payload for the run's terminal outcome.
// Exactly one outcome record is emitted per run.
type OutcomeRecord struct {
	// Outcome is SUCCEEDED, EXHAUSTED, or FAILED_TERMINAL.
	Outcome string `json:"outcome"`

	// InitialJobID is the stable identity of the run's first job.
	InitialJobID string `json:"initial_job_id,omitempty"`

	// FinalJobID is the last job monitored.
	FinalJobID string `json:"final_job_id,omitempty"`

	// Attempts is the number of submissions issued, including the
	// initial one.
	Attempts int `json:"attempts"`

	// FinalState is the classification that ended the run, if observed.
	FinalState string `json:"final_state,omitempty"`
}
