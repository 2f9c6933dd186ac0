package runregistry

import "time"

// RunState is the lifecycle state of a supervised run.
//
// NOTE: These values are persisted in run.json and are part of the stable
// on-disk contract.
type RunState string

const (
	RunStateRunning   RunState = "running"
	RunStateSucceeded RunState = "succeeded"
	RunStateExhausted RunState = "exhausted"
	RunStateFailed    RunState = "failed"
	RunStateUnknown   RunState = "unknown"
)

// RunRecord is the persistent record written to run.json.
//
// The schema is designed for backward-compatible extension (additive
// fields). One record describes one logical run: a chain of Slurm jobs
// linked by a stable initial job identity.
type RunRecord struct {
	RunID      string   `json:"run_id"`
	Name       string   `json:"name,omitempty"`
	State      RunState `json:"state"`
	SbatchArgs []string `json:"sbatch_args,omitempty"`

	// InitialJobID is set once, on the first successful submission, and
	// never changes afterwards; checkpoint logic keys on it.
	InitialJobID string `json:"initial_job_id,omitempty"`

	// CurrentJobID is the job currently (or last) being monitored.
	CurrentJobID string `json:"current_job_id,omitempty"`

	// Attempts is the number of submissions issued so far, including
	// the initial one.
	Attempts int `json:"attempts"`

	// MaxRestarts is the run's resubmission budget.
	MaxRestarts int `json:"max_restarts"`

	// Outcome is the terminal outcome once the run ends.
	Outcome string `json:"outcome,omitempty"`

	// FinalState is the classification that ended the run, if observed.
	FinalState string `json:"final_state,omitempty"`

	// PID is the supervising process, for detached runs.
	PID int `json:"pid,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	// EventsPath is the run's JSONL event log.
	EventsPath string `json:"events_path,omitempty"`

	StdoutPath string `json:"stdout_path,omitempty"`
	StderrPath string `json:"stderr_path,omitempty"`
}
