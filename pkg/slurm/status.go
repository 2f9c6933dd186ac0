// Package slurm talks to the Slurm workload manager through its
// command-line tools and maps what it reports into a small, closed
// classification model.
//
// The package covers three concerns:
//   - Classification: folding raw scheduler state strings into a fixed
//     semantic set with final/success/resubmit predicates
//   - Job records: merged sacct (accounting) + scontrol (live control)
//     snapshots of a single job
//   - Ports: the submission and query interfaces plus their production
//     implementation invoking sbatch, sacct, and scontrol
package slurm

import "strings"

// Classification is the semantic state of a job as seen by the
// supervisor. The set is closed: every raw state string Slurm can report
// folds into exactly one value, with unrecognized strings mapping to
// ClassUnknown.
type Classification string

const (
	ClassPending   Classification = "PENDING"
	ClassRunning   Classification = "RUNNING"
	ClassCompleted Classification = "COMPLETED"
	ClassTimeout   Classification = "TIMEOUT"
	ClassDeadline  Classification = "DEADLINE"
	ClassPreempted Classification = "PREEMPTED"
	ClassNodeFail  Classification = "NODE_FAIL"
	ClassRevoked   Classification = "REVOKED"
	ClassFailed    Classification = "FAILED"
	ClassCancelled Classification = "CANCELLED"
	ClassUnknown   Classification = "UNKNOWN"
)

// rawStates maps every Slurm state string we recognize to its
// classification. States not listed here classify as ClassUnknown, which
// is final and never resubmit-worthy: resubmitting on a state we cannot
// interpret risks an infinite resubmission loop on misparsed output.
var rawStates = map[string]Classification{
	// live states
	"PENDING":     ClassPending,
	"CONFIGURING": ClassPending,
	"REQUEUED":    ClassPending,
	"RESIZING":    ClassPending,
	"SUSPENDED":   ClassPending,
	"RUNNING":     ClassRunning,
	"COMPLETING":  ClassRunning,

	// terminal states
	"COMPLETED":     ClassCompleted,
	"TIMEOUT":       ClassTimeout,
	"DEADLINE":      ClassDeadline,
	"PREEMPTED":     ClassPreempted,
	"NODE_FAIL":     ClassNodeFail,
	"REVOKED":       ClassRevoked,
	"FAILED":        ClassFailed,
	"BOOT_FAIL":     ClassFailed,
	"OUT_OF_MEMORY": ClassFailed,
	"SPECIAL_EXIT":  ClassFailed,
	"STOPPED":       ClassFailed,
	"CANCELLED":     ClassCancelled,
}

// Classify maps a raw Slurm state string to its Classification.
//
// Classify is total: any input yields a valid Classification. It
// tolerates the decorations Slurm adds in accounting output, such as
// "CANCELLED by 1000" and the "+" suffix on requeued steps.
func Classify(rawState string) Classification {
	s := strings.ToUpper(strings.TrimSpace(rawState))
	s = strings.TrimSuffix(s, "+")
	// sacct reports operator cancellations as "CANCELLED by <uid>".
	if fields := strings.Fields(s); len(fields) > 0 {
		s = fields[0]
	}
	if c, ok := rawStates[s]; ok {
		return c
	}
	return ClassUnknown
}

// IsFinal reports whether the scheduler will not change this job's state
// any further. Every classification except PENDING and RUNNING is final.
func (c Classification) IsFinal() bool {
	return c != ClassPending && c != ClassRunning
}

// IsSuccess reports whether the job ran to completion.
func (c Classification) IsSuccess() bool {
	return c == ClassCompleted
}

// ShouldResubmit reports whether the job ended in a recoverable
// interruption that a continuation job can pick up from: the walltime
// limit, a deadline, preemption, a node failure, or sibling revocation.
// Genuine failures (FAILED, CANCELLED, UNKNOWN) are never resubmitted.
func (c Classification) ShouldResubmit() bool {
	switch c {
	case ClassTimeout, ClassDeadline, ClassPreempted, ClassNodeFail, ClassRevoked:
		return true
	}
	return false
}
