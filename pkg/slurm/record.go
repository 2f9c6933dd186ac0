package slurm

import (
	"strings"
	"time"
)

// accountingFields is the sacct field list requested on every query.
// Order matters: the pipe-separated output is zipped against it.
var accountingFields = []string{
	"JobID", "JobName", "State", "ExitCode", "Reason", "Elapsed", "Timelimit",
}

// JobRecord is a merged snapshot of one job's attributes at observation
// time. Records are produced fresh on every poll and never mutated.
//
// Fields from the live control source (scontrol) take precedence while
// the job is still resolvable there; once the job has left the
// controller's memory the accounting source (sacct) is all that remains.
type JobRecord struct {
	// JobID is the scheduler-assigned identity.
	JobID string

	// Name is the job name, when reported.
	Name string

	// RawState is the state string as reported by the scheduler,
	// e.g. "RUNNING" or "CANCELLED by 1000".
	RawState string

	// ExitCode is sacct's "exit:signal" pair, e.g. "0:0".
	ExitCode string

	// Reason is the scheduler's pending/failure reason, when reported.
	Reason string

	// RunTime is how long the job has been executing.
	RunTime time.Duration

	// TimeLimit is the allocated walltime. Zero when the limit is
	// unlimited or not yet set.
	TimeLimit time.Duration

	// Fields holds the full merged key-value view for callers that need
	// attributes beyond the typed ones above.
	Fields map[string]string
}

// Classification folds the record's raw state into the closed
// classification set.
func (r *JobRecord) Classification() Classification {
	return Classify(r.RawState)
}

// Remaining estimates the walltime left before the scheduler terminates
// the job: allocated limit minus elapsed run time, floored at zero. Jobs
// without a concrete limit report zero remaining, which drives the poll
// policy to its floor delay.
func (r *JobRecord) Remaining() time.Duration {
	if r.TimeLimit <= 0 {
		return 0
	}
	rem := r.TimeLimit - r.RunTime
	if rem < 0 {
		return 0
	}
	return rem
}

// mergeRecord builds a JobRecord from accounting and control field maps.
// Control fields win on conflict; either map may be empty.
func mergeRecord(jobID string, accounting, control map[string]string) *JobRecord {
	fields := make(map[string]string, len(accounting)+len(control))
	for k, v := range accounting {
		fields[k] = v
	}
	for k, v := range control {
		fields[k] = v
	}

	rec := &JobRecord{
		JobID:    jobID,
		Name:     firstNonEmpty(fields["JobName"], fields["Name"]),
		RawState: firstNonEmpty(fields["JobState"], fields["State"]),
		ExitCode: fields["ExitCode"],
		Reason:   fields["Reason"],
		Fields:   fields,
	}

	// scontrol reports RunTime, sacct reports Elapsed; same notation.
	if v := firstNonEmpty(fields["RunTime"], fields["Elapsed"]); v != "" {
		if d, err := ParseDuration(v); err == nil {
			rec.RunTime = d
		}
	}
	if v := firstNonEmpty(fields["TimeLimit"], fields["Timelimit"]); v != "" {
		if d, err := ParseDuration(v); err == nil {
			rec.TimeLimit = d
		}
	}

	return rec
}

// parseControlOutput parses `scontrol show job` output into a flat
// key-value map. scontrol emits space-separated key=value tokens across
// multiple lines.
func parseControlOutput(out string) map[string]string {
	fields := make(map[string]string)
	for _, token := range strings.Fields(out) {
		if i := strings.IndexByte(token, '='); i > 0 {
			fields[token[:i]] = token[i+1:]
		}
	}
	return fields
}

// parseAccountingOutput parses pipe-separated `sacct -P --noheader`
// output into one map per row, zipped against accountingFields. Rows
// with too few columns are padded with empty strings.
func parseAccountingOutput(out string) []map[string]string {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil
	}

	var rows []map[string]string
	for _, line := range strings.Split(out, "\n") {
		parts := strings.Split(line, "|")
		row := make(map[string]string, len(accountingFields))
		for i, name := range accountingFields {
			if i < len(parts) {
				row[name] = strings.TrimSpace(parts[i])
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// accountingRowFor picks the row whose JobID matches exactly, skipping
// the ".batch" and ".extern" step rows sacct reports alongside the
// allocation.
func accountingRowFor(rows []map[string]string, jobID string) map[string]string {
	for _, row := range rows {
		if row["JobID"] == jobID {
			return row
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
