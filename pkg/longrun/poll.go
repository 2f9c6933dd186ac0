// Package longrun supervises one logical run of a walltime-bounded Slurm
// workload across automatic resubmissions.
//
// The Controller owns the submit→monitor→classify→decide loop; PollPolicy
// decides how long to wait between state queries.
package longrun

import "time"

// Poll policy defaults. The exact constants are tunable; the monotonic
// relationship (less remaining walltime never increases the delay) is
// the invariant that matters.
const (
	DefaultPollFloor   = 5 * time.Second
	DefaultPollCeiling = 120 * time.Second
	DefaultPollDivisor = 10
)

// PollPolicy computes the delay before the next state query from the
// job's estimated remaining walltime. Jobs with a large budget left are
// polled rarely to keep load off the scheduler; as the walltime limit
// approaches, polling tightens so the terminal transition is detected
// promptly and the continuation job starts with minimal idle time.
type PollPolicy struct {
	// Floor is the minimum delay between polls.
	Floor time.Duration

	// Ceiling is the maximum delay between polls.
	Ceiling time.Duration

	// Divisor scales remaining walltime down to a delay:
	// delay = remaining / Divisor, clamped to [Floor, Ceiling].
	Divisor int
}

// DefaultPollPolicy returns the default staircase:
// clamp(remaining/10, 5s, 120s).
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		Floor:   DefaultPollFloor,
		Ceiling: DefaultPollCeiling,
		Divisor: DefaultPollDivisor,
	}
}

// Delay returns the wait before the next poll for a job with the given
// remaining walltime. Zero-value fields fall back to the defaults, so a
// zero PollPolicy behaves like DefaultPollPolicy().
func (p PollPolicy) Delay(remaining time.Duration) time.Duration {
	floor, ceiling, divisor := p.Floor, p.Ceiling, p.Divisor
	if floor <= 0 {
		floor = DefaultPollFloor
	}
	if ceiling <= 0 {
		ceiling = DefaultPollCeiling
	}
	if ceiling < floor {
		ceiling = floor
	}
	if divisor <= 0 {
		divisor = DefaultPollDivisor
	}

	if remaining < 0 {
		remaining = 0
	}
	d := remaining / time.Duration(divisor)
	if d < floor {
		return floor
	}
	if d > ceiling {
		return ceiling
	}
	return d
}
