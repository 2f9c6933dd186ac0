package slurm

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDuration converts Slurm's elapsed-time notation to a
// time.Duration.
//
// Accepted forms:
//
//	MM:SS
//	HH:MM:SS
//	D-HH:MM:SS
//
// The sentinels "UNLIMITED", "NOT_SET", and "Partition_Limit" that Slurm
// uses for time limits are rejected; callers decide how to treat a job
// without a concrete limit.
func ParseDuration(s string) (time.Duration, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, fmt.Errorf("empty duration")
	}
	switch strings.ToUpper(raw) {
	case "UNLIMITED", "NOT_SET", "PARTITION_LIMIT":
		return 0, fmt.Errorf("non-numeric time limit %q", raw)
	}

	var days int64
	rest := raw
	if i := strings.IndexByte(raw, '-'); i >= 0 {
		d, err := strconv.ParseInt(raw[:i], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse days in %q: %w", raw, err)
		}
		days = d
		rest = raw[i+1:]
	}

	parts := strings.Split(rest, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("malformed duration %q", raw)
	}

	vals := make([]int64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("malformed duration %q", raw)
		}
		vals[i] = v
	}

	var h, m, sec int64
	if len(vals) == 3 {
		h, m, sec = vals[0], vals[1], vals[2]
	} else {
		m, sec = vals[0], vals[1]
	}

	total := days*86400 + h*3600 + m*60 + sec
	return time.Duration(total) * time.Second, nil
}
