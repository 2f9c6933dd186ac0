package slurm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"00:00:00", 0, false},
		{"00:15:20", 15*time.Minute + 20*time.Second, false},
		{"02:30:00", 2*time.Hour + 30*time.Minute, false},
		{"1-02:30:00", 26*time.Hour + 30*time.Minute, false},
		{"10-00:00:01", 240*time.Hour + time.Second, false},
		{"05:30", 5*time.Minute + 30*time.Second, false},

		{"UNLIMITED", 0, true},
		{"NOT_SET", 0, true},
		{"Partition_Limit", 0, true},
		{"", 0, true},
		{"12", 0, true},
		{"1:2:3:4", 0, true},
		{"aa:bb:cc", 0, true},
		{"-01:00:00", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
