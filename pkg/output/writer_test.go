package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWriter(buf *bytes.Buffer) *JSONLWriter {
	jw := NewJSONLWriter(buf, "run-1")
	jw.now = func() time.Time {
		return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	}
	return jw
}

func TestJSONLWriterEmitsOneLinePerRecord(t *testing.T) {
	var buf bytes.Buffer
	jw := newTestWriter(&buf)

	require.NoError(t, jw.WriteSubmitted(&SubmittedRecord{JobID: "1001", SbatchArgs: []string{"train.sbatch"}}))
	require.NoError(t, jw.WriteFinalState(&FinalStateRecord{JobID: "1001", RawState: "TIMEOUT", Classification: "TIMEOUT", Attempt: 1}))
	require.NoError(t, jw.WriteResubmitted(&ResubmittedRecord{JobID: "1002", InitialJobID: "1001", Attempt: 2}))
	require.NoError(t, jw.WriteOutcome(&OutcomeRecord{Outcome: "SUCCEEDED", InitialJobID: "1001", FinalJobID: "1002", Attempts: 2}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)

	wantTypes := []string{TypeSubmitted, TypeFinalState, TypeResubmitted, TypeOutcome}
	for i, line := range lines {
		var rec Record
		require.NoError(t, json.Unmarshal([]byte(line), &rec), "line %d must be standalone JSON", i)
		assert.Equal(t, wantTypes[i], rec.Type)
		assert.Equal(t, "run-1", rec.RunID)
		assert.False(t, rec.TS.IsZero())
	}
}

func TestJSONLWriterOutcomePayload(t *testing.T) {
	var buf bytes.Buffer
	jw := newTestWriter(&buf)

	require.NoError(t, jw.WriteOutcome(&OutcomeRecord{
		Outcome:      "EXHAUSTED",
		InitialJobID: "1001",
		FinalJobID:   "1003",
		Attempts:     3,
		FinalState:   "TIMEOUT",
	}))

	var rec Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))

	var payload OutcomeRecord
	require.NoError(t, json.Unmarshal(rec.Data, &payload))
	assert.Equal(t, "EXHAUSTED", payload.Outcome)
	assert.Equal(t, 3, payload.Attempts)
	assert.Equal(t, "TIMEOUT", payload.FinalState)
}

func TestJSONLWriterClosed(t *testing.T) {
	var buf bytes.Buffer
	jw := newTestWriter(&buf)

	require.NoError(t, jw.Close())
	err := jw.WriteOutcome(&OutcomeRecord{Outcome: "SUCCEEDED"})
	assert.ErrorIs(t, err, ErrWriterClosed)
	assert.Zero(t, buf.Len())
}
