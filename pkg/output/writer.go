package output

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"
)

// ErrWriterClosed is returned when writing to a closed writer.
var ErrWriterClosed = errors.New("writer is closed")

// Writer emits JSONL records for run lifecycle events.
//
// Implementations must be safe for concurrent use. Each Write* method
// emits a complete record as a single line of JSON followed by a
// newline.
type Writer interface {
	// WriteSubmitted emits an initial submission record.
	WriteSubmitted(rec *SubmittedRecord) error

	// WriteFinalState emits a final-state record.
	WriteFinalState(rec *FinalStateRecord) error

	// WriteResubmitted emits a continuation submission record.
	WriteResubmitted(rec *ResubmittedRecord) error

	// WriteOutcome emits the terminal outcome record.
	WriteOutcome(rec *OutcomeRecord) error

	// Close flushes any buffered output and releases resources.
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// JSONLWriter is safe for concurrent use. Writes are serialized using a
// mutex to ensure atomic line writes (no interleaved output).
type JSONLWriter struct {
	w     io.Writer
	runID string
	mu    sync.Mutex

	// now is swapped out by tests for deterministic timestamps.
	now func() time.Time

	closed bool
}

// NewJSONLWriter creates a new JSONL writer.
//
// Parameters:
//   - w: The underlying writer (stdout, file, etc.)
//   - runID: Correlation ID for this supervised run
func NewJSONLWriter(w io.Writer, runID string) *JSONLWriter {
	return &JSONLWriter{
		w:     w,
		runID: runID,
		now:   time.Now,
	}
}

// WriteSubmitted emits an initial submission record.
func (jw *JSONLWriter) WriteSubmitted(rec *SubmittedRecord) error {
	return jw.writeRecord(TypeSubmitted, rec)
}

// WriteFinalState emits a final-state record.
func (jw *JSONLWriter) WriteFinalState(rec *FinalStateRecord) error {
	return jw.writeRecord(TypeFinalState, rec)
}

// WriteResubmitted emits a continuation submission record.
func (jw *JSONLWriter) WriteResubmitted(rec *ResubmittedRecord) error {
	return jw.writeRecord(TypeResubmitted, rec)
}

// WriteOutcome emits the terminal outcome record.
func (jw *JSONLWriter) WriteOutcome(rec *OutcomeRecord) error {
	return jw.writeRecord(TypeOutcome, rec)
}

// Close marks the writer closed. The underlying io.Writer is not closed;
// the caller owns it.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	jw.closed = true
	return nil
}

func (jw *JSONLWriter) writeRecord(recordType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	rec := Record{
		Type:  recordType,
		TS:    jw.now().UTC(),
		RunID: jw.runID,
		Data:  payload,
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	jw.mu.Lock()
	defer jw.mu.Unlock()
	if jw.closed {
		return ErrWriterClosed
	}
	_, err = jw.w.Write(line)
	return err
}
