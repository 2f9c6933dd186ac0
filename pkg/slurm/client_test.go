package slurm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner scripts command invocations for tests.
type fakeRunner struct {
	calls []fakeCall
}

type fakeCall struct {
	name   string
	args   []string
	stdout string
	stderr string
	err    error
}

func (f *fakeRunner) respond(name string, stdout, stderr string, err error) commandRunner {
	return func(_ context.Context, cmdName string, args ...string) (string, string, error) {
		f.calls = append(f.calls, fakeCall{name: cmdName, args: args})
		if cmdName != name {
			return "", "", fmt.Errorf("unexpected command %s", cmdName)
		}
		return stdout, stderr, err
	}
}

func newTestClient(run commandRunner) *Client {
	c := NewClient(ClientConfig{})
	c.run = run
	c.sleepFunc = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestClientSubmitParsesJobID(t *testing.T) {
	f := &fakeRunner{}
	c := newTestClient(f.respond("sbatch", "Submitted batch job 12345\n", "", nil))

	jobID, err := c.Submit(context.Background(), []string{"run.sbatch"}, SubmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, "12345", jobID)
	require.Len(t, f.calls, 1)
	assert.Equal(t, []string{"run.sbatch"}, f.calls[0].args)
}

func TestClientSubmitAppendMode(t *testing.T) {
	f := &fakeRunner{}
	c := newTestClient(f.respond("sbatch", "Submitted batch job 12346\n", "", nil))

	_, err := c.Submit(context.Background(), []string{"--time=01:00:00", "run.sbatch"}, SubmitOptions{
		AppendLogs:   true,
		InitialJobID: "12345",
	})
	require.NoError(t, err)

	require.Len(t, f.calls, 1)
	assert.Equal(t, []string{"--open-mode=append", "--time=01:00:00", "run.sbatch"}, f.calls[0].args)
	assert.Equal(t, "12345", os.Getenv(InitialJobIDEnv))
}

func TestClientSubmitCommandFailure(t *testing.T) {
	f := &fakeRunner{}
	c := newTestClient(f.respond("sbatch", "", "sbatch: error: invalid partition\n", errors.New("exit status 1")))

	_, err := c.Submit(context.Background(), []string{"run.sbatch"}, SubmitOptions{})
	require.Error(t, err)
	assert.True(t, IsSubmissionError(err))

	var se *SubmissionError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Stderr, "invalid partition")
}

func TestClientSubmitMalformedOutput(t *testing.T) {
	f := &fakeRunner{}
	c := newTestClient(f.respond("sbatch", "something unexpected\n", "", nil))

	_, err := c.Submit(context.Background(), []string{"run.sbatch"}, SubmitOptions{})
	require.Error(t, err)
	assert.True(t, IsSubmissionError(err))
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

func TestClientFetchMergesSources(t *testing.T) {
	c := newTestClient(func(_ context.Context, name string, args ...string) (string, string, error) {
		switch name {
		case "sacct":
			return "4242|train|TIMEOUT|0:0|None||02:00:00|02:00:00\n", "", nil
		case "scontrol":
			return "JobId=4242 JobState=RUNNING RunTime=01:50:00 TimeLimit=02:00:00", "", nil
		}
		return "", "", fmt.Errorf("unexpected command %s", name)
	})

	rec, err := c.Fetch(context.Background(), "4242")
	require.NoError(t, err)
	assert.Equal(t, "RUNNING", rec.RawState)
	assert.Equal(t, 10*time.Minute, rec.Remaining())
}

func TestClientFetchFallsBackWhenControlAgesOut(t *testing.T) {
	c := newTestClient(func(_ context.Context, name string, args ...string) (string, string, error) {
		switch name {
		case "sacct":
			return "4242|train|TIMEOUT|0:0|None||02:00:05|02:00:00\n", "", nil
		case "scontrol":
			return "", "slurm_load_jobs error: Invalid job id specified\n", errors.New("exit status 1")
		}
		return "", "", fmt.Errorf("unexpected command %s", name)
	})

	rec, err := c.Fetch(context.Background(), "4242")
	require.NoError(t, err)
	assert.Equal(t, ClassTimeout, rec.Classification())
}

func TestClientFetchQueryError(t *testing.T) {
	c := newTestClient(func(_ context.Context, name string, args ...string) (string, string, error) {
		return "", "slurmdbd down\n", errors.New("exit status 1")
	})

	_, err := c.Fetch(context.Background(), "4242")
	require.Error(t, err)
	assert.True(t, IsQueryError(err))
}

func TestClientFetchUnregisteredJob(t *testing.T) {
	// sacct answers with no rows and scontrol has nothing either: the job
	// is not registered yet, which is a retryable query failure.
	c := newTestClient(func(_ context.Context, name string, args ...string) (string, string, error) {
		if name == "sacct" {
			return "", "", nil
		}
		return "", "Invalid job id specified", errors.New("exit status 1")
	})

	_, err := c.Fetch(context.Background(), "4242")
	require.Error(t, err)
	assert.True(t, IsQueryError(err))
	assert.ErrorIs(t, err, ErrJobNotFound)
}
