package runregistry

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Executor spawns and manages detached supervisor processes.
//
// Detach design: spawn a child process that re-runs `slurmlongrun
// submit` in managed mode, with stdout/stderr captured to per-run log
// files. The child does not inherit the terminal, so monitoring
// survives logout; the parent returns as soon as the child starts.
type Executor struct {
	store *Store
}

func NewExecutor(root string) *Executor {
	return &Executor{store: NewStore(root)}
}

func (e *Executor) Store() *Store {
	return e.store
}

func (e *Executor) StdoutPath(runID string) string {
	return filepath.Join(e.store.RunDir(runID), "stdout.log")
}

func (e *Executor) StderrPath(runID string) string {
	return filepath.Join(e.store.RunDir(runID), "stderr.log")
}

// NewRunID allocates a fresh run identity.
func NewRunID() string {
	return uuid.New().String()
}

// StartDetached spawns a managed child process running:
//
//	slurmlongrun submit --_managed-run-id <run_id> [flags] -- <sbatch args…>
//
// It returns after the child successfully starts.
func (e *Executor) StartDetached(name string, maxRestarts int, sbatchArgs []string) (*RunRecord, error) {
	if e == nil || e.store == nil {
		return nil, fmt.Errorf("executor is not initialized")
	}
	if len(sbatchArgs) == 0 {
		return nil, fmt.Errorf("sbatch arguments are required")
	}

	runID := NewRunID()
	runDir := e.store.RunDir(runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}

	stdoutFile, err := os.Create(e.StdoutPath(runID))
	if err != nil {
		return nil, fmt.Errorf("create stdout log: %w", err)
	}
	stderrFile, err := os.Create(e.StderrPath(runID))
	if err != nil {
		_ = stdoutFile.Close()
		return nil, fmt.Errorf("create stderr log: %w", err)
	}

	exe, err := os.Executable()
	if err != nil {
		_ = stdoutFile.Close()
		_ = stderrFile.Close()
		return nil, fmt.Errorf("resolve executable: %w", err)
	}

	args := []string{"submit", "--_managed-run-id", runID, "--max-restarts", fmt.Sprintf("%d", maxRestarts)}
	if strings.TrimSpace(name) != "" {
		args = append(args, "--name", strings.TrimSpace(name))
	}
	args = append(args, "--")
	args = append(args, sbatchArgs...)

	cmd := exec.Command(exe, args...)
	cmd.Stdout = stdoutFile
	cmd.Stderr = stderrFile
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		_ = stdoutFile.Close()
		_ = stderrFile.Close()
		return nil, fmt.Errorf("start managed run: %w", err)
	}

	now := time.Now().UTC()
	rec := &RunRecord{
		RunID:       runID,
		Name:        strings.TrimSpace(name),
		State:       RunStateRunning,
		SbatchArgs:  sbatchArgs,
		MaxRestarts: maxRestarts,
		PID:         cmd.Process.Pid,
		CreatedAt:   now,
		StartedAt:   &now,
		EventsPath:  e.store.EventsPath(runID),
		StdoutPath:  e.StdoutPath(runID),
		StderrPath:  e.StderrPath(runID),
	}
	if err := e.store.Write(rec); err != nil {
		return nil, err
	}

	_ = stdoutFile.Close()
	_ = stderrFile.Close()

	return rec, nil
}
