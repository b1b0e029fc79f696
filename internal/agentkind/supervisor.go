package agentkind

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/forgeman/controlplane/pkg/models"
)

// Result is the outcome of one supervised agent-kind invocation.
type Result struct {
	Success   bool
	Output    string
	Error     string
	Duration  time.Duration
	PID       int
	WorkDir   string
	ExitError error
}

// OnProgress is called with each progress snapshot derived from the
// subprocess's stdout, including an initial snapshot at spawn time.
type OnProgress func(models.Progress)

// Supervisor spawns and supervises one agent-kind subprocess invocation
// at a time per call to Run. Callers needing several concurrent
// invocations construct one Supervisor per call (the orchestrator package
// owns the one-subprocess-per-task invariant).
type Supervisor struct {
	// Timeout bounds how long a single invocation may run before being
	// killed and reported as a failure.
	Timeout time.Duration
	// GracefulKill is how long to wait after a cancellation before
	// force-killing the subprocess. The standard library's
	// exec.CommandContext already force-kills on ctx.Done(), so this
	// field only documents the grace period a caller should leave
	// between requesting a stop and giving up on a clean exit.
	GracefulKill time.Duration
}

// Run spawns opts.Executable with prompt on stdin, streams progress
// through onProgress, and blocks until the subprocess exits or the
// context is cancelled.
func (s *Supervisor) Run(ctx context.Context, prompt string, opts StartOptions, onProgress OnProgress) Result {
	start := time.Now()

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	proc := New(runCtx)
	if err := proc.Start(prompt, opts); err != nil {
		return Result{Success: false, Error: err.Error(), Duration: time.Since(start), WorkDir: opts.WorkDir}
	}

	if onProgress != nil {
		onProgress(models.Progress{Phase: "starting", Percent: 0})
	}

	var out bytes.Buffer
	for event := range proc.Output() {
		switch event.Type {
		case StreamEventError:
			out.WriteString("[error] " + event.Error + "\n")
		default:
			if event.Message != "" {
				out.WriteString(event.Message + "\n")
			}
		}
		if event.Progress != nil && onProgress != nil {
			onProgress(*event.Progress)
		}
	}

	waitErr := proc.Wait()

	result := Result{
		Output:   out.String(),
		Duration: time.Since(start),
		PID:      proc.PID(),
		WorkDir:  opts.WorkDir,
	}

	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		result.Success = false
		result.Error = fmt.Sprintf("agent invocation exceeded timeout of %s", timeout)
		result.ExitError = runCtx.Err()
	case waitErr != nil:
		result.Success = false
		result.Error = waitErr.Error()
		result.ExitError = waitErr
	default:
		result.Success = true
	}

	return result
}

// AutoCommit stages and commits every change in workDir, mirroring the
// teacher's auto-commit-on-success step. It is a no-op (returns nil) when
// there is nothing to commit.
func AutoCommit(ctx context.Context, workDir, message string) error {
	status, err := exec.CommandContext(ctx, "git", "-C", workDir, "status", "--porcelain").Output()
	if err != nil {
		return fmt.Errorf("git status: %w", err)
	}
	if len(bytes.TrimSpace(status)) == 0 {
		return nil
	}

	if out, err := exec.CommandContext(ctx, "git", "-C", workDir, "add", "-A").CombinedOutput(); err != nil {
		return fmt.Errorf("git add: %w: %s", err, out)
	}
	if out, err := exec.CommandContext(ctx, "git", "-C", workDir, "commit", "-m", message).CombinedOutput(); err != nil {
		return fmt.Errorf("git commit: %w: %s", err, out)
	}
	return nil
}
