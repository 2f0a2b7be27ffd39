package runner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

var _ ProcessRunner = (*OSProcessRunner)(nil)

// Invocation describes one external program run.
type Invocation struct {
	Path    string
	Args    []string
	Dir     string
	Env     []string // nil inherits the harness environment
	Timeout time.Duration
}

// ProcessResult is what a finished (or killed) process left behind.
type ProcessResult struct {
	ExitCode  int
	Stdout    []byte // tail of standard output
	Stderr    []byte // tail of standard error
	Truncated bool   // stdout exceeded the tail buffer
	TimedOut  bool
	Duration  time.Duration
}

// ProcessRunner runs a program and reports its exit code and captured
// output. An error is returned only when the program could not be started.
type ProcessRunner interface {
	Run(ctx context.Context, inv Invocation) (*ProcessResult, error)
}

// OSProcessRunner runs programs with os/exec.
type OSProcessRunner struct {
	// WaitDelay bounds how long a killed process may hold its output pipes.
	WaitDelay time.Duration
	// StdoutTailBytes bounds the retained standard output.
	StdoutTailBytes int
}

// NewOSProcessRunner returns an OSProcessRunner with default limits.
func NewOSProcessRunner() *OSProcessRunner {
	return &OSProcessRunner{
		WaitDelay:       DefaultWaitDelay,
		StdoutTailBytes: defaultStdoutTailBytes,
	}
}

func (r *OSProcessRunner) Run(ctx context.Context, inv Invocation) (*ProcessResult, error) {
	if inv.Path == "" {
		return nil, errors.New("no program to run")
	}

	runCtx := ctx
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, inv.Path, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = inv.Env
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		return killProcessGroup(cmd)
	}
	cmd.WaitDelay = r.WaitDelay

	stdout := newTailBuffer(r.StdoutTailBytes)
	stderr := newTailBuffer(defaultStderrTailBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", inv.Path, err)
	}
	runErr := cmd.Wait()

	res := &ProcessResult{
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		Truncated: stdout.Truncated(),
		Duration:  time.Since(start),
	}
	if runErr == nil {
		return res, nil
	}

	res.TimedOut = ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded)
	var exitErr *exec.ExitError
	switch {
	case errors.As(runErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case cmd.ProcessState != nil:
		// exec.ErrWaitDelay: the process exited but a child kept the pipes open.
		res.ExitCode = cmd.ProcessState.ExitCode()
	default:
		res.ExitCode = -1
	}
	if res.TimedOut && res.ExitCode == 0 {
		res.ExitCode = -1
	}
	return res, nil
}
