package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum/go-ethereum/log"

	"github.com/wasvm/wasm-acceptor/proposals"
	"github.com/wasvm/wasm-acceptor/types"
)

var _ GroupExecutor = (*Executor)(nil)

// GroupExecutor runs one test group and returns its classified outcome. It
// never returns an error: every failure mode is a GroupStatus.
type GroupExecutor interface {
	Execute(ctx context.Context, group types.TestGroup) *types.GroupResult
}

// ExecutorConfig holds configuration for creating an Executor
type ExecutorConfig struct {
	Engine     string   // engine binary
	EngineArgs []string // extra arguments placed before the group flag
	GroupFlag  string   // defaults to DefaultGroupFlag
	WorkDir    string   // engine working directory
	Timeout    time.Duration
	Env        []string // appended to the harness environment
	Proposals  proposals.Set
	Runner     ProcessRunner
	Log        log.Logger
}

// Executor runs the engine once per group, each time as a fresh process.
type Executor struct {
	engine     string
	engineArgs []string
	groupFlag  string
	workDir    string
	timeout    time.Duration
	env        []string
	proposals  proposals.Set
	runner     ProcessRunner
	log        log.Logger
}

// NewExecutor creates a new group executor
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Engine == "" {
		return nil, errors.New("engine is required")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout cannot be negative: %s", cfg.Timeout)
	}
	if cfg.GroupFlag == "" {
		cfg.GroupFlag = DefaultGroupFlag
	}
	if cfg.Runner == nil {
		cfg.Runner = NewOSProcessRunner()
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	return &Executor{
		engine:     cfg.Engine,
		engineArgs: cfg.EngineArgs,
		groupFlag:  cfg.GroupFlag,
		workDir:    cfg.WorkDir,
		timeout:    cfg.Timeout,
		env:        cfg.Env,
		proposals:  cfg.Proposals,
		runner:     cfg.Runner,
		log:        cfg.Log.New("component", "executor"),
	}, nil
}

// Args builds the engine arguments for a group:
// [proposal engine flags] [engine args] <group flag> <group name>.
func (e *Executor) Args(group types.TestGroup) []string {
	var args []string
	args = append(args, e.proposals.EngineArgs(group.Proposal)...)
	args = append(args, e.engineArgs...)
	return append(args, e.groupFlag, group.Name)
}

// Execute runs the engine for a single group. No retries.
func (e *Executor) Execute(ctx context.Context, group types.TestGroup) *types.GroupResult {
	inv := Invocation{
		Path:    e.engine,
		Args:    e.Args(group),
		Dir:     e.workDir,
		Env:     telemetry.InstrumentEnvironment(ctx, append(os.Environ(), e.env...)),
		Timeout: e.timeout,
	}
	e.log.Debug("Running group", "group", group.Name, "args", inv.Args)

	proc, err := e.runner.Run(ctx, inv)
	result := ClassifyProcess(group, proc, err)
	if ctx.Err() != nil && result.Status == types.GroupStatusCrashed && !result.TimedOut {
		result.Reason = types.CrashReasonCancelled
	}

	e.log.Debug("Group finished", "group", group.Name, "status", result.Status,
		"reason", result.Reason, "exitCode", result.ExitCode, "duration", result.Duration)
	return result
}

// ClassifyProcess maps a finished engine process to a group outcome:
// start failure, timeout or non-zero exit are crashes; on a zero exit the
// last stdout line must be a well-formed report, otherwise the group crashed
// with a malformed result.
func ClassifyProcess(group types.TestGroup, proc *ProcessResult, startErr error) *types.GroupResult {
	result := &types.GroupResult{Group: group}

	if startErr != nil || proc == nil {
		if startErr == nil {
			startErr = errors.New("no process result")
		}
		result.Status = types.GroupStatusCrashed
		result.Reason = types.CrashReasonStart
		result.ExitCode = -1
		result.Error = startErr
		return result
	}

	result.ExitCode = proc.ExitCode
	result.Duration = proc.Duration
	result.TimedOut = proc.TimedOut

	switch {
	case proc.TimedOut:
		result.Status = types.GroupStatusCrashed
		result.Reason = types.CrashReasonTimeout
		result.Error = fmt.Errorf("engine timed out after %s", proc.Duration.Round(time.Millisecond))
	case proc.ExitCode != 0:
		result.Status = types.GroupStatusCrashed
		result.Reason = types.CrashReasonExit
		result.Error = fmt.Errorf("engine exited with code %d", proc.ExitCode)
	default:
		report, err := types.ParseEngineReport(proc.Stdout)
		if err != nil {
			result.Status = types.GroupStatusCrashed
			result.Reason = types.CrashReasonMalformed
			result.Error = err
			break
		}
		result.Report = report
		result.Status = types.ClassifyReport(report)
	}

	if result.Status != types.GroupStatusPassed {
		result.Stdout = string(proc.Stdout)
		result.Stderr = string(proc.Stderr)
	}
	return result
}
