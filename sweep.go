package acceptor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/wasvm/wasm-acceptor/corpus"
	"github.com/wasvm/wasm-acceptor/history"
	"github.com/wasvm/wasm-acceptor/logging"
	"github.com/wasvm/wasm-acceptor/metrics"
	"github.com/wasvm/wasm-acceptor/reporting"
	"github.com/wasvm/wasm-acceptor/runner"
	"github.com/wasvm/wasm-acceptor/service"
	"github.com/wasvm/wasm-acceptor/types"
)

// RunResult is the outcome of one sweep over the corpus.
type RunResult struct {
	RunID       string
	Digest      string
	StartedAt   time.Time
	Duration    time.Duration
	Tally       *reporting.Tally
	Regressions []types.Regression
}

// SweepRunner performs one complete sweep: discovery, execution, reporting
// and bookkeeping.
type SweepRunner interface {
	RunSweep(ctx context.Context) (*RunResult, error)
}

var _ SweepRunner = (*sweepRunner)(nil)

type sweepRunner struct {
	config  *Config
	sweeper *runner.Sweeper
	history history.Store // nil when history is disabled
	status  *service.StatusTracker
	out     io.Writer
	log     log.Logger
}

func newSweepRunner(cfg *Config, store history.Store, status *service.StatusTracker) (*sweepRunner, error) {
	executor, err := runner.NewExecutor(runner.ExecutorConfig{
		Engine:     cfg.Engine,
		EngineArgs: cfg.EngineArgs,
		GroupFlag:  cfg.GroupFlag,
		WorkDir:    cfg.WorkDir,
		Timeout:    cfg.GroupTimeout,
		Proposals:  cfg.Proposals,
		Runner:     cfg.Runner,
		Log:        cfg.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create executor: %w", err)
	}
	sweeper, err := runner.NewSweeper(executor, cfg.Concurrency, cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create sweeper: %w", err)
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	if status == nil {
		status = service.NewStatusTracker()
	}
	return &sweepRunner{
		config:  cfg,
		sweeper: sweeper,
		history: store,
		status:  status,
		out:     out,
		log:     cfg.Log.New("component", "sweep"),
	}, nil
}

// RunSweep runs every selected group once. Group failures are part of the
// result; the returned error is a RuntimeError for anything that prevented a
// complete sweep.
func (s *sweepRunner) RunSweep(ctx context.Context) (*RunResult, error) {
	cfg := s.config

	groups, err := corpus.Discover(cfg.CorpusRoot)
	if err != nil {
		return nil, NewRuntimeError(fmt.Errorf("failed to discover corpus: %w", err))
	}
	groups, err = corpus.Filter(groups, cfg.Filters)
	if err != nil {
		return nil, NewRuntimeError(err)
	}
	digest, err := corpus.Digest(cfg.CorpusRoot)
	if err != nil {
		return nil, NewRuntimeError(fmt.Errorf("failed to digest corpus: %w", err))
	}

	res := &RunResult{
		RunID:     uuid.New().String(),
		Digest:    digest,
		StartedAt: time.Now(),
		Tally:     &reporting.Tally{},
	}
	s.status.Begin(res.RunID, digest)
	s.log.Info("New run", "run_id", res.RunID, "groups", len(corpus.Runnable(groups)), "digest", digest)

	fileLogger, err := logging.NewFileLogger(cfg.LogDir, res.RunID)
	if err != nil {
		err = NewRuntimeError(fmt.Errorf("failed to create file logger: %w", err))
		s.status.Finish(nil, err)
		return nil, err
	}

	// The summary file receives the same report as the console.
	var summary bytes.Buffer
	renderer, err := reporting.NewRenderer(cfg.Format, io.MultiWriter(s.out, &summary), cfg.Color)
	if err != nil {
		err = NewRuntimeError(err)
		s.status.Finish(nil, err)
		return nil, err
	}

	var outcomes []history.GroupOutcome
	var renderErr error
	sweepErr := s.sweeper.Sweep(ctx, groups, func(r *types.GroupResult) {
		res.Tally.Add(r)
		metrics.RecordGroup(r)
		outcomes = append(outcomes, history.NewGroupOutcome(r))
		if r.Status != types.GroupStatusCrashed && !r.Report.Consistent() {
			s.log.Warn("Inconsistent engine report", "group", r.Group.Name, "report", r.Report)
		}
		if err := renderer.Group(r); err != nil && renderErr == nil {
			renderErr = err
		}
		if err := fileLogger.LogGroupResult(r, res.RunID); err != nil {
			s.log.Error("Failed to log group result", "group", r.Group.Name, "error", err)
			metrics.RecordErrorDetails("log group", err)
		}
	})
	res.Duration = time.Since(res.StartedAt)

	// An interrupted sweep is reported but never recorded as history.
	if sweepErr == nil && s.history != nil {
		s.recordHistory(ctx, res, outcomes)
	}

	if err := renderer.Finish(res.Tally, res.Regressions); err != nil && renderErr == nil {
		renderErr = err
	}
	metrics.RecordRun(res.Tally.Counters, res.Duration)

	if err := fileLogger.LogSummary(summary.String(), res.RunID); err != nil {
		s.log.Error("Failed to write summary", "error", err)
	}
	if err := fileLogger.Complete(res.RunID); err != nil {
		s.log.Error("Failed to complete run logs", "error", err)
	}

	var runErr error
	switch {
	case sweepErr != nil:
		runErr = NewRuntimeError(fmt.Errorf("sweep interrupted after %d groups: %w", res.Tally.Groups, sweepErr))
	case renderErr != nil:
		runErr = NewRuntimeError(fmt.Errorf("failed to write report: %w", renderErr))
	}
	counters := res.Tally.Counters
	s.status.Finish(&counters, runErr)

	s.log.Info("Sweep completed", "run_id", res.RunID, "duration", res.Duration,
		"groups", res.Tally.Groups, "counters", counters.String(), "logs", fileLogger.GetBaseDir())
	return res, runErr
}

// recordHistory compares the run with the last one over the same corpus and
// stores it. History failures are logged, never fatal.
func (s *sweepRunner) recordHistory(ctx context.Context, res *RunResult, outcomes []history.GroupOutcome) {
	last, regressions, err := history.CompareWithLast(ctx, s.history, res.Digest, outcomes)
	if err != nil {
		s.log.Error("Failed to compare with previous run", "error", err)
		metrics.RecordErrorDetails("history compare", err)
	}
	res.Regressions = regressions
	for _, r := range regressions {
		s.log.Warn("Regression", "group", r.Group, "previous", r.Previous, "current", r.Current, "since", last.ID)
	}

	err = s.history.RecordRun(ctx, history.Run{
		ID:        res.RunID,
		StartedAt: res.StartedAt,
		Duration:  res.Duration,
		Digest:    res.Digest,
		Engine:    s.config.Engine,
		Groups:    res.Tally.Groups,
		Counters:  res.Tally.Counters,
	}, outcomes)
	if err != nil {
		s.log.Error("Failed to record run", "run_id", res.RunID, "error", err)
		metrics.RecordErrorDetails("history record", err)
	}
}
