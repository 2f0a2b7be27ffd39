// Package acceptor wires the corpus, the engine driver and the reporters into
// the wasm-acceptor service: a harness that sweeps a WebAssembly engine over
// the processed spec testsuite, once or periodically.
package acceptor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"

	"github.com/wasvm/wasm-acceptor/exitcodes"
	"github.com/wasvm/wasm-acceptor/history"
	"github.com/wasvm/wasm-acceptor/service"
)

// acceptor implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &acceptor{}

// acceptor runs sweeps and owns the side servers and the history store.
type acceptor struct {
	ctx     context.Context
	config  *Config
	version string
	runner  SweepRunner
	service *service.Service
	history history.Store
	result  atomic.Pointer[RunResult]

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*acceptor, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating acceptor with config",
		"corpus", config.CorpusRoot,
		"engine", config.Engine,
		"concurrency", config.Concurrency,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce,
		"proposals", config.Proposals.Names())

	var store history.Store
	if config.HistoryDSN != "" {
		var err error
		store, err = history.Open(ctx, config.HistoryDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
	}

	svc := service.New(service.Config{
		HealthzAddr: config.HealthzAddr,
		Metrics:     config.Metrics,
		Log:         config.Log,
	})

	sweeps, err := newSweepRunner(config, store, svc.Status)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}

	return &acceptor{
		ctx:              ctx,
		config:           config,
		version:          version,
		runner:           sweeps,
		service:          svc,
		history:          store,
		done:             make(chan struct{}),
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start runs a sweep immediately and, in continuous mode, periodically at the
// configured interval.
// Start implements the cliapp.Lifecycle interface.
func (a *acceptor) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			a.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	a.ctx = ctx
	a.done = make(chan struct{})
	a.running.Store(true)

	if a.service != nil {
		if err := a.service.Start(ctx); err != nil {
			return NewRuntimeError(fmt.Errorf("failed to start service: %w", err))
		}
	}

	if a.config.RunOnce {
		a.config.Log.Info("Starting wasm-acceptor in run-once mode", "version", a.version)
	} else {
		a.config.Log.Info("Starting wasm-acceptor in continuous mode", "version", a.version, "interval", a.config.RunInterval)
	}

	// Sweep immediately on startup
	if err := a.runSweep(ctx); err != nil {
		a.config.Log.Error("Runtime error running sweep", "error", err)
		return err
	}

	// If in run-once mode, trigger shutdown and return. Test outcomes never
	// change the exit status.
	if a.config.RunOnce {
		a.config.Log.Info("Sweep completed, exiting (run-once mode)")
		go func() {
			a.shutdownCallback(nil)
		}()
		return nil
	}

	// Start a goroutine for periodic sweeps
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.config.Log.Debug("Starting periodic sweep goroutine", "interval", a.config.RunInterval)

		for {
			select {
			case <-time.After(a.config.RunInterval):
				if !a.running.Load() {
					a.config.Log.Debug("Service stopped, exiting periodic sweeps")
					return
				}
				a.config.Log.Info("Running periodic sweep")
				if err := a.runSweep(ctx); err != nil {
					a.config.Log.Error("Error running periodic sweep", "error", err)
				}

			case <-a.done:
				a.config.Log.Debug("Done signal received, stopping periodic sweeps")
				return

			case <-ctx.Done():
				a.config.Log.Debug("Context canceled, stopping periodic sweeps")
				a.running.Store(false)
				return
			}
		}
	}()
	a.config.Log.Debug("wasm-acceptor started successfully")
	return nil
}

func (a *acceptor) runSweep(ctx context.Context) error {
	result, err := a.runner.RunSweep(ctx)
	if result != nil {
		a.result.Store(result)
		a.config.Log.Info("Sweep finished", "run_id", result.RunID,
			"groups", result.Tally.Groups, "regressions", len(result.Regressions))
	}
	if err != nil && !IsRuntimeError(err) {
		err = NewRuntimeError(err)
	}
	return err
}

// Stop stops the wasm-acceptor service.
// Stop implements the cliapp.Lifecycle interface.
func (a *acceptor) Stop(ctx context.Context) error {
	a.config.Log.Info("Stopping wasm-acceptor")

	if !a.running.Load() {
		a.config.Log.Debug("Service already stopped, nothing to do")
		return a.closeResources(ctx)
	}

	// Update running state first to prevent new sweeps
	a.running.Store(false)
	close(a.done)

	if err := a.WaitForShutdown(ctx); err != nil {
		a.config.Log.Warn("Periodic sweeps did not stop in time", "error", err)
	}

	err := a.closeResources(ctx)
	a.config.Log.Info("wasm-acceptor stopped successfully")
	return err
}

func (a *acceptor) closeResources(ctx context.Context) error {
	var errs []error
	if a.service != nil {
		errs = append(errs, a.service.Shutdown(ctx))
		a.service = nil
	}
	if a.history != nil {
		errs = append(errs, a.history.Close())
		a.history = nil
	}
	return errors.Join(errs...)
}

// Stopped returns true if the wasm-acceptor service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (a *acceptor) Stopped() bool {
	return !a.running.Load()
}

// WaitForShutdown waits for the periodic sweep goroutine to exit.
func (a *acceptor) WaitForShutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastResult returns the result of the most recent sweep.
func (a *acceptor) LastResult() *RunResult {
	return a.result.Load()
}
