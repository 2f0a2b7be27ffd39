package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"

	acceptor "github.com/wasvm/wasm-acceptor"
	"github.com/wasvm/wasm-acceptor/exitcodes"
	"github.com/wasvm/wasm-acceptor/flags"
	"github.com/wasvm/wasm-acceptor/refengine"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "wasm-acceptor"
	app.Usage = "WebAssembly engine conformance harness"
	app.Description = "wasm-acceptor runs a WebAssembly engine over the processed spec testsuite and reports every group that does not pass"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(run)
	app.Commands = []*cli.Command{
		{
			Name:   "run",
			Usage:  "Sweep the engine over the processed corpus (default)",
			Flags:  cliapp.ProtectFlags(flags.Flags),
			Action: cliapp.LifecycleCmd(run),
		},
		{
			Name:   "convert",
			Usage:  "Rebuild the processed corpus from the upstream testsuite",
			Flags:  cliapp.ProtectFlags(flags.ConvertFlags),
			Action: convert,
		},
		{
			Name:   "inspect",
			Usage:  "Validate the processed corpus and print its inventory",
			Flags:  cliapp.ProtectFlags(flags.InspectFlags),
			Action: inspect,
		},
		{
			Name:   "engine",
			Usage:  "Run one test group with the bundled wazero reference engine",
			Flags:  cliapp.ProtectFlags(flags.EngineFlags),
			Action: engine,
		},
		{
			Name:   "history",
			Usage:  "List recorded runs",
			Flags:  cliapp.ProtectFlags(flags.HistoryFlags),
			Action: listHistory,
		},
	}
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			// Test outcomes never reach here; every error is operational.
			cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
		}
	}

	// Start telemetry
	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	// Start CLI
	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

// setupLogger sends logs to stderr so that stdout carries only the report.
func setupLogger(ctx *cli.Context) log.Logger {
	logCfg := oplog.ReadCLIConfig(ctx)
	logger := oplog.NewLogger(os.Stderr, logCfg)
	oplog.SetGlobalLogHandler(logger.Handler())
	oplog.SetupDefaults()
	return logger
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logger := setupLogger(ctx)

	cfg, err := acceptor.NewConfig(ctx, logger)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return nil, acceptor.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	cfg.Log.Debug("Config", "config", cfg)

	svc, err := acceptor.New(ctx.Context, cfg, Version, closeApp)
	if err != nil {
		return nil, acceptor.NewRuntimeError(fmt.Errorf("failed to create acceptor: %w", err))
	}

	return svc, nil
}

func convert(ctx *cli.Context) error {
	logger := setupLogger(ctx)

	cfg, err := acceptor.NewConvertConfig(ctx, logger)
	if err != nil {
		return acceptor.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}
	_, err = acceptor.Convert(ctx.Context, cfg, ctx.App.Writer, !ctx.Bool(flags.NoColor.Name))
	return err
}

func inspect(ctx *cli.Context) error {
	logger := setupLogger(ctx)
	_, err := acceptor.Inspect(ctx.String(flags.CorpusRoot.Name), ctx.StringSlice(flags.Filter.Name), ctx.App.Writer, logger)
	return err
}

func listHistory(ctx *cli.Context) error {
	setupLogger(ctx)
	if err := flags.CheckSet(ctx, flags.HistoryDSN); err != nil {
		return acceptor.NewRuntimeError(err)
	}
	return acceptor.ListHistory(ctx.Context, ctx.String(flags.HistoryDSN.Name), ctx.Int(flags.Limit.Name), ctx.App.Writer)
}

// engine implements the engine contract: one line per assertion, then the
// JSON report as the last line, exit 0 once the group was replayed.
func engine(ctx *cli.Context) error {
	logger := setupLogger(ctx)
	if err := flags.CheckSet(ctx, flags.Group); err != nil {
		return acceptor.NewRuntimeError(err)
	}

	root, err := filepath.Abs(ctx.String(flags.CorpusRoot.Name))
	if err != nil {
		return acceptor.NewRuntimeError(err)
	}
	report, err := refengine.Run(ctx.Context, refengine.Config{
		CorpusRoot:       root,
		SpectestPath:     ctx.String(flags.Spectest.Name),
		Group:            ctx.String(flags.Group.Name),
		Threads:          ctx.Bool(flags.Threads.Name),
		MemoryLimitPages: uint32(ctx.Uint(flags.MemoryLimitPages.Name)),
		Out:              ctx.App.Writer,
		Log:              logger,
	})
	if err != nil {
		return acceptor.NewRuntimeError(err)
	}
	return refengine.WriteReport(ctx.App.Writer, report)
}
