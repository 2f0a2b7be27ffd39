package acceptor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/urfave/cli/v2"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
	"github.com/ethereum/go-ethereum/log"

	"github.com/wasvm/wasm-acceptor/converter"
	"github.com/wasvm/wasm-acceptor/flags"
	"github.com/wasvm/wasm-acceptor/proposals"
	"github.com/wasvm/wasm-acceptor/reporting"
	"github.com/wasvm/wasm-acceptor/runner"
)

// Config holds the application configuration
type Config struct {
	CorpusRoot   string
	Engine       string
	EngineArgs   []string // harness file engine_args followed by --engine-arg
	GroupFlag    string
	WorkDir      string
	GroupTimeout time.Duration // 0 disables the per-group timeout
	Concurrency  int
	Format       string
	Color        bool
	Filters      []string
	Proposals    proposals.Set
	HistoryDSN   string
	RunInterval  time.Duration // Interval between sweeps
	RunOnce      bool          // Indicates if the service should exit after one sweep
	LogDir       string        // Directory to store per-run logs
	HealthzAddr  string
	Metrics      opmetrics.CLIConfig
	Out          io.Writer            // report destination, stdout when nil
	Runner       runner.ProcessRunner // nil runs real processes
	Log          log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	harness, err := loadHarnessFile(ctx.String(flags.HarnessConfig.Name))
	if err != nil {
		return nil, err
	}
	set, err := proposals.Defaults().Merge(harness.Proposals).Enable(ctx.StringSlice(flags.Proposals.Name)...)
	if err != nil {
		return nil, err
	}

	engine, err := resolveEngine(ctx.String(flags.Engine.Name))
	if err != nil {
		return nil, err
	}

	absCorpus, err := filepath.Abs(ctx.String(flags.CorpusRoot.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for corpus '%s': %w", ctx.String(flags.CorpusRoot.Name), err)
	}

	workDir := ctx.String(flags.WorkDir.Name)
	if workDir == "" {
		workDir = "."
	}
	workDir, err = filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for engine workdir: %w", err)
	}

	// Get log directory, default to "logs" if not specified
	logDir := ctx.String(flags.LogDir.Name)
	if logDir == "" {
		logDir = "logs"
	}
	logDir, err = filepath.Abs(logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", logDir, err)
	}

	format := ctx.String(flags.Format.Name)
	if !slices.Contains(reporting.Formats, format) {
		return nil, fmt.Errorf("invalid format %q. Must be one of: %v", format, reporting.Formats)
	}

	timeout := ctx.Duration(flags.GroupTimeout.Name)
	if timeout < 0 {
		return nil, fmt.Errorf("group timeout cannot be negative: %s", timeout)
	}
	concurrency := ctx.Int(flags.Concurrency.Name)
	if concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", concurrency)
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	runOnce := runInterval == 0

	return &Config{
		CorpusRoot:   absCorpus,
		Engine:       engine,
		EngineArgs:   append(slices.Clone(harness.EngineArgs), ctx.StringSlice(flags.EngineArgs.Name)...),
		GroupFlag:    ctx.String(flags.GroupFlag.Name),
		WorkDir:      workDir,
		GroupTimeout: timeout,
		Concurrency:  concurrency,
		Format:       format,
		Color:        !ctx.Bool(flags.NoColor.Name),
		Filters:      ctx.StringSlice(flags.Filter.Name),
		Proposals:    set,
		HistoryDSN:   ctx.String(flags.HistoryDSN.Name),
		RunInterval:  runInterval,
		RunOnce:      runOnce,
		LogDir:       logDir,
		HealthzAddr:  ctx.String(flags.HealthzAddr.Name),
		Metrics:      opmetrics.ReadCLIConfig(ctx),
		Out:          ctx.App.Writer,
		Log:          log,
	}, nil
}

// NewConvertConfig creates the converter configuration from cli context.
func NewConvertConfig(ctx *cli.Context, log log.Logger) (*converter.Config, error) {
	if err := flags.CheckSet(ctx, flags.Source); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	harness, err := loadHarnessFile(ctx.String(flags.HarnessConfig.Name))
	if err != nil {
		return nil, err
	}
	set, err := proposals.Defaults().Merge(harness.Proposals).Enable(ctx.StringSlice(flags.Proposals.Name)...)
	if err != nil {
		return nil, err
	}

	// --converter wins over --wast2json, which wins over the harness file.
	var command converter.Template
	switch {
	case ctx.IsSet(flags.ConverterCommand.Name):
		command = ctx.StringSlice(flags.ConverterCommand.Name)
	case ctx.Bool(flags.Wast2JSON.Name):
		command = converter.Wast2JSONCommand
	case len(harness.Converter) > 0:
		command = harness.Converter
	default:
		command = converter.DefaultCommand
	}

	excluded := slices.Clone(harness.ExcludedPrefixes)
	if !ctx.Bool(flags.EnableSIMD.Name) && !slices.Contains(excluded, proposals.SIMDPrefix) {
		excluded = append(excluded, proposals.SIMDPrefix)
	}

	spectest := ctx.String(flags.Spectest.Name)
	if spectest != "" {
		if spectest, err = filepath.Abs(spectest); err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for spectest module: %w", err)
		}
	}

	return &converter.Config{
		SourceDir:        ctx.String(flags.Source.Name),
		OutputDir:        ctx.String(flags.CorpusRoot.Name),
		Command:          command,
		Proposals:        set,
		ExcludedPrefixes: excluded,
		SpectestModule:   spectest,
		Timeout:          ctx.Duration(flags.ConverterTimeout.Name),
		Concurrency:      ctx.Int(flags.Concurrency.Name),
		Log:              log,
	}, nil
}

func loadHarnessFile(path string) (*proposals.File, error) {
	if path == "" {
		return &proposals.File{}, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for harness file '%s': %w", path, err)
	}
	return proposals.LoadFile(abs)
}

// resolveEngine makes a path-like engine absolute, since the engine runs from
// its own working directory. Bare names are left to PATH lookup.
func resolveEngine(engine string) (string, error) {
	if engine == "" {
		return "", errors.New("engine is required")
	}
	if filepath.Base(engine) == engine {
		return engine, nil
	}
	abs, err := filepath.Abs(engine)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for engine '%s': %w", engine, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("engine not found: %w", err)
	}
	return abs, nil
}
