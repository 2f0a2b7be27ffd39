package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	opflags "github.com/ethereum-optimism/optimism/op-service/flags"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "WASM_ACCEPTOR"

// DefaultCorpusRoot is where convert writes and run reads by default.
const DefaultCorpusRoot = "testsuite-processed"

// Shared
var (
	CorpusRoot = &cli.StringFlag{
		Name:    "corpus",
		Value:   DefaultCorpusRoot,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CORPUS"),
		Usage:   "Root of the processed test corpus",
	}
	HarnessConfig = &cli.StringFlag{
		Name:    "config",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONFIG"),
		Usage:   "Optional harness file describing proposals, excluded prefixes and templates (.yaml, .yml or .toml)",
	}
	Proposals = &cli.StringSliceFlag{
		Name:    "proposals",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROPOSALS"),
		Usage:   "Proposals to enable (eg. 'threads,multi-memory')",
	}
	Concurrency = &cli.IntFlag{
		Name:    "concurrency",
		Value:   1,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONCURRENCY"),
		Usage:   "Number of groups or scripts processed at once. 1 is strictly sequential.",
	}
	NoColor = &cli.BoolFlag{
		Name:    "no-color",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "NO_COLOR"),
		Usage:   "Disable coloured report output",
	}
	HistoryDSN = &cli.StringFlag{
		Name:    "history-dsn",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HISTORY_DSN"),
		Usage:   "Run history database (sqlite://path or postgres://...). Empty disables history.",
	}
)

// Run
var (
	Engine = &cli.StringFlag{
		Name:    "engine",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ENGINE"),
		Usage:   "Path to the engine binary under test",
	}
	EngineArgs = &cli.StringSliceFlag{
		Name:    "engine-arg",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ENGINE_ARG"),
		Usage:   "Extra argument passed to the engine before the group flag (repeatable)",
	}
	GroupFlag = &cli.StringFlag{
		Name:    "engine-flag",
		Value:   "-t",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ENGINE_FLAG"),
		Usage:   "Engine flag that precedes the group name",
	}
	WorkDir = &cli.StringFlag{
		Name:    "workdir",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "WORKDIR"),
		Usage:   "Working directory of the engine. Defaults to the current directory.",
	}
	GroupTimeout = &cli.DurationFlag{
		Name:    "group-timeout",
		Value:   DefaultGroupTimeout,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "GROUP_TIMEOUT"),
		Usage:   "Timeout for one engine invocation. 0 disables it.",
	}
	Format = &cli.StringFlag{
		Name:    "format",
		Value:   "text",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "FORMAT"),
		Usage:   "Report format: text, table or json",
	}
	Filter = &cli.StringSliceFlag{
		Name:    "filter",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "FILTER"),
		Usage:   "Only run groups matching this pattern (repeatable, eg. 'i32', 'proposals/threads/*')",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_INTERVAL"),
		Usage:   "Interval between sweeps (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	HealthzAddr = &cli.StringFlag{
		Name:    "healthz.addr",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_ADDR"),
		Usage:   "Listen address of the healthz/status server (eg. '0.0.0.0:8080'). Empty disables it.",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LOGDIR"),
		Usage:   "Directory to store per-run logs",
	}
)

// Convert
var (
	Source = &cli.StringFlag{
		Name:    "source",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SOURCE"),
		Usage:   "Upstream testsuite checkout containing the .wast scripts",
	}
	ConverterCommand = &cli.StringSliceFlag{
		Name:    "converter",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONVERTER"),
		Usage:   "Converter argv template with {script}, {output}, {dir}, {name} and {flags} placeholders",
	}
	Wast2JSON = &cli.BoolFlag{
		Name:    "wast2json",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "WAST2JSON"),
		Usage:   "Use wabt's wast2json instead of wasm-tools json-from-wast",
	}
	EnableSIMD = &cli.BoolFlag{
		Name:    "enable-simd",
		Value:   true,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ENABLE_SIMD"),
		Usage:   "Convert the simd_* scripts of the core testsuite",
	}
	ConverterTimeout = &cli.DurationFlag{
		Name:    "converter-timeout",
		Value:   DefaultConverterTimeout,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONVERTER_TIMEOUT"),
		Usage:   "Timeout for one converter invocation",
	}
	Spectest = &cli.StringFlag{
		Name:    "spectest",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SPECTEST"),
		Usage:   "spectest.wasm host module. convert copies it into the corpus; engine defaults to <corpus>/spectest.wasm.",
	}
)

// Engine
var (
	Group = &cli.StringFlag{
		Name:    "group",
		Aliases: []string{"t"},
		Usage:   "Test group to run, relative to the corpus root",
	}
	Threads = &cli.BoolFlag{
		Name:  "threads",
		Usage: "Enable the threads proposal. Always on for proposals/threads groups.",
	}
	MemoryLimitPages = &cli.UintFlag{
		Name:    "memory-limit-pages",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "MEMORY_LIMIT_PAGES"),
		Usage:   "Upper bound on linear memory pages per module. 0 keeps the runtime default.",
	}
)

// History
var (
	Limit = &cli.IntFlag{
		Name:  "limit",
		Value: 20,
		Usage: "Number of runs to list. 0 lists all of them.",
	}
)

var requiredFlags = []cli.Flag{
	Engine,
}

var optionalFlags = []cli.Flag{
	CorpusRoot,
	EngineArgs,
	GroupFlag,
	WorkDir,
	GroupTimeout,
	Concurrency,
	Format,
	NoColor,
	Filter,
	Proposals,
	HarnessConfig,
	HistoryDSN,
	RunInterval,
	HealthzAddr,
	LogDir,
}

// Flags are the flags of the default run action.
var Flags []cli.Flag

// LogFlags are the logging flags shared by every subcommand.
var LogFlags []cli.Flag

var (
	ConvertFlags = []cli.Flag{
		Source,
		CorpusRoot,
		HarnessConfig,
		Proposals,
		ConverterCommand,
		Wast2JSON,
		EnableSIMD,
		ConverterTimeout,
		Spectest,
		Concurrency,
		NoColor,
	}
	InspectFlags = []cli.Flag{
		CorpusRoot,
		Filter,
	}
	EngineFlags = []cli.Flag{
		Group,
		CorpusRoot,
		Spectest,
		Threads,
		MemoryLimitPages,
	}
	HistoryFlags = []cli.Flag{
		HistoryDSN,
		Limit,
	}
)

func init() {
	LogFlags = oplog.CLIFlags(EnvVarPrefix)
	optionalFlags = append(optionalFlags, LogFlags...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
	ConvertFlags = append(ConvertFlags, LogFlags...)
	InspectFlags = append(InspectFlags, LogFlags...)
	EngineFlags = append(EngineFlags, LogFlags...)
	HistoryFlags = append(HistoryFlags, LogFlags...)
}

// CheckRequired verifies the run flags that have no usable default.
func CheckRequired(ctx *cli.Context) error {
	return CheckSet(ctx, requiredFlags...)
}

// CheckSet verifies every given flag was set.
func CheckSet(ctx *cli.Context, required ...cli.Flag) error {
	for _, f := range required {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return opflags.CheckRequiredXor(ctx)
}
