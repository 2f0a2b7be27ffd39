package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/wasvm/wasm-acceptor/corpus"
	"github.com/wasvm/wasm-acceptor/metrics"
	"github.com/wasvm/wasm-acceptor/proposals"
	"github.com/wasvm/wasm-acceptor/runner"
	"github.com/wasvm/wasm-acceptor/types"
)

const (
	ScriptExt = ".wast"

	// SpectestModule is the host module most scripts import from.
	SpectestModule = corpus.SpectestModule

	DefaultTimeout = 2 * time.Minute
)

// Config holds configuration for creating a Converter
type Config struct {
	SourceDir        string // upstream testsuite checkout
	OutputDir        string // processed corpus root, cleared on every run
	Command          Template
	Proposals        proposals.Set
	ExcludedPrefixes []string
	SpectestModule   string // optional spectest.wasm copied into OutputDir
	Timeout          time.Duration
	Concurrency      int
	Runner           runner.ProcessRunner
	Log              log.Logger
}

// ScriptFailure records one script the converter could not process.
type ScriptFailure struct {
	Script   string
	Group    string
	ExitCode int
	Err      error
	Output   string
}

// Result summarizes a conversion batch.
type Result struct {
	Converted []string // group names
	Failed    []ScriptFailure
	Filtered  []string // scripts dropped by prefix
	Digest    string
	Duration  time.Duration
}

// Converter rebuilds the processed corpus.
type Converter struct {
	cfg Config
	log log.Logger
}

type job struct {
	script string // absolute path of the .wast file
	group  string // group name relative to the output root
	flags  []string
}

type outcome struct {
	job     job
	failure *ScriptFailure
}

// New creates a converter
func New(cfg Config) (*Converter, error) {
	if cfg.SourceDir == "" {
		return nil, errors.New("source directory is required")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("output directory is required")
	}
	if len(cfg.Command) == 0 {
		cfg.Command = DefaultCommand
	}
	if err := cfg.Command.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Proposals.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Runner == nil {
		cfg.Runner = runner.NewOSProcessRunner()
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	src, err := filepath.Abs(cfg.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source directory: %w", err)
	}
	out, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory: %w", err)
	}
	if src == out || strings.HasPrefix(src, out+string(filepath.Separator)) {
		return nil, fmt.Errorf("output directory %s would delete the source directory %s", out, src)
	}
	cfg.SourceDir, cfg.OutputDir = src, out

	return &Converter{cfg: cfg, log: cfg.Log.New("component", "converter")}, nil
}

// Convert clears the output root and converts every selected script. It
// returns an error only for problems that affect the whole batch.
func (c *Converter) Convert(ctx context.Context) (*Result, error) {
	start := time.Now()
	info, err := os.Stat(c.cfg.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("source directory not found: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", c.cfg.SourceDir)
	}

	result := &Result{}
	jobs, err := c.jobs(result)
	if err != nil {
		return nil, err
	}

	c.log.Info("Clearing output directory", "dir", c.cfg.OutputDir)
	if err := os.RemoveAll(c.cfg.OutputDir); err != nil {
		return nil, fmt.Errorf("failed to clear output directory: %w", err)
	}
	if err := os.MkdirAll(c.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	c.log.Info("Converting scripts", "scripts", len(jobs), "filtered", len(result.Filtered), "concurrency", c.cfg.Concurrency)

	p := pool.NewWithResults[outcome]().WithContext(ctx).WithMaxGoroutines(c.cfg.Concurrency)
	for _, j := range jobs {
		p.Go(func(ctx context.Context) (outcome, error) {
			return outcome{job: j, failure: c.convert(ctx, j)}, nil
		})
	}
	outcomes, _ := p.Wait()
	sort.Slice(outcomes, func(i, k int) bool { return outcomes[i].job.group < outcomes[k].job.group })

	for _, o := range outcomes {
		metrics.RecordConversion(o.failure == nil)
		if o.failure != nil {
			c.log.Warn("Conversion failed", "script", o.job.script, "err", o.failure.Err)
			result.Failed = append(result.Failed, *o.failure)
			continue
		}
		result.Converted = append(result.Converted, o.job.group)
	}

	if err := ctx.Err(); err != nil {
		result.Duration = time.Since(start)
		return result, err
	}

	if c.cfg.SpectestModule != "" {
		if err := copyFile(c.cfg.SpectestModule, filepath.Join(c.cfg.OutputDir, SpectestModule)); err != nil {
			return nil, fmt.Errorf("failed to copy %s: %w", SpectestModule, err)
		}
	}

	digest, err := corpus.Digest(c.cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	result.Digest = digest
	result.Duration = time.Since(start)

	c.log.Info("Conversion complete", "converted", len(result.Converted), "failed", len(result.Failed),
		"digest", digest, "duration", result.Duration)
	return result, nil
}

// jobs lists the core scripts followed by the scripts of every enabled
// proposal. Prefix-filtered scripts are recorded in result.
func (c *Converter) jobs(result *Result) ([]job, error) {
	core, filtered, err := c.scripts(c.cfg.SourceDir, "", nil)
	if err != nil {
		return nil, err
	}
	result.Filtered = append(result.Filtered, filtered...)
	jobs := core

	for _, p := range c.cfg.Proposals.Enabled() {
		dir := filepath.Join(c.cfg.SourceDir, types.ProposalsDir, p.Name)
		if _, err := os.Stat(dir); err != nil {
			c.log.Warn("Skipping proposal without scripts", "proposal", p.Name, "dir", dir)
			continue
		}
		scripts, filtered, err := c.scripts(dir, path.Join(types.ProposalsDir, p.Name), strings.Fields(p.ConverterFlag))
		if err != nil {
			return nil, err
		}
		result.Filtered = append(result.Filtered, filtered...)
		jobs = append(jobs, scripts...)
	}
	return jobs, nil
}

func (c *Converter) scripts(dir, groupPrefix string, flags []string) ([]job, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list scripts in %s: %w", dir, err)
	}

	var jobs []job
	var filtered []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ScriptExt) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ScriptExt)
		if proposals.Excluded(name, c.cfg.ExcludedPrefixes) {
			filtered = append(filtered, path.Join(groupPrefix, e.Name()))
			continue
		}
		jobs = append(jobs, job{
			script: filepath.Join(dir, e.Name()),
			group:  path.Join(groupPrefix, name),
			flags:  flags,
		})
	}
	return jobs, filtered, nil
}

// convert runs the converter for one script. A nil return means the group's
// manifest now exists.
func (c *Converter) convert(ctx context.Context, j job) *ScriptFailure {
	fail := func(exitCode int, output string, err error) *ScriptFailure {
		_ = os.RemoveAll(filepath.Join(c.cfg.OutputDir, filepath.FromSlash(j.group)))
		return &ScriptFailure{Script: j.script, Group: j.group, ExitCode: exitCode, Err: err, Output: output}
	}

	dir := filepath.Join(c.cfg.OutputDir, filepath.FromSlash(j.group))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(-1, "", fmt.Errorf("failed to create group directory: %w", err))
	}
	name := path.Base(j.group)
	manifest := filepath.Join(dir, name+corpus.ManifestExt)

	program, args := c.cfg.Command.Expand(j.script, manifest, dir, name, j.flags)
	c.log.Debug("Running converter", "script", j.script, "program", program, "args", args)
	res, err := c.cfg.Runner.Run(ctx, runner.Invocation{
		Path:    program,
		Args:    args,
		Dir:     c.cfg.OutputDir,
		Timeout: c.cfg.Timeout,
	})
	if err != nil {
		return fail(-1, "", err)
	}

	output := strings.TrimSpace(string(res.Stderr))
	switch {
	case res.TimedOut:
		return fail(res.ExitCode, output, fmt.Errorf("converter timed out after %s", c.cfg.Timeout))
	case res.ExitCode != 0:
		return fail(res.ExitCode, output, fmt.Errorf("converter exited with code %d", res.ExitCode))
	}
	if info, err := os.Stat(manifest); err != nil || !info.Mode().IsRegular() {
		return fail(0, output, fmt.Errorf("converter produced no manifest %s", manifest))
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
