// Package refengine is a reference engine-under-test built on wazero. It
// honours the engine contract of the harness: given a group name it replays
// the group's manifest, prints one line per assertion and finishes with the
// JSON report line.
package refengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"

	"github.com/wasvm/wasm-acceptor/corpus"
	"github.com/wasvm/wasm-acceptor/types"
)

// SpectestName is the import namespace of the shared test module.
const SpectestName = "spectest"

var ErrGroupNotFound = errors.New("group not found")

type Config struct {
	CorpusRoot string
	// SpectestPath defaults to <CorpusRoot>/spectest.wasm.
	SpectestPath string
	Group        string
	// Threads enables the threads proposal. It is implied for groups under
	// proposals/threads.
	Threads          bool
	MemoryLimitPages uint32
	Out              io.Writer
	Log              log.Logger
}

// Run replays one group. Assertion outcomes are counted in the returned
// report; an error means the group could not be replayed at all.
func Run(ctx context.Context, cfg Config) (types.EngineReport, error) {
	if err := ctx.Err(); err != nil {
		return types.EngineReport{}, err
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.SpectestPath == "" {
		cfg.SpectestPath = filepath.Join(cfg.CorpusRoot, corpus.SpectestModule)
	}

	group := corpus.NewGroup(cfg.CorpusRoot, cfg.Group)
	if !group.HasManifest() {
		return types.EngineReport{}, fmt.Errorf("%w: %s under %s", ErrGroupNotFound, cfg.Group, cfg.CorpusRoot)
	}
	manifest, err := corpus.LoadManifest(group.ManifestPath)
	if err != nil {
		return types.EngineReport{}, err
	}

	features := api.CoreFeaturesV2
	if cfg.Threads || group.Proposal == "threads" {
		features |= experimental.CoreFeaturesThreads
	}
	rc := wazero.NewRuntimeConfig().
		WithCoreFeatures(features).
		WithCloseOnContextDone(true)
	if cfg.MemoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, rc)
	defer rt.Close(ctx)

	s := &session{
		ctx:     ctx,
		rt:      rt,
		group:   group.Name,
		dir:     group.Dir,
		out:     cfg.Out,
		log:     cfg.Log.New("group", group.Name),
		named:   make(map[string]*loaded),
		aliases: planAliases(manifest.Commands),
	}

	if err := s.loadSpectest(cfg.SpectestPath); err != nil {
		fmt.Fprintln(s.out, "Failed to load spectest wasm")
		s.log.Error("Failed to load spectest module", "path", cfg.SpectestPath, "err", err)
		return types.EngineReport{VMError: true}, nil
	}

	for i, cmd := range manifest.Commands {
		if err := ctx.Err(); err != nil {
			return s.stats, err
		}
		s.exec(i, cmd)
	}
	return s.stats, nil
}

// WriteReport prints the report as the final stdout line.
func WriteReport(w io.Writer, report types.EngineReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

type loaded struct {
	compiled wazero.CompiledModule // nil for modules found by registered name
	inst     api.Module
}

type session struct {
	ctx   context.Context
	rt    wazero.Runtime
	group string
	dir   string
	out   io.Writer
	log   log.Logger
	stats types.EngineReport

	current      *loaded
	moduleLoaded bool
	named        map[string]*loaded
	aliases      map[int]string
}

// planAliases finds, for each module command, the first name it is
// registered under. Such modules are instantiated under that name directly so
// that importers share their state.
func planAliases(cmds []corpus.Command) map[int]string {
	aliases := make(map[int]string)
	named := make(map[string]int)
	current := -1
	for i, c := range cmds {
		switch cmd := c.(type) {
		case corpus.ModuleCommand:
			current = i
			if cmd.Name != "" {
				named[cmd.Name] = i
			}
		case corpus.RegisterCommand:
			target := current
			if cmd.Name != "" {
				idx, ok := named[cmd.Name]
				if !ok {
					continue
				}
				target = idx
			}
			if target < 0 {
				continue
			}
			if _, taken := aliases[target]; !taken {
				aliases[target] = cmd.As
			}
		}
	}
	return aliases
}

func (s *session) printf(line int, format string, args ...any) {
	fmt.Fprintf(s.out, "%s/%d %s\n", s.group, line, fmt.Sprintf(format, args...))
}

func (s *session) loadSpectest(path string) error {
	bin, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	compiled, err := s.rt.CompileModule(s.ctx, bin)
	if err != nil {
		return err
	}
	_, err = s.instantiate(compiled, SpectestName)
	return err
}

func (s *session) compile(filename string) (wazero.CompiledModule, error) {
	bin, err := os.ReadFile(filepath.Join(s.dir, filename))
	if err != nil {
		return nil, err
	}
	return s.rt.CompileModule(s.ctx, bin)
}

// instantiate creates an instance under name, replacing any module already
// using it. An empty name creates an anonymous instance.
func (s *session) instantiate(compiled wazero.CompiledModule, name string) (api.Module, error) {
	if name != "" {
		if existing := s.rt.Module(name); existing != nil {
			_ = existing.Close(s.ctx)
		}
	}
	cfg := wazero.NewModuleConfig().WithName(name).WithStartFunctions()
	return s.rt.InstantiateModule(s.ctx, compiled, cfg)
}

func (s *session) exec(idx int, c corpus.Command) {
	switch cmd := c.(type) {
	case corpus.ModuleCommand:
		s.module(idx, cmd)
	case corpus.RegisterCommand:
		s.register(cmd)
	case corpus.ActionCommand:
		s.action(cmd)
	case corpus.AssertReturnCommand:
		s.assertReturn(cmd)
	case corpus.AssertTrapCommand:
		s.assertTrap(cmd)
	case corpus.AssertExhaustionCommand:
		s.assertExhaustion(cmd)
	case corpus.AssertInvalidCommand:
		s.assertNotLoading(cmd.ModuleAssertion)
	case corpus.AssertMalformedCommand:
		s.assertNotLoading(cmd.ModuleAssertion)
	case corpus.AssertUnlinkableCommand:
		s.assertNotInstantiating(cmd.ModuleAssertion)
	case corpus.AssertUninstantiableCommand:
		s.assertNotInstantiating(cmd.ModuleAssertion)
	default:
		s.log.Debug("Ignoring unsupported command", "type", c.Kind(), "line", c.Line())
	}
}

func (s *session) module(idx int, cmd corpus.ModuleCommand) {
	s.stats.Total++
	if cmd.ModuleType == corpus.ModuleTypeText {
		s.failModule(cmd.Line(), errors.New("text module"))
		return
	}
	compiled, err := s.compile(cmd.Filename)
	if err != nil {
		s.failModule(cmd.Line(), err)
		return
	}
	inst, err := s.instantiate(compiled, s.aliases[idx])
	if err != nil {
		s.failModule(cmd.Line(), err)
		return
	}

	m := &loaded{compiled: compiled, inst: inst}
	s.current = m
	if cmd.Name != "" {
		s.named[cmd.Name] = m
	}
	s.moduleLoaded = true
	s.stats.Passed++
	s.printf(cmd.Line(), "module loaded")
}

func (s *session) failModule(line int, err error) {
	s.moduleLoaded = false
	s.stats.FailedToLoad++
	s.printf(line, "module failed to load")
	s.log.Debug("Module failed to load", "line", line, "err", err)
}

func (s *session) register(cmd corpus.RegisterCommand) {
	target := s.current
	if cmd.Name != "" {
		target = s.named[cmd.Name]
	}
	if target == nil {
		s.printf(cmd.Line(), "register skipped: no module")
		return
	}
	if target.inst.Name() == cmd.As {
		return
	}
	if target.compiled == nil {
		s.printf(cmd.Line(), "register skipped: module cannot be aliased")
		return
	}
	// wazero resolves imports by instance name, so a second alias gets its
	// own instance.
	if _, err := s.instantiate(target.compiled, cmd.As); err != nil {
		s.printf(cmd.Line(), "register failed: %v", err)
	}
}

type trapError struct {
	err error
}

func (t *trapError) Error() string { return t.err.Error() }
func (t *trapError) Unwrap() error { return t.err }

func isTrap(err error) bool {
	var t *trapError
	return errors.As(err, &t)
}

func isExhaustion(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "stack overflow") || strings.Contains(msg, "exhausted")
}

func (s *session) lookup(name string) (*loaded, error) {
	if name == "" {
		if s.current == nil {
			return nil, errors.New("no current module")
		}
		return s.current, nil
	}
	if m, ok := s.named[name]; ok {
		return m, nil
	}
	if inst := s.rt.Module(name); inst != nil {
		return &loaded{inst: inst}, nil
	}
	return nil, fmt.Errorf("unknown module %s", name)
}

// runAction performs an action. Errors wrapping errUnsupported mean the
// action could not be attempted; a *trapError means the call trapped.
func (s *session) runAction(a corpus.Action) ([]corpus.Result, error) {
	m, err := s.lookup(a.Module)
	if err != nil {
		return nil, err
	}

	switch a.Type {
	case corpus.ActionGet:
		g := m.inst.ExportedGlobal(a.Field)
		if g == nil {
			return nil, fmt.Errorf("global %q is not exported", a.Field)
		}
		r, err := decodeResult(g.Type(), g.Get())
		if err != nil {
			return nil, err
		}
		return []corpus.Result{r}, nil

	case corpus.ActionInvoke:
		if hasVector(a.Args) {
			return nil, fmt.Errorf("%w: v128 argument", errUnsupported)
		}
		fn := m.inst.ExportedFunction(a.Field)
		if fn == nil {
			return nil, fmt.Errorf("function %q is not exported", a.Field)
		}
		def := fn.Definition()
		if hasVectorType(def.ParamTypes()) || hasVectorType(def.ResultTypes()) {
			return nil, fmt.Errorf("%w: v128 in signature of %s", errUnsupported, a.Field)
		}
		if len(a.Args) != len(def.ParamTypes()) {
			return nil, fmt.Errorf("%s takes %d arguments, got %d", a.Field, len(def.ParamTypes()), len(a.Args))
		}
		params := make([]uint64, len(a.Args))
		for i, arg := range a.Args {
			v, err := encodeArg(arg)
			if err != nil {
				if !errors.Is(err, errUnsupported) {
					err = fmt.Errorf("%w: argument %d: %v", errUnsupported, i, err)
				}
				return nil, err
			}
			params[i] = v
		}

		raw, err := fn.Call(s.ctx, params...)
		if err != nil {
			return nil, &trapError{err: err}
		}
		results := make([]corpus.Result, len(raw))
		for i, t := range def.ResultTypes() {
			if i >= len(raw) {
				break
			}
			r, err := decodeResult(t, raw[i])
			if err != nil {
				return nil, err
			}
			results[i] = r
		}
		return results, nil

	default:
		return nil, fmt.Errorf("%w: action type %s", errUnsupported, a.Type)
	}
}

func (s *session) action(cmd corpus.ActionCommand) {
	if !s.moduleLoaded {
		s.printf(cmd.Line(), "action skipped: module not loaded")
		return
	}
	results, err := s.runAction(cmd.Action)
	switch {
	case isTrap(err):
		s.printf(cmd.Line(), "action failed: unexpected trap")
	case err != nil:
		s.printf(cmd.Line(), "action failed: %v", err)
	case len(results) != len(cmd.Expected):
		s.printf(cmd.Line(), "action failed: returned values: %d", len(results))
	}
}

func (s *session) skip(line int, err error) {
	s.stats.Skipped++
	s.printf(line, "skipped: %v", err)
}

func (s *session) fail(line int, format string, args ...any) {
	s.stats.Failed++
	s.printf(line, "failed: "+format, args...)
}

func (s *session) pass(line int) {
	s.stats.Passed++
	s.printf(line, "passed")
}

// requireModule counts the assertion and reports whether it can run.
func (s *session) requireModule(line int) bool {
	s.stats.Total++
	if !s.moduleLoaded {
		s.stats.FailedToLoad++
		s.printf(line, "skipped: module not loaded")
		return false
	}
	return true
}

func (s *session) assertReturn(cmd corpus.AssertReturnCommand) {
	line := cmd.Line()
	if !s.requireModule(line) {
		return
	}
	if hasVector(cmd.Expected) {
		s.skip(line, fmt.Errorf("%w: v128 result", errUnsupported))
		return
	}
	for _, v := range cmd.Expected {
		if err := v.Validate(); err != nil {
			s.skip(line, fmt.Errorf("failed to parse return value of type %s: %w", v.Type, err))
			return
		}
	}

	results, err := s.runAction(cmd.Action)
	switch {
	case errors.Is(err, errUnsupported):
		s.skip(line, err)
		return
	case isTrap(err):
		s.fail(line, "unexpected trap: %v", firstLine(err))
		return
	case err != nil:
		s.fail(line, "%v", err)
		return
	}

	if len(results) != len(cmd.Expected) {
		s.fail(line, "unexpected return value count %d, expected %d", len(results), len(cmd.Expected))
		return
	}
	for i, want := range cmd.Expected {
		if !want.Matches(results[i]) {
			s.fail(line, "return value %d has unexpected value %s, expected %s", i, formatResult(results[i]), want)
			return
		}
	}
	s.pass(line)
}

func (s *session) assertTrap(cmd corpus.AssertTrapCommand) {
	line := cmd.Line()
	if cmd.Action == nil {
		// trap during instantiation of a module
		s.stats.Total++
		s.expectInstantiationFailure(line, cmd.Filename)
		return
	}
	if !s.requireModule(line) {
		return
	}
	_, err := s.runAction(*cmd.Action)
	switch {
	case errors.Is(err, errUnsupported):
		s.skip(line, err)
	case isTrap(err):
		s.pass(line)
	case err != nil:
		s.fail(line, "%v", err)
	default:
		s.fail(line, "expected trap, not trapped")
	}
}

func (s *session) assertExhaustion(cmd corpus.AssertExhaustionCommand) {
	line := cmd.Line()
	if !s.requireModule(line) {
		return
	}
	_, err := s.runAction(cmd.Action)
	switch {
	case errors.Is(err, errUnsupported):
		s.skip(line, err)
	case isTrap(err) && isExhaustion(err):
		s.pass(line)
	case isTrap(err):
		s.fail(line, "trapped without exhausting the stack: %v", firstLine(err))
	case err != nil:
		s.fail(line, "%v", err)
	default:
		s.fail(line, "expected exhaustion, returned")
	}
}

// assertNotLoading covers assert_invalid and assert_malformed. Text modules
// are left to the converter.
func (s *session) assertNotLoading(a corpus.ModuleAssertion) {
	if !a.IsBinary() {
		return
	}
	s.stats.Total++
	bin, err := os.ReadFile(filepath.Join(s.dir, a.Filename))
	if err != nil {
		s.fail(a.Line(), "%v", err)
		return
	}
	if _, err := s.rt.CompileModule(s.ctx, bin); err != nil {
		s.pass(a.Line())
		return
	}
	s.stats.Failed++
	s.printf(a.Line(), "expected to not load, loaded")
}

func (s *session) assertNotInstantiating(a corpus.ModuleAssertion) {
	if !a.IsBinary() {
		return
	}
	s.stats.Total++
	s.expectInstantiationFailure(a.Line(), a.Filename)
}

func (s *session) expectInstantiationFailure(line int, filename string) {
	compiled, err := s.compile(filename)
	if err != nil {
		s.fail(line, "module is invalid")
		return
	}
	inst, err := s.instantiate(compiled, "")
	if err != nil {
		s.pass(line)
		return
	}
	_ = inst.Close(s.ctx)
	s.stats.Failed++
	s.printf(line, "expected to not instantiate, instantiated")
}

func firstLine(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		return msg[:i]
	}
	return msg
}
