package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wasvm/wasm-acceptor/types"
)

// fakeProcessRunner returns canned results keyed by the last argument (the
// group name) and records every invocation.
type fakeProcessRunner struct {
	mu       sync.Mutex
	results  map[string]*ProcessResult
	startErr map[string]error
	calls    []Invocation
}

func newFakeProcessRunner() *fakeProcessRunner {
	return &fakeProcessRunner{
		results:  make(map[string]*ProcessResult),
		startErr: make(map[string]error),
	}
}

func (f *fakeProcessRunner) report(group, stdout string) *fakeProcessRunner {
	f.results[group] = &ProcessResult{Stdout: []byte(stdout), Duration: time.Millisecond}
	return f
}

func (f *fakeProcessRunner) exit(group string, code int) *fakeProcessRunner {
	f.results[group] = &ProcessResult{ExitCode: code, Stdout: []byte("partial output\n"), Stderr: []byte("segfault\n")}
	return f
}

func (f *fakeProcessRunner) Run(_ context.Context, inv Invocation) (*ProcessResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, inv)
	group := inv.Args[len(inv.Args)-1]
	if err := f.startErr[group]; err != nil {
		return nil, err
	}
	if res, ok := f.results[group]; ok {
		return res, nil
	}
	return &ProcessResult{Stdout: []byte(`{"total":0,"passed":0,"failed":0,"skipped":0,"failed_to_load":0,"vm_error":false}`)}, nil
}

// delayExecutor finishes groups after per-group delays so that completion
// order differs from name order.
type delayExecutor struct {
	delays   map[string]time.Duration
	running  atomic.Int32
	peak     atomic.Int32
	executed atomic.Int32
}

func (d *delayExecutor) Execute(ctx context.Context, g types.TestGroup) *types.GroupResult {
	n := d.running.Add(1)
	defer d.running.Add(-1)
	for {
		p := d.peak.Load()
		if n <= p || d.peak.CompareAndSwap(p, n) {
			break
		}
	}
	d.executed.Add(1)

	select {
	case <-time.After(d.delays[g.Name]):
	case <-ctx.Done():
		return &types.GroupResult{Group: g, Status: types.GroupStatusCrashed, Reason: types.CrashReasonCancelled}
	}
	return &types.GroupResult{
		Group:  g,
		Status: types.GroupStatusPassed,
		Report: types.EngineReport{Total: 1, Passed: 1},
	}
}

func runnableGroups(names ...string) []types.TestGroup {
	groups := make([]types.TestGroup, 0, len(names))
	for _, n := range names {
		groups = append(groups, types.TestGroup{
			Name:         n,
			ManifestPath: "/corpus/" + n + "/" + n + ".json",
			Proposal:     types.ProposalFromName(n),
		})
	}
	return groups
}
