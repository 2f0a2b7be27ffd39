package runner

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasvm/wasm-acceptor/types"
)

func collect(results *[]*types.GroupResult) EmitFunc {
	return func(r *types.GroupResult) {
		*results = append(*results, r)
	}
}

func resultNames(results []*types.GroupResult) []string {
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Group.Name)
	}
	return names
}

func TestNewSweeper(t *testing.T) {
	_, err := NewSweeper(nil, 1, nil)
	require.Error(t, err)

	_, err = NewSweeper(&delayExecutor{}, -1, nil)
	require.Error(t, err)

	s, err := NewSweeper(&delayExecutor{}, 0, log.NewLogger(log.DiscardHandler()))
	require.NoError(t, err)
	assert.Equal(t, 1, s.concurrency)
}

func TestSweepSkipsGroupsWithoutManifest(t *testing.T) {
	groups := runnableGroups("b", "a")
	groups = append(groups, types.TestGroup{Name: "empty"})

	exec := &delayExecutor{}
	s, err := NewSweeper(exec, 1, log.NewLogger(log.DiscardHandler()))
	require.NoError(t, err)

	var results []*types.GroupResult
	require.NoError(t, s.Sweep(context.Background(), groups, collect(&results)))
	assert.Equal(t, []string{"a", "b"}, resultNames(results))
	assert.Equal(t, int32(2), exec.executed.Load())
}

func TestSweepParallelKeepsNameOrder(t *testing.T) {
	groups := runnableGroups("a", "b", "c", "d", "e", "f")
	exec := &delayExecutor{delays: map[string]time.Duration{
		"a": 80 * time.Millisecond,
		"b": 10 * time.Millisecond,
		"c": 40 * time.Millisecond,
		"d": 1 * time.Millisecond,
		"e": 30 * time.Millisecond,
		"f": 5 * time.Millisecond,
	}}
	s, err := NewSweeper(exec, 3, log.NewLogger(log.DiscardHandler()))
	require.NoError(t, err)

	var results []*types.GroupResult
	require.NoError(t, s.Sweep(context.Background(), groups, collect(&results)))
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, resultNames(results))
	assert.LessOrEqual(t, exec.peak.Load(), int32(3))
	assert.Greater(t, exec.peak.Load(), int32(1), "groups should overlap")
}

func TestSweepParallelMatchesSequential(t *testing.T) {
	fake := newFakeProcessRunner().
		report("a", `{"total":5,"passed":5,"failed":0,"skipped":0,"failed_to_load":0,"vm_error":false}`).
		report("b", `{"total":5,"passed":3,"failed":2,"skipped":0,"failed_to_load":0,"vm_error":false}`).
		exit("c", 1).
		report("d", `{"total":0,"passed":0,"failed":0,"skipped":0,"failed_to_load":0,"vm_error":true}`)
	exec, err := NewExecutor(ExecutorConfig{Engine: "wasvm", Runner: fake, Log: log.NewLogger(log.DiscardHandler())})
	require.NoError(t, err)

	run := func(concurrency int) []types.GroupStatus {
		s, err := NewSweeper(exec, concurrency, log.NewLogger(log.DiscardHandler()))
		require.NoError(t, err)
		var results []*types.GroupResult
		require.NoError(t, s.Sweep(context.Background(), runnableGroups("d", "c", "b", "a"), collect(&results)))
		statuses := make([]types.GroupStatus, 0, len(results))
		for _, r := range results {
			statuses = append(statuses, r.Status)
		}
		return statuses
	}

	sequential := run(1)
	assert.Equal(t, []types.GroupStatus{
		types.GroupStatusPassed, types.GroupStatusAnomaly, types.GroupStatusCrashed, types.GroupStatusVMError,
	}, sequential)
	assert.Equal(t, sequential, run(4))
}

func TestSweepParallelStartsNothingAfterCancel(t *testing.T) {
	exec := &delayExecutor{delays: map[string]time.Duration{}}
	names := []string{"a", "b", "c", "d", "e", "f"}
	for _, n := range names {
		exec.delays[n] = time.Hour
	}
	s, err := NewSweeper(exec, 2, log.NewLogger(log.DiscardHandler()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var results []*types.GroupResult
	done := make(chan error, 1)
	go func() { done <- s.Sweep(ctx, runnableGroups(names...), collect(&results)) }()

	// The pool is full and the dispatcher is blocked on the third group.
	require.Eventually(t, func() bool { return exec.running.Load() == 2 }, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("sweep did not stop after cancellation")
	}
	assert.Equal(t, int32(2), exec.executed.Load(), "groups waiting for a slot must not start")
	assert.Empty(t, results)
}

func TestSweepCancellation(t *testing.T) {
	for _, concurrency := range []int{1, 2} {
		exec := &delayExecutor{delays: map[string]time.Duration{
			"a": time.Millisecond,
			"b": time.Hour,
			"c": time.Hour,
			"d": time.Hour,
		}}
		s, err := NewSweeper(exec, concurrency, log.NewLogger(log.DiscardHandler()))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		var results []*types.GroupResult
		emit := func(r *types.GroupResult) {
			results = append(results, r)
			cancel()
		}

		done := make(chan error, 1)
		go func() { done <- s.Sweep(ctx, runnableGroups("a", "b", "c", "d"), emit) }()

		select {
		case err := <-done:
			require.ErrorIs(t, err, context.Canceled)
		case <-time.After(10 * time.Second):
			t.Fatalf("sweep with concurrency %d did not stop after cancellation", concurrency)
		}
		assert.Equal(t, []string{"a"}, resultNames(results), "only groups finished before cancellation are emitted")
		assert.LessOrEqual(t, exec.executed.Load(), int32(1+concurrency))
	}
}
