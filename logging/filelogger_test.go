package logging

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasvm/wasm-acceptor/types"
)

func sampleResults() []*types.GroupResult {
	return []*types.GroupResult{
		{
			Group:    types.TestGroup{Name: "i32"},
			Status:   types.GroupStatusPassed,
			Report:   types.EngineReport{Total: 3, Passed: 3},
			Duration: 20 * time.Millisecond,
		},
		{
			Group:    types.TestGroup{Name: "proposals/threads/atomic", Proposal: "threads"},
			Status:   types.GroupStatusCrashed,
			Reason:   types.CrashReasonTimeout,
			ExitCode: -1,
			TimedOut: true,
			Duration: 5 * time.Second,
			Stderr:   "\x1b[31mstack overflow\x1b[0m\n",
			Error:    errors.New("engine timed out"),
		},
		{
			Group:  types.TestGroup{Name: "partial"},
			Status: types.GroupStatusAnomaly,
			Report: types.EngineReport{Total: 5, Passed: 3, Failed: 2},
			Stdout: "assert_return line 10 failed\n{\"vm_error\":false}\n",
		},
	}
}

func TestNewFileLoggerValidation(t *testing.T) {
	_, err := NewFileLogger(t.TempDir(), "")
	assert.Error(t, err)
	_, err = NewFileLogger("", "run")
	assert.Error(t, err)
}

func TestFileLogger(t *testing.T) {
	tmpDir := t.TempDir()
	runID := "test-run-123"
	logger, err := NewFileLogger(tmpDir, runID)
	require.NoError(t, err)

	baseDir, err := logger.GetDirectoryForRunID(runID)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "testrun-test-run-123"), baseDir)
	assert.Equal(t, baseDir, logger.GetBaseDir())
	assert.DirExists(t, logger.GetFailedDir())
	assert.Equal(t, runID, logger.GetRunID())

	for _, r := range sampleResults() {
		require.NoError(t, logger.LogGroupResult(r, runID))
	}
	require.NoError(t, logger.LogSummary("\x1b[91mFailed:\x1b[0m 2\n", runID))
	require.NoError(t, logger.Complete(runID))

	summary, err := os.ReadFile(logger.GetSummaryFile())
	require.NoError(t, err)
	assert.Equal(t, "Failed: 2\n", string(summary))

	all, err := os.ReadFile(logger.GetAllLogsFile())
	require.NoError(t, err)
	assert.Contains(t, string(all), "GROUP:    i32")
	assert.Contains(t, string(all), "GROUP:    proposals/threads/atomic")
	assert.Contains(t, string(all), "  stack overflow")
	assert.NotContains(t, string(all), "\x1b[")

	// passing groups get no per-group file
	entries, err := os.ReadDir(logger.GetFailedDir())
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"proposals_threads_atomic.log", "partial.log"}, names)

	crash, err := os.ReadFile(filepath.Join(logger.GetFailedDir(), GroupLogFile("proposals/threads/atomic")))
	require.NoError(t, err)
	assert.Contains(t, string(crash), "*** TIMEOUT ***")
	assert.Contains(t, string(crash), "Reason:   timeout")
	assert.Contains(t, string(crash), "Error:    engine timed out")

	partial, err := os.ReadFile(filepath.Join(logger.GetFailedDir(), "partial.log"))
	require.NoError(t, err)
	assert.Contains(t, string(partial), "assert_return line 10 failed")
	assert.Contains(t, string(partial), "passed=3 failed=2")
}

func TestResultsJSON(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := NewFileLogger(tmpDir, "r1")
	require.NoError(t, err)
	for _, r := range sampleResults() {
		require.NoError(t, logger.LogGroupResult(r, "r1"))
	}
	require.NoError(t, logger.Complete("r1"))

	data, err := os.ReadFile(filepath.Join(logger.GetBaseDir(), ResultsFilename))
	require.NoError(t, err)
	var rec RunRecord
	require.NoError(t, json.Unmarshal(data, &rec))

	assert.Equal(t, "r1", rec.RunID)
	assert.Equal(t, types.OutcomeCounters{Total: 8, Passed: 6, Failed: 2, Crashed: 1}, rec.Totals)
	require.Len(t, rec.Groups, 3)

	crash := rec.Groups[1]
	assert.Equal(t, "proposals/threads/atomic", crash.Name)
	assert.Equal(t, "threads", crash.Proposal)
	assert.Equal(t, types.GroupStatusCrashed, crash.Status)
	assert.True(t, crash.TimedOut)
	assert.Nil(t, crash.Report)
	assert.Equal(t, "engine timed out", crash.Error)
	assert.Equal(t, int64(5000), crash.DurationMS)

	require.NotNil(t, rec.Groups[2].Report)
	assert.Equal(t, 2, rec.Groups[2].Report.Failed)
}

func TestGetDirectoryForRunID(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := NewFileLogger(tmpDir, "current")
	require.NoError(t, err)

	other, err := logger.GetDirectoryForRunID("other")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "testrun-other"), other)

	_, err = logger.GetDirectoryForRunID("")
	assert.Error(t, err)
	assert.Error(t, logger.LogGroupResult(sampleResults()[0], ""))
	assert.Error(t, logger.Complete(""))
}

func TestGetSinkByType(t *testing.T) {
	logger, err := NewFileLogger(t.TempDir(), "r")
	require.NoError(t, err)

	for _, name := range []string{"AllLogsFileSink", "FailedGroupFileSink", "ResultsJSONSink"} {
		_, ok := logger.GetSinkByType(name)
		assert.True(t, ok, name)
	}
	_, ok := logger.GetSinkByType("HTMLSink")
	assert.False(t, ok)
}

type countingSink struct {
	consumed  int
	completed bool
}

func (c *countingSink) Consume(*types.GroupResult, string) error { c.consumed++; return nil }
func (c *countingSink) Complete(string) error                    { c.completed = true; return nil }

func TestAddSink(t *testing.T) {
	logger, err := NewFileLogger(t.TempDir(), "r")
	require.NoError(t, err)
	sink := &countingSink{}
	logger.AddSink(sink)

	for _, r := range sampleResults() {
		require.NoError(t, logger.LogGroupResult(r, "r"))
	}
	require.NoError(t, logger.Complete("r"))
	assert.Equal(t, 3, sink.consumed)
	assert.True(t, sink.completed)
}

func TestAsyncFileClosed(t *testing.T) {
	af, err := NewAsyncFile(filepath.Join(t.TempDir(), "x.log"))
	require.NoError(t, err)
	require.NoError(t, af.Write([]byte("hello")))
	require.NoError(t, af.Close())
	assert.Error(t, af.Write([]byte("late")))
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "proposals_multi-memory_load", safeFilename("proposals/multi-memory/load"))
	assert.Equal(t, "a_b_c", safeFilename("a b:c"))
	assert.Equal(t, "i32.log", GroupLogFile("i32"))
}
