package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEngineReport(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		expected EngineReport
		errMsg   string
	}{
		{
			name:     "single line",
			output:   `{"total":10,"passed":10,"failed":0,"skipped":0,"failed_to_load":0,"vm_error":false}`,
			expected: EngineReport{Total: 10, Passed: 10},
		},
		{
			name: "logging before the result line is ignored",
			output: "i32/12 module loaded\ni32/14 passed\n" +
				`{"failed":2,"failed_to_load":0,"passed":3,"skipped":0,"total":5,"vm_error":false}` + "\n\n",
			expected: EngineReport{Total: 5, Passed: 3, Failed: 2},
		},
		{
			name:     "vm error ignores missing counters",
			output:   "Failed to load spectest wasm\n" + `{"vm_error":true}`,
			expected: EngineReport{VMError: true},
		},
		{
			name:   "empty output",
			output: "\n  \n",
			errMsg: "no result line",
		},
		{
			name:   "last line is not json",
			output: `{"total":1}` + "\nsegfault",
			errMsg: "invalid result line",
		},
		{
			name:   "missing counters",
			output: `{"total":1,"passed":1,"vm_error":false}`,
			errMsg: "missing counters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := ParseEngineReport([]byte(tt.output))
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, report)
		})
	}
}

func TestParseEngineReportNoOutput(t *testing.T) {
	_, err := ParseEngineReport(nil)
	assert.ErrorIs(t, err, ErrNoReport)
}

func TestOutcomeCountersAdd(t *testing.T) {
	a := OutcomeCounters{Total: 5, Passed: 5}
	b := OutcomeCounters{Total: 5, Passed: 3, Failed: 2}
	c := OutcomeCounters{Crashed: 1}
	d := OutcomeCounters{VMError: 1}

	sum := a.Add(b).Add(c).Add(d)
	assert.Equal(t, OutcomeCounters{Total: 10, Passed: 8, Failed: 2, VMError: 1, Crashed: 1}, sum)
	assert.True(t, sum.Consistent())
}

func TestClassifyReport(t *testing.T) {
	assert.Equal(t, GroupStatusPassed, ClassifyReport(EngineReport{Total: 10, Passed: 10}))
	assert.Equal(t, GroupStatusPassed, ClassifyReport(EngineReport{}))
	assert.Equal(t, GroupStatusAnomaly, ClassifyReport(EngineReport{Total: 5, Passed: 3, Failed: 2}))
	assert.Equal(t, GroupStatusAnomaly, ClassifyReport(EngineReport{Total: 2, Passed: 1, Skipped: 1}))
	assert.Equal(t, GroupStatusAnomaly, ClassifyReport(EngineReport{Total: 2, Passed: 1, FailedToLoad: 1}))
	assert.Equal(t, GroupStatusVMError, ClassifyReport(EngineReport{VMError: true, Total: 3, Passed: 3}))
}

func TestGroupResultCounters(t *testing.T) {
	crashed := &GroupResult{Status: GroupStatusCrashed, Report: EngineReport{Total: 4, Passed: 4}}
	assert.Equal(t, OutcomeCounters{Crashed: 1}, crashed.Counters())

	vmErr := &GroupResult{Status: GroupStatusVMError, Report: EngineReport{VMError: true, Total: 4}}
	assert.Equal(t, OutcomeCounters{VMError: 1}, vmErr.Counters())

	anomaly := &GroupResult{Status: GroupStatusAnomaly, Report: EngineReport{Total: 5, Passed: 3, Failed: 2}}
	assert.Equal(t, OutcomeCounters{Total: 5, Passed: 3, Failed: 2}, anomaly.Counters())
	assert.True(t, anomaly.IsAnomaly())
}

func TestProposalFromName(t *testing.T) {
	assert.Equal(t, "multi-memory", ProposalFromName("proposals/multi-memory/load"))
	assert.Equal(t, "", ProposalFromName("proposals/multi-memory"))
	assert.Equal(t, "", ProposalFromName("i32"))

	g := TestGroup{Name: "proposals/multi-memory/load"}
	assert.Equal(t, "load", g.BaseName())
	assert.False(t, g.HasManifest())
}
