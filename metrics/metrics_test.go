package metrics

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/wasvm/wasm-acceptor/types"
)

func TestErrToLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "nil error",
			err:  nil,
		},
		{
			name: "simple error",
			err:  errors.New("test error"),
		},
		{
			name: "error with special chars",
			err:  errors.New("test@error#123"),
		},
		{
			name: "error with multiple spaces",
			err:  errors.New("test   error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := errToLabel(tt.err)
			validLabelRegex := regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)
			if !validLabelRegex.MatchString(result) {
				t.Errorf("errLabel() = %v, is not a valid Prometheus label", result)
			}
		})
	}
}

func TestRecordError(t *testing.T) {
	// just test that it doesn't panic
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("RecordError panic'd")
		}
	}()

	RecordError("test_error")
	RecordErrorDetails("label", errors.New("boom"))
	RecordErrorDetails("label", nil)
}

func TestRecordGroup(t *testing.T) {
	before := testutil.ToFloat64(groupsTotal.WithLabelValues(string(types.GroupStatusAnomaly)))
	failedBefore := testutil.ToFloat64(assertionsTotal.WithLabelValues("failed"))

	RecordGroup(&types.GroupResult{
		Group:    types.TestGroup{Name: "i32"},
		Status:   types.GroupStatusAnomaly,
		Report:   types.EngineReport{Total: 10, Passed: 7, Failed: 3},
		Duration: 20 * time.Millisecond,
	})

	assert.Equal(t, before+1, testutil.ToFloat64(groupsTotal.WithLabelValues(string(types.GroupStatusAnomaly))))
	assert.Equal(t, failedBefore+3, testutil.ToFloat64(assertionsTotal.WithLabelValues("failed")))

	crashedBefore := testutil.ToFloat64(groupsTotal.WithLabelValues(string(types.GroupStatusCrashed)))
	RecordGroup(&types.GroupResult{Status: types.GroupStatusCrashed})
	RecordGroup(&types.GroupResult{Status: "bogus"})
	RecordGroup(nil)
	assert.Equal(t, crashedBefore+1, testutil.ToFloat64(groupsTotal.WithLabelValues(string(types.GroupStatusCrashed))))
}

func TestRecordRunAndConversion(t *testing.T) {
	RecordRun(types.OutcomeCounters{Total: 5, Passed: 4, Failed: 1, Crashed: 2}, 3*time.Second)
	assert.Equal(t, 5.0, testutil.ToFloat64(lastRunCounters.WithLabelValues("total")))
	assert.Equal(t, 2.0, testutil.ToFloat64(lastRunCounters.WithLabelValues("crashes")))
	assert.Equal(t, 3.0, testutil.ToFloat64(runDuration))

	before := testutil.ToFloat64(conversionsTotal.WithLabelValues("failed"))
	RecordConversion(false)
	RecordConversion(true)
	assert.Equal(t, before+1, testutil.ToFloat64(conversionsTotal.WithLabelValues("failed")))
}
