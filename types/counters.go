package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoReport is returned when the engine output holds no result line.
var ErrNoReport = errors.New("no result line in engine output")

// EngineReport is the JSON object an engine prints as the last line of its
// standard output.
type EngineReport struct {
	VMError      bool `json:"vm_error"`
	Total        int  `json:"total"`
	Passed       int  `json:"passed"`
	Failed       int  `json:"failed"`
	Skipped      int  `json:"skipped"`
	FailedToLoad int  `json:"failed_to_load"`
}

// Consistent reports whether the per-category counts add up to the total.
func (r EngineReport) Consistent() bool {
	return r.Passed+r.Failed+r.Skipped+r.FailedToLoad == r.Total
}

// AllPassed reports whether every assertion in the group passed.
func (r EngineReport) AllPassed() bool {
	return r.Passed == r.Total
}

// Counters converts the report into assertion-level counters.
func (r EngineReport) Counters() OutcomeCounters {
	return OutcomeCounters{
		Total:        r.Total,
		Passed:       r.Passed,
		Failed:       r.Failed,
		Skipped:      r.Skipped,
		FailedToLoad: r.FailedToLoad,
	}
}

// ParseEngineReport decodes the last non-empty line of output. Lines before
// it are free-form engine logging and are ignored.
func ParseEngineReport(output []byte) (EngineReport, error) {
	line := lastLine(output)
	if len(line) == 0 {
		return EngineReport{}, ErrNoReport
	}

	var raw struct {
		VMError      *bool `json:"vm_error"`
		Total        *int  `json:"total"`
		Passed       *int  `json:"passed"`
		Failed       *int  `json:"failed"`
		Skipped      *int  `json:"skipped"`
		FailedToLoad *int  `json:"failed_to_load"`
	}
	if err := json.Unmarshal(line, &raw); err != nil {
		return EngineReport{}, fmt.Errorf("invalid result line %q: %w", truncate(line, 120), err)
	}

	report := EngineReport{}
	if raw.VMError != nil {
		report.VMError = *raw.VMError
	}
	if report.VMError {
		// counts are meaningless once the engine gave up
		return report, nil
	}
	if raw.Total == nil || raw.Passed == nil || raw.Failed == nil || raw.Skipped == nil || raw.FailedToLoad == nil {
		return EngineReport{}, fmt.Errorf("result line %q is missing counters", truncate(line, 120))
	}
	report.Total = *raw.Total
	report.Passed = *raw.Passed
	report.Failed = *raw.Failed
	report.Skipped = *raw.Skipped
	report.FailedToLoad = *raw.FailedToLoad
	return report, nil
}

func lastLine(output []byte) []byte {
	lines := bytes.Split(output, []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) > 0 {
			return line
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// OutcomeCounters accumulates outcomes. Total and the four assertion
// categories come from completed groups; VMError and Crashed count groups.
type OutcomeCounters struct {
	Total        int `json:"total"`
	Passed       int `json:"passed"`
	Failed       int `json:"failed"`
	Skipped      int `json:"skipped"`
	FailedToLoad int `json:"failed_to_load"`
	VMError      int `json:"vm_errors"`
	Crashed      int `json:"crashes"`
}

// Add returns the elementwise sum of c and o.
func (c OutcomeCounters) Add(o OutcomeCounters) OutcomeCounters {
	return OutcomeCounters{
		Total:        c.Total + o.Total,
		Passed:       c.Passed + o.Passed,
		Failed:       c.Failed + o.Failed,
		Skipped:      c.Skipped + o.Skipped,
		FailedToLoad: c.FailedToLoad + o.FailedToLoad,
		VMError:      c.VMError + o.VMError,
		Crashed:      c.Crashed + o.Crashed,
	}
}

// Consistent reports whether the assertion categories add up to Total.
func (c OutcomeCounters) Consistent() bool {
	return c.Passed+c.Failed+c.Skipped+c.FailedToLoad == c.Total
}

func (c OutcomeCounters) String() string {
	return fmt.Sprintf("total=%d passed=%d failed=%d skipped=%d failed_to_load=%d vm_errors=%d crashes=%d",
		c.Total, c.Passed, c.Failed, c.Skipped, c.FailedToLoad, c.VMError, c.Crashed)
}
