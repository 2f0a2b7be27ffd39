package types

// ClassifyReport turns the report of an engine that exited cleanly into a
// group status.
func ClassifyReport(report EngineReport) GroupStatus {
	if report.VMError {
		return GroupStatusVMError
	}
	if report.AllPassed() && report.Consistent() {
		return GroupStatusPassed
	}
	return GroupStatusAnomaly
}
