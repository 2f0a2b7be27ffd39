package types

import (
	"path"
	"strings"
	"time"
)

// ProposalsDir is the corpus subdirectory holding per-proposal test groups.
const ProposalsDir = "proposals"

// TestGroup is one converted upstream test script: a manifest plus the module
// binaries it references.
type TestGroup struct {
	Name         string // slash separated, relative to the corpus root
	Dir          string // absolute directory of the group
	ManifestPath string // empty when the group has no manifest
	Proposal     string // proposal namespace, empty for core tests
}

// HasManifest reports whether the group has something to run.
func (g TestGroup) HasManifest() bool {
	return g.ManifestPath != ""
}

// BaseName returns the last element of the group name, which is also the
// manifest file name without extension.
func (g TestGroup) BaseName() string {
	return path.Base(g.Name)
}

// ProposalFromName extracts the proposal namespace from a group name such as
// "proposals/multi-memory/load".
func ProposalFromName(name string) string {
	parts := strings.Split(name, "/")
	if len(parts) >= 3 && parts[0] == ProposalsDir {
		return parts[1]
	}
	return ""
}

// GroupStatus is the group-level outcome of one engine run.
type GroupStatus string

const (
	GroupStatusPassed  GroupStatus = "passed"
	GroupStatusAnomaly GroupStatus = "anomaly"
	GroupStatusVMError GroupStatus = "vm_error"
	GroupStatusCrashed GroupStatus = "crashed"
)

// Crash reasons recorded alongside GroupStatusCrashed.
const (
	CrashReasonExit      = "exit"
	CrashReasonTimeout   = "timeout"
	CrashReasonMalformed = "malformed result"
	CrashReasonStart     = "start failed"
	CrashReasonCancelled = "cancelled"
)

// GroupResult captures what happened when a single group was executed.
type GroupResult struct {
	Group    TestGroup
	Status   GroupStatus
	Report   EngineReport // zero for crashed groups
	ExitCode int
	TimedOut bool
	Reason   string // crash reason, empty otherwise
	Duration time.Duration
	Stdout   string // tail of the engine's stdout
	Stderr   string
	Error    error
}

// Counters returns the group's contribution to the run aggregate.
func (r *GroupResult) Counters() OutcomeCounters {
	switch r.Status {
	case GroupStatusCrashed:
		return OutcomeCounters{Crashed: 1}
	case GroupStatusVMError:
		return OutcomeCounters{VMError: 1}
	default:
		return r.Report.Counters()
	}
}

// IsAnomaly reports whether the group deserves a line of its own in the
// report.
func (r *GroupResult) IsAnomaly() bool {
	return r.Status != GroupStatusPassed
}
