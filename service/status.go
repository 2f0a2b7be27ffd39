package service

import (
	"sync"
	"time"

	"github.com/wasvm/wasm-acceptor/types"
)

// RunState is the coarse state reported by /status.
type RunState string

const (
	RunStateIdle     RunState = "idle"
	RunStateRunning  RunState = "running"
	RunStateFinished RunState = "finished"
	RunStateFailed   RunState = "failed"
)

// Status is the JSON body of /status.
type Status struct {
	State      RunState               `json:"state"`
	RunID      string                 `json:"run_id,omitempty"`
	Digest     string                 `json:"corpus_digest,omitempty"`
	StartedAt  time.Time              `json:"started_at,omitempty"`
	FinishedAt time.Time              `json:"finished_at,omitempty"`
	Counters   *types.OutcomeCounters `json:"counters,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Runs       int                    `json:"runs"`
}

// StatusTracker records the progress of sweeps for the healthz server.
// It is safe for concurrent use.
type StatusTracker struct {
	mu     sync.RWMutex
	status Status
	now    func() time.Time
}

func NewStatusTracker() *StatusTracker {
	return &StatusTracker{status: Status{State: RunStateIdle}, now: time.Now}
}

// Begin marks the start of a sweep.
func (s *StatusTracker) Begin(runID, digest string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Status{
		State:     RunStateRunning,
		RunID:     runID,
		Digest:    digest,
		StartedAt: s.now(),
		Runs:      s.status.Runs,
	}
}

// Finish records the outcome of the current sweep. A non-nil err marks the
// sweep as failed; counters are kept when available.
func (s *StatusTracker) Finish(counters *types.OutcomeCounters, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.FinishedAt = s.now()
	s.status.Runs++
	if counters != nil {
		c := *counters
		s.status.Counters = &c
	}
	if err != nil {
		s.status.State = RunStateFailed
		s.status.Error = err.Error()
		return
	}
	s.status.State = RunStateFinished
}

// Snapshot returns a copy of the current status.
func (s *StatusTracker) Snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	if st.Counters != nil {
		c := *st.Counters
		st.Counters = &c
	}
	return st
}
