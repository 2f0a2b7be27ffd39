package history

import (
	_ "embed"
	"strconv"
	"strings"
	"time"

	"github.com/wasvm/wasm-acceptor/types"
)

//go:embed schema.sql
var schemaSQL string

const (
	runColumns = `id, started_at, duration_ms, corpus_digest, engine, group_count,
		total, passed, failed, skipped, failed_to_load, vm_errors, crashes`

	// seq orders runs recorded within the same millisecond.
	insertRunSQL = `INSERT INTO runs (` + runColumns + `, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM runs))`

	insertGroupSQL = `INSERT INTO group_results
		(run_id, name, status, reason, total, passed, failed, skipped, failed_to_load)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	lastRunSQL = `SELECT ` + runColumns + ` FROM runs
		WHERE (? = '' OR corpus_digest = ?)
		ORDER BY started_at DESC, seq DESC LIMIT 1`

	runsSQL = `SELECT ` + runColumns + ` FROM runs
		ORDER BY started_at DESC, seq DESC`

	groupsSQL = `SELECT name, status, reason, total, passed, failed, skipped, failed_to_load
		FROM group_results WHERE run_id = ? ORDER BY name`
)

// rebind rewrites ? placeholders into the $n form postgres expects.
func rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func runArgs(r Run) []any {
	c := r.Counters
	return []any{
		r.ID, r.StartedAt.UnixMilli(), r.Duration.Milliseconds(), r.Digest, r.Engine, r.Groups,
		c.Total, c.Passed, c.Failed, c.Skipped, c.FailedToLoad, c.VMError, c.Crashed,
	}
}

func groupArgs(runID string, g GroupOutcome) []any {
	rep := g.Report
	return []any{
		runID, g.Name, string(g.Status), g.Reason,
		rep.Total, rep.Passed, rep.Failed, rep.Skipped, rep.FailedToLoad,
	}
}

// scanner is satisfied by both *sql.Row(s) and pgx.Row(s).
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r                   Run
		startedMS, duration int64
		c                   types.OutcomeCounters
	)
	err := s.Scan(&r.ID, &startedMS, &duration, &r.Digest, &r.Engine, &r.Groups,
		&c.Total, &c.Passed, &c.Failed, &c.Skipped, &c.FailedToLoad, &c.VMError, &c.Crashed)
	if err != nil {
		return Run{}, err
	}
	r.StartedAt = time.UnixMilli(startedMS).UTC()
	r.Duration = time.Duration(duration) * time.Millisecond
	r.Counters = c
	return r, nil
}

func scanGroup(s scanner) (GroupOutcome, error) {
	var (
		g      GroupOutcome
		status string
		rep    types.EngineReport
	)
	if err := s.Scan(&g.Name, &status, &g.Reason, &rep.Total, &rep.Passed, &rep.Failed, &rep.Skipped, &rep.FailedToLoad); err != nil {
		return GroupOutcome{}, err
	}
	g.Status = types.GroupStatus(status)
	if g.Status == types.GroupStatusVMError {
		rep.VMError = true
	}
	g.Report = rep
	return g, nil
}
