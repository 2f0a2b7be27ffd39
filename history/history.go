// Package history persists completed sweeps so consecutive runs over the same
// corpus can be compared.
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wasvm/wasm-acceptor/types"
)

// DSN schemes understood by Open.
const (
	SchemeSQLite     = "sqlite://"
	SchemePostgres   = "postgres://"
	SchemePostgreSQL = "postgresql://"
)

// Run is one recorded sweep.
type Run struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Digest    string // corpus digest; runs are only compared within a digest
	Engine    string
	Groups    int
	Counters  types.OutcomeCounters
}

// GroupOutcome is the stored outcome of one group within a run.
type GroupOutcome struct {
	Name   string
	Status types.GroupStatus
	Reason string
	Report types.EngineReport
}

// NewGroupOutcome keeps the parts of a result worth storing.
func NewGroupOutcome(r *types.GroupResult) GroupOutcome {
	return GroupOutcome{
		Name:   r.Group.Name,
		Status: r.Status,
		Reason: r.Reason,
		Report: r.Report,
	}
}

// Store records runs and their group outcomes.
type Store interface {
	// RecordRun stores a run and its groups atomically.
	RecordRun(ctx context.Context, run Run, groups []GroupOutcome) error
	// LastRun returns the most recent run for digest, or for any digest when
	// digest is empty. It returns nil, nil when nothing matches.
	LastRun(ctx context.Context, digest string) (*Run, error)
	// Groups returns the group outcomes of a run sorted by name.
	Groups(ctx context.Context, runID string) ([]GroupOutcome, error)
	// Runs lists runs newest first; limit <= 0 means no limit.
	Runs(ctx context.Context, limit int) ([]Run, error)
	Close() error
}

var ErrUnsupportedDSN = errors.New("unsupported history DSN")

// Open connects to the store named by dsn: sqlite://<path> or a postgres URL.
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case strings.HasPrefix(dsn, SchemeSQLite):
		path := strings.TrimPrefix(dsn, SchemeSQLite)
		if path == "" {
			return nil, fmt.Errorf("%w: missing sqlite path in %q", ErrUnsupportedDSN, dsn)
		}
		return OpenSQLite(ctx, path)
	case strings.HasPrefix(dsn, SchemePostgres), strings.HasPrefix(dsn, SchemePostgreSQL):
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("%w: %q (want sqlite:// or postgres://)", ErrUnsupportedDSN, redact(dsn))
	}
}

// redact hides credentials in error messages.
func redact(dsn string) string {
	if i := strings.Index(dsn, "@"); i >= 0 {
		if j := strings.Index(dsn, "://"); j >= 0 && j < i {
			return dsn[:j+3] + "***" + dsn[i:]
		}
	}
	return dsn
}

// Regressions lists the groups that passed in prev and did not pass in cur.
// Groups missing from either side are ignored.
func Regressions(prev, cur []GroupOutcome) []types.Regression {
	before := make(map[string]types.GroupStatus, len(prev))
	for _, g := range prev {
		before[g.Name] = g.Status
	}
	var out []types.Regression
	for _, g := range cur {
		was, ok := before[g.Name]
		if !ok || was != types.GroupStatusPassed || g.Status == types.GroupStatusPassed {
			continue
		}
		out = append(out, types.Regression{Group: g.Name, Previous: was, Current: g.Status})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Group < out[j].Group })
	return out
}

// CompareWithLast loads the last run recorded for digest and returns the
// regressions of cur against it. It returns no regressions when there is no
// earlier run.
func CompareWithLast(ctx context.Context, store Store, digest string, cur []GroupOutcome) (*Run, []types.Regression, error) {
	last, err := store.LastRun(ctx, digest)
	if err != nil || last == nil {
		return nil, nil, err
	}
	prev, err := store.Groups(ctx, last.ID)
	if err != nil {
		return last, nil, err
	}
	return last, Regressions(prev, cur), nil
}
