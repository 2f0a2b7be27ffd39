package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Store = (*PostgresStore)(nil)

// PostgresStore keeps history in a shared postgres database so that several
// acceptors can report into one place.
type PostgresStore struct {
	conn *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, uri string) (*PostgresStore, error) {
	conn, err := pgxpool.New(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	if _, err := conn.Exec(ctx, schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &PostgresStore{conn: conn}, nil
}

func (p *PostgresStore) RecordRun(ctx context.Context, run Run, groups []GroupOutcome) error {
	tx, err := p.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // no-op after commit
	}()

	if _, err := tx.Exec(ctx, rebind(insertRunSQL), runArgs(run)...); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	batch := &pgx.Batch{}
	q := rebind(insertGroupSQL)
	for _, g := range groups {
		batch.Queue(q, groupArgs(run.ID, g)...)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert groups of run %s: %w", run.ID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}
	return nil
}

func (p *PostgresStore) LastRun(ctx context.Context, digest string) (*Run, error) {
	r, err := scanRun(p.conn.QueryRow(ctx, rebind(lastRunSQL), digest, digest))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last run: %w", err)
	}
	return &r, nil
}

func (p *PostgresStore) Groups(ctx context.Context, runID string) ([]GroupOutcome, error) {
	rows, err := p.conn.Query(ctx, rebind(groupsSQL), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups of run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []GroupOutcome
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := runsSQL
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := p.conn.Query(ctx, rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Close() error {
	p.conn.Close()
	return nil
}
