package journal

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PG stores entries in Postgres through the pgx stdlib driver.
type PG struct {
	db *sql.DB
}

// OpenPG opens dsn with the pgx driver and checks the connection.
func OpenPG(ctx context.Context, dsn string) (*PG, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	return NewPG(db), nil
}

func NewPG(db *sql.DB) *PG { return &PG{db: db} }

// DB exposes the pool for migrations.
func (p *PG) DB() *sql.DB { return p.db }

func (p *PG) Close() error { return p.db.Close() }

func (p *PG) Append(ctx context.Context, e Entry) error {
	_, err := p.db.ExecContext(ctx, `
insert into journal_steps (id, run_id, operation, stage, status, request_id, caller_id, error, recorded_at)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.RunID, e.Operation, e.Stage, e.Status, e.RequestID, e.CallerID, e.Error, e.RecordedAt)
	if err != nil {
		return fmt.Errorf("journal: append: %w", err)
	}
	return nil
}

func (p *PG) Run(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
select id, run_id, operation, stage, status, request_id, caller_id, error, recorded_at
from journal_steps where run_id = $1 order by recorded_at, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.RunID, &e.Operation, &e.Stage, &e.Status,
			&e.RequestID, &e.CallerID, &e.Error, &e.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrUnknownRun
	}
	return out, nil
}
