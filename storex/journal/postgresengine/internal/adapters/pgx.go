package adapters

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGXAdapter implements DBAdapter over a pgxpool.Pool.
type PGXAdapter struct {
	pool *pgxpool.Pool
}

// NewPGXAdapter wraps pool.
func NewPGXAdapter(pool *pgxpool.Pool) *PGXAdapter {
	return &PGXAdapter{pool: pool}
}

func (a *PGXAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	rows, err := a.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	return &pgxRows{rows: rows}, nil
}

func (a *PGXAdapter) Exec(ctx context.Context, query string) (DBResult, error) {
	tag, err := a.pool.Exec(ctx, query)
	if err != nil {
		return nil, err
	}

	return pgxResult{tag: tag}, nil
}

type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool {
	return r.rows.Next()
}

func (r *pgxRows) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

// Close never fails for pgx; the error return satisfies DBRows.
func (r *pgxRows) Close() error {
	r.rows.Close()
	return nil
}

type pgxResult struct {
	tag pgconn.CommandTag
}

func (r pgxResult) RowsAffected() (int64, error) {
	return r.tag.RowsAffected(), nil
}

var _ DBAdapter = (*PGXAdapter)(nil)
