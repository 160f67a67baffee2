package adapters

import (
	"context"
	"database/sql"
)

// SQLAdapter implements DBAdapter over a database/sql handle.
type SQLAdapter struct {
	db *sql.DB
}

// NewSQLAdapter wraps db.
func NewSQLAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db}
}

func (a *SQLAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return stdRows{rows: rows}, nil
}

func (a *SQLAdapter) Exec(ctx context.Context, query string) (DBResult, error) {
	result, err := a.db.ExecContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return stdResult{result: result}, nil
}

// stdRows and stdResult wrap the standard library types; the sqlx adapter
// reuses them since sqlx hands out the same underlying values.
type stdRows struct {
	rows *sql.Rows
}

func (r stdRows) Next() bool {
	return r.rows.Next()
}

func (r stdRows) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

func (r stdRows) Close() error {
	return r.rows.Close()
}

type stdResult struct {
	result sql.Result
}

func (r stdResult) RowsAffected() (int64, error) {
	return r.result.RowsAffected()
}

var _ DBAdapter = (*SQLAdapter)(nil)
