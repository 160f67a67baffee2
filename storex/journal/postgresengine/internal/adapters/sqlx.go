package adapters

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// SQLXAdapter implements DBAdapter over an sqlx handle.
type SQLXAdapter struct {
	db *sqlx.DB
}

// NewSQLXAdapter wraps db.
func NewSQLXAdapter(db *sqlx.DB) *SQLXAdapter {
	return &SQLXAdapter{db: db}
}

func (a *SQLXAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return stdRows{rows: rows}, nil
}

func (a *SQLXAdapter) Exec(ctx context.Context, query string) (DBResult, error) {
	result, err := a.db.ExecContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return stdResult{result: result}, nil
}

var _ DBAdapter = (*SQLXAdapter)(nil)
