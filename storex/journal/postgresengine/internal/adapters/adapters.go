// Package adapters hides the concrete database libraries behind one small
// seam so the journal engine issues SQL without knowing whether a pgx pool,
// an sqlx handle, or a plain database/sql handle executes it.
package adapters

import "context"

// DBAdapter executes the journal engine's SQL.
type DBAdapter interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
}

// DBRows iterates a query's result rows.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
}

// DBResult reports the outcome of a statement execution.
type DBResult interface {
	RowsAffected() (int64, error)
}
