package journal

import (
	"context"
	"errors"
)

var (
	// ErrAppendFailed is returned when the append operation fails in the engine.
	ErrAppendFailed = errors.New("appending journal record failed")

	// ErrReplayFailed is returned when the replay operation fails in the engine.
	ErrReplayFailed = errors.New("replaying journal records failed")

	// ErrBuildingQueryFailed is returned when an engine cannot render its SQL.
	ErrBuildingQueryFailed = errors.New("building journal query failed")

	// ErrNilDatabaseHandle rejects engine construction without a database handle.
	ErrNilDatabaseHandle = errors.New("database handle must not be nil")

	// ErrEmptyTableName rejects engine configuration with an empty table name.
	ErrEmptyTableName = errors.New("journal table name must not be empty")
)

// Journal is an append-only log of dispatched actions. Appends assign the
// next sequence number; replays return records in sequence order.
type Journal interface {
	Append(ctx context.Context, record Record) error
	Replay(ctx context.Context, query Query) ([]Record, error)
}
