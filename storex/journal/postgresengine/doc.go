// Package postgresengine implements the action journal on Postgres.
//
// All SQL is rendered through goqu; the concrete database library (pgx pool,
// sqlx, or database/sql with lib/pq) stays behind a small internal adapter
// seam. Appends are unconditional — sequence numbers come from the table's
// identity column, and serialization of state transitions is the store's
// concern, not the journal's.
//
// Expected schema:
//
//	CREATE TABLE action_journal (
//	    sequence_number BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
//	    action_type     TEXT                     NOT NULL,
//	    payload         JSONB                    NOT NULL,
//	    occurred_at     TIMESTAMP WITH TIME ZONE NOT NULL
//	);
package postgresengine
