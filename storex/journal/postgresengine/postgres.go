package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/storexkit/storex-go/storex/journal"
	"github.com/storexkit/storex-go/storex/journal/postgresengine/internal/adapters"
)

const (
	defaultTableName = "action_journal"

	colSequenceNumber = "sequence_number"
	colActionType     = "action_type"
	colPayload        = "payload"
	colOccurredAt     = "occurred_at"

	dialectPostgres = "postgres"
)

type sqlQueryString = string

// Journal is the Postgres-backed journal engine. The zero value is not
// usable; construct one with NewJournalFromPGXPool, NewJournalFromSQLX, or
// NewJournalFromSQLDB.
type Journal struct {
	db        adapters.DBAdapter
	tableName string

	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
}

// NewJournalFromPGXPool builds a journal engine over a pgx connection pool.
func NewJournalFromPGXPool(pool *pgxpool.Pool, opts ...Option) (Journal, error) {
	if pool == nil {
		return Journal{}, journal.ErrNilDatabaseHandle
	}

	return newJournal(adapters.NewPGXAdapter(pool), opts...)
}

// NewJournalFromSQLX builds a journal engine over an sqlx handle.
func NewJournalFromSQLX(db *sqlx.DB, opts ...Option) (Journal, error) {
	if db == nil {
		return Journal{}, journal.ErrNilDatabaseHandle
	}

	return newJournal(adapters.NewSQLXAdapter(db), opts...)
}

// NewJournalFromSQLDB builds a journal engine over a database/sql handle;
// lib/pq is the registered driver for this path.
func NewJournalFromSQLDB(db *sql.DB, opts ...Option) (Journal, error) {
	if db == nil {
		return Journal{}, journal.ErrNilDatabaseHandle
	}

	return newJournal(adapters.NewSQLAdapter(db), opts...)
}

func newJournal(db adapters.DBAdapter, opts ...Option) (Journal, error) {
	j := Journal{
		db:        db,
		tableName: defaultTableName,
	}

	for _, opt := range opts {
		if err := opt(&j); err != nil {
			return Journal{}, err
		}
	}

	return j, nil
}

// Append stores one validated record; the sequence number is assigned by the
// table's identity column.
func (j Journal) Append(ctx context.Context, record journal.Record) error {
	if validateErr := record.Validate(); validateErr != nil {
		return errors.Join(journal.ErrAppendFailed, validateErr)
	}

	ctx, span := j.startSpan(ctx, spanNameAppend, record.ActionType)

	sqlQuery, buildErr := j.buildInsertQuery(record)
	if buildErr != nil {
		j.finishSpan(span, statusError, buildErr)
		j.logError(ctx, logMsgBuildInsertFailed, buildErr, logAttrActionType, record.ActionType)

		return buildErr
	}

	start := time.Now()
	result, execErr := j.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	j.logSQL(ctx, operationAppend, sqlQuery, duration)

	if execErr != nil {
		j.recordOperation(ctx, operationAppend, statusError, duration)
		j.finishSpan(span, statusError, execErr)
		j.logError(ctx, logMsgAppendExecFailed, execErr, logAttrActionType, record.ActionType)

		return errors.Join(journal.ErrAppendFailed, execErr)
	}

	if _, affectedErr := result.RowsAffected(); affectedErr != nil {
		j.recordOperation(ctx, operationAppend, statusError, duration)
		j.finishSpan(span, statusError, affectedErr)
		j.logError(ctx, logMsgRowsAffectedFailed, affectedErr)

		return errors.Join(journal.ErrAppendFailed, affectedErr)
	}

	j.recordOperation(ctx, operationAppend, statusSuccess, duration)
	j.finishSpan(span, statusSuccess, nil)
	j.logOperation(ctx, logMsgRecordAppended,
		logAttrActionType, record.ActionType,
		logAttrDurationMS, durationToMilliseconds(duration))

	return nil
}

// Replay returns the records matching query in sequence order.
func (j Journal) Replay(ctx context.Context, query journal.Query) ([]journal.Record, error) {
	ctx, span := j.startSpan(ctx, spanNameReplay, "")

	sqlQuery, buildErr := j.buildSelectQuery(query)
	if buildErr != nil {
		j.finishSpan(span, statusError, buildErr)
		j.logError(ctx, logMsgBuildSelectFailed, buildErr)

		return nil, buildErr
	}

	start := time.Now()
	rows, queryErr := j.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	j.logSQL(ctx, operationReplay, sqlQuery, duration)

	if queryErr != nil {
		j.recordOperation(ctx, operationReplay, statusError, duration)
		j.finishSpan(span, statusError, queryErr)
		j.logError(ctx, logMsgReplayQueryFailed, queryErr)

		return nil, errors.Join(journal.ErrReplayFailed, queryErr)
	}
	defer j.closeRows(ctx, rows)

	records, scanErr := j.scanRecords(rows)
	if scanErr != nil {
		j.recordOperation(ctx, operationReplay, statusError, duration)
		j.finishSpan(span, statusError, scanErr)

		return nil, scanErr
	}

	j.recordOperation(ctx, operationReplay, statusSuccess, duration)
	j.finishSpan(span, statusSuccess, nil)
	j.logOperation(ctx, logMsgRecordsReplayed,
		logAttrRecordCount, len(records),
		logAttrDurationMS, durationToMilliseconds(duration))

	return records, nil
}

func (j Journal) scanRecords(rows adapters.DBRows) ([]journal.Record, error) {
	records := make([]journal.Record, 0)

	for rows.Next() {
		var (
			sequenceNumber int64
			actionType     string
			payload        []byte
			occurredAt     time.Time
		)

		if scanErr := rows.Scan(&sequenceNumber, &actionType, &payload, &occurredAt); scanErr != nil {
			j.logError(context.Background(), logMsgScanRowFailed, scanErr)
			return nil, errors.Join(journal.ErrReplayFailed, scanErr)
		}

		record, buildErr := journal.BuildRecord(actionType, payload, occurredAt)
		if buildErr != nil {
			j.logError(context.Background(), logMsgBuildRecordFailed, buildErr, logAttrActionType, actionType)
			return nil, errors.Join(journal.ErrReplayFailed, buildErr)
		}
		record.SequenceNumber = journal.SequenceNumberUint(sequenceNumber)

		records = append(records, record)
	}

	return records, nil
}

func (j Journal) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		j.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

func (j Journal) buildInsertQuery(record journal.Record) (sqlQueryString, error) {
	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(j.tableName).
		Cols(colActionType, colPayload, colOccurredAt).
		Vals(goqu.Vals{record.ActionType, string(record.Payload), record.OccurredAt})

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(journal.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (j Journal) buildSelectQuery(query journal.Query) (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(j.tableName).
		Select(colSequenceNumber, colActionType, colPayload, colOccurredAt).
		Order(goqu.I(colSequenceNumber).Asc())

	if actionTypes := query.ActionTypes(); len(actionTypes) > 0 {
		selectStmt = selectStmt.Where(goqu.C(colActionType).In(actionTypes))
	}
	if from := query.OccurredFrom(); !from.IsZero() {
		selectStmt = selectStmt.Where(goqu.C(colOccurredAt).Gte(from))
	}
	if until := query.OccurredTo(); !until.IsZero() {
		selectStmt = selectStmt.Where(goqu.C(colOccurredAt).Lt(until))
	}
	if limit := query.Limit(); limit > 0 {
		selectStmt = selectStmt.Limit(limit)
	}

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(journal.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}
