package journal

import (
	"slices"
	"time"
)

/***** Query *****/

// Query selects journal records for replay. The zero query matches every
// record in sequence order.
type Query struct {
	actionTypes  []string
	occurredFrom time.Time
	occurredTo   time.Time
	limit        uint
}

func (q Query) ActionTypes() []string {
	return q.actionTypes
}

func (q Query) OccurredFrom() time.Time {
	return q.occurredFrom
}

func (q Query) OccurredTo() time.Time {
	return q.occurredTo
}

func (q Query) Limit() uint {
	return q.limit
}

/***** QueryBuilder *****/

// QueryBuilder assembles a Query; it must eventually be finalized with
// Finalize() or MatchingAnyAction().
type QueryBuilder interface {
	// WithActionTypes restricts the replay to the given action types.
	//
	// It sanitizes the input:
	//	- removing empty action types ("")
	//	- sorting the action types
	//	- removing duplicate action types
	WithActionTypes(actionType string, actionTypes ...string) QueryBuilder

	// OccurredFrom keeps records that occurred at or after t.
	OccurredFrom(t time.Time) QueryBuilder

	// OccurredUntil keeps records that occurred before t.
	OccurredUntil(t time.Time) QueryBuilder

	// WithLimit caps the number of replayed records; zero means no cap.
	WithLimit(n uint) QueryBuilder

	// Finalize returns the assembled Query.
	Finalize() Query

	// MatchingAnyAction directly creates the match-everything Query.
	MatchingAnyAction() Query
}

// queryBuilder implements QueryBuilder with value receivers.
type queryBuilder struct {
	query Query
}

// BuildQuery creates a QueryBuilder.
func BuildQuery() QueryBuilder {
	return queryBuilder{}
}

func (qb queryBuilder) WithActionTypes(actionType string, actionTypes ...string) QueryBuilder {
	all := append([]string{actionType}, actionTypes...)
	all = slices.DeleteFunc(all, func(t string) bool { return t == "" })
	slices.Sort(all)
	all = slices.Compact(all)
	all = slices.Clip(all)

	qb.query.actionTypes = append(qb.query.actionTypes, all...)

	return qb
}

func (qb queryBuilder) OccurredFrom(t time.Time) QueryBuilder {
	qb.query.occurredFrom = t.UTC()

	return qb
}

func (qb queryBuilder) OccurredUntil(t time.Time) QueryBuilder {
	qb.query.occurredTo = t.UTC()

	return qb
}

func (qb queryBuilder) WithLimit(n uint) QueryBuilder {
	qb.query.limit = n

	return qb
}

func (qb queryBuilder) Finalize() Query {
	return qb.query
}

func (qb queryBuilder) MatchingAnyAction() Query {
	return Query{}
}
