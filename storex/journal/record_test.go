package journal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_BuildRecord_Succeeds(t *testing.T) {
	// arrange
	occurredAt := time.Date(2025, time.March, 3, 14, 30, 0, 0, time.FixedZone("CET", 3600))

	// act
	record, err := BuildRecord("increment", json.RawMessage(`{"by":2}`), occurredAt)

	// assert
	require.NoError(t, err)
	assert.Equal(t, "increment", record.ActionType)
	assert.JSONEq(t, `{"by":2}`, string(record.Payload))
	assert.Equal(t, time.UTC, record.OccurredAt.Location())
	assert.True(t, record.OccurredAt.Equal(occurredAt))
	assert.Zero(t, record.SequenceNumber, "the engine assigns the sequence number on append")
}

func Test_BuildRecord_ValidationFailures(t *testing.T) {
	validTime := time.Date(2025, time.March, 3, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name        string
		actionType  string
		payload     json.RawMessage
		occurredAt  time.Time
		expectedErr error
	}{
		{
			name:        "empty action type",
			actionType:  "",
			payload:     json.RawMessage(`{}`),
			occurredAt:  validTime,
			expectedErr: ErrEmptyActionType,
		},
		{
			name:        "nil payload",
			actionType:  "increment",
			payload:     nil,
			occurredAt:  validTime,
			expectedErr: ErrInvalidPayloadJSON,
		},
		{
			name:        "malformed payload json",
			actionType:  "increment",
			payload:     json.RawMessage(`{"by":`),
			occurredAt:  validTime,
			expectedErr: ErrInvalidPayloadJSON,
		},
		{
			name:        "zero occurred-at time",
			actionType:  "increment",
			payload:     json.RawMessage(`{}`),
			occurredAt:  time.Time{},
			expectedErr: ErrZeroTime,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			record, err := BuildRecord(tc.actionType, tc.payload, tc.occurredAt)

			assert.ErrorIs(t, err, tc.expectedErr)
			assert.Equal(t, Record{}, record)
		})
	}
}

func Test_BuildQuery_SanitizesActionTypes(t *testing.T) {
	query := BuildQuery().
		WithActionTypes("increment", "", "decrement", "increment").
		Finalize()

	assert.Equal(t, []string{"decrement", "increment"}, query.ActionTypes())
}

func Test_BuildQuery_AssemblesAllClauses(t *testing.T) {
	from := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.FixedZone("CET", 3600))
	until := time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)

	query := BuildQuery().
		WithActionTypes("increment").
		OccurredFrom(from).
		OccurredUntil(until).
		WithLimit(50).
		Finalize()

	assert.Equal(t, []string{"increment"}, query.ActionTypes())
	assert.True(t, query.OccurredFrom().Equal(from))
	assert.Equal(t, time.UTC, query.OccurredFrom().Location())
	assert.True(t, query.OccurredTo().Equal(until))
	assert.Equal(t, uint(50), query.Limit())
}

func Test_BuildQuery_MatchingAnyActionIsTheZeroQuery(t *testing.T) {
	query := BuildQuery().WithActionTypes("ignored").MatchingAnyAction()

	assert.Equal(t, Query{}, query)
}
