package journal

import (
	"encoding/json"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var (
	// ErrEmptyActionType is returned when a record is built without an action type.
	ErrEmptyActionType = errors.New("action type must not be empty")

	// ErrInvalidPayloadJSON is returned when record payload JSON is malformed or missing.
	ErrInvalidPayloadJSON = errors.New("payload json is not valid")

	// ErrZeroTime is returned when a record is built with a zero occurred-at time.
	ErrZeroTime = errors.New("occurred-at time must not be zero")
)

// SequenceNumberUint is the journal's monotonically increasing position.
type SequenceNumberUint = uint

// Record is one journaled dispatch: the action's type and serialized payload
// plus the time the dispatch settled. The sequence number is assigned by the
// engine on append and is zero until the record is stored.
type Record struct {
	SequenceNumber SequenceNumberUint
	ActionType     string
	Payload        json.RawMessage
	OccurredAt     time.Time
}

// Validate ensures the record has valid data for storage operations.
func (r Record) Validate() error {
	if r.ActionType == "" {
		return ErrEmptyActionType
	}

	if !jsoniter.ConfigFastest.Valid(r.Payload) {
		return ErrInvalidPayloadJSON
	}

	if r.OccurredAt.IsZero() {
		return ErrZeroTime
	}

	return nil
}

// BuildRecord creates a new Record with validation. The occurred-at time is
// normalized to UTC.
func BuildRecord(actionType string, payload json.RawMessage, occurredAt time.Time) (Record, error) {
	record := Record{
		ActionType: actionType,
		Payload:    payload,
		OccurredAt: occurredAt.UTC(),
	}

	if err := record.Validate(); err != nil {
		return Record{}, err
	}

	return record, nil
}
