package middleware

import (
	"context"

	jsoniter "github.com/json-iterator/go"

	"github.com/storexkit/storex-go/statemap"
	"github.com/storexkit/storex-go/storex"
	"github.com/storexkit/storex-go/storex/journal"
)

const (
	logMsgJournalMarshalFailed = "journal stage failed to marshal action payload"
	logMsgJournalRecordFailed  = "journal stage failed to build record"
	logMsgJournalAppendFailed  = "journal stage failed to append record"
)

// Journal appends every matching successful dispatch to an action journal,
// after the inner dispatch settled. With no types given every domain action
// is journaled; store lifecycle actions are skipped unless listed explicitly.
// Append failures are logged and never propagated; journaling must not block
// dispatch.
type Journal struct {
	sink  journal.Journal
	types map[string]struct{}
}

// NewJournal builds a journal stage appending to sink for the given action
// types.
func NewJournal(sink journal.Journal, actionTypes ...string) *Journal {
	j := &Journal{sink: sink}
	if len(actionTypes) > 0 {
		j.types = make(map[string]struct{}, len(actionTypes))
		for _, actionType := range actionTypes {
			j.types[actionType] = struct{}{}
		}
	}

	return j
}

func (j *Journal) WrapDispatch(store *storex.Store, next storex.DispatchFunc) storex.DispatchFunc {
	return func(ctx context.Context, action storex.Action) (storex.Action, error) {
		out, err := next(ctx, action)
		if err != nil || !j.matches(out.Type) {
			return out, err
		}

		j.append(ctx, store, out)

		return out, nil
	}
}

func (j *Journal) matches(actionType string) bool {
	if j.types != nil {
		_, found := j.types[actionType]
		return found
	}

	return !storex.IsLifecycleType(actionType)
}

func (j *Journal) append(ctx context.Context, store *storex.Store, action storex.Action) {
	payload, marshalErr := jsoniter.ConfigFastest.Marshal(statemap.ToNative(action.Payload))
	if marshalErr != nil {
		j.logFailure(store, logMsgJournalMarshalFailed, marshalErr, action.Type)
		return
	}

	record, buildErr := journal.BuildRecord(action.Type, payload, store.Scheduler().Now())
	if buildErr != nil {
		j.logFailure(store, logMsgJournalRecordFailed, buildErr, action.Type)
		return
	}

	if appendErr := j.sink.Append(ctx, record); appendErr != nil {
		j.logFailure(store, logMsgJournalAppendFailed, appendErr, action.Type)
	}
}

func (j *Journal) logFailure(store *storex.Store, msg string, err error, actionType string) {
	if logger := store.Logger(); logger != nil {
		logger.Error(msg, logAttrError, err.Error(), logAttrActionType, actionType)
	}
}

var _ storex.Middleware = (*Journal)(nil)
