package middleware

import (
	"context"
	"io"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/storexkit/storex-go/statemap"
	"github.com/storexkit/storex-go/storex"
)

const (
	logMsgPersistMarshalFailed = "persist stage failed to marshal state"
	logMsgPersistWriteFailed   = "persist stage failed to write to sink"
)

type persistRecord struct {
	ActionType string `json:"action_type"`
	Payload    any    `json:"payload"`
	State      any    `json:"state"`
}

// Persist writes one JSON line per matching successful dispatch to a sink:
// the action plus the post-dispatch root in native representation. With no
// types given, every action matches. Marshal and write failures are logged
// through the store's logger and never propagated; persistence must not
// block dispatch.
type Persist struct {
	sink  io.Writer
	types map[string]struct{}

	mu sync.Mutex
}

// NewPersist builds a persist stage writing to sink for the given action
// types.
func NewPersist(sink io.Writer, actionTypes ...string) *Persist {
	p := &Persist{sink: sink}
	if len(actionTypes) > 0 {
		p.types = make(map[string]struct{}, len(actionTypes))
		for _, actionType := range actionTypes {
			p.types[actionType] = struct{}{}
		}
	}

	return p
}

func (p *Persist) WrapDispatch(store *storex.Store, next storex.DispatchFunc) storex.DispatchFunc {
	return func(ctx context.Context, action storex.Action) (storex.Action, error) {
		out, err := next(ctx, action)
		if err != nil || !p.matches(out.Type) {
			return out, err
		}

		p.write(store, out)

		return out, nil
	}
}

func (p *Persist) matches(actionType string) bool {
	if storex.IsLifecycleType(actionType) {
		return false
	}
	if p.types == nil {
		return true
	}
	_, found := p.types[actionType]

	return found
}

func (p *Persist) write(store *storex.Store, action storex.Action) {
	record := persistRecord{
		ActionType: action.Type,
		Payload:    statemap.ToNative(action.Payload),
		State:      statemap.ToNative(store.Snapshot()),
	}

	data, marshalErr := jsoniter.ConfigFastest.Marshal(record)
	if marshalErr != nil {
		if logger := store.Logger(); logger != nil {
			logger.Error(logMsgPersistMarshalFailed,
				logAttrError, marshalErr.Error(),
				logAttrActionType, action.Type)
		}
		return
	}

	p.mu.Lock()
	_, writeErr := p.sink.Write(append(data, '\n'))
	p.mu.Unlock()

	if writeErr != nil {
		if logger := store.Logger(); logger != nil {
			logger.Error(logMsgPersistWriteFailed,
				logAttrError, writeErr.Error(),
				logAttrActionType, action.Type)
		}
	}
}

var _ storex.Middleware = (*Persist)(nil)
