package storex

import (
	"fmt"

	"github.com/storexkit/storex-go/statemap"
)

// HandlerFunc transforms one feature substate in response to a single action
// type. Handlers must be pure: no in-place mutation, and the input reference
// returned unchanged when there is nothing to do.
type HandlerFunc func(state any, action Action) any

// HandlerBinding pairs an action type with its handler inside a reducer's
// dispatch table.
type HandlerBinding struct {
	ActionType string
	Handler    HandlerFunc
}

// On binds handler to actions of type actionType.
func On(actionType string, handler HandlerFunc) HandlerBinding {
	return HandlerBinding{ActionType: actionType, Handler: handler}
}

// OnTyped binds a handler operating on a concrete substate type S. The
// binding panics at reduce time when the stored substate is not an S, which
// surfaces a broken reducer contract at its source instead of downstream.
func OnTyped[S any](actionType string, handler func(state S, action Action) any) HandlerBinding {
	return On(actionType, func(state any, action Action) any {
		typed, ok := state.(S)
		if !ok {
			panic(fmt.Sprintf("handler for %q expects substate of type %T, got %T", actionType, typed, state))
		}
		return handler(typed, action)
	})
}

// Reducer computes a feature's substate transitions. Initial declares the
// substate that seeds the feature at registration. Reduce must preserve
// reference identity for actions it does not handle.
type Reducer interface {
	Initial() any
	Reduce(state any, action Action) any
}

type tableReducer struct {
	initial  any
	handlers map[string]HandlerFunc
}

// CreateReducer builds a table-driven reducer from an explicit action-type
// lookup table. Unknown action types hit the default branch and return the
// substate unchanged. The initial substate is converted to its canonical
// persistent representation once, here at the edge; reducers never see plain
// maps or slices. A later binding for the same action type replaces an
// earlier one.
func CreateReducer(initial any, bindings ...HandlerBinding) Reducer {
	handlers := make(map[string]HandlerFunc, len(bindings))
	for _, binding := range bindings {
		handlers[binding.ActionType] = binding.Handler
	}

	return &tableReducer{
		initial:  statemap.ToCanonical(initial),
		handlers: handlers,
	}
}

func (r *tableReducer) Initial() any {
	return r.initial
}

func (r *tableReducer) Reduce(state any, action Action) any {
	handler, found := r.handlers[action.Type]
	if !found {
		return state
	}

	return handler(state, action)
}

var _ Reducer = (*tableReducer)(nil)
