// Package storex implements an in-process unidirectional state container.
//
// A Store owns a single immutable root state map keyed by feature. Callers
// change state exclusively through Dispatch: the action passes through the
// middleware pipeline, reaches the reduce step where every registered
// feature reducer computes its next substate, and the root is replaced
// wholesale with structural sharing. Subscribers observe transitions through
// Select, effects react to the action stream and may redispatch, and
// middleware intercepts dispatch on the way in and out.
//
// Reducers must be pure and must return the substate reference they received
// when an action does not concern them; the reduce step relies on reference
// identity to keep unaffected branches of the root untouched across
// transitions.
//
// Dispatch, reduce, and selector evaluation are synchronous. Dispatching the
// same store from multiple goroutines requires external serialization;
// state replacement itself is guarded, so a reader always sees one
// consistent snapshot even while deferred middleware timers or effect
// completions re-enter Dispatch from another goroutine.
package storex
