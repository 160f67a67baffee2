package storex

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by store operations. All wrapped errors remain
// matchable with errors.Is.
var (
	// ErrStoreTornDown rejects any operation on a store after Teardown.
	ErrStoreTornDown = errors.New("store has been torn down")

	// ErrEmptyFeatureKey rejects feature registration under an empty key.
	ErrEmptyFeatureKey = errors.New("feature key must not be empty")

	// ErrNilReducer rejects feature registration without a reducer.
	ErrNilReducer = errors.New("feature reducer must not be nil")

	// ErrUnknownFeature reports removal of a feature key that is not
	// registered.
	ErrUnknownFeature = errors.New("feature key is not registered")

	// ErrUnsupportedMiddleware reports a value passed to ApplyMiddleware
	// that fits none of the accepted middleware shapes.
	ErrUnsupportedMiddleware = errors.New("unsupported middleware shape")

	// ErrEmptyEffectModuleName rejects effect module registration without a
	// module name.
	ErrEmptyEffectModuleName = errors.New("effect module name must not be empty")

	// ErrDuplicateEffectModule reports registration of an effect module
	// under a name that is already registered.
	ErrDuplicateEffectModule = errors.New("effect module is already registered")

	// ErrUnknownEffectModule reports removal of an effect module that is
	// not registered.
	ErrUnknownEffectModule = errors.New("effect module is not registered")

	// ErrNilEffectSource rejects an effect whose stream factory is nil.
	ErrNilEffectSource = errors.New("effect source must not be nil")

	// ErrNilEffectStream reports an effect stream factory that returned nil.
	ErrNilEffectStream = errors.New("effect source returned a nil stream")
)

// DispatchError reports that a dispatch failed inside a middleware stage or
// the reduce step. It wraps the originating error.
type DispatchError struct {
	ActionType string
	Err        error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch of %q failed: %v", e.ActionType, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// PanicError wraps a panic recovered from a reducer, a middleware stage, or
// an effect stream factory.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("recovered panic: %v", e.Value)
}
