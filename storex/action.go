package storex

// Action is the unit of dispatch: a type tag plus an optional payload.
type Action struct {
	Type    string
	Payload any
}

// Creator returns an action creator producing payload-free actions of type
// actionType.
func Creator(actionType string) func() Action {
	return func() Action {
		return Action{Type: actionType}
	}
}

// CreatorOf returns an action creator producing actions of type actionType
// carrying a payload of type P.
func CreatorOf[P any](actionType string) func(P) Action {
	return func(payload P) Action {
		return Action{Type: actionType, Payload: payload}
	}
}

// Action types the store dispatches on its own behalf. Built-in timing
// middleware forwards them untouched.
const (
	// InitStoreType is the bootstrap action seeding every registered
	// feature's substate from its reducer's declared initial state.
	InitStoreType = "[Store] Init Store"

	// UpdateReducersType re-runs the reduce walk after the feature registry
	// changes shape, so subscribers observe the new root without a domain
	// action.
	UpdateReducersType = "[Store] Update Reducers"
)

// InitStore returns the bootstrap action dispatched when the root feature
// set is registered.
func InitStore() Action {
	return Action{Type: InitStoreType}
}

// UpdateReducers returns the shape-change action dispatched when a feature
// is added, replaced, or removed at runtime.
func UpdateReducers() Action {
	return Action{Type: UpdateReducersType}
}

// IsLifecycleType reports whether actionType belongs to the store itself.
func IsLifecycleType(actionType string) bool {
	return actionType == InitStoreType || actionType == UpdateReducersType
}
