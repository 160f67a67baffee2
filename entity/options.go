package entity

import "errors"

// Option defines a functional option for configuring an Adapter.
type Option func(*Adapter) error

// WithIDSelector replaces the default "id"-field selector.
func WithIDSelector(selector IDSelector) Option {
	return func(a *Adapter) error {
		if selector == nil {
			return errors.New("id selector must not be nil")
		}
		a.idSelector = selector
		return nil
	}
}

// WithSortComparer keeps the id list ordered by comparing entities instead of
// insertion order.
func WithSortComparer(comparer SortComparer) Option {
	return func(a *Adapter) error {
		if comparer == nil {
			return errors.New("sort comparer must not be nil")
		}
		a.sortComparer = comparer
		return nil
	}
}
