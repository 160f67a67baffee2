// Package statemap defines the canonical immutable representation of the
// container's state tree and the conversion and equality helpers applied at
// its edges.
//
// The root of every state tree is a persistent hash-array-mapped trie keyed by
// feature key. Writes copy only the touched path; unchanged branches keep
// their references across transitions, which is what makes the container's
// shallow memoization sound. Conversion into the canonical representation
// happens once, at input edges (initial feature states, adapter payloads) —
// never per reducer call. Conversion back to native Go containers happens at
// output edges (JSON export, logging).
package statemap

import (
	"reflect"

	"github.com/benbjohnson/immutable"
)

// Root is the canonical state-tree root: feature key to feature substate.
type Root = *immutable.Map[string, any]

// Empty returns the empty root.
func Empty() Root { return immutable.NewMap[string, any](nil) }

// Get returns the substate stored under key.
func Get(root Root, key string) (any, bool) {
	if root == nil {
		return nil, false
	}
	return root.Get(key)
}

// Set returns a root with key bound to value, sharing all other branches with
// the input.
func Set(root Root, key string, value any) Root {
	if root == nil {
		root = Empty()
	}
	return root.Set(key, value)
}

// Delete returns a root without key, sharing all other branches with the
// input.
func Delete(root Root, key string) Root {
	if root == nil {
		return Empty()
	}
	return root.Delete(key)
}

// ToCanonical deep-converts v into the canonical representation:
// map[string]any becomes *immutable.Map[string, any], []any becomes
// *immutable.List[any], everything else passes through untouched. Fresh
// structures are built batch-mutate-then-freeze through the immutable
// builders.
func ToCanonical(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		b := immutable.NewMapBuilder[string, any](nil)
		for k, item := range tv {
			b.Set(k, ToCanonical(item))
		}
		return b.Map()
	case []any:
		b := immutable.NewListBuilder[any]()
		for _, item := range tv {
			b.Append(ToCanonical(item))
		}
		return b.List()
	default:
		return v
	}
}

// ToNative deep-converts canonical values back into native Go containers.
func ToNative(v any) any {
	switch tv := v.(type) {
	case *immutable.Map[string, any]:
		out := make(map[string]any, tv.Len())
		itr := tv.Iterator()
		for !itr.Done() {
			k, item, _ := itr.Next()
			out[k] = ToNative(item)
		}
		return out
	case *immutable.List[any]:
		out := make([]any, 0, tv.Len())
		itr := tv.Iterator()
		for !itr.Done() {
			_, item := itr.Next()
			out = append(out, ToNative(item))
		}
		return out
	default:
		return v
	}
}

// DeepEqual reports structural equality, descending through canonical maps
// and lists as well as native maps, slices, and scalars. The two sides must
// use the same representation: a canonical map never equals a native one.
// Cyclic structures are out of scope.
func DeepEqual(a, b any) bool {
	if Identical(a, b) {
		return true
	}
	switch av := a.(type) {
	case *immutable.Map[string, any]:
		bv, ok := b.(*immutable.Map[string, any])
		if !ok || av.Len() != bv.Len() {
			return false
		}
		itr := av.Iterator()
		for !itr.Done() {
			k, item, _ := itr.Next()
			other, found := bv.Get(k)
			if !found || !DeepEqual(item, other) {
				return false
			}
		}
		return true
	case *immutable.List[any]:
		bv, ok := b.(*immutable.List[any])
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for i := 0; i < av.Len(); i++ {
			if !DeepEqual(av.Get(i), bv.Get(i)) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, item := range av {
			other, found := bv[k]
			if !found || !DeepEqual(item, other) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !DeepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

// Identical is the reference-identity predicate reducers are judged by.
// Pointers, maps, slices, channels, and funcs compare by data pointer;
// comparable scalars compare by value, which treats equal immutable scalars
// as the same reference for memoization purposes. Values of different
// dynamic types are never identical.
func Identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}
	switch ra.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return ra.Pointer() == rb.Pointer()
	case reflect.Slice:
		return ra.Pointer() == rb.Pointer() && ra.Len() == rb.Len()
	default:
		if !ra.Comparable() {
			return false
		}
		return a == b
	}
}
