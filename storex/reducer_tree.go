package storex

import (
	"sync"

	"github.com/storexkit/storex-go/statemap"
)

type featureEntry struct {
	key     string
	reducer Reducer
}

// reducerTree is the ordered feature registry plus the reduce walk over the
// root map. Registry mutations go through the store's registration methods;
// the walk itself runs on the serialized dispatch path.
type reducerTree struct {
	mu      sync.RWMutex
	entries []featureEntry
}

// add registers reducer under key. A key already in use keeps its position
// and has its reducer replaced in place.
func (t *reducerTree) add(key string, reducer Reducer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, entry := range t.entries {
		if entry.key == key {
			t.entries[i].reducer = reducer
			return
		}
	}

	t.entries = append(t.entries, featureEntry{key: key, reducer: reducer})
}

func (t *reducerTree) remove(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, entry := range t.entries {
		if entry.key == key {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return nil
		}
	}

	return ErrUnknownFeature
}

func (t *reducerTree) snapshot() []featureEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]featureEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// reduce computes the next root from prev. For each registered feature in
// registration order: an absent key falls back to the reducer's declared
// initial substate and is always written; a present key is rewritten only
// when the reducer returned a different reference, so unaffected branches
// keep their identity. Root keys with no registered feature are pruned,
// which lets the root shape follow the registry after a feature removal.
func (t *reducerTree) reduce(prev statemap.Root, action Action) statemap.Root {
	entries := t.snapshot()

	next := prev
	if next == nil {
		next = statemap.Empty()
	}

	registered := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		registered[entry.key] = struct{}{}

		current, present := statemap.Get(next, entry.key)
		if !present {
			current = entry.reducer.Initial()
		}

		result := entry.reducer.Reduce(current, action)
		if !present || !statemap.Identical(result, current) {
			next = statemap.Set(next, entry.key, result)
		}
	}

	if next.Len() > len(registered) {
		var stale []string
		itr := next.Iterator()
		for !itr.Done() {
			key, _, _ := itr.Next()
			if _, ok := registered[key]; !ok {
				stale = append(stale, key)
			}
		}
		for _, key := range stale {
			next = statemap.Delete(next, key)
		}
	}

	return next
}
