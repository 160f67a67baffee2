package entity

import (
	"github.com/benbjohnson/immutable"
)

// SelectIDs projects a collection into its ordered []string of ids. A value
// without the collection shape yields nil.
func SelectIDs() func(state any) any {
	return func(state any) any {
		coll, err := (&Adapter{}).open(state)
		if err != nil {
			return nil
		}

		ids := make([]string, 0, coll.ids.Len())
		itr := coll.ids.Iterator()
		for !itr.Done() {
			_, v := itr.Next()
			if id, ok := v.(string); ok {
				ids = append(ids, id)
			}
		}

		return ids
	}
}

// SelectEntities projects a collection into its id-to-entity map. The
// canonical map is returned as-is, so downstream shallow memoization sees an
// identical reference while the entities are untouched.
func SelectEntities() func(state any) any {
	return func(state any) any {
		coll, err := (&Adapter{}).open(state)
		if err != nil {
			return nil
		}

		return coll.entities
	}
}

// SelectAll projects a collection into its entities in id order.
func SelectAll() func(state any) any {
	return func(state any) any {
		coll, err := (&Adapter{}).open(state)
		if err != nil {
			return nil
		}

		all := make([]any, 0, coll.ids.Len())
		itr := coll.ids.Iterator()
		for !itr.Done() {
			_, v := itr.Next()
			id, ok := v.(string)
			if !ok {
				continue
			}
			if entity, found := coll.entities.Get(id); found {
				all = append(all, entity)
			}
		}

		return all
	}
}

// SelectTotal projects a collection into its entity count.
func SelectTotal() func(state any) any {
	return func(state any) any {
		coll, err := (&Adapter{}).open(state)
		if err != nil {
			return nil
		}

		return coll.entities.Len()
	}
}

// Entities returns the raw entity map of a collection state, or false when
// the value is not a collection.
func Entities(state any) (*immutable.Map[string, any], bool) {
	coll, err := (&Adapter{}).open(state)
	if err != nil {
		return nil, false
	}

	return coll.entities, true
}
