// Package entity provides normalized id/entity collections over the canonical
// state representation, for feature substates that hold many records of one
// kind.
//
// A collection is a canonical map with three keys: "ids" (ordered
// *immutable.List of string ids), "entities" (*immutable.Map from id to
// entity), and "lastTouched" (a touch record stamped on every effective
// write). All operations are pure with structural sharing; an operation that
// changes nothing returns the input state reference unchanged, so reducers
// built on an Adapter keep the container's identity contract for free.
package entity

import (
	"errors"
	"fmt"
	"sort"

	"github.com/benbjohnson/immutable"
	"github.com/google/uuid"

	"github.com/storexkit/storex-go/statemap"
)

const (
	// StateKeyIDs holds the ordered id list.
	StateKeyIDs = "ids"
	// StateKeyEntities holds the id-to-entity map.
	StateKeyEntities = "entities"
	// StateKeyLastTouched holds the touch record of the last effective write.
	StateKeyLastTouched = "lastTouched"

	touchKeyID  = "touchId"
	touchKeyOp  = "op"
	touchKeyIDs = "ids"

	opAdd    = "add"
	opSet    = "set"
	opUpdate = "update"
	opUpsert = "upsert"
	opRemove = "remove"
)

var (
	// ErrMissingEntityID is returned when the id selector cannot produce an
	// id for an entity.
	ErrMissingEntityID = errors.New("entity has no id")

	// ErrInvalidCollectionState is returned when a state value does not have
	// the collection shape this package produces.
	ErrInvalidCollectionState = errors.New("state is not an entity collection")
)

// IDSelector extracts the identifying key of an entity. The boolean reports
// whether an id could be derived.
type IDSelector func(entity any) (string, bool)

// SortComparer orders two entities. Negative means a before b. When an
// Adapter carries a comparer, the id list is kept in comparer order after
// every membership or content change; otherwise ids keep insertion order.
type SortComparer func(a, b any) int

// Adapter builds and manipulates one normalized collection shape. Construct
// with NewAdapter; the zero value has no id selector and rejects every write.
type Adapter struct {
	idSelector   IDSelector
	sortComparer SortComparer
}

// NewAdapter creates an Adapter. Without WithIDSelector, ids are read from
// the entity's "id" field (native or canonical map) and rendered with fmt.
func NewAdapter(opts ...Option) (*Adapter, error) {
	a := &Adapter{
		idSelector: defaultIDSelector,
	}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	return a, nil
}

func defaultIDSelector(entity any) (string, bool) {
	switch e := entity.(type) {
	case map[string]any:
		if id, ok := e["id"]; ok && id != nil {
			return fmt.Sprint(id), true
		}
	case *immutable.Map[string, any]:
		if id, ok := e.Get("id"); ok && id != nil {
			return fmt.Sprint(id), true
		}
	}

	return "", false
}

// InitialState builds an empty collection. Extra key/value maps are merged in
// after the collection keys, so features can carry flags or cursors alongside
// the collection.
func (a *Adapter) InitialState(extra ...map[string]any) *immutable.Map[string, any] {
	b := immutable.NewMapBuilder[string, any](nil)
	b.Set(StateKeyIDs, immutable.NewList[any]())
	b.Set(StateKeyEntities, immutable.NewMap[string, any](nil))
	b.Set(StateKeyLastTouched, nil)

	for _, m := range extra {
		for k, v := range m {
			b.Set(k, statemap.ToCanonical(v))
		}
	}

	return b.Map()
}

// AddOne inserts entity when its id is not yet in the collection; an existing
// id leaves the state untouched.
func (a *Adapter) AddOne(state any, entity any) (any, error) {
	return a.addMany(state, []any{entity}, opAdd)
}

// AddMany inserts the entities whose ids are not yet present. Duplicate ids
// within the batch keep the last occurrence.
func (a *Adapter) AddMany(state any, entities []any) (any, error) {
	return a.addMany(state, entities, opAdd)
}

func (a *Adapter) addMany(state any, entities []any, op string) (any, error) {
	coll, err := a.open(state)
	if err != nil {
		return state, err
	}

	batch, err := a.uniqueByID(entities)
	if err != nil {
		return state, err
	}

	var touched []string
	for _, item := range batch {
		if _, exists := coll.entities.Get(item.id); exists {
			continue
		}
		coll.entities = coll.entities.Set(item.id, item.entity)
		coll.ids = coll.ids.Append(item.id)
		touched = append(touched, item.id)
	}

	if len(touched) == 0 {
		return state, nil
	}

	return a.commit(coll, op, touched), nil
}

// SetAll replaces the whole collection with the given entities.
func (a *Adapter) SetAll(state any, entities []any) (any, error) {
	coll, err := a.open(state)
	if err != nil {
		return state, err
	}

	batch, err := a.uniqueByID(entities)
	if err != nil {
		return state, err
	}

	coll.ids = immutable.NewList[any]()
	coll.entities = immutable.NewMap[string, any](nil)

	touched := make([]string, 0, len(batch))
	for _, item := range batch {
		coll.entities = coll.entities.Set(item.id, item.entity)
		coll.ids = coll.ids.Append(item.id)
		touched = append(touched, item.id)
	}

	return a.commit(coll, opSet, touched), nil
}

// UpdateOne merges patch into the entity with the same id; a missing id or a
// merge that changes nothing leaves the state untouched.
func (a *Adapter) UpdateOne(state any, patch any) (any, error) {
	return a.updateMany(state, []any{patch})
}

// UpdateMany merges each patch into its existing entity, ignoring ids that
// are not in the collection.
func (a *Adapter) UpdateMany(state any, patches []any) (any, error) {
	return a.updateMany(state, patches)
}

func (a *Adapter) updateMany(state any, patches []any) (any, error) {
	coll, err := a.open(state)
	if err != nil {
		return state, err
	}

	var touched []string
	for _, patch := range patches {
		id, ok := a.idSelector(patch)
		if !ok {
			return state, ErrMissingEntityID
		}

		old, exists := coll.entities.Get(id)
		if !exists {
			continue
		}

		merged := mergeEntity(old, statemap.ToCanonical(patch))
		if statemap.DeepEqual(merged, old) {
			continue
		}

		coll.entities = coll.entities.Set(id, merged)
		touched = append(touched, id)
	}

	if len(touched) == 0 {
		return state, nil
	}

	return a.commit(coll, opUpdate, touched), nil
}

// UpsertOne updates the entity when its id exists and adds it otherwise.
func (a *Adapter) UpsertOne(state any, entity any) (any, error) {
	return a.UpsertMany(state, []any{entity})
}

// UpsertMany updates existing entities and adds the rest. Duplicate ids
// within the batch keep the last occurrence.
func (a *Adapter) UpsertMany(state any, entities []any) (any, error) {
	coll, err := a.open(state)
	if err != nil {
		return state, err
	}

	batch, err := a.uniqueByID(entities)
	if err != nil {
		return state, err
	}

	var touched []string
	for _, item := range batch {
		old, exists := coll.entities.Get(item.id)
		if !exists {
			coll.entities = coll.entities.Set(item.id, item.entity)
			coll.ids = coll.ids.Append(item.id)
			touched = append(touched, item.id)
			continue
		}

		merged := mergeEntity(old, item.entity)
		if statemap.DeepEqual(merged, old) {
			continue
		}
		coll.entities = coll.entities.Set(item.id, merged)
		touched = append(touched, item.id)
	}

	if len(touched) == 0 {
		return state, nil
	}

	return a.commit(coll, opUpsert, touched), nil
}

// RemoveOne deletes the entity with the given id; a missing id leaves the
// state untouched.
func (a *Adapter) RemoveOne(state any, id string) (any, error) {
	return a.RemoveMany(state, []string{id})
}

// RemoveMany deletes the entities with the given ids, ignoring unknown ids.
func (a *Adapter) RemoveMany(state any, ids []string) (any, error) {
	coll, err := a.open(state)
	if err != nil {
		return state, err
	}

	removed := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, exists := coll.entities.Get(id); !exists {
			continue
		}
		coll.entities = coll.entities.Delete(id)
		removed[id] = true
	}

	if len(removed) == 0 {
		return state, nil
	}

	kept := immutable.NewListBuilder[any]()
	touched := make([]string, 0, len(removed))
	itr := coll.ids.Iterator()
	for !itr.Done() {
		_, v := itr.Next()
		id, _ := v.(string)
		if removed[id] {
			touched = append(touched, id)
			continue
		}
		kept.Append(v)
	}
	coll.ids = kept.List()

	return a.commit(coll, opRemove, touched), nil
}

// RemoveAll empties the collection. An already empty collection is returned
// untouched.
func (a *Adapter) RemoveAll(state any) (any, error) {
	coll, err := a.open(state)
	if err != nil {
		return state, err
	}

	if coll.ids.Len() == 0 {
		return state, nil
	}

	touched := make([]string, 0, coll.ids.Len())
	itr := coll.ids.Iterator()
	for !itr.Done() {
		_, v := itr.Next()
		if id, ok := v.(string); ok {
			touched = append(touched, id)
		}
	}

	coll.ids = immutable.NewList[any]()
	coll.entities = immutable.NewMap[string, any](nil)

	return a.commit(coll, opRemove, touched), nil
}

// TouchID returns the uuid stamped by the last effective write, or false when
// the collection has never been written.
func TouchID(state any) (string, bool) {
	m, ok := state.(*immutable.Map[string, any])
	if !ok {
		return "", false
	}
	record, ok := m.Get(StateKeyLastTouched)
	if !ok || record == nil {
		return "", false
	}
	touch, ok := record.(*immutable.Map[string, any])
	if !ok {
		return "", false
	}
	id, ok := touch.Get(touchKeyID)
	if !ok {
		return "", false
	}
	s, ok := id.(string)

	return s, ok
}

/***** internals *****/

// collection is the unpacked mutable view of one state value; commit packs it
// back into a fresh canonical map.
type collection struct {
	state    *immutable.Map[string, any]
	ids      *immutable.List[any]
	entities *immutable.Map[string, any]
}

func (a *Adapter) open(state any) (collection, error) {
	m, ok := state.(*immutable.Map[string, any])
	if !ok {
		return collection{}, ErrInvalidCollectionState
	}

	rawIDs, ok := m.Get(StateKeyIDs)
	if !ok {
		return collection{}, ErrInvalidCollectionState
	}
	ids, ok := rawIDs.(*immutable.List[any])
	if !ok {
		return collection{}, ErrInvalidCollectionState
	}

	rawEntities, ok := m.Get(StateKeyEntities)
	if !ok {
		return collection{}, ErrInvalidCollectionState
	}
	entities, ok := rawEntities.(*immutable.Map[string, any])
	if !ok {
		return collection{}, ErrInvalidCollectionState
	}

	return collection{state: m, ids: ids, entities: entities}, nil
}

func (a *Adapter) commit(coll collection, op string, touched []string) *immutable.Map[string, any] {
	if a.sortComparer != nil {
		coll.ids = a.sortIDs(coll)
	}

	touchedIDs := immutable.NewListBuilder[any]()
	for _, id := range touched {
		touchedIDs.Append(id)
	}

	touch := immutable.NewMapBuilder[string, any](nil)
	touch.Set(touchKeyID, uuid.NewString())
	touch.Set(touchKeyOp, op)
	touch.Set(touchKeyIDs, touchedIDs.List())

	next := coll.state.Set(StateKeyIDs, coll.ids)
	next = next.Set(StateKeyEntities, coll.entities)
	next = next.Set(StateKeyLastTouched, touch.Map())

	return next
}

func (a *Adapter) sortIDs(coll collection) *immutable.List[any] {
	ids := make([]string, 0, coll.ids.Len())
	itr := coll.ids.Iterator()
	for !itr.Done() {
		_, v := itr.Next()
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}

	sort.SliceStable(ids, func(i, k int) bool {
		left, _ := coll.entities.Get(ids[i])
		right, _ := coll.entities.Get(ids[k])
		return a.sortComparer(left, right) < 0
	})

	b := immutable.NewListBuilder[any]()
	for _, id := range ids {
		b.Append(id)
	}

	return b.List()
}

type identified struct {
	id     string
	entity any
}

// uniqueByID canonicalizes a batch and deduplicates it, keeping the last
// occurrence per id in first-seen order.
func (a *Adapter) uniqueByID(entities []any) ([]identified, error) {
	order := make([]string, 0, len(entities))
	byID := make(map[string]any, len(entities))

	for _, entity := range entities {
		id, ok := a.idSelector(entity)
		if !ok {
			return nil, ErrMissingEntityID
		}
		if _, seen := byID[id]; !seen {
			order = append(order, id)
		}
		byID[id] = statemap.ToCanonical(entity)
	}

	batch := make([]identified, 0, len(order))
	for _, id := range order {
		batch = append(batch, identified{id: id, entity: byID[id]})
	}

	return batch, nil
}

// mergeEntity merges patch into old field-wise when both are canonical maps;
// any other pairing replaces the entity wholesale.
func mergeEntity(old, patch any) any {
	oldMap, oldOK := old.(*immutable.Map[string, any])
	patchMap, patchOK := patch.(*immutable.Map[string, any])
	if !oldOK || !patchOK {
		return patch
	}

	merged := oldMap
	itr := patchMap.Iterator()
	for !itr.Done() {
		k, v, _ := itr.Next()
		merged = merged.Set(k, v)
	}

	return merged
}
