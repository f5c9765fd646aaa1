package collection

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/exp/maps"

	"github.com/golang/glog"
)

// an ordered list of entities with o(1) lookup by client id and by
// persistent id.
// order is insertion order, or comparator order when a comparator is
// configured. All mutations run through the three phase event contract
// (see event.go).
//
// the list owns its members. Adding an entity that belongs to another list
// silently evicts it from that list first. Removed entities are fully
// detached: back reference cleared, change subscription removed, index
// entries deleted.
//
// the id index tracks the persistent id attribute reactively, so ids
// assigned or reassigned after membership begins stay resolvable.

// maps an entity to its sort key. Keys are compared as numbers when both
// sides are numeric, as strings when both sides are strings, and by their
// string form otherwise.
type ComparatorFunction func(entity *Entity) any

type EntityListSettings struct {
	// attribute that holds the persistent id
	IdAttribute string
	// when set, the list is kept in non-decreasing comparator order
	Comparator ComparatorFunction
	// materializes entities from attribute hashes.
	// when nil, plain entities are used and a warning is logged once.
	EntityFunction EntityFunction
	// persistence extension point. Defaults to immediate success.
	SyncFunction SyncFunction
}

func DefaultEntityListSettings() *EntityListSettings {
	return &EntityListSettings{
		IdAttribute:  "id",
		SyncFunction: NoopSyncFunction,
	}
}

type EntityList struct {
	settings *EntityListSettings

	stateLock        sync.Mutex
	entities         []*Entity
	clientIdEntities map[Id]*Entity
	idEntities       map[string]*Entity
	// change subscription unsubs per member
	changeUnsubs map[Id]func()

	addCallbacks         *CallbackList[AddEventFunction]
	afterAddCallbacks    *CallbackList[AddEventFunction]
	removeCallbacks      *CallbackList[RemoveEventFunction]
	afterRemoveCallbacks *CallbackList[RemoveEventFunction]
	resetCallbacks       *CallbackList[ResetEventFunction]
	afterResetCallbacks  *CallbackList[ResetEventFunction]
	// re-emitted member changes
	entityChangeCallbacks *CallbackList[EntityChangeFunction]

	warnNoEntityFunction sync.Once
}

func NewEntityListWithDefaults() *EntityList {
	return NewEntityList(DefaultEntityListSettings())
}

func NewEntityList(settings *EntityListSettings) *EntityList {
	return &EntityList{
		settings:              settings,
		entities:              []*Entity{},
		clientIdEntities:      map[Id]*Entity{},
		idEntities:            map[string]*Entity{},
		changeUnsubs:          map[Id]func(){},
		addCallbacks:          NewCallbackList[AddEventFunction](),
		afterAddCallbacks:     NewCallbackList[AddEventFunction](),
		removeCallbacks:       NewCallbackList[RemoveEventFunction](),
		afterRemoveCallbacks:  NewCallbackList[RemoveEventFunction](),
		resetCallbacks:        NewCallbackList[ResetEventFunction](),
		afterResetCallbacks:   NewCallbackList[ResetEventFunction](),
		entityChangeCallbacks: NewCallbackList[EntityChangeFunction](),
	}
}

// intent phase for add. The callback can `Prevent` the add.
func (self *EntityList) AddAddCallback(addCallback AddEventFunction) func() {
	callbackId := self.addCallbacks.Add(addCallback)
	return func() {
		self.addCallbacks.Remove(callbackId)
	}
}

func (self *EntityList) AddAfterAddCallback(addCallback AddEventFunction) func() {
	callbackId := self.afterAddCallbacks.Add(addCallback)
	return func() {
		self.afterAddCallbacks.Remove(callbackId)
	}
}

// intent phase for remove. The callback can `Prevent` the remove.
func (self *EntityList) AddRemoveCallback(removeCallback RemoveEventFunction) func() {
	callbackId := self.removeCallbacks.Add(removeCallback)
	return func() {
		self.removeCallbacks.Remove(callbackId)
	}
}

func (self *EntityList) AddAfterRemoveCallback(removeCallback RemoveEventFunction) func() {
	callbackId := self.afterRemoveCallbacks.Add(removeCallback)
	return func() {
		self.afterRemoveCallbacks.Remove(callbackId)
	}
}

// intent phase for refresh and sort. The callback can `Prevent` the reset.
func (self *EntityList) AddResetCallback(resetCallback ResetEventFunction) func() {
	callbackId := self.resetCallbacks.Add(resetCallback)
	return func() {
		self.resetCallbacks.Remove(callbackId)
	}
}

func (self *EntityList) AddAfterResetCallback(resetCallback ResetEventFunction) func() {
	callbackId := self.afterResetCallbacks.Add(resetCallback)
	return func() {
		self.afterResetCallbacks.Remove(callbackId)
	}
}

// member attribute changes, re-emitted through the list
func (self *EntityList) AddEntityChangeCallback(changeCallback EntityChangeFunction) func() {
	callbackId := self.entityChangeCallbacks.Add(changeCallback)
	return func() {
		self.entityChangeCallbacks.Remove(callbackId)
	}
}

// Add inserts one entity at its ordered position.
// returns `ErrDuplicateEntity` if the entity client id is already a member,
// and `ErrAddPrevented` if an intent callback prevents the add. On either
// outcome the list state is unchanged.
func (self *EntityList) Add(entity *Entity, options *EventOptions) (*Entity, error) {
	if options == nil {
		options = &EventOptions{}
	}

	index, err := func() (int, error) {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if _, ok := self.clientIdEntities[entity.clientId]; ok {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateEntity, entity.clientId)
		}
		return self.insertIndex(entity), nil
	}()
	if err != nil {
		return nil, err
	}

	if !options.Silent {
		event := &AddEvent{
			Entity:  entity,
			Index:   index,
			Payload: options.Payload,
		}
		for _, addCallback := range self.addCallbacks.Get() {
			addCallback(event)
		}
		if event.Prevented() {
			glog.V(2).Infof("[list]add prevented %s\n", entity.clientId)
			return nil, ErrAddPrevented
		}
	}

	index, err = self.addDefault(entity)
	if err != nil {
		return nil, err
	}

	if !options.Silent {
		event := &AddEvent{
			Entity:  entity,
			Index:   index,
			Payload: options.Payload,
		}
		for _, addCallback := range self.afterAddCallbacks.Get() {
			addCallback(event)
		}
	}

	return entity, nil
}

// AddAttrs materializes an entity from the attribute hash and adds it.
func (self *EntityList) AddAttrs(attrs map[string]any, options *EventOptions) (*Entity, error) {
	return self.Add(self.newEntity(attrs), options)
}

// AddAll adds each entity independently. A rejected entity does not stop
// the rest of the batch. The result separates added from rejected so that
// callers never see holes in a returned sequence.
func (self *EntityList) AddAll(entities []*Entity, options *EventOptions) *AddResult {
	result := &AddResult{}
	for _, entity := range slices.Clone(entities) {
		added, err := self.Add(entity, options)
		if err == nil {
			result.Added = append(result.Added, added)
		} else {
			result.Rejected = append(result.Rejected, &RejectedEntity{
				Entity: entity,
				Err:    err,
			})
		}
	}
	return result
}

type AddResult struct {
	Added    []*Entity
	Rejected []*RejectedEntity
}

type RemoveResult struct {
	Removed  []*Entity
	Rejected []*RejectedEntity
}

type RejectedEntity struct {
	Entity *Entity
	Err    error
}

// the add default action:
// evict from any prior owner, register both indexes, set the back
// reference, subscribe to member changes, and splice into position.
func (self *EntityList) addDefault(entity *Entity) (int, error) {
	// ownership transfer. The prior owner gives up the entity silently.
	if list := entity.List(); list != nil && list != self {
		list.Remove(entity, &EventOptions{Silent: true})
	}

	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	// an intent callback may have mutated the list
	if _, ok := self.clientIdEntities[entity.clientId]; ok {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateEntity, entity.clientId)
	}
	index := self.insertIndex(entity)

	self.clientIdEntities[entity.clientId] = entity
	if id, ok := attrValueString(entity.Get(self.settings.IdAttribute)); ok {
		self.idEntities[id] = entity
	}
	entity.setList(self)
	self.changeUnsubs[entity.clientId] = entity.AddChangeCallback(self.entityChanged)
	self.entities = slices.Insert(self.entities, index, entity)

	glog.V(2).Infof("[list]add %s at %d (%d total)\n", entity.clientId, index, len(self.entities))
	return index, nil
}

// Remove detaches one entity.
// returns `ErrEntityNotFound` if the entity is not a member, and
// `ErrRemovePrevented` if an intent callback prevents the remove. On either
// outcome the list state is unchanged.
func (self *EntityList) Remove(entity *Entity, options *EventOptions) (*Entity, error) {
	if options == nil {
		options = &EventOptions{}
	}

	index, err := func() (int, error) {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		i := slices.Index(self.entities, entity)
		if i < 0 {
			return 0, fmt.Errorf("%w: %s", ErrEntityNotFound, entity.clientId)
		}
		return i, nil
	}()
	if err != nil {
		return nil, err
	}

	if !options.Silent {
		event := &RemoveEvent{
			Entity:  entity,
			Index:   index,
			Payload: options.Payload,
		}
		for _, removeCallback := range self.removeCallbacks.Get() {
			removeCallback(event)
		}
		if event.Prevented() {
			glog.V(2).Infof("[list]remove prevented %s\n", entity.clientId)
			return nil, ErrRemovePrevented
		}
	}

	index, err = self.removeDefault(entity)
	if err != nil {
		return nil, err
	}

	if !options.Silent {
		event := &RemoveEvent{
			Entity:  entity,
			Index:   index,
			Payload: options.Payload,
		}
		for _, removeCallback := range self.afterRemoveCallbacks.Get() {
			removeCallback(event)
		}
	}

	return entity, nil
}

// RemoveAll removes each entity independently, with the same batch
// semantics as `AddAll`.
func (self *EntityList) RemoveAll(entities []*Entity, options *EventOptions) *RemoveResult {
	result := &RemoveResult{}
	for _, entity := range slices.Clone(entities) {
		removed, err := self.Remove(entity, options)
		if err == nil {
			result.Removed = append(result.Removed, removed)
		} else {
			result.Rejected = append(result.Rejected, &RejectedEntity{
				Entity: entity,
				Err:    err,
			})
		}
	}
	return result
}

func (self *EntityList) removeDefault(entity *Entity) (int, error) {
	var unsub func()

	index, err := func() (int, error) {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		i := slices.Index(self.entities, entity)
		if i < 0 {
			return 0, fmt.Errorf("%w: %s", ErrEntityNotFound, entity.clientId)
		}

		delete(self.clientIdEntities, entity.clientId)
		if id, ok := attrValueString(entity.Get(self.settings.IdAttribute)); ok {
			if self.idEntities[id] == entity {
				delete(self.idEntities, id)
			}
		}
		unsub = self.changeUnsubs[entity.clientId]
		delete(self.changeUnsubs, entity.clientId)
		self.entities = slices.Delete(self.entities, i, i+1)

		glog.V(2).Infof("[list]remove %s at %d (%d total)\n", entity.clientId, i, len(self.entities))
		return i, nil
	}()
	if err != nil {
		return 0, err
	}

	if unsub != nil {
		unsub()
	}
	entity.clearList(self)
	return index, nil
}

// Refresh replaces the full member set.
// every current member is detached and every entity in `entities` is added
// silently, acquiring index entries and order positions without individual
// add events. A single reset event with src `refresh` wraps the whole
// operation.
func (self *EntityList) Refresh(entities []*Entity, options *EventOptions) *EntityList {
	self.reset(slices.Clone(entities), ResetSrcRefresh, options)
	return self
}

// RefreshAttrs materializes entities from the attribute hashes and refreshes.
func (self *EntityList) RefreshAttrs(attrsList []map[string]any, options *EventOptions) *EntityList {
	entities := []*Entity{}
	for _, attrs := range attrsList {
		entities = append(entities, self.newEntity(attrs))
	}
	self.reset(entities, ResetSrcRefresh, options)
	return self
}

// Sort re-sorts the members by comparator value.
// no-op when no comparator is configured. The sort is stable, so members
// with equal comparator values keep their current relative order.
// delegates to the reset pipeline with src `sort`.
func (self *EntityList) Sort(options *EventOptions) *EntityList {
	comparator := self.settings.Comparator
	if comparator == nil {
		return self
	}

	self.stateLock.Lock()
	sorted := slices.Clone(self.entities)
	self.stateLock.Unlock()

	slices.SortStableFunc(sorted, func(a *Entity, b *Entity) int {
		return compareOrderable(comparator(a), comparator(b))
	})

	self.reset(sorted, ResetSrcSort, options)
	return self
}

func (self *EntityList) reset(entities []*Entity, src ResetSrc, options *EventOptions) {
	if options == nil {
		options = &EventOptions{}
	}

	if !options.Silent {
		event := &ResetEvent{
			Entities: entities,
			Src:      src,
			Payload:  options.Payload,
		}
		for _, resetCallback := range self.resetCallbacks.Get() {
			resetCallback(event)
		}
		if event.Prevented() {
			glog.V(2).Infof("[list]reset prevented src = %s\n", src)
			return
		}
	}

	switch src {
	case ResetSrcSort:
		// membership is unchanged, only order. Replace the sequence.
		self.stateLock.Lock()
		self.entities = entities
		self.stateLock.Unlock()
	default:
		self.clear()
		for _, entity := range entities {
			self.addDefault(entity)
		}
	}

	if !options.Silent {
		event := &ResetEvent{
			Entities: entities,
			Src:      src,
			Payload:  options.Payload,
		}
		for _, resetCallback := range self.afterResetCallbacks.Get() {
			resetCallback(event)
		}
	}
}

// detaches every member and empties the sequence and both indexes
func (self *EntityList) clear() {
	var members []*Entity
	var unsubs []func()

	self.stateLock.Lock()
	members = self.entities
	self.entities = []*Entity{}
	for _, clientId := range maps.Keys(self.changeUnsubs) {
		unsubs = append(unsubs, self.changeUnsubs[clientId])
	}
	self.changeUnsubs = map[Id]func(){}
	self.clientIdEntities = map[Id]*Entity{}
	self.idEntities = map[string]*Entity{}
	self.stateLock.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	for _, entity := range members {
		entity.clearList(self)
	}
}

// GetByClientId resolves a member by client id. Nil when not a member.
func (self *EntityList) GetByClientId(clientId Id) *Entity {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.clientIdEntities[clientId]
}

// GetById resolves a member by persistent id. Nil when no member has
// that id.
func (self *EntityList) GetById(id string) *Entity {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.idEntities[id]
}

// EntityId reads the persistent id of an entity using the list's configured
// id attribute. `ok` is false when the id is unassigned.
func (self *EntityList) EntityId(entity *Entity) (string, bool) {
	return attrValueString(entity.Get(self.settings.IdAttribute))
}

func (self *EntityList) Len() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return len(self.entities)
}

// At returns the member at `index`, or nil when out of range.
func (self *EntityList) At(index int) *Entity {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	if index < 0 || len(self.entities) <= index {
		return nil
	}
	return self.entities[index]
}

// Entities returns a snapshot of the member sequence in order.
func (self *EntityList) Entities() []*Entity {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return slices.Clone(self.entities)
}

// AttrsList projects each member to its attribute hash, in order.
func (self *EntityList) AttrsList() []map[string]any {
	attrsList := []map[string]any{}
	for _, entity := range self.Entities() {
		attrsList = append(attrsList, entity.Attrs())
	}
	return attrsList
}

// Each calls `callback` for each member in order, against a snapshot.
func (self *EntityList) Each(callback func(index int, entity *Entity)) {
	for i, entity := range self.Entities() {
		callback(i, entity)
	}
}

// Map projects each member in order, against a snapshot.
func (self *EntityList) Map(callback func(entity *Entity) any) []any {
	values := []any{}
	for _, entity := range self.Entities() {
		values = append(values, callback(entity))
	}
	return values
}

func (self *EntityList) newEntity(attrs map[string]any) *Entity {
	if self.settings.EntityFunction != nil {
		return self.settings.EntityFunction(attrs)
	}
	self.warnNoEntityFunction.Do(func() {
		glog.Warningf("[list]no entity function configured. Attribute hashes will materialize as plain entities.\n")
	})
	return NewEntity(attrs)
}

// binary search for the ordered insertion position.
// must be called with `stateLock`.
// on equal comparator values the search continues high, so a new entity
// lands after all existing entities with the same value. This keeps the
// order stable across inserts.
func (self *EntityList) insertIndex(entity *Entity) int {
	comparator := self.settings.Comparator
	if comparator == nil || len(self.entities) == 0 {
		return len(self.entities)
	}

	value := comparator(entity)
	low := 0
	high := len(self.entities)
	for low < high {
		mid := (low + high) / 2
		if compareOrderable(value, comparator(self.entities[mid])) < 0 {
			high = mid
		} else {
			low = mid + 1
		}
	}
	return low
}

// member change handler. Keeps the id index correct when the persistent id
// attribute changes, then re-emits the change on the list.
func (self *EntityList) entityChanged(event *EntityChangeEvent) {
	if event.Name == self.settings.IdAttribute {
		self.stateLock.Lock()
		if _, ok := self.clientIdEntities[event.Entity.clientId]; ok {
			if previousId, ok := attrValueString(event.PreviousValue); ok {
				if self.idEntities[previousId] == event.Entity {
					delete(self.idEntities, previousId)
				}
			}
			if id, ok := attrValueString(event.Value); ok {
				self.idEntities[id] = event.Entity
			}
		}
		self.stateLock.Unlock()
	}

	for _, changeCallback := range self.entityChangeCallbacks.Get() {
		changeCallback(event)
	}
}

// compares two sort keys.
// numbers compare as numbers, strings as strings, anything else by its
// string form.
func compareOrderable(a any, b any) int {
	if av, ok := orderableFloat(a); ok {
		if bv, ok := orderableFloat(b); ok {
			return cmp.Compare(av, bv)
		}
	}
	if av, ok := a.(string); ok {
		if bv, ok := b.(string); ok {
			return cmp.Compare(av, bv)
		}
	}
	return cmp.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

func orderableFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
