package collection

import (
	"fmt"
	"reflect"
	"sync"

	"golang.org/x/exp/maps"
)

// materializes an entity from a plain attribute hash.
// a list uses its configured `EntityFunction` so that callers can add raw
// hashes and still get domain-specific entities.
type EntityFunction func(attrs map[string]any) *Entity

// an attribute hash with identity and a change notification stream.
// the client id is assigned at creation and never changes. The persistent id
// is just another attribute (see `EntityListSettings.IdAttribute`) and may be
// absent, assigned later, or reassigned.
// an entity is owned by at most one list at a time.
type Entity struct {
	clientId Id

	stateLock sync.Mutex
	attrs     map[string]any
	list      *EntityList

	changeCallbacks *CallbackList[EntityChangeFunction]
}

func NewEntity(attrs map[string]any) *Entity {
	if attrs == nil {
		attrs = map[string]any{}
	} else {
		attrs = maps.Clone(attrs)
	}
	return &Entity{
		clientId:        NewId(),
		attrs:           attrs,
		changeCallbacks: NewCallbackList[EntityChangeFunction](),
	}
}

func (self *Entity) ClientId() Id {
	return self.clientId
}

func (self *Entity) Get(name string) any {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.attrs[name]
}

// Set updates one attribute and notifies the change callbacks.
// setting an attribute to its current value emits nothing.
func (self *Entity) Set(name string, value any) {
	var event *EntityChangeEvent
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		previousValue, ok := self.attrs[name]
		if ok && reflect.DeepEqual(previousValue, value) {
			return
		}
		self.attrs[name] = value
		event = &EntityChangeEvent{
			Entity:        self,
			Name:          name,
			PreviousValue: previousValue,
			Value:         value,
		}
	}()
	if event == nil {
		return
	}
	for _, changeCallback := range self.changeCallbacks.Get() {
		changeCallback(event)
	}
}

// Attrs returns a snapshot of the attribute hash.
func (self *Entity) Attrs() map[string]any {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return maps.Clone(self.attrs)
}

// List returns the list that currently owns this entity, or nil.
func (self *Entity) List() *EntityList {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.list
}

func (self *Entity) setList(list *EntityList) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.list = list
}

// clears the owner only if it is still `list`
func (self *Entity) clearList(list *EntityList) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	if self.list == list {
		self.list = nil
	}
}

func (self *Entity) AddChangeCallback(changeCallback EntityChangeFunction) func() {
	callbackId := self.changeCallbacks.Add(changeCallback)
	return func() {
		self.changeCallbacks.Remove(callbackId)
	}
}

func (self *Entity) String() string {
	return fmt.Sprintf("entity(%s)", self.clientId)
}

// string form of an attribute value used as a persistent id key.
// nil and the empty string mean unassigned.
func attrValueString(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		if v == "" {
			return "", false
		}
		return v, true
	default:
		return fmt.Sprintf("%v", v), true
	}
}
