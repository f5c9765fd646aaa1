package collection

// every mutating operation on a list runs as three phases:
// 1. intent: the event is sent to the intent callbacks. Any callback can
//    call `Prevent` to cancel the default action.
// 2. default action: the list state is mutated.
// 3. completed: the event is sent to the after callbacks.
// `EventOptions.Silent` skips phases 1 and 3 and runs the default action
// directly.

type AddEventFunction func(event *AddEvent)
type RemoveEventFunction func(event *RemoveEvent)
type ResetEventFunction func(event *ResetEvent)
type EntityChangeFunction func(event *EntityChangeEvent)

// options for a single mutating call
type EventOptions struct {
	// skip the intent and completed phases and run the default action directly
	Silent bool
	// extra fields passed through to the callbacks on the event
	Payload map[string]any
}

type ResetSrc string

const (
	ResetSrcRefresh ResetSrc = "refresh"
	ResetSrcSort    ResetSrc = "sort"
)

type AddEvent struct {
	Entity *Entity
	// position the entity will occupy in the list
	Index     int
	Payload   map[string]any
	prevented bool
}

// Prevent cancels the default action for this add.
func (self *AddEvent) Prevent() {
	self.prevented = true
}

func (self *AddEvent) Prevented() bool {
	return self.prevented
}

type RemoveEvent struct {
	Entity    *Entity
	Index     int
	Payload   map[string]any
	prevented bool
}

func (self *RemoveEvent) Prevent() {
	self.prevented = true
}

func (self *RemoveEvent) Prevented() bool {
	return self.prevented
}

type ResetEvent struct {
	// the proposed full member list
	Entities  []*Entity
	Src       ResetSrc
	Payload   map[string]any
	prevented bool
}

func (self *ResetEvent) Prevent() {
	self.prevented = true
}

func (self *ResetEvent) Prevented() bool {
	return self.prevented
}

// emitted by an entity when one of its attributes changes,
// and re-emitted by the owning list for all members
type EntityChangeEvent struct {
	Entity        *Entity
	Name          string
	PreviousValue any
	Value         any
}
