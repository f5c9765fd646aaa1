package collection

import (
	"encoding/json"
	"fmt"

	"github.com/golang/glog"
)

// persistence boundary.
// the list never performs i/o itself. A `SyncFunction` is configured at
// construction and invoked with a callback; the list resumes processing
// only inside that callback, so an override may be asynchronous.

type SyncAction string

const (
	SyncActionCreate SyncAction = "create"
	SyncActionRead   SyncAction = "read"
	SyncActionUpdate SyncAction = "update"
	SyncActionDelete SyncAction = "delete"
)

type SyncOptions struct {
	// extra fields passed through to the sync implementation
	Payload map[string]any
}

type SyncResultFunction func(response []byte, err error)

type SyncFunction func(action SyncAction, options *SyncOptions, callback SyncResultFunction)

// NoopSyncFunction calls back immediately with success and no response.
func NoopSyncFunction(action SyncAction, options *SyncOptions, callback SyncResultFunction) {
	callback(nil, nil)
}

type LoadResultFunction func(entities []*Entity, err error)

type CreateResultFunction func(entity *Entity, err error)

func (self *EntityList) syncFunction() SyncFunction {
	if self.settings.SyncFunction != nil {
		return self.settings.SyncFunction
	}
	return NoopSyncFunction
}

// Load reads the full member set through the sync layer and refreshes the
// list with the parsed result.
// on a sync error or an unparseable response the list is untouched and the
// error is surfaced to the callback.
func (self *EntityList) Load(options *SyncOptions, callback LoadResultFunction) {
	if callback == nil {
		callback = func(entities []*Entity, err error) {}
	}
	self.syncFunction()(SyncActionRead, options, func(response []byte, err error) {
		if err != nil {
			callback(nil, err)
			return
		}
		attrsList, err := parseResponse(response)
		if err != nil {
			glog.V(2).Infof("[list]load parse error = %s\n", err)
			callback(nil, err)
			return
		}
		self.RefreshAttrs(attrsList, nil)
		callback(self.Entities(), nil)
	})
}

// CreateAttrs materializes an entity from the attribute hash and creates it.
func (self *EntityList) CreateAttrs(attrs map[string]any, options *SyncOptions, callback CreateResultFunction) {
	self.Create(self.newEntity(attrs), options, callback)
}

// Create persists a new entity through the sync layer, then adds it on
// success. A response hash is applied to the entity first; this is how a
// store hands back the assigned persistent id.
func (self *EntityList) Create(entity *Entity, options *SyncOptions, callback CreateResultFunction) {
	if callback == nil {
		callback = func(entity *Entity, err error) {}
	}
	self.syncFunction()(SyncActionCreate, options, func(response []byte, err error) {
		if err != nil {
			callback(nil, err)
			return
		}
		if 0 < len(response) {
			attrs := map[string]any{}
			if err := json.Unmarshal(response, &attrs); err != nil {
				callback(nil, fmt.Errorf("%w: %s", ErrParse, err))
				return
			}
			for name, value := range attrs {
				entity.Set(name, value)
			}
		}
		added, err := self.Add(entity, nil)
		if err != nil {
			callback(nil, err)
			return
		}
		callback(added, nil)
	})
}

// interprets a sync response as a json array of attribute hashes.
// an empty response means an empty member set.
func parseResponse(response []byte) ([]map[string]any, error) {
	if len(response) == 0 {
		return []map[string]any{}, nil
	}
	var attrsList []map[string]any
	if err := json.Unmarshal(response, &attrsList); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrParse, err)
	}
	return attrsList, nil
}
