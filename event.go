// Package talos is a document ODM built around explicit translation: fluent
// builders compile to native documents, schemas drive field-name resolution,
// and a narrow executor port carries the compiled documents to the database.
// This file defines the lifecycle event system.
package talos

import (
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/leandroluk/talos/core"
)

// Event represents a lifecycle event emitted by the ODM.
//
// Events are triggered after insert, update, delete, find, and aggregate
// operations. They allow users to register custom handlers to observe or
// react to changes in the persistence layer.
type Event string

const (
	// EventInsert is emitted after documents are inserted.
	EventInsert Event = "insert"
	// EventUpdate is emitted after documents are updated.
	EventUpdate Event = "update"
	// EventDelete is emitted after documents are deleted.
	EventDelete Event = "delete"
	// EventFind is emitted after documents are retrieved.
	EventFind Event = "find"
	// EventAggregate is emitted after a pipeline run.
	EventAggregate Event = "aggregate"
)

// EventHandler defines the callback signature for event listeners. The
// payload argument varies with the event type (InsertPayload, UpdatePayload,
// DeletePayload, FindPayload, AggregatePayload).
type EventHandler func(payload any)

// EventDispatcher manages a list of event handlers and dispatches them when
// the corresponding events are emitted.
type EventDispatcher struct {
	mutex       sync.RWMutex
	handlerList map[Event][]EventHandler
}

// globalDispatcher is the shared event dispatcher used by the ODM.
var globalDispatcher = &EventDispatcher{
	handlerList: make(map[Event][]EventHandler),
}

// On registers an EventHandler for a specific Event.
//
// Example:
//
//	talos.On(talos.EventInsert, func(payload any) {
//	    if p, ok := payload.(talos.InsertPayload[Order]); ok {
//	        log.Printf("order inserted: %+v", p.Docs)
//	    }
//	})
func On(event Event, handler EventHandler) {
	globalDispatcher.mutex.Lock()
	defer globalDispatcher.mutex.Unlock()
	globalDispatcher.handlerList[event] = append(globalDispatcher.handlerList[event], handler)
}

// Emit triggers all registered handlers for the given Event.
//
// Handlers are executed asynchronously in separate goroutines.
func Emit(event Event, payload any) {
	globalDispatcher.mutex.RLock()
	defer globalDispatcher.mutex.RUnlock()
	if hs, ok := globalDispatcher.handlerList[event]; ok {
		for _, h := range hs {
			go h(payload)
		}
	}
}

// InsertPayload represents the payload passed to EventInsert handlers.
type InsertPayload[T any] struct {
	Schema *core.SchemaCore
	Docs   []*T
}

// UpdatePayload represents the payload passed to EventUpdate handlers.
//
// Filter and Update are the compiled documents that were sent to the
// executor.
type UpdatePayload struct {
	Schema *core.SchemaCore
	Filter bson.D
	Update bson.D
}

// DeletePayload represents the payload passed to EventDelete handlers.
type DeletePayload struct {
	Schema *core.SchemaCore
	Filter bson.D
}

// FindPayload represents the payload passed to EventFind handlers.
type FindPayload struct {
	Schema *core.SchemaCore
	Filter bson.D
}

// AggregatePayload represents the payload passed to EventAggregate handlers.
//
// Pipeline holds the compiled stage documents in pipeline order.
type AggregatePayload struct {
	Schema   *core.SchemaCore
	Pipeline []bson.D
}
