package transaction

import (
	"sync"

	"github.com/cngnbridge/core/bridge"
)

// HookEvent is a named lifecycle event that transaction observers can
// subscribe to (spec §4.F/§4.H: bridging status changes into the
// out-of-scope notification surface).
type HookEvent string

const (
	HookCreated       HookEvent = "transaction:created"
	HookStatusChanged HookEvent = "transaction:status_changed"
	HookCompleted     HookEvent = "transaction:completed"
	HookFailed        HookEvent = "transaction:failed"
)

// HookRegistry runs registered callbacks sequentially when transaction
// lifecycle events fire. Thread-safe for concurrent registration and
// triggering; handlers should be quick and non-blocking since they run
// inline with the worker that triggered them.
type HookRegistry struct {
	handlers map[HookEvent][]func(*bridge.Transaction)
	mu       sync.RWMutex
}

// NewHookRegistry creates an empty HookRegistry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{
		handlers: make(map[HookEvent][]func(*bridge.Transaction)),
	}
}

// On registers handler to run whenever event fires.
func (r *HookRegistry) On(event HookEvent, handler func(*bridge.Transaction)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[event] = append(r.handlers[event], handler)
}

// Trigger runs every handler registered for event, in registration order.
func (r *HookRegistry) Trigger(event HookEvent, tx *bridge.Transaction) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, handler := range r.handlers[event] {
		handler(tx)
	}
}
