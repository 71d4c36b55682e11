// Package events is an in-process named-event channel. A backend emits
// payloads by name and any number of handlers bound to that name receive
// them on the emitting goroutine.
package events

import (
	"maps"
	"sync"
	"sync/atomic"
)

// Names of the push events the fitness backend emits besides the per data
// type recording channels.
const (
	StepChanged        = "StepChangedEvent"
	StepHistoryChanged = "StepHistoryChangedEvent"
	AuthorizeSuccess   = "GoogleFitAuthorizeSuccess"
	AuthorizeFailure   = "GoogleFitAuthorizeFailure"
)

// Payload is the body of one event.
type Payload map[string]any

// Clone returns a shallow copy of p.
func (p Payload) Clone() Payload {
	if p == nil {
		return Payload{}
	}
	return maps.Clone(p)
}

// Handler receives event payloads.
type Handler func(Payload)

// Handle is a revocable binding of a Handler to an event name. Remove is
// idempotent. An Emit that starts after Remove returns does not deliver to
// the binding; an Emit already running on another goroutine may still
// deliver to it once.
type Handle interface {
	Remove()
}

// Channel binds handlers to event names.
type Channel interface {
	Subscribe(name string, fn Handler) Handle
}

// Emitter is the default Channel. It is safe for concurrent use.
type Emitter struct {
	mu       sync.Mutex
	handlers map[string][]*binding
}

var _ Channel = (*Emitter)(nil)

// NewEmitter creates an Emitter with no bindings.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[string][]*binding)}
}

type binding struct {
	emitter *Emitter
	name    string
	fn      Handler
	removed atomic.Bool
}

// Subscribe binds fn to name.
func (e *Emitter) Subscribe(name string, fn Handler) Handle {
	b := &binding{emitter: e, name: name, fn: fn}
	e.mu.Lock()
	e.handlers[name] = append(e.handlers[name], b)
	e.mu.Unlock()
	return b
}

// Emit delivers a copy of payload to every handler bound to name and
// returns how many handlers were invoked.
func (e *Emitter) Emit(name string, payload Payload) int {
	e.mu.Lock()
	bound := append([]*binding(nil), e.handlers[name]...)
	e.mu.Unlock()

	delivered := 0
	for _, b := range bound {
		if b.removed.Load() {
			continue
		}
		b.fn(payload.Clone())
		delivered++
	}
	return delivered
}

// Listeners returns the number of live bindings for name.
func (e *Emitter) Listeners(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers[name])
}

func (b *binding) Remove() {
	if b.removed.Swap(true) {
		return
	}
	e := b.emitter
	e.mu.Lock()
	defer e.mu.Unlock()
	bound := e.handlers[b.name]
	for i, other := range bound {
		if other == b {
			e.handlers[b.name] = append(bound[:i:i], bound[i+1:]...)
			break
		}
	}
	if len(e.handlers[b.name]) == 0 {
		delete(e.handlers, b.name)
	}
}
