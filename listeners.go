package fitbridge

import (
	"sync"

	"github.com/google/uuid"
	"github.com/lucasjlepore/fitbridge/events"
)

// Subscription is a live binding owned by a ListenerRegistry.
type Subscription struct {
	ID        uuid.UUID
	EventName string
}

// ListenerRegistry owns every subscription made through a client so they can
// be torn down together. It is safe for concurrent use.
type ListenerRegistry struct {
	channel  events.Channel
	onChange func(int)

	mu     sync.Mutex
	order  []uuid.UUID
	active map[uuid.UUID]registered
}

type registered struct {
	sub    Subscription
	handle events.Handle
}

// NewListenerRegistry creates a registry binding handlers on channel.
func NewListenerRegistry(channel events.Channel) *ListenerRegistry {
	return &ListenerRegistry{
		channel: channel,
		active:  make(map[uuid.UUID]registered),
	}
}

// Register binds fn to name and keeps the resulting handle.
func (r *ListenerRegistry) Register(name string, fn events.Handler) Subscription {
	sub := Subscription{ID: uuid.New(), EventName: name}
	handle := r.channel.Subscribe(name, fn)

	r.mu.Lock()
	r.order = append(r.order, sub.ID)
	r.active[sub.ID] = registered{sub: sub, handle: handle}
	n := len(r.active)
	r.mu.Unlock()

	r.changed(n)
	return sub
}

// Remove revokes one subscription. Unknown or already removed
// subscriptions are ignored.
func (r *ListenerRegistry) Remove(sub Subscription) {
	r.mu.Lock()
	reg, ok := r.active[sub.ID]
	if ok {
		delete(r.active, sub.ID)
		r.order = dropID(r.order, sub.ID)
	}
	n := len(r.active)
	r.mu.Unlock()

	if !ok {
		return
	}
	reg.handle.Remove()
	r.changed(n)
}

// RemoveEvent revokes every subscription bound to name and returns how many
// were removed.
func (r *ListenerRegistry) RemoveEvent(name string) int {
	r.mu.Lock()
	var handles []events.Handle
	kept := r.order[:0]
	for _, id := range r.order {
		reg := r.active[id]
		if reg.sub.EventName != name {
			kept = append(kept, id)
			continue
		}
		handles = append(handles, reg.handle)
		delete(r.active, id)
	}
	r.order = kept
	n := len(r.active)
	r.mu.Unlock()

	for _, h := range handles {
		h.Remove()
	}
	if len(handles) > 0 {
		r.changed(n)
	}
	return len(handles)
}

// RemoveAll revokes every subscription. Calling it on an empty registry is
// a no-op.
func (r *ListenerRegistry) RemoveAll() {
	r.mu.Lock()
	handles := make([]events.Handle, 0, len(r.order))
	for _, id := range r.order {
		handles = append(handles, r.active[id].handle)
	}
	r.order = nil
	r.active = make(map[uuid.UUID]registered)
	r.mu.Unlock()

	for _, h := range handles {
		h.Remove()
	}
	if len(handles) > 0 {
		r.changed(0)
	}
}

// Subscriptions returns the live subscriptions in registration order.
func (r *ListenerRegistry) Subscriptions() []Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Subscription, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.active[id].sub)
	}
	return out
}

// Len returns the number of live subscriptions.
func (r *ListenerRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

func (r *ListenerRegistry) changed(n int) {
	if r.onChange != nil {
		r.onChange(n)
	}
}

func dropID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	for i, other := range ids {
		if other == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
