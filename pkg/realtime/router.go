package realtime

import (
	"sync"

	ws "ridebid/pkg/websocket"
)

// Handler is one named observer for an event kind. The name gives
// registrations an identity, so re-registering the same name is a
// no-op instead of a duplicate.
type Handler struct {
	Name string
	Fn   func(ws.Event)
}

// Router fans inbound events out to typed handler sets. Sets are
// append-only; independent observers never overwrite each other.
type Router struct {
	mu       sync.RWMutex
	handlers map[ws.EventKind][]Handler
	catchAll []Handler
}

func NewRouter() *Router {
	return &Router{
		handlers: make(map[ws.EventKind][]Handler),
	}
}

// Attach adds a handler for one event kind. Returns false when a
// handler with the same name is already attached for that kind.
func (r *Router) Attach(kind ws.EventKind, handler Handler) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.handlers[kind] {
		if existing.Name == handler.Name {
			return false
		}
	}
	r.handlers[kind] = append(r.handlers[kind], handler)
	return true
}

// AttachCatchAll adds a handler that sees every inbound event.
func (r *Router) AttachCatchAll(handler Handler) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.catchAll {
		if existing.Name == handler.Name {
			return false
		}
	}
	r.catchAll = append(r.catchAll, handler)
	return true
}

// Detach removes a named handler from one kind's set.
func (r *Router) Detach(kind ws.EventKind, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.handlers[kind]
	for i, handler := range set {
		if handler.Name == name {
			r.handlers[kind] = append(set[:i:i], set[i+1:]...)
			return
		}
	}
}

// Dispatch delivers one event to its kind's handlers then to the
// catch-all set, in attachment order.
func (r *Router) Dispatch(event ws.Event) {
	r.mu.RLock()
	kindSet := make([]Handler, len(r.handlers[event.Kind]))
	copy(kindSet, r.handlers[event.Kind])
	allSet := make([]Handler, len(r.catchAll))
	copy(allSet, r.catchAll)
	r.mu.RUnlock()

	for _, handler := range kindSet {
		handler.Fn(event)
	}
	for _, handler := range allSet {
		handler.Fn(event)
	}
}

// Typed attachment helpers. Each decodes the payload and skips
// delivery when the payload does not parse.

func (r *Router) OnBid(name string, fn func(ws.BidPayload)) bool {
	return r.Attach(ws.EventNewBid, Handler{Name: name, Fn: func(event ws.Event) {
		var payload ws.BidPayload
		if event.DecodePayload(&payload) == nil {
			fn(payload)
		}
	}})
}

func (r *Router) OnRideStatus(name string, fn func(ws.RideStatusPayload)) bool {
	return r.Attach(ws.EventRideStatusUpdate, Handler{Name: name, Fn: func(event ws.Event) {
		var payload ws.RideStatusPayload
		if event.DecodePayload(&payload) == nil {
			fn(payload)
		}
	}})
}

func (r *Router) OnLocation(name string, fn func(ws.LocationPayload)) bool {
	return r.Attach(ws.EventRiderLocationUpdate, Handler{Name: name, Fn: func(event ws.Event) {
		var payload ws.LocationPayload
		if event.DecodePayload(&payload) == nil {
			fn(payload)
		}
	}})
}

func (r *Router) OnChat(name string, fn func(ws.MessagePayload)) bool {
	return r.Attach(ws.EventReceiveMessage, Handler{Name: name, Fn: func(event ws.Event) {
		var payload ws.MessagePayload
		if event.DecodePayload(&payload) == nil {
			fn(payload)
		}
	}})
}
