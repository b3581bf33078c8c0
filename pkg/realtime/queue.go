package realtime

import (
	ws "ridebid/pkg/websocket"
)

type pendingRegistration struct {
	kind     ws.EventKind
	catchAll bool
	handler  Handler
}

// handlerQueue holds registrations made while disconnected, in order,
// until the next successful connect flushes them. Bounded: once full,
// new registrations are rejected rather than evicting old ones.
// Not safe for concurrent use; the manager's lock guards it.
type handlerQueue struct {
	entries []pendingRegistration
	limit   int
}

func newHandlerQueue(limit int) *handlerQueue {
	if limit <= 0 {
		limit = 64
	}
	return &handlerQueue{limit: limit}
}

// add enqueues a registration. Re-queuing the same (kind, name) pair
// is a no-op so a caller retrying registration cannot double-attach.
func (q *handlerQueue) add(entry pendingRegistration) error {
	for _, existing := range q.entries {
		if existing.kind == entry.kind &&
			existing.catchAll == entry.catchAll &&
			existing.handler.Name == entry.handler.Name {
			return nil
		}
	}

	if len(q.entries) >= q.limit {
		return ErrQueueFull
	}

	q.entries = append(q.entries, entry)
	return nil
}

// drain returns the queued registrations in registration order and
// empties the queue. Each entry is handed out exactly once.
func (q *handlerQueue) drain() []pendingRegistration {
	entries := q.entries
	q.entries = nil
	return entries
}

// discard drops everything; used when the reconnect budget runs out.
func (q *handlerQueue) discard() {
	q.entries = nil
}

func (q *handlerQueue) len() int {
	return len(q.entries)
}
