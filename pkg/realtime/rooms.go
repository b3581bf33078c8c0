package realtime

import (
	"context"
	"sync"
	"time"

	ws "ridebid/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const defaultAckTimeout = 5 * time.Second

// RoomRegistry tracks which ride rooms this client has joined and
// re-joins them after a reconnect. Reconnection loses any events sent
// meanwhile; there is no replay, so the OnRejoin hook tells the caller
// to re-fetch ride state over REST.
type RoomRegistry struct {
	manager    *Manager
	ackTimeout time.Duration

	mu       sync.Mutex
	joined   map[string]primitive.ObjectID
	onRejoin func(rideID primitive.ObjectID)
}

func NewRoomRegistry(manager *Manager) *RoomRegistry {
	r := &RoomRegistry{
		manager:    manager,
		ackTimeout: defaultAckTimeout,
		joined:     make(map[string]primitive.ObjectID),
	}
	manager.OnConnected(r.rejoinAll)
	return r
}

// OnRejoin sets the refresh hook invoked for each room re-joined
// after a reconnect.
func (r *RoomRegistry) OnRejoin(fn func(rideID primitive.ObjectID)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRejoin = fn
}

// JoinRide subscribes to a ride's event namespace. Blocks until the
// server acknowledges or the ack window passes. Idempotent: joining a
// room already joined returns immediately.
func (r *RoomRegistry) JoinRide(ctx context.Context, rideID primitive.ObjectID) error {
	roomID := ws.RideRoom(rideID)

	r.mu.Lock()
	if _, already := r.joined[roomID]; already {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	if err := r.join(ctx, roomID); err != nil {
		return err
	}

	r.mu.Lock()
	r.joined[roomID] = rideID
	r.mu.Unlock()
	return nil
}

func (r *RoomRegistry) join(ctx context.Context, roomID string) error {
	ackCtx, cancel := context.WithTimeout(ctx, r.ackTimeout)
	defer cancel()

	// The waiter is armed before the send so a fast ack cannot slip
	// through between the two.
	ack, disarm := r.manager.armWaiter(ws.EventRoomJoined, roomID)
	defer disarm()

	event := ws.MustEvent(ws.EventJoinRoom, roomID, ws.RoomPayload{RoomID: roomID})
	if err := r.manager.Send(ackCtx, event); err != nil {
		return err
	}

	select {
	case <-ack:
		return nil
	case <-ackCtx.Done():
		return ErrAckTimeout
	}
}

// LeaveRide unsubscribes and drops the room from rejoin tracking.
// Always safe, including while disconnected.
func (r *RoomRegistry) LeaveRide(ctx context.Context, rideID primitive.ObjectID) {
	roomID := ws.RideRoom(rideID)

	r.mu.Lock()
	delete(r.joined, roomID)
	r.mu.Unlock()

	event := ws.MustEvent(ws.EventLeaveRoom, roomID, ws.RoomPayload{RoomID: roomID})
	_ = r.manager.Send(ctx, event)
}

// Joined reports whether the client currently tracks the ride's room.
func (r *RoomRegistry) Joined(rideID primitive.ObjectID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.joined[ws.RideRoom(rideID)]
	return ok
}

// rejoinAll runs on every successful connect. Rooms joined before the
// drop are re-subscribed and the refresh hook fires for each so the
// caller can reconcile state it missed while offline.
func (r *RoomRegistry) rejoinAll() {
	r.mu.Lock()
	rooms := make(map[string]primitive.ObjectID, len(r.joined))
	for roomID, rideID := range r.joined {
		rooms[roomID] = rideID
	}
	hook := r.onRejoin
	r.mu.Unlock()

	for roomID, rideID := range rooms {
		ctx, cancel := context.WithTimeout(context.Background(), r.ackTimeout)
		err := r.join(ctx, roomID)
		cancel()
		if err != nil {
			continue
		}
		if hook != nil {
			hook(rideID)
		}
	}
}
