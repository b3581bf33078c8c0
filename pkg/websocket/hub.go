package websocket

import (
	"encoding/json"
	"strings"
	"sync"

	"ridebid/internal/observability"
	"ridebid/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InboundHandler receives client events the hub does not handle
// itself (chat, location updates). Wired to the chat/location services
// at startup.
type InboundHandler interface {
	HandleInbound(client *Client, event Event)
}

type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	inbound    InboundHandler
	log        *logger.Logger
	mutex      sync.RWMutex
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		log:        log,
	}
}

func (h *Hub) SetInboundHandler(handler InboundHandler) {
	h.inbound = handler
}

// Run is the hub's single event loop. Room broadcasts pass through it
// in order, which is what gives subscribers per-room emission order.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.dispatch(event)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true
	observability.WSActiveSessions.Inc()
	h.log.WithUserID(client.UserID).Debug("Realtime client registered")

	// Personal room for targeted notifications.
	h.joinRoomLocked(client, "user_"+client.UserID.Hex())

	h.sendToClient(client, MustEvent(EventWelcome, "", nil))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.closeSend()
		observability.WSActiveSessions.Dec()

		for roomID, room := range h.rooms {
			if _, exists := room[client]; exists {
				delete(room, client)
				if len(room) == 0 {
					delete(h.rooms, roomID)
				}
			}
		}

		h.log.WithUserID(client.UserID).Debug("Realtime client unregistered")
	}
}

func (h *Hub) dispatch(event Event) {
	if event.RoomID != "" {
		h.sendToRoom(event.RoomID, event)
		return
	}
	h.sendToAll(event)
}

func (h *Hub) sendToAll(event Event) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	data, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).Error("Failed to encode broadcast event")
		return
	}
	for client := range h.clients {
		if !client.enqueue(data) {
			// Slow consumer; drop it rather than block the loop.
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

func (h *Hub) sendToRoom(roomID string, event Event) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	room, exists := h.rooms[roomID]
	if !exists {
		return
	}

	observability.WSRoomEventsTotal.WithLabelValues(string(event.Kind)).Inc()

	data, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).Error("Failed to encode room event")
		return
	}
	for client := range room {
		if !client.enqueue(data) {
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

func (h *Hub) sendToClient(client *Client, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).Error("Failed to encode client event")
		return
	}
	client.enqueue(data)
}

// EmitToRide broadcasts an event into a ride's room. Safe to call from
// any goroutine; delivery order within the ride is preserved by the
// run loop.
func (h *Hub) EmitToRide(rideID primitive.ObjectID, event Event) {
	event.RoomID = RideRoom(rideID)
	h.broadcast <- event
}

// EmitToUser targets a single user's personal room.
func (h *Hub) EmitToUser(userID primitive.ObjectID, event Event) {
	event.RoomID = "user_" + userID.Hex()
	h.broadcast <- event
}

func (h *Hub) JoinRoom(client *Client, roomID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.joinRoomLocked(client, roomID)
}

func (h *Hub) joinRoomLocked(client *Client, roomID string) {
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	client.rooms[roomID] = true
}

func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if room, exists := h.rooms[roomID]; exists {
		delete(room, client)
		delete(client.rooms, roomID)

		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// RideRoom names the subscription scope for one ride's events.
func RideRoom(rideID primitive.ObjectID) string {
	return "ride_" + rideID.Hex()
}

// ParseRideRoom recovers the ride id from a room name, reporting false
// for personal rooms and malformed names.
func ParseRideRoom(roomID string) (primitive.ObjectID, bool) {
	const prefix = "ride_"
	if !strings.HasPrefix(roomID, prefix) {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(strings.TrimPrefix(roomID, prefix))
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}
