package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind is the closed set of realtime event tags. Dispatch matches
// on the tag, never on free-form strings.
type EventKind string

const (
	EventWelcome    EventKind = "welcome"
	EventJoinRoom   EventKind = "join_room"
	EventLeaveRoom  EventKind = "leave_room"
	EventRoomJoined EventKind = "room_joined"
	EventRoomLeft   EventKind = "room_left"

	EventSendMessage    EventKind = "send_message"
	EventReceiveMessage EventKind = "receive_message"

	EventNewBid              EventKind = "new_bid"
	EventRideAccepted        EventKind = "ride_accepted"
	EventRideCancelled       EventKind = "ride_cancelled"
	EventRideStatusUpdate    EventKind = "ride_status_update"
	EventRiderLocationUpdate EventKind = "rider_location_update"

	EventPing EventKind = "ping"
	EventPong EventKind = "pong"
)

var knownKinds = map[EventKind]bool{
	EventWelcome: true, EventJoinRoom: true, EventLeaveRoom: true,
	EventRoomJoined: true, EventRoomLeft: true,
	EventSendMessage: true, EventReceiveMessage: true,
	EventNewBid: true, EventRideAccepted: true, EventRideCancelled: true,
	EventRideStatusUpdate: true, EventRiderLocationUpdate: true,
	EventPing: true, EventPong: true,
}

func (k EventKind) Valid() bool {
	return knownKinds[k]
}

// Event is the wire envelope. Payload stays raw until a typed decode
// is requested, so the hub can route without knowing every payload.
type Event struct {
	Kind      EventKind       `json:"kind"`
	RoomID    string          `json:"room_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func NewEvent(kind EventKind, roomID string, payload interface{}) (Event, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("failed to encode %s payload: %w", kind, err)
		}
		raw = data
	}

	return Event{
		Kind:      kind,
		RoomID:    roomID,
		Timestamp: time.Now().Unix(),
		Payload:   raw,
	}, nil
}

// MustEvent is NewEvent for payloads that cannot fail to marshal
// (plain structs of scalars).
func MustEvent(kind EventKind, roomID string, payload interface{}) Event {
	ev, err := NewEvent(kind, roomID, payload)
	if err != nil {
		panic(err)
	}
	return ev
}

func (e Event) DecodePayload(dest interface{}) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("event %s has no payload", e.Kind)
	}
	return json.Unmarshal(e.Payload, dest)
}

// Typed payloads for each event kind.

type RoomPayload struct {
	RoomID string `json:"room_id"`
}

type MessagePayload struct {
	RoomID    string `json:"room_id"`
	Message   string `json:"message"`
	UserID    string `json:"user_id"`
	Timestamp int64  `json:"timestamp"`
}

type BidPayload struct {
	BidID    string  `json:"bid_id"`
	RideID   string  `json:"ride_id"`
	BidderID string  `json:"bidder_id"`
	Amount   float64 `json:"amount"`
}

type RideAcceptedPayload struct {
	RideID  string `json:"ride_id"`
	RiderID string `json:"rider_id"`
}

type RideCancelledPayload struct {
	RideID string `json:"ride_id"`
	Reason string `json:"reason"`
}

type RideStatusPayload struct {
	RideID string `json:"ride_id"`
	Status string `json:"status"`
}

type LocationPayload struct {
	RideID    string  `json:"ride_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Heading   float64 `json:"heading,omitempty"`
}
