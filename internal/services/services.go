package services

import (
	"ridebid/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Emitter pushes realtime events out to connected sessions. Satisfied
// by *websocket.Hub; tests substitute a recording fake.
type Emitter interface {
	EmitToRide(rideID primitive.ObjectID, event websocket.Event)
	EmitToUser(userID primitive.ObjectID, event websocket.Event)
}

// NopEmitter drops every event. Used where realtime delivery is not
// wired, such as offline tooling.
type NopEmitter struct{}

func (NopEmitter) EmitToRide(primitive.ObjectID, websocket.Event) {}
func (NopEmitter) EmitToUser(primitive.ObjectID, websocket.Event) {}
