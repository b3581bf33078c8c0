package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is one chat line exchanged inside a ride's room.
type Message struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RideID    primitive.ObjectID `json:"ride_id" bson:"ride_id" validate:"required"`
	SenderID  primitive.ObjectID `json:"sender_id" bson:"sender_id" validate:"required"`
	Content   string             `json:"content" bson:"content" validate:"required,max=1000"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}
