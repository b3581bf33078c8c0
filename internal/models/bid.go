package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Bid is a rider's priced offer against an open ride. Exactly one bid
// per (ride, bidder) pair; bids are never amended or withdrawn.
type Bid struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RideID    primitive.ObjectID `json:"ride_id" bson:"ride_id" validate:"required"`
	BidderID  primitive.ObjectID `json:"bidder_id" bson:"bidder_id" validate:"required"`
	Amount    float64            `json:"amount" bson:"amount" validate:"required,gt=0"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}
