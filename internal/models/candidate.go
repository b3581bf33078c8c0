package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CandidateStatus string

const (
	CandidateStatusAccepted    CandidateStatus = "accepted"
	CandidateStatusNotAccepted CandidateStatus = "not_accepted"
)

// CandidateEntry tracks a rider who has expressed interest in a ride,
// independent of the bid amount. Entries are never deleted while the
// ride is open; a rejected rider is hidden from listings instead.
type CandidateEntry struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RideID    primitive.ObjectID `json:"ride_id" bson:"ride_id" validate:"required"`
	RiderID   primitive.ObjectID `json:"rider_id" bson:"rider_id" validate:"required"`
	Status    CandidateStatus    `json:"status" bson:"status" default:"not_accepted"`
	Hidden    bool               `json:"-" bson:"hidden"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}

// CandidateListing is the customer-facing join of a candidate entry
// with the rider's bid amount.
type CandidateListing struct {
	Entry     CandidateEntry `json:"entry"`
	BidID     string         `json:"bid_id,omitempty"`
	BidAmount float64        `json:"bid_amount"`
}
