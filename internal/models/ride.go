package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideStatus string
type PaymentStatus string

const (
	RideStatusNotStarted RideStatus = "not_started"
	RideStatusRequested  RideStatus = "requested"
	RideStatusMatched    RideStatus = "matched"
	RideStatusInProgress RideStatus = "in_progress"
	RideStatusCompleted  RideStatus = "completed"
	RideStatusCancelled  RideStatus = "cancelled"

	PaymentStatusNotReceived PaymentStatus = "not_received"
	PaymentStatusPending     PaymentStatus = "pending"
	PaymentStatusCompleted   PaymentStatus = "completed"
)

type Ride struct {
	ID              primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	RideNumber      string              `json:"ride_number" bson:"ride_number"`
	CustomerID      primitive.ObjectID  `json:"customer_id" bson:"customer_id" validate:"required"`
	RiderID         *primitive.ObjectID `json:"rider_id" bson:"rider_id"`
	BidID           *primitive.ObjectID `json:"bid_id" bson:"bid_id"`
	Status          RideStatus          `json:"status" bson:"status" default:"requested"`
	StartLocation   Location            `json:"start_location" bson:"start_location" validate:"required"`
	Destination     Location            `json:"destination" bson:"destination" validate:"required"`
	Distance        float64             `json:"distance" bson:"distance"` // kilometers
	MinimumPrice    float64             `json:"minimum_price" bson:"minimum_price"`
	CustomerArrived bool                `json:"customer_arrived" bson:"customer_arrived"`
	RiderArrived    bool                `json:"rider_arrived" bson:"rider_arrived"`
	StartTimer      *time.Time          `json:"start_timer" bson:"start_timer"`
	EndTimer        *time.Time          `json:"end_timer" bson:"end_timer"`
	TotalTime       int64               `json:"total_time" bson:"total_time"` // seconds, end - start
	PaymentStatus   PaymentStatus       `json:"payment_status" bson:"payment_status" default:"not_received"`
	CancelledBy     string              `json:"cancelled_by,omitempty" bson:"cancelled_by,omitempty"`
	CancelReason    string              `json:"cancel_reason,omitempty" bson:"cancel_reason,omitempty"`
	CreatedAt       time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at" bson:"updated_at"`
}

// IsOpen reports whether the ride is still accepting bids.
func (r *Ride) IsOpen() bool {
	return r.Status == RideStatusRequested
}

// IsTerminal reports whether the ride can no longer transition.
func (r *Ride) IsTerminal() bool {
	return r.Status == RideStatusCompleted || r.Status == RideStatusCancelled
}

// ArrivalAllowed reports whether arrival flags may still be toggled.
func (r *Ride) ArrivalAllowed() bool {
	return r.Status == RideStatusMatched || r.Status == RideStatusInProgress
}
