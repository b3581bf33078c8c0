package interfaces

import (
	"context"

	"ridebid/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BidRepository interface {
	// Create persists a bid. The unique (ride_id, bidder_id) index
	// enforces one bid per rider per ride; violations surface as
	// ErrDuplicateKey.
	Create(ctx context.Context, bid *models.Bid) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Bid, error)
	GetByRide(ctx context.Context, rideID primitive.ObjectID) ([]*models.Bid, error)
	// Delete removes a bid; used to take back an insert that raced a
	// status change on its ride.
	Delete(ctx context.Context, id primitive.ObjectID) error
}
