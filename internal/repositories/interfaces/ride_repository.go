package interfaces

import (
	"context"

	"ridebid/internal/models"
	"ridebid/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideRepository interface {
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error)
	Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error

	// AssignWinner is the single atomic conditional write that decides
	// the bid race: it sets rider_id, bid_id and status=matched if and
	// only if the ride is still in `requested`. Returns ErrStaleState
	// when another acceptance got there first, ErrNotFound when the
	// ride does not exist at all.
	AssignWinner(ctx context.Context, rideID, riderID, bidID primitive.ObjectID) (*models.Ride, error)

	// TransitionFrom applies updates (which must include the new
	// status) if the ride's current status is one of allowed. Returns
	// the post-update ride, ErrStaleState on a state mismatch.
	TransitionFrom(ctx context.Context, rideID primitive.ObjectID, allowed []models.RideStatus, updates map[string]interface{}) (*models.Ride, error)

	GetByCustomer(ctx context.Context, customerID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error)
	GetByRider(ctx context.Context, riderID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error)
	GetOpen(ctx context.Context, params *utils.PaginationParams) ([]*models.Ride, int64, error)
}
