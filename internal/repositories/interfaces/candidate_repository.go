package interfaces

import (
	"context"

	"ridebid/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CandidateRepository interface {
	// Upsert records interest; repeated calls for the same
	// (ride, rider) pair are no-ops apart from updated_at.
	Upsert(ctx context.Context, rideID, riderID primitive.ObjectID) (*models.CandidateEntry, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.CandidateEntry, error)
	ListByRide(ctx context.Context, rideID primitive.ObjectID) ([]*models.CandidateEntry, error)

	// Hide marks a candidate rejected-by-owner so listings skip it.
	// The entry itself is kept while the ride is open.
	Hide(ctx context.Context, id primitive.ObjectID) error

	// SettleRide marks the winner accepted and every other candidate
	// for the ride not_accepted.
	SettleRide(ctx context.Context, rideID, winnerRiderID primitive.ObjectID) error
}
