package interfaces

import (
	"context"

	"ridebid/internal/models"
	"ridebid/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	ListByRide(ctx context.Context, rideID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Message, int64, error)
}
