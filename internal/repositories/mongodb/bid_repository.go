package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ridebid/internal/models"
	"ridebid/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type bidRepository struct {
	collection *mongo.Collection
}

func NewBidRepository(db *mongo.Database) interfaces.BidRepository {
	return &bidRepository{
		collection: db.Collection("bids"),
	}
}

func (r *bidRepository) Create(ctx context.Context, bid *models.Bid) error {
	bid.ID = primitive.NewObjectID()
	bid.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, bid)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return interfaces.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create bid: %w", err)
	}

	return nil
}

func (r *bidRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Bid, error) {
	var bid models.Bid
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&bid)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}

	return &bid, nil
}

func (r *bidRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete bid: %w", err)
	}
	if result.DeletedCount == 0 {
		return interfaces.ErrNotFound
	}

	return nil
}

func (r *bidRepository) GetByRide(ctx context.Context, rideID primitive.ObjectID) ([]*models.Bid, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"ride_id": rideID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bids: %w", err)
	}
	defer cursor.Close(ctx)

	var bids []*models.Bid
	if err := cursor.All(ctx, &bids); err != nil {
		return nil, fmt.Errorf("failed to decode bids: %w", err)
	}

	return bids, nil
}
