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

type candidateRepository struct {
	collection *mongo.Collection
}

func NewCandidateRepository(db *mongo.Database) interfaces.CandidateRepository {
	return &candidateRepository{
		collection: db.Collection("ride_candidates"),
	}
}

func (r *candidateRepository) Upsert(ctx context.Context, rideID, riderID primitive.ObjectID) (*models.CandidateEntry, error) {
	now := time.Now()
	filter := bson.M{"ride_id": rideID, "rider_id": riderID}
	update := bson.M{
		"$set": bson.M{"updated_at": now},
		"$setOnInsert": bson.M{
			"ride_id":    rideID,
			"rider_id":   riderID,
			"status":     models.CandidateStatusNotAccepted,
			"hidden":     false,
			"created_at": now,
		},
	}

	var entry models.CandidateEntry
	err := r.collection.FindOneAndUpdate(
		ctx, filter, update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&entry)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert candidate: %w", err)
	}

	return &entry, nil
}

func (r *candidateRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.CandidateEntry, error) {
	var entry models.CandidateEntry
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}

	return &entry, nil
}

func (r *candidateRepository) ListByRide(ctx context.Context, rideID primitive.ObjectID) ([]*models.CandidateEntry, error) {
	filter := bson.M{"ride_id": rideID, "hidden": false}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find candidates: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*models.CandidateEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode candidates: %w", err)
	}

	return entries, nil
}

func (r *candidateRepository) Hide(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"status":     models.CandidateStatusNotAccepted,
			"hidden":     true,
			"updated_at": time.Now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to hide candidate: %w", err)
	}
	if result.MatchedCount == 0 {
		return interfaces.ErrNotFound
	}

	return nil
}

func (r *candidateRepository) SettleRide(ctx context.Context, rideID, winnerRiderID primitive.ObjectID) error {
	now := time.Now()

	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"ride_id": rideID, "rider_id": winnerRiderID},
		bson.M{"$set": bson.M{
			"status":     models.CandidateStatusAccepted,
			"updated_at": now,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark winning candidate: %w", err)
	}

	_, err = r.collection.UpdateMany(
		ctx,
		bson.M{"ride_id": rideID, "rider_id": bson.M{"$ne": winnerRiderID}},
		bson.M{"$set": bson.M{
			"status":     models.CandidateStatusNotAccepted,
			"updated_at": now,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark losing candidates: %w", err)
	}

	return nil
}
