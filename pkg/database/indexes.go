package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the ride/bid flows rely on. The
// unique indexes are load-bearing: (ride_id, bidder_id) on bids backs
// the one-bid-per-rider rule and subject_email on one_time_codes backs
// the one-live-code-per-subject rule.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := map[string][]mongo.IndexModel{
		"rides": {
			{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "rider_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{
				Keys:    bson.D{{Key: "ride_number", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		"bids": {
			{
				Keys:    bson.D{{Key: "ride_id", Value: 1}, {Key: "bidder_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "ride_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		"ride_candidates": {
			{
				Keys:    bson.D{{Key: "ride_id", Value: 1}, {Key: "rider_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "ride_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		"one_time_codes": {
			{
				Keys:    bson.D{{Key: "subject_email", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				// Mongo purges expired codes in the background; Verify
				// still checks expires_at itself because the TTL sweep
				// can lag by up to a minute.
				Keys:    bson.D{{Key: "expires_at", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(0),
			},
		},
		"users": {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		"messages": {
			{Keys: bson.D{{Key: "ride_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
	}

	for collection, models := range indexes {
		_, err := db.Collection(collection).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("failed to create indexes for %s: %w", collection, err)
		}
	}

	return nil
}
