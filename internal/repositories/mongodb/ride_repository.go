package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ridebid/internal/models"
	"ridebid/internal/repositories/interfaces"
	"ridebid/internal/utils"
	"ridebid/pkg/cache"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const rideCacheTTL = 30 * time.Minute

type rideRepository struct {
	collection *mongo.Collection
	cache      *cache.RedisCache
}

func NewRideRepository(db *mongo.Database, redisCache *cache.RedisCache) interfaces.RideRepository {
	return &rideRepository{
		collection: db.Collection("rides"),
		cache:      redisCache,
	}
}

func (r *rideRepository) Create(ctx context.Context, ride *models.Ride) error {
	ride.ID = primitive.NewObjectID()
	now := time.Now()
	ride.CreatedAt = now
	ride.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, ride)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return interfaces.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create ride: %w", err)
	}

	// Open rides are hot: riders poll them while deciding to bid.
	r.cacheRide(ctx, ride)

	return nil
}

func (r *rideRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	if ride := r.getRideFromCache(ctx, id.Hex()); ride != nil {
		return ride, nil
	}

	var ride models.Ride
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&ride)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}

	if !ride.IsTerminal() {
		r.cacheRide(ctx, &ride)
	}

	return &ride, nil
}

func (r *rideRepository) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()

	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": updates},
	)
	if err != nil {
		return fmt.Errorf("failed to update ride: %w", err)
	}
	if result.MatchedCount == 0 {
		return interfaces.ErrNotFound
	}

	r.invalidateRideCache(ctx, id.Hex())

	return nil
}

func (r *rideRepository) AssignWinner(ctx context.Context, rideID, riderID, bidID primitive.ObjectID) (*models.Ride, error) {
	// The filter on status==requested makes the whole accept decision
	// one conditional write; concurrent acceptors race on it and
	// exactly one can win.
	filter := bson.M{
		"_id":    rideID,
		"status": models.RideStatusRequested,
	}
	update := bson.M{
		"$set": bson.M{
			"rider_id":   riderID,
			"bid_id":     bidID,
			"status":     models.RideStatusMatched,
			"updated_at": time.Now(),
		},
	}

	var ride models.Ride
	err := r.collection.FindOneAndUpdate(
		ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&ride)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, r.classifyMiss(ctx, rideID)
		}
		return nil, fmt.Errorf("failed to assign winner: %w", err)
	}

	r.invalidateRideCache(ctx, rideID.Hex())

	return &ride, nil
}

func (r *rideRepository) TransitionFrom(ctx context.Context, rideID primitive.ObjectID, allowed []models.RideStatus, updates map[string]interface{}) (*models.Ride, error) {
	updates["updated_at"] = time.Now()

	filter := bson.M{
		"_id":    rideID,
		"status": bson.M{"$in": allowed},
	}

	var ride models.Ride
	err := r.collection.FindOneAndUpdate(
		ctx, filter, bson.M{"$set": updates},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&ride)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, r.classifyMiss(ctx, rideID)
		}
		return nil, fmt.Errorf("failed to transition ride: %w", err)
	}

	r.invalidateRideCache(ctx, rideID.Hex())

	return &ride, nil
}

// classifyMiss distinguishes "ride does not exist" from "ride exists
// but the state precondition failed".
func (r *rideRepository) classifyMiss(ctx context.Context, rideID primitive.ObjectID) error {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": rideID})
	if err != nil {
		return fmt.Errorf("failed to classify conditional miss: %w", err)
	}
	if count == 0 {
		return interfaces.ErrNotFound
	}
	return interfaces.ErrStaleState
}

func (r *rideRepository) GetByCustomer(ctx context.Context, customerID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	return r.findRidesWithFilter(ctx, bson.M{"customer_id": customerID}, params)
}

func (r *rideRepository) GetByRider(ctx context.Context, riderID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	return r.findRidesWithFilter(ctx, bson.M{"rider_id": riderID}, params)
}

func (r *rideRepository) GetOpen(ctx context.Context, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	return r.findRidesWithFilter(ctx, bson.M{"status": models.RideStatusRequested}, params)
}

func (r *rideRepository) findRidesWithFilter(ctx context.Context, filter bson.M, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count rides: %w", err)
	}

	cursor, err := r.collection.Find(ctx, filter, params.FindOptions())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find rides: %w", err)
	}
	defer cursor.Close(ctx)

	var rides []*models.Ride
	if err := cursor.All(ctx, &rides); err != nil {
		return nil, 0, fmt.Errorf("failed to decode rides: %w", err)
	}

	return rides, total, nil
}

func (r *rideRepository) cacheRide(ctx context.Context, ride *models.Ride) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Set(ctx, rideCacheKey(ride.ID.Hex()), ride, rideCacheTTL)
}

func (r *rideRepository) getRideFromCache(ctx context.Context, id string) *models.Ride {
	if r.cache == nil {
		return nil
	}
	var ride models.Ride
	if err := r.cache.Get(ctx, rideCacheKey(id), &ride); err != nil {
		return nil
	}
	return &ride
}

func (r *rideRepository) invalidateRideCache(ctx context.Context, id string) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Delete(ctx, rideCacheKey(id))
}

func rideCacheKey(id string) string {
	return "ride:" + id
}
