package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ridebid/internal/models"
	"ridebid/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type oneTimeCodeRepository struct {
	collection *mongo.Collection
}

func NewOneTimeCodeRepository(db *mongo.Database) interfaces.OneTimeCodeRepository {
	return &oneTimeCodeRepository{
		collection: db.Collection("one_time_codes"),
	}
}

func (r *oneTimeCodeRepository) Upsert(ctx context.Context, code *models.OneTimeCode) error {
	code.CreatedAt = time.Now()

	filter := bson.M{"subject_email": code.SubjectEmail}
	update := bson.M{
		"$set": bson.M{
			"code_hash":  code.CodeHash,
			"expires_at": code.ExpiresAt,
			"created_at": code.CreatedAt,
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to store one-time code: %w", err)
	}

	return nil
}

func (r *oneTimeCodeRepository) GetBySubject(ctx context.Context, subjectEmail string) (*models.OneTimeCode, error) {
	var code models.OneTimeCode
	err := r.collection.FindOne(ctx, bson.M{"subject_email": subjectEmail}).Decode(&code)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get one-time code: %w", err)
	}

	return &code, nil
}

func (r *oneTimeCodeRepository) DeleteBySubject(ctx context.Context, subjectEmail string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"subject_email": subjectEmail})
	if err != nil {
		return fmt.Errorf("failed to delete one-time code: %w", err)
	}

	return nil
}
