package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OneTimeCode stores the bcrypt hash of a short-lived numeric code,
// keyed by the subject's email. At most one live code per subject;
// issuing a new one overwrites the old. The plaintext is never stored.
type OneTimeCode struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SubjectEmail string             `json:"subject_email" bson:"subject_email" validate:"required,email"`
	CodeHash     string             `json:"-" bson:"code_hash"`
	ExpiresAt    time.Time          `json:"expires_at" bson:"expires_at"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`
}

func (c *OneTimeCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
