package interfaces

import (
	"context"

	"ridebid/internal/models"
)

type OneTimeCodeRepository interface {
	// Upsert stores a code hash for the subject, replacing any prior
	// live code (at most one per subject).
	Upsert(ctx context.Context, code *models.OneTimeCode) error
	GetBySubject(ctx context.Context, subjectEmail string) (*models.OneTimeCode, error)
	DeleteBySubject(ctx context.Context, subjectEmail string) error
}
