package services

import (
	"context"
	"errors"
	"time"

	"ridebid/internal/apperrors"
	"ridebid/internal/models"
	"ridebid/internal/observability"
	"ridebid/internal/repositories/interfaces"
	"ridebid/internal/utils"
	"ridebid/pkg/logger"

	"golang.org/x/crypto/bcrypt"
)

// OneTimeCodeService issues and verifies short-lived numeric codes.
// Only the bcrypt hash is stored; the plaintext exists exactly once,
// in the return value of Issue, for out-of-band delivery.
type OneTimeCodeService struct {
	codes  interfaces.OneTimeCodeRepository
	log    *logger.Logger
	length int
	expiry time.Duration
	now    func() time.Time
}

func NewOneTimeCodeService(codes interfaces.OneTimeCodeRepository, log *logger.Logger, length int, expiry time.Duration) *OneTimeCodeService {
	if length <= 0 {
		length = utils.OTPLength
	}
	if expiry <= 0 {
		expiry = 10 * time.Minute
	}
	return &OneTimeCodeService{
		codes:  codes,
		log:    log,
		length: length,
		expiry: expiry,
		now:    time.Now,
	}
}

// Issue generates a fresh code for the subject, overwriting any prior
// live code. At most one code is live per subject at any time.
func (s *OneTimeCodeService) Issue(ctx context.Context, subjectEmail string) (string, error) {
	code := utils.GenerateRandomNumericString(s.length)

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", apperrors.Internal("failed to hash one-time code", err)
	}

	record := &models.OneTimeCode{
		SubjectEmail: subjectEmail,
		CodeHash:     string(hash),
		ExpiresAt:    s.now().Add(s.expiry),
		CreatedAt:    s.now(),
	}

	if err := s.codes.Upsert(ctx, record); err != nil {
		return "", apperrors.Internal("failed to store one-time code", err)
	}

	s.log.WithField("subject", subjectEmail).Info("One-time code issued")
	return code, nil
}

// Verify checks a submitted code against the stored hash. Success
// consumes the code; a mismatch leaves it in place so the subject can
// retry until expiry.
func (s *OneTimeCodeService) Verify(ctx context.Context, subjectEmail, submittedCode string) error {
	record, err := s.codes.GetBySubject(ctx, subjectEmail)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			observability.OTPVerificationsTotal.WithLabelValues("not_found").Inc()
			return apperrors.New(apperrors.KindCodeNotFound, "no code issued for this email")
		}
		return apperrors.Internal("failed to load one-time code", err)
	}

	if record.Expired(s.now()) {
		observability.OTPVerificationsTotal.WithLabelValues("expired").Inc()
		return apperrors.New(apperrors.KindCodeExpired, "code has expired")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(record.CodeHash), []byte(submittedCode)); err != nil {
		observability.OTPVerificationsTotal.WithLabelValues("mismatch").Inc()
		return apperrors.New(apperrors.KindCodeMismatch, "incorrect code")
	}

	// Single-use: delete on success. A delete failure is logged but
	// not surfaced, the verification itself succeeded.
	if err := s.codes.DeleteBySubject(ctx, subjectEmail); err != nil {
		s.log.WithError(err).WithField("subject", subjectEmail).Warn("Failed to consume verified code")
	}

	observability.OTPVerificationsTotal.WithLabelValues("success").Inc()
	return nil
}
