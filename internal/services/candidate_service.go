package services

import (
	"context"
	"errors"

	"ridebid/internal/apperrors"
	"ridebid/internal/models"
	"ridebid/internal/repositories/interfaces"
	"ridebid/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CandidateService tracks which riders are in the running for a ride,
// independent of their bid amounts.
type CandidateService struct {
	candidates interfaces.CandidateRepository
	rides      interfaces.RideRepository
	bids       interfaces.BidRepository
	log        *logger.Logger
}

func NewCandidateService(
	candidates interfaces.CandidateRepository,
	rides interfaces.RideRepository,
	bids interfaces.BidRepository,
	log *logger.Logger,
) *CandidateService {
	return &CandidateService{
		candidates: candidates,
		rides:      rides,
		bids:       bids,
		log:        log,
	}
}

// SignalInterest registers a rider as a candidate for an open ride.
// Idempotent: repeated calls return the same entry.
func (s *CandidateService) SignalInterest(ctx context.Context, rideID, riderID primitive.ObjectID) (*models.CandidateEntry, error) {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, apperrors.NotFound("ride not found")
		}
		return nil, apperrors.Internal("failed to load ride", err)
	}

	if !ride.IsOpen() {
		return nil, apperrors.New(apperrors.KindRideNotOpen, "ride is not open")
	}

	entry, err := s.candidates.Upsert(ctx, rideID, riderID)
	if err != nil {
		return nil, apperrors.Internal("failed to record candidate", err)
	}

	return entry, nil
}

// Reject hides a candidate from the customer's listing. Owner-only;
// the underlying entry and bid are kept while the ride is open.
func (s *CandidateService) Reject(ctx context.Context, entryID, actorID primitive.ObjectID) error {
	entry, err := s.candidates.GetByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return apperrors.NotFound("candidate not found")
		}
		return apperrors.Internal("failed to load candidate", err)
	}

	ride, err := s.rides.GetByID(ctx, entry.RideID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return apperrors.NotFound("ride not found")
		}
		return apperrors.Internal("failed to load ride", err)
	}

	if ride.CustomerID != actorID {
		return apperrors.Forbidden("only the ride owner can reject riders")
	}

	if err := s.candidates.Hide(ctx, entryID); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return apperrors.NotFound("candidate not found")
		}
		return apperrors.Internal("failed to reject candidate", err)
	}

	s.log.WithRideID(entry.RideID).WithField("rider_id", entry.RiderID.Hex()).Info("Candidate rejected by customer")
	return nil
}

// ListForRide joins each visible candidate with that rider's bid, in
// submission order. Candidates without a bid yet show a zero amount.
func (s *CandidateService) ListForRide(ctx context.Context, rideID primitive.ObjectID) ([]*models.CandidateListing, error) {
	entries, err := s.candidates.ListByRide(ctx, rideID)
	if err != nil {
		return nil, apperrors.Internal("failed to list candidates", err)
	}

	bids, err := s.bids.GetByRide(ctx, rideID)
	if err != nil {
		return nil, apperrors.Internal("failed to list bids", err)
	}

	bidsByRider := make(map[primitive.ObjectID]*models.Bid, len(bids))
	for _, bid := range bids {
		bidsByRider[bid.BidderID] = bid
	}

	listings := make([]*models.CandidateListing, 0, len(entries))
	for _, entry := range entries {
		listing := &models.CandidateListing{Entry: *entry}
		if bid, ok := bidsByRider[entry.RiderID]; ok {
			listing.BidID = bid.ID.Hex()
			listing.BidAmount = bid.Amount
		}
		listings = append(listings, listing)
	}

	return listings, nil
}
