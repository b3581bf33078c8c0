package services

import (
	"context"
	"errors"
	"time"

	"ridebid/internal/apperrors"
	"ridebid/internal/models"
	"ridebid/internal/observability"
	"ridebid/internal/repositories/interfaces"
	"ridebid/pkg/logger"
	"ridebid/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BidService struct {
	bids       interfaces.BidRepository
	rides      interfaces.RideRepository
	candidates interfaces.CandidateRepository
	emitter    Emitter
	log        *logger.Logger
	now        func() time.Time
}

func NewBidService(
	bids interfaces.BidRepository,
	rides interfaces.RideRepository,
	candidates interfaces.CandidateRepository,
	emitter Emitter,
	log *logger.Logger,
) *BidService {
	return &BidService{
		bids:       bids,
		rides:      rides,
		candidates: candidates,
		emitter:    emitter,
		log:        log,
		now:        time.Now,
	}
}

// Submit records a rider's priced offer against an open ride. The ride
// stays in requested; acceptance is the customer's separate step. The
// unique index on (ride_id, bidder_id) makes the duplicate check
// atomic with the insert.
func (s *BidService) Submit(ctx context.Context, rideID, bidderID primitive.ObjectID, amount float64) (*models.Bid, error) {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, apperrors.NotFound("ride not found")
		}
		return nil, apperrors.Internal("failed to load ride", err)
	}

	if !ride.IsOpen() {
		return nil, apperrors.New(apperrors.KindRideNotOpen, "ride is not open for bidding")
	}

	if amount < ride.MinimumPrice {
		return nil, apperrors.New(apperrors.KindBelowMinimum, "bid amount is below the minimum price")
	}

	bid := &models.Bid{
		RideID:    rideID,
		BidderID:  bidderID,
		Amount:    amount,
		CreatedAt: s.now(),
	}

	if err := s.bids.Create(ctx, bid); err != nil {
		if errors.Is(err, interfaces.ErrDuplicateKey) {
			return nil, apperrors.New(apperrors.KindDuplicateBid, "you have already bid on this ride")
		}
		return nil, apperrors.Internal("failed to save bid", err)
	}

	// The open check and the insert are separate writes, so the ride
	// can leave requested in between. Re-check after the insert and
	// take the bid back out; a bid against a closed ride must never
	// become visible. The winner assignment is separately conditioned
	// on status == requested, so a bid slipping through here could
	// still never be accepted.
	current, err := s.rides.GetByID(ctx, rideID)
	if err != nil || !current.IsOpen() {
		if delErr := s.bids.Delete(ctx, bid.ID); delErr != nil {
			s.log.WithError(delErr).WithBidID(bid.ID).Warn("Failed to withdraw late bid")
		}
		return nil, apperrors.New(apperrors.KindRideNotOpen, "ride is not open for bidding")
	}

	// A bid doubles as a signal of interest; the upsert is idempotent
	// so an explicit signalInterest beforehand is harmless.
	if _, err := s.candidates.Upsert(ctx, rideID, bidderID); err != nil {
		s.log.WithError(err).WithRideID(rideID).Warn("Failed to record candidate for bid")
	}

	observability.BidsSubmittedTotal.Inc()
	s.log.WithRideID(rideID).WithBidID(bid.ID).Info("Bid submitted")

	s.emitter.EmitToRide(rideID, websocket.MustEvent(websocket.EventNewBid, "", websocket.BidPayload{
		BidID:    bid.ID.Hex(),
		RideID:   rideID.Hex(),
		BidderID: bidderID.Hex(),
		Amount:   amount,
	}))

	return bid, nil
}

func (s *BidService) GetByRide(ctx context.Context, rideID primitive.ObjectID) ([]*models.Bid, error) {
	bids, err := s.bids.GetByRide(ctx, rideID)
	if err != nil {
		return nil, apperrors.Internal("failed to list bids", err)
	}
	return bids, nil
}
