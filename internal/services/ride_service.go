package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"ridebid/internal/apperrors"
	"ridebid/internal/config"
	"ridebid/internal/models"
	"ridebid/internal/observability"
	"ridebid/internal/repositories/interfaces"
	"ridebid/internal/utils"
	"ridebid/pkg/logger"
	"ridebid/pkg/notify"
	"ridebid/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RideService owns the ride lifecycle. Every transition goes through
// an atomic conditional write in the repository, so concurrent calls
// for the same ride resolve to exactly one winner per transition.
type RideService struct {
	rides      interfaces.RideRepository
	bids       interfaces.BidRepository
	candidates interfaces.CandidateRepository
	users      interfaces.UserRepository
	otp        *OneTimeCodeService
	sender     notify.Sender
	emitter    Emitter
	rideCfg    *config.RideConfig
	log        *logger.Logger
	now        func() time.Time
}

func NewRideService(
	rides interfaces.RideRepository,
	bids interfaces.BidRepository,
	candidates interfaces.CandidateRepository,
	users interfaces.UserRepository,
	otp *OneTimeCodeService,
	sender notify.Sender,
	emitter Emitter,
	rideCfg *config.RideConfig,
	log *logger.Logger,
) *RideService {
	return &RideService{
		rides:      rides,
		bids:       bids,
		candidates: candidates,
		users:      users,
		otp:        otp,
		sender:     sender,
		emitter:    emitter,
		rideCfg:    rideCfg,
		log:        log,
		now:        time.Now,
	}
}

// Create opens a new ride for bidding. The minimum price is derived
// from the haversine distance and the configured rate.
func (s *RideService) Create(ctx context.Context, customerID primitive.ObjectID, start, destination models.Location) (*models.Ride, error) {
	if start.Address == "" || destination.Address == "" {
		return nil, apperrors.Validation("start and destination addresses are required")
	}
	if !utils.IsValidCoordinate(start.Latitude(), start.Longitude()) ||
		!utils.IsValidCoordinate(destination.Latitude(), destination.Longitude()) {
		return nil, apperrors.Validation("invalid coordinates")
	}

	distance := utils.CalculateDistance(
		start.Latitude(), start.Longitude(),
		destination.Latitude(), destination.Longitude(),
	)
	if distance > s.rideCfg.MaxRideKM {
		return nil, apperrors.Validation("ride distance exceeds the allowed maximum")
	}

	now := s.now()
	ride := &models.Ride{
		RideNumber:    utils.GenerateRideNumber(s.rideCfg.RideNumPrefix),
		CustomerID:    customerID,
		Status:        models.RideStatusRequested,
		StartLocation: start,
		Destination:   destination,
		Distance:      distance,
		MinimumPrice:  s.rideCfg.BasePrice + s.rideCfg.PricePerKM*distance,
		PaymentStatus: models.PaymentStatusNotReceived,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.rides.Create(ctx, ride); err != nil {
		return nil, apperrors.Internal("failed to create ride", err)
	}

	observability.RidesCreatedTotal.Inc()
	s.log.LogRideEvent(ride.ID, "ride_created", map[string]interface{}{
		"ride_number":   ride.RideNumber,
		"distance_km":   ride.Distance,
		"minimum_price": ride.MinimumPrice,
	})

	return ride, nil
}

func (s *RideService) GetByID(ctx context.Context, rideID primitive.ObjectID) (*models.Ride, error) {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, apperrors.NotFound("ride not found")
		}
		return nil, apperrors.Internal("failed to load ride", err)
	}
	return ride, nil
}

// ListForUser returns the rides a user participates in, as customer or
// as assigned rider depending on their role.
func (s *RideService) ListForUser(ctx context.Context, userID primitive.ObjectID, userType models.UserType, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	var (
		rides []*models.Ride
		total int64
		err   error
	)
	if userType == models.UserTypeRider {
		rides, total, err = s.rides.GetByRider(ctx, userID, params)
	} else {
		rides, total, err = s.rides.GetByCustomer(ctx, userID, params)
	}
	if err != nil {
		return nil, 0, apperrors.Internal("failed to list rides", err)
	}
	return rides, total, nil
}

// ListOpen returns rides still accepting bids, newest first.
func (s *RideService) ListOpen(ctx context.Context, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	rides, total, err := s.rides.GetOpen(ctx, params)
	if err != nil {
		return nil, 0, apperrors.Internal("failed to list open rides", err)
	}
	return rides, total, nil
}

// Cancel aborts a ride before a rider is locked in. Once matched, the
// ride cannot be cancelled through this path.
func (s *RideService) Cancel(ctx context.Context, rideID, actorID primitive.ObjectID, reason string) error {
	ride, err := s.GetByID(ctx, rideID)
	if err != nil {
		return err
	}
	if ride.CustomerID != actorID {
		return apperrors.Forbidden("only the ride owner can cancel")
	}

	allowed := []models.RideStatus{models.RideStatusNotStarted, models.RideStatusRequested}
	updates := map[string]interface{}{
		"status":        models.RideStatusCancelled,
		"cancelled_by":  actorID.Hex(),
		"cancel_reason": reason,
		"updated_at":    s.now(),
	}

	if _, err := s.rides.TransitionFrom(ctx, rideID, allowed, updates); err != nil {
		if errors.Is(err, interfaces.ErrStaleState) {
			return apperrors.InvalidState("ride can no longer be cancelled")
		}
		if errors.Is(err, interfaces.ErrNotFound) {
			return apperrors.NotFound("ride not found")
		}
		return apperrors.Internal("failed to cancel ride", err)
	}

	observability.RidesCancelledTotal.Inc()
	s.log.LogRideEvent(rideID, "ride_cancelled", map[string]interface{}{"reason": reason})

	s.emitter.EmitToRide(rideID, websocket.MustEvent(websocket.EventRideCancelled, "", websocket.RideCancelledPayload{
		RideID: rideID.Hex(),
		Reason: reason,
	}))

	return nil
}

// AcceptCandidate resolves a customer's pick from the candidate list
// to the underlying (ride, bid) pair and runs the acceptance.
func (s *RideService) AcceptCandidate(ctx context.Context, candidateID, customerID primitive.ObjectID) (string, error) {
	entry, err := s.candidates.GetByID(ctx, candidateID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return "", apperrors.NotFound("candidate not found")
		}
		return "", apperrors.Internal("failed to load candidate", err)
	}

	bids, err := s.bids.GetByRide(ctx, entry.RideID)
	if err != nil {
		return "", apperrors.Internal("failed to list bids", err)
	}

	var winning *models.Bid
	for _, bid := range bids {
		if bid.BidderID == entry.RiderID {
			winning = bid
			break
		}
	}
	if winning == nil {
		return "", apperrors.Validation("rider has not placed a bid on this ride")
	}

	return s.AcceptBid(ctx, entry.RideID, winning.ID, customerID)
}

// AcceptBid picks the winning bid. The status flip is a single
// conditional write keyed on status == requested, so of N concurrent
// accepts exactly one succeeds and the rest get a conflict. On success
// a one-time start code is issued to the winning rider and the rider's
// email is returned so the caller knows where it went.
func (s *RideService) AcceptBid(ctx context.Context, rideID, bidID, customerID primitive.ObjectID) (string, error) {
	bid, err := s.bids.GetByID(ctx, bidID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return "", apperrors.NotFound("bid not found")
		}
		return "", apperrors.Internal("failed to load bid", err)
	}
	if bid.RideID != rideID {
		return "", apperrors.Validation("bid does not belong to this ride")
	}

	ride, err := s.GetByID(ctx, rideID)
	if err != nil {
		return "", err
	}
	if ride.CustomerID != customerID {
		return "", apperrors.Forbidden("only the ride owner can accept a bid")
	}

	ride, err = s.rides.AssignWinner(ctx, rideID, bid.BidderID, bidID)
	if err != nil {
		if errors.Is(err, interfaces.ErrStaleState) {
			observability.BidAcceptConflictsTotal.Inc()
			return "", apperrors.Conflict("ride already matched")
		}
		if errors.Is(err, interfaces.ErrNotFound) {
			return "", apperrors.NotFound("ride not found")
		}
		return "", apperrors.Internal("failed to accept bid", err)
	}

	if err := s.candidates.SettleRide(ctx, rideID, bid.BidderID); err != nil {
		s.log.WithError(err).WithRideID(rideID).Warn("Failed to settle candidate pool")
	}

	rider, err := s.users.GetByID(ctx, bid.BidderID)
	if err != nil {
		return "", apperrors.Internal("failed to load winning rider", err)
	}

	code, err := s.otp.Issue(ctx, rider.Email)
	if err != nil {
		return "", err
	}

	// Delivery failure does not roll back the acceptance; the code is
	// stored and a fresh accept-side resend can be added later.
	recipient := &notify.Recipient{Email: rider.Email, Phone: rider.Phone, Name: rider.FirstName}
	if err := s.sender.SendCode(ctx, recipient, code); err != nil {
		s.log.WithError(err).WithRideID(rideID).Warn("Failed to deliver start code")
	}

	s.log.LogRideEvent(rideID, "bid_accepted", map[string]interface{}{
		"bid_id":   bidID.Hex(),
		"rider_id": bid.BidderID.Hex(),
		"amount":   bid.Amount,
	})

	s.emitter.EmitToRide(rideID, websocket.MustEvent(websocket.EventRideAccepted, "", websocket.RideAcceptedPayload{
		RideID:  rideID.Hex(),
		RiderID: bid.BidderID.Hex(),
	}))
	s.emitStatus(rideID, ride.Status)

	return rider.Email, nil
}

// ConfirmStart verifies the submitted one-time code and moves the ride
// into in_progress. A bad code leaves the ride, and the stored code,
// untouched.
func (s *RideService) ConfirmStart(ctx context.Context, rideID primitive.ObjectID, subjectEmail, submittedCode string) (*models.Ride, error) {
	ride, err := s.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != models.RideStatusMatched || ride.RiderID == nil {
		return nil, apperrors.InvalidState("ride is not awaiting a start code")
	}

	// The code subject is always the assigned rider. The gate is shared
	// with other code flows, so a code issued to any other address must
	// never start this ride.
	rider, err := s.users.GetByID(ctx, *ride.RiderID)
	if err != nil {
		return nil, apperrors.Internal("failed to load assigned rider", err)
	}
	if !strings.EqualFold(subjectEmail, rider.Email) {
		return nil, apperrors.Forbidden("code subject does not match the assigned rider")
	}

	if err := s.otp.Verify(ctx, rider.Email, submittedCode); err != nil {
		return nil, err
	}

	now := s.now()
	updates := map[string]interface{}{
		"status":      models.RideStatusInProgress,
		"start_timer": now,
		"updated_at":  now,
	}

	ride, err = s.rides.TransitionFrom(ctx, rideID, []models.RideStatus{models.RideStatusMatched}, updates)
	if err != nil {
		if errors.Is(err, interfaces.ErrStaleState) {
			return nil, apperrors.InvalidState("ride is not awaiting a start code")
		}
		return nil, apperrors.Internal("failed to start ride", err)
	}

	s.log.LogRideEvent(rideID, "ride_started", nil)
	s.emitStatus(rideID, ride.Status)

	return ride, nil
}

// MarkArrived flips one party's arrival flag. No lifecycle transition
// happens here.
func (s *RideService) MarkArrived(ctx context.Context, rideID, actorID primitive.ObjectID, who models.UserType) error {
	ride, err := s.GetByID(ctx, rideID)
	if err != nil {
		return err
	}
	if !ride.ArrivalAllowed() {
		return apperrors.InvalidState("arrival can only be marked on a matched or in-progress ride")
	}

	var field string
	switch who {
	case models.UserTypeCustomer:
		if ride.CustomerID != actorID {
			return apperrors.Forbidden("not your ride")
		}
		field = "customer_arrived"
	case models.UserTypeRider:
		if ride.RiderID == nil || *ride.RiderID != actorID {
			return apperrors.Forbidden("not your ride")
		}
		field = "rider_arrived"
	default:
		return apperrors.Validation("unknown party")
	}

	updates := map[string]interface{}{field: true, "updated_at": s.now()}
	if err := s.rides.Update(ctx, rideID, updates); err != nil {
		return apperrors.Internal("failed to mark arrival", err)
	}

	s.log.LogRideEvent(rideID, "arrival_marked", map[string]interface{}{"party": string(who)})
	return nil
}

// Complete finalizes an in-progress ride and returns the assigned
// rider and the elapsed seconds for downstream review.
func (s *RideService) Complete(ctx context.Context, rideID, actorID primitive.ObjectID) (primitive.ObjectID, int64, error) {
	ride, err := s.GetByID(ctx, rideID)
	if err != nil {
		return primitive.NilObjectID, 0, err
	}
	if ride.CustomerID != actorID && (ride.RiderID == nil || *ride.RiderID != actorID) {
		return primitive.NilObjectID, 0, apperrors.Forbidden("not your ride")
	}

	now := s.now()
	var totalTime int64
	if ride.StartTimer != nil {
		totalTime = int64(now.Sub(*ride.StartTimer).Seconds())
	}

	updates := map[string]interface{}{
		"status":     models.RideStatusCompleted,
		"end_timer":  now,
		"total_time": totalTime,
		"updated_at": now,
	}

	ride, err = s.rides.TransitionFrom(ctx, rideID, []models.RideStatus{models.RideStatusInProgress}, updates)
	if err != nil {
		if errors.Is(err, interfaces.ErrStaleState) {
			return primitive.NilObjectID, 0, apperrors.InvalidState("ride is not in progress")
		}
		if errors.Is(err, interfaces.ErrNotFound) {
			return primitive.NilObjectID, 0, apperrors.NotFound("ride not found")
		}
		return primitive.NilObjectID, 0, apperrors.Internal("failed to complete ride", err)
	}

	observability.RidesCompletedTotal.Inc()
	s.log.LogRideEvent(rideID, "ride_completed", map[string]interface{}{"total_time": totalTime})
	s.emitStatus(rideID, ride.Status)

	var riderID primitive.ObjectID
	if ride.RiderID != nil {
		riderID = *ride.RiderID
	}
	return riderID, totalTime, nil
}

// SetPaymentStatus records payment bookkeeping. Advisory only; it does
// not gate any lifecycle transition and stays writable after
// completion.
func (s *RideService) SetPaymentStatus(ctx context.Context, rideID, actorID primitive.ObjectID, status models.PaymentStatus) error {
	ride, err := s.GetByID(ctx, rideID)
	if err != nil {
		return err
	}
	if ride.CustomerID != actorID {
		return apperrors.Forbidden("only the ride owner can update payment status")
	}

	updates := map[string]interface{}{"payment_status": status, "updated_at": s.now()}
	if err := s.rides.Update(ctx, rideID, updates); err != nil {
		return apperrors.Internal("failed to update payment status", err)
	}

	return nil
}

func (s *RideService) emitStatus(rideID primitive.ObjectID, status models.RideStatus) {
	s.emitter.EmitToRide(rideID, websocket.MustEvent(websocket.EventRideStatusUpdate, "", websocket.RideStatusPayload{
		RideID: rideID.Hex(),
		Status: string(status),
	}))
}
