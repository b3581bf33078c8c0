package services

import (
	"context"
	"sync"
	"time"

	"ridebid/internal/models"
	"ridebid/internal/repositories/interfaces"
	"ridebid/internal/utils"
	"ridebid/pkg/notify"
	"ridebid/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory repository fakes. Each mirrors the conditional-write
// semantics of the mongo implementations, including the sentinel
// errors, so the services see the same contract.

type fakeRideRepo struct {
	mu    sync.Mutex
	rides map[primitive.ObjectID]*models.Ride
}

func newFakeRideRepo() *fakeRideRepo {
	return &fakeRideRepo{rides: make(map[primitive.ObjectID]*models.Ride)}
}

func (r *fakeRideRepo) Create(_ context.Context, ride *models.Ride) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ride.ID.IsZero() {
		ride.ID = primitive.NewObjectID()
	}
	copy := *ride
	r.rides[ride.ID] = &copy
	return nil
}

func (r *fakeRideRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ride, ok := r.rides[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	copy := *ride
	return &copy, nil
}

func (r *fakeRideRepo) Update(_ context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ride, ok := r.rides[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	applyRideUpdates(ride, updates)
	return nil
}

func (r *fakeRideRepo) AssignWinner(_ context.Context, rideID, riderID, bidID primitive.ObjectID) (*models.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ride, ok := r.rides[rideID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	if ride.Status != models.RideStatusRequested {
		return nil, interfaces.ErrStaleState
	}
	ride.RiderID = &riderID
	ride.BidID = &bidID
	ride.Status = models.RideStatusMatched
	copy := *ride
	return &copy, nil
}

func (r *fakeRideRepo) TransitionFrom(_ context.Context, rideID primitive.ObjectID, allowed []models.RideStatus, updates map[string]interface{}) (*models.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ride, ok := r.rides[rideID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	permitted := false
	for _, status := range allowed {
		if ride.Status == status {
			permitted = true
			break
		}
	}
	if !permitted {
		return nil, interfaces.ErrStaleState
	}
	applyRideUpdates(ride, updates)
	copy := *ride
	return &copy, nil
}

func (r *fakeRideRepo) GetByCustomer(_ context.Context, customerID primitive.ObjectID, _ *utils.PaginationParams) ([]*models.Ride, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Ride
	for _, ride := range r.rides {
		if ride.CustomerID == customerID {
			copy := *ride
			out = append(out, &copy)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeRideRepo) GetByRider(_ context.Context, riderID primitive.ObjectID, _ *utils.PaginationParams) ([]*models.Ride, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Ride
	for _, ride := range r.rides {
		if ride.RiderID != nil && *ride.RiderID == riderID {
			copy := *ride
			out = append(out, &copy)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeRideRepo) GetOpen(_ context.Context, _ *utils.PaginationParams) ([]*models.Ride, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Ride
	for _, ride := range r.rides {
		if ride.Status == models.RideStatusRequested {
			copy := *ride
			out = append(out, &copy)
		}
	}
	return out, int64(len(out)), nil
}

func applyRideUpdates(ride *models.Ride, updates map[string]interface{}) {
	for field, value := range updates {
		switch field {
		case "status":
			ride.Status = value.(models.RideStatus)
		case "start_timer":
			t := value.(time.Time)
			ride.StartTimer = &t
		case "end_timer":
			t := value.(time.Time)
			ride.EndTimer = &t
		case "total_time":
			ride.TotalTime = value.(int64)
		case "customer_arrived":
			ride.CustomerArrived = value.(bool)
		case "rider_arrived":
			ride.RiderArrived = value.(bool)
		case "payment_status":
			ride.PaymentStatus = value.(models.PaymentStatus)
		case "cancelled_by":
			ride.CancelledBy = value.(string)
		case "cancel_reason":
			ride.CancelReason = value.(string)
		case "updated_at":
			ride.UpdatedAt = value.(time.Time)
		}
	}
}

type fakeBidRepo struct {
	mu   sync.Mutex
	bids map[primitive.ObjectID]*models.Bid

	// onCreate, when set, runs after a successful insert and outside
	// the lock; tests use it to mutate other state mid-flight.
	onCreate func()
}

func newFakeBidRepo() *fakeBidRepo {
	return &fakeBidRepo{bids: make(map[primitive.ObjectID]*models.Bid)}
}

func (r *fakeBidRepo) Create(_ context.Context, bid *models.Bid) error {
	r.mu.Lock()
	for _, existing := range r.bids {
		if existing.RideID == bid.RideID && existing.BidderID == bid.BidderID {
			r.mu.Unlock()
			return interfaces.ErrDuplicateKey
		}
	}
	if bid.ID.IsZero() {
		bid.ID = primitive.NewObjectID()
	}
	copy := *bid
	r.bids[bid.ID] = &copy
	hook := r.onCreate
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (r *fakeBidRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bids[id]; !ok {
		return interfaces.ErrNotFound
	}
	delete(r.bids, id)
	return nil
}

func (r *fakeBidRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bid, ok := r.bids[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	copy := *bid
	return &copy, nil
}

func (r *fakeBidRepo) GetByRide(_ context.Context, rideID primitive.ObjectID) ([]*models.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Bid
	for _, bid := range r.bids {
		if bid.RideID == rideID {
			copy := *bid
			out = append(out, &copy)
		}
	}
	return out, nil
}

type fakeCandidateRepo struct {
	mu      sync.Mutex
	entries map[primitive.ObjectID]*models.CandidateEntry
}

func newFakeCandidateRepo() *fakeCandidateRepo {
	return &fakeCandidateRepo{entries: make(map[primitive.ObjectID]*models.CandidateEntry)}
}

func (r *fakeCandidateRepo) Upsert(_ context.Context, rideID, riderID primitive.ObjectID) (*models.CandidateEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if entry.RideID == rideID && entry.RiderID == riderID {
			copy := *entry
			return &copy, nil
		}
	}
	entry := &models.CandidateEntry{
		ID:        primitive.NewObjectID(),
		RideID:    rideID,
		RiderID:   riderID,
		Status:    models.CandidateStatusNotAccepted,
		CreatedAt: time.Now(),
	}
	r.entries[entry.ID] = entry
	copy := *entry
	return &copy, nil
}

func (r *fakeCandidateRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.CandidateEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	copy := *entry
	return &copy, nil
}

func (r *fakeCandidateRepo) ListByRide(_ context.Context, rideID primitive.ObjectID) ([]*models.CandidateEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.CandidateEntry
	for _, entry := range r.entries {
		if entry.RideID == rideID && !entry.Hidden {
			copy := *entry
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (r *fakeCandidateRepo) Hide(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	entry.Hidden = true
	entry.Status = models.CandidateStatusNotAccepted
	return nil
}

func (r *fakeCandidateRepo) SettleRide(_ context.Context, rideID, winnerRiderID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if entry.RideID != rideID {
			continue
		}
		if entry.RiderID == winnerRiderID {
			entry.Status = models.CandidateStatusAccepted
		} else {
			entry.Status = models.CandidateStatusNotAccepted
		}
	}
	return nil
}

type fakeOTPRepo struct {
	mu    sync.Mutex
	codes map[string]*models.OneTimeCode
}

func newFakeOTPRepo() *fakeOTPRepo {
	return &fakeOTPRepo{codes: make(map[string]*models.OneTimeCode)}
}

func (r *fakeOTPRepo) Upsert(_ context.Context, code *models.OneTimeCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copy := *code
	r.codes[code.SubjectEmail] = &copy
	return nil
}

func (r *fakeOTPRepo) GetBySubject(_ context.Context, subjectEmail string) (*models.OneTimeCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.codes[subjectEmail]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	copy := *code
	return &copy, nil
}

func (r *fakeOTPRepo) DeleteBySubject(_ context.Context, subjectEmail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.codes, subjectEmail)
	return nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[primitive.ObjectID]*models.User)}
}

func (r *fakeUserRepo) add(user *models.User) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	copy := *user
	r.users[user.ID] = &copy
	return user
}

func (r *fakeUserRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	copy := *user
	return &copy, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			copy := *user
			return &copy, nil
		}
	}
	return nil, interfaces.ErrNotFound
}

// recordingEmitter captures emitted events for assertions.
type recordingEmitter struct {
	mu     sync.Mutex
	events []websocket.Event
}

func (e *recordingEmitter) EmitToRide(_ primitive.ObjectID, event websocket.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *recordingEmitter) EmitToUser(_ primitive.ObjectID, event websocket.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *recordingEmitter) kinds() []websocket.EventKind {
	e.mu.Lock()
	defer e.mu.Unlock()
	kinds := make([]websocket.EventKind, len(e.events))
	for i, event := range e.events {
		kinds[i] = event.Kind
	}
	return kinds
}

// recordingSender captures delivered codes instead of sending them.
type recordingSender struct {
	mu    sync.Mutex
	codes map[string]string
	fail  bool
}

func newRecordingSender() *recordingSender {
	return &recordingSender{codes: make(map[string]string)}
}

func (s *recordingSender) SendCode(_ context.Context, recipient *notify.Recipient, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return context.DeadlineExceeded
	}
	s.codes[recipient.Email] = code
	return nil
}

func (s *recordingSender) codeFor(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[email]
}
