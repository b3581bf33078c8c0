package services

import (
	"context"
	"time"

	"ridebid/internal/models"
	"ridebid/internal/utils"
	"ridebid/pkg/cache"
	"ridebid/pkg/logger"
	"ridebid/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	inboundTimeout   = 10 * time.Second
	locationCacheTTL = 30 * time.Second
)

// ChatService handles client-originated room events the hub delegates:
// chat messages are persisted then rebroadcast, rider location updates
// are cached for late joiners then rebroadcast. Implements
// websocket.InboundHandler.
type ChatService struct {
	messages MessageStore
	cache    *cache.RedisCache
	emitter  Emitter
	log      *logger.Logger
	now      func() time.Time
}

// MessageStore is the slice of the message repository the chat path
// needs.
type MessageStore interface {
	Create(ctx context.Context, message *models.Message) error
}

func NewChatService(messages MessageStore, redisCache *cache.RedisCache, emitter Emitter, log *logger.Logger) *ChatService {
	return &ChatService{
		messages: messages,
		cache:    redisCache,
		emitter:  emitter,
		log:      log,
		now:      time.Now,
	}
}

// HandleInbound runs on the hub's read path; it must not block on the
// sender's own connection. Persistence uses a detached context so a
// slow write does not stall the pump.
func (s *ChatService) HandleInbound(client *websocket.Client, event websocket.Event) {
	switch event.Kind {
	case websocket.EventSendMessage:
		s.handleMessage(client, event)
	case websocket.EventRiderLocationUpdate:
		s.handleLocation(client, event)
	}
}

func (s *ChatService) handleMessage(client *websocket.Client, event websocket.Event) {
	var payload websocket.MessagePayload
	if err := event.DecodePayload(&payload); err != nil {
		s.log.WithError(err).Debug("Malformed chat payload")
		return
	}
	if payload.Message == "" || len(payload.Message) > utils.MaxMessageLength {
		return
	}

	rideID, ok := websocket.ParseRideRoom(payload.RoomID)
	if !ok || !client.InRoom(payload.RoomID) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), inboundTimeout)
	defer cancel()

	message := &models.Message{
		RideID:    rideID,
		SenderID:  client.UserID,
		Content:   payload.Message,
		CreatedAt: s.now(),
	}
	if err := s.messages.Create(ctx, message); err != nil {
		s.log.WithError(err).WithRideID(rideID).Warn("Failed to persist chat message")
	}

	s.emitter.EmitToRide(rideID, websocket.MustEvent(websocket.EventReceiveMessage, "", websocket.MessagePayload{
		RoomID:    payload.RoomID,
		Message:   payload.Message,
		UserID:    client.UserID.Hex(),
		Timestamp: s.now().Unix(),
	}))
}

func (s *ChatService) handleLocation(client *websocket.Client, event websocket.Event) {
	if client.UserType != string(models.UserTypeRider) {
		return
	}

	var payload websocket.LocationPayload
	if err := event.DecodePayload(&payload); err != nil {
		s.log.WithError(err).Debug("Malformed location payload")
		return
	}
	if !utils.IsValidCoordinate(payload.Latitude, payload.Longitude) {
		return
	}

	rideID, err := primitive.ObjectIDFromHex(payload.RideID)
	if err != nil || !client.InRoom(websocket.RideRoom(rideID)) {
		return
	}

	// Cached so a customer who reconnects mid-ride can fetch the last
	// known position instead of waiting for the next update.
	ctx, cancel := context.WithTimeout(context.Background(), inboundTimeout)
	defer cancel()
	if err := s.cache.Set(ctx, locationKey(rideID), payload, locationCacheTTL); err != nil {
		s.log.WithError(err).WithRideID(rideID).Debug("Failed to cache rider location")
	}

	s.emitter.EmitToRide(rideID, websocket.MustEvent(websocket.EventRiderLocationUpdate, "", payload))
}

// LastKnownLocation returns the cached rider position for a ride, or
// cache.ErrCacheMiss when none is live.
func (s *ChatService) LastKnownLocation(ctx context.Context, rideID primitive.ObjectID) (*websocket.LocationPayload, error) {
	var payload websocket.LocationPayload
	if err := s.cache.Get(ctx, locationKey(rideID), &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func locationKey(rideID primitive.ObjectID) string {
	return "ride_location:" + rideID.Hex()
}
