package handlers

import (
	"errors"

	"ridebid/internal/repositories/interfaces"
	"ridebid/internal/services"
	"ridebid/internal/utils"
	"ridebid/pkg/cache"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessageHandler serves the ride room's history to clients that
// reconnect mid-ride: chat backlog and the last cached rider position.
type MessageHandler struct {
	messages    interfaces.MessageRepository
	chatService *services.ChatService
}

func NewMessageHandler(messages interfaces.MessageRepository, chatService *services.ChatService) *MessageHandler {
	return &MessageHandler{
		messages:    messages,
		chatService: chatService,
	}
}

// ListMessages returns the chat backlog for a ride, paginated.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	rideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride ID")
		return
	}

	params := utils.GetPaginationParams(c)
	messages, total, err := h.messages.ListByRide(c.Request.Context(), rideID, params)
	if err != nil {
		utils.InternalServerErrorResponse(c)
		return
	}

	utils.SuccessResponseWithMeta(c, "Messages retrieved successfully", gin.H{"messages": messages}, &utils.Meta{
		Pagination: utils.NewPaginationMeta(params, total),
		Count:      len(messages),
	})
}

// LastLocation returns the rider's last cached position for a ride.
func (h *MessageHandler) LastLocation(c *gin.Context) {
	rideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride ID")
		return
	}

	location, err := h.chatService.LastKnownLocation(c.Request.Context(), rideID)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			utils.NotFoundResponse(c, "Location")
			return
		}
		utils.InternalServerErrorResponse(c)
		return
	}

	utils.SuccessResponse(c, "Location retrieved successfully", gin.H{"location": location})
}
