package routes

import (
	"ridebid/internal/handlers"
	"ridebid/internal/middleware"
	"ridebid/pkg/websocket"

	"github.com/gin-gonic/gin"
)

// SetupRideRoutes wires the ride/bid lifecycle surface. Customer-only
// decisions (accept, reject, cancel, verify) and rider-only actions
// (bid, interest) are gated by role on top of the shared auth check.
func SetupRideRoutes(
	r *gin.RouterGroup,
	jwtSecret string,
	rideHandler *handlers.RideHandler,
	messageHandler *handlers.MessageHandler,
	wsHandler *websocket.Handler,
) {
	rides := r.Group("/rides")
	rides.Use(middleware.AuthRequired(jwtSecret))
	{
		rides.POST("/create", middleware.CustomerRequired(), rideHandler.CreateRide)
		rides.DELETE("/cancel", middleware.CustomerRequired(), rideHandler.CancelRide)
		rides.GET("/available-riders", middleware.CustomerRequired(), rideHandler.AvailableRiders)
		rides.POST("/accept", middleware.CustomerRequired(), rideHandler.AcceptRider)
		rides.DELETE("/reject-rider", middleware.CustomerRequired(), rideHandler.RejectRider)
		rides.POST("/verify-otp", middleware.CustomerRequired(), rideHandler.VerifyOTP)
		rides.PATCH("/payment-status", middleware.CustomerRequired(), rideHandler.UpdatePaymentStatus)

		rides.POST("/bid", middleware.RiderRequired(), rideHandler.SubmitBid)
		rides.POST("/interest", middleware.RiderRequired(), rideHandler.SignalInterest)

		rides.POST("/complete-ride", rideHandler.CompleteRide)
		rides.POST("/arrived", rideHandler.MarkArrived)

		rides.GET("", rideHandler.ListRides)
		rides.GET("/open", rideHandler.ListOpenRides)
		rides.GET("/:id", rideHandler.GetRide)
		rides.GET("/:id/messages", messageHandler.ListMessages)
		rides.GET("/:id/location", messageHandler.LastLocation)
	}

	ws := r.Group("/ws")
	ws.Use(middleware.AuthRequired(jwtSecret))
	{
		ws.GET("", wsHandler.HandleWebSocket)
	}
}
