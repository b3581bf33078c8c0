package handlers

import (
	"ridebid/internal/middleware"
	"ridebid/internal/models"
	"ridebid/internal/services"
	"ridebid/internal/utils"
	"ridebid/internal/validators"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideHandler struct {
	rideService      *services.RideService
	bidService       *services.BidService
	candidateService *services.CandidateService
}

func NewRideHandler(
	rideService *services.RideService,
	bidService *services.BidService,
	candidateService *services.CandidateService,
) *RideHandler {
	return &RideHandler{
		rideService:      rideService,
		bidService:       bidService,
		candidateService: candidateService,
	}
}

// CreateRide opens a new ride for bidding.
func (h *RideHandler) CreateRide(c *gin.Context) {
	customerID, ok := middleware.CurrentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request validators.RideCreateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	if errs := validators.ValidateRideCreate(&request); errs.HasErrors() {
		utils.ValidationErrorResponse(c, errs.ToMap())
		return
	}

	start := models.NewLocation(request.StartLocation.Address, request.StartLocation.Latitude, request.StartLocation.Longitude)
	destination := models.NewLocation(request.Destination.Address, request.Destination.Latitude, request.Destination.Longitude)

	ride, err := h.rideService.Create(c.Request.Context(), customerID, start, destination)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "Ride created successfully", gin.H{
		"ride":          ride,
		"minimum_price": ride.MinimumPrice,
	})
}

// SubmitBid records a rider's offer against an open ride.
func (h *RideHandler) SubmitBid(c *gin.Context) {
	bidderID, ok := middleware.CurrentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request validators.BidSubmitRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if errs := validators.ValidateStruct(&request); errs.HasErrors() {
		utils.ValidationErrorResponse(c, errs.ToMap())
		return
	}

	rideID, _ := primitive.ObjectIDFromHex(request.RideID)
	bid, err := h.bidService.Submit(c.Request.Context(), rideID, bidderID, request.Amount)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Bid submitted successfully", gin.H{"bid": bid})
}

// CancelRide aborts a ride before a rider is matched.
func (h *RideHandler) CancelRide(c *gin.Context) {
	customerID, ok := middleware.CurrentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request validators.RideCancelRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if errs := validators.ValidateStruct(&request); errs.HasErrors() {
		utils.ValidationErrorResponse(c, errs.ToMap())
		return
	}

	rideID, _ := primitive.ObjectIDFromHex(request.RideID)
	if err := h.rideService.Cancel(c.Request.Context(), rideID, customerID, request.Reason); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride cancelled successfully", nil)
}

// AvailableRiders lists the candidates for a ride with their bids.
func (h *RideHandler) AvailableRiders(c *gin.Context) {
	rideID, err := primitive.ObjectIDFromHex(c.Query("rideId"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride ID")
		return
	}

	candidates, err := h.candidateService.ListForRide(c.Request.Context(), rideID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Candidates retrieved successfully", gin.H{"candidates": candidates})
}

// AcceptRider locks in the chosen candidate's bid. Of concurrent
// accepts on one ride exactly one wins; the rest get a 409.
func (h *RideHandler) AcceptRider(c *gin.Context) {
	customerID, ok := middleware.CurrentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request validators.BidAcceptRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if errs := validators.ValidateStruct(&request); errs.HasErrors() {
		utils.ValidationErrorResponse(c, errs.ToMap())
		return
	}

	candidateID, _ := primitive.ObjectIDFromHex(request.RideListID)
	email, err := h.rideService.AcceptCandidate(c.Request.Context(), candidateID, customerID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Rider accepted successfully", gin.H{
		"email":   email,
		"message": "Start code sent to the rider",
	})
}

// RejectRider hides a candidate from the customer's listing.
func (h *RideHandler) RejectRider(c *gin.Context) {
	customerID, ok := middleware.CurrentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request validators.RejectRiderRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if errs := validators.ValidateStruct(&request); errs.HasErrors() {
		utils.ValidationErrorResponse(c, errs.ToMap())
		return
	}

	candidateID, _ := primitive.ObjectIDFromHex(request.RiderListID)
	if err := h.candidateService.Reject(c.Request.Context(), candidateID, customerID); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Rider rejected successfully", nil)
}

// VerifyOTP confirms the ride-start code and moves the ride into
// in_progress.
func (h *RideHandler) VerifyOTP(c *gin.Context) {
	if _, ok := middleware.CurrentUserID(c); !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request validators.VerifyOTPRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if errs := validators.ValidateStruct(&request); errs.HasErrors() {
		utils.ValidationErrorResponse(c, errs.ToMap())
		return
	}

	rideID, _ := primitive.ObjectIDFromHex(request.RideID)
	ride, err := h.rideService.ConfirmStart(c.Request.Context(), rideID, request.Email, request.RiderOTP)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride started successfully", gin.H{"ride": ride})
}

// CompleteRide finalizes an in-progress ride.
func (h *RideHandler) CompleteRide(c *gin.Context) {
	actorID, ok := middleware.CurrentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request validators.CompleteRideRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if errs := validators.ValidateStruct(&request); errs.HasErrors() {
		utils.ValidationErrorResponse(c, errs.ToMap())
		return
	}

	rideID, _ := primitive.ObjectIDFromHex(request.RideID)
	riderID, totalTime, err := h.rideService.Complete(c.Request.Context(), rideID, actorID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride completed successfully", gin.H{
		"rider_id":   riderID.Hex(),
		"total_time": totalTime,
	})
}

// MarkArrived flips the calling party's arrival flag.
func (h *RideHandler) MarkArrived(c *gin.Context) {
	actorID, ok := middleware.CurrentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request validators.ArrivedRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if errs := validators.ValidateStruct(&request); errs.HasErrors() {
		utils.ValidationErrorResponse(c, errs.ToMap())
		return
	}

	rideID, _ := primitive.ObjectIDFromHex(request.RideID)
	who := middleware.CurrentUserType(c)
	if err := h.rideService.MarkArrived(c.Request.Context(), rideID, actorID, who); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Arrival marked successfully", nil)
}

// ListRides returns the caller's rides, paginated.
func (h *RideHandler) ListRides(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	params := utils.GetPaginationParams(c)
	rides, total, err := h.rideService.ListForUser(c.Request.Context(), userID, middleware.CurrentUserType(c), params)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Rides retrieved successfully", gin.H{"rides": rides}, &utils.Meta{
		Pagination: utils.NewPaginationMeta(params, total),
		Count:      len(rides),
	})
}

// ListOpenRides returns rides still accepting bids.
func (h *RideHandler) ListOpenRides(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	rides, total, err := h.rideService.ListOpen(c.Request.Context(), params)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Open rides retrieved successfully", gin.H{"rides": rides}, &utils.Meta{
		Pagination: utils.NewPaginationMeta(params, total),
		Count:      len(rides),
	})
}

// GetRide returns one ride by id.
func (h *RideHandler) GetRide(c *gin.Context) {
	rideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride ID")
		return
	}

	ride, err := h.rideService.GetByID(c.Request.Context(), rideID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride retrieved successfully", gin.H{"ride": ride})
}

// SignalInterest registers the calling rider as a candidate.
func (h *RideHandler) SignalInterest(c *gin.Context) {
	riderID, ok := middleware.CurrentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	rideID, err := primitive.ObjectIDFromHex(c.Query("rideId"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride ID")
		return
	}

	entry, err := h.candidateService.SignalInterest(c.Request.Context(), rideID, riderID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Interest recorded successfully", gin.H{"candidate": entry})
}

// UpdatePaymentStatus records payment bookkeeping for a ride.
func (h *RideHandler) UpdatePaymentStatus(c *gin.Context) {
	customerID, ok := middleware.CurrentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request validators.PaymentStatusRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if errs := validators.ValidateStruct(&request); errs.HasErrors() {
		utils.ValidationErrorResponse(c, errs.ToMap())
		return
	}

	rideID, _ := primitive.ObjectIDFromHex(request.RideID)
	status := models.PaymentStatus(request.PaymentStatus)
	if err := h.rideService.SetPaymentStatus(c.Request.Context(), rideID, customerID, status); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Payment status updated successfully", nil)
}
