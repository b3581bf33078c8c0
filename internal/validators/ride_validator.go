package validators

import (
	"ridebid/internal/utils"
)

type LocationRequest struct {
	Latitude  float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"required,min=-180,max=180"`
	Address   string  `json:"address" validate:"required,min=3,max=255"`
}

type RideCreateRequest struct {
	StartLocation LocationRequest `json:"start_location" validate:"required"`
	Destination   LocationRequest `json:"destination" validate:"required"`
}

type BidSubmitRequest struct {
	RideID string  `json:"ride_id" validate:"required,object_id"`
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

type RideCancelRequest struct {
	RideID string `json:"ride_id" validate:"required,object_id"`
	Reason string `json:"reason" validate:"omitempty,max=255"`
}

type BidAcceptRequest struct {
	RideListID string `json:"ride_list_id" validate:"required,object_id"`
}

type RejectRiderRequest struct {
	RiderListID string `json:"rider_list_id" validate:"required,object_id"`
}

// The code width is configurable (OTP_LENGTH), so the request only
// bounds it; the gate compares against the stored hash.
type VerifyOTPRequest struct {
	Email    string `json:"email" validate:"required,email"`
	RideID   string `json:"ride_id" validate:"required,object_id"`
	RiderOTP string `json:"rider_otp" validate:"required,numeric,min=4,max=10"`
}

type CompleteRideRequest struct {
	RideID string `json:"ride_id" validate:"required,object_id"`
}

type ArrivedRequest struct {
	RideID string `json:"ride_id" validate:"required,object_id"`
}

type PaymentStatusRequest struct {
	RideID        string `json:"ride_id" validate:"required,object_id"`
	PaymentStatus string `json:"payment_status" validate:"required,oneof=not_received pending completed"`
}

func ValidateRideCreate(req *RideCreateRequest) ValidationErrors {
	errs := ValidateStruct(req)

	if isSameLocation(req.StartLocation, req.Destination) {
		errs = append(errs, ValidationError{
			Field:   "destination",
			Message: "start and destination must be different",
		})
	}

	distance := utils.CalculateDistance(
		req.StartLocation.Latitude, req.StartLocation.Longitude,
		req.Destination.Latitude, req.Destination.Longitude,
	)
	if distance > utils.MaxRideDistanceKM {
		errs = append(errs, ValidationError{
			Field:   "destination",
			Message: "ride distance too long (maximum 500 km)",
		})
	}

	return errs
}

func isSameLocation(a, b LocationRequest) bool {
	const epsilon = 0.0001 // about 11 meters
	latDiff := a.Latitude - b.Latitude
	lonDiff := a.Longitude - b.Longitude
	if latDiff < 0 {
		latDiff = -latDiff
	}
	if lonDiff < 0 {
		lonDiff = -lonDiff
	}
	return latDiff < epsilon && lonDiff < epsilon
}
