package utils

import "time"

const (
	AppName    = "RideBid"
	AppVersion = "1.0.0"

	// Status values used in the response envelope
	StatusSuccess = "success"
	StatusError   = "error"

	// Pagination
	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPageSize     = 1

	// One-time codes
	OTPLength = 6
	OTPExpiry = 10 * time.Minute

	// Ride constraints
	MaxRideDistanceKM = 500.0

	// Realtime
	AckTimeout = 5 * time.Second

	// Chat
	MaxMessageLength = 1000

	// Error messages surfaced by the response helpers
	ErrValidationFailed = "Validation failed"
	ErrInternalServer   = "Internal server error"
	ErrUnauthorized     = "Authentication required"
	ErrForbidden        = "Access denied"
)
