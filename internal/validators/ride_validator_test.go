package validators

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func validCreateRequest() *RideCreateRequest {
	return &RideCreateRequest{
		StartLocation: LocationRequest{
			Latitude:  40.7506,
			Longitude: -73.9935,
			Address:   "Penn Station, New York",
		},
		Destination: LocationRequest{
			Latitude:  40.6413,
			Longitude: -73.7781,
			Address:   "JFK Airport, Queens",
		},
	}
}

func TestValidateRideCreateAccepts(t *testing.T) {
	if errs := ValidateRideCreate(validCreateRequest()); errs.HasErrors() {
		t.Fatalf("valid request rejected: %v", errs.ToMap())
	}
}

func TestValidateRideCreateRejectsSameLocation(t *testing.T) {
	req := validCreateRequest()
	req.Destination.Latitude = req.StartLocation.Latitude + 0.00005
	req.Destination.Longitude = req.StartLocation.Longitude

	errs := ValidateRideCreate(req)
	if !errs.HasErrors() {
		t.Fatal("near-identical start and destination accepted")
	}
	if msg := errs.ToMap()["destination"]; msg == "" {
		t.Errorf("expected destination error, got %v", errs.ToMap())
	}
}

func TestValidateRideCreateRejectsTooLong(t *testing.T) {
	req := validCreateRequest()
	// New York to Chicago, well past the distance cap.
	req.Destination.Latitude = 41.8781
	req.Destination.Longitude = -87.6298
	req.Destination.Address = "Chicago, IL"

	errs := ValidateRideCreate(req)
	if !errs.HasErrors() {
		t.Fatal("cross-country ride accepted")
	}
}

func TestValidateRideCreateRejectsMissingAddress(t *testing.T) {
	req := validCreateRequest()
	req.StartLocation.Address = ""

	if errs := ValidateRideCreate(req); !errs.HasErrors() {
		t.Fatal("empty address accepted")
	}
}

func TestValidateRideCreateRejectsOutOfRangeCoordinates(t *testing.T) {
	req := validCreateRequest()
	req.StartLocation.Latitude = 95

	if errs := ValidateRideCreate(req); !errs.HasErrors() {
		t.Fatal("latitude above 90 accepted")
	}
}

func TestObjectIDTag(t *testing.T) {
	good := BidSubmitRequest{RideID: primitive.NewObjectID().Hex(), Amount: 100}
	if errs := ValidateStruct(&good); errs.HasErrors() {
		t.Fatalf("valid id rejected: %v", errs.ToMap())
	}

	bad := BidSubmitRequest{RideID: "not-an-id", Amount: 100}
	errs := ValidateStruct(&bad)
	if !errs.HasErrors() {
		t.Fatal("malformed id accepted")
	}
	if errs[0].Tag != "object_id" {
		t.Errorf("tag = %q, want object_id", errs[0].Tag)
	}
}

func TestBidSubmitRequiresPositiveAmount(t *testing.T) {
	req := BidSubmitRequest{RideID: primitive.NewObjectID().Hex(), Amount: -5}
	if errs := ValidateStruct(&req); !errs.HasErrors() {
		t.Fatal("negative amount accepted")
	}
}

func TestVerifyOTPRequestShape(t *testing.T) {
	rideID := primitive.NewObjectID().Hex()

	// The code width follows OTP_LENGTH, so any bounded numeric string
	// passes request validation.
	for _, code := range []string{"4930", "493028", "4930281745"} {
		good := VerifyOTPRequest{Email: "rider@example.com", RideID: rideID, RiderOTP: code}
		if errs := ValidateStruct(&good); errs.HasErrors() {
			t.Fatalf("code %q rejected: %v", code, errs.ToMap())
		}
	}

	cases := []VerifyOTPRequest{
		{Email: "rider@example.com", RideID: rideID, RiderOTP: "493"},         // too short
		{Email: "rider@example.com", RideID: rideID, RiderOTP: "49302817453"}, // too long
		{Email: "rider@example.com", RideID: rideID, RiderOTP: "12345a"},      // not numeric
		{Email: "not-an-email", RideID: rideID, RiderOTP: "493028"},           // bad email
		{Email: "rider@example.com", RideID: "zzz", RiderOTP: "493028"},       // bad ride id
	}
	for i, req := range cases {
		if errs := ValidateStruct(&req); !errs.HasErrors() {
			t.Errorf("case %d accepted: %+v", i, req)
		}
	}
}

func TestPaymentStatusOneOf(t *testing.T) {
	rideID := primitive.NewObjectID().Hex()

	for _, status := range []string{"not_received", "pending", "completed"} {
		req := PaymentStatusRequest{RideID: rideID, PaymentStatus: status}
		if errs := ValidateStruct(&req); errs.HasErrors() {
			t.Errorf("status %q rejected: %v", status, errs.ToMap())
		}
	}

	req := PaymentStatusRequest{RideID: rideID, PaymentStatus: "refunded"}
	if errs := ValidateStruct(&req); !errs.HasErrors() {
		t.Error("unknown payment status accepted")
	}
}
