package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesCreatedTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridebid", Name: "rides_created_total", Help: "Total rides created"})
	RidesCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridebid", Name: "rides_completed_total", Help: "Total rides completed"})
	RidesCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridebid", Name: "rides_cancelled_total", Help: "Total rides cancelled"})

	BidsSubmittedTotal      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridebid", Name: "bids_submitted_total", Help: "Total bids submitted"})
	BidAcceptConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridebid", Name: "bid_accept_conflicts_total", Help: "Accept attempts that lost the match race"})

	OTPVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridebid", Name: "otp_verifications_total", Help: "One-time code verification outcomes"},
		[]string{"result"},
	)

	WSActiveSessions  = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ridebid", Name: "ws_active_sessions", Help: "Currently connected websocket sessions"})
	WSRoomEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridebid", Name: "ws_room_events_total", Help: "Events broadcast into ride rooms"},
		[]string{"event"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ridebid",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
