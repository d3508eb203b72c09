package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_created_total",
		Help: "Total number of bookings created",
	})

	BookingsConfirmedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_confirmed_total",
		Help: "Total number of bookings confirmed",
	}, []string{"mode"})

	BookingsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_completed_total",
		Help: "Total number of bookings completed",
	})

	BookingsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_cancelled_total",
		Help: "Total number of bookings cancelled",
	})

	BookingTransitionsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_transitions_failed_total",
		Help: "Total number of rejected booking transitions",
	}, []string{"reason"})

	SlotConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slot_conflicts_total",
		Help: "Total number of booking attempts rejected by slot conflicts",
	})

	SlotsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slots_created_total",
		Help: "Total number of availability slots created",
	})

	RecurringSlotsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recurring_slots_skipped_total",
		Help: "Total number of duplicate occurrences skipped during recurring expansion",
	})

	RecurringBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recurring_batch_size",
		Help:    "Number of occurrences expanded per recurring request",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})

	PaymentsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_submitted_total",
		Help: "Total number of payment claims submitted",
	})

	PaymentsVerifiedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_verified_total",
		Help: "Total number of payments verified",
	}, []string{"decision"})

	ReservationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reservation_latency_seconds",
		Help:    "Latency of slot reservation plus booking insert transactions",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
