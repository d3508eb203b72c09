package models

import "time"

// Booking represents a customer booking against a provider's time slot
type Booking struct {
	ID                 int64      `db:"id" json:"id"`
	BookingNumber      string     `db:"booking_number" json:"booking_number"`
	ProviderID         int64      `db:"provider_id" json:"provider_id"`
	ServiceID          int64      `db:"service_id" json:"service_id"`
	CustomerID         int64      `db:"customer_id" json:"customer_id"`
	EventStart         time.Time  `db:"event_start" json:"event_start"`
	EventEnd           *time.Time `db:"event_end" json:"event_end,omitempty"`
	Location           string     `db:"location" json:"location,omitempty"`
	AttendeeCount      int        `db:"attendee_count" json:"attendee_count"`
	SpecialRequests    string     `db:"special_requests" json:"special_requests,omitempty"`
	TotalAmount        int64      `db:"total_amount" json:"total_amount"`
	DepositAmount      int64      `db:"deposit_amount" json:"deposit_amount"`
	RemainingAmount    int64      `db:"remaining_amount" json:"remaining_amount"`
	Currency           string     `db:"currency" json:"currency"`
	Status             string     `db:"status" json:"status"`
	PaymentStatus      string     `db:"payment_status" json:"payment_status"`
	CancellationReason string     `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	SlotID             int64      `db:"slot_id" json:"slot_id"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
	ConfirmedAt        *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CompletedAt        *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt        *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

// EventFinish returns the moment the booked event is over. Bookings without an
// explicit end fall back to the start time.
func (b *Booking) EventFinish() time.Time {
	if b.EventEnd != nil {
		return *b.EventEnd
	}
	return b.EventStart
}

// Payment represents one payment attempt against a booking
type Payment struct {
	ID              int64      `db:"id" json:"id"`
	BookingID       int64      `db:"booking_id" json:"booking_id"`
	Amount          int64      `db:"amount" json:"amount"`
	Currency        string     `db:"currency" json:"currency"`
	Method          string     `db:"method" json:"method"`
	GatewayRef      string     `db:"gateway_ref" json:"gateway_ref,omitempty"`
	Status          string     `db:"status" json:"status"`
	ProofRef        string     `db:"proof_ref" json:"proof_ref,omitempty"`
	RejectionReason string     `db:"rejection_reason" json:"rejection_reason,omitempty"`
	PaidAt          *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// AvailabilitySlot represents a bounded provider time window
type AvailabilitySlot struct {
	ID         int64     `db:"id" json:"id"`
	ProviderID int64     `db:"provider_id" json:"provider_id"`
	ServiceID  *int64    `db:"service_id" json:"service_id,omitempty"`
	Date       time.Time `db:"date" json:"date"`
	StartTime  time.Time `db:"start_time" json:"start_time"`
	EndTime    time.Time `db:"end_time" json:"end_time"`
	SlotType   string    `db:"slot_type" json:"slot_type"`
	Notes      string    `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Booking statuses
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCompleted = "completed"
	BookingStatusCancelled = "cancelled"
)

// Payment statuses for a booking as a whole
const (
	PaymentStatusPending     = "pending"
	PaymentStatusDepositPaid = "deposit_paid"
	PaymentStatusFullyPaid   = "fully_paid"
)

// Statuses of an individual payment attempt
const (
	PaymentAttemptPending   = "pending"
	PaymentAttemptCompleted = "completed"
	PaymentAttemptFailed    = "failed"
)

// Slot types
const (
	SlotTypeAvailable = "available"
	SlotTypeBlocked   = "blocked"
	SlotTypeBooked    = "booked"
)

// Recurrence cadences
const (
	CadenceDaily   = "daily"
	CadenceWeekly  = "weekly"
	CadenceMonthly = "monthly"
)

// IsTerminalBookingStatus reports whether no further transitions are allowed.
func IsTerminalBookingStatus(status string) bool {
	return status == BookingStatusCompleted || status == BookingStatusCancelled
}

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
