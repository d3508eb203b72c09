package models

import "time"

// Event types
const (
	EventTypeBookingCreated   = "BOOKING_CREATED"
	EventTypeBookingConfirmed = "BOOKING_CONFIRMED"
	EventTypeBookingCompleted = "BOOKING_COMPLETED"
	EventTypeBookingCancelled = "BOOKING_CANCELLED"
	EventTypePaymentSubmitted = "PAYMENT_SUBMITTED"
	EventTypePaymentVerified  = "PAYMENT_VERIFIED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingCreatedEvent published when a booking reserves a slot
type BookingCreatedEvent struct {
	BaseEvent
	BookingID     int64     `json:"booking_id"`
	BookingNumber string    `json:"booking_number"`
	ProviderID    int64     `json:"provider_id"`
	CustomerID    int64     `json:"customer_id"`
	EventStart    time.Time `json:"event_start"`
	TotalAmount   int64     `json:"total_amount"`
	DepositAmount int64     `json:"deposit_amount"`
}

// BookingConfirmedEvent published on manual confirmation or full-payment
// auto-confirmation
type BookingConfirmedEvent struct {
	BaseEvent
	BookingID     int64  `json:"booking_id"`
	BookingNumber string `json:"booking_number"`
	CustomerID    int64  `json:"customer_id"`
	AutoConfirmed bool   `json:"auto_confirmed"`
}

// BookingCompletedEvent published when the provider closes a delivered booking
type BookingCompletedEvent struct {
	BaseEvent
	BookingID     int64  `json:"booking_id"`
	BookingNumber string `json:"booking_number"`
	CustomerID    int64  `json:"customer_id"`
}

// BookingCancelledEvent published when a booking is cancelled and its slot released
type BookingCancelledEvent struct {
	BaseEvent
	BookingID     int64  `json:"booking_id"`
	BookingNumber string `json:"booking_number"`
	CustomerID    int64  `json:"customer_id"`
	Reason        string `json:"reason"`
}

// PaymentSubmittedEvent published when a customer records a payment claim
type PaymentSubmittedEvent struct {
	BaseEvent
	BookingID int64  `json:"booking_id"`
	PaymentID int64  `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Method    string `json:"method"`
}

// PaymentVerifiedEvent published when the provider approves or rejects a payment
type PaymentVerifiedEvent struct {
	BaseEvent
	BookingID int64  `json:"booking_id"`
	PaymentID int64  `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Approved  bool   `json:"approved"`
	Reason    string `json:"reason,omitempty"`
}
