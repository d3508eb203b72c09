package service

import (
	"context"
	"time"

	"scheduling-service/internal/models"
	"scheduling-service/internal/store"
)

// SchedulingGateway is the single entry point collaborators use. All mutation
// goes through the engine and ledger behind it; collaborators never touch
// booking, payment or slot rows directly.
type SchedulingGateway struct {
	bookings     *BookingService
	payments     *PaymentService
	availability *AvailabilityService
}

// NewSchedulingGateway creates the gateway façade
func NewSchedulingGateway(bookings *BookingService, payments *PaymentService, availability *AvailabilityService) *SchedulingGateway {
	return &SchedulingGateway{
		bookings:     bookings,
		payments:     payments,
		availability: availability,
	}
}

// CreateBooking creates a booking on a validated, non-conflicting slot
func (g *SchedulingGateway) CreateBooking(ctx context.Context, req *CreateBookingRequest) (*models.Booking, error) {
	return g.bookings.Create(ctx, req)
}

// ConfirmBooking manually confirms a pending booking
func (g *SchedulingGateway) ConfirmBooking(ctx context.Context, id, providerID int64) (*models.Booking, error) {
	return g.bookings.Confirm(ctx, id, providerID)
}

// CompleteBooking closes a confirmed booking whose event has taken place
func (g *SchedulingGateway) CompleteBooking(ctx context.Context, id, providerID int64) (*models.Booking, error) {
	return g.bookings.Complete(ctx, id, providerID)
}

// CancelBooking cancels a non-terminal booking and releases its slot
func (g *SchedulingGateway) CancelBooking(ctx context.Context, id, providerID int64, reason string) (*models.Booking, error) {
	return g.bookings.Cancel(ctx, id, providerID, reason)
}

// GetBooking returns a booking and its payment attempts
func (g *SchedulingGateway) GetBooking(ctx context.Context, id, providerID int64) (*models.Booking, []models.Payment, error) {
	booking, err := g.bookings.Get(ctx, id, providerID)
	if err != nil {
		return nil, nil, err
	}
	payments, err := g.payments.ListForBooking(ctx, booking.ID)
	if err != nil {
		return nil, nil, err
	}
	return booking, payments, nil
}

// ListBookings returns a provider's bookings
func (g *SchedulingGateway) ListBookings(ctx context.Context, providerID int64, filter store.BookingFilter) ([]models.Booking, error) {
	return g.bookings.List(ctx, providerID, filter)
}

// SubmitPayment records a customer's payment claim
func (g *SchedulingGateway) SubmitPayment(ctx context.Context, req *SubmitPaymentRequest) (*models.Payment, error) {
	return g.payments.RecordClaim(ctx, req)
}

// VerifyPayment applies a provider's approve/reject decision
func (g *SchedulingGateway) VerifyPayment(ctx context.Context, paymentID, providerID int64, req *VerifyPaymentRequest) (*models.Payment, error) {
	return g.payments.Verify(ctx, paymentID, providerID, req)
}

// CreateAvailability creates one availability slot
func (g *SchedulingGateway) CreateAvailability(ctx context.Context, req *CreateSlotRequest) (*models.AvailabilitySlot, error) {
	return g.availability.CreateSlot(ctx, req)
}

// CreateRecurringAvailability expands a slot template over a date range
func (g *SchedulingGateway) CreateRecurringAvailability(ctx context.Context, req *CreateRecurringRequest) (created, skipped int, err error) {
	return g.availability.CreateRecurringSlots(ctx, req)
}

// DeleteAvailability deletes one slot unless it is booked
func (g *SchedulingGateway) DeleteAvailability(ctx context.Context, id, providerID int64) error {
	return g.availability.DeleteSlot(ctx, id, providerID)
}

// BulkDeleteAvailability deletes matching slots, excluding booked ones
func (g *SchedulingGateway) BulkDeleteAvailability(ctx context.Context, ids []int64, providerID int64) (int, error) {
	return g.availability.BulkDeleteSlots(ctx, ids, providerID)
}

// FindConflictingAvailability returns booked or blocked slots overlapping a window
func (g *SchedulingGateway) FindConflictingAvailability(ctx context.Context, providerID int64, start, end time.Time) ([]models.AvailabilitySlot, error) {
	return g.availability.FindConflicting(ctx, providerID, start, end)
}

// ListAvailability returns a provider's slots within a date range
func (g *SchedulingGateway) ListAvailability(ctx context.Context, providerID int64, from, to time.Time, slotType string, serviceID *int64) ([]models.AvailabilitySlot, error) {
	return g.availability.ListSlots(ctx, providerID, store.SlotFilter{
		From:      from,
		To:        to,
		SlotType:  slotType,
		ServiceID: serviceID,
	})
}
