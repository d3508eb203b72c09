package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"scheduling-service/internal/models"
)

// CreateBookingReservingSlot reserves a covering availability slot and inserts
// the booking row in one transaction. Overlapping candidate slots are locked
// with FOR UPDATE so two concurrent creates for the same window serialize:
// exactly one marks the slot booked, the other observes it and fails with
// ErrSlotConflict.
func (s *Store) CreateBookingReservingSlot(ctx context.Context, b *models.Booking) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	end := b.EventFinish()

	var overlapping []models.AvailabilitySlot
	err = tx.SelectContext(ctx, &overlapping, `
		SELECT * FROM availability_slots
		WHERE provider_id = $1 AND start_time < $2 AND end_time > $3
		ORDER BY start_time
		FOR UPDATE`,
		b.ProviderID, end, b.EventStart)
	if err != nil {
		return fmt.Errorf("failed to lock overlapping slots: %w", err)
	}

	var target *models.AvailabilitySlot
	for i := range overlapping {
		slot := &overlapping[i]
		if slot.SlotType != models.SlotTypeAvailable {
			return ErrSlotConflict
		}
		if target != nil {
			continue
		}
		if !slot.StartTime.After(b.EventStart) && !slot.EndTime.Before(end) && serviceMatches(slot, b.ServiceID) {
			target = slot
		}
	}
	if target == nil {
		return ErrSlotConflict
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE availability_slots SET slot_type = $1, updated_at = NOW() WHERE id = $2",
		models.SlotTypeBooked, target.ID)
	if err != nil {
		return fmt.Errorf("failed to reserve slot: %w", err)
	}

	b.SlotID = target.ID
	query := `
		INSERT INTO bookings (
			booking_number, provider_id, service_id, customer_id,
			event_start, event_end, location, attendee_count, special_requests,
			total_amount, deposit_amount, remaining_amount, currency,
			status, payment_status, slot_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at`

	err = tx.GetContext(ctx, b, query,
		b.BookingNumber, b.ProviderID, b.ServiceID, b.CustomerID,
		b.EventStart, b.EventEnd, b.Location, b.AttendeeCount, b.SpecialRequests,
		b.TotalAmount, b.DepositAmount, b.RemainingAmount, b.Currency,
		b.Status, b.PaymentStatus, b.SlotID)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	return tx.Commit()
}

func serviceMatches(slot *models.AvailabilitySlot, serviceID int64) bool {
	return slot.ServiceID == nil || *slot.ServiceID == serviceID
}

// GetBookingByID retrieves a booking by ID
func (s *Store) GetBookingByID(ctx context.Context, id int64) (*models.Booking, error) {
	var b models.Booking
	err := s.db.GetContext(ctx, &b, "SELECT * FROM bookings WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBookingByNumber retrieves a booking by its booking number
func (s *Store) GetBookingByNumber(ctx context.Context, number string) (*models.Booking, error) {
	var b models.Booking
	err := s.db.GetContext(ctx, &b, "SELECT * FROM bookings WHERE booking_number = $1", number)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// BookingFilter narrows ListBookings results
type BookingFilter struct {
	Status string
	From   time.Time
	To     time.Time
}

// ListBookings retrieves a provider's bookings, newest first
func (s *Store) ListBookings(ctx context.Context, providerID int64, filter BookingFilter) ([]models.Booking, error) {
	query := "SELECT * FROM bookings WHERE provider_id = $1"
	args := []interface{}{providerID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND event_start >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND event_start <= $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	var bookings []models.Booking
	err := s.db.SelectContext(ctx, &bookings, query, args...)
	return bookings, err
}

// ConfirmBooking transitions pending -> confirmed with a conditional update,
// so two concurrent transitions on the same booking cannot both succeed.
func (s *Store) ConfirmBooking(ctx context.Context, id, providerID int64, now time.Time) (*models.Booking, error) {
	var b models.Booking
	err := s.db.GetContext(ctx, &b, `
		UPDATE bookings
		SET status = $1, confirmed_at = $2, updated_at = $2
		WHERE id = $3 AND provider_id = $4 AND status = $5
		RETURNING *`,
		models.BookingStatusConfirmed, now, id, providerID, models.BookingStatusPending)
	if err == sql.ErrNoRows {
		return nil, s.classifyTransitionFailure(ctx, id, providerID)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CompleteBooking transitions confirmed -> completed. The event-time guard is
// checked by the caller; event times are immutable so the check cannot race
// with this update.
func (s *Store) CompleteBooking(ctx context.Context, id, providerID int64, now time.Time) (*models.Booking, error) {
	var b models.Booking
	err := s.db.GetContext(ctx, &b, `
		UPDATE bookings
		SET status = $1, completed_at = $2, updated_at = $2
		WHERE id = $3 AND provider_id = $4 AND status = $5
		RETURNING *`,
		models.BookingStatusCompleted, now, id, providerID, models.BookingStatusConfirmed)
	if err == sql.ErrNoRows {
		return nil, s.classifyTransitionFailure(ctx, id, providerID)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CancelBookingReleasingSlot cancels a non-terminal booking and releases its
// reserved slot in the same transaction, so a crash cannot leave a slot
// permanently booked against a cancelled booking.
func (s *Store) CancelBookingReleasingSlot(ctx context.Context, id, providerID int64, reason string, now time.Time) (*models.Booking, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var b models.Booking
	err = tx.GetContext(ctx, &b, `
		UPDATE bookings
		SET status = $1, cancelled_at = $2, cancellation_reason = $3, updated_at = $2
		WHERE id = $4 AND provider_id = $5 AND status IN ($6, $7)
		RETURNING *`,
		models.BookingStatusCancelled, now, reason, id, providerID,
		models.BookingStatusPending, models.BookingStatusConfirmed)
	if err == sql.ErrNoRows {
		return nil, s.classifyTransitionFailure(ctx, id, providerID)
	}
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE availability_slots SET slot_type = $1, updated_at = $2 WHERE id = $3",
		models.SlotTypeAvailable, now, b.SlotID)
	if err != nil {
		return nil, fmt.Errorf("failed to release slot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &b, nil
}

// classifyTransitionFailure distinguishes a missing/unowned booking from one
// that exists but is in the wrong state.
func (s *Store) classifyTransitionFailure(ctx context.Context, id, providerID int64) error {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM bookings WHERE id = $1 AND provider_id = $2)",
		id, providerID)
	if err != nil {
		return err
	}
	if exists {
		return ErrBookingNotInState
	}
	return ErrNotFound
}
