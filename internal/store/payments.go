package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"scheduling-service/internal/models"
)

// CreatePayment inserts a pending payment claim
func (s *Store) CreatePayment(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO payments (booking_id, amount, currency, method, gateway_ref, status, proof_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, p, query,
		p.BookingID, p.Amount, p.Currency, p.Method, p.GatewayRef, p.Status, p.ProofRef)
}

// GetPaymentByID retrieves a payment by ID
func (s *Store) GetPaymentByID(ctx context.Context, id int64) (*models.Payment, error) {
	var p models.Payment
	err := s.db.GetContext(ctx, &p, "SELECT * FROM payments WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPaymentsByBooking retrieves all payment attempts for a booking
func (s *Store) ListPaymentsByBooking(ctx context.Context, bookingID int64) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.SelectContext(ctx, &payments,
		"SELECT * FROM payments WHERE booking_id = $1 ORDER BY created_at", bookingID)
	return payments, err
}

// TotalPaid sums the completed payments for a booking
func (s *Store) TotalPaid(ctx context.Context, bookingID int64) (int64, error) {
	var total int64
	err := s.db.GetContext(ctx, &total,
		"SELECT COALESCE(SUM(amount), 0) FROM payments WHERE booking_id = $1 AND status = $2",
		bookingID, models.PaymentAttemptCompleted)
	return total, err
}

// ApprovePayment marks a pending payment completed and reconciles the owning
// booking's financial state in the same transaction. Both rows are locked
// FOR UPDATE so concurrent verifications of the same booking serialize.
// Returns the updated payment, the updated booking and whether the approval
// auto-confirmed the booking.
func (s *Store) ApprovePayment(ctx context.Context, paymentID, providerID int64, now time.Time, overpayTolerance int64) (*models.Payment, *models.Booking, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, false, err
	}
	defer tx.Rollback()

	var p models.Payment
	err = tx.GetContext(ctx, &p, "SELECT * FROM payments WHERE id = $1 FOR UPDATE", paymentID)
	if err == sql.ErrNoRows {
		return nil, nil, false, ErrNotFound
	}
	if err != nil {
		return nil, nil, false, err
	}

	var b models.Booking
	err = tx.GetContext(ctx, &b, "SELECT * FROM bookings WHERE id = $1 FOR UPDATE", p.BookingID)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to lock booking %d: %w", p.BookingID, err)
	}
	if b.ProviderID != providerID {
		return nil, nil, false, ErrNotFound
	}

	if p.Status != models.PaymentAttemptPending {
		return nil, nil, false, ErrPaymentNotPending
	}
	if b.Status == models.BookingStatusCancelled {
		return nil, nil, false, ErrBookingNotInState
	}

	var paidSum int64
	err = tx.GetContext(ctx, &paidSum,
		"SELECT COALESCE(SUM(amount), 0) FROM payments WHERE booking_id = $1 AND status = $2",
		b.ID, models.PaymentAttemptCompleted)
	if err != nil {
		return nil, nil, false, err
	}

	newPaid := paidSum + p.Amount
	if newPaid > b.TotalAmount+overpayTolerance {
		return nil, nil, false, ErrOverpayment
	}

	err = tx.GetContext(ctx, &p, `
		UPDATE payments
		SET status = $1, paid_at = $2, updated_at = $2
		WHERE id = $3
		RETURNING *`,
		models.PaymentAttemptCompleted, now, p.ID)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to complete payment: %w", err)
	}

	b.PaymentStatus = models.DerivePaymentStatus(b.TotalAmount, b.DepositAmount, newPaid)
	b.RemainingAmount = models.RemainingAmount(b.TotalAmount, newPaid)

	autoConfirmed := false
	if b.Status == models.BookingStatusPending && b.PaymentStatus == models.PaymentStatusFullyPaid {
		b.Status = models.BookingStatusConfirmed
		b.ConfirmedAt = &now
		autoConfirmed = true
	}

	err = tx.GetContext(ctx, &b, `
		UPDATE bookings
		SET payment_status = $1, remaining_amount = $2, status = $3, confirmed_at = $4, updated_at = $5
		WHERE id = $6
		RETURNING *`,
		b.PaymentStatus, b.RemainingAmount, b.Status, b.ConfirmedAt, now, b.ID)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to reconcile booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, false, err
	}
	return &p, &b, autoConfirmed, nil
}

// RejectPayment marks a pending payment failed with the given reason. The
// conditional update guarantees a payment is verified exactly once.
func (s *Store) RejectPayment(ctx context.Context, paymentID, providerID int64, reason string, now time.Time) (*models.Payment, error) {
	var p models.Payment
	err := s.db.GetContext(ctx, &p, `
		UPDATE payments p
		SET status = $1, rejection_reason = $2, updated_at = $3
		FROM bookings b
		WHERE p.id = $4 AND b.id = p.booking_id AND b.provider_id = $5 AND p.status = $6
		RETURNING p.*`,
		models.PaymentAttemptFailed, reason, now, paymentID, providerID, models.PaymentAttemptPending)
	if err == sql.ErrNoRows {
		return nil, s.classifyVerifyFailure(ctx, paymentID, providerID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) classifyVerifyFailure(ctx context.Context, paymentID, providerID int64) error {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM payments p JOIN bookings b ON b.id = p.booking_id
			WHERE p.id = $1 AND b.provider_id = $2)`,
		paymentID, providerID)
	if err != nil {
		return err
	}
	if exists {
		return ErrPaymentNotPending
	}
	return ErrNotFound
}
