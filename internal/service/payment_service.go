package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"scheduling-service/internal/models"
	"scheduling-service/internal/store"
	"scheduling-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Verification decisions
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// PaymentStore is the persistence surface the payment ledger needs.
// *store.Store implements it. ApprovePayment both completes the payment and
// reconciles the owning booking in one transaction.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPaymentByID(ctx context.Context, id int64) (*models.Payment, error)
	ListPaymentsByBooking(ctx context.Context, bookingID int64) ([]models.Payment, error)
	TotalPaid(ctx context.Context, bookingID int64) (int64, error)
	GetBookingByID(ctx context.Context, id int64) (*models.Booking, error)
	ApprovePayment(ctx context.Context, paymentID, providerID int64, now time.Time, overpayTolerance int64) (*models.Payment, *models.Booking, bool, error)
	RejectPayment(ctx context.Context, paymentID, providerID int64, reason string, now time.Time) (*models.Payment, error)
}

// PaymentService owns payment attempts tied to bookings
type PaymentService struct {
	store          PaymentStore
	locker         TransitionLocker
	bookings       *BookingService
	eventPublisher EventPublisher
	clock          Clock
	logger         *zap.Logger

	lockTTL          time.Duration
	overpayTolerance int64
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	paymentStore PaymentStore,
	locker TransitionLocker,
	bookings *BookingService,
	eventPublisher EventPublisher,
	clock Clock,
	lockTTL time.Duration,
	overpayTolerance int64,
) *PaymentService {
	return &PaymentService{
		store:            paymentStore,
		locker:           locker,
		bookings:         bookings,
		eventPublisher:   eventPublisher,
		clock:            clock,
		logger:           util.NamedLogger("payments"),
		lockTTL:          lockTTL,
		overpayTolerance: overpayTolerance,
	}
}

// SubmitPaymentRequest represents a customer's payment claim
type SubmitPaymentRequest struct {
	BookingID int64  `json:"booking_id" binding:"required"`
	Amount    int64  `json:"amount" binding:"required"`
	Method    string `json:"method" binding:"required"`
	ProofRef  string `json:"proof_ref,omitempty"`
}

// VerifyPaymentRequest represents a provider's verification decision
type VerifyPaymentRequest struct {
	Decision string `json:"decision" binding:"required"`
	Reason   string `json:"reason,omitempty"`
}

// RecordClaim creates a pending payment row. No financial state changes until
// the provider verifies it.
func (ps *PaymentService) RecordClaim(ctx context.Context, req *SubmitPaymentRequest) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.RecordClaim")
	defer span.End()

	if req.Amount <= 0 {
		return nil, validationErr("payment amount must be positive")
	}
	if strings.TrimSpace(req.Method) == "" {
		return nil, validationErr("payment method is required")
	}

	booking, err := ps.store.GetBookingByID(ctx, req.BookingID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundErr("booking %d not found", req.BookingID)
	}
	if err != nil {
		return nil, err
	}
	if booking.Status == models.BookingStatusCancelled {
		return nil, stateErr("booking %d is cancelled", booking.ID)
	}

	payment := &models.Payment{
		BookingID:  booking.ID,
		Amount:     req.Amount,
		Currency:   booking.Currency,
		Method:     req.Method,
		GatewayRef: fmt.Sprintf("PAY-%s", strings.ToUpper(uuid.New().String()[:8])),
		Status:     models.PaymentAttemptPending,
		ProofRef:   req.ProofRef,
	}

	if err := ps.store.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	util.PaymentsSubmittedTotal.Inc()
	ps.logger.Info("Payment claim recorded",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("booking_id", booking.ID),
		zap.Int64("amount", payment.Amount))

	event := &models.PaymentSubmittedEvent{
		BaseEvent: ps.baseEvent(models.EventTypePaymentSubmitted),
		BookingID: booking.ID,
		PaymentID: payment.ID,
		Amount:    payment.Amount,
		Method:    payment.Method,
	}
	if err := ps.eventPublisher.PublishPaymentSubmitted(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentSubmitted event", zap.Error(err))
	}

	return payment, nil
}

// Verify applies the provider's decision to a pending payment exactly once.
// Approval completes the payment and reconciles the booking's payment status
// in the same transaction; a booking reaching full payment while pending is
// auto-confirmed.
func (ps *PaymentService) Verify(ctx context.Context, paymentID, providerID int64, req *VerifyPaymentRequest) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Verify")
	defer span.End()

	payment, err := ps.store.GetPaymentByID(ctx, paymentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundErr("payment %d not found", paymentID)
	}
	if err != nil {
		return nil, err
	}

	unlock, err := ps.lockBooking(ctx, payment.BookingID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	switch req.Decision {
	case DecisionApprove:
		return ps.approve(ctx, paymentID, providerID)
	case DecisionReject:
		return ps.reject(ctx, paymentID, providerID, req.Reason)
	default:
		return nil, validationErr("decision must be %q or %q", DecisionApprove, DecisionReject)
	}
}

// TotalPaid returns the sum of completed payments for a booking
func (ps *PaymentService) TotalPaid(ctx context.Context, bookingID int64) (int64, error) {
	return ps.store.TotalPaid(ctx, bookingID)
}

// ListForBooking returns all payment attempts for a booking
func (ps *PaymentService) ListForBooking(ctx context.Context, bookingID int64) ([]models.Payment, error) {
	return ps.store.ListPaymentsByBooking(ctx, bookingID)
}

func (ps *PaymentService) approve(ctx context.Context, paymentID, providerID int64) (*models.Payment, error) {
	now := ps.clock.Now()
	payment, booking, autoConfirmed, err := ps.store.ApprovePayment(ctx, paymentID, providerID, now, ps.overpayTolerance)
	if err != nil {
		return nil, ps.mapVerifyErr(err, paymentID)
	}

	util.PaymentsVerifiedTotal.WithLabelValues(DecisionApprove).Inc()
	ps.logger.Info("Payment approved",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("booking_id", booking.ID),
		zap.String("payment_status", booking.PaymentStatus),
		zap.Int64("remaining_amount", booking.RemainingAmount))

	event := &models.PaymentVerifiedEvent{
		BaseEvent: ps.baseEvent(models.EventTypePaymentVerified),
		BookingID: booking.ID,
		PaymentID: payment.ID,
		Amount:    payment.Amount,
		Approved:  true,
	}
	if err := ps.eventPublisher.PublishPaymentVerified(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentVerified event", zap.Error(err))
	}

	if autoConfirmed {
		ps.bookings.PublishAutoConfirmed(ctx, booking)
	}

	return payment, nil
}

func (ps *PaymentService) reject(ctx context.Context, paymentID, providerID int64, reason string) (*models.Payment, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, validationErr("rejection reason is required")
	}

	payment, err := ps.store.RejectPayment(ctx, paymentID, providerID, reason, ps.clock.Now())
	if err != nil {
		return nil, ps.mapVerifyErr(err, paymentID)
	}

	util.PaymentsVerifiedTotal.WithLabelValues(DecisionReject).Inc()
	ps.logger.Info("Payment rejected",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("booking_id", payment.BookingID),
		zap.String("reason", reason))

	event := &models.PaymentVerifiedEvent{
		BaseEvent: ps.baseEvent(models.EventTypePaymentVerified),
		BookingID: payment.BookingID,
		PaymentID: payment.ID,
		Amount:    payment.Amount,
		Approved:  false,
		Reason:    reason,
	}
	if err := ps.eventPublisher.PublishPaymentVerified(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentVerified event", zap.Error(err))
	}

	return payment, nil
}

func (ps *PaymentService) lockBooking(ctx context.Context, bookingID int64) (func(), error) {
	token, err := ps.locker.AcquireBookingLock(ctx, bookingID, ps.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire booking lock: %w", err)
	}
	if token == "" {
		return nil, conflictErr("another transition is in progress for booking %d", bookingID)
	}

	return func() {
		if err := ps.locker.ReleaseBookingLock(context.WithoutCancel(ctx), bookingID, token); err != nil {
			ps.logger.Warn("Failed to release booking lock",
				zap.Int64("booking_id", bookingID),
				zap.Error(err))
		}
	}, nil
}

func (ps *PaymentService) mapVerifyErr(err error, paymentID int64) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return notFoundErr("payment %d not found", paymentID)
	case errors.Is(err, store.ErrPaymentNotPending):
		return stateErr("payment %d has already been verified", paymentID)
	case errors.Is(err, store.ErrBookingNotInState):
		return stateErr("payment %d belongs to a cancelled booking", paymentID)
	case errors.Is(err, store.ErrOverpayment):
		return validationErr("approving payment %d would exceed the booking total", paymentID)
	}
	return err
}

func (ps *PaymentService) baseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: ps.clock.Now(),
	}
}
