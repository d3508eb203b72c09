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

// BookingStore is the persistence surface the booking engine needs.
// *store.Store implements it. Every method that changes state is
// transactional on the store side.
type BookingStore interface {
	CreateBookingReservingSlot(ctx context.Context, b *models.Booking) error
	GetBookingByID(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingByNumber(ctx context.Context, number string) (*models.Booking, error)
	ListBookings(ctx context.Context, providerID int64, filter store.BookingFilter) ([]models.Booking, error)
	ConfirmBooking(ctx context.Context, id, providerID int64, now time.Time) (*models.Booking, error)
	CompleteBooking(ctx context.Context, id, providerID int64, now time.Time) (*models.Booking, error)
	CancelBookingReleasingSlot(ctx context.Context, id, providerID int64, reason string, now time.Time) (*models.Booking, error)
}

// TransitionLocker serializes transitions per booking across request workers.
// *redisclient.Client implements it.
type TransitionLocker interface {
	AcquireBookingLock(ctx context.Context, bookingID int64, ttl time.Duration) (string, error)
	ReleaseBookingLock(ctx context.Context, bookingID int64, token string) error
}

// EventPublisher emits domain events after committed transitions.
// *broker.EventPublisher implements it.
type EventPublisher interface {
	PublishBookingCreated(ctx context.Context, event *models.BookingCreatedEvent) error
	PublishBookingConfirmed(ctx context.Context, event *models.BookingConfirmedEvent) error
	PublishBookingCompleted(ctx context.Context, event *models.BookingCompletedEvent) error
	PublishBookingCancelled(ctx context.Context, event *models.BookingCancelledEvent) error
	PublishPaymentSubmitted(ctx context.Context, event *models.PaymentSubmittedEvent) error
	PublishPaymentVerified(ctx context.Context, event *models.PaymentVerifiedEvent) error
}

// BookingService owns the booking entity and its state machine
type BookingService struct {
	store          BookingStore
	locker         TransitionLocker
	cache          ScheduleCache
	eventPublisher EventPublisher
	clock          Clock
	logger         *zap.Logger

	lockTTL         time.Duration
	defaultCurrency string
}

// NewBookingService creates a new booking service
func NewBookingService(
	bookingStore BookingStore,
	locker TransitionLocker,
	cache ScheduleCache,
	eventPublisher EventPublisher,
	clock Clock,
	lockTTL time.Duration,
	defaultCurrency string,
) *BookingService {
	return &BookingService{
		store:           bookingStore,
		locker:          locker,
		cache:           cache,
		eventPublisher:  eventPublisher,
		clock:           clock,
		logger:          util.NamedLogger("bookings"),
		lockTTL:         lockTTL,
		defaultCurrency: defaultCurrency,
	}
}

// CreateBookingRequest represents a request to create a booking
type CreateBookingRequest struct {
	ProviderID      int64      `json:"provider_id" binding:"required"`
	ServiceID       int64      `json:"service_id" binding:"required"`
	CustomerID      int64      `json:"customer_id" binding:"required"`
	EventStart      time.Time  `json:"event_start" binding:"required"`
	EventEnd        *time.Time `json:"event_end,omitempty"`
	Location        string     `json:"location,omitempty"`
	AttendeeCount   int        `json:"attendee_count,omitempty"`
	SpecialRequests string     `json:"special_requests,omitempty"`
	TotalAmount     int64      `json:"total_amount"`
	DepositAmount   int64      `json:"deposit_amount"`
	Currency        string     `json:"currency,omitempty"`
}

// Create reserves an availability slot and creates the booking in pending
// state. Reservation and insert are one transaction: of two concurrent
// creates for an overlapping window, exactly one succeeds.
func (s *BookingService) Create(ctx context.Context, req *CreateBookingRequest) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.Create")
	defer span.End()

	if err := s.validateCreate(req); err != nil {
		util.BookingTransitionsFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}

	now := s.clock.Now()
	booking := &models.Booking{
		BookingNumber:   s.generateBookingNumber(now),
		ProviderID:      req.ProviderID,
		ServiceID:       req.ServiceID,
		CustomerID:      req.CustomerID,
		EventStart:      req.EventStart,
		EventEnd:        req.EventEnd,
		Location:        req.Location,
		AttendeeCount:   req.AttendeeCount,
		SpecialRequests: req.SpecialRequests,
		TotalAmount:     req.TotalAmount,
		DepositAmount:   req.DepositAmount,
		RemainingAmount: req.TotalAmount,
		Currency:        currency,
		Status:          models.BookingStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
	}

	start := time.Now()
	err := s.store.CreateBookingReservingSlot(ctx, booking)
	util.ReservationLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, store.ErrSlotConflict) {
			util.SlotConflictsTotal.Inc()
			return nil, conflictErr("no available slot for the requested window")
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	util.BookingsCreatedTotal.Inc()
	s.logger.Info("Booking created",
		zap.Int64("booking_id", booking.ID),
		zap.String("booking_number", booking.BookingNumber),
		zap.Int64("provider_id", booking.ProviderID))

	s.invalidateEventDays(ctx, booking)

	event := &models.BookingCreatedEvent{
		BaseEvent:     s.baseEvent(models.EventTypeBookingCreated),
		BookingID:     booking.ID,
		BookingNumber: booking.BookingNumber,
		ProviderID:    booking.ProviderID,
		CustomerID:    booking.CustomerID,
		EventStart:    booking.EventStart,
		TotalAmount:   booking.TotalAmount,
		DepositAmount: booking.DepositAmount,
	}
	if err := s.eventPublisher.PublishBookingCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish BookingCreated event", zap.Error(err))
	}

	return booking, nil
}

// Confirm manually transitions pending -> confirmed
func (s *BookingService) Confirm(ctx context.Context, id, providerID int64) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.Confirm")
	defer span.End()

	unlock, err := s.lockBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	booking, err := s.store.ConfirmBooking(ctx, id, providerID, s.clock.Now())
	if err != nil {
		return nil, s.mapTransitionErr(err, id, "confirm")
	}

	util.BookingsConfirmedTotal.WithLabelValues("manual").Inc()
	s.logger.Info("Booking confirmed",
		zap.Int64("booking_id", booking.ID),
		zap.String("booking_number", booking.BookingNumber))

	event := &models.BookingConfirmedEvent{
		BaseEvent:     s.baseEvent(models.EventTypeBookingConfirmed),
		BookingID:     booking.ID,
		BookingNumber: booking.BookingNumber,
		CustomerID:    booking.CustomerID,
		AutoConfirmed: false,
	}
	if err := s.eventPublisher.PublishBookingConfirmed(ctx, event); err != nil {
		s.logger.Error("Failed to publish BookingConfirmed event", zap.Error(err))
	}

	return booking, nil
}

// Complete transitions confirmed -> completed, but only once the event has
// actually taken place.
func (s *BookingService) Complete(ctx context.Context, id, providerID int64) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.Complete")
	defer span.End()

	unlock, err := s.lockBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.store.GetBookingByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundErr("booking %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	if current.ProviderID != providerID {
		return nil, notFoundErr("booking %d not found", id)
	}

	now := s.clock.Now()
	if current.EventFinish().After(now) {
		util.BookingTransitionsFailedTotal.WithLabelValues("event_not_over").Inc()
		return nil, stateErr("booking %d cannot be completed before the event is over", id)
	}

	booking, err := s.store.CompleteBooking(ctx, id, providerID, now)
	if err != nil {
		return nil, s.mapTransitionErr(err, id, "complete")
	}

	util.BookingsCompletedTotal.Inc()
	s.logger.Info("Booking completed",
		zap.Int64("booking_id", booking.ID),
		zap.String("booking_number", booking.BookingNumber))

	event := &models.BookingCompletedEvent{
		BaseEvent:     s.baseEvent(models.EventTypeBookingCompleted),
		BookingID:     booking.ID,
		BookingNumber: booking.BookingNumber,
		CustomerID:    booking.CustomerID,
	}
	if err := s.eventPublisher.PublishBookingCompleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish BookingCompleted event", zap.Error(err))
	}

	return booking, nil
}

// Cancel transitions a non-terminal booking to cancelled and releases its
// slot so the window becomes bookable again.
func (s *BookingService) Cancel(ctx context.Context, id, providerID int64, reason string) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.Cancel")
	defer span.End()

	if strings.TrimSpace(reason) == "" {
		return nil, validationErr("cancellation reason is required")
	}

	unlock, err := s.lockBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	booking, err := s.store.CancelBookingReleasingSlot(ctx, id, providerID, reason, s.clock.Now())
	if err != nil {
		return nil, s.mapTransitionErr(err, id, "cancel")
	}

	util.BookingsCancelledTotal.Inc()
	s.logger.Info("Booking cancelled",
		zap.Int64("booking_id", booking.ID),
		zap.String("booking_number", booking.BookingNumber),
		zap.String("reason", reason))

	s.invalidateEventDays(ctx, booking)

	event := &models.BookingCancelledEvent{
		BaseEvent:     s.baseEvent(models.EventTypeBookingCancelled),
		BookingID:     booking.ID,
		BookingNumber: booking.BookingNumber,
		CustomerID:    booking.CustomerID,
		Reason:        reason,
	}
	if err := s.eventPublisher.PublishBookingCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish BookingCancelled event", zap.Error(err))
	}

	return booking, nil
}

// Get retrieves a provider-owned booking
func (s *BookingService) Get(ctx context.Context, id, providerID int64) (*models.Booking, error) {
	booking, err := s.store.GetBookingByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundErr("booking %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	if booking.ProviderID != providerID {
		return nil, notFoundErr("booking %d not found", id)
	}
	return booking, nil
}

// List retrieves a provider's bookings
func (s *BookingService) List(ctx context.Context, providerID int64, filter store.BookingFilter) ([]models.Booking, error) {
	return s.store.ListBookings(ctx, providerID, filter)
}

// PublishAutoConfirmed emits the confirmation event for a full-payment
// auto-confirmation performed by the ledger's verification transaction.
func (s *BookingService) PublishAutoConfirmed(ctx context.Context, booking *models.Booking) {
	util.BookingsConfirmedTotal.WithLabelValues("auto").Inc()
	s.logger.Info("Booking auto-confirmed on full payment",
		zap.Int64("booking_id", booking.ID),
		zap.String("booking_number", booking.BookingNumber))

	event := &models.BookingConfirmedEvent{
		BaseEvent:     s.baseEvent(models.EventTypeBookingConfirmed),
		BookingID:     booking.ID,
		BookingNumber: booking.BookingNumber,
		CustomerID:    booking.CustomerID,
		AutoConfirmed: true,
	}
	if err := s.eventPublisher.PublishBookingConfirmed(ctx, event); err != nil {
		s.logger.Error("Failed to publish BookingConfirmed event", zap.Error(err))
	}
}

func (s *BookingService) validateCreate(req *CreateBookingRequest) error {
	if req.ProviderID <= 0 || req.ServiceID <= 0 || req.CustomerID <= 0 {
		return validationErr("provider, service and customer ids are required")
	}
	if req.EventStart.IsZero() {
		return validationErr("event start is required")
	}
	if req.EventEnd != nil && req.EventEnd.Before(req.EventStart) {
		return validationErr("event end must not be before event start")
	}
	if req.TotalAmount < 0 {
		return validationErr("total amount must not be negative")
	}
	if req.DepositAmount < 0 || req.DepositAmount > req.TotalAmount {
		return validationErr("deposit must be between 0 and the total amount")
	}
	if req.AttendeeCount < 0 {
		return validationErr("attendee count must not be negative")
	}
	return nil
}

// lockBooking acquires the per-booking transition lock and returns the
// release func. A held lock surfaces as ConflictError so the caller can
// retry once the concurrent transition finishes.
func (s *BookingService) lockBooking(ctx context.Context, id int64) (func(), error) {
	token, err := s.locker.AcquireBookingLock(ctx, id, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire booking lock: %w", err)
	}
	if token == "" {
		return nil, conflictErr("another transition is in progress for booking %d", id)
	}

	return func() {
		if err := s.locker.ReleaseBookingLock(context.WithoutCancel(ctx), id, token); err != nil {
			s.logger.Warn("Failed to release booking lock",
				zap.Int64("booking_id", id),
				zap.Error(err))
		}
	}, nil
}

func (s *BookingService) mapTransitionErr(err error, id int64, op string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		util.BookingTransitionsFailedTotal.WithLabelValues("not_found").Inc()
		return notFoundErr("booking %d not found", id)
	case errors.Is(err, store.ErrBookingNotInState):
		util.BookingTransitionsFailedTotal.WithLabelValues(op + "_bad_state").Inc()
		return fmt.Errorf("%w: cannot %s booking %d in its current state", ErrInvalidTransition, op, id)
	}
	return err
}

func (s *BookingService) invalidateEventDays(ctx context.Context, booking *models.Booking) {
	from := truncateToDay(booking.EventStart)
	to := truncateToDay(booking.EventFinish())
	if err := s.cache.InvalidateDayRange(ctx, booking.ProviderID, from, to); err != nil {
		s.logger.Warn("Failed to invalidate schedule cache",
			zap.Int64("provider_id", booking.ProviderID),
			zap.Error(err))
	}
}

func (s *BookingService) baseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: s.clock.Now(),
	}
}

func (s *BookingService) generateBookingNumber(now time.Time) string {
	suffix := strings.ToUpper(uuid.New().String()[:8])
	return fmt.Sprintf("BK-%s-%s", now.Format("20060102"), suffix)
}
