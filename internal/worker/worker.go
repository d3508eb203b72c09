package worker

import (
	"context"

	"scheduling-service/internal/broker"
	"scheduling-service/internal/models"
	"scheduling-service/internal/util"

	"go.uber.org/zap"
)

// ProcessedEventStore tracks consumed event ids so redelivered messages are
// dispatched at most once.
type ProcessedEventStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// Notifier dispatches booking lifecycle notifications. Delivery is
// best-effort: failures are logged and never block the consumer.
type Notifier interface {
	NotifyBookingCreated(ctx context.Context, event *models.BookingCreatedEvent) error
	NotifyBookingConfirmed(ctx context.Context, event *models.BookingConfirmedEvent) error
	NotifyBookingCompleted(ctx context.Context, event *models.BookingCompletedEvent) error
	NotifyBookingCancelled(ctx context.Context, event *models.BookingCancelledEvent) error
	NotifyPaymentVerified(ctx context.Context, event *models.PaymentVerifiedEvent) error
}

// NotificationWorker consumes booking events and dispatches notifications
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	processed    ProcessedEventStore
	notifier     Notifier
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(
	consumer *broker.Consumer,
	processed ProcessedEventStore,
	notifier Notifier,
) *NotificationWorker {
	w := &NotificationWorker{
		consumer:  consumer,
		processed: processed,
		notifier:  notifier,
		logger:    util.NamedLogger("notify-worker"),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnBookingCreated(func(ctx context.Context, e *models.BookingCreatedEvent) error {
		return w.dispatch(ctx, e.BaseEvent, func() error { return w.notifier.NotifyBookingCreated(ctx, e) })
	})
	eventHandler.OnBookingConfirmed(func(ctx context.Context, e *models.BookingConfirmedEvent) error {
		return w.dispatch(ctx, e.BaseEvent, func() error { return w.notifier.NotifyBookingConfirmed(ctx, e) })
	})
	eventHandler.OnBookingCompleted(func(ctx context.Context, e *models.BookingCompletedEvent) error {
		return w.dispatch(ctx, e.BaseEvent, func() error { return w.notifier.NotifyBookingCompleted(ctx, e) })
	})
	eventHandler.OnBookingCancelled(func(ctx context.Context, e *models.BookingCancelledEvent) error {
		return w.dispatch(ctx, e.BaseEvent, func() error { return w.notifier.NotifyBookingCancelled(ctx, e) })
	})
	eventHandler.OnPaymentVerified(func(ctx context.Context, e *models.PaymentVerifiedEvent) error {
		return w.dispatch(ctx, e.BaseEvent, func() error { return w.notifier.NotifyPaymentVerified(ctx, e) })
	})
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

func (w *NotificationWorker) dispatch(ctx context.Context, base models.BaseEvent, send func() error) error {
	done, err := w.processed.IsEventProcessed(ctx, base.EventID)
	if err != nil {
		return err
	}
	if done {
		w.logger.Debug("Skipping already-processed event", zap.String("event_id", base.EventID))
		return nil
	}

	if err := send(); err != nil {
		// Best-effort: a failed notification does not hold up the consumer
		// or get retried.
		w.logger.Error("Notification dispatch failed",
			zap.String("event_id", base.EventID),
			zap.String("event_type", base.EventType),
			zap.Error(err))
	}

	return w.processed.MarkEventProcessed(ctx, base.EventID, base.EventType)
}
