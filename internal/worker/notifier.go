package worker

import (
	"context"

	"scheduling-service/internal/models"
	"scheduling-service/internal/util"

	"go.uber.org/zap"
)

// LogNotifier is the default Notifier: it records what would be sent.
// Real delivery channels (email, SMS) plug in behind the Notifier interface.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a logging notifier
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: util.NamedLogger("notifier")}
}

func (n *LogNotifier) NotifyBookingCreated(ctx context.Context, e *models.BookingCreatedEvent) error {
	n.logger.Info("Notify: booking created",
		zap.String("booking_number", e.BookingNumber),
		zap.Int64("customer_id", e.CustomerID))
	return nil
}

func (n *LogNotifier) NotifyBookingConfirmed(ctx context.Context, e *models.BookingConfirmedEvent) error {
	n.logger.Info("Notify: booking confirmed",
		zap.String("booking_number", e.BookingNumber),
		zap.Int64("customer_id", e.CustomerID),
		zap.Bool("auto_confirmed", e.AutoConfirmed))
	return nil
}

func (n *LogNotifier) NotifyBookingCompleted(ctx context.Context, e *models.BookingCompletedEvent) error {
	n.logger.Info("Notify: booking completed",
		zap.String("booking_number", e.BookingNumber),
		zap.Int64("customer_id", e.CustomerID))
	return nil
}

func (n *LogNotifier) NotifyBookingCancelled(ctx context.Context, e *models.BookingCancelledEvent) error {
	n.logger.Info("Notify: booking cancelled",
		zap.String("booking_number", e.BookingNumber),
		zap.Int64("customer_id", e.CustomerID),
		zap.String("reason", e.Reason))
	return nil
}

func (n *LogNotifier) NotifyPaymentVerified(ctx context.Context, e *models.PaymentVerifiedEvent) error {
	n.logger.Info("Notify: payment verified",
		zap.Int64("booking_id", e.BookingID),
		zap.Int64("payment_id", e.PaymentID),
		zap.Bool("approved", e.Approved))
	return nil
}
