package service

import (
	"context"
	"testing"
	"time"

	"scheduling-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paymentFixture struct {
	*bookingFixture
	payments *PaymentService
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	bf := newBookingFixture(t)
	return &paymentFixture{
		bookingFixture: bf,
		payments: NewPaymentService(bf.store, bf.locker, bf.svc, bf.publisher, bf.clock,
			30*time.Second, 0),
	}
}

func (f *paymentFixture) createBooking(t *testing.T) *models.Booking {
	t.Helper()
	start, end := eventWindow()
	f.addAvailableSlot(1, start, end)
	booking, err := f.svc.Create(context.Background(), createRequest())
	require.NoError(t, err)
	return booking
}

func (f *paymentFixture) submit(t *testing.T, bookingID, amount int64) *models.Payment {
	t.Helper()
	p, err := f.payments.RecordClaim(context.Background(), &SubmitPaymentRequest{
		BookingID: bookingID,
		Amount:    amount,
		Method:    "bank_transfer",
	})
	require.NoError(t, err)
	return p
}

func TestRecordClaimCreatesPendingPayment(t *testing.T) {
	f := newPaymentFixture(t)
	booking := f.createBooking(t)

	payment := f.submit(t, booking.ID, 30000)
	assert.Equal(t, models.PaymentAttemptPending, payment.Status)
	assert.Equal(t, booking.Currency, payment.Currency)
	assert.Nil(t, payment.PaidAt)

	// No financial state changes until verification.
	current, err := f.svc.Get(context.Background(), booking.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, current.PaymentStatus)
	assert.Equal(t, int64(100000), current.RemainingAmount)
}

func TestRecordClaimValidation(t *testing.T) {
	f := newPaymentFixture(t)
	booking := f.createBooking(t)

	_, err := f.payments.RecordClaim(context.Background(), &SubmitPaymentRequest{
		BookingID: booking.ID, Amount: 0, Method: "cash",
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.payments.RecordClaim(context.Background(), &SubmitPaymentRequest{
		BookingID: booking.ID, Amount: 1000, Method: "  ",
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.payments.RecordClaim(context.Background(), &SubmitPaymentRequest{
		BookingID: 999, Amount: 1000, Method: "cash",
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDepositThenFullPaymentScenario(t *testing.T) {
	f := newPaymentFixture(t)
	booking := f.createBooking(t) // total 100000, deposit 30000
	ctx := context.Background()

	// Deposit payment: approved but not a full payment, so the booking stays
	// pending.
	deposit := f.submit(t, booking.ID, 30000)
	_, err := f.payments.Verify(ctx, deposit.ID, 1, &VerifyPaymentRequest{Decision: DecisionApprove})
	require.NoError(t, err)

	current, err := f.svc.Get(ctx, booking.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusDepositPaid, current.PaymentStatus)
	assert.Equal(t, models.BookingStatusPending, current.Status)
	assert.Equal(t, int64(70000), current.RemainingAmount)

	// Remainder: full payment auto-confirms the pending booking.
	rest := f.submit(t, booking.ID, 70000)
	_, err = f.payments.Verify(ctx, rest.ID, 1, &VerifyPaymentRequest{Decision: DecisionApprove})
	require.NoError(t, err)

	current, err = f.svc.Get(ctx, booking.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFullyPaid, current.PaymentStatus)
	assert.Equal(t, int64(0), current.RemainingAmount)
	assert.Equal(t, models.BookingStatusConfirmed, current.Status)
	require.NotNil(t, current.ConfirmedAt)
	assert.Equal(t, testNow, *current.ConfirmedAt)

	confirmed := f.publisher.confirmedEvents()
	require.Len(t, confirmed, 1)
	assert.True(t, confirmed[0].AutoConfirmed)

	total, err := f.payments.TotalPaid(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), total)
}

func TestVerifyTwiceFails(t *testing.T) {
	f := newPaymentFixture(t)
	booking := f.createBooking(t)
	ctx := context.Background()

	payment := f.submit(t, booking.ID, 100000)
	_, err := f.payments.Verify(ctx, payment.ID, 1, &VerifyPaymentRequest{Decision: DecisionApprove})
	require.NoError(t, err)

	before, err := f.svc.Get(ctx, booking.ID, 1)
	require.NoError(t, err)

	_, err = f.payments.Verify(ctx, payment.ID, 1, &VerifyPaymentRequest{Decision: DecisionApprove})
	assert.ErrorIs(t, err, ErrState)

	after, err := f.svc.Get(ctx, booking.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, *before.ConfirmedAt, *after.ConfirmedAt)
	assert.Equal(t, before.PaymentStatus, after.PaymentStatus)
}

func TestFullPaymentOnConfirmedBookingDoesNotReconfirm(t *testing.T) {
	f := newPaymentFixture(t)
	booking := f.createBooking(t)
	ctx := context.Background()

	_, err := f.svc.Confirm(ctx, booking.ID, 1)
	require.NoError(t, err)

	payment := f.submit(t, booking.ID, 100000)
	_, err = f.payments.Verify(ctx, payment.ID, 1, &VerifyPaymentRequest{Decision: DecisionApprove})
	require.NoError(t, err)

	current, err := f.svc.Get(ctx, booking.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFullyPaid, current.PaymentStatus)

	// Only the manual confirmation event exists.
	confirmed := f.publisher.confirmedEvents()
	require.Len(t, confirmed, 1)
	assert.False(t, confirmed[0].AutoConfirmed)
}

func TestRejectRequiresReason(t *testing.T) {
	f := newPaymentFixture(t)
	booking := f.createBooking(t)
	payment := f.submit(t, booking.ID, 30000)

	_, err := f.payments.Verify(context.Background(), payment.ID, 1,
		&VerifyPaymentRequest{Decision: DecisionReject})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRejectMarksPaymentFailed(t *testing.T) {
	f := newPaymentFixture(t)
	booking := f.createBooking(t)
	payment := f.submit(t, booking.ID, 30000)

	rejected, err := f.payments.Verify(context.Background(), payment.ID, 1,
		&VerifyPaymentRequest{Decision: DecisionReject, Reason: "proof illegible"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentAttemptFailed, rejected.Status)
	assert.Equal(t, "proof illegible", rejected.RejectionReason)

	// Rejected payments never count toward the paid sum.
	total, err := f.payments.TotalPaid(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestOverpaymentRejected(t *testing.T) {
	f := newPaymentFixture(t)
	booking := f.createBooking(t)
	ctx := context.Background()

	payment := f.submit(t, booking.ID, 150000)
	_, err := f.payments.Verify(ctx, payment.ID, 1, &VerifyPaymentRequest{Decision: DecisionApprove})
	assert.ErrorIs(t, err, ErrValidation)

	// The claim stays pending so the provider can reject it explicitly.
	current, err := f.store.GetPaymentByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentAttemptPending, current.Status)
}

func TestApproveOnCancelledBookingFails(t *testing.T) {
	f := newPaymentFixture(t)
	booking := f.createBooking(t)
	ctx := context.Background()

	payment := f.submit(t, booking.ID, 30000)
	_, err := f.svc.Cancel(ctx, booking.ID, 1, "venue unavailable")
	require.NoError(t, err)

	_, err = f.payments.Verify(ctx, payment.ID, 1, &VerifyPaymentRequest{Decision: DecisionApprove})
	assert.ErrorIs(t, err, ErrState)
}

func TestSubmitOnCancelledBookingFails(t *testing.T) {
	f := newPaymentFixture(t)
	booking := f.createBooking(t)
	ctx := context.Background()

	_, err := f.svc.Cancel(ctx, booking.ID, 1, "venue unavailable")
	require.NoError(t, err)

	_, err = f.payments.RecordClaim(ctx, &SubmitPaymentRequest{
		BookingID: booking.ID, Amount: 1000, Method: "cash",
	})
	assert.ErrorIs(t, err, ErrState)
}

func TestVerifyUnknownDecision(t *testing.T) {
	f := newPaymentFixture(t)
	booking := f.createBooking(t)
	payment := f.submit(t, booking.ID, 30000)

	_, err := f.payments.Verify(context.Background(), payment.ID, 1,
		&VerifyPaymentRequest{Decision: "maybe"})
	assert.ErrorIs(t, err, ErrValidation)
}
