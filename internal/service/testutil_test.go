package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"scheduling-service/internal/models"
	"scheduling-service/internal/store"
)

// fakeStore is an in-memory stand-in for *store.Store that preserves the
// store's transactional semantics under a single mutex.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	slots    map[int64]*models.AvailabilitySlot
	bookings map[int64]*models.Booking
	payments map[int64]*models.Payment
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		slots:    make(map[int64]*models.AvailabilitySlot),
		bookings: make(map[int64]*models.Booking),
		payments: make(map[int64]*models.Payment),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) addSlot(slot models.AvailabilitySlot) *models.AvailabilitySlot {
	f.mu.Lock()
	defer f.mu.Unlock()
	slot.ID = f.id()
	f.slots[slot.ID] = &slot
	return &slot
}

func slotKey(s *models.AvailabilitySlot) string {
	svc := int64(0)
	if s.ServiceID != nil {
		svc = *s.ServiceID
	}
	return fmt.Sprintf("%d|%d|%s|%s|%s", s.ProviderID, svc,
		s.Date.Format("2006-01-02"), s.StartTime.Format("15:04"), s.EndTime.Format("15:04"))
}

func (f *fakeStore) CreateSlot(_ context.Context, slot *models.AvailabilitySlot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.slots {
		if slotKey(existing) == slotKey(slot) {
			return store.ErrSlotConflict
		}
	}
	slot.ID = f.id()
	cp := *slot
	f.slots[slot.ID] = &cp
	return nil
}

func (f *fakeStore) CreateSlotsBatch(_ context.Context, slots []models.AvailabilitySlot) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing := make(map[string]bool, len(f.slots))
	for _, s := range f.slots {
		existing[slotKey(s)] = true
	}
	created := 0
	for i := range slots {
		s := slots[i]
		if existing[slotKey(&s)] {
			continue
		}
		s.ID = f.id()
		f.slots[s.ID] = &s
		existing[slotKey(&s)] = true
		created++
	}
	return created, nil
}

func (f *fakeStore) GetSlotByID(_ context.Context, id int64) (*models.AvailabilitySlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) DeleteSlot(_ context.Context, id, providerID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok || s.ProviderID != providerID {
		return store.ErrNotFound
	}
	if s.SlotType == models.SlotTypeBooked {
		return store.ErrSlotBooked
	}
	delete(f.slots, id)
	return nil
}

func (f *fakeStore) BulkDeleteSlots(_ context.Context, ids []int64, providerID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	deleted := 0
	for _, id := range ids {
		s, ok := f.slots[id]
		if !ok || s.ProviderID != providerID || s.SlotType == models.SlotTypeBooked {
			continue
		}
		delete(f.slots, id)
		deleted++
	}
	return deleted, nil
}

func (f *fakeStore) ListSlots(_ context.Context, providerID int64, filter store.SlotFilter) ([]models.AvailabilitySlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AvailabilitySlot
	for _, s := range f.slots {
		if s.ProviderID != providerID {
			continue
		}
		if !filter.From.IsZero() && s.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && s.Date.After(filter.To) {
			continue
		}
		if filter.SlotType != "" && s.SlotType != filter.SlotType {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeStore) FindConflictingSlots(_ context.Context, providerID int64, start, end time.Time) ([]models.AvailabilitySlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AvailabilitySlot
	for _, s := range f.slots {
		if s.ProviderID == providerID && s.SlotType != models.SlotTypeAvailable &&
			s.StartTime.Before(end) && s.EndTime.After(start) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateBookingReservingSlot(_ context.Context, b *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	end := b.EventFinish()
	var target *models.AvailabilitySlot
	for _, s := range f.slots {
		if s.ProviderID != b.ProviderID || !s.StartTime.Before(end) || !s.EndTime.After(b.EventStart) {
			continue
		}
		if s.SlotType != models.SlotTypeAvailable {
			return store.ErrSlotConflict
		}
		if target == nil && !s.StartTime.After(b.EventStart) && !s.EndTime.Before(end) {
			target = s
		}
	}
	if target == nil {
		return store.ErrSlotConflict
	}

	target.SlotType = models.SlotTypeBooked
	b.ID = f.id()
	b.SlotID = target.ID
	b.CreatedAt = time.Now()
	cp := *b
	f.bookings[b.ID] = &cp
	return nil
}

func (f *fakeStore) GetBookingByID(_ context.Context, id int64) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) GetBookingByNumber(_ context.Context, number string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.BookingNumber == number {
			cp := *b
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListBookings(_ context.Context, providerID int64, filter store.BookingFilter) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Booking
	for _, b := range f.bookings {
		if b.ProviderID != providerID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (f *fakeStore) transition(id, providerID int64, from []string) (*models.Booking, error) {
	b, ok := f.bookings[id]
	if !ok || b.ProviderID != providerID {
		return nil, store.ErrNotFound
	}
	for _, s := range from {
		if b.Status == s {
			return b, nil
		}
	}
	return nil, store.ErrBookingNotInState
}

func (f *fakeStore) ConfirmBooking(_ context.Context, id, providerID int64, now time.Time) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.transition(id, providerID, []string{models.BookingStatusPending})
	if err != nil {
		return nil, err
	}
	b.Status = models.BookingStatusConfirmed
	b.ConfirmedAt = &now
	cp := *b
	return &cp, nil
}

func (f *fakeStore) CompleteBooking(_ context.Context, id, providerID int64, now time.Time) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.transition(id, providerID, []string{models.BookingStatusConfirmed})
	if err != nil {
		return nil, err
	}
	b.Status = models.BookingStatusCompleted
	b.CompletedAt = &now
	cp := *b
	return &cp, nil
}

func (f *fakeStore) CancelBookingReleasingSlot(_ context.Context, id, providerID int64, reason string, now time.Time) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.transition(id, providerID, []string{models.BookingStatusPending, models.BookingStatusConfirmed})
	if err != nil {
		return nil, err
	}
	b.Status = models.BookingStatusCancelled
	b.CancelledAt = &now
	b.CancellationReason = reason
	if slot, ok := f.slots[b.SlotID]; ok {
		slot.SlotType = models.SlotTypeAvailable
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) CreatePayment(_ context.Context, p *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = f.id()
	p.CreatedAt = time.Now()
	cp := *p
	f.payments[p.ID] = &cp
	return nil
}

func (f *fakeStore) GetPaymentByID(_ context.Context, id int64) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) ListPaymentsByBooking(_ context.Context, bookingID int64) ([]models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Payment
	for _, p := range f.payments {
		if p.BookingID == bookingID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) TotalPaid(_ context.Context, bookingID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paidSumLocked(bookingID), nil
}

func (f *fakeStore) paidSumLocked(bookingID int64) int64 {
	var sum int64
	for _, p := range f.payments {
		if p.BookingID == bookingID && p.Status == models.PaymentAttemptCompleted {
			sum += p.Amount
		}
	}
	return sum
}

func (f *fakeStore) ApprovePayment(_ context.Context, paymentID, providerID int64, now time.Time, overpayTolerance int64) (*models.Payment, *models.Booking, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.payments[paymentID]
	if !ok {
		return nil, nil, false, store.ErrNotFound
	}
	b, ok := f.bookings[p.BookingID]
	if !ok || b.ProviderID != providerID {
		return nil, nil, false, store.ErrNotFound
	}
	if p.Status != models.PaymentAttemptPending {
		return nil, nil, false, store.ErrPaymentNotPending
	}
	if b.Status == models.BookingStatusCancelled {
		return nil, nil, false, store.ErrBookingNotInState
	}

	newPaid := f.paidSumLocked(b.ID) + p.Amount
	if newPaid > b.TotalAmount+overpayTolerance {
		return nil, nil, false, store.ErrOverpayment
	}

	p.Status = models.PaymentAttemptCompleted
	p.PaidAt = &now

	b.PaymentStatus = models.DerivePaymentStatus(b.TotalAmount, b.DepositAmount, newPaid)
	b.RemainingAmount = models.RemainingAmount(b.TotalAmount, newPaid)

	autoConfirmed := false
	if b.Status == models.BookingStatusPending && b.PaymentStatus == models.PaymentStatusFullyPaid {
		b.Status = models.BookingStatusConfirmed
		b.ConfirmedAt = &now
		autoConfirmed = true
	}

	pc, bc := *p, *b
	return &pc, &bc, autoConfirmed, nil
}

func (f *fakeStore) RejectPayment(_ context.Context, paymentID, providerID int64, reason string, now time.Time) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.payments[paymentID]
	if !ok {
		return nil, store.ErrNotFound
	}
	b, ok := f.bookings[p.BookingID]
	if !ok || b.ProviderID != providerID {
		return nil, store.ErrNotFound
	}
	if p.Status != models.PaymentAttemptPending {
		return nil, store.ErrPaymentNotPending
	}

	p.Status = models.PaymentAttemptFailed
	p.RejectionReason = reason
	cp := *p
	return &cp, nil
}

// fakeLocker hands out locks in-process with the same held/free semantics as
// the redis implementation.
type fakeLocker struct {
	mu   sync.Mutex
	held map[int64]string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[int64]string)}
}

func (l *fakeLocker) AcquireBookingLock(_ context.Context, bookingID int64, _ time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[bookingID]; ok {
		return "", nil
	}
	token := fmt.Sprintf("token-%d", bookingID)
	l.held[bookingID] = token
	return token, nil
}

func (l *fakeLocker) ReleaseBookingLock(_ context.Context, bookingID int64, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[bookingID] == token {
		delete(l.held, bookingID)
	}
	return nil
}

type fakeCache struct {
	mu   sync.Mutex
	days map[string][]models.AvailabilitySlot
}

func newFakeCache() *fakeCache {
	return &fakeCache{days: make(map[string][]models.AvailabilitySlot)}
}

func cacheKey(providerID int64, day time.Time) string {
	return fmt.Sprintf("%d:%s", providerID, day.Format("2006-01-02"))
}

func (c *fakeCache) GetDaySchedule(_ context.Context, providerID int64, day time.Time) ([]models.AvailabilitySlot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slots, ok := c.days[cacheKey(providerID, day)]
	return slots, ok, nil
}

func (c *fakeCache) SetDaySchedule(_ context.Context, providerID int64, day time.Time, slots []models.AvailabilitySlot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.days[cacheKey(providerID, day)] = slots
	return nil
}

func (c *fakeCache) InvalidateDaySchedule(_ context.Context, providerID int64, day time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.days, cacheKey(providerID, day))
	return nil
}

func (c *fakeCache) InvalidateDayRange(_ context.Context, providerID int64, from, to time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		delete(c.days, cacheKey(providerID, d))
	}
	return nil
}

// fakePublisher records published events
type fakePublisher struct {
	mu     sync.Mutex
	events []interface{}
}

func (p *fakePublisher) record(e interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) PublishBookingCreated(_ context.Context, e *models.BookingCreatedEvent) error {
	return p.record(e)
}

func (p *fakePublisher) PublishBookingConfirmed(_ context.Context, e *models.BookingConfirmedEvent) error {
	return p.record(e)
}

func (p *fakePublisher) PublishBookingCompleted(_ context.Context, e *models.BookingCompletedEvent) error {
	return p.record(e)
}

func (p *fakePublisher) PublishBookingCancelled(_ context.Context, e *models.BookingCancelledEvent) error {
	return p.record(e)
}

func (p *fakePublisher) PublishPaymentSubmitted(_ context.Context, e *models.PaymentSubmittedEvent) error {
	return p.record(e)
}

func (p *fakePublisher) PublishPaymentVerified(_ context.Context, e *models.PaymentVerifiedEvent) error {
	return p.record(e)
}

func (p *fakePublisher) confirmedEvents() []*models.BookingConfirmedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*models.BookingConfirmedEvent
	for _, e := range p.events {
		if ce, ok := e.(*models.BookingConfirmedEvent); ok {
			out = append(out, ce)
		}
	}
	return out
}
