package service

import (
	"context"
	"errors"
	"time"

	"scheduling-service/internal/models"
	"scheduling-service/internal/store"
	"scheduling-service/internal/util"

	"go.uber.org/zap"
)

// SlotStore is the persistence surface the availability service needs.
// *store.Store implements it.
type SlotStore interface {
	CreateSlot(ctx context.Context, slot *models.AvailabilitySlot) error
	CreateSlotsBatch(ctx context.Context, slots []models.AvailabilitySlot) (int, error)
	GetSlotByID(ctx context.Context, id int64) (*models.AvailabilitySlot, error)
	DeleteSlot(ctx context.Context, id, providerID int64) error
	BulkDeleteSlots(ctx context.Context, ids []int64, providerID int64) (int, error)
	ListSlots(ctx context.Context, providerID int64, filter store.SlotFilter) ([]models.AvailabilitySlot, error)
	FindConflictingSlots(ctx context.Context, providerID int64, start, end time.Time) ([]models.AvailabilitySlot, error)
}

// ScheduleCache caches per-provider day schedules. *redisclient.Client
// implements it.
type ScheduleCache interface {
	GetDaySchedule(ctx context.Context, providerID int64, day time.Time) ([]models.AvailabilitySlot, bool, error)
	SetDaySchedule(ctx context.Context, providerID int64, day time.Time, slots []models.AvailabilitySlot) error
	InvalidateDaySchedule(ctx context.Context, providerID int64, day time.Time) error
	InvalidateDayRange(ctx context.Context, providerID int64, from, to time.Time) error
}

// AvailabilityService owns time-slot records per provider
type AvailabilityService struct {
	store  SlotStore
	cache  ScheduleCache
	clock  Clock
	logger *zap.Logger

	allowPastSlots    bool
	maxRecurrenceDays int
}

// NewAvailabilityService creates a new availability service
func NewAvailabilityService(slotStore SlotStore, cache ScheduleCache, clock Clock, allowPastSlots bool, maxRecurrenceDays int) *AvailabilityService {
	return &AvailabilityService{
		store:             slotStore,
		cache:             cache,
		clock:             clock,
		logger:            util.NamedLogger("availability"),
		allowPastSlots:    allowPastSlots,
		maxRecurrenceDays: maxRecurrenceDays,
	}
}

// CreateSlotRequest describes one slot to create
type CreateSlotRequest struct {
	ProviderID int64      `json:"provider_id"`
	ServiceID  *int64     `json:"service_id,omitempty"`
	Date       time.Time  `json:"date" binding:"required"`
	StartTime  time.Time  `json:"start_time" binding:"required"`
	EndTime    time.Time  `json:"end_time" binding:"required"`
	SlotType   string     `json:"slot_type,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

// CreateRecurringRequest describes a recurring slot expansion
type CreateRecurringRequest struct {
	Template   CreateSlotRequest `json:"template" binding:"required"`
	Cadence    string            `json:"cadence" binding:"required"`
	Until      time.Time         `json:"until" binding:"required"`
	DaysOfWeek []time.Weekday    `json:"days_of_week,omitempty"`
}

// CreateSlot validates and persists a single availability slot
func (s *AvailabilityService) CreateSlot(ctx context.Context, req *CreateSlotRequest) (*models.AvailabilitySlot, error) {
	ctx, span := util.StartSpan(ctx, "AvailabilityService.CreateSlot")
	defer span.End()

	slot, err := s.slotFromRequest(req)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateSlot(ctx, slot); err != nil {
		if errors.Is(err, store.ErrSlotConflict) {
			return nil, conflictErr("slot already exists for this window")
		}
		return nil, err
	}

	util.SlotsCreatedTotal.Inc()
	s.logger.Info("Slot created",
		zap.Int64("slot_id", slot.ID),
		zap.Int64("provider_id", slot.ProviderID),
		zap.Time("date", slot.Date))

	s.invalidateDay(ctx, slot.ProviderID, slot.Date)
	return slot, nil
}

// CreateRecurringSlots expands the template over the requested range and
// persists the occurrences in one batch. Occurrences that collide with an
// existing slot are silently skipped, so re-running the same request is safe.
// Returns (created, skipped).
func (s *AvailabilityService) CreateRecurringSlots(ctx context.Context, req *CreateRecurringRequest) (int, int, error) {
	ctx, span := util.StartSpan(ctx, "AvailabilityService.CreateRecurringSlots")
	defer span.End()

	template, err := s.slotFromRequest(&req.Template)
	if err != nil {
		return 0, 0, err
	}

	if req.Until.Sub(req.Template.Date) > time.Duration(s.maxRecurrenceDays)*24*time.Hour {
		return 0, 0, validationErr("recurrence range exceeds %d days", s.maxRecurrenceDays)
	}

	dates, err := Occurrences(RecurrenceRule{
		Start:      req.Template.Date,
		Until:      req.Until,
		Cadence:    req.Cadence,
		DaysOfWeek: req.DaysOfWeek,
	})
	if err != nil {
		return 0, 0, err
	}

	slots := make([]models.AvailabilitySlot, 0, len(dates))
	for _, date := range dates {
		occ := *template
		occ.Date = date
		occ.StartTime = onDay(date, template.StartTime)
		occ.EndTime = onDay(date, template.EndTime)
		slots = append(slots, occ)
	}

	created, err := s.store.CreateSlotsBatch(ctx, slots)
	if err != nil {
		return 0, 0, err
	}
	skipped := len(slots) - created

	util.SlotsCreatedTotal.Add(float64(created))
	util.RecurringSlotsSkippedTotal.Add(float64(skipped))
	util.RecurringBatchSize.Observe(float64(len(slots)))

	s.logger.Info("Recurring slots expanded",
		zap.Int64("provider_id", template.ProviderID),
		zap.String("cadence", req.Cadence),
		zap.Int("created", created),
		zap.Int("skipped", skipped))

	if len(dates) > 0 {
		if err := s.cache.InvalidateDayRange(ctx, template.ProviderID, dates[0], dates[len(dates)-1]); err != nil {
			s.logger.Warn("Failed to invalidate schedule cache", zap.Error(err))
		}
	}
	return created, skipped, nil
}

// DeleteSlot removes a provider-owned slot unless it is booked
func (s *AvailabilityService) DeleteSlot(ctx context.Context, id, providerID int64) error {
	slot, err := s.store.GetSlotByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return notFoundErr("slot %d not found", id)
	}
	if err != nil {
		return err
	}

	if err := s.store.DeleteSlot(ctx, id, providerID); err != nil {
		switch {
		case errors.Is(err, store.ErrSlotBooked):
			return conflictErr("slot %d is booked; cancel the booking first", id)
		case errors.Is(err, store.ErrNotFound):
			return notFoundErr("slot %d not found", id)
		}
		return err
	}

	s.invalidateDay(ctx, providerID, slot.Date)
	return nil
}

// BulkDeleteSlots deletes all matching slots, silently excluding booked ones.
// Returns the number deleted.
func (s *AvailabilityService) BulkDeleteSlots(ctx context.Context, ids []int64, providerID int64) (int, error) {
	if len(ids) == 0 {
		return 0, validationErr("no slot ids given")
	}

	deleted, err := s.store.BulkDeleteSlots(ctx, ids, providerID)
	if err != nil {
		return 0, err
	}

	s.logger.Info("Slots bulk-deleted",
		zap.Int64("provider_id", providerID),
		zap.Int("requested", len(ids)),
		zap.Int("deleted", deleted))

	// Day-level invalidation would need the deleted rows back; dropping the
	// provider's cached days for the ids' span is not worth a second query,
	// so the cache TTL handles staleness here.
	return deleted, nil
}

// ListSlots returns a provider's slots for a date range, serving single-day
// queries from cache when warm
func (s *AvailabilityService) ListSlots(ctx context.Context, providerID int64, filter store.SlotFilter) ([]models.AvailabilitySlot, error) {
	singleDay := !filter.From.IsZero() && filter.From.Equal(filter.To) &&
		filter.SlotType == "" && filter.ServiceID == nil

	if singleDay {
		if slots, hit, err := s.cache.GetDaySchedule(ctx, providerID, filter.From); err == nil && hit {
			return slots, nil
		} else if err != nil {
			s.logger.Warn("Schedule cache read failed", zap.Error(err))
		}
	}

	slots, err := s.store.ListSlots(ctx, providerID, filter)
	if err != nil {
		return nil, err
	}

	if singleDay {
		if err := s.cache.SetDaySchedule(ctx, providerID, filter.From, slots); err != nil {
			s.logger.Warn("Schedule cache write failed", zap.Error(err))
		}
	}
	return slots, nil
}

// FindConflicting returns booked or blocked slots overlapping the window
func (s *AvailabilityService) FindConflicting(ctx context.Context, providerID int64, start, end time.Time) ([]models.AvailabilitySlot, error) {
	return s.store.FindConflictingSlots(ctx, providerID, start, end)
}

func (s *AvailabilityService) slotFromRequest(req *CreateSlotRequest) (*models.AvailabilitySlot, error) {
	if req.ProviderID <= 0 {
		return nil, validationErr("provider id is required")
	}
	if !req.StartTime.Before(req.EndTime) {
		return nil, validationErr("start time must be before end time")
	}

	date := truncateToDay(req.Date)
	if !s.allowPastSlots {
		today := truncateToDay(s.clock.Now())
		if date.Before(today) {
			return nil, validationErr("slot date %s is in the past", date.Format("2006-01-02"))
		}
	}

	slotType := req.SlotType
	if slotType == "" {
		slotType = models.SlotTypeAvailable
	}
	if slotType != models.SlotTypeAvailable && slotType != models.SlotTypeBlocked {
		return nil, validationErr("slot type must be %q or %q", models.SlotTypeAvailable, models.SlotTypeBlocked)
	}

	return &models.AvailabilitySlot{
		ProviderID: req.ProviderID,
		ServiceID:  req.ServiceID,
		Date:       date,
		StartTime:  onDay(date, req.StartTime),
		EndTime:    onDay(date, req.EndTime),
		SlotType:   slotType,
		Notes:      req.Notes,
	}, nil
}

func (s *AvailabilityService) invalidateDay(ctx context.Context, providerID int64, day time.Time) {
	if err := s.cache.InvalidateDaySchedule(ctx, providerID, day); err != nil {
		s.logger.Warn("Failed to invalidate schedule cache",
			zap.Int64("provider_id", providerID),
			zap.Error(err))
	}
}

// onDay keeps a template's time-of-day while moving it onto another date.
func onDay(date, t time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(),
		t.Hour(), t.Minute(), t.Second(), 0, date.Location())
}
