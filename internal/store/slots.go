package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"scheduling-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// CreateSlot persists a single availability slot
func (s *Store) CreateSlot(ctx context.Context, slot *models.AvailabilitySlot) error {
	query := `
		INSERT INTO availability_slots (provider_id, service_id, date, start_time, end_time, slot_type, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := s.db.GetContext(ctx, slot, query,
		slot.ProviderID, slot.ServiceID, slot.Date, slot.StartTime, slot.EndTime, slot.SlotType, slot.Notes)
	if isUniqueViolation(err) {
		return ErrSlotConflict
	}
	return err
}

// CreateSlotsBatch inserts a batch of slots, silently skipping rows that
// collide with an existing (provider, service, date, start, end) combination.
// Returns the number of rows actually inserted.
func (s *Store) CreateSlotsBatch(ctx context.Context, slots []models.AvailabilitySlot) (int, error) {
	if len(slots) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO availability_slots (provider_id, service_id, date, start_time, end_time, slot_type, notes)
		VALUES (:provider_id, :service_id, :date, :start_time, :end_time, :slot_type, :notes)
		ON CONFLICT DO NOTHING`

	res, err := s.db.NamedExecContext(ctx, query, slots)
	if err != nil {
		return 0, fmt.Errorf("failed to insert slot batch: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(inserted), nil
}

// GetSlotByID retrieves a slot by ID
func (s *Store) GetSlotByID(ctx context.Context, id int64) (*models.AvailabilitySlot, error) {
	var slot models.AvailabilitySlot
	err := s.db.GetContext(ctx, &slot, "SELECT * FROM availability_slots WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// DeleteSlot deletes a provider-owned slot unless it is booked
func (s *Store) DeleteSlot(ctx context.Context, id, providerID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM availability_slots WHERE id = $1 AND provider_id = $2 AND slot_type <> $3",
		id, providerID, models.SlotTypeBooked)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	// Nothing deleted: either the slot is booked or it does not exist for
	// this provider.
	var exists bool
	err = s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM availability_slots WHERE id = $1 AND provider_id = $2)",
		id, providerID)
	if err != nil {
		return err
	}
	if exists {
		return ErrSlotBooked
	}
	return ErrNotFound
}

// BulkDeleteSlots deletes all matching provider-owned slots except booked
// ones, which are silently excluded. Returns the number of rows deleted.
func (s *Store) BulkDeleteSlots(ctx context.Context, ids []int64, providerID int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(
		"DELETE FROM availability_slots WHERE id IN (?) AND provider_id = ? AND slot_type <> ?",
		ids, providerID, models.SlotTypeBooked)
	if err != nil {
		return 0, err
	}
	query = s.db.Rebind(query)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(deleted), nil
}

// SlotFilter narrows ListSlots results
type SlotFilter struct {
	ServiceID *int64
	SlotType  string
	From      time.Time
	To        time.Time
}

// ListSlots retrieves a provider's slots within a date range
func (s *Store) ListSlots(ctx context.Context, providerID int64, filter SlotFilter) ([]models.AvailabilitySlot, error) {
	query := "SELECT * FROM availability_slots WHERE provider_id = $1"
	args := []interface{}{providerID}

	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND date <= $%d", len(args))
	}
	if filter.SlotType != "" {
		args = append(args, filter.SlotType)
		query += fmt.Sprintf(" AND slot_type = $%d", len(args))
	}
	if filter.ServiceID != nil {
		args = append(args, *filter.ServiceID)
		query += fmt.Sprintf(" AND (service_id IS NULL OR service_id = $%d)", len(args))
	}
	query += " ORDER BY date, start_time"

	var slots []models.AvailabilitySlot
	err := s.db.SelectContext(ctx, &slots, query, args...)
	return slots, err
}

// FindConflictingSlots returns booked or blocked slots overlapping the given
// window. Provider time is the contended resource, so the service dimension is
// deliberately ignored here.
func (s *Store) FindConflictingSlots(ctx context.Context, providerID int64, start, end time.Time) ([]models.AvailabilitySlot, error) {
	var slots []models.AvailabilitySlot
	err := s.db.SelectContext(ctx, &slots, `
		SELECT * FROM availability_slots
		WHERE provider_id = $1
		  AND slot_type IN ($2, $3)
		  AND start_time < $4 AND end_time > $5
		ORDER BY start_time`,
		providerID, models.SlotTypeBooked, models.SlotTypeBlocked, end, start)
	return slots, err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
