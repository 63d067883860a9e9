package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bk-tutor/tutor-support-api/internal/models"
	"github.com/bk-tutor/tutor-support-api/pkg/database"
	appErrors "github.com/bk-tutor/tutor-support-api/pkg/errors"
)

// SlotRepository handles persistence of time slots and the legacy
// direct-booking appointments.
type SlotRepository struct {
	db *sqlx.DB
}

// NewSlotRepository constructs the repository.
func NewSlotRepository(db *sqlx.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

// Create persists a new unbooked slot.
func (r *SlotRepository) Create(ctx context.Context, slot *models.TimeSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO time_slots (id, tutor_id, start_time, end_time, is_booked, created_at)
        VALUES (:id, :tutor_id, :start_time, :end_time, :is_booked, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create slot: %w", err)
	}
	return nil
}

// FindByID returns a slot by its ID.
func (r *SlotRepository) FindByID(ctx context.Context, id string) (*models.TimeSlot, error) {
	const query = `SELECT id, tutor_id, start_time, end_time, is_booked, created_at FROM time_slots WHERE id = $1`
	var slot models.TimeSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// ListByTutor returns all of a tutor's slots, start ascending.
func (r *SlotRepository) ListByTutor(ctx context.Context, tutorID string) ([]models.TimeSlot, error) {
	const query = `SELECT id, tutor_id, start_time, end_time, is_booked, created_at FROM time_slots WHERE tutor_id = $1 ORDER BY start_time ASC`
	var slots []models.TimeSlot
	if err := r.db.SelectContext(ctx, &slots, query, tutorID); err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

// DeleteAvailable removes the tutor's unbooked slots at exactly the
// given start time, returning the number of rows removed. Deleting
// nothing is not an error; booked slots are never touched. A slot that
// is still referenced by booking request history cannot be removed and
// reports a conflict.
func (r *SlotRepository) DeleteAvailable(ctx context.Context, tutorID string, start time.Time) (int64, error) {
	const query = `DELETE FROM time_slots WHERE tutor_id = $1 AND start_time = $2 AND NOT is_booked`
	result, err := r.db.ExecContext(ctx, query, tutorID, start)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return 0, appErrors.Clone(appErrors.ErrConflict, "slot has booking request history")
		}
		return 0, fmt.Errorf("delete slot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete slot rows: %w", err)
	}
	return affected, nil
}

// ExistsBookedAt reports whether the tutor has a booked slot at the
// given start time.
func (r *SlotRepository) ExistsBookedAt(ctx context.Context, tutorID string, start time.Time) (bool, error) {
	const query = `SELECT 1 FROM time_slots WHERE tutor_id = $1 AND start_time = $2 AND is_booked LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, tutorID, start); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check booked slot: %w", err)
	}
	return true, nil
}

// MarkBooked idempotently flips the booked flag. A missing slot is a
// no-op, matching the legacy behaviour.
func (r *SlotRepository) MarkBooked(ctx context.Context, slotID string) error {
	const query = `UPDATE time_slots SET is_booked = TRUE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, slotID); err != nil {
		return fmt.Errorf("mark slot booked: %w", err)
	}
	return nil
}

// BookDirect reserves a slot through the legacy direct-booking path:
// the booked flag flip and the appointment insert commit as one unit.
// The flag update is conditional so a concurrent booking of the same
// slot loses cleanly with a conflict instead of double-booking.
func (r *SlotRepository) BookDirect(ctx context.Context, studentID, slotID string) (appt *models.Appointment, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin direct booking: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const reserveQuery = `UPDATE time_slots SET is_booked = TRUE WHERE id = $1 AND NOT is_booked`
	result, err := tx.ExecContext(ctx, reserveQuery, slotID)
	if err != nil {
		return nil, fmt.Errorf("reserve slot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("reserve slot rows: %w", err)
	}
	if affected == 0 {
		err = appErrors.Clone(appErrors.ErrConflict, "slot already booked or does not exist")
		return nil, err
	}

	appt = &models.Appointment{
		ID:        uuid.NewString(),
		StudentID: studentID,
		SlotID:    slotID,
		Status:    models.AppointmentConfirmed,
		CreatedAt: time.Now().UTC(),
	}
	const insertQuery = `INSERT INTO appointments (id, student_id, slot_id, status, created_at)
        VALUES ($1, $2, $3, $4, $5)`
	if _, err = tx.ExecContext(ctx, insertQuery, appt.ID, appt.StudentID, appt.SlotID, appt.Status, appt.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit direct booking: %w", err)
	}
	return appt, nil
}
