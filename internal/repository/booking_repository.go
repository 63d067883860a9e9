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

// BookingRepository handles persistence of booking requests. It owns
// the slot-conflict arbitration: every mutation that could race with a
// concurrent caller is a single transaction whose outcome is decided by
// the storage layer, never by an application-level read-then-write.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// FindByID returns a booking request by its ID.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.BookingRequest, error) {
	const query = `SELECT id, slot_id, student_id, tutor_id, note, status, created_at, responded_at FROM booking_requests WHERE id = $1`
	var request models.BookingRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// CreatePending inserts a pending request for a slot. The slot row is
// locked for the duration of the transaction so the booked check, the
// pending check and the insert are serialized against concurrent
// creators and against a tutor accepting a request on the same slot.
// The partial unique index on (slot_id) WHERE PENDING backstops the
// insert; either defence reports a conflict.
func (r *BookingRepository) CreatePending(ctx context.Context, request *models.BookingRequest) (err error) {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	request.Status = models.StatusPending

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin booking create: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var slot struct {
		TutorID  string `db:"tutor_id"`
		IsBooked bool   `db:"is_booked"`
	}
	const lockQuery = `SELECT tutor_id, is_booked FROM time_slots WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &slot, lockQuery, request.SlotID); err != nil {
		if err == sql.ErrNoRows {
			err = appErrors.Clone(appErrors.ErrNotFound, "slot not found")
		}
		return err
	}
	if slot.IsBooked {
		err = appErrors.Clone(appErrors.ErrConflict, "slot already booked")
		return err
	}

	var pending int
	const pendingQuery = `SELECT 1 FROM booking_requests WHERE slot_id = $1 AND status = $2 LIMIT 1`
	switch err = tx.GetContext(ctx, &pending, pendingQuery, request.SlotID, models.StatusPending); err {
	case nil:
		err = appErrors.Clone(appErrors.ErrConflict, "slot has a pending request")
		return err
	case sql.ErrNoRows:
		err = nil
	default:
		return fmt.Errorf("check pending booking: %w", err)
	}

	request.TutorID = slot.TutorID
	const insertQuery = `INSERT INTO booking_requests (id, slot_id, student_id, tutor_id, note, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err = tx.ExecContext(ctx, insertQuery, request.ID, request.SlotID, request.StudentID, request.TutorID, request.Note, request.Status, request.CreatedAt); err != nil {
		if database.IsUniqueViolation(err) {
			err = appErrors.Clone(appErrors.ErrConflict, "slot has a pending request")
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit booking create: %w", err)
	}
	return nil
}

// Accept resolves a pending request in the tutor's favour and books the
// slot in the same transaction. Both updates are conditional: zero rows
// on the request means it is no longer pending, zero rows on the slot
// means another booking already won, and the whole unit rolls back.
func (r *BookingRepository) Accept(ctx context.Context, id, tutorID string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin booking accept: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var slotID string
	const acceptQuery = `UPDATE booking_requests
        SET status = $3, responded_at = $4
        WHERE id = $1 AND tutor_id = $2 AND status = $5
        RETURNING slot_id`
	if err = tx.GetContext(ctx, &slotID, acceptQuery, id, tutorID, models.StatusAccepted, time.Now().UTC(), models.StatusPending); err != nil {
		if err == sql.ErrNoRows {
			err = appErrors.Clone(appErrors.ErrInvalidState, "request is no longer pending")
		}
		return err
	}

	const bookQuery = `UPDATE time_slots SET is_booked = TRUE WHERE id = $1 AND NOT is_booked`
	result, err := tx.ExecContext(ctx, bookQuery, slotID)
	if err != nil {
		return fmt.Errorf("book slot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("book slot rows: %w", err)
	}
	if affected == 0 {
		err = appErrors.Clone(appErrors.ErrConflict, "slot already booked")
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit booking accept: %w", err)
	}
	return nil
}

// Reject resolves a pending request against the student. The slot is
// untouched and stays open for new requests.
func (r *BookingRepository) Reject(ctx context.Context, id, tutorID string) (bool, error) {
	const query = `UPDATE booking_requests
        SET status = $3, responded_at = $4
        WHERE id = $1 AND tutor_id = $2 AND status = $5`
	result, err := r.db.ExecContext(ctx, query, id, tutorID, models.StatusRejected, time.Now().UTC(), models.StatusPending)
	if err != nil {
		return false, fmt.Errorf("reject booking: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reject booking rows: %w", err)
	}
	return affected > 0, nil
}

// Cancel withdraws a student's own pending request. The record is kept
// with CANCELLED status so the ledger stays append-only.
func (r *BookingRepository) Cancel(ctx context.Context, id, studentID string) (bool, error) {
	const query = `UPDATE booking_requests
        SET status = $3, responded_at = $4
        WHERE id = $1 AND student_id = $2 AND status = $5`
	result, err := r.db.ExecContext(ctx, query, id, studentID, models.StatusCancelled, time.Now().UTC(), models.StatusPending)
	if err != nil {
		return false, fmt.Errorf("cancel booking: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel booking rows: %w", err)
	}
	return affected > 0, nil
}

// PendingForTutor returns the tutor's pending requests in FIFO order.
func (r *BookingRepository) PendingForTutor(ctx context.Context, tutorID string) ([]models.BookingRequestDetail, error) {
	const query = `SELECT br.id, br.slot_id, br.student_id, br.tutor_id, br.note, br.status, br.created_at, br.responded_at,
        ts.start_time, ts.end_time,
        s.full_name AS student_name, s.student_no,
        t.full_name AS tutor_name
        FROM booking_requests br
        JOIN time_slots ts ON ts.id = br.slot_id
        JOIN users s ON s.id = br.student_id
        JOIN users t ON t.id = br.tutor_id
        WHERE br.tutor_id = $1 AND br.status = $2
        ORDER BY br.created_at ASC`
	var requests []models.BookingRequestDetail
	if err := r.db.SelectContext(ctx, &requests, query, tutorID, models.StatusPending); err != nil {
		return nil, fmt.Errorf("list pending bookings: %w", err)
	}
	return requests, nil
}

// UpcomingForTutor returns the tutor's accepted sessions with a future
// slot start, soonest first.
func (r *BookingRepository) UpcomingForTutor(ctx context.Context, tutorID string, now time.Time) ([]models.BookingRequestDetail, error) {
	const query = `SELECT br.id, br.slot_id, br.student_id, br.tutor_id, br.note, br.status, br.created_at, br.responded_at,
        ts.start_time, ts.end_time,
        s.full_name AS student_name, s.student_no,
        t.full_name AS tutor_name
        FROM booking_requests br
        JOIN time_slots ts ON ts.id = br.slot_id
        JOIN users s ON s.id = br.student_id
        JOIN users t ON t.id = br.tutor_id
        WHERE br.tutor_id = $1 AND br.status = $2 AND ts.start_time > $3
        ORDER BY ts.start_time ASC`
	var sessions []models.BookingRequestDetail
	if err := r.db.SelectContext(ctx, &sessions, query, tutorID, models.StatusAccepted, now); err != nil {
		return nil, fmt.Errorf("list upcoming sessions: %w", err)
	}
	return sessions, nil
}

// HistoryForStudent returns all of a student's booking requests,
// newest first.
func (r *BookingRepository) HistoryForStudent(ctx context.Context, studentID string) ([]models.BookingRequestDetail, error) {
	const query = `SELECT br.id, br.slot_id, br.student_id, br.tutor_id, br.note, br.status, br.created_at, br.responded_at,
        ts.start_time, ts.end_time,
        s.full_name AS student_name, s.student_no,
        t.full_name AS tutor_name
        FROM booking_requests br
        JOIN time_slots ts ON ts.id = br.slot_id
        JOIN users s ON s.id = br.student_id
        JOIN users t ON t.id = br.tutor_id
        WHERE br.student_id = $1
        ORDER BY br.created_at DESC`
	var requests []models.BookingRequestDetail
	if err := r.db.SelectContext(ctx, &requests, query, studentID); err != nil {
		return nil, fmt.Errorf("list booking history: %w", err)
	}
	return requests, nil
}

// AvailableSlots returns unbooked future slots belonging to tutors the
// student holds an accepted pairing with.
func (r *BookingRepository) AvailableSlots(ctx context.Context, studentID string, now time.Time) ([]models.AvailableSlot, error) {
	const query = `SELECT ts.id, ts.tutor_id, ts.start_time, ts.end_time,
        t.full_name AS tutor_name, t.student_no AS tutor_student_no
        FROM time_slots ts
        JOIN users t ON t.id = ts.tutor_id
        JOIN pairing_requests pr ON pr.tutor_id = ts.tutor_id AND pr.student_id = $1 AND pr.status = $2
        WHERE NOT ts.is_booked AND ts.start_time > $3
        ORDER BY ts.start_time ASC`
	var slots []models.AvailableSlot
	if err := r.db.SelectContext(ctx, &slots, query, studentID, models.StatusAccepted, now); err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	return slots, nil
}
