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
)

// PairingRepository handles persistence of student-tutor pairing requests.
type PairingRepository struct {
	db *sqlx.DB
}

// NewPairingRepository constructs the repository.
func NewPairingRepository(db *sqlx.DB) *PairingRepository {
	return &PairingRepository{db: db}
}

// FindByID returns a pairing request by its ID.
func (r *PairingRepository) FindByID(ctx context.Context, id string) (*models.PairingRequest, error) {
	const query = `SELECT id, student_id, tutor_id, status, requested_at, responded_at, reject_reason FROM pairing_requests WHERE id = $1`
	var request models.PairingRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// ExistsPending reports whether a pending request exists for the pair.
func (r *PairingRepository) ExistsPending(ctx context.Context, studentID, tutorID string) (bool, error) {
	const query = `SELECT 1 FROM pairing_requests WHERE student_id = $1 AND tutor_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, tutorID, models.StatusPending); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check pending pairing: %w", err)
	}
	return true, nil
}

// ExistsAccepted reports whether the student holds an accepted pairing
// with the tutor. The booking flow gates on it.
func (r *PairingRepository) ExistsAccepted(ctx context.Context, studentID, tutorID string) (bool, error) {
	const query = `SELECT 1 FROM pairing_requests WHERE student_id = $1 AND tutor_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, tutorID, models.StatusAccepted); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check accepted pairing: %w", err)
	}
	return true, nil
}

// CreatePending inserts a new pending request for the pair. The partial
// unique index on (student_id, tutor_id) WHERE PENDING closes the race
// between two concurrent selections; the loser reports created=false
// rather than an error, preserving the silent-failure contract.
func (r *PairingRepository) CreatePending(ctx context.Context, request *models.PairingRequest) (bool, error) {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.RequestedAt.IsZero() {
		request.RequestedAt = time.Now().UTC()
	}
	request.Status = models.StatusPending

	const query = `INSERT INTO pairing_requests (id, student_id, tutor_id, status, requested_at)
        VALUES (:id, :student_id, :tutor_id, :status, :requested_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		if database.IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("create pairing request: %w", err)
	}
	return true, nil
}

// Resolve moves a pending request to a terminal status. The update is
// conditional on the request still being pending and owned by the
// tutor; zero rows affected means another decision already landed.
func (r *PairingRepository) Resolve(ctx context.Context, id, tutorID string, status models.RequestStatus, reason *string) (bool, error) {
	const query = `UPDATE pairing_requests
        SET status = $3, responded_at = $4, reject_reason = $5
        WHERE id = $1 AND tutor_id = $2 AND status = $6`
	result, err := r.db.ExecContext(ctx, query, id, tutorID, status, time.Now().UTC(), reason, models.StatusPending)
	if err != nil {
		return false, fmt.Errorf("resolve pairing request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve pairing rows: %w", err)
	}
	return affected > 0, nil
}

// PendingForTutor returns the tutor's pending requests in FIFO order
// with the requesting student's display fields.
func (r *PairingRepository) PendingForTutor(ctx context.Context, tutorID string) ([]models.PairingRequestDetail, error) {
	const query = `SELECT pr.id, pr.student_id, pr.tutor_id, pr.status, pr.requested_at, pr.responded_at, pr.reject_reason,
        s.full_name AS student_name, s.student_no,
        t.full_name AS tutor_name, t.student_no AS tutor_student_no
        FROM pairing_requests pr
        JOIN users s ON s.id = pr.student_id
        JOIN users t ON t.id = pr.tutor_id
        WHERE pr.tutor_id = $1 AND pr.status = $2
        ORDER BY pr.requested_at ASC`
	var requests []models.PairingRequestDetail
	if err := r.db.SelectContext(ctx, &requests, query, tutorID, models.StatusPending); err != nil {
		return nil, fmt.Errorf("list pending pairings: %w", err)
	}
	return requests, nil
}

// ListForStudent returns all of a student's requests, newest first,
// with tutor display fields.
func (r *PairingRepository) ListForStudent(ctx context.Context, studentID string) ([]models.PairingRequestDetail, error) {
	const query = `SELECT pr.id, pr.student_id, pr.tutor_id, pr.status, pr.requested_at, pr.responded_at, pr.reject_reason,
        s.full_name AS student_name, s.student_no,
        t.full_name AS tutor_name, t.student_no AS tutor_student_no
        FROM pairing_requests pr
        JOIN users s ON s.id = pr.student_id
        JOIN users t ON t.id = pr.tutor_id
        WHERE pr.student_id = $1
        ORDER BY pr.requested_at DESC`
	var requests []models.PairingRequestDetail
	if err := r.db.SelectContext(ctx, &requests, query, studentID); err != nil {
		return nil, fmt.Errorf("list student pairings: %w", err)
	}
	return requests, nil
}
