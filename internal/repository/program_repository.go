package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bk-tutor/tutor-support-api/internal/models"
	"github.com/bk-tutor/tutor-support-api/pkg/database"
	appErrors "github.com/bk-tutor/tutor-support-api/pkg/errors"
)

// ProgramRepository handles persistence of programs and registrations.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository constructs the repository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

// ListOpen returns programs accepting registrations, newest first.
func (r *ProgramRepository) ListOpen(ctx context.Context) ([]models.Program, error) {
	const query = `SELECT id, name, semester, status, created_at FROM programs WHERE status = $1 ORDER BY created_at DESC`
	var programs []models.Program
	if err := r.db.SelectContext(ctx, &programs, query, models.ProgramOpen); err != nil {
		return nil, fmt.Errorf("list open programs: %w", err)
	}
	return programs, nil
}

// FindByID returns a program by its ID.
func (r *ProgramRepository) FindByID(ctx context.Context, id string) (*models.Program, error) {
	const query = `SELECT id, name, semester, status, created_at FROM programs WHERE id = $1`
	var program models.Program
	if err := r.db.GetContext(ctx, &program, query, id); err != nil {
		return nil, err
	}
	return &program, nil
}

// Create persists a new program.
func (r *ProgramRepository) Create(ctx context.Context, program *models.Program) error {
	if program.ID == "" {
		program.ID = uuid.NewString()
	}
	if program.Status == "" {
		program.Status = models.ProgramOpen
	}
	if program.CreatedAt.IsZero() {
		program.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO programs (id, name, semester, status, created_at)
        VALUES (:id, :name, :semester, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, program); err != nil {
		return fmt.Errorf("create program: %w", err)
	}
	return nil
}

// CreateRegistration enrolls a student into a program. The unique
// constraint on (student_id, program_id) is the dedup authority; a
// violation surfaces as a domain conflict rather than a driver error.
func (r *ProgramRepository) CreateRegistration(ctx context.Context, reg *models.Registration) error {
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO registrations (id, student_id, program_id, created_at)
        VALUES (:id, :student_id, :program_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, reg); err != nil {
		if database.IsUniqueViolation(err) {
			return appErrors.Clone(appErrors.ErrConflict, "student already registered for program")
		}
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// ListRegistrationsByStudent returns a student's registrations with
// program display fields, newest first.
func (r *ProgramRepository) ListRegistrationsByStudent(ctx context.Context, studentID string) ([]models.RegistrationDetail, error) {
	const query = `SELECT r.id, r.student_id, r.program_id, r.created_at,
        p.name AS program_name, p.semester
        FROM registrations r
        JOIN programs p ON p.id = r.program_id
        WHERE r.student_id = $1
        ORDER BY r.created_at DESC`
	var registrations []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &registrations, query, studentID); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return registrations, nil
}
