package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/bk-tutor/tutor-support-api/internal/models"
	appErrors "github.com/bk-tutor/tutor-support-api/pkg/errors"
)

type programRepository interface {
	ListOpen(ctx context.Context) ([]models.Program, error)
	FindByID(ctx context.Context, id string) (*models.Program, error)
	Create(ctx context.Context, program *models.Program) error
	CreateRegistration(ctx context.Context, reg *models.Registration) error
	ListRegistrationsByStudent(ctx context.Context, studentID string) ([]models.RegistrationDetail, error)
}

// CreateProgramRequest describes program creation payload.
type CreateProgramRequest struct {
	Name     string `json:"name" validate:"required"`
	Semester string `json:"semester" validate:"required"`
}

// ProgramService orchestrates program coordination workflows.
type ProgramService struct {
	repo      programRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgramService constructs ProgramService.
func NewProgramService(repo programRepository, validate *validator.Validate, logger *zap.Logger) *ProgramService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgramService{repo: repo, validator: validate, logger: logger}
}

// ListOpen returns programs accepting registrations, newest first.
func (s *ProgramService) ListOpen(ctx context.Context) ([]models.Program, error) {
	programs, err := s.repo.ListOpen(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list programs")
	}
	return programs, nil
}

// Create persists a new open program.
func (s *ProgramService) Create(ctx context.Context, req CreateProgramRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid program payload")
	}

	program := &models.Program{Name: req.Name, Semester: req.Semester, Status: models.ProgramOpen}
	if err := s.repo.Create(ctx, program); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create program")
	}
	return program, nil
}

// Register enrolls a student into an open program. The duplicate check
// is the storage layer's unique constraint, surfaced as a conflict.
func (s *ProgramService) Register(ctx context.Context, studentID, programID string) (*models.Registration, error) {
	program, err := s.repo.FindByID(ctx, programID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	if program.Status != models.ProgramOpen {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "program is closed")
	}

	reg := &models.Registration{StudentID: studentID, ProgramID: programID}
	if err := s.repo.CreateRegistration(ctx, reg); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register student")
	}
	return reg, nil
}

// ListRegistrations returns a student's registrations, newest first.
func (s *ProgramService) ListRegistrations(ctx context.Context, studentID string) ([]models.RegistrationDetail, error) {
	registrations, err := s.repo.ListRegistrationsByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	return registrations, nil
}
