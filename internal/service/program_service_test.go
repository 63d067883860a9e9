package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bk-tutor/tutor-support-api/internal/models"
	appErrors "github.com/bk-tutor/tutor-support-api/pkg/errors"
)

type mockProgramRepo struct {
	programs map[string]models.Program
	regErr   error
	created  *models.Registration
}

func (m *mockProgramRepo) ListOpen(ctx context.Context) ([]models.Program, error) {
	var list []models.Program
	for _, p := range m.programs {
		if p.Status == models.ProgramOpen {
			list = append(list, p)
		}
	}
	return list, nil
}

func (m *mockProgramRepo) FindByID(ctx context.Context, id string) (*models.Program, error) {
	if p, ok := m.programs[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockProgramRepo) Create(ctx context.Context, program *models.Program) error {
	if program.ID == "" {
		program.ID = "new-program"
	}
	if m.programs == nil {
		m.programs = make(map[string]models.Program)
	}
	m.programs[program.ID] = *program
	return nil
}

func (m *mockProgramRepo) CreateRegistration(ctx context.Context, reg *models.Registration) error {
	if m.regErr != nil {
		return m.regErr
	}
	if reg.ID == "" {
		reg.ID = "new-registration"
	}
	m.created = reg
	return nil
}

func (m *mockProgramRepo) ListRegistrationsByStudent(ctx context.Context, studentID string) ([]models.RegistrationDetail, error) {
	return nil, nil
}

func TestProgramServiceRegister(t *testing.T) {
	repo := &mockProgramRepo{programs: map[string]models.Program{
		"prog-1": {ID: "prog-1", Name: "Calculus Support", Status: models.ProgramOpen},
	}}
	svc := NewProgramService(repo, nil, nil)

	reg, err := svc.Register(context.Background(), "stu-1", "prog-1")
	require.NoError(t, err)
	require.Equal(t, "stu-1", reg.StudentID)
	require.Equal(t, "prog-1", reg.ProgramID)
}

func TestProgramServiceRegisterClosedProgram(t *testing.T) {
	repo := &mockProgramRepo{programs: map[string]models.Program{
		"prog-1": {ID: "prog-1", Status: models.ProgramClosed},
	}}
	svc := NewProgramService(repo, nil, nil)

	_, err := svc.Register(context.Background(), "stu-1", "prog-1")
	requireCode(t, err, appErrors.ErrPreconditionFailed.Code)
}

func TestProgramServiceRegisterUnknownProgram(t *testing.T) {
	svc := NewProgramService(&mockProgramRepo{}, nil, nil)

	_, err := svc.Register(context.Background(), "stu-1", "missing")
	requireCode(t, err, appErrors.ErrNotFound.Code)
}

func TestProgramServiceRegisterDuplicate(t *testing.T) {
	repo := &mockProgramRepo{
		programs: map[string]models.Program{"prog-1": {ID: "prog-1", Status: models.ProgramOpen}},
		regErr:   appErrors.Clone(appErrors.ErrConflict, "student already registered for program"),
	}
	svc := NewProgramService(repo, nil, nil)

	_, err := svc.Register(context.Background(), "stu-1", "prog-1")
	requireCode(t, err, appErrors.ErrConflict.Code)
}

func TestProgramServiceCreate(t *testing.T) {
	repo := &mockProgramRepo{}
	svc := NewProgramService(repo, nil, nil)

	program, err := svc.Create(context.Background(), CreateProgramRequest{Name: "Calculus Support", Semester: "2026-1"})
	require.NoError(t, err)
	require.Equal(t, models.ProgramOpen, program.Status)
}

func TestProgramServiceCreateInvalidPayload(t *testing.T) {
	svc := NewProgramService(&mockProgramRepo{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateProgramRequest{Name: ""})
	requireCode(t, err, appErrors.ErrValidation.Code)
}
