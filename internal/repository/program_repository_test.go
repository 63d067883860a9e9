package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/bk-tutor/tutor-support-api/internal/models"
	appErrors "github.com/bk-tutor/tutor-support-api/pkg/errors"
)

func TestProgramRepositoryListOpen(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProgramRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "semester", "status", "created_at"}).
		AddRow("prog-1", "Calculus Support", "2026-1", models.ProgramOpen, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, semester, status, created_at FROM programs WHERE status = $1 ORDER BY created_at DESC")).
		WithArgs(models.ProgramOpen).
		WillReturnRows(rows)

	programs, err := repo.ListOpen(context.Background())
	require.NoError(t, err)
	require.Len(t, programs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProgramRepositoryCreateRegistration(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProgramRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registrations")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	reg := &models.Registration{StudentID: "stu-1", ProgramID: "prog-1"}
	require.NoError(t, repo.CreateRegistration(context.Background(), reg))
	require.NotEmpty(t, reg.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProgramRepositoryCreateRegistrationDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProgramRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registrations")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "registrations_student_id_program_id_key"})

	err := repo.CreateRegistration(context.Background(), &models.Registration{StudentID: "stu-1", ProgramID: "prog-1"})
	requireAppError(t, err, appErrors.ErrConflict.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}
