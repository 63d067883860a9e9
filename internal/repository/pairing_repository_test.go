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
)

func TestPairingRepositoryCreatePending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPairingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pairing_requests")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	request := &models.PairingRequest{StudentID: "stu-1", TutorID: "tut-1"}
	created, err := repo.CreatePending(context.Background(), request)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, models.StatusPending, request.Status)
	require.NotEmpty(t, request.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPairingRepositoryCreatePendingDuplicateIsSilent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPairingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pairing_requests")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "pairing_requests_pending_pair_key"})

	created, err := repo.CreatePending(context.Background(), &models.PairingRequest{StudentID: "stu-1", TutorID: "tut-1"})
	require.NoError(t, err)
	require.False(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPairingRepositoryResolve(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPairingRepository(db)

	reason := "schedule is full"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE pairing_requests")).
		WithArgs("req-1", "tut-1", models.StatusRejected, sqlmock.AnyArg(), reason, models.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.Resolve(context.Background(), "req-1", "tut-1", models.StatusRejected, &reason)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPairingRepositoryResolveLostRace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPairingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE pairing_requests")).
		WithArgs("req-1", "tut-1", models.StatusAccepted, sqlmock.AnyArg(), nil, models.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Resolve(context.Background(), "req-1", "tut-1", models.StatusAccepted, nil)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPairingRepositoryPendingForTutor(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPairingRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "student_id", "tutor_id", "status", "requested_at", "responded_at", "reject_reason", "student_name", "student_no", "tutor_name", "tutor_student_no"}).
		AddRow("req-1", "stu-1", "tut-1", models.StatusPending, now, nil, nil, "Student One", "S001", "Tutor One", "T001")
	mock.ExpectQuery(regexp.QuoteMeta("FROM pairing_requests pr")).
		WithArgs("tut-1", models.StatusPending).
		WillReturnRows(rows)

	requests, err := repo.PendingForTutor(context.Background(), "tut-1")
	require.NoError(t, err)
	require.Len(t, requests, 1)
	require.Equal(t, "Student One", requests[0].StudentName)
	require.NoError(t, mock.ExpectationsWereMet())
}
