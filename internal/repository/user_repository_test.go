package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/bk-tutor/tutor-support-api/internal/models"
)

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "student_no", "password_hash", "full_name", "role", "active", "created_at"})
}

func TestUserRepositoryFindByStudentNo(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	created := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_no, password_hash, full_name, role, active, created_at FROM users WHERE student_no = $1")).
		WithArgs("S001").
		WillReturnRows(userRows().AddRow("usr-1", "S001", "hash", "Student One", models.RoleStudent, true, created))

	user, err := repo.FindByStudentNo(context.Background(), "S001")
	require.NoError(t, err)
	require.Equal(t, "usr-1", user.ID)
	require.Equal(t, models.RoleStudent, user.Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryListFiltersAndPaginates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	role := models.RoleTutor
	active := true
	created := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users u WHERE u.role = $1 AND u.active = $2 AND (u.full_name ILIKE $3 OR u.student_no ILIKE $3) ORDER BY u.full_name ASC LIMIT 10 OFFSET 10")).
		WithArgs(role, active, "%one%").
		WillReturnRows(userRows().AddRow("usr-1", "T001", "hash", "Tutor One", role, true, created))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users u WHERE u.role = $1 AND u.active = $2 AND (u.full_name ILIKE $3 OR u.student_no ILIKE $3)")).
		WithArgs(role, active, "%one%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	users, total, err := repo.List(context.Background(), models.UserFilter{
		Role:      &role,
		Active:    &active,
		Search:    "one",
		Page:      2,
		PageSize:  10,
		SortBy:    "full_name",
		SortOrder: "asc",
	})
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, 11, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryListDefaultsSort(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	// Unknown sort columns and orders fall back to created_at DESC so
	// caller input never reaches the ORDER BY clause verbatim.
	mock.ExpectQuery(regexp.QuoteMeta("FROM users u ORDER BY u.created_at DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(userRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users u")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	users, total, err := repo.List(context.Background(), models.UserFilter{
		SortBy:    "password_hash; DROP TABLE users",
		SortOrder: "sideways",
	})
	require.NoError(t, err)
	require.Empty(t, users)
	require.Zero(t, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryListTutors(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_no, full_name FROM users WHERE role = $1 AND active AND (full_name ILIKE $2 OR student_no ILIKE $2) ORDER BY full_name ASC")).
		WithArgs(models.RoleTutor, "%One%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_no", "full_name"}).
			AddRow("tut-1", "T001", "Tutor One"))

	tutors, err := repo.ListTutors(context.Background(), "One")
	require.NoError(t, err)
	require.Len(t, tutors, 1)
	require.Equal(t, "tut-1", tutors[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateAuditLog(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	userID := "usr-1"
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WithArgs(sqlmock.AnyArg(), userID, "LOGIN", "auth", nil, nil, "10.0.0.1", "go-test", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	log := &models.AuditLog{
		UserID:    &userID,
		Action:    "LOGIN",
		Resource:  "auth",
		IPAddress: "10.0.0.1",
		UserAgent: "go-test",
	}
	require.NoError(t, repo.CreateAuditLog(context.Background(), log))
	require.NotEmpty(t, log.ID)
	require.False(t, log.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}
