package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/bk-tutor/tutor-support-api/internal/models"
	appErrors "github.com/bk-tutor/tutor-support-api/pkg/errors"
)

type mockAuthRepo struct {
	users  map[string]models.User
	audits []models.AuditLog
}

func (m *mockAuthRepo) FindByStudentNo(ctx context.Context, studentNo string) (*models.User, error) {
	if u, ok := m.users[studentNo]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.audits = append(m.audits, *log)
	return nil
}

type mockAuthenticator struct {
	ok  bool
	err error
}

func (m mockAuthenticator) Authenticate(ctx context.Context, studentNo, password string) (bool, error) {
	return m.ok, m.err
}

func authTestConfig() AuthConfig {
	return AuthConfig{AccessTokenSecret: "test-secret", AccessTokenExpiry: time.Hour, Issuer: "tutor-support-api"}
}

func newAuthRepoWithUser(t *testing.T, active bool) *mockAuthRepo {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return &mockAuthRepo{users: map[string]models.User{
		"S001": {ID: "usr-1", StudentNo: "S001", FullName: "Student One", Role: models.RoleStudent, Active: active, PasswordHash: string(hash)},
	}}
}

func TestAuthServiceLogin(t *testing.T) {
	repo := newAuthRepoWithUser(t, true)
	svc := NewAuthService(repo, mockAuthenticator{ok: true}, nil, nil, authTestConfig())

	result, err := svc.Login(context.Background(), models.LoginRequest{StudentNo: "S001", Password: "s3cret"})
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)
	require.Equal(t, "usr-1", result.User.ID)
	require.Len(t, repo.audits, 1)
	require.Equal(t, models.AuditActionLogin, repo.audits[0].Action)

	claims, err := svc.ValidateToken(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "usr-1", claims.UserID)
	require.Equal(t, models.RoleStudent, claims.Role)
}

func TestAuthServiceLoginSSOUnavailable(t *testing.T) {
	repo := newAuthRepoWithUser(t, true)
	svc := NewAuthService(repo, mockAuthenticator{err: errors.New("connection refused")}, nil, nil, authTestConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{StudentNo: "S001", Password: "s3cret"})
	requireCode(t, err, appErrors.ErrSSOUnavailable.Code)
}

func TestAuthServiceLoginSSORejects(t *testing.T) {
	repo := newAuthRepoWithUser(t, true)
	svc := NewAuthService(repo, mockAuthenticator{ok: false}, nil, nil, authTestConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{StudentNo: "S001", Password: "s3cret"})
	requireCode(t, err, appErrors.ErrInvalidCredentials.Code)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := newAuthRepoWithUser(t, true)
	svc := NewAuthService(repo, mockAuthenticator{ok: true}, nil, nil, authTestConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{StudentNo: "S001", Password: "wrong"})
	requireCode(t, err, appErrors.ErrInvalidCredentials.Code)
}

func TestAuthServiceLoginUnknownUser(t *testing.T) {
	svc := NewAuthService(&mockAuthRepo{}, mockAuthenticator{ok: true}, nil, nil, authTestConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{StudentNo: "S999", Password: "s3cret"})
	requireCode(t, err, appErrors.ErrInvalidCredentials.Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	repo := newAuthRepoWithUser(t, false)
	svc := NewAuthService(repo, mockAuthenticator{ok: true}, nil, nil, authTestConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{StudentNo: "S001", Password: "s3cret"})
	requireCode(t, err, appErrors.ErrInactiveAccount.Code)
}

func TestAuthServiceValidateTokenRejectsGarbage(t *testing.T) {
	svc := NewAuthService(&mockAuthRepo{}, mockAuthenticator{ok: true}, nil, nil, authTestConfig())

	_, err := svc.ValidateToken("not-a-token")
	requireCode(t, err, appErrors.ErrUnauthorized.Code)
}
