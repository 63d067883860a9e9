package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bk-tutor/tutor-support-api/internal/models"
	appErrors "github.com/bk-tutor/tutor-support-api/pkg/errors"
)

type mockPairingRepo struct {
	requests map[string]models.PairingRequest
	pending  map[string]bool
	created  *models.PairingRequest
	raceLost bool
	resolved map[string]models.RequestStatus
	reasons  map[string]*string
}

func (m *mockPairingRepo) FindByID(ctx context.Context, id string) (*models.PairingRequest, error) {
	if r, ok := m.requests[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPairingRepo) ExistsPending(ctx context.Context, studentID, tutorID string) (bool, error) {
	return m.pending[studentID+tutorID], nil
}

func (m *mockPairingRepo) ExistsAccepted(ctx context.Context, studentID, tutorID string) (bool, error) {
	return false, nil
}

func (m *mockPairingRepo) CreatePending(ctx context.Context, request *models.PairingRequest) (bool, error) {
	if m.raceLost {
		return false, nil
	}
	if request.ID == "" {
		request.ID = "new-pairing"
	}
	request.Status = models.StatusPending
	if m.requests == nil {
		m.requests = make(map[string]models.PairingRequest)
	}
	m.requests[request.ID] = *request
	m.created = request
	return true, nil
}

func (m *mockPairingRepo) Resolve(ctx context.Context, id, tutorID string, status models.RequestStatus, reason *string) (bool, error) {
	r, ok := m.requests[id]
	if !ok || r.Status != models.StatusPending || r.TutorID != tutorID {
		return false, nil
	}
	r.Status = status
	r.RejectReason = reason
	m.requests[id] = r
	if m.resolved == nil {
		m.resolved = make(map[string]models.RequestStatus)
		m.reasons = make(map[string]*string)
	}
	m.resolved[id] = status
	m.reasons[id] = reason
	return true, nil
}

func (m *mockPairingRepo) PendingForTutor(ctx context.Context, tutorID string) ([]models.PairingRequestDetail, error) {
	return nil, nil
}

func (m *mockPairingRepo) ListForStudent(ctx context.Context, studentID string) ([]models.PairingRequestDetail, error) {
	return nil, nil
}

type mockTutorReader struct {
	users map[string]models.User
}

func (m *mockTutorReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func TestPairingServiceSelectTutor(t *testing.T) {
	repo := &mockPairingRepo{}
	users := &mockTutorReader{users: map[string]models.User{"tut-1": {ID: "tut-1", Role: models.RoleTutor}}}
	svc := NewPairingService(repo, users, nil, nil)

	created, err := svc.SelectTutor(context.Background(), "stu-1", SelectTutorRequest{TutorID: "tut-1"})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, models.StatusPending, repo.created.Status)
	require.Equal(t, "stu-1", repo.created.StudentID)
}

func TestPairingServiceSelectTutorSilentOutcomes(t *testing.T) {
	users := &mockTutorReader{users: map[string]models.User{
		"tut-1": {ID: "tut-1", Role: models.RoleTutor},
		"stu-9": {ID: "stu-9", Role: models.RoleStudent},
	}}

	cases := []struct {
		name    string
		repo    *mockPairingRepo
		tutorID string
	}{
		{name: "unknown tutor", repo: &mockPairingRepo{}, tutorID: "missing"},
		{name: "target is not a tutor", repo: &mockPairingRepo{}, tutorID: "stu-9"},
		{name: "pending already exists", repo: &mockPairingRepo{pending: map[string]bool{"stu-1tut-1": true}}, tutorID: "tut-1"},
		{name: "lost insert race", repo: &mockPairingRepo{raceLost: true}, tutorID: "tut-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewPairingService(tc.repo, users, nil, nil)
			created, err := svc.SelectTutor(context.Background(), "stu-1", SelectTutorRequest{TutorID: tc.tutorID})
			require.NoError(t, err)
			require.False(t, created)
		})
	}
}

func TestPairingServiceRespondAccept(t *testing.T) {
	repo := &mockPairingRepo{requests: map[string]models.PairingRequest{
		"req-1": {ID: "req-1", StudentID: "stu-1", TutorID: "tut-1", Status: models.StatusPending},
	}}
	svc := NewPairingService(repo, &mockTutorReader{}, nil, nil)

	updated, err := svc.Respond(context.Background(), "tut-1", "req-1", RespondPairingRequest{Accept: true})
	require.NoError(t, err)
	require.Equal(t, models.StatusAccepted, updated.Status)
	require.Nil(t, updated.RejectReason)
}

func TestPairingServiceRespondRejectDefaultsReason(t *testing.T) {
	repo := &mockPairingRepo{requests: map[string]models.PairingRequest{
		"req-1": {ID: "req-1", StudentID: "stu-1", TutorID: "tut-1", Status: models.StatusPending},
	}}
	svc := NewPairingService(repo, &mockTutorReader{}, nil, nil)

	updated, err := svc.Respond(context.Background(), "tut-1", "req-1", RespondPairingRequest{Accept: false})
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, updated.Status)
	require.NotNil(t, updated.RejectReason)
	require.Equal(t, defaultRejectReason, *updated.RejectReason)
}

func TestPairingServiceRespondRejectKeepsReason(t *testing.T) {
	repo := &mockPairingRepo{requests: map[string]models.PairingRequest{
		"req-1": {ID: "req-1", StudentID: "stu-1", TutorID: "tut-1", Status: models.StatusPending},
	}}
	svc := NewPairingService(repo, &mockTutorReader{}, nil, nil)

	updated, err := svc.Respond(context.Background(), "tut-1", "req-1", RespondPairingRequest{Accept: false, Reason: "schedule is full"})
	require.NoError(t, err)
	require.Equal(t, "schedule is full", *updated.RejectReason)
}

func TestPairingServiceRespondWrongTutor(t *testing.T) {
	repo := &mockPairingRepo{requests: map[string]models.PairingRequest{
		"req-1": {ID: "req-1", StudentID: "stu-1", TutorID: "tut-1", Status: models.StatusPending},
	}}
	svc := NewPairingService(repo, &mockTutorReader{}, nil, nil)

	_, err := svc.Respond(context.Background(), "tut-2", "req-1", RespondPairingRequest{Accept: true})
	requireCode(t, err, appErrors.ErrForbidden.Code)
}

func TestPairingServiceRespondAlreadyResolved(t *testing.T) {
	repo := &mockPairingRepo{requests: map[string]models.PairingRequest{
		"req-1": {ID: "req-1", StudentID: "stu-1", TutorID: "tut-1", Status: models.StatusRejected},
	}}
	svc := NewPairingService(repo, &mockTutorReader{}, nil, nil)

	_, err := svc.Respond(context.Background(), "tut-1", "req-1", RespondPairingRequest{Accept: true})
	requireCode(t, err, appErrors.ErrInvalidState.Code)
}

func TestPairingServiceRespondNotFound(t *testing.T) {
	svc := NewPairingService(&mockPairingRepo{}, &mockTutorReader{}, nil, nil)

	_, err := svc.Respond(context.Background(), "tut-1", "missing", RespondPairingRequest{Accept: true})
	requireCode(t, err, appErrors.ErrNotFound.Code)
}

func TestPairingServiceReselectAfterReject(t *testing.T) {
	repo := &mockPairingRepo{requests: map[string]models.PairingRequest{
		"req-1": {ID: "req-1", StudentID: "stu-1", TutorID: "tut-1", Status: models.StatusRejected},
	}}
	users := &mockTutorReader{users: map[string]models.User{"tut-1": {ID: "tut-1", Role: models.RoleTutor}}}
	svc := NewPairingService(repo, users, nil, nil)

	created, err := svc.SelectTutor(context.Background(), "stu-1", SelectTutorRequest{TutorID: "tut-1"})
	require.NoError(t, err)
	require.True(t, created)
}
