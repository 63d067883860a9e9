package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/bk-tutor/tutor-support-api/internal/models"
	appErrors "github.com/bk-tutor/tutor-support-api/pkg/errors"
)

type mockBookingRepo struct {
	requests     map[string]models.BookingRequest
	createErr    error
	acceptErr    error
	rejectResult bool
	cancelResult bool
	acceptedID   string
	cancelledID  string
	slotBookedOn string
}

func (m *mockBookingRepo) FindByID(ctx context.Context, id string) (*models.BookingRequest, error) {
	if r, ok := m.requests[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBookingRepo) CreatePending(ctx context.Context, request *models.BookingRequest) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.requests == nil {
		m.requests = make(map[string]models.BookingRequest)
	}
	if request.ID == "" {
		request.ID = "new-booking"
	}
	request.Status = models.StatusPending
	request.TutorID = "tut-1"
	m.requests[request.ID] = *request
	return nil
}

func (m *mockBookingRepo) Accept(ctx context.Context, id, tutorID string) error {
	if m.acceptErr != nil {
		return m.acceptErr
	}
	if r, ok := m.requests[id]; ok {
		r.Status = models.StatusAccepted
		m.requests[id] = r
		m.slotBookedOn = r.SlotID
	}
	m.acceptedID = id
	return nil
}

func (m *mockBookingRepo) Reject(ctx context.Context, id, tutorID string) (bool, error) {
	if !m.rejectResult {
		return false, nil
	}
	if r, ok := m.requests[id]; ok {
		r.Status = models.StatusRejected
		m.requests[id] = r
	}
	return true, nil
}

func (m *mockBookingRepo) Cancel(ctx context.Context, id, studentID string) (bool, error) {
	if !m.cancelResult {
		return false, nil
	}
	if r, ok := m.requests[id]; ok {
		r.Status = models.StatusCancelled
		m.requests[id] = r
	}
	m.cancelledID = id
	return true, nil
}

func (m *mockBookingRepo) PendingForTutor(ctx context.Context, tutorID string) ([]models.BookingRequestDetail, error) {
	return nil, nil
}

func (m *mockBookingRepo) UpcomingForTutor(ctx context.Context, tutorID string, now time.Time) ([]models.BookingRequestDetail, error) {
	return nil, nil
}

func (m *mockBookingRepo) HistoryForStudent(ctx context.Context, studentID string) ([]models.BookingRequestDetail, error) {
	return nil, nil
}

func (m *mockBookingRepo) AvailableSlots(ctx context.Context, studentID string, now time.Time) ([]models.AvailableSlot, error) {
	return nil, nil
}

type mockPairingChecker struct {
	accepted map[string]bool
}

func (m *mockPairingChecker) ExistsAccepted(ctx context.Context, studentID, tutorID string) (bool, error) {
	return m.accepted[studentID+tutorID], nil
}

type mockSlotReader struct {
	slots map[string]models.TimeSlot
}

func (m *mockSlotReader) FindByID(ctx context.Context, id string) (*models.TimeSlot, error) {
	if s, ok := m.slots[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, code, appErr.Code)
}

func TestBookingServiceCreate(t *testing.T) {
	repo := &mockBookingRepo{}
	pairings := &mockPairingChecker{accepted: map[string]bool{"stu-1tut-1": true}}
	slots := &mockSlotReader{slots: map[string]models.TimeSlot{"slot-1": {ID: "slot-1", TutorID: "tut-1"}}}
	svc := NewBookingService(repo, pairings, slots, nil, nil, nil)

	request, err := svc.Create(context.Background(), "stu-1", CreateBookingRequest{SlotID: "slot-1", Note: "before finals"})
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, request.Status)
	require.Equal(t, "tut-1", request.TutorID)
	require.NotNil(t, request.Note)
	require.Equal(t, "before finals", *request.Note)
}

func TestBookingServiceCreateSlotMissing(t *testing.T) {
	svc := NewBookingService(&mockBookingRepo{}, &mockPairingChecker{}, &mockSlotReader{}, nil, nil, nil)

	_, err := svc.Create(context.Background(), "stu-1", CreateBookingRequest{SlotID: "missing"})
	requireCode(t, err, appErrors.ErrNotFound.Code)
}

func TestBookingServiceCreateWithoutPairing(t *testing.T) {
	slots := &mockSlotReader{slots: map[string]models.TimeSlot{"slot-1": {ID: "slot-1", TutorID: "tut-1"}}}
	svc := NewBookingService(&mockBookingRepo{}, &mockPairingChecker{}, slots, nil, nil, nil)

	_, err := svc.Create(context.Background(), "stu-1", CreateBookingRequest{SlotID: "slot-1"})
	requireCode(t, err, appErrors.ErrPreconditionFailed.Code)
}

func TestBookingServiceCreateSlotContested(t *testing.T) {
	repo := &mockBookingRepo{createErr: appErrors.Clone(appErrors.ErrConflict, "slot has a pending request")}
	pairings := &mockPairingChecker{accepted: map[string]bool{"stu-2tut-1": true}}
	slots := &mockSlotReader{slots: map[string]models.TimeSlot{"slot-1": {ID: "slot-1", TutorID: "tut-1"}}}
	svc := NewBookingService(repo, pairings, slots, nil, nil, nil)

	_, err := svc.Create(context.Background(), "stu-2", CreateBookingRequest{SlotID: "slot-1"})
	requireCode(t, err, appErrors.ErrConflict.Code)
}

func TestBookingServiceRespondAccept(t *testing.T) {
	repo := &mockBookingRepo{requests: map[string]models.BookingRequest{
		"req-1": {ID: "req-1", SlotID: "slot-1", StudentID: "stu-1", TutorID: "tut-1", Status: models.StatusPending},
	}}
	svc := NewBookingService(repo, &mockPairingChecker{}, &mockSlotReader{}, nil, nil, nil)

	updated, err := svc.Respond(context.Background(), "tut-1", "req-1", RespondBookingRequest{Accept: true})
	require.NoError(t, err)
	require.Equal(t, models.StatusAccepted, updated.Status)
	require.Equal(t, "slot-1", repo.slotBookedOn)
}

func TestBookingServiceRespondReject(t *testing.T) {
	repo := &mockBookingRepo{
		requests: map[string]models.BookingRequest{
			"req-1": {ID: "req-1", SlotID: "slot-1", StudentID: "stu-1", TutorID: "tut-1", Status: models.StatusPending},
		},
		rejectResult: true,
	}
	svc := NewBookingService(repo, &mockPairingChecker{}, &mockSlotReader{}, nil, nil, nil)

	updated, err := svc.Respond(context.Background(), "tut-1", "req-1", RespondBookingRequest{Accept: false})
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, updated.Status)
	require.Empty(t, repo.slotBookedOn)
}

func TestBookingServiceRespondWrongTutor(t *testing.T) {
	repo := &mockBookingRepo{requests: map[string]models.BookingRequest{
		"req-1": {ID: "req-1", SlotID: "slot-1", StudentID: "stu-1", TutorID: "tut-1", Status: models.StatusPending},
	}}
	svc := NewBookingService(repo, &mockPairingChecker{}, &mockSlotReader{}, nil, nil, nil)

	_, err := svc.Respond(context.Background(), "tut-2", "req-1", RespondBookingRequest{Accept: true})
	requireCode(t, err, appErrors.ErrForbidden.Code)
}

func TestBookingServiceRespondAlreadyResolved(t *testing.T) {
	repo := &mockBookingRepo{requests: map[string]models.BookingRequest{
		"req-1": {ID: "req-1", SlotID: "slot-1", StudentID: "stu-1", TutorID: "tut-1", Status: models.StatusAccepted},
	}}
	svc := NewBookingService(repo, &mockPairingChecker{}, &mockSlotReader{}, nil, nil, nil)

	_, err := svc.Respond(context.Background(), "tut-1", "req-1", RespondBookingRequest{Accept: true})
	requireCode(t, err, appErrors.ErrInvalidState.Code)
}

func TestBookingServiceRespondAcceptLostRace(t *testing.T) {
	repo := &mockBookingRepo{
		requests: map[string]models.BookingRequest{
			"req-1": {ID: "req-1", SlotID: "slot-1", StudentID: "stu-1", TutorID: "tut-1", Status: models.StatusPending},
		},
		acceptErr: appErrors.Clone(appErrors.ErrConflict, "slot already booked"),
	}
	svc := NewBookingService(repo, &mockPairingChecker{}, &mockSlotReader{}, nil, nil, nil)

	_, err := svc.Respond(context.Background(), "tut-1", "req-1", RespondBookingRequest{Accept: true})
	requireCode(t, err, appErrors.ErrConflict.Code)
}

func TestBookingServiceCancel(t *testing.T) {
	repo := &mockBookingRepo{
		requests: map[string]models.BookingRequest{
			"req-1": {ID: "req-1", SlotID: "slot-1", StudentID: "stu-1", TutorID: "tut-1", Status: models.StatusPending},
		},
		cancelResult: true,
	}
	svc := NewBookingService(repo, &mockPairingChecker{}, &mockSlotReader{}, nil, nil, nil)

	require.NoError(t, svc.Cancel(context.Background(), "stu-1", "req-1"))
	require.Equal(t, "req-1", repo.cancelledID)
	require.Equal(t, models.StatusCancelled, repo.requests["req-1"].Status)
}

func TestBookingServiceCancelForeignRequest(t *testing.T) {
	repo := &mockBookingRepo{requests: map[string]models.BookingRequest{
		"req-1": {ID: "req-1", SlotID: "slot-1", StudentID: "stu-1", TutorID: "tut-1", Status: models.StatusPending},
	}}
	svc := NewBookingService(repo, &mockPairingChecker{}, &mockSlotReader{}, nil, nil, nil)

	err := svc.Cancel(context.Background(), "stu-2", "req-1")
	requireCode(t, err, appErrors.ErrForbidden.Code)
}

func TestBookingServiceCancelAlreadyResolved(t *testing.T) {
	repo := &mockBookingRepo{requests: map[string]models.BookingRequest{
		"req-1": {ID: "req-1", SlotID: "slot-1", StudentID: "stu-1", TutorID: "tut-1", Status: models.StatusRejected},
	}}
	svc := NewBookingService(repo, &mockPairingChecker{}, &mockSlotReader{}, nil, nil, nil)

	err := svc.Cancel(context.Background(), "stu-1", "req-1")
	requireCode(t, err, appErrors.ErrPreconditionFailed.Code)
}

func TestBookingServiceCancelThenSlotOpenAgain(t *testing.T) {
	repo := &mockBookingRepo{
		requests: map[string]models.BookingRequest{
			"req-1": {ID: "req-1", SlotID: "slot-1", StudentID: "stu-1", TutorID: "tut-1", Status: models.StatusPending},
		},
		cancelResult: true,
	}
	pairings := &mockPairingChecker{accepted: map[string]bool{"stu-2tut-1": true}}
	slots := &mockSlotReader{slots: map[string]models.TimeSlot{"slot-1": {ID: "slot-1", TutorID: "tut-1"}}}
	svc := NewBookingService(repo, pairings, slots, nil, nil, nil)

	require.NoError(t, svc.Cancel(context.Background(), "stu-1", "req-1"))

	request, err := svc.Create(context.Background(), "stu-2", CreateBookingRequest{SlotID: "slot-1"})
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, request.Status)
}

func TestBookingServiceRecordsOutcomeMetrics(t *testing.T) {
	repo := &mockBookingRepo{
		requests: map[string]models.BookingRequest{
			"req-1": {ID: "req-1", SlotID: "slot-1", StudentID: "stu-1", TutorID: "tut-1", Status: models.StatusPending},
			"req-2": {ID: "req-2", SlotID: "slot-2", StudentID: "stu-1", TutorID: "tut-1", Status: models.StatusPending},
		},
		cancelResult: true,
	}
	metrics := NewMetricsService()
	svc := NewBookingService(repo, &mockPairingChecker{}, &mockSlotReader{}, metrics, nil, nil)

	_, err := svc.Respond(context.Background(), "tut-1", "req-1", RespondBookingRequest{Accept: true})
	require.NoError(t, err)
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.bookingOutcomes.WithLabelValues("accepted")))

	require.NoError(t, svc.Cancel(context.Background(), "stu-1", "req-2"))
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.bookingOutcomes.WithLabelValues("cancelled")))
	require.Equal(t, float64(0), testutil.ToFloat64(metrics.bookingOutcomes.WithLabelValues("conflict")))
}
