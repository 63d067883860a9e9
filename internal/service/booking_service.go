package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/bk-tutor/tutor-support-api/internal/models"
	appErrors "github.com/bk-tutor/tutor-support-api/pkg/errors"
)

type bookingRepository interface {
	FindByID(ctx context.Context, id string) (*models.BookingRequest, error)
	CreatePending(ctx context.Context, request *models.BookingRequest) error
	Accept(ctx context.Context, id, tutorID string) error
	Reject(ctx context.Context, id, tutorID string) (bool, error)
	Cancel(ctx context.Context, id, studentID string) (bool, error)
	PendingForTutor(ctx context.Context, tutorID string) ([]models.BookingRequestDetail, error)
	UpcomingForTutor(ctx context.Context, tutorID string, now time.Time) ([]models.BookingRequestDetail, error)
	HistoryForStudent(ctx context.Context, studentID string) ([]models.BookingRequestDetail, error)
	AvailableSlots(ctx context.Context, studentID string, now time.Time) ([]models.AvailableSlot, error)
}

type pairingChecker interface {
	ExistsAccepted(ctx context.Context, studentID, tutorID string) (bool, error)
}

type slotReader interface {
	FindByID(ctx context.Context, id string) (*models.TimeSlot, error)
}

// CreateBookingRequest is the student's booking payload.
type CreateBookingRequest struct {
	SlotID string `json:"slot_id" validate:"required"`
	Note   string `json:"note" validate:"max=500"`
}

// RespondBookingRequest is the tutor's decision payload.
type RespondBookingRequest struct {
	Accept bool `json:"accept"`
}

// BookingService arbitrates slot bookings: at most one pending request
// per slot and at most one accepted booking per slot, under any
// interleaving of concurrent callers. The decisive checks live in the
// repository's transactions; this layer sequences preconditions and
// translates outcomes.
type BookingService struct {
	repo      bookingRepository
	pairings  pairingChecker
	slots     slotReader
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	now       func() time.Time
}

// NewBookingService constructs BookingService. A nil metrics service
// disables instrumentation.
func NewBookingService(repo bookingRepository, pairings pairingChecker, slots slotReader, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{repo: repo, pairings: pairings, slots: slots, metrics: metrics, validator: validate, logger: logger, now: time.Now}
}

// Create places a pending booking request on a slot. The student must
// hold an accepted pairing with the slot's tutor; the slot must be
// free of pending requests and unbooked, which the repository enforces
// atomically with the insert.
func (s *BookingService) Create(ctx context.Context, studentID string, req CreateBookingRequest) (*models.BookingRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	slot, err := s.slots.FindByID(ctx, req.SlotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot")
	}

	paired, err := s.pairings.ExistsAccepted(ctx, studentID, slot.TutorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pairing")
	}
	if !paired {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no accepted pairing with tutor")
	}

	request := &models.BookingRequest{SlotID: req.SlotID, StudentID: studentID}
	if req.Note != "" {
		note := req.Note
		request.Note = &note
	}
	if err := s.repo.CreatePending(ctx, request); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			if appErr.Code == appErrors.ErrConflict.Code {
				s.metrics.RecordBookingOutcome("conflict")
			}
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking request")
	}
	return request, nil
}

// Respond resolves a pending request on behalf of its tutor. Accepting
// books the slot in the same transaction as the status change.
func (s *BookingService) Respond(ctx context.Context, tutorID, requestID string, req RespondBookingRequest) (*models.BookingRequest, error) {
	request, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking request")
	}
	if request.TutorID != tutorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another tutor")
	}
	if request.Status != models.StatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "request already resolved")
	}

	if req.Accept {
		if err := s.repo.Accept(ctx, requestID, tutorID); err != nil {
			var appErr *appErrors.Error
			if errors.As(err, &appErr) {
				if appErr.Code == appErrors.ErrConflict.Code {
					s.metrics.RecordBookingOutcome("conflict")
				}
				return nil, appErr
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to accept booking")
		}
		s.metrics.RecordBookingOutcome("accepted")
	} else {
		rejected, err := s.repo.Reject(ctx, requestID, tutorID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject booking")
		}
		if !rejected {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "request already resolved")
		}
		s.metrics.RecordBookingOutcome("rejected")
	}

	updated, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload booking request")
	}
	return updated, nil
}

// Cancel withdraws a student's own pending request, keeping the record
// for audit. Cancelling someone else's request is forbidden; a request
// already resolved reports a failed precondition.
func (s *BookingService) Cancel(ctx context.Context, studentID, requestID string) error {
	request, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "booking request not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking request")
	}
	if request.StudentID != studentID {
		return appErrors.Clone(appErrors.ErrForbidden, "request belongs to another student")
	}

	cancelled, err := s.repo.Cancel(ctx, requestID, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel booking")
	}
	if !cancelled {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "request no longer pending")
	}
	s.metrics.RecordBookingOutcome("cancelled")
	return nil
}

// PendingForTutor returns the tutor's queue in FIFO order.
func (s *BookingService) PendingForTutor(ctx context.Context, tutorID string) ([]models.BookingRequestDetail, error) {
	requests, err := s.repo.PendingForTutor(ctx, tutorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending bookings")
	}
	return requests, nil
}

// UpcomingForTutor returns the tutor's accepted future sessions.
func (s *BookingService) UpcomingForTutor(ctx context.Context, tutorID string) ([]models.BookingRequestDetail, error) {
	sessions, err := s.repo.UpcomingForTutor(ctx, tutorID, s.now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list upcoming sessions")
	}
	return sessions, nil
}

// HistoryForStudent returns the student's booking requests, newest first.
func (s *BookingService) HistoryForStudent(ctx context.Context, studentID string) ([]models.BookingRequestDetail, error) {
	requests, err := s.repo.HistoryForStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list booking history")
	}
	return requests, nil
}

// AvailableSlots returns bookable slots of tutors the student holds an
// accepted pairing with.
func (s *BookingService) AvailableSlots(ctx context.Context, studentID string) ([]models.AvailableSlot, error) {
	slots, err := s.repo.AvailableSlots(ctx, studentID, s.now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list available slots")
	}
	return slots, nil
}
