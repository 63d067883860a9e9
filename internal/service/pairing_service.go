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

// defaultRejectReason keeps the audit field populated when the caller
// supplies none at this layer.
const defaultRejectReason = "no reason provided"

type pairingRepository interface {
	FindByID(ctx context.Context, id string) (*models.PairingRequest, error)
	ExistsPending(ctx context.Context, studentID, tutorID string) (bool, error)
	CreatePending(ctx context.Context, request *models.PairingRequest) (bool, error)
	Resolve(ctx context.Context, id, tutorID string, status models.RequestStatus, reason *string) (bool, error)
	PendingForTutor(ctx context.Context, tutorID string) ([]models.PairingRequestDetail, error)
	ListForStudent(ctx context.Context, studentID string) ([]models.PairingRequestDetail, error)
}

type tutorReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// SelectTutorRequest is the student's pairing payload.
type SelectTutorRequest struct {
	TutorID string `json:"tutor_id" validate:"required"`
}

// RespondPairingRequest is the tutor's decision payload. Rejects
// require a reason at the request boundary; the service still fills a
// placeholder so the stored field is never empty.
type RespondPairingRequest struct {
	Accept bool   `json:"accept"`
	Reason string `json:"reason"`
}

// PairingService manages the student-tutor connection state machine.
type PairingService struct {
	repo      pairingRepository
	users     tutorReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPairingService constructs PairingService.
func NewPairingService(repo pairingRepository, users tutorReader, validate *validator.Validate, logger *zap.Logger) *PairingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PairingService{repo: repo, users: users, validator: validate, logger: logger}
}

// SelectTutor creates a pending pairing request. It fails silently,
// reporting created=false, when the tutor is missing, not a tutor, or
// a pending request for the pair already exists.
func (s *PairingService) SelectTutor(ctx context.Context, studentID string, req SelectTutorRequest) (bool, error) {
	if err := s.validator.Struct(req); err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid pairing payload")
	}

	tutor, err := s.users.FindByID(ctx, req.TutorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor")
	}
	if tutor.Role != models.RoleTutor {
		return false, nil
	}

	exists, err := s.repo.ExistsPending(ctx, studentID, req.TutorID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pairing")
	}
	if exists {
		return false, nil
	}

	request := &models.PairingRequest{StudentID: studentID, TutorID: req.TutorID}
	created, err := s.repo.CreatePending(ctx, request)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create pairing request")
	}
	return created, nil
}

// Respond resolves a pending request on behalf of its tutor.
func (s *PairingService) Respond(ctx context.Context, tutorID, requestID string, req RespondPairingRequest) (*models.PairingRequest, error) {
	request, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "pairing request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pairing request")
	}
	if request.TutorID != tutorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another tutor")
	}
	if request.Status != models.StatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "request already resolved")
	}

	status := models.StatusRejected
	var reason *string
	if req.Accept {
		status = models.StatusAccepted
	} else {
		r := req.Reason
		if r == "" {
			r = defaultRejectReason
		}
		reason = &r
	}

	resolved, err := s.repo.Resolve(ctx, requestID, tutorID, status, reason)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve pairing request")
	}
	if !resolved {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "request already resolved")
	}

	updated, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload pairing request")
	}
	return updated, nil
}

// PendingForTutor returns the tutor's queue in FIFO order.
func (s *PairingService) PendingForTutor(ctx context.Context, tutorID string) ([]models.PairingRequestDetail, error) {
	requests, err := s.repo.PendingForTutor(ctx, tutorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending pairings")
	}
	return requests, nil
}

// ListForStudent returns the student's requests, newest first.
func (s *PairingService) ListForStudent(ctx context.Context, studentID string) ([]models.PairingRequestDetail, error) {
	requests, err := s.repo.ListForStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pairings")
	}
	return requests, nil
}
