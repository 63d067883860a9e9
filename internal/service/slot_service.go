package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/bk-tutor/tutor-support-api/internal/models"
	appErrors "github.com/bk-tutor/tutor-support-api/pkg/errors"
)

type slotRepository interface {
	Create(ctx context.Context, slot *models.TimeSlot) error
	FindByID(ctx context.Context, id string) (*models.TimeSlot, error)
	ListByTutor(ctx context.Context, tutorID string) ([]models.TimeSlot, error)
	DeleteAvailable(ctx context.Context, tutorID string, start time.Time) (int64, error)
	ExistsBookedAt(ctx context.Context, tutorID string, start time.Time) (bool, error)
	MarkBooked(ctx context.Context, slotID string) error
	BookDirect(ctx context.Context, studentID, slotID string) (*models.Appointment, error)
}

// CreateSlotRequest describes the slot creation payload. Times arrive
// as RFC3339 and are normalised to UTC at minute precision.
type CreateSlotRequest struct {
	StartTime time.Time `json:"start_time" validate:"required"`
}

// DeleteSlotRequest identifies slots by their exact start time.
type DeleteSlotRequest struct {
	StartTime time.Time `json:"start_time" validate:"required"`
}

// DirectBookingRequest is the legacy one-shot booking payload.
type DirectBookingRequest struct {
	SlotID string `json:"slot_id" validate:"required"`
}

// SlotService owns availability state for tutors.
type SlotService struct {
	repo         slotRepository
	validator    *validator.Validate
	logger       *zap.Logger
	slotDuration time.Duration
	now          func() time.Time
}

// NewSlotService constructs SlotService.
func NewSlotService(repo slotRepository, validate *validator.Validate, logger *zap.Logger, slotDuration time.Duration) *SlotService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if slotDuration <= 0 {
		slotDuration = time.Hour
	}
	return &SlotService{repo: repo, validator: validate, logger: logger, slotDuration: slotDuration, now: time.Now}
}

// Create validates and persists a new availability slot. Slots in the
// past are rejected before anything is stored.
func (s *SlotService) Create(ctx context.Context, tutorID string, req CreateSlotRequest) (*models.TimeSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}

	start := req.StartTime.UTC().Truncate(time.Minute)
	if !start.After(s.now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot schedule slot in the past")
	}

	slot := &models.TimeSlot{
		TutorID:   tutorID,
		StartTime: start,
		EndTime:   start.Add(s.slotDuration),
		IsBooked:  false,
	}
	if err := s.repo.Create(ctx, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create slot")
	}
	return slot, nil
}

// Delete removes the tutor's unbooked slots at the given start time.
// Removing nothing succeeds; a booked slot at that time is a conflict.
func (s *SlotService) Delete(ctx context.Context, tutorID string, req DeleteSlotRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}

	start := req.StartTime.UTC().Truncate(time.Minute)
	deleted, err := s.repo.DeleteAvailable(ctx, tutorID, start)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete slot")
	}
	if deleted > 0 {
		return nil
	}

	booked, err := s.repo.ExistsBookedAt(ctx, tutorID, start)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot")
	}
	if booked {
		return appErrors.Clone(appErrors.ErrConflict, "cannot delete a booked slot")
	}
	return nil
}

// List returns all of a tutor's slots, start ascending.
func (s *SlotService) List(ctx context.Context, tutorID string) ([]models.TimeSlot, error) {
	slots, err := s.repo.ListByTutor(ctx, tutorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list slots")
	}
	return slots, nil
}

// BookDirect reserves a slot through the legacy one-shot path. The
// repository decides the winner atomically.
func (s *SlotService) BookDirect(ctx context.Context, studentID string, req DirectBookingRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	appt, err := s.repo.BookDirect(ctx, studentID, req.SlotID)
	if err != nil {
		if appErr := appErrors.FromError(err); appErr.Code == appErrors.ErrConflict.Code {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to book slot")
	}
	return appt, nil
}
