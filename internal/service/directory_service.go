package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/bk-tutor/tutor-support-api/internal/models"
	appErrors "github.com/bk-tutor/tutor-support-api/pkg/errors"
)

type tutorLister interface {
	ListTutors(ctx context.Context, search string) ([]models.TutorProfile, error)
}

type directoryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// DirectoryService serves the tutor directory with a read-through
// Redis cache. Unfiltered listings are cached; searches go straight to
// the database.
type DirectoryService struct {
	users    tutorLister
	cache    directoryCache
	cacheTTL time.Duration
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewDirectoryService constructs DirectoryService. A nil metrics
// service disables instrumentation.
func NewDirectoryService(users tutorLister, cache directoryCache, cacheTTL time.Duration, metrics *MetricsService, logger *zap.Logger) *DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &DirectoryService{users: users, cache: cache, cacheTTL: cacheTTL, metrics: metrics, logger: logger}
}

const tutorDirectoryCacheKey = "directory:tutors"

// SearchTutors lists active tutors, optionally filtered by a search term.
func (s *DirectoryService) SearchTutors(ctx context.Context, search string) ([]models.TutorProfile, error) {
	if search == "" && s.cache != nil {
		var cached []models.TutorProfile
		err := s.cache.Get(ctx, tutorDirectoryCacheKey, &cached)
		if err == nil {
			s.metrics.RecordCacheOperation(true)
			return cached, nil
		}
		s.metrics.RecordCacheOperation(false)
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("tutor directory cache read failed", zap.Error(err))
		}
	}

	tutors, err := s.users.ListTutors(ctx, search)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tutors")
	}

	if search == "" && s.cache != nil {
		if err := s.cache.Set(ctx, tutorDirectoryCacheKey, tutors, s.cacheTTL); err != nil {
			s.logger.Warn("tutor directory cache write failed", zap.Error(err))
		}
	}
	return tutors, nil
}
