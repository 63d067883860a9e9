package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bk-tutor/tutor-support-api/internal/models"
	"github.com/bk-tutor/tutor-support-api/pkg/jobs"
)

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditService persists audit trail entries off the request path. The
// trail is best effort: a full buffer or a crashed worker loses
// entries rather than failing or slowing the triggering request.
type AuditService struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditService constructs AuditService over the given writer.
func NewAuditService(repo auditWriter, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuditService{logger: logger}
	s.queue = jobs.NewQueue("audit", func(ctx context.Context, job jobs.Job) error {
		entry, ok := job.Payload.(*models.AuditLog)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", job.Payload)
		}
		return repo.CreateAuditLog(ctx, entry)
	}, jobs.QueueConfig{
		Workers:    1,
		BufferSize: 64,
		MaxRetries: 3,
		RetryDelay: time.Second,
		Logger:     logger,
	})
	return s
}

// Start launches the background writer.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the writer.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record enqueues an audit entry for asynchronous persistence.
func (s *AuditService) Record(entry *models.AuditLog) {
	if entry == nil {
		return
	}
	if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: entry.Action, Payload: entry}); err != nil {
		s.logger.Warn("audit enqueue failed", zap.String("action", entry.Action), zap.Error(err))
	}
}
