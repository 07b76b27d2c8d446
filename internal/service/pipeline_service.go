package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-admissions-api/internal/models"
	appErrors "github.com/noah-isme/sma-admissions-api/pkg/errors"
)

type pipelineCandidateStore interface {
	FindByID(ctx context.Context, id string) (*models.Candidate, error)
	UpdateStage(ctx context.Context, id string, stage models.Stage) error
}

// PipelineService is the transition engine: it moves candidates through the
// admission stages one step at a time, in either direction. The terminal jump
// from Offered to Enrolled belongs to the EnrollmentService, which performs
// side effects plain transitions do not.
type PipelineService struct {
	repo    pipelineCandidateStore
	locks   *CandidateLocks
	audit   auditWriter
	metrics *MetricsService
	cache   *CacheService
	logger  *zap.Logger
}

// NewPipelineService constructs a PipelineService.
func NewPipelineService(repo pipelineCandidateStore, locks *CandidateLocks, audit auditWriter, metrics *MetricsService, cache *CacheService, logger *zap.Logger) *PipelineService {
	if locks == nil {
		locks = NewCandidateLocks()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PipelineService{repo: repo, locks: locks, audit: audit, metrics: metrics, cache: cache, logger: logger}
}

// Advance moves a candidate to the next stage.
func (s *PipelineService) Advance(ctx context.Context, candidateID, actorID string) (*models.Candidate, error) {
	return s.transition(ctx, candidateID, actorID, true)
}

// Revert moves a candidate to the previous stage.
func (s *PipelineService) Revert(ctx context.Context, candidateID, actorID string) (*models.Candidate, error) {
	return s.transition(ctx, candidateID, actorID, false)
}

func (s *PipelineService) transition(ctx context.Context, candidateID, actorID string, forward bool) (*models.Candidate, error) {
	if !s.locks.TryAcquire(candidateID) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "transition already in progress")
	}
	defer s.locks.Release(candidateID)

	candidate, err := s.repo.FindByID(ctx, candidateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "candidate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate")
	}

	if models.IsTerminalStage(candidate.Stage) {
		return nil, appErrors.Clone(appErrors.ErrIllegalTransition, "enrolled candidates are frozen")
	}

	var next models.Stage
	var ok bool
	if forward {
		if next, ok = models.NextStage(candidate.Stage); !ok {
			return nil, appErrors.Clone(appErrors.ErrIllegalTransition, "no further stage")
		}
		if models.IsTerminalStage(next) {
			return nil, appErrors.Clone(appErrors.ErrIllegalTransition, "enrollment requires finalization")
		}
	} else {
		if next, ok = models.PrevStage(candidate.Stage); !ok {
			return nil, appErrors.Clone(appErrors.ErrIllegalTransition, "cannot revert past intake")
		}
	}

	if err := s.repo.UpdateStage(ctx, candidateID, next); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "candidate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to persist stage change")
	}

	prev := candidate.Stage
	candidate.Stage = next
	candidate.UpdatedAt = time.Now().UTC()

	s.metrics.RecordStageTransition(string(prev), string(next))
	if s.cache.Enabled() {
		_ = s.cache.Invalidate(ctx, candidateListCachePrefix+"*")
	}
	action := models.AuditActionStageAdvance
	if !forward {
		action = models.AuditActionStageRevert
	}
	s.emitAudit(ctx, actorID, action, candidateID, prev, next)

	return candidate, nil
}

func (s *PipelineService) emitAudit(ctx context.Context, actorID, action, candidateID string, from, to models.Stage) {
	if s.audit == nil {
		return
	}
	oldValues, _ := json.Marshal(map[string]interface{}{"stage": from})
	newValues, _ := json.Marshal(map[string]interface{}{"stage": to})
	log := &models.AuditLog{
		Action:     action,
		Resource:   "candidate",
		ResourceID: &candidateID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  "pipeline-service",
	}
	if actorID != "" {
		log.UserID = &actorID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
