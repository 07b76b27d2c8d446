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

type enrollmentStore interface {
	FindStudentByCandidate(ctx context.Context, candidateID string) (*models.Student, error)
	CreateStudentWithInvoice(ctx context.Context, student *models.Student, invoice *models.Invoice) error
}

// EnrollmentConfig tunes the finalization side effects.
type EnrollmentConfig struct {
	TuitionDeposit   float64
	InvoiceDueDays   int
	RequireDocuments bool
}

// FinalizeResult carries the records created by a successful finalization.
type FinalizeResult struct {
	Student *models.Student `json:"student"`
	Invoice *models.Invoice `json:"invoice"`
}

// EnrollmentService finalizes offered candidates: it creates the permanent
// student record and the initial tuition invoice as one atomic commit, then
// moves the candidate to the terminal stage. This is the only path that
// creates students or invoices.
type EnrollmentService struct {
	candidates pipelineCandidateStore
	store      enrollmentStore
	locks      *CandidateLocks
	audit      auditWriter
	metrics    *MetricsService
	cache      *CacheService
	config     EnrollmentConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewEnrollmentService constructs an EnrollmentService.
func NewEnrollmentService(candidates pipelineCandidateStore, store enrollmentStore, locks *CandidateLocks, audit auditWriter, metrics *MetricsService, cache *CacheService, config EnrollmentConfig, logger *zap.Logger) *EnrollmentService {
	if locks == nil {
		locks = NewCandidateLocks()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.TuitionDeposit <= 0 {
		config.TuitionDeposit = 500
	}
	if config.InvoiceDueDays <= 0 {
		config.InvoiceDueDays = 14
	}
	return &EnrollmentService{
		candidates: candidates,
		store:      store,
		locks:      locks,
		audit:      audit,
		metrics:    metrics,
		cache:      cache,
		config:     config,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Finalize converts an offered candidate into a student plus initial invoice.
// The student and invoice are committed in one transaction before the
// candidate is moved to the terminal stage; repeating the call yields
// ErrAlreadyFinalized without creating additional records.
func (s *EnrollmentService) Finalize(ctx context.Context, candidateID, actorID string) (*FinalizeResult, error) {
	if !s.locks.TryAcquire(candidateID) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "transition already in progress")
	}
	defer s.locks.Release(candidateID)

	result, err := s.finalize(ctx, candidateID, actorID)
	if err != nil {
		s.metrics.RecordFinalizeFailure(appErrors.FromError(err).Code)
		return nil, err
	}
	s.metrics.RecordFinalization()
	return result, nil
}

func (s *EnrollmentService) finalize(ctx context.Context, candidateID, actorID string) (*FinalizeResult, error) {
	candidate, err := s.candidates.FindByID(ctx, candidateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "candidate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate")
	}

	existing, err := s.store.FindStudentByCandidate(ctx, candidateID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment status")
	}
	if existing != nil {
		s.logger.Info("finalize retried for an enrolled candidate",
			zap.String("candidate_id", candidateID), zap.String("student_id", existing.ID))
		return nil, appErrors.Clone(appErrors.ErrAlreadyFinalized, "candidate already enrolled as student "+existing.ID)
	}

	if candidate.Stage != models.StageOffered {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "candidate must be at the offered stage")
	}

	if s.config.RequireDocuments {
		for _, doc := range candidate.Documents {
			if doc.Status != models.DocumentStatusVerified {
				return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "all documents must be verified before enrollment")
			}
		}
	}

	now := s.now()
	guardian := candidate.GuardianName
	if guardian == "" {
		guardian = candidate.GuardianContact
	}
	student := &models.Student{
		CandidateID:  candidate.ID,
		FullName:     candidate.FullName,
		Grade:        candidate.RequestedLevel,
		GuardianName: guardian,
		EnrolledAt:   now,
		BalanceOwed:  s.config.TuitionDeposit,
		Active:       true,
	}
	invoice := &models.Invoice{
		Amount:   s.config.TuitionDeposit,
		DueDate:  now.AddDate(0, 0, s.config.InvoiceDueDays),
		Status:   models.InvoiceStatusSent,
		Category: models.InvoiceCategoryTuition,
	}

	if err := s.store.CreateStudentWithInvoice(ctx, student, invoice); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to commit enrollment")
	}

	// Records are durable from here. A stage-update failure leaves the
	// candidate at Offered; a retried finalize then reports the enrollment
	// as already complete instead of duplicating it.
	if err := s.candidates.UpdateStage(ctx, candidateID, models.TerminalStage()); err != nil {
		s.logger.Error("enrollment committed but stage update failed",
			zap.String("candidate_id", candidateID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "enrollment recorded but candidate stage update failed")
	}

	s.metrics.RecordStageTransition(string(models.StageOffered), string(models.TerminalStage()))
	if s.cache.Enabled() {
		_ = s.cache.Invalidate(ctx, candidateListCachePrefix+"*")
	}
	s.emitAudit(ctx, actorID, candidate, student, invoice)

	return &FinalizeResult{Student: student, Invoice: invoice}, nil
}

func (s *EnrollmentService) emitAudit(ctx context.Context, actorID string, candidate *models.Candidate, student *models.Student, invoice *models.Invoice) {
	if s.audit == nil {
		return
	}
	oldValues, _ := json.Marshal(map[string]interface{}{"stage": models.StageOffered})
	newValues, _ := json.Marshal(map[string]interface{}{
		"stage":      models.TerminalStage(),
		"student_id": student.ID,
		"invoice_id": invoice.ID,
	})
	log := &models.AuditLog{
		Action:     models.AuditActionEnrollFinalize,
		Resource:   "candidate",
		ResourceID: &candidate.ID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  "enrollment-service",
	}
	if actorID != "" {
		log.UserID = &actorID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
