package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-admissions-api/internal/models"
	appErrors "github.com/noah-isme/sma-admissions-api/pkg/errors"
)

type candidateRepository interface {
	Create(ctx context.Context, candidate *models.Candidate) error
	FindByID(ctx context.Context, id string) (*models.Candidate, error)
	List(ctx context.Context, filter models.CandidateFilter) ([]models.Candidate, int, error)
	AddDocument(ctx context.Context, doc *models.Document) error
	VerifyDocument(ctx context.Context, candidateID, docID string) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// RegisterCandidateRequest describes the intake payload.
type RegisterCandidateRequest struct {
	FullName        string     `json:"full_name" validate:"required"`
	RequestedLevel  string     `json:"requested_level" validate:"required"`
	GuardianName    string     `json:"guardian_name"`
	GuardianContact string     `json:"guardian_contact" validate:"required"`
	BirthDate       *time.Time `json:"birth_date"`
	Address         string     `json:"address"`
	PriorSchool     string     `json:"prior_school"`
	Notes           string     `json:"notes"`
}

// AttachDocumentRequest describes a document record to attach.
type AttachDocumentRequest struct {
	Type string `json:"type" validate:"required"`
}

const candidateListCachePrefix = "candidates:list:"

// CandidateService handles candidate intake and reads. Stage changes go
// through the pipeline and enrollment services exclusively.
type CandidateService struct {
	repo      candidateRepository
	audit     auditWriter
	metrics   *MetricsService
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCandidateService constructs a CandidateService.
func NewCandidateService(repo candidateRepository, audit auditWriter, metrics *MetricsService, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *CandidateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CandidateService{repo: repo, audit: audit, metrics: metrics, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// Register validates an inquiry and creates a candidate at the intake stage
// with an advisory fit score. The score never gates transitions.
func (s *CandidateService) Register(ctx context.Context, req RegisterCandidateRequest, actorID string) (*models.Candidate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid inquiry payload")
	}
	if strings.TrimSpace(req.GuardianContact) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one guardian contact is required")
	}

	candidate := &models.Candidate{
		FullName:        strings.TrimSpace(req.FullName),
		RequestedLevel:  strings.TrimSpace(req.RequestedLevel),
		GuardianName:    strings.TrimSpace(req.GuardianName),
		GuardianContact: strings.TrimSpace(req.GuardianContact),
		BirthDate:       req.BirthDate,
		Address:         strings.TrimSpace(req.Address),
		PriorSchool:     strings.TrimSpace(req.PriorSchool),
		Notes:           req.Notes,
		Stage:           models.InitialStage(),
	}
	candidate.FitScore = fitScore(candidate)

	if err := s.repo.Create(ctx, candidate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to create candidate")
	}

	s.metrics.RecordCandidateRegistered()
	s.invalidateListCache(ctx)
	s.emitAudit(ctx, actorID, models.AuditActionCandidateRegister, candidate.ID, map[string]interface{}{
		"stage":     candidate.Stage,
		"fit_score": candidate.FitScore,
	})
	return candidate, nil
}

// Get returns a candidate with its documents.
func (s *CandidateService) Get(ctx context.Context, id string) (*models.Candidate, error) {
	candidate, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "candidate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate")
	}
	return candidate, nil
}

// List returns candidates with pagination metadata, optionally filtered by
// stage. Results are served from cache when possible.
func (s *CandidateService) List(ctx context.Context, filter models.CandidateFilter) ([]models.Candidate, *models.Pagination, bool, error) {
	if filter.Stage != "" && !models.IsValidStage(filter.Stage) {
		return nil, nil, false, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown stage: %s", filter.Stage))
	}

	type cachedList struct {
		Candidates []models.Candidate `json:"candidates"`
		Pagination models.Pagination  `json:"pagination"`
	}

	key := listCacheKey(filter)
	if s.cache.Enabled() {
		var cached cachedList
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return cached.Candidates, &cached.Pagination, true, nil
		}
	}

	candidates, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list candidates")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}

	if s.cache.Enabled() {
		_ = s.cache.Set(ctx, key, cachedList{Candidates: candidates, Pagination: *pagination}, s.cacheTTL)
	}
	return candidates, pagination, false, nil
}

// AttachDocument adds a pending document record to a candidate.
func (s *CandidateService) AttachDocument(ctx context.Context, candidateID string, req AttachDocumentRequest, actorID string) (*models.Document, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}
	candidate, err := s.Get(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	doc := &models.Document{
		CandidateID: candidate.ID,
		Type:        strings.TrimSpace(req.Type),
		Status:      models.DocumentStatusPending,
		UploadedAt:  time.Now().UTC(),
	}
	if err := s.repo.AddDocument(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to attach document")
	}
	s.emitAudit(ctx, actorID, models.AuditActionDocumentAttach, candidate.ID, map[string]interface{}{"type": doc.Type})
	return doc, nil
}

// VerifyDocument marks a candidate document as verified.
func (s *CandidateService) VerifyDocument(ctx context.Context, candidateID, docID, actorID string) error {
	if err := s.repo.VerifyDocument(ctx, candidateID, docID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to verify document")
	}
	s.emitAudit(ctx, actorID, models.AuditActionDocumentVerify, candidateID, map[string]interface{}{"document_id": docID})
	return nil
}

func (s *CandidateService) invalidateListCache(ctx context.Context) {
	if s.cache.Enabled() {
		_ = s.cache.Invalidate(ctx, candidateListCachePrefix+"*")
	}
}

func (s *CandidateService) emitAudit(ctx context.Context, actorID, action, resourceID string, values map[string]interface{}) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(values)
	log := &models.AuditLog{
		Action:     action,
		Resource:   "candidate",
		ResourceID: &resourceID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "candidate-service",
	}
	if actorID != "" {
		log.UserID = &actorID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func listCacheKey(filter models.CandidateFilter) string {
	return fmt.Sprintf("%s%s:%s:%d:%d:%s:%s", candidateListCachePrefix,
		filter.Stage, strings.ToLower(filter.Search), filter.Page, filter.PageSize, filter.SortBy, strings.ToUpper(filter.SortOrder))
}

// fitScore derives an advisory 0-100 profile completeness score at intake.
// It is deterministic so repeated registrations of identical inquiries score
// identically.
func fitScore(c *models.Candidate) int {
	score := 40
	if c.GuardianName != "" {
		score += 10
	}
	if c.BirthDate != nil {
		score += 15
	}
	if c.Address != "" {
		score += 15
	}
	if c.PriorSchool != "" {
		score += 10
	}
	if len(c.Notes) > 0 {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}
