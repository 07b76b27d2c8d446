package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-admissions-api/internal/models"
)

// CandidateRepository manages persistence for admission candidates and their
// attached documents.
type CandidateRepository struct {
	db *sqlx.DB
}

// NewCandidateRepository constructs a CandidateRepository.
func NewCandidateRepository(db *sqlx.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

// Create inserts a new candidate record at the intake stage.
func (r *CandidateRepository) Create(ctx context.Context, candidate *models.Candidate) error {
	if candidate.ID == "" {
		candidate.ID = uuid.NewString()
	}
	if candidate.Stage == "" {
		candidate.Stage = models.InitialStage()
	}
	now := time.Now().UTC()
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = now
	}
	candidate.UpdatedAt = now
	const query = `INSERT INTO candidates (id, full_name, requested_level, guardian_name, guardian_contact, birth_date, address, prior_school, notes, fit_score, stage, created_at, updated_at)
        VALUES (:id, :full_name, :requested_level, :guardian_name, :guardian_contact, :birth_date, :address, :prior_school, :notes, :fit_score, :stage, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, candidate); err != nil {
		return fmt.Errorf("create candidate: %w", err)
	}
	return nil
}

// FindByID fetches a candidate with its documents.
func (r *CandidateRepository) FindByID(ctx context.Context, id string) (*models.Candidate, error) {
	const query = `SELECT id, full_name, requested_level, guardian_name, guardian_contact, birth_date, address, prior_school, notes, fit_score, stage, created_at, updated_at
        FROM candidates WHERE id = $1`
	var candidate models.Candidate
	if err := r.db.GetContext(ctx, &candidate, query, id); err != nil {
		return nil, err
	}
	documents, err := r.ListDocuments(ctx, id)
	if err != nil {
		return nil, err
	}
	candidate.Documents = documents
	return &candidate, nil
}

// List returns candidates matching the provided filters with a total count.
// Rows are value copies; mutating them does not touch stored state.
func (r *CandidateRepository) List(ctx context.Context, filter models.CandidateFilter) ([]models.Candidate, int, error) {
	base := "FROM candidates WHERE 1=1"
	var args []interface{}

	if filter.Stage != "" {
		base += fmt.Sprintf(" AND stage = $%d", len(args)+1)
		args = append(args, filter.Stage)
	}
	if filter.Search != "" {
		base += fmt.Sprintf(" AND (LOWER(full_name) LIKE $%d OR LOWER(guardian_name) LIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"full_name":  "full_name",
		"stage":      "stage",
		"fit_score":  "fit_score",
		"created_at": "created_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, full_name, requested_level, guardian_name, guardian_contact, birth_date, address, prior_school, notes, fit_score, stage, created_at, updated_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var candidates []models.Candidate
	if err := r.db.SelectContext(ctx, &candidates, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list candidates: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + base
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count candidates: %w", err)
	}
	return candidates, total, nil
}

// UpdateStage persists a stage change. Callers are the transition and
// enrollment services only; the stage column is never written elsewhere.
func (r *CandidateRepository) UpdateStage(ctx context.Context, id string, stage models.Stage) error {
	const query = `UPDATE candidates SET stage = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, stage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update candidate stage: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AddDocument attaches a document record to a candidate.
func (r *CandidateRepository) AddDocument(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = models.DocumentStatusPending
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO candidate_documents (id, candidate_id, type, status, uploaded_at)
        VALUES (:id, :candidate_id, :type, :status, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("add candidate document: %w", err)
	}
	return nil
}

// VerifyDocument marks a candidate document as verified.
func (r *CandidateRepository) VerifyDocument(ctx context.Context, candidateID, docID string) error {
	const query = `UPDATE candidate_documents SET status = $3 WHERE id = $2 AND candidate_id = $1`
	result, err := r.db.ExecContext(ctx, query, candidateID, docID, models.DocumentStatusVerified)
	if err != nil {
		return fmt.Errorf("verify candidate document: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListDocuments returns the documents attached to a candidate.
func (r *CandidateRepository) ListDocuments(ctx context.Context, candidateID string) ([]models.Document, error) {
	const query = `SELECT id, candidate_id, type, status, uploaded_at FROM candidate_documents WHERE candidate_id = $1 ORDER BY uploaded_at`
	var documents []models.Document
	if err := r.db.SelectContext(ctx, &documents, query, candidateID); err != nil {
		return nil, fmt.Errorf("list candidate documents: %w", err)
	}
	return documents, nil
}
