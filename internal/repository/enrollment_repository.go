package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-admissions-api/internal/models"
)

// EnrollmentRepository performs the multi-entity commit that converts a
// candidate into a student plus its initial invoice.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs an EnrollmentRepository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindStudentByCandidate returns the student created from the given
// candidate, if any. Used as the finalizer's idempotency guard.
func (r *EnrollmentRepository) FindStudentByCandidate(ctx context.Context, candidateID string) (*models.Student, error) {
	const query = `SELECT id, candidate_id, full_name, grade, guardian_name, enrolled_at, balance_owed, active, created_at, updated_at
        FROM students WHERE candidate_id = $1 LIMIT 1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, candidateID); err != nil {
		return nil, err
	}
	return &student, nil
}

// CreateStudentWithInvoice inserts the student and its initial invoice in a
// single transaction. Either both rows are committed or neither is visible.
func (r *EnrollmentRepository) CreateStudentWithInvoice(ctx context.Context, student *models.Student, invoice *models.Invoice) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	invoice.StudentID = student.ID
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	invoice.CreatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const studentQuery = `INSERT INTO students (id, candidate_id, full_name, grade, guardian_name, enrolled_at, balance_owed, active, created_at, updated_at)
        VALUES (:id, :candidate_id, :full_name, :grade, :guardian_name, :enrolled_at, :balance_owed, :active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, studentQuery, student); err != nil {
		return fmt.Errorf("insert student: %w", err)
	}

	const invoiceQuery = `INSERT INTO invoices (id, student_id, amount, due_date, status, category, created_at)
        VALUES (:id, :student_id, :amount, :due_date, :status, :category, :created_at)`
	if _, err := tx.NamedExecContext(ctx, invoiceQuery, invoice); err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment tx: %w", err)
	}
	committed = true
	return nil
}
