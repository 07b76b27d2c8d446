package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-admissions-api/internal/models"
)

func TestCandidateRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCandidateRepository(db)

	mock.ExpectExec("INSERT INTO candidates").
		WillReturnResult(sqlmock.NewResult(0, 1))

	candidate := &models.Candidate{
		FullName:        "Zoe Winters",
		RequestedLevel:  "Kindergarten",
		GuardianContact: "mara@example.com",
	}
	require.NoError(t, repo.Create(context.Background(), candidate))
	require.NotEmpty(t, candidate.ID)
	require.Equal(t, models.StageInquiry, candidate.Stage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCandidateRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCandidateRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "full_name", "requested_level", "guardian_name", "guardian_contact", "birth_date", "address", "prior_school", "notes", "fit_score", "stage", "created_at", "updated_at"}).
		AddRow("cand-1", "Zoe Winters", "Kindergarten", "Mara Winters", "mara@example.com", nil, "", "", "", 50, models.StageOffered, now, now)
	mock.ExpectQuery("SELECT (.+) FROM candidates WHERE id").
		WithArgs("cand-1").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT (.+) FROM candidate_documents WHERE candidate_id").
		WithArgs("cand-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "candidate_id", "type", "status", "uploaded_at"}).
			AddRow("doc-1", "cand-1", "birth_certificate", models.DocumentStatusPending, now))

	candidate, err := repo.FindByID(context.Background(), "cand-1")
	require.NoError(t, err)
	require.Equal(t, models.StageOffered, candidate.Stage)
	require.Len(t, candidate.Documents, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCandidateRepositoryListWithStageFilter(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCandidateRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "full_name", "requested_level", "guardian_name", "guardian_contact", "birth_date", "address", "prior_school", "notes", "fit_score", "stage", "created_at", "updated_at"}).
		AddRow("cand-1", "Zoe Winters", "Kindergarten", "", "mara@example.com", nil, "", "", "", 50, models.StageOffered, now, now)
	mock.ExpectQuery("SELECT (.+) FROM candidates WHERE 1=1 AND stage").
		WithArgs(models.StageOffered).
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(models.StageOffered).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	candidates, total, err := repo.List(context.Background(), models.CandidateFilter{Stage: models.StageOffered})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCandidateRepositoryUpdateStage(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCandidateRepository(db)

	mock.ExpectExec("UPDATE candidates SET stage").
		WithArgs("cand-1", models.StageApplication, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStage(context.Background(), "cand-1", models.StageApplication))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCandidateRepositoryUpdateStageMissingRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCandidateRepository(db)

	mock.ExpectExec("UPDATE candidates SET stage").
		WithArgs("missing", models.StageApplication, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStage(context.Background(), "missing", models.StageApplication)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCandidateRepositoryVerifyDocument(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCandidateRepository(db)

	mock.ExpectExec("UPDATE candidate_documents SET status").
		WithArgs("cand-1", "doc-1", models.DocumentStatusVerified).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.VerifyDocument(context.Background(), "cand-1", "doc-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
