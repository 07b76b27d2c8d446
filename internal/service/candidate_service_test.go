package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-admissions-api/internal/models"
	appErrors "github.com/noah-isme/sma-admissions-api/pkg/errors"
)

func (f *fakeCandidateStore) Create(ctx context.Context, candidate *models.Candidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if candidate.ID == "" {
		candidate.ID = fmt.Sprintf("cand-%d", len(f.items)+1)
	}
	now := time.Now().UTC()
	candidate.CreatedAt = now
	candidate.UpdatedAt = now
	cp := *candidate
	f.items[candidate.ID] = &cp
	return nil
}

func (f *fakeCandidateStore) List(ctx context.Context, filter models.CandidateFilter) ([]models.Candidate, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Candidate
	for _, c := range f.items {
		if filter.Stage != "" && c.Stage != filter.Stage {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (f *fakeCandidateStore) AddDocument(ctx context.Context, doc *models.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc.ID == "" {
		doc.ID = fmt.Sprintf("doc-%d", len(f.items[doc.CandidateID].Documents)+1)
	}
	candidate := f.items[doc.CandidateID]
	candidate.Documents = append(candidate.Documents, *doc)
	return nil
}

func (f *fakeCandidateStore) VerifyDocument(ctx context.Context, candidateID, docID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	candidate, ok := f.items[candidateID]
	if !ok {
		return sql.ErrNoRows
	}
	for i := range candidate.Documents {
		if candidate.Documents[i].ID == docID {
			candidate.Documents[i].Status = models.DocumentStatusVerified
			return nil
		}
	}
	return sql.ErrNoRows
}

func TestCandidateServiceRegister(t *testing.T) {
	store := newFakeCandidateStore()
	audit := &fakeAuditWriter{}
	svc := NewCandidateService(store, audit, nil, nil, 0, nil, zap.NewNop())

	candidate, err := svc.Register(context.Background(), RegisterCandidateRequest{
		FullName:        "  Zoe Winters ",
		RequestedLevel:  "Kindergarten",
		GuardianContact: "mara@example.com",
	}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Zoe Winters", candidate.FullName)
	assert.Equal(t, models.StageInquiry, candidate.Stage)
	assert.NotEmpty(t, candidate.ID)
	assert.Len(t, store.items, 1)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionCandidateRegister, audit.logs[0].Action)
}

func TestCandidateServiceRegisterMissingGuardianContact(t *testing.T) {
	store := newFakeCandidateStore()
	svc := NewCandidateService(store, nil, nil, nil, 0, nil, zap.NewNop())

	_, err := svc.Register(context.Background(), RegisterCandidateRequest{
		FullName:       "Zoe Winters",
		RequestedLevel: "Kindergarten",
	}, "")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, store.items)
}

func TestCandidateServiceRegisterBlankGuardianContact(t *testing.T) {
	store := newFakeCandidateStore()
	svc := NewCandidateService(store, nil, nil, nil, 0, nil, zap.NewNop())

	_, err := svc.Register(context.Background(), RegisterCandidateRequest{
		FullName:        "Zoe Winters",
		RequestedLevel:  "Kindergarten",
		GuardianContact: "   ",
	}, "")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, store.items)
}

func TestCandidateServiceRegisterMissingName(t *testing.T) {
	store := newFakeCandidateStore()
	svc := NewCandidateService(store, nil, nil, nil, 0, nil, zap.NewNop())

	_, err := svc.Register(context.Background(), RegisterCandidateRequest{
		RequestedLevel:  "Kindergarten",
		GuardianContact: "mara@example.com",
	}, "")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, store.items)
}

func TestFitScoreDeterministic(t *testing.T) {
	birth := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	full := &models.Candidate{
		GuardianName: "Mara Winters",
		BirthDate:    &birth,
		Address:      "12 Elm St",
		PriorSchool:  "Sunrise Preschool",
		Notes:        "sibling enrolled",
	}
	assert.Equal(t, 100, fitScore(full))
	assert.Equal(t, fitScore(full), fitScore(full))

	minimal := &models.Candidate{}
	assert.Equal(t, 40, fitScore(minimal))

	partial := &models.Candidate{GuardianName: "Mara", Address: "12 Elm St"}
	assert.Equal(t, 65, fitScore(partial))
}

func TestCandidateServiceListRejectsUnknownStage(t *testing.T) {
	svc := NewCandidateService(newFakeCandidateStore(), nil, nil, nil, 0, nil, zap.NewNop())

	_, _, _, err := svc.List(context.Background(), models.CandidateFilter{Stage: "WAITLISTED"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestCandidateServiceListFiltersByStage(t *testing.T) {
	store := newFakeCandidateStore(
		&models.Candidate{ID: "cand-1", Stage: models.StageInquiry},
		&models.Candidate{ID: "cand-2", Stage: models.StageOffered},
	)
	svc := NewCandidateService(store, nil, nil, nil, 0, nil, zap.NewNop())

	candidates, pagination, cacheHit, err := svc.List(context.Background(), models.CandidateFilter{Stage: models.StageOffered})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "cand-2", candidates[0].ID)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.False(t, cacheHit)
}

func TestCandidateServiceDocumentLifecycle(t *testing.T) {
	store := newFakeCandidateStore(&models.Candidate{ID: "cand-1", Stage: models.StageApplication})
	svc := NewCandidateService(store, nil, nil, nil, 0, nil, zap.NewNop())

	doc, err := svc.AttachDocument(context.Background(), "cand-1", AttachDocumentRequest{Type: "birth_certificate"}, "")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusPending, doc.Status)

	require.NoError(t, svc.VerifyDocument(context.Background(), "cand-1", doc.ID, ""))
	candidate, err := svc.Get(context.Background(), "cand-1")
	require.NoError(t, err)
	require.Len(t, candidate.Documents, 1)
	assert.Equal(t, models.DocumentStatusVerified, candidate.Documents[0].Status)
}
