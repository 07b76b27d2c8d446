package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-admissions-api/internal/models"
	appErrors "github.com/noah-isme/sma-admissions-api/pkg/errors"
)

type fakeCandidateStore struct {
	mu         sync.Mutex
	items      map[string]*models.Candidate
	updateErr  error
	findGate   chan struct{}
	findActive chan struct{}
}

func newFakeCandidateStore(candidates ...*models.Candidate) *fakeCandidateStore {
	store := &fakeCandidateStore{items: make(map[string]*models.Candidate)}
	for _, c := range candidates {
		cp := *c
		store.items[c.ID] = &cp
	}
	return store
}

func (f *fakeCandidateStore) FindByID(ctx context.Context, id string) (*models.Candidate, error) {
	if f.findActive != nil {
		f.findActive <- struct{}{}
	}
	if f.findGate != nil {
		<-f.findGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	candidate, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *candidate
	return &cp, nil
}

func (f *fakeCandidateStore) UpdateStage(ctx context.Context, id string, stage models.Stage) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	candidate, ok := f.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	candidate.Stage = stage
	return nil
}

func (f *fakeCandidateStore) stageOf(id string) models.Stage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id].Stage
}

type fakeAuditWriter struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (f *fakeAuditWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, log)
	return nil
}

func TestPipelineServiceAdvance(t *testing.T) {
	store := newFakeCandidateStore(&models.Candidate{ID: "cand-1", FullName: "A B", Stage: models.StageInquiry})
	audit := &fakeAuditWriter{}
	svc := NewPipelineService(store, nil, audit, nil, nil, zap.NewNop())

	candidate, err := svc.Advance(context.Background(), "cand-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.StageApplication, candidate.Stage)
	assert.Equal(t, models.StageApplication, store.stageOf("cand-1"))
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionStageAdvance, audit.logs[0].Action)
}

func TestPipelineServiceAdvanceThenRevertRestoresStage(t *testing.T) {
	store := newFakeCandidateStore(&models.Candidate{ID: "cand-1", Stage: models.StageApplication})
	svc := NewPipelineService(store, nil, nil, nil, nil, zap.NewNop())

	_, err := svc.Advance(context.Background(), "cand-1", "")
	require.NoError(t, err)
	require.Equal(t, models.StageInterview, store.stageOf("cand-1"))

	candidate, err := svc.Revert(context.Background(), "cand-1", "")
	require.NoError(t, err)
	assert.Equal(t, models.StageApplication, candidate.Stage)
	assert.Equal(t, models.StageApplication, store.stageOf("cand-1"))
}

func TestPipelineServiceAdvancePastTerminal(t *testing.T) {
	store := newFakeCandidateStore(&models.Candidate{ID: "cand-1", Stage: models.StageEnrolled})
	svc := NewPipelineService(store, nil, nil, nil, nil, zap.NewNop())

	_, err := svc.Advance(context.Background(), "cand-1", "")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrIllegalTransition))
	assert.Equal(t, models.StageEnrolled, store.stageOf("cand-1"))
}

func TestPipelineServiceAdvanceFromOfferedRequiresFinalization(t *testing.T) {
	store := newFakeCandidateStore(&models.Candidate{ID: "cand-1", Stage: models.StageOffered})
	svc := NewPipelineService(store, nil, nil, nil, nil, zap.NewNop())

	_, err := svc.Advance(context.Background(), "cand-1", "")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrIllegalTransition))
	assert.Equal(t, models.StageOffered, store.stageOf("cand-1"))
}

func TestPipelineServiceRevertFromEnrolled(t *testing.T) {
	store := newFakeCandidateStore(&models.Candidate{ID: "cand-1", Stage: models.StageEnrolled})
	svc := NewPipelineService(store, nil, nil, nil, nil, zap.NewNop())

	_, err := svc.Revert(context.Background(), "cand-1", "")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrIllegalTransition))
	assert.Equal(t, models.StageEnrolled, store.stageOf("cand-1"))
}

func TestPipelineServiceRevertPastInitial(t *testing.T) {
	store := newFakeCandidateStore(&models.Candidate{ID: "cand-1", Stage: models.StageInquiry})
	svc := NewPipelineService(store, nil, nil, nil, nil, zap.NewNop())

	_, err := svc.Revert(context.Background(), "cand-1", "")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrIllegalTransition))
	assert.Equal(t, models.StageInquiry, store.stageOf("cand-1"))
}

func TestPipelineServiceUnknownCandidate(t *testing.T) {
	store := newFakeCandidateStore()
	svc := NewPipelineService(store, nil, nil, nil, nil, zap.NewNop())

	_, err := svc.Advance(context.Background(), "missing", "")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestPipelineServiceConcurrentTransitionConflicts(t *testing.T) {
	store := newFakeCandidateStore(&models.Candidate{ID: "cand-1", Stage: models.StageInterview})
	store.findGate = make(chan struct{})
	store.findActive = make(chan struct{}, 1)
	svc := NewPipelineService(store, nil, nil, nil, nil, zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := svc.Advance(context.Background(), "cand-1", "")
		done <- err
	}()

	// Wait until the advance holds the candidate lock inside the store read.
	<-store.findActive

	_, err := svc.Revert(context.Background(), "cand-1", "")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	close(store.findGate)
	require.NoError(t, <-done)
	assert.Equal(t, models.StageOffered, store.stageOf("cand-1"))
}

func TestPipelineServiceLockReleasedAfterTransition(t *testing.T) {
	store := newFakeCandidateStore(&models.Candidate{ID: "cand-1", Stage: models.StageInquiry})
	svc := NewPipelineService(store, nil, nil, nil, nil, zap.NewNop())

	for _, want := range []models.Stage{models.StageApplication, models.StageInterview, models.StageOffered} {
		candidate, err := svc.Advance(context.Background(), "cand-1", "")
		require.NoError(t, err)
		assert.Equal(t, want, candidate.Stage)
	}
}
