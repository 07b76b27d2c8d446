package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-admissions-api/internal/middleware"
	"github.com/noah-isme/sma-admissions-api/internal/models"
	"github.com/noah-isme/sma-admissions-api/internal/service"
)

type memoryAdmissionsStore struct {
	mu         sync.Mutex
	candidates map[string]*models.Candidate
	students   []*models.Student
	invoices   []*models.Invoice
}

func newMemoryAdmissionsStore() *memoryAdmissionsStore {
	return &memoryAdmissionsStore{candidates: make(map[string]*models.Candidate)}
}

func (m *memoryAdmissionsStore) Create(ctx context.Context, candidate *models.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if candidate.ID == "" {
		candidate.ID = fmt.Sprintf("cand-%d", len(m.candidates)+1)
	}
	cp := *candidate
	m.candidates[candidate.ID] = &cp
	return nil
}

func (m *memoryAdmissionsStore) FindByID(ctx context.Context, id string) (*models.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	candidate, ok := m.candidates[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *candidate
	return &cp, nil
}

func (m *memoryAdmissionsStore) List(ctx context.Context, filter models.CandidateFilter) ([]models.Candidate, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Candidate
	for _, c := range m.candidates {
		if filter.Stage != "" && c.Stage != filter.Stage {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *memoryAdmissionsStore) UpdateStage(ctx context.Context, id string, stage models.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	candidate, ok := m.candidates[id]
	if !ok {
		return sql.ErrNoRows
	}
	candidate.Stage = stage
	return nil
}

func (m *memoryAdmissionsStore) AddDocument(ctx context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	candidate := m.candidates[doc.CandidateID]
	if doc.ID == "" {
		doc.ID = fmt.Sprintf("doc-%d", len(candidate.Documents)+1)
	}
	candidate.Documents = append(candidate.Documents, *doc)
	return nil
}

func (m *memoryAdmissionsStore) VerifyDocument(ctx context.Context, candidateID, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	candidate, ok := m.candidates[candidateID]
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

func (m *memoryAdmissionsStore) FindStudentByCandidate(ctx context.Context, candidateID string) (*models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.students {
		if s.CandidateID == candidateID {
			return s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryAdmissionsStore) CreateStudentWithInvoice(ctx context.Context, student *models.Student, invoice *models.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	student.ID = fmt.Sprintf("stu-%d", len(m.students)+1)
	invoice.ID = fmt.Sprintf("inv-%d", len(m.invoices)+1)
	invoice.StudentID = student.ID
	m.students = append(m.students, student)
	m.invoices = append(m.invoices, invoice)
	return nil
}

func newCandidateHandlerFixture() (*CandidateHandler, *memoryAdmissionsStore) {
	store := newMemoryAdmissionsStore()
	locks := service.NewCandidateLocks()
	candidates := service.NewCandidateService(store, nil, nil, nil, 0, nil, zap.NewNop())
	pipeline := service.NewPipelineService(store, locks, nil, nil, nil, zap.NewNop())
	enrollment := service.NewEnrollmentService(store, store, locks, nil, nil, nil, service.EnrollmentConfig{TuitionDeposit: 500, InvoiceDueDays: 14}, zap.NewNop())
	export := service.NewExportService(store, zap.NewNop())
	return NewCandidateHandler(candidates, pipeline, enrollment, export), store
}

func testContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Buffer
	if body == nil {
		reader = bytes.NewBuffer(nil)
	} else {
		reader = bytes.NewBuffer(body)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin})
	return c, w
}

func TestCandidateHandlerRegister(t *testing.T) {
	handler, store := newCandidateHandlerFixture()

	payload, _ := json.Marshal(service.RegisterCandidateRequest{
		FullName:        "Zoe Winters",
		RequestedLevel:  "Kindergarten",
		GuardianContact: "mara@example.com",
	})
	c, w := testContext(t, http.MethodPost, "/candidates", payload)

	handler.Register(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, store.candidates, 1)

	var envelope struct {
		Data models.Candidate `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "Zoe Winters", envelope.Data.FullName)
	assert.Equal(t, models.StageInquiry, envelope.Data.Stage)
}

func TestCandidateHandlerRegisterInvalidPayload(t *testing.T) {
	handler, store := newCandidateHandlerFixture()

	c, w := testContext(t, http.MethodPost, "/candidates", []byte(`{"full_name":`))

	handler.Register(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, store.candidates)
}

func TestCandidateHandlerRegisterMissingGuardianContact(t *testing.T) {
	handler, store := newCandidateHandlerFixture()

	payload, _ := json.Marshal(service.RegisterCandidateRequest{
		FullName:       "Zoe Winters",
		RequestedLevel: "Kindergarten",
	})
	c, w := testContext(t, http.MethodPost, "/candidates", payload)

	handler.Register(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, store.candidates)
}

func TestCandidateHandlerListUnknownStage(t *testing.T) {
	handler, _ := newCandidateHandlerFixture()

	c, w := testContext(t, http.MethodGet, "/candidates?stage=WAITLISTED", nil)

	handler.List(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCandidateHandlerAdvanceToEnrollmentIsRejected(t *testing.T) {
	handler, store := newCandidateHandlerFixture()
	require.NoError(t, store.Create(context.Background(), &models.Candidate{ID: "cand-1", Stage: models.StageOffered}))

	// Enrollment is reachable only through finalize; a plain advance from
	// Offered must not touch the terminal stage.
	c, w := testContext(t, http.MethodPost, "/candidates/cand-1/advance", nil)
	c.Params = gin.Params{{Key: "id", Value: "cand-1"}}
	handler.Advance(c)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	candidate, err := store.FindByID(context.Background(), "cand-1")
	require.NoError(t, err)
	require.Equal(t, models.StageOffered, candidate.Stage)
}

func TestCandidateHandlerFinalize(t *testing.T) {
	handler, store := newCandidateHandlerFixture()
	require.NoError(t, store.Create(context.Background(), &models.Candidate{
		ID:              "cand-1",
		FullName:        "Zoe Winters",
		RequestedLevel:  "Kindergarten",
		GuardianContact: "mara@example.com",
		Stage:           models.StageOffered,
	}))

	c, w := testContext(t, http.MethodPost, "/candidates/cand-1/finalize", nil)
	c.Params = gin.Params{{Key: "id", Value: "cand-1"}}

	handler.Finalize(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, store.students, 1)
	require.Len(t, store.invoices, 1)
	assert.Equal(t, models.StageEnrolled, store.candidates["cand-1"].Stage)

	c, w = testContext(t, http.MethodPost, "/candidates/cand-1/finalize", nil)
	c.Params = gin.Params{{Key: "id", Value: "cand-1"}}
	handler.Finalize(c)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Len(t, store.students, 1)
}

func TestCandidateHandlerFinalizeNotOffered(t *testing.T) {
	handler, store := newCandidateHandlerFixture()
	require.NoError(t, store.Create(context.Background(), &models.Candidate{ID: "cand-1", Stage: models.StageInquiry, GuardianContact: "g"}))

	c, w := testContext(t, http.MethodPost, "/candidates/cand-1/finalize", nil)
	c.Params = gin.Params{{Key: "id", Value: "cand-1"}}

	handler.Finalize(c)
	require.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Empty(t, store.students)
}

func TestCandidateHandlerExportCSV(t *testing.T) {
	handler, store := newCandidateHandlerFixture()
	require.NoError(t, store.Create(context.Background(), &models.Candidate{
		ID: "cand-1", FullName: "Zoe Winters", RequestedLevel: "Kindergarten",
		GuardianContact: "mara@example.com", Stage: models.StageOffered,
	}))

	c, w := testContext(t, http.MethodGet, "/candidates/export?format=csv", nil)

	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Body.String(), "Zoe Winters")
}
