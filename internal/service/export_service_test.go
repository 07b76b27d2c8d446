package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-admissions-api/internal/models"
	appErrors "github.com/noah-isme/sma-admissions-api/pkg/errors"
)

func TestExportServicePipelineCSV(t *testing.T) {
	store := newFakeCandidateStore(&models.Candidate{
		ID:              "cand-1",
		FullName:        "Zoe Winters",
		RequestedLevel:  "Kindergarten",
		GuardianName:    "Mara Winters",
		GuardianContact: "mara@example.com",
		FitScore:        75,
		Stage:           models.StageOffered,
		CreatedAt:       time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC),
	})
	svc := NewExportService(store, zap.NewNop())

	result, err := svc.Pipeline(context.Background(), ExportFormatCSV, "")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Contains(t, result.Filename, ".csv")
	content := string(result.Content)
	assert.Contains(t, content, "Name,Level,Guardian,Stage,Fit Score,Registered")
	assert.Contains(t, content, "Zoe Winters,Kindergarten,Mara Winters,OFFERED,75,2026-02-14")
}

func TestExportServicePipelinePDF(t *testing.T) {
	store := newFakeCandidateStore(&models.Candidate{ID: "cand-1", FullName: "Zoe Winters", Stage: models.StageInquiry})
	svc := NewExportService(store, zap.NewNop())

	result, err := svc.Pipeline(context.Background(), ExportFormatPDF, "")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.NotEmpty(t, result.Content)
}

func TestExportServicePipelineUnknownStage(t *testing.T) {
	svc := NewExportService(newFakeCandidateStore(), zap.NewNop())

	_, err := svc.Pipeline(context.Background(), ExportFormatCSV, "WAITLISTED")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestExportServicePipelineUnknownFormat(t *testing.T) {
	svc := NewExportService(newFakeCandidateStore(), zap.NewNop())

	_, err := svc.Pipeline(context.Background(), "xlsx", "")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
