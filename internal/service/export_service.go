package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-admissions-api/internal/models"
	appErrors "github.com/noah-isme/sma-admissions-api/pkg/errors"
	"github.com/noah-isme/sma-admissions-api/pkg/export"
)

type exportCandidateLister interface {
	List(ctx context.Context, filter models.CandidateFilter) ([]models.Candidate, int, error)
}

// ExportFormat selects the output encoding for pipeline reports.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult carries a rendered report.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExportService renders the admission pipeline as CSV or PDF reports.
type ExportService struct {
	candidates exportCandidateLister
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	logger     *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(candidates exportCandidateLister, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		candidates: candidates,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		logger:     logger,
	}
}

// Pipeline exports candidates, optionally restricted to one stage.
func (s *ExportService) Pipeline(ctx context.Context, format ExportFormat, stage models.Stage) (*ExportResult, error) {
	if stage != "" && !models.IsValidStage(stage) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown stage: %s", stage))
	}

	filter := models.CandidateFilter{Stage: stage, PageSize: 100, SortBy: "created_at", SortOrder: "ASC"}
	var rows []map[string]string
	for page := 1; ; page++ {
		filter.Page = page
		candidates, total, err := s.candidates.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidates for export")
		}
		for _, c := range candidates {
			rows = append(rows, map[string]string{
				"Name":       c.FullName,
				"Level":      c.RequestedLevel,
				"Guardian":   c.GuardianName,
				"Stage":      string(c.Stage),
				"Fit Score":  fmt.Sprintf("%d", c.FitScore),
				"Registered": c.CreatedAt.Format("2006-01-02"),
			})
		}
		if len(rows) >= total || len(candidates) == 0 {
			break
		}
	}

	dataset := export.Dataset{
		Headers: []string{"Name", "Level", "Guardian", "Stage", "Fit Score", "Registered"},
		Rows:    rows,
	}

	stamp := time.Now().UTC().Format("20060102")
	switch ExportFormat(strings.ToLower(string(format))) {
	case ExportFormatCSV:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &ExportResult{Content: content, ContentType: "text/csv", Filename: fmt.Sprintf("admissions-pipeline-%s.csv", stamp)}, nil
	case ExportFormatPDF:
		content, err := s.pdf.Render(dataset, "Admissions Pipeline")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportResult{Content: content, ContentType: "application/pdf", Filename: fmt.Sprintf("admissions-pipeline-%s.pdf", stamp)}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}
