package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-admissions-api/internal/models"
	"github.com/noah-isme/sma-admissions-api/internal/service"
	appErrors "github.com/noah-isme/sma-admissions-api/pkg/errors"
	"github.com/noah-isme/sma-admissions-api/pkg/response"
)

// CandidateHandler exposes the admission pipeline endpoints.
type CandidateHandler struct {
	candidates *service.CandidateService
	pipeline   *service.PipelineService
	enrollment *service.EnrollmentService
	export     *service.ExportService
}

// NewCandidateHandler constructs CandidateHandler.
func NewCandidateHandler(
	candidates *service.CandidateService,
	pipeline *service.PipelineService,
	enrollment *service.EnrollmentService,
	export *service.ExportService,
) *CandidateHandler {
	return &CandidateHandler{
		candidates: candidates,
		pipeline:   pipeline,
		enrollment: enrollment,
		export:     export,
	}
}

// Register godoc
// @Summary Register a new candidate
// @Tags Candidates
// @Accept json
// @Produce json
// @Param payload body service.RegisterCandidateRequest true "Candidate payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /candidates [post]
func (h *CandidateHandler) Register(c *gin.Context) {
	var req service.RegisterCandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	candidate, err := h.candidates.Register(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, candidate)
}

// List godoc
// @Summary List candidates
// @Tags Candidates
// @Produce json
// @Param stage query string false "Filter by stage"
// @Param search query string false "Search by name or guardian"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /candidates [get]
func (h *CandidateHandler) List(c *gin.Context) {
	filter := models.CandidateFilter{
		Stage:     models.Stage(c.Query("stage")),
		Search:    c.Query("search"),
		Page:      parseIntQuery(c, "page", 1),
		PageSize:  parseIntQuery(c, "page_size", 20),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if filter.Stage != "" && !models.IsValidStage(filter.Stage) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown stage: "+string(filter.Stage)))
		return
	}

	candidates, pagination, cacheHit, err := h.candidates.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidates, pagination, map[string]interface{}{"cache_hit": cacheHit})
}

// Get godoc
// @Summary Get a candidate by id
// @Tags Candidates
// @Produce json
// @Param id path string true "Candidate ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /candidates/{id} [get]
func (h *CandidateHandler) Get(c *gin.Context) {
	candidate, err := h.candidates.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidate, nil)
}

// Advance godoc
// @Summary Move a candidate one stage forward
// @Tags Candidates
// @Produce json
// @Param id path string true "Candidate ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /candidates/{id}/advance [post]
func (h *CandidateHandler) Advance(c *gin.Context) {
	candidate, err := h.pipeline.Advance(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidate, nil)
}

// Revert godoc
// @Summary Move a candidate one stage back
// @Tags Candidates
// @Produce json
// @Param id path string true "Candidate ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /candidates/{id}/revert [post]
func (h *CandidateHandler) Revert(c *gin.Context) {
	candidate, err := h.pipeline.Revert(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidate, nil)
}

// Finalize godoc
// @Summary Convert an offered candidate into an enrolled student
// @Tags Candidates
// @Produce json
// @Param id path string true "Candidate ID"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /candidates/{id}/finalize [post]
func (h *CandidateHandler) Finalize(c *gin.Context) {
	result, err := h.enrollment.Finalize(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// AttachDocument godoc
// @Summary Attach a document record to a candidate
// @Tags Candidates
// @Accept json
// @Produce json
// @Param id path string true "Candidate ID"
// @Param payload body service.AttachDocumentRequest true "Document payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /candidates/{id}/documents [post]
func (h *CandidateHandler) AttachDocument(c *gin.Context) {
	var req service.AttachDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	doc, err := h.candidates.AttachDocument(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// VerifyDocument godoc
// @Summary Mark a candidate document as verified
// @Tags Candidates
// @Produce json
// @Param id path string true "Candidate ID"
// @Param docId path string true "Document ID"
// @Success 204
// @Security BearerAuth
// @Router /candidates/{id}/documents/{docId}/verify [put]
func (h *CandidateHandler) VerifyDocument(c *gin.Context) {
	if err := h.candidates.VerifyDocument(c.Request.Context(), c.Param("id"), c.Param("docId"), actorID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export the admission pipeline as CSV or PDF
// @Tags Candidates
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Param stage query string false "Filter by stage"
// @Security BearerAuth
// @Router /candidates/export [get]
func (h *CandidateHandler) Export(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportFormatCSV)))

	result, err := h.export.Pipeline(c.Request.Context(), format, models.Stage(c.Query("stage")))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+result.Filename)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
