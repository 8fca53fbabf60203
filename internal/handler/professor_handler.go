package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/profepulse/profepulse-api/internal/dto"
	"github.com/profepulse/profepulse-api/internal/middleware"
	"github.com/profepulse/profepulse-api/internal/models"
	"github.com/profepulse/profepulse-api/internal/service"
	appErrors "github.com/profepulse/profepulse-api/pkg/errors"
	"github.com/profepulse/profepulse-api/pkg/response"
)

// maxImportSize bounds CSV uploads.
const maxImportSize = 5 << 20

type professorService interface {
	List(ctx context.Context, filter models.ProfessorFilter) (*service.ProfessorPage, bool, error)
	Get(ctx context.Context, id string) (*models.Professor, error)
	Create(ctx context.Context, req dto.ProfessorRequest) (*models.Professor, error)
	Update(ctx context.Context, id string, req dto.ProfessorRequest) (*models.Professor, error)
	Delete(ctx context.Context, id string) error
	Recompute(ctx context.Context, id string) (models.Aggregate, error)
	ImportCSV(ctx context.Context, r io.Reader) (*dto.ImportResult, error)
}

type professorReviewReader interface {
	ListForProfessor(ctx context.Context, professorID string, page, size int) ([]models.ReviewView, *models.Pagination, error)
	Stats(ctx context.Context, professorID string) (*models.ProfessorStats, bool, error)
}

type chartService interface {
	Build(ctx context.Context, kind models.ChartKind, professorID string) (*models.ChartData, error)
	RenderPDF(ctx context.Context, kind models.ChartKind, professorID string) ([]byte, error)
}

// ProfessorHandler handles the professor catalogue and its read side.
type ProfessorHandler struct {
	professors professorService
	reviews    professorReviewReader
	charts     chartService
}

// NewProfessorHandler constructs a professor handler.
func NewProfessorHandler(professors professorService, reviews professorReviewReader, charts chartService) *ProfessorHandler {
	return &ProfessorHandler{professors: professors, reviews: reviews, charts: charts}
}

// List godoc
// @Summary List professors
// @Description Filtered, ranked and paginated professor listing
// @Tags Professors
// @Produce json
// @Param search query string false "Name or department keyword"
// @Param department query string false "Department"
// @Param subject query string false "Subject name"
// @Param ranking query string false "Ranking strategy key"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /professors [get]
func (h *ProfessorHandler) List(c *gin.Context) {
	page, limit := pageParams(c)
	filter := models.ProfessorFilter{
		Search:     strings.TrimSpace(c.Query("search")),
		Department: strings.TrimSpace(c.Query("department")),
		Subject:    strings.TrimSpace(c.Query("subject")),
		Ranking:    strings.TrimSpace(c.Query("ranking")),
		Page:       page,
		PageSize:   limit,
	}
	result, hit, err := h.professors.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	middleware.SetRanking(c, result.Ranking)
	pagination := result.Pagination
	response.JSON(c, http.StatusOK, result.Items, &pagination, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get professor by id
// @Tags Professors
// @Produce json
// @Param id path string true "Professor ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /professors/{id} [get]
func (h *ProfessorHandler) Get(c *gin.Context) {
	professor, err := h.professors.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, professor, nil)
}

// Reviews godoc
// @Summary List approved reviews of a professor
// @Tags Reviews
// @Produce json
// @Param id path string true "Professor ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /professors/{id}/reviews [get]
func (h *ProfessorHandler) Reviews(c *gin.Context) {
	page, limit := pageParams(c)
	reviews, pagination, err := h.reviews.ListForProfessor(c.Request.Context(), c.Param("id"), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reviews, pagination)
}

// Stats godoc
// @Summary Professor statistics
// @Description Total approved reviews, stored average, ratings per period and star distribution
// @Tags Professors
// @Produce json
// @Param id path string true "Professor ID"
// @Success 200 {object} response.Envelope
// @Router /professors/{id}/stats [get]
func (h *ProfessorHandler) Stats(c *gin.Context) {
	stats, hit, err := h.reviews.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}

// Chart godoc
// @Summary Professor chart
// @Description Chart data of the given kind (bar, line). format=pdf renders bar charts as PDF.
// @Tags Charts
// @Produce json
// @Produce application/pdf
// @Param id path string true "Professor ID"
// @Param kind path string true "Chart kind"
// @Param format query string false "json or pdf"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /professors/{id}/charts/{kind} [get]
func (h *ProfessorHandler) Chart(c *gin.Context) {
	kind := models.ChartKind(c.Param("kind"))
	if strings.EqualFold(c.Query("format"), "pdf") {
		body, err := h.charts.RenderPDF(c.Request.Context(), kind, c.Param("id"))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.File(c, "application/pdf", "chart-"+string(kind)+"-"+c.Param("id")+".pdf", body)
		return
	}
	chart, err := h.charts.Build(c.Request.Context(), kind, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, chart, nil)
}

// Create godoc
// @Summary Create professor
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.ProfessorRequest true "Professor payload"
// @Success 201 {object} response.Envelope
// @Router /admin/professors [post]
func (h *ProfessorHandler) Create(c *gin.Context) {
	var req dto.ProfessorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	professor, err := h.professors.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, professor)
}

// Update godoc
// @Summary Update professor
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Professor ID"
// @Param payload body dto.ProfessorRequest true "Professor payload"
// @Success 200 {object} response.Envelope
// @Router /admin/professors/{id} [put]
func (h *ProfessorHandler) Update(c *gin.Context) {
	var req dto.ProfessorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	professor, err := h.professors.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, professor, nil)
}

// Delete godoc
// @Summary Delete professor and its reviews
// @Tags Admin
// @Param id path string true "Professor ID"
// @Success 204
// @Router /admin/professors/{id} [delete]
func (h *ProfessorHandler) Delete(c *gin.Context) {
	if err := h.professors.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Recompute godoc
// @Summary Recompute a professor's rating from its approved reviews
// @Tags Admin
// @Produce json
// @Param id path string true "Professor ID"
// @Success 200 {object} response.Envelope
// @Router /admin/professors/{id}/recompute [post]
func (h *ProfessorHandler) Recompute(c *gin.Context) {
	agg, err := h.professors.Recompute(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, agg, nil)
}

// Import godoc
// @Summary Bulk import professors from CSV
// @Description Rows are name,department[,subject;subject]. The first row is a header.
// @Tags Admin
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Success 200 {object} response.Envelope
// @Router /admin/professors/import [post]
func (h *ProfessorHandler) Import(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	if header.Size > maxImportSize {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file exceeds 5 MB"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "cannot read file"))
		return
	}
	defer file.Close()

	result, err := h.professors.ImportCSV(c.Request.Context(), file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
