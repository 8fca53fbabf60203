package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/profepulse/profepulse-api/internal/dto"
	"github.com/profepulse/profepulse-api/internal/models"
	"github.com/profepulse/profepulse-api/internal/service"
	appErrors "github.com/profepulse/profepulse-api/pkg/errors"
	"github.com/profepulse/profepulse-api/pkg/response"
)

type accountModerator interface {
	Suspend(ctx context.Context, actor service.Actor, userID string, meta service.LoginMeta) (*models.AccountStatusView, error)
	Reactivate(ctx context.Context, actor service.Actor, userID string, meta service.LoginMeta) (*models.AccountStatusView, error)
}

type moderationSwitch interface {
	Switch(name string) error
	Active() string
	Available() []string
}

type reportService interface {
	ProfessorRanking(ctx context.Context, rankingKey, format string) (*service.Report, error)
	Totals(ctx context.Context) (*models.SiteTotals, error)
}

type metricsSnapshotter interface {
	Snapshot() models.MetricsSnapshot
}

// AdminHandler exposes administrator operations that do not belong to a catalogue resource.
type AdminHandler struct {
	accounts   accountModerator
	moderation moderationSwitch
	reports    reportService
	charts     chartService
	metrics    metricsSnapshotter
	validator  *validator.Validate
}

// AdminHandlerDeps groups the collaborators of AdminHandler.
type AdminHandlerDeps struct {
	Accounts   accountModerator
	Moderation moderationSwitch
	Reports    reportService
	Charts     chartService
	Metrics    metricsSnapshotter
	Validator  *validator.Validate
}

// NewAdminHandler constructs an admin handler.
func NewAdminHandler(deps AdminHandlerDeps) *AdminHandler {
	return &AdminHandler{
		accounts:   deps.Accounts,
		moderation: deps.Moderation,
		reports:    deps.Reports,
		charts:     deps.Charts,
		metrics:    deps.Metrics,
		validator:  deps.Validator,
	}
}

// Suspend godoc
// @Summary Suspend an account
// @Tags Admin
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /admin/accounts/{id}/suspend [post]
func (h *AdminHandler) Suspend(c *gin.Context) {
	h.changeStatus(c, h.accounts.Suspend)
}

// Reactivate godoc
// @Summary Reactivate an account
// @Tags Admin
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /admin/accounts/{id}/reactivate [post]
func (h *AdminHandler) Reactivate(c *gin.Context) {
	h.changeStatus(c, h.accounts.Reactivate)
}

func (h *AdminHandler) changeStatus(c *gin.Context, change func(context.Context, service.Actor, string, service.LoginMeta) (*models.AccountStatusView, error)) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	view, err := change(c.Request.Context(), actor, c.Param("id"), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Moderation godoc
// @Summary Active moderation strategy
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/moderation [get]
func (h *AdminHandler) Moderation(c *gin.Context) {
	response.JSON(c, http.StatusOK, dto.ModerationStrategyResponse{Strategy: h.moderation.Active(), Available: h.moderation.Available()}, nil)
}

// SwitchModeration godoc
// @Summary Switch the moderation strategy
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.ModerationStrategyRequest true "Strategy"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/moderation [put]
func (h *AdminHandler) SwitchModeration(c *gin.Context) {
	var req dto.ModerationStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnknownStrategy, "unknown moderation strategy: "+req.Strategy))
		return
	}
	if err := h.moderation.Switch(req.Strategy); err != nil {
		response.Error(c, err)
		return
	}
	h.Moderation(c)
}

// RankingReportCSV godoc
// @Summary Professor ranking as CSV
// @Tags Admin
// @Produce text/csv
// @Param ranking query string false "Ranking strategy key"
// @Success 200 {file} file
// @Router /admin/reports/professors.csv [get]
func (h *AdminHandler) RankingReportCSV(c *gin.Context) {
	h.rankingReport(c, service.ReportFormatCSV)
}

// RankingReportPDF godoc
// @Summary Professor ranking as PDF
// @Tags Admin
// @Produce application/pdf
// @Param ranking query string false "Ranking strategy key"
// @Success 200 {file} file
// @Router /admin/reports/professors.pdf [get]
func (h *AdminHandler) RankingReportPDF(c *gin.Context) {
	h.rankingReport(c, service.ReportFormatPDF)
}

func (h *AdminHandler) rankingReport(c *gin.Context, format string) {
	report, err := h.reports.ProfessorRanking(c.Request.Context(), c.Query("ranking"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, report.ContentType, report.Filename, report.Body)
}

// Totals godoc
// @Summary Global counters
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/stats [get]
func (h *AdminHandler) Totals(c *gin.Context) {
	totals, err := h.reports.Totals(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, totals, nil)
}

// Scatter godoc
// @Summary Average rating against review count for every professor
// @Tags Charts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/charts/scatter [get]
func (h *AdminHandler) Scatter(c *gin.Context) {
	chart, err := h.charts.Build(c.Request.Context(), models.ChartScatter, "")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, chart, nil)
}

// Metrics godoc
// @Summary Metrics snapshot
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/metrics [get]
func (h *AdminHandler) Metrics(c *gin.Context) {
	if h.metrics == nil {
		response.JSON(c, http.StatusOK, models.MetricsSnapshot{}, nil)
		return
	}
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}
