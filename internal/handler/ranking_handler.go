package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/profepulse/profepulse-api/internal/models"
	"github.com/profepulse/profepulse-api/pkg/response"
)

type rankingCatalog interface {
	Available() []models.RankingInfo
	Default() string
}

// RankingHandler lists the ranking strategies.
type RankingHandler struct {
	rankings rankingCatalog
}

// NewRankingHandler constructs a ranking handler.
func NewRankingHandler(rankings rankingCatalog) *RankingHandler {
	return &RankingHandler{rankings: rankings}
}

// List godoc
// @Summary Available ranking strategies
// @Tags Professors
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rankings [get]
func (h *RankingHandler) List(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.rankings.Available(), nil, map[string]interface{}{"default": h.rankings.Default()})
}
