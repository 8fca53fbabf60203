package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/profepulse/profepulse-api/internal/dto"
	"github.com/profepulse/profepulse-api/internal/service"
	appErrors "github.com/profepulse/profepulse-api/pkg/errors"
	"github.com/profepulse/profepulse-api/pkg/response"
)

type reviewCoordinator interface {
	Create(ctx context.Context, professorID string, actor service.Actor, req dto.CreateReviewRequest) service.ReviewOutcome
	Edit(ctx context.Context, reviewID string, actor service.Actor, req dto.UpdateReviewRequest) service.ReviewOutcome
	Delete(ctx context.Context, reviewID string, actor service.Actor) service.ReviewOutcome
}

// ReviewHandler exposes review mutations.
type ReviewHandler struct {
	reviews reviewCoordinator
}

// NewReviewHandler constructs a review handler.
func NewReviewHandler(reviews reviewCoordinator) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// Create godoc
// @Summary Publish a review
// @Description Checks the account status, moderates the content and recomputes the professor rating
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Professor ID"
// @Param payload body dto.CreateReviewRequest true "Review payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /professors/{id}/reviews [post]
func (h *ReviewHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}
	writeOutcome(c, http.StatusCreated, h.reviews.Create(c.Request.Context(), c.Param("id"), actor, req))
}

// Update godoc
// @Summary Edit a review
// @Description Only the author or an administrator may edit. Changed content is moderated again; administrators may skip that with re_moderate=false.
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Review ID"
// @Param payload body dto.UpdateReviewRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reviews/{id} [put]
func (h *ReviewHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}
	writeOutcome(c, http.StatusOK, h.reviews.Edit(c.Request.Context(), c.Param("id"), actor, req))
}

// Delete godoc
// @Summary Delete a review
// @Tags Reviews
// @Produce json
// @Param id path string true "Review ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reviews/{id} [delete]
func (h *ReviewHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	writeOutcome(c, http.StatusOK, h.reviews.Delete(c.Request.Context(), c.Param("id"), actor))
}

func writeOutcome(c *gin.Context, status int, outcome service.ReviewOutcome) {
	result := outcome.Result()
	if !outcome.Success {
		response.Failure(c, outcome.Err, result)
		return
	}
	response.Message(c, status, result, outcome.Message)
}
