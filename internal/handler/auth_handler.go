package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/profepulse/profepulse-api/internal/models"
	"github.com/profepulse/profepulse-api/internal/service"
	appErrors "github.com/profepulse/profepulse-api/pkg/errors"
	"github.com/profepulse/profepulse-api/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req models.LoginRequest, meta service.LoginMeta) (*models.LoginResponse, error)
	Me(ctx context.Context, userID string) (*models.UserInfo, error)
}

type registrationService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*service.RegistrationResult, error)
	Confirm(ctx context.Context, req models.ConfirmRequest) (*models.UserInfo, error)
	Status(ctx context.Context, userID string) (*models.AccountStatusView, error)
}

type userReviewLister interface {
	ListForUser(ctx context.Context, userID string, includeUnapproved bool, page, size int) ([]models.ReviewView, *models.Pagination, error)
}

// AuthHandler wires registration, login and the current user endpoints.
type AuthHandler struct {
	auth     authService
	accounts registrationService
	reviews  userReviewLister
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(auth authService, accounts registrationService, reviews userReviewLister) *AuthHandler {
	return &AuthHandler{auth: auth, accounts: accounts, reviews: reviews}
}

// Register godoc
// @Summary Start registration
// @Description Stores a pending account and mails a confirmation code
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Registration payload"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}
	res, err := h.accounts.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusAccepted, res, "A confirmation code was sent to your e-mail address.")
}

// Confirm godoc
// @Summary Confirm registration
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.ConfirmRequest true "Confirmation payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/confirm [post]
func (h *AuthHandler) Confirm(c *gin.Context) {
	var req models.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid confirmation payload"))
		return
	}
	user, err := h.accounts.Confirm(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate user by email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Me godoc
// @Summary Get current user
// @Description Returns the authenticated user's info
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	info, err := h.auth.Me(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil)
}

// Status godoc
// @Summary Get the account status of the current user
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/status [get]
func (h *AuthHandler) Status(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	view, err := h.accounts.Status(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// MyReviews godoc
// @Summary List the reviews of the current user
// @Tags Reviews
// @Produce json
// @Param include_unapproved query bool false "Include reviews awaiting approval"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /me/reviews [get]
func (h *AuthHandler) MyReviews(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	includeUnapproved, _ := strconv.ParseBool(c.DefaultQuery("include_unapproved", "false"))
	page, limit := pageParams(c)
	reviews, pagination, err := h.reviews.ListForUser(c.Request.Context(), claims.UserID, includeUnapproved, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reviews, pagination)
}
