package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/profepulse/profepulse-api/internal/middleware"
	"github.com/profepulse/profepulse-api/internal/models"
	"github.com/profepulse/profepulse-api/internal/service"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.CurrentClaims(c)
}

// actorFromContext maps the token claims to the service level actor.
func actorFromContext(c *gin.Context) (service.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		return service.Actor{}, false
	}
	return service.Actor{UserID: claims.UserID, IsAdmin: claims.Role == models.RoleAdmin}, true
}

func requestMeta(c *gin.Context) service.LoginMeta {
	return service.LoginMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

// pageParams reads page and limit; invalid values fall back to the service defaults.
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return page, limit
}
