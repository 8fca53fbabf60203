package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profepulse/profepulse-api/internal/models"
	appErrors "github.com/profepulse/profepulse-api/pkg/errors"
)

type stubValidator struct {
	claims *models.JWTClaims
}

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

type recordingAudit struct {
	logs []*models.AuditLog
}

func (r *recordingAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

type recordingObserver struct {
	paths []string
}

func (r *recordingObserver) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	r.paths = append(r.paths, method+" "+path)
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	chain := append(handlers, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/items/:id", chain...)
	return r
}

func do(r http.Handler, auth string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/items/u1", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWT(t *testing.T) {
	v := stubValidator{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleStudent}}
	r := newRouter(JWT(v))

	assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Token good").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Bearer bad").Code)
	assert.Equal(t, http.StatusOK, do(r, "Bearer good").Code)
}

func TestOptionalJWTNeverBlocks(t *testing.T) {
	var seen *models.JWTClaims
	v := stubValidator{claims: &models.JWTClaims{UserID: "u1"}}
	r := newRouter(OptionalJWT(v), func(c *gin.Context) { seen = CurrentClaims(c) })

	assert.Equal(t, http.StatusOK, do(r, "Bearer bad").Code)
	assert.Nil(t, seen)
	assert.Equal(t, http.StatusOK, do(r, "Bearer good").Code)
	require.NotNil(t, seen)
	assert.Equal(t, "u1", seen.UserID)
}

func TestRBAC(t *testing.T) {
	student := stubValidator{claims: &models.JWTClaims{UserID: "u2", Role: models.RoleStudent}}
	admin := stubValidator{claims: &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}}
	self := stubValidator{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleStudent}}

	assert.Equal(t, http.StatusForbidden, do(newRouter(JWT(student), RequireRoles(models.RoleAdmin)), "Bearer good").Code)
	assert.Equal(t, http.StatusOK, do(newRouter(JWT(admin), RequireRoles(models.RoleAdmin)), "Bearer good").Code)
	assert.Equal(t, http.StatusOK, do(newRouter(JWT(self), RBAC("ADMIN", "SELF")), "Bearer good").Code)
	assert.Equal(t, http.StatusUnauthorized, do(newRouter(RequireRoles(models.RoleAdmin)), "").Code)
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	audit := &recordingAudit{}
	v := stubValidator{claims: &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}}
	r := newRouter(JWT(v), Audit(audit, nil, models.AuditActionProfessorUpdate, "professor"))

	do(r, "Bearer good")
	do(r, "")
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "a1", *audit.logs[0].UserID)
	assert.Equal(t, "u1", *audit.logs[0].ResourceID)
	assert.Equal(t, "professor", audit.logs[0].Resource)
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	obs := &recordingObserver{}
	r := newRouter(Metrics(obs))

	do(r, "")
	assert.Equal(t, []string{"GET /items/:id"}, obs.paths)
}

func TestRateLimit(t *testing.T) {
	r := newRouter(RateLimit(0.001, 2))

	assert.Equal(t, http.StatusOK, do(r, "").Code)
	assert.Equal(t, http.StatusOK, do(r, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, "").Code)
}

func TestResponseMetaCollectsEntries(t *testing.T) {
	var meta map[string]interface{}
	r := newRouter(WithResponseMeta(), func(c *gin.Context) {
		SetCacheHit(c, true)
		SetRanking(c, "balanced")
		meta = ExtractMeta(c)
	})

	do(r, "")
	require.NotNil(t, meta)
	assert.Equal(t, true, meta["cache_hit"])
	assert.Equal(t, "balanced", meta["ranking"])
	assert.Contains(t, meta, "processing_time_ms")
}
