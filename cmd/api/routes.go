package main

import (
	"context"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/profepulse/profepulse-api/api/swagger"
	"github.com/profepulse/profepulse-api/internal/handler"
	"github.com/profepulse/profepulse-api/internal/middleware"
	"github.com/profepulse/profepulse-api/internal/models"
	"github.com/profepulse/profepulse-api/pkg/config"
	"github.com/profepulse/profepulse-api/pkg/logger"
	corsmiddleware "github.com/profepulse/profepulse-api/pkg/middleware/cors"
	reqidmiddleware "github.com/profepulse/profepulse-api/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, logr *zap.Logger, a *app) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(a.metrics))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(a.metrics, map[string]handler.Pinger{
		"postgres": a.db,
		"redis":    handler.PingFunc(func(ctx context.Context) error { return a.cacheRepo.Ping(ctx) }),
	})
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(a.auth, a.accounts, a.queries)
	professorHandler := handler.NewProfessorHandler(a.professors, a.queries, a.charts)
	reviewHandler := handler.NewReviewHandler(a.reviews)
	subjectHandler := handler.NewSubjectHandler(a.subjects)
	rankingHandler := handler.NewRankingHandler(a.ranking)
	adminHandler := handler.NewAdminHandler(handler.AdminHandlerDeps{
		Accounts:   a.accounts,
		Moderation: a.moderation,
		Reports:    a.reports,
		Charts:     a.charts,
		Metrics:    a.metrics,
		Validator:  a.validator,
	})

	requireAuth := middleware.JWT(a.auth)
	reviewLimit := middleware.RateLimit(cfg.RateLimit.ReviewWrites, cfg.RateLimit.ReviewBurst)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(a.users, logr, action, resource)
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/confirm", authHandler.Confirm)
	auth.POST("/login", authHandler.Login)

	me := api.Group("/me", requireAuth)
	me.GET("", authHandler.Me)
	me.GET("/status", authHandler.Status)
	me.GET("/reviews", authHandler.MyReviews)

	api.GET("/professors", professorHandler.List)
	api.GET("/professors/:id", professorHandler.Get)
	api.GET("/professors/:id/reviews", professorHandler.Reviews)
	api.GET("/professors/:id/stats", professorHandler.Stats)
	api.GET("/professors/:id/charts/:kind", professorHandler.Chart)
	api.POST("/professors/:id/reviews", requireAuth, reviewLimit, reviewHandler.Create)

	api.PUT("/reviews/:id", requireAuth, reviewLimit, reviewHandler.Update)
	api.DELETE("/reviews/:id", requireAuth, reviewHandler.Delete)

	api.GET("/subjects", subjectHandler.List)
	api.GET("/subjects/:id", subjectHandler.Get)
	api.GET("/rankings", rankingHandler.List)

	admin := api.Group("/admin", requireAuth, middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/professors", audit(models.AuditActionProfessorCreate, "professor"), professorHandler.Create)
	admin.PUT("/professors/:id", audit(models.AuditActionProfessorUpdate, "professor"), professorHandler.Update)
	admin.DELETE("/professors/:id", audit(models.AuditActionProfessorDelete, "professor"), professorHandler.Delete)
	admin.POST("/professors/import", audit(models.AuditActionProfessorImport, "professor"), professorHandler.Import)
	admin.POST("/professors/:id/recompute", professorHandler.Recompute)
	admin.POST("/subjects", subjectHandler.Create)
	admin.POST("/accounts/:id/suspend", adminHandler.Suspend)
	admin.POST("/accounts/:id/reactivate", adminHandler.Reactivate)
	admin.GET("/moderation", adminHandler.Moderation)
	admin.PUT("/moderation", audit(models.AuditActionModerationSwitch, "moderation"), adminHandler.SwitchModeration)
	admin.GET("/reports/professors.csv", adminHandler.RankingReportCSV)
	admin.GET("/reports/professors.pdf", adminHandler.RankingReportPDF)
	admin.GET("/stats", adminHandler.Totals)
	admin.GET("/charts/scatter", adminHandler.Scatter)
	admin.GET("/metrics", adminHandler.Metrics)

	return r
}
