package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/profepulse/profepulse-api/internal/repository"
	"github.com/profepulse/profepulse-api/internal/service"
	"github.com/profepulse/profepulse-api/pkg/cache"
	"github.com/profepulse/profepulse-api/pkg/config"
	"github.com/profepulse/profepulse-api/pkg/database"
	"github.com/profepulse/profepulse-api/pkg/jobs"
	"github.com/profepulse/profepulse-api/pkg/logger"
	"github.com/profepulse/profepulse-api/pkg/mailer"
)

// @title ProfePulse API
// @version 1.0.0
// @description Professor reviews, ratings and rankings
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const purgeInterval = 15 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
			redisClient = nil
		}
	}

	metrics := service.NewMetricsService()
	if !cfg.Metrics.Enabled {
		metrics = nil
	}

	mailQueue, err := newMailQueue(cfg, logr, metrics)
	if err != nil {
		return err
	}
	mailQueue.Start(ctx)
	defer mailQueue.Stop()

	app, err := buildApp(cfg, logr, db, redisClient, metrics, mailQueue)
	if err != nil {
		return err
	}
	defer app.cacheRepo.Close() //nolint:errcheck

	go purgeRegistrations(ctx, app.accounts, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, logr, app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newMailQueue delivers through SMTP when configured and through the log otherwise.
func newMailQueue(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService) (*jobs.Queue, error) {
	var sender interface {
		Send(ctx context.Context, msg mailer.Message) error
	}
	m, err := mailer.New(cfg.Mail)
	switch {
	case err == nil:
		sender = m
	case errors.Is(err, mailer.ErrNotConfigured):
		if cfg.Env == config.EnvProduction {
			return nil, err
		}
		logr.Warn("smtp not configured, mails are logged only")
		sender = service.LogMailSender{Logger: logr}
	default:
		return nil, err
	}

	return jobs.NewQueue("mail", service.MailJobHandler(sender), jobs.QueueConfig{
		Workers:    cfg.Mail.Workers,
		MaxRetries: cfg.Mail.Retries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
		OnGiveUp: func(job jobs.Job, err error) {
			metrics.RecordMailFailure()
		},
	}), nil
}

func purgeRegistrations(ctx context.Context, accounts *service.AccountService, logr *zap.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := accounts.PurgeExpiredRegistrations(ctx); err != nil {
				logr.Warn("purge expired registrations failed", zap.Error(err))
			}
		}
	}
}

// app holds the wired services used by the router.
type app struct {
	db         *sqlx.DB
	users      *repository.UserRepository
	cacheRepo  *repository.CacheRepository
	metrics    *service.MetricsService
	validator  *validator.Validate
	auth       *service.AuthService
	accounts   *service.AccountService
	professors *service.ProfessorService
	subjects   *service.SubjectService
	reviews    *service.ReviewService
	queries    *service.ReviewQueryService
	ranking    *service.RankingService
	moderation *service.ModerationService
	charts     *service.ChartService
	reports    *service.ReportService
}
