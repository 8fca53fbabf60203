package main

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/profepulse/profepulse-api/internal/repository"
	"github.com/profepulse/profepulse-api/internal/service"
	"github.com/profepulse/profepulse-api/pkg/config"
	"github.com/profepulse/profepulse-api/pkg/database"
	"github.com/profepulse/profepulse-api/pkg/export"
	"github.com/profepulse/profepulse-api/pkg/jobs"
	"github.com/profepulse/profepulse-api/pkg/moderation"
)

func buildApp(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client, metrics *service.MetricsService, mailQueue *jobs.Queue) (*app, error) {
	validate := service.NewValidator()
	tx := database.NewTransactor(db)

	users := repository.NewUserRepository(db)
	profiles := repository.NewAccountProfileRepository(db)
	pending := repository.NewPendingUserRepository(db)
	professorRepo := repository.NewProfessorRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.ProfessorTTL, logr, cfg.Cache.Enabled && redisClient != nil)

	ranking, err := service.NewRankingService(cfg.Ranking.DefaultStrategy)
	if err != nil {
		return nil, fmt.Errorf("ranking: %w", err)
	}

	moderationSvc, err := newModeration(cfg.Moderation, metrics, logr)
	if err != nil {
		return nil, fmt.Errorf("moderation: %w", err)
	}

	aggregator := service.NewRatingAggregator(reviewRepo, professorRepo, subjectRepo, metrics)
	notifier := service.NewNotificationService(mailQueue, logr)
	pdf := export.NewPDFExporter()

	return &app{
		db:        db,
		users:     users,
		cacheRepo: cacheRepo,
		metrics:   metrics,
		validator: validate,
		auth: service.NewAuthService(users, validate, logr, service.AuthConfig{
			AccessTokenSecret: cfg.JWT.Secret,
			AccessTokenExpiry: cfg.JWT.Expiration,
			Issuer:            cfg.JWT.Issuer,
		}),
		accounts: service.NewAccountService(service.AccountServiceDeps{
			Tx:        tx,
			Users:     users,
			Pending:   pending,
			Profiles:  profiles,
			Notifier:  notifier,
			Validator: validate,
			Logger:    logr,
			CodeTTL:   cfg.Registration.CodeTTL,
		}),
		professors: service.NewProfessorService(service.ProfessorServiceDeps{
			Tx:         tx,
			Professors: professorRepo,
			Subjects:   subjectRepo,
			Reviews:    reviewRepo,
			Aggregator: aggregator,
			Ranking:    ranking,
			Cache:      cacheSvc,
			Validator:  validate,
			Logger:     logr,
		}),
		subjects: service.NewSubjectService(subjectRepo, validate, logr),
		reviews: service.NewReviewService(service.ReviewServiceDeps{
			Tx:         tx,
			Reviews:    reviewRepo,
			Professors: professorRepo,
			Subjects:   subjectRepo,
			Policy:     service.NewAccessPolicy(profiles, logr),
			Moderator:  moderationSvc,
			Aggregator: aggregator,
			Cache:      cacheSvc,
			Metrics:    metrics,
			Validator:  validate,
			Logger:     logr,
		}),
		queries:    service.NewReviewQueryService(reviewRepo, professorRepo, cacheSvc, logr),
		ranking:    ranking,
		moderation: moderationSvc,
		charts:     service.NewChartService(reviewRepo, professorRepo, professorRepo, pdf),
		reports:    service.NewReportService(professorRepo, reviewRepo, ranking, export.NewCSVExporter(export.WithBOM()), pdf, logr),
	}, nil
}

// newModeration registers the manual strategy and, when an API key is set, the automated one.
func newModeration(cfg config.ModerationConfig, metrics *service.MetricsService, logr *zap.Logger) (*service.ModerationService, error) {
	strategies := map[string]service.Moderator{
		service.ModerationManual: service.ManualModerator{},
	}
	if cfg.APIKey != "" {
		client := moderation.NewClient(moderation.Config{
			Endpoint:  cfg.Endpoint,
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			RateBurst: cfg.RateBurst,
		})
		strategies[service.ModerationAutomated] = service.NewAutomatedModerator(client)
	} else if cfg.Strategy == service.ModerationAutomated {
		return nil, fmt.Errorf("MODERATION_STRATEGY=automated requires MODERATION_API_KEY")
	}
	return service.NewModerationService(strategies, cfg.Strategy, metrics, logr)
}
