package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/clientcheck/trust-system/internal/api"
	"github.com/clientcheck/trust-system/internal/core/service"
	"github.com/clientcheck/trust-system/internal/infrastructure/config"
	mongodb "github.com/clientcheck/trust-system/internal/infrastructure/db/mongo"
	redisdb "github.com/clientcheck/trust-system/internal/infrastructure/db/redis"
	"github.com/clientcheck/trust-system/internal/infrastructure/queue"
	"github.com/clientcheck/trust-system/pkg/logger"
)

func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}
	defer func() {
		_ = mongoClient.Disconnect(context.Background())
	}()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() {
		_ = rdb.Close()
	}()

	// --- Repositories ---
	counterRepo := mongodb.NewCounterRepository(db)
	reviewRepo := mongodb.NewReviewRepository(db)
	assessmentRepo := mongodb.NewAssessmentRepository(db)
	clientRepo := mongodb.NewClientRepository(db)
	auditRepo := mongodb.NewAuditRepository(db)
	authRepo := mongodb.NewAuthRepository(db)

	for name, ensure := range map[string]func(context.Context) error{
		"rate_windows":   counterRepo.EnsureIndexes,
		"reviews":        reviewRepo.EnsureIndexes,
		"ai_assessments": assessmentRepo.EnsureIndexes,
		"clients":        clientRepo.EnsureIndexes,
		"auth_users":     authRepo.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			log.Fatal().Err(err).Str("collection", name).Msg("index creation failed")
		}
	}

	// --- Services ---
	policyCache := redisdb.NewPolicyCache(rdb, service.StaticPolicyProvider{}, cfg.Limiter.PolicyCacheTTL)
	limiter := service.NewRateLimiter(counterRepo, policyCache, auditRepo, log)
	limiter.StartCleanup(ctx, cfg.Limiter.CleanupInterval)

	trust := service.NewTrustService(reviewRepo, assessmentRepo, clientRepo, auditRepo, log)
	moderation := service.NewModerationService(reviewRepo, clientRepo, auditRepo, trust, log)
	auth := service.NewAuthService(authRepo, limiter, cfg.JWTSecret, 24*time.Hour)

	dispatcher := queue.NewDispatcher(cfg.Workers.AssessmentWorkers, trust, log)
	dispatcher.Start(ctx)

	// --- HTTP ---
	e := api.NewRouter(db, rdb, api.RouterDeps{
		Auth:       auth,
		Moderation: moderation,
		Trust:      trust,
		Limiter:    limiter,
		Clients:    clientRepo,
		Dispatcher: dispatcher,
		JWTSecret:  cfg.JWTSecret,
		Logger:     log,
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil {
			log.Info().Err(err).Msg("http server stopped")
		}
	}()

	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("trust system started")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
