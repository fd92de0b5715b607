package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/backend-jasa/internal/app"
	"github.com/noah-isme/backend-jasa/internal/billing"
	"github.com/noah-isme/backend-jasa/internal/config"
	"github.com/noah-isme/backend-jasa/internal/lock"
	"github.com/noah-isme/backend-jasa/internal/obs"
)

func main() {
	cfg := config.MustLoad()

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "jasa"), nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := app.OpenPool(bootCtx, cfg.DatabaseURL, "jasa-worker", logger)
	if err != nil {
		cancel()
		logger.Fatal().Err(err).Msg("init database")
	}
	defer pool.Close()

	redisClient, err := app.OpenRedis(bootCtx, cfg.RedisURL, false, logger)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("init redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	deps, err := app.Build(cfg, pool, redisClient, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("wire services")
	}

	runner := &billing.Runner{
		Ads:     deps.Ads,
		Credits: deps.Credits,
		Locker:  lock.Locker{R: redisClient, RetryBackoff: cfg.LockRetryBackoff},
		LockTTL: cfg.LockTTL,
		Logger:  logger.With().Str("component", "billing").Logger(),
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse asynq redis uri")
	}
	asynqLogger := obs.AsynqLogger{Logger: logger}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Logger:      asynqLogger,
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Error().Err(err).Str("task", task.Type()).Msg("task failed")
		}),
	})
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: cfg.Location(),
		Logger:   asynqLogger,
	})
	if err := billing.Register(scheduler, billing.DefaultSchedule()); err != nil {
		logger.Fatal().Err(err).Msg("register schedule")
	}

	if err := srv.Start(billing.NewMux(runner)); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start scheduler")
	}

	metricsSrv := &http.Server{Addr: envOrDefault("WORKER_METRICS_ADDR", ":9091"), Handler: promhttp.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server")
		}
	}()

	logger.Info().Str("timezone", cfg.Location().String()).Msg("worker starting")
	<-ctx.Done()

	logger.Info().Msg("worker shutting down")
	scheduler.Shutdown()
	srv.Shutdown()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown metrics server")
	}
	logger.Info().Msg("worker shutdown complete")
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
