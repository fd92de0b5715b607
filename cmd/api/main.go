package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backend-jasa/internal/analytics"
	"github.com/noah-isme/backend-jasa/internal/app"
	"github.com/noah-isme/backend-jasa/internal/audit"
	"github.com/noah-isme/backend-jasa/internal/auth"
	"github.com/noah-isme/backend-jasa/internal/common"
	"github.com/noah-isme/backend-jasa/internal/config"
	"github.com/noah-isme/backend-jasa/internal/health"
	"github.com/noah-isme/backend-jasa/internal/notify"
	"github.com/noah-isme/backend-jasa/internal/obs"
	"github.com/noah-isme/backend-jasa/internal/ratelimit"
	"github.com/noah-isme/backend-jasa/internal/security"
)

func main() {
	cfg := config.MustLoad()

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "jasa")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", false)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:    "jasa-api",
			ServiceVersion: envOrDefault("APP_VERSION", "dev"),
			Environment:    cfg.AppEnv,
			Exporter:       envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			Endpoint:       envOrDefault("OBS_OTLP_ENDPOINT", ""),
			SamplingRatio:  envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := app.OpenPool(ctx, cfg.DatabaseURL, "jasa-api", logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init database")
	}
	defer pool.Close()

	redisClient, err := app.OpenRedis(ctx, cfg.RedisURL, metricsEnabled, logger)
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

	verifier, err := auth.NewVerifier(auth.VerifierConfig{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		Role:     cfg.JWTRole,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise token verifier")
	}

	var clickLimiter ratelimit.Limiter
	switch cfg.RateLimitBackend {
	case "fixed":
		fw, err := ratelimit.NewRedisFixedWindow(redisClient, "rl:fixed")
		if err != nil {
			logger.Fatal().Err(err).Msg("initialise rate limiter")
		}
		clickLimiter = fw
	default:
		clickLimiter = ratelimit.SlidingWindow{Client: redisClient, Prefix: "rl"}
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	auditStore := audit.PGStore{Pool: pool}
	auditRecorder := audit.HTTPRecorder{
		Service: &audit.Service{Store: auditStore, Enabled: cfg.AuditEnabled},
		OnError: func(err error) { logger.Error().Err(err).Msg("record audit log") },
	}

	handler := newRouter(routerConfig{
		Logger:         logger,
		AllowedOrigins: allowedOrigins(cfg),
		BodyLimit:      cfg.BodyLimitBytes,
		Tracing:        tracingEnabled,
		Metrics:        httpMetrics,
		Security:       security.Headers{Enable: true, HSTS: hstsFor(cfg.AppEnv)},

		Ads:           deps.Ads,
		Credits:       deps.Credits,
		Analytics:     &analytics.Service{Q: analytics.NewPGQueries(pool), R: redisClient, TTL: cfg.StatsCacheTTL, DefaultRange: 30},
		Notifications: notify.PGStore{Pool: pool},
		AuditStore:    auditStore,
		Audit:         auditRecorder,
		Auth:          auth.Middleware{Verifier: verifier, Admins: auth.PGAdmins{Pool: pool}},
		Health: health.Handler{
			Checker:      app.ReadinessChecker{DB: pool, Redis: redisClient},
			DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
			RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
		},
		Idem: common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL},

		ClickLimiter: clickLimiter,
		ClickMax:     cfg.RateLimitTrackingMax,
		ClickWindow:  cfg.RateLimitTrackingWindow,
	})

	if tracingEnabled {
		handler = otelhttp.NewHandler(handler, "jasa-api")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-sigCtx.Done():
	}

	health.SetReady(false)
	logger.Info().Msg("draining connections")
	time.Sleep(envDurationMillis("SHUTDOWN_DRAIN_DELAY_MS", 2000))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
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

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func hstsFor(env string) time.Duration {
	if env == "production" {
		return 365 * 24 * time.Hour
	}
	return 0
}
