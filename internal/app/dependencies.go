package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-jasa/internal/advertising"
	"github.com/noah-isme/backend-jasa/internal/config"
	"github.com/noah-isme/backend-jasa/internal/credit"
	"github.com/noah-isme/backend-jasa/internal/events"
	"github.com/noah-isme/backend-jasa/internal/notify"
	"github.com/noah-isme/backend-jasa/internal/obs"
	"github.com/noah-isme/backend-jasa/internal/pricing"
	"github.com/noah-isme/backend-jasa/internal/resilience"
	"github.com/noah-isme/backend-jasa/migrations"
)

// Dependencies enumerates the services shared by the API and the worker.
type Dependencies struct {
	DB      *pgxpool.Pool
	Redis   *redis.Client
	Events  *events.Bus
	Pricing *pricing.Calculator
	Credits *credit.Service
	Ads     *advertising.Service
}

// Build wires the domain services on top of an open pool and redis client.
func Build(cfg *config.Config, pool *pgxpool.Pool, rdb *redis.Client, logger zerolog.Logger) (*Dependencies, error) {
	calc, err := pricing.NewCalculator(cfg.Pricing)
	if err != nil {
		return nil, fmt.Errorf("pricing: %w", err)
	}
	busLogger := logger.With().Str("component", "events").Logger()
	bus := &events.Bus{
		Store: events.PGStore{Pool: pool},
		Notifiers: []events.Notifier{
			events.Guarded{
				Notifier: notify.SellerNotifier{Store: notify.PGStore{Pool: pool}, Enabled: true},
				Breaker:  notifyBreaker(logger),
			},
		},
		Logger: &busLogger,
	}
	credits := &credit.Service{
		Store:       credit.NewPGStore(pool),
		Events:      bus,
		PromoAmount: cfg.LaunchPromoAmount,
		PromoMonths: cfg.LaunchPromoMonths,
		Logger:      logger.With().Str("component", "credit").Logger(),
	}
	ads := &advertising.Service{
		Store:   advertising.NewPGStore(pool),
		Pricing: calc,
		Events:  bus,
		Bank: advertising.BankAccount{
			Name:   cfg.BankName,
			Number: cfg.BankAccount,
			Holder: cfg.BankHolder,
		},
		TransferDeadline: cfg.BankTransferDeadline,
		Logger:           logger.With().Str("component", "advertising").Logger(),
	}
	return &Dependencies{
		DB:      pool,
		Redis:   rdb,
		Events:  bus,
		Pricing: calc,
		Credits: credits,
		Ads:     ads,
	}, nil
}

func notifyBreaker(logger zerolog.Logger) *resilience.Breaker {
	b := resilience.NewBreaker("seller_notifications", 5, 0.5, 30*time.Second)
	b.Logger = logger.With().Str("component", "breaker").Logger()
	return b
}

// OpenPool connects to Postgres with query tracing and slow query logging enabled.
func OpenPool(ctx context.Context, databaseURL, applicationName string, logger zerolog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	dbLogger := logger.With().Str("component", "db").Logger()
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{Logger: &dbLogger, SlowQuery: 250 * time.Millisecond}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// OpenRedis connects to Redis and installs OpenTelemetry hooks.
func OpenRedis(ctx context.Context, redisURL string, withMetrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if withMetrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewMigrator builds a migrator over the embedded SQL files.
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, pgx5URL(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	return m, nil
}

// RunMigrations applies every pending migration.
func RunMigrations(m *migrate.Migrate) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// RollbackMigrations reverts the last steps migrations.
func RollbackMigrations(m *migrate.Migrate, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// pgx5URL swaps the postgres scheme for the one the pgx/v5 migrate driver registers.
func pgx5URL(databaseURL string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(databaseURL, scheme); ok {
			return "pgx5://" + rest
		}
	}
	return databaseURL
}

// ReadinessChecker pings Postgres and Redis for the readiness probe.
type ReadinessChecker struct {
	DB    *pgxpool.Pool
	Redis *redis.Client
}

func (c ReadinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.DB == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.DB.Ping(ctx)
}

func (c ReadinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.Redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Redis.Ping(ctx).Err()
}
