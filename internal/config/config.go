package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/backend-jasa/internal/pricing"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	JWTRole            string
	CORSAllowedOrigins []string

	Pricing pricing.Policy

	BankName             string
	BankAccount          string
	BankHolder           string
	BankTransferDeadline time.Duration

	LaunchPromoAmount int64
	LaunchPromoMonths int

	IdempotencyTTL          time.Duration
	StatsCacheTTL           time.Duration
	RateLimitBackend        string
	RateLimitTrackingMax    int
	RateLimitTrackingWindow time.Duration
	LockTTL                 time.Duration
	LockRetryBackoff        time.Duration
	WorkerConcurrency       int
	CronTimezone            string
	BodyLimitBytes          int64
	AuditEnabled            bool
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	policy, err := loadPricing(k)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          strings.TrimSpace(k.String("JWT_ISSUER")),
		JWTAudience:        strings.TrimSpace(k.String("JWT_AUDIENCE")),
		JWTRole:            valueOrDefault(k.String("JWT_ROLE"), "authenticated"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		Pricing: policy,

		BankName:             valueOrDefault(k.String("BANK_NAME"), "KB Kookmin"),
		BankAccount:          strings.TrimSpace(k.String("BANK_ACCOUNT")),
		BankHolder:           strings.TrimSpace(k.String("BANK_HOLDER")),
		BankTransferDeadline: parseDuration(k.String("BANK_TRANSFER_DEADLINE"), "72h"),

		LaunchPromoAmount: parseInt64(k.String("CREDIT_LAUNCH_PROMO_AMOUNT"), 600_000),
		LaunchPromoMonths: parseInt(k.String("CREDIT_LAUNCH_PROMO_MONTHS"), 6),

		IdempotencyTTL:          parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		StatsCacheTTL:           parseDuration(k.String("STATS_CACHE_TTL"), "60s"),
		RateLimitBackend:        strings.ToLower(valueOrDefault(k.String("RATE_LIMIT_BACKEND"), "sliding")),
		RateLimitTrackingMax:    parseInt(k.String("RATE_LIMIT_TRACKING_MAX"), 60),
		RateLimitTrackingWindow: parseDuration(k.String("RATE_LIMIT_TRACKING_WINDOW"), "1m"),
		LockTTL:                 parseDuration(k.String("LOCK_TTL"), "5m"),
		LockRetryBackoff:        parseDuration(k.String("LOCK_RETRY_BACKOFF"), "100ms"),
		WorkerConcurrency:       parseInt(k.String("WORKER_CONCURRENCY"), 4),
		CronTimezone:            valueOrDefault(k.String("CRON_TIMEZONE"), "Asia/Seoul"),
		BodyLimitBytes:          parseInt64(k.String("BODY_LIMIT_BYTES"), 1<<20),
		AuditEnabled:            parseBoolDefault(k.String("AUDIT_ENABLED"), true),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	switch cfg.RateLimitBackend {
	case "sliding", "fixed":
	default:
		return nil, fmt.Errorf("RATE_LIMIT_BACKEND must be sliding or fixed, got %q", cfg.RateLimitBackend)
	}
	if cfg.LaunchPromoAmount <= 0 || cfg.LaunchPromoMonths <= 0 {
		return nil, errors.New("launch promotion amount and months must be positive")
	}

	return cfg, nil
}

// loadPricing starts from the default price list, applies AD_PRICING_FILE when set, then env overrides.
func loadPricing(k *koanf.Koanf) (pricing.Policy, error) {
	policy := pricing.DefaultPolicy()

	if path := strings.TrimSpace(k.String("AD_PRICING_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return pricing.Policy{}, fmt.Errorf("read pricing file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &policy); err != nil {
			return pricing.Policy{}, fmt.Errorf("parse pricing file: %w", err)
		}
	}

	policy.BasePrice = parseInt64(k.String("AD_BASE_PRICE"), policy.BasePrice)
	policy.FloorPrice = parseInt64(k.String("AD_FLOOR_PRICE"), policy.FloorPrice)
	policy.MaxMonths = parseInt(k.String("AD_MAX_MONTHS"), policy.MaxMonths)
	policy.RoundingUnit = parseInt64(k.String("AD_ROUNDING_UNIT"), policy.RoundingUnit)
	policy.TaxRateBps = parseInt(k.String("AD_TAX_RATE_BPS"), policy.TaxRateBps)
	if terms := splitAndTrim(k.String("AD_CONTRACT_TERMS")); len(terms) > 0 {
		parsed := make([]int, 0, len(terms))
		for _, t := range terms {
			n, err := strconv.Atoi(t)
			if err != nil {
				return pricing.Policy{}, fmt.Errorf("AD_CONTRACT_TERMS: %q is not a number", t)
			}
			parsed = append(parsed, n)
		}
		policy.Terms = parsed
	}

	if err := policy.Validate(); err != nil {
		return pricing.Policy{}, err
	}
	return policy, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// Location resolves CronTimezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.CronTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseInt64(value string, fallback int64) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
