// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database and storage backends, rate
// limiting, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "zerohunger-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	LogRedact bool // mask secrets in access logs

	// Database
	DBDriver string // sqlite|postgres|mysql
	DBPath   string // SQLite path
	DBDSN    string // postgres/mysql DSN

	// Accounts
	SessionTTL time.Duration // bearer token lifetime
	BcryptCost int           // password hashing cost
	RedisURL   string        // session store; empty keeps sessions in the database

	// Listings / uploads
	UploadDir      string // local image directory (served at /uploads)
	GCSBucket      string // when set, images go to this bucket instead
	MaxUploadBytes int64  // per-image cap on multipart uploads
	MaxBodyBytes   int64  // cap on non-multipart request bodies

	// Events
	AMQPURL      string // empty disables publishing
	AMQPExchange string

	// Dashboards
	DashboardRecentLimit  int
	DashboardPendingLimit int

	// Housekeeping
	JanitorInterval time.Duration // purge cadence for expired sessions and idempotency keys

	// Rate limiting
	RateRPS      float64 // tokens per second (>= 0)
	RateBurst    int     // bucket size (>= 1)
	OTPRateRPS   float64 // stricter limiter on OTP submission
	OTPRateBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad is Load that panics on an invalid configuration.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load builds the configuration from the environment. Unset or unparsable
// values fall back to their defaults; the normalized result is then
// validated and every violation is reported together.
func Load() (Config, error) {
	cfg := Config{
		Port:              env.str("PORT", "8080"),
		ReadTimeout:       env.dur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: env.dur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      env.dur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       env.dur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    env.integer("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(env.str("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(env.str("LOG_LEVEL", "info")),
		LogPretty:      env.flag("LOG_PRETTY", false),
		LogRedact:      env.flag("LOG_REDACT", true),
		SwaggerEnabled: env.flag("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(env.str("API_BASE_PATH", "/api/v1")),

		DBDriver: strings.ToLower(env.str("DB_DRIVER", "sqlite")),
		DBPath:   env.str("DB_PATH", "zerohunger.db"),
		DBDSN:    env.str("DB_DSN", ""),

		SessionTTL: env.dur("SESSION_TTL", 24*time.Hour),
		BcryptCost: env.integer("BCRYPT_COST", bcrypt.DefaultCost),
		RedisURL:   env.str("REDIS_URL", ""),

		UploadDir:      env.str("UPLOAD_DIR", "uploads"),
		GCSBucket:      env.str("GCS_BUCKET", ""),
		MaxUploadBytes: env.integer64("MAX_UPLOAD_BYTES", 5<<20),
		MaxBodyBytes:   env.integer64("MAX_BODY_BYTES", 1<<20),

		AMQPURL:      env.str("AMQP_URL", ""),
		AMQPExchange: env.str("AMQP_EXCHANGE", "zerohunger.events"),

		DashboardRecentLimit:  env.integer("DASHBOARD_RECENT_LIMIT", 6),
		DashboardPendingLimit: env.integer("DASHBOARD_PENDING_LIMIT", 5),
		JanitorInterval:       env.dur("JANITOR_INTERVAL", 10*time.Minute),

		RateRPS:      env.number("RATE_RPS", 5),
		RateBurst:    env.integer("RATE_BURST", 10),
		OTPRateRPS:   env.number("OTP_RATE_RPS", 0.2),
		OTPRateBurst: env.integer("OTP_RATE_BURST", 5),

		CORS: CORSConfig{AllowedOrigins: splitCSV(env.str("CORS_ALLOWED_ORIGINS", ""))},
		Security: SecurityConfig{
			EnableHSTS: env.flag("ENABLE_HSTS", false),
			HSTSMaxAge: env.dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: env.dur("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     env.flag("OTEL_ENABLED", false),
			Endpoint:    env.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    env.flag("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: env.str("OTEL_SERVICE_NAME", "zerohunger-backend"),
			SampleRatio: env.number("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	if !oneOf(cfg.GinMode, "debug", "release", "test") {
		cfg.GinMode = "release"
	}

	return cfg, cfg.validate()
}

func (cfg Config) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(oneOf(cfg.LogLevel, "debug", "info", "warn", "error", "fatal", "panic"),
		"LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	check(strings.TrimSpace(cfg.Port) != "", "PORT must not be empty")
	check(cfg.ReadTimeout > 0 && cfg.ReadHeaderTimeout > 0 && cfg.WriteTimeout > 0 && cfg.IdleTimeout > 0,
		"timeouts must be positive durations")
	check(cfg.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")

	switch cfg.DBDriver {
	case "sqlite":
		check(strings.TrimSpace(cfg.DBPath) != "", "DB_PATH must not be empty")
	case "postgres", "mysql":
		check(strings.TrimSpace(cfg.DBDSN) != "", "DB_DSN is required for DB_DRIVER=%s", cfg.DBDriver)
	default:
		check(false, "DB_DRIVER must be one of: sqlite, postgres, mysql")
	}

	check(cfg.SessionTTL > 0, "SESSION_TTL must be > 0")
	check(cfg.BcryptCost >= bcrypt.MinCost && cfg.BcryptCost <= bcrypt.MaxCost,
		"BCRYPT_COST must be in [%d,%d]", bcrypt.MinCost, bcrypt.MaxCost)
	check(cfg.GCSBucket != "" || strings.TrimSpace(cfg.UploadDir) != "",
		"UPLOAD_DIR must not be empty when GCS_BUCKET is unset")
	check(cfg.MaxUploadBytes > 0 && cfg.MaxBodyBytes > 0, "MAX_UPLOAD_BYTES and MAX_BODY_BYTES must be > 0")
	check(cfg.AMQPURL == "" || strings.TrimSpace(cfg.AMQPExchange) != "",
		"AMQP_EXCHANGE must not be empty when AMQP_URL is set")
	check(cfg.DashboardRecentLimit >= 1 && cfg.DashboardPendingLimit >= 1,
		"DASHBOARD_RECENT_LIMIT and DASHBOARD_PENDING_LIMIT must be >= 1")
	check(cfg.JanitorInterval > 0, "JANITOR_INTERVAL must be > 0")
	check(cfg.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(cfg.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(cfg.OTPRateRPS >= 0, "OTP_RATE_RPS must be >= 0")
	check(cfg.OTPRateBurst >= 1, "OTP_RATE_BURST must be >= 1")
	check(cfg.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(cfg.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(cfg.OTEL.SampleRatio >= 0 && cfg.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")

	return errors.Join(errs...)
}

// env reads typed values from the process environment.
var env environ

type environ struct{}

// lookup returns the variable when it is set to something non-empty.
func (environ) lookup(k string) (string, bool) {
	v, ok := os.LookupEnv(k)
	return v, ok && v != ""
}

func (e environ) str(k, def string) string {
	if v, ok := e.lookup(k); ok {
		return v
	}
	return def
}

func parsed[T any](k string, def T, parse func(string) (T, error)) T {
	if v, ok := env.lookup(k); ok {
		if x, err := parse(strings.TrimSpace(v)); err == nil {
			return x
		}
	}
	return def
}

func (environ) integer(k string, def int) int { return parsed(k, def, strconv.Atoi) }

func (environ) integer64(k string, def int64) int64 {
	return parsed(k, def, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
}

func (environ) number(k string, def float64) float64 {
	return parsed(k, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func (environ) dur(k string, def time.Duration) time.Duration {
	return parsed(k, def, time.ParseDuration)
}

func (environ) flag(k string, def bool) bool {
	return parsed(k, def, func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "1", "true", "yes", "y", "on":
			return true, nil
		case "0", "false", "no", "n", "off":
			return false, nil
		}
		return false, strconv.ErrSyntax
	})
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeBasePath adds a leading slash and drops trailing ones; empty
// becomes "/".
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
