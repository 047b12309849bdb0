// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, storage, ledger lookup, stream crawling, caching, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "powboard")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// LedgerConfig controls the confirmation-time lookup against the ledger API.
type LedgerConfig struct {
	BaseURL    string        // LEDGER_API_URL
	Timeout    time.Duration // LEDGER_TIMEOUT, per attempt
	MaxRetries int           // LEDGER_MAX_RETRIES, attempts after the first
	RPS        float64       // LEDGER_RPS, client-side request budget
}

// CrawlerConfig controls the inbound transaction stream.
type CrawlerConfig struct {
	Enabled     bool          // CRAWLER_ENABLED
	URL         string        // CRAWLER_URL (bitbus-compatible block endpoint)
	Token       string        // CRAWLER_TOKEN
	StartHeight int64         // CRAWLER_START_HEIGHT
	Interval    time.Duration // CRAWLER_INTERVAL between polls
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
	APIBasePath    string // base path for v1 API routes

	// Storage
	DBDriver    string // sqlite|postgres
	DBPath      string // SQLite path
	DatabaseURL string // Postgres DSN

	// Board
	AppID        string // application namespace for posts and replies
	BoostAppID   string // namespace carrying proof-of-work attestations
	FeedPageSize int    // cap on unboosted posts per feed page

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS CORSConfig

	// Upstreams
	Ledger  LedgerConfig
	Crawler CrawlerConfig

	// Cache
	RedisAddr string        // REDIS_ADDR; empty selects the in-process cache
	CacheTTL  time.Duration // CACHE_TTL

	// Observability
	OTEL OTELConfig
}

// DefaultBoostAppID is the namespace boost proofs are published under.
const DefaultBoostAppID = "18pPQigu7j69ioDcUG9dACE1iAN9nCfowr"

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		DBDriver:    strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBPath:      getenv("DB_PATH", "powboard.db"),
		DatabaseURL: getenv("DATABASE_URL", ""),

		// Board
		AppID:        getenv("APP_ID", ""),
		BoostAppID:   getenv("BOOST_APP_ID", DefaultBoostAppID),
		FeedPageSize: getint("FEED_PAGE_SIZE", 100),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},

		Ledger: LedgerConfig{
			BaseURL:    strings.TrimRight(getenv("LEDGER_API_URL", "https://api.whatsonchain.com/v1/bsv/main"), "/"),
			Timeout:    getdur("LEDGER_TIMEOUT", 5*time.Second),
			MaxRetries: getint("LEDGER_MAX_RETRIES", 3),
			RPS:        getfloat("LEDGER_RPS", 3.0),
		},
		Crawler: CrawlerConfig{
			Enabled:     getbool("CRAWLER_ENABLED", false),
			URL:         getenv("CRAWLER_URL", "https://txo.bitbus.network/block"),
			Token:       getenv("CRAWLER_TOKEN", ""),
			StartHeight: int64(getint("CRAWLER_START_HEIGHT", 738000)),
			Interval:    getdur("CRAWLER_INTERVAL", 30*time.Second),
		},

		// Cache
		RedisAddr: getenv("REDIS_ADDR", ""),
		CacheTTL:  getdur("CACHE_TTL", 5*time.Minute),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "powboard"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DBDriver == "postgresql" || cfg.DBDriver == "pg" {
		cfg.DBDriver = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DBDriver {
	case "sqlite":
		if strings.TrimSpace(cfg.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return cfg, errors.New("DATABASE_URL must be set when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if strings.TrimSpace(cfg.BoostAppID) == "" {
		return cfg, errors.New("BOOST_APP_ID must not be empty")
	}
	if cfg.AppID != "" && cfg.AppID == cfg.BoostAppID {
		return cfg, errors.New("APP_ID and BOOST_APP_ID must differ")
	}
	if cfg.FeedPageSize < 1 {
		return cfg, errors.New("FEED_PAGE_SIZE must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Ledger.Timeout <= 0 {
		return cfg, errors.New("LEDGER_TIMEOUT must be > 0")
	}
	if cfg.Ledger.MaxRetries < 0 {
		return cfg, errors.New("LEDGER_MAX_RETRIES must be >= 0")
	}
	if cfg.Ledger.RPS <= 0 {
		return cfg, errors.New("LEDGER_RPS must be > 0")
	}
	if cfg.Crawler.Enabled {
		if cfg.AppID == "" {
			return cfg, errors.New("APP_ID must be set when CRAWLER_ENABLED")
		}
		if strings.TrimSpace(cfg.Crawler.URL) == "" {
			return cfg, errors.New("CRAWLER_URL must not be empty")
		}
		if cfg.Crawler.Interval <= 0 {
			return cfg, errors.New("CRAWLER_INTERVAL must be > 0")
		}
	}
	if cfg.CacheTTL <= 0 {
		return cfg, errors.New("CACHE_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
