// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, external API credentials,
// analysis time budgets, retry/circuit-breaker tuning, and observability.
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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-diary-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// LINEConfig holds LINE Messaging API credentials and endpoint settings.
type LINEConfig struct {
	ChannelSecret string        // LINE_CHANNEL_SECRET (webhook signature key)
	ChannelToken  string        // LINE_CHANNEL_ACCESS_TOKEN
	APIEndpoint   string        // LINE_API_ENDPOINT (override for tests)
	Timeout       time.Duration // LINE_API_TIMEOUT
}

// LLMConfig holds chat-completion API settings (OpenAI-compatible).
type LLMConfig struct {
	APIKey      string        // OPENAI_API_KEY
	BaseURL     string        // OPENAI_BASE_URL
	Model       string        // OPENAI_MODEL
	Timeout     time.Duration // OPENAI_TIMEOUT
	MaxTokens   int           // AI_MAX_TOKENS (analysis calls)
	Temperature float64       // AI_TEMPERATURE

	// Summary generation runs on a tighter token budget than analysis.
	SummaryMaxTokens   int     // SUMMARY_MAX_TOKENS
	SummaryTemperature float64 // SUMMARY_TEMPERATURE
}

// AnalysisConfig holds the wall-clock budgets and thresholds that drive the
// tiered degradation decisions. The millisecond values model a hard
// per-invocation CPU ceiling, so they are deployment tuning rather than a
// portable contract; every one of them can be overridden per environment.
type AnalysisConfig struct {
	Level1Budget time.Duration // ANALYSIS_L1_BUDGET: AI + heuristic ceiling
	Level2Budget time.Duration // ANALYSIS_L2_BUDGET: heuristic-only ceiling
	Level3Budget time.Duration // ANALYSIS_L3_BUDGET: emergency hard cutoff
	LLMTimeout   time.Duration // ANALYSIS_LLM_TIMEOUT: per-call LLM deadline

	// Async enrichment pass
	SummaryFetchTimeout time.Duration // ASYNC_SUMMARY_TIMEOUT
}

// SummaryConfig tunes the rolling-window summary cache.
type SummaryConfig struct {
	WindowDays     int           // SUMMARY_WINDOW_DAYS
	CacheTTL       time.Duration // SUMMARY_CACHE_TTL (freshness from updated_at)
	MinEntries     int           // SUMMARY_MIN_ENTRIES
	EntryCharLimit int           // SUMMARY_ENTRY_CHAR_LIMIT (per-entry truncation)
}

// MaintenanceConfig tunes the periodic maintenance batch: webhook dedup
// purge, old-data retention, and summary cache refresh for active users.
type MaintenanceConfig struct {
	Enabled              bool          // MAINTENANCE_ENABLED
	Schedule             string        // MAINTENANCE_SCHEDULE (standard 5-field cron spec)
	RunTimeout           time.Duration // MAINTENANCE_RUN_TIMEOUT (per batch run)
	EntryRetentionDays   int           // MAINTENANCE_ENTRY_RETENTION_DAYS
	SummaryRetentionDays int           // MAINTENANCE_SUMMARY_RETENTION_DAYS
	ActiveUserDays       int           // MAINTENANCE_ACTIVE_USER_DAYS (summary refresh window)
}

// RetryConfig holds default retry behavior for the resilience layer.
type RetryConfig struct {
	MaxRetries        int           // RETRY_MAX
	BaseDelay         time.Duration // RETRY_BASE_DELAY
	MaxDelay          time.Duration // RETRY_MAX_DELAY
	BackoffMultiplier float64       // RETRY_BACKOFF_MULTIPLIER
}

// BreakerConfig holds circuit-breaker tuning for the resilience layer.
type BreakerConfig struct {
	FailureThreshold int           // BREAKER_FAILURE_THRESHOLD
	ResetTimeout     time.Duration // BREAKER_RESET_TIMEOUT
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

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// App
	DBPath string // SQLite path

	// External services
	LINE LINEConfig
	LLM  LLMConfig

	// Core tuning
	Analysis    AnalysisConfig
	Summary     SummaryConfig
	Maintenance MaintenanceConfig
	Retry       RetryConfig
	Breaker     BreakerConfig

	// Performance monitor
	PerfCapacity int // PERF_CAPACITY: max retained samples

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

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

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath: getenv("DB_PATH", "diary.db"),

		// External services
		LINE: LINEConfig{
			ChannelSecret: getenv("LINE_CHANNEL_SECRET", ""),
			ChannelToken:  getenv("LINE_CHANNEL_ACCESS_TOKEN", ""),
			APIEndpoint:   getenv("LINE_API_ENDPOINT", "https://api.line.me"),
			Timeout:       getdur("LINE_API_TIMEOUT", 15*time.Second),
		},
		LLM: LLMConfig{
			APIKey:             getenv("OPENAI_API_KEY", ""),
			BaseURL:            getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:              getenv("OPENAI_MODEL", "gpt-3.5-turbo"),
			Timeout:            getdur("OPENAI_TIMEOUT", 30*time.Second),
			MaxTokens:          getint("AI_MAX_TOKENS", 300),
			Temperature:        getfloat("AI_TEMPERATURE", 0.3),
			SummaryMaxTokens:   getint("SUMMARY_MAX_TOKENS", 150),
			SummaryTemperature: getfloat("SUMMARY_TEMPERATURE", 0.2),
		},

		// Core tuning
		Analysis: AnalysisConfig{
			Level1Budget:        getdur("ANALYSIS_L1_BUDGET", 8*time.Millisecond),
			Level2Budget:        getdur("ANALYSIS_L2_BUDGET", 5*time.Millisecond),
			Level3Budget:        getdur("ANALYSIS_L3_BUDGET", 2*time.Millisecond),
			LLMTimeout:          getdur("ANALYSIS_LLM_TIMEOUT", 3*time.Second),
			SummaryFetchTimeout: getdur("ASYNC_SUMMARY_TIMEOUT", 5*time.Second),
		},
		Summary: SummaryConfig{
			WindowDays:     getint("SUMMARY_WINDOW_DAYS", 7),
			CacheTTL:       getdur("SUMMARY_CACHE_TTL", 24*time.Hour),
			MinEntries:     getint("SUMMARY_MIN_ENTRIES", 2),
			EntryCharLimit: getint("SUMMARY_ENTRY_CHAR_LIMIT", 500),
		},
		Maintenance: MaintenanceConfig{
			Enabled:              getbool("MAINTENANCE_ENABLED", true),
			Schedule:             getenv("MAINTENANCE_SCHEDULE", "0 3 * * *"),
			RunTimeout:           getdur("MAINTENANCE_RUN_TIMEOUT", 10*time.Minute),
			EntryRetentionDays:   getint("MAINTENANCE_ENTRY_RETENTION_DAYS", 90),
			SummaryRetentionDays: getint("MAINTENANCE_SUMMARY_RETENTION_DAYS", 30),
			ActiveUserDays:       getint("MAINTENANCE_ACTIVE_USER_DAYS", 7),
		},
		Retry: RetryConfig{
			MaxRetries:        getint("RETRY_MAX", 1),
			BaseDelay:         getdur("RETRY_BASE_DELAY", 500*time.Millisecond),
			MaxDelay:          getdur("RETRY_MAX_DELAY", 2*time.Second),
			BackoffMultiplier: getfloat("RETRY_BACKOFF_MULTIPLIER", 2.0),
		},
		Breaker: BreakerConfig{
			FailureThreshold: getint("BREAKER_FAILURE_THRESHOLD", 5),
			ResetTimeout:     getdur("BREAKER_RESET_TIMEOUT", 60*time.Second),
		},

		// Performance monitor
		PerfCapacity: getint("PERF_CAPACITY", 1000),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-diary-backend"),
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
	cfg.LLM.BaseURL = strings.TrimRight(cfg.LLM.BaseURL, "/")
	cfg.LINE.APIEndpoint = strings.TrimRight(cfg.LINE.APIEndpoint, "/")

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
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.Analysis.Level1Budget <= 0 || cfg.Analysis.Level2Budget <= 0 || cfg.Analysis.Level3Budget <= 0 {
		return cfg, errors.New("analysis budgets must be positive durations")
	}
	if cfg.Analysis.Level3Budget > cfg.Analysis.Level2Budget || cfg.Analysis.Level2Budget > cfg.Analysis.Level1Budget {
		return cfg, errors.New("analysis budgets must satisfy L3 <= L2 <= L1")
	}
	if cfg.Analysis.LLMTimeout <= 0 || cfg.Analysis.SummaryFetchTimeout <= 0 {
		return cfg, errors.New("analysis LLM/summary timeouts must be > 0")
	}
	if cfg.Summary.WindowDays < 1 {
		return cfg, errors.New("SUMMARY_WINDOW_DAYS must be >= 1")
	}
	if cfg.Summary.CacheTTL <= 0 {
		return cfg, errors.New("SUMMARY_CACHE_TTL must be > 0")
	}
	if cfg.Summary.MinEntries < 1 {
		return cfg, errors.New("SUMMARY_MIN_ENTRIES must be >= 1")
	}
	if strings.TrimSpace(cfg.Maintenance.Schedule) == "" {
		return cfg, errors.New("MAINTENANCE_SCHEDULE must not be empty")
	}
	if cfg.Maintenance.RunTimeout <= 0 {
		return cfg, errors.New("MAINTENANCE_RUN_TIMEOUT must be > 0")
	}
	if cfg.Maintenance.EntryRetentionDays < 1 || cfg.Maintenance.SummaryRetentionDays < 1 {
		return cfg, errors.New("maintenance retention periods must be >= 1 day")
	}
	if cfg.Maintenance.ActiveUserDays < 1 {
		return cfg, errors.New("MAINTENANCE_ACTIVE_USER_DAYS must be >= 1")
	}
	if cfg.Retry.MaxRetries < 0 {
		return cfg, errors.New("RETRY_MAX must be >= 0")
	}
	if cfg.Retry.BaseDelay <= 0 || cfg.Retry.MaxDelay < cfg.Retry.BaseDelay {
		return cfg, errors.New("retry delays must satisfy 0 < base <= max")
	}
	if cfg.Retry.BackoffMultiplier < 1 {
		return cfg, errors.New("RETRY_BACKOFF_MULTIPLIER must be >= 1")
	}
	if cfg.Breaker.FailureThreshold < 1 {
		return cfg, errors.New("BREAKER_FAILURE_THRESHOLD must be >= 1")
	}
	if cfg.Breaker.ResetTimeout <= 0 {
		return cfg, errors.New("BREAKER_RESET_TIMEOUT must be > 0")
	}
	if cfg.PerfCapacity < 2 {
		return cfg, errors.New("PERF_CAPACITY must be >= 2")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
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

// splitCSV splits a comma-separated list, trimming whitespace and dropping
// empty items. Returns nil for an empty input.
func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeBasePath ensures the base path starts with '/' and has no
// trailing slash (except the root itself).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}
