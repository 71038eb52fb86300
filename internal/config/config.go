// Package config provides application configuration loaded from environment variables.
// Use the package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                 string        // e.g. "8080"
	BackofficePort       string        // e.g. "8081"
	Env                  string        // "development" | "production"
	ReadTimeout          time.Duration // default 10s
	WriteTimeout         time.Duration // default 10s
	BackofficeAllowedIPs string        // comma-separated IPs; "" = allow all
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	DSN             string        // full postgres DSN
	MaxOpenConns    int           // default 25
	MaxIdleConns    int           // default 10
	ConnMaxLifetime time.Duration // default 5m
}

// JWTConfig holds JWT signing settings.
type JWTConfig struct {
	AccessSecret  string        // must be set
	RefreshSecret string        // must be set
	AccessTTL     time.Duration // default 15m
	RefreshTTL    time.Duration // default 720h (30 days)
}

// SettlementConfig holds settlement-run defaults applied when a deal does not
// specify its own terms.
type SettlementConfig struct {
	Interval        time.Duration // how often the scheduler looks for due periods
	PeriodDays      int           // default settlement period length
	PlatformFeePct  float64       // % of gross investor share, 0 disables
	ProcessingFee   float64       // flat fee per payout, 0 disables
	DefaultTaxPct   float64       // withholding when the deal sets none
	MaxDealsPerTick int           // settlement batch size per scheduler tick
}

// RiskConfig holds risk-evaluation settings.
type RiskConfig struct {
	Interval         time.Duration // how often the risk loop re-evaluates deals
	RuinAlertLevel   float64       // alert when risk-of-ruin exceeds this (0–1)
	MinSampleSize    int           // tournaments required before ruin alerts fire
	DrawdownAlertPct float64       // default drawdown alert, % of deal bankroll
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	JWT        JWTConfig
	Settlement SettlementConfig
	Risk       RiskConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// Returns the first validation error encountered.
func (c *Config) Validate() error {
	var errs []error

	// JWT secrets are mandatory
	if c.JWT.AccessSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET must be set"))
	}
	if c.JWT.RefreshSecret == "" {
		errs = append(errs, errors.New("JWT_REFRESH_SECRET must be set"))
	}

	// In production, DB DSN must be explicit
	if c.IsProd() && c.DB.DSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN must be set in production"))
	}

	if c.Settlement.PlatformFeePct < 0 || c.Settlement.PlatformFeePct >= 100 {
		errs = append(errs, fmt.Errorf(
			"SETTLEMENT_PLATFORM_FEE_PCT must be within [0, 100), got %.4f",
			c.Settlement.PlatformFeePct,
		))
	}
	if c.Settlement.DefaultTaxPct < 0 || c.Settlement.DefaultTaxPct >= 100 {
		errs = append(errs, fmt.Errorf(
			"SETTLEMENT_DEFAULT_TAX_PCT must be within [0, 100), got %.4f",
			c.Settlement.DefaultTaxPct,
		))
	}
	if c.Settlement.PeriodDays <= 0 {
		errs = append(errs, fmt.Errorf(
			"SETTLEMENT_PERIOD_DAYS must be positive, got %d", c.Settlement.PeriodDays,
		))
	}
	if c.Risk.RuinAlertLevel <= 0 || c.Risk.RuinAlertLevel >= 1 {
		errs = append(errs, fmt.Errorf(
			"RISK_RUIN_ALERT_LEVEL must be between 0 and 1 (exclusive), got %.4f",
			c.Risk.RuinAlertLevel,
		))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment variables.
// Panics if loading fails — call this early in main() to catch misconfigurations
// at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal loader
// ──────────────────────────────────────────────────────────────────────────────

func load() (*Config, error) {
	cfg := &Config{}

	// ── Server ────────────────────────────────────────────────────────────────
	cfg.Server = ServerConfig{
		Port:                 getEnv("SERVER_PORT", "8080"),
		BackofficePort:       getEnv("BACKOFFICE_PORT", "8081"),
		Env:                  getEnv("ENVIRONMENT", "development"),
		ReadTimeout:          getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:         getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		BackofficeAllowedIPs: getEnv("BACKOFFICE_ALLOWED_IPS", ""),
	}

	// ── Database ──────────────────────────────────────────────────────────────
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		// Build DSN from individual components for convenience in dev
		dsn = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", ""),
			getEnv("DB_NAME", "stakehouse"),
			getEnv("DB_SSLMODE", "disable"),
		)
	}

	maxOpen, err := getInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := getInt("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_IDLE_CONNS: %w", err)
	}

	cfg.DB = DBConfig{
		DSN:             dsn,
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}

	// ── JWT ───────────────────────────────────────────────────────────────────
	cfg.JWT = JWTConfig{
		AccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
		RefreshSecret: getEnv("JWT_REFRESH_SECRET", ""),
		AccessTTL:     getDuration("JWT_ACCESS_TTL", 15*time.Minute),
		RefreshTTL:    getDuration("JWT_REFRESH_TTL", 30*24*time.Hour),
	}

	// ── Settlement ────────────────────────────────────────────────────────────
	periodDays, err := getInt("SETTLEMENT_PERIOD_DAYS", 30)
	if err != nil {
		return nil, fmt.Errorf("SETTLEMENT_PERIOD_DAYS: %w", err)
	}
	platformFee, err := getFloat("SETTLEMENT_PLATFORM_FEE_PCT", 1)
	if err != nil {
		return nil, fmt.Errorf("SETTLEMENT_PLATFORM_FEE_PCT: %w", err)
	}
	processingFee, err := getFloat("SETTLEMENT_PROCESSING_FEE", 0)
	if err != nil {
		return nil, fmt.Errorf("SETTLEMENT_PROCESSING_FEE: %w", err)
	}
	defaultTax, err := getFloat("SETTLEMENT_DEFAULT_TAX_PCT", 0)
	if err != nil {
		return nil, fmt.Errorf("SETTLEMENT_DEFAULT_TAX_PCT: %w", err)
	}
	batchSize, err := getInt("SETTLEMENT_MAX_DEALS_PER_TICK", 50)
	if err != nil {
		return nil, fmt.Errorf("SETTLEMENT_MAX_DEALS_PER_TICK: %w", err)
	}

	cfg.Settlement = SettlementConfig{
		Interval:        getDuration("SETTLEMENT_INTERVAL", 1*time.Hour),
		PeriodDays:      periodDays,
		PlatformFeePct:  platformFee,
		ProcessingFee:   processingFee,
		DefaultTaxPct:   defaultTax,
		MaxDealsPerTick: batchSize,
	}

	// ── Risk ──────────────────────────────────────────────────────────────────
	ruinLevel, err := getFloat("RISK_RUIN_ALERT_LEVEL", 0.25)
	if err != nil {
		return nil, fmt.Errorf("RISK_RUIN_ALERT_LEVEL: %w", err)
	}
	minSample, err := getInt("RISK_MIN_SAMPLE_SIZE", 20)
	if err != nil {
		return nil, fmt.Errorf("RISK_MIN_SAMPLE_SIZE: %w", err)
	}
	drawdownAlert, err := getFloat("RISK_DRAWDOWN_ALERT_PCT", 50)
	if err != nil {
		return nil, fmt.Errorf("RISK_DRAWDOWN_ALERT_PCT: %w", err)
	}

	cfg.Risk = RiskConfig{
		Interval:         getDuration("RISK_INTERVAL", 15*time.Minute),
		RuinAlertLevel:   ruinLevel,
		MinSampleSize:    minSample,
		DrawdownAlertPct: drawdownAlert,
	}

	return cfg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float %q", v)
	}
	return f, nil
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or empty.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Log warning and fall back to default; do not crash on parse error
		return defaultVal
	}
	return d
}
