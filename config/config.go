package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds settings for the scraper core and the surrounding service.
type Config struct {
	// Scraper
	RequestTimeout  time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	PageSize        int
	MaxPages        int
	VariantCap      int
	BatchSize       int
	BatchDelay      time.Duration
	PageDelay       time.Duration
	UserAgent       string

	// Service
	ListenAddr          string
	DatabaseDSN         string
	ArchiveFile         string // optional JSONL archive of scan results
	EnableScheduler     bool
	CheckInterval       time.Duration
	DefaultScanInterval time.Duration
	CleanupInterval     time.Duration
	ResultRetention     time.Duration
	AlertRetention      time.Duration
	CacheSize           int
	CacheTTL            time.Duration
	Verbose             bool
}

// DefaultConfig returns conservative defaults for monitoring live storefronts.
func DefaultConfig() *Config {
	return &Config{
		RequestTimeout:  30 * time.Second,
		MaxRetries:      3,
		RetryBackoff:    time.Second,
		RetryBackoffMax: 8 * time.Second,
		PageSize:        250,
		MaxPages:        40,
		VariantCap:      10,
		BatchSize:       100,
		BatchDelay:      300 * time.Millisecond,
		PageDelay:       500 * time.Millisecond,
		UserAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",

		ListenAddr:          ":8080",
		DatabaseDSN:         "shopify_monitor.db",
		ArchiveFile:         "",
		EnableScheduler:     true,
		CheckInterval:       time.Minute,
		DefaultScanInterval: time.Hour,
		CleanupInterval:     24 * time.Hour,
		ResultRetention:     30 * 24 * time.Hour,
		AlertRetention:      7 * 24 * time.Hour,
		CacheSize:           256,
		CacheTTL:            15 * time.Minute,
		Verbose:             false,
	}
}

// Load builds a config from defaults overridden by environment variables.
// A .env file is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if v, ok := EnvString("MONITOR_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := EnvString("MONITOR_DATABASE"); ok {
		cfg.DatabaseDSN = v
	}
	if v, ok := EnvString("MONITOR_ARCHIVE_FILE"); ok {
		cfg.ArchiveFile = v
	}
	if v, ok := EnvString("MONITOR_USER_AGENT"); ok {
		cfg.UserAgent = v
	}
	if v, ok, err := EnvInt("MONITOR_BATCH_SIZE"); err != nil {
		return nil, fmt.Errorf("invalid MONITOR_BATCH_SIZE: %w", err)
	} else if ok {
		cfg.BatchSize = v
	}
	if v, ok, err := EnvInt("MONITOR_MAX_RETRIES"); err != nil {
		return nil, fmt.Errorf("invalid MONITOR_MAX_RETRIES: %w", err)
	} else if ok {
		cfg.MaxRetries = v
	}
	if v, ok, err := EnvInt("MONITOR_REQUEST_TIMEOUT_SECONDS"); err != nil {
		return nil, fmt.Errorf("invalid MONITOR_REQUEST_TIMEOUT_SECONDS: %w", err)
	} else if ok {
		cfg.RequestTimeout = time.Duration(v) * time.Second
	}
	if v, ok, err := EnvInt("MONITOR_SCAN_INTERVAL_SECONDS"); err != nil {
		return nil, fmt.Errorf("invalid MONITOR_SCAN_INTERVAL_SECONDS: %w", err)
	} else if ok {
		cfg.DefaultScanInterval = time.Duration(v) * time.Second
	}
	if v, ok, err := EnvBool("MONITOR_ENABLE_SCHEDULER"); err != nil {
		return nil, fmt.Errorf("invalid MONITOR_ENABLE_SCHEDULER: %w", err)
	} else if ok {
		cfg.EnableScheduler = v
	}
	if v, ok, err := EnvBool("MONITOR_VERBOSE"); err != nil {
		return nil, fmt.Errorf("invalid MONITOR_VERBOSE: %w", err)
	} else if ok {
		cfg.Verbose = v
	}

	return cfg, nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.PageSize <= 0 || c.PageSize > 250 {
		return fmt.Errorf("page size must be between 1 and 250")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.VariantCap <= 0 {
		return fmt.Errorf("variant cap must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.BatchDelay < 0 {
		return fmt.Errorf("batch delay cannot be negative")
	}
	if c.PageDelay < 0 {
		return fmt.Errorf("page delay cannot be negative")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check interval must be positive")
	}
	if c.DefaultScanInterval <= 0 {
		return fmt.Errorf("scan interval must be positive")
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive")
	}
	return nil
}

// ValidateStoreURL checks that a target storefront URL is usable.
func ValidateStoreURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("store URL cannot be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid store URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("store URL must use http or https")
	}
	if parsed.Host == "" {
		return fmt.Errorf("store URL must include a host")
	}
	return nil
}

// EnvString reads a string environment variable.
func EnvString(key string) (string, bool) {
	value := os.Getenv(key)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt reads an integer environment variable.
func EnvInt(key string) (int, bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, err
	}
	return parsed, true, nil
}

// EnvBool reads a boolean environment variable.
func EnvBool(key string) (bool, bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, false, err
	}
	return parsed, true, nil
}
