package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production"
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	Crawler     CrawlerConfig     `toml:"crawler"`
	Miner       MinerConfig       `toml:"miner"`
	Claude      ClaudeConfig      `toml:"claude"`
	Gemini      GeminiConfig      `toml:"gemini"`
	LLM         LLMConfig         `toml:"llm"`
	Aggregation AggregationConfig `toml:"aggregation"`
	Cleanup     CleanupConfig     `toml:"cleanup"`
	Logging     LoggingConfig     `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	SQLite SQLiteConfig    `toml:"sqlite"`
	Cache  HTMLCacheConfig `toml:"cache"`
}

// SQLiteConfig represents SQLite-specific configuration
type SQLiteConfig struct {
	Path          string `toml:"path"`            // Database file path
	CacheSizeMB   int    `toml:"cache_size_mb"`   // Page cache size in MB
	BusyTimeoutMS int    `toml:"busy_timeout_ms"` // Lock wait before SQLITE_BUSY
	WALMode       bool   `toml:"wal_mode"`        // Enable write-ahead logging
}

// HTMLCacheConfig bounds the in-process HTML cache
type HTMLCacheConfig struct {
	TTL          string `toml:"ttl"`            // e.g. "10m" - entry lifetime
	MaxEntrySize int    `toml:"max_entry_size"` // Max HTML bytes to cache per URL
}

// CrawlerConfig contains shared fetch and browser settings
type CrawlerConfig struct {
	UserAgent      string        `toml:"user_agent"`       // Fixed user agent for HTTP fetches
	RequestTimeout time.Duration `toml:"request_timeout"`  // HTTP request timeout
	MaxRedirects   int           `toml:"max_redirects"`    // Redirect cap per request
	ListPageDelay  time.Duration `toml:"list_page_delay"`  // Delay between list pages
	DetailDelay    time.Duration `toml:"detail_delay"`     // Delay between detail pages
	Headless       bool          `toml:"headless"`         // Run Chrome headless
	NoSandbox      bool          `toml:"no_sandbox"`       // Disable Chrome sandbox (containers)
	NavigationWait time.Duration `toml:"navigation_wait"`  // Post-navigation settle time
	PageTimeout    time.Duration `toml:"page_timeout"`     // Max time for a single browser page
}

// MinerConfig holds job-level mining defaults, overridable per job via JobConfig
type MinerConfig struct {
	Mode          string        `toml:"mode"`           // quick | full | ai (default ai)
	MaxPages      int           `toml:"max_pages"`      // Pagination cap (default 20)
	MaxDetails    int           `toml:"max_details"`    // Detail page cap (default 200)
	TotalTimeout  time.Duration `toml:"total_timeout"`  // Wall-clock job timeout (default 8m)
	UnifiedEngine bool          `toml:"unified_engine"` // New engine vs legacy HTTP fallback semantics
}

type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
}

type GeminiConfig struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	Timeout string `toml:"timeout"`
}

// LLMConfig selects the AI miner provider
type LLMConfig struct {
	Provider string `toml:"provider"` // "claude" or "gemini"
}

// AggregationConfig controls the shadow-mode person/affiliation writes
type AggregationConfig struct {
	Enabled   bool `toml:"enabled"`
	BatchSize int  `toml:"batch_size"` // Rows per transaction, max 500
}

// CleanupConfig drives the periodic stale-job sweep
type CleanupConfig struct {
	Schedule   string        `toml:"schedule"`    // Cron expression
	StaleAfter time.Duration `toml:"stale_after"` // Running jobs older than this are failed
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			SQLite: SQLiteConfig{
				Path:          "./data/prospector.db",
				CacheSizeMB:   64,
				BusyTimeoutMS: 5000,
				WALMode:       true,
			},
			Cache: HTMLCacheConfig{
				TTL:          "10m",
				MaxEntrySize: 2 * 1024 * 1024,
			},
		},
		Crawler: CrawlerConfig{
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			RequestTimeout: 15 * time.Second,
			MaxRedirects:   5,
			ListPageDelay:  2 * time.Second,
			DetailDelay:    1 * time.Second,
			Headless:       true,
			NoSandbox:      false,
			NavigationWait: 3 * time.Second,
			PageTimeout:    60 * time.Second,
		},
		Miner: MinerConfig{
			Mode:          "ai",
			MaxPages:      20,
			MaxDetails:    200,
			TotalTimeout:  8 * time.Minute,
			UnifiedEngine: true,
		},
		Claude: ClaudeConfig{
			Model:     "claude-sonnet-4-20250514",
			Timeout:   "120s",
			MaxTokens: 8192,
		},
		Gemini: GeminiConfig{
			Model:   "gemini-2.0-flash",
			Timeout: "120s",
		},
		LLM: LLMConfig{Provider: "claude"},
		Aggregation: AggregationConfig{
			Enabled:   true,
			BatchSize: 500,
		},
		Cleanup: CleanupConfig{
			Schedule:   "*/10 * * * *",
			StaleAfter: 30 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration from one or more TOML files.
// Later files override earlier ones; env vars override files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides layers environment variables over file configuration
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("PROSPECTOR_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("PROSPECTOR_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("PROSPECTOR_DB_PATH"); v != "" {
		config.Storage.SQLite.Path = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		config.Claude.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		config.Gemini.APIKey = v
	}
	if v := os.Getenv("USE_UNIFIED_ENGINE"); v != "" {
		config.Miner.UnifiedEngine = parseBool(v, config.Miner.UnifiedEngine)
	}
	if v := os.Getenv("DISABLE_SHADOW_MODE"); v != "" {
		if parseBool(v, false) {
			config.Aggregation.Enabled = false
		}
	}
	if v := os.Getenv("PROSPECTOR_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

func parseBool(s string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

// ApplyFlagOverrides applies command-line flag values (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Storage.SQLite.Path == "" {
		return fmt.Errorf("storage.sqlite.path is required")
	}
	if c.Aggregation.BatchSize <= 0 || c.Aggregation.BatchSize > 500 {
		c.Aggregation.BatchSize = 500
	}
	switch c.Miner.Mode {
	case "quick", "full", "ai":
	default:
		return fmt.Errorf("invalid miner.mode %q: must be quick, full, or ai", c.Miner.Mode)
	}
	if c.LLM.Provider != "claude" && c.LLM.Provider != "gemini" {
		return fmt.Errorf("invalid llm.provider %q: must be claude or gemini", c.LLM.Provider)
	}
	if _, err := time.ParseDuration(c.Storage.Cache.TTL); err != nil {
		return fmt.Errorf("invalid storage.cache.ttl %q: %w", c.Storage.Cache.TTL, err)
	}
	return nil
}

// CacheTTL returns the parsed HTML cache TTL
func (c *Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Storage.Cache.TTL)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}
