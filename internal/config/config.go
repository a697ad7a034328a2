package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName        string `mapstructure:"app_name"`
	Env            string `mapstructure:"app_env"`
	LogLevel       string `mapstructure:"log_level"`
	SourcesFile    string `mapstructure:"sources_file"`
	PublishersFile string `mapstructure:"publishers_file"`
	UserAgent      string `mapstructure:"user_agent"`

	HTTPTimeoutSeconds int64         `mapstructure:"http_timeout_seconds"`
	HTTPTimeout        time.Duration `mapstructure:"-"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`

	BrowserHeadless        bool          `mapstructure:"browser_headless"`
	BrowserExecPath        string        `mapstructure:"browser_exec_path"`
	BrowserRemoteURL       string        `mapstructure:"browser_remote_url"`
	BrowserNavSeconds      int64         `mapstructure:"browser_nav_timeout_seconds"`
	BrowserSelectorSeconds int64         `mapstructure:"browser_selector_timeout_seconds"`
	BrowserNavTimeout      time.Duration `mapstructure:"-"`
	BrowserSelectorTimeout time.Duration `mapstructure:"-"`

	ChunkDelayMs int64         `mapstructure:"chunk_delay_ms"`
	PageDelayMs  int64         `mapstructure:"page_delay_ms"`
	ChunkDelay   time.Duration `mapstructure:"-"`
	PageDelay    time.Duration `mapstructure:"-"`

	MaxPages     int    `mapstructure:"max_pages"`
	DefaultPages int    `mapstructure:"default_pages"`
	ServerAddr   string `mapstructure:"server_addr"`

	CORSOriginsRaw string   `mapstructure:"cors_origins"`
	CORSOrigins    []string `mapstructure:"-"`
}

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "bazar-scraper")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("sources_file", "./configs/sources.yaml")
	v.SetDefault("publishers_file", "")
	v.SetDefault("user_agent", defaultUserAgent)
	v.SetDefault("http_timeout_seconds", 15)
	v.SetDefault("storage_type", "none")
	v.SetDefault("bbolt_path", "./data/pages.db")
	v.SetDefault("storage_ttl_seconds", int64((24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((6*time.Hour)/time.Second))
	v.SetDefault("browser_headless", true)
	v.SetDefault("browser_exec_path", "")
	v.SetDefault("browser_remote_url", "")
	v.SetDefault("browser_nav_timeout_seconds", 30)
	v.SetDefault("browser_selector_timeout_seconds", 15)
	v.SetDefault("chunk_delay_ms", 500)
	v.SetDefault("page_delay_ms", 1000)
	v.SetDefault("max_pages", 20)
	v.SetDefault("default_pages", 1)
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("cors_origins", "*")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// finalize validates raw values and derives the duration fields.
func (c *Config) finalize() error {
	c.UserAgent = strings.TrimSpace(c.UserAgent)
	c.StorageType = strings.ToLower(strings.TrimSpace(c.StorageType))

	if c.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid http_timeout_seconds (must be positive seconds)")
	}
	c.HTTPTimeout = time.Duration(c.HTTPTimeoutSeconds) * time.Second

	if c.StorageTTLSeconds <= 0 {
		return fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if c.StorageCleanupSeconds <= 0 {
		return fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	c.StorageTTL = time.Duration(c.StorageTTLSeconds) * time.Second
	c.StorageCleanupInterval = time.Duration(c.StorageCleanupSeconds) * time.Second

	if c.BrowserNavSeconds <= 0 || c.BrowserSelectorSeconds <= 0 {
		return fmt.Errorf("invalid browser timeouts (must be positive seconds)")
	}
	c.BrowserNavTimeout = time.Duration(c.BrowserNavSeconds) * time.Second
	c.BrowserSelectorTimeout = time.Duration(c.BrowserSelectorSeconds) * time.Second

	if c.ChunkDelayMs < 0 || c.PageDelayMs < 0 {
		return fmt.Errorf("invalid chunk_delay_ms/page_delay_ms (must not be negative)")
	}
	c.ChunkDelay = time.Duration(c.ChunkDelayMs) * time.Millisecond
	c.PageDelay = time.Duration(c.PageDelayMs) * time.Millisecond

	c.CORSOrigins = nil
	for _, o := range strings.Split(c.CORSOriginsRaw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			c.CORSOrigins = append(c.CORSOrigins, o)
		}
	}

	if c.MaxPages <= 0 {
		return fmt.Errorf("invalid max_pages (must be positive)")
	}
	if c.DefaultPages < 0 || c.DefaultPages > c.MaxPages {
		return fmt.Errorf("invalid default_pages (must be between 0 and max_pages)")
	}
	return nil
}

// ClampPages bounds a requested page count to the configured maximum.
// Zero means uncapped and is passed through.
func (c *Config) ClampPages(requested int) int {
	if requested <= 0 {
		return 0
	}
	if requested > c.MaxPages {
		return c.MaxPages
	}
	return requested
}

// ResolvePages maps a user supplied page count to a page cap. Empty means
// DefaultPages, "all" means uncapped (0) and numbers are clamped.
func (c *Config) ResolvePages(raw string) (int, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "":
		return c.DefaultPages, nil
	case "all":
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid page count %q (expected a positive number or all)", raw)
	}
	return c.ClampPages(n), nil
}
