package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the adinsights service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	GraphAPI  GraphAPIConfig  `yaml:"graph_api"`
	Async     AsyncConfig     `yaml:"async"`
	Cache     CacheConfig     `yaml:"cache"`
	Audit     AuditConfig     `yaml:"audit"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Export    ExportConfig    `yaml:"export"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Env             string        `yaml:"env"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// GraphAPIConfig configures the upstream reporting API client.
type GraphAPIConfig struct {
	BaseURL          string        `yaml:"base_url"`
	Version          string        `yaml:"version"`
	AccessToken      string        `yaml:"access_token"`
	DefaultAccountID string        `yaml:"default_account_id"` // used when a tool call names no account
	Timeout          time.Duration `yaml:"timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	RPS              float64       `yaml:"rps"`
	Burst            int           `yaml:"burst"`
	PageSize         int           `yaml:"page_size"`
	MaxPages         int           `yaml:"max_pages"`
}

// AsyncConfig configures async report job polling.
type AsyncConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
}

// CacheConfig configures the Redis report cache.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// AuditConfig configures the PostgreSQL tool-run audit log.
type AuditConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"db_name"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
}

// DSN returns the PostgreSQL connection string.
func (a AuditConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(a.User, a.Password),
		Host:     fmt.Sprintf("%s:%d", a.Host, a.Port),
		Path:     "/" + a.DBName,
		RawQuery: "sslmode=" + a.SSLMode,
	}
	return u.String()
}

// ArchiveConfig configures the ClickHouse KPI snapshot archive.
type ArchiveConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Addrs    []string `yaml:"addrs"`
	Database string   `yaml:"database"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
}

// ExportConfig configures raw-row export to S3.
type ExportConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bucket  string `yaml:"bucket"`
	Prefix  string `yaml:"prefix"`
	Region  string `yaml:"region"`
}

type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
}

type RateLimitConfig struct {
	Enabled   bool    `yaml:"enabled"`
	RPS       float64 `yaml:"rps"`
	Burst     int     `yaml:"burst"`
	ToolRPS   float64 `yaml:"tool_rps"`
	ToolBurst int     `yaml:"tool_burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Env:             "development",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    6 * time.Minute, // async reports can poll for minutes
			ShutdownTimeout: 30 * time.Second,
		},
		GraphAPI: GraphAPIConfig{
			BaseURL:    "https://graph.facebook.com",
			Version:    "v19.0",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			RPS:        5,
			Burst:      5,
			PageSize:   500,
			MaxPages:   50,
		},
		Async: AsyncConfig{
			PollInterval: 5 * time.Second,
			Timeout:      5 * time.Minute,
		},
		Cache: CacheConfig{
			Addr: "localhost:6379",
			TTL:  15 * time.Minute,
		},
		Audit: AuditConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "adinsights",
			DBName:   "adinsights",
			SSLMode:  "disable",
			MaxConns: 10,
		},
		Archive: ArchiveConfig{
			Addrs:    []string{"localhost:9000"},
			Database: "adinsights",
			Username: "default",
		},
		Export: ExportConfig{
			Prefix: "raw-insights/",
			Region: "us-east-1",
		},
		Auth: AuthConfig{
			Enabled: true,
		},
		RateLimit: RateLimitConfig{
			Enabled:   true,
			RPS:       50,
			Burst:     20,
			ToolRPS:   5,
			ToolBurst: 5,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "adinsights",
		},
	}
}

// Load builds the configuration: defaults, then an optional YAML file named by
// ADINSIGHTS_CONFIG_FILE, then environment variables (a .env file is read first).
func Load() (*Config, error) {
	_ = godotenv.Load() // .env is optional

	cfg := Defaults()

	if path := getEnv("ADINSIGHTS_CONFIG_FILE", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("ADINSIGHTS_HTTP_ADDR", c.Server.Addr)
	c.Server.Env = getEnv("ADINSIGHTS_ENV", c.Server.Env)
	c.Server.ReadTimeout = getDurationEnv("ADINSIGHTS_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getDurationEnv("ADINSIGHTS_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = getDurationEnv("ADINSIGHTS_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.GraphAPI.BaseURL = getEnv("ADINSIGHTS_GRAPH_BASE_URL", c.GraphAPI.BaseURL)
	c.GraphAPI.Version = getEnv("ADINSIGHTS_GRAPH_VERSION", c.GraphAPI.Version)
	c.GraphAPI.AccessToken = getEnv("ADINSIGHTS_ACCESS_TOKEN", c.GraphAPI.AccessToken)
	c.GraphAPI.DefaultAccountID = getEnv("ADINSIGHTS_DEFAULT_ACCOUNT_ID", c.GraphAPI.DefaultAccountID)
	c.GraphAPI.Timeout = getDurationEnv("ADINSIGHTS_GRAPH_TIMEOUT", c.GraphAPI.Timeout)
	c.GraphAPI.MaxRetries = getIntEnv("ADINSIGHTS_GRAPH_MAX_RETRIES", c.GraphAPI.MaxRetries)
	c.GraphAPI.RPS = getFloatEnv("ADINSIGHTS_GRAPH_RPS", c.GraphAPI.RPS)
	c.GraphAPI.Burst = getIntEnv("ADINSIGHTS_GRAPH_BURST", c.GraphAPI.Burst)
	c.GraphAPI.PageSize = getIntEnv("ADINSIGHTS_GRAPH_PAGE_SIZE", c.GraphAPI.PageSize)
	c.GraphAPI.MaxPages = getIntEnv("ADINSIGHTS_GRAPH_MAX_PAGES", c.GraphAPI.MaxPages)

	c.Async.PollInterval = getDurationEnv("ADINSIGHTS_ASYNC_POLL_INTERVAL", c.Async.PollInterval)
	c.Async.Timeout = getDurationEnv("ADINSIGHTS_ASYNC_TIMEOUT", c.Async.Timeout)

	c.Cache.Enabled = getBoolEnv("ADINSIGHTS_CACHE_ENABLED", c.Cache.Enabled)
	c.Cache.Addr = getEnv("ADINSIGHTS_REDIS_ADDR", c.Cache.Addr)
	c.Cache.Password = getEnv("ADINSIGHTS_REDIS_PASSWORD", c.Cache.Password)
	c.Cache.DB = getIntEnv("ADINSIGHTS_REDIS_DB", c.Cache.DB)
	c.Cache.TTL = getDurationEnv("ADINSIGHTS_CACHE_TTL", c.Cache.TTL)

	c.Audit.Enabled = getBoolEnv("ADINSIGHTS_AUDIT_ENABLED", c.Audit.Enabled)
	c.Audit.Host = getEnv("ADINSIGHTS_DB_HOST", c.Audit.Host)
	c.Audit.Port = getIntEnv("ADINSIGHTS_DB_PORT", c.Audit.Port)
	c.Audit.User = getEnv("ADINSIGHTS_DB_USER", c.Audit.User)
	c.Audit.Password = getEnv("ADINSIGHTS_DB_PASSWORD", c.Audit.Password)
	c.Audit.DBName = getEnv("ADINSIGHTS_DB_NAME", c.Audit.DBName)
	c.Audit.SSLMode = getEnv("ADINSIGHTS_DB_SSLMODE", c.Audit.SSLMode)
	c.Audit.MaxConns = getIntEnv("ADINSIGHTS_DB_MAX_CONNS", c.Audit.MaxConns)

	c.Archive.Enabled = getBoolEnv("ADINSIGHTS_ARCHIVE_ENABLED", c.Archive.Enabled)
	c.Archive.Addrs = getSliceEnv("ADINSIGHTS_CLICKHOUSE_ADDRS", c.Archive.Addrs)
	c.Archive.Database = getEnv("ADINSIGHTS_CLICKHOUSE_DB", c.Archive.Database)
	c.Archive.Username = getEnv("ADINSIGHTS_CLICKHOUSE_USER", c.Archive.Username)
	c.Archive.Password = getEnv("ADINSIGHTS_CLICKHOUSE_PASSWORD", c.Archive.Password)

	c.Export.Enabled = getBoolEnv("ADINSIGHTS_EXPORT_ENABLED", c.Export.Enabled)
	c.Export.Bucket = getEnv("ADINSIGHTS_EXPORT_BUCKET", c.Export.Bucket)
	c.Export.Prefix = getEnv("ADINSIGHTS_EXPORT_PREFIX", c.Export.Prefix)
	c.Export.Region = getEnv("ADINSIGHTS_EXPORT_REGION", c.Export.Region)

	c.Auth.Enabled = getBoolEnv("ADINSIGHTS_AUTH_ENABLED", c.Auth.Enabled)
	c.Auth.APIKey = getEnv("ADINSIGHTS_API_KEY", c.Auth.APIKey)

	c.RateLimit.Enabled = getBoolEnv("ADINSIGHTS_RATE_LIMIT_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.RPS = getFloatEnv("ADINSIGHTS_RATE_LIMIT_RPS", c.RateLimit.RPS)
	c.RateLimit.Burst = getIntEnv("ADINSIGHTS_RATE_LIMIT_BURST", c.RateLimit.Burst)
	c.RateLimit.ToolRPS = getFloatEnv("ADINSIGHTS_RATE_LIMIT_TOOL_RPS", c.RateLimit.ToolRPS)
	c.RateLimit.ToolBurst = getIntEnv("ADINSIGHTS_RATE_LIMIT_TOOL_BURST", c.RateLimit.ToolBurst)

	c.CORS.AllowedOrigins = getSliceEnv("ADINSIGHTS_CORS_ORIGINS", c.CORS.AllowedOrigins)

	c.Log.Level = getEnv("ADINSIGHTS_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("ADINSIGHTS_LOG_FORMAT", c.Log.Format)

	c.Metrics.Enabled = getBoolEnv("ADINSIGHTS_METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Path = getEnv("ADINSIGHTS_METRICS_PATH", c.Metrics.Path)
	c.Metrics.Namespace = getEnv("ADINSIGHTS_METRICS_NAMESPACE", c.Metrics.Namespace)
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.GraphAPI.AccessToken == "" {
		return fmt.Errorf("ADINSIGHTS_ACCESS_TOKEN is required")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("ADINSIGHTS_API_KEY is required when auth is enabled")
	}
	if c.Export.Enabled && c.Export.Bucket == "" {
		return fmt.Errorf("ADINSIGHTS_EXPORT_BUCKET is required when export is enabled")
	}
	if c.Async.PollInterval <= 0 || c.Async.Timeout <= 0 {
		return fmt.Errorf("async poll interval and timeout must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// LogFormat returns the configured log format, or console in development and
// json everywhere else when none is set.
func (c *Config) LogFormat() string {
	if c.Log.Format != "" {
		return c.Log.Format
	}
	if c.IsDevelopment() {
		return "console"
	}
	return "json"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getSliceEnv(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return def
}
