// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// MySQLConfig holds connection settings for the relational store.
type MySQLConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	// MaxConns bounds the connection pool (default 8).
	MaxConns int
}

// DSN renders the go-sql-driver/mysql data source name. parseTime makes the
// driver scan DATETIME columns into time.Time.
func (m *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		m.User, m.Password, m.Host, m.Port, m.Database)
}

// InfluxConfig holds connection settings for the time-series store
// (InfluxDB 1.x, InfluxQL over HTTP).
type InfluxConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	// MaxConcurrent bounds in-flight queries against the store (default 8).
	MaxConcurrent int
}

// URL renders the HTTP base URL of the InfluxDB server.
func (i *InfluxConfig) URL() string {
	return (&url.URL{Scheme: "http", Host: fmt.Sprintf("%s:%d", i.Host, i.Port)}).String()
}

// LLMConfig holds settings for the OpenAI-compatible language model endpoint.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// Timeout bounds the single completion call per question (default 60s).
	Timeout time.Duration
}

// Config holds the configuration for the federated query service.
type Config struct {
	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	// JWTSecret enables HS256 bearer auth on /v1 when set. Empty disables auth.
	JWTSecret string

	// Rate limiting (0 RPS disables the limiter)
	RateLimitRPS   float64
	RateLimitBurst int

	// CORS
	CORSAllowedOrigins []string

	MySQL  MySQLConfig
	Influx InfluxConfig
	LLM    LLMConfig

	// QueryTimeout bounds each plan step attempt (default 30s).
	QueryTimeout time.Duration
	// MaxRetries is the number of retries after the first attempt for
	// transient store failures (default 2).
	MaxRetries int

	// CatalogFile points at a YAML catalog document. Empty means the catalog
	// is introspected from the live stores at startup.
	CatalogFile string
	// CatalogLinks declares join links in introspection mode, formatted
	// "table.column=measurement.tag", comma-separated.
	CatalogLinks string
	// CatalogRefreshCron re-runs the catalog source on a schedule
	// (robfig/cron syntax, e.g. "@every 10m"). Empty disables refresh.
	CatalogRefreshCron string

	// HistoryDBPath is the SQLite file for answered-question history.
	// "off" disables history entirely.
	HistoryDBPath string

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// HistoryEnabled reports whether query history should be persisted.
func (c *Config) HistoryEnabled() bool {
	return !strings.EqualFold(c.HistoryDBPath, "off")
}

// AuthEnabled reports whether bearer auth is required on the API.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddr: os.Getenv("SERVER_ADDR"),
		LogLevel:   os.Getenv("LOG_LEVEL"),
		Env:        os.Getenv("ENV"),
		JWTSecret:  os.Getenv("AUTH_JWT_SECRET"),
		MySQL: MySQLConfig{
			Host:     os.Getenv("MYSQL_HOST"),
			Port:     parseIntEnvDefault("MYSQL_PORT", 3306),
			User:     os.Getenv("MYSQL_USER"),
			Password: os.Getenv("MYSQL_PASSWORD"),
			Database: os.Getenv("MYSQL_DATABASE"),
			MaxConns: parseIntEnvDefault("MYSQL_MAX_CONNS", 8),
		},
		Influx: InfluxConfig{
			Host:          os.Getenv("INFLUXDB_HOST"),
			Port:          parseIntEnvDefault("INFLUXDB_PORT", 8086),
			User:          os.Getenv("INFLUXDB_USER"),
			Password:      os.Getenv("INFLUXDB_PASSWORD"),
			Database:      os.Getenv("INFLUXDB_DATABASE"),
			MaxConcurrent: parseIntEnvDefault("INFLUX_MAX_CONCURRENT", 8),
		},
		LLM: LLMConfig{
			APIKey:  os.Getenv("LLM_API_KEY"),
			BaseURL: os.Getenv("LLM_BASE_URL"),
			Model:   os.Getenv("LLM_MODEL"),
			Timeout: parseDurationEnvDefault("LLM_TIMEOUT", 60*time.Second),
		},
		QueryTimeout:       parseDurationEnvDefault("QUERY_TIMEOUT", 30*time.Second),
		MaxRetries:         parseIntEnvDefault("MAX_RETRIES", 2),
		CatalogFile:        os.Getenv("CATALOG_FILE"),
		CatalogLinks:       os.Getenv("CATALOG_LINKS"),
		CatalogRefreshCron: os.Getenv("CATALOG_REFRESH_CRON"),
		HistoryDBPath:      os.Getenv("HISTORY_DB_PATH"),
	}

	// Rate limiting
	cfg.RateLimitRPS = 10
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_RPS %q: %w", v, err)
		}
		cfg.RateLimitRPS = f
	}
	cfg.RateLimitBurst = 20
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_BURST %q: %w", v, err)
		}
		cfg.RateLimitBurst = n
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = origins
	}

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.MySQL.Host == "" {
		cfg.MySQL.Host = "localhost"
	}
	if cfg.Influx.Host == "" {
		cfg.Influx.Host = "localhost"
	}
	if cfg.HistoryDBPath == "" {
		cfg.HistoryDBPath = "fedquery.db"
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("MAX_RETRIES must be >= 0, got %d", cfg.MaxRetries)
	}

	// Non-fatal warnings for settings that usually mean a misconfigured
	// environment.
	if cfg.LLM.APIKey == "" {
		cfg.Warnings = append(cfg.Warnings, "LLM_API_KEY not set; intent extraction will fail against the real endpoint")
	}
	if cfg.JWTSecret == "" {
		cfg.Warnings = append(cfg.Warnings, "AUTH_JWT_SECRET not set; API auth is disabled")
	}
	if cfg.MySQL.Database == "" {
		cfg.Warnings = append(cfg.Warnings, "MYSQL_DATABASE not set")
	}
	if cfg.Influx.Database == "" {
		cfg.Warnings = append(cfg.Warnings, "INFLUXDB_DATABASE not set")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("AUTH_JWT_SECRET must be set in production (ENV=production)")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}

	return cfg, nil
}

func parseIntEnvDefault(key string, defaultVal int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func parseDurationEnvDefault(key string, defaultVal time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = stripQuotes(value)
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
