package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Production bool   `env:"PRODUCTION" envDefault:"false"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	HTTP           HTTPConfig
	Yahoo          YahooConfig
	Treasury       TreasuryConfig
	Batch          BatchConfig
	Cache          CacheConfig
	Redis          RedisConfig
	Database       DatabaseConfig
	CircuitBreaker CircuitBreakerConfig
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Host               string        `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port               string        `env:"HTTP_PORT" envDefault:"5000"`
	ReadTimeout        time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout       time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"180s"`
	RequestTimeout     time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"150s"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// YahooConfig holds the market data provider configuration
type YahooConfig struct {
	BaseURL        string        `env:"YAHOO_BASE_URL" envDefault:"https://query2.finance.yahoo.com"`
	CookieURL      string        `env:"YAHOO_COOKIE_URL" envDefault:"https://fc.yahoo.com"`
	UserAgent      string        `env:"YAHOO_USER_AGENT" envDefault:"RodrigoSilvaAnalise/1.0"`
	Timeout        time.Duration `env:"YAHOO_TIMEOUT" envDefault:"15s"`
	StatementYears int           `env:"YAHOO_STATEMENT_YEARS" envDefault:"10"`
}

// TreasuryConfig holds the fallback treasury sources
type TreasuryConfig struct {
	XMLURL         string        `env:"TREASURY_XML_URL" envDefault:"https://www.treasury.gov/resource-center/data-chart-center/interest-rates/pages/XmlView.aspx?data=yield"`
	FiscalDataURL  string        `env:"TREASURY_FISCAL_DATA_URL" envDefault:"https://api.fiscaldata.treasury.gov/services/api/fiscal_service/v2/accounting/od/avg_interest_rates"`
	FiscalDataFrom string        `env:"TREASURY_FISCAL_DATA_SINCE" envDefault:"2024-01-01"`
	Timeout        time.Duration `env:"TREASURY_TIMEOUT" envDefault:"5s"`
}

// BatchConfig holds multi-ticker limits
type BatchConfig struct {
	MaxTickers int `env:"BATCH_MAX_TICKERS" envDefault:"10"`
}

// Cache backends
const (
	CacheMemory   = "memory"
	CacheRedis    = "redis"
	CachePostgres = "postgres"
	CacheNone     = "none"
)

// CacheConfig holds the provider response cache configuration
type CacheConfig struct {
	Backend    string        `env:"CACHE_BACKEND" envDefault:"memory"`
	TTL        time.Duration `env:"CACHE_TTL" envDefault:"1h"`
	MaxEntries int           `env:"CACHE_MAX_ENTRIES" envDefault:"1000"`
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL"`
}

// CircuitBreakerConfig holds gobreaker settings shared by all upstreams
type CircuitBreakerConfig struct {
	MaxRequests uint32        `env:"BREAKER_MAX_REQUESTS" envDefault:"5"`
	Interval    time.Duration `env:"BREAKER_INTERVAL" envDefault:"1m"`
	Timeout     time.Duration `env:"BREAKER_TIMEOUT" envDefault:"30s"`
}

// LoadDotEnv loads variables from the given .env files (default ".env").
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	if c.HTTP.Port == "" {
		return fmt.Errorf("HTTP_PORT must not be empty")
	}
	if c.HTTP.RequestTimeout <= 0 {
		return fmt.Errorf("HTTP_REQUEST_TIMEOUT must be positive, got %s", c.HTTP.RequestTimeout)
	}
	if len(c.HTTP.CORSAllowedOrigins) == 0 {
		return fmt.Errorf("CORS_ALLOWED_ORIGINS must not be empty")
	}

	if c.Yahoo.BaseURL == "" {
		return fmt.Errorf("YAHOO_BASE_URL must not be empty")
	}
	if c.Yahoo.Timeout <= 0 {
		return fmt.Errorf("YAHOO_TIMEOUT must be positive, got %s", c.Yahoo.Timeout)
	}
	if c.Yahoo.StatementYears <= 0 {
		return fmt.Errorf("YAHOO_STATEMENT_YEARS must be positive, got %d", c.Yahoo.StatementYears)
	}

	if c.Treasury.Timeout <= 0 {
		return fmt.Errorf("TREASURY_TIMEOUT must be positive, got %s", c.Treasury.Timeout)
	}
	if _, err := time.Parse(time.DateOnly, c.Treasury.FiscalDataFrom); err != nil {
		return fmt.Errorf("TREASURY_FISCAL_DATA_SINCE must be a YYYY-MM-DD date, got %q", c.Treasury.FiscalDataFrom)
	}

	if c.Batch.MaxTickers <= 0 {
		return fmt.Errorf("BATCH_MAX_TICKERS must be positive, got %d", c.Batch.MaxTickers)
	}

	switch c.Cache.Backend {
	case CacheNone:
	case CacheMemory:
		if c.Cache.MaxEntries <= 0 {
			return fmt.Errorf("CACHE_MAX_ENTRIES must be positive, got %d", c.Cache.MaxEntries)
		}
	case CacheRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis cache backend")
		}
	case CachePostgres:
		if !c.HasDatabase() {
			return fmt.Errorf("DATABASE_URL is required for the postgres cache backend")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be one of memory, redis, postgres, none; got %q", c.Cache.Backend)
	}
	if c.Cache.Backend != CacheNone && c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.Cache.TTL)
	}

	return nil
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return net.JoinHostPort(c.HTTP.Host, c.HTTP.Port)
}

// HasDatabase returns true if database configuration is available
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// SlogLevel parses LOG_LEVEL
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	return level, nil
}

// NewTestConfig creates a Config with default values for testing.
// The process environment is ignored.
func NewTestConfig() *Config {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: map[string]string{}}); err != nil {
		panic(fmt.Sprintf("invalid config defaults: %v", err))
	}
	return cfg
}
