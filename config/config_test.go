package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// saveEnv saves current environment variables for restoration
func saveEnv(t *testing.T, keys []string) map[string]string {
	t.Helper()
	saved := make(map[string]string)
	for _, key := range keys {
		saved[key] = os.Getenv(key)
	}
	return saved
}

// restoreEnv restores previously saved environment variables
func restoreEnv(t *testing.T, saved map[string]string) {
	t.Helper()
	for key, val := range saved {
		if val == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, val)
		}
	}
}

// clearEnv clears environment variables
func clearEnv(t *testing.T, keys []string) {
	t.Helper()
	for _, key := range keys {
		os.Unsetenv(key)
	}
}

var allEnvKeys = []string{
	"PRODUCTION",
	"LOG_LEVEL",
	"HTTP_HOST",
	"HTTP_PORT",
	"HTTP_READ_TIMEOUT",
	"HTTP_WRITE_TIMEOUT",
	"HTTP_REQUEST_TIMEOUT",
	"CORS_ALLOWED_ORIGINS",
	"YAHOO_BASE_URL",
	"YAHOO_COOKIE_URL",
	"YAHOO_USER_AGENT",
	"YAHOO_TIMEOUT",
	"YAHOO_STATEMENT_YEARS",
	"TREASURY_XML_URL",
	"TREASURY_FISCAL_DATA_URL",
	"TREASURY_FISCAL_DATA_SINCE",
	"TREASURY_TIMEOUT",
	"BATCH_MAX_TICKERS",
	"CACHE_BACKEND",
	"CACHE_TTL",
	"CACHE_MAX_ENTRIES",
	"REDIS_ADDR",
	"REDIS_PASSWORD",
	"REDIS_DB",
	"DATABASE_URL",
	"BREAKER_MAX_REQUESTS",
	"BREAKER_INTERVAL",
	"BREAKER_TIMEOUT",
}

func TestLoad_Defaults(t *testing.T) {
	saved := saveEnv(t, allEnvKeys)
	defer restoreEnv(t, saved)
	clearEnv(t, allEnvKeys)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Production {
		t.Error("expected Production to default to false")
	}
	if cfg.HTTP.Port != "5000" {
		t.Errorf("expected HTTP port 5000, got %s", cfg.HTTP.Port)
	}
	if cfg.Addr() != "0.0.0.0:5000" {
		t.Errorf("expected addr 0.0.0.0:5000, got %s", cfg.Addr())
	}
	if len(cfg.HTTP.CORSAllowedOrigins) != 1 || cfg.HTTP.CORSAllowedOrigins[0] != "*" {
		t.Errorf("expected CORS origins [*], got %v", cfg.HTTP.CORSAllowedOrigins)
	}
	if cfg.Yahoo.UserAgent != "RodrigoSilvaAnalise/1.0" {
		t.Errorf("unexpected user agent %q", cfg.Yahoo.UserAgent)
	}
	if cfg.Treasury.Timeout != 5*time.Second {
		t.Errorf("expected treasury timeout 5s, got %s", cfg.Treasury.Timeout)
	}
	if cfg.Treasury.FiscalDataFrom != "2024-01-01" {
		t.Errorf("expected fiscal data filter 2024-01-01, got %s", cfg.Treasury.FiscalDataFrom)
	}
	if cfg.Batch.MaxTickers != 10 {
		t.Errorf("expected batch cap 10, got %d", cfg.Batch.MaxTickers)
	}
	if cfg.Cache.Backend != CacheMemory {
		t.Errorf("expected memory cache, got %s", cfg.Cache.Backend)
	}
	if cfg.Cache.TTL != time.Hour {
		t.Errorf("expected cache TTL 1h, got %s", cfg.Cache.TTL)
	}
	if cfg.CircuitBreaker.MaxRequests != 5 {
		t.Errorf("expected breaker max requests 5, got %d", cfg.CircuitBreaker.MaxRequests)
	}
	if cfg.HasDatabase() {
		t.Error("expected no database by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	saved := saveEnv(t, allEnvKeys)
	defer restoreEnv(t, saved)
	clearEnv(t, allEnvKeys)

	os.Setenv("HTTP_PORT", "8080")
	os.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,https://app.example.com")
	os.Setenv("BATCH_MAX_TICKERS", "25")
	os.Setenv("CACHE_BACKEND", "postgres")
	os.Setenv("DATABASE_URL", "postgres://localhost/analise")
	os.Setenv("CACHE_TTL", "15m")
	os.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.HTTP.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.HTTP.Port)
	}
	if len(cfg.HTTP.CORSAllowedOrigins) != 2 {
		t.Errorf("expected 2 CORS origins, got %v", cfg.HTTP.CORSAllowedOrigins)
	}
	if cfg.Batch.MaxTickers != 25 {
		t.Errorf("expected batch cap 25, got %d", cfg.Batch.MaxTickers)
	}
	if cfg.Cache.TTL != 15*time.Minute {
		t.Errorf("expected TTL 15m, got %s", cfg.Cache.TTL)
	}
	level, _ := cfg.SlogLevel()
	if level != slog.LevelDebug {
		t.Errorf("expected debug level, got %s", level)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"unparsable duration", map[string]string{"CACHE_TTL": "soon"}, "failed to parse environment"},
		{"unknown backend", map[string]string{"CACHE_BACKEND": "memcached"}, "CACHE_BACKEND"},
		{"postgres without url", map[string]string{"CACHE_BACKEND": "postgres"}, "DATABASE_URL"},
		{"zero batch cap", map[string]string{"BATCH_MAX_TICKERS": "0"}, "BATCH_MAX_TICKERS"},
		{"bad log level", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"bad fiscal date", map[string]string{"TREASURY_FISCAL_DATA_SINCE": "01/01/2024"}, "TREASURY_FISCAL_DATA_SINCE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saved := saveEnv(t, allEnvKeys)
			defer restoreEnv(t, saved)
			clearEnv(t, allEnvKeys)

			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			_, err := Load()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_CacheNoneSkipsTTL(t *testing.T) {
	cfg := NewTestConfig()
	cfg.Cache.Backend = CacheNone
	cfg.Cache.TTL = 0

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected no error with cache disabled, got %v", err)
	}
}

func TestNewTestConfig(t *testing.T) {
	os.Setenv("HTTP_PORT", "9999")
	defer os.Unsetenv("HTTP_PORT")

	cfg := NewTestConfig()
	if cfg.HTTP.Port != "5000" {
		t.Errorf("NewTestConfig should ignore the environment, got port %s", cfg.HTTP.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("test config should be valid: %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	saved := saveEnv(t, []string{"ANALISE_DOTENV_PROBE"})
	defer restoreEnv(t, saved)
	os.Unsetenv("ANALISE_DOTENV_PROBE")

	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("ANALISE_DOTENV_PROBE=loaded\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() returned error: %v", err)
	}
	if got := os.Getenv("ANALISE_DOTENV_PROBE"); got != "loaded" {
		t.Errorf("expected variable from .env, got %q", got)
	}

	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing file should be ignored, got %v", err)
	}
}
