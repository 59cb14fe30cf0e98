// Command analise serves the fundamentals API and exposes its operations on
// the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"analise-fundamental/config"
	"analise-fundamental/fundamentals"
	"analise-fundamental/internal/app"
	"analise-fundamental/models"
	"analise-fundamental/observability"
	"analise-fundamental/repository"
	"analise-fundamental/services"
)

// Build-time variables (set via -ldflags)
var (
	version = "dev"
	commit  = "unknown"
)

var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "analise",
	Short:         "Fundamentals and US Treasury yield API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.LogLevel = level
		}

		level, err := cfg.SlogLevel()
		if err != nil {
			return err
		}
		observability.InitLoggerWithLevel(cfg.Production, level)
		observability.InitMetrics()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(acaoCmd)
	rootCmd.AddCommand(tesouroCmd)
	rootCmd.AddCommand(cacheCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// Skips config loading
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", models.ServiceName, models.ServiceVersion)
		fmt.Fprintf(cmd.OutOrStdout(), "  build:   %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "  commit:  %s\n", commit)
	},
}

// buildApp wires providers, cache and breakers from cfg. A cache backend
// that cannot be reached is logged and disabled.
func buildApp(ctx context.Context, cfg *config.Config) *app.App {
	metrics := observability.GetMetrics()

	cache, err := repository.NewResponseCache(ctx, cfg)
	if err != nil {
		observability.Warn("response cache unavailable, running without cache",
			"backend", cfg.Cache.Backend,
			"error", err)
		cache = nil
	}
	var appCache app.CacheInterface
	if cache != nil {
		appCache = cache
		observability.Info("response cache ready", "backend", cache.Backend())
	}

	breakers := services.NewCircuitBreakerRegistry(cfg.CircuitBreaker, metrics)
	yahoo := services.NewYahooService(cfg.Yahoo, services.YahooDeps{
		Cache:    cache,
		CacheTTL: cfg.Cache.TTL,
		Breakers: breakers,
		Metrics:  metrics,
	})
	treasury := services.NewDefaultTreasuryResolver(cfg.Treasury, yahoo, breakers, metrics)

	return app.New(cfg, fundamentals.NewBuilder(yahoo), treasury, appCache, breakers, metrics)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
