package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"analise-fundamental/internal/api"
	"analise-fundamental/observability"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			cfg.HTTP.Port = port
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		application := buildApp(ctx, cfg)
		handler := api.NewHandler(application, cfg)

		server := &http.Server{
			Addr:         cfg.Addr(),
			Handler:      api.NewRouter(handler, cfg),
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			observability.Info("starting server", "addr", server.Addr, "cache", cfg.Cache.Backend)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				application.Shutdown(context.Background())
				return err
			}
		case <-ctx.Done():
		}

		observability.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			observability.Error("server forced to shutdown", "error", err)
		}
		application.Shutdown(shutdownCtx)
		observability.Info("server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("port", "", "override HTTP_PORT")
}
