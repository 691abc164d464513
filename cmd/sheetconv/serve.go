package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetconv/internal/metrics"
	"github.com/JonMunkholm/sheetconv/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server.

Routes:
  GET  /                          upload page
  GET  /healthz                   health and limiter status
  GET  /metrics                   Prometheus metrics
  GET  /api/schemas               schema list
  GET  /api/schemas/{key}         one definition
  GET  /api/template/{key}        empty CSV template
  POST /api/sheets                sheet names of an uploaded workbook
  POST /api/convert/{key}         convert an upload
  POST /api/import/{key}          convert an upload and copy it into Postgres

Imports are enabled when DATABASE_URL is set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"database", cfg.Database.Enabled(),
		"max_concurrent", cfg.Convert.MaxConcurrent,
		"api_key_required", cfg.Security.RequireAPIKey,
	)

	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	var pool *pgxpool.Pool
	if cfg.Database.Enabled() {
		if pool, err = openPool(ctx); err != nil {
			return err
		}
		defer pool.Close()
	} else {
		slog.Warn("no database configured, imports are disabled")
	}

	m := metrics.New(nil)
	svc := newService(reg, pool, m)
	server := web.NewServer(svc, m, cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop accepting requests, then wait for running conversions
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	status := svc.Limiter().Status()
	if status.Active > 0 {
		slog.Info("waiting for conversions to complete", "active", status.Active)
		start := time.Now()
		if err := svc.Limiter().WaitForDrain(shutdownCtx); err != nil {
			slog.Warn("conversions did not complete in time", "error", err)
		} else {
			slog.Info("all conversions completed", "waited", time.Since(start))
		}
	}

	slog.Info("server stopped")
	return nil
}
