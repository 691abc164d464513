package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/sheetconv/internal/metrics"
	"github.com/JonMunkholm/sheetconv/internal/schema"
	"github.com/JonMunkholm/sheetconv/internal/service"
	"github.com/JonMunkholm/sheetconv/internal/store"
)

// loadRegistry reads every definition under the configured schema directory.
func loadRegistry() (*schema.Registry, error) {
	reg := schema.NewRegistry()
	n, err := reg.LoadDir(cfg.Convert.SchemaDir)
	if err != nil {
		return nil, err
	}

	slog.Info("schemas registered",
		"dir", cfg.Convert.SchemaDir,
		"count", n,
		"groups", len(reg.Groups()),
	)
	for _, group := range reg.Groups() {
		slog.Debug("schema group", "group", group, "schemas", len(reg.ByGroup(group)))
	}
	return reg, nil
}

// openPool connects to the configured database and verifies the connection.
func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	// Apply pool configuration from config
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}

// newService wires the service. pool and m may be nil.
func newService(reg *schema.Registry, pool *pgxpool.Pool, m *metrics.Collector) *service.Service {
	var db store.CopyFromer
	if pool != nil {
		db = pool
	}
	return service.New(reg, store.NewSink(db, slog.Default()), m, serviceOptions())
}

func serviceOptions() service.Options {
	return service.Options{
		MaxBytes:      cfg.Convert.MaxFileSize,
		DefaultSheet:  cfg.Convert.DefaultSheet,
		Date1904:      cfg.Convert.Date1904,
		Timeout:       cfg.Convert.Timeout,
		MaxConcurrent: cfg.Convert.MaxConcurrent,
		MaxWait:       cfg.Convert.MaxWait,
	}
}
