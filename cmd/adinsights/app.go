package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/radiusdt/adinsights/internal/config"
	"github.com/radiusdt/adinsights/internal/database"
	"github.com/radiusdt/adinsights/internal/graphapi"
	"github.com/radiusdt/adinsights/internal/httpserver"
	"github.com/radiusdt/adinsights/internal/metrics"
	"github.com/radiusdt/adinsights/internal/reporting"
	"github.com/radiusdt/adinsights/internal/storage"
	"github.com/radiusdt/adinsights/internal/tools"
	"go.uber.org/zap"
)

// app holds the wired components and the cleanup for every opened backend.
type app struct {
	registry *tools.Registry
	metrics  *metrics.Metrics
	checks   map[string]httpserver.HealthChecker
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// bootstrap connects the optional backends and builds the tool registry.
// A backend that is enabled but unreachable is logged and skipped.
func bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger) *app {
	a := &app{checks: make(map[string]httpserver.HealthChecker)}

	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewMetrics(cfg.Metrics.Namespace, prometheus.DefaultRegisterer)
	}

	client := graphapi.NewClient(graphapi.Config{
		BaseURL:     cfg.GraphAPI.BaseURL,
		Version:     cfg.GraphAPI.Version,
		AccessToken: cfg.GraphAPI.AccessToken,
		Timeout:     cfg.GraphAPI.Timeout,
		MaxRetries:  cfg.GraphAPI.MaxRetries,
		RPS:         cfg.GraphAPI.RPS,
		Burst:       cfg.GraphAPI.Burst,
		MaxPages:    cfg.GraphAPI.MaxPages,
	}, logger.Named("graphapi"), a.metrics)

	var fetcher reporting.ReportFetcher = client
	if cfg.Cache.Enabled {
		redisDB, err := database.NewRedisDB(ctx, cfg.Cache, logger)
		if err != nil {
			logger.Warn("Redis not available, report cache disabled", zap.Error(err))
		} else {
			a.closers = append(a.closers, func() { _ = redisDB.Close() })
			a.checks["redis"] = redisDB
			fetcher = reporting.NewCachedFetcher(client, redisDB.Client, cfg.Cache.TTL, logger.Named("cache"), a.metrics)
		}
	}

	var audit storage.AuditStore = storage.NewInMemoryAuditStore(1000)
	if cfg.Audit.Enabled {
		db, err := database.NewPostgresDB(ctx, cfg.Audit, logger)
		if err != nil {
			logger.Warn("PostgreSQL not available, using in-memory audit log", zap.Error(err))
		} else {
			store := storage.NewPostgresAuditStore(db.DB)
			if err := store.EnsureSchema(ctx); err != nil {
				logger.Warn("failed to create audit schema, using in-memory audit log", zap.Error(err))
				db.Close()
			} else {
				a.closers = append(a.closers, db.Close)
				a.checks["postgres"] = db
				audit = store
			}
		}
	}

	var archive storage.KPIArchive = storage.NopArchive{}
	if cfg.Archive.Enabled {
		ch, err := database.NewClickHouseDB(ctx, cfg.Archive, logger)
		if err != nil {
			logger.Warn("ClickHouse not available, KPI archive disabled", zap.Error(err))
		} else {
			chArchive := storage.NewClickHouseArchive(ch.Conn, logger.Named("archive"))
			if err := chArchive.EnsureSchema(ctx); err != nil {
				logger.Warn("failed to create archive schema, KPI archive disabled", zap.Error(err))
				_ = ch.Close()
			} else {
				a.closers = append(a.closers, func() { _ = ch.Close() })
				a.checks["clickhouse"] = ch
				archive = chArchive
			}
		}
	}

	var exporter storage.RowExporter
	if cfg.Export.Enabled {
		s3Client, err := database.NewS3Client(ctx, cfg.Export, logger)
		if err != nil {
			logger.Warn("S3 not available, row export disabled", zap.Error(err))
		} else {
			exporter = storage.NewS3Exporter(s3Client, cfg.Export.Bucket, cfg.Export.Prefix, logger.Named("export"))
		}
	}

	svc := reporting.NewService(reporting.Options{
		Fetcher:          fetcher,
		Async:            client,
		Archive:          archive,
		Exporter:         exporter,
		DefaultAccountID: cfg.GraphAPI.DefaultAccountID,
		PageSize:         cfg.GraphAPI.PageSize,
		PollInterval:     cfg.Async.PollInterval,
		JobTimeout:       cfg.Async.Timeout,
		Logger:           logger.Named("reporting"),
		Metrics:          a.metrics,
	})

	a.registry = tools.NewRegistry(svc, audit, logger.Named("tools"), a.metrics)
	return a
}
