// Command localzure-sub001 wires a servicebus.Broker with its production
// ports and runs the background maintenance loop until interrupted. It
// exposes a Prometheus /metrics endpoint but no REST/AMQP surface: spec.md
// §1 places that out of scope, so this binary exists only to prove the
// core wires together the way a real deployment would.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/oladejiayo/localzure-sub001/internal/audit"
	"github.com/oladejiayo/localzure-sub001/internal/brokerconfig"
	"github.com/oladejiayo/localzure-sub001/internal/metrics"
	"github.com/oladejiayo/localzure-sub001/internal/obslog"
	"github.com/oladejiayo/localzure-sub001/internal/persist"
	"github.com/oladejiayo/localzure-sub001/internal/ports"
	"github.com/oladejiayo/localzure-sub001/internal/ratelimit"
	"github.com/oladejiayo/localzure-sub001/servicebus"
)

func main() {
	logger := obslog.New(os.Stdout, os.Stderr, slog.LevelInfo)

	cfgPath := envOr("LOCALZURE_CONFIG", "./localzure-sub001.json")
	cfg := brokerconfig.NewDefaultConfig()
	if cfgMgr, err := brokerconfig.NewManager(cfgPath); err != nil {
		logger.Error("failed to initialize config directory, using defaults", "error", err, "path", cfgPath)
	} else if loaded, err := cfgMgr.Load(); err != nil {
		logger.Error("failed to load config, using defaults", "error", err, "path", cfgPath)
	} else {
		cfg = loaded
	}

	prom := metrics.NewPrometheus("localzure_sub001")

	auditSink := openAudit(cfg, logger)
	persistence := openPersistence(cfg, logger)

	broker := servicebus.New(cfg, servicebus.Deps{
		Audit:       auditSink,
		Metrics:     prom,
		Persistence: persistence,
		RateLimiter: openRateLimiter(cfg),
		Logger:      logger,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	maintDone := broker.StartMaintenance(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", prom.Handler())
	httpServer := &http.Server{Addr: envOr("LOCALZURE_METRICS_ADDR", ":9464"), Handler: mux}

	go func() {
		logger.Info("metrics server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server exited", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	_ = httpServer.Close()
	<-maintDone
	if err := broker.Close(); err != nil {
		logger.Error("broker close returned an error", "error", err)
	}
}

// openAudit wires a file-backed audit sink when cfg.AuditDir is set,
// otherwise discards audit events.
func openAudit(cfg *brokerconfig.Config, logger ports.Logger) ports.AuditSink {
	if cfg.AuditDir == "" {
		return audit.NoopSink{}
	}
	sink, err := audit.NewFileSink(cfg.AuditDir)
	if err != nil {
		logger.Error("failed to open audit sink, falling back to noop", "error", err, "dir", cfg.AuditDir)
		return audit.NoopSink{}
	}
	return sink
}

// openPersistence wires a file-backed snapshot+log store when
// cfg.PersistenceDir is set, otherwise the broker runs purely in memory.
func openPersistence(cfg *brokerconfig.Config, logger ports.Logger) ports.Persistence {
	if cfg.PersistenceDir == "" {
		return persist.Noop{}
	}
	store, err := persist.NewFileStore(cfg.PersistenceDir)
	if err != nil {
		logger.Error("failed to open persistence store, running in-memory", "error", err, "dir", cfg.PersistenceDir)
		return persist.Noop{}
	}
	return store
}

// openRateLimiter wires a token-bucket rate limiter when cfg.RateLimitEnabled
// is set, otherwise every Check call always allows (spec.md §4.J: the rate
// limiter is only wired when quota enforcement is turned on).
func openRateLimiter(cfg *brokerconfig.Config) ports.RateLimiter {
	if !cfg.RateLimitEnabled {
		return ratelimit.Noop{}
	}
	return ratelimit.NewTokenBucket(cfg.RateLimitMaxTokens, cfg.RateLimitRefillPerSecond)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
