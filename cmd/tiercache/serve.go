package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"github.com/objectfs/tiercache/internal/config"
	"github.com/objectfs/tiercache/internal/metrics"
	"github.com/objectfs/tiercache/internal/monitor"
	"github.com/objectfs/tiercache/internal/registry"
	"github.com/objectfs/tiercache/pkg/api"
	"github.com/objectfs/tiercache/pkg/cacheutil"
	"github.com/objectfs/tiercache/pkg/types"
	"github.com/objectfs/tiercache/pkg/utils"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the caches, the stats monitor and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}

			logger, err := utils.SetupLogging(cfg.Global.LogLevel, cfg.Global.LogFormat, os.Stderr)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			if err := a.start(ctx); err != nil {
				a.close()
				return err
			}

			<-ctx.Done()
			logger.Info("Shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return a.shutdown(shutdownCtx)
		},
	}
}

// app holds the running components of the serve command
type app struct {
	cfg       *config.Configuration
	logger    *slog.Logger
	registry  *registry.Registry
	collector *metrics.Collector
	monitor   *monitor.Monitor
	server    *api.Server
	redis     *redis.Client
}

func newApp(ctx context.Context, cfg *config.Configuration, logger *slog.Logger) (*app, error) {
	reg, err := registry.FromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, registry: reg}

	var sinks []types.Sink
	if cfg.Monitor.Log.Enabled {
		sinks = append(sinks, monitor.NewLogSink(logger))
	}

	// The collector reads live stats at scrape time.
	snapshot := func() types.Snapshot {
		return types.Snapshot{Taken: time.Now(), Caches: reg.Stats()}
	}
	a.collector, err = metrics.NewCollector(&metrics.Config{
		Enabled:   cfg.Monitor.Prometheus.Enabled,
		Path:      "/metrics",
		Namespace: cfg.Monitor.Prometheus.Namespace,
		Labels:    map[string]string{},
	}, snapshot)
	if err != nil {
		a.close()
		return nil, err
	}
	if a.collector.Enabled() {
		sinks = append(sinks, a.collector)
	}

	if cfg.Monitor.Redis.Enabled {
		a.redis, err = monitor.NewRedisClient(ctx, cfg.Monitor.Redis)
		if err != nil {
			a.close()
			return nil, err
		}
		sinks = append(sinks, monitor.NewRedisSink(a.redis, cfg.Monitor.Redis.KeyPrefix, cfg.Monitor.Redis.TTL))
	}

	if cfg.Monitor.S3.Enabled {
		client, err := monitor.NewS3Client(ctx, cfg.Monitor.S3)
		if err != nil {
			a.close()
			return nil, err
		}
		sinks = append(sinks, monitor.NewS3Sink(client, cfg.Monitor.S3.Bucket, cfg.Monitor.S3.Prefix))
	}

	a.monitor = monitor.New(monitor.Config{
		Interval: cfg.Monitor.Interval,
		Retry:    cfg.Monitor.Retry,
		Logger:   logger,
	}, reg, sinks...)

	serverConfig := api.DefaultServerConfig()
	serverConfig.Address = cfg.Global.HTTPAddress
	a.server = api.NewServer(serverConfig, reg,
		api.WithCollector(a.collector),
		api.WithLogger(logger))

	return a, nil
}

// start begins monitoring, warms the caches in the background and serves
// the API
func (a *app) start(ctx context.Context) error {
	if err := a.monitor.Start(ctx); err != nil {
		return err
	}

	if len(a.cfg.Warmup) > 0 {
		entries := make([]cacheutil.WarmEntry, 0, len(a.cfg.Warmup))
		for _, w := range a.cfg.Warmup {
			entries = append(entries, cacheutil.StaticEntry(w.Cache, w.Key, json.RawMessage(w.Value), w.TTL))
		}
		// WarmCache logs its own summary and the report channel is buffered.
		cacheutil.WarmCache(ctx, a.registry, entries, cacheutil.WithLogger(a.logger))
	}

	a.server.StartBackground()
	a.logger.Info("tiercache started",
		"caches", a.registry.Names(),
		"sinks", a.monitor.Sinks(),
		"address", a.cfg.Global.HTTPAddress)
	return nil
}

// shutdown stops the API, flushes a final snapshot and releases resources
func (a *app) shutdown(ctx context.Context) error {
	var firstErr error
	if err := a.server.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("api shutdown: %w", err)
	}

	a.monitor.Stop()
	if err := a.monitor.EmitNow(ctx); err != nil {
		a.logger.Warn("Final stats flush failed", "error", err)
	}

	a.close()
	return firstErr
}

func (a *app) close() {
	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close redis client", "error", err)
		}
		a.redis = nil
	}
	if a.registry != nil {
		a.registry.Close()
	}
}
