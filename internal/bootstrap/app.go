// Package bootstrap handles service initialization and lifecycle for the
// datashare binaries. Each binary calls one Run function; the shared
// components (config, logger, registry, event channel, collaborator
// clients, admin server) are built here in dependency order.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/crossmesh/datashare/internal/collab"
	"github.com/crossmesh/datashare/internal/config"
	"github.com/crossmesh/datashare/internal/events"
	"github.com/crossmesh/datashare/internal/logger"
	"github.com/crossmesh/datashare/internal/machine"
	"github.com/crossmesh/datashare/internal/metrics"
	"github.com/crossmesh/datashare/internal/profiling"
	"github.com/crossmesh/datashare/internal/registry"
	"github.com/crossmesh/datashare/internal/server"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 30 * time.Second
)

// app holds the components shared by every domain role.
type app struct {
	cfg        *config.Config
	log        logger.Logger
	registry   *registry.PostgresStore
	redis      *redis.Client
	promReg    *prometheus.Registry
	metrics    *metrics.Metrics
	executions *machine.ExecutionStore
	executor   *machine.Executor
	publisher  *events.Publisher
	profiler   *profiling.Profiler

	catalog     *collab.HTTPCatalog
	permissions *collab.HTTPPermissions
	crawlJobs   *collab.HTTPCrawlJobs
}

// setup builds the shared components in dependency order.
func setup(service, configPath string) (*app, error) {
	cfg, err := config.Load[config.Config](configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	profiling.StartPprofServer(log)
	profiler, err := profiling.StartPyroscope(service, log)
	if err != nil {
		// Profiling is optional; a misconfigured server must not stop boot.
		log.Warn("Continuous profiling unavailable", logger.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	store, err := registry.Open(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("registry schema: %w", err)
	}
	log.Info("Domain registry connected", logger.String("host", cfg.Database.Host))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		store.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	log.Info("Event channel connected", logger.String("address", cfg.Redis.Address))

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())
	promReg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promReg)

	collabClient := &http.Client{Timeout: cfg.Collaborators.Timeout}

	a := &app{
		cfg:         cfg,
		log:         log,
		registry:    store,
		redis:       redisClient,
		promReg:     promReg,
		metrics:     m,
		executions:  machine.NewExecutionStore(),
		executor:    machine.NewExecutor(log),
		publisher:   events.NewPublisher(redisClient, store, log, m),
		profiler:    profiler,
		catalog:     collab.NewHTTPCatalog(cfg.Collaborators.CatalogURL, collabClient),
		permissions: collab.NewHTTPPermissions(cfg.Collaborators.PermissionsURL, collabClient),
		crawlJobs:   collab.NewHTTPCrawlJobs(cfg.Collaborators.CrawlerURL, collabClient),
	}
	return a, nil
}

func (a *app) close() {
	if err := a.profiler.Stop(); err != nil {
		a.log.Error("Failed to stop profiler", logger.Error(err))
	}
	if err := a.registry.Close(); err != nil {
		a.log.Error("Failed to close registry", logger.Error(err))
	}
	if err := a.redis.Close(); err != nil {
		a.log.Error("Failed to close redis client", logger.Error(err))
	}
	_ = a.log.Sync()
}

// serve starts the domain's consumer and admin server, then blocks until
// SIGINT or SIGTERM and shuts both down gracefully.
func (a *app) serve(handler events.Handler) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := events.NewConsumer(
		a.redis,
		events.StreamForDomain(a.cfg.Domain.ID),
		"",
		handler,
		a.log,
		a.metrics,
	)
	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("consumer: %w", err)
	}

	apiHandler := server.NewHandler(a.cfg.Domain.ID, a.executions, a.registry, a.publisher, a.log)
	srv := server.New(a.cfg.Server, apiHandler, a.promReg, a.log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.log.Info("Received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	consumer.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("Admin server shutdown failed", logger.Error(err))
	}
	return nil
}
