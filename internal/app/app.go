package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/yungbote/essayfeed-backend/internal/config"
	"github.com/yungbote/essayfeed-backend/internal/db"
	"github.com/yungbote/essayfeed-backend/internal/http"
	"github.com/yungbote/essayfeed-backend/internal/observability"
	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	Cfg      *config.Config
	DB       *gorm.DB
	Repos    Repos
	Clients  Clients
	Services Services
	Metrics  *observability.Metrics
	Server   *http.Server

	dbService *db.Service
	cancel    context.CancelFunc
	otelStop  func(context.Context) error
	closeOnce sync.Once
}

// New opens the database, migrates it and wires every component. Nothing is started.
func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return NewWithLogger(cfg, log)
}

func NewWithLogger(cfg *config.Config, log *logger.Logger) (*App, error) {
	dbService, err := db.Open(cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		_ = dbService.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	gdb := dbService.DB()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}

	repos := wireRepos(gdb, log)
	clients, err := wireClients(cfg, log)
	if err != nil {
		_ = dbService.Close()
		return nil, err
	}
	services, err := wireServices(gdb, log, cfg, repos, clients, metrics)
	if err != nil {
		_ = clients.SSEBus.Close()
		_ = dbService.Close()
		return nil, err
	}
	handlers := wireHandlers(gdb, log, repos, services, clients)

	return &App{
		Log:       log,
		Cfg:       cfg,
		DB:        gdb,
		Repos:     repos,
		Clients:   clients,
		Services:  services,
		Metrics:   metrics,
		Server:    wireServer(cfg, log, handlers, metrics),
		dbService: dbService,
	}, nil
}

// Start launches the background loops: tracing, the cross-instance event forwarder, the job worker
// and the metrics listener. They stop when ctx is done or Close is called.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)
	a.otelStop = observability.InitOTel(ctx, a.Log, a.Cfg.OTel, a.Cfg.Env)

	if err := a.Clients.SSEBus.StartForwarder(ctx, a.Clients.SSEHub.Broadcast); err != nil {
		a.cancel()
		return fmt.Errorf("start event forwarder: %w", err)
	}
	a.Services.JobWorker.Start(ctx)

	if a.Metrics != nil {
		a.Metrics.StartServer(ctx, a.Log, a.Cfg.Metrics.Addr)
		a.Metrics.StartJobQueueCollector(ctx, a.Log, a.DB, a.Cfg.Metrics.ScrapeInterval.Duration)
	}
	a.Log.Info("App started",
		"env", a.Cfg.Env,
		"providers", strings.Join(a.Services.Providers.Names(), ","),
		"job_types", strings.Join(a.Services.JobRegistry.Types(), ","),
		"worker_concurrency", a.Cfg.Worker.Concurrency,
	)
	return nil
}

// Run serves HTTP until ctx is done.
func (a *App) Run(ctx context.Context) error {
	a.Log.Info("HTTP server listening", "addr", a.Cfg.HTTP.Addr)
	return a.Server.Run(ctx, a.Cfg.HTTP.Addr, a.Cfg.HTTP.ShutdownTimeout.Duration)
}

// Close stops the background loops, waits for in-flight jobs and releases connections.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.cancel != nil {
			a.cancel()
		}
		a.Services.JobWorker.Wait()
		if a.otelStop != nil {
			if err := a.otelStop(context.Background()); err != nil {
				a.Log.Warn("otel shutdown failed", "error", err)
			}
		}
		if err := a.Clients.SSEBus.Close(); err != nil {
			a.Log.Warn("event bus close failed", "error", err)
		}
		if err := a.dbService.Close(); err != nil {
			a.Log.Warn("database close failed", "error", err)
		}
		a.Log.Sync()
	})
}
