package app

import (
	"context"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/faqbridge/faqbridge-backend/internal/data/db"
	httpx "github.com/faqbridge/faqbridge-backend/internal/http"
	"github.com/faqbridge/faqbridge-backend/internal/observability"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Services Services
	Server   *httpx.Server

	pg           *db.PostgresService
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig()

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	clients, err := wireClients(log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)

	services, err := wireServices(log, cfg, clients, reposet)
	if err != nil {
		log.Sync()
		return nil, err
	}

	routerCfg := wireHandlers(log, pg, clients, services)
	server := httpx.NewServer(routerCfg)

	return &App{
		Log:      log,
		DB:       theDB,
		Cfg:      cfg,
		Clients:  clients,
		Repos:    reposet,
		Services: services,
		Server:   server,
		pg:       pg,
	}, nil
}

// Start launches the background loops: tracing, model warmup, the
// semantic-cache sweeper, backend liveness probes, and the initial
// document indexing run.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.otelShutdown = observability.InitOTel(ctx, a.Log, observability.OtelConfig{
		ServiceName: "faqbridge-backend",
		Environment: a.Cfg.Environment,
	})

	go a.Clients.AI.Warmup(ctx)
	a.Services.Sweeper.Start(ctx)
	a.Services.Metrics.StartBackendProbes(ctx, a.Log, a.Clients.KV, a.DB, a.Cfg.ProbeInterval)

	if a.Cfg.IndexOnStart {
		go func() {
			if _, err := a.Services.Indexer.IndexAll(ctx); err != nil {
				a.Log.Error("document indexing failed", "error", err)
			}
		}()
	}
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	addr := ":" + a.Cfg.Port
	a.Log.Info("HTTP server listening", "addr", addr)
	return a.Server.Run(addr)
}

func (a *App) Shutdown(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return nil
	}
	return a.Server.Shutdown(ctx)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
		a.otelShutdown = nil
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
