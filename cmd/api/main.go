package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/opsdesk/ticket-rules/internal/api/http"
	"github.com/opsdesk/ticket-rules/internal/api/http/handlers"
	"github.com/opsdesk/ticket-rules/internal/config"
	"github.com/opsdesk/ticket-rules/internal/events"
	"github.com/opsdesk/ticket-rules/internal/observability"
	"github.com/opsdesk/ticket-rules/internal/persistence"
	"github.com/opsdesk/ticket-rules/internal/repository"
	"github.com/opsdesk/ticket-rules/internal/rules"
	"github.com/opsdesk/ticket-rules/internal/service"
	"github.com/opsdesk/ticket-rules/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ruleSet, err := loadRules(cfg.Rules.Path, logger)
	if err != nil {
		logger.Fatal("invalid rules file", zap.String("path", cfg.Rules.Path), zap.Error(err))
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var store repository.Store
	if pool := pg.PoolHandle(); pool != nil {
		store = repository.NewPostgresStore(pool)
	} else {
		store = repository.NewMemoryStore()
	}

	var (
		redis  *persistence.Redis
		locker service.Locker
	)
	if cfg.Redis.Addr != "" {
		redis = persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()
		locker = redis.Locker(cfg.Rules.LockTTL())
	} else {
		logger.Warn("REDIS_ADDR not provided; ticket locks are disabled")
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:      store,
		Locker:     locker,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
		Rules:      ruleSet,
		RulesPath:  cfg.Rules.Path,
	})

	watcher := worker.NewSLAWatcher(ticketService, logger, cfg.Rules.SweepInterval())
	worker.StartSLAWatcher(ctx, watcher, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets: handlers.NewTicketsHandler(ticketService),
		Admin:   handlers.NewAdminHandler(ticketService, metrics),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

// loadRules falls back to the built-in rules only when the file is absent.
func loadRules(path string, logger *zap.Logger) (*rules.Config, error) {
	cfg, err := rules.LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("rules file not found; using built-in rules", zap.String("path", path))
		return rules.Default(), nil
	}
	if err != nil {
		return nil, err
	}
	logger.Info("rules loaded",
		zap.String("path", path),
		zap.Strings("statuses", cfg.Statuses()),
		zap.Strings("priorities", cfg.Priorities()))
	return cfg, nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
