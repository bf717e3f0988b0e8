package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/dmorenog/user-management-api/internal/api/http"
	"github.com/dmorenog/user-management-api/internal/api/http/handlers"
	"github.com/dmorenog/user-management-api/internal/auth"
	"github.com/dmorenog/user-management-api/internal/config"
	"github.com/dmorenog/user-management-api/internal/observability"
	"github.com/dmorenog/user-management-api/internal/persistence"
	"github.com/dmorenog/user-management-api/internal/repository"
	"github.com/dmorenog/user-management-api/internal/service"
)

// publicPaths are skipped by the authentication gate: token processing
// never runs for them.
var publicPaths = []string{"/health/", "/auth/", "/docs/"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	userRepo := repository.NewCachedUserRepository(
		repository.NewUserRepository(pg.PoolHandle()),
		redis.Client,
		cfg.Redis.UserCacheTTL(),
		logger,
	)

	authService := service.NewAuthService(cfg.Auth, userRepo, logger)
	userService := service.NewUserService(userRepo, cfg.Auth.BcryptCost, logger)

	if cfg.App.SeedDevData && pg.PoolHandle() != nil {
		if err := userService.SeedDevAccounts(ctx); err != nil {
			logger.Warn("failed to seed dev accounts", zap.Error(err))
		}
	}

	gate := auth.NewGate(authService.TokenManager(), userRepo, publicPaths, logger)
	policy := auth.NewPolicy(auth.DefaultRules())

	metrics := observability.NewMetrics()

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis)
	authHandler := handlers.NewAuthHandler(authService, logger)
	usersHandler := handlers.NewUsersHandler(userService, logger)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: healthHandler,
		Auth:   authHandler,
		Users:  usersHandler,
		Gate:   gate,
		Policy: policy,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
