package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/digital-goods/backend/internal/config"
	"github.com/digital-goods/backend/internal/db"
	"github.com/digital-goods/backend/internal/events"
	apphttp "github.com/digital-goods/backend/internal/http"
	"github.com/digital-goods/backend/internal/http/handlers"
	"github.com/digital-goods/backend/internal/repositories"
	"github.com/digital-goods/backend/internal/services"
	"github.com/digital-goods/backend/migrations"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	orderRepo := repositories.NewOrderRepo(pool)
	walletRepo := repositories.NewWalletRepo(pool)
	timelineRepo := repositories.NewTimelineRepo(pool)
	disputeRepo := repositories.NewDisputeRepo(pool)
	reviewRepo := repositories.NewReviewRepo(pool)
	financeRepo := repositories.NewFinanceRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	authService := services.NewAuthService(pool, userRepo, walletRepo, cfg, log)
	userService := services.NewUserService(userRepo, reviewRepo)
	orderService := services.NewOrderService(pool, orderRepo, walletRepo, timelineRepo, disputeRepo, userRepo, publisher, cfg, log)
	disputeService := services.NewDisputeService(pool, orderRepo, disputeRepo, timelineRepo, publisher, log)
	reviewService := services.NewReviewService(pool, orderRepo, reviewRepo, timelineRepo, publisher, log)
	walletService := services.NewWalletService(pool, walletRepo, cfg, log)
	financeService := services.NewFinanceService(financeRepo)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, log)
	userHandler := handlers.NewUserHandler(userService, log)
	orderHandler := handlers.NewOrderHandler(orderService, disputeService, reviewService, log)
	walletHandler := handlers.NewWalletHandler(walletService, log)
	adminHandler := handlers.NewAdminHandler(orderService, disputeService, walletService, financeService, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	wsHub.Start(ctx)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, userHandler, orderHandler, walletHandler, adminHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
