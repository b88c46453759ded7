package http

import (
	"time"

	"github.com/digital-goods/backend/internal/config"
	"github.com/digital-goods/backend/internal/http/handlers"
	"github.com/digital-goods/backend/internal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	orderHandler *handlers.OrderHandler,
	walletHandler *handlers.WalletHandler,
	adminHandler *handlers.AdminHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Auth (public, tighter rate limit)
	authLimited := api.Group("", middleware.RateLimitMiddleware(rdb, 20, time.Minute))
	authLimited.Post("/auth/register", authHandler.Register)
	authLimited.Post("/auth/login", authHandler.Login)

	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Public seller profile
	api.Get("/sellers/:id/rating", userHandler.SellerRating)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// User
	protected.Get("/me", userHandler.GetMe)

	// Wallet
	protected.Get("/me/wallet", walletHandler.GetWallet)
	protected.Get("/me/wallet/transactions", walletHandler.ListTransactions)
	protected.Post("/me/wallet/deposit", walletHandler.Deposit)
	protected.Post("/me/wallet/withdraw", walletHandler.Withdraw)

	// Orders
	protected.Post("/orders", orderHandler.CreateOrder)
	protected.Get("/orders", orderHandler.ListOrders)
	protected.Get("/orders/:id", orderHandler.GetOrder)
	protected.Get("/orders/:id/timeline", orderHandler.GetTimeline)
	protected.Post("/orders/:id/pay", orderHandler.Pay)
	protected.Post("/orders/:id/deliver", orderHandler.MarkDelivered)
	protected.Post("/orders/:id/confirm", orderHandler.Confirm)
	protected.Post("/orders/:id/cancel", orderHandler.Cancel)
	protected.Post("/orders/:id/dispute", orderHandler.OpenDispute)
	protected.Get("/orders/:id/dispute", orderHandler.GetDispute)
	protected.Post("/orders/:id/review", orderHandler.SubmitReview)

	// Admin
	admin := protected.Group("/admin", middleware.AdminMiddleware())
	admin.Get("/disputes", adminHandler.ListOpenDisputes)
	admin.Post("/orders/:id/force-complete", adminHandler.ForceComplete)
	admin.Post("/orders/:id/force-cancel", adminHandler.ForceCancelRefund)
	admin.Get("/orders/:id/ledger", adminHandler.OrderLedger)
	admin.Get("/finance/summary", adminHandler.FinanceSummary)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
