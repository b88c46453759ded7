package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/digital-goods/backend/internal/apperr"
	"github.com/digital-goods/backend/internal/config"
	"github.com/digital-goods/backend/internal/db"
	"github.com/digital-goods/backend/internal/events"
	"github.com/digital-goods/backend/internal/models"
	"github.com/digital-goods/backend/internal/repositories"
	"github.com/digital-goods/backend/internal/services"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// The worker acts as a system administrator: uuid.Nil never matches a real
// buyer or seller, so authorization resolves purely through the admin role.
var systemActor = uuid.Nil

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	orderRepo := repositories.NewOrderRepo(pool)
	walletRepo := repositories.NewWalletRepo(pool)
	timelineRepo := repositories.NewTimelineRepo(pool)
	disputeRepo := repositories.NewDisputeRepo(pool)
	userRepo := repositories.NewUserRepo(pool)

	publisher := events.NewRedisPublisher(rdb, log)
	orderService := services.NewOrderService(pool, orderRepo, walletRepo, timelineRepo, disputeRepo, userRepo, publisher, cfg, log)

	log.Info("worker started",
		zap.Duration("unpaid_order_timeout", cfg.UnpaidOrderTimeout),
		zap.Duration("auto_confirm_after", cfg.AutoConfirmAfter),
	)

	cancelTicker := time.NewTicker(2 * time.Minute)
	confirmTicker := time.NewTicker(5 * time.Minute)
	defer cancelTicker.Stop()
	defer confirmTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-cancelTicker.C:
			runUnpaidCancellations(ctx, orderRepo, orderService, cfg, log)
		case <-confirmTicker.C:
			runAutoConfirmations(ctx, orderRepo, orderService, cfg, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		}
	}
}

// runUnpaidCancellations voids pending orders whose payment window expired.
// No money has moved on these orders, so cancellation has no ledger effects.
func runUnpaidCancellations(ctx context.Context, orderRepo *repositories.OrderRepo, orderService *services.OrderService, cfg *config.Config, log *zap.Logger) {
	cutoff := time.Now().Add(-cfg.UnpaidOrderTimeout)
	orders, err := orderRepo.ListUnpaidBefore(ctx, cutoff, 100)
	if err != nil {
		log.Error("list unpaid orders failed", zap.Error(err))
		return
	}

	for _, o := range orders {
		err := orderService.Cancel(ctx, o.ID, systemActor, models.RoleAdmin, "payment window expired")
		if err != nil {
			// Lost races are expected; a buyer may pay between listing and locking.
			if apperr.CodeOf(err) == apperr.CodeInvalidState {
				continue
			}
			log.Error("auto-cancel failed", zap.String("order_id", o.ID.String()), zap.Error(err))
			continue
		}
		log.Info("auto-cancelled unpaid order", zap.String("order_id", o.ID.String()))
	}
}

// runAutoConfirmations completes delivered orders the buyer never confirmed,
// releasing escrow to the seller after the confirmation window.
func runAutoConfirmations(ctx context.Context, orderRepo *repositories.OrderRepo, orderService *services.OrderService, cfg *config.Config, log *zap.Logger) {
	cutoff := time.Now().Add(-cfg.AutoConfirmAfter)
	orders, err := orderRepo.ListDeliveredBefore(ctx, cutoff, 100)
	if err != nil {
		log.Error("list delivered orders failed", zap.Error(err))
		return
	}

	for _, o := range orders {
		err := orderService.ForceComplete(ctx, o.ID, systemActor, models.RoleAdmin)
		if err != nil {
			if apperr.CodeOf(err) == apperr.CodeInvalidState {
				continue
			}
			log.Error("auto-complete failed", zap.String("order_id", o.ID.String()), zap.Error(err))
			continue
		}
		log.Info("auto-completed delivered order", zap.String("order_id", o.ID.String()))
	}
}
