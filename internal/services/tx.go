package services

import (
	"context"

	"github.com/digital-goods/backend/internal/apperr"
	"github.com/digital-goods/backend/internal/events"
	"github.com/digital-goods/backend/internal/repositories"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// withTx runs fn inside one transaction. The event fn returns is handed back
// only after a successful commit, so callers never publish rolled-back state.
func withTx(ctx context.Context, db repositories.DB, fn func(tx pgx.Tx) (*events.Event, error)) (*events.Event, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ev, err := fn(tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Storage(err)
	}
	return ev, nil
}

func publishEvent(ctx context.Context, pub events.Publisher, log *zap.Logger, ev *events.Event) {
	if ev == nil {
		return
	}
	if err := pub.Publish(ctx, events.StreamOrders, *ev); err != nil {
		log.Warn("publish event failed", zap.String("type", ev.Type), zap.Error(err))
	}
}
