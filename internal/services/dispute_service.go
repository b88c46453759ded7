package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/digital-goods/backend/internal/apperr"
	"github.com/digital-goods/backend/internal/events"
	"github.com/digital-goods/backend/internal/models"
	"github.com/digital-goods/backend/internal/rbac"
	"github.com/digital-goods/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const maxDisputeDescription = 2000

type DisputeService struct {
	db           repositories.DB
	orderRepo    *repositories.OrderRepo
	disputeRepo  *repositories.DisputeRepo
	timelineRepo *repositories.TimelineRepo
	publisher    events.Publisher
	log          *zap.Logger
}

func NewDisputeService(
	db repositories.DB,
	orderRepo *repositories.OrderRepo,
	disputeRepo *repositories.DisputeRepo,
	timelineRepo *repositories.TimelineRepo,
	publisher events.Publisher,
	log *zap.Logger,
) *DisputeService {
	return &DisputeService{
		db:           db,
		orderRepo:    orderRepo,
		disputeRepo:  disputeRepo,
		timelineRepo: timelineRepo,
		publisher:    publisher,
		log:          log,
	}
}

// OpenDispute freezes the order in the disputed status. Escrowed funds stay
// held until an administrator resolves the dispute.
func (s *DisputeService) OpenDispute(ctx context.Context, orderID, actorID uuid.UUID, role, reason, description string) error {
	if !models.IsValidDisputeReason(reason) {
		return apperr.Validation("unknown dispute reason %q", reason)
	}
	if len(description) > maxDisputeDescription {
		return apperr.Validation("dispute description exceeds %d characters", maxDisputeDescription)
	}

	ev, err := withTx(ctx, s.db, func(tx pgx.Tx) (*events.Event, error) {
		o, err := s.orderRepo.WithTx(tx).GetByIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperr.NotFound("order %s not found", orderID)
			}
			return nil, apperr.Storage(err)
		}

		actor := rbac.ActorFor(o, actorID, role)
		if actor == "" {
			return nil, apperr.Unauthorized("user is not a party to this order")
		}
		if !rbac.IsAllowed(rbac.OpOpenDispute, actor) {
			return nil, apperr.Unauthorized("%s is not permitted to open a dispute", actor)
		}
		if o.Status == models.OrderStatusDisputed {
			return nil, apperr.InvalidState("order is already under dispute")
		}
		if err := requireStatus(o, rbac.OpOpenDispute); err != nil {
			return nil, err
		}
		if !o.IsPaid() || o.EscrowStatus != models.EscrowStatusHeld {
			return nil, apperr.InvalidState("order has no funds held in escrow")
		}

		ok, err := s.orderRepo.WithTx(tx).MarkDisputed(ctx, o.ID, opSources[rbac.OpOpenDispute])
		if err != nil {
			return nil, apperr.Storage(err)
		}
		if !ok {
			return nil, apperr.InvalidState("order is no longer disputable")
		}

		dispute := &models.Dispute{
			OrderID:     o.ID,
			BuyerID:     o.BuyerID,
			SellerID:    o.SellerID,
			InitiatorID: actorID,
			Reason:      reason,
			Description: strings.TrimSpace(description),
			Status:      models.DisputeStatusOpen,
		}
		if err := s.disputeRepo.WithTx(tx).Create(ctx, dispute); err != nil {
			return nil, apperr.Storage(err)
		}

		desc := fmt.Sprintf("dispute opened: %s", reason)
		if err := s.timelineRepo.WithTx(tx).Append(ctx, o.ID, models.TimelineDisputeOpened, desc); err != nil {
			return nil, apperr.Storage(err)
		}

		return &events.Event{
			Type:    events.EventDisputeOpened,
			OrderID: o.ID,
			Payload: map[string]any{
				"order_number": o.OrderNumber,
				"buyer_id":     o.BuyerID,
				"seller_id":    o.SellerID,
				"reason":       reason,
			},
		}, nil
	})
	if err != nil {
		return err
	}
	publishEvent(ctx, s.publisher, s.log, ev)
	return nil
}

func (s *DisputeService) GetByOrder(ctx context.Context, orderID, actorID uuid.UUID, role string) (*models.Dispute, error) {
	o, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("order %s not found", orderID)
		}
		return nil, apperr.Storage(err)
	}
	if rbac.ActorFor(o, actorID, role) == "" {
		return nil, apperr.Unauthorized("user is not a party to this order")
	}

	d, err := s.disputeRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("order %s has no dispute", orderID)
		}
		return nil, apperr.Storage(err)
	}
	return d, nil
}

func (s *DisputeService) ListOpen(ctx context.Context, limit, offset int) ([]models.Dispute, error) {
	ds, err := s.disputeRepo.ListOpen(ctx, limit, offset)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return ds, nil
}
