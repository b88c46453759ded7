package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/digital-goods/backend/internal/apperr"
	"github.com/digital-goods/backend/internal/config"
	"github.com/digital-goods/backend/internal/events"
	"github.com/digital-goods/backend/internal/fees"
	"github.com/digital-goods/backend/internal/models"
	"github.com/digital-goods/backend/internal/rbac"
	"github.com/digital-goods/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var nonTerminalStatuses = []string{
	models.OrderStatusPending, models.OrderStatusActive,
	models.OrderStatusDelivered, models.OrderStatusDisputed,
}

// Legal source statuses per lifecycle operation.
var opSources = map[string][]string{
	rbac.OpPay:               {models.OrderStatusPending},
	rbac.OpMarkDelivered:     {models.OrderStatusPending, models.OrderStatusActive},
	rbac.OpConfirm:           {models.OrderStatusActive, models.OrderStatusDelivered},
	rbac.OpCancel:            {models.OrderStatusPending, models.OrderStatusActive, models.OrderStatusDelivered},
	rbac.OpOpenDispute:       {models.OrderStatusActive, models.OrderStatusDelivered},
	rbac.OpForceComplete:     nonTerminalStatuses,
	rbac.OpForceCancelRefund: nonTerminalStatuses,
}

// OrderService is the order lifecycle engine. Every transition validates the
// actor and current status, then commits the status write, wallet mutations,
// ledger entries and timeline event as one transaction.
type OrderService struct {
	db           repositories.DB
	orderRepo    *repositories.OrderRepo
	walletRepo   *repositories.WalletRepo
	timelineRepo *repositories.TimelineRepo
	disputeRepo  *repositories.DisputeRepo
	userRepo     *repositories.UserRepo
	publisher    events.Publisher
	cfg          *config.Config
	log          *zap.Logger
}

func NewOrderService(
	db repositories.DB,
	orderRepo *repositories.OrderRepo,
	walletRepo *repositories.WalletRepo,
	timelineRepo *repositories.TimelineRepo,
	disputeRepo *repositories.DisputeRepo,
	userRepo *repositories.UserRepo,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *OrderService {
	return &OrderService{
		db:           db,
		orderRepo:    orderRepo,
		walletRepo:   walletRepo,
		timelineRepo: timelineRepo,
		disputeRepo:  disputeRepo,
		userRepo:     userRepo,
		publisher:    publisher,
		cfg:          cfg,
		log:          log,
	}
}

type CreateOrderInput struct {
	SellerID   uuid.UUID
	ListingRef string
	UnitPrice  decimal.Decimal
	Quantity   int
	Discount   decimal.Decimal
}

func (s *OrderService) CreateOrder(ctx context.Context, buyerID uuid.UUID, in CreateOrderInput) (*models.Order, error) {
	if in.SellerID == buyerID {
		return nil, apperr.Validation("buyer and seller must be different users")
	}
	if strings.TrimSpace(in.ListingRef) == "" {
		return nil, apperr.Validation("listing reference is required")
	}
	if _, err := s.userRepo.GetByID(ctx, in.SellerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("seller %s not found", in.SellerID)
		}
		return nil, apperr.Storage(err)
	}

	quote, err := fees.Calculate(s.cfg.FeeSchedule(), in.UnitPrice, in.Quantity, in.Discount)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		OrderNumber:    generateOrderNumber(),
		BuyerID:        buyerID,
		SellerID:       in.SellerID,
		ListingRef:     in.ListingRef,
		UnitPrice:      in.UnitPrice.Round(2),
		Quantity:       in.Quantity,
		Subtotal:       quote.Subtotal,
		Discount:       quote.Discount,
		PlatformFee:    quote.PlatformFee,
		SellerEarnings: quote.SellerEarnings,
		FinalAmount:    quote.FinalAmount,
		Status:         models.OrderStatusPending,
		EscrowStatus:   models.EscrowStatusNone,
	}

	err = s.inTx(ctx, func(tx pgx.Tx) (*events.Event, error) {
		if err := s.orderRepo.WithTx(tx).Create(ctx, order); err != nil {
			return nil, apperr.Storage(err)
		}
		desc := fmt.Sprintf("order %s created for %s", order.OrderNumber, order.FinalAmount)
		if err := s.timelineRepo.WithTx(tx).Append(ctx, order.ID, models.TimelineOrderCreated, desc); err != nil {
			return nil, apperr.Storage(err)
		}
		return statusEvent(order, "", models.OrderStatusPending), nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Pay funds the order from the buyer's wallet: buyer balance is debited by
// the final amount and the seller's earnings enter escrow.
func (s *OrderService) Pay(ctx context.Context, orderID, actorID uuid.UUID, role string) error {
	return s.inTx(ctx, func(tx pgx.Tx) (*events.Event, error) {
		o, err := s.loadForUpdate(ctx, tx, orderID)
		if err != nil {
			return nil, err
		}
		if _, err := s.authorize(o, actorID, role, rbac.OpPay); err != nil {
			return nil, err
		}
		if err := requireStatus(o, rbac.OpPay); err != nil {
			return nil, err
		}

		ok, err := s.orderRepo.WithTx(tx).MarkPaid(ctx, o.ID, opSources[rbac.OpPay])
		if err != nil {
			return nil, apperr.Storage(err)
		}
		if !ok {
			return nil, apperr.InvalidState("order is no longer pending")
		}

		wr := s.walletRepo.WithTx(tx)

		buyer, err := wr.GetForUpdate(ctx, o.BuyerID)
		if err != nil {
			return nil, walletErr(err, o.BuyerID)
		}
		if buyer.Balance.LessThan(o.FinalAmount) {
			return nil, apperr.InsufficientFunds("wallet balance %s is less than order total %s", buyer.Balance, o.FinalAmount)
		}
		newBalance := buyer.Balance.Sub(o.FinalAmount)
		if err := wr.SetBalances(ctx, o.BuyerID, newBalance, buyer.PendingBalance); err != nil {
			return nil, apperr.Storage(err)
		}
		if err := wr.InsertTransaction(ctx, &models.WalletTransaction{
			UserID:        o.BuyerID,
			OrderID:       &o.ID,
			Type:          models.TxTypePurchase,
			Amount:        o.FinalAmount.Neg(),
			BalanceBefore: buyer.Balance,
			BalanceAfter:  newBalance,
			Description:   fmt.Sprintf("payment for order %s", o.OrderNumber),
		}); err != nil {
			return nil, apperr.Storage(err)
		}

		seller, err := wr.GetForUpdate(ctx, o.SellerID)
		if err != nil {
			return nil, walletErr(err, o.SellerID)
		}
		newPending := seller.PendingBalance.Add(o.SellerEarnings)
		if err := wr.SetBalances(ctx, o.SellerID, seller.Balance, newPending); err != nil {
			return nil, apperr.Storage(err)
		}
		if err := wr.InsertTransaction(ctx, &models.WalletTransaction{
			UserID:        o.SellerID,
			OrderID:       &o.ID,
			Type:          models.TxTypeEscrowHold,
			Amount:        o.SellerEarnings,
			BalanceBefore: seller.PendingBalance,
			BalanceAfter:  newPending,
			Description:   fmt.Sprintf("earnings held in escrow for order %s", o.OrderNumber),
		}); err != nil {
			return nil, apperr.Storage(err)
		}

		desc := fmt.Sprintf("order paid, %s held in escrow", o.SellerEarnings)
		if err := s.timelineRepo.WithTx(tx).Append(ctx, o.ID, models.TimelineOrderPaid, desc); err != nil {
			return nil, apperr.Storage(err)
		}

		return statusEvent(o, models.OrderStatusPending, models.OrderStatusActive), nil
	})
}

// MarkDelivered records fulfillment by the seller. No money moves.
func (s *OrderService) MarkDelivered(ctx context.Context, orderID, actorID uuid.UUID, role string) error {
	return s.inTx(ctx, func(tx pgx.Tx) (*events.Event, error) {
		o, err := s.loadForUpdate(ctx, tx, orderID)
		if err != nil {
			return nil, err
		}
		if _, err := s.authorize(o, actorID, role, rbac.OpMarkDelivered); err != nil {
			return nil, err
		}
		if err := requireStatus(o, rbac.OpMarkDelivered); err != nil {
			return nil, err
		}

		ok, err := s.orderRepo.WithTx(tx).MarkDelivered(ctx, o.ID, opSources[rbac.OpMarkDelivered])
		if err != nil {
			return nil, apperr.Storage(err)
		}
		if !ok {
			return nil, apperr.InvalidState("order is no longer awaiting delivery")
		}

		if err := s.timelineRepo.WithTx(tx).Append(ctx, o.ID, models.TimelineOrderDelivered, "seller marked the order delivered"); err != nil {
			return nil, apperr.Storage(err)
		}

		return statusEvent(o, o.Status, models.OrderStatusDelivered), nil
	})
}

// Confirm is the buyer's acceptance of delivery; it releases the escrowed
// earnings into the seller's spendable balance with one SALE ledger entry.
func (s *OrderService) Confirm(ctx context.Context, orderID, actorID uuid.UUID, role string) error {
	return s.inTx(ctx, func(tx pgx.Tx) (*events.Event, error) {
		o, err := s.loadForUpdate(ctx, tx, orderID)
		if err != nil {
			return nil, err
		}
		if _, err := s.authorize(o, actorID, role, rbac.OpConfirm); err != nil {
			return nil, err
		}
		if err := requireStatus(o, rbac.OpConfirm); err != nil {
			return nil, err
		}
		if !o.IsPaid() || o.EscrowStatus != models.EscrowStatusHeld {
			return nil, apperr.InvalidState("order has no funds held in escrow")
		}

		ok, err := s.orderRepo.WithTx(tx).MarkCompleted(ctx, o.ID, opSources[rbac.OpConfirm], models.EscrowStatusReleased)
		if err != nil {
			return nil, apperr.Storage(err)
		}
		if !ok {
			return nil, apperr.InvalidState("order is no longer awaiting confirmation")
		}

		if err := s.releaseEscrow(ctx, tx, o); err != nil {
			return nil, err
		}

		desc := fmt.Sprintf("delivery confirmed, %s released to seller", o.SellerEarnings)
		if err := s.timelineRepo.WithTx(tx).Append(ctx, o.ID, models.TimelineOrderCompleted, desc); err != nil {
			return nil, apperr.Storage(err)
		}

		return statusEvent(o, o.Status, models.OrderStatusCompleted), nil
	})
}

// Cancel voids the order. If escrow was funded the buyer is refunded the
// final amount and the seller's held earnings are reversed.
func (s *OrderService) Cancel(ctx context.Context, orderID, actorID uuid.UUID, role, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return apperr.Validation("cancel reason is required")
	}
	return s.inTx(ctx, func(tx pgx.Tx) (*events.Event, error) {
		o, err := s.loadForUpdate(ctx, tx, orderID)
		if err != nil {
			return nil, err
		}
		if _, err := s.authorize(o, actorID, role, rbac.OpCancel); err != nil {
			return nil, err
		}
		if err := requireStatus(o, rbac.OpCancel); err != nil {
			return nil, err
		}
		return s.cancelLocked(ctx, tx, o, opSources[rbac.OpCancel], models.OrderStatusCancelled, reason)
	})
}

// ForceComplete is the admin override for arbitration: same validation path
// and ledger effects as Confirm, but allowed from any non-terminal status.
func (s *OrderService) ForceComplete(ctx context.Context, orderID, actorID uuid.UUID, role string) error {
	return s.inTx(ctx, func(tx pgx.Tx) (*events.Event, error) {
		o, err := s.loadForUpdate(ctx, tx, orderID)
		if err != nil {
			return nil, err
		}
		if _, err := s.authorize(o, actorID, role, rbac.OpForceComplete); err != nil {
			return nil, err
		}
		if err := requireStatus(o, rbac.OpForceComplete); err != nil {
			return nil, err
		}

		escrowStatus := o.EscrowStatus
		release := o.IsPaid() && o.EscrowStatus == models.EscrowStatusHeld
		if release {
			escrowStatus = models.EscrowStatusReleased
		}

		ok, err := s.orderRepo.WithTx(tx).MarkCompleted(ctx, o.ID, opSources[rbac.OpForceComplete], escrowStatus)
		if err != nil {
			return nil, apperr.Storage(err)
		}
		if !ok {
			return nil, apperr.InvalidState("order reached a terminal status concurrently")
		}

		if release {
			if err := s.releaseEscrow(ctx, tx, o); err != nil {
				return nil, err
			}
		}
		if o.Status == models.OrderStatusDisputed {
			if err := s.disputeRepo.WithTx(tx).Resolve(ctx, o.ID, models.DisputeStatusResolvedCompleted); err != nil {
				return nil, apperr.Storage(err)
			}
		}

		if err := s.timelineRepo.WithTx(tx).Append(ctx, o.ID, models.TimelineOrderCompleted, "order force-completed by administrator"); err != nil {
			return nil, apperr.Storage(err)
		}

		return statusEvent(o, o.Status, models.OrderStatusCompleted), nil
	})
}

// ForceCancelRefund is the admin override mirroring Cancel's ledger effects.
// On a disputed order the terminal status is refunded; otherwise cancelled.
func (s *OrderService) ForceCancelRefund(ctx context.Context, orderID, actorID uuid.UUID, role, reason string) error {
	if strings.TrimSpace(reason) == "" {
		reason = "cancelled by administrator"
	}
	return s.inTx(ctx, func(tx pgx.Tx) (*events.Event, error) {
		o, err := s.loadForUpdate(ctx, tx, orderID)
		if err != nil {
			return nil, err
		}
		if _, err := s.authorize(o, actorID, role, rbac.OpForceCancelRefund); err != nil {
			return nil, err
		}
		if err := requireStatus(o, rbac.OpForceCancelRefund); err != nil {
			return nil, err
		}

		target := models.OrderStatusCancelled
		if o.Status == models.OrderStatusDisputed {
			target = models.OrderStatusRefunded
		}
		return s.cancelLocked(ctx, tx, o, opSources[rbac.OpForceCancelRefund], target, reason)
	})
}

// cancelLocked performs the shared cancellation write path. The order row
// must already be locked in this transaction.
func (s *OrderService) cancelLocked(ctx context.Context, tx pgx.Tx, o *models.Order, from []string, target, reason string) (*events.Event, error) {
	escrowStatus := o.EscrowStatus
	refund := o.IsPaid() && o.EscrowStatus == models.EscrowStatusHeld
	if refund {
		escrowStatus = models.EscrowStatusRefunded
	}

	ok, err := s.orderRepo.WithTx(tx).MarkCancelled(ctx, o.ID, from, target, escrowStatus, reason)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if !ok {
		return nil, apperr.InvalidState("order is no longer cancellable")
	}

	if refund {
		wr := s.walletRepo.WithTx(tx)

		buyer, err := wr.GetForUpdate(ctx, o.BuyerID)
		if err != nil {
			return nil, walletErr(err, o.BuyerID)
		}
		newBalance := buyer.Balance.Add(o.FinalAmount)
		if err := wr.SetBalances(ctx, o.BuyerID, newBalance, buyer.PendingBalance); err != nil {
			return nil, apperr.Storage(err)
		}
		if err := wr.InsertTransaction(ctx, &models.WalletTransaction{
			UserID:        o.BuyerID,
			OrderID:       &o.ID,
			Type:          models.TxTypeRefund,
			Amount:        o.FinalAmount,
			BalanceBefore: buyer.Balance,
			BalanceAfter:  newBalance,
			Description:   fmt.Sprintf("refund for order %s", o.OrderNumber),
		}); err != nil {
			return nil, apperr.Storage(err)
		}

		seller, err := wr.GetForUpdate(ctx, o.SellerID)
		if err != nil {
			return nil, walletErr(err, o.SellerID)
		}
		if seller.PendingBalance.LessThan(o.SellerEarnings) {
			return nil, apperr.Wrap(apperr.CodeStorageFailure, nil,
				"seller pending balance %s is below escrowed earnings %s", seller.PendingBalance, o.SellerEarnings)
		}
		newPending := seller.PendingBalance.Sub(o.SellerEarnings)
		if err := wr.SetBalances(ctx, o.SellerID, seller.Balance, newPending); err != nil {
			return nil, apperr.Storage(err)
		}
		if err := wr.InsertTransaction(ctx, &models.WalletTransaction{
			UserID:        o.SellerID,
			OrderID:       &o.ID,
			Type:          models.TxTypeEscrowReversal,
			Amount:        o.SellerEarnings.Neg(),
			BalanceBefore: seller.PendingBalance,
			BalanceAfter:  newPending,
			Description:   fmt.Sprintf("escrow reversed for order %s", o.OrderNumber),
		}); err != nil {
			return nil, apperr.Storage(err)
		}
	}

	if o.Status == models.OrderStatusDisputed {
		if err := s.disputeRepo.WithTx(tx).Resolve(ctx, o.ID, models.DisputeStatusResolvedRefunded); err != nil {
			return nil, apperr.Storage(err)
		}
	}

	kind := models.TimelineOrderCancelled
	if target == models.OrderStatusRefunded {
		kind = models.TimelineOrderRefunded
	}
	if err := s.timelineRepo.WithTx(tx).Append(ctx, o.ID, kind, fmt.Sprintf("order cancelled: %s", reason)); err != nil {
		return nil, apperr.Storage(err)
	}

	return statusEvent(o, o.Status, target), nil
}

// releaseEscrow moves the seller's held earnings into the spendable balance
// with a single SALE ledger entry recording the spendable before/after.
func (s *OrderService) releaseEscrow(ctx context.Context, tx pgx.Tx, o *models.Order) error {
	wr := s.walletRepo.WithTx(tx)

	seller, err := wr.GetForUpdate(ctx, o.SellerID)
	if err != nil {
		return walletErr(err, o.SellerID)
	}
	if seller.PendingBalance.LessThan(o.SellerEarnings) {
		return apperr.Wrap(apperr.CodeStorageFailure, nil,
			"seller pending balance %s is below escrowed earnings %s", seller.PendingBalance, o.SellerEarnings)
	}

	newBalance := seller.Balance.Add(o.SellerEarnings)
	newPending := seller.PendingBalance.Sub(o.SellerEarnings)
	if err := wr.SetBalances(ctx, o.SellerID, newBalance, newPending); err != nil {
		return apperr.Storage(err)
	}
	if err := wr.InsertTransaction(ctx, &models.WalletTransaction{
		UserID:        o.SellerID,
		OrderID:       &o.ID,
		Type:          models.TxTypeSale,
		Amount:        o.SellerEarnings,
		BalanceBefore: seller.Balance,
		BalanceAfter:  newBalance,
		Description:   fmt.Sprintf("earnings released for order %s", o.OrderNumber),
	}); err != nil {
		return apperr.Storage(err)
	}
	return nil
}

// --- reads ---

func (s *OrderService) GetOrder(ctx context.Context, orderID, actorID uuid.UUID, role string) (*models.Order, error) {
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
	return o, nil
}

func (s *OrderService) ListOrders(ctx context.Context, f repositories.OrderFilter) ([]models.Order, error) {
	return s.orderRepo.List(ctx, f)
}

func (s *OrderService) GetTimeline(ctx context.Context, orderID, actorID uuid.UUID, role string) ([]models.TimelineEvent, error) {
	if _, err := s.GetOrder(ctx, orderID, actorID, role); err != nil {
		return nil, err
	}
	evs, err := s.timelineRepo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return evs, nil
}

// --- helpers ---

func (s *OrderService) inTx(ctx context.Context, fn func(tx pgx.Tx) (*events.Event, error)) error {
	ev, err := withTx(ctx, s.db, fn)
	if err != nil {
		return err
	}
	publishEvent(ctx, s.publisher, s.log, ev)
	return nil
}

func statusEvent(o *models.Order, from, to string) *events.Event {
	return &events.Event{
		Type:    events.EventOrderStatusChanged,
		OrderID: o.ID,
		Payload: map[string]any{
			"order_number": o.OrderNumber,
			"buyer_id":     o.BuyerID,
			"seller_id":    o.SellerID,
			"from_status":  from,
			"to_status":    to,
		},
	}
}

func (s *OrderService) loadForUpdate(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (*models.Order, error) {
	o, err := s.orderRepo.WithTx(tx).GetByIDForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("order %s not found", orderID)
		}
		return nil, apperr.Storage(err)
	}
	return o, nil
}

func (s *OrderService) authorize(o *models.Order, userID uuid.UUID, role, op string) (string, error) {
	actor := rbac.ActorFor(o, userID, role)
	if actor == "" {
		return "", apperr.Unauthorized("user is not a party to this order")
	}
	if !rbac.IsAllowed(op, actor) {
		return "", apperr.Unauthorized("%s is not permitted to %s", actor, strings.ReplaceAll(op, "_", " "))
	}
	return actor, nil
}

func requireStatus(o *models.Order, op string) error {
	for _, st := range opSources[op] {
		if o.Status == st {
			return nil
		}
	}
	return apperr.InvalidState("order is %s", o.Status)
}

func walletErr(err error, userID uuid.UUID) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("wallet for user %s not found", userID)
	}
	return apperr.Storage(err)
}

func generateOrderNumber() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return fmt.Sprintf("DG-%s-%s", time.Now().UTC().Format("20060102"), strings.ToUpper(hex.EncodeToString(b)))
}
