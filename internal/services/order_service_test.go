package services

import (
	"context"
	"testing"
	"time"

	"github.com/digital-goods/backend/internal/apperr"
	"github.com/digital-goods/backend/internal/config"
	"github.com/digital-goods/backend/internal/events"
	"github.com/digital-goods/backend/internal/models"
	"github.com/digital-goods/backend/internal/rbac"
	"github.com/digital-goods/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type capturePublisher struct {
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, _ string, ev events.Event) error {
	p.events = append(p.events, ev)
	return nil
}

// decimalArg matches a decimal argument by value, so expectations are not
// sensitive to exponent representation.
type decimalArg struct {
	want decimal.Decimal
}

func (a decimalArg) Match(v interface{}) bool {
	d, ok := v.(decimal.Decimal)
	return ok && d.Equal(a.want)
}

func money(s string) decimalArg {
	return decimalArg{want: decimal.RequireFromString(s)}
}

func newTestEngine(t *testing.T) (*OrderService, pgxmock.PgxPoolIface, *capturePublisher) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)

	pub := &capturePublisher{}
	svc := NewOrderService(
		mock,
		repositories.NewOrderRepo(mock),
		repositories.NewWalletRepo(mock),
		repositories.NewTimelineRepo(mock),
		repositories.NewDisputeRepo(mock),
		repositories.NewUserRepo(mock),
		pub,
		&config.Config{},
		zap.NewNop(),
	)
	return svc, mock, pub
}

var orderCols = []string{
	"id", "order_number", "buyer_id", "seller_id", "listing_ref",
	"unit_price", "quantity", "subtotal", "discount", "platform_fee", "seller_earnings", "final_amount",
	"status", "escrow_status", "cancel_reason",
	"created_at", "paid_at", "delivered_at", "completed_at", "cancelled_at", "updated_at",
}

// Fixture amounts follow one worked scenario: unit 10.00 x 2 = 20.00,
// platform fee 14% = 2.80, seller earnings 17.20, final amount 20.00.
type orderFixture struct {
	id       uuid.UUID
	buyerID  uuid.UUID
	sellerID uuid.UUID
	status   string
	escrow   string
	paid     bool
}

func (f orderFixture) rows() *pgxmock.Rows {
	now := time.Now()
	var paidAt *time.Time
	if f.paid {
		paidAt = &now
	}
	return pgxmock.NewRows(orderCols).AddRow(
		f.id, "DG-20260831-CAFE", f.buyerID, f.sellerID, "listing-1",
		decimal.RequireFromString("10.00"), 2,
		decimal.RequireFromString("20.00"), decimal.Zero,
		decimal.RequireFromString("2.80"), decimal.RequireFromString("17.20"),
		decimal.RequireFromString("20.00"),
		f.status, f.escrow, (*string)(nil),
		now, paidAt, (*time.Time)(nil), (*time.Time)(nil), (*time.Time)(nil), now,
	)
}

func expectOrderLock(mock pgxmock.PgxPoolIface, f orderFixture) {
	mock.ExpectQuery(`FROM orders WHERE id = .+ FOR UPDATE`).
		WithArgs(f.id).
		WillReturnRows(f.rows())
}

func expectWalletLock(mock pgxmock.PgxPoolIface, userID uuid.UUID, balance, pending string) {
	mock.ExpectQuery(`FROM wallets WHERE user_id = .+ FOR UPDATE`).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "balance", "pending_balance", "updated_at"}).
			AddRow(userID, decimal.RequireFromString(balance), decimal.RequireFromString(pending), time.Now()))
}

func expectBalancesWrite(mock pgxmock.PgxPoolIface, userID uuid.UUID, balance, pending string) {
	mock.ExpectExec(`UPDATE wallets SET balance`).
		WithArgs(money(balance), money(pending), userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
}

func expectLedgerInsert(mock pgxmock.PgxPoolIface, userID, orderID uuid.UUID, txType, amount, before, after string) {
	mock.ExpectQuery(`INSERT INTO wallet_transactions`).
		WithArgs(userID, &orderID, txType, money(amount), money(before), money(after), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.New(), time.Now()))
}

func expectTimeline(mock pgxmock.PgxPoolIface, orderID uuid.UUID, kind string) {
	mock.ExpectExec(`INSERT INTO order_timeline`).
		WithArgs(orderID, kind, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

func TestConfirmReleasesEscrow(t *testing.T) {
	svc, mock, pub := newTestEngine(t)
	f := orderFixture{
		id: uuid.New(), buyerID: uuid.New(), sellerID: uuid.New(),
		status: models.OrderStatusDelivered, escrow: models.EscrowStatusHeld, paid: true,
	}

	mock.ExpectBegin()
	expectOrderLock(mock, f)
	mock.ExpectExec(`UPDATE orders SET status = .+, escrow_status = .+, completed_at`).
		WithArgs(models.OrderStatusCompleted, models.EscrowStatusReleased, f.id, opSources[rbac.OpConfirm]).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectWalletLock(mock, f.sellerID, "5.00", "17.20")
	expectBalancesWrite(mock, f.sellerID, "22.20", "0.00")
	expectLedgerInsert(mock, f.sellerID, f.id, models.TxTypeSale, "17.20", "5.00", "22.20")
	expectTimeline(mock, f.id, models.TimelineOrderCompleted)
	mock.ExpectCommit()

	if err := svc.Confirm(context.Background(), f.id, f.buyerID, models.RoleUser); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
	if len(pub.events) != 1 || pub.events[0].Type != events.EventOrderStatusChanged {
		t.Errorf("expected one status change event, got %+v", pub.events)
	}
}

func TestConfirmLostRace(t *testing.T) {
	svc, mock, _ := newTestEngine(t)
	f := orderFixture{
		id: uuid.New(), buyerID: uuid.New(), sellerID: uuid.New(),
		status: models.OrderStatusDelivered, escrow: models.EscrowStatusHeld, paid: true,
	}

	mock.ExpectBegin()
	expectOrderLock(mock, f)
	mock.ExpectExec(`UPDATE orders SET status = .+, escrow_status = .+, completed_at`).
		WithArgs(models.OrderStatusCompleted, models.EscrowStatusReleased, f.id, opSources[rbac.OpConfirm]).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := svc.Confirm(context.Background(), f.id, f.buyerID, models.RoleUser)
	if apperr.CodeOf(err) != apperr.CodeInvalidState {
		t.Fatalf("code = %v, want INVALID_STATE", apperr.CodeOf(err))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestConfirmByStranger(t *testing.T) {
	svc, mock, pub := newTestEngine(t)
	f := orderFixture{
		id: uuid.New(), buyerID: uuid.New(), sellerID: uuid.New(),
		status: models.OrderStatusDelivered, escrow: models.EscrowStatusHeld, paid: true,
	}

	mock.ExpectBegin()
	expectOrderLock(mock, f)
	mock.ExpectRollback()

	err := svc.Confirm(context.Background(), f.id, uuid.New(), models.RoleUser)
	if apperr.CodeOf(err) != apperr.CodeUnauthorized {
		t.Fatalf("code = %v, want UNAUTHORIZED", apperr.CodeOf(err))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
	if len(pub.events) != 0 {
		t.Errorf("no event expected, got %+v", pub.events)
	}
}

func TestConfirmBySellerRejected(t *testing.T) {
	svc, mock, _ := newTestEngine(t)
	f := orderFixture{
		id: uuid.New(), buyerID: uuid.New(), sellerID: uuid.New(),
		status: models.OrderStatusDelivered, escrow: models.EscrowStatusHeld, paid: true,
	}

	mock.ExpectBegin()
	expectOrderLock(mock, f)
	mock.ExpectRollback()

	err := svc.Confirm(context.Background(), f.id, f.sellerID, models.RoleUser)
	if apperr.CodeOf(err) != apperr.CodeUnauthorized {
		t.Fatalf("code = %v, want UNAUTHORIZED", apperr.CodeOf(err))
	}
}

func TestConfirmUnpaidOrder(t *testing.T) {
	svc, mock, _ := newTestEngine(t)
	f := orderFixture{
		id: uuid.New(), buyerID: uuid.New(), sellerID: uuid.New(),
		status: models.OrderStatusDelivered, escrow: models.EscrowStatusNone, paid: false,
	}

	mock.ExpectBegin()
	expectOrderLock(mock, f)
	mock.ExpectRollback()

	err := svc.Confirm(context.Background(), f.id, f.buyerID, models.RoleUser)
	if apperr.CodeOf(err) != apperr.CodeInvalidState {
		t.Fatalf("code = %v, want INVALID_STATE", apperr.CodeOf(err))
	}
}

func TestPayMovesMoneyIntoEscrow(t *testing.T) {
	svc, mock, pub := newTestEngine(t)
	f := orderFixture{
		id: uuid.New(), buyerID: uuid.New(), sellerID: uuid.New(),
		status: models.OrderStatusPending, escrow: models.EscrowStatusNone,
	}

	mock.ExpectBegin()
	expectOrderLock(mock, f)
	mock.ExpectExec(`UPDATE orders SET status = .+, escrow_status = .+, paid_at`).
		WithArgs(models.OrderStatusActive, models.EscrowStatusHeld, f.id, opSources[rbac.OpPay]).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectWalletLock(mock, f.buyerID, "50.00", "0.00")
	expectBalancesWrite(mock, f.buyerID, "30.00", "0.00")
	expectLedgerInsert(mock, f.buyerID, f.id, models.TxTypePurchase, "-20.00", "50.00", "30.00")
	expectWalletLock(mock, f.sellerID, "0.00", "0.00")
	expectBalancesWrite(mock, f.sellerID, "0.00", "17.20")
	expectLedgerInsert(mock, f.sellerID, f.id, models.TxTypeEscrowHold, "17.20", "0.00", "17.20")
	expectTimeline(mock, f.id, models.TimelineOrderPaid)
	mock.ExpectCommit()

	if err := svc.Pay(context.Background(), f.id, f.buyerID, models.RoleUser); err != nil {
		t.Fatalf("Pay: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
	if len(pub.events) != 1 {
		t.Errorf("expected one event, got %d", len(pub.events))
	}
}

func TestPayInsufficientFunds(t *testing.T) {
	svc, mock, pub := newTestEngine(t)
	f := orderFixture{
		id: uuid.New(), buyerID: uuid.New(), sellerID: uuid.New(),
		status: models.OrderStatusPending, escrow: models.EscrowStatusNone,
	}

	mock.ExpectBegin()
	expectOrderLock(mock, f)
	mock.ExpectExec(`UPDATE orders SET status = .+, escrow_status = .+, paid_at`).
		WithArgs(models.OrderStatusActive, models.EscrowStatusHeld, f.id, opSources[rbac.OpPay]).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectWalletLock(mock, f.buyerID, "5.00", "0.00")
	mock.ExpectRollback()

	err := svc.Pay(context.Background(), f.id, f.buyerID, models.RoleUser)
	if apperr.CodeOf(err) != apperr.CodeInsufficientFunds {
		t.Fatalf("code = %v, want INSUFFICIENT_FUNDS", apperr.CodeOf(err))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
	if len(pub.events) != 0 {
		t.Errorf("no event expected after rollback, got %d", len(pub.events))
	}
}

func TestCancelRefundsEscrowedOrder(t *testing.T) {
	svc, mock, _ := newTestEngine(t)
	f := orderFixture{
		id: uuid.New(), buyerID: uuid.New(), sellerID: uuid.New(),
		status: models.OrderStatusActive, escrow: models.EscrowStatusHeld, paid: true,
	}

	mock.ExpectBegin()
	expectOrderLock(mock, f)
	mock.ExpectExec(`UPDATE orders SET status = .+, escrow_status = .+, cancel_reason`).
		WithArgs(models.OrderStatusCancelled, models.EscrowStatusRefunded, "out of stock", f.id, opSources[rbac.OpCancel]).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectWalletLock(mock, f.buyerID, "0.00", "0.00")
	expectBalancesWrite(mock, f.buyerID, "20.00", "0.00")
	expectLedgerInsert(mock, f.buyerID, f.id, models.TxTypeRefund, "20.00", "0.00", "20.00")
	expectWalletLock(mock, f.sellerID, "0.00", "17.20")
	expectBalancesWrite(mock, f.sellerID, "0.00", "0.00")
	expectLedgerInsert(mock, f.sellerID, f.id, models.TxTypeEscrowReversal, "-17.20", "17.20", "0.00")
	expectTimeline(mock, f.id, models.TimelineOrderCancelled)
	mock.ExpectCommit()

	if err := svc.Cancel(context.Background(), f.id, f.sellerID, models.RoleUser, "out of stock"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCancelByBuyerRejected(t *testing.T) {
	svc, mock, _ := newTestEngine(t)
	f := orderFixture{
		id: uuid.New(), buyerID: uuid.New(), sellerID: uuid.New(),
		status: models.OrderStatusActive, escrow: models.EscrowStatusHeld, paid: true,
	}

	mock.ExpectBegin()
	expectOrderLock(mock, f)
	mock.ExpectRollback()

	err := svc.Cancel(context.Background(), f.id, f.buyerID, models.RoleUser, "changed my mind")
	if apperr.CodeOf(err) != apperr.CodeUnauthorized {
		t.Fatalf("code = %v, want UNAUTHORIZED", apperr.CodeOf(err))
	}
}

func TestCancelRequiresReason(t *testing.T) {
	svc, _, _ := newTestEngine(t)

	err := svc.Cancel(context.Background(), uuid.New(), uuid.New(), models.RoleUser, "  ")
	if apperr.CodeOf(err) != apperr.CodeValidation {
		t.Fatalf("code = %v, want VALIDATION", apperr.CodeOf(err))
	}
}

func TestCancelUnpaidSkipsLedger(t *testing.T) {
	svc, mock, _ := newTestEngine(t)
	f := orderFixture{
		id: uuid.New(), buyerID: uuid.New(), sellerID: uuid.New(),
		status: models.OrderStatusPending, escrow: models.EscrowStatusNone,
	}

	mock.ExpectBegin()
	expectOrderLock(mock, f)
	mock.ExpectExec(`UPDATE orders SET status = .+, escrow_status = .+, cancel_reason`).
		WithArgs(models.OrderStatusCancelled, models.EscrowStatusNone, "buyer never paid", f.id, opSources[rbac.OpCancel]).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectTimeline(mock, f.id, models.TimelineOrderCancelled)
	mock.ExpectCommit()

	if err := svc.Cancel(context.Background(), f.id, f.sellerID, models.RoleUser, "buyer never paid"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestForceCancelRefundOnDispute(t *testing.T) {
	svc, mock, _ := newTestEngine(t)
	admin := uuid.New()
	f := orderFixture{
		id: uuid.New(), buyerID: uuid.New(), sellerID: uuid.New(),
		status: models.OrderStatusDisputed, escrow: models.EscrowStatusHeld, paid: true,
	}

	mock.ExpectBegin()
	expectOrderLock(mock, f)
	mock.ExpectExec(`UPDATE orders SET status = .+, escrow_status = .+, cancel_reason`).
		WithArgs(models.OrderStatusRefunded, models.EscrowStatusRefunded, "buyer is right", f.id, opSources[rbac.OpForceCancelRefund]).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectWalletLock(mock, f.buyerID, "0.00", "0.00")
	expectBalancesWrite(mock, f.buyerID, "20.00", "0.00")
	expectLedgerInsert(mock, f.buyerID, f.id, models.TxTypeRefund, "20.00", "0.00", "20.00")
	expectWalletLock(mock, f.sellerID, "0.00", "17.20")
	expectBalancesWrite(mock, f.sellerID, "0.00", "0.00")
	expectLedgerInsert(mock, f.sellerID, f.id, models.TxTypeEscrowReversal, "-17.20", "17.20", "0.00")
	mock.ExpectExec(`UPDATE disputes SET status`).
		WithArgs(models.DisputeStatusResolvedRefunded, f.id, models.DisputeStatusOpen).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectTimeline(mock, f.id, models.TimelineOrderRefunded)
	mock.ExpectCommit()

	if err := svc.ForceCancelRefund(context.Background(), f.id, admin, models.RoleAdmin, "buyer is right"); err != nil {
		t.Fatalf("ForceCancelRefund: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestForceCompleteByNonAdmin(t *testing.T) {
	svc, mock, _ := newTestEngine(t)
	f := orderFixture{
		id: uuid.New(), buyerID: uuid.New(), sellerID: uuid.New(),
		status: models.OrderStatusDisputed, escrow: models.EscrowStatusHeld, paid: true,
	}

	mock.ExpectBegin()
	expectOrderLock(mock, f)
	mock.ExpectRollback()

	err := svc.ForceComplete(context.Background(), f.id, f.buyerID, models.RoleUser)
	if apperr.CodeOf(err) != apperr.CodeUnauthorized {
		t.Fatalf("code = %v, want UNAUTHORIZED", apperr.CodeOf(err))
	}
}

func TestPayUnknownOrder(t *testing.T) {
	svc, mock, _ := newTestEngine(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM orders WHERE id = .+ FOR UPDATE`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := svc.Pay(context.Background(), id, uuid.New(), models.RoleUser)
	if apperr.CodeOf(err) != apperr.CodeNotFound {
		t.Fatalf("code = %v, want NOT_FOUND", apperr.CodeOf(err))
	}
}
