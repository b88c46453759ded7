package services

import (
	"context"
	"testing"
	"time"

	"github.com/digital-goods/backend/internal/apperr"
	"github.com/digital-goods/backend/internal/config"
	"github.com/digital-goods/backend/internal/models"
	"github.com/digital-goods/backend/internal/repositories"
	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func newTestWalletService(t *testing.T) (*WalletService, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)

	cfg := &config.Config{
		WithdrawalFeePercent: decimal.RequireFromString("1"),
		WithdrawalFeeFlat:    decimal.RequireFromString("0.50"),
	}
	return NewWalletService(mock, repositories.NewWalletRepo(mock), cfg, zap.NewNop()), mock
}

func expectFreeLedgerInsert(mock pgxmock.PgxPoolIface, userID uuid.UUID, txType, amount, before, after string) {
	mock.ExpectQuery(`INSERT INTO wallet_transactions`).
		WithArgs(userID, (*uuid.UUID)(nil), txType, money(amount), money(before), money(after), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.New(), time.Now()))
}

func TestDeposit(t *testing.T) {
	svc, mock := newTestWalletService(t)
	userID := uuid.New()

	mock.ExpectBegin()
	expectWalletLock(mock, userID, "10.00", "0.00")
	expectBalancesWrite(mock, userID, "35.00", "0.00")
	expectFreeLedgerInsert(mock, userID, models.TxTypeDeposit, "25.00", "10.00", "35.00")
	mock.ExpectCommit()

	w, err := svc.Deposit(context.Background(), userID, decimal.RequireFromString("25.00"))
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if want := decimal.RequireFromString("35.00"); !w.Balance.Equal(want) {
		t.Errorf("balance = %s, want %s", w.Balance, want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDepositRejectsNonPositive(t *testing.T) {
	svc, _ := newTestWalletService(t)

	for _, amount := range []string{"0", "-5.00"} {
		_, err := svc.Deposit(context.Background(), uuid.New(), decimal.RequireFromString(amount))
		if apperr.CodeOf(err) != apperr.CodeValidation {
			t.Errorf("amount %s: code = %v, want VALIDATION", amount, apperr.CodeOf(err))
		}
	}
}

func TestWithdrawChargesFee(t *testing.T) {
	svc, mock := newTestWalletService(t)
	userID := uuid.New()

	mock.ExpectBegin()
	expectWalletLock(mock, userID, "200.00", "0.00")
	expectFreeLedgerInsert(mock, userID, models.TxTypeWithdrawal, "-100.00", "200.00", "100.00")
	expectFreeLedgerInsert(mock, userID, models.TxTypeWithdrawalFee, "-1.50", "100.00", "98.50")
	expectBalancesWrite(mock, userID, "98.50", "0.00")
	mock.ExpectCommit()

	// 100.00 withdrawn, fee 1% + 0.50 = 1.50, so 101.50 leaves the wallet.
	w, err := svc.Withdraw(context.Background(), userID, decimal.RequireFromString("100.00"))
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if want := decimal.RequireFromString("98.50"); !w.Balance.Equal(want) {
		t.Errorf("balance = %s, want %s", w.Balance, want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestWithdrawInsufficientForAmountPlusFee(t *testing.T) {
	svc, mock := newTestWalletService(t)
	userID := uuid.New()

	// Balance covers the amount but not the fee.
	mock.ExpectBegin()
	expectWalletLock(mock, userID, "100.00", "0.00")
	mock.ExpectRollback()

	_, err := svc.Withdraw(context.Background(), userID, decimal.RequireFromString("100.00"))
	if apperr.CodeOf(err) != apperr.CodeInsufficientFunds {
		t.Fatalf("code = %v, want INSUFFICIENT_FUNDS", apperr.CodeOf(err))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestWithdrawPendingBalanceNotSpendable(t *testing.T) {
	svc, mock := newTestWalletService(t)
	userID := uuid.New()

	// Escrowed earnings sit in pending_balance and must not fund withdrawals.
	mock.ExpectBegin()
	expectWalletLock(mock, userID, "0.00", "500.00")
	mock.ExpectRollback()

	_, err := svc.Withdraw(context.Background(), userID, decimal.RequireFromString("50.00"))
	if apperr.CodeOf(err) != apperr.CodeInsufficientFunds {
		t.Fatalf("code = %v, want INSUFFICIENT_FUNDS", apperr.CodeOf(err))
	}
}
