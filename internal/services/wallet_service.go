package services

import (
	"context"
	"fmt"

	"github.com/digital-goods/backend/internal/apperr"
	"github.com/digital-goods/backend/internal/config"
	"github.com/digital-goods/backend/internal/events"
	"github.com/digital-goods/backend/internal/fees"
	"github.com/digital-goods/backend/internal/models"
	"github.com/digital-goods/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type WalletService struct {
	db         repositories.DB
	walletRepo *repositories.WalletRepo
	cfg        *config.Config
	log        *zap.Logger
}

func NewWalletService(db repositories.DB, walletRepo *repositories.WalletRepo, cfg *config.Config, log *zap.Logger) *WalletService {
	return &WalletService{db: db, walletRepo: walletRepo, cfg: cfg, log: log}
}

func (s *WalletService) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	w, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, walletErr(err, userID)
	}
	return w, nil
}

func (s *WalletService) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	txs, err := s.walletRepo.ListTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return txs, nil
}

func (s *WalletService) ListTransactionsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.WalletTransaction, error) {
	txs, err := s.walletRepo.ListTransactionsByOrder(ctx, orderID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return txs, nil
}

// Deposit credits the spendable balance with one DEPOSIT ledger entry.
func (s *WalletService) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*models.Wallet, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validation("deposit amount must be positive")
	}
	amount = amount.Round(2)

	var updated *models.Wallet
	_, err := withTx(ctx, s.db, func(tx pgx.Tx) (*events.Event, error) {
		wr := s.walletRepo.WithTx(tx)
		w, err := wr.GetForUpdate(ctx, userID)
		if err != nil {
			return nil, walletErr(err, userID)
		}
		newBalance := w.Balance.Add(amount)
		if err := wr.SetBalances(ctx, userID, newBalance, w.PendingBalance); err != nil {
			return nil, apperr.Storage(err)
		}
		if err := wr.InsertTransaction(ctx, &models.WalletTransaction{
			UserID:        userID,
			Type:          models.TxTypeDeposit,
			Amount:        amount,
			BalanceBefore: w.Balance,
			BalanceAfter:  newBalance,
			Description:   fmt.Sprintf("deposit of %s", amount),
		}); err != nil {
			return nil, apperr.Storage(err)
		}
		w.Balance = newBalance
		updated = w
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Withdraw debits the requested amount plus the withdrawal fee from the
// spendable balance. The fee is recorded as its own ledger entry so finance
// reporting can aggregate collected fees without parsing descriptions.
func (s *WalletService) Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*models.Wallet, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validation("withdrawal amount must be positive")
	}
	amount = amount.Round(2)
	fee, err := fees.WithdrawalFee(s.cfg.FeeSchedule(), amount)
	if err != nil {
		return nil, err
	}
	total := amount.Add(fee)

	var updated *models.Wallet
	_, err = withTx(ctx, s.db, func(tx pgx.Tx) (*events.Event, error) {
		wr := s.walletRepo.WithTx(tx)
		w, err := wr.GetForUpdate(ctx, userID)
		if err != nil {
			return nil, walletErr(err, userID)
		}
		if w.Balance.LessThan(total) {
			return nil, apperr.InsufficientFunds("wallet balance %s is less than %s (amount plus fee)", w.Balance, total)
		}

		afterAmount := w.Balance.Sub(amount)
		if err := wr.InsertTransaction(ctx, &models.WalletTransaction{
			UserID:        userID,
			Type:          models.TxTypeWithdrawal,
			Amount:        amount.Neg(),
			BalanceBefore: w.Balance,
			BalanceAfter:  afterAmount,
			Description:   fmt.Sprintf("withdrawal of %s", amount),
		}); err != nil {
			return nil, apperr.Storage(err)
		}

		newBalance := afterAmount
		if fee.IsPositive() {
			newBalance = afterAmount.Sub(fee)
			if err := wr.InsertTransaction(ctx, &models.WalletTransaction{
				UserID:        userID,
				Type:          models.TxTypeWithdrawalFee,
				Amount:        fee.Neg(),
				BalanceBefore: afterAmount,
				BalanceAfter:  newBalance,
				Description:   fmt.Sprintf("withdrawal fee of %s", fee),
			}); err != nil {
				return nil, apperr.Storage(err)
			}
		}

		if err := wr.SetBalances(ctx, userID, newBalance, w.PendingBalance); err != nil {
			return nil, apperr.Storage(err)
		}
		w.Balance = newBalance
		updated = w
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
