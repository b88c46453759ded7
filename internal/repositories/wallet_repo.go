package repositories

import (
	"context"

	"github.com/digital-goods/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type WalletRepo struct {
	db Querier
}

func NewWalletRepo(db Querier) *WalletRepo {
	return &WalletRepo{db: db}
}

func (r *WalletRepo) WithTx(tx pgx.Tx) *WalletRepo {
	return &WalletRepo{db: tx}
}

func (r *WalletRepo) Create(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING
	`, userID)
	return err
}

func (r *WalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.QueryRow(ctx, `
		SELECT user_id, balance, pending_balance, updated_at FROM wallets WHERE user_id = $1
	`, userID).Scan(&w.UserID, &w.Balance, &w.PendingBalance, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// GetForUpdate locks the wallet row for the duration of the transaction so
// concurrent writers to the same wallet serialize. Balances must never be
// read outside the transaction that mutates them.
func (r *WalletRepo) GetForUpdate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.QueryRow(ctx, `
		SELECT user_id, balance, pending_balance, updated_at FROM wallets WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&w.UserID, &w.Balance, &w.PendingBalance, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WalletRepo) SetBalances(ctx context.Context, userID uuid.UUID, balance, pending decimal.Decimal) error {
	_, err := r.db.Exec(ctx, `
		UPDATE wallets SET balance = $1, pending_balance = $2, updated_at = now() WHERE user_id = $3
	`, balance, pending, userID)
	return err
}

// InsertTransaction appends a ledger entry. There is intentionally no update
// or delete counterpart; the ledger is append-only.
func (r *WalletRepo) InsertTransaction(ctx context.Context, t *models.WalletTransaction) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO wallet_transactions (user_id, order_id, type, amount, balance_before, balance_after, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, t.UserID, t.OrderID, t.Type, t.Amount, t.BalanceBefore, t.BalanceAfter, t.Description,
	).Scan(&t.ID, &t.CreatedAt)
}

func (r *WalletRepo) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, order_id, type, amount, balance_before, balance_after, description, created_at
		FROM wallet_transactions WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.WalletTransaction
	for rows.Next() {
		var t models.WalletTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.OrderID, &t.Type, &t.Amount,
			&t.BalanceBefore, &t.BalanceAfter, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// ListTransactionsByOrder returns all ledger entries referencing one order,
// oldest first.
func (r *WalletRepo) ListTransactionsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.WalletTransaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, order_id, type, amount, balance_before, balance_after, description, created_at
		FROM wallet_transactions WHERE order_id = $1
		ORDER BY created_at
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.WalletTransaction
	for rows.Next() {
		var t models.WalletTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.OrderID, &t.Type, &t.Amount,
			&t.BalanceBefore, &t.BalanceAfter, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
