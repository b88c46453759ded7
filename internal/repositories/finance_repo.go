package repositories

import (
	"context"
	"time"

	"github.com/digital-goods/backend/internal/models"
	"github.com/shopspring/decimal"
)

// FinanceRepo is the read-only reporting surface over the order and ledger
// stores. It performs no writes.
type FinanceRepo struct {
	db Querier
}

func NewFinanceRepo(db Querier) *FinanceRepo {
	return &FinanceRepo{db: db}
}

type FinanceSummary struct {
	CompletedOrders     int             `json:"completed_orders"`
	GrossSubtotal       decimal.Decimal `json:"gross_subtotal"`
	TotalPlatformFees   decimal.Decimal `json:"total_platform_fees"`
	TotalSellerEarnings decimal.Decimal `json:"total_seller_earnings"`
	TotalDiscounts      decimal.Decimal `json:"total_discounts"`
	TotalWithdrawalFees decimal.Decimal `json:"total_withdrawal_fees"`
}

// Summary aggregates completed orders and withdrawal fees inside the window.
// Nil bounds leave that side open.
func (r *FinanceRepo) Summary(ctx context.Context, from, to *time.Time) (*FinanceSummary, error) {
	lower := time.Time{}
	if from != nil {
		lower = *from
	}
	upper := time.Now().AddDate(100, 0, 0)
	if to != nil {
		upper = *to
	}

	var s FinanceSummary
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(subtotal), 0),
		       COALESCE(SUM(platform_fee), 0),
		       COALESCE(SUM(seller_earnings), 0),
		       COALESCE(SUM(discount), 0)
		FROM orders
		WHERE status = $1 AND completed_at >= $2 AND completed_at < $3
	`, models.OrderStatusCompleted, lower, upper).Scan(
		&s.CompletedOrders, &s.GrossSubtotal, &s.TotalPlatformFees,
		&s.TotalSellerEarnings, &s.TotalDiscounts,
	)
	if err != nil {
		return nil, err
	}

	// Withdrawal fee entries are negative; report the absolute total collected.
	err = r.db.QueryRow(ctx, `
		SELECT COALESCE(-SUM(amount), 0)
		FROM wallet_transactions
		WHERE type = $1 AND created_at >= $2 AND created_at < $3
	`, models.TxTypeWithdrawalFee, lower, upper).Scan(&s.TotalWithdrawalFees)
	if err != nil {
		return nil, err
	}

	return &s, nil
}
