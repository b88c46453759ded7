package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Wallet struct {
	UserID         uuid.UUID       `json:"user_id"`
	Balance        decimal.Decimal `json:"balance"`
	PendingBalance decimal.Decimal `json:"pending_balance"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Ledger entry types
const (
	TxTypeDeposit        = "deposit"
	TxTypePurchase       = "purchase"
	TxTypeSale           = "sale"
	TxTypeRefund         = "refund"
	TxTypeEscrowHold     = "escrow_hold"
	TxTypeEscrowReversal = "escrow_reversal"
	TxTypeWithdrawal     = "withdrawal"
	TxTypeWithdrawalFee  = "withdrawal_fee"
)

// WalletTransaction is an immutable, append-only ledger entry.
// For escrow_hold/escrow_reversal entries BalanceBefore/BalanceAfter track the
// pending balance; for all other types they track the spendable balance.
type WalletTransaction struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	OrderID       *uuid.UUID      `json:"order_id,omitempty"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Description   string          `json:"description"`
	CreatedAt     time.Time       `json:"created_at"`
}
