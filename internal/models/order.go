package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusActive    = "active"
	OrderStatusDelivered = "delivered"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
	OrderStatusDisputed  = "disputed"
	OrderStatusRefunded  = "refunded"
)

// Escrow statuses track whether the seller's earnings are still held.
const (
	EscrowStatusNone     = "none"
	EscrowStatusHeld     = "held"
	EscrowStatusReleased = "released"
	EscrowStatusRefunded = "refunded"
)

// Valid state transitions: from -> []to
var ValidOrderTransitions = map[string][]string{
	OrderStatusPending:   {OrderStatusActive, OrderStatusDelivered, OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusActive:    {OrderStatusDelivered, OrderStatusCompleted, OrderStatusCancelled, OrderStatusDisputed},
	OrderStatusDelivered: {OrderStatusCompleted, OrderStatusCancelled, OrderStatusDisputed},
	OrderStatusDisputed:  {OrderStatusCompleted, OrderStatusRefunded},
	OrderStatusCompleted: {},
	OrderStatusCancelled: {},
	OrderStatusRefunded:  {},
}

func IsValidTransition(from, to string) bool {
	allowed, ok := ValidOrderTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether the status admits no further transitions.
func IsTerminalStatus(status string) bool {
	allowed, ok := ValidOrderTransitions[status]
	return ok && len(allowed) == 0
}

type Order struct {
	ID          uuid.UUID `json:"id"`
	OrderNumber string    `json:"order_number"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	SellerID    uuid.UUID `json:"seller_id"`
	ListingRef  string    `json:"listing_ref"`

	// Commercial snapshot, fixed at creation
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Quantity       int             `json:"quantity"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Discount       decimal.Decimal `json:"discount"`
	PlatformFee    decimal.Decimal `json:"platform_fee"`
	SellerEarnings decimal.Decimal `json:"seller_earnings"`
	FinalAmount    decimal.Decimal `json:"final_amount"`

	Status       string  `json:"status"`
	EscrowStatus string  `json:"escrow_status"`
	CancelReason *string `json:"cancel_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsPaid reports whether escrow was ever funded for this order.
// An order can reach delivered without payment; money only moves on paid orders.
func (o *Order) IsPaid() bool {
	return o.PaidAt != nil
}
