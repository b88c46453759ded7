package fees

import (
	"github.com/digital-goods/backend/internal/apperr"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Schedule is a snapshot of the fee configuration. It is loaded once per
// operation and passed in explicitly so a config change never applies
// retroactively to an in-flight transition.
type Schedule struct {
	PlatformFeePercent     decimal.Decimal
	PlatformFeeFlat        decimal.Decimal
	BuyerServiceFeePercent decimal.Decimal
	BuyerServiceFeeFlat    decimal.Decimal
	WithdrawalFeePercent   decimal.Decimal
	WithdrawalFeeFlat      decimal.Decimal
}

// Quote is the commercial breakdown of one order, fixed at creation.
type Quote struct {
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	PlatformFee    decimal.Decimal
	SellerEarnings decimal.Decimal
	FinalAmount    decimal.Decimal
}

// Calculate prices an order. Pure and deterministic; all amounts rounded to
// two decimal places. The buyer service fee is charged on the discounted
// subtotal; the platform fee is charged on the full subtotal.
func Calculate(s Schedule, unitPrice decimal.Decimal, quantity int, discount decimal.Decimal) (Quote, error) {
	if quantity <= 0 {
		return Quote{}, apperr.Validation("quantity must be positive, got %d", quantity)
	}
	if !unitPrice.IsPositive() {
		return Quote{}, apperr.Validation("unit price must be positive, got %s", unitPrice)
	}
	if discount.IsNegative() {
		return Quote{}, apperr.Validation("discount must not be negative, got %s", discount)
	}

	subtotal := unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
	if discount.GreaterThan(subtotal) {
		return Quote{}, apperr.Validation("discount %s exceeds subtotal %s", discount, subtotal)
	}

	platformFee := subtotal.Mul(s.PlatformFeePercent).Div(hundred).Add(s.PlatformFeeFlat).Round(2)
	if platformFee.GreaterThan(subtotal) {
		platformFee = subtotal
	}

	discounted := subtotal.Sub(discount)
	serviceFee := discounted.Mul(s.BuyerServiceFeePercent).Div(hundred).Add(s.BuyerServiceFeeFlat).Round(2)

	return Quote{
		Subtotal:       subtotal,
		Discount:       discount.Round(2),
		PlatformFee:    platformFee,
		SellerEarnings: subtotal.Sub(platformFee),
		FinalAmount:    discounted.Add(serviceFee),
	}, nil
}

// WithdrawalFee computes the fee charged on top of a wallet withdrawal.
func WithdrawalFee(s Schedule, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, apperr.Validation("withdrawal amount must be positive, got %s", amount)
	}
	return amount.Mul(s.WithdrawalFeePercent).Div(hundred).Add(s.WithdrawalFeeFlat).Round(2), nil
}
