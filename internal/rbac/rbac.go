package rbac

import (
	"github.com/digital-goods/backend/internal/models"
	"github.com/google/uuid"
)

// Actor tags describe the caller's relationship to an order.
const (
	ActorBuyer  = "buyer"
	ActorSeller = "seller"
	ActorAdmin  = "admin"
)

// Lifecycle operations
const (
	OpPay               = "pay"
	OpMarkDelivered     = "mark_delivered"
	OpConfirm           = "confirm"
	OpCancel            = "cancel"
	OpOpenDispute       = "open_dispute"
	OpSubmitReview      = "submit_review"
	OpForceComplete     = "force_complete"
	OpForceCancelRefund = "force_cancel_refund"
)

// OperationActors defines which actors may trigger each operation.
var OperationActors = map[string][]string{
	OpPay:               {ActorBuyer},
	OpMarkDelivered:     {ActorSeller, ActorAdmin},
	OpConfirm:           {ActorBuyer, ActorAdmin},
	OpCancel:            {ActorSeller, ActorAdmin},
	OpOpenDispute:       {ActorBuyer, ActorAdmin},
	OpSubmitReview:      {ActorBuyer},
	OpForceComplete:     {ActorAdmin},
	OpForceCancelRefund: {ActorAdmin},
}

// IsAllowed checks the permission matrix for one operation.
func IsAllowed(operation, actor string) bool {
	actors, ok := OperationActors[operation]
	if !ok {
		return false
	}
	for _, a := range actors {
		if a == actor {
			return true
		}
	}
	return false
}

// ActorFor resolves the caller into an actor tag relative to an order.
// Admin role wins over any party relationship; an unrelated non-admin
// caller gets an empty tag and fails every permission check.
func ActorFor(order *models.Order, userID uuid.UUID, role string) string {
	if role == models.RoleAdmin {
		return ActorAdmin
	}
	switch userID {
	case order.BuyerID:
		return ActorBuyer
	case order.SellerID:
		return ActorSeller
	}
	return ""
}
