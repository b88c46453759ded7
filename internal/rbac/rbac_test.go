package rbac

import (
	"testing"

	"github.com/digital-goods/backend/internal/models"
	"github.com/google/uuid"
)

func TestIsAllowed(t *testing.T) {
	tests := []struct {
		operation string
		actor     string
		expected  bool
	}{
		{OpPay, ActorBuyer, true},
		{OpPay, ActorSeller, false},
		{OpPay, ActorAdmin, false},

		{OpMarkDelivered, ActorSeller, true},
		{OpMarkDelivered, ActorAdmin, true},
		{OpMarkDelivered, ActorBuyer, false},

		{OpConfirm, ActorBuyer, true},
		{OpConfirm, ActorAdmin, true},
		{OpConfirm, ActorSeller, false},

		{OpCancel, ActorSeller, true},
		{OpCancel, ActorAdmin, true},
		{OpCancel, ActorBuyer, false},

		{OpOpenDispute, ActorBuyer, true},
		{OpOpenDispute, ActorAdmin, true},
		{OpOpenDispute, ActorSeller, false},

		{OpSubmitReview, ActorBuyer, true},
		{OpSubmitReview, ActorAdmin, false},

		{OpForceComplete, ActorAdmin, true},
		{OpForceComplete, ActorBuyer, false},
		{OpForceCancelRefund, ActorAdmin, true},
		{OpForceCancelRefund, ActorSeller, false},

		{"unknown_op", ActorAdmin, false},
		{OpConfirm, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.operation+"/"+tt.actor, func(t *testing.T) {
			if got := IsAllowed(tt.operation, tt.actor); got != tt.expected {
				t.Errorf("IsAllowed(%q, %q) = %v, want %v", tt.operation, tt.actor, got, tt.expected)
			}
		})
	}
}

func TestActorFor(t *testing.T) {
	buyer := uuid.New()
	seller := uuid.New()
	stranger := uuid.New()
	order := &models.Order{BuyerID: buyer, SellerID: seller}

	tests := []struct {
		name     string
		userID   uuid.UUID
		role     string
		expected string
	}{
		{"buyer", buyer, models.RoleUser, ActorBuyer},
		{"seller", seller, models.RoleUser, ActorSeller},
		{"stranger", stranger, models.RoleUser, ""},
		{"admin stranger", stranger, models.RoleAdmin, ActorAdmin},
		{"admin who is also buyer", buyer, models.RoleAdmin, ActorAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ActorFor(order, tt.userID, tt.role); got != tt.expected {
				t.Errorf("ActorFor() = %q, want %q", got, tt.expected)
			}
		})
	}
}
