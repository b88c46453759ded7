package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	DisputeStatusOpen              = "open"
	DisputeStatusResolvedCompleted = "resolved_completed"
	DisputeStatusResolvedRefunded  = "resolved_refunded"
)

// Dispute reason codes
const (
	DisputeReasonNotDelivered   = "not_delivered"
	DisputeReasonNotAsDescribed = "not_as_described"
	DisputeReasonQuality        = "quality"
	DisputeReasonOther          = "other"
)

func IsValidDisputeReason(reason string) bool {
	switch reason {
	case DisputeReasonNotDelivered, DisputeReasonNotAsDescribed, DisputeReasonQuality, DisputeReasonOther:
		return true
	}
	return false
}

type Dispute struct {
	ID          uuid.UUID `json:"id"`
	OrderID     uuid.UUID `json:"order_id"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	SellerID    uuid.UUID `json:"seller_id"`
	InitiatorID uuid.UUID `json:"initiator_id"`
	Reason      string    `json:"reason"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
