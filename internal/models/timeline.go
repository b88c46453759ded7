package models

import (
	"time"

	"github.com/google/uuid"
)

// Timeline event kinds, one per lifecycle transition plus review submission.
const (
	TimelineOrderCreated    = "order_created"
	TimelineOrderPaid       = "order_paid"
	TimelineOrderDelivered  = "order_delivered"
	TimelineOrderCompleted  = "order_completed"
	TimelineOrderCancelled  = "order_cancelled"
	TimelineOrderRefunded   = "order_refunded"
	TimelineDisputeOpened   = "dispute_opened"
	TimelineReviewSubmitted = "review_submitted"
)

// TimelineEvent is an immutable, append-only record of one order transition.
type TimelineEvent struct {
	ID          uuid.UUID `json:"id"`
	OrderID     uuid.UUID `json:"order_id"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
