package events

import (
	"context"

	"github.com/google/uuid"
)

// Event types, one logical event per successful lifecycle transition.
const (
	EventOrderStatusChanged = "order_status_changed"
	EventDisputeOpened      = "dispute_opened"
	EventReviewSubmitted    = "review_submitted"
)

// StreamOrders is the pub/sub channel carrying all order lifecycle events.
const StreamOrders = "events:order"

type Event struct {
	Type    string         `json:"type"`
	OrderID uuid.UUID      `json:"order_id"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
