package models

import (
	"time"

	"github.com/google/uuid"
)

// Review is written once per completed order by the buyer; resubmission
// updates the existing review instead of creating a second one.
type Review struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	BuyerID   uuid.UUID `json:"buyer_id"`
	SellerID  uuid.UUID `json:"seller_id"`
	Rating    int       `json:"rating"` // 1..5
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
