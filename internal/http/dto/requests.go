package dto

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateOrderRequest struct {
	SellerID   string `json:"seller_id"`
	ListingRef string `json:"listing_ref"`
	UnitPrice  string `json:"unit_price"`
	Quantity   int    `json:"quantity"`
	Discount   string `json:"discount,omitempty"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

type OpenDisputeRequest struct {
	Reason      string `json:"reason"` // not_delivered, not_as_described, quality, other
	Description string `json:"description,omitempty"`
}

type SubmitReviewRequest struct {
	Rating  int    `json:"rating"` // 1..5
	Content string `json:"content,omitempty"`
}

type AmountRequest struct {
	Amount string `json:"amount"`
}

type ForceCancelRequest struct {
	Reason string `json:"reason,omitempty"`
}
