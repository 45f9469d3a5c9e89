package models

// CreateEscrowRequest is the POST /escrows body. Schema validation happens at
// the handler; the domain core assumes well-formed input.
type CreateEscrowRequest struct {
	BuyerID     string `json:"buyer_id"`
	SellerID    string `json:"seller_id"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

// ApplyActionRequest is the POST /escrows/{id}/actions body.
type ApplyActionRequest struct {
	Action      string `json:"action"`
	PerformedBy string `json:"performed_by"`
	Role        string `json:"role"`
	Reason      string `json:"reason,omitempty"`
}
