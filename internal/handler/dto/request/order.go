package request

type CheckoutItem struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int32  `json:"quantity" binding:"required,min=1"`
}

type CheckoutRequest struct {
	Items          []CheckoutItem `json:"items" binding:"required,min=1,dive"`
	Notes          *string        `json:"notes" binding:"omitempty,max=1000"`
	IdempotencyKey *string        `json:"idempotency_key" binding:"omitempty,max=64"`
}

type CancelOrderRequest struct {
	Reason *string `json:"reason" binding:"omitempty,max=500"`
}

func (r CancelOrderRequest) GetReason() string {
	if r.Reason == nil {
		return ""
	}
	return *r.Reason
}

type ListOrdersQuery struct {
	Status   *string `form:"status"`
	Page     int     `form:"page,default=1" binding:"omitempty,min=1"`
	PageSize int     `form:"page_size,default=20" binding:"omitempty,min=1,max=100"`
}
