package response

import (
	"time"

	"order-service/internal/domain/order"
	"order-service/internal/usecase/queries"
)

type OrderItemResponse struct {
	ProductID     string  `json:"productId"`
	ProductName   string  `json:"productName"`
	Quantity      int32   `json:"quantity"`
	UnitPrice     string  `json:"unitPrice"`
	Subtotal      string  `json:"subtotal"`
	ReservationID *string `json:"reservationId,omitempty"`
}

type OrderResponse struct {
	ID            int64               `json:"id"`
	UserID        int64               `json:"userId"`
	TotalAmount   string              `json:"totalAmount"`
	Status        string              `json:"status"`
	PaymentID     *string             `json:"paymentId,omitempty"`
	Notes         *string             `json:"notes,omitempty"`
	FailureReason *string             `json:"failureReason,omitempty"`
	Items         []OrderItemResponse `json:"items"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

type OrderListResponse struct {
	Orders   []*OrderResponse `json:"orders"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
}

func FromOrder(o *order.Order) *OrderResponse {
	items := make([]OrderItemResponse, len(o.Items()))
	for i, item := range o.Items() {
		items[i] = OrderItemResponse{
			ProductID:     item.ProductID(),
			ProductName:   item.ProductName(),
			Quantity:      item.Quantity(),
			UnitPrice:     item.UnitPrice().StringFixed(2),
			Subtotal:      item.Subtotal().StringFixed(2),
			ReservationID: item.ReservationID(),
		}
	}

	return &OrderResponse{
		ID:            o.ID(),
		UserID:        o.UserID(),
		TotalAmount:   o.TotalAmount().StringFixed(2),
		Status:        o.Status().String(),
		PaymentID:     o.PaymentID(),
		Notes:         o.Notes(),
		FailureReason: o.FailureReason(),
		Items:         items,
		CreatedAt:     o.CreatedAt(),
		UpdatedAt:     o.UpdatedAt(),
	}
}

func FromOrderList(list *queries.OrderList) *OrderListResponse {
	orders := make([]*OrderResponse, len(list.Orders))
	for i, o := range list.Orders {
		orders[i] = FromOrder(o)
	}

	return &OrderListResponse{
		Orders:   orders,
		Total:    list.Total,
		Page:     list.Page,
		PageSize: list.PageSize,
	}
}
