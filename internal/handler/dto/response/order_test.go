//go:build unit

package response_test

import (
	"testing"
	"time"

	"order-service/internal/domain/order"
	resdto "order-service/internal/handler/dto/response"
	"order-service/internal/usecase/queries"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestFromOrder(t *testing.T) {
	item, err := order.NewItem("p1", "Coffee Beans", 2, decimal.RequireFromString("10.5"))
	require.NoError(t, err)
	item.AttachReservation("res-1")

	paymentID := "txn-1"
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	o := order.ReconstructOrder(
		7, 42, decimal.RequireFromString("21"), order.StatusPaid,
		&paymentID, nil, nil, nil, now, now, []order.Item{item},
	)

	reservationID := "res-1"
	want := &resdto.OrderResponse{
		ID:          7,
		UserID:      42,
		TotalAmount: "21.00",
		Status:      "PAID",
		PaymentID:   &paymentID,
		Items: []resdto.OrderItemResponse{
			{
				ProductID:     "p1",
				ProductName:   "Coffee Beans",
				Quantity:      2,
				UnitPrice:     "10.50",
				Subtotal:      "21.00",
				ReservationID: &reservationID,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if diff := cmp.Diff(want, resdto.FromOrder(o)); diff != "" {
		t.Errorf("FromOrder mismatch (-want +got):\n%s", diff)
	}
}

func TestFromOrderList(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	o := order.ReconstructOrder(
		7, 42, decimal.RequireFromString("21"), order.StatusPaid,
		nil, nil, nil, nil, now, now, nil,
	)

	got := resdto.FromOrderList(&queries.OrderList{
		Orders:   []*order.Order{o},
		Total:    31,
		Page:     2,
		PageSize: 10,
	})

	require.Len(t, got.Orders, 1)
	require.Equal(t, int64(31), got.Total)
	require.Equal(t, 2, got.Page)
	require.Equal(t, 10, got.PageSize)
	require.Empty(t, got.Orders[0].Items)
}
