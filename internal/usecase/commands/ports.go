package commands

import (
	"context"

	"order-service/internal/infra/remote"

	"github.com/shopspring/decimal"
)

// Outbound ports consumed by the checkout saga. The concrete clients live in
// internal/infra/remote; tests substitute hand-rolled fakes.

type InventoryGateway interface {
	// GetProduct returns (nil, nil) when the product does not exist.
	GetProduct(ctx context.Context, productID string) (*remote.Product, error)
	ReserveStock(ctx context.Context, productID string, quantity int32, orderID int64) (string, error)
	ReleaseStock(ctx context.Context, reservationID, reason string) error
	ConfirmStock(ctx context.Context, reservationID string) error
}

type PaymentGateway interface {
	ProcessPayment(ctx context.Context, orderID, userID int64, amount decimal.Decimal) (string, error)
	Refund(ctx context.Context, transactionID, reason string) (string, error)
}

type NotificationPublisher interface {
	Publish(ctx context.Context, eventType string, data map[string]any) error
}
