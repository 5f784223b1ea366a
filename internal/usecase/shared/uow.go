package shared

import (
	"context"

	"order-service/internal/domain/order"
	"order-service/internal/infra/repository"
)

type UnitOfWork interface {
	// Within: Full transaction for write operations with retry logic
	Within(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Reads: Pool-backed reads outside any explicit transaction
	Reads() OrderReads
}

type Tx interface {
	Orders() OrderRepository
	DB() repository.DBTX
}

// OrderRepository is the write-side contract consumed by the checkout saga.
// Mutations are staged on the enclosing transaction; Within's commit makes them
// durable, any error rolls the whole unit back.
type OrderRepository interface {
	Create(ctx context.Context, o *order.Order) (int64, error)
	CreateItem(ctx context.Context, orderID int64, item order.Item) error
	UpdateStatus(ctx context.Context, orderID int64, status order.Status, paymentID, failureReason *string) error
	FindByID(ctx context.Context, id int64) (*order.Order, error)
	FindByIDAndUser(ctx context.Context, id, userID int64) (*order.Order, error)
}

type OrderReads interface {
	ByID(ctx context.Context, id int64) (*order.Order, error)
	ByIDAndUser(ctx context.Context, id, userID int64) (*order.Order, error)
	ByIdempotencyKey(ctx context.Context, key string) (*order.Order, error)
	ListByUser(ctx context.Context, userID int64, statusFilter *order.Status, page, pageSize int) ([]*order.Order, int64, error)
}
