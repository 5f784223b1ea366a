package repository

import (
	"context"
	"errors"

	"order-service/internal/domain/order"
	"order-service/internal/infra"
	"order-service/internal/pkg/pgconv"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const (
	pgErrCodeUniqueViolation     = "23505"
	pgErrCodeForeignKeyViolation = "23503"
)

type OrderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

const createOrderSQL = `
INSERT INTO orders (user_id, total_amount, status, notes, idempotency_key)
VALUES ($1, $2::numeric, $3, $4, $5)
RETURNING id, created_at, updated_at`

// Create inserts the order row and returns the assigned identifier. The row
// stays invisible to other transactions until the enclosing unit of work commits.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) (int64, error) {
	var (
		id        int64
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)

	err := r.db.QueryRow(ctx, createOrderSQL,
		o.UserID(),
		o.TotalAmount().String(),
		o.Status().String(),
		pgconv.StringPtrToPgtype(o.Notes()),
		pgconv.StringPtrToPgtype(o.IdempotencyKey()),
	).Scan(&id, &createdAt, &updatedAt)
	if err != nil {
		return 0, wrapOrderErr("failed to create order", err)
	}

	return id, nil
}

const createItemSQL = `
INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, subtotal, reservation_id)
VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7)`

func (r *OrderRepository) CreateItem(ctx context.Context, orderID int64, item order.Item) error {
	_, err := r.db.Exec(ctx, createItemSQL,
		orderID,
		item.ProductID(),
		item.ProductName(),
		item.Quantity(),
		item.UnitPrice().String(),
		item.Subtotal().String(),
		pgconv.StringPtrToPgtype(item.ReservationID()),
	)
	if err != nil {
		return wrapOrderErr("failed to create order item", err)
	}

	return nil
}

const selectOrderSQL = `
SELECT id, user_id, total_amount::text, status, payment_id, notes, idempotency_key, failure_reason, created_at, updated_at
FROM orders`

func (r *OrderRepository) FindByID(ctx context.Context, id int64) (*order.Order, error) {
	return r.findOne(ctx, selectOrderSQL+` WHERE id = $1`, id)
}

func (r *OrderRepository) FindByIDAndUser(ctx context.Context, id, userID int64) (*order.Order, error) {
	return r.findOne(ctx, selectOrderSQL+` WHERE id = $1 AND user_id = $2`, id, userID)
}

func (r *OrderRepository) FindByIdempotencyKey(ctx context.Context, key string) (*order.Order, error) {
	return r.findOne(ctx, selectOrderSQL+` WHERE idempotency_key = $1`, key)
}

const updateStatusSQL = `
UPDATE orders
SET status = $2,
    payment_id = COALESCE($3, payment_id),
    failure_reason = COALESCE($4, failure_reason),
    updated_at = now()
WHERE id = $1`

// UpdateStatus transitions the order; payment id and failure reason are only
// written when provided, existing values are preserved.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID int64, status order.Status, paymentID, failureReason *string) error {
	tag, err := r.db.Exec(ctx, updateStatusSQL,
		orderID,
		status.String(),
		pgconv.StringPtrToPgtype(paymentID),
		pgconv.StringPtrToPgtype(failureReason),
	)
	if err != nil {
		return wrapOrderErr("failed to update order status", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.NewRepoErr(infra.KindNotFound, "order not found for status update", nil)
	}

	return nil
}

const listOrdersSQL = selectOrderSQL + `
WHERE user_id = $1 AND ($2::text IS NULL OR status = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`

const countOrdersSQL = `
SELECT count(*) FROM orders
WHERE user_id = $1 AND ($2::text IS NULL OR status = $2)`

func (r *OrderRepository) ListByUser(ctx context.Context, userID int64, statusFilter *order.Status, page, pageSize int) ([]*order.Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var filter pgtype.Text
	if statusFilter != nil {
		filter = pgconv.StringToPgtype(statusFilter.String())
	}

	var total int64
	if err := r.db.QueryRow(ctx, countOrdersSQL, userID, filter).Scan(&total); err != nil {
		return nil, 0, wrapOrderErr("failed to count orders", err)
	}

	rows, err := r.db.Query(ctx, listOrdersSQL, userID, filter, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, wrapOrderErr("failed to list orders", err)
	}
	defer rows.Close()

	var orders []*order.Order
	for rows.Next() {
		o, scanErr := scanOrder(rows)
		if scanErr != nil {
			return nil, 0, scanErr
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, wrapOrderErr("failed to read order rows", err)
	}

	for i, o := range orders {
		items, itemsErr := r.loadItems(ctx, o.ID())
		if itemsErr != nil {
			return nil, 0, itemsErr
		}
		orders[i] = withItems(o, items)
	}

	return orders, total, nil
}

func (r *OrderRepository) findOne(ctx context.Context, sql string, args ...any) (*order.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, err
	}

	items, err := r.loadItems(ctx, o.ID())
	if err != nil {
		return nil, err
	}

	return withItems(o, items), nil
}

const selectItemsSQL = `
SELECT id, order_id, product_id, product_name, quantity, unit_price::text, subtotal::text, reservation_id, created_at
FROM order_items
WHERE order_id = $1
ORDER BY id`

func (r *OrderRepository) loadItems(ctx context.Context, orderID int64) ([]order.Item, error) {
	rows, err := r.db.Query(ctx, selectItemsSQL, orderID)
	if err != nil {
		return nil, wrapOrderErr("failed to load order items", err)
	}
	defer rows.Close()

	var items []order.Item
	for rows.Next() {
		var (
			id            int64
			ownerID       int64
			productID     string
			productName   string
			quantity      int32
			unitPriceStr  string
			subtotalStr   string
			reservationID pgtype.Text
			createdAt     pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &ownerID, &productID, &productName, &quantity, &unitPriceStr, &subtotalStr, &reservationID, &createdAt); err != nil {
			return nil, wrapOrderErr("failed to scan order item", err)
		}

		unitPrice, err := decimal.NewFromString(unitPriceStr)
		if err != nil {
			return nil, wrapOrderErr("invalid unit price in storage", err)
		}
		subtotal, err := decimal.NewFromString(subtotalStr)
		if err != nil {
			return nil, wrapOrderErr("invalid subtotal in storage", err)
		}

		items = append(items, order.ReconstructItem(
			id, ownerID, productID, productName, quantity,
			unitPrice, subtotal,
			pgconv.StringPtrFromPgtype(reservationID),
			pgconv.TimeFromPgtype(createdAt),
		))
	}
	if err := rows.Err(); err != nil {
		return nil, wrapOrderErr("failed to read order item rows", err)
	}

	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		id             int64
		userID         int64
		totalStr       string
		statusStr      string
		paymentID      pgtype.Text
		notes          pgtype.Text
		idempotencyKey pgtype.Text
		failureReason  pgtype.Text
		createdAt      pgtype.Timestamptz
		updatedAt      pgtype.Timestamptz
	)

	err := row.Scan(&id, &userID, &totalStr, &statusStr, &paymentID, &notes, &idempotencyKey, &failureReason, &createdAt, &updatedAt)
	if err != nil {
		return nil, wrapOrderErr("failed to scan order", err)
	}

	total, err := decimal.NewFromString(totalStr)
	if err != nil {
		return nil, wrapOrderErr("invalid total amount in storage", err)
	}

	return order.ReconstructOrder(
		id, userID, total,
		order.Status(statusStr),
		pgconv.StringPtrFromPgtype(paymentID),
		pgconv.StringPtrFromPgtype(notes),
		pgconv.StringPtrFromPgtype(idempotencyKey),
		pgconv.StringPtrFromPgtype(failureReason),
		pgconv.TimeFromPgtype(createdAt),
		pgconv.TimeFromPgtype(updatedAt),
		nil,
	), nil
}

func withItems(o *order.Order, items []order.Item) *order.Order {
	return order.ReconstructOrder(
		o.ID(), o.UserID(), o.TotalAmount(), o.Status(),
		o.PaymentID(), o.Notes(), o.IdempotencyKey(), o.FailureReason(),
		o.CreatedAt(), o.UpdatedAt(), items,
	)
}

func wrapOrderErr(msg string, err error) error {
	if pgconv.IsNoRows(err) {
		return infra.NewRepoErr(infra.KindNotFound, msg, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrCodeUniqueViolation:
			return infra.NewRepoErr(infra.KindDuplicateKey, msg, err)
		case pgErrCodeForeignKeyViolation:
			return infra.NewRepoErr(infra.KindForeignKeyViolated, msg, err)
		}
	}

	return infra.NewRepoErr(infra.KindDBFailure, msg, err)
}
