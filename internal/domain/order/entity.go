package order

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNoItems          = errors.New("order must contain at least one item")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrEmptyProductID   = errors.New("product id must not be empty")
	ErrNegativePrice    = errors.New("unit price cannot be negative")
	ErrNotesTooLong     = errors.New("notes exceed maximum length")
	ErrInvalidIdemKey   = errors.New("idempotency key exceeds maximum length")
	ErrNoReservationSet = errors.New("item has no reservation attached")
)

const (
	MaxNotesLength          = 1000
	MaxIdempotencyKeyLength = 64
)

// Item is one line of an Order. Price fields are snapshots taken from the
// inventory service at checkout time; subtotal is always unitPrice * quantity.
type Item struct {
	id            int64
	orderID       int64
	productID     string
	productName   string
	quantity      int32
	unitPrice     decimal.Decimal
	subtotal      decimal.Decimal
	reservationID *string
	createdAt     time.Time
}

func NewItem(productID, productName string, quantity int32, unitPrice decimal.Decimal) (Item, error) {
	if strings.TrimSpace(productID) == "" {
		return Item{}, ErrEmptyProductID
	}
	if quantity <= 0 {
		return Item{}, ErrInvalidQuantity
	}
	if unitPrice.IsNegative() {
		return Item{}, ErrNegativePrice
	}

	return Item{
		productID:   productID,
		productName: productName,
		quantity:    quantity,
		unitPrice:   unitPrice,
		subtotal:    unitPrice.Mul(decimal.NewFromInt32(quantity)),
	}, nil
}

func ReconstructItem(
	id, orderID int64,
	productID, productName string,
	quantity int32,
	unitPrice, subtotal decimal.Decimal,
	reservationID *string,
	createdAt time.Time,
) Item {
	return Item{
		id:            id,
		orderID:       orderID,
		productID:     productID,
		productName:   productName,
		quantity:      quantity,
		unitPrice:     unitPrice,
		subtotal:      subtotal,
		reservationID: reservationID,
		createdAt:     createdAt,
	}
}

// AttachReservation records the inventory hold backing this line. It is set
// between the reserve step and order persistence.
func (i *Item) AttachReservation(reservationID string) {
	i.reservationID = &reservationID
}

func (i Item) ID() int64                { return i.id }
func (i Item) OrderID() int64           { return i.orderID }
func (i Item) ProductID() string        { return i.productID }
func (i Item) ProductName() string      { return i.productName }
func (i Item) Quantity() int32          { return i.quantity }
func (i Item) UnitPrice() decimal.Decimal { return i.unitPrice }
func (i Item) Subtotal() decimal.Decimal  { return i.subtotal }
func (i Item) ReservationID() *string   { return i.reservationID }
func (i Item) CreatedAt() time.Time     { return i.createdAt }

// Order is one purchase attempt. An Order only comes into existence after every
// line has a stock reservation, so new orders start in StatusReserved.
type Order struct {
	id             int64
	userID         int64
	totalAmount    decimal.Decimal
	status         Status
	paymentID      *string
	notes          *string
	idempotencyKey *string
	failureReason  *string
	createdAt      time.Time
	updatedAt      time.Time
	items          []Item
}

func NewOrder(userID int64, items []Item, notes, idempotencyKey *string) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	if notes != nil && len(*notes) > MaxNotesLength {
		return nil, ErrNotesTooLong
	}
	if idempotencyKey != nil && len(*idempotencyKey) > MaxIdempotencyKeyLength {
		return nil, ErrInvalidIdemKey
	}

	total := decimal.Zero
	for _, item := range items {
		if item.reservationID == nil {
			return nil, ErrNoReservationSet
		}
		total = total.Add(item.subtotal)
	}

	return &Order{
		userID:         userID,
		totalAmount:    total,
		status:         StatusReserved,
		notes:          notes,
		idempotencyKey: idempotencyKey,
		items:          items,
	}, nil
}

func ReconstructOrder(
	id, userID int64,
	totalAmount decimal.Decimal,
	status Status,
	paymentID, notes, idempotencyKey, failureReason *string,
	createdAt, updatedAt time.Time,
	items []Item,
) *Order {
	return &Order{
		id:             id,
		userID:         userID,
		totalAmount:    totalAmount,
		status:         status,
		paymentID:      paymentID,
		notes:          notes,
		idempotencyKey: idempotencyKey,
		failureReason:  failureReason,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
		items:          items,
	}
}

func (o *Order) ID() int64                   { return o.id }
func (o *Order) UserID() int64               { return o.userID }
func (o *Order) TotalAmount() decimal.Decimal { return o.totalAmount }
func (o *Order) Status() Status              { return o.status }
func (o *Order) PaymentID() *string          { return o.paymentID }
func (o *Order) Notes() *string              { return o.notes }
func (o *Order) IdempotencyKey() *string     { return o.idempotencyKey }
func (o *Order) FailureReason() *string      { return o.failureReason }
func (o *Order) CreatedAt() time.Time        { return o.createdAt }
func (o *Order) UpdatedAt() time.Time        { return o.updatedAt }
func (o *Order) Items() []Item               { return o.items }
