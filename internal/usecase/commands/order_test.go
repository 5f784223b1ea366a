//go:build unit

package commands_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"order-service/internal/domain/order"
	reqdto "order-service/internal/handler/dto/request"
	"order-service/internal/infra"
	"order-service/internal/infra/remote"
	"order-service/internal/infra/repository"
	"order-service/internal/pkg/clock"
	"order-service/internal/usecase/commands"
	"order-service/internal/usecase/shared"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// in-memory unit of work

type orderRecord struct {
	userID        int64
	total         decimal.Decimal
	status        order.Status
	paymentID     *string
	notes         *string
	idemKey       *string
	failureReason *string
	items         []order.Item
}

type memStore struct {
	nextID int64
	orders map[int64]*orderRecord
}

func newMemStore() *memStore {
	return &memStore{orders: map[int64]*orderRecord{}}
}

func (s *memStore) seed(rec *orderRecord) int64 {
	s.nextID++
	s.orders[s.nextID] = rec
	return s.nextID
}

func (s *memStore) materialize(id int64) *order.Order {
	rec := s.orders[id]
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return order.ReconstructOrder(
		id, rec.userID, rec.total, rec.status,
		rec.paymentID, rec.notes, rec.idemKey, rec.failureReason,
		now, now, rec.items,
	)
}

type fakeRepo struct {
	store *memStore
	// failStatus makes UpdateStatus error when moving to that status.
	failStatus order.Status
}

func (r *fakeRepo) Create(_ context.Context, o *order.Order) (int64, error) {
	rec := &orderRecord{
		userID:  o.UserID(),
		total:   o.TotalAmount(),
		status:  o.Status(),
		notes:   o.Notes(),
		idemKey: o.IdempotencyKey(),
	}
	return r.store.seed(rec), nil
}

func (r *fakeRepo) CreateItem(_ context.Context, orderID int64, item order.Item) error {
	rec, ok := r.store.orders[orderID]
	if !ok {
		return infra.NewRepoErr(infra.KindNotFound, "order not found", nil)
	}
	rec.items = append(rec.items, item)
	return nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, orderID int64, status order.Status, paymentID, failureReason *string) error {
	if r.failStatus != "" && status == r.failStatus {
		return infra.NewRepoErr(infra.KindDBFailure, "status update failed", nil)
	}
	rec, ok := r.store.orders[orderID]
	if !ok {
		return infra.NewRepoErr(infra.KindNotFound, "order not found for status update", nil)
	}
	rec.status = status
	if paymentID != nil {
		rec.paymentID = paymentID
	}
	if failureReason != nil {
		rec.failureReason = failureReason
	}
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id int64) (*order.Order, error) {
	if _, ok := r.store.orders[id]; !ok {
		return nil, infra.NewRepoErr(infra.KindNotFound, "order not found", nil)
	}
	return r.store.materialize(id), nil
}

func (r *fakeRepo) FindByIDAndUser(_ context.Context, id, userID int64) (*order.Order, error) {
	rec, ok := r.store.orders[id]
	if !ok || rec.userID != userID {
		return nil, infra.NewRepoErr(infra.KindNotFound, "order not found", nil)
	}
	return r.store.materialize(id), nil
}

type fakeTx struct {
	repo *fakeRepo
}

func (t *fakeTx) Orders() shared.OrderRepository { return t.repo }
func (t *fakeTx) DB() repository.DBTX            { return nil }

type fakeUoW struct {
	store      *memStore
	withinErr  error
	failStatus order.Status
}

func (u *fakeUoW) Within(ctx context.Context, fn func(ctx context.Context, tx shared.Tx) error) error {
	if u.withinErr != nil {
		return u.withinErr
	}
	return fn(ctx, &fakeTx{repo: &fakeRepo{store: u.store, failStatus: u.failStatus}})
}

func (u *fakeUoW) Reads() shared.OrderReads {
	return &fakeReads{store: u.store}
}

type fakeReads struct {
	store *memStore
}

func (r *fakeReads) ByID(ctx context.Context, id int64) (*order.Order, error) {
	return (&fakeRepo{store: r.store}).FindByID(ctx, id)
}

func (r *fakeReads) ByIDAndUser(ctx context.Context, id, userID int64) (*order.Order, error) {
	return (&fakeRepo{store: r.store}).FindByIDAndUser(ctx, id, userID)
}

func (r *fakeReads) ByIdempotencyKey(_ context.Context, key string) (*order.Order, error) {
	for id, rec := range r.store.orders {
		if rec.idemKey != nil && *rec.idemKey == key {
			return r.store.materialize(id), nil
		}
	}
	return nil, infra.NewRepoErr(infra.KindNotFound, "order not found", nil)
}

func (r *fakeReads) ListByUser(_ context.Context, userID int64, _ *order.Status, _, _ int) ([]*order.Order, int64, error) {
	var out []*order.Order
	for id, rec := range r.store.orders {
		if rec.userID == userID {
			out = append(out, r.store.materialize(id))
		}
	}
	return out, int64(len(out)), nil
}

// ---------------------------------------------------------------------------
// gateway fakes

type fakeInventory struct {
	products map[string]*remote.Product
	getErr   error

	reserveErrAt int // 1-based call index that fails, 0 = never
	reserveErr   error
	confirmErrAt int
	confirmErr   error
	releaseErr   error

	getCalls     int
	reserveCalls int
	confirmed    []string
	released     []string
}

func (f *fakeInventory) GetProduct(_ context.Context, productID string) (*remote.Product, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.products[productID], nil
}

func (f *fakeInventory) ReserveStock(_ context.Context, _ string, _ int32, _ int64) (string, error) {
	f.reserveCalls++
	if f.reserveErrAt != 0 && f.reserveCalls == f.reserveErrAt {
		return "", f.reserveErr
	}
	return fmt.Sprintf("res-%d", f.reserveCalls), nil
}

func (f *fakeInventory) ReleaseStock(_ context.Context, reservationID, _ string) error {
	if f.releaseErr != nil {
		return f.releaseErr
	}
	f.released = append(f.released, reservationID)
	return nil
}

func (f *fakeInventory) ConfirmStock(_ context.Context, reservationID string) error {
	if f.confirmErrAt != 0 && len(f.confirmed)+1 == f.confirmErrAt {
		return f.confirmErr
	}
	f.confirmed = append(f.confirmed, reservationID)
	return nil
}

type fakePayment struct {
	transactionID string
	processErr    error
	refundErr     error

	processCalls int
	refunds      []string
}

func (f *fakePayment) ProcessPayment(_ context.Context, _, _ int64, _ decimal.Decimal) (string, error) {
	f.processCalls++
	if f.processErr != nil {
		return "", f.processErr
	}
	return f.transactionID, nil
}

func (f *fakePayment) Refund(_ context.Context, transactionID, _ string) (string, error) {
	if f.refundErr != nil {
		return "", f.refundErr
	}
	f.refunds = append(f.refunds, transactionID)
	return "refund-" + transactionID, nil
}

type publishedEvent struct {
	eventType string
	data      map[string]any
}

type fakeNotifier struct {
	err    error
	events []publishedEvent
}

func (f *fakeNotifier) Publish(_ context.Context, eventType string, data map[string]any) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, publishedEvent{eventType: eventType, data: data})
	return nil
}

// ---------------------------------------------------------------------------

type sagaFixture struct {
	uow       *fakeUoW
	inventory *fakeInventory
	payment   *fakePayment
	notifier  *fakeNotifier
	commands  commands.OrderCommands
}

func newSagaFixture() *sagaFixture {
	uow := &fakeUoW{store: newMemStore()}
	inventory := &fakeInventory{
		products: map[string]*remote.Product{
			"p1": {ID: "p1", Name: "Coffee Beans", Price: decimal.RequireFromString("10.00"), IsActive: true, StockQuantity: 50},
			"p2": {ID: "p2", Name: "Grinder", Price: decimal.RequireFromString("4.25"), IsActive: true, StockQuantity: 10},
			"p3": {ID: "p3", Name: "Retired Blend", Price: decimal.RequireFromString("9.99"), IsActive: false, StockQuantity: 5},
		},
	}
	payment := &fakePayment{transactionID: "txn-1"}
	notifier := &fakeNotifier{}
	clk := clock.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	return &sagaFixture{
		uow:       uow,
		inventory: inventory,
		payment:   payment,
		notifier:  notifier,
		commands:  commands.NewOrderUseCase(uow, inventory, payment, notifier, clk),
	}
}

func twoLineRequest() reqdto.CheckoutRequest {
	return reqdto.CheckoutRequest{
		Items: []reqdto.CheckoutItem{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 1},
		},
	}
}

func TestCheckout(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path ends PAID with stock confirmed", func(t *testing.T) {
		f := newSagaFixture()

		result, err := f.commands.Checkout(ctx, twoLineRequest(), 42, "buyer@example.com", "")
		require.NoError(t, err)
		require.False(t, result.IsReplayed)

		assert.Equal(t, order.StatusPaid, result.Order.Status())
		require.NotNil(t, result.Order.PaymentID())
		assert.Equal(t, "txn-1", *result.Order.PaymentID())
		assert.True(t, result.Order.TotalAmount().Equal(decimal.RequireFromString("24.25")))
		assert.Len(t, result.Order.Items(), 2)

		assert.Equal(t, []string{"res-1", "res-2"}, f.inventory.confirmed)
		assert.Empty(t, f.inventory.released)
		assert.Empty(t, f.payment.refunds)

		require.Len(t, f.notifier.events, 1)
		assert.Equal(t, "payment_success", f.notifier.events[0].eventType)
		assert.Equal(t, "txn-1", f.notifier.events[0].data["transaction_id"])
		assert.Equal(t, "buyer@example.com", f.notifier.events[0].data["email"])
	})

	t.Run("idempotency key replays the stored order with zero remote calls", func(t *testing.T) {
		f := newSagaFixture()
		key := "idem-1"
		existingID := f.uow.store.seed(&orderRecord{
			userID:  42,
			total:   decimal.RequireFromString("24.25"),
			status:  order.StatusPaid,
			idemKey: &key,
		})

		result, err := f.commands.Checkout(ctx, twoLineRequest(), 42, "buyer@example.com", key)
		require.NoError(t, err)

		assert.True(t, result.IsReplayed)
		assert.Equal(t, existingID, result.Order.ID())
		assert.Zero(t, f.inventory.getCalls)
		assert.Zero(t, f.inventory.reserveCalls)
		assert.Zero(t, f.payment.processCalls)
	})

	t.Run("unknown product aborts before any reservation", func(t *testing.T) {
		f := newSagaFixture()
		req := reqdto.CheckoutRequest{Items: []reqdto.CheckoutItem{{ProductID: "ghost", Quantity: 1}}}

		_, err := f.commands.Checkout(ctx, req, 42, "buyer@example.com", "")
		require.ErrorIs(t, err, commands.ErrProductNotFound)

		assert.Zero(t, f.inventory.reserveCalls)
		assert.Empty(t, f.uow.store.orders)
	})

	t.Run("inactive product is rejected", func(t *testing.T) {
		f := newSagaFixture()
		req := reqdto.CheckoutRequest{Items: []reqdto.CheckoutItem{{ProductID: "p3", Quantity: 1}}}

		_, err := f.commands.Checkout(ctx, req, 42, "buyer@example.com", "")
		require.ErrorIs(t, err, commands.ErrProductInactive)
		assert.Zero(t, f.inventory.reserveCalls)
	})

	t.Run("failed second reservation releases the first and persists nothing", func(t *testing.T) {
		f := newSagaFixture()
		f.inventory.reserveErrAt = 2
		f.inventory.reserveErr = remote.Rejected("Insufficient stock for product p2")

		_, err := f.commands.Checkout(ctx, twoLineRequest(), 42, "buyer@example.com", "")
		require.ErrorIs(t, err, commands.ErrInsufficientStock)

		assert.Equal(t, []string{"res-1"}, f.inventory.released)
		assert.Empty(t, f.uow.store.orders)
		assert.Zero(t, f.payment.processCalls)
	})

	t.Run("unreachable inventory during reserve surfaces as unavailable", func(t *testing.T) {
		f := newSagaFixture()
		f.inventory.reserveErrAt = 1
		f.inventory.reserveErr = remote.Unreachable(errors.New("dial tcp: refused"), "request failed")

		_, err := f.commands.Checkout(ctx, twoLineRequest(), 42, "buyer@example.com", "")
		require.ErrorIs(t, err, commands.ErrInventoryUnavailable)
		assert.Empty(t, f.uow.store.orders)
	})

	t.Run("declined payment fails the order and releases reservations without refund", func(t *testing.T) {
		f := newSagaFixture()
		f.payment.processErr = remote.Rejected("Card declined")

		_, err := f.commands.Checkout(ctx, twoLineRequest(), 42, "buyer@example.com", "")
		require.ErrorIs(t, err, commands.ErrPaymentFailed)

		require.Len(t, f.uow.store.orders, 1)
		for _, rec := range f.uow.store.orders {
			assert.Equal(t, order.StatusFailed, rec.status)
			require.NotNil(t, rec.failureReason)
			assert.Equal(t, "Card declined", *rec.failureReason)
		}
		assert.ElementsMatch(t, []string{"res-1", "res-2"}, f.inventory.released)
		assert.Empty(t, f.payment.refunds)

		require.Len(t, f.notifier.events, 1)
		assert.Equal(t, "payment_failed", f.notifier.events[0].eventType)
		assert.Equal(t, "buyer@example.com", f.notifier.events[0].data["email"])
	})

	t.Run("failed stock confirmation refunds the charge", func(t *testing.T) {
		f := newSagaFixture()
		f.inventory.confirmErrAt = 2
		f.inventory.confirmErr = remote.Rejected("Reservation expired")

		_, err := f.commands.Checkout(ctx, twoLineRequest(), 42, "buyer@example.com", "")
		require.ErrorIs(t, err, commands.ErrStockConfirmFailed)

		assert.Equal(t, []string{"txn-1"}, f.payment.refunds)
		assert.ElementsMatch(t, []string{"res-1", "res-2"}, f.inventory.released)

		require.Len(t, f.uow.store.orders, 1)
		for _, rec := range f.uow.store.orders {
			assert.Equal(t, order.StatusFailed, rec.status)
			require.NotNil(t, rec.failureReason)
			assert.Contains(t, *rec.failureReason, "stock confirmation")
		}
	})

	t.Run("confirmed stock is never refunded by a late failure", func(t *testing.T) {
		f := newSagaFixture()
		f.uow.failStatus = order.StatusPaid

		_, err := f.commands.Checkout(ctx, twoLineRequest(), 42, "buyer@example.com", "")
		require.ErrorIs(t, err, commands.ErrDatabaseOperationFailed)

		// Charge captured and stock deducted; nothing may be unwound.
		assert.Equal(t, []string{"res-1", "res-2"}, f.inventory.confirmed)
		assert.Empty(t, f.payment.refunds)
		assert.Empty(t, f.inventory.released)
		assert.Empty(t, f.notifier.events)

		require.Len(t, f.uow.store.orders, 1)
		for _, rec := range f.uow.store.orders {
			assert.Equal(t, order.StatusProcessing, rec.status)
			assert.Nil(t, rec.failureReason)
		}
	})

	t.Run("notification failure never affects the order outcome", func(t *testing.T) {
		f := newSagaFixture()
		f.notifier.err = remote.Unreachable(errors.New("broker down"), "failed to publish")

		result, err := f.commands.Checkout(ctx, twoLineRequest(), 42, "buyer@example.com", "")
		require.NoError(t, err)
		assert.Equal(t, order.StatusPaid, result.Order.Status())
	})
}

func seedOrderWithItems(t *testing.T, store *memStore, userID int64, status order.Status, paymentID *string) int64 {
	t.Helper()
	item, err := order.NewItem("p1", "Coffee Beans", 2, decimal.RequireFromString("10.00"))
	require.NoError(t, err)
	item.AttachReservation("res-1")

	return store.seed(&orderRecord{
		userID:    userID,
		total:     decimal.RequireFromString("20.00"),
		status:    status,
		paymentID: paymentID,
		items:     []order.Item{item},
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown order", func(t *testing.T) {
		f := newSagaFixture()
		_, err := f.commands.Cancel(ctx, 999, 42, "buyer@example.com", "")
		require.ErrorIs(t, err, commands.ErrOrderNotFound)
	})

	t.Run("another user's order reads as not found", func(t *testing.T) {
		f := newSagaFixture()
		id := seedOrderWithItems(t, f.uow.store, 42, order.StatusReserved, nil)

		_, err := f.commands.Cancel(ctx, id, 7, "other@example.com", "")
		require.ErrorIs(t, err, commands.ErrOrderNotFound)
	})

	t.Run("status guards", func(t *testing.T) {
		cases := []struct {
			name   string
			status order.Status
			errIs  error
		}{
			{name: "already canceled", status: order.StatusCanceled, errIs: commands.ErrOrderAlreadyCanceled},
			{name: "already refunded", status: order.StatusRefunded, errIs: commands.ErrOrderAlreadyCanceled},
			{name: "shipped", status: order.StatusShipped, errIs: commands.ErrOrderNotCancelable},
			{name: "delivered", status: order.StatusDelivered, errIs: commands.ErrOrderNotCancelable},
			{name: "failed", status: order.StatusFailed, errIs: commands.ErrOrderNotCancelable},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				f := newSagaFixture()
				id := seedOrderWithItems(t, f.uow.store, 42, tc.status, nil)

				_, err := f.commands.Cancel(ctx, id, 42, "buyer@example.com", "")
				require.ErrorIs(t, err, tc.errIs)
				assert.Empty(t, f.payment.refunds)
			})
		}
	})

	t.Run("reserved order cancels and releases the hold", func(t *testing.T) {
		f := newSagaFixture()
		id := seedOrderWithItems(t, f.uow.store, 42, order.StatusReserved, nil)

		o, err := f.commands.Cancel(ctx, id, 42, "buyer@example.com", "changed my mind")
		require.NoError(t, err)

		assert.Equal(t, order.StatusCanceled, o.Status())
		assert.Equal(t, []string{"res-1"}, f.inventory.released)
		assert.Empty(t, f.payment.refunds)

		require.Len(t, f.notifier.events, 1)
		assert.Equal(t, "order_canceled", f.notifier.events[0].eventType)
		assert.Equal(t, "buyer@example.com", f.notifier.events[0].data["email"])
		assert.Equal(t, false, f.notifier.events[0].data["refunded"])
	})

	t.Run("paid order refunds before moving to REFUNDED", func(t *testing.T) {
		f := newSagaFixture()
		paymentID := "txn-9"
		id := seedOrderWithItems(t, f.uow.store, 42, order.StatusPaid, &paymentID)

		o, err := f.commands.Cancel(ctx, id, 42, "buyer@example.com", "")
		require.NoError(t, err)

		assert.Equal(t, order.StatusRefunded, o.Status())
		assert.Equal(t, []string{"txn-9"}, f.payment.refunds)

		require.Len(t, f.notifier.events, 1)
		assert.Equal(t, true, f.notifier.events[0].data["refunded"])
	})

	t.Run("failed refund leaves the order PAID", func(t *testing.T) {
		f := newSagaFixture()
		paymentID := "txn-9"
		id := seedOrderWithItems(t, f.uow.store, 42, order.StatusPaid, &paymentID)
		f.payment.refundErr = remote.Unreachable(errors.New("gateway down"), "request failed")

		_, err := f.commands.Cancel(ctx, id, 42, "buyer@example.com", "")
		require.ErrorIs(t, err, commands.ErrRefundFailed)

		assert.Equal(t, order.StatusPaid, f.uow.store.orders[id].status)
		assert.Empty(t, f.notifier.events)
	})
}
