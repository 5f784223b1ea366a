package commands

import (
	"context"
	"log/slog"

	"order-service/internal/domain/order"
	reqdto "order-service/internal/handler/dto/request"
	"order-service/internal/infra"
	"order-service/internal/infra/remote"
	"order-service/internal/pkg/clock"
	"order-service/internal/pkg/errs"
	"order-service/internal/usecase/shared"
)

var (
	ErrProductNotFound         = errs.New("product not found")
	ErrProductInactive         = errs.New("product is not available")
	ErrInsufficientStock       = errs.New("insufficient stock")
	ErrInventoryUnavailable    = errs.New("inventory service unavailable")
	ErrPaymentFailed           = errs.New("payment failed")
	ErrPaymentUnavailable      = errs.New("payment service unavailable")
	ErrStockConfirmFailed      = errs.New("stock confirmation failed")
	ErrOrderNotFound           = errs.New("order not found")
	ErrOrderAlreadyCanceled    = errs.New("order already canceled")
	ErrOrderNotCancelable      = errs.New("order can no longer be canceled")
	ErrRefundFailed            = errs.New("refund failed")
	ErrDomainValidation        = errs.New("domain validation error")
	ErrIdempotencyCheckFailed  = errs.New("idempotency check failed")
	ErrDatabaseOperationFailed = errs.New("database operation failed")
)

// Event types understood by the notification consumer; every payload carries
// the recipient email.
const (
	eventPaymentSuccess = "payment_success"
	eventPaymentFailed  = "payment_failed"
	eventOrderCanceled  = "order_canceled"
)

type CheckoutResult struct {
	Order *order.Order
	// IsReplayed is true when the idempotency key matched an existing order and
	// no downstream call was made.
	IsReplayed bool
}

type OrderCommands interface {
	Checkout(ctx context.Context, req reqdto.CheckoutRequest, userID int64, userEmail, idempotencyKey string) (*CheckoutResult, error)
	Cancel(ctx context.Context, orderID, userID int64, userEmail, reason string) (*order.Order, error)
}

type orderUseCaseImpl struct {
	uow       shared.UnitOfWork
	inventory InventoryGateway
	payment   PaymentGateway
	notifier  NotificationPublisher
	clock     clock.Clock
}

func NewOrderUseCase(
	uow shared.UnitOfWork,
	inventory InventoryGateway,
	payment PaymentGateway,
	notifier NotificationPublisher,
	clock clock.Clock,
) OrderCommands {
	return &orderUseCaseImpl{
		uow:       uow,
		inventory: inventory,
		payment:   payment,
		notifier:  notifier,
		clock:     clock,
	}
}

// sagaState records which forward steps have completed so compensation can
// unwind exactly those and nothing else, from any prefix of the saga.
type sagaState struct {
	orderID              int64
	reservations         []reservationRef
	paymentTransactionID string
	stockConfirmed       bool
}

type reservationRef struct {
	productID     string
	reservationID string
}

// Checkout runs the order saga: validate products, reserve stock, persist the
// order, charge, confirm stock, mark paid. Any failure after the first
// reservation triggers compensation before the error is surfaced.
func (u *orderUseCaseImpl) Checkout(
	ctx context.Context,
	req reqdto.CheckoutRequest,
	userID int64,
	userEmail, idempotencyKey string,
) (*CheckoutResult, error) {
	if idempotencyKey != "" {
		existing, err := u.uow.Reads().ByIdempotencyKey(ctx, idempotencyKey)
		if err == nil {
			return &CheckoutResult{Order: existing, IsReplayed: true}, nil
		}
		if !infra.IsKind(err, infra.KindNotFound) {
			return nil, errs.Mark(err, ErrIdempotencyCheckFailed)
		}
	}

	items, err := u.validateProducts(ctx, req)
	if err != nil {
		// Nothing reserved yet, nothing to unwind.
		return nil, err
	}

	state := &sagaState{}

	if err := u.reserveItems(ctx, items, state); err != nil {
		u.compensate(ctx, state, remote.RejectionMessage(err))
		if remote.IsRejected(err) {
			return nil, errs.Mark(err, ErrInsufficientStock)
		}
		return nil, errs.Mark(err, ErrInventoryUnavailable)
	}

	orderEntity, err := u.persistOrder(ctx, userID, items, req.Notes, idempotencyKey)
	if err != nil {
		u.compensate(ctx, state, "order persistence failed")
		return nil, err
	}
	state.orderID = orderEntity.ID()

	if err := u.updateStatus(ctx, state.orderID, order.StatusProcessing, nil, nil); err != nil {
		u.compensate(ctx, state, "failed to start payment processing")
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}

	transactionID, err := u.payment.ProcessPayment(ctx, state.orderID, userID, orderEntity.TotalAmount())
	if err != nil {
		reason := remote.RejectionMessage(err)
		u.compensate(ctx, state, reason)
		u.publishEvent(ctx, eventPaymentFailed, map[string]any{
			"email":    userEmail,
			"order_id": state.orderID,
			"user_id":  userID,
			"amount":   orderEntity.TotalAmount().String(),
			"reason":   reason,
		})
		if remote.IsRejected(err) {
			return nil, errs.Mark(err, ErrPaymentFailed)
		}
		return nil, errs.Mark(err, ErrPaymentUnavailable)
	}
	state.paymentTransactionID = transactionID

	if err := u.confirmReservations(ctx, state); err != nil {
		// The charge is reverted by compensation because stockConfirmed is
		// still false at this point.
		reason := "stock confirmation failed: " + remote.RejectionMessage(err)
		u.compensate(ctx, state, reason)
		u.publishEvent(ctx, eventPaymentFailed, map[string]any{
			"email":    userEmail,
			"order_id": state.orderID,
			"user_id":  userID,
			"amount":   orderEntity.TotalAmount().String(),
			"reason":   reason,
		})
		return nil, errs.Mark(err, ErrStockConfirmFailed)
	}
	state.stockConfirmed = true

	if err := u.updateStatus(ctx, state.orderID, order.StatusPaid, &transactionID, nil); err != nil {
		// Charge captured and stock deducted; never unwind here, surface for ops.
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}

	u.publishEvent(ctx, eventPaymentSuccess, map[string]any{
		"email":          userEmail,
		"order_id":       state.orderID,
		"user_id":        userID,
		"amount":         orderEntity.TotalAmount().String(),
		"transaction_id": transactionID,
	})

	final, err := u.uow.Reads().ByID(ctx, state.orderID)
	if err != nil {
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	return &CheckoutResult{Order: final, IsReplayed: false}, nil
}

// Cancel handles a user-initiated cancellation. Paid orders require a
// successful refund before the status moves to REFUNDED.
func (u *orderUseCaseImpl) Cancel(ctx context.Context, orderID, userID int64, userEmail, reason string) (*order.Order, error) {
	if reason == "" {
		reason = "canceled by user"
	}

	o, err := u.uow.Reads().ByIDAndUser(ctx, orderID, userID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}

	switch {
	case o.Status().IsAlreadyCanceled():
		return nil, ErrOrderAlreadyCanceled
	case o.Status().IsFulfilled(), o.Status() == order.StatusFailed:
		return nil, ErrOrderNotCancelable
	}

	target := order.StatusCanceled
	if o.Status() == order.StatusPaid {
		paymentID := o.PaymentID()
		if paymentID == nil {
			return nil, errs.Mark(errs.New("paid order has no payment id"), ErrRefundFailed)
		}
		if _, err := u.payment.Refund(ctx, *paymentID, reason); err != nil {
			return nil, errs.Mark(err, ErrRefundFailed)
		}
		target = order.StatusRefunded
	}

	for _, item := range o.Items() {
		if rid := item.ReservationID(); rid != nil {
			if err := u.inventory.ReleaseStock(ctx, *rid, reason); err != nil {
				slog.Warn("cancel: failed to release reservation",
					"order_id", orderID,
					"reservation_id", *rid,
					"error", err.Error())
			}
		}
	}

	if err := u.updateStatus(ctx, orderID, target, nil, nil); err != nil {
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}

	u.publishEvent(ctx, eventOrderCanceled, map[string]any{
		"email":    userEmail,
		"order_id": orderID,
		"user_id":  userID,
		"reason":   reason,
		"refunded": target == order.StatusRefunded,
	})

	final, err := u.uow.Reads().ByID(ctx, orderID)
	if err != nil {
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	return final, nil
}

// validateProducts resolves every line against the inventory service and builds
// domain items with current name and price snapshots.
func (u *orderUseCaseImpl) validateProducts(ctx context.Context, req reqdto.CheckoutRequest) ([]order.Item, error) {
	items := make([]order.Item, 0, len(req.Items))
	for _, line := range req.Items {
		product, err := u.inventory.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, errs.Mark(err, ErrInventoryUnavailable)
		}
		if product == nil {
			return nil, errs.Mark(errs.Newf("product %s not found", line.ProductID), ErrProductNotFound)
		}
		if !product.IsActive {
			return nil, errs.Mark(errs.Newf("product %s is not available", line.ProductID), ErrProductInactive)
		}

		item, err := order.NewItem(line.ProductID, product.Name, line.Quantity, product.Price)
		if err != nil {
			return nil, errs.Mark(err, ErrDomainValidation)
		}
		items = append(items, item)
	}
	return items, nil
}

func (u *orderUseCaseImpl) reserveItems(ctx context.Context, items []order.Item, state *sagaState) error {
	for i := range items {
		reservationID, err := u.inventory.ReserveStock(ctx, items[i].ProductID(), items[i].Quantity(), 0)
		if err != nil {
			return err
		}
		items[i].AttachReservation(reservationID)
		state.reservations = append(state.reservations, reservationRef{
			productID:     items[i].ProductID(),
			reservationID: reservationID,
		})
	}
	return nil
}

// persistOrder writes the order and its items in one transaction; either the
// whole aggregate becomes visible or none of it does.
func (u *orderUseCaseImpl) persistOrder(
	ctx context.Context,
	userID int64,
	items []order.Item,
	notes *string,
	idempotencyKey string,
) (*order.Order, error) {
	var key *string
	if idempotencyKey != "" {
		key = &idempotencyKey
	}

	orderEntity, err := order.NewOrder(userID, items, notes, key)
	if err != nil {
		return nil, errs.Mark(err, ErrDomainValidation)
	}

	var orderID int64
	err = u.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		id, createErr := tx.Orders().Create(ctx, orderEntity)
		if createErr != nil {
			return createErr
		}
		for _, item := range orderEntity.Items() {
			if itemErr := tx.Orders().CreateItem(ctx, id, item); itemErr != nil {
				return itemErr
			}
		}
		orderID = id
		return nil
	})
	if err != nil {
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}

	persisted, err := u.uow.Reads().ByID(ctx, orderID)
	if err != nil {
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	return persisted, nil
}

func (u *orderUseCaseImpl) confirmReservations(ctx context.Context, state *sagaState) error {
	for _, res := range state.reservations {
		if err := u.inventory.ConfirmStock(ctx, res.reservationID); err != nil {
			return err
		}
	}
	return nil
}

func (u *orderUseCaseImpl) updateStatus(ctx context.Context, orderID int64, status order.Status, paymentID, failureReason *string) error {
	return u.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		return tx.Orders().UpdateStatus(ctx, orderID, status, paymentID, failureReason)
	})
}

// compensate unwinds completed saga steps. Every sub-step is independently
// attempted and logged; compensation itself never returns an error.
func (u *orderUseCaseImpl) compensate(ctx context.Context, state *sagaState, reason string) {
	if state.paymentTransactionID != "" && !state.stockConfirmed {
		if _, err := u.payment.Refund(ctx, state.paymentTransactionID, reason); err != nil {
			slog.Error("compensation: refund failed",
				"order_id", state.orderID,
				"transaction_id", state.paymentTransactionID,
				"error", err.Error())
		} else {
			slog.Info("compensation: payment refunded",
				"order_id", state.orderID,
				"transaction_id", state.paymentTransactionID)
		}
	}

	for _, res := range state.reservations {
		if err := u.inventory.ReleaseStock(ctx, res.reservationID, reason); err != nil {
			slog.Error("compensation: stock release failed",
				"order_id", state.orderID,
				"product_id", res.productID,
				"reservation_id", res.reservationID,
				"error", err.Error())
		}
	}

	if state.orderID != 0 {
		u.failOrder(ctx, state.orderID, reason)
	}
}

// failOrder forces the order to FAILED with the given reason, unless it already
// reached a terminal payment state.
func (u *orderUseCaseImpl) failOrder(ctx context.Context, orderID int64, reason string) {
	err := u.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		o, findErr := tx.Orders().FindByID(ctx, orderID)
		if findErr != nil {
			return findErr
		}
		if o.Status() == order.StatusPaid || o.Status() == order.StatusFailed {
			return nil
		}
		return tx.Orders().UpdateStatus(ctx, orderID, order.StatusFailed, nil, &reason)
	})
	if err != nil {
		slog.Error("compensation: failed to mark order as failed",
			"order_id", orderID,
			"error", err.Error())
	}
}

// publishEvent is fire-and-forget: notification problems never affect the
// order outcome.
func (u *orderUseCaseImpl) publishEvent(ctx context.Context, eventType string, data map[string]any) {
	if err := u.notifier.Publish(ctx, eventType, data); err != nil {
		slog.Warn("failed to publish notification event",
			"event_type", eventType,
			"error", err.Error())
	}
}
