package queries

import (
	"context"

	"order-service/internal/domain/order"
	"order-service/internal/infra"
	"order-service/internal/pkg/errs"
	"order-service/internal/usecase/shared"
)

var (
	ErrOrderNotFound       = errs.New("order not found")
	ErrInvalidStatusFilter = errs.New("invalid status filter")
	ErrQueryFailed         = errs.New("order query failed")
)

type OrderList struct {
	Orders   []*order.Order
	Total    int64
	Page     int
	PageSize int
}

type OrderQueries interface {
	// GetByID is scoped to the requesting user; other users' orders read as not found.
	GetByID(ctx context.Context, orderID, userID int64) (*order.Order, error)
	List(ctx context.Context, userID int64, statusFilter *string, page, pageSize int) (*OrderList, error)
}

type orderQueriesImpl struct {
	reads shared.OrderReads
}

func NewOrderQueries(uow shared.UnitOfWork) OrderQueries {
	return &orderQueriesImpl{reads: uow.Reads()}
}

func (q *orderQueriesImpl) GetByID(ctx context.Context, orderID, userID int64) (*order.Order, error) {
	o, err := q.reads.ByIDAndUser(ctx, orderID, userID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, errs.Mark(err, ErrQueryFailed)
	}
	return o, nil
}

func (q *orderQueriesImpl) List(ctx context.Context, userID int64, statusFilter *string, page, pageSize int) (*OrderList, error) {
	var status *order.Status
	if statusFilter != nil && *statusFilter != "" {
		s := order.Status(*statusFilter)
		if !s.IsValid() {
			return nil, ErrInvalidStatusFilter
		}
		status = &s
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	orders, total, err := q.reads.ListByUser(ctx, userID, status, page, pageSize)
	if err != nil {
		return nil, errs.Mark(err, ErrQueryFailed)
	}

	return &OrderList{
		Orders:   orders,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}
