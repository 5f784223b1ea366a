package remote

import (
	"context"
	"net/http"

	"order-service/internal/pkg/clock"
	"order-service/internal/pkg/config"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	IsActive      bool            `json:"isActive"`
	StockQuantity int32           `json:"stockQuantity"`
}

// InventoryClient talks to the product/inventory service. All calls go through
// a shared circuit breaker and a bounded retry policy.
type InventoryClient struct {
	hc     httpClient
	caller caller
}

func NewInventoryClient(cfg config.InventoryConfig, clk clock.Clock) *InventoryClient {
	retry := RetryPolicy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}
	return &InventoryClient{
		hc: httpClient{
			base: cfg.BaseURL,
			http: &http.Client{Timeout: cfg.Timeout},
		},
		caller: caller{
			name:    "inventory",
			breaker: NewCircuitBreaker("inventory", cfg.BreakerThreshold, cfg.BreakerRecovery, clk),
			retry:   retry,
		},
	}
}

// GetProduct returns nil without error when the product does not exist, so the
// caller can distinguish "unknown product" from a failed lookup.
func (c *InventoryClient) GetProduct(ctx context.Context, productID string) (*Product, error) {
	var product *Product
	err := c.caller.call(ctx, func() error {
		status, raw, reqErr := c.hc.do(ctx, http.MethodGet, "/api/products/"+productID+"/", nil)
		if reqErr != nil {
			return reqErr
		}
		switch {
		case status == http.StatusNotFound:
			product = nil
			return nil
		case status >= 400:
			return rejectionFromBody(raw, status)
		}

		var p Product
		if decErr := decodeInto(raw, c.hc.base, &p); decErr != nil {
			return decErr
		}
		product = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

type reserveStockRequest struct {
	ReservationID string `json:"reservation_id"`
	ProductID     string `json:"product_id"`
	Quantity      int32  `json:"quantity"`
	OrderID       int64  `json:"order_id,omitempty"`
}

type reserveStockResponse struct {
	ReservationID string `json:"reservation_id"`
}

// ReserveStock places a hold on stock and returns the reservation id. The id
// is generated here so a retried request lands on the same reservation instead
// of double-booking stock.
func (c *InventoryClient) ReserveStock(ctx context.Context, productID string, quantity int32, orderID int64) (string, error) {
	body := reserveStockRequest{
		ReservationID: uuid.NewString(),
		ProductID:     productID,
		Quantity:      quantity,
		OrderID:       orderID,
	}

	reservationID := body.ReservationID
	err := c.caller.call(ctx, func() error {
		status, raw, reqErr := c.hc.do(ctx, http.MethodPost, "/api/products/stock/reserve/", body)
		if reqErr != nil {
			return reqErr
		}
		if status >= 400 {
			return rejectionFromBody(raw, status)
		}

		var resp reserveStockResponse
		if decErr := decodeInto(raw, c.hc.base, &resp); decErr != nil {
			return decErr
		}
		if resp.ReservationID != "" {
			reservationID = resp.ReservationID
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return reservationID, nil
}

type releaseStockRequest struct {
	ReservationID string `json:"reservation_id"`
	Reason        string `json:"reason,omitempty"`
}

func (c *InventoryClient) ReleaseStock(ctx context.Context, reservationID, reason string) error {
	body := releaseStockRequest{ReservationID: reservationID, Reason: reason}
	return c.caller.call(ctx, func() error {
		status, raw, reqErr := c.hc.do(ctx, http.MethodPost, "/api/products/stock/release/", body)
		if reqErr != nil {
			return reqErr
		}
		if status >= 400 {
			return rejectionFromBody(raw, status)
		}
		return nil
	})
}

type confirmStockRequest struct {
	ReservationID string `json:"reservation_id"`
}

// ConfirmStock converts a reservation into a permanent stock deduction.
func (c *InventoryClient) ConfirmStock(ctx context.Context, reservationID string) error {
	body := confirmStockRequest{ReservationID: reservationID}
	return c.caller.call(ctx, func() error {
		status, raw, reqErr := c.hc.do(ctx, http.MethodPost, "/api/products/stock/confirm/", body)
		if reqErr != nil {
			return reqErr
		}
		if status >= 400 {
			return rejectionFromBody(raw, status)
		}
		return nil
	})
}
