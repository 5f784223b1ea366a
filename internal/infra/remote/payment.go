package remote

import (
	"context"
	"net/http"

	"order-service/internal/pkg/clock"
	"order-service/internal/pkg/config"

	"github.com/shopspring/decimal"
)

// PaymentClient talks to the payment service. Charges are the most expensive
// step of checkout, so its breaker trips earlier than the inventory one.
type PaymentClient struct {
	hc     httpClient
	caller caller
}

func NewPaymentClient(cfg config.PaymentConfig, clk clock.Clock) *PaymentClient {
	return &PaymentClient{
		hc: httpClient{
			base: cfg.BaseURL,
			http: &http.Client{Timeout: cfg.Timeout},
		},
		caller: caller{
			name:    "payment",
			breaker: NewCircuitBreaker("payment", cfg.BreakerThreshold, cfg.BreakerRecovery, clk),
			retry: RetryPolicy{
				MaxAttempts: cfg.RetryMaxAttempts,
				BaseDelay:   cfg.RetryBaseDelay,
				MaxDelay:    cfg.RetryMaxDelay,
			},
		},
	}
}

type processPaymentRequest struct {
	OrderID int64  `json:"order_id"`
	UserID  int64  `json:"user_id"`
	Amount  string `json:"amount"`
}

type processPaymentResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

// ProcessPayment charges the user and returns the transaction id. A declined
// charge comes back as a rejection carrying the gateway's message.
func (c *PaymentClient) ProcessPayment(ctx context.Context, orderID, userID int64, amount decimal.Decimal) (string, error) {
	body := processPaymentRequest{
		OrderID: orderID,
		UserID:  userID,
		Amount:  amount.String(),
	}

	var transactionID string
	err := c.caller.call(ctx, func() error {
		status, raw, reqErr := c.hc.do(ctx, http.MethodPost, "/api/payments/process/", body)
		if reqErr != nil {
			return reqErr
		}
		if status >= 400 {
			return rejectionFromBody(raw, status)
		}

		var resp processPaymentResponse
		if decErr := decodeInto(raw, c.hc.base, &resp); decErr != nil {
			return decErr
		}
		if resp.Status != "success" {
			msg := resp.Message
			if msg == "" {
				msg = "payment declined"
			}
			return Rejected(msg)
		}
		transactionID = resp.TransactionID
		return nil
	})
	if err != nil {
		return "", err
	}
	return transactionID, nil
}

type refundRequest struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason,omitempty"`
}

type refundResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

// Refund reverses a previously successful charge and returns the refund
// transaction id.
func (c *PaymentClient) Refund(ctx context.Context, transactionID, reason string) (string, error) {
	body := refundRequest{TransactionID: transactionID, Reason: reason}

	var refundID string
	err := c.caller.call(ctx, func() error {
		status, raw, reqErr := c.hc.do(ctx, http.MethodPost, "/api/payments/refund/", body)
		if reqErr != nil {
			return reqErr
		}
		if status >= 400 {
			return rejectionFromBody(raw, status)
		}

		var resp refundResponse
		if decErr := decodeInto(raw, c.hc.base, &resp); decErr != nil {
			return decErr
		}
		if resp.Status != "" && resp.Status != "success" {
			msg := resp.Message
			if msg == "" {
				msg = "refund declined"
			}
			return Rejected(msg)
		}
		refundID = resp.TransactionID
		return nil
	})
	if err != nil {
		return "", err
	}
	return refundID, nil
}
