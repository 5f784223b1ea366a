package api

import (
	"errors"
	"net/http"
	"strconv"

	reqdto "order-service/internal/handler/dto/request"
	resdto "order-service/internal/handler/dto/response"
	"order-service/internal/handler/middleware"
	"order-service/internal/usecase/commands"
	"order-service/internal/usecase/queries"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	orderCommands commands.OrderCommands
	orderQueries  queries.OrderQueries
}

func NewOrderHandler(orderCommands commands.OrderCommands, orderQueries queries.OrderQueries) *OrderHandler {
	return &OrderHandler{
		orderCommands: orderCommands,
		orderQueries:  orderQueries,
	}
}

// @Summary Checkout
// @Description Create an order: reserve stock, charge payment, confirm stock
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Idempotency key; the body idempotency_key field takes precedence"
// @Param request body reqdto.CheckoutRequest true "Checkout request"
// @Success 200 {object} resdto.OrderResponse "Replayed from idempotency key"
// @Success 201 {object} resdto.OrderResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 402 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /orders [post]
func (h *OrderHandler) Checkout(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}

	var req reqdto.CheckoutRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return
	}

	idempotencyKey := c.GetHeader("Idempotency-Key")
	if req.IdempotencyKey != nil {
		idempotencyKey = *req.IdempotencyKey
	}
	if len(idempotencyKey) > 64 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Idempotency key too long",
		})
		return
	}

	userEmail, _ := middleware.GetUserEmail(c)

	result, err := h.orderCommands.Checkout(c.Request.Context(), req, userID, userEmail, idempotencyKey)
	if err != nil {
		switch {
		case errors.Is(err, commands.ErrProductNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Product not found",
			})
		case errors.Is(err, commands.ErrProductInactive):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Product is not available",
			})
		case errors.Is(err, commands.ErrInsufficientStock):
			c.JSON(http.StatusConflict, gin.H{
				"error": "Insufficient stock",
			})
		case errors.Is(err, commands.ErrPaymentFailed):
			c.JSON(http.StatusPaymentRequired, gin.H{
				"error": "Payment was declined",
			})
		case errors.Is(err, commands.ErrStockConfirmFailed):
			c.JSON(http.StatusConflict, gin.H{
				"error": "Order failed during stock confirmation, payment refunded",
			})
		case errors.Is(err, commands.ErrInventoryUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "Inventory service is unavailable",
			})
		case errors.Is(err, commands.ErrPaymentUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "Payment service is unavailable",
			})
		case errors.Is(err, commands.ErrDomainValidation):
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": "Order validation failed",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
		}
		return
	}

	status := http.StatusCreated
	if result.IsReplayed {
		status = http.StatusOK
	}
	c.JSON(status, resdto.FromOrder(result.Order))
}

// @Summary Get order
// @Description Get one of the current user's orders by ID
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param id path int true "Order ID"
// @Success 200 {object} resdto.OrderResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid order ID format",
		})
		return
	}

	o, err := h.orderQueries.GetByID(c.Request.Context(), orderID, userID)
	if err != nil {
		switch {
		case errors.Is(err, queries.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Order not found",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
		}
		return
	}

	c.JSON(http.StatusOK, resdto.FromOrder(o))
}

// @Summary List orders
// @Description List the current user's orders, newest first
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} resdto.OrderListResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}

	var q reqdto.ListOrdersQuery
	if bindErr := c.ShouldBindQuery(&q); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	list, err := h.orderQueries.List(c.Request.Context(), userID, q.Status, q.Page, q.PageSize)
	if err != nil {
		switch {
		case errors.Is(err, queries.ErrInvalidStatusFilter):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid status filter",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
		}
		return
	}

	c.JSON(http.StatusOK, resdto.FromOrderList(list))
}

// @Summary Cancel order
// @Description Cancel an order; paid orders are refunded first
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Order ID"
// @Param request body reqdto.CancelOrderRequest false "Cancel request"
// @Success 200 {object} resdto.OrderResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /orders/{id}/cancel [post]
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid order ID format",
		})
		return
	}

	var req reqdto.CancelOrderRequest
	if c.Request.ContentLength > 0 {
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request format",
			})
			return
		}
	}

	userEmail, _ := middleware.GetUserEmail(c)

	o, err := h.orderCommands.Cancel(c.Request.Context(), orderID, userID, userEmail, req.GetReason())
	if err != nil {
		switch {
		case errors.Is(err, commands.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Order not found",
			})
		case errors.Is(err, commands.ErrOrderAlreadyCanceled):
			c.JSON(http.StatusConflict, gin.H{
				"error": "Order is already canceled",
			})
		case errors.Is(err, commands.ErrOrderNotCancelable):
			c.JSON(http.StatusConflict, gin.H{
				"error": "Order can no longer be canceled",
			})
		case errors.Is(err, commands.ErrRefundFailed):
			c.JSON(http.StatusBadGateway, gin.H{
				"error": "Refund could not be processed",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
		}
		return
	}

	c.JSON(http.StatusOK, resdto.FromOrder(o))
}
