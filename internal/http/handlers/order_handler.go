// Order and payment HTTP handlers.
//
// This file exposes the payment lifecycle endpoints:
//   - POST /orders                       (create order + payment intent)
//   - GET  /orders                       (list, paginated)
//   - GET  /orders/{id}                  (status + gated download URL)
//   - POST /payments/{method}/callback   (vendor notification)
//
// The callback endpoint always answers 200 with the vendor's own
// acknowledgement body, success and failure alike; vendors retry on
// anything else, and a processing failure is signaled inside the body.
package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fingermelody/ai-generation-codebuddy/internal/domain"
	"github.com/fingermelody/ai-generation-codebuddy/internal/http/middleware"
	"github.com/fingermelody/ai-generation-codebuddy/internal/providers/payment"
	"github.com/fingermelody/ai-generation-codebuddy/internal/services"
	"github.com/fingermelody/ai-generation-codebuddy/internal/utils"
)

// signatureHeader carries the vendor notification signature in sandbox
// deployments.
const signatureHeader = "X-Signature"

// OrderService defines the order lifecycle operations consumed by HTTP
// handlers.
type OrderService interface {
	// CreateOrder prices the resource, persists a pending order and returns
	// it with the vendor payment intent.
	CreateOrder(ctx context.Context, in services.CreateOrderInput) (*services.OrderWithIntent, error)
	// OrderStatus reads one order with lazy expiry and download gating.
	OrderStatus(ctx context.Context, orderID string) (*services.OrderView, error)
	// ListOrders returns one page of orders with the total count.
	ListOrders(ctx context.Context, limit, offset int) ([]domain.Order, int64, error)
	// HandleCallback processes one vendor notification and returns the
	// acknowledgement body to write back.
	HandleCallback(ctx context.Context, method string, body []byte, signature string) (payment.Ack, error)
}

// CreateOrderRequest is the JSON payload for creating an order.
type CreateOrderRequest struct {
	ResourceID string `json:"resource_id" binding:"required"`
	PayMethod  string `json:"pay_method" binding:"required"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListOrdersResponse wraps a page of orders and pagination information.
type ListOrdersResponse struct {
	Orders     []domain.Order `json:"orders"`
	Pagination Pagination     `json:"pagination"`
}

// clampPagination parses and bounds the page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// CreateOrder creates a payment order for a generated resource. Retries
// carrying the same Idempotency-Key get the original order back with 200
// instead of minting a new one.
func (h *Handlers) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "resource_id and pay_method are required")
		return
	}
	in := services.CreateOrderInput{
		ResourceID: req.ResourceID,
		PayMethod:  req.PayMethod,
		UserID:     userID(c),
	}
	if key, present := middleware.GetIdempotencyKey(c); present {
		in.IdempotencyKey = key
	}

	out, err := h.orderSvc.CreateOrder(c.Request.Context(), in)
	if err != nil {
		svcError(c, err)
		return
	}
	status := http.StatusCreated
	if out.Replayed {
		status = http.StatusOK
	}
	ok(c, status, out)
}

// ListOrders returns a page of orders, newest first.
func (h *Handlers) ListOrders(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.orderSvc.ListOrders(c.Request.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		svcError(c, err)
		return
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListOrdersResponse{
		Orders: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// OrderStatus returns one order. Pending orders past their deadline flip to
// expired on this read; paid orders resolve the download URL while the
// permission still grants one.
func (h *Handlers) OrderStatus(c *gin.Context) {
	view, err := h.orderSvc.OrderStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		svcError(c, err)
		return
	}
	ok(c, http.StatusOK, view)
}

// PaymentCallback ingests one asynchronous vendor notification. The
// response body is the vendor's acknowledgement format, not the API
// envelope; processing errors are logged and reflected only in that body.
func (h *Handlers) PaymentCallback(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}

	ack, err := h.orderSvc.HandleCallback(
		c.Request.Context(),
		c.Param("method"),
		body,
		c.GetHeader(signatureHeader),
	)
	if err != nil {
		middleware.LoggerFrom(c).Warn().
			Err(err).
			Str("method", c.Param("method")).
			Msg("payment callback rejected")
	}
	c.Data(http.StatusOK, ack.ContentType, []byte(ack.Body))
}
