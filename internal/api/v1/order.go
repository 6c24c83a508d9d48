package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/linearclockworks/shopify-serial--webhook/internal/api/dto"
	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
	"github.com/linearclockworks/shopify-serial--webhook/internal/logger"
	"github.com/linearclockworks/shopify-serial--webhook/internal/service"
	"github.com/linearclockworks/shopify-serial--webhook/internal/validator"
)

const processOrderForm = `<!DOCTYPE html>
<html>
<head><title>Process Order</title></head>
<body>
<h1>Process Shopify Order</h1>
<form method="POST" action="/api/process-order">
<label for="order_number">Order number</label>
<input type="text" id="order_number" name="order_number" placeholder="1001" required>
<button type="submit">Process</button>
</form>
</body>
</html>`

type OrderHandler struct {
	service service.OrderService
	log     *logger.Logger
}

func NewOrderHandler(service service.OrderService, log *logger.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		log:     log,
	}
}

// ProcessOrderForm serves the manual processing form
func (h *OrderHandler) ProcessOrderForm(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(processOrderForm))
}

// ProcessOrder handles POST /api/process-order. It fetches an order by number and issues
// its serials the same way the webhook does.
func (h *OrderHandler) ProcessOrder(c *gin.Context) {
	var req dto.ProcessOrderRequest
	if err := c.ShouldBind(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}
	req.Normalize()
	if err := validator.ValidateRequest(&req); err != nil {
		c.Error(err)
		return
	}

	resp, err := h.service.ProcessOrderNumber(c.Request.Context(), req.OrderNumber)
	if err != nil {
		h.log.Errorw("failed to process order", "order_number", req.OrderNumber, "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetOrderSerials handles GET /api/orders/:order_id/serials
func (h *OrderHandler) GetOrderSerials(c *gin.Context) {
	orderID := c.Param("order_id")
	if orderID == "" {
		c.Error(ierr.NewError("order_id is required").
			WithHint("Order ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.GetOrderSerials(c.Request.Context(), orderID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
