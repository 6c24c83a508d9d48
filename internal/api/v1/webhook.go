package v1

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/linearclockworks/shopify-serial--webhook/internal/domain/order"
	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
	"github.com/linearclockworks/shopify-serial--webhook/internal/logger"
	"github.com/linearclockworks/shopify-serial--webhook/internal/rest/middleware"
	"github.com/linearclockworks/shopify-serial--webhook/internal/service"
	"github.com/linearclockworks/shopify-serial--webhook/internal/types"
)

// WebhookHandler receives Shopify order webhooks. Signature verification happens in
// middleware.ShopifyWebhookMiddleware, so every request reaching it is authentic.
type WebhookHandler struct {
	orderService service.OrderService
	logger       *logger.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(orderService service.OrderService, logger *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// Status handles GET /api/webhook so the endpoint can be checked from a browser
func (h *WebhookHandler) Status(c *gin.Context) {
	c.String(http.StatusOK, "Webhook handler is running")
}

// HandleOrderWebhook handles POST /api/webhook. It issues one serial per clock sold and
// writes the serials back to the order. Responses: 200 with dto.ProcessOrderResponse,
// 400 for a malformed payload or missing order id, 502 when the Shopify write-back
// failed and 503 when serial storage is unavailable.
func (h *WebhookHandler) HandleOrderWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	body, ok := middleware.RawBody(ctx)
	if !ok {
		c.Error(ierr.NewError("webhook body missing from context").
			WithHint("Webhook body could not be read").
			Mark(ierr.ErrSystem))
		return
	}

	topic := c.GetHeader(types.HeaderShopifyTopic)
	if topic != "" && topic != types.ShopifyTopicOrdersCreate && topic != types.ShopifyTopicOrdersPaid {
		h.logger.Infow("ignoring webhook topic", "topic", topic)
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "topic": topic})
		return
	}

	var o order.Order
	if err := json.Unmarshal(body, &o); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid order payload").
			Mark(ierr.ErrValidation))
		return
	}
	if o.ID == 0 {
		c.Error(ierr.NewError("order id missing from webhook payload").
			WithHint("Order id is required").
			Mark(ierr.ErrInvalidOrderReference))
		return
	}

	h.logger.Infow("received order webhook",
		"order_id", o.ID,
		"order", o.DisplayName(),
		"topic", topic,
		"webhook_id", types.GetWebhookID(ctx),
		"line_items", len(o.LineItems),
	)

	resp, err := h.orderService.ProcessOrder(ctx, &o)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
