package middleware

import (
	"bytes"
	"context"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/linearclockworks/shopify-serial--webhook/internal/config"
	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
	"github.com/linearclockworks/shopify-serial--webhook/internal/logger"
	"github.com/linearclockworks/shopify-serial--webhook/internal/shopify"
	"github.com/linearclockworks/shopify-serial--webhook/internal/types"
)

// MaxWebhookBodyBytes caps the body read for signature verification
const MaxWebhookBodyBytes = 5 << 20

// ShopifyWebhookMiddleware verifies X-Shopify-Hmac-Sha256 against the raw request body.
// Unsigned or mis-signed requests are rejected with 401 before any handler runs.
// The verified body is stored in the request context under types.CtxRawRequestBody.
func ShopifyWebhookMiddleware(cfg *config.Configuration, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxWebhookBodyBytes+1))
		if err != nil {
			c.Error(ierr.WithError(err).
				WithHint("Failed to read request body").
				Mark(ierr.ErrValidation))
			c.Abort()
			return
		}
		if len(body) > MaxWebhookBodyBytes {
			c.Error(ierr.NewError("webhook body too large").
				WithHint("Request body is too large").
				Mark(ierr.ErrValidation))
			c.Abort()
			return
		}

		signature := c.GetHeader(types.HeaderShopifyHmac)
		if !shopify.VerifyWebhookSignature(cfg.Shopify.APISecret, body, signature) {
			log.Warnw("rejected webhook with invalid signature",
				"topic", c.GetHeader(types.HeaderShopifyTopic),
				"shop", c.GetHeader(types.HeaderShopifyShop),
				"signed", signature != "",
				"request_id", types.GetRequestID(c.Request.Context()),
			)
			c.Error(ierr.NewError("webhook signature mismatch").
				WithHint("Invalid webhook signature").
				Mark(ierr.ErrUnauthorized))
			c.Abort()
			return
		}

		ctx := context.WithValue(c.Request.Context(), types.CtxRawRequestBody, body)
		c.Request = c.Request.WithContext(ctx)
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}

// RawBody returns the verified webhook body stored by ShopifyWebhookMiddleware
func RawBody(ctx context.Context) ([]byte, bool) {
	body, ok := ctx.Value(types.CtxRawRequestBody).([]byte)
	return body, ok
}
