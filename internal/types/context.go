package types

import (
	"context"
)

// ContextKey is a type for the keys of values stored in the context
type ContextKey string

const (
	CtxRequestID      ContextKey = "ctx_request_id"
	CtxWebhookID      ContextKey = "ctx_webhook_id"
	CtxRawRequestBody ContextKey = "ctx_raw_request_body"
)

const (
	HeaderRequestID = "X-Request-ID"

	// Shopify webhook headers
	HeaderShopifyHmac      = "X-Shopify-Hmac-Sha256"
	HeaderShopifyTopic     = "X-Shopify-Topic"
	HeaderShopifyShop      = "X-Shopify-Shop-Domain"
	HeaderShopifyWebhookID = "X-Shopify-Webhook-Id"

	// Shopify Admin API auth header
	HeaderShopifyAccessToken = "X-Shopify-Access-Token"
)

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(CtxRequestID).(string); ok {
		return requestID
	}
	return ""
}

func GetWebhookID(ctx context.Context) string {
	if webhookID, ok := ctx.Value(CtxWebhookID).(string); ok {
		return webhookID
	}
	return ""
}

// SetWebhookID sets the Shopify delivery ID in the context
func SetWebhookID(ctx context.Context, webhookID string) context.Context {
	return context.WithValue(ctx, CtxWebhookID, webhookID)
}
