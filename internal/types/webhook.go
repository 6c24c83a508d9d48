package types

import (
	"encoding/json"
	"time"
)

// TrackingEvent represents an outbound tracking event to be delivered
type TrackingEvent struct {
	ID        string          `json:"id"`
	EventName string          `json:"event_name"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Tracking event names
const (
	TrackingEventSerialIssued = "serial.issued"
)

// Shopify webhook topics handled by the service
const (
	ShopifyTopicOrdersCreate = "orders/create"
	ShopifyTopicOrdersPaid   = "orders/paid"
)
