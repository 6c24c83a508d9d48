package tracking

import (
	"context"
	"encoding/json"
)

// DateLayout is the order date format manufacturing expects in the tracking sheet
const DateLayout = "2006-01-02 15:04:05"

// Row is one line of the manufacturing tracking log: one physical unit with its serial
type Row struct {
	Serial       string `json:"serial"`
	Number       string `json:"number"`
	Line         string `json:"line"`
	ProductName  string `json:"product_name"`
	Description  string `json:"description"`
	SKU          string `json:"sku"`
	OrderNumber  string `json:"order_number"`
	CustomerName string `json:"customer_name"`
	OrderDate    string `json:"order_date"`
	Reference    string `json:"reference"`
}

// Publisher delivers tracking events to downstream subscribers
type Publisher interface {
	SendMessage(ctx context.Context, eventType string, payload json.RawMessage, idempotencyKey string) error
}
