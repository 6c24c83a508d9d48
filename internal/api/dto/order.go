package dto

import (
	"strings"
	"time"

	"github.com/linearclockworks/shopify-serial--webhook/internal/domain/serial"
)

const StatusSuccess = "success"

// ProcessOrderRequest is the manual processing form or JSON body
type ProcessOrderRequest struct {
	OrderNumber string `json:"order_number" form:"order_number" validate:"required,max=32"`
}

// Normalize strips whitespace and a leading '#'
func (r *ProcessOrderRequest) Normalize() {
	r.OrderNumber = strings.TrimPrefix(strings.TrimSpace(r.OrderNumber), "#")
}

// ProcessOrderResponse lists the serials of an order grouped by product line.
// Every configured line is present, with an empty list when the order has none.
type ProcessOrderResponse struct {
	Status  string              `json:"status"`
	Order   string              `json:"order"`
	Serials map[string][]string `json:"serials"`
}

// Total returns the number of serials across all lines
func (r *ProcessOrderResponse) Total() int {
	n := 0
	for _, s := range r.Serials {
		n += len(s)
	}
	return n
}

type SerialRecordResponse struct {
	ID        string    `json:"id"`
	Line      string    `json:"line"`
	Reference string    `json:"reference"`
	Number    string    `json:"number"`
	Value     int64     `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

func NewSerialRecordResponse(r *serial.Record) *SerialRecordResponse {
	return &SerialRecordResponse{
		ID:        r.ID,
		Line:      r.Line,
		Reference: r.Reference,
		Number:    r.Number,
		Value:     r.Value,
		CreatedAt: r.CreatedAt,
	}
}

type ListSerialsResponse struct {
	OrderID string                  `json:"order_id"`
	Items   []*SerialRecordResponse `json:"items"`
}
