package order

import (
	"strconv"
	"strings"
	"time"
)

// Order is the subset of the Shopify order payload the service reads
type Order struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	OrderNumber int64      `json:"order_number"`
	Note        string     `json:"note"`
	CreatedAt   string     `json:"created_at"`
	Customer    *Customer  `json:"customer"`
	LineItems   []LineItem `json:"line_items"`
}

type Customer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type LineItem struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	ProductID int64  `json:"product_id"`
}

// IDString returns the order id as it appears in order references
func (o *Order) IDString() string {
	return strconv.FormatInt(o.ID, 10)
}

// DisplayName returns the Shopify order name, falling back to #<order_number>
func (o *Order) DisplayName() string {
	if o.Name != "" {
		return o.Name
	}
	if o.OrderNumber != 0 {
		return "#" + strconv.FormatInt(o.OrderNumber, 10)
	}
	return o.IDString()
}

// Number returns the order name without the leading '#'
func (o *Order) Number() string {
	return strings.TrimPrefix(o.DisplayName(), "#")
}

func (o *Order) CustomerName() string {
	if o.Customer == nil {
		return ""
	}
	return strings.TrimSpace(o.Customer.FirstName + " " + o.Customer.LastName)
}

// Date returns the order creation time, or now when Shopify omitted or mangled it
func (o *Order) Date() time.Time {
	if t, err := time.Parse(time.RFC3339, o.CreatedAt); err == nil {
		return t
	}
	return time.Now().UTC()
}

// Skipped reports whether the line item is handled manually and must not get serials
func (li LineItem) Skipped() bool {
	return strings.HasPrefix(li.Title, "--")
}

// ProductName splits the title "Name: description" on the first colon
func (li LineItem) ProductName() (name, description string) {
	name, description, _ = strings.Cut(li.Title, ":")
	return strings.TrimSpace(name), strings.TrimSpace(description)
}
