package shopify

import "github.com/linearclockworks/shopify-serial--webhook/internal/domain/order"

const (
	MetafieldNamespace = "linear_clockworks"
	MetafieldType      = "single_line_text_field"
)

type orderEnvelope struct {
	Order order.Order `json:"order"`
}

type ordersEnvelope struct {
	Orders []order.Order `json:"orders"`
}

type noteUpdate struct {
	Order struct {
		ID   int64  `json:"id"`
		Note string `json:"note"`
	} `json:"order"`
}

type Metafield struct {
	ID        int64  `json:"id,omitempty"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type,omitempty"`
	Value     string `json:"value"`
}

type metafieldEnvelope struct {
	Metafield Metafield `json:"metafield"`
}

type metafieldsEnvelope struct {
	Metafields []Metafield `json:"metafields"`
}
