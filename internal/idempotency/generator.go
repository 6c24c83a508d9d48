package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Scope represents the scope of idempotency
type Scope string

const (
	// ScopeShopifyOrder prefixes the per-unit order references derived from Shopify orders
	ScopeShopifyOrder Scope = "shopify"

	// ScopeTrackingEvent keys outbound tracking messages so redelivery is deduplicated downstream
	ScopeTrackingEvent Scope = "tracking_event"
)

const orderReferencePrefix = string(ScopeShopifyOrder) + ":order:"

// Generator generates order references and idempotency keys
type Generator struct{}

// NewGenerator creates a new idempotency key generator
func NewGenerator() *Generator {
	return &Generator{}
}

// UnitReference returns the order reference of one physical unit of a line item.
// unit is 1-based within the line item's quantity.
func (g *Generator) UnitReference(orderID, lineItemID int64, unit int) string {
	return fmt.Sprintf("%s%d:line:%d:unit:%d", orderReferencePrefix, orderID, lineItemID, unit)
}

// OrderID extracts the Shopify order id from a reference built by UnitReference.
// An empty string is returned for references following any other scheme.
func (g *Generator) OrderID(reference string) string {
	rest, ok := strings.CutPrefix(reference, orderReferencePrefix)
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, ":")
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return ""
	}
	return id
}

// GenerateKey generates an idempotency key from a scope and parameters
func (g *Generator) GenerateKey(scope Scope, params map[string]interface{}) string {
	// Sort params for consistent hashing
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(scope))
	for _, k := range keys {
		b.WriteString(fmt.Sprintf(":%s=%v", k, params[k]))
	}

	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s-%s", scope, hex.EncodeToString(hash[:8]))
}
