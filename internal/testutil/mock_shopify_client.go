package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/linearclockworks/shopify-serial--webhook/internal/domain/order"
	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
	"github.com/linearclockworks/shopify-serial--webhook/internal/shopify"
)

// MockShopifyClient keeps orders, notes and line item metafields in memory
type MockShopifyClient struct {
	mu         sync.Mutex
	orders     map[int64]*order.Order
	metafields map[int64]map[string]string

	// WriteFailures makes the next n write calls fail with an upstream error
	WriteFailures int
	writes        int
}

var _ shopify.Client = (*MockShopifyClient)(nil)

func NewMockShopifyClient() *MockShopifyClient {
	return &MockShopifyClient{
		orders:     make(map[int64]*order.Order),
		metafields: make(map[int64]map[string]string),
	}
}

// AddOrder registers an order the client can return
func (m *MockShopifyClient) AddOrder(o *order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID] = &cp
}

func (m *MockShopifyClient) GetOrder(ctx context.Context, orderID int64) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, ierr.NewError("order not found").Mark(ierr.ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

func (m *MockShopifyClient) FindOrderByNumber(ctx context.Context, number string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	number = strings.TrimPrefix(strings.TrimSpace(number), "#")
	for _, o := range m.orders {
		if o.Number() == number {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ierr.NewErrorf("order %s not found", number).
		WithHintf("Order #%s was not found", number).
		Mark(ierr.ErrNotFound)
}

func (m *MockShopifyClient) write() error {
	m.writes++
	if m.WriteFailures > 0 {
		m.WriteFailures--
		return ierr.NewError("shopify returned 503").
			WithHint("Shopify API returned status 503").
			Mark(ierr.ErrUpstreamAPI)
	}
	return nil
}

func (m *MockShopifyClient) AppendOrderNote(ctx context.Context, orderID int64, line string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(); err != nil {
		return err
	}
	o, ok := m.orders[orderID]
	if !ok {
		return ierr.NewError("order not found").Mark(ierr.ErrNotFound)
	}
	for _, l := range strings.Split(o.Note, "\n") {
		if strings.TrimSpace(l) == line {
			return nil
		}
	}
	if o.Note == "" {
		o.Note = line
	} else {
		o.Note += "\n" + line
	}
	return nil
}

func (m *MockShopifyClient) SetLineItemSerials(ctx context.Context, orderID, lineItemID int64, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(); err != nil {
		return err
	}
	if m.metafields[orderID] == nil {
		m.metafields[orderID] = make(map[string]string)
	}
	m.metafields[orderID][shopify.MetafieldKey(lineItemID)] = value
	return nil
}

// Note returns the current note of an order
func (m *MockShopifyClient) Note(orderID int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[orderID]; ok {
		return o.Note
	}
	return ""
}

// Metafield returns the serials written for a line item
func (m *MockShopifyClient) Metafield(orderID, lineItemID int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metafields[orderID][shopify.MetafieldKey(lineItemID)]
}

// Writes returns how many write calls were attempted
func (m *MockShopifyClient) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
