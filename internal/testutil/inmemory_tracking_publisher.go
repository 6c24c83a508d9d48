package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/linearclockworks/shopify-serial--webhook/internal/domain/tracking"
	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
	"github.com/linearclockworks/shopify-serial--webhook/internal/types"
)

type PublishedMessage struct {
	EventType      string
	Payload        json.RawMessage
	IdempotencyKey string
}

// InMemoryTrackingPublisher records tracking messages instead of delivering them.
// Like Svix, a message whose idempotency key was already accepted is dropped.
type InMemoryTrackingPublisher struct {
	mu       sync.Mutex
	messages []PublishedMessage
	keys     map[string]struct{}
	attempts int
	Fail     bool
}

var _ tracking.Publisher = (*InMemoryTrackingPublisher)(nil)

func NewInMemoryTrackingPublisher() *InMemoryTrackingPublisher {
	return &InMemoryTrackingPublisher{keys: make(map[string]struct{})}
}

func (p *InMemoryTrackingPublisher) SendMessage(ctx context.Context, eventType string, payload json.RawMessage, idempotencyKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.Fail {
		return ierr.NewError("tracking endpoint unavailable").Mark(ierr.ErrUpstreamAPI)
	}
	if idempotencyKey != "" {
		if _, seen := p.keys[idempotencyKey]; seen {
			return nil
		}
		p.keys[idempotencyKey] = struct{}{}
	}
	p.messages = append(p.messages, PublishedMessage{
		EventType:      eventType,
		Payload:        append(json.RawMessage(nil), payload...),
		IdempotencyKey: idempotencyKey,
	})
	return nil
}

// Attempts counts every SendMessage call, duplicates and failures included
func (p *InMemoryTrackingPublisher) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// Messages returns the accepted messages
func (p *InMemoryTrackingPublisher) Messages() []PublishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PublishedMessage(nil), p.messages...)
}

// Rows decodes the tracking row carried by every published event
func (p *InMemoryTrackingPublisher) Rows() []tracking.Row {
	rows := make([]tracking.Row, 0)
	for _, m := range p.Messages() {
		var event types.TrackingEvent
		if err := json.Unmarshal(m.Payload, &event); err != nil {
			continue
		}
		var row tracking.Row
		if err := json.Unmarshal(event.Payload, &row); err == nil {
			rows = append(rows, row)
		}
	}
	return rows
}

// Clear drops every recorded message
func (p *InMemoryTrackingPublisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = nil
	p.keys = make(map[string]struct{})
	p.attempts = 0
}
