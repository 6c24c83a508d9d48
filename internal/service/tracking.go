package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/linearclockworks/shopify-serial--webhook/internal/config"
	"github.com/linearclockworks/shopify-serial--webhook/internal/domain/order"
	"github.com/linearclockworks/shopify-serial--webhook/internal/domain/serial"
	"github.com/linearclockworks/shopify-serial--webhook/internal/domain/tracking"
	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
	"github.com/linearclockworks/shopify-serial--webhook/internal/idempotency"
	"github.com/linearclockworks/shopify-serial--webhook/internal/types"
	"github.com/sourcegraph/conc/pool"
)

// maxTrackingSends bounds concurrent deliveries for one order
const maxTrackingSends = 4

// IssuedUnit is one physical unit of an order together with its serial
type IssuedUnit struct {
	Item    order.LineItem
	Line    config.SerialLine
	Unit    int
	Record  *serial.Record
	Created bool
}

// TrackingService publishes manufacturing tracking rows for issued serials
type TrackingService interface {
	// PublishIssued sends one serial.issued event per unit, replayed units included, and
	// returns how many were accepted. The idempotency key is derived from (line, reference),
	// so Svix drops the repeats of an earlier delivery. Delivery is best effort and never
	// fails the caller.
	PublishIssued(ctx context.Context, o *order.Order, units []IssuedUnit) int
}

type trackingService struct {
	ServiceParams
}

func NewTrackingService(params ServiceParams) TrackingService {
	return &trackingService{
		ServiceParams: params,
	}
}

func (s *trackingService) PublishIssued(ctx context.Context, o *order.Order, units []IssuedUnit) int {
	if s.Tracking == nil {
		return 0
	}

	issued := make([]IssuedUnit, 0, len(units))
	for _, u := range units {
		if u.Record != nil {
			issued = append(issued, u)
		}
	}
	if len(issued) == 0 {
		return 0
	}

	results := make([]bool, len(issued))
	p := pool.New().WithErrors().WithMaxGoroutines(maxTrackingSends)
	for i, u := range issued {
		p.Go(func() error {
			if err := s.publish(ctx, o, u); err != nil {
				s.Logger.Warnw("failed to publish tracking event",
					"order_id", o.ID,
					"serial", u.Record.Number,
					"reference", u.Record.Reference,
					"error", err,
				)
				return err
			}
			results[i] = true
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		s.Sentry.AddBreadcrumb("tracking", "tracking delivery incomplete", map[string]interface{}{
			"order_id": o.ID,
			"error":    err.Error(),
		})
	}

	sent := 0
	for _, ok := range results {
		if ok {
			sent++
		}
	}
	s.Logger.Infow("published tracking events",
		"order_id", o.ID,
		"sent", sent,
		"total", len(issued),
	)
	return sent
}

func (s *trackingService) publish(ctx context.Context, o *order.Order, u IssuedUnit) error {
	row := BuildTrackingRow(o, u)
	payload, err := json.Marshal(row)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode tracking row").
			Mark(ierr.ErrSystem)
	}

	event := types.TrackingEvent{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TRACKING),
		EventName: types.TrackingEventSerialIssued,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	body, err := json.Marshal(event)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode tracking event").
			Mark(ierr.ErrSystem)
	}

	key := s.Idempotency.GenerateKey(idempotency.ScopeTrackingEvent, map[string]interface{}{
		"line":      u.Record.Line,
		"reference": u.Record.Reference,
	})
	return s.Tracking.SendMessage(ctx, types.TrackingEventSerialIssued, body, key)
}

// BuildTrackingRow converts an issued unit into the row manufacturing keeps per clock
func BuildTrackingRow(o *order.Order, u IssuedUnit) tracking.Row {
	name, description := u.Item.ProductName()
	return tracking.Row{
		Serial:       serial.Format{Prefix: u.Line.Prefix, Width: u.Line.Width}.Strip(u.Record.Number),
		Number:       u.Record.Number,
		Line:         u.Record.Line,
		ProductName:  name,
		Description:  description,
		SKU:          u.Item.SKU,
		OrderNumber:  o.Number(),
		CustomerName: o.CustomerName(),
		OrderDate:    o.Date().Format(tracking.DateLayout),
		Reference:    u.Record.Reference,
	}
}
