package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/linearclockworks/shopify-serial--webhook/internal/api/dto"
	"github.com/linearclockworks/shopify-serial--webhook/internal/domain/order"
	"github.com/linearclockworks/shopify-serial--webhook/internal/domain/serial"
	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
	"github.com/samber/lo"
)

const (
	defaultWriteBackInterval   = 500 * time.Millisecond
	defaultWriteBackMaxElapsed = 10 * time.Second
)

// OrderService turns a Shopify order into issued serials and writes them back to the order
type OrderService interface {
	// ProcessOrder issues one serial per unit of every serialized line item. Replaying the same
	// order returns the same serials and only repeats the Shopify write-back.
	ProcessOrder(ctx context.Context, o *order.Order) (*dto.ProcessOrderResponse, error)

	// ProcessOrderNumber fetches an order by its display number and processes it
	ProcessOrderNumber(ctx context.Context, number string) (*dto.ProcessOrderResponse, error)

	// GetOrderSerials lists the records already issued for an order
	GetOrderSerials(ctx context.Context, orderID string) (*dto.ListSerialsResponse, error)
}

type orderService struct {
	ServiceParams
	serials  SerialService
	tracking TrackingService
}

func NewOrderService(params ServiceParams, serials SerialService, tracking TrackingService) OrderService {
	return &orderService{
		ServiceParams: params,
		serials:       serials,
		tracking:      tracking,
	}
}

func (s *orderService) ProcessOrder(ctx context.Context, o *order.Order) (*dto.ProcessOrderResponse, error) {
	if o == nil || o.ID == 0 {
		return nil, ierr.NewError("order id is missing").
			WithHint("The order payload has no id").
			Mark(ierr.ErrInvalidOrderReference)
	}

	log := s.Logger.With("order_id", o.ID, "order", o.DisplayName())

	units, err := s.issueUnits(ctx, o)
	if err != nil {
		return nil, err
	}

	created := lo.CountBy(units, func(u IssuedUnit) bool { return u.Created })
	log.Infow("issued serials for order",
		"units", len(units),
		"created", created,
		"replayed", len(units)-created,
	)

	// Replayed units are published too: an earlier delivery may have stored them and
	// failed before tracking ran.
	if len(units) > 0 && s.tracking != nil {
		s.tracking.PublishIssued(ctx, o, units)
	}

	resp := s.buildResponse(o, units)
	if len(units) == 0 {
		return resp, nil
	}

	if err := s.writeBack(ctx, o, units); err != nil {
		log.Errorw("failed to write serials back to shopify", "error", err)
		s.Sentry.CaptureException(err)
		// a new error so the response is always 502, whatever Shopify answered
		return nil, ierr.NewErrorf("shopify write-back failed: %v", err).
			WithHint("Serials were issued but could not be saved to the Shopify order").
			WithReportableDetails(map[string]any{
				"order":   o.DisplayName(),
				"serials": resp.Serials,
			}).
			Mark(ierr.ErrUpstreamAPI)
	}

	return resp, nil
}

// issueUnits issues serials in line item order, one per unit, so an order's numbers stay contiguous
// when nothing else is issuing concurrently
func (s *orderService) issueUnits(ctx context.Context, o *order.Order) ([]IssuedUnit, error) {
	units := make([]IssuedUnit, 0)
	for _, item := range o.LineItems {
		if item.Skipped() {
			s.Logger.Debugw("skipping manually handled line item", "order_id", o.ID, "title", item.Title)
			continue
		}
		line, ok := s.Config.Serial.LineForSKU(item.SKU)
		if !ok {
			continue
		}
		if item.Quantity < 1 {
			s.Logger.Warnw("skipping line item with invalid quantity",
				"order_id", o.ID,
				"line_item_id", item.ID,
				"sku", item.SKU,
				"quantity", item.Quantity,
			)
			continue
		}

		for unit := 1; unit <= item.Quantity; unit++ {
			ref := s.Idempotency.UnitReference(o.ID, item.ID, unit)
			result, err := s.serials.IssueWithResult(ctx, line.Name, ref)
			if err != nil {
				return nil, err
			}
			units = append(units, IssuedUnit{
				Item:    item,
				Line:    line,
				Unit:    unit,
				Record:  result.Record,
				Created: result.Created,
			})
		}
	}
	return units, nil
}

func (s *orderService) buildResponse(o *order.Order, units []IssuedUnit) *dto.ProcessOrderResponse {
	serials := make(map[string][]string, len(s.Config.Serial.Lines))
	for _, l := range s.Config.Serial.Lines {
		serials[l.Name] = []string{}
	}
	for _, u := range units {
		serials[u.Line.Name] = append(serials[u.Line.Name], u.Record.Number)
	}
	return &dto.ProcessOrderResponse{
		Status:  dto.StatusSuccess,
		Order:   o.DisplayName(),
		Serials: serials,
	}
}

// writeBack stores the serials on the order: a metafield per line item and one note
// line per product line. Every step is idempotent, so the whole sequence is retried.
func (s *orderService) writeBack(ctx context.Context, o *order.Order, units []IssuedUnit) error {
	type itemSerials struct {
		lineItemID int64
		numbers    []string
	}

	items := make([]itemSerials, 0)
	index := make(map[int64]int)
	for _, u := range units {
		i, ok := index[u.Item.ID]
		if !ok {
			i = len(items)
			index[u.Item.ID] = i
			items = append(items, itemSerials{lineItemID: u.Item.ID})
		}
		items[i].numbers = append(items[i].numbers, u.Record.Number)
	}

	notes := make([]string, 0, len(s.Config.Serial.Lines))
	for _, l := range s.Config.Serial.Lines {
		numbers := lo.FilterMap(units, func(u IssuedUnit, _ int) (string, bool) {
			return u.Record.Number, u.Line.Name == l.Name
		})
		if len(numbers) > 0 {
			notes = append(notes, fmt.Sprintf("%s: %s", l.Label(), strings.Join(numbers, ", ")))
		}
	}

	operation := func() error {
		for _, item := range items {
			if err := s.Shopify.SetLineItemSerials(ctx, o.ID, item.lineItemID, strings.Join(item.numbers, ", ")); err != nil {
				return permanentUnlessRetryable(err)
			}
		}
		for _, note := range notes {
			if err := s.Shopify.AppendOrderNote(ctx, o.ID, note); err != nil {
				return permanentUnlessRetryable(err)
			}
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		s.Logger.Warnw("shopify write-back failed, retrying",
			"order_id", o.ID,
			"retry_in", wait,
			"error", err,
		)
	}

	return backoff.RetryNotify(operation, backoff.WithContext(s.writeBackPolicy(), ctx), notify)
}

func (s *orderService) writeBackPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.Config.WriteBack.InitialInterval
	if b.InitialInterval <= 0 {
		b.InitialInterval = defaultWriteBackInterval
	}
	b.MaxElapsedTime = s.Config.WriteBack.MaxElapsed
	if b.MaxElapsedTime <= 0 {
		b.MaxElapsedTime = defaultWriteBackMaxElapsed
	}
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.Reset()
	return b
}

func permanentUnlessRetryable(err error) error {
	if ierr.IsRetryable(err) {
		return err
	}
	return backoff.Permanent(err)
}

func (s *orderService) ProcessOrderNumber(ctx context.Context, number string) (*dto.ProcessOrderResponse, error) {
	req := dto.ProcessOrderRequest{OrderNumber: number}
	req.Normalize()
	if req.OrderNumber == "" {
		return nil, ierr.NewError("order number is required").
			WithHint("Please provide an order number").
			Mark(ierr.ErrValidation)
	}

	o, err := s.Shopify.FindOrderByNumber(ctx, req.OrderNumber)
	if err != nil {
		return nil, err
	}
	return s.ProcessOrder(ctx, o)
}

func (s *orderService) GetOrderSerials(ctx context.Context, orderID string) (*dto.ListSerialsResponse, error) {
	records, err := s.serials.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &dto.ListSerialsResponse{
		OrderID: orderID,
		Items:   lo.Map(records, func(r *serial.Record, _ int) *dto.SerialRecordResponse { return dto.NewSerialRecordResponse(r) }),
	}, nil
}
