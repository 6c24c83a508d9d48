package service

import (
	"context"
	"time"

	"github.com/linearclockworks/shopify-serial--webhook/internal/cache"
	"github.com/linearclockworks/shopify-serial--webhook/internal/config"
	"github.com/linearclockworks/shopify-serial--webhook/internal/domain/serial"
	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
	"github.com/linearclockworks/shopify-serial--webhook/internal/types"
)

// SerialService issues serial numbers. Issue is idempotent per (line, order reference):
// every call for the same pair returns the same record, however many callers race.
type SerialService interface {
	// Issue returns the record for the reference, creating it on first use
	Issue(ctx context.Context, line, reference string) (*serial.Record, error)

	// IssueWithResult is Issue that also reports whether this call created the record
	IssueWithResult(ctx context.Context, line, reference string) (*IssueResult, error)

	// Lookup returns an existing record without ever reserving a value
	Lookup(ctx context.Context, line, reference string) (*serial.Record, error)

	// ListByOrder returns every record issued for a Shopify order
	ListByOrder(ctx context.Context, orderID string) ([]*serial.Record, error)
}

// IssueResult is the outcome of one Issue call
type IssueResult struct {
	Record  *serial.Record
	Created bool
}

type serialService struct {
	ServiceParams
}

func NewSerialService(params ServiceParams) SerialService {
	return &serialService{
		ServiceParams: params,
	}
}

func (s *serialService) Issue(ctx context.Context, line, reference string) (*serial.Record, error) {
	result, err := s.IssueWithResult(ctx, line, reference)
	if err != nil {
		return nil, err
	}
	return result.Record, nil
}

func (s *serialService) IssueWithResult(ctx context.Context, lineName, reference string) (*IssueResult, error) {
	if err := serial.ValidateReference(reference); err != nil {
		return nil, err
	}
	line, err := s.resolveLine(lineName)
	if err != nil {
		return nil, err
	}

	existing, err := s.find(ctx, line.Name, reference)
	if err == nil {
		return &IssueResult{Record: existing}, nil
	}
	if !ierr.IsNotFound(err) {
		return nil, s.storageFailure(err, "get", line.Name, reference)
	}

	// The reserved value is lost if anything below fails; gaps are allowed, duplicates are not
	value, err := s.SerialRepo.NextValue(ctx, line.Counter, line.Start)
	if err != nil {
		return nil, s.storageFailure(err, "next_value", line.Name, reference)
	}

	rec := &serial.Record{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SERIAL_RECORD),
		Line:      line.Name,
		Reference: reference,
		OrderID:   s.Idempotency.OrderID(reference),
		Value:     value,
		Number:    serial.Format{Prefix: line.Prefix, Width: line.Width}.Render(value),
		CreatedAt: time.Now().UTC(),
	}

	err = s.SerialRepo.CreateIfAbsent(ctx, rec)
	switch {
	case err == nil:
		s.Logger.Infow("issued serial",
			"line", rec.Line,
			"reference", rec.Reference,
			"serial", rec.Number,
			"value", rec.Value,
			"request_id", types.GetRequestID(ctx),
		)
		s.cacheRecord(ctx, rec)
		return &IssueResult{Record: rec, Created: true}, nil

	case ierr.IsAlreadyExists(err):
		s.Logger.Debugw("concurrent issue won the race, discarding reserved value",
			"line", line.Name,
			"reference", reference,
			"discarded_value", value,
		)
		winner, err := s.SerialRepo.Get(ctx, line.Name, reference)
		if err != nil {
			if ierr.IsNotFound(err) {
				// insert-only stores cannot lose a record they just refused to overwrite
				err = ierr.WithError(err).
					WithHint("Serial storage returned an inconsistent read, please retry").
					Mark(ierr.ErrStorageUnavailable)
			}
			return nil, s.storageFailure(err, "get", line.Name, reference)
		}
		s.cacheRecord(ctx, winner)
		return &IssueResult{Record: winner}, nil

	default:
		return nil, s.storageFailure(err, "create_if_absent", line.Name, reference)
	}
}

func (s *serialService) Lookup(ctx context.Context, lineName, reference string) (*serial.Record, error) {
	if err := serial.ValidateReference(reference); err != nil {
		return nil, err
	}
	line, err := s.resolveLine(lineName)
	if err != nil {
		return nil, err
	}
	rec, err := s.find(ctx, line.Name, reference)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, s.storageFailure(err, "get", line.Name, reference)
	}
	return rec, err
}

func (s *serialService) ListByOrder(ctx context.Context, orderID string) ([]*serial.Record, error) {
	if orderID == "" {
		return nil, ierr.NewError("order id is required").
			WithHint("Please provide an order id").
			Mark(ierr.ErrValidation)
	}
	records, err := s.SerialRepo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, s.storageFailure(err, "list_by_order", "", orderID)
	}
	return records, nil
}

func (s *serialService) resolveLine(name string) (config.SerialLine, error) {
	line, ok := s.Config.Serial.Line(name)
	if !ok {
		return config.SerialLine{}, ierr.NewErrorf("unknown serial line %q", name).
			WithHintf("Serial line %s is not configured", name).
			WithReportableDetails(map[string]any{
				"line": name,
			}).
			Mark(ierr.ErrValidation)
	}
	return line, nil
}

// find reads through the cache. Records never change once written, so a cached
// record can never be stale.
func (s *serialService) find(ctx context.Context, line, reference string) (*serial.Record, error) {
	key := cache.GenerateKey(cache.PrefixSerialRecord, line, reference)
	if s.Cache != nil {
		if v, ok := s.Cache.Get(ctx, key); ok {
			if rec, ok := v.(*serial.Record); ok {
				cp := *rec
				return &cp, nil
			}
		}
	}

	rec, err := s.SerialRepo.Get(ctx, line, reference)
	if err != nil {
		return nil, err
	}
	s.cacheRecord(ctx, rec)
	return rec, nil
}

func (s *serialService) cacheRecord(ctx context.Context, rec *serial.Record) {
	if s.Cache == nil || rec == nil {
		return
	}
	cp := *rec
	s.Cache.Set(ctx, cache.GenerateKey(cache.PrefixSerialRecord, rec.Line, rec.Reference), &cp, 0)
}

func (s *serialService) storageFailure(err error, op, line, reference string) error {
	s.Logger.Errorw("serial storage operation failed",
		"operation", op,
		"line", line,
		"reference", reference,
		"retryable", ierr.IsRetryable(err),
		"error", err,
	)
	if ierr.IsStorageUnavailable(err) {
		s.Sentry.CaptureException(err)
	}
	return err
}
