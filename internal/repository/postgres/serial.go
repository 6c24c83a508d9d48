package postgres

import (
	"context"

	"github.com/linearclockworks/shopify-serial--webhook/internal/domain/serial"
	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
	"github.com/linearclockworks/shopify-serial--webhook/internal/logger"
	"github.com/linearclockworks/shopify-serial--webhook/internal/postgres"
	"github.com/linearclockworks/shopify-serial--webhook/internal/sentry"
)

const spanOp = "db.postgres"

type serialRepository struct {
	db     *postgres.DB
	logger *logger.Logger
	sentry *sentry.Service
}

func NewSerialRepository(db *postgres.DB, logger *logger.Logger, sentry *sentry.Service) serial.Repository {
	return &serialRepository{db: db, logger: logger, sentry: sentry}
}

func (r *serialRepository) Get(ctx context.Context, line, reference string) (*serial.Record, error) {
	span, ctx := r.sentry.StartDBSpan(ctx, spanOp, "serial.get", map[string]interface{}{"line": line})
	defer sentry.FinishSpan(span)

	query := `
	SELECT id, line, reference, order_id, value, number, created_at
	FROM serial_records
	WHERE line = $1 AND reference = $2
	`

	var rec serial.Record
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &rec, query, line, reference); err != nil {
		return nil, classify(err, "get serial record")
	}
	return &rec, nil
}

func (r *serialRepository) NextValue(ctx context.Context, counter string, start int64) (int64, error) {
	span, ctx := r.sentry.StartDBSpan(ctx, spanOp, "serial.next_value", map[string]interface{}{"counter": counter})
	defer sentry.FinishSpan(span)

	query := `
	INSERT INTO serial_counters (name, value, updated_at)
	VALUES ($1, $2, NOW())
	ON CONFLICT (name) DO UPDATE
	SET value = serial_counters.value + 1, updated_at = NOW()
	RETURNING value
	`

	var value int64
	if err := r.db.GetQuerier(ctx).QueryRowxContext(ctx, query, counter, start).Scan(&value); err != nil {
		return 0, classify(err, "reserve serial value")
	}
	return value, nil
}

func (r *serialRepository) CreateIfAbsent(ctx context.Context, rec *serial.Record) error {
	span, ctx := r.sentry.StartDBSpan(ctx, spanOp, "serial.create", map[string]interface{}{"line": rec.Line})
	defer sentry.FinishSpan(span)

	query := `
	INSERT INTO serial_records (id, line, reference, order_id, value, number, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		rec.ID,
		rec.Line,
		rec.Reference,
		rec.OrderID,
		rec.Value,
		rec.Number,
		rec.CreatedAt,
	)
	if err != nil {
		err = classify(err, "create serial record")
		if !ierr.IsAlreadyExists(err) {
			r.logger.Warnw("failed to create serial record",
				"line", rec.Line,
				"reference", rec.Reference,
				"value", rec.Value,
				"error", err,
			)
		}
		return err
	}
	return nil
}

func (r *serialRepository) ListByOrder(ctx context.Context, orderID string) ([]*serial.Record, error) {
	span, ctx := r.sentry.StartDBSpan(ctx, spanOp, "serial.list_by_order", map[string]interface{}{"order_id": orderID})
	defer sentry.FinishSpan(span)

	query := `
	SELECT id, line, reference, order_id, value, number, created_at
	FROM serial_records
	WHERE order_id = $1
	ORDER BY created_at, value
	`

	records := make([]*serial.Record, 0)
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &records, query, orderID); err != nil {
		return nil, classify(err, "list serial records")
	}
	return records, nil
}
