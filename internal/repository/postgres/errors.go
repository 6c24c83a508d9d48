package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"

	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
	"github.com/lib/pq"
)

const (
	pqUniqueViolation = "23505"

	constraintLineReference = "serial_records_line_reference_key"
	constraintNumber        = "serial_records_number_key"
)

// transientClasses are SQLSTATE classes that clear up on retry
var transientClasses = []string{
	"08", // connection exception
	"53", // insufficient resources
	"57", // operator intervention (admin shutdown, cannot connect now)
	"40", // serialization failure, deadlock
	"58", // system error (io)
}

// classify maps a driver error onto the service sentinels
func classify(err error, op string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ierr.WithError(err).
			WithHintf("%s: record not found", op).
			Mark(ierr.ErrNotFound)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		details := map[string]any{
			"op":         op,
			"code":       code,
			"constraint": pqErr.Constraint,
		}

		if code == pqUniqueViolation && pqErr.Constraint == constraintLineReference {
			return ierr.WithError(err).
				WithHint("A serial was already issued for this order reference").
				WithReportableDetails(details).
				Mark(ierr.ErrAlreadyExists)
		}
		if code == pqUniqueViolation && pqErr.Constraint == constraintNumber {
			// Another line already issued this number; the next reservation renders a different one.
			return ierr.WithError(err).
				WithHint("Serial number already issued, retry to reserve a fresh value").
				WithReportableDetails(details).
				Mark(ierr.ErrStorageUnavailable)
		}
		if code == pqUniqueViolation {
			// The counter is behind an issued value; the next reservation moves past it.
			return ierr.WithError(err).
				WithHint("Serial value already taken, retry to reserve a fresh value").
				WithReportableDetails(details).
				Mark(ierr.ErrStorageUnavailable)
		}
		for _, class := range transientClasses {
			if strings.HasPrefix(code, class) {
				return ierr.WithError(err).
					WithHint("Serial storage is temporarily unavailable").
					WithReportableDetails(details).
					Mark(ierr.ErrStorageUnavailable)
			}
		}
		return ierr.WithError(err).
			WithHintf("%s failed", op).
			WithReportableDetails(details).
			Mark(ierr.ErrDatabase)
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.As(err, &netErr) {
		return ierr.WithError(err).
			WithHint("Serial storage is temporarily unavailable").
			WithReportableDetails(map[string]any{"op": op}).
			Mark(ierr.ErrStorageUnavailable)
	}

	return ierr.WithError(err).
		WithHintf("%s failed", op).
		WithReportableDetails(map[string]any{"op": op}).
		Mark(ierr.ErrDatabase)
}
