package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"

	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"no rows", sql.ErrNoRows, ierr.IsNotFound},
		{"duplicate reference", &pq.Error{Code: "23505", Constraint: constraintLineReference}, ierr.IsAlreadyExists},
		{"duplicate value", &pq.Error{Code: "23505", Constraint: "serial_records_line_value_key"}, ierr.IsStorageUnavailable},
		{"duplicate number", &pq.Error{Code: "23505", Constraint: constraintNumber}, ierr.IsStorageUnavailable},
		{"connection failure", &pq.Error{Code: "08006"}, ierr.IsStorageUnavailable},
		{"too many connections", &pq.Error{Code: "53300"}, ierr.IsStorageUnavailable},
		{"admin shutdown", &pq.Error{Code: "57P01"}, ierr.IsStorageUnavailable},
		{"deadlock", &pq.Error{Code: "40P01"}, ierr.IsStorageUnavailable},
		{"bad conn", driver.ErrBadConn, ierr.IsStorageUnavailable},
		{"deadline", context.DeadlineExceeded, ierr.IsStorageUnavailable},
		{"syntax error", &pq.Error{Code: "42601"}, func(err error) bool { return ierr.Is(err, ierr.ErrDatabase) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err, "test op")
			assert.True(t, tt.check(got), "unexpected classification: %v", got)
		})
	}

	assert.NoError(t, classify(nil, "noop"))
}

func TestClassifyRetryability(t *testing.T) {
	assert.False(t, ierr.IsRetryable(classify(&pq.Error{Code: "23505", Constraint: constraintLineReference}, "create")))
	assert.True(t, ierr.IsRetryable(classify(&pq.Error{Code: "08006"}, "create")))
	assert.True(t, ierr.IsRetryable(classify(&pq.Error{Code: "23505", Constraint: constraintNumber}, "create")))
}
