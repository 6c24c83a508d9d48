package serial

import "context"

// Repository is the durable store behind the issuer. Implementations must provide
// an atomic counter increment and an insert-only record write; no other coordination
// between concurrent callers exists.
type Repository interface {
	// Get returns the record for (line, reference) or an error marked ErrNotFound
	Get(ctx context.Context, line, reference string) (*Record, error)

	// NextValue atomically increments the named counter and returns the new value.
	// The first call for a counter returns start.
	NextValue(ctx context.Context, counter string, start int64) (int64, error)

	// CreateIfAbsent inserts the record, failing with ErrAlreadyExists when a record
	// for (line, reference) is already present
	CreateIfAbsent(ctx context.Context, record *Record) error

	// ListByOrder returns every record issued for a Shopify order, oldest first
	ListByOrder(ctx context.Context, orderID string) ([]*Record, error)
}
