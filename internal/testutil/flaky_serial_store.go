package testutil

import (
	"context"
	"sync"

	"github.com/linearclockworks/shopify-serial--webhook/internal/domain/serial"
	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
)

// Store operations that can be failed on demand
const (
	OpGet            = "get"
	OpNextValue      = "next_value"
	OpCreateIfAbsent = "create_if_absent"
	OpListByOrder    = "list_by_order"
)

// FlakySerialStore wraps a serial.Repository and fails selected operations with a
// StorageUnavailable error a given number of times
type FlakySerialStore struct {
	serial.Repository

	mu       sync.Mutex
	failures map[string]int
	failAt   map[string]int
	calls    map[string]int
}

func NewFlakySerialStore(inner serial.Repository) *FlakySerialStore {
	return &FlakySerialStore{
		Repository: inner,
		failures:   make(map[string]int),
		failAt:     make(map[string]int),
		calls:      make(map[string]int),
	}
}

// FailNext makes the next n calls of op fail
func (s *FlakySerialStore) FailNext(op string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = n
}

// FailOnCall makes only the nth call of op from now fail, e.g. the second unit of an order
func (s *FlakySerialStore) FailOnCall(op string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAt[op] = s.calls[op] + n
}

// Calls returns how many times op was invoked
func (s *FlakySerialStore) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *FlakySerialStore) fail(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	if at, ok := s.failAt[op]; ok && at == s.calls[op] {
		delete(s.failAt, op)
		return ierr.NewErrorf("%s: connection reset by peer", op).
			WithHint("Serial storage is temporarily unavailable").
			Mark(ierr.ErrStorageUnavailable)
	}
	if s.failures[op] > 0 {
		s.failures[op]--
		return ierr.NewErrorf("%s: connection reset by peer", op).
			WithHint("Serial storage is temporarily unavailable").
			Mark(ierr.ErrStorageUnavailable)
	}
	return nil
}

func (s *FlakySerialStore) Get(ctx context.Context, line, reference string) (*serial.Record, error) {
	if err := s.fail(OpGet); err != nil {
		return nil, err
	}
	return s.Repository.Get(ctx, line, reference)
}

func (s *FlakySerialStore) NextValue(ctx context.Context, counter string, start int64) (int64, error) {
	if err := s.fail(OpNextValue); err != nil {
		return 0, err
	}
	return s.Repository.NextValue(ctx, counter, start)
}

func (s *FlakySerialStore) CreateIfAbsent(ctx context.Context, rec *serial.Record) error {
	if err := s.fail(OpCreateIfAbsent); err != nil {
		return err
	}
	return s.Repository.CreateIfAbsent(ctx, rec)
}

func (s *FlakySerialStore) ListByOrder(ctx context.Context, orderID string) ([]*serial.Record, error) {
	if err := s.fail(OpListByOrder); err != nil {
		return nil, err
	}
	return s.Repository.ListByOrder(ctx, orderID)
}
