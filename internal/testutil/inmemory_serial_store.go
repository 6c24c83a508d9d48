package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/linearclockworks/shopify-serial--webhook/internal/domain/serial"
	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
)

// InMemorySerialStore is a serial.Repository with the same atomicity guarantees as the
// durable stores: NextValue is an atomic increment and CreateIfAbsent an atomic insert.
type InMemorySerialStore struct {
	mu       sync.Mutex
	counters map[string]int64
	records  map[string]*serial.Record

	// BeforeCreate runs outside the lock just before a record is inserted.
	// Tests use it to let a competing caller win the race.
	BeforeCreate func(ctx context.Context, rec *serial.Record)
}

func NewInMemorySerialStore() *InMemorySerialStore {
	return &InMemorySerialStore{
		counters: make(map[string]int64),
		records:  make(map[string]*serial.Record),
	}
}

func (s *InMemorySerialStore) Get(ctx context.Context, line, reference string) (*serial.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[serial.Key(line, reference)]
	if !ok {
		return nil, ierr.NewError("serial record not found").
			WithHint("No serial was issued for this order reference").
			Mark(ierr.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (s *InMemorySerialStore) NextValue(ctx context.Context, counter string, start int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.counters[counter]
	if !ok {
		v = start - 1
	}
	v++
	s.counters[counter] = v
	return v, nil
}

func (s *InMemorySerialStore) CreateIfAbsent(ctx context.Context, rec *serial.Record) error {
	if s.BeforeCreate != nil {
		s.BeforeCreate(ctx, rec)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := serial.Key(rec.Line, rec.Reference)
	if _, exists := s.records[key]; exists {
		return ierr.NewError("serial record already exists").
			WithHint("A serial was already issued for this order reference").
			Mark(ierr.ErrAlreadyExists)
	}
	for _, existing := range s.records {
		if existing.Line == rec.Line && existing.Value == rec.Value {
			return ierr.NewErrorf("serial value %d already taken", rec.Value).
				Mark(ierr.ErrStorageUnavailable)
		}
		if existing.Number == rec.Number {
			return ierr.NewErrorf("serial number %s already issued", rec.Number).
				Mark(ierr.ErrStorageUnavailable)
		}
	}

	cp := *rec
	s.records[key] = &cp
	return nil
}

func (s *InMemorySerialStore) ListByOrder(ctx context.Context, orderID string) ([]*serial.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]*serial.Record, 0)
	for _, rec := range s.records {
		if rec.OrderID == orderID {
			cp := *rec
			records = append(records, &cp)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Value < records[j].Value
	})
	return records, nil
}

// Records returns every stored record of a line, ordered by value
func (s *InMemorySerialStore) Records(line string) []*serial.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]*serial.Record, 0)
	for _, rec := range s.records {
		if rec.Line == line {
			cp := *rec
			records = append(records, &cp)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Value < records[j].Value
	})
	return records
}

// Counter returns the current high-water mark of a counter
func (s *InMemorySerialStore) Counter(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[name]
}

// Insert stores a record directly, bypassing the counter
func (s *InMemorySerialStore) Insert(rec *serial.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[serial.Key(rec.Line, rec.Reference)] = &cp
}

// Clear removes all counters and records
func (s *InMemorySerialStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = make(map[string]int64)
	s.records = make(map[string]*serial.Record)
}
