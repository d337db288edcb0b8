package testutils

import (
	"context"
	"sync"

	"github.com/ahrav/promptlab/internal/domain"
	"github.com/ahrav/promptlab/internal/ports"
)

// MemoryStore is an in-memory ports.ResultStore with the same idempotency
// semantics as the durable store: one live record per key, appends to an
// existing key are no-ops unless forced.
type MemoryStore struct {
	mu      sync.Mutex
	records map[domain.RecordKey]domain.EvaluationRecord
	order   []domain.RecordKey

	// ExistsErr and AppendErr, when set, are returned by the corresponding
	// operation to script store failures.
	ExistsErr error
	AppendErr error

	appends int
}

var _ ports.ResultStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[domain.RecordKey]domain.EvaluationRecord)}
}

// Exists reports whether a live record exists for key.
func (s *MemoryStore) Exists(ctx context.Context, key domain.RecordKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ExistsErr != nil {
		return false, s.ExistsErr
	}
	_, ok := s.records[key]
	return ok, nil
}

// Append persists a record, superseding any prior record when force is set.
func (s *MemoryStore) Append(ctx context.Context, record domain.EvaluationRecord, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AppendErr != nil {
		return s.AppendErr
	}
	s.appends++

	if _, exists := s.records[record.Key]; exists {
		if !force {
			return nil
		}
		s.records[record.Key] = record
		return nil
	}
	s.records[record.Key] = record
	s.order = append(s.order, record.Key)
	return nil
}

// All returns every live record in first-insertion order.
func (s *MemoryStore) All(ctx context.Context) ([]domain.EvaluationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.EvaluationRecord, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.records[key])
	}
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// Appends returns how many append calls reached the store.
func (s *MemoryStore) Appends() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appends
}

// Get returns the live record for key, if any.
func (s *MemoryStore) Get(key domain.RecordKey) (domain.EvaluationRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	return rec, ok
}
