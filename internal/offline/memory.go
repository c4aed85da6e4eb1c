// internal/offline/memory.go
package offline

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"posnexus/internal/checkout"
)

// MemoryStore is an in-process Store. Records keep insertion order.
type MemoryStore struct {
	mu       sync.Mutex
	order    []uuid.UUID
	records  map[uuid.UUID]*Record
	synced   map[uuid.UUID]bool
	writeErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[uuid.UUID]*Record),
		synced:  make(map[uuid.UUID]bool),
	}
}

// FailWrites makes every subsequent SaveSaleOffline return err; nil restores
// normal behavior.
func (m *MemoryStore) FailWrites(err error) {
	m.mu.Lock()
	m.writeErr = err
	m.mu.Unlock()
}

func (m *MemoryStore) SaveSaleOffline(_ context.Context, sale checkout.PendingOfflineSale) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeErr != nil {
		return m.writeErr
	}
	if _, ok := m.records[sale.ID]; ok {
		return nil
	}
	m.records[sale.ID] = &Record{PendingOfflineSale: sale}
	m.order = append(m.order, sale.ID)
	return nil
}

func (m *MemoryStore) Pending(_ context.Context, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for _, id := range m.order {
		if m.synced[id] {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, *m.records[id])
	}
	return out, nil
}

func (m *MemoryStore) MarkSynced(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok || m.synced[id] {
		return ErrSaleNotFound
	}
	m.synced[id] = true
	return nil
}

func (m *MemoryStore) RecordAttempt(_ context.Context, id uuid.UUID, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok || m.synced[id] {
		return ErrSaleNotFound
	}
	r.Attempts++
	if cause != nil {
		r.LastError = cause.Error()
	}
	return nil
}

// Len reports how many sales were ever queued, synced or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// Has reports whether a sale with id was queued.
func (m *MemoryStore) Has(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[id]
	return ok
}
