package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mapierhub/poisync/internal/places"
)

// MemStore is an in-memory places store keyed by id.
type MemStore struct {
	mu sync.Mutex

	Rows map[string]places.WriteRecord

	// Reject, when set, fails any upsert containing a record it returns an
	// error for. Multi-record calls fail as a whole.
	Reject func(rec places.WriteRecord) error
	// Fault, when set, is returned from every call.
	Fault error

	UpsertCalls int
	BatchSizes  []int
	Fetches     [][]string
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{Rows: make(map[string]places.WriteRecord)}
}

// Seed inserts n rows with ids "place-00000".. directly.
func (m *MemStore) Seed(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("place-%05d", i)
		m.Rows[id] = places.WriteRecord{ID: id}
	}
}

// Upsert implements sink.Store.
func (m *MemStore) Upsert(_ context.Context, recs []places.WriteRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	m.BatchSizes = append(m.BatchSizes, len(recs))
	if m.Fault != nil {
		return m.Fault
	}
	if m.Reject != nil {
		for _, r := range recs {
			if err := m.Reject(r); err != nil {
				return err
			}
		}
	}
	for _, r := range recs {
		m.Rows[r.ID] = r
	}
	return nil
}

// Count implements pipeline.Target.
func (m *MemStore) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fault != nil {
		return 0, m.Fault
	}
	return int64(len(m.Rows)), nil
}

// FetchIDs returns up to limit surviving ids. Order is arbitrary but
// stable for a given table state.
func (m *MemStore) FetchIDs(_ context.Context, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fault != nil {
		return nil, m.Fault
	}
	ids := make([]string, 0, len(m.Rows))
	for id := range m.Rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	m.Fetches = append(m.Fetches, ids)
	return ids, nil
}

// DeleteIDs removes exactly the given ids and returns how many existed.
func (m *MemStore) DeleteIDs(_ context.Context, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fault != nil {
		return 0, m.Fault
	}
	var n int64
	for _, id := range ids {
		if _, ok := m.Rows[id]; ok {
			delete(m.Rows, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored rows.
func (m *MemStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Rows)
}
