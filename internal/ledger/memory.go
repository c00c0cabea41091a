package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Ledger.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

func (m *Memory) Register(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		m.records[id] = Record{MessageID: id, CreatedAt: time.Now()}
	}
	return nil
}

func (m *Memory) IsViewed(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.records[id].Viewed, nil
}

func (m *Memory) MarkViewed(_ context.Context, id string) (Mark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	switch {
	case !ok:
		return MarkMissing, nil
	case rec.Viewed:
		return MarkAlready, nil
	}
	rec.Viewed = true
	m.records[id] = rec
	return MarkFlipped, nil
}

func (m *Memory) Prune(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, rec := range m.records {
		if rec.CreatedAt.Before(cutoff) {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

// ForEach calls fn for every record in id order, stopping at the first error.
func (m *Memory) ForEach(fn func(Record) error) error {
	m.mu.RLock()
	recs := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		recs = append(recs, rec)
	}
	m.mu.RUnlock()
	sort.Slice(recs, func(i, j int) bool { return recs[i].MessageID < recs[j].MessageID })
	for _, rec := range recs {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of records held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *Memory) Close() error { return nil }
