package sink

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/traceload/internal/record"
)

var errSinkClosed = errors.New("sink closed")

// MemoryStore is an in-process table store. It plays the role of the
// database: many MemorySinks, one per worker, write into the same store.
type MemoryStore struct {
	mu     sync.Mutex
	tables map[string][]record.Record
	opened atomic.Int64
	closed atomic.Int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][]record.Record)}
}

// Open hands out a new connection to the store.
func (m *MemoryStore) Open(context.Context) (Sink, error) {
	m.opened.Add(1)
	return &MemorySink{store: m}, nil
}

// Records returns a copy of the rows written to table.
func (m *MemoryStore) Records(table string) []record.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]record.Record, len(m.tables[table]))
	copy(out, m.tables[table])
	return out
}

func (m *MemoryStore) Count(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[table])
}

// Open connections handed out and not yet closed.
func (m *MemoryStore) OpenConns() int64 {
	return m.opened.Load() - m.closed.Load()
}

func (m *MemoryStore) insert(table string, rec record.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = append(m.tables[table], rec)
}

// MemorySink is one connection to a MemoryStore.
type MemorySink struct {
	store  *MemoryStore
	closed atomic.Bool
}

func (s *MemorySink) Write(ctx context.Context, table string, rec record.Record) error {
	if s.closed.Load() {
		return errSinkClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.store.insert(table, rec)
	return nil
}

func (s *MemorySink) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.store.closed.Add(1)
	}
	return nil
}
