package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Table is an in-memory keyed collection used by the memory repositories.
// Rows are stored by value and handed out as copies, so a caller mutating
// a returned row never changes stored state without going through Put.
type Table[T any] struct {
	mu    sync.RWMutex
	rows  map[uuid.UUID]T
	order []uuid.UUID
}

func NewTable[T any]() *Table[T] {
	return &Table[T]{rows: make(map[uuid.UUID]T)}
}

// Insert adds a row and reports false if the id is already taken.
func (t *Table[T]) Insert(id uuid.UUID, row T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[id]; ok {
		return false
	}
	t.rows[id] = row
	t.order = append(t.order, id)
	return true
}

func (t *Table[T]) Get(id uuid.UUID) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	row, ok := t.rows[id]
	return row, ok
}

// Put replaces an existing row and reports false if it does not exist.
func (t *Table[T]) Put(id uuid.UUID, row T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[id]; !ok {
		return false
	}
	t.rows[id] = row
	return true
}

// Modify applies fn to a copy of the row under the write lock and stores the
// result only when fn succeeds.
func (t *Table[T]) Modify(id uuid.UUID, fn func(row *T) error) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	row, ok := t.rows[id]
	if !ok {
		return false, nil
	}
	if err := fn(&row); err != nil {
		return true, err
	}
	t.rows[id] = row
	return true, nil
}

func (t *Table[T]) Delete(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[id]; !ok {
		return false
	}
	delete(t.rows, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// Select returns the rows matching keep in insertion order. A nil keep
// selects every row.
func (t *Table[T]) Select(keep func(T) bool) []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []T
	for _, id := range t.order {
		row := t.rows[id]
		if keep == nil || keep(row) {
			out = append(out, row)
		}
	}
	return out
}

func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Page slices rows for limit/offset pagination and returns the total.
func Page[T any](rows []T, limit, offset int) ([]T, int) {
	total := len(rows)
	if offset >= total {
		return nil, total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return rows[offset:end], total
}

// Transactor runs a unit of work atomically with respect to other units.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type memTxKey struct{}

// MemoryTransactor serialises units of work against the memory backend.
// It cannot roll back; memory repositories validate before they write.
type MemoryTransactor struct {
	mu sync.Mutex
}

func NewMemoryTransactor() *MemoryTransactor {
	return &MemoryTransactor{}
}

func (m *MemoryTransactor) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(context.WithValue(ctx, memTxKey{}, true))
}

// NewestFirst orders rows by the timestamp at descending, breaking ties by
// reverse insertion order.
func NewestFirst[T any](rows []T, at func(T) time.Time) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	sort.SliceStable(rows, func(i, j int) bool { return at(rows[i]).After(at(rows[j])) })
}
