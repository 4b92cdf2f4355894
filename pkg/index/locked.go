package index

import (
	"context"
	"sync"

	"go-bpindex/pkg/bptree"
	"go-bpindex/pkg/node"
)

// Locked guards an index with RWMutexes: lookups share a lock, mutations
// hold it exclusively. Iterators only hold it while being created.
//
// NewLocked gives every table its own lock, NewDBLocked puts every table
// behind a single one.
type Locked[K, V any] struct {
	inner Manager[K, V]

	// global is set for database wide locking
	global *sync.RWMutex

	mu    sync.Mutex
	locks map[int]*sync.RWMutex
}

func NewLocked[K, V any](inner Manager[K, V]) *Locked[K, V] {
	return &Locked[K, V]{inner: inner, locks: map[int]*sync.RWMutex{}}
}

func NewDBLocked[K, V any](inner Manager[K, V]) *Locked[K, V] {
	return &Locked[K, V]{inner: inner, global: &sync.RWMutex{}}
}

func (l *Locked[K, V]) lock(table int) *sync.RWMutex {
	if l.global != nil {
		return l.global
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[table]
	if !ok {
		m = &sync.RWMutex{}
		l.locks[table] = m
	}
	return m
}

func (l *Locked[K, V]) Add(ctx context.Context, table int, key K, val V) (*node.Node[K, V], error) {
	m := l.lock(table)
	m.Lock()
	defer m.Unlock()
	return l.inner.Add(ctx, table, key, val)
}

func (l *Locked[K, V]) Remove(ctx context.Context, table int, key K) (bool, error) {
	m := l.lock(table)
	m.Lock()
	defer m.Unlock()
	return l.inner.Remove(ctx, table, key)
}

func (l *Locked[K, V]) Get(ctx context.Context, table int, key K) (V, bool, error) {
	m := l.lock(table)
	m.RLock()
	defer m.RUnlock()
	return l.inner.Get(ctx, table, key)
}

func (l *Locked[K, V]) Size(ctx context.Context, table int) (int, error) {
	m := l.lock(table)
	m.RLock()
	defer m.RUnlock()
	return l.inner.Size(ctx, table)
}

func (l *Locked[K, V]) Iterator(ctx context.Context, table int, order bptree.Order) (*bptree.Iterator[K, V], error) {
	m := l.lock(table)
	m.RLock()
	defer m.RUnlock()
	return l.inner.Iterator(ctx, table, order)
}

// Scan collects the entries of table while holding its shared lock.
func (l *Locked[K, V]) Scan(ctx context.Context, table int, order bptree.Order) ([]Entry[K, V], error) {
	m := l.lock(table)
	m.RLock()
	defer m.RUnlock()
	return scan(ctx, l.inner, table, order)
}
