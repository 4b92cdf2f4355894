package index

import (
	"context"
	"sync"

	"go-bpindex/pkg/bptree"
	"go-bpindex/pkg/customerrors"
	"go-bpindex/pkg/node"
	"go-bpindex/util/future"
	"go-bpindex/util/logger"

	"github.com/sirupsen/logrus"
)

// queueSize is the number of operations a table's queue buffers before
// submitters block.
const queueSize = 128

// TableLevelAsync runs the operations of each table in submission order on a
// goroutine dedicated to that table. Different tables proceed in parallel.
type TableLevelAsync[K, V any] struct {
	inner Manager[K, V]
	log   logrus.FieldLogger

	// mu is held shared while submitting and exclusively while closing
	mu     sync.RWMutex
	queues sync.Map
	wg     sync.WaitGroup
	closed bool
}

func NewTableLevelAsync[K, V any](inner Manager[K, V], log logrus.FieldLogger) *TableLevelAsync[K, V] {
	if log == nil {
		log = logger.L
	}
	return &TableLevelAsync[K, V]{inner: inner, log: log}
}

func (a *TableLevelAsync[K, V]) queue(table int) chan func() {
	if q, ok := a.queues.Load(table); ok {
		return q.(chan func())
	}

	q, loaded := a.queues.LoadOrStore(table, make(chan func(), queueSize))
	ch := q.(chan func())
	if !loaded {
		a.wg.Add(1)
		go a.work(table, ch)
	}
	return ch
}

func (a *TableLevelAsync[K, V]) work(table int, q chan func()) {
	defer a.wg.Done()
	a.log.WithField("table", table).Debug("table worker started")
	for op := range q {
		op()
	}
}

func submit[K, V, T any](a *TableLevelAsync[K, V], table int, fn func() (T, error)) *future.Future[T] {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return future.Failed[T](customerrors.ErrClosed)
	}

	f, resolve := future.New[T]()
	a.queue(table) <- func() {
		resolve(fn())
	}
	return f
}

func (a *TableLevelAsync[K, V]) AddAsync(ctx context.Context, table int, key K, val V) *future.Future[*node.Node[K, V]] {
	return submit(a, table, func() (*node.Node[K, V], error) {
		return a.inner.Add(ctx, table, key, val)
	})
}

func (a *TableLevelAsync[K, V]) GetAsync(ctx context.Context, table int, key K) *future.Future[Lookup[V]] {
	return submit(a, table, func() (Lookup[V], error) {
		v, ok, err := a.inner.Get(ctx, table, key)
		return Lookup[V]{Value: v, Found: ok}, err
	})
}

func (a *TableLevelAsync[K, V]) RemoveAsync(ctx context.Context, table int, key K) *future.Future[bool] {
	return submit(a, table, func() (bool, error) {
		return a.inner.Remove(ctx, table, key)
	})
}

func (a *TableLevelAsync[K, V]) SizeAsync(ctx context.Context, table int) *future.Future[int] {
	return submit(a, table, func() (int, error) {
		return a.inner.Size(ctx, table)
	})
}

func (a *TableLevelAsync[K, V]) Add(ctx context.Context, table int, key K, val V) (*node.Node[K, V], error) {
	return a.AddAsync(ctx, table, key, val).Await(ctx)
}

func (a *TableLevelAsync[K, V]) Get(ctx context.Context, table int, key K) (V, bool, error) {
	l, err := a.GetAsync(ctx, table, key).Await(ctx)
	return l.Value, l.Found, err
}

func (a *TableLevelAsync[K, V]) Remove(ctx context.Context, table int, key K) (bool, error) {
	return a.RemoveAsync(ctx, table, key).Await(ctx)
}

func (a *TableLevelAsync[K, V]) Size(ctx context.Context, table int) (int, error) {
	return a.SizeAsync(ctx, table).Await(ctx)
}

// ScanAsync reads every entry of table on the table's worker, so no queued
// mutation of the table interleaves with the scan.
func (a *TableLevelAsync[K, V]) ScanAsync(ctx context.Context, table int, order bptree.Order) *future.Future[[]Entry[K, V]] {
	return submit(a, table, func() ([]Entry[K, V], error) {
		return scan(ctx, a.inner, table, order)
	})
}

func (a *TableLevelAsync[K, V]) Scan(ctx context.Context, table int, order bptree.Order) ([]Entry[K, V], error) {
	return a.ScanAsync(ctx, table, order).Await(ctx)
}

// Iterator positions the cursor on the table's worker, but Next reads leaves
// on the caller's goroutine while later operations of the table keep running.
// Use Scan for a result consistent with the submission order.
func (a *TableLevelAsync[K, V]) Iterator(ctx context.Context, table int, order bptree.Order) (*bptree.Iterator[K, V], error) {
	return submit(a, table, func() (*bptree.Iterator[K, V], error) {
		return a.inner.Iterator(ctx, table, order)
	}).Await(ctx)
}

// Close stops accepting operations, lets every queued one finish and stops
// the table workers.
func (a *TableLevelAsync[K, V]) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.queues.Range(func(_, q any) bool {
		close(q.(chan func()))
		return true
	})
	a.mu.Unlock()

	a.wg.Wait()
}
