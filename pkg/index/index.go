// Package index exposes B+ tree indexes to callers and decorates them with
// concurrency control.
package index

import (
	"context"

	"go-bpindex/pkg/bptree"
	"go-bpindex/pkg/node"
)

// Manager is the table scoped index API. *bptree.Tree implements it.
type Manager[K, V any] interface {
	Add(ctx context.Context, table int, key K, val V) (*node.Node[K, V], error)
	Get(ctx context.Context, table int, key K) (V, bool, error)
	Remove(ctx context.Context, table int, key K) (bool, error)
	Size(ctx context.Context, table int) (int, error)
	Iterator(ctx context.Context, table int, order bptree.Order) (*bptree.Iterator[K, V], error)
}

var _ Manager[int32, int32] = (*bptree.Tree[int32, int32])(nil)

// Lookup is the result of a Get.
type Lookup[V any] struct {
	Value V
	Found bool
}

type Entry[K, V any] struct {
	Key   K
	Value V
}

func scan[K, V any](ctx context.Context, m Manager[K, V], table int, order bptree.Order) ([]Entry[K, V], error) {
	it, err := m.Iterator(ctx, table, order)
	if err != nil {
		return nil, err
	}

	entries := []Entry[K, V]{}
	for it.Next() {
		entries = append(entries, Entry[K, V]{Key: it.Key(), Value: it.Value()})
	}
	return entries, it.Err()
}
