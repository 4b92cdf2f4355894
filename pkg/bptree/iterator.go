package bptree

import (
	"context"

	"go-bpindex/pkg/node"
	"go-bpindex/pkg/pointer"
)

// Iterator walks the entries of a table in key order by following the leaf
// sibling chain. It is not safe to use across structural changes of the
// table; start a new one instead.
type Iterator[K, V any] struct {
	t     *Tree[K, V]
	ctx   context.Context
	table int
	order Order

	leaf *node.Node[K, V]
	keys []K
	vals []V
	idx  int

	key K
	val V
	err error
}

// Iterator returns a cursor positioned before the first (Asc) or last (Desc)
// entry of table.
func (t *Tree[K, V]) Iterator(ctx context.Context, table int, order Order) (*Iterator[K, V], error) {
	if err := t.register(table); err != nil {
		return nil, err
	}

	it := &Iterator[K, V]{t: t, ctx: ctx, table: table, order: order}
	n, err := t.root(ctx, table)
	if err != nil || n == nil {
		return it, err
	}

	for !n.IsLeaf() {
		children := n.Children()
		child := children[0]
		if order == Desc {
			child = children[len(children)-1]
		}
		if n, err = t.read(ctx, table, child); err != nil {
			return nil, err
		}
	}
	it.load(n)
	return it, nil
}

func (it *Iterator[K, V]) load(leaf *node.Node[K, V]) {
	it.leaf = leaf
	it.keys, it.vals = leaf.Entries()
	it.idx = 0
	if it.order == Desc {
		it.idx = len(it.keys) - 1
	}
}

// Next advances to the next entry and reports whether there is one.
func (it *Iterator[K, V]) Next() bool {
	for it.leaf != nil && it.err == nil {
		if it.idx >= 0 && it.idx < len(it.keys) {
			it.key, it.val = it.keys[it.idx], it.vals[it.idx]
			if it.order == Desc {
				it.idx--
			} else {
				it.idx++
			}
			return true
		}

		var sibling pointer.Pointer
		if it.order == Desc {
			sibling = it.leaf.Prev()
		} else {
			sibling = it.leaf.Next()
		}
		if sibling.IsEmpty() {
			it.leaf = nil
			break
		}

		leaf, err := it.t.read(it.ctx, it.table, sibling)
		if err != nil {
			it.err = err
			break
		}
		it.load(leaf)
	}
	return false
}

func (it *Iterator[K, V]) Key() K     { return it.key }
func (it *Iterator[K, V]) Value() V   { return it.val }
func (it *Iterator[K, V]) Err() error { return it.err }
