package bptree

import (
	"context"

	"go-bpindex/pkg/customerrors"
	"go-bpindex/pkg/node"

	"github.com/pkg/errors"
)

// Verify walks the whole tree of table and checks its structural
// invariants: key order and bounds, fill factor, child counts, a single root
// flag, equal leaf depth and a consistent sibling chain.
func (t *Tree[K, V]) Verify(ctx context.Context, table int) error {
	if err := t.register(table); err != nil {
		return err
	}
	root, err := t.root(ctx, table)
	if err != nil || root == nil {
		return err
	}
	if !root.IsRoot() {
		return corrupt("root %s lacks the root flag", root.Pointer)
	}

	v := &verifier[K, V]{t: t, ctx: ctx, table: table, leafDepth: -1}
	if err := v.walk(root, nil, nil, 0); err != nil {
		return err
	}
	return v.checkChain()
}

func corrupt(format string, args ...interface{}) error {
	return errors.Wrapf(customerrors.ErrCorruptNode, format, args...)
}

type verifier[K, V any] struct {
	t         *Tree[K, V]
	ctx       context.Context
	table     int
	leafDepth int
	leaves    []*node.Node[K, V]
}

// walk checks n, whose keys must lie in [lo, hi) where bounds are set.
func (v *verifier[K, V]) walk(n *node.Node[K, V], lo, hi *K, depth int) error {
	cmp := v.t.format.Keys.Compare
	isRoot := depth == 0
	if n.IsRoot() != isRoot {
		return corrupt("node %s root flag is %t at depth %d", n.Pointer, n.IsRoot(), depth)
	}

	keys := n.Keys()
	for i, k := range keys {
		if i > 0 && cmp(keys[i-1], k) >= 0 {
			return corrupt("node %s keys out of order at %d", n.Pointer, i)
		}
		if (lo != nil && cmp(k, *lo) < 0) || (hi != nil && cmp(k, *hi) >= 0) {
			return corrupt("node %s key %v outside its parent's range", n.Pointer, k)
		}
	}

	if n.IsLeaf() {
		if !isRoot && len(keys) < v.t.format.MinLeafKeys() {
			return corrupt("leaf %s underflows with %d keys", n.Pointer, len(keys))
		}
		if v.leafDepth == -1 {
			v.leafDepth = depth
		} else if v.leafDepth != depth {
			return corrupt("leaf %s at depth %d, want %d", n.Pointer, depth, v.leafDepth)
		}
		v.leaves = append(v.leaves, n)
		return nil
	}

	if isRoot && len(keys) == 0 {
		return corrupt("internal root %s has no keys", n.Pointer)
	}
	if !isRoot && len(keys) < v.t.format.MinInternalKeys() {
		return corrupt("internal node %s underflows with %d keys", n.Pointer, len(keys))
	}
	if got := n.ChildCount(); got != len(keys)+1 {
		return corrupt("internal node %s has %d children for %d keys", n.Pointer, got, len(keys))
	}

	for i, ptr := range n.Children() {
		child, err := v.t.read(v.ctx, v.table, ptr)
		if err != nil {
			return err
		}

		childLo, childHi := lo, hi
		if i > 0 {
			childLo = &keys[i-1]
		}
		if i < len(keys) {
			childHi = &keys[i]
		}
		if err := v.walk(child, childLo, childHi, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (v *verifier[K, V]) checkChain() error {
	first, last := v.leaves[0], v.leaves[len(v.leaves)-1]
	if !first.Prev().IsEmpty() {
		return corrupt("first leaf %s has a previous sibling", first.Pointer)
	}
	if !last.Next().IsEmpty() {
		return corrupt("last leaf %s has a next sibling", last.Pointer)
	}

	for i := 1; i < len(v.leaves); i++ {
		prev, cur := v.leaves[i-1], v.leaves[i]
		if prev.Next() != cur.Pointer || cur.Prev() != prev.Pointer {
			return corrupt("sibling chain broken between %s and %s", prev.Pointer, cur.Pointer)
		}
	}
	return nil
}
