package bptree

import (
	"context"

	"go-bpindex/pkg/customerrors"
	"go-bpindex/pkg/node"
	"go-bpindex/pkg/pointer"
	"go-bpindex/util/stl"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// Remove deletes key from table and reports whether it was present.
func (t *Tree[K, V]) Remove(ctx context.Context, table int, key K) (bool, error) {
	if err := t.register(table); err != nil {
		return false, err
	}

	root, err := t.root(ctx, table)
	if err != nil || root == nil {
		return false, err
	}

	path := stl.NewStack[frame[K, V]]()
	leaf, err := t.descend(ctx, table, root, key, path)
	if err != nil {
		return false, err
	}

	idx, found := leaf.Search(key)
	if !found {
		return false, nil
	}
	if err := leaf.RemoveAt(idx); err != nil {
		return false, err
	}

	// an empty leaf root is a valid empty tree
	if leaf.IsRoot() || leaf.KeyCount() >= t.format.MinLeafKeys() {
		return true, t.save(ctx, table, leaf)
	}
	if err := t.rebalanceLeaf(ctx, table, leaf, path); err != nil {
		return true, errors.Wrap(err, "failed to rebalance")
	}
	return true, nil
}

func (t *Tree[K, V]) parentOf(n *node.Node[K, V], path *stl.Stack[frame[K, V]]) (frame[K, V], error) {
	fr, err := path.Pop()
	if errors.Is(err, stl.ErrEmptyStack) {
		return fr, errors.Wrapf(customerrors.ErrCorruptNode, "non-root node %s has no parent", n.Pointer)
	}
	return fr, err
}

// rebalanceLeaf restores the fill of an underflowing leaf by borrowing from
// an adjacent sibling with spare entries, or else merging with one.
func (t *Tree[K, V]) rebalanceLeaf(ctx context.Context, table int, leaf *node.Node[K, V], path *stl.Stack[frame[K, V]]) error {
	fr, err := t.parentOf(leaf, path)
	if err != nil {
		return err
	}
	parent, at := fr.n, fr.idx
	seps, children := parent.Keys(), parent.Children()
	keys, vals := leaf.Entries()
	min := t.format.MinLeafKeys()

	var left, right *node.Node[K, V]
	if at > 0 {
		if left, err = t.read(ctx, table, children[at-1]); err != nil {
			return err
		}
		lk, lv := left.Entries()
		if len(lk) > min {
			last := len(lk) - 1
			keys = slices.Insert(keys, 0, lk[last])
			vals = slices.Insert(vals, 0, lv[last])
			seps[at-1] = keys[0]
			return t.rewriteLeaves(ctx, table, parent, seps, children,
				left, lk[:last], lv[:last],
				leaf, keys, vals,
			)
		}
	}

	if at < len(children)-1 {
		if right, err = t.read(ctx, table, children[at+1]); err != nil {
			return err
		}
		rk, rv := right.Entries()
		if len(rk) > min {
			keys = append(keys, rk[0])
			vals = append(vals, rv[0])
			seps[at] = rk[1]
			return t.rewriteLeaves(ctx, table, parent, seps, children,
				leaf, keys, vals,
				right, rk[1:], rv[1:],
			)
		}
	}

	switch {
	case left != nil:
		return t.mergeLeaves(ctx, table, parent, at-1, left, leaf, path)
	case right != nil:
		return t.mergeLeaves(ctx, table, parent, at, leaf, right, path)
	}
	return errors.Wrapf(customerrors.ErrCorruptNode, "leaf %s has no siblings", leaf.Pointer)
}

func (t *Tree[K, V]) rewriteLeaves(
	ctx context.Context,
	table int,
	parent *node.Node[K, V],
	seps []K,
	children []pointer.Pointer,
	a *node.Node[K, V], ak []K, av []V,
	b *node.Node[K, V], bk []K, bv []V,
) error {
	if err := a.SetEntries(ak, av); err != nil {
		return err
	}
	if err := b.SetEntries(bk, bv); err != nil {
		return err
	}
	if err := parent.SetInternal(seps, children); err != nil {
		return err
	}
	return t.save(ctx, table, a, b, parent)
}

// mergeLeaves appends right's entries to left, unlinks right from the
// sibling chain, frees it and removes separator sepIdx from the parent.
func (t *Tree[K, V]) mergeLeaves(
	ctx context.Context,
	table int,
	parent *node.Node[K, V],
	sepIdx int,
	left, right *node.Node[K, V],
	path *stl.Stack[frame[K, V]],
) error {
	lk, lv := left.Entries()
	rk, rv := right.Entries()
	if err := left.SetEntries(append(lk, rk...), append(lv, rv...)); err != nil {
		return err
	}

	next := right.Next()
	left.SetNext(next)
	if !next.IsEmpty() {
		n, err := t.read(ctx, table, next)
		if err != nil {
			return err
		}
		n.SetPrev(left.Pointer)
		if err := t.save(ctx, table, n); err != nil {
			return err
		}
	}

	if err := t.save(ctx, table, left); err != nil {
		return err
	}
	if err := t.remove(ctx, table, right); err != nil {
		return err
	}
	return t.dropSeparator(ctx, table, parent, sepIdx, path)
}

// dropSeparator removes separator sepIdx and the child to its right from
// parent, then rebalances the parent.
func (t *Tree[K, V]) dropSeparator(
	ctx context.Context,
	table int,
	parent *node.Node[K, V],
	sepIdx int,
	path *stl.Stack[frame[K, V]],
) error {
	seps := slices.Delete(parent.Keys(), sepIdx, sepIdx+1)
	children := slices.Delete(parent.Children(), sepIdx+1, sepIdx+2)
	if err := parent.SetInternal(seps, children); err != nil {
		return err
	}
	return t.rebalanceInternal(ctx, table, parent, path)
}

// rebalanceInternal persists an internal node after one of its children was
// merged away. An empty root is replaced by its only child; an underflowing
// non-root node rotates a key through the parent from a sibling with spare
// keys, or else merges with one.
func (t *Tree[K, V]) rebalanceInternal(ctx context.Context, table int, n *node.Node[K, V], path *stl.Stack[frame[K, V]]) error {
	keys, children := n.Keys(), n.Children()

	if n.IsRoot() {
		if len(keys) > 0 {
			return t.save(ctx, table, n)
		}
		child, err := t.read(ctx, table, children[0])
		if err != nil {
			return err
		}
		child.SetRoot(true)
		if err := t.save(ctx, table, child); err != nil {
			return err
		}
		t.log.WithField("table", table).Debugf("root collapsed into %s", child.Pointer)
		return t.remove(ctx, table, n)
	}

	min := t.format.MinInternalKeys()
	if len(keys) >= min {
		return t.save(ctx, table, n)
	}

	fr, err := t.parentOf(n, path)
	if err != nil {
		return err
	}
	parent, at := fr.n, fr.idx
	seps, siblings := parent.Keys(), parent.Children()

	var left, right *node.Node[K, V]
	if at > 0 {
		if left, err = t.read(ctx, table, siblings[at-1]); err != nil {
			return err
		}
		lk, lc := left.Keys(), left.Children()
		if len(lk) > min {
			keys = slices.Insert(keys, 0, seps[at-1])
			children = slices.Insert(children, 0, lc[len(lc)-1])
			seps[at-1] = lk[len(lk)-1]
			return t.rewriteInternals(ctx, table, parent, seps, siblings,
				left, lk[:len(lk)-1], lc[:len(lc)-1],
				n, keys, children,
			)
		}
	}

	if at < len(siblings)-1 {
		if right, err = t.read(ctx, table, siblings[at+1]); err != nil {
			return err
		}
		rk, rc := right.Keys(), right.Children()
		if len(rk) > min {
			keys = append(keys, seps[at])
			children = append(children, rc[0])
			seps[at] = rk[0]
			return t.rewriteInternals(ctx, table, parent, seps, siblings,
				n, keys, children,
				right, rk[1:], rc[1:],
			)
		}
	}

	switch {
	case left != nil:
		return t.mergeInternals(ctx, table, parent, at-1, left, n, path)
	case right != nil:
		return t.mergeInternals(ctx, table, parent, at, n, right, path)
	}
	return errors.Wrapf(customerrors.ErrCorruptNode, "internal node %s has no siblings", n.Pointer)
}

func (t *Tree[K, V]) rewriteInternals(
	ctx context.Context,
	table int,
	parent *node.Node[K, V],
	seps []K,
	siblings []pointer.Pointer,
	a *node.Node[K, V], ak []K, ac []pointer.Pointer,
	b *node.Node[K, V], bk []K, bc []pointer.Pointer,
) error {
	if err := a.SetInternal(ak, ac); err != nil {
		return err
	}
	if err := b.SetInternal(bk, bc); err != nil {
		return err
	}
	if err := parent.SetInternal(seps, siblings); err != nil {
		return err
	}
	return t.save(ctx, table, a, b, parent)
}

// mergeInternals pulls separator sepIdx down from the parent between the
// keys of left and right, moves everything into left and frees right.
func (t *Tree[K, V]) mergeInternals(
	ctx context.Context,
	table int,
	parent *node.Node[K, V],
	sepIdx int,
	left, right *node.Node[K, V],
	path *stl.Stack[frame[K, V]],
) error {
	sep, err := parent.KeyAt(sepIdx)
	if err != nil {
		return err
	}

	keys := append(append(left.Keys(), sep), right.Keys()...)
	children := append(left.Children(), right.Children()...)
	if err := left.SetInternal(keys, children); err != nil {
		return err
	}
	if err := t.save(ctx, table, left); err != nil {
		return err
	}
	if err := t.remove(ctx, table, right); err != nil {
		return err
	}
	return t.dropSeparator(ctx, table, parent, sepIdx, path)
}
