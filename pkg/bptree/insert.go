package bptree

import (
	"context"

	"go-bpindex/pkg/customerrors"
	"go-bpindex/pkg/node"
	"go-bpindex/pkg/pointer"
	"go-bpindex/util/helpers"
	"go-bpindex/util/stl"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// Add inserts key with val into table and returns the leaf holding it.
func (t *Tree[K, V]) Add(ctx context.Context, table int, key K, val V) (*node.Node[K, V], error) {
	if err := t.validate(key, val); err != nil {
		return nil, err
	}
	if err := t.register(table); err != nil {
		return nil, err
	}

	root, err := t.root(ctx, table)
	if err != nil {
		return nil, err
	}
	if root == nil {
		leaf := t.format.NewLeaf()
		leaf.SetRoot(true)
		if err := leaf.InsertAt(0, key, val); err != nil {
			return nil, err
		}
		if err := t.create(ctx, table, leaf); err != nil {
			return nil, errors.Wrap(err, "failed to create root")
		}
		return leaf, nil
	}

	path := stl.NewStack[frame[K, V]]()
	leaf, err := t.descend(ctx, table, root, key, path)
	if err != nil {
		return nil, err
	}

	idx, found := leaf.Search(key)
	if found {
		if t.opts.Unique {
			return nil, errors.Wrapf(customerrors.ErrDuplicateKey, "key %v in table %d", key, table)
		}
		if err := leaf.SetValueAt(idx, val); err != nil {
			return nil, err
		}
		return leaf, t.save(ctx, table, leaf)
	}

	if leaf.KeyCount() < t.format.MaxKeys() {
		if err := leaf.InsertAt(idx, key, val); err != nil {
			return nil, err
		}
		return leaf, t.save(ctx, table, leaf)
	}
	return t.splitLeaf(ctx, table, leaf, idx, key, val, path)
}

// splitLeaf inserts the entry into a full leaf by moving the upper half of
// its entries to a new right sibling.
func (t *Tree[K, V]) splitLeaf(
	ctx context.Context,
	table int,
	leaf *node.Node[K, V],
	idx int,
	key K,
	val V,
	path *stl.Stack[frame[K, V]],
) (*node.Node[K, V], error) {
	keys, vals := leaf.Entries()
	keys = slices.Insert(keys, idx, key)
	vals = slices.Insert(vals, idx, val)
	mid := (t.format.Degree - 1) / 2

	right := t.format.NewLeaf()
	if err := right.SetEntries(keys[mid+1:], vals[mid+1:]); err != nil {
		return nil, err
	}
	if err := leaf.SetEntries(keys[:mid+1], vals[:mid+1]); err != nil {
		return nil, err
	}

	oldNext := leaf.Next()
	right.SetPrev(leaf.Pointer)
	right.SetNext(oldNext)
	if err := t.create(ctx, table, right); err != nil {
		return nil, errors.Wrap(err, "failed to create right sibling")
	}
	leaf.SetNext(right.Pointer)
	leaf.SetRoot(false)

	// the parent level is linked first: until then right is unreachable and
	// leaf still holds every entry on disk
	if err := t.insertSeparator(ctx, table, path, leaf, keys[mid+1], right); err != nil {
		t.discard(ctx, table, right)
		return nil, errors.Wrap(err, "failed to insert separator")
	}
	if err := t.save(ctx, table, leaf); err != nil {
		return nil, err
	}

	if !oldNext.IsEmpty() {
		next, err := t.read(ctx, table, oldNext)
		if err != nil {
			return nil, err
		}
		next.SetPrev(right.Pointer)
		if err := t.save(ctx, table, next); err != nil {
			return nil, err
		}
	}

	if idx > mid {
		return right, nil
	}
	return leaf, nil
}

// insertSeparator links right next to left in their parent under sep,
// splitting the parent when it overflows. When path is empty left was the
// root and a new root is created above both.
func (t *Tree[K, V]) insertSeparator(
	ctx context.Context,
	table int,
	path *stl.Stack[frame[K, V]],
	left *node.Node[K, V],
	sep K,
	right *node.Node[K, V],
) error {
	if path.Len() == 0 {
		root := t.format.NewInternal()
		root.SetRoot(true)
		if err := root.SetInternal([]K{sep}, []pointer.Pointer{left.Pointer, right.Pointer}); err != nil {
			return err
		}
		if err := t.create(ctx, table, root); err != nil {
			return errors.Wrap(err, "failed to create root")
		}
		t.log.WithField("table", table).Debugf("new root %s", root.Pointer)
		return nil
	}

	fr, err := path.Pop()
	if err != nil {
		return err
	}
	parent := fr.n
	keys := slices.Insert(parent.Keys(), fr.idx, sep)
	children := slices.Insert(parent.Children(), fr.idx+1, right.Pointer)

	if len(keys) <= t.format.MaxKeys() {
		if err := parent.SetInternal(keys, children); err != nil {
			return err
		}
		return t.save(ctx, table, parent)
	}

	// the key at mid moves up and stays in neither half
	mid := helpers.CeilDiv(t.format.Degree-1, 2)
	sibling := t.format.NewInternal()
	if err := sibling.SetInternal(keys[mid+1:], children[mid+1:]); err != nil {
		return err
	}
	if err := parent.SetInternal(keys[:mid], children[:mid+1]); err != nil {
		return err
	}
	if err := t.create(ctx, table, sibling); err != nil {
		return errors.Wrap(err, "failed to create internal sibling")
	}

	parent.SetRoot(false)
	if err := t.insertSeparator(ctx, table, path, parent, keys[mid], sibling); err != nil {
		t.discard(ctx, table, sibling)
		return err
	}
	return t.save(ctx, table, parent)
}

// discard frees a node created by a mutation that failed before linking it.
func (t *Tree[K, V]) discard(ctx context.Context, table int, n *node.Node[K, V]) {
	if err := t.remove(ctx, table, n); err != nil {
		t.log.WithError(err).WithField("table", table).Warnf("failed to free unlinked node %s", n.Pointer)
	}
}
