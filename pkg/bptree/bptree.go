// Package bptree implements a B+ tree index over fixed-size node slots kept
// by a storage.Manager. One Tree serves every table of its key and value
// types; each table has its own root.
//
// A Tree performs no locking. Mutations of one table must be serialized by
// the caller, reads of distinct nodes may run concurrently.
package bptree

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go-bpindex/pkg/customerrors"
	"go-bpindex/pkg/node"
	"go-bpindex/pkg/pointer"
	"go-bpindex/pkg/storage"
	"go-bpindex/pkg/types"
	"go-bpindex/util/logger"
	"go-bpindex/util/stl"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Tree[K, V any] struct {
	format  *node.Format[K, V]
	storage storage.Manager
	opts    Options
	log     logrus.FieldLogger

	registered sync.Map
}

// frame is one step of a descent: an internal node and the index of the
// child taken.
type frame[K, V any] struct {
	n   *node.Node[K, V]
	idx int
}

func New[K, V any](
	storage storage.Manager,
	keys types.Codec[K],
	values types.Codec[V],
	opts Options,
) (*Tree[K, V], error) {
	format, err := node.NewFormat(opts.Degree, keys, values)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create node format")
	}
	if opts.Logger == nil {
		opts.Logger = logger.L
	}

	return &Tree[K, V]{
		format:  format,
		storage: storage,
		opts:    opts,
		log:     opts.Logger.WithField("index", keys.Name()+"->"+values.Name()),
	}, nil
}

// Format returns the node layout of the tree.
func (t *Tree[K, V]) Format() *node.Format[K, V] {
	return t.format
}

// Get returns the value stored under key.
func (t *Tree[K, V]) Get(ctx context.Context, table int, key K) (V, bool, error) {
	var zero V
	if err := t.register(table); err != nil {
		return zero, false, err
	}

	root, err := t.root(ctx, table)
	if err != nil || root == nil {
		return zero, false, err
	}

	leaf, err := t.descend(ctx, table, root, key, nil)
	if err != nil {
		return zero, false, err
	}

	idx, found := leaf.Search(key)
	if !found {
		return zero, false, nil
	}
	val, err := leaf.ValueAt(idx)
	return val, err == nil, err
}

// Size counts the entries of table by walking the leaf chain.
func (t *Tree[K, V]) Size(ctx context.Context, table int) (int, error) {
	it, err := t.Iterator(ctx, table, Asc)
	if err != nil {
		return 0, err
	}

	size := 0
	for it.Next() {
		size++
	}
	return size, it.Err()
}

// Dump writes the tree level by level, one line per level.
func (t *Tree[K, V]) Dump(ctx context.Context, table int, w io.Writer) error {
	if err := t.register(table); err != nil {
		return err
	}

	root, err := t.root(ctx, table)
	if err != nil || root == nil {
		return err
	}

	level := []*node.Node[K, V]{root}
	for len(level) > 0 {
		next := []*node.Node[K, V]{}
		for _, n := range level {
			if n.IsLeaf() {
				keys, _ := n.Entries()
				fmt.Fprintf(w, "%v ", keys)
				continue
			}

			fmt.Fprintf(w, "%v ", n.Keys())
			for _, ptr := range n.Children() {
				child, err := t.read(ctx, table, ptr)
				if err != nil {
					return err
				}
				next = append(next, child)
			}
		}
		fmt.Fprintln(w)
		level = next
	}
	return nil
}

func (t *Tree[K, V]) register(table int) error {
	if _, ok := t.registered.Load(table); ok {
		return nil
	}
	if err := t.storage.Register(table, t.format.Size()); err != nil {
		return errors.Wrapf(err, "failed to register table %d", table)
	}
	t.registered.Store(table, struct{}{})
	return nil
}

func (t *Tree[K, V]) validate(key K, val V) error {
	if _, err := t.format.Keys.Encode(key); err != nil {
		return errors.Wrap(err, "invalid key")
	}
	if _, err := t.format.Values.Encode(val); err != nil {
		return errors.Wrap(err, "invalid value")
	}
	return nil
}

func (t *Tree[K, V]) root(ctx context.Context, table int) (*node.Node[K, V], error) {
	nd, err := t.storage.GetRoot(ctx, table)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get root of table %d", table)
	}
	if nd == nil {
		return nil, nil
	}
	return t.format.Parse(nd.Pointer, nd.Bytes)
}

func (t *Tree[K, V]) read(ctx context.Context, table int, ptr pointer.Pointer) (*node.Node[K, V], error) {
	if ptr.IsEmpty() {
		return nil, errors.Wrap(customerrors.ErrCorruptNode, "dangling child pointer")
	}
	nd, err := t.storage.ReadNode(ctx, table, ptr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read node")
	}
	return t.format.Parse(nd.Pointer, nd.Bytes)
}

func (t *Tree[K, V]) save(ctx context.Context, table int, nodes ...*node.Node[K, V]) error {
	for _, n := range nodes {
		if err := t.storage.UpdateNode(ctx, table, n.Data, n.Pointer, n.IsRoot()); err != nil {
			return errors.Wrap(err, "failed to write node")
		}
	}
	return nil
}

// create writes n to a new slot and sets its pointer.
func (t *Tree[K, V]) create(ctx context.Context, table int, n *node.Node[K, V]) error {
	nd, err := t.storage.WriteNewNode(ctx, table, n.Data, n.IsRoot())
	if err != nil {
		return errors.Wrap(err, "failed to write new node")
	}
	n.Pointer = nd.Pointer
	return nil
}

func (t *Tree[K, V]) remove(ctx context.Context, table int, n *node.Node[K, V]) error {
	return errors.Wrap(t.storage.RemoveNode(ctx, table, n.Pointer), "failed to remove node")
}

// descend walks from n down to the leaf that may hold key. A key equal to
// separator i continues in child i+1. Visited internal nodes are pushed to
// path when it is not nil.
func (t *Tree[K, V]) descend(
	ctx context.Context,
	table int,
	n *node.Node[K, V],
	key K,
	path *stl.Stack[frame[K, V]],
) (*node.Node[K, V], error) {
	for !n.IsLeaf() {
		idx, found := n.Search(key)
		if found {
			idx++
		}

		child, err := n.ChildAt(idx)
		if err != nil {
			return nil, err
		}
		if path != nil {
			path.Push(frame[K, V]{n: n, idx: idx})
		}
		if n, err = t.read(ctx, table, child); err != nil {
			return nil, err
		}
	}
	return n, nil
}
