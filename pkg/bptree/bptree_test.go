package bptree

import (
	"bytes"
	"context"
	"math/rand"
	"testing"

	"go-bpindex/pkg/cache"
	"go-bpindex/pkg/customerrors"
	"go-bpindex/pkg/header"
	"go-bpindex/pkg/node"
	"go-bpindex/pkg/pool"
	"go-bpindex/pkg/storage"
	"go-bpindex/pkg/types"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const table = 1

func newStorage(t *testing.T, layout storage.Layout, cached bool) storage.Manager {
	ctx := context.Background()
	p := pool.New(pool.Options{})
	t.Cleanup(func() { p.CloseAll(ctx) })

	fm, err := storage.New(storage.Options{
		Dir:             t.TempDir(),
		Layout:          layout,
		GrowthNodeCount: 4,
	}, header.NewMemory(), p)
	require.NoError(t, err)
	if !cached {
		return fm
	}

	c, err := cache.New(fm, cache.Options{MaxNodes: 64})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func newTree(t *testing.T, degree int, unique bool) *Tree[int32, int32] {
	tree, err := New[int32, int32](newStorage(t, storage.Compact, false), types.Int32(), types.Int32(), Options{
		Degree: degree,
		Unique: unique,
	})
	require.NoError(t, err)
	return tree
}

func collect(t *testing.T, tree *Tree[int32, int32], tbl int, order Order) []int32 {
	it, err := tree.Iterator(context.Background(), tbl, order)
	require.NoError(t, err)

	keys := []int32{}
	for it.Next() {
		require.Equal(t, it.Key()*10, it.Value())
		keys = append(keys, it.Key())
	}
	require.NoError(t, it.Err())
	return keys
}

func seq(from, to int32) []int32 {
	s := []int32{}
	if from <= to {
		for i := from; i <= to; i++ {
			s = append(s, i)
		}
	} else {
		for i := from; i >= to; i-- {
			s = append(s, i)
		}
	}
	return s
}

func TestOrderedTraversal(t *testing.T) {
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(7))

	for _, degree := range []int{3, 4, 5, 8} {
		tree := newTree(t, degree, true)
		const n = 300

		for _, k := range rnd.Perm(n) {
			leaf, err := tree.Add(ctx, table, int32(k), int32(k)*10)
			require.NoError(t, err)
			idx, found := leaf.Search(int32(k))
			require.True(t, found, "degree %d key %d", degree, k)
			v, err := leaf.ValueAt(idx)
			require.NoError(t, err)
			require.Equal(t, int32(k)*10, v)
		}
		require.NoError(t, tree.Verify(ctx, table))

		require.Equal(t, seq(0, n-1), collect(t, tree, table, Asc))
		require.Equal(t, seq(n-1, 0), collect(t, tree, table, Desc))

		size, err := tree.Size(ctx, table)
		require.NoError(t, err)
		require.Equal(t, n, size)
	}
}

func TestZeroKeys(t *testing.T) {
	ctx := context.Background()
	tree := newTree(t, 4, true)

	_, err := tree.Add(ctx, table, 0, 0)
	require.NoError(t, err)
	v, ok, err := tree.Get(ctx, table, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(0), v)

	nz, err := New[int64, int64](newStorage(t, storage.Compact, false), types.NoZeroInt64(), types.NoZeroInt64(), Options{Degree: 4})
	require.NoError(t, err)
	_, err = nz.Add(ctx, table, 0, 1)
	require.ErrorIs(t, err, customerrors.ErrInvalidEncoding)
	_, err = nz.Add(ctx, table, 1, 0)
	require.ErrorIs(t, err, customerrors.ErrInvalidEncoding)

	_, err = nz.Add(ctx, table, 1, 1)
	require.NoError(t, err)
	size, err := nz.Size(ctx, table)
	require.NoError(t, err)
	require.Equal(t, 1, size)
}

func TestRemoveTwice(t *testing.T) {
	ctx := context.Background()
	tree := newTree(t, 4, true)

	for _, k := range seq(1, 20) {
		_, err := tree.Add(ctx, table, k, k*10)
		require.NoError(t, err)
	}

	ok, err := tree.Remove(ctx, table, 7)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = tree.Remove(ctx, table, 7)
	require.NoError(t, err)
	require.False(t, ok)

	_, found, err := tree.Get(ctx, table, 7)
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, tree.Verify(ctx, table))

	ok, err = tree.Remove(ctx, 2, 7)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDuplicateKey(t *testing.T) {
	ctx := context.Background()

	unique := newTree(t, 4, true)
	_, err := unique.Add(ctx, table, 5, 50)
	require.NoError(t, err)
	_, err = unique.Add(ctx, table, 5, 51)
	require.ErrorIs(t, err, customerrors.ErrDuplicateKey)

	upsert := newTree(t, 4, false)
	_, err = upsert.Add(ctx, table, 5, 50)
	require.NoError(t, err)
	_, err = upsert.Add(ctx, table, 5, 51)
	require.NoError(t, err)
	v, ok, err := upsert.Get(ctx, table, 5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(51), v)
}

func TestLeafSplit(t *testing.T) {
	ctx := context.Background()
	tree := newTree(t, 4, true)

	for _, k := range seq(1, 4) {
		_, err := tree.Add(ctx, table, k, k*10)
		require.NoError(t, err)
	}

	root, err := tree.root(ctx, table)
	require.NoError(t, err)
	require.False(t, root.IsLeaf())
	require.True(t, root.IsRoot())
	require.Equal(t, []int32{3}, root.Keys())

	children := root.Children()
	left, err := tree.read(ctx, table, children[0])
	require.NoError(t, err)
	right, err := tree.read(ctx, table, children[1])
	require.NoError(t, err)

	lk, _ := left.Entries()
	rk, _ := right.Entries()
	require.Equal(t, []int32{1, 2}, lk)
	require.Equal(t, []int32{3, 4}, rk)
	require.Equal(t, right.Pointer, left.Next())
	require.Equal(t, left.Pointer, right.Prev())
	require.False(t, left.IsRoot())
}

// fixture builds the tree of keys 1..12 at degree 4:
//
//	         [7]
//	   [3 5]       [9 11]
//	[1 2][3 4][5 6][7 8][9 10][11 12]
func fixture(t *testing.T) *Tree[int32, int32] {
	ctx := context.Background()
	tree := newTree(t, 4, true)
	for _, k := range seq(1, 12) {
		_, err := tree.Add(ctx, table, k, k*10)
		require.NoError(t, err)
	}
	return tree
}

func dump(t *testing.T, tree *Tree[int32, int32]) string {
	buf := &bytes.Buffer{}
	require.NoError(t, tree.Dump(context.Background(), table, buf))
	return buf.String()
}

func TestFixture(t *testing.T) {
	tree := fixture(t)
	require.NoError(t, tree.Verify(context.Background(), table))
	require.Equal(t,
		"[7] \n"+
			"[3 5] [9 11] \n"+
			"[1 2] [3 4] [5 6] [7 8] [9 10] [11 12] \n",
		dump(t, tree),
	)
}

func TestFixtureRemoval(t *testing.T) {
	ctx := context.Background()

	for name, order := range map[string][]int32{
		"left to right": seq(1, 11),
		"right to left": seq(12, 2),
	} {
		tree := fixture(t)
		remaining := map[int32]bool{}
		for _, k := range seq(1, 12) {
			remaining[k] = true
		}

		for _, k := range order {
			ok, err := tree.Remove(ctx, table, k)
			require.NoError(t, err, name)
			require.True(t, ok, name)
			delete(remaining, k)
			require.NoError(t, tree.Verify(ctx, table), "%s after removing %d:\n%s", name, k, dump(t, tree))

			for r := range remaining {
				v, found, err := tree.Get(ctx, table, r)
				require.NoError(t, err)
				require.True(t, found, "%s lost %d after removing %d", name, r, k)
				require.Equal(t, r*10, v)
			}
		}

		root, err := tree.root(ctx, table)
		require.NoError(t, err)
		require.True(t, root.IsLeaf(), name)
		require.True(t, root.IsRoot(), name)
		keys, _ := root.Entries()
		require.Len(t, keys, 1, name)
		require.True(t, remaining[keys[0]], name)
	}
}

func TestFixtureIntermediateShapes(t *testing.T) {
	ctx := context.Background()
	tree := fixture(t)

	// leaf [1 2] underflows, [3 4] has no spare entry: merge
	_, err := tree.Remove(ctx, table, 1)
	require.NoError(t, err)
	require.Equal(t,
		"[7] \n"+
			"[5] [9 11] \n"+
			"[2 3 4] [5 6] [7 8] [9 10] [11 12] \n",
		dump(t, tree),
	)

	// [5 6] borrows 4 from its left sibling
	_, err = tree.Remove(ctx, table, 6)
	require.NoError(t, err)
	require.Equal(t,
		"[7] \n"+
			"[4] [9 11] \n"+
			"[2 3] [4 5] [7 8] [9 10] [11 12] \n",
		dump(t, tree),
	)
}

func TestEmptyTree(t *testing.T) {
	ctx := context.Background()
	tree := newTree(t, 4, true)

	_, ok, err := tree.Get(ctx, table, 1)
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, collect(t, tree, table, Asc))
	require.Empty(t, collect(t, tree, table, Desc))
	require.NoError(t, tree.Verify(ctx, table))

	_, err = tree.Add(ctx, table, 1, 10)
	require.NoError(t, err)
	ok, err = tree.Remove(ctx, table, 1)
	require.NoError(t, err)
	require.True(t, ok)

	// the emptied leaf stays as root
	root, err := tree.root(ctx, table)
	require.NoError(t, err)
	require.True(t, root.IsLeaf())
	require.Zero(t, root.KeyCount())
	require.Empty(t, collect(t, tree, table, Asc))
	require.Empty(t, collect(t, tree, table, Desc))
}

func TestRandomOperations(t *testing.T) {
	ctx := context.Background()
	layouts := []storage.Layout{storage.Compact, storage.Extended, storage.Single}

	for i, layout := range layouts {
		for _, cached := range []bool{false, true} {
			rnd := rand.New(rand.NewSource(int64(i + 1)))
			tree, err := New[int32, int32](newStorage(t, layout, cached), types.Int32(), types.Int32(), Options{
				Degree: 3 + i,
				Unique: true,
			})
			require.NoError(t, err)

			model := map[int32]bool{}
			for op := 0; op < 600; op++ {
				k := int32(rnd.Intn(150))
				tbl := 1 + rnd.Intn(2)
				mk := k + int32(tbl)*1000

				if rnd.Intn(3) > 0 {
					_, err := tree.Add(ctx, tbl, k, k*10)
					if model[mk] {
						require.ErrorIs(t, err, customerrors.ErrDuplicateKey)
					} else {
						require.NoError(t, err)
					}
					model[mk] = true
				} else {
					ok, err := tree.Remove(ctx, tbl, k)
					require.NoError(t, err)
					require.Equal(t, model[mk], ok)
					delete(model, mk)
				}
				require.NoError(t, tree.Verify(ctx, tbl), "%s cached=%t op %d", layout, cached, op)
			}

			for _, tbl := range []int{1, 2} {
				want := []int32{}
				for k := int32(0); k < 150; k++ {
					if model[k+int32(tbl)*1000] {
						want = append(want, k)
					}
				}
				require.Equal(t, want, collect(t, tree, tbl, Asc))

				size, err := tree.Size(ctx, tbl)
				require.NoError(t, err)
				require.Equal(t, len(want), size)
			}
		}
	}
}

func TestCorruptRoot(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t, storage.Compact, false)
	tree, err := New[int32, int32](s, types.Int32(), types.Int32(), Options{Degree: 4})
	require.NoError(t, err)

	leaf, err := tree.Add(ctx, table, 1, 10)
	require.NoError(t, err)

	bad := make([]byte, tree.Format().Size())
	bad[0] = node.FlagRoot | node.FlagLeaf | node.FlagInternal
	require.NoError(t, s.UpdateNode(ctx, table, bad, leaf.Pointer, true))

	_, _, err = tree.Get(ctx, table, 1)
	require.ErrorIs(t, err, customerrors.ErrCorruptNode)
	_, err = tree.Add(ctx, table, 2, 20)
	require.ErrorIs(t, err, customerrors.ErrCorruptNode)
}

var errRootWrite = errors.New("root write failed")

// failingRoots fails the next root creation once armed.
type failingRoots struct {
	storage.Manager
	armed bool
}

func (s *failingRoots) WriteNewNode(ctx context.Context, table int, data []byte, isRoot bool) (*storage.NodeData, error) {
	if isRoot && s.armed {
		s.armed = false
		return nil, errRootWrite
	}
	return s.Manager.WriteNewNode(ctx, table, data, isRoot)
}

func TestFailedRootCreationKeepsTree(t *testing.T) {
	ctx := context.Background()
	for _, degree := range []int{3, 4, 5} {
		fs := &failingRoots{Manager: newStorage(t, storage.Compact, false)}
		tree, err := New[int32, int32](fs, types.Int32(), types.Int32(), Options{Degree: degree, Unique: true})
		require.NoError(t, err)

		failures := 0
		for k := int32(1); k <= 60; k++ {
			fs.armed = true
			_, err := tree.Add(ctx, table, k, k*10)
			if err != nil {
				require.ErrorIs(t, err, errRootWrite)
				failures++

				_, ok, err := tree.Get(ctx, table, k)
				require.NoError(t, err)
				require.False(t, ok)
				require.NoError(t, tree.Verify(ctx, table))
				want := []int32{}
				if k > 1 {
					want = seq(1, k-1)
				}
				require.Equal(t, want, collect(t, tree, table, Asc))

				_, err = tree.Add(ctx, table, k, k*10)
				require.NoError(t, err)
			}
			require.NoError(t, tree.Verify(ctx, table))
		}

		// first root, leaf root split and at least one internal root split
		require.GreaterOrEqual(t, failures, 3, "degree %d", degree)
		require.Equal(t, seq(1, 60), collect(t, tree, table, Asc))
	}
}
