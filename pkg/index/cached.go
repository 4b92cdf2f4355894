package index

import (
	"context"
	"strconv"
	"sync"

	"go-bpindex/pkg/bptree"
	"go-bpindex/pkg/node"
	"go-bpindex/pkg/types"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/pkg/errors"
)

// Cached keeps recently read and written values and the per table entry
// counts in memory. It does no locking of its own: a mutation of a table must
// not overlap any other operation of that table, e.g. run it under
// TableLevelAsync or Locked.
type Cached[K, V any] struct {
	inner Manager[K, V]
	keys  types.Codec[K]
	cache *ristretto.Cache[string, V]

	mu    sync.Mutex
	sizes map[int]int
}

func NewCached[K, V any](inner Manager[K, V], keys types.Codec[K], maxEntries int64) (*Cached[K, V], error) {
	if maxEntries < 1 {
		return nil, errors.Errorf("lookup cache needs a positive size, got %d", maxEntries)
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create lookup cache")
	}

	return &Cached[K, V]{
		inner: inner,
		keys:  keys,
		cache: cache,
		sizes: map[int]int{},
	}, nil
}

func (c *Cached[K, V]) cacheKey(table int, key K) (string, error) {
	b, err := c.keys.Encode(key)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(table) + ":" + string(b), nil
}

func (c *Cached[K, V]) adjustSize(table, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.sizes[table]; ok {
		c.sizes[table] = n + delta
	}
}

func (c *Cached[K, V]) Add(ctx context.Context, table int, key K, val V) (*node.Node[K, V], error) {
	k, err := c.cacheKey(table, key)
	if err != nil {
		return nil, errors.Wrap(err, "invalid key")
	}

	c.mu.Lock()
	_, counted := c.sizes[table]
	c.mu.Unlock()

	existed := false
	if counted {
		if _, existed, err = c.Get(ctx, table, key); err != nil {
			return nil, err
		}
	}

	leaf, err := c.inner.Add(ctx, table, key, val)
	if err != nil {
		return nil, err
	}
	c.cache.Del(k)
	c.cache.Set(k, val, 1)
	c.cache.Wait()
	if !existed {
		c.adjustSize(table, 1)
	}
	return leaf, nil
}

func (c *Cached[K, V]) Get(ctx context.Context, table int, key K) (V, bool, error) {
	k, err := c.cacheKey(table, key)
	if err != nil {
		var zero V
		return zero, false, errors.Wrap(err, "invalid key")
	}
	if val, ok := c.cache.Get(k); ok {
		return val, true, nil
	}

	val, ok, err := c.inner.Get(ctx, table, key)
	if err != nil || !ok {
		return val, ok, err
	}
	c.cache.Set(k, val, 1)
	c.cache.Wait()
	return val, true, nil
}

func (c *Cached[K, V]) Remove(ctx context.Context, table int, key K) (bool, error) {
	k, err := c.cacheKey(table, key)
	if err != nil {
		return false, errors.Wrap(err, "invalid key")
	}

	removed, err := c.inner.Remove(ctx, table, key)
	if err != nil {
		c.cache.Del(k)
		return false, err
	}
	if removed {
		c.cache.Del(k)
		c.adjustSize(table, -1)
	}
	return removed, nil
}

// Size counts table once through the inner index and then tracks it.
func (c *Cached[K, V]) Size(ctx context.Context, table int) (int, error) {
	c.mu.Lock()
	n, ok := c.sizes[table]
	c.mu.Unlock()
	if ok {
		return n, nil
	}

	n, err := c.inner.Size(ctx, table)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.sizes[table] = n
	c.mu.Unlock()
	return n, nil
}

func (c *Cached[K, V]) Iterator(ctx context.Context, table int, order bptree.Order) (*bptree.Iterator[K, V], error) {
	return c.inner.Iterator(ctx, table, order)
}

func (c *Cached[K, V]) Close() {
	c.cache.Close()
}
