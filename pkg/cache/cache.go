// Package cache decorates a storage.Manager with a bounded node cache and a
// root pointer cache.
package cache

import (
	"context"
	"strconv"
	"sync"

	"go-bpindex/pkg/node"
	"go-bpindex/pkg/pointer"
	"go-bpindex/pkg/storage"
	"go-bpindex/util/helpers"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/pkg/errors"
)

// Options configures the caching decorator.
type Options struct {
	// MaxNodes is the number of node buffers kept in memory.
	MaxNodes int64
}

// Manager is a write-through cache over a storage.Manager. Writes always
// reach the underlying manager before the cache is touched, so the store
// stays authoritative.
type Manager struct {
	storage.Manager

	nodes *ristretto.Cache[string, []byte]

	mu    sync.Mutex
	roots map[int]pointer.Pointer
}

func New(delegate storage.Manager, opts Options) (*Manager, error) {
	if opts.MaxNodes < 1 {
		return nil, errors.Errorf("cache needs a positive size, got %d", opts.MaxNodes)
	}

	nodes, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters:        opts.MaxNodes * 10,
		MaxCost:            opts.MaxNodes,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create node cache")
	}

	return &Manager{
		Manager: delegate,
		nodes:   nodes,
		roots:   map[int]pointer.Pointer{},
	}, nil
}

func key(table int, ptr pointer.Pointer) string {
	return strconv.Itoa(table) + ":" + strconv.FormatUint(uint64(ptr.Chunk), 10) + ":" + strconv.FormatUint(ptr.Position, 10)
}

func (c *Manager) put(table int, nd *storage.NodeData) {
	k := key(table, nd.Pointer)
	c.nodes.Del(k)
	c.nodes.Set(k, helpers.Clone(nd.Bytes), 1)
	c.nodes.Wait()
}

func (c *Manager) setRoot(table int, ptr pointer.Pointer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roots[table] = ptr
}

func (c *Manager) GetRoot(ctx context.Context, table int) (*storage.NodeData, error) {
	c.mu.Lock()
	ptr, ok := c.roots[table]
	c.mu.Unlock()

	if ok {
		nd, err := c.ReadNode(ctx, table, ptr)
		if err != nil {
			return nil, err
		}
		if node.IsFree(nd.Bytes[0]) {
			return nil, nil
		}
		return nd, nil
	}

	nd, err := c.Manager.GetRoot(ctx, table)
	if err != nil || nd == nil {
		return nd, err
	}
	c.setRoot(table, nd.Pointer)
	c.put(table, nd)
	return nd, nil
}

func (c *Manager) ReadNode(ctx context.Context, table int, ptr pointer.Pointer) (*storage.NodeData, error) {
	if data, ok := c.nodes.Get(key(table, ptr)); ok {
		return &storage.NodeData{Pointer: ptr, Bytes: helpers.Clone(data)}, nil
	}

	nd, err := c.Manager.ReadNode(ctx, table, ptr)
	if err != nil {
		return nil, err
	}
	c.put(table, nd)
	return nd, nil
}

func (c *Manager) WriteNewNode(ctx context.Context, table int, data []byte, isRoot bool) (*storage.NodeData, error) {
	nd, err := c.Manager.WriteNewNode(ctx, table, data, isRoot)
	if err != nil {
		return nil, err
	}
	c.put(table, nd)
	if isRoot {
		c.setRoot(table, nd.Pointer)
	}
	return nd, nil
}

func (c *Manager) UpdateNode(ctx context.Context, table int, data []byte, ptr pointer.Pointer, isRoot bool) error {
	if err := c.Manager.UpdateNode(ctx, table, data, ptr, isRoot); err != nil {
		c.nodes.Del(key(table, ptr))
		return err
	}
	c.put(table, &storage.NodeData{Pointer: ptr, Bytes: data})
	if isRoot {
		c.setRoot(table, ptr)
	}
	return nil
}

func (c *Manager) RemoveNode(ctx context.Context, table int, ptr pointer.Pointer) error {
	if err := c.Manager.RemoveNode(ctx, table, ptr); err != nil {
		return err
	}
	c.nodes.Del(key(table, ptr))
	return nil
}

func (c *Manager) Exists(ctx context.Context, table int) (bool, error) {
	root, err := c.GetRoot(ctx, table)
	return root != nil, err
}

func (c *Manager) Purge(ctx context.Context, table int) error {
	if err := c.Manager.Purge(ctx, table); err != nil {
		return err
	}
	c.nodes.Clear()
	c.mu.Lock()
	delete(c.roots, table)
	c.mu.Unlock()
	return nil
}

// Close releases the cache. The underlying manager is left open.
func (c *Manager) Close() {
	c.nodes.Close()
}
