package storage

import (
	"context"
	"os"
	"sync"

	"go-bpindex/pkg/customerrors"
	"go-bpindex/pkg/header"
	"go-bpindex/pkg/node"
	"go-bpindex/pkg/pager"
	"go-bpindex/pkg/pointer"
	"go-bpindex/pkg/pool"
	"go-bpindex/util/helpers"
	"go-bpindex/util/logger"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// HandlePool hands out shared file handles.
type HandlePool interface {
	Acquire(ctx context.Context, path string) (*pool.Handle, error)
}

// Options configures a FileManager.
type Options struct {
	Dir    string
	Layout Layout

	// GrowthNodeCount is the number of slots a table's region grows by.
	GrowthNodeCount int

	// MaxChunkSize caps a chunk file's size in bytes, 0 means unlimited.
	MaxChunkSize int64

	ReclaimScan ReclaimScan
	Logger      logrus.FieldLogger
}

// FileManager is the file backed Manager. Slots are addressed relative to
// the start of their table's region in a chunk, so regions can move when a
// preceding table's region grows.
//
// Every file has its own RWMutex: node reads and writes hold it shared,
// allocation and purging hold it exclusively. Under the extended layout a
// file is exactly one (table, chunk).
type FileManager struct {
	opts     Options
	layout   fileLayout
	registry header.Registry
	pool     HandlePool
	log      logrus.FieldLogger

	mu    sync.Mutex
	sizes map[int]int
	locks map[string]*sync.RWMutex
}

func New(opts Options, registry header.Registry, pool HandlePool) (*FileManager, error) {
	if opts.GrowthNodeCount < 1 {
		return nil, errors.Errorf("growth node count must be positive, got %d", opts.GrowthNodeCount)
	}
	if opts.ReclaimScan == "" {
		opts.ReclaimScan = ReclaimTail
	}
	if opts.Logger == nil {
		opts.Logger = logger.L
	}
	if err := helpers.CreateDir(opts.Dir); err != nil {
		return nil, customerrors.IO(err, "failed to create index dir")
	}

	m := &FileManager{
		opts:     opts,
		registry: registry,
		pool:     pool,
		log:      opts.Logger.WithField("layout", opts.Layout),
		sizes:    map[int]int{},
		locks:    map[string]*sync.RWMutex{},
	}

	switch opts.Layout {
	case Compact:
		m.layout = compactLayout{opts.Dir}
	case Extended:
		m.layout = extendedLayout{opts.Dir}
	case Single:
		m.layout = singleLayout{opts.Dir}
	default:
		return nil, errors.Wrapf(customerrors.ErrUnknownLayout, "layout %q", opts.Layout)
	}
	return m, nil
}

func (m *FileManager) Register(table int, nodeSize int) error {
	if nodeSize < 1 {
		return errors.Errorf("invalid node size %d", nodeSize)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if size, ok := m.sizes[table]; ok && size != nodeSize {
		return errors.Errorf("table %d registered with node size %d, got %d", table, size, nodeSize)
	}
	m.sizes[table] = nodeSize
	return nil
}

func (m *FileManager) nodeSize(table int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	size, ok := m.sizes[table]
	if !ok {
		return 0, errors.Errorf("table %d is not registered", table)
	}
	return size, nil
}

func (m *FileManager) lock(path string) *sync.RWMutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[path]
	if !ok {
		l = &sync.RWMutex{}
		m.locks[path] = l
	}
	return l
}

func (m *FileManager) withFile(ctx context.Context, path string, fn func(f *os.File) error) (err error) {
	h, err := m.pool.Acquire(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := h.Release(); err == nil {
			err = rerr
		}
	}()
	return fn(h.File())
}

// slot resolves ptr to a file path and absolute offset, and holds the file's
// shared lock until the returned unlock is called.
func (m *FileManager) slot(table int, ptr pointer.Pointer) (string, int64, func(), error) {
	path := m.layout.path(table, ptr.Chunk)
	l := m.lock(path)
	l.RLock()

	start, ok := m.registry.Region(table, ptr.Chunk)
	if !ok {
		l.RUnlock()
		return "", 0, nil, errors.Wrapf(customerrors.ErrNotFound, "table %d has no region in chunk %d", table, ptr.Chunk)
	}
	return path, start + int64(ptr.Position), l.RUnlock, nil
}

func (m *FileManager) GetRoot(ctx context.Context, table int) (*NodeData, error) {
	loc, ok := m.registry.Root(table)
	if !ok {
		return nil, nil
	}

	nd, err := m.ReadNode(ctx, table, pointer.Node(loc.Chunk, loc.Position))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read root")
	}
	// purged tables keep their root location but the slot is free
	if node.IsFree(nd.Bytes[0]) {
		return nil, nil
	}
	return nd, nil
}

func (m *FileManager) ReadNode(ctx context.Context, table int, ptr pointer.Pointer) (*NodeData, error) {
	size, err := m.nodeSize(table)
	if err != nil {
		return nil, err
	}

	path, off, unlock, err := m.slot(table, ptr)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var data []byte
	err = m.withFile(ctx, path, func(f *os.File) (err error) {
		data, err = pager.Read(f, off, size)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read node %s of table %d", ptr, table)
	}
	return &NodeData{Pointer: ptr, Bytes: data}, nil
}

func (m *FileManager) WriteNewNode(ctx context.Context, table int, data []byte, isRoot bool) (*NodeData, error) {
	if err := m.checkSize(table, data); err != nil {
		return nil, err
	}

	ptr, err := m.allocate(ctx, table, data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to allocate node for table %d", table)
	}
	if isRoot {
		if err := m.setRoot(table, ptr); err != nil {
			return nil, err
		}
	}
	return &NodeData{Pointer: ptr, Bytes: data}, nil
}

func (m *FileManager) UpdateNode(ctx context.Context, table int, data []byte, ptr pointer.Pointer, isRoot bool) error {
	if err := m.checkSize(table, data); err != nil {
		return err
	}
	if err := m.write(ctx, table, ptr, data); err != nil {
		return errors.Wrapf(err, "failed to update node %s of table %d", ptr, table)
	}
	if isRoot {
		return m.setRoot(table, ptr)
	}
	return nil
}

func (m *FileManager) RemoveNode(ctx context.Context, table int, ptr pointer.Pointer) error {
	size, err := m.nodeSize(table)
	if err != nil {
		return err
	}
	if err := m.write(ctx, table, ptr, make([]byte, size)); err != nil {
		return errors.Wrapf(err, "failed to remove node %s of table %d", ptr, table)
	}
	return nil
}

func (m *FileManager) Exists(ctx context.Context, table int) (bool, error) {
	root, err := m.GetRoot(ctx, table)
	if err != nil {
		return false, err
	}
	return root != nil, nil
}

func (m *FileManager) Purge(ctx context.Context, table int) error {
	for _, chunk := range m.registry.Chunks(table) {
		if err := m.purgeChunk(ctx, table, chunk); err != nil {
			return errors.Wrapf(err, "failed to purge table %d", table)
		}
	}
	m.log.WithField("table", table).Debug("purged table")
	return nil
}

func (m *FileManager) purgeChunk(ctx context.Context, table int, chunk uint32) error {
	path := m.layout.path(table, chunk)
	l := m.lock(path)
	l.Lock()
	defer l.Unlock()

	return m.withFile(ctx, path, func(f *os.File) error {
		size, err := pager.Size(f)
		if err != nil {
			return err
		}
		start, _ := m.registry.Region(table, chunk)
		end := m.regionEnd(table, chunk, start, size)
		return pager.Write(f, start, make([]byte, end-start))
	})
}

func (m *FileManager) write(ctx context.Context, table int, ptr pointer.Pointer, data []byte) error {
	path, off, unlock, err := m.slot(table, ptr)
	if err != nil {
		return err
	}
	defer unlock()

	return m.withFile(ctx, path, func(f *os.File) error {
		return pager.Write(f, off, data)
	})
}

func (m *FileManager) setRoot(table int, ptr pointer.Pointer) error {
	loc := header.Location{Chunk: ptr.Chunk, Position: ptr.Position}
	if err := m.registry.SetRoot(table, loc); err != nil {
		m.log.WithError(err).WithField("table", table).Warn("failed to record root")
		return errors.Wrapf(err, "failed to set root of table %d", table)
	}
	return nil
}

func (m *FileManager) checkSize(table int, data []byte) error {
	size, err := m.nodeSize(table)
	if err != nil {
		return err
	}
	if len(data) != size {
		return errors.Errorf("node of table %d must have %d bytes, got %d", table, size, len(data))
	}
	return nil
}
