// Package engine wires the index stack together: header registry, file handle
// pool, file storage, node cache and the trees built on top of them.
package engine

import (
	"context"
	"path/filepath"
	"sync"

	"go-bpindex/config"
	"go-bpindex/pkg/bptree"
	"go-bpindex/pkg/cache"
	"go-bpindex/pkg/customerrors"
	"go-bpindex/pkg/header"
	"go-bpindex/pkg/index"
	"go-bpindex/pkg/pool"
	"go-bpindex/pkg/storage"
	"go-bpindex/pkg/types"
	"go-bpindex/util/helpers"
	"go-bpindex/util/logger"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const headerFile = "header.json"

type Engine struct {
	cfg    *config.EngineConfig
	log    *logrus.Logger
	header *header.File
	pool   *pool.Pool
	cache  *cache.Manager

	storage storage.Manager
	Types   *types.Registry

	mu      sync.Mutex
	closers []func()
	closed  bool
}

// Open validates cfg and opens the engine rooted at cfg.BaseDir.
func Open(cfg *config.EngineConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid engine config")
	}

	log, err := logger.Parse(cfg.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "invalid log level")
	}

	if err := helpers.CreateDir(cfg.BaseDir); err != nil {
		return nil, customerrors.IO(err, "failed to create base dir")
	}

	hdr, err := header.OpenFile(filepath.Join(cfg.BaseDir, headerFile))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open header")
	}

	poolOpts := pool.Options{
		AcquireTimeout: cfg.AcquireTimeout,
		CloseTimeout:   cfg.CloseTimeout,
		Logger:         log,
	}
	if cfg.PoolPolicy == config.PoolBounded {
		poolOpts.MaxOpen = cfg.MaxOpenFiles
	}
	p := pool.New(poolOpts)

	fm, err := storage.New(storage.Options{
		Dir:             cfg.BaseDir,
		Layout:          storage.Layout(cfg.Layout),
		GrowthNodeCount: cfg.GrowthNodeCount,
		MaxChunkSize:    cfg.MaxChunkSize,
		ReclaimScan:     storage.ReclaimScan(cfg.ReclaimScan),
		Logger:          log,
	}, hdr, p)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create storage")
	}

	e := &Engine{
		cfg:     cfg,
		log:     log,
		header:  hdr,
		pool:    p,
		storage: fm,
		Types:   types.NewRegistry(),
	}

	if cfg.CacheSize > 0 {
		c, err := cache.New(fm, cache.Options{MaxNodes: cfg.CacheSize})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create node cache")
		}
		e.cache = c
		e.storage = c
	}

	log.WithFields(logrus.Fields{
		"dir":    cfg.BaseDir,
		"layout": cfg.Layout,
		"degree": cfg.Degree,
		"cache":  cfg.CacheSize,
	}).Info("engine opened")
	return e, nil
}

// Storage returns the node store every index of the engine shares.
func (e *Engine) Storage() storage.Manager {
	return e.storage
}

func NewIndex[K, V any](e *Engine, keys types.Codec[K], values types.Codec[V], unique bool) (*bptree.Tree[K, V], error) {
	return bptree.New(e.storage, keys, values, bptree.Options{
		Degree: e.cfg.Degree,
		Unique: unique,
		Logger: e.log,
	})
}

// NewIndexByName resolves the key and value codecs by their registered names,
// e.g. "long" or "char(16)".
func NewIndexByName[K, V any](e *Engine, keyType, valueType string, unique bool) (*bptree.Tree[K, V], error) {
	keys, err := types.Lookup[K](e.Types, keyType)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve key codec")
	}
	values, err := types.Lookup[V](e.Types, valueType)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve value codec")
	}
	return NewIndex(e, keys, values, unique)
}

// decorate puts the lookup cache in front of tree when one is configured.
func decorate[K, V any](e *Engine, tree *bptree.Tree[K, V]) (index.Manager[K, V], error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, customerrors.ErrClosed
	}
	if e.cfg.LookupCacheSize == 0 {
		return tree, nil
	}

	c, err := index.NewCached[K, V](tree, tree.Format().Keys, e.cfg.LookupCacheSize)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, c.Close)
	return c, nil
}

// NewAsyncIndex decorates tree with per table worker queues. The decorator is
// closed together with the engine.
func NewAsyncIndex[K, V any](e *Engine, tree *bptree.Tree[K, V]) (*index.TableLevelAsync[K, V], error) {
	inner, err := decorate(e, tree)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, customerrors.ErrClosed
	}

	a := index.NewTableLevelAsync[K, V](inner, e.log)
	// drained before the lookup cache below it is closed
	e.closers = append([]func(){a.Close}, e.closers...)
	return a, nil
}

// NewLockedIndex guards tree with per table or database wide locks depending
// on the configured lock scope.
func NewLockedIndex[K, V any](e *Engine, tree *bptree.Tree[K, V]) (*index.Locked[K, V], error) {
	inner, err := decorate(e, tree)
	if err != nil {
		return nil, err
	}
	if e.cfg.LockScope == config.LockDatabase {
		return index.NewDBLocked[K, V](inner), nil
	}
	return index.NewLocked[K, V](inner), nil
}

// Close drains async indexes, then releases the cache, every open file and
// the header.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	closers := e.closers
	e.closers = nil
	e.mu.Unlock()

	for _, c := range closers {
		c()
	}
	if e.cache != nil {
		e.cache.Close()
	}

	poolErr := e.pool.CloseAll(ctx)
	if err := e.header.Close(); err != nil {
		return errors.Wrap(err, "failed to close header")
	}
	if poolErr != nil {
		return errors.Wrap(poolErr, "failed to close files")
	}

	e.log.Info("engine closed")
	return nil
}
