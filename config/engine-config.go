package config

import (
	"time"

	"github.com/pkg/errors"
)

const (
	LayoutCompact  = "compact"
	LayoutExtended = "extended"
	LayoutSingle   = "single"

	PoolUnbounded = "unbounded"
	PoolBounded   = "bounded"

	ReclaimTail   = "tail"
	ReclaimRegion = "region"

	LockTable    = "table"
	LockDatabase = "database"
)

// EngineConfig holds the process wide settings of the index engine.
type EngineConfig struct {
	// BaseDir is the directory holding index files and the header registry.
	BaseDir string `json:"base_dir"`

	// Degree is the max number of children of an internal node. Nodes hold
	// at most Degree-1 keys.
	Degree int `json:"degree"`

	// GrowthNodeCount is the number of node slots added to a table's region
	// each time it runs out of free slots.
	GrowthNodeCount int `json:"growth_node_count"`

	// MaxChunkSize caps the size of one chunk file in bytes, 0 means
	// unlimited. Ignored by the single file layout.
	MaxChunkSize int64 `json:"max_chunk_size"`

	// Layout is one of compact, extended or single.
	Layout string `json:"layout"`

	PoolPolicy     string        `json:"pool_policy"`
	MaxOpenFiles   int64         `json:"max_open_files"`
	AcquireTimeout time.Duration `json:"acquire_timeout"`
	CloseTimeout   time.Duration `json:"close_timeout"`

	// CacheSize is the number of nodes kept by the caching decorator,
	// 0 disables caching.
	CacheSize int64 `json:"cache_size"`

	// ReclaimScan selects which slots the allocator scans for reuse: the last
	// growth batch of the table's region (tail) or the whole region.
	ReclaimScan string `json:"reclaim_scan"`

	// LockScope selects whether locked indexes guard each table separately
	// or the whole database with one lock.
	LockScope string `json:"lock_scope"`

	// LookupCacheSize is the number of key lookups cached per decorated
	// index, 0 disables the lookup cache.
	LookupCacheSize int64 `json:"lookup_cache_size"`

	LogLevel string `json:"log_level"`
}

func NewEngineConfig() *EngineConfig {
	return &EngineConfig{
		BaseDir:         "data",
		Degree:          4,
		GrowthNodeCount: 10,
		Layout:          LayoutCompact,
		PoolPolicy:      PoolUnbounded,
		MaxOpenFiles:    64,
		AcquireTimeout:  5 * time.Second,
		CloseTimeout:    10 * time.Second,
		CacheSize:       1024,
		ReclaimScan:     ReclaimTail,
		LockScope:       LockTable,
		LogLevel:        "info",
	}
}

func (c *EngineConfig) Validate() error {
	if c.BaseDir == "" {
		return errors.New("base dir is required")
	}
	if c.Degree < 3 {
		return errors.Errorf("degree must be at least 3, got %d", c.Degree)
	}
	if c.GrowthNodeCount < 1 {
		return errors.Errorf("growth node count must be positive, got %d", c.GrowthNodeCount)
	}
	if c.MaxChunkSize < 0 {
		return errors.Errorf("max chunk size must not be negative, got %d", c.MaxChunkSize)
	}

	switch c.Layout {
	case LayoutCompact, LayoutExtended, LayoutSingle:
	default:
		return errors.Errorf("unknown layout %q", c.Layout)
	}

	switch c.PoolPolicy {
	case PoolUnbounded:
	case PoolBounded:
		if c.MaxOpenFiles < 1 {
			return errors.New("bounded pool needs max open files")
		}
	default:
		return errors.Errorf("unknown pool policy %q", c.PoolPolicy)
	}

	switch c.ReclaimScan {
	case ReclaimTail, ReclaimRegion:
	default:
		return errors.Errorf("unknown reclaim scan %q", c.ReclaimScan)
	}

	switch c.LockScope {
	case LockTable, LockDatabase:
	default:
		return errors.Errorf("unknown lock scope %q", c.LockScope)
	}
	if c.LookupCacheSize < 0 {
		return errors.Errorf("lookup cache size must not be negative, got %d", c.LookupCacheSize)
	}
	return nil
}
