// Package storage persists fixed-size node slots in chunked index files and
// tracks each table's root node through a header registry.
package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"go-bpindex/pkg/pointer"
)

// NodeData is the raw content of one node slot together with its address.
type NodeData struct {
	Pointer pointer.Pointer
	Bytes   []byte
}

// Manager allocates, reads, writes and frees node slots of tables.
type Manager interface {
	// Register declares the slot size of a table. It must be called before
	// any other operation on the table and may be repeated with the same
	// size.
	Register(table int, nodeSize int) error

	// GetRoot returns the current root node of table, or nil if the table
	// has none.
	GetRoot(ctx context.Context, table int) (*NodeData, error)
	ReadNode(ctx context.Context, table int, ptr pointer.Pointer) (*NodeData, error)
	// WriteNewNode stores data in a free slot and returns its address. With
	// isRoot the slot becomes the table's root.
	WriteNewNode(ctx context.Context, table int, data []byte, isRoot bool) (*NodeData, error)
	UpdateNode(ctx context.Context, table int, data []byte, ptr pointer.Pointer, isRoot bool) error
	// RemoveNode zero fills the slot, making it reusable. It never changes
	// the registered root.
	RemoveNode(ctx context.Context, table int, ptr pointer.Pointer) error
	Exists(ctx context.Context, table int) (bool, error)
	// Purge frees every slot of table.
	Purge(ctx context.Context, table int) error
}

type Layout string

const (
	// Compact interleaves the regions of several tables in one file per
	// chunk.
	Compact Layout = "compact"
	// Extended keeps one file per table and chunk.
	Extended Layout = "extended"
	// Single puts every table in one file that is never split into chunks.
	Single Layout = "single"
)

type ReclaimScan string

const (
	// ReclaimTail scans only the last growth batch of a table's region.
	ReclaimTail ReclaimScan = "tail"
	// ReclaimRegion scans the table's whole region.
	ReclaimRegion ReclaimScan = "region"
)

// fileLayout maps tables and chunks to file paths.
type fileLayout interface {
	path(table int, chunk uint32) string
	// shared reports whether several tables live in one file.
	shared() bool
	// chunked reports whether allocation may spill into the next chunk.
	chunked() bool
}

type compactLayout struct{ dir string }

func (l compactLayout) path(_ int, chunk uint32) string {
	return filepath.Join(l.dir, fmt.Sprintf("index.%d", chunk))
}
func (compactLayout) shared() bool  { return true }
func (compactLayout) chunked() bool { return true }

type extendedLayout struct{ dir string }

func (l extendedLayout) path(table int, chunk uint32) string {
	return filepath.Join(l.dir, fmt.Sprintf("index-%d.%d", table, chunk))
}
func (extendedLayout) shared() bool  { return false }
func (extendedLayout) chunked() bool { return true }

type singleLayout struct{ dir string }

func (l singleLayout) path(int, uint32) string {
	return filepath.Join(l.dir, "index.bin")
}
func (singleLayout) shared() bool  { return true }
func (singleLayout) chunked() bool { return false }
