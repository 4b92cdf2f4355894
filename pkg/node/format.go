// Package node implements the fixed-size binary layout of B+ tree nodes.
//
// Leaf:     [header][(key value) x (degree-1)][prev pointer][next pointer]
// Internal: [header][child][(key child) x (degree-1)]
//
// Both kinds occupy Format.Size() bytes on disk; unused trailing slots are
// zero filled and detected through the key codec's IsEmpty.
package node

import (
	"go-bpindex/pkg/customerrors"
	"go-bpindex/pkg/pointer"
	"go-bpindex/pkg/types"
	"go-bpindex/util/helpers"

	"github.com/pkg/errors"
)

// header flags
const (
	FlagInternal uint8 = 0x01
	FlagLeaf     uint8 = 0x02
	FlagRoot     uint8 = 0x04
)

// IsFree reports whether header byte h belongs to an unused slot.
func IsFree(h uint8) bool {
	return !helpers.HasFlag(h, FlagLeaf|FlagInternal)
}

// Format describes the node layout of one index: its degree and the codecs
// of keys and values.
type Format[K, V any] struct {
	Degree int
	Keys   types.Codec[K]
	Values types.Codec[V]
}

func NewFormat[K, V any](degree int, keys types.Codec[K], values types.Codec[V]) (*Format[K, V], error) {
	if degree < 3 {
		return nil, errors.Errorf("degree must be at least 3, got %d", degree)
	}
	return &Format[K, V]{Degree: degree, Keys: keys, Values: values}, nil
}

func (f *Format[K, V]) MaxKeys() int {
	return f.Degree - 1
}

// MinLeafKeys is the least number of keys a non-root leaf may hold.
func (f *Format[K, V]) MinLeafKeys() int {
	return helpers.CeilDiv(f.Degree-1, 2)
}

// MinInternalKeys is the least number of keys a non-root internal node may
// hold.
func (f *Format[K, V]) MinInternalKeys() int {
	return helpers.CeilDiv(f.Degree, 2) - 1
}

func (f *Format[K, V]) LeafSize() int {
	return 1 + f.MaxKeys()*(f.Keys.Size()+f.Values.Size()) + 2*pointer.Size
}

func (f *Format[K, V]) InternalSize() int {
	return 1 + pointer.Size + f.MaxKeys()*(f.Keys.Size()+pointer.Size)
}

// Size is the on-disk size of every node slot of this format.
func (f *Format[K, V]) Size() int {
	return helpers.Max(f.LeafSize(), f.InternalSize())
}

func (f *Format[K, V]) NewLeaf() *Node[K, V] {
	return f.newNode(FlagLeaf)
}

func (f *Format[K, V]) NewInternal() *Node[K, V] {
	return f.newNode(FlagInternal)
}

func (f *Format[K, V]) newNode(flag uint8) *Node[K, V] {
	data := make([]byte, f.Size())
	data[0] = flag
	return &Node[K, V]{Data: data, f: f}
}

// Parse wraps data read from ptr into a node view. A header with neither the
// leaf nor the internal flag means the slot is corrupt.
func (f *Format[K, V]) Parse(ptr pointer.Pointer, data []byte) (*Node[K, V], error) {
	if len(data) != f.Size() {
		return nil, errors.Wrapf(customerrors.ErrCorruptNode, "node %s has %d bytes, want %d", ptr, len(data), f.Size())
	}

	h := data[0]
	isLeaf, isInternal := helpers.HasFlag(h, FlagLeaf), helpers.HasFlag(h, FlagInternal)
	if isLeaf == isInternal {
		return nil, errors.Wrapf(customerrors.ErrCorruptNode, "node %s has header %#02x", ptr, h)
	}
	return &Node[K, V]{Pointer: ptr, Data: data, f: f}, nil
}
