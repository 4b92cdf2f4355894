package node

import (
	"fmt"
	"strings"

	"go-bpindex/pkg/customerrors"
	"go-bpindex/pkg/pointer"
	"go-bpindex/util/helpers"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

type Kind uint8

const (
	KindLeaf Kind = iota
	KindInternal
)

// Node is a typed view over the bytes of one node slot. All accessors work
// directly on Data; the view holds no other state besides its pointer.
type Node[K, V any] struct {
	Pointer pointer.Pointer
	Data    []byte
	f       *Format[K, V]
}

func (n *Node[K, V]) Kind() Kind {
	if helpers.HasFlag(n.Data[0], FlagLeaf) {
		return KindLeaf
	}
	return KindInternal
}

func (n *Node[K, V]) IsLeaf() bool { return n.Kind() == KindLeaf }
func (n *Node[K, V]) IsRoot() bool { return helpers.HasFlag(n.Data[0], FlagRoot) }

func (n *Node[K, V]) SetRoot(v bool) {
	helpers.SetBit(&n.Data[0], 2, v)
}

func (n *Node[K, V]) keySize() int { return n.f.Keys.Size() }

func (n *Node[K, V]) stride() int {
	if n.IsLeaf() {
		return n.f.Keys.Size() + n.f.Values.Size()
	}
	return n.f.Keys.Size() + pointer.Size
}

func (n *Node[K, V]) keyOffset(i int) int {
	if n.IsLeaf() {
		return 1 + i*n.stride()
	}
	return 1 + pointer.Size + i*n.stride()
}

func (n *Node[K, V]) childOffset(i int) int {
	return 1 + i*n.stride()
}

// entriesEnd is the offset right after the last key slot.
func (n *Node[K, V]) entriesEnd() int {
	return n.keyOffset(n.f.MaxKeys()-1) + n.stride()
}

func (n *Node[K, V]) checkKeyIndex(i int) error {
	if i < 0 || i >= n.f.MaxKeys() {
		return errors.Wrapf(customerrors.ErrCorruptNode, "key index %d out of range [0, %d)", i, n.f.MaxKeys())
	}
	return nil
}

func (n *Node[K, V]) keyBytes(i int) []byte {
	off := n.keyOffset(i)
	return n.Data[off : off+n.keySize()]
}

// KeyCount counts populated key slots up to the first empty one.
func (n *Node[K, V]) KeyCount() int {
	for i := 0; i < n.f.MaxKeys(); i++ {
		if n.f.Keys.IsEmpty(n.keyBytes(i)) {
			return i
		}
	}
	return n.f.MaxKeys()
}

func (n *Node[K, V]) KeyAt(i int) (K, error) {
	if err := n.checkKeyIndex(i); err != nil {
		var zero K
		return zero, err
	}
	return n.f.Keys.Decode(n.keyBytes(i)), nil
}

func (n *Node[K, V]) SetKeyAt(i int, key K) error {
	if err := n.checkKeyIndex(i); err != nil {
		return err
	}
	b, err := n.f.Keys.Encode(key)
	if err != nil {
		return err
	}
	copy(n.keyBytes(i), b)
	return nil
}

// Keys decodes every populated key.
func (n *Node[K, V]) Keys() []K {
	count := n.KeyCount()
	keys := make([]K, count)
	for i := range keys {
		keys[i] = n.f.Keys.Decode(n.keyBytes(i))
	}
	return keys
}

// Search finds the leftmost position of key among the node's keys, and
// reports whether the key is present there.
func (n *Node[K, V]) Search(key K) (int, bool) {
	return slices.BinarySearchFunc(n.Keys(), key, n.f.Keys.Compare)
}

// Clear zero fills key slots [from, to) together with their values or right
// children.
func (n *Node[K, V]) Clear(from, to int) {
	helpers.Zero(n.Data[n.keyOffset(from):n.keyOffset(to)])
}

// leaf accessors

func (n *Node[K, V]) valueBytes(i int) []byte {
	off := n.keyOffset(i) + n.keySize()
	return n.Data[off : off+n.f.Values.Size()]
}

func (n *Node[K, V]) ValueAt(i int) (V, error) {
	if err := n.checkKeyIndex(i); err != nil {
		var zero V
		return zero, err
	}
	return n.f.Values.Decode(n.valueBytes(i)), nil
}

func (n *Node[K, V]) SetValueAt(i int, val V) error {
	if err := n.checkKeyIndex(i); err != nil {
		return err
	}
	b, err := n.f.Values.Encode(val)
	if err != nil {
		return err
	}
	copy(n.valueBytes(i), b)
	return nil
}

// Entries decodes every populated key with its value.
func (n *Node[K, V]) Entries() ([]K, []V) {
	keys := n.Keys()
	vals := make([]V, len(keys))
	for i := range vals {
		vals[i] = n.f.Values.Decode(n.valueBytes(i))
	}
	return keys, vals
}

// SetEntries rewrites the leaf's entries, clearing every slot after them.
func (n *Node[K, V]) SetEntries(keys []K, vals []V) error {
	if len(keys) > n.f.MaxKeys() || len(keys) != len(vals) {
		return errors.Wrapf(customerrors.ErrCorruptNode, "cannot store %d keys and %d values", len(keys), len(vals))
	}
	for i := range keys {
		if err := n.SetKeyAt(i, keys[i]); err != nil {
			return err
		}
		if err := n.SetValueAt(i, vals[i]); err != nil {
			return err
		}
	}
	n.Clear(len(keys), n.f.MaxKeys())
	return nil
}

// InsertAt shifts entries [i, count) one slot right and stores the entry at
// i. The leaf must have a free slot.
func (n *Node[K, V]) InsertAt(i int, key K, val V) error {
	count := n.KeyCount()
	if count >= n.f.MaxKeys() || i < 0 || i > count {
		return errors.Wrapf(customerrors.ErrCorruptNode, "cannot insert at %d into leaf with %d keys", i, count)
	}

	kb, err := n.f.Keys.Encode(key)
	if err != nil {
		return err
	}
	vb, err := n.f.Values.Encode(val)
	if err != nil {
		return err
	}

	from := n.keyOffset(i)
	copy(n.Data[from+n.stride():n.keyOffset(count+1)], n.Data[from:n.keyOffset(count)])
	copy(n.keyBytes(i), kb)
	copy(n.valueBytes(i), vb)
	return nil
}

// RemoveAt removes entry i, moving the following entries one slot left and
// zero filling the vacated tail slot.
func (n *Node[K, V]) RemoveAt(i int) error {
	count := n.KeyCount()
	if i < 0 || i >= count {
		return errors.Wrapf(customerrors.ErrCorruptNode, "cannot remove %d from node with %d keys", i, count)
	}

	from, end := n.keyOffset(i), n.keyOffset(count)
	copy(n.Data[from:end], n.Data[from+n.stride():end])
	n.Clear(count-1, count)
	return nil
}

func (n *Node[K, V]) prevOffset() int { return n.entriesEnd() }
func (n *Node[K, V]) nextOffset() int { return n.entriesEnd() + pointer.Size }

func (n *Node[K, V]) Prev() pointer.Pointer { return pointer.Read(n.Data[n.prevOffset():]) }
func (n *Node[K, V]) Next() pointer.Pointer { return pointer.Read(n.Data[n.nextOffset():]) }

func (n *Node[K, V]) SetPrev(p pointer.Pointer) { p.Put(n.Data[n.prevOffset():]) }
func (n *Node[K, V]) SetNext(p pointer.Pointer) { p.Put(n.Data[n.nextOffset():]) }

// internal accessors

func (n *Node[K, V]) checkChildIndex(i int) error {
	if i < 0 || i > n.f.MaxKeys() {
		return errors.Wrapf(customerrors.ErrCorruptNode, "child index %d out of range [0, %d]", i, n.f.MaxKeys())
	}
	return nil
}

func (n *Node[K, V]) ChildAt(i int) (pointer.Pointer, error) {
	if err := n.checkChildIndex(i); err != nil {
		return pointer.Pointer{}, err
	}
	return pointer.Read(n.Data[n.childOffset(i):]), nil
}

func (n *Node[K, V]) SetChildAt(i int, p pointer.Pointer) error {
	if err := n.checkChildIndex(i); err != nil {
		return err
	}
	p.Put(n.Data[n.childOffset(i):])
	return nil
}

// Children returns the keys+1 child pointers of an internal node.
func (n *Node[K, V]) Children() []pointer.Pointer {
	count := n.KeyCount() + 1
	children := make([]pointer.Pointer, count)
	for i := range children {
		children[i] = pointer.Read(n.Data[n.childOffset(i):])
	}
	return children
}

// ChildCount counts non-empty child slots.
func (n *Node[K, V]) ChildCount() int {
	count := 0
	for i := 0; i <= n.f.MaxKeys(); i++ {
		if !pointer.Read(n.Data[n.childOffset(i):]).IsEmpty() {
			count++
		}
	}
	return count
}

// SetInternal rewrites the internal node's keys and children, clearing every
// slot after them.
func (n *Node[K, V]) SetInternal(keys []K, children []pointer.Pointer) error {
	if len(keys) > n.f.MaxKeys() || len(children) != len(keys)+1 {
		return errors.Wrapf(customerrors.ErrCorruptNode, "cannot store %d keys and %d children", len(keys), len(children))
	}

	helpers.Zero(n.Data[1:n.entriesEnd()])
	for i, child := range children {
		child.Put(n.Data[n.childOffset(i):])
	}
	for i, key := range keys {
		if err := n.SetKeyAt(i, key); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node[K, V]) String() string {
	sb := strings.Builder{}
	if n.IsRoot() {
		sb.WriteString("root ")
	}
	if n.IsLeaf() {
		keys, _ := n.Entries()
		fmt.Fprintf(&sb, "leaf %s %v [%s<-n->%s]", n.Pointer, keys, n.Prev(), n.Next())
	} else {
		fmt.Fprintf(&sb, "internal %s %v %v", n.Pointer, n.Keys(), n.Children())
	}
	return sb.String()
}
