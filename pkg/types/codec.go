// Package types holds the fixed-size key and value codecs of the index.
package types

import (
	"encoding/binary"
)

var bin = binary.BigEndian

// validByte leads every encoded value of codecs that permit the zero value,
// so that an all-zero slot stays distinguishable from an encoded zero.
const validByte = 0x01

// Codec encodes values of type T into fixed-size byte slots.
type Codec[T any] interface {
	// Name identifies the codec in a Registry.
	Name() string
	Size() int
	// Encode fails with customerrors.ErrInvalidEncoding if v violates the
	// codec's constraints.
	Encode(v T) ([]byte, error)
	Decode(b []byte) T
	// IsEmpty reports whether b is an unused slot.
	IsEmpty(b []byte) bool
	Compare(a, b T) int
}
