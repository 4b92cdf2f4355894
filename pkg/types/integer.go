package types

import (
	"go-bpindex/pkg/customerrors"
	"go-bpindex/util/helpers"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// Integer is a big-endian codec for fixed width integers. Unless noZero is
// set, values carry a leading validity byte and zero is a legal value. With
// noZero the encoding has no prefix, zero is rejected and an all-zero slot is
// empty.
type Integer[T constraints.Integer] struct {
	name   string
	width  int
	noZero bool
}

func Int32() *Integer[int32]   { return &Integer[int32]{name: "int", width: 4} }
func Int64() *Integer[int64]   { return &Integer[int64]{name: "long", width: 8} }
func Uint32() *Integer[uint32] { return &Integer[uint32]{name: "uint", width: 4} }
func Uint64() *Integer[uint64] { return &Integer[uint64]{name: "ulong", width: 8} }

func NoZeroInt32() *Integer[int32] {
	return &Integer[int32]{name: "nozero-int", width: 4, noZero: true}
}

func NoZeroInt64() *Integer[int64] {
	return &Integer[int64]{name: "nozero-long", width: 8, noZero: true}
}

func (c *Integer[T]) Name() string { return c.name }

func (c *Integer[T]) Size() int {
	if c.noZero {
		return c.width
	}
	return c.width + 1
}

func (c *Integer[T]) Encode(v T) ([]byte, error) {
	if c.noZero && v == 0 {
		return nil, errors.Wrapf(customerrors.ErrInvalidEncoding, "%s does not accept zero", c.name)
	}

	buf := make([]byte, c.Size())
	body := buf
	if !c.noZero {
		buf[0] = validByte
		body = buf[1:]
	}

	switch c.width {
	case 4:
		bin.PutUint32(body, uint32(v))
	default:
		bin.PutUint64(body, uint64(v))
	}
	return buf, nil
}

func (c *Integer[T]) Decode(b []byte) T {
	if !c.noZero {
		b = b[1:]
	}

	switch c.width {
	case 4:
		// int32 conversion restores the sign before widening
		if c.signed() {
			return T(int32(bin.Uint32(b)))
		}
		return T(bin.Uint32(b))
	default:
		return T(bin.Uint64(b))
	}
}

func (c *Integer[T]) IsEmpty(b []byte) bool {
	if c.noZero {
		return helpers.IsZero(b[:c.width])
	}
	return b[0] != validByte
}

func (c *Integer[T]) Compare(a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (c *Integer[T]) signed() bool {
	var zero T
	return zero-1 < 0
}
