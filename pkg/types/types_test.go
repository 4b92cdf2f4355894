package types

import (
	"math"
	"testing"

	"go-bpindex/pkg/customerrors"
	"go-bpindex/pkg/pointer"

	"github.com/stretchr/testify/require"
)

func TestIntegerZeroPermitting(t *testing.T) {
	c := Int32()
	require.Equal(t, 5, c.Size())
	require.True(t, c.IsEmpty(make([]byte, 5)))

	b, err := c.Encode(0)
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0, 0, 0, 0}, b)
	require.False(t, c.IsEmpty(b))
	require.Equal(t, int32(0), c.Decode(b))

	for _, v := range []int32{-1, 1, math.MinInt32, math.MaxInt32} {
		b, err := c.Encode(v)
		require.NoError(t, err)
		require.Equal(t, v, c.Decode(b))
	}

	l := Int64()
	require.Equal(t, 9, l.Size())
	b, err = l.Encode(-42)
	require.NoError(t, err)
	require.Equal(t, int64(-42), l.Decode(b))

	u := Uint32()
	b, err = u.Encode(math.MaxUint32)
	require.NoError(t, err)
	require.Equal(t, uint32(math.MaxUint32), u.Decode(b))
}

func TestIntegerNoZero(t *testing.T) {
	c := NoZeroInt32()
	require.Equal(t, 4, c.Size())

	_, err := c.Encode(0)
	require.ErrorIs(t, err, customerrors.ErrInvalidEncoding)

	b, err := c.Encode(-7)
	require.NoError(t, err)
	require.False(t, c.IsEmpty(b))
	require.Equal(t, int32(-7), c.Decode(b))
	require.True(t, c.IsEmpty(make([]byte, 4)))

	l := NoZeroInt64()
	require.Equal(t, 8, l.Size())
	_, err = l.Encode(0)
	require.ErrorIs(t, err, customerrors.ErrInvalidEncoding)
}

func TestCompare(t *testing.T) {
	require.Equal(t, -1, Int32().Compare(-5, 3))
	require.Equal(t, 1, Int64().Compare(3, -5))
	require.Equal(t, 0, Uint64().Compare(9, 9))
	require.Equal(t, -1, Bool{}.Compare(false, true))
	require.Equal(t, 1, NewChars(4).Compare("b", "a"))
	require.Negative(t, Pointer{}.Compare(pointer.Node(0, 26), pointer.Node(1, 0)))
	require.Positive(t, Pointer{}.Compare(pointer.Node(1, 26), pointer.Node(1, 0)))
}

func TestChars(t *testing.T) {
	c := NewChars(4)
	require.Equal(t, "char(4)", c.Name())

	b, err := c.Encode("ab")
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 'a', 'b', 0, 0}, b)
	require.Equal(t, "ab", c.Decode(b))

	b, err = c.Encode("")
	require.NoError(t, err)
	require.False(t, c.IsEmpty(b))

	_, err = c.Encode("abcde")
	require.ErrorIs(t, err, customerrors.ErrInvalidEncoding)
	_, err = c.Encode("a\x00")
	require.ErrorIs(t, err, customerrors.ErrInvalidEncoding)
}

func TestBoolAndPointer(t *testing.T) {
	b, err := Bool{}.Encode(false)
	require.NoError(t, err)
	require.False(t, Bool{}.IsEmpty(b))
	require.False(t, Bool{}.Decode(b))

	p := pointer.Node(2, 52)
	b, err = Pointer{}.Encode(p)
	require.NoError(t, err)
	require.Equal(t, p, Pointer{}.Decode(b))
	require.True(t, Pointer{}.IsEmpty(make([]byte, pointer.Size)))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	c, err := Lookup[int32](r, "nozero-int")
	require.NoError(t, err)
	require.Equal(t, 4, c.Size())

	s, err := Lookup[string](r, "char(16)")
	require.NoError(t, err)
	require.Equal(t, 17, s.Size())

	_, err = Lookup[int64](r, "int")
	require.ErrorIs(t, err, customerrors.ErrUnknownCodec)
	_, err = Lookup[int32](r, "float")
	require.ErrorIs(t, err, customerrors.ErrUnknownCodec)
}
