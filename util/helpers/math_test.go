package helpers

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetBit(t *testing.T) {
	require.True(t, GetBit(0b00000001, 0))
	require.True(t, GetBit(0b00000010, 1))
	require.True(t, GetBit(0b00000100, 2))
	require.True(t, GetBit(0b10000000, 7))

	require.False(t, GetBit(0b00000010, 0))
	require.False(t, GetBit(0b00000100, 1))
	require.False(t, GetBit(0b00000001, 7))
}

func TestSetBit(t *testing.T) {
	b := new(uint8)

	SetBit(b, 0, true)
	require.Equal(t, uint8(0b00000001), *b)

	SetBit(b, 0, false)
	require.Equal(t, uint8(0b00000000), *b)

	SetBit(b, 4, true)
	SetBit(b, 6, true)
	SetBit(b, 1, true)
	require.Equal(t, uint8(0b01010010), *b)

	SetBit(b, 4, false)
	require.Equal(t, uint8(0b01000010), *b)
	require.True(t, HasFlag(*b, 0b00000010))
	require.False(t, HasFlag(*b, 0b00000101))
}

func TestMaxCeilDiv(t *testing.T) {
	require.Equal(t, 3, Max(3, 1, 2))
	require.Equal(t, 2, CeilDiv(3, 2))
	require.Equal(t, 2, CeilDiv(4, 2))
	require.Equal(t, 1, CeilDiv(1, 2))
}

func TestBytes(t *testing.T) {
	b := []byte{1, 2, 3}
	cp := Clone(b)
	Zero(b)
	require.True(t, IsZero(b))
	require.Equal(t, []byte{1, 2, 3}, cp)
	require.Nil(t, Clone(nil))

	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, CreateDir(dir))
	require.DirExists(t, dir)
	require.NoError(t, CreateDir(dir))
}
