package stl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStack(t *testing.T) {
	s := NewStack[int]()
	_, err := s.Pop()
	require.ErrorIs(t, err, ErrEmptyStack)

	s.Push(1)
	s.Push(2)
	require.Equal(t, 2, s.Len())

	top, err := s.Top()
	require.NoError(t, err)
	require.Equal(t, 2, top)

	v, err := s.Pop()
	require.NoError(t, err)
	require.Equal(t, 2, v)
	v, err = s.Pop()
	require.NoError(t, err)
	require.Equal(t, 1, v)

	_, err = s.Top()
	require.ErrorIs(t, err, ErrEmptyStack)
	require.Zero(t, s.Len())
}
