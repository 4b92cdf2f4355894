// Package stl holds small generic containers.
package stl

import "github.com/pkg/errors"

var ErrEmptyStack = errors.New("empty stack")

// Stack is a LIFO of T. The zero value is an empty stack.
type Stack[T any] struct {
	items []T
}

func NewStack[T any]() *Stack[T] {
	return &Stack[T]{}
}

func (s *Stack[T]) Push(v T) {
	s.items = append(s.items, v)
}

// Pop removes and returns the top element.
func (s *Stack[T]) Pop() (T, error) {
	v, err := s.Top()
	if err == nil {
		s.items = s.items[:len(s.items)-1]
	}
	return v, err
}

func (s *Stack[T]) Top() (T, error) {
	if len(s.items) == 0 {
		var zero T
		return zero, ErrEmptyStack
	}
	return s.items[len(s.items)-1], nil
}

func (s *Stack[T]) Len() int { return len(s.items) }
