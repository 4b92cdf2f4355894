// Package customerrors defines the error taxonomy shared by every index and
// storage package.
package customerrors

import (
	"github.com/pkg/errors"
)

var (
	// ErrDuplicateKey is returned by add operations on a unique index when
	// the key is already present.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidEncoding is returned by codecs when a value violates the
	// type's constraints (e.g. zero passed to a no-zero codec).
	ErrInvalidEncoding = errors.New("invalid encoding")

	// ErrCorruptNode is returned when a node's header byte is neither a leaf
	// nor an internal node, or an index falls outside the node's capacity.
	ErrCorruptNode = errors.New("corrupt node")

	// ErrAllocationExhausted guards against configurations where no chunk can
	// ever hold a new node.
	ErrAllocationExhausted = errors.New("allocation exhausted")

	// ErrTimeout is returned when acquiring or closing file handles takes
	// longer than allowed.
	ErrTimeout = errors.New("timeout")

	// ErrIO marks errors propagated from the filesystem.
	ErrIO = errors.New("io error")

	ErrNotFound      = errors.New("not found")
	ErrClosed        = errors.New("closed")
	ErrUnknownLayout = errors.New("unknown storage layout")
	ErrUnknownCodec  = errors.New("unknown codec")
)

type ioError struct {
	cause error
	msg   string
}

func (e *ioError) Error() string        { return e.msg + ": " + e.cause.Error() }
func (e *ioError) Unwrap() error        { return e.cause }
func (e *ioError) Is(target error) bool { return target == ErrIO }

// IO marks err as a filesystem error, so that errors.Is(err, ErrIO) holds
// while the original cause stays reachable.
func IO(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&ioError{cause: err, msg: msg})
}
