package types

import (
	"fmt"
	"sync"

	"go-bpindex/pkg/customerrors"
	"go-bpindex/pkg/pointer"

	"github.com/pkg/errors"
)

// Registry maps codec names to codec instances. It is built once at startup
// and passed to whoever needs to resolve codecs by name.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]any
}

// NewRegistry returns a registry holding every built-in codec.
func NewRegistry() *Registry {
	r := &Registry{codecs: map[string]any{}}
	Register[int32](r, Int32())
	Register[int64](r, Int64())
	Register[uint32](r, Uint32())
	Register[uint64](r, Uint64())
	Register[int32](r, NoZeroInt32())
	Register[int64](r, NoZeroInt64())
	Register[bool](r, Bool{})
	Register[pointer.Pointer](r, Pointer{})
	return r
}

func Register[T any](r *Registry, c Codec[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[c.Name()] = c
}

// Lookup resolves name to a codec of T. Names of the form char(n) are
// created on first use.
func Lookup[T any](r *Registry, name string) (Codec[T], error) {
	r.mu.RLock()
	c, ok := r.codecs[name]
	r.mu.RUnlock()

	if !ok {
		var n int
		if _, err := fmt.Sscanf(name, "char(%d)", &n); err != nil || n <= 0 {
			return nil, errors.Wrapf(customerrors.ErrUnknownCodec, "codec %q", name)
		}
		chars := NewChars(n)
		r.mu.Lock()
		r.codecs[chars.Name()] = chars
		r.mu.Unlock()
		c = chars
	}

	typed, ok := c.(Codec[T])
	if !ok {
		return nil, errors.Wrapf(customerrors.ErrUnknownCodec, "codec %q has type %T", name, c)
	}
	return typed, nil
}
