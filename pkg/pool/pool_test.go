package pool

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"go-bpindex/pkg/customerrors"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestUnbounded(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := New(Options{})

	a, err := p.Acquire(ctx, filepath.Join(dir, "index.0"))
	require.NoError(t, err)
	b, err := p.Acquire(ctx, filepath.Join(dir, "index.0"))
	require.NoError(t, err)
	require.Same(t, a, b)

	require.NoError(t, a.Release())
	require.NoError(t, b.Release())
	require.Error(t, b.Release())

	// kept open after the last release
	require.Equal(t, 1, p.Len())
	_, err = a.File().WriteAt([]byte{1}, 0)
	require.NoError(t, err)

	require.NoError(t, p.CloseAll(ctx))
	require.Zero(t, p.Len())

	_, err = p.Acquire(ctx, filepath.Join(dir, "index.1"))
	require.ErrorIs(t, err, customerrors.ErrClosed)
}

func TestBoundedTimeout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := New(Options{MaxOpen: 1, AcquireTimeout: 20 * time.Millisecond})

	a, err := p.Acquire(ctx, filepath.Join(dir, "index.0"))
	require.NoError(t, err)

	// same path shares the open slot
	same, err := p.Acquire(ctx, filepath.Join(dir, "index.0"))
	require.NoError(t, err)
	require.NoError(t, same.Release())

	_, err = p.Acquire(ctx, filepath.Join(dir, "index.1"))
	require.ErrorIs(t, err, customerrors.ErrTimeout)

	// closing at refcount zero frees the slot
	require.NoError(t, a.Release())
	require.Zero(t, p.Len())

	b, err := p.Acquire(ctx, filepath.Join(dir, "index.1"))
	require.NoError(t, err)
	require.NoError(t, b.Release())
	require.NoError(t, p.CloseAll(ctx))
}

func TestBoundedConcurrent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := New(Options{MaxOpen: 2, AcquireTimeout: 5 * time.Second})

	g := errgroup.Group{}
	for i := 0; i < 32; i++ {
		i := i
		g.Go(func() error {
			h, err := p.Acquire(ctx, filepath.Join(dir, fmt.Sprintf("index.%d", i%4)))
			if err != nil {
				return err
			}
			defer h.Release()

			_, err = h.File().WriteAt([]byte{byte(i)}, int64(i))
			time.Sleep(time.Millisecond)
			return err
		})
	}
	require.NoError(t, g.Wait())
	require.Zero(t, p.Len())
	require.NoError(t, p.CloseAll(ctx))
}

func TestCloseAllTimeout(t *testing.T) {
	ctx := context.Background()
	p := New(Options{CloseTimeout: 20 * time.Millisecond})

	h, err := p.Acquire(ctx, filepath.Join(t.TempDir(), "index.0"))
	require.NoError(t, err)

	err = p.CloseAll(ctx)
	require.ErrorIs(t, err, customerrors.ErrTimeout)
	require.Zero(t, p.Len())
	require.NoError(t, h.Release())
}
