package future

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFuture(t *testing.T) {
	ctx := context.Background()

	f, resolve := New[int]()
	doubled := Then(f, func(v int) (int, error) { return v * 2, nil })
	resolve(21, nil)
	v, err := doubled.Await(ctx)
	require.NoError(t, err)
	require.Equal(t, 42, v)

	boom := errors.New("boom")
	called := false
	failed := Then(Failed[int](boom), func(v int) (string, error) {
		called = true
		return "", nil
	})
	_, err = failed.Await(ctx)
	require.ErrorIs(t, err, boom)
	require.False(t, called)
}

func TestFutureAwaitCancelled(t *testing.T) {
	f, resolve := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	resolve(1, nil)
	resolve(2, nil)
	v, err := f.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestFutureConcurrentResolve(t *testing.T) {
	f, resolve := New[int]()

	start := make(chan struct{})
	wg := sync.WaitGroup{}
	for i := 1; i <= 16; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			resolve(i, nil)
		}()
	}
	close(start)
	wg.Wait()

	v, err := f.Await(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, v, 1)
	require.LessOrEqual(t, v, 16)
}
