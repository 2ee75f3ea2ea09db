package rt

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestBlockReturnsResult(t *testing.T) {
	r := New(2, 4)
	defer r.Close()

	v, err := Block(r, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, v)

	boom := errors.New("boom")
	_, err = Block(r, func(ctx context.Context) (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)
}

func TestBlockRecoversPanic(t *testing.T) {
	r := New(1, 1)
	defer r.Close()

	_, err := Block(r, func(ctx context.Context) (int, error) {
		panic("bad handle")
	})
	require.ErrorIs(t, err, ErrTaskPanicked)
	require.Contains(t, err.Error(), "bad handle")

	// the worker survived the panic
	v, err := Block(r, func(ctx context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestConcurrentCallers(t *testing.T) {
	r := New(4, 16)
	defer r.Close()

	var sum atomic.Int64
	var g errgroup.Group
	for i := 1; i <= 100; i++ {
		i := i
		g.Go(func() error {
			v, err := Block(r, func(ctx context.Context) (int64, error) {
				return int64(i), nil
			})
			sum.Add(v)
			return err
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, int64(5050), sum.Load())
}

func TestFutureWaitHelpsWhenPoolIsBusy(t *testing.T) {
	// One worker: the outer task occupies it while waiting on inner futures.
	r := New(1, 1)
	defer r.Close()

	v, err := Block(r, func(ctx context.Context) (int, error) {
		futures := make([]*Future[int], 8)
		for i := range futures {
			i := i
			futures[i] = Go(ctx, r, func(ctx context.Context) (int, error) {
				return i * i, nil
			})
		}
		total := 0
		for _, f := range futures {
			n, err := f.Wait(ctx)
			if err != nil {
				return 0, err
			}
			total += n
		}
		return total, nil
	})
	require.NoError(t, err)
	require.Equal(t, 140, v)
}

func TestFutureCancelledBeforeRun(t *testing.T) {
	r := New(1, 1)
	r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := Go(ctx, r, func(ctx context.Context) (int, error) {
		t.Fatal("task must not run with a cancelled context")
		return 0, nil
	})
	_, err := f.Wait(context.Background())
	require.ErrorIs(t, err, context.Canceled)
}

func TestBlockAfterClose(t *testing.T) {
	r := New(1, 1)
	r.Close()
	_, err := Block(r, func(ctx context.Context) (int, error) { return 0, nil })
	require.ErrorIs(t, err, ErrClosed)
}

func TestDefaultIsShared(t *testing.T) {
	a, errA := Default()
	b, errB := Default()
	require.NoError(t, errA)
	require.NoError(t, errB)
	require.Same(t, a, b)
	require.Greater(t, a.Workers(), 0)
}
