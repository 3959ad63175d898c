package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsSubmittedTasks(t *testing.T) {
	t.Parallel()

	pool := NewPool(context.Background(), 2)

	var ran atomic.Int64

	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)

		ok := pool.Submit(func(_ context.Context) {
			defer wg.Done()

			ran.Add(1)
		})
		require.True(t, ok)
	}

	wg.Wait()
	pool.Close()

	assert.Equal(t, int64(10), ran.Load())
}

func TestPool_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	pool := NewPool(context.Background(), 2)
	defer pool.Close()

	var (
		current atomic.Int64
		peak    atomic.Int64
	)

	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)

		ok := pool.Submit(func(_ context.Context) {
			defer wg.Done()

			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}

			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
		})
		require.True(t, ok)
	}

	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(2))
}

func TestPool_SubmitAfterCloseFails(t *testing.T) {
	t.Parallel()

	pool := NewPool(context.Background(), 1)
	pool.Close()

	ok := pool.Submit(func(_ context.Context) {})
	assert.False(t, ok)
}

func TestPool_CloseWaitsForQueuedTasks(t *testing.T) {
	t.Parallel()

	pool := NewPool(context.Background(), 1)

	var ran atomic.Int64

	for range 5 {
		require.True(t, pool.Submit(func(_ context.Context) {
			time.Sleep(time.Millisecond)
			ran.Add(1)
		}))
	}

	pool.Close()

	assert.Equal(t, int64(5), ran.Load())
}
