package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RespectsConcurrencyCap(t *testing.T) {
	var inFlight, peak atomic.Int32

	pool := NewPool(3, func(ctx context.Context, n int) (int, error) {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return n * n, nil
	})

	items := make([]int, 20)
	for i := range items {
		items[i] = i
	}

	outcomes := pool.Run(context.Background(), items)
	require.Len(t, outcomes, 20)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	for i, out := range outcomes {
		assert.Equal(t, i, out.Index)
		assert.Equal(t, i*i, out.Value)
		assert.True(t, out.Dispatched)
		assert.NoError(t, out.Err)
	}
}

func TestPool_CapturesPerItemErrors(t *testing.T) {
	boom := errors.New("boom")
	pool := NewPool(2, func(ctx context.Context, s string) (string, error) {
		if s == "bad" {
			return "", boom
		}
		return s + "!", nil
	})

	var seen []string
	pool.OnResult(func(item string, out Outcome[string]) {
		seen = append(seen, item)
	})

	outcomes := pool.Run(context.Background(), []string{"a", "bad", "c"})
	assert.Equal(t, "a!", outcomes[0].Value)
	assert.ErrorIs(t, outcomes[1].Err, boom)
	assert.Equal(t, "c!", outcomes[2].Value)
	assert.ElementsMatch(t, []string{"a", "bad", "c"}, seen)
}

func TestPool_StopsDispatchWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := NewPool(1, func(ctx context.Context, n int) (int, error) {
		if n == 1 {
			cancel()
		}
		return n, nil
	})

	outcomes := pool.Run(ctx, []int{0, 1, 2, 3, 4})

	assert.True(t, outcomes[0].Dispatched)
	assert.True(t, outcomes[1].Dispatched)
	assert.NoError(t, outcomes[1].Err)

	undispatched := 0
	for _, out := range outcomes[2:] {
		if !out.Dispatched {
			undispatched++
			assert.ErrorIs(t, out.Err, context.Canceled)
		}
	}
	assert.GreaterOrEqual(t, undispatched, 2)
}

func TestPool_EmptyAndDefaults(t *testing.T) {
	pool := NewPool(0, func(ctx context.Context, n int) (int, error) { return n, nil })
	assert.Equal(t, 1, pool.Workers())
	assert.Empty(t, pool.Run(context.Background(), nil))
}
