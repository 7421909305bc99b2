package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircularIndex_ConcurrentIncrement(t *testing.T) {
	const n, m, modulus = 300, 200, 1000
	idx := NewCircularIndex(modulus)

	var mu sync.Mutex
	seen := make(map[int]int)
	claim := func(times int, wg *sync.WaitGroup) {
		defer wg.Done()
		for i := 0; i < times; i++ {
			v := idx.Next()
			mu.Lock()
			seen[v]++
			mu.Unlock()
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go claim(n, &wg)
	go claim(m, &wg)
	wg.Wait()

	assert.Equal(t, (n+m)%modulus, idx.Value())
	assert.Len(t, seen, n+m)
	for v, count := range seen {
		assert.Equal(t, 1, count, "index %d issued twice", v)
	}
}

func TestCircularIndex_Wraps(t *testing.T) {
	idx := NewCircularIndex(3)
	assert.Equal(t, 0, idx.Next())
	assert.Equal(t, 1, idx.Next())
	idx.Increment()
	assert.Equal(t, 0, idx.Value())
	assert.Equal(t, 3, idx.Modulus())
}

func TestRoleFlag_ExactlyOneWinner(t *testing.T) {
	for round := 0; round < 200; round++ {
		flag := NewRoleFlag()
		results := make([]bool, 2)

		start := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				results[i] = flag.Set(true)
			}(i)
		}
		close(start)
		wg.Wait()

		assert.NotEqual(t, results[0], results[1], "round %d", round)
		assert.True(t, flag.IsSet())
	}
}

func TestRoleFlag_NoRollback(t *testing.T) {
	flag := NewRoleFlag()
	assert.False(t, flag.Set(false))
	assert.True(t, flag.Set(true))
	assert.False(t, flag.Set(false))
	assert.True(t, flag.IsSet())
}

func TestBarrier_ReleasesBothParties(t *testing.T) {
	b := NewBarrier(2)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	arrivals := make(chan time.Time, 2)
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func(delay time.Duration) {
			time.Sleep(delay)
			err := b.Arrive(ctx)
			arrivals <- time.Now()
			errs <- err
		}(time.Duration(i) * 30 * time.Millisecond)
	}

	first, second := <-arrivals, <-arrivals
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
	assert.Less(t, second.Sub(first), 20*time.Millisecond)
}

func TestBarrier_Resets(t *testing.T) {
	b := NewBarrier(2)
	ctx := context.Background()

	for gen := 0; gen < 3; gen++ {
		var wg sync.WaitGroup
		wg.Add(2)
		for i := 0; i < 2; i++ {
			go func() {
				defer wg.Done()
				assert.NoError(t, b.Arrive(ctx))
			}()
		}
		wg.Wait()
	}
}

func TestBarrier_Cancelled(t *testing.T) {
	b := NewBarrier(2)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := b.Arrive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// 撤回后下一代仍需两方到达
	done := make(chan error, 1)
	go func() { done <- b.Arrive(context.Background()) }()
	select {
	case <-done:
		t.Fatal("barrier released with a single party")
	case <-time.After(30 * time.Millisecond):
	}
	require.NoError(t, b.Arrive(context.Background()))
	require.NoError(t, <-done)
}
