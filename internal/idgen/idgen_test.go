package idgen

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextIDIncreasing(t *testing.T) {
	fixed := Epoch.Add(time.Hour)
	g, err := New(3, func() time.Time { return fixed })
	require.NoError(t, err)

	var prev int64
	for i := 0; i < 10000; i++ {
		id, err := g.NextID()
		require.NoError(t, err)
		require.Greater(t, id, prev)
		prev = id
	}
}

func TestNextIDConcurrentUnique(t *testing.T) {
	g, err := New(1, nil)
	require.NoError(t, err)

	const workers, per = 8, 500
	ids := make(chan int64, workers*per)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				id, err := g.NextID()
				if err == nil {
					ids <- id
				}
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]struct{}, workers*per)
	for id := range ids {
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
	require.Len(t, seen, workers*per)
}

func TestClockBackwards(t *testing.T) {
	now := Epoch.Add(time.Hour)
	g, err := New(0, func() time.Time { return now })
	require.NoError(t, err)

	first, err := g.NextID()
	require.NoError(t, err)

	now = now.Add(-time.Second)
	second, err := g.NextID()
	require.NoError(t, err)
	require.Greater(t, second, first)

	now = now.Add(-time.Minute)
	_, err = g.NextID()
	require.ErrorIs(t, err, ErrClockBackwards)
}

func TestNodeRange(t *testing.T) {
	_, err := New(-1, nil)
	require.Error(t, err)
	_, err = New(1024, nil)
	require.Error(t, err)
}
