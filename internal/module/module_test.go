package module

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erkao-lang/erkao/internal/value"
)

func TestCacheLoadsOncePerPath(t *testing.T) {
	c := NewCache()
	var calls int32
	load := func(path string) (value.Value, error) {
		atomic.AddInt32(&calls, 1)
		return value.FromObject(value.NewMap(nil)), nil
	}

	v1, err := c.Get("a.erk", load)
	require.NoError(t, err)
	v2, err := c.Get("a.erk", load)
	require.NoError(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
	require.Equal(t, v1.AsObject(), v2.AsObject())
}

func TestCacheCollapsesConcurrentLoadsOfSamePath(t *testing.T) {
	c := NewCache()
	var calls int32
	release := make(chan struct{})
	load := func(path string) (value.Value, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return value.FromObject(value.NewMap(nil)), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get("shared.erk", load)
			require.NoError(t, err)
		}()
	}
	close(release)
	wg.Wait()
	require.Equal(t, int32(1), atomic.LoadInt32(&calls), "concurrent requests for the same path share one load")
}

func TestCacheInvalidateForcesReload(t *testing.T) {
	c := NewCache()
	var calls int32
	load := func(path string) (value.Value, error) {
		atomic.AddInt32(&calls, 1)
		return value.Number(float64(calls)), nil
	}

	_, err := c.Get("a.erk", load)
	require.NoError(t, err)
	c.Invalidate("a.erk")
	_, err = c.Get("a.erk", load)
	require.NoError(t, err)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCacheRootsExposesEveryLoadedModule(t *testing.T) {
	c := NewCache()
	load := func(path string) (value.Value, error) {
		return value.FromObject(value.NewMap(nil)), nil
	}
	_, err := c.Get("a.erk", load)
	require.NoError(t, err)
	_, err = c.Get("b.erk", load)
	require.NoError(t, err)

	roots := c.Roots(nil)
	require.Len(t, roots, 2)
}

func TestCachePropagatesLoadError(t *testing.T) {
	c := NewCache()
	boom := errBoom{}
	load := func(path string) (value.Value, error) { return value.Null(), boom }

	_, err := c.Get("broken.erk", load)
	require.ErrorIs(t, err, boom)

	// a failed load must not poison the cache with a partial entry
	require.Empty(t, c.Roots(nil))
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
