package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"emart_admin/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestKeyed_HitSkipsFetcher(t *testing.T) {
	m := metrics.New()
	c := NewKeyed[[]string]("vendor_products", m, zaptest.NewLogger(t))

	calls := 0
	fetch := func(context.Context) ([]string, error) {
		calls++
		return []string{"p1", "p2"}, nil
	}

	first, err := c.GetOrFetch(context.Background(), "v1", fetch)
	require.NoError(t, err)
	second, err := c.GetOrFetch(context.Background(), "v1", fetch)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookupsCounter("vendor_products", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookupsCounter("vendor_products", "miss")))
}

func TestKeyed_FailuresAreNotCached(t *testing.T) {
	c := NewKeyed[int]("test", nil, nil)

	_, err := c.GetOrFetch(context.Background(), "k", func(context.Context) (int, error) {
		return 0, errors.New("down")
	})
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())

	v, err := c.GetOrFetch(context.Background(), "k", func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestKeyed_InvalidateThenAddIsVisible(t *testing.T) {
	c := NewKeyed[[]string]("vendor_products", nil, nil)
	remote := []string{"p1"}
	fetch := func(context.Context) ([]string, error) {
		return append([]string(nil), remote...), nil
	}

	got, err := c.GetOrFetch(context.Background(), "v1", fetch)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, got)

	remote = append(remote, "p2")
	got, err = c.Refresh(context.Background(), "v1", fetch)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, got)

	got, err = c.GetOrFetch(context.Background(), "v1", func(context.Context) ([]string, error) {
		t.Fatal("fetcher must not run on a hit")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, got)
}

func TestKeyed_ConcurrentMissesShareOneFetch(t *testing.T) {
	c := NewKeyed[int]("test", nil, nil)
	var calls atomic.Int32
	release := make(chan struct{})

	fetch := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrFetch(context.Background(), "k", fetch)
			assert.NoError(t, err)
			results[i] = v
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []int{42, 42, 42, 42, 42}, results)
}

func TestKeyed_StaleFetchDoesNotLandAfterInvalidate(t *testing.T) {
	c := NewKeyed[string]("test", nil, nil)
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.GetOrFetch(context.Background(), "k", func(context.Context) (string, error) {
			close(started)
			<-release
			return "stale", nil
		})
	}()

	<-started
	c.Invalidate("k")
	close(release)
	<-done

	_, ok := c.Peek("k")
	assert.False(t, ok)
}
