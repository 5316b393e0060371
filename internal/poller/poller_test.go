package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"emart_admin/internal/api"
	"emart_admin/internal/auth"
	"emart_admin/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type order struct {
	ID      string
	Created time.Time
}

func (o order) RecordID() string    { return o.ID }
func (o order) SortTime() time.Time { return o.Created }

type recordingNotifier struct {
	mu    sync.Mutex
	calls [][2]int
}

func (n *recordingNotifier) Notify(_ string, before, after int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, [2]int{before, after})
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func batch(ids ...string) []order {
	out := make([]order, 0, len(ids))
	for i, id := range ids {
		out = append(out, order{ID: id, Created: time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC)})
	}
	return out
}

func TestRefresh_MergesIntoReplica(t *testing.T) {
	responses := [][]order{batch("a", "b"), batch("a", "b", "c")}
	calls := 0
	p := New("orders", time.Second, func(context.Context) ([]order, error) {
		resp := responses[calls]
		calls++
		return resp, nil
	})

	require.NoError(t, p.Refresh(context.Background()))
	require.NoError(t, p.Refresh(context.Background()))

	snap := p.Replica().Snapshot()
	assert.Equal(t, 3, snap.Len())
	assert.Equal(t, "c", snap.Items()[0].ID)
}

func TestRefresh_FailureKeepsReplica(t *testing.T) {
	var handled error
	fail := false
	p := New("orders", time.Second, func(context.Context) ([]order, error) {
		if fail {
			return nil, api.ErrMalformedPayload
		}
		return batch("a", "b"), nil
	}, WithErrorHandler(func(err error) { handled = err }))

	require.NoError(t, p.Refresh(context.Background()))

	fail = true
	err := p.Refresh(context.Background())
	require.ErrorIs(t, err, api.ErrMalformedPayload)
	require.ErrorIs(t, handled, api.ErrMalformedPayload)
	assert.Equal(t, 2, p.Replica().Snapshot().Len())
}

func TestRefresh_SkipsWhileInFlight(t *testing.T) {
	m := metrics.New()
	release := make(chan struct{})
	started := make(chan struct{})
	p := New("orders", time.Second, func(context.Context) ([]order, error) {
		close(started)
		<-release
		return batch("a"), nil
	}, WithMetrics(m))

	done := make(chan error, 1)
	go func() { done <- p.Refresh(context.Background()) }()
	<-started

	err := p.Refresh(context.Background())
	require.ErrorIs(t, err, ErrInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollTicksCounter("orders", metrics.PollSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollTicksCounter("orders", metrics.PollOK)))
}

func TestRefresh_AlertNeedsArmedLatch(t *testing.T) {
	responses := [][]order{batch("a"), batch("a", "b"), batch("a", "b"), batch("a", "b", "c")}
	calls := 0
	latch := &Latch{}
	notifier := &recordingNotifier{}
	p := New("orders", time.Second, func(context.Context) ([]order, error) {
		resp := responses[calls]
		calls++
		return resp, nil
	}, WithAlert(latch, notifier))

	ctx := context.Background()
	require.NoError(t, p.Refresh(ctx))
	require.NoError(t, p.Refresh(ctx))
	assert.Equal(t, 0, notifier.count(), "latch not armed yet")

	latch.Arm()
	require.NoError(t, p.Refresh(ctx))
	assert.Equal(t, 0, notifier.count(), "cardinality unchanged")

	require.NoError(t, p.Refresh(ctx))
	require.Equal(t, 1, notifier.count())
	assert.Equal(t, [2]int{2, 3}, notifier.calls[0])
}

func TestReplica_Update(t *testing.T) {
	p := New("orders", time.Second, func(context.Context) ([]order, error) {
		return batch("a"), nil
	})
	require.NoError(t, p.Refresh(context.Background()))

	ok := p.Replica().Update("a", func(o order) order {
		o.Created = o.Created.Add(time.Hour)
		return o
	})
	assert.True(t, ok)
	assert.False(t, p.Replica().Update("missing", func(o order) order { return o }))
}

func TestRun_FetchesImmediatelyAndStopsOnCancel(t *testing.T) {
	var calls atomic.Int32
	p := New("users", 20*time.Millisecond, func(context.Context) ([]order, error) {
		calls.Add(1)
		return batch("a"), nil
	}, WithLogger(zaptest.NewLogger(t)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWatch_RefreshesOnNewOrder(t *testing.T) {
	var refreshes atomic.Int32
	target := refresherFunc(func(context.Context) error {
		refreshes.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	source := func(ctx context.Context, handle func(api.Event)) error {
		handle(api.Event{Type: "heartbeat"})
		handle(api.Event{Type: api.EventNewOrder})
		handle(api.Event{Type: api.EventNewOrder})
		cancel()
		return nil
	}

	require.NoError(t, Watch(ctx, source, target, time.Millisecond, zaptest.NewLogger(t)))
	assert.Equal(t, int32(2), refreshes.Load())
}

func TestWatch_ReconnectsUntilAuthFailure(t *testing.T) {
	attempts := 0
	source := func(ctx context.Context, handle func(api.Event)) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset")
		}
		return auth.ErrNotAuthenticated
	}

	err := Watch(context.Background(), source, refresherFunc(func(context.Context) error { return nil }), time.Millisecond, nil)
	require.ErrorIs(t, err, auth.ErrNotAuthenticated)
	assert.Equal(t, 3, attempts)
}

func TestRunAll_StopsTogether(t *testing.T) {
	boom := errors.New("boom")
	blocked := RunnerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	failing := RunnerFunc(func(context.Context) error { return boom })

	require.ErrorIs(t, RunAll(context.Background(), blocked, failing), boom)
}

type refresherFunc func(ctx context.Context) error

func (f refresherFunc) Refresh(ctx context.Context) error { return f(ctx) }

func TestRefresh_AlertComparesFetchedBatch(t *testing.T) {
	responses := [][]order{batch("a", "b", "c"), batch("a"), batch("a", "d", "e")}
	calls := 0
	latch := &Latch{}
	latch.Arm()
	notifier := &recordingNotifier{}
	p := New("orders", time.Second, func(context.Context) ([]order, error) {
		resp := responses[calls]
		calls++
		return resp, nil
	}, WithAlert(latch, notifier))

	ctx := context.Background()
	require.NoError(t, p.Refresh(ctx))
	require.NoError(t, p.Refresh(ctx))
	assert.Equal(t, 3, p.Replica().Snapshot().Len(), "merge never drops records")

	// Replica holds a, b, c; the batch adds two records but is still three long.
	require.NoError(t, p.Refresh(ctx))
	assert.Equal(t, 5, p.Replica().Snapshot().Len())

	require.Equal(t, 2, notifier.count())
	assert.Equal(t, [2]int{0, 3}, notifier.calls[0])
	assert.Equal(t, [2]int{3, 1}, notifier.calls[1])
}
