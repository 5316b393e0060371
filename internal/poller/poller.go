// Package poller keeps local replicas of remote collections fresh, either on
// a fixed cadence or when the event stream announces a change.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"emart_admin/internal/collection"
	"emart_admin/internal/metrics"

	"go.uber.org/zap"
)

// ErrInFlight is returned by Refresh when the previous fetch has not finished.
var ErrInFlight = errors.New("refresh already in flight")

// Fetcher loads the current contents of a remote collection.
type Fetcher[T collection.Record] func(ctx context.Context) ([]T, error)

// Notifier is told when a fetched batch holds a different number of records
// than the replica did before the merge.
type Notifier interface {
	Notify(name string, before, after int)
}

type NotifierFunc func(name string, before, after int)

func (f NotifierFunc) Notify(name string, before, after int) {
	f(name, before, after)
}

// Latch is armed once by a user gesture and never disarmed.
type Latch struct {
	armed atomic.Bool
}

func (l *Latch) Arm() {
	l.armed.Store(true)
}

func (l *Latch) Armed() bool {
	return l != nil && l.armed.Load()
}

// Replica is the locally held copy of one collection. Merges from the poller
// and explicit user edits are its only writers.
type Replica[T collection.Record] struct {
	mu   sync.RWMutex
	data collection.Collection[T]
}

func (r *Replica[T]) Snapshot() collection.Collection[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data
}

// Update applies a local edit after the matching remote write succeeded.
func (r *Replica[T]) Update(id string, fn func(T) T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	updated, ok := r.data.Update(id, fn)
	if ok {
		r.data = updated
	}
	return ok
}

func (r *Replica[T]) merge(incoming []T) (before, after int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	before = r.data.Len()
	r.data = collection.Merge(r.data, incoming)
	return before, r.data.Len()
}

type settings struct {
	latch    *Latch
	notifier Notifier
	onError  func(error)
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

type Option func(*settings)

// WithAlert rings notifier on cardinality changes once latch is armed.
func WithAlert(latch *Latch, notifier Notifier) Option {
	return func(s *settings) {
		s.latch = latch
		s.notifier = notifier
	}
}

func WithErrorHandler(fn func(error)) Option {
	return func(s *settings) {
		s.onError = fn
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// Poller refreshes one replica. At most one fetch runs at a time; a refresh
// requested while one is in flight is skipped.
type Poller[T collection.Record] struct {
	name     string
	interval time.Duration
	fetch    Fetcher[T]
	replica  *Replica[T]
	settings settings
	inflight atomic.Bool
}

func New[T collection.Record](name string, interval time.Duration, fetch Fetcher[T], opts ...Option) *Poller[T] {
	s := settings{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}
	s.logger = s.logger.Named("poller").With(zap.String("collection", name))

	return &Poller[T]{
		name:     name,
		interval: interval,
		fetch:    fetch,
		replica:  &Replica[T]{},
		settings: s,
	}
}

func (p *Poller[T]) Name() string {
	return p.name
}

func (p *Poller[T]) Replica() *Replica[T] {
	return p.replica
}

// Refresh fetches once and merges the result. On failure the replica is left
// as it was and the error goes to the error handler as well as the caller.
func (p *Poller[T]) Refresh(ctx context.Context) error {
	if !p.inflight.CompareAndSwap(false, true) {
		p.settings.metrics.PollTick(p.name, metrics.PollSkipped)
		p.settings.logger.Debug("refresh skipped, previous fetch still running")
		return ErrInFlight
	}
	defer p.inflight.Store(false)

	items, err := p.fetch(ctx)
	if err != nil {
		p.settings.metrics.PollTick(p.name, metrics.PollError)
		p.settings.logger.Warn("refresh failed, keeping previous replica", zap.Error(err))
		if p.settings.onError != nil {
			p.settings.onError(err)
		}
		return fmt.Errorf("refresh %s: %w", p.name, err)
	}

	before, after := p.replica.merge(items)
	p.settings.metrics.PollTick(p.name, metrics.PollOK)
	p.settings.metrics.ReplicaSize(p.name, after)
	p.settings.logger.Debug("replica merged",
		zap.Int("fetched", len(items)),
		zap.Int("before", before),
		zap.Int("after", after),
	)

	if fetched := len(items); fetched != before && p.settings.notifier != nil && p.settings.latch.Armed() {
		p.settings.notifier.Notify(p.name, before, fetched)
	}
	return nil
}

// Run refreshes immediately and then on every tick until ctx is cancelled.
// Each tick fetches in its own goroutine, so a slow fetch makes the next tick
// a skip instead of delaying it.
func (p *Poller[T]) Run(ctx context.Context) error {
	if p.interval <= 0 {
		return fmt.Errorf("poller %s: interval must be positive", p.name)
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	tick := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Refresh(ctx)
		}()
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.settings.logger.Info("poller started", zap.Duration("interval", p.interval))
	tick()
	for {
		select {
		case <-ctx.Done():
			p.settings.logger.Info("poller stopped")
			return nil
		case <-ticker.C:
			tick()
		}
	}
}
