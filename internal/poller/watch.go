package poller

import (
	"context"
	"errors"
	"time"

	"emart_admin/internal/api"
	"emart_admin/internal/auth"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultReconnectDelay is the wait between event stream reconnects.
const DefaultReconnectDelay = 5 * time.Second

// EventSource holds an event stream open and hands every message to handle
// until the stream ends.
type EventSource func(ctx context.Context, handle func(api.Event)) error

// Refresher is anything that can be asked to re-fetch now.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Runner is a long-lived loop stopped by cancelling ctx.
type Runner interface {
	Run(ctx context.Context) error
}

type RunnerFunc func(ctx context.Context) error

func (f RunnerFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Watch refreshes target whenever the stream reports a new order. The stream
// is reopened after delay when it drops; an authentication failure ends the
// watch since retrying cannot fix it.
func Watch(ctx context.Context, source EventSource, target Refresher, delay time.Duration, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("watch")
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}

	for {
		err := source(ctx, func(ev api.Event) {
			if ev.Type != api.EventNewOrder {
				return
			}
			logger.Debug("new order announced")
			if err := target.Refresh(ctx); err != nil && !errors.Is(err, ErrInFlight) {
				logger.Warn("event-triggered refresh failed", zap.Error(err))
			}
		})
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, auth.ErrNotAuthenticated) || errors.Is(err, api.ErrUnauthorized) {
			return err
		}

		logger.Warn("event stream closed, reconnecting", zap.Error(err), zap.Duration("delay", delay))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// RunAll runs every runner until ctx is cancelled or one of them fails.
func RunAll(ctx context.Context, runners ...Runner) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		g.Go(func() error {
			return r.Run(ctx)
		})
	}
	return g.Wait()
}
