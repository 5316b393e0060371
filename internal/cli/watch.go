package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"emart_admin/internal/api"
	"emart_admin/internal/auth"
	"emart_admin/internal/collection"
	"emart_admin/internal/poller"

	"go.uber.org/zap"
)

const viewInterval = time.Second

// lockedWriter serializes output from the pollers, the viewer and the bell.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// bell rings the terminal when a fetched batch differs in size from what
// was held before.
type bell struct {
	out io.Writer
}

func (b bell) Notify(name string, before, after int) {
	switch {
	case after > before:
		fmt.Fprintf(b.out, "\a>> %d new %s\n", after-before, name)
	case after < before:
		fmt.Fprintf(b.out, "\a>> %s now lists %d, was %d\n", name, after, before)
	}
}

func (r *Runner) watchOrders(ctx context.Context, search, feedback string) error {
	s, err := r.session(ctx)
	if err != nil {
		return err
	}

	out := &lockedWriter{w: r.out}
	view := *r
	view.out = out

	latch := &poller.Latch{}
	common := []poller.Option{
		poller.WithMetrics(r.metrics),
		poller.WithLogger(r.logger),
		poller.WithErrorHandler(func(err error) {
			fmt.Fprintf(out, "! %s\n", friendlyError(err))
		}),
	}

	orders := poller.New("orders", r.cfg.OrdersPollInterval,
		func(ctx context.Context) ([]api.Order, error) { return r.client.ListOrders(ctx, s) },
		append(common, poller.WithAlert(latch, bell{out: out}))...,
	)
	users := poller.New("users", r.cfg.UsersPollInterval,
		func(ctx context.Context) ([]api.User, error) { return r.client.ListUsers(ctx, s) },
		common...,
	)

	events := func(ctx context.Context, handle func(api.Event)) error {
		return r.client.StreamEvents(ctx, s, handle)
	}

	go armOnInput(ctx, r.in, latch, out)
	fmt.Fprintln(out, "Watching orders. Press Enter to turn on new-order alerts, Ctrl+C to stop.")

	return poller.RunAll(ctx,
		orders,
		users,
		r.pushUpdates(events, orders, out),
		poller.RunnerFunc(func(ctx context.Context) error {
			return viewNew(ctx, orders.Replica(), viewInterval, func(fresh []api.Order) {
				view.writeOrders(withCustomerNames(filterOrders(fresh, search, feedback), users.Replica().Snapshot()))
			})
		}),
	)
}

// watchVendors keeps the vendor list live; used by `vendors --watch`.
func (r *Runner) watchVendors(ctx context.Context, s auth.Session, search string) error {
	out := &lockedWriter{w: r.out}
	view := *r
	view.out = out

	vendors := poller.New("vendors", r.cfg.VendorsPollInterval,
		func(ctx context.Context) ([]api.Vendor, error) { return r.client.ListVendors(ctx, s) },
		poller.WithMetrics(r.metrics),
		poller.WithLogger(r.logger),
		poller.WithErrorHandler(func(err error) {
			fmt.Fprintf(out, "! %s\n", friendlyError(err))
		}),
	)

	fmt.Fprintln(out, "Watching vendors. Ctrl+C to stop.")
	return poller.RunAll(ctx,
		vendors,
		poller.RunnerFunc(func(ctx context.Context) error {
			return viewNew(ctx, vendors.Replica(), viewInterval, func(fresh []api.Vendor) {
				view.writeVendors(filterVendors(fresh, search))
			})
		}),
	)
}

// pushUpdates refreshes target from the event stream. A stream the session
// may not open ends push updates only; the pollers keep running.
func (r *Runner) pushUpdates(events poller.EventSource, target poller.Refresher, out io.Writer) poller.Runner {
	return poller.RunnerFunc(func(ctx context.Context) error {
		err := poller.Watch(ctx, events, target, poller.DefaultReconnectDelay, r.logger)
		if err != nil {
			r.logger.Warn("event stream unavailable, polling only", zap.Error(err))
			fmt.Fprintf(out, "! Live updates are off (%s); still polling.\n", friendlyError(err))
		}
		return nil
	})
}

// viewNew hands show the records whose ids it has not shown before, checking
// the replica every interval.
func viewNew[T collection.Record](ctx context.Context, replica *poller.Replica[T], interval time.Duration, show func([]T)) error {
	seen := map[string]bool{}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		var fresh []T
		for _, rec := range replica.Snapshot().Items() {
			if !seen[rec.RecordID()] {
				seen[rec.RecordID()] = true
				fresh = append(fresh, rec)
			}
		}
		if len(fresh) > 0 {
			show(fresh)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// armOnInput arms the alert latch on the first line typed.
func armOnInput(ctx context.Context, in io.Reader, latch *poller.Latch, out io.Writer) {
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() || ctx.Err() != nil {
		return
	}
	latch.Arm()
	fmt.Fprintln(out, "Alerts on.")
}

func withCustomerNames(orders []api.Order, users collection.Collection[api.User]) []api.Order {
	out := make([]api.Order, len(orders))
	for i, o := range orders {
		if u, ok := users.Get(string(o.User)); ok && u.Name != "" {
			o.User = api.Text(fmt.Sprintf("%s (%s)", u.Name, o.User))
		}
		out[i] = o
	}
	return out
}
