package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"emart_admin/internal/api"
	"emart_admin/internal/auth"
	"emart_admin/internal/cart"
	"emart_admin/internal/catalog"
	"emart_admin/internal/config"
	"emart_admin/internal/insights"
	"emart_admin/internal/ledger"
	"emart_admin/internal/llm"
	"emart_admin/internal/metrics"
	"emart_admin/internal/poller"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const catalogJSON = `{
	"Vegetables": [
		{"id": "1", "retailer_id": "r1", "name": "Tomato", "price": "₹10", "sale_price": "", "availability": "in stock"},
		{"id": "2", "retailer_id": "r2", "name": "Onion", "price": "₹15", "sale_price": "", "availability": "in stock"},
		{"id": "3", "retailer_id": "r3", "name": "Garlic", "price": "₹40", "sale_price": "", "availability": "out of stock"}
	]
}`

func newTestRunner(t *testing.T, srv *httptest.Server, stdin string, loggedIn bool) (*Runner, *bytes.Buffer) {
	t.Helper()

	cfg := config.Default()
	cfg.APIBaseURL = srv.URL
	cfg.Timeout = 5 * time.Second

	logger := zaptest.NewLogger(t)
	m := metrics.New()
	client := api.NewClient(cfg, m, logger)
	store := auth.NewStore()
	if loggedIn {
		store.Set(auth.NewSession("tok", "ops@example.com", time.Now(), time.Hour))
	}
	settings, err := cart.NewSettings(cfg)
	require.NoError(t, err)
	reconciler := ledger.NewReconciler(client, logger)

	r := NewRunner(Params{
		Config:         cfg,
		Logger:         logger,
		Metrics:        m,
		Client:         client,
		Store:          store,
		VendorProducts: catalog.NewVendorProducts(client, m, logger),
		Builder:        cart.NewBuilder(settings, cart.NewOrderIDs()),
		Checkout:       cart.NewCheckout(client, logger),
		OrderItems:     cart.NewOrderItems(client),
		Reconciler:     reconciler,
		Insights:       insights.NewService(client, reconciler, nil, logger),
	})
	out := &bytes.Buffer{}
	r.in = strings.NewReader(stdin)
	r.out = out
	return r, out
}

func TestParseArgs(t *testing.T) {
	opts, err := ParseArgs([]string{"--json", "--timeout", "7", "--email", "ops@example.com", "Ledger", "v1"}, io.Discard)
	require.NoError(t, err)
	assert.True(t, opts.JSON)
	assert.Equal(t, "ledger", opts.Command)
	assert.Equal(t, []string{"v1"}, opts.Args)

	cfg := config.Default()
	cfg.Password = "from-config"
	applied := opts.Apply(cfg)
	assert.Equal(t, 7*time.Second, applied.Timeout)
	assert.Equal(t, "ops@example.com", applied.Email)
	assert.Equal(t, "from-config", applied.Password)
	assert.Equal(t, cfg.APIBaseURL, applied.APIBaseURL)

	_, err = ParseArgs([]string{"--json"}, io.Discard)
	require.ErrorIs(t, err, ErrNoCommand)
}

func TestParseMixed(t *testing.T) {
	fs := newFlagSet("vendor-price")
	price := fs.String("price", "", "")
	positional, err := parseMixed(fs, []string{"v1", "--price", "₹20", "p1", "percentage"})
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "p1", "percentage"}, positional)
	assert.Equal(t, "₹20", *price)

	_, err = parseMixed(newFlagSet("x"), []string{"--nope"})
	require.ErrorIs(t, err, ErrUsage)
}

func TestFilters(t *testing.T) {
	orders := []api.Order{
		{ID: "A1", User: "919800000001", Feedback: "5"},
		{ID: "B2", User: "919800000002", Feedback: "3"},
	}
	assert.Len(t, filterOrders(orders, "a1", ""), 1)
	assert.Len(t, filterOrders(orders, "9198", "3"), 1)
	assert.Len(t, filterOrders(orders, "", ""), 2)

	users := []api.User{
		{ID: "1", Phone: "919800000001", CreatedAt: "2024-05-01T10:00:00Z"},
		{ID: "2", Phone: "919800000002", CreatedAt: "2024-05-02T10:00:00Z"},
	}
	got := filterUsers(users, "0002", "")
	require.Len(t, got, 1)
	assert.Equal(t, api.Text("2"), got[0].ID)
	assert.Len(t, filterUsers(users, "", "2024-05-01"), 1)

	vendors := []api.Vendor{{Name: "Fresh Farms", Phone: "911"}, {Name: "Dairy", ShopName: "Milky Way", Phone: "912"}}
	assert.Len(t, filterVendors(vendors, "milky"), 1)
	assert.Len(t, filterVendors(vendors, "91"), 2)
}

func TestFriendlyError(t *testing.T) {
	partial := &cart.PartialCheckoutError{OrderID: "ORDER-123", Err: errors.New("boom")}
	assert.Contains(t, friendlyError(fmt.Errorf("checkout: %w", partial)), "ORDER-123")
	assert.Contains(t, friendlyError(auth.ErrNotAuthenticated), "login")
	assert.Contains(t, friendlyError(fmt.Errorf("%w: %w", api.ErrUnauthorized, &api.APIError{StatusCode: 401})), "rejected")
	assert.Contains(t, friendlyError(llm.ErrNotConfigured), "llm_api_key")
	assert.Equal(t, "Server error: 502 Bad Gateway", friendlyError(&api.APIError{StatusCode: 502, Status: "502 Bad Gateway"}))
	assert.Equal(t, "plain", friendlyError(errors.New("plain")))
	assert.Empty(t, friendlyError(nil))
}

func TestRun_RequiresSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Errorf("no request expected without a session")
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r, _ := newTestRunner(t, srv, "", false)
	err := r.run(context.Background(), "orders", nil)
	require.ErrorIs(t, err, auth.ErrNotAuthenticated)

	err = r.run(context.Background(), "frobnicate", nil)
	require.ErrorIs(t, err, ErrUsage)
}

func TestRun_LoginWithConfiguredCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/login":
			_, _ = io.WriteString(w, `{"status":200,"token":"fresh-token","message":"ok"}`)
		case "/orders":
			assert.Equal(t, "Bearer fresh-token", req.Header.Get("Authorization"))
			_, _ = io.WriteString(w, `[{"id":"7","user":"919800000001","status":"pending","bill_amount":95,"created_at":"2024-05-01T10:00:00Z"}]`)
		default:
			http.NotFound(w, req)
		}
	}))
	defer srv.Close()

	r, out := newTestRunner(t, srv, "", false)
	r.cfg.Email = "ops@example.com"
	r.cfg.Password = "secret"

	require.NoError(t, r.run(context.Background(), "orders", nil))
	assert.Contains(t, out.String(), "919800000001")
	assert.Contains(t, out.String(), "₹95.00")

	s, err := r.store.Current()
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", s.Token)
}

func TestBill_PartialCheckoutThenRetry(t *testing.T) {
	var (
		mu      sync.Mutex
		created []map[string]any
		attachN int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch req.URL.Path {
		case "/products":
			_, _ = io.WriteString(w, catalogJSON)
		case "/orders":
			var body map[string]any
			assert.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			created = append(created, body)
			_, _ = io.WriteString(w, `{"order_id":"ORDER-123","message":"Order created"}`)
		case "/order-items/update":
			attachN++
			if attachN == 1 {
				http.Error(w, "db down", http.StatusInternalServerError)
				return
			}
			_, _ = io.WriteString(w, `{"message":200}`)
		default:
			http.NotFound(w, req)
		}
	}))
	defer srv.Close()

	script := strings.Join([]string{
		"add 3 1",
		"add 1 2",
		"add 2 3",
		"checkout",
		"phone 9800000001",
		"checkout",
		"checkout",
		"retry",
		"exit",
	}, "\n") + "\n"
	r, out := newTestRunner(t, srv, script, true)

	require.NoError(t, r.run(context.Background(), "bill", nil))
	text := out.String()

	assert.Contains(t, text, "2 products in stock")
	assert.Contains(t, text, "invalid selection")
	assert.Contains(t, text, "Subtotal: ₹65.00")
	assert.Contains(t, text, "missing required field")
	assert.Contains(t, text, "Order ORDER-123 was created but its items were not attached")
	assert.Contains(t, text, "waiting for its items")
	assert.Contains(t, text, "Items attached to order ORDER-123.")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, created, 1)
	assert.Equal(t, "919800000001", created[0]["userid"])
	assert.InDelta(t, 95, created[0]["bill_amount"], 1e-9)
	assert.Equal(t, 2, attachN)
}

func TestLedgerAndPay(t *testing.T) {
	var cleared bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/productsNew":
			var body struct {
				VendorID string `json:"vendorId"`
				Type     string `json:"type"`
			}
			assert.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, "v1", body.VendorID)
			switch {
			case body.Type == "paid" && cleared:
				_, _ = io.WriteString(w, `{"transactions":[{"order_id":"o1","bill_amount":100}],"cleared_amount":90}`)
			case body.Type == "paid":
				_, _ = io.WriteString(w, `{"transactions":[],"cleared_amount":0}`)
			case cleared:
				_, _ = io.WriteString(w, `{"orders":[],"total_sale":0,"commission":0,"payable":0}`)
			default:
				_, _ = io.WriteString(w, `{"percentage":{"orders":[{"order_id":"o1","sold_amount":100,"vendor_price":NaN}],"total_sale":100,"commission_amount":10,"payable":90}}`)
			}
		case "/clearPayment":
			cleared = true
			w.WriteHeader(http.StatusOK)
			_, _ = io.WriteString(w, `{"message":"ok"}`)
		default:
			http.NotFound(w, req)
		}
	}))
	defer srv.Close()

	r, out := newTestRunner(t, srv, "", true)
	require.NoError(t, r.run(context.Background(), "ledger", []string{"v1"}))
	assert.Contains(t, out.String(), "Pending, margin products:\n- (nothing pending)")
	assert.Contains(t, out.String(), "Total payable: ₹90.00")

	out.Reset()
	require.NoError(t, r.run(context.Background(), "pay", []string{"v1", "UTR-1", "march"}))
	assert.Contains(t, out.String(), "Payment UTR-1 recorded")
	assert.Contains(t, out.String(), "Cleared so far: ₹90.00")
	assert.Contains(t, out.String(), "Total payable: ₹0.00")

	err := r.run(context.Background(), "pay", []string{"v1", "UTR-2"})
	require.ErrorIs(t, err, ledger.ErrNothingPayable)
}

func TestInsightsWithoutLLM(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/orders/insights/orderSummary" {
			http.NotFound(w, req)
			return
		}
		_, _ = io.WriteString(w, `{"categories":["Mon","Tue"],"series":[{"name":"Orders","data":[4,6]}]}`)
	}))
	defer srv.Close()

	r, out := newTestRunner(t, srv, "", true)
	require.NoError(t, r.run(context.Background(), "insights", nil))
	assert.Contains(t, out.String(), "Total  10")
}

func TestViewNewShowsEachRecordOnce(t *testing.T) {
	p := poller.New("orders", time.Minute, func(context.Context) ([]api.Order, error) {
		return []api.Order{{ID: "1"}, {ID: "2"}}, nil
	})
	require.NoError(t, p.Refresh(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	var shown []api.Order
	calls := 0
	err := viewNew(ctx, p.Replica(), 5*time.Millisecond, func(fresh []api.Order) {
		calls++
		shown = append(shown, fresh...)
		cancel()
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Len(t, shown, 2)
}

func TestBell(t *testing.T) {
	var buf bytes.Buffer
	b := bell{out: &buf}
	b.Notify("orders", 3, 3)
	b.Notify("orders", 3, 5)
	b.Notify("users", 5, 4)
	assert.Equal(t, "\a>> 2 new orders\n\a>> users now lists 4, was 5\n", buf.String())
}

type countingRefresher struct {
	n atomic.Int32
}

func (c *countingRefresher) Refresh(context.Context) error {
	c.n.Add(1)
	return nil
}

func TestPushUpdates_RejectedStreamKeepsPolling(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	r, out := newTestRunner(t, srv, "", true)

	events := func(context.Context, func(api.Event)) error {
		return fmt.Errorf("%w: %w", api.ErrUnauthorized, &api.APIError{StatusCode: 403, Status: "403 Forbidden"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	polled := false
	err := poller.RunAll(ctx,
		r.pushUpdates(events, &countingRefresher{}, out),
		poller.RunnerFunc(func(ctx context.Context) error {
			select {
			case <-ctx.Done():
			case <-time.After(100 * time.Millisecond):
				polled = true
			}
			return nil
		}),
	)
	require.NoError(t, err)
	assert.True(t, polled, "a rejected stream must not cancel the other runners")
	assert.Contains(t, out.String(), "Live updates are off")
}
