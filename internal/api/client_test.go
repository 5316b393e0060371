package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"emart_admin/internal/auth"
	"emart_admin/internal/config"
	"emart_admin/internal/metrics"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.APIBaseURL = srv.URL
	cfg.Timeout = 5 * time.Second
	return NewClient(cfg, metrics.New(), zaptest.NewLogger(t))
}

func testSession() auth.Session {
	return auth.NewSession("tok-123", "ops@example.com", time.Now(), time.Hour)
}

func TestClient_SendsBearerAndRequestID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get(requestIDHeader))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"id":"u1","name":"Asha","phone":919800000001,"lastlogin":"2026-03-01T10:00:00"}]`)
	}))

	users, err := client.ListUsers(context.Background(), testSession())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "919800000001", users[0].Phone.String())
}

func TestClient_RequiresSession(t *testing.T) {
	called := false
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	_, err := client.ListOrders(context.Background(), auth.Session{})
	require.ErrorIs(t, err, auth.ErrNotAuthenticated)
	assert.False(t, called)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, wantErr: ErrUnauthorized},
		{name: "rate limited", status: http.StatusTooManyRequests, wantErr: ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			client.http.SetRetryCount(0)

			_, err := client.ListVendors(context.Background(), testSession())
			require.ErrorIs(t, err, tt.wantErr)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
		})
	}

	t.Run("server error", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "boom")
		}))

		_, err := client.ListUsers(context.Background(), testSession())
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "boom", apiErr.Body)
	})
}

func TestClient_MalformedPayload(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"detail":"not a list"}`)
	}))

	_, err := client.ListOrders(context.Background(), testSession())
	require.ErrorIs(t, err, ErrMalformedPayload)
}

func TestClient_Login(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/login", r.URL.Path)
			assert.Empty(t, r.Header.Get("Authorization"))
			_, _ = io.WriteString(w, `{"status":200,"token":"abc","message":"Login successful"}`)
		}))

		res, err := client.Login(context.Background(), "ops@example.com", "secret")
		require.NoError(t, err)
		assert.Equal(t, "abc", res.Token)
	})

	t.Run("rejected in body", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"status":401,"message":"Invalid credentials"}`)
		}))

		_, err := client.Login(context.Background(), "ops@example.com", "wrong")
		require.ErrorIs(t, err, ErrLoginFailed)
		assert.Contains(t, err.Error(), "Invalid credentials")
	})
}

func TestClient_CreateOrderAndAttach(t *testing.T) {
	var attached attachItemsRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orders":
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, 65.0, body["bill_amount"])
			_, _ = io.WriteString(w, `{"order_id":"ORDER-123"}`)
		case "/order-items/update":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&attached))
			_, _ = io.WriteString(w, `{"message":200}`)
		}
	}))

	ctx := context.Background()
	id, err := client.CreateOrder(ctx, testSession(), NewOrder{
		UserID:     "919800000001",
		BillAmount: NewNumber(decimal.NewFromInt(65)),
		IsOffline:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "ORDER-123", id)

	err = client.AttachItems(ctx, testSession(), id, []AttachItem{
		{ProductRetailerID: "p1", Quantity: 2, ItemPrice: NewNumber(decimal.RequireFromString("10.50"))},
	})
	require.NoError(t, err)
	assert.Equal(t, "ORDER-123", attached.OrderID)
	require.Len(t, attached.Items, 1)
	assert.True(t, attached.Items[0].ItemPrice.Equal(decimal.RequireFromString("10.5")))
}

func TestClient_AttachItemsRejected(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"error":"unknown product"}`)
	}))

	err := client.AttachItems(context.Background(), testSession(), "ORDER-1", nil)
	require.ErrorIs(t, err, ErrUnexpectedResponse)
	assert.Contains(t, err.Error(), "unknown product")
}

func TestClient_ConfirmationMessages(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/mapProducts":
			_, _ = io.WriteString(w, `{"message":"Product mapped successfully"}`)
		case "/deMapProducts":
			_, _ = io.WriteString(w, `{"message":"Product not found"}`)
		}
	}))

	ctx := context.Background()
	require.NoError(t, client.MapProduct(ctx, testSession(), MapProductRequest{RetailerID: "r1", VendorID: "v1"}))

	err := client.UnmapProduct(ctx, testSession(), "v1", "r1")
	require.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestClient_UpdateOrderStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/orders/42", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"status":"delivered"}`, string(body))
	}))

	require.NoError(t, client.UpdateOrderStatus(context.Background(), testSession(), "42", "delivered"))
}

func TestClient_ListOrderItems(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ORDER-9", r.URL.Query().Get("order_id"))
		_, _ = io.WriteString(w, `{"status":"success","data":[{"product_id":"p1","quantity":2,"item_price":12.5}]}`)
	}))

	items, err := client.ListOrderItems(context.Background(), testSession(), "ORDER-9")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].ProductID.String())
	assert.True(t, items[0].ItemPrice.Decimal.Equal(decimal.RequireFromString("12.5")))
}

func TestClient_PendingTransactionsSanitizesNaN(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"vendorId":"v1","type":"pending"}`, string(body))
		_, _ = io.WriteString(w, `{"margin":{"orders":[{"order_id":"o1","sold_amount":100,"vendor_price":NaN}],"total_sale":100,"commission_amount":10,"payable":90}}`)
	}))

	pending, err := client.PendingTransactions(context.Background(), testSession(), "v1")
	require.NoError(t, err)
	assert.Equal(t, ShapeSplit, pending.Shape)
	require.NotNil(t, pending.Margin)
	assert.Nil(t, pending.Percentage)
	require.Len(t, pending.Margin.Orders, 1)
	assert.False(t, pending.Margin.Orders[0].VendorPrice.Valid)
}

func TestClient_CatalogKeepsCategoryOrder(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"vegetables":[{"id":"1","name":"Tomato","price":"₹40"}],"count":2,"dairy":[{"id":"2","name":"Milk","price":"₹30"}],"bakery":[]}`)
	}))

	catalog, err := client.Catalog(context.Background(), testSession())
	require.NoError(t, err)

	var names []string
	for _, c := range catalog {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"vegetables", "dairy", "bakery"}, names)
}

func TestClient_CreateVendorExpectsCreated(t *testing.T) {
	status := http.StatusCreated
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	v := NewVendor{ID: "919811111111", Name: "Fresh Farm", ProductType: "multi", Commission: NewNumber(decimal.NewFromInt(15))}
	require.NoError(t, client.CreateVendor(context.Background(), testSession(), v))

	status = http.StatusOK
	require.ErrorIs(t, client.CreateVendor(context.Background(), testSession(), v), ErrUnexpectedResponse)
}

func TestSanitizeJSON(t *testing.T) {
	in := `{"a":NaN,"b":[Infinity,-Infinity,1],"c":"NaN stays","d":"say \"NaN\""}`
	out := string(sanitizeJSON([]byte(in)))
	assert.Equal(t, `{"a":null,"b":[null,null,1],"c":"NaN stays","d":"say \"NaN\""}`, out)
	assert.True(t, json.Valid([]byte(out)))
}

func TestObjectKeys(t *testing.T) {
	keys, err := objectKeys([]byte(`{"z":1,"a":{"nested":true},"m":[1,2]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m"}, keys)

	_, err = objectKeys([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestNumberMarshalsBare(t *testing.T) {
	b, err := json.Marshal(struct {
		Amount Number `json:"amount"`
	}{Amount: NewNumber(decimal.RequireFromString("65.00"))})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), `{"amount":65`))
}
