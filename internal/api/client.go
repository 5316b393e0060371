package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"emart_admin/internal/auth"
	"emart_admin/internal/config"
	"emart_admin/internal/metrics"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

var (
	ErrUnauthorized       = errors.New("emart unauthorized")
	ErrRateLimited        = errors.New("emart rate limited")
	ErrMalformedPayload   = errors.New("malformed payload")
	ErrUnexpectedResponse = errors.New("unexpected response")
	ErrLoginFailed        = errors.New("login failed")
)

// Confirmation messages the backend answers with on success.
const (
	msgProductMapped   = "Product mapped successfully"
	msgProductUnmapped = "Product unmapped successfully"
	msgVendorPrice     = "Vendor price updated successfully"
	msgProductMeta     = "Product details updated successfully"
)

type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("emart api error: %s", e.Status)
	}
	return fmt.Sprintf("emart api error: %s: %s", e.Status, e.Body)
}

type Client struct {
	http       *resty.Client
	stream     *resty.Client
	eventsPath string
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

func NewClient(cfg config.Config, m *metrics.Metrics, logger *zap.Logger) *Client {
	baseURL := strings.TrimRight(cfg.APIBaseURL, "/")

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout).
		SetRetryCount(1).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if resp == nil || resp.Request == nil || !idempotent(resp.Request.Method) {
				return false
			}
			return err != nil || resp.StatusCode() == http.StatusTooManyRequests
		})

	// The event stream stays open indefinitely, so it gets its own client
	// without a request timeout.
	streamClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "text/event-stream").
		SetHeader("Cache-Control", "no-cache")

	return &Client{
		http:       httpClient,
		stream:     streamClient,
		eventsPath: cfg.EventsPath,
		metrics:    m,
		logger:     logger.Named("api"),
	}
}

type request struct {
	method   string
	path     string
	endpoint string
	query    map[string]string
	body     any
}

func get(path string) request {
	return request{method: http.MethodGet, path: path, endpoint: path}
}

func post(path string, body any) request {
	return request{method: http.MethodPost, path: path, endpoint: path, body: body}
}

// do sends an authenticated request. The session is checked before anything
// goes on the wire.
func (c *Client) do(ctx context.Context, session auth.Session, r request) (*resty.Response, error) {
	token, err := session.Bearer()
	if err != nil {
		return nil, err
	}
	return c.send(ctx, token, r)
}

func (c *Client) send(ctx context.Context, token string, r request) (*resty.Response, error) {
	requestID := uuid.NewString()
	req := c.http.R().
		SetContext(ctx).
		SetHeader(requestIDHeader, requestID)
	if token != "" {
		req.SetAuthToken(token)
	}
	if r.body != nil {
		req.SetBody(r.body)
	}
	if len(r.query) > 0 {
		req.SetQueryParams(r.query)
	}

	start := time.Now()
	resp, err := req.Execute(r.method, r.path)
	if err != nil {
		c.metrics.ObserveAPI(r.endpoint, 0, time.Since(start))
		return nil, fmt.Errorf("emart request %s %s: %w", r.method, r.endpoint, err)
	}
	c.metrics.ObserveAPI(r.endpoint, resp.StatusCode(), time.Since(start))
	c.logger.Debug("api call",
		zap.String("method", r.method),
		zap.String("endpoint", r.endpoint),
		zap.Int("status", resp.StatusCode()),
		zap.String("request_id", requestID),
	)

	if resp.IsError() {
		return nil, apiErrorFromResponse(resp.StatusCode(), resp.Status(), resp.String())
	}
	return resp, nil
}

// fetch sends r and decodes the body into result.
func (c *Client) fetch(ctx context.Context, session auth.Session, r request, result any) error {
	resp, err := c.do(ctx, session, r)
	if err != nil {
		return err
	}
	if err := decode(resp.Body(), result); err != nil {
		return fmt.Errorf("%s: %w", r.endpoint, err)
	}
	return nil
}

type messageResponse struct {
	Message Text `json:"message"`
	Error   Text `json:"error"`
}

// confirm sends r and checks the confirmation message in the answer.
func (c *Client) confirm(ctx context.Context, session auth.Session, r request, want string) error {
	var resp messageResponse
	if err := c.fetch(ctx, session, r, &resp); err != nil {
		return err
	}
	if resp.Message.String() != want {
		return fmt.Errorf("%w from %s: %q", ErrUnexpectedResponse, r.endpoint, firstNonEmpty(resp.Message.String(), resp.Error.String()))
	}
	return nil
}

type LoginResult struct {
	Token   string
	Message string
}

type loginResponse struct {
	Status  Text   `json:"status"`
	Token   string `json:"token"`
	Message string `json:"message"`
}

// Login exchanges credentials for a bearer token. The backend reports
// failures in the body, so a 2xx alone is not success.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return LoginResult{}, fmt.Errorf("%w: email and password are required", ErrLoginFailed)
	}

	resp, err := c.send(ctx, "", post("/login", map[string]string{
		"email":    email,
		"password": password,
	}))
	if err != nil {
		return LoginResult{}, err
	}

	var body loginResponse
	if err := decode(resp.Body(), &body); err != nil {
		return LoginResult{}, fmt.Errorf("/login: %w", err)
	}
	if body.Status.String() != "200" || body.Token == "" {
		return LoginResult{}, fmt.Errorf("%w: %s", ErrLoginFailed, firstNonEmpty(body.Message, "no token in response"))
	}
	return LoginResult{Token: body.Token, Message: body.Message}, nil
}

func (c *Client) Signup(ctx context.Context, username, email, password string) error {
	resp, err := c.send(ctx, "", post("/signup", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}))
	if err != nil {
		return err
	}

	var body loginResponse
	if err := decode(resp.Body(), &body); err != nil {
		return fmt.Errorf("/signup: %w", err)
	}
	if body.Status.String() != "200" {
		return fmt.Errorf("%w: signup: %s", ErrUnexpectedResponse, body.Message)
	}
	return nil
}

func (c *Client) ListOrders(ctx context.Context, session auth.Session) ([]Order, error) {
	var orders []Order
	if err := c.fetch(ctx, session, get("/orders"), &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

type createOrderResponse struct {
	OrderID Text   `json:"order_id"`
	Message string `json:"message"`
}

// CreateOrder posts an order header and returns the id the server assigned.
func (c *Client) CreateOrder(ctx context.Context, session auth.Session, order NewOrder) (string, error) {
	var resp createOrderResponse
	if err := c.fetch(ctx, session, post("/orders", order), &resp); err != nil {
		return "", err
	}
	if resp.OrderID == "" {
		return "", fmt.Errorf("%w from /orders: no order_id", ErrUnexpectedResponse)
	}
	return resp.OrderID.String(), nil
}

type attachItemsRequest struct {
	OrderID string       `json:"order_id"`
	Items   []AttachItem `json:"items"`
}

// AttachItems adds line items to an order created by CreateOrder.
func (c *Client) AttachItems(ctx context.Context, session auth.Session, orderID string, items []AttachItem) error {
	var resp messageResponse
	r := post("/order-items/update", attachItemsRequest{OrderID: orderID, Items: items})
	if err := c.fetch(ctx, session, r, &resp); err != nil {
		return err
	}
	if resp.Message.String() != "200" {
		return fmt.Errorf("%w from /order-items/update: %q", ErrUnexpectedResponse, firstNonEmpty(resp.Message.String(), resp.Error.String()))
	}
	return nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, session auth.Session, orderID, status string) error {
	r := request{
		method:   http.MethodPut,
		path:     "/orders/" + orderID,
		endpoint: "/orders/{id}",
		body:     map[string]string{"status": status},
	}
	_, err := c.do(ctx, session, r)
	return err
}

type orderItemsResponse struct {
	Status string      `json:"status"`
	Data   []OrderItem `json:"data"`
}

func (c *Client) ListOrderItems(ctx context.Context, session auth.Session, orderID string) ([]OrderItem, error) {
	r := get("/order-items/all")
	r.query = map[string]string{"order_id": orderID}

	var resp orderItemsResponse
	if err := c.fetch(ctx, session, r, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" || resp.Data == nil {
		return nil, fmt.Errorf("%w from /order-items/all: status %q", ErrUnexpectedResponse, resp.Status)
	}
	return resp.Data, nil
}

type updateOrderItemsRequest struct {
	OrderID string       `json:"order_id"`
	Items   []ItemChange `json:"items"`
}

func (c *Client) UpdateOrderItems(ctx context.Context, session auth.Session, orderID string, changes []ItemChange) error {
	_, err := c.do(ctx, session, post("/update-order-items", updateOrderItemsRequest{OrderID: orderID, Items: changes}))
	return err
}

func (c *Client) ListUsers(ctx context.Context, session auth.Session) ([]User, error) {
	var users []User
	if err := c.fetch(ctx, session, get("/users"), &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Catalog returns the categorized product listing.
func (c *Client) Catalog(ctx context.Context, session auth.Session) (Catalog, error) {
	var catalog Catalog
	if err := c.fetch(ctx, session, get("/products"), &catalog); err != nil {
		return nil, err
	}
	return catalog, nil
}

// UpdateStock flips a catalog product between in stock and out of stock.
func (c *Client) UpdateStock(ctx context.Context, session auth.Session, productID, availability string) error {
	_, err := c.do(ctx, session, post("/updateStock", map[string]string{
		"id":           productID,
		"availability": availability,
	}))
	return err
}

func (c *Client) ListVendors(ctx context.Context, session auth.Session) ([]Vendor, error) {
	var vendors []Vendor
	if err := c.fetch(ctx, session, get("/vendors"), &vendors); err != nil {
		return nil, err
	}
	return vendors, nil
}

func (c *Client) CreateVendor(ctx context.Context, session auth.Session, vendor NewVendor) error {
	resp, err := c.do(ctx, session, post("/vendors", vendor))
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusCreated {
		return fmt.Errorf("%w from /vendors: %s", ErrUnexpectedResponse, resp.Status())
	}
	return nil
}

type vendorRequest struct {
	VendorID string `json:"vendorId"`
}

func (c *Client) VendorProducts(ctx context.Context, session auth.Session, vendorID string) ([]Product, error) {
	var products []Product
	if err := c.fetch(ctx, session, post("/vendorsproducts", vendorRequest{VendorID: vendorID}), &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) MapProduct(ctx context.Context, session auth.Session, req MapProductRequest) error {
	return c.confirm(ctx, session, post("/mapProducts", req), msgProductMapped)
}

func (c *Client) UnmapProduct(ctx context.Context, session auth.Session, vendorID, retailerID string) error {
	return c.confirm(ctx, session, post("/deMapProducts", map[string]string{
		"retailer_id": retailerID,
		"vendor_id":   vendorID,
	}), msgProductUnmapped)
}

func (c *Client) UpdateVendorPrice(ctx context.Context, session auth.Session, req VendorPriceUpdate) error {
	return c.confirm(ctx, session, post("/update-vendor-price", req), msgVendorPrice)
}

func (c *Client) UpdateProductMeta(ctx context.Context, session auth.Session, req ProductMetaUpdate) error {
	return c.confirm(ctx, session, post("/update-product-meta", req), msgProductMeta)
}

type transactionsRequest struct {
	VendorID string `json:"vendorId"`
	Type     string `json:"type"`
}

func (c *Client) PaidTransactions(ctx context.Context, session auth.Session, vendorID string) (PaidTransactions, error) {
	var paid PaidTransactions
	r := post("/productsNew", transactionsRequest{VendorID: vendorID, Type: "paid"})
	if err := c.fetch(ctx, session, r, &paid); err != nil {
		return PaidTransactions{}, err
	}
	return paid, nil
}

// PendingTransactions returns the unpaid ledger, already resolved to its shape.
func (c *Client) PendingTransactions(ctx context.Context, session auth.Session, vendorID string) (PendingTransactions, error) {
	var pending PendingTransactions
	r := post("/productsNew", transactionsRequest{VendorID: vendorID, Type: "pending"})
	if err := c.fetch(ctx, session, r, &pending); err != nil {
		return PendingTransactions{}, err
	}
	return pending, nil
}

type clearPaymentRequest struct {
	VendorID      string `json:"vendorId"`
	TransactionID string `json:"transactionId"`
	Description   string `json:"description"`
}

func (c *Client) ClearPayment(ctx context.Context, session auth.Session, vendorID, transactionID, description string) error {
	resp, err := c.do(ctx, session, post("/clearPayment", clearPaymentRequest{
		VendorID:      vendorID,
		TransactionID: transactionID,
		Description:   description,
	}))
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w from /clearPayment: %s", ErrUnexpectedResponse, resp.Status())
	}
	return nil
}

func (c *Client) OrderSummary(ctx context.Context, session auth.Session) (OrderSummary, error) {
	var summary OrderSummary
	if err := c.fetch(ctx, session, get("/orders/insights/orderSummary"), &summary); err != nil {
		return OrderSummary{}, err
	}
	return summary, nil
}

func apiErrorFromResponse(code int, status, body string) error {
	apiErr := &APIError{
		StatusCode: code,
		Status:     status,
		Body:       strings.TrimSpace(body),
	}

	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrUnauthorized, apiErr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrRateLimited, apiErr)
	default:
		return apiErr
	}
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodOptions:
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
