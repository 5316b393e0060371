package cart

import (
	"context"
	"errors"
	"fmt"

	"emart_admin/internal/api"
	"emart_admin/internal/auth"

	"go.uber.org/zap"
)

// ErrItemsNotAttached marks a checkout whose order exists remotely without
// its line items.
var ErrItemsNotAttached = errors.New("order created but items were not attached")

// offlineFeedback is the rating recorded for bills entered at the counter.
const offlineFeedback = "5"

type Backend interface {
	CreateOrder(ctx context.Context, session auth.Session, order api.NewOrder) (string, error)
	AttachItems(ctx context.Context, session auth.Session, orderID string, items []api.AttachItem) error
}

// PartialCheckoutError reports that the order header was created but
// attaching items failed. The header is left in place; RetryAttach can
// finish the job.
type PartialCheckoutError struct {
	OrderID string
	Items   []api.AttachItem
	Err     error
}

func (e *PartialCheckoutError) Error() string {
	return fmt.Sprintf("order %s created but items were not attached: %v", e.OrderID, e.Err)
}

func (e *PartialCheckoutError) Unwrap() []error {
	return []error{ErrItemsNotAttached, e.Err}
}

type Result struct {
	OrderID string
	Receipt Receipt
}

type Checkout struct {
	backend Backend
	logger  *zap.Logger
}

func NewCheckout(backend Backend, logger *zap.Logger) *Checkout {
	return &Checkout{backend: backend, logger: logger.Named("checkout")}
}

// Submit creates the order header and then attaches its items. A failure in
// the second step comes back as *PartialCheckoutError.
func (c *Checkout) Submit(ctx context.Context, session auth.Session, receipt Receipt) (Result, error) {
	if len(receipt.Items) == 0 {
		return Result{}, &ValidationError{Err: ErrEmptyCart}
	}
	if receipt.Phone == "" {
		return Result{}, invalid(ErrMissingField, "phone number is required")
	}
	if _, err := session.Bearer(); err != nil {
		return Result{}, err
	}

	orderID, err := c.backend.CreateOrder(ctx, session, api.NewOrder{
		UserID:     receipt.Phone,
		BillAmount: api.NewNumber(receipt.GrandTotal),
		Feedback:   offlineFeedback,
		Receipt:    receipt.Text,
		IsOffline:  true,
	})
	if err != nil {
		return Result{}, fmt.Errorf("create order: %w", err)
	}
	c.logger.Info("order created", zap.String("order_id", orderID), zap.String("receipt_id", receipt.OrderID))

	items := attachItems(receipt.Items)
	if err := c.backend.AttachItems(ctx, session, orderID, items); err != nil {
		c.logger.Error("attaching items failed", zap.String("order_id", orderID), zap.Error(err))
		return Result{OrderID: orderID, Receipt: receipt}, &PartialCheckoutError{OrderID: orderID, Items: items, Err: err}
	}

	c.logger.Info("checkout complete", zap.String("order_id", orderID), zap.Int("items", len(items)))
	return Result{OrderID: orderID, Receipt: receipt}, nil
}

// RetryAttach repeats only the item step for an order left partial.
func (c *Checkout) RetryAttach(ctx context.Context, session auth.Session, partial *PartialCheckoutError) error {
	if partial == nil || partial.OrderID == "" {
		return invalid(ErrMissingField, "no partial order to retry")
	}
	if err := c.backend.AttachItems(ctx, session, partial.OrderID, partial.Items); err != nil {
		return &PartialCheckoutError{OrderID: partial.OrderID, Items: partial.Items, Err: err}
	}
	c.logger.Info("items attached on retry", zap.String("order_id", partial.OrderID))
	return nil
}

func attachItems(items []Item) []api.AttachItem {
	out := make([]api.AttachItem, 0, len(items))
	for _, item := range items {
		out = append(out, api.AttachItem{
			ProductRetailerID: item.ProductID,
			Quantity:          item.Quantity,
			ItemPrice:         api.NewNumber(item.UnitPrice),
		})
	}
	return out
}
