package cart

import (
	"context"
	"fmt"
	"strings"

	"emart_admin/internal/api"
	"emart_admin/internal/auth"
)

type ItemsBackend interface {
	ListOrderItems(ctx context.Context, session auth.Session, orderID string) ([]api.OrderItem, error)
	UpdateOrderItems(ctx context.Context, session auth.Session, orderID string, changes []api.ItemChange) error
}

// OrderItems edits the line items of an order that already exists. Every
// edit is followed by a fresh read of the order's items.
type OrderItems struct {
	backend ItemsBackend
}

func NewOrderItems(backend ItemsBackend) *OrderItems {
	return &OrderItems{backend: backend}
}

func (o *OrderItems) List(ctx context.Context, session auth.Session, orderID string) ([]api.OrderItem, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, invalid(ErrMissingField, "order id is required")
	}
	return o.backend.ListOrderItems(ctx, session, orderID)
}

func (o *OrderItems) Insert(ctx context.Context, session auth.Session, orderID string, candidate *Candidate, quantity int) ([]api.OrderItem, error) {
	return o.upsert(ctx, session, orderID, api.ActionInsert, candidate, quantity)
}

func (o *OrderItems) UpdateQuantity(ctx context.Context, session auth.Session, orderID string, candidate *Candidate, quantity int) ([]api.OrderItem, error) {
	return o.upsert(ctx, session, orderID, api.ActionUpdate, candidate, quantity)
}

func (o *OrderItems) Delete(ctx context.Context, session auth.Session, orderID, productID string) ([]api.OrderItem, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, invalid(ErrInvalidSelection, "no product selected")
	}
	change := api.ItemChange{ProductID: productID, Action: api.ActionDelete}
	return o.apply(ctx, session, orderID, change)
}

func (o *OrderItems) upsert(ctx context.Context, session auth.Session, orderID, action string, candidate *Candidate, quantity int) ([]api.OrderItem, error) {
	if candidate == nil {
		return nil, invalid(ErrInvalidSelection, "no product selected")
	}
	if quantity < 1 {
		return nil, invalid(ErrInvalidSelection, "quantity must be at least 1, got %d", quantity)
	}
	price, err := UnitPrice(*candidate)
	if err != nil {
		return nil, err
	}

	vendorPrice := api.NewNumber(price)
	return o.apply(ctx, session, orderID, api.ItemChange{
		ProductID:   candidate.ProductID,
		Action:      action,
		Qty:         quantity,
		VendorPrice: &vendorPrice,
	})
}

func (o *OrderItems) apply(ctx context.Context, session auth.Session, orderID string, change api.ItemChange) ([]api.OrderItem, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, invalid(ErrMissingField, "order id is required")
	}
	if err := o.backend.UpdateOrderItems(ctx, session, orderID, []api.ItemChange{change}); err != nil {
		return nil, fmt.Errorf("%s item %s: %w", change.Action, change.ProductID, err)
	}
	return o.List(ctx, session, orderID)
}

// NameItems fills in product names from the catalog, falling back to the
// product id.
func NameItems(items []api.OrderItem, products []api.Product) []api.OrderItem {
	names := make(map[string]string, len(products))
	for _, p := range products {
		if p.ID != "" {
			names[p.ID.String()] = p.Name
		}
		if p.RetailerID != "" {
			if _, ok := names[p.RetailerID.String()]; !ok {
				names[p.RetailerID.String()] = p.Name
			}
		}
	}

	out := make([]api.OrderItem, len(items))
	for i, item := range items {
		item.Name = names[item.ProductID.String()]
		if item.Name == "" {
			item.Name = item.ProductID.String()
		}
		out[i] = item
	}
	return out
}
