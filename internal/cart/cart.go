// Package cart builds offline bills: line items, the receipt derived from
// them, and the two-step checkout that records the bill remotely.
package cart

import (
	"errors"
	"fmt"
	"strings"

	"emart_admin/internal/api"
	"emart_admin/internal/money"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSelection = errors.New("invalid selection")
	ErrInvalidItem      = errors.New("invalid item")
	ErrMissingField     = errors.New("missing required field")
	ErrEmptyCart        = errors.New("cart is empty")
)

// ValidationError is returned before any network call is attempted.
type ValidationError struct {
	Err     error
	Details string
}

func (e *ValidationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Details)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(err error, format string, args ...any) error {
	return &ValidationError{Err: err, Details: fmt.Sprintf(format, args...)}
}

// Candidate is a catalog product picked for the bill.
type Candidate struct {
	ProductID string
	Name      string
	Category  string
	Price     string
	SalePrice string
}

func CandidateFromProduct(p api.Product) Candidate {
	id := p.ID.String()
	if id == "" {
		id = p.RetailerID.String()
	}
	return Candidate{
		ProductID: id,
		Name:      p.Name,
		Category:  p.Category,
		Price:     p.Price.String(),
		SalePrice: p.SalePrice.String(),
	}
}

// UnitPrice is the sale price when one is set, the list price otherwise.
func UnitPrice(c Candidate) (decimal.Decimal, error) {
	raw := strings.TrimSpace(c.SalePrice)
	if raw == "" {
		raw = strings.TrimSpace(c.Price)
	}
	if raw == "" {
		return decimal.Zero, invalid(ErrInvalidItem, "%s has no price", c.label())
	}

	price, err := money.ParsePrice(raw)
	if err != nil {
		return decimal.Zero, &ValidationError{Err: ErrInvalidItem, Details: fmt.Sprintf("%s: %v", c.label(), err)}
	}
	return price, nil
}

func (c Candidate) label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ProductID
}

type Item struct {
	ProductID string
	Name      string
	Category  string
	UnitPrice decimal.Decimal
	Quantity  int
	LineTotal decimal.Decimal
}

// Cart is a value: every change returns a new cart and leaves the old one
// untouched, so a failed change cannot leave it half-updated.
type Cart struct {
	items []Item
}

func (c Cart) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c Cart) Len() int {
	return len(c.items)
}

func (c Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// AddItem appends a line for candidate. A nil candidate means nothing was
// selected.
func (c Cart) AddItem(candidate *Candidate, quantity int) (Cart, error) {
	if candidate == nil {
		return c, invalid(ErrInvalidSelection, "no product selected")
	}
	if quantity < 1 {
		return c, invalid(ErrInvalidSelection, "quantity must be at least 1, got %d", quantity)
	}

	price, err := UnitPrice(*candidate)
	if err != nil {
		return c, err
	}

	name := strings.TrimSpace(candidate.Name)
	if name == "" {
		name = "Unknown Product"
	}
	category := candidate.Category
	if category == "" {
		category = "Unknown"
	}

	items := append(c.Items(), Item{
		ProductID: candidate.ProductID,
		Name:      name,
		Category:  category,
		UnitPrice: price,
		Quantity:  quantity,
		LineTotal: price.Mul(decimal.NewFromInt(int64(quantity))),
	})
	return Cart{items: items}, nil
}

// RemoveItem drops the line at index. An out-of-range index is a no-op.
func (c Cart) RemoveItem(index int) Cart {
	if index < 0 || index >= len(c.items) {
		return c
	}
	items := make([]Item, 0, len(c.items)-1)
	items = append(items, c.items[:index]...)
	items = append(items, c.items[index+1:]...)
	return Cart{items: items}
}

// Subtotal sums line totals without the delivery charge.
func (c Cart) Subtotal() decimal.Decimal {
	totals := make([]decimal.Decimal, 0, len(c.items))
	for _, item := range c.items {
		totals = append(totals, item.LineTotal)
	}
	return money.Sum(totals...)
}
