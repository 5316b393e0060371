// Package ledger reconciles what is owed to a vendor: the paid transactions,
// the pending ones split by commission model, and the payment that clears them.
package ledger

import (
	"emart_admin/internal/api"
	"emart_admin/internal/money"

	"github.com/shopspring/decimal"
)

// Model is how the vendor's cut of a sale is computed.
type Model int

const (
	// Margin products carry a fixed vendor price.
	Margin Model = iota
	// Percentage products pay the vendor the sale minus a commission share.
	Percentage
)

func (m Model) String() string {
	if m == Margin {
		return "margin"
	}
	return "percentage"
}

type Entry struct {
	OrderID     string
	SaleAmount  decimal.Decimal
	VendorPrice decimal.NullDecimal
	Model       Model
}

type ModelLedger struct {
	Model      Model
	Entries    []Entry
	Subtotal   decimal.Decimal
	Commission decimal.Decimal
	// Reported is the payable the server computed, kept for display.
	Reported decimal.NullDecimal
}

func (m ModelLedger) Payable() decimal.Decimal {
	return m.Subtotal.Sub(m.Commission)
}

func (m ModelLedger) IsEmpty() bool {
	return len(m.Entries) == 0 && m.Subtotal.IsZero() && m.Commission.IsZero()
}

type Ledger struct {
	VendorID   string
	Shape      api.Shape
	Paid       []Entry
	Cleared    decimal.Decimal
	Margin     ModelLedger
	Percentage ModelLedger
}

func (l Ledger) TotalPayable() decimal.Decimal {
	return money.Sum(l.Margin.Payable(), l.Percentage.Payable())
}

// Normalize maps both pending layouts onto one ledger. A flat answer only
// ever describes percentage products; a model missing from a split answer is
// an empty ledger with zero totals.
func Normalize(vendorID string, paid api.PaidTransactions, pending api.PendingTransactions) Ledger {
	l := Ledger{
		VendorID:   vendorID,
		Shape:      pending.Shape,
		Cleared:    orZero(paid.ClearedAmount),
		Margin:     ModelLedger{Model: Margin},
		Percentage: ModelLedger{Model: Percentage},
	}

	for _, o := range paid.Transactions {
		model := Percentage
		if o.VendorPrice.Valid {
			model = Margin
		}
		l.Paid = append(l.Paid, Entry{
			OrderID:     o.OrderID.String(),
			SaleAmount:  saleAmount(o),
			VendorPrice: o.VendorPrice,
			Model:       model,
		})
	}

	switch pending.Shape {
	case api.ShapeSplit:
		if pending.Margin != nil {
			l.Margin = fromTotals(Margin, *pending.Margin)
		}
		if pending.Percentage != nil {
			l.Percentage = fromTotals(Percentage, *pending.Percentage)
		}
	default:
		flat := pending.Flat
		l.Percentage = ModelLedger{
			Model:      Percentage,
			Entries:    entries(Percentage, flat.Orders),
			Subtotal:   orZero(flat.TotalSale),
			Commission: orZero(flat.Commission),
			Reported:   flat.Payable,
		}
	}
	return l
}

func fromTotals(model Model, t api.ModelTotals) ModelLedger {
	return ModelLedger{
		Model:      model,
		Entries:    entries(model, t.Orders),
		Subtotal:   orZero(t.TotalSale),
		Commission: orZero(t.CommissionAmount),
		Reported:   t.Payable,
	}
}

func entries(model Model, orders []api.LedgerOrder) []Entry {
	out := make([]Entry, 0, len(orders))
	for _, o := range orders {
		e := Entry{
			OrderID:    o.OrderID.String(),
			SaleAmount: saleAmount(o),
			Model:      model,
		}
		// Only margin products have a vendor price worth showing.
		if model == Margin {
			e.VendorPrice = o.VendorPrice
		}
		out = append(out, e)
	}
	return out
}

func saleAmount(o api.LedgerOrder) decimal.Decimal {
	if o.SoldAmount.Valid {
		return o.SoldAmount.Decimal
	}
	return orZero(o.BillAmount)
}

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}
