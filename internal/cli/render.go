package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"emart_admin/internal/api"
	"emart_admin/internal/ledger"
	"emart_admin/internal/money"

	"github.com/shopspring/decimal"
)

const maxRows = 50

func newTable(w io.Writer, headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	return tw
}

func row(tw *tabwriter.Writer, cells ...string) {
	fmt.Fprintln(tw, strings.Join(cells, "\t"))
}

func (r *Runner) amount(d decimal.Decimal) string {
	return money.Format(r.cfg.CurrencySymbol, d)
}

func (r *Runner) nullAmount(d decimal.NullDecimal) string {
	return money.FormatNull(r.cfg.CurrencySymbol, d)
}

func (r *Runner) writeOrders(orders []api.Order) {
	if len(orders) == 0 {
		r.println("- (no orders)")
		return
	}
	tw := newTable(r.out, "ID", "CUSTOMER", "STATUS", "AMOUNT", "FEEDBACK", "CREATED")
	for i, o := range orders {
		if i == maxRows {
			break
		}
		row(tw, string(o.ID), string(o.User), o.Status, r.nullAmount(o.BillAmount), string(o.Feedback), o.CreatedAt)
	}
	_ = tw.Flush()
	if len(orders) > maxRows {
		r.printf("... %d more\n", len(orders)-maxRows)
	}
}

func (r *Runner) writeUsers(users []api.User) {
	if len(users) == 0 {
		r.println("- (no users)")
		return
	}
	tw := newTable(r.out, "ID", "NAME", "PHONE", "LANGUAGE", "JOINED", "LAST LOGIN")
	for _, u := range users {
		row(tw, string(u.ID), u.Name, string(u.Phone), u.Language, joinDay(u.CreatedAt), u.LastLogin)
	}
	_ = tw.Flush()
}

func (r *Runner) writeVendors(vendors []api.Vendor) {
	if len(vendors) == 0 {
		r.println("- (no vendors)")
		return
	}
	tw := newTable(r.out, "ID", "NAME", "SHOP", "PHONE", "TYPE", "COMMISSION")
	for _, v := range vendors {
		commission := "-"
		if v.Commission.Valid {
			commission = v.Commission.Decimal.String() + "%"
		}
		row(tw, string(v.ID), v.Name, v.ShopName, string(v.Phone), v.ProductType, commission)
	}
	_ = tw.Flush()
}

func (r *Runner) writeProducts(products []api.Product) {
	if len(products) == 0 {
		r.println("- (no products)")
		return
	}
	tw := newTable(r.out, "ID", "RETAILER ID", "NAME", "CATEGORY", "PRICE", "SALE", "VENDOR PRICE", "STOCK")
	for _, p := range products {
		vendorPrice := r.nullAmount(p.VendorsPrice)
		if p.IsPercentage {
			vendorPrice = "percentage"
		}
		row(tw, p.ID.String(), p.RetailerID.String(), p.Name, p.Category, p.Price.String(), p.SalePrice.String(), vendorPrice, p.Availability)
	}
	_ = tw.Flush()
}

func (r *Runner) writeOrderItems(items []api.OrderItem) {
	if len(items) == 0 {
		r.println("- (no items)")
		return
	}
	tw := newTable(r.out, "PRODUCT", "NAME", "QTY", "PRICE")
	for _, it := range items {
		row(tw, it.ProductID.String(), it.Name, fmt.Sprint(it.Quantity), r.nullAmount(it.ItemPrice))
	}
	_ = tw.Flush()
}

func (r *Runner) writeLedger(l ledger.Ledger) {
	r.printf("Vendor %s (%s response)\n", l.VendorID, l.Shape)
	r.printf("Cleared so far: %s over %d paid orders\n\n", r.amount(l.Cleared), len(l.Paid))

	for _, m := range []ledger.ModelLedger{l.Margin, l.Percentage} {
		r.printf("Pending, %s products:\n", m.Model)
		if m.IsEmpty() {
			r.println("- (nothing pending)")
			r.println()
			continue
		}
		tw := newTable(r.out, "ORDER", "SALE", "VENDOR PRICE")
		for _, e := range m.Entries {
			vendorPrice := "-"
			if m.Model == ledger.Margin {
				vendorPrice = r.nullAmount(e.VendorPrice)
			}
			row(tw, e.OrderID, r.amount(e.SaleAmount), vendorPrice)
		}
		_ = tw.Flush()
		r.printf("Subtotal %s, commission %s, payable %s\n\n", r.amount(m.Subtotal), r.amount(m.Commission), r.amount(m.Payable()))
	}
	r.printf("Total payable: %s\n", r.amount(l.TotalPayable()))
}
