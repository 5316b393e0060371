package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"emart_admin/internal/api"
	"emart_admin/internal/cart"
	"emart_admin/internal/catalog"
	"emart_admin/internal/collection"
	"emart_admin/internal/insights"
	"emart_admin/internal/llm"
	"emart_admin/internal/money"

	"go.uber.org/zap"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parseMixed lets flags appear before, between or after positional args.
func parseMixed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, usage("%s: %v", fs.Name(), err)
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func (r *Runner) runLogin(ctx context.Context) error {
	s, err := r.login(ctx)
	if err != nil {
		return err
	}
	if r.options.JSON {
		return r.writeJSON(map[string]any{
			"email":      s.Email,
			"token":      s.Token,
			"expires_at": s.ExpiresAt,
		})
	}
	r.printf("Logged in as %s.\n", s.Email)
	if !s.ExpiresAt.IsZero() {
		r.printf("Session valid until %s.\n", s.ExpiresAt.Format(time.DateTime))
	}
	r.printf("Token: %s\n(set api_token to reuse it without logging in)\n", s.Token)
	return nil
}

func (r *Runner) runSignup(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return usage("signup <username> <email> <password>")
	}
	if err := r.client.Signup(ctx, args[0], args[1], args[2]); err != nil {
		return err
	}
	r.printf("Account %s created.\n", args[1])
	return nil
}

func (r *Runner) runOrders(ctx context.Context, args []string) error {
	fs := newFlagSet("orders")
	search := fs.String("search", "", "order id or customer")
	feedback := fs.String("feedback", "", "feedback value")
	watch := fs.Bool("watch", false, "keep the list live")
	if _, err := parseMixed(fs, args); err != nil {
		return err
	}

	if *watch {
		return r.watchOrders(ctx, *search, *feedback)
	}

	s, err := r.session(ctx)
	if err != nil {
		return err
	}
	orders, err := r.client.ListOrders(ctx, s)
	if err != nil {
		return err
	}
	filtered := filterOrders(collection.New(orders).Items(), *search, *feedback)
	if r.options.JSON {
		return r.writeJSON(filtered)
	}
	r.writeOrders(filtered)
	return nil
}

func (r *Runner) runOrderStatus(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("order-status <orderId> <status>")
	}
	s, err := r.session(ctx)
	if err != nil {
		return err
	}
	if err := r.client.UpdateOrderStatus(ctx, s, args[0], args[1]); err != nil {
		return err
	}
	r.printf("Order %s is now %s.\n", args[0], args[1])
	return nil
}

func (r *Runner) runOrderItems(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("order-items <orderId> [add <productId> <qty> | set <productId> <qty> | rm <productId>]")
	}
	orderID := args[0]
	s, err := r.session(ctx)
	if err != nil {
		return err
	}

	products, err := r.products(ctx)
	if err != nil {
		return err
	}

	var items []api.OrderItem
	switch action := args[1:]; {
	case len(action) == 0:
		items, err = r.orderItems.List(ctx, s, orderID)
	case action[0] == "rm" && len(action) == 2:
		items, err = r.orderItems.Delete(ctx, s, orderID, action[1])
	case (action[0] == "add" || action[0] == "set") && len(action) == 3:
		candidate, qty, perr := pickCandidate(products, action[1], action[2])
		if perr != nil {
			return perr
		}
		if action[0] == "add" {
			items, err = r.orderItems.Insert(ctx, s, orderID, candidate, qty)
		} else {
			items, err = r.orderItems.UpdateQuantity(ctx, s, orderID, candidate, qty)
		}
	default:
		return usage("order-items <orderId> [add <productId> <qty> | set <productId> <qty> | rm <productId>]")
	}
	if err != nil {
		return err
	}

	items = cart.NameItems(items, products)
	if r.options.JSON {
		return r.writeJSON(items)
	}
	r.writeOrderItems(items)
	return nil
}

// pickCandidate resolves a product id and quantity typed by the operator.
// An unknown product yields a nil candidate, which the cart rejects.
func pickCandidate(products []api.Product, productID, qty string) (*cart.Candidate, int, error) {
	quantity, err := strconv.Atoi(strings.TrimSpace(qty))
	if err != nil {
		return nil, 0, usage("quantity %q is not a number", qty)
	}
	p, ok := catalog.Find(products, strings.TrimSpace(productID))
	if !ok {
		return nil, quantity, nil
	}
	c := cart.CandidateFromProduct(p)
	return &c, quantity, nil
}

func (r *Runner) products(ctx context.Context) ([]api.Product, error) {
	s, err := r.session(ctx)
	if err != nil {
		return nil, err
	}
	c, err := r.client.Catalog(ctx, s)
	if err != nil {
		return nil, err
	}
	return catalog.Flatten(c), nil
}

func (r *Runner) runUsers(ctx context.Context, args []string) error {
	fs := newFlagSet("users")
	phone := fs.String("phone", "", "phone number fragment")
	joined := fs.String("joined", "", "join day YYYY-MM-DD")
	if _, err := parseMixed(fs, args); err != nil {
		return err
	}
	if *joined != "" {
		if _, err := time.Parse(time.DateOnly, *joined); err != nil {
			return usage("--joined must be YYYY-MM-DD")
		}
	}

	s, err := r.session(ctx)
	if err != nil {
		return err
	}
	users, err := r.client.ListUsers(ctx, s)
	if err != nil {
		return err
	}
	filtered := filterUsers(users, *phone, *joined)
	if r.options.JSON {
		return r.writeJSON(filtered)
	}
	r.writeUsers(filtered)
	return nil
}

func (r *Runner) runVendors(ctx context.Context, args []string) error {
	fs := newFlagSet("vendors")
	search := fs.String("search", "", "name, shop or phone")
	watch := fs.Bool("watch", false, "keep the list live")
	if _, err := parseMixed(fs, args); err != nil {
		return err
	}

	s, err := r.session(ctx)
	if err != nil {
		return err
	}
	if *watch {
		return r.watchVendors(ctx, s, *search)
	}
	vendors, err := r.client.ListVendors(ctx, s)
	if err != nil {
		return err
	}
	filtered := filterVendors(vendors, *search)
	if r.options.JSON {
		return r.writeJSON(filtered)
	}
	r.writeVendors(filtered)
	return nil
}

func (r *Runner) runVendorAdd(ctx context.Context, args []string) error {
	fs := newFlagSet("vendor-add")
	name := fs.String("name", "", "vendor name")
	phone := fs.String("phone", "", "vendor phone, used as id")
	productType := fs.String("type", "", "product type")
	commission := fs.String("commission", "", "commission percent")
	if _, err := parseMixed(fs, args); err != nil {
		return err
	}
	if strings.TrimSpace(*name) == "" || strings.TrimSpace(*phone) == "" {
		return usage("vendor-add --name <name> --phone <phone> [--type t] [--commission c]")
	}
	rate, err := money.ParsePrice(*commission)
	if err != nil && !errors.Is(err, money.ErrEmptyPrice) {
		return usage("--commission: %v", err)
	}

	s, err := r.session(ctx)
	if err != nil {
		return err
	}
	err = r.client.CreateVendor(ctx, s, api.NewVendor{
		ID:          strings.TrimSpace(*phone),
		Name:        strings.TrimSpace(*name),
		ProductType: strings.TrimSpace(*productType),
		Commission:  api.NewNumber(rate),
	})
	if err != nil {
		return err
	}
	r.printf("Vendor %s added.\n", *name)
	return nil
}

func (r *Runner) runVendorProducts(ctx context.Context, args []string) error {
	fs := newFlagSet("vendor-products")
	search := fs.String("search", "", "product name")
	positional, err := parseMixed(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return usage("vendor-products <vendorId> [--search s]")
	}

	s, err := r.session(ctx)
	if err != nil {
		return err
	}
	products, err := r.vendorProducts.Products(ctx, s, positional[0])
	if err != nil {
		return err
	}
	return r.showProducts(catalog.Filter(products, *search, ""))
}

func (r *Runner) runMap(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("map <vendorId> <productId>")
	}
	s, err := r.session(ctx)
	if err != nil {
		return err
	}
	products, err := r.products(ctx)
	if err != nil {
		return err
	}
	p, ok := catalog.Find(products, args[1])
	if !ok {
		return fmt.Errorf("product %s is not in the catalog", args[1])
	}
	mapped, err := r.vendorProducts.Map(ctx, s, args[0], p)
	if err != nil {
		return err
	}
	r.printf("Mapped %s to vendor %s.\n", p.Name, args[0])
	return r.showProducts(mapped)
}

func (r *Runner) runUnmap(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("unmap <vendorId> <retailerId>")
	}
	s, err := r.session(ctx)
	if err != nil {
		return err
	}
	remaining, err := r.vendorProducts.Unmap(ctx, s, args[0], args[1])
	if err != nil {
		return err
	}
	r.printf("Unmapped %s from vendor %s.\n", args[1], args[0])
	return r.showProducts(remaining)
}

func (r *Runner) runVendorPrice(ctx context.Context, args []string) error {
	fs := newFlagSet("vendor-price")
	availability := fs.String("availability", "", "in stock or out of stock")
	price := fs.String("price", "", "list price")
	salePrice := fs.String("sale-price", "", "sale price")
	positional, err := parseMixed(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 3 {
		return usage("vendor-price <vendorId> <productId> <price|percentage> [--availability a --price p --sale-price s]")
	}
	vendorID, productID, value := positional[0], positional[1], positional[2]

	s, err := r.session(ctx)
	if err != nil {
		return err
	}
	products, err := r.vendorProducts.Products(ctx, s, vendorID)
	if err != nil {
		return err
	}
	p, ok := catalog.Find(products, productID)
	if !ok {
		return fmt.Errorf("product %s is not mapped to vendor %s", productID, vendorID)
	}

	edit := catalog.ProductEdit{
		ProductID:    p.ID.String(),
		RetailerID:   p.RetailerID.String(),
		Availability: *availability,
		Price:        *price,
		SalePrice:    *salePrice,
	}
	if strings.EqualFold(value, "percentage") {
		edit.IsPercentage = true
	} else {
		vp, err := money.ParsePrice(value)
		if err != nil {
			return usage("vendor price: %v", err)
		}
		edit.VendorPrice = &vp
	}

	updated, err := r.vendorProducts.Update(ctx, s, vendorID, edit)
	if err != nil {
		return err
	}
	r.printf("Updated %s for vendor %s.\n", p.Name, vendorID)
	return r.showProducts(updated)
}

func (r *Runner) runProducts(ctx context.Context, args []string) error {
	fs := newFlagSet("products")
	search := fs.String("search", "", "product name")
	category := fs.String("category", "", "category")
	if _, err := parseMixed(fs, args); err != nil {
		return err
	}
	products, err := r.products(ctx)
	if err != nil {
		return err
	}
	return r.showProducts(catalog.Filter(products, *search, *category))
}

func (r *Runner) showProducts(products []api.Product) error {
	if r.options.JSON {
		return r.writeJSON(products)
	}
	r.writeProducts(products)
	return nil
}

func (r *Runner) runStock(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("stock <productId>")
	}
	s, err := r.session(ctx)
	if err != nil {
		return err
	}
	products, err := r.products(ctx)
	if err != nil {
		return err
	}
	p, ok := catalog.Find(products, args[0])
	if !ok {
		return fmt.Errorf("product %s is not in the catalog", args[0])
	}

	next := catalog.ToggleAvailability(p.Availability)
	if err := r.client.UpdateStock(ctx, s, p.ID.String(), next); err != nil {
		return err
	}
	r.printf("%s is now %s.\n", p.Name, next)
	return nil
}

func (r *Runner) runLedger(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("ledger <vendorId>")
	}
	s, err := r.session(ctx)
	if err != nil {
		return err
	}
	l, err := r.reconciler.LoadLedger(ctx, s, args[0])
	if err != nil {
		return err
	}
	if r.options.JSON {
		return r.writeJSON(l)
	}
	r.writeLedger(l)
	return nil
}

func (r *Runner) runPay(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("pay <vendorId> <transactionId> [note]")
	}
	s, err := r.session(ctx)
	if err != nil {
		return err
	}
	note := strings.Join(args[2:], " ")
	l, err := r.reconciler.ClearPayment(ctx, s, args[0], args[1], note)
	if err != nil {
		return err
	}
	if r.options.JSON {
		return r.writeJSON(l)
	}
	r.printf("Payment %s recorded for vendor %s.\n\n", args[1], args[0])
	r.writeLedger(l)
	return nil
}

func (r *Runner) runInsights(ctx context.Context) error {
	s, err := r.session(ctx)
	if err != nil {
		return err
	}
	summary, err := r.insights.Summary(ctx, s)
	if err != nil {
		return err
	}

	narrative, err := r.insights.Narrate(ctx, summary)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
	case err != nil:
		r.logger.Warn("narration failed", zap.Error(err))
	}

	if r.options.JSON {
		return r.writeJSON(struct {
			Summary   insights.Summary `json:"summary"`
			Narrative string           `json:"narrative,omitempty"`
		}{summary, narrative})
	}
	r.printf("%s", summary.Table())
	if narrative != "" {
		r.printf("\n%s\n", narrative)
	}
	return nil
}
